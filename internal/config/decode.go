package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// decode copies the values present in data onto cfg. Settings missing from
// data keep their current value.
func decode(data map[string]any, cfg *Config) error {
	d := decoder{data: data}

	d.getString("title", &cfg.Title)

	d.getDuration("supervisor.grace_period", &cfg.Supervisor.GracePeriod)
	d.getDuration("supervisor.kill_timeout", &cfg.Supervisor.KillTimeout)
	d.getDuration("supervisor.drain_timeout", &cfg.Supervisor.DrainTimeout)
	d.getInt("supervisor.queue_capacity", &cfg.Supervisor.QueueCapacity)
	d.getString("supervisor.shell", &cfg.Supervisor.Shell)

	d.getString("logging.level", &cfg.Logging.Level)
	d.getString("logging.encoding", &cfg.Logging.Encoding)
	d.getString("logging.file", &cfg.Logging.File)

	d.getInt("ui.scrollback", &cfg.UI.Scrollback)
	d.getString("ui.counter", &cfg.UI.Counter)

	if params, ok := d.getStringMap("params"); ok {
		cfg.Params = params
	}

	d.scripts(cfg)

	return d.err
}

// decoder reads typed settings from a nested map, keeping the first error.
type decoder struct {
	data map[string]any
	err  error
}

func (d *decoder) lookup(path string) (any, bool) {
	if d.err != nil {
		return nil, false
	}
	return getPath(d.data, path)
}

func (d *decoder) fail(path, expected string, value any) {
	if d.err == nil {
		d.err = &TypeError{Path: path, Expected: expected, Value: value}
	}
}

func (d *decoder) getString(path string, dst *string) {
	v, ok := d.lookup(path)
	if !ok {
		return
	}
	s, ok := v.(string)
	if !ok {
		d.fail(path, "string", v)
		return
	}
	*dst = s
}

func (d *decoder) getInt(path string, dst *int) {
	v, ok := d.lookup(path)
	if !ok {
		return
	}
	n, ok := toInt(v)
	if !ok {
		d.fail(path, "integer", v)
		return
	}
	*dst = n
}

func (d *decoder) getBool(path string, dst *bool) {
	v, ok := d.lookup(path)
	if !ok {
		return
	}
	switch b := v.(type) {
	case bool:
		*dst = b
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			d.fail(path, "boolean", v)
			return
		}
		*dst = parsed
	default:
		d.fail(path, "boolean", v)
	}
}

func (d *decoder) getDuration(path string, dst *time.Duration) {
	v, ok := d.lookup(path)
	if !ok {
		return
	}
	switch t := v.(type) {
	case time.Duration:
		*dst = t
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			d.fail(path, `duration like "3s"`, v)
			return
		}
		*dst = parsed
	default:
		d.fail(path, `duration like "3s"`, v)
	}
}

// getStringMap reads a table of scalars, formatting non-string values.
func (d *decoder) getStringMap(path string) (map[string]string, bool) {
	v, ok := d.lookup(path)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		d.fail(path, "table", v)
		return nil, false
	}

	out := make(map[string]string, len(m))
	for k, val := range m {
		s, ok := scalarString(val)
		if !ok {
			d.fail(path+"."+k, "scalar", val)
			return nil, false
		}
		out[k] = s
	}
	return out, true
}

func (d *decoder) scripts(cfg *Config) {
	v, ok := d.lookup("scripts")
	if !ok {
		return
	}
	list, ok := v.([]any)
	if !ok {
		d.fail("scripts", "array of tables", v)
		return
	}

	cfg.Scripts = make([]ScriptConfig, 0, len(list))
	for i, item := range list {
		table, ok := item.(map[string]any)
		if !ok {
			d.fail(fmt.Sprintf("scripts[%d]", i), "table", item)
			return
		}

		sub := decoder{data: table}
		var s ScriptConfig
		sub.getString("id", &s.ID)
		sub.getString("name", &s.Name)
		sub.getString("command", &s.Command)
		sub.getString("dir", &s.Dir)
		sub.getBool("shell", &s.Shell)
		if env, ok := sub.getStringMap("env"); ok {
			s.Env = env
		}
		if sub.err != nil {
			if te, ok := sub.err.(*TypeError); ok {
				te.Path = fmt.Sprintf("scripts[%d].%s", i, te.Path)
			}
			d.err = sub.err
			return
		}
		cfg.Scripts = append(cfg.Scripts, s)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(s), true
	default:
		return "", false
	}
}

// getPath walks a dot-separated path through nested maps.
func getPath(m map[string]any, path string) (any, bool) {
	current := any(m)
	for _, part := range strings.Split(path, ".") {
		cm, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = cm[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
