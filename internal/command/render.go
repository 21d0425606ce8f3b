package command

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// placeholderPattern matches ${name}. Names cannot contain braces.
var placeholderPattern = regexp.MustCompile(`\$\{([^{}]*)\}`)

// envPrefix selects the process environment as the value source.
const envPrefix = "env:"

// MissingParameterError reports a placeholder with no value.
type MissingParameterError struct {
	// Name is the placeholder name as written in the template.
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing parameter %q", e.Name)
}

// Render replaces every ${name} in template with params[name].
//
// Values are inserted literally and never re-expanded. ${env:NAME} is taken
// from the environment. The first placeholder (left to right) without a value
// fails the whole render with a *MissingParameterError.
func Render(template string, params map[string]string) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(template, -1)
	if len(matches) == 0 {
		return template, nil
	}

	var b strings.Builder
	b.Grow(len(template))

	last := 0
	for _, m := range matches {
		name := template[m[2]:m[3]]
		value, ok := lookup(name, params)
		if !ok {
			return "", &MissingParameterError{Name: name}
		}
		b.WriteString(template[last:m[0]])
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(template[last:])

	return b.String(), nil
}

func lookup(name string, params map[string]string) (string, bool) {
	if envName, ok := strings.CutPrefix(name, envPrefix); ok {
		if envName == "" {
			return "", false
		}
		return os.LookupEnv(envName)
	}
	if name == "" {
		return "", false
	}
	v, ok := params[name]
	return v, ok
}

// Placeholders returns the placeholder names referenced by template in order
// of first appearance, without duplicates.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}
