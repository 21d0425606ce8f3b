package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		params   map[string]string
		want     string
	}{
		{"episode", "echo ${episode}", map[string]string{"episode": "3"}, "echo 3"},
		{"no placeholders", "./run.sh --fast", nil, "./run.sh --fast"},
		{"repeated", "${a}-${a}", map[string]string{"a": "x"}, "x-x"},
		{"adjacent", "${a}${b}", map[string]string{"a": "1", "b": "2"}, "12"},
		{"value kept literal", "echo ${a}", map[string]string{"a": "${b}"}, "echo ${b}"},
		{"empty value", "run ${a}.", map[string]string{"a": ""}, "run ."},
		{"unterminated left alone", "echo ${a", map[string]string{"a": "1"}, "echo ${a"},
		{"dollar without brace", "echo $a ${a}", map[string]string{"a": "1"}, "echo $a 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_MissingParameter(t *testing.T) {
	_, err := Render("run ${first} ${second}", map[string]string{"second": "2"})
	require.Error(t, err)

	var missing *MissingParameterError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "first", missing.Name)
	assert.Contains(t, err.Error(), "first")
}

func TestRender_EmptyName(t *testing.T) {
	_, err := Render("run ${}", nil)

	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "", missing.Name)
}

func TestRender_Env(t *testing.T) {
	t.Setenv("RUNBOARD_TEST_HOST", "example.local")

	got, err := Render("ping ${env:RUNBOARD_TEST_HOST}", nil)
	require.NoError(t, err)
	assert.Equal(t, "ping example.local", got)

	_, err = Render("ping ${env:RUNBOARD_TEST_UNSET_VARIABLE}", nil)
	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "env:RUNBOARD_TEST_UNSET_VARIABLE", missing.Name)
}

func TestRender_CompleteParamsLeaveNoPlaceholders(t *testing.T) {
	templates := []string{
		"echo ${episode}",
		"${a} ${b} ${c}",
		"python train.py --run ${run} --lr ${lr} --episode ${episode}",
		"${x}${x}${x}",
	}
	params := map[string]string{
		"episode": "12", "a": "A", "b": "B", "c": "C",
		"run": "r1", "lr": "0.01", "x": "xx",
	}

	for _, tmpl := range templates {
		first, err := Render(tmpl, params)
		require.NoError(t, err)
		assert.False(t, placeholderPattern.MatchString(first), "leftover placeholder in %q", first)

		second, err := Render(tmpl, params)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("${b} ${a} ${b} ${env:HOME}")
	assert.Equal(t, []string{"b", "a", "env:HOME"}, got)
	assert.Nil(t, Placeholders("plain"))
}

func TestSplit(t *testing.T) {
	argv, err := Split(`./train.sh --name "my run" 'single quoted' esc\ aped`)
	require.NoError(t, err)
	assert.Equal(t, []string{"./train.sh", "--name", "my run", "single quoted", "esc aped"}, argv)

	argv, err = Split("echo $HOME")
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "$HOME"}, argv)
}

func TestSplit_Empty(t *testing.T) {
	_, err := Split("   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = ShellArgv("/bin/sh", " ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestSplit_ShellOperator(t *testing.T) {
	_, err := Split("echo a | tr a b")
	assert.ErrorIs(t, err, ErrShellOperator)

	argv, err := Split(`echo "a | b"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "a | b"}, argv)
}

func TestShellArgv(t *testing.T) {
	argv, err := ShellArgv("", "echo a | tr a b")
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/sh", "-c", "echo a | tr a b"}, argv)
	assert.True(t, strings.HasSuffix(argv[0], "sh"))
}
