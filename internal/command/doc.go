// Package command turns script command templates into executable argument
// vectors.
//
// Templates reference runtime parameters with ${name} placeholders:
//
//	rendered, err := command.Render("./train.sh --episode ${episode}", map[string]string{
//	    "episode": "3",
//	})
//	// rendered == "./train.sh --episode 3"
//
// ${env:NAME} reads NAME from the process environment. Rendering is pure and
// fails with a *MissingParameterError naming the first placeholder that has
// no value, so nothing is ever launched with a half-substituted command.
//
// Split parses the rendered string into argv the way a POSIX shell would
// tokenize it (quotes and backslash escapes), without performing any
// expansion. Parameters is the mutable store the dashboard keeps the current
// values in; take a Snapshot when launching.
package command
