package process

// Definition describes a configured script.
type Definition struct {
	// ID is the unique key of the script.
	ID string

	// Name is the display name. Defaults to ID.
	Name string

	// Command is the command template, with ${name} placeholders.
	Command string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds extra environment variables layered over the inherited
	// environment.
	Env map[string]string

	// Shell runs the rendered command through the supervisor's shell with -c
	// instead of executing it directly.
	Shell bool
}

// DisplayName returns Name, or ID when no name is set.
func (d Definition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
