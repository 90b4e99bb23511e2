//go:build !darwin && !windows

package action

func openCommand(path string) Command {
	return Command{Name: "xdg-open", Args: []string{path}}
}

func wordCommands(docPath string) []Command {
	return []Command{
		{Name: "libreoffice", Args: []string{"--writer"}},
		{Name: "soffice", Args: []string{"--writer"}},
		{Name: "xdg-open", Args: []string{docPath}},
	}
}

// Office suites stay in the foreground until closed.
func detached(c Command) bool { return c.Name != "xdg-open" }
