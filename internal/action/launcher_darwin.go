//go:build darwin

package action

func openCommand(path string) Command {
	return Command{Name: "open", Args: []string{path}}
}

func wordCommands(string) []Command {
	return []Command{
		{Name: "open", Args: []string{"-a", "Microsoft Word"}},
		{Name: "open", Args: []string{"-b", "com.microsoft.Word"}},
		{Name: "open", Args: []string{"-a", "Pages"}},
	}
}

func detached(Command) bool { return false }
