//go:build windows

package action

func openCommand(path string) Command {
	return Command{Name: "cmd", Args: []string{"/C", "start", "", path}}
}

func wordCommands(string) []Command {
	return []Command{
		{Name: "cmd", Args: []string{"/C", "start", "winword.exe", "/q", "/n"}},
		{Name: "cmd", Args: []string{"/C", "start", "Microsoft Word", `C:\Program Files\Microsoft Office\root\Office16\WINWORD.EXE`, "/q", "/n"}},
		{Name: "cmd", Args: []string{"/C", "start", "winword.exe"}},
	}
}

func detached(Command) bool { return false }
