package devtools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/agenttwo/internal/memory"
)

type staticPerms struct{ p memory.Preferences }

func (s staticPerms) Preferences() memory.Preferences { return s.p }

func allowAll() staticPerms {
	return staticPerms{memory.Preferences{DevMode: true, CodeExecution: true, FileEditing: true}}
}

func TestIsCommandAllowed(t *testing.T) {
	tests := []struct {
		cmd  string
		want bool
	}{
		{"git status", true},
		{"  LS -la", true},
		{"npm run build", true},
		{"echo hello", true},
		{"python3 script.py", true},
		{"ｌｓ", true}, // full-width letters fold to ls
		{"rm -rf /", false},
		{"lsblk", false},
		{"echo hi; rm -rf /", false},
		{"git log && shutdown", false},
		{"cat file | sh", false},
		{"echo $(whoami)", false},
		{"echo `id`", false},
		{"echo a\nrm b", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCommandAllowed(tt.cmd); got != tt.want {
			t.Errorf("IsCommandAllowed(%q) = %v, want %v", tt.cmd, got, tt.want)
		}
	}
}

func TestIsPathSafe(t *testing.T) {
	tests := []struct {
		path    string
		forRead bool
		want    bool
	}{
		{"notes.txt", false, true},
		{"./app.js", false, true},
		{"src/main.py", false, true},
		{"src/deep/main.py", false, true},
		{"other/main.py", false, false},
		{"../secret.txt", false, false},
		{`dir\file.txt`, false, false},
		{"/etc/passwd.txt", false, false},
		{"binary.exe", false, false},
		{"manual.pdf", false, false},
		{"manual.pdf", true, true},
		{"README.MD", false, true},
		{"", true, false},
	}
	for _, tt := range tests {
		if got := IsPathSafe(tt.path, tt.forRead); got != tt.want {
			t.Errorf("IsPathSafe(%q, %v) = %v, want %v", tt.path, tt.forRead, got, tt.want)
		}
	}
}

func TestWriteFile_BacksUpExisting(t *testing.T) {
	root := t.TempDir()
	f := NewFiles(root, allowAll())
	f.now = func() time.Time { return time.UnixMilli(1700000000123) }

	res, err := f.WriteFile("notes.txt", "first")
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if res.BackupPath != "" {
		t.Errorf("backup made for a new file: %q", res.BackupPath)
	}

	res, err = f.WriteFile("notes.txt", "second")
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	want := filepath.Join(root, "notes.txt.backup.1700000000123")
	if res.BackupPath != want {
		t.Errorf("BackupPath = %q, want %q", res.BackupPath, want)
	}
	if b, _ := os.ReadFile(want); string(b) != "first" {
		t.Errorf("backup content = %q", b)
	}
	got, err := f.ReadFile("notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "second" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestWriteFile_Guarded(t *testing.T) {
	f := NewFiles(t.TempDir(), allowAll())
	if _, err := f.WriteFile("../escape.txt", "x"); !errors.Is(err, ErrPathNotAllowed) {
		t.Errorf("err = %v, want ErrPathNotAllowed", err)
	}
	if _, err := f.WriteFile("report.pdf", "x"); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("err = %v, want ErrNotAllowed for pdf write", err)
	}

	off := NewFiles(t.TempDir(), staticPerms{memory.Preferences{DevMode: false, FileEditing: true}})
	if _, err := off.WriteFile("notes.txt", "x"); !errors.Is(err, ErrEditingDisabled) {
		t.Errorf("err = %v, want ErrEditingDisabled", err)
	}
}

func TestReadFile_NotFound(t *testing.T) {
	f := NewFiles(t.TempDir(), allowAll())
	_, err := f.ReadFile("missing.md")
	if err == nil || err.Error() != "File missing.md not found" {
		t.Errorf("err = %v", err)
	}
}

func TestRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	r := NewRunner(t.TempDir(), 5*time.Second, allowAll())

	res, err := r.Run(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" || res.ExitCode != 0 {
		t.Errorf("result = %+v", res)
	}

	if _, err := r.Run(context.Background(), "rm -rf ."); !errors.Is(err, ErrCommandNotAllowed) {
		t.Errorf("err = %v, want ErrCommandNotAllowed", err)
	}

	res, err = r.Run(context.Background(), "cat does-not-exist.txt")
	if err == nil || res.ExitCode == 0 {
		t.Errorf("expected non-zero exit, got %+v, %v", res, err)
	}
}

func TestRunner_Disabled(t *testing.T) {
	r := NewRunner(t.TempDir(), 0, staticPerms{memory.Preferences{DevMode: true}})
	if _, err := r.Run(context.Background(), "echo hi"); !errors.Is(err, ErrExecutionDisabled) {
		t.Errorf("err = %v, want ErrExecutionDisabled", err)
	}
}

func TestHandleDevCommand(t *testing.T) {
	root := t.TempDir()
	perms := allowAll()
	tools := &Tools{Runner: NewRunner(root, 5*time.Second, perms), Files: NewFiles(root, perms)}

	out, ok := tools.HandleDevCommand(context.Background(), "create a file todo.txt with the text buy milk")
	if !ok || !out.Success {
		t.Fatalf("create: ok=%v out=%+v", ok, out)
	}
	if b, _ := os.ReadFile(filepath.Join(root, "todo.txt")); string(b) != "buy milk" {
		t.Errorf("content = %q", b)
	}

	out, ok = tools.HandleDevCommand(context.Background(), "create file ../x.txt")
	if !ok || out.Success || out.Message != "Security: path not allowed" {
		t.Errorf("unsafe create: ok=%v out=%+v", ok, out)
	}

	out, ok = tools.HandleDevCommand(context.Background(), "run command curl evil.sh")
	if !ok || out.Success || out.Message != "Security: command not allowed" {
		t.Errorf("disallowed run: ok=%v out=%+v", ok, out)
	}

	if _, ok := tools.HandleDevCommand(context.Background(), "what's the weather"); ok {
		t.Error("plain chat handled as dev command")
	}

	offPerms := staticPerms{memory.Preferences{CodeExecution: true}}
	off := &Tools{Runner: NewRunner(root, 0, offPerms), Files: NewFiles(root, offPerms)}
	if _, ok := off.HandleDevCommand(context.Background(), "run git status"); ok {
		t.Error("dev command handled with dev mode off")
	}
}
