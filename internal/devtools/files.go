package devtools

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// maxReadBytes caps how much text ReadFile returns.
const maxReadBytes = 1 << 20

// ErrFileNotFound is wrapped by ReadFile when the path does not exist.
var ErrFileNotFound = errors.New("not found")

// FileContent is the text of a workspace file.
type FileContent struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

// WriteResult describes a completed write.
type WriteResult struct {
	Path       string `json:"path"`
	BackupPath string `json:"backupPath,omitempty"`
}

// Files reads and writes guarded paths inside the workspace directory.
type Files struct {
	root  string
	perms Permissions
	now   func() time.Time
}

// NewFiles creates a Files rooted at root.
func NewFiles(root string, perms Permissions) *Files {
	return &Files{root: root, perms: perms, now: time.Now}
}

// Root returns the workspace directory.
func (f *Files) Root() string { return f.root }

func (f *Files) resolve(p string, forRead bool) (string, error) {
	if !IsPathSafe(p, forRead) {
		return "", fmt.Errorf("%q: %w", p, ErrPathNotAllowed)
	}
	return filepath.Join(f.root, filepath.FromSlash(p)), nil
}

// ReadFile returns the text of a workspace file. PDFs are converted to
// plain text.
func (f *Files) ReadFile(p string) (FileContent, error) {
	full, err := f.resolve(p, true)
	if err != nil {
		return FileContent{}, err
	}

	var r io.Reader
	if strings.EqualFold(filepath.Ext(full), ".pdf") {
		text, err := pdfText(full)
		if err != nil {
			return FileContent{}, err
		}
		r = strings.NewReader(text)
	} else {
		fh, err := os.Open(full)
		if errors.Is(err, fs.ErrNotExist) {
			return FileContent{}, fmt.Errorf("File %s %w", p, ErrFileNotFound)
		}
		if err != nil {
			return FileContent{}, fmt.Errorf("reading %s: %w", p, err)
		}
		defer fh.Close()
		r = fh
	}

	data, err := io.ReadAll(io.LimitReader(r, maxReadBytes+1))
	if err != nil {
		return FileContent{}, fmt.Errorf("reading %s: %w", p, err)
	}
	fc := FileContent{Path: p}
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
		fc.Truncated = true
	}
	fc.Content = string(data)
	return fc, nil
}

func pdfText(path string) (string, error) {
	fh, reader, err := pdf.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("File %s %w", filepath.Base(path), ErrFileNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer fh.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	return buf.String(), nil
}

// WriteFile replaces the content of a workspace file, first copying any
// existing file to "<name>.backup.<unix-millis>".
func (f *Files) WriteFile(p, content string) (WriteResult, error) {
	if !f.perms.Preferences().CanEditFiles() {
		return WriteResult{}, ErrEditingDisabled
	}
	full, err := f.resolve(p, false)
	if err != nil {
		return WriteResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return WriteResult{}, fmt.Errorf("creating directory: %w", err)
	}

	res := WriteResult{Path: full}
	if old, err := os.ReadFile(full); err == nil {
		res.BackupPath = fmt.Sprintf("%s.backup.%d", full, f.now().UnixMilli())
		if err := os.WriteFile(res.BackupPath, old, 0o644); err != nil {
			return WriteResult{}, fmt.Errorf("writing backup: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return WriteResult{}, fmt.Errorf("reading %s: %w", p, err)
	}

	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return WriteResult{}, fmt.Errorf("writing %s: %w", p, err)
	}
	return res, nil
}
