// Package action turns a classified request into a side effect on the
// user's machine: creating files, opening them and launching a word
// processor. Every outcome is fed back to the learner.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kalambet/agenttwo/internal/intent"
	"github.com/kalambet/agenttwo/internal/memory"
	"github.com/kalambet/agenttwo/internal/profile"
)

// ErrNoRecentFile is returned by handlers that act on the last created file
// before any file was created.
var ErrNoRecentFile = errors.New("no files have been created yet, please create a file first")

// Classifier maps a message to an intent.
type Classifier interface {
	Classify(ctx context.Context, message string) intent.Result
}

// Learner records outcomes and exposes the learned state. Implemented by
// profile.Manager.
type Learner interface {
	Record(message, intent string, success bool, feedback string) error
	Snapshot() profile.Profile
}

// Permissions exposes the preferences that gate file creation.
type Permissions interface {
	Preferences() memory.Preferences
}

// Result is the outcome of one handled request.
type Result struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	FilePath   string  `json:"filePath,omitempty"`
}

// Dispatcher executes the action for each classified request.
type Dispatcher struct {
	classifier Classifier
	learner    Learner
	perms      Permissions
	launcher   Launcher
	filesDir   string
	now        func() time.Time

	mu      sync.Mutex
	created []string
	opened  []string
}

// New creates a Dispatcher that keeps created files in filesDir.
func New(classifier Classifier, learner Learner, perms Permissions, launcher Launcher, filesDir string) *Dispatcher {
	if launcher == nil {
		launcher = SystemLauncher{}
	}
	return &Dispatcher{
		classifier: classifier,
		learner:    learner,
		perms:      perms,
		launcher:   launcher,
		filesDir:   filesDir,
		now:        time.Now,
	}
}

// FilesDir returns the directory created files are written to.
func (d *Dispatcher) FilesDir() string { return d.filesDir }

// HandleUserRequest classifies message, runs the matching handler and
// records the outcome with the learner. Handler errors become failure
// results; the learner is called either way.
func (d *Dispatcher) HandleUserRequest(ctx context.Context, message string) Result {
	cls := d.classifier.Classify(ctx, message)
	slog.Debug("classified request", "intent", cls.Intent, "confidence", cls.Confidence, "method", cls.Method)

	res := Result{Action: cls.Intent, Confidence: cls.Confidence, Method: cls.Method}
	msg, path, err := d.run(ctx, cls.Intent, message)
	if err != nil {
		res.Message = "Sorry, I couldn't do that: " + err.Error()
	} else {
		res.Success = true
		res.Message = msg
		res.FilePath = path
	}

	if err := d.learner.Record(message, cls.Intent, res.Success, res.Message); err != nil {
		slog.Warn("recording interaction", "intent", cls.Intent, "error", err)
	}
	return res
}

func (d *Dispatcher) run(ctx context.Context, in, message string) (string, string, error) {
	switch in {
	case intent.CreateTextFile:
		return d.createTextFile(message)
	case intent.OpenWordDocument:
		return d.launchWord(ctx, "Microsoft Word opened with a new document")
	case intent.CreateWordDocument:
		return d.launchWord(ctx, "New Word document created")
	case intent.EditLastFile:
		return d.openLast(ctx, "edit")
	case intent.OpenLastFile:
		return d.openLast(ctx, "open")
	case intent.AddLinkToFile, intent.AddLink:
		return d.appendToLast("\n\nLink: https://example.com", "Link added to")
	case intent.AddChatGPTLink:
		return d.appendToLast("\n\nChatGPT: https://chat.openai.com/", "ChatGPT link added to")
	case intent.EditFile:
		return d.openNamed(ctx, message, "edit")
	case intent.OpenFile:
		return d.openNamed(ctx, message, "open")
	}
	return "", "", errors.New("I'm not sure what you want me to do. Could you rephrase that?")
}

// Stats summarizes file activity and what has been learned.
type Stats struct {
	CreatedFiles int            `json:"lastCreatedFiles"`
	OpenedFiles  int            `json:"lastOpenedFiles"`
	RecentFiles  []string       `json:"recentFiles"`
	IntentCounts map[string]int `json:"intentCounts"`
	MappingSize  int            `json:"mappingSize"`
	FailedCount  int            `json:"failedCount"`
	Corrections  int            `json:"correctionCount"`
}

// Stats returns the created and opened counts, the last five created file
// names and per-intent counts over the successful log.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	st := Stats{
		CreatedFiles: len(d.created),
		OpenedFiles:  len(d.opened),
		RecentFiles:  []string{},
	}
	recent := d.created
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, p := range recent {
		st.RecentFiles = append(st.RecentFiles, filepath.Base(p))
	}
	d.mu.Unlock()

	p := d.learner.Snapshot()
	st.IntentCounts = make(map[string]int)
	for _, e := range p.Learning.SuccessfulRequests {
		st.IntentCounts[e.Intent]++
	}
	st.MappingSize = p.IntentMapping.Len()
	st.FailedCount = len(p.Learning.FailedRequests)
	st.Corrections = len(p.Learning.Corrections)
	return st
}

// lastCreated returns the most recently created file.
func (d *Dispatcher) lastCreated() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.created) == 0 {
		return "", ErrNoRecentFile
	}
	return d.created[len(d.created)-1], nil
}

func (d *Dispatcher) addCreated(path string) {
	d.mu.Lock()
	d.created = append(d.created, path)
	d.mu.Unlock()
}

func (d *Dispatcher) addOpened(path string) {
	d.mu.Lock()
	d.opened = append(d.opened, path)
	d.mu.Unlock()
}

// forget drops path from the created list.
func (d *Dispatcher) forget(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.created[:0]
	for _, p := range d.created {
		if p != path {
			kept = append(kept, p)
		}
	}
	removed := len(kept) != len(d.created)
	d.created = kept
	return removed
}

func (d *Dispatcher) ensureFilesDir() error {
	if err := os.MkdirAll(d.filesDir, 0o755); err != nil {
		return fmt.Errorf("creating files directory: %w", err)
	}
	return nil
}
