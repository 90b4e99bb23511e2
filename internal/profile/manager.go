package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/agenttwo/internal/storage"
)

// DefaultMaxLogEntries caps each learning log when Options leaves it unset.
const DefaultMaxLogEntries = 500

// ErrUnknownTask is returned for an app preference category that does not exist.
var ErrUnknownTask = errors.New("unknown task category")

// Archiver receives learning entries evicted by the retention policy.
// Implemented by storage.Store.
type Archiver interface {
	ArchiveLearningEntries(log string, entries []storage.ArchivedEntry) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Clock         Clock
	Archive       Archiver
	MaxLogEntries int
}

// Manager owns the profile document. Every mutation is written back to disk
// before the call returns.
type Manager struct {
	path    string
	clock   Clock
	archive Archiver
	maxLog  int

	mu sync.RWMutex
	p  Profile
}

// Load reads the profile at path, or starts from Default when the file is
// absent. A corrupt file is moved aside and replaced by defaults.
func Load(path string, opts Options) (*Manager, error) {
	m := &Manager{
		path:    path,
		clock:   opts.Clock,
		archive: opts.Archive,
		maxLog:  opts.MaxLogEntries,
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	if m.maxLog <= 0 {
		m.maxLog = DefaultMaxLogEntries
	}

	p := Default()
	found, err := storage.ReadJSON(path, &p)
	if err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", path, m.clock.Now().Unix())
		slog.Warn("profile unreadable, starting from defaults", "path", path, "moved_to", aside, "error", err)
		if rerr := os.Rename(path, aside); rerr != nil {
			return nil, fmt.Errorf("moving corrupt profile aside: %w", rerr)
		}
		p, found = Default(), false
	}
	m.p = p

	if !found {
		if err := m.saveLocked(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Snapshot returns a deep copy of the current profile.
func (m *Manager) Snapshot() Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.p.clone()
}

// Lookup returns the mapped intent for the lower-cased message.
func (m *Manager) Lookup(message string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.p.IntentMapping.Get(normalize(message))
}

// Patterns returns the intent mapping in insertion order.
func (m *Manager) Patterns() []Mapping {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.p.IntentMapping.Entries()
}

// RecentSuccessful returns up to n of the most recent successful
// interactions, oldest first.
func (m *Manager) RecentSuccessful(n int) []LearningEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log := m.p.Learning.SuccessfulRequests
	if n < len(log) {
		log = log[len(log)-n:]
	}
	return append([]LearningEntry(nil), log...)
}

// PreferredApp returns the application configured for a task category, or
// "default" for an unknown category.
func (m *Manager) PreferredApp(task string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f := appField(&m.p.AppPreferences, task); f != nil {
		return *f
	}
	return "default"
}

// SetAppPreference changes the application used for a task category.
func (m *Manager) SetAppPreference(task, app string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := appField(&m.p.AppPreferences, task)
	if f == nil {
		return fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}
	*f = app
	return m.saveLocked()
}

// SetStyle changes the communication style label.
func (m *Manager) SetStyle(s Style) error {
	if !s.Valid() {
		return fmt.Errorf("invalid communication style %q", s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p.Communication.Style = s
	return m.saveLocked()
}

// Insights summarizes what has been learned so far.
type Insights struct {
	Style       Style         `json:"style"`
	CommonWords []PhraseCount `json:"commonWords"`
	SuccessRate float64       `json:"successRate"`
	Successful  int           `json:"successful"`
	Failed      int           `json:"failed"`
	Corrections int           `json:"corrections"`
	Patterns    int           `json:"patterns"`
}

// Insights returns the top 10 phrases, the success rate as a percentage
// (0 before any interaction) and the log sizes.
func (m *Manager) Insights() Insights {
	m.mu.RLock()
	defer m.mu.RUnlock()

	words := m.p.Communication.CommonPhrases
	if len(words) > 10 {
		words = words[:10]
	}
	in := Insights{
		Style:       m.p.Communication.Style,
		CommonWords: append([]PhraseCount(nil), words...),
		Successful:  len(m.p.Learning.SuccessfulRequests),
		Failed:      len(m.p.Learning.FailedRequests),
		Corrections: len(m.p.Learning.Corrections),
		Patterns:    m.p.IntentMapping.Len(),
	}
	if total := in.Successful + in.Failed; total > 0 {
		in.SuccessRate = float64(in.Successful) / float64(total) * 100
	}
	return in
}

// Save flushes the profile to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := storage.WriteJSON(m.path, m.p); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

func (m *Manager) newEntry(message, intent string, success bool, feedback string) LearningEntry {
	return LearningEntry{
		ID:        uuid.NewString(),
		Timestamp: m.clock.Now().UTC(),
		Message:   normalize(message),
		Intent:    intent,
		Success:   success,
		Feedback:  feedback,
	}
}

func appField(a *AppPreferences, task string) *string {
	switch task {
	case TaskTextEditing:
		return &a.TextEditor
	case TaskWordProcessing:
		return &a.WordProcessor
	case TaskWebBrowsing:
		return &a.Browser
	case TaskFileManagement:
		return &a.FileManager
	}
	return nil
}

func normalize(message string) string {
	return strings.ToLower(message)
}
