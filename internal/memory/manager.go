// Package memory persists chat preferences, behavior statistics and a short
// rolling chat history in memory.json.
package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/agenttwo/internal/storage"
)

const (
	maxTopics           = 10
	DefaultHistoryLimit = 50
)

// ErrUnknownPreference is returned when an update names a setting that does not exist.
var ErrUnknownPreference = errors.New("unknown preference")

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Clock        Clock
	HistoryLimit int
}

// Manager owns the memory document. Mutations are flushed before returning.
type Manager struct {
	path         string
	clock        Clock
	historyLimit int

	mu  sync.RWMutex
	doc Document
}

// Load reads memory.json at path, creating it with defaults when absent.
// Keys missing from the file keep their default values.
func Load(path string, opts Options) (*Manager, error) {
	m := &Manager{path: path, clock: opts.Clock, historyLimit: opts.HistoryLimit}
	if m.clock == nil {
		m.clock = realClock{}
	}
	if m.historyLimit <= 0 {
		m.historyLimit = DefaultHistoryLimit
	}

	doc := Default()
	found, err := storage.ReadJSON(path, &doc)
	if err != nil {
		return nil, fmt.Errorf("loading memory: %w", err)
	}
	if doc.Behavior.ActiveHours == nil {
		doc.Behavior.ActiveHours = map[int]int{}
	}
	m.doc = doc

	if !found {
		slog.Info("no memory file, starting from defaults", "path", path)
		if err := m.saveLocked(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Snapshot returns a deep copy of the whole document.
func (m *Manager) Snapshot() Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.clone()
}

// Preferences returns the current settings.
func (m *Manager) Preferences() Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.Preferences
}

// Behavior returns a copy of the usage statistics.
func (m *Manager) Behavior() Behavior {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.Behavior.clone()
}

// UpdatePreferences merges a partial JSON object into the preferences. Keys
// absent from partial are left untouched; an unknown key rejects the whole
// update.
func (m *Manager) UpdatePreferences(partial []byte) (Preferences, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(partial, &keys); err != nil {
		return Preferences{}, fmt.Errorf("decoding preferences: %w", err)
	}
	for k := range keys {
		if _, ok := preferenceKinds[k]; !ok {
			return Preferences{}, fmt.Errorf("%w: %q", ErrUnknownPreference, k)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.doc.Preferences
	dec := json.NewDecoder(bytes.NewReader(partial))
	if err := dec.Decode(&next); err != nil {
		return Preferences{}, fmt.Errorf("decoding preferences: %w", err)
	}
	if err := validate(next); err != nil {
		return Preferences{}, err
	}

	m.doc.Preferences = next
	if err := m.saveLocked(); err != nil {
		return Preferences{}, err
	}
	return next, nil
}

// SetPreference sets a single preference from its string form, as typed on
// a command line.
func (m *Manager) SetPreference(key, value string) (Preferences, error) {
	v, err := ParsePreference(key, value)
	if err != nil {
		return Preferences{}, err
	}
	partial, err := json.Marshal(map[string]any{key: v})
	if err != nil {
		return Preferences{}, err
	}
	return m.UpdatePreferences(partial)
}

// ParsePreference converts the string form of a preference value into the
// type stored under key.
func ParsePreference(key, value string) (any, error) {
	kind, ok := preferenceKinds[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreference, key)
	}
	if kind == kindBool {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		return b, nil
	}
	return value, nil
}

// TrackBehavior counts one message: the total, the current hour bucket, the
// topic when ev.Topic is set and the response time mean when
// ev.ResponseTime is set.
func (m *Manager) TrackBehavior(action string, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := &m.doc.Behavior
	b.TotalMessages++
	b.ActiveHours[m.clock.Now().Hour()]++

	if topic := strings.ToLower(strings.TrimSpace(ev.Topic)); topic != "" {
		b.CommonTopics = countTopic(b.CommonTopics, topic)
	}
	if ev.ResponseTime > 0 {
		b.ResponseSamples++
		ms := float64(ev.ResponseTime) / float64(time.Millisecond)
		b.AverageResponseTime += (ms - b.AverageResponseTime) / float64(b.ResponseSamples)
	}

	slog.Debug("tracked behavior", "action", action, "topic", ev.Topic, "model", ev.Model)
	return m.saveLocked()
}

// AppendHistory adds a turn to the rolling history, dropping the oldest
// turns beyond the history limit.
func (m *Manager) AppendHistory(role, content, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.doc.ChatHistory = append(m.doc.ChatHistory, Turn{
		Role:      role,
		Content:   content,
		Model:     model,
		Timestamp: m.clock.Now().UTC(),
	})
	if over := len(m.doc.ChatHistory) - m.historyLimit; over > 0 {
		m.doc.ChatHistory = append([]Turn(nil), m.doc.ChatHistory[over:]...)
	}
	return m.saveLocked()
}

// History returns up to n of the most recent turns, oldest first.
func (m *Manager) History(n int) []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.doc.ChatHistory
	if n < len(h) {
		h = h[len(h)-n:]
	}
	return append([]Turn(nil), h...)
}

// Clear resets the whole document to defaults and saves it.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = Default()
	return m.saveLocked()
}

// Save flushes the document to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := storage.WriteJSON(m.path, m.doc); err != nil {
		return fmt.Errorf("saving memory: %w", err)
	}
	return nil
}

func countTopic(topics []TopicCount, name string) []TopicCount {
	found := false
	for i := range topics {
		if topics[i].Name == name {
			topics[i].Count++
			found = true
			break
		}
	}
	if !found {
		topics = append(topics, TopicCount{Name: name, Count: 1})
	}
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Count > topics[j].Count })
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}

type prefKind int

const (
	kindString prefKind = iota
	kindBool
)

var preferenceKinds = map[string]prefKind{
	"preferredModel": kindString,
	"theme":          kindString,
	"responseStyle":  kindString,
	"speedMode":      kindString,
	"devMode":        kindBool,
	"codeExecution":  kindBool,
	"fileEditing":    kindBool,
}

// PreferenceKeys returns the names of all settings, sorted.
func PreferenceKeys() []string {
	keys := make([]string, 0, len(preferenceKinds))
	for k := range preferenceKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validate(p Preferences) error {
	switch p.SpeedMode {
	case SpeedFast, SpeedBalanced, SpeedQuality:
	default:
		return fmt.Errorf("invalid speedMode %q: want fast, balanced or quality", p.SpeedMode)
	}
	if strings.TrimSpace(p.PreferredModel) == "" {
		return fmt.Errorf("preferredModel must not be empty")
	}
	return nil
}
