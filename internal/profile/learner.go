package profile

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/agenttwo/internal/storage"
)

const maxPhrases = 50

// Record logs a classified interaction. On success the lower-cased message is
// learned as an exact pattern unless a pattern for it already exists, so the
// first learned intent wins. The phrase table is updated either way.
func (m *Manager) Record(message, intent string, success bool, feedback string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.newEntry(message, intent, success, feedback)
	if success {
		m.p.Learning.SuccessfulRequests = append(m.p.Learning.SuccessfulRequests, entry)
		if entry.Message != "" && m.p.IntentMapping.Add(entry.Message, intent) {
			slog.Debug("learned intent pattern", "pattern", entry.Message, "intent", intent)
		}
	} else {
		m.p.Learning.FailedRequests = append(m.p.Learning.FailedRequests, entry)
	}

	m.p.Communication.CommonPhrases = countPhrases(m.p.Communication.CommonPhrases, message)
	m.enforceRetention()
	return m.saveLocked()
}

// AddCorrection maps the lower-cased message to the corrected intent,
// replacing whatever was learned before, and logs the correction.
func (m *Manager) AddCorrection(original, correctedIntent, feedback string) error {
	if correctedIntent == "" {
		return fmt.Errorf("corrected intent is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.newEntry(original, correctedIntent, true, feedback)
	m.p.Learning.Corrections = append(m.p.Learning.Corrections, entry)
	m.p.IntentMapping.Set(entry.Message, correctedIntent)

	m.enforceRetention()
	return m.saveLocked()
}

// countPhrases increments the count of every whitespace token longer than two
// characters, then keeps the table sorted by count and capped.
func countPhrases(table []PhraseCount, message string) []PhraseCount {
	for _, word := range strings.Fields(strings.ToLower(message)) {
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		found := false
		for i := range table {
			if table[i].Phrase == word {
				table[i].Count++
				found = true
				break
			}
		}
		if !found {
			table = append(table, PhraseCount{Phrase: word, Count: 1})
		}
	}
	sort.SliceStable(table, func(i, j int) bool { return table[i].Count > table[j].Count })
	if len(table) > maxPhrases {
		table = table[:maxPhrases]
	}
	return table
}

// enforceRetention trims each learning log to maxLog entries. Evicted entries
// go to the archive when one is configured; if archiving fails the log is
// left untrimmed so nothing is lost, and trimming is retried on the next
// mutation.
func (m *Manager) enforceRetention() {
	logs := []struct {
		name    string
		entries *[]LearningEntry
	}{
		{storage.LogSuccessful, &m.p.Learning.SuccessfulRequests},
		{storage.LogFailed, &m.p.Learning.FailedRequests},
		{storage.LogCorrections, &m.p.Learning.Corrections},
	}

	for _, l := range logs {
		over := len(*l.entries) - m.maxLog
		if over <= 0 {
			continue
		}
		evicted := (*l.entries)[:over]

		if m.archive != nil {
			if err := m.archive.ArchiveLearningEntries(l.name, toArchived(l.name, evicted)); err != nil {
				slog.Warn("archiving learning entries failed, keeping them in profile", "log", l.name, "count", over, "error", err)
				continue
			}
		} else {
			slog.Debug("dropping learning entries without archive", "log", l.name, "count", over)
		}
		*l.entries = append([]LearningEntry(nil), (*l.entries)[over:]...)
	}
}

func toArchived(log string, entries []LearningEntry) []storage.ArchivedEntry {
	out := make([]storage.ArchivedEntry, len(entries))
	for i, e := range entries {
		out[i] = storage.ArchivedEntry{
			ID:        e.ID,
			Log:       log,
			CreatedAt: e.Timestamp,
			Message:   e.Message,
			Intent:    e.Intent,
			Success:   e.Success,
			Feedback:  e.Feedback,
		}
	}
	return out
}
