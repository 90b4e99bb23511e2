package memory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var topicVocabulary = []string{
	"coding", "programming", "anime", "music", "games", "work", "study", "help", "question",
}

// ExtractTopic returns the first vocabulary topic found in message, or "general".
func ExtractTopic(message string) string {
	lower := strings.ToLower(message)
	for _, t := range topicVocabulary {
		if strings.Contains(lower, t) {
			return t
		}
	}
	return "general"
}

// BuildContext renders preferences and habits as a prompt fragment.
func (m *Manager) BuildContext() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return buildContext(m.doc)
}

func buildContext(d Document) string {
	parts := []string{fmt.Sprintf("User prefers: %s responses", d.Preferences.ResponseStyle)}

	if topics := d.Behavior.CommonTopics; len(topics) > 0 {
		if len(topics) > 3 {
			topics = topics[:3]
		}
		names := make([]string, len(topics))
		for i, t := range topics {
			names[i] = t.Name
		}
		parts = append(parts, "User often discusses: "+strings.Join(names, ", "))
	}

	if hours := topHours(d.Behavior.ActiveHours, 3); len(hours) > 0 {
		parts = append(parts, "User is most active during hours: "+strings.Join(hours, ", "))
	}
	return strings.Join(parts, ". ") + "."
}

// topHours returns the n busiest hours, ties broken by the earlier hour.
func topHours(active map[int]int, n int) []string {
	hours := make([]int, 0, len(active))
	for h := range active {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if active[hours[i]] != active[hours[j]] {
			return active[hours[i]] > active[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > n {
		hours = hours[:n]
	}
	out := make([]string, len(hours))
	for i, h := range hours {
		out[i] = strconv.Itoa(h)
	}
	return out
}
