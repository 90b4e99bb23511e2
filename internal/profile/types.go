package profile

import "time"

// Style is the user's communication style label. It is informational only.
type Style string

const (
	StyleCasual    Style = "casual"
	StyleFormal    Style = "formal"
	StyleTechnical Style = "technical"
	StyleCreative  Style = "creative"
)

// Valid reports whether s is one of the known styles.
func (s Style) Valid() bool {
	switch s {
	case StyleCasual, StyleFormal, StyleTechnical, StyleCreative:
		return true
	}
	return false
}

// Task categories accepted by PreferredApp and SetAppPreference.
const (
	TaskTextEditing    = "text_editing"
	TaskWordProcessing = "word_processing"
	TaskWebBrowsing    = "web_browsing"
	TaskFileManagement = "file_management"
)

// Profile is the persisted userProfile.json document.
type Profile struct {
	Communication  Communication  `json:"communication"`
	IntentMapping  IntentMapping  `json:"intentMapping"`
	AppPreferences AppPreferences `json:"appPreferences"`
	Learning       LearningLog    `json:"learning"`
}

// Communication holds the style label and the phrase frequency table.
type Communication struct {
	Style         Style         `json:"style"`
	CommonPhrases []PhraseCount `json:"commonPhrases"`
}

// PhraseCount is one row of the phrase frequency table.
type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// AppPreferences maps each task category to an application identifier.
type AppPreferences struct {
	TextEditor    string `json:"textEditor"`
	WordProcessor string `json:"wordProcessor"`
	Browser       string `json:"browser"`
	FileManager   string `json:"fileManager"`
}

// LearningLog holds the three append-only interaction logs. Each is capped
// by the Manager's retention policy.
type LearningLog struct {
	SuccessfulRequests []LearningEntry `json:"successfulRequests"`
	FailedRequests     []LearningEntry `json:"failedRequests"`
	Corrections        []LearningEntry `json:"corrections"`
}

// LearningEntry records one classified interaction or correction.
type LearningEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Intent    string    `json:"intent"`
	Success   bool      `json:"success"`
	Feedback  string    `json:"feedback,omitempty"`
}

// Default returns the first-run profile with the built-in intent seeds.
func Default() Profile {
	return Profile{
		Communication: Communication{
			Style:         StyleCasual,
			CommonPhrases: []PhraseCount{},
		},
		IntentMapping: NewIntentMapping(
			Mapping{"make a text file in microsoft word", "open_word_document"},
			Mapping{"create a word doc", "open_word_document"},
			Mapping{"open word", "open_word_document"},
			Mapping{"create document", "create_word_document"},
			Mapping{"make document", "create_word_document"},
			Mapping{"new document", "create_word_document"},
			Mapping{"edit that file", "edit_last_file"},
			Mapping{"open that file", "open_last_file"},
			Mapping{"put a link in it", "add_link_to_file"},
			Mapping{"add chatgbt link", "add_chatgpt_link"},
		),
		AppPreferences: AppPreferences{
			TextEditor:    "notepad",
			WordProcessor: "microsoft_word",
			Browser:       "default",
			FileManager:   "explorer",
		},
		Learning: LearningLog{
			SuccessfulRequests: []LearningEntry{},
			FailedRequests:     []LearningEntry{},
			Corrections:        []LearningEntry{},
		},
	}
}

func (p Profile) clone() Profile {
	cp := p
	cp.Communication.CommonPhrases = append([]PhraseCount(nil), p.Communication.CommonPhrases...)
	cp.IntentMapping = p.IntentMapping.clone()
	cp.Learning.SuccessfulRequests = append([]LearningEntry(nil), p.Learning.SuccessfulRequests...)
	cp.Learning.FailedRequests = append([]LearningEntry(nil), p.Learning.FailedRequests...)
	cp.Learning.Corrections = append([]LearningEntry(nil), p.Learning.Corrections...)
	return cp
}
