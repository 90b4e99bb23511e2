package memory

import "time"

// Speed modes accepted in Preferences.SpeedMode.
const (
	SpeedFast     = "fast"
	SpeedBalanced = "balanced"
	SpeedQuality  = "quality"
)

// Document is the persisted memory.json document.
type Document struct {
	ChatHistory []Turn      `json:"chatHistory"`
	Preferences Preferences `json:"preferences"`
	Behavior    Behavior    `json:"behavior"`
}

// Preferences are the user-editable settings.
type Preferences struct {
	PreferredModel string `json:"preferredModel"`
	Theme          string `json:"theme"`
	ResponseStyle  string `json:"responseStyle"`
	SpeedMode      string `json:"speedMode"`
	DevMode        bool   `json:"devMode"`
	CodeExecution  bool   `json:"codeExecution"`
	FileEditing    bool   `json:"fileEditing"`
}

// CanExecute reports whether dev commands may run.
func (p Preferences) CanExecute() bool { return p.DevMode && p.CodeExecution }

// CanEditFiles reports whether files may be created or rewritten.
func (p Preferences) CanEditFiles() bool { return p.DevMode && p.FileEditing }

// Behavior holds chat usage statistics.
type Behavior struct {
	TotalMessages       int          `json:"totalMessages"`
	AverageResponseTime float64      `json:"averageResponseTime"` // milliseconds
	ResponseSamples     int          `json:"responseSamples"`
	CommonTopics        []TopicCount `json:"commonTopics"`
	ActiveHours         map[int]int  `json:"activeHours"`
}

// TopicCount is one row of the topic frequency table.
type TopicCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Turn is one chat message kept in the rolling history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event carries the optional details of a tracked behavior.
type Event struct {
	Topic        string
	Model        string
	ResponseTime time.Duration
}

// Default returns the first-run memory document.
func Default() Document {
	return Document{
		ChatHistory: []Turn{},
		Preferences: Preferences{
			PreferredModel: "llama3",
			Theme:          "anime",
			ResponseStyle:  "friendly",
			SpeedMode:      SpeedBalanced,
		},
		Behavior: Behavior{
			CommonTopics: []TopicCount{},
			ActiveHours:  map[int]int{},
		},
	}
}

func (d Document) clone() Document {
	cp := d
	cp.ChatHistory = append([]Turn(nil), d.ChatHistory...)
	cp.Behavior = d.Behavior.clone()
	return cp
}

func (b Behavior) clone() Behavior {
	cp := b
	cp.CommonTopics = append([]TopicCount(nil), b.CommonTopics...)
	cp.ActiveHours = make(map[int]int, len(b.ActiveHours))
	for h, n := range b.ActiveHours {
		cp.ActiveHours[h] = n
	}
	return cp
}
