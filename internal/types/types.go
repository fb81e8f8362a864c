package types

import "time"

// StoryState is a story's position in its lifecycle.
type StoryState string

const (
	StateSeed       StoryState = "seed"       // just created, not yet live
	StateActive     StoryState = "active"     // accepting comments and evidence
	StateDormant    StoryState = "dormant"    // no recent activity
	StateConcluding StoryState = "concluding" // terminal narration pending
	StateArchived   StoryState = "archived"   // terminal, immutable
)

// IsTerminal reports whether s is a terminal state.
func (s StoryState) IsTerminal() bool {
	return s == StateArchived
}

// Category is the closed set of urban legend categories.
type Category string

const (
	CategorySubwayGhost        Category = "subway_ghost"
	CategoryAbandonedBuilding  Category = "abandoned_building"
	CategoryCursedObject       Category = "cursed_object"
	CategoryMissingPerson      Category = "missing_person"
	CategoryTimeAnomaly        Category = "time_anomaly"
	CategoryShadowFigure       Category = "shadow_figure"
	CategoryHauntedElectronics Category = "haunted_electronics"
)

// Categories returns all valid categories in a stable order.
func Categories() []Category {
	return []Category{
		CategorySubwayGhost,
		CategoryAbandonedBuilding,
		CategoryCursedObject,
		CategoryMissingPerson,
		CategoryTimeAnomaly,
		CategoryShadowFigure,
		CategoryHauntedElectronics,
	}
}

// ValidCategory reports whether c is a member of the closed category set.
func ValidCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// StateChange is one entry in a story's append-only state history.
type StateChange struct {
	State   StoryState `json:"state"`
	Trigger string     `json:"trigger"`
	At      time.Time  `json:"at"`
}

// Story is a narrative thread owned by the engine.
// State is mutated only through lifecycle transitions.
type Story struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	Category     Category      `json:"category"`
	Location     string        `json:"location"`
	Persona      string        `json:"persona"`
	State        StoryState    `json:"state"`
	StateHistory []StateChange `json:"state_history,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Comment belongs to exactly one story and is immutable once created.
type Comment struct {
	ID        int64     `json:"id"`
	StoryID   string    `json:"story_id"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Author    string    `json:"author"`
	IsAI      bool      `json:"is_ai"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// EvidenceKind distinguishes generated evidence media.
type EvidenceKind string

const (
	EvidenceImage EvidenceKind = "image"
	EvidenceAudio EvidenceKind = "audio"
)

// Evidence is a generated artifact attached to a story. The synthesis
// parameters are retained so any artifact can be reproduced.
type Evidence struct {
	ID            int64        `json:"id"`
	StoryID       string       `json:"story_id"`
	Kind          EvidenceKind `json:"kind"`
	Path          string       `json:"path"`
	SynthesisType string       `json:"synthesis_type"`
	Intensity     float64      `json:"intensity"`
	Seed          int64        `json:"seed"`
	Threshold     int          `json:"trigger_threshold"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Candidate is a generated narrative that has not yet been admitted.
type Candidate struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category Category `json:"category"`
	Location string   `json:"location"`
	Persona  string   `json:"persona"`
}

// PromptSpec is a content-grounded image prompt assembled from a story's
// text rather than a generic template.
type PromptSpec struct {
	Template   string   `json:"template"`
	Subject    string   `json:"subject"`
	Quotes     []string `json:"quotes,omitempty"`
	TimeTokens []string `json:"time_tokens,omitempty"`
	Intensity  float64  `json:"intensity"`
}

// Notification tells a user something happened on a story they commented on.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	StoryID   string    `json:"story_id"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
