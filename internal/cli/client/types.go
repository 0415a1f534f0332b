package client

import "github.com/cloo-solutions/inkwell/internal/domain"

// Response shapes returned by the inkwelld API.

type Version struct {
	ID           string `json:"id"`
	ManuscriptID string `json:"manuscript_id"`
	Tag          string `json:"tag"`
	Content      string `json:"content,omitempty"`
	Length       int    `json:"length"`
	CreatedAt    string `json:"created_at"`
}

type Manuscript struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Author           string   `json:"author,omitempty"`
	CurrentVersionID string   `json:"current_version_id"`
	CurrentVersion   *Version `json:"current_version,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

type ManuscriptList struct {
	Items   []Manuscript `json:"items"`
	Cursor  string       `json:"cursor,omitempty"`
	HasMore bool         `json:"has_more"`
}

type Chunk struct {
	ID         string `json:"id"`
	ChunkIndex int    `json:"chunk_index"`
	Chapter    *int   `json:"chapter,omitempty"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
	Text       string `json:"text"`
	Embedded   bool   `json:"embedded"`
}

type Transition struct {
	ManuscriptID string   `json:"manuscript_id"`
	FromVersion  *Version `json:"from_version"`
	ToVersion    *Version `json:"to_version"`
}

type EditOption struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	Severity   string          `json:"severity"`
	Before     string          `json:"before"`
	After      string          `json:"after"`
	Operations []domain.DiffOperation `json:"diff_operations"`
	Position   int             `json:"position"`
}

type AppliedEdit struct {
	OptionID      string `json:"option_id"`
	FromVersionID string `json:"from_version_id"`
	ToVersionID   string `json:"to_version_id"`
	AppliedAt     string `json:"applied_at"`
}

type EditSession struct {
	ID            string         `json:"id"`
	ManuscriptID  string         `json:"manuscript_id"`
	BaseVersionID string         `json:"base_version_id"`
	Instruction   string         `json:"instruction"`
	TargetRange   map[string]int `json:"target_range"`
	CreatedAt     string         `json:"created_at"`
	Options       []EditOption   `json:"options"`
	ContextUsed   *int           `json:"context_used,omitempty"`
	Applied       *AppliedEdit   `json:"applied,omitempty"`
}
