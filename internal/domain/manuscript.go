package domain

import (
	"fmt"
	"strings"
	"time"
)

// Manuscript is a document under revision. CurrentVersionID is empty only
// while the manuscript is being created; afterwards it always names one of
// the manuscript's own versions.
type Manuscript struct {
	ID               string
	Title            string
	Author           string
	CurrentVersionID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Version is an immutable snapshot of a manuscript's content.
type Version struct {
	ID           string
	ManuscriptID string
	Tag          string
	Content      string
	CreatedAt    time.Time
}

// NewManuscript creates a new Manuscript instance without a current version.
func NewManuscript(id, title, author string, createdAt time.Time) *Manuscript {
	return &Manuscript{
		ID:        id,
		Title:     title,
		Author:    author,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// NewVersion creates a new Version with line endings normalized.
func NewVersion(id, manuscriptID, tag, content string, createdAt time.Time) *Version {
	return &Version{
		ID:           id,
		ManuscriptID: manuscriptID,
		Tag:          tag,
		Content:      NormalizeLineEndings(content),
		CreatedAt:    createdAt,
	}
}

// VersionTag returns the tag for the n-th version of a manuscript (v0, v1, ...).
func VersionTag(n int) string {
	return fmt.Sprintf("v%d", n)
}

// NormalizeLineEndings converts CRLF and lone CR to LF.
func NormalizeLineEndings(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ValidateManuscript validates a Manuscript instance
func ValidateManuscript(m *Manuscript) error {
	if m == nil {
		return fmt.Errorf("manuscript cannot be nil")
	}
	if m.ID == "" {
		return fmt.Errorf("manuscript ID: %w", ErrMissingRequiredField)
	}
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("manuscript Title: %w", ErrMissingRequiredField)
	}
	return nil
}

// ValidateVersion validates a Version instance
func ValidateVersion(v *Version) error {
	if v == nil {
		return fmt.Errorf("version cannot be nil")
	}
	if v.ID == "" {
		return fmt.Errorf("version ID: %w", ErrMissingRequiredField)
	}
	if v.ManuscriptID == "" {
		return fmt.Errorf("version ManuscriptID: %w", ErrMissingRequiredField)
	}
	if v.Tag == "" {
		return fmt.Errorf("version Tag: %w", ErrMissingRequiredField)
	}
	return nil
}

// RuneLen returns the length of s in characters, the unit used by every
// offset in this package.
func RuneLen(s string) int {
	return len([]rune(s))
}
