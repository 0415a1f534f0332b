package domain

import (
	"fmt"
	"time"
)

// Severity describes how aggressive a suggested rewrite is.
type Severity string

const (
	SeverityLight  Severity = "light"
	SeverityMedium Severity = "medium"
	SeverityBold   Severity = "bold"
)

var severityCycle = []Severity{SeverityLight, SeverityMedium, SeverityBold}

// DefaultSeverity returns the fallback severity for the option at index i.
func DefaultSeverity(i int) Severity {
	return severityCycle[i%len(severityCycle)]
}

// DefaultLabel returns the fallback label for the option at index i (A, B, ...).
func DefaultLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("%c%d", rune('A'+i%26), i/26)
}

// ParseSeverity returns the severity named by s, or false if s is not one.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(s)
	if isValidSeverity(sev) {
		return sev, true
	}
	return "", false
}

func isValidSeverity(s Severity) bool {
	switch s {
	case SeverityLight, SeverityMedium, SeverityBold:
		return true
	}
	return false
}

// EditSession is a single revision request against a target range of
// BaseVersionID's content. The range is half-open.
type EditSession struct {
	ID            string
	ManuscriptID  string
	BaseVersionID string
	Instruction   string
	TargetStart   int
	TargetEnd     int
	CreatedAt     time.Time
}

// EditOption is one candidate rewrite within a session. Operations are in
// document-global coordinates.
type EditOption struct {
	ID         string
	SessionID  string
	Label      string
	Severity   Severity
	BeforeText string
	AfterText  string
	Operations []DiffOperation
	Position   int
}

// LocalOperations returns Operations rebased onto BeforeText.
func (o *EditOption) LocalOperations(targetStart int) []DiffOperation {
	return ShiftOperations(o.Operations, -targetStart)
}

// AppliedEdit records that a session's option produced a new version.
type AppliedEdit struct {
	ID             string
	SessionID      string
	ChosenOptionID string
	FromVersionID  string
	ToVersionID    string
	AppliedAt      time.Time
}

// ValidateTargetRange checks 0 <= start < end <= length.
func ValidateTargetRange(start, end, length int) error {
	if start < 0 || end <= start || end > length {
		return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidTargetRange.Message,
			fmt.Errorf("range [%d, %d) outside content of length %d", start, end, length))
	}
	return nil
}

// ValidateEditSession validates an EditSession instance
func ValidateEditSession(s *EditSession) error {
	if s == nil {
		return fmt.Errorf("edit session cannot be nil")
	}
	if s.ID == "" {
		return fmt.Errorf("edit session ID: %w", ErrMissingRequiredField)
	}
	if s.ManuscriptID == "" || s.BaseVersionID == "" {
		return fmt.Errorf("edit session ManuscriptID and BaseVersionID: %w", ErrMissingRequiredField)
	}
	if s.TargetStart < 0 || s.TargetEnd <= s.TargetStart {
		return fmt.Errorf("edit session target range [%d, %d) is invalid", s.TargetStart, s.TargetEnd)
	}
	return nil
}

// ValidateEditOption validates an EditOption instance
func ValidateEditOption(o *EditOption) error {
	if o == nil {
		return fmt.Errorf("edit option cannot be nil")
	}
	if o.ID == "" || o.SessionID == "" {
		return fmt.Errorf("edit option ID and SessionID: %w", ErrMissingRequiredField)
	}
	if !isValidSeverity(o.Severity) {
		return fmt.Errorf("edit option Severity is invalid: %s", o.Severity)
	}
	for i, op := range o.Operations {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("edit option operation %d: %w", i, err)
		}
	}
	return nil
}
