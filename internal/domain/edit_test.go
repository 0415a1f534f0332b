package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSeverity(t *testing.T) {
	assert.Equal(t, SeverityLight, DefaultSeverity(0))
	assert.Equal(t, SeverityMedium, DefaultSeverity(1))
	assert.Equal(t, SeverityBold, DefaultSeverity(2))
	assert.Equal(t, SeverityLight, DefaultSeverity(3))
}

func TestDefaultLabel(t *testing.T) {
	assert.Equal(t, "A", DefaultLabel(0))
	assert.Equal(t, "C", DefaultLabel(2))
	assert.Equal(t, "Z", DefaultLabel(25))
	assert.Equal(t, "A1", DefaultLabel(26))
}

func TestParseSeverity(t *testing.T) {
	sev, ok := ParseSeverity("bold")
	assert.True(t, ok)
	assert.Equal(t, SeverityBold, sev)

	_, ok = ParseSeverity("extreme")
	assert.False(t, ok)
}

func TestValidateTargetRange(t *testing.T) {
	assert.NoError(t, ValidateTargetRange(0, 1, 1))
	assert.NoError(t, ValidateTargetRange(4, 7, 12))

	for _, r := range [][2]int{{-1, 2}, {3, 3}, {5, 2}, {0, 13}} {
		err := ValidateTargetRange(r[0], r[1], 12)
		assert.True(t, IsCode(err, ErrCodeValidation), "range %v", r)
	}
}

func TestEditOption_LocalOperations(t *testing.T) {
	opt := &EditOption{Operations: []DiffOperation{Replace(14, 17, "dog")}}

	assert.Equal(t, []DiffOperation{Replace(4, 7, "dog")}, opt.LocalOperations(10))
}

func TestValidateEditOption(t *testing.T) {
	opt := &EditOption{ID: "o1", SessionID: "s1", Severity: SeverityLight, Operations: []DiffOperation{Insert(0, "x")}}
	assert.NoError(t, ValidateEditOption(opt))

	opt.Severity = "wild"
	assert.Error(t, ValidateEditOption(opt))

	opt.Severity = SeverityBold
	opt.Operations = []DiffOperation{Delete(3, 3)}
	assert.Error(t, ValidateEditOption(opt))
}

func TestValidateEditSession(t *testing.T) {
	session := &EditSession{ID: "s1", ManuscriptID: "m1", BaseVersionID: "v1", TargetStart: 4, TargetEnd: 7}
	assert.NoError(t, ValidateEditSession(session))

	session.BaseVersionID = ""
	assert.ErrorIs(t, ValidateEditSession(session), ErrMissingRequiredField)

	session.BaseVersionID = "v1"
	session.TargetEnd = 4
	err := ValidateEditSession(session)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingRequiredField)

	assert.Error(t, ValidateEditSession(nil))
}

func TestMergeStylePrefs(t *testing.T) {
	stored := []StylePref{
		{ManuscriptID: "m1", Key: "tone", Value: "wry"},
		{ManuscriptID: "m1", Key: "pov", Value: "first"},
	}

	merged := MergeStylePrefs(stored, map[string]string{"tone": "somber", "": "ignored"})

	assert.Equal(t, map[string]string{"tone": "somber", "pov": "first"}, merged)
}

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("apply: %w", ErrStaleSession)
	assert.True(t, errors.Is(wrapped, ErrStaleSession))
	assert.False(t, errors.Is(wrapped, ErrSessionAlreadyApplied))
	assert.True(t, IsCode(wrapped, ErrCodeConflict))

	withCause := NewDomainErrorWithCause(ErrCodeNotFound, ErrVersionNotFound.Message, errors.New("no rows"))
	assert.True(t, errors.Is(withCause, ErrVersionNotFound))
}

func TestProviderError(t *testing.T) {
	err := fmt.Errorf("generate: %w", NewProviderError("openai", true, errors.New("429")))

	assert.True(t, IsRetryable(err))
	assert.True(t, IsProviderError(err))
	assert.False(t, IsRetryable(NewProviderError("openai", false, errors.New("400"))))
	assert.True(t, IsProviderError(ErrNoUsableOptions))
	assert.False(t, IsProviderError(ErrVersionNotFound))
}
