package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewVersion_NormalizesLineEndings(t *testing.T) {
	v := NewVersion("v1", "m1", "v0", "a\r\nb\rc\n", time.Now())

	assert.Equal(t, "a\nb\nc\n", v.Content)
	assert.Equal(t, "v0", v.Tag)
}

func TestVersionTag(t *testing.T) {
	assert.Equal(t, "v0", VersionTag(0))
	assert.Equal(t, "v12", VersionTag(12))
}

func TestRuneLen(t *testing.T) {
	assert.Equal(t, 5, RuneLen("héllo"))
	assert.Equal(t, 0, RuneLen(""))
}

func TestValidateManuscript(t *testing.T) {
	assert.NoError(t, ValidateManuscript(NewManuscript("m1", "Title", "", time.Now())))
	assert.Error(t, ValidateManuscript(NewManuscript("m1", "  ", "", time.Now())))
	assert.Error(t, ValidateManuscript(NewManuscript("", "Title", "", time.Now())))
	assert.Error(t, ValidateManuscript(nil))
}

func TestValidateIndexJob(t *testing.T) {
	job := NewIndexJob("j1", "v1", time.Now())
	assert.Equal(t, IndexJobStatusPending, job.Status)
	assert.NoError(t, ValidateIndexJob(job))

	job.Status = "stuck"
	assert.Error(t, ValidateIndexJob(job))

	assert.Error(t, ValidateIndexJob(NewIndexJob("j1", "", time.Now())))
}
