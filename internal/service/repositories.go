package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/pagination"
)

// ManuscriptRepositoryInterface defines the repository interface for manuscript persistence
type ManuscriptRepositoryInterface interface {
	Create(ctx context.Context, m *domain.Manuscript) error
	GetByID(ctx context.Context, id string) (*domain.Manuscript, error)
	// GetForUpdate locks the manuscript row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (*domain.Manuscript, error)
	List(ctx context.Context, cursor *pagination.Cursor, limit int) (*ManuscriptPageResult, error)
	// SetCurrentVersion moves the pointer only if it still equals expected
	// ("" meaning unset). It returns domain.ErrCurrentVersionMoved otherwise.
	SetCurrentVersion(ctx context.Context, id, expected, next string) error
	Delete(ctx context.Context, id string) error
}

type ManuscriptPageResult struct {
	Items      []*domain.Manuscript
	NextCursor string
	HasMore    bool
}

// VersionRepositoryInterface defines the repository interface for version persistence
type VersionRepositoryInterface interface {
	Create(ctx context.Context, v *domain.Version) error
	GetByID(ctx context.Context, id string) (*domain.Version, error)
	ListByManuscript(ctx context.Context, manuscriptID string) ([]*domain.Version, error)
	CountByManuscript(ctx context.Context, manuscriptID string) (int, error)
}

// EditRepositoryInterface defines the repository interface for edit sessions, options and applied edits
type EditRepositoryInterface interface {
	CreateSession(ctx context.Context, s *domain.EditSession) error
	GetSession(ctx context.Context, id string) (*domain.EditSession, error)
	CreateOption(ctx context.Context, o *domain.EditOption) error
	GetOption(ctx context.Context, id string) (*domain.EditOption, error)
	ListOptionsBySession(ctx context.Context, sessionID string) ([]*domain.EditOption, error)
	CreateAppliedEdit(ctx context.Context, a *domain.AppliedEdit) error
	GetAppliedEditBySession(ctx context.Context, sessionID string) (*domain.AppliedEdit, error)
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence and search
type ChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, versionID string, chunks []domain.Chunk) error
	ListByVersion(ctx context.Context, versionID string) ([]domain.Chunk, error)
	NearestChunks(ctx context.Context, versionID string, embedding []float32, k int) ([]domain.ScoredChunk, error)
}

// IndexJobRepositoryInterface defines the repository interface for index job persistence
type IndexJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IndexJob) error
}

// StylePrefRepositoryInterface defines the repository interface for style preferences
type StylePrefRepositoryInterface interface {
	ListByManuscript(ctx context.Context, manuscriptID string) ([]domain.StylePref, error)
	// Replace swaps the full preference set of a manuscript.
	Replace(ctx context.Context, manuscriptID string, prefs map[string]string) error
}

// SnapshotStore keeps a copy of each version's content outside the database.
type SnapshotStore interface {
	PutVersion(ctx context.Context, v *domain.Version) error
	VersionURL(ctx context.Context, v *domain.Version) (string, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
