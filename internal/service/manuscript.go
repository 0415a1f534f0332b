package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/pagination"
	"github.com/cloo-solutions/inkwell/internal/telemetry"
)

// ManuscriptService handles reads and housekeeping around manuscripts:
// listing, version history, chunks, style preferences and reindexing.
type ManuscriptService struct {
	manuscripts ManuscriptRepositoryInterface
	versions    VersionRepositoryInterface
	chunks      ChunkRepositoryInterface
	indexJobs   IndexJobRepositoryInterface
	stylePrefs  StylePrefRepositoryInterface
	snapshots   SnapshotStore
	uuidGen     UUIDGenerator
}

// ManuscriptDeps groups the collaborators of ManuscriptService.
type ManuscriptDeps struct {
	Manuscripts ManuscriptRepositoryInterface
	Versions    VersionRepositoryInterface
	Chunks      ChunkRepositoryInterface
	IndexJobs   IndexJobRepositoryInterface
	StylePrefs  StylePrefRepositoryInterface
	Snapshots   SnapshotStore
	UUIDGen     UUIDGenerator
}

// NewManuscriptService creates a new ManuscriptService instance
func NewManuscriptService(deps ManuscriptDeps) *ManuscriptService {
	if deps.UUIDGen == nil {
		deps.UUIDGen = &DefaultUUIDGenerator{}
	}
	return &ManuscriptService{
		manuscripts: deps.Manuscripts,
		versions:    deps.Versions,
		chunks:      deps.Chunks,
		indexJobs:   deps.IndexJobs,
		stylePrefs:  deps.StylePrefs,
		snapshots:   deps.Snapshots,
		uuidGen:     deps.UUIDGen,
	}
}

// Get returns a manuscript and its current version.
func (s *ManuscriptService) Get(ctx context.Context, id string) (*domain.Manuscript, *domain.Version, error) {
	ctx, span := telemetry.StartSpan(ctx, "ManuscriptService.Get", telemetry.SpanAttributes{
		ManuscriptID: id,
		Operation:    "get",
	})
	defer span.End()

	m, err := s.manuscripts.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	v, err := s.versions.GetByID(ctx, m.CurrentVersionID)
	if err != nil {
		return nil, nil, err
	}
	return m, v, nil
}

type ListManuscriptsInput struct {
	Cursor string
	Limit  int
}

type ListManuscriptsOutput struct {
	Items   []*domain.Manuscript
	Cursor  string
	HasMore bool
}

// List returns manuscripts, most recently updated first.
func (s *ManuscriptService) List(ctx context.Context, input ListManuscriptsInput) (*ListManuscriptsOutput, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	page, err := s.manuscripts.List(ctx, cursor, pagination.ClampLimit(input.Limit))
	if err != nil {
		return nil, err
	}
	return &ListManuscriptsOutput{Items: page.Items, Cursor: page.NextCursor, HasMore: page.HasMore}, nil
}

// Delete removes a manuscript and everything it owns.
func (s *ManuscriptService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "ManuscriptService.Delete", telemetry.SpanAttributes{
		ManuscriptID: id,
		Operation:    "delete",
	})
	defer span.End()

	return s.manuscripts.Delete(ctx, id)
}

// ListVersions returns every version of a manuscript in creation order.
func (s *ManuscriptService) ListVersions(ctx context.Context, manuscriptID string) ([]*domain.Version, error) {
	if _, err := s.manuscripts.GetByID(ctx, manuscriptID); err != nil {
		return nil, err
	}
	return s.versions.ListByManuscript(ctx, manuscriptID)
}

// GetVersion returns a version after checking it belongs to the manuscript.
func (s *ManuscriptService) GetVersion(ctx context.Context, manuscriptID, versionID string) (*domain.Version, error) {
	v, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.ManuscriptID != manuscriptID {
		return nil, domain.ErrVersionNotFound
	}
	return v, nil
}

// ListChunks returns the stored chunks of a version.
func (s *ManuscriptService) ListChunks(ctx context.Context, manuscriptID, versionID string) ([]domain.Chunk, error) {
	if _, err := s.GetVersion(ctx, manuscriptID, versionID); err != nil {
		return nil, err
	}
	return s.chunks.ListByVersion(ctx, versionID)
}

// Reindex queues a version for chunking and embedding.
func (s *ManuscriptService) Reindex(ctx context.Context, manuscriptID, versionID string) (*domain.IndexJob, error) {
	if _, err := s.GetVersion(ctx, manuscriptID, versionID); err != nil {
		return nil, err
	}
	job := domain.NewIndexJob(s.uuidGen.NewString(), versionID, time.Now().UTC())
	if err := s.indexJobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to queue index job: %w", err)
	}
	return job, nil
}

// VersionDownloadURL returns a presigned URL for the version's snapshot.
func (s *ManuscriptService) VersionDownloadURL(ctx context.Context, manuscriptID, versionID string) (string, error) {
	if s.snapshots == nil {
		return "", domain.ErrStorageNotConfigured
	}
	v, err := s.GetVersion(ctx, manuscriptID, versionID)
	if err != nil {
		return "", err
	}
	return s.snapshots.VersionURL(ctx, v)
}

// GetStylePrefs returns the stored preferences as a map.
func (s *ManuscriptService) GetStylePrefs(ctx context.Context, manuscriptID string) (map[string]string, error) {
	if _, err := s.manuscripts.GetByID(ctx, manuscriptID); err != nil {
		return nil, err
	}
	prefs, err := s.stylePrefs.ListByManuscript(ctx, manuscriptID)
	if err != nil {
		return nil, err
	}
	return domain.MergeStylePrefs(prefs, nil), nil
}

// SetStylePrefs replaces the stored preferences of a manuscript.
func (s *ManuscriptService) SetStylePrefs(ctx context.Context, manuscriptID string, prefs map[string]string) error {
	if _, err := s.manuscripts.GetByID(ctx, manuscriptID); err != nil {
		return err
	}
	clean := make(map[string]string, len(prefs))
	for k, v := range prefs {
		k = strings.TrimSpace(k)
		if k == "" {
			return domain.NewValidationError("style pref keys must not be empty")
		}
		clean[k] = v
	}
	return s.stylePrefs.Replace(ctx, manuscriptID, clean)
}
