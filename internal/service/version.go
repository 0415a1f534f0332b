package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/logger"
	"github.com/cloo-solutions/inkwell/internal/metrics"
	"github.com/cloo-solutions/inkwell/internal/telemetry"
)

// VersionService owns the append-only version history of each manuscript
// and its current-version pointer. Transitions on the same manuscript are
// serialized in-process, by a row lock, and by a compare-and-swap on the
// pointer.
type VersionService struct {
	txRunner  TxRunner
	edits     EditRepositoryInterface
	diff      *DiffEngine
	snapshots SnapshotStore
	locks     *keyedMutex
	uuidGen   UUIDGenerator
	log       *logger.Logger
}

// NewVersionService creates a new VersionService instance. snapshots may be nil.
func NewVersionService(txRunner TxRunner, edits EditRepositoryInterface, snapshots SnapshotStore, log *logger.Logger) *VersionService {
	return NewVersionServiceWithUUIDGen(txRunner, edits, snapshots, log, &DefaultUUIDGenerator{})
}

// NewVersionServiceWithUUIDGen creates a new VersionService with custom UUID generator (for testing)
func NewVersionServiceWithUUIDGen(txRunner TxRunner, edits EditRepositoryInterface, snapshots SnapshotStore, log *logger.Logger, uuidGen UUIDGenerator) *VersionService {
	if log == nil {
		log = logger.NewNop()
	}
	return &VersionService{
		txRunner:  txRunner,
		edits:     edits,
		diff:      defaultDiffEngine,
		snapshots: snapshots,
		locks:     newKeyedMutex(),
		uuidGen:   uuidGen,
		log:       log,
	}
}

// CreateManuscriptInput represents the input for creating a manuscript
type CreateManuscriptInput struct {
	Title   string
	Author  string
	Content string
}

// TransitionResult describes a pointer move from one version to another.
type TransitionResult struct {
	ManuscriptID string
	FromVersion  *domain.Version
	ToVersion    *domain.Version
}

// ApplyInput identifies the option to apply. ManuscriptID is optional; when
// set it must match the session's manuscript.
type ApplyInput struct {
	ManuscriptID string
	SessionID    string
	OptionID     string
}

// CreateManuscript creates a manuscript with its initial version v0 and
// queues that version for indexing.
func (s *VersionService) CreateManuscript(ctx context.Context, input CreateManuscriptInput) (m *domain.Manuscript, v *domain.Version, err error) {
	ctx, span := telemetry.StartSpan(ctx, "VersionService.CreateManuscript", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()
	defer func() { recordTransition("create", err) }()

	if strings.TrimSpace(input.Title) == "" {
		return nil, nil, domain.NewValidationError("title is required")
	}

	now := time.Now().UTC()
	m = domain.NewManuscript(s.uuidGen.NewString(), strings.TrimSpace(input.Title), input.Author, now)
	v = domain.NewVersion(s.uuidGen.NewString(), m.ID, domain.VersionTag(0), input.Content, now)
	job := domain.NewIndexJob(s.uuidGen.NewString(), v.ID, now)
	for _, verr := range []error{domain.ValidateManuscript(m), domain.ValidateVersion(v), domain.ValidateIndexJob(job)} {
		if verr != nil {
			return nil, nil, verr
		}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Manuscripts().Create(ctx, m); err != nil {
			return fmt.Errorf("failed to create manuscript: %w", err)
		}
		if err := repos.Versions().Create(ctx, v); err != nil {
			return fmt.Errorf("failed to create initial version: %w", err)
		}
		if err := repos.Manuscripts().SetCurrentVersion(ctx, m.ID, "", v.ID); err != nil {
			return err
		}
		if err := repos.IndexJobs().Create(ctx, job); err != nil {
			return fmt.Errorf("failed to queue index job: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, nil, err
	}
	m.CurrentVersionID = v.ID

	s.storeSnapshot(ctx, v)
	s.log.Info("manuscript created", "manuscript_id", m.ID, "version_id", v.ID, "chars", domain.RuneLen(v.Content))
	return m, v, nil
}

// ApplyChosenOption re-applies the chosen option's operations to the
// current version and moves the pointer to the resulting new version.
func (s *VersionService) ApplyChosenOption(ctx context.Context, input ApplyInput) (res *TransitionResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "VersionService.ApplyChosenOption", telemetry.SpanAttributes{
		ManuscriptID: input.ManuscriptID,
		SessionID:    input.SessionID,
		Operation:    "apply",
	})
	defer span.End()
	defer func() { recordTransition("apply", err) }()

	session, err := s.edits.GetSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if input.ManuscriptID != "" && input.ManuscriptID != session.ManuscriptID {
		return nil, domain.ErrEditSessionNotFound
	}

	unlock := s.locks.Lock(session.ManuscriptID)
	defer unlock()

	var from, to *domain.Version
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		m, err := repos.Manuscripts().GetForUpdate(ctx, session.ManuscriptID)
		if err != nil {
			return err
		}

		option, err := repos.Edits().GetOption(ctx, input.OptionID)
		if err != nil {
			return err
		}
		if option.SessionID != session.ID {
			return domain.ErrEditOptionNotFound
		}

		applied, err := repos.Edits().GetAppliedEditBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		if applied != nil {
			return domain.ErrSessionAlreadyApplied
		}
		if session.BaseVersionID != m.CurrentVersionID {
			return domain.ErrStaleSession
		}

		from, err = repos.Versions().GetByID(ctx, m.CurrentVersionID)
		if err != nil {
			return err
		}
		content, err := s.diff.Apply(from.Content, option.Operations)
		if err != nil {
			return err
		}

		count, err := repos.Versions().CountByManuscript(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("failed to count versions: %w", err)
		}

		now := time.Now().UTC()
		to = domain.NewVersion(s.uuidGen.NewString(), m.ID, domain.VersionTag(count), content, now)
		if err := domain.ValidateVersion(to); err != nil {
			return err
		}
		if err := repos.Versions().Create(ctx, to); err != nil {
			return fmt.Errorf("failed to create version: %w", err)
		}
		if err := repos.Manuscripts().SetCurrentVersion(ctx, m.ID, from.ID, to.ID); err != nil {
			return err
		}
		if err := repos.Edits().CreateAppliedEdit(ctx, &domain.AppliedEdit{
			ID:             s.uuidGen.NewString(),
			SessionID:      session.ID,
			ChosenOptionID: option.ID,
			FromVersionID:  from.ID,
			ToVersionID:    to.ID,
			AppliedAt:      now,
		}); err != nil {
			return fmt.Errorf("failed to record applied edit: %w", err)
		}
		if err := repos.IndexJobs().Create(ctx, domain.NewIndexJob(s.uuidGen.NewString(), to.ID, now)); err != nil {
			return fmt.Errorf("failed to queue index job: %w", err)
		}
		return nil
	})
	if err != nil {
		if domain.IsCode(err, domain.ErrCodeConflict) {
			telemetry.AddBreadcrumb(ctx, "versions", err.Error())
		} else {
			span.SetError(err)
		}
		return nil, err
	}

	s.storeSnapshot(ctx, to)
	s.log.Info("edit applied",
		"manuscript_id", session.ManuscriptID,
		"session_id", session.ID,
		"option_id", input.OptionID,
		"from_version", from.Tag,
		"to_version", to.Tag,
	)
	return &TransitionResult{ManuscriptID: session.ManuscriptID, FromVersion: from, ToVersion: to}, nil
}

// Revert moves the current pointer to an existing version of the same
// manuscript. No version is created or deleted.
func (s *VersionService) Revert(ctx context.Context, manuscriptID, targetVersionID string) (res *TransitionResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "VersionService.Revert", telemetry.SpanAttributes{
		ManuscriptID: manuscriptID,
		VersionID:    targetVersionID,
		Operation:    "revert",
	})
	defer span.End()
	defer func() { recordTransition("revert", err) }()

	unlock := s.locks.Lock(manuscriptID)
	defer unlock()

	var from, to *domain.Version
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		m, err := repos.Manuscripts().GetForUpdate(ctx, manuscriptID)
		if err != nil {
			return err
		}

		to, err = repos.Versions().GetByID(ctx, targetVersionID)
		if err != nil {
			return err
		}
		if to.ManuscriptID != m.ID {
			return domain.ErrVersionNotFound
		}

		from, err = repos.Versions().GetByID(ctx, m.CurrentVersionID)
		if err != nil {
			return err
		}
		if from.ID == to.ID {
			return nil
		}
		return repos.Manuscripts().SetCurrentVersion(ctx, m.ID, from.ID, to.ID)
	})
	if err != nil {
		if !domain.IsCode(err, domain.ErrCodeConflict) && !domain.IsCode(err, domain.ErrCodeNotFound) {
			span.SetError(err)
		}
		return nil, err
	}

	s.log.Info("manuscript reverted", "manuscript_id", manuscriptID, "from_version", from.Tag, "to_version", to.Tag)
	return &TransitionResult{ManuscriptID: manuscriptID, FromVersion: from, ToVersion: to}, nil
}

// storeSnapshot writes the version to the snapshot store. Failures are
// logged; the database copy is authoritative.
func (s *VersionService) storeSnapshot(ctx context.Context, v *domain.Version) {
	if s.snapshots == nil || v == nil {
		return
	}
	if err := s.snapshots.PutVersion(ctx, v); err != nil {
		s.log.Warn("failed to store version snapshot", "version_id", v.ID, "error", err)
		telemetry.CaptureError(ctx, err)
	}
}

func recordTransition(transition string, err error) {
	status := "success"
	switch {
	case err == nil:
	case domain.IsCode(err, domain.ErrCodeConflict):
		status = "conflict"
	default:
		status = "error"
	}
	metrics.VersionTransitionsTotal.WithLabelValues(transition, status).Inc()
}
