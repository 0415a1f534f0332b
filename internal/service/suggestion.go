package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/logger"
	"github.com/cloo-solutions/inkwell/internal/metrics"
	"github.com/cloo-solutions/inkwell/internal/telemetry"
)

// GenerationRequest is a single prompt sent to the generator.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	NumOptions   int
}

// GeneratedOption is one raw candidate as returned by the generator.
// Fields may be empty.
type GeneratedOption struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Before   string `json:"before"`
	After    string `json:"after"`
}

// SuggestionGenerator produces candidate rewrites for a prompt.
type SuggestionGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) ([]GeneratedOption, error)
}

// NoOpGenerator is used when no generation provider is configured.
type NoOpGenerator struct{}

func (NoOpGenerator) Generate(ctx context.Context, req GenerationRequest) ([]GeneratedOption, error) {
	return nil, domain.NewProviderError("generator", false, errors.New("no generation provider configured"))
}

// SuggestionConfig holds defaults for suggestion requests.
type SuggestionConfig struct {
	DefaultK          int
	DefaultNumOptions int
	MaxNumOptions     int
	MaxK              int
	ContextChars      int
	Retry             RetryConfig
}

// DefaultSuggestionConfig provides sane defaults for suggestions.
func DefaultSuggestionConfig() SuggestionConfig {
	return SuggestionConfig{
		DefaultK:          6,
		DefaultNumOptions: 3,
		MaxNumOptions:     10,
		MaxK:              50,
		ContextChars:      500,
		Retry:             DefaultRetryConfig(),
	}
}

// SuggestionService turns a revision request into a persisted edit session.
type SuggestionService struct {
	manuscripts ManuscriptRepositoryInterface
	versions    VersionRepositoryInterface
	edits       EditRepositoryInterface
	stylePrefs  StylePrefRepositoryInterface
	retriever   ChunkRetriever
	generator   SuggestionGenerator
	txRunner    TxRunner
	diff        *DiffEngine
	cfg         SuggestionConfig
	uuidGen     UUIDGenerator
	log         *logger.Logger
}

// SuggestionDeps groups the collaborators of SuggestionService.
type SuggestionDeps struct {
	Manuscripts ManuscriptRepositoryInterface
	Versions    VersionRepositoryInterface
	Edits       EditRepositoryInterface
	StylePrefs  StylePrefRepositoryInterface
	Retriever   ChunkRetriever
	Generator   SuggestionGenerator
	TxRunner    TxRunner
	Diff        *DiffEngine
	UUIDGen     UUIDGenerator
	Logger      *logger.Logger
}

// NewSuggestionService creates a new SuggestionService instance
func NewSuggestionService(deps SuggestionDeps, cfg SuggestionConfig) *SuggestionService {
	if deps.Retriever == nil {
		deps.Retriever = NoOpRetriever{}
	}
	if deps.Generator == nil {
		deps.Generator = NoOpGenerator{}
	}
	if deps.Diff == nil {
		deps.Diff = defaultDiffEngine
	}
	if deps.UUIDGen == nil {
		deps.UUIDGen = &DefaultUUIDGenerator{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &SuggestionService{
		manuscripts: deps.Manuscripts,
		versions:    deps.Versions,
		edits:       deps.Edits,
		stylePrefs:  deps.StylePrefs,
		retriever:   deps.Retriever,
		generator:   deps.Generator,
		txRunner:    deps.TxRunner,
		diff:        deps.Diff,
		cfg:         cfg,
		uuidGen:     deps.UUIDGen,
		log:         deps.Logger,
	}
}

// SuggestInput is a revision request for [Start, End) of the current version.
type SuggestInput struct {
	ManuscriptID string
	Instruction  string
	Start        int
	End          int
	K            int
	NumOptions   int
	StylePrefs   map[string]string
}

// SuggestOutput is the persisted session and its options.
type SuggestOutput struct {
	Session     *domain.EditSession
	Options     []*domain.EditOption
	ContextUsed int
}

// SuggestedOption is a generated rewrite with its diff in document coordinates.
type SuggestedOption struct {
	Label      string
	Severity   domain.Severity
	Before     string
	After      string
	Operations []domain.DiffOperation
}

// Suggest generates, diffs and persists candidate rewrites. Nothing is
// written unless every surviving option has been diffed.
func (s *SuggestionService) Suggest(ctx context.Context, input SuggestInput) (out *SuggestOutput, err error) {
	ctx, span := telemetry.StartSpan(ctx, "SuggestionService.Suggest", telemetry.SpanAttributes{
		ManuscriptID: input.ManuscriptID,
		Operation:    "suggest",
	})
	defer span.End()
	defer func() {
		metrics.SuggestionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	}()

	k, numOptions, err := s.resolveLimits(input)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Instruction) == "" {
		return nil, domain.NewValidationError("instruction is required")
	}

	manuscript, err := s.manuscripts.GetByID(ctx, input.ManuscriptID)
	if err != nil {
		return nil, err
	}
	version, err := s.versions.GetByID(ctx, manuscript.CurrentVersionID)
	if err != nil {
		return nil, err
	}

	content := []rune(version.Content)
	if err := domain.ValidateTargetRange(input.Start, input.End, len(content)); err != nil {
		return nil, err
	}
	target := string(content[input.Start:input.End])
	if strings.TrimSpace(target) == "" {
		return nil, domain.ErrEmptyTarget
	}

	stored, err := s.stylePrefs.ListByManuscript(ctx, manuscript.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style prefs: %w", err)
	}
	prefs := domain.MergeStylePrefs(stored, input.StylePrefs)

	query := input.Instruction + " " + target
	retrieved, err := callWithRetry(ctx, s.cfg.Retry, "retrieve", func(ctx context.Context) ([]domain.ScoredChunk, error) {
		return s.retriever.Retrieve(ctx, version.ID, query, k)
	})
	if err != nil {
		span.SetError(err)
		return nil, asProviderError("retrieve", err)
	}
	texts := make([]string, 0, len(retrieved))
	for _, c := range retrieved {
		texts = append(texts, c.Text)
	}
	promptContext := buildContext(localWindow(content, input.Start, input.End, s.cfg.ContextChars), texts)

	req := GenerationRequest{
		SystemPrompt: buildSystemPrompt(numOptions),
		UserPrompt: buildUserPrompt(userPromptInput{
			Instruction: input.Instruction,
			TargetText:  target,
			Context:     promptContext,
			StylePrefs:  prefs,
			Start:       input.Start,
			End:         input.End,
		}),
		NumOptions: numOptions,
	}
	generated, err := callWithRetry(ctx, s.cfg.Retry, "generate", func(ctx context.Context) ([]GeneratedOption, error) {
		return s.generator.Generate(ctx, req)
	})
	if err != nil {
		span.SetError(err)
		return nil, asProviderError("generate", err)
	}

	suggested, err := s.BuildOptions(target, input.Start, generated, numOptions)
	if err != nil {
		return nil, err
	}
	if len(suggested) == 0 {
		return nil, domain.ErrNoUsableOptions
	}

	session := &domain.EditSession{
		ID:            s.uuidGen.NewString(),
		ManuscriptID:  manuscript.ID,
		BaseVersionID: version.ID,
		Instruction:   input.Instruction,
		TargetStart:   input.Start,
		TargetEnd:     input.End,
		CreatedAt:     time.Now().UTC(),
	}
	options := make([]*domain.EditOption, len(suggested))
	for i, opt := range suggested {
		options[i] = &domain.EditOption{
			ID:         s.uuidGen.NewString(),
			SessionID:  session.ID,
			Label:      opt.Label,
			Severity:   opt.Severity,
			BeforeText: opt.Before,
			AfterText:  opt.After,
			Operations: opt.Operations,
			Position:   i,
		}
	}

	if err := domain.ValidateEditSession(session); err != nil {
		return nil, err
	}
	for _, o := range options {
		if err := domain.ValidateEditOption(o); err != nil {
			return nil, err
		}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Edits().CreateSession(ctx, session); err != nil {
			return fmt.Errorf("failed to create edit session: %w", err)
		}
		for _, o := range options {
			if err := repos.Edits().CreateOption(ctx, o); err != nil {
				return fmt.Errorf("failed to create edit option: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.log.Info("edit session created",
		"manuscript_id", manuscript.ID,
		"session_id", session.ID,
		"version_id", version.ID,
		"options", len(options),
		"retrieved_chunks", len(retrieved),
	)

	return &SuggestOutput{
		Session:     session,
		Options:     options,
		ContextUsed: len([]rune(promptContext)),
	}, nil
}

// BuildOptions converts raw generator output into diffed options. Options
// beyond numOptions and options with an empty rewrite are dropped. The
// returned operations are in document coordinates (offset by start).
func (s *SuggestionService) BuildOptions(target string, start int, generated []GeneratedOption, numOptions int) ([]SuggestedOption, error) {
	if numOptions > 0 && len(generated) > numOptions {
		metrics.SuggestionOptionsDiscarded.WithLabelValues("over_limit").Add(float64(len(generated) - numOptions))
		generated = generated[:numOptions]
	}

	out := make([]SuggestedOption, 0, len(generated))
	for i, g := range generated {
		if g.After == "" {
			metrics.SuggestionOptionsDiscarded.WithLabelValues("empty_after").Inc()
			continue
		}

		label := strings.TrimSpace(g.Label)
		if label == "" {
			label = domain.DefaultLabel(i)
		}
		severity, ok := domain.ParseSeverity(strings.ToLower(strings.TrimSpace(g.Severity)))
		if !ok {
			severity = domain.DefaultSeverity(i)
		}
		if g.Before != "" && g.Before != target {
			s.log.Debug("generator echoed a different before text, using document text", "option", label)
		}

		local := s.diff.Compute(target, g.After)
		check, err := s.diff.Apply(target, local)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", label, err)
		}
		if check != g.After {
			return nil, domain.NewDiffApplicationError("option %s: diff does not reproduce the rewrite", label)
		}

		out = append(out, SuggestedOption{
			Label:      label,
			Severity:   severity,
			Before:     target,
			After:      g.After,
			Operations: domain.ShiftOperations(local, start),
		})
	}
	return out, nil
}

// GetSession returns a session with its options ordered by position.
func (s *SuggestionService) GetSession(ctx context.Context, sessionID string) (*domain.EditSession, []*domain.EditOption, *domain.AppliedEdit, error) {
	session, err := s.edits.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	options, err := s.edits.ListOptionsBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	applied, err := s.edits.GetAppliedEditBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	return session, options, applied, nil
}

func (s *SuggestionService) resolveLimits(input SuggestInput) (int, int, error) {
	k := input.K
	if k == 0 {
		k = s.cfg.DefaultK
	}
	if k < 0 || (s.cfg.MaxK > 0 && k > s.cfg.MaxK) {
		return 0, 0, domain.NewValidationError("k must be between 0 and %d", s.cfg.MaxK)
	}

	n := input.NumOptions
	if n == 0 {
		n = s.cfg.DefaultNumOptions
	}
	if n < 1 || (s.cfg.MaxNumOptions > 0 && n > s.cfg.MaxNumOptions) {
		return 0, 0, domain.NewValidationError("num_options must be between 1 and %d", s.cfg.MaxNumOptions)
	}
	return k, n, nil
}

func asProviderError(operation string, err error) error {
	if domain.IsProviderError(err) {
		return err
	}
	return domain.NewProviderError(operation, false, err)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsCode(err, domain.ErrCodeValidation):
		return "validation_error"
	case domain.IsProviderError(err):
		return "provider_error"
	default:
		return "error"
	}
}
