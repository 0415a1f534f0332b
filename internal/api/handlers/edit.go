package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/inkwell/internal/api"
	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/service"
)

type SuggestionService interface {
	Suggest(ctx context.Context, input service.SuggestInput) (*service.SuggestOutput, error)
	GetSession(ctx context.Context, sessionID string) (*domain.EditSession, []*domain.EditOption, *domain.AppliedEdit, error)
}

type EditHandler struct {
	suggestions SuggestionService
	versions    VersionTransitioner
}

func NewEditHandler(suggestions SuggestionService, versions VersionTransitioner) *EditHandler {
	return &EditHandler{suggestions: suggestions, versions: versions}
}

type TargetRange struct {
	Start *int `json:"start" validate:"required,min=0"`
	End   *int `json:"end" validate:"required,min=0"`
}

type SuggestRequest struct {
	ManuscriptID string            `json:"manuscript_id" validate:"required"`
	Instruction  string            `json:"instruction" validate:"required,max=4000"`
	TargetRange  *TargetRange      `json:"target_range" validate:"required"`
	K            int               `json:"k" validate:"min=0"`
	NumOptions   int               `json:"num_options" validate:"min=0"`
	StylePrefs   map[string]string `json:"style_prefs"`
}

type ApplyRequest struct {
	EditSessionID string `json:"edit_session_id" validate:"required"`
	OptionID      string `json:"option_id" validate:"required"`
	ManuscriptID  string `json:"manuscript_id"`
}

type EditOptionResponse struct {
	ID         string                 `json:"id"`
	Label      string                 `json:"label"`
	Severity   string                 `json:"severity"`
	Before     string                 `json:"before"`
	After      string                 `json:"after"`
	Operations []domain.DiffOperation `json:"diff_operations"`
	Position   int                    `json:"position"`
}

type EditSessionResponse struct {
	ID            string                `json:"id"`
	ManuscriptID  string                `json:"manuscript_id"`
	BaseVersionID string                `json:"base_version_id"`
	Instruction   string                `json:"instruction"`
	TargetRange   map[string]int        `json:"target_range"`
	CreatedAt     string                `json:"created_at"`
	Options       []*EditOptionResponse `json:"options"`
	ContextUsed   *int                  `json:"context_used,omitempty"`
	Applied       *AppliedEditResponse  `json:"applied,omitempty"`
}

type AppliedEditResponse struct {
	OptionID      string `json:"option_id"`
	FromVersionID string `json:"from_version_id"`
	ToVersionID   string `json:"to_version_id"`
	AppliedAt     string `json:"applied_at"`
}

func sessionToResponse(s *domain.EditSession, opts []*domain.EditOption, applied *domain.AppliedEdit) *EditSessionResponse {
	resp := &EditSessionResponse{
		ID:            s.ID,
		ManuscriptID:  s.ManuscriptID,
		BaseVersionID: s.BaseVersionID,
		Instruction:   s.Instruction,
		TargetRange:   map[string]int{"start": s.TargetStart, "end": s.TargetEnd},
		CreatedAt:     formatTime(s.CreatedAt),
		Options:       make([]*EditOptionResponse, 0, len(opts)),
	}
	for _, o := range opts {
		ops := o.Operations
		if ops == nil {
			ops = []domain.DiffOperation{}
		}
		resp.Options = append(resp.Options, &EditOptionResponse{
			ID:         o.ID,
			Label:      o.Label,
			Severity:   string(o.Severity),
			Before:     o.BeforeText,
			After:      o.AfterText,
			Operations: ops,
			Position:   o.Position,
		})
	}
	if applied != nil {
		resp.Applied = &AppliedEditResponse{
			OptionID:      applied.ChosenOptionID,
			FromVersionID: applied.FromVersionID,
			ToVersionID:   applied.ToVersionID,
			AppliedAt:     formatTime(applied.AppliedAt),
		}
	}
	return resp
}

func (h *EditHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	out, err := h.suggestions.Suggest(r.Context(), service.SuggestInput{
		ManuscriptID: req.ManuscriptID,
		Instruction:  req.Instruction,
		Start:        *req.TargetRange.Start,
		End:          *req.TargetRange.End,
		K:            req.K,
		NumOptions:   req.NumOptions,
		StylePrefs:   req.StylePrefs,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := sessionToResponse(out.Session, out.Options, nil)
	resp.ContextUsed = &out.ContextUsed
	api.Success(w, http.StatusCreated, resp)
}

func (h *EditHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	res, err := h.versions.ApplyChosenOption(r.Context(), service.ApplyInput{
		ManuscriptID: req.ManuscriptID,
		SessionID:    req.EditSessionID,
		OptionID:     req.OptionID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, transitionToResponse(res))
}

func (h *EditHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, opts, applied, err := h.suggestions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, sessionToResponse(session, opts, applied))
}
