package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/inkwell/internal/api"
	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/service"
)

type ManuscriptService interface {
	Get(ctx context.Context, id string) (*domain.Manuscript, *domain.Version, error)
	List(ctx context.Context, input service.ListManuscriptsInput) (*service.ListManuscriptsOutput, error)
	Delete(ctx context.Context, id string) error
	ListVersions(ctx context.Context, manuscriptID string) ([]*domain.Version, error)
	GetVersion(ctx context.Context, manuscriptID, versionID string) (*domain.Version, error)
	ListChunks(ctx context.Context, manuscriptID, versionID string) ([]domain.Chunk, error)
	Reindex(ctx context.Context, manuscriptID, versionID string) (*domain.IndexJob, error)
	VersionDownloadURL(ctx context.Context, manuscriptID, versionID string) (string, error)
	GetStylePrefs(ctx context.Context, manuscriptID string) (map[string]string, error)
	SetStylePrefs(ctx context.Context, manuscriptID string, prefs map[string]string) error
}

// VersionTransitioner moves a manuscript's current version pointer.
type VersionTransitioner interface {
	CreateManuscript(ctx context.Context, input service.CreateManuscriptInput) (*domain.Manuscript, *domain.Version, error)
	ApplyChosenOption(ctx context.Context, input service.ApplyInput) (*service.TransitionResult, error)
	Revert(ctx context.Context, manuscriptID, targetVersionID string) (*service.TransitionResult, error)
}

type ManuscriptHandler struct {
	svc      ManuscriptService
	versions VersionTransitioner
}

func NewManuscriptHandler(svc ManuscriptService, versions VersionTransitioner) *ManuscriptHandler {
	return &ManuscriptHandler{svc: svc, versions: versions}
}

type CreateManuscriptRequest struct {
	Title   string `json:"title" validate:"required,max=500"`
	Author  string `json:"author" validate:"max=200"`
	Content string `json:"content"`
}

type RevertRequest struct {
	VersionID string `json:"version_id" validate:"required"`
}

type StylePrefsRequest struct {
	Prefs map[string]string `json:"prefs" validate:"required,dive,keys,required,max=100,endkeys,max=2000"`
}

type VersionResponse struct {
	ID           string `json:"id"`
	ManuscriptID string `json:"manuscript_id"`
	Tag          string `json:"tag"`
	Content      string `json:"content,omitempty"`
	Length       int    `json:"length"`
	CreatedAt    string `json:"created_at"`
}

type ManuscriptResponse struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Author           string           `json:"author,omitempty"`
	CurrentVersionID string           `json:"current_version_id"`
	CurrentVersion   *VersionResponse `json:"current_version,omitempty"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
}

type ChunkResponse struct {
	ID         string `json:"id"`
	ChunkIndex int    `json:"chunk_index"`
	Chapter    *int   `json:"chapter,omitempty"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
	Text       string `json:"text"`
	Embedded   bool   `json:"embedded"`
}

type TransitionResponse struct {
	ManuscriptID string           `json:"manuscript_id"`
	FromVersion  *VersionResponse `json:"from_version"`
	ToVersion    *VersionResponse `json:"to_version"`
}

type ListManuscriptsResponse struct {
	Items   []*ManuscriptResponse `json:"items"`
	Cursor  string                `json:"cursor,omitempty"`
	HasMore bool                  `json:"has_more"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func versionToResponse(v *domain.Version, withContent bool) *VersionResponse {
	if v == nil {
		return nil
	}
	resp := &VersionResponse{
		ID:           v.ID,
		ManuscriptID: v.ManuscriptID,
		Tag:          v.Tag,
		Length:       domain.RuneLen(v.Content),
		CreatedAt:    formatTime(v.CreatedAt),
	}
	if withContent {
		resp.Content = v.Content
	}
	return resp
}

func manuscriptToResponse(m *domain.Manuscript, current *domain.Version) *ManuscriptResponse {
	return &ManuscriptResponse{
		ID:               m.ID,
		Title:            m.Title,
		Author:           m.Author,
		CurrentVersionID: m.CurrentVersionID,
		CurrentVersion:   versionToResponse(current, true),
		CreatedAt:        formatTime(m.CreatedAt),
		UpdatedAt:        formatTime(m.UpdatedAt),
	}
}

func transitionToResponse(res *service.TransitionResult) *TransitionResponse {
	return &TransitionResponse{
		ManuscriptID: res.ManuscriptID,
		FromVersion:  versionToResponse(res.FromVersion, false),
		ToVersion:    versionToResponse(res.ToVersion, false),
	}
}

func (h *ManuscriptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateManuscriptRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	m, v, err := h.versions.CreateManuscript(r.Context(), service.CreateManuscriptInput{
		Title:   req.Title,
		Author:  req.Author,
		Content: req.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, manuscriptToResponse(m, v))
}

func (h *ManuscriptHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	out, err := h.svc.List(r.Context(), service.ListManuscriptsInput{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ManuscriptResponse, 0, len(out.Items))
	for _, m := range out.Items {
		items = append(items, manuscriptToResponse(m, nil))
	}
	api.Success(w, http.StatusOK, ListManuscriptsResponse{Items: items, Cursor: out.Cursor, HasMore: out.HasMore})
}

func (h *ManuscriptHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, v, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, manuscriptToResponse(m, v))
}

func (h *ManuscriptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ManuscriptHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.svc.ListVersions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*VersionResponse, 0, len(versions))
	for _, v := range versions {
		resp = append(resp, versionToResponse(v, false))
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *ManuscriptHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetVersion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "versionID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, versionToResponse(v, true))
}

func (h *ManuscriptHandler) ListChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := h.svc.ListChunks(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "versionID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]ChunkResponse, 0, len(chunks))
	for _, c := range chunks {
		resp = append(resp, ChunkResponse{
			ID:         c.ID,
			ChunkIndex: c.ChunkIndex,
			Chapter:    c.Chapter,
			StartChar:  c.StartChar,
			EndChar:    c.EndChar,
			Text:       c.Text,
			Embedded:   len(c.Embedding) > 0,
		})
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *ManuscriptHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Reindex(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "versionID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusAccepted, map[string]string{
		"job_id":     job.ID,
		"version_id": job.VersionID,
		"status":     string(job.Status),
	})
}

func (h *ManuscriptHandler) Download(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.VersionDownloadURL(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "versionID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"url": url})
}

func (h *ManuscriptHandler) Revert(w http.ResponseWriter, r *http.Request) {
	var req RevertRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	res, err := h.versions.Revert(r.Context(), chi.URLParam(r, "id"), req.VersionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, transitionToResponse(res))
}

func (h *ManuscriptHandler) GetStylePrefs(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.svc.GetStylePrefs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"prefs": prefs})
}

func (h *ManuscriptHandler) PutStylePrefs(w http.ResponseWriter, r *http.Request) {
	var req StylePrefsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.SetStylePrefs(r.Context(), id, req.Prefs); err != nil {
		api.HandleError(w, err)
		return
	}

	prefs, err := h.svc.GetStylePrefs(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"prefs": prefs})
}
