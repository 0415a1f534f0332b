package handlers

import (
	"net/http"

	"github.com/cloo-solutions/inkwell/internal/api"
	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/service"
)

// PreviewHandler exposes the diff engine and chunker without touching storage.
type PreviewHandler struct {
	diff     *service.DiffEngine
	counter  service.TokenCounter
	chunking service.ChunkConfig
}

func NewPreviewHandler(diff *service.DiffEngine, counter service.TokenCounter, chunking service.ChunkConfig) *PreviewHandler {
	if diff == nil {
		diff = service.NewDiffEngine(service.DefaultDiffTimeout)
	}
	if chunking.MaxTokensPerChunk <= 0 {
		chunking = service.DefaultChunkConfig()
	}
	return &PreviewHandler{diff: diff, counter: counter, chunking: chunking}
}

type DiffPreviewRequest struct {
	Before       string `json:"before"`
	After        string `json:"after"`
	ContextChars *int   `json:"context_chars" validate:"omitempty,min=0,max=5000"`
}

type ChunkPreviewRequest struct {
	Text          string `json:"text" validate:"required"`
	MaxTokens     int    `json:"max_tokens" validate:"min=0,max=8000"`
	OverlapTokens *int   `json:"overlap_tokens" validate:"omitempty,min=0"`
}

type ChunkPreviewResponse struct {
	Chunks []service.TextChunk `json:"chunks"`
	Count  int                 `json:"count"`
}

func (h *PreviewHandler) Diff(w http.ResponseWriter, r *http.Request) {
	var req DiffPreviewRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	contextChars := service.DefaultPreviewContextChars
	if req.ContextChars != nil {
		contextChars = *req.ContextChars
	}

	before := domain.NormalizeLineEndings(req.Before)
	after := domain.NormalizeLineEndings(req.After)
	api.Success(w, http.StatusOK, h.diff.Preview(before, after, contextChars))
}

func (h *PreviewHandler) Chunk(w http.ResponseWriter, r *http.Request) {
	var req ChunkPreviewRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	cfg := h.chunking
	if req.MaxTokens > 0 {
		cfg.MaxTokensPerChunk = req.MaxTokens
	}
	if req.OverlapTokens != nil {
		cfg.OverlapTokens = *req.OverlapTokens
	}
	// An overlap as large as the chunk is capped by the chunker, not rejected.

	chunks := service.NewChunker(cfg, h.counter).Chunk(domain.NormalizeLineEndings(req.Text))
	if chunks == nil {
		chunks = []service.TextChunk{}
	}
	api.Success(w, http.StatusOK, ChunkPreviewResponse{Chunks: chunks, Count: len(chunks)})
}
