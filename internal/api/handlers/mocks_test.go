package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/service"
)

type MockManuscriptService struct {
	mock.Mock
}

func (m *MockManuscriptService) Get(ctx context.Context, id string) (*domain.Manuscript, *domain.Version, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Manuscript), args.Get(1).(*domain.Version), args.Error(2)
}

func (m *MockManuscriptService) List(ctx context.Context, input service.ListManuscriptsInput) (*service.ListManuscriptsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListManuscriptsOutput), args.Error(1)
}

func (m *MockManuscriptService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockManuscriptService) ListVersions(ctx context.Context, manuscriptID string) ([]*domain.Version, error) {
	args := m.Called(ctx, manuscriptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Version), args.Error(1)
}

func (m *MockManuscriptService) GetVersion(ctx context.Context, manuscriptID, versionID string) (*domain.Version, error) {
	args := m.Called(ctx, manuscriptID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Version), args.Error(1)
}

func (m *MockManuscriptService) ListChunks(ctx context.Context, manuscriptID, versionID string) ([]domain.Chunk, error) {
	args := m.Called(ctx, manuscriptID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockManuscriptService) Reindex(ctx context.Context, manuscriptID, versionID string) (*domain.IndexJob, error) {
	args := m.Called(ctx, manuscriptID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexJob), args.Error(1)
}

func (m *MockManuscriptService) VersionDownloadURL(ctx context.Context, manuscriptID, versionID string) (string, error) {
	args := m.Called(ctx, manuscriptID, versionID)
	return args.String(0), args.Error(1)
}

func (m *MockManuscriptService) GetStylePrefs(ctx context.Context, manuscriptID string) (map[string]string, error) {
	args := m.Called(ctx, manuscriptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockManuscriptService) SetStylePrefs(ctx context.Context, manuscriptID string, prefs map[string]string) error {
	args := m.Called(ctx, manuscriptID, prefs)
	return args.Error(0)
}

type MockVersionTransitioner struct {
	mock.Mock
}

func (m *MockVersionTransitioner) CreateManuscript(ctx context.Context, input service.CreateManuscriptInput) (*domain.Manuscript, *domain.Version, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Manuscript), args.Get(1).(*domain.Version), args.Error(2)
}

func (m *MockVersionTransitioner) ApplyChosenOption(ctx context.Context, input service.ApplyInput) (*service.TransitionResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TransitionResult), args.Error(1)
}

func (m *MockVersionTransitioner) Revert(ctx context.Context, manuscriptID, targetVersionID string) (*service.TransitionResult, error) {
	args := m.Called(ctx, manuscriptID, targetVersionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TransitionResult), args.Error(1)
}

type MockSuggestionService struct {
	mock.Mock
}

func (m *MockSuggestionService) Suggest(ctx context.Context, input service.SuggestInput) (*service.SuggestOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SuggestOutput), args.Error(1)
}

func (m *MockSuggestionService) GetSession(ctx context.Context, sessionID string) (*domain.EditSession, []*domain.EditOption, *domain.AppliedEdit, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, nil, nil, args.Error(3)
	}
	var applied *domain.AppliedEdit
	if a := args.Get(2); a != nil {
		applied = a.(*domain.AppliedEdit)
	}
	return args.Get(0).(*domain.EditSession), args.Get(1).([]*domain.EditOption), applied, args.Error(3)
}

// newRequest builds a request with chi URL params attached.
func newRequest(method, target, body string, params map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
