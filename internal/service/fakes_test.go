package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/pagination"
)

// memStore is an in-memory implementation of every repository used by the
// services. WithTx runs against a private copy of the state and publishes
// it on success, so failed transactions leave no trace.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	state   *memState
	failCAS bool
}

type memState struct {
	manuscripts map[string]domain.Manuscript
	versions    map[string]domain.Version
	sessions    map[string]domain.EditSession
	options     map[string]domain.EditOption
	applied     map[string]domain.AppliedEdit
	chunks      map[string][]domain.Chunk
	jobs        []domain.IndexJob
	prefs       map[string]map[string]string
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		manuscripts: map[string]domain.Manuscript{},
		versions:    map[string]domain.Version{},
		sessions:    map[string]domain.EditSession{},
		options:     map[string]domain.EditOption{},
		applied:     map[string]domain.AppliedEdit{},
		chunks:      map[string][]domain.Chunk{},
		prefs:       map[string]map[string]string{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		manuscripts: make(map[string]domain.Manuscript, len(s.manuscripts)),
		versions:    make(map[string]domain.Version, len(s.versions)),
		sessions:    make(map[string]domain.EditSession, len(s.sessions)),
		options:     make(map[string]domain.EditOption, len(s.options)),
		applied:     make(map[string]domain.AppliedEdit, len(s.applied)),
		chunks:      make(map[string][]domain.Chunk, len(s.chunks)),
		jobs:        append([]domain.IndexJob(nil), s.jobs...),
		prefs:       make(map[string]map[string]string, len(s.prefs)),
	}
	for k, v := range s.manuscripts {
		c.manuscripts[k] = v
	}
	for k, v := range s.versions {
		c.versions[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.options {
		c.options[k] = v
	}
	for k, v := range s.applied {
		c.applied[k] = v
	}
	for k, v := range s.chunks {
		c.chunks[k] = v
	}
	for k, v := range s.prefs {
		c.prefs[k] = v
	}
	return c
}

func (s *memStore) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	tx := s.state.clone()
	s.mu.Unlock()

	if err := fn(&memRepos{store: s, tx: tx}); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = tx
	s.mu.Unlock()
	return nil
}

func (s *memStore) repos() *memRepos {
	return &memRepos{store: s}
}

func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

type memRepos struct {
	store *memStore
	tx    *memState
}

func (r *memRepos) with(fn func(st *memState)) {
	if r.tx != nil {
		fn(r.tx)
		return
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	fn(r.store.state)
}

func (r *memRepos) Manuscripts() ManuscriptRepositoryInterface { return memManuscripts{r} }
func (r *memRepos) Versions() VersionRepositoryInterface       { return memVersions{r} }
func (r *memRepos) Edits() EditRepositoryInterface             { return memEdits{r} }
func (r *memRepos) Chunks() ChunkRepositoryInterface           { return memChunks{r} }
func (r *memRepos) IndexJobs() IndexJobRepositoryInterface     { return memJobs{r} }
func (r *memRepos) StylePrefs() StylePrefRepositoryInterface   { return memPrefs{r} }

type memManuscripts struct{ r *memRepos }

func (m memManuscripts) Create(ctx context.Context, ms *domain.Manuscript) error {
	m.r.with(func(st *memState) { st.manuscripts[ms.ID] = *ms })
	return nil
}

func (m memManuscripts) GetByID(ctx context.Context, id string) (*domain.Manuscript, error) {
	var out *domain.Manuscript
	m.r.with(func(st *memState) {
		if v, ok := st.manuscripts[id]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, domain.ErrManuscriptNotFound
	}
	return out, nil
}

func (m memManuscripts) GetForUpdate(ctx context.Context, id string) (*domain.Manuscript, error) {
	return m.GetByID(ctx, id)
}

func (m memManuscripts) List(ctx context.Context, cursor *pagination.Cursor, limit int) (*ManuscriptPageResult, error) {
	var items []*domain.Manuscript
	m.r.with(func(st *memState) {
		for _, v := range st.manuscripts {
			v := v
			items = append(items, &v)
		}
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	return &ManuscriptPageResult{Items: items, HasMore: hasMore}, nil
}

func (m memManuscripts) SetCurrentVersion(ctx context.Context, id, expected, next string) error {
	var err error
	m.r.with(func(st *memState) {
		ms, ok := st.manuscripts[id]
		if !ok || ms.CurrentVersionID != expected || m.r.store.failCAS {
			err = domain.ErrCurrentVersionMoved
			return
		}
		ms.CurrentVersionID = next
		st.manuscripts[id] = ms
	})
	return err
}

func (m memManuscripts) Delete(ctx context.Context, id string) error {
	var err error
	m.r.with(func(st *memState) {
		if _, ok := st.manuscripts[id]; !ok {
			err = domain.ErrManuscriptNotFound
			return
		}
		delete(st.manuscripts, id)
	})
	return err
}

type memVersions struct{ r *memRepos }

func (m memVersions) Create(ctx context.Context, v *domain.Version) error {
	m.r.with(func(st *memState) { st.versions[v.ID] = *v })
	return nil
}

func (m memVersions) GetByID(ctx context.Context, id string) (*domain.Version, error) {
	var out *domain.Version
	m.r.with(func(st *memState) {
		if v, ok := st.versions[id]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, domain.ErrVersionNotFound
	}
	return out, nil
}

func (m memVersions) ListByManuscript(ctx context.Context, manuscriptID string) ([]*domain.Version, error) {
	var out []*domain.Version
	m.r.with(func(st *memState) {
		for _, v := range st.versions {
			if v.ManuscriptID == manuscriptID {
				v := v
				out = append(out, &v)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func (m memVersions) CountByManuscript(ctx context.Context, manuscriptID string) (int, error) {
	vs, _ := m.ListByManuscript(ctx, manuscriptID)
	return len(vs), nil
}

type memEdits struct{ r *memRepos }

func (m memEdits) CreateSession(ctx context.Context, s *domain.EditSession) error {
	m.r.with(func(st *memState) { st.sessions[s.ID] = *s })
	return nil
}

func (m memEdits) GetSession(ctx context.Context, id string) (*domain.EditSession, error) {
	var out *domain.EditSession
	m.r.with(func(st *memState) {
		if v, ok := st.sessions[id]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, domain.ErrEditSessionNotFound
	}
	return out, nil
}

func (m memEdits) CreateOption(ctx context.Context, o *domain.EditOption) error {
	m.r.with(func(st *memState) { st.options[o.ID] = *o })
	return nil
}

func (m memEdits) GetOption(ctx context.Context, id string) (*domain.EditOption, error) {
	var out *domain.EditOption
	m.r.with(func(st *memState) {
		if v, ok := st.options[id]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, domain.ErrEditOptionNotFound
	}
	return out, nil
}

func (m memEdits) ListOptionsBySession(ctx context.Context, sessionID string) ([]*domain.EditOption, error) {
	var out []*domain.EditOption
	m.r.with(func(st *memState) {
		for _, o := range st.options {
			if o.SessionID == sessionID {
				o := o
				out = append(out, &o)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m memEdits) CreateAppliedEdit(ctx context.Context, a *domain.AppliedEdit) error {
	var err error
	m.r.with(func(st *memState) {
		if _, ok := st.applied[a.SessionID]; ok {
			err = domain.ErrSessionAlreadyApplied
			return
		}
		st.applied[a.SessionID] = *a
	})
	return err
}

func (m memEdits) GetAppliedEditBySession(ctx context.Context, sessionID string) (*domain.AppliedEdit, error) {
	var out *domain.AppliedEdit
	m.r.with(func(st *memState) {
		if v, ok := st.applied[sessionID]; ok {
			out = &v
		}
	})
	return out, nil
}

type memChunks struct{ r *memRepos }

func (m memChunks) ReplaceChunks(ctx context.Context, versionID string, chunks []domain.Chunk) error {
	m.r.with(func(st *memState) { st.chunks[versionID] = append([]domain.Chunk(nil), chunks...) })
	return nil
}

func (m memChunks) ListByVersion(ctx context.Context, versionID string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	m.r.with(func(st *memState) { out = append(out, st.chunks[versionID]...) })
	return out, nil
}

func (m memChunks) NearestChunks(ctx context.Context, versionID string, embedding []float32, k int) ([]domain.ScoredChunk, error) {
	chunks, _ := m.ListByVersion(ctx, versionID)
	out := make([]domain.ScoredChunk, 0, k)
	for i, c := range chunks {
		if i >= k {
			break
		}
		out = append(out, domain.ScoredChunk{Chunk: c})
	}
	return out, nil
}

type memJobs struct{ r *memRepos }

func (m memJobs) Create(ctx context.Context, job *domain.IndexJob) error {
	m.r.with(func(st *memState) { st.jobs = append(st.jobs, *job) })
	return nil
}

type memPrefs struct{ r *memRepos }

func (m memPrefs) ListByManuscript(ctx context.Context, manuscriptID string) ([]domain.StylePref, error) {
	var out []domain.StylePref
	m.r.with(func(st *memState) {
		for k, v := range st.prefs[manuscriptID] {
			out = append(out, domain.StylePref{ManuscriptID: manuscriptID, Key: k, Value: v})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m memPrefs) Replace(ctx context.Context, manuscriptID string, prefs map[string]string) error {
	cp := make(map[string]string, len(prefs))
	for k, v := range prefs {
		cp[k] = v
	}
	m.r.with(func(st *memState) { st.prefs[manuscriptID] = cp })
	return nil
}

// MockUUIDGenerator hands out ids from a preset list, then numbered fallbacks.
type MockUUIDGenerator struct {
	mu    sync.Mutex
	uuids []string
	index int
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index++
	if m.index <= len(m.uuids) {
		return m.uuids[m.index-1]
	}
	return fmt.Sprintf("uuid-%d", m.index)
}
