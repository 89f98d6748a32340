// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/adapter"
	"math-eval-service/internal/domain/ports/repository"

	"github.com/google/uuid"
)

// memRegionStore is a small in-memory implementation used by unit tests.
type memRegionStore struct {
	mu     sync.RWMutex
	store  map[string]*model.CumulativeRegion
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemRegionStore() *memRegionStore {
	return &memRegionStore{
		store: make(map[string]*model.CumulativeRegion),
		ttls:  make(map[string]time.Duration),
	}
}

func regionKey(sessionID, questionHash string) string {
	return sessionID + ":" + questionHash
}

func (m *memRegionStore) Get(ctx context.Context, sessionID, questionHash string) (*model.CumulativeRegion, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.store[regionKey(sessionID, questionHash)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	cp.Regions = append([]model.Region(nil), rec.Regions...)
	return &cp, nil
}

func (m *memRegionStore) Set(ctx context.Context, sessionID, questionHash string, rec *model.CumulativeRegion, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Regions = append([]model.Region(nil), rec.Regions...)
	key := regionKey(sessionID, questionHash)
	m.store[key] = &cp
	m.ttls[key] = ttl
	return nil
}

func (m *memRegionStore) Delete(ctx context.Context, sessionID, questionHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := regionKey(sessionID, questionHash)
	_, ok := m.store[key]
	delete(m.store, key)
	delete(m.ttls, key)
	return ok, nil
}

func (m *memRegionStore) ScanSession(ctx context.Context, sessionID string) ([]repository.TrackedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []repository.TrackedSession
	prefix := sessionID + ":"
	for k, rec := range m.store {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			cp := *rec
			out = append(out, repository.TrackedSession{QuestionHash: k[len(prefix):], Record: &cp})
		}
	}
	return out, nil
}

// memLocker implements the redis.Locker port without a server.
type memLocker struct {
	mu      sync.Mutex
	held    map[string]string
	lockErr error
	locks   int
	unlocks int
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]string)}
}

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.lockErr != nil {
		return "", l.lockErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return "", domain.ErrLockNotAcquired
	}
	token := uuid.NewString()
	l.held[key] = token
	l.locks++
	return token, nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.unlocks++
	}
	return nil
}

// memStorage serves fixed image paths and records fetch calls.
type memStorage struct {
	mu       sync.Mutex
	fetches  int
	missing  map[string]bool
	fetchErr error
}

func newMemStorage() *memStorage {
	return &memStorage{missing: make(map[string]bool)}
}

func (s *memStorage) Fetch(ctx context.Context, container, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return "", s.fetchErr
	}
	if s.missing[name] {
		return "", fmt.Errorf("object %s/%s: %w", container, name, domain.ErrNotFound)
	}
	return "/tmp/fake-" + name, nil
}

func (s *memStorage) Metadata(ctx context.Context, container, name string) (adapter.ImageMetadata, error) {
	if s.missing[name] {
		return adapter.ImageMetadata{}, domain.ErrNotFound
	}
	return adapter.ImageMetadata{Size: 1, ContentType: "image/jpeg"}, nil
}

// memImaging passes paths through with a suffix so steps are observable.
type memImaging struct {
	mu       sync.Mutex
	crops    int
	enhances int
	cropErr  error
}

func (p *memImaging) Crop(ctx context.Context, path string, region model.Region) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.crops++
	if p.cropErr != nil {
		return "", p.cropErr
	}
	return path + ".cropped", nil
}

func (p *memImaging) Enhance(ctx context.Context, path string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enhances++
	return path + ".enhanced", nil
}

// memVision returns a canned outcome.
type memVision struct {
	mu      sync.Mutex
	calls   int
	err     error
	outcome model.AnalysisOutcome
}

func newMemVision(outcome model.AnalysisOutcome) *memVision {
	return &memVision{outcome: outcome}
}

func (v *memVision) Name() string { return "mem" }

func (v *memVision) Analyze(ctx context.Context, questionPath, workingNotePath string) (model.AnalysisOutcome, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return model.AnalysisOutcome{}, v.err
	}
	return v.outcome, nil
}

// memEvalRepo stores records in memory.
type memEvalRepo struct {
	mu      sync.Mutex
	records []*model.EvaluationRecord
	saveErr error
}

func (r *memEvalRepo) Save(ctx context.Context, rec *model.EvaluationRecord) (string, error) {
	if r.saveErr != nil {
		return "", r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	cp := *rec
	r.records = append(r.records, &cp)
	return rec.ID, nil
}

func parsedOutcome(score float64, errs []model.ErrorFound) model.AnalysisOutcome {
	return model.AnalysisOutcome{
		Provider: "mem",
		Analysis: &model.StructuredAnalysis{
			Question: model.QuestionAnalysis{ProblemText: "2+2", ProblemType: "arithmetic"},
			WorkingNote: model.WorkingNoteAnalysis{
				SolutionSteps: []string{"2+2=5"},
				FinalAnswer:   "5",
			},
			CorrectnessScore: score,
			ErrorsFound:      errs,
			Feedback:         "check your addition",
		},
	}
}
