package demanda

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prefsb/demandas/internal/storage"
	"github.com/prefsb/demandas/internal/util"
)

type memStore struct {
	mu           sync.Mutex
	items        map[string]Demanda
	statusWrites int
	creates      int
	failUpdate   error
}

func newMemStore(items ...Demanda) *memStore {
	m := &memStore{items: map[string]Demanda{}}
	for _, d := range items {
		m.items[d.ID] = d
	}
	return m
}

func (m *memStore) Create(ctx context.Context, d Demanda) (Demanda, error) {
	m.mu.Lock()
	if d.ID == "" {
		d.ID = util.NewID()
	}
	if d.CreatedAt == nil {
		now := time.Now().UTC()
		d.CreatedAt = &now
	}
	m.items[d.ID] = d
	m.creates++
	m.mu.Unlock()
	return d, nil
}

func (m *memStore) Get(ctx context.Context, id string) (Demanda, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return Demanda{}, ErrNotFound
	}
	return d, nil
}

func (m *memStore) List(ctx context.Context, filter Filter) ([]Demanda, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Demanda{}
	for _, d := range m.items {
		if filter.Match(d) {
			out = append(out, d)
		}
	}
	if filter.OrderDesc {
		SortByCreatedDesc(out)
	}
	return out, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	d, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	m.statusWrites++
	d.Status = status
	m.items[id] = d
	return nil
}

func (m *memStore) Reassign(ctx context.Context, id string, a Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	at := a.At
	d.ResponsavelVisita = []string{a.Worker}
	d.Status = StatusDesignada
	d.AtribuidorEmail = a.AtribuidorEmail
	d.DataAtribuicao = &at
	m.items[id] = d
	return nil
}

func (m *memStore) UpdateFields(ctx context.Context, id string, e Edit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	d.Data, d.Local, d.Bairro, d.Objetivo = e.Data, e.Local, e.Bairro, e.Objetivo
	d.Status = e.Status
	d.ResponsavelSolicitacao = e.ResponsavelSolicitacao
	d.ResponsavelVisita = e.ResponsavelVisita
	d.ImagemURL = e.ImagemURL
	m.items[id] = d
	return nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type stubRoster struct {
	leaders map[string]bool
	teams   map[string]string
}

func (s stubRoster) IsOnRoster(ctx context.Context, leaderEmail, workerEmail string) (bool, error) {
	return s.teams[workerEmail] == leaderEmail, nil
}

func (s stubRoster) IsLeader(ctx context.Context, email string) (bool, error) {
	return s.leaders[email], nil
}

type stubUploader struct {
	keys []string
	err  error
}

func (s *stubUploader) Upload(ctx context.Context, input storage.UploadInput) (*storage.UploadResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.keys = append(s.keys, input.Key)
	return &storage.UploadResult{Key: input.Key, URL: "https://cdn.prefsb.com/" + input.Key}, nil
}

func (s *stubUploader) URL(ctx context.Context, key string) (string, error) {
	return "https://cdn.prefsb.com/" + key, nil
}

var errUpload = errors.New("bucket indisponível")

func ts(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func defaultRoster() stubRoster {
	return stubRoster{
		leaders: map[string]bool{"lider@prefsb.com": true, "outro@prefsb.com": true},
		teams:   map[string]string{"w1@prefsb.com": "lider@prefsb.com", "w2@prefsb.com": "lider@prefsb.com", "w3@prefsb.com": "outro@prefsb.com"},
	}
}
