package usuario

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/prefsb/demandas/internal/identity"
)

type memStore struct {
	mu            sync.Mutex
	users         map[string]Usuario
	pending       map[string]AutorizacaoPendente
	pendingDelete int
	upserts       int
}

func newMemStore() *memStore {
	return &memStore{users: map[string]Usuario{}, pending: map[string]AutorizacaoPendente{}}
}

func (m *memStore) Get(ctx context.Context, id string) (Usuario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return Usuario{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetByEmail(ctx context.Context, email string) (Usuario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return Usuario{}, ErrNotFound
}

func (m *memStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memStore) Create(ctx context.Context, u Usuario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memStore) CreateWithPending(ctx context.Context, u Usuario, p AutorizacaoPendente) error {
	if err := m.Create(ctx, u); err != nil {
		return err
	}
	return m.UpsertPending(ctx, p)
}

func (m *memStore) UpdateProfile(ctx context.Context, id, nome, papel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Nome, u.Papel = nome, papel
	m.users[id] = u
	return nil
}

func (m *memStore) UpdateEmail(ctx context.Context, id, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Email = email
	m.users[id] = u
	return nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) List(ctx context.Context, filter Filter) ([]Usuario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Usuario{}
	for _, u := range m.users {
		if filter.LiderEmail != "" && !strings.EqualFold(u.LiderEmail, filter.LiderEmail) {
			continue
		}
		if len(filter.Tipos) > 0 {
			match := false
			for _, tipo := range filter.Tipos {
				if u.Tipo == tipo {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memStore) GetPending(ctx context.Context, email string) (AutorizacaoPendente, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[email]
	if !ok {
		return AutorizacaoPendente{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) UpsertPending(ctx context.Context, p AutorizacaoPendente) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if existing, ok := m.pending[p.Email]; ok && p.LiderEmail == "" {
		p.LiderEmail = existing.LiderEmail
	}
	m.pending[p.Email] = p
	return nil
}

func (m *memStore) DeletePending(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingDelete++
	delete(m.pending, email)
	return nil
}

func (m *memStore) ListPending(ctx context.Context, liderEmail string) ([]AutorizacaoPendente, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []AutorizacaoPendente{}
	for _, p := range m.pending {
		if strings.EqualFold(p.LiderEmail, liderEmail) {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubAccounts struct {
	calls int
	err   error
}

func (s *stubAccounts) CreateAccount(ctx context.Context, email, senha string) (identity.Principal, error) {
	s.calls++
	if s.err != nil {
		return identity.Principal{}, s.err
	}
	return identity.Principal{UID: "uid-" + email, Email: email}, nil
}
