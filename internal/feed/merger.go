package feed

import "sync"

// Keyed é um item identificável no mapa combinado.
type Keyed interface {
	Key() string
}

type entry[T Keyed] struct {
	value T
	seq   uint64
}

// Merger combina snapshots de várias assinaturas em um mapa por id.
// Cada snapshot substitui apenas a contribuição da própria fonte; o mesmo id
// vindo de duas fontes fica com a escrita mais recente. Não há ordem garantida
// entre fontes.
type Merger[T Keyed] struct {
	mu      sync.Mutex
	seq     uint64
	sources map[string]map[string]entry[T]
}

// NewMerger cria um merger vazio.
func NewMerger[T Keyed]() *Merger[T] {
	return &Merger[T]{sources: make(map[string]map[string]entry[T])}
}

// Replace troca a contribuição da fonte e devolve o conjunto combinado.
func (m *Merger[T]) Replace(source string, items []T) []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	contrib := make(map[string]entry[T], len(items))
	for _, item := range items {
		contrib[item.Key()] = entry[T]{value: item, seq: m.seq}
	}
	m.sources[source] = contrib
	return m.valuesLocked()
}

// Values devolve o conjunto combinado atual, sem ordem definida.
func (m *Merger[T]) Values() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valuesLocked()
}

func (m *Merger[T]) valuesLocked() []T {
	merged := make(map[string]entry[T])
	for _, contrib := range m.sources {
		for key, e := range contrib {
			if cur, ok := merged[key]; !ok || e.seq > cur.seq {
				merged[key] = e
			}
		}
	}
	out := make([]T, 0, len(merged))
	for _, e := range merged {
		out = append(out, e.value)
	}
	return out
}
