package demanda

import (
	"sort"

	"github.com/prefsb/demandas/internal/identity"
)

// Filter é o predicado de consulta sobre demandas. Campos vazios não restringem.
type Filter struct {
	ResponsavelSolicitacao string
	VisitaContains         string
	Status                 []string
	OrderDesc              bool
}

// Match aplica o filtro em memória com a mesma semântica do SQL do repositório.
func (f Filter) Match(d Demanda) bool {
	if f.ResponsavelSolicitacao != "" && d.ResponsavelSolicitacao != f.ResponsavelSolicitacao {
		return false
	}
	if f.VisitaContains != "" && !contains(d.ResponsavelVisita, f.VisitaContains) {
		return false
	}
	if len(f.Status) > 0 && !contains(f.Status, NormalizeStatus(d.Status)) {
		return false
	}
	return true
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// VisibilityFilters devolve as consultas cuja união forma o que o papel enxerga.
// Administrador vê tudo; líder e trabalhador veem o que solicitaram ou o que
// lhes foi atribuído, em duas consultas separadas.
func VisibilityFilters(role identity.Role, email string) []Filter {
	switch role {
	case identity.RoleAdministrador:
		return []Filter{{OrderDesc: true}}
	case identity.RoleLider, identity.RoleTrabalhador:
		return []Filter{
			{ResponsavelSolicitacao: email, OrderDesc: true},
			{VisitaContains: email, OrderDesc: true},
		}
	default:
		return nil
	}
}

// PendingFilter seleciona demandas em Início atribuídas ao e-mail.
func PendingFilter(email string) Filter {
	return Filter{Status: []string{StatusInicio}, VisitaContains: email, OrderDesc: true}
}

// MergeByID une listas sem repetir ids; listas posteriores prevalecem.
func MergeByID(lists ...[]Demanda) []Demanda {
	index := make(map[string]int)
	var out []Demanda
	for _, list := range lists {
		for _, d := range list {
			if pos, ok := index[d.ID]; ok {
				out[pos] = d
				continue
			}
			index[d.ID] = len(out)
			out = append(out, d)
		}
	}
	SortByCreatedDesc(out)
	return out
}

// SortByCreatedDesc ordena por criação decrescente; sem data vai para o fim.
func SortByCreatedDesc(list []Demanda) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].CreatedAt, list[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
