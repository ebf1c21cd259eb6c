package demanda

import (
	"fmt"
	"sort"
	"time"

	"github.com/prefsb/demandas/internal/identity"
)

var meses = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// MonthLabel devolve o rótulo "Mês/Ano" em português.
func MonthLabel(year int, month time.Month) string {
	return fmt.Sprintf("%s/%d", meses[month-1], year)
}

// MonthCount é a contagem de demandas de um mês.
type MonthCount struct {
	Label string     `json:"mesAno"`
	Year  int        `json:"ano"`
	Month time.Month `json:"mes"`
	Total int        `json:"total"`
}

// MonthlyCounts agrupa por mês de criação no fuso informado. Demandas sem data
// de criação ficam de fora. A saída segue (ano, mês) decrescente.
func MonthlyCounts(list []Demanda, loc *time.Location) []MonthCount {
	if loc == nil {
		loc = time.UTC
	}

	type key struct {
		year  int
		month time.Month
	}
	counts := make(map[key]int)
	for _, d := range list {
		if d.CreatedAt == nil || d.CreatedAt.IsZero() {
			continue
		}
		t := d.CreatedAt.In(loc)
		counts[key{t.Year(), t.Month()}]++
	}

	out := make([]MonthCount, 0, len(counts))
	for k, total := range counts {
		out = append(out, MonthCount{Label: MonthLabel(k.year, k.month), Year: k.year, Month: k.month, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out
}

// FilterByCreatedRange mantém as demandas com criação dentro de [from, to].
// Limites nulos não restringem. Demandas sem data de criação nunca entram.
func FilterByCreatedRange(list []Demanda, from, to *time.Time) []Demanda {
	out := make([]Demanda, 0, len(list))
	for _, d := range list {
		if d.CreatedAt == nil {
			continue
		}
		if from != nil && d.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && d.CreatedAt.After(*to) {
			continue
		}
		out = append(out, d)
	}
	SortByCreatedDesc(out)
	return out
}

// ReportFilter restringe relatórios às finalizadas; o líder vê só as que solicitou.
func ReportFilter(actor Actor) (Filter, error) {
	switch actor.Role {
	case identity.RoleAdministrador:
		return Filter{Status: []string{StatusFinalizada}, OrderDesc: true}, nil
	case identity.RoleLider:
		return Filter{Status: []string{StatusFinalizada}, ResponsavelSolicitacao: actor.Email, OrderDesc: true}, nil
	default:
		return Filter{}, ErrForbidden
	}
}
