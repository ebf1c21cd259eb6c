package importer

import (
	"math"
	"strings"
	"time"

	"github.com/prefsb/demandas/internal/demanda"
	"github.com/prefsb/demandas/internal/identity"
	"github.com/prefsb/demandas/internal/usuario"
	"github.com/prefsb/demandas/internal/util"
)

// Document é um documento lido da base legada.
type Document struct {
	ID   string
	Data map[string]any
}

// ToDemanda converte um documento da coleção demandas. Campos ausentes ficam vazios.
func ToDemanda(doc Document) demanda.Demanda {
	d := doc.Data
	out := demanda.Demanda{
		ID:                     doc.ID,
		Data:                   str(d["data"]),
		HoraInicio:             str(d["horaInicio"]),
		Termino:                str(d["termino"]),
		Local:                  str(d["local"]),
		Bairro:                 str(d["bairro"]),
		Secretaria:             str(d["secretaria"]),
		Departamento:           str(d["departamento"]),
		Objetivo:               str(d["objetivo"]),
		Avaliacao:              str(d["avaliacao"]),
		ImagemURL:              imageURL(d),
		Status:                 demanda.NormalizeStatus(str(d["status"])),
		ResponsavelSolicitacao: util.NormalizeEmail(str(d["responsavelSolicitacao"])),
		ResponsavelVisita:      emails(d["responsavelVisita"]),
		LiderEmail:             util.NormalizeEmail(str(d["liderEmail"])),
		AtribuidorEmail:        util.NormalizeEmail(str(d["atribuidorEmail"])),
		DataAtribuicao:         Timestamp(d["dataAtribuicao"]),
		CreatedAt:              Timestamp(d["createdAt"]),
	}
	if out.Status == "" {
		out.Status = demanda.StatusInicio
	}
	return out
}

// ToUsuario converte um documento da coleção usuarios; o id do documento é o uid.
func ToUsuario(doc Document) usuario.Usuario {
	d := doc.Data
	u := usuario.Usuario{
		ID:         doc.ID,
		Email:      util.NormalizeEmail(str(d["email"])),
		Nome:       str(d["nome"]),
		Tipo:       strings.TrimSpace(str(d["tipo"])),
		Papel:      str(d["papel"]),
		LiderEmail: util.NormalizeEmail(str(d["liderEmail"])),
	}
	if ts := Timestamp(d["criadoEm"]); ts != nil {
		u.CriadoEm = *ts
	}
	return u
}

// ToPending converte um documento de usuarios_temp; o id do documento é o e-mail.
// Registros antigos sem o campo autorizado foram gravados já autorizados.
func ToPending(doc Document) usuario.AutorizacaoPendente {
	d := doc.Data
	email := util.NormalizeEmail(str(d["email"]))
	if email == "" {
		email = util.NormalizeEmail(doc.ID)
	}
	autorizado := true
	if v, ok := d["autorizado"].(bool); ok {
		autorizado = v
	}
	p := usuario.AutorizacaoPendente{
		Email:      email,
		LiderEmail: util.NormalizeEmail(str(d["liderEmail"])),
		Autorizado: autorizado,
	}
	if ts := Timestamp(d["criadoEm"]); ts != nil {
		p.CriadoEm = *ts
	}
	return p
}

// Timestamp aceita carimbos nativos, strings RFC3339 e epoch em milissegundos.
// Qualquer outro valor vira nil, e a demanda fica fora dos relatórios.
func Timestamp(v any) *time.Time {
	var t time.Time
	switch value := v.(type) {
	case time.Time:
		t = value
	case *time.Time:
		if value == nil {
			return nil
		}
		t = *value
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
		if err != nil {
			return nil
		}
		t = parsed
	case int64:
		t = time.UnixMilli(value)
	case int:
		t = time.UnixMilli(int64(value))
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil
		}
		t = time.UnixMilli(int64(value))
	default:
		return nil
	}
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func imageURL(d map[string]any) string {
	if url := str(d["arquivo"]); url != "" {
		return url
	}
	return str(d["imagemUrl"])
}

// emails aceita lista ou um único e-mail.
func emails(v any) []string {
	var raw []string
	switch value := v.(type) {
	case string:
		raw = []string{value}
	case []string:
		raw = value
	case []any:
		for _, item := range value {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	out := make([]string, 0, len(raw))
	for _, email := range raw {
		if email = util.NormalizeEmail(email); email != "" {
			out = append(out, email)
		}
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// tipoConhecido indica se o tipo legado ainda é reconhecido pela resolução de papel.
func tipoConhecido(tipo string) bool {
	switch tipo {
	case identity.TipoLider, identity.TipoFuncionario, identity.TipoTrabalhador:
		return true
	}
	return false
}
