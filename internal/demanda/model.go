package demanda

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/prefsb/demandas/internal/identity"
	"github.com/prefsb/demandas/internal/util"
)

// Collection é o nome usado no feed de mudanças.
const Collection = "demandas"

// Valores de status. Designada só é gravado pela reatribuição e fica fora do ciclo.
const (
	StatusInicio      = "Início"
	StatusEmAndamento = "Em Andamento"
	StatusFinalizada  = "Finalizada"
	StatusDesignada   = "Designada"
)

var ring = map[string]string{
	StatusInicio:      StatusEmAndamento,
	StatusEmAndamento: StatusFinalizada,
	StatusFinalizada:  StatusInicio,
}

var (
	ErrNotFound               = errors.New("demanda não encontrada")
	ErrInvalidTransition      = errors.New("status fora do ciclo Início, Em Andamento, Finalizada")
	ErrStatusUpdate           = errors.New("Não foi possível atualizar o status.")
	ErrStatusInvalido         = errors.New("status deve ser Início, Em Andamento ou Finalizada")
	ErrSalvar                 = errors.New("Não foi possível salvar a demanda.")
	ErrFuncionarioObrigatorio = errors.New("Selecione um funcionário.")
	ErrTarefaObrigatoria      = errors.New("Nenhuma tarefa selecionada.")
	ErrForaDaEquipe           = errors.New("funcionário não pertence à sua equipe")
	ErrResponsavelInvalido    = errors.New("responsável selecionado não é líder")
	ErrConfirmacaoObrigatoria = errors.New("confirme a exclusão da demanda")
	ErrForbidden              = errors.New("sem acesso")
)

// Mensagens de validação exibidas ao usuário.
const (
	MsgCamposObrigatorios     = "Preencha os campos obrigatórios: Data, Local e Objetivo."
	MsgLiderObrigatorio       = "Selecione ao menos um líder responsável pela visita."
	MsgTrabalhadorObrigatorio = "Selecione pelo menos um trabalhador."
	MsgEdicaoIncompleta       = "Preencha os campos obrigatórios"
)

// ValidationError bloqueia a escrita e lista os campos que faltaram.
type ValidationError struct {
	Message string
	Fields  util.FieldErrors
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NormalizeStatus remove espaços e aplica NFC, de modo que "Início" composto
// ou decomposto compare igual.
func NormalizeStatus(status string) string {
	return norm.NFC.String(strings.TrimSpace(status))
}

// IsCanonical informa se o status pertence ao ciclo.
func IsCanonical(status string) bool {
	_, ok := ring[NormalizeStatus(status)]
	return ok
}

// Next devolve o sucessor no ciclo Início → Em Andamento → Finalizada → Início.
func Next(current string) (string, error) {
	next, ok := ring[NormalizeStatus(current)]
	if !ok {
		return "", ErrInvalidTransition
	}
	return next, nil
}

// Demanda é a ordem de serviço.
type Demanda struct {
	ID                     string     `json:"id"`
	Data                   string     `json:"data"`
	HoraInicio             string     `json:"horaInicio"`
	Termino                string     `json:"termino"`
	Local                  string     `json:"local"`
	Bairro                 string     `json:"bairro"`
	Secretaria             string     `json:"secretaria"`
	Departamento           string     `json:"departamento"`
	Objetivo               string     `json:"objetivo"`
	Avaliacao              string     `json:"avaliacao"`
	ImagemURL              string     `json:"imagemUrl"`
	Status                 string     `json:"status"`
	ResponsavelSolicitacao string     `json:"responsavelSolicitacao"`
	ResponsavelVisita      []string   `json:"responsavelVisita"`
	LiderEmail             string     `json:"liderEmail"`
	AtribuidorEmail        string     `json:"atribuidorEmail,omitempty"`
	DataAtribuicao         *time.Time `json:"dataAtribuicao,omitempty"`
	CreatedAt              *time.Time `json:"createdAt"`
}

// Key identifica a demanda no merge de assinaturas.
func (d Demanda) Key() string {
	return d.ID
}

// Fields são os campos descritivos gravados pela criação e pela edição.
type Fields struct {
	Data         string `json:"data" validate:"required"`
	HoraInicio   string `json:"horaInicio"`
	Termino      string `json:"termino"`
	Local        string `json:"local" validate:"required"`
	Bairro       string `json:"bairro"`
	Secretaria   string `json:"secretaria"`
	Departamento string `json:"departamento"`
	Objetivo     string `json:"objetivo" validate:"required"`
	Avaliacao    string `json:"avaliacao"`
}

func (f *Fields) trim() {
	f.Data = strings.TrimSpace(f.Data)
	f.HoraInicio = strings.TrimSpace(f.HoraInicio)
	f.Termino = strings.TrimSpace(f.Termino)
	f.Local = strings.TrimSpace(f.Local)
	f.Bairro = strings.TrimSpace(f.Bairro)
	f.Secretaria = strings.TrimSpace(f.Secretaria)
	f.Departamento = strings.TrimSpace(f.Departamento)
	f.Objetivo = strings.TrimSpace(f.Objetivo)
	f.Avaliacao = strings.TrimSpace(f.Avaliacao)
}

// Image é a foto opcional anexada à demanda.
type Image struct {
	Body        []byte
	ContentType string
}

// CreateInput é o formulário de nova demanda.
type CreateInput struct {
	Fields
	ResponsavelVisita []string `json:"responsavelVisita"`
	Imagem            *Image   `json:"-"`
}

// EditInput é o formulário de edição. Sobrescreve os campos descritivos e o
// status, que aqui pode receber qualquer valor do ciclo. Responsáveis e
// imagemUrl vazios preservam o que está gravado.
type EditInput struct {
	Data                   string   `json:"data"`
	HoraInicio             string   `json:"horaInicio"`
	Termino                string   `json:"termino"`
	Local                  string   `json:"local" validate:"required"`
	Bairro                 string   `json:"bairro" validate:"required"`
	Secretaria             string   `json:"secretaria"`
	Departamento           string   `json:"departamento"`
	Objetivo               string   `json:"objetivo" validate:"required"`
	Avaliacao              string   `json:"avaliacao"`
	Status                 string   `json:"status"`
	ResponsavelSolicitacao string   `json:"responsavelSolicitacao"`
	ResponsavelVisita      []string `json:"responsavelVisita"`
	ImagemURL              string   `json:"imagemUrl"`
	Imagem                 *Image   `json:"-"`
}

// Edit é o conjunto gravado pela edição.
type Edit struct {
	Fields
	Status                 string
	ResponsavelSolicitacao string
	ResponsavelVisita      []string
	ImagemURL              string
}

// Assignment é a reatribuição a um único funcionário.
type Assignment struct {
	Worker          string
	AtribuidorEmail string
	At              time.Time
}

// Actor identifica quem executa a operação.
type Actor struct {
	Email string
	Role  identity.Role
}

func normalizeEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		email = util.NormalizeEmail(email)
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}
