package usuario

import (
	"errors"
	"time"
)

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("usuário não encontrado")
	// ErrNaoAutorizado indica cadastro sem autorização prévia do líder.
	ErrNaoAutorizado = errors.New("Você não está autorizado. Solicite ao líder que autorize seu cadastro.")
	// ErrCadastroIncompleto indica auto-cadastro sem e-mail ou senha.
	ErrCadastroIncompleto = errors.New("Preencha e-mail e senha para criar sua conta.")
	// ErrCriacaoIncompleta indica criação administrativa sem e-mail ou senha.
	ErrCriacaoIncompleta = errors.New("Preencha email e senha para o novo usuário.")
	// ErrEmailObrigatorio indica autorização sem e-mail.
	ErrEmailObrigatorio = errors.New("Informe o e-mail do funcionário.")
	// ErrEmailCadastrado indica e-mail que já possui registro de usuário.
	ErrEmailCadastrado = errors.New("Este e-mail já foi cadastrado.")
	// ErrTipoInvalido indica categoria diferente de lider ou trabalhador.
	ErrTipoInvalido = errors.New("categoria deve ser lider ou trabalhador")
	// ErrForaDaEquipe indica operação de líder sobre usuário de outra equipe.
	ErrForaDaEquipe = errors.New("funcionário não pertence à sua equipe")
	// ErrConfirmacaoObrigatoria indica exclusão sem confirmação explícita.
	ErrConfirmacaoObrigatoria = errors.New("confirme a exclusão do usuário")
)

// Usuario é o registro de perfil ligado a uma conta do provedor (id = uid).
type Usuario struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Nome       string    `json:"nome"`
	Tipo       string    `json:"tipo"`
	Papel      string    `json:"papel"`
	LiderEmail string    `json:"liderEmail"`
	CriadoEm   time.Time `json:"criadoEm"`
}

// AutorizacaoPendente é a pré-aprovação de auto-cadastro, chaveada pelo e-mail em minúsculas.
type AutorizacaoPendente struct {
	Email      string    `json:"email"`
	LiderEmail string    `json:"liderEmail"`
	Autorizado bool      `json:"autorizado"`
	CriadoEm   time.Time `json:"criadoEm"`
}

// Filter restringe a listagem de usuários.
type Filter struct {
	Tipos      []string
	LiderEmail string
}

// CreateUserInput é o payload da criação administrativa.
type CreateUserInput struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
	Tipo  string `json:"tipo" validate:"oneof=lider trabalhador"`
	Nome  string `json:"nome"`
}

// UpdateUserInput é o payload da edição administrativa.
type UpdateUserInput struct {
	Nome  string `json:"nome"`
	Papel string `json:"papel"`
}
