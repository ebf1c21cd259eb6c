package identity

import (
	"errors"
	"fmt"
)

// Códigos de erro do provedor de contas.
const (
	CodeInvalidEmail      = "invalid-email"
	CodeWrongPassword     = "wrong-password"
	CodeUserNotFound      = "user-not-found"
	CodeTooManyRequests   = "too-many-requests"
	CodeInvalidCredential = "invalid-credential"
	CodeEmailInUse        = "email-already-in-use"
	CodeWeakPassword      = "weak-password"
	CodeMissingEmail      = "missing-email"
)

// Operation identifica o fluxo em que o erro ocorreu; a mensagem depende dele.
type Operation int

const (
	OpLogin Operation = iota
	OpCadastro
	OpResetSenha
)

var (
	// ErrUnauthorized indica principal autenticado sem papel utilizável.
	ErrUnauthorized = errors.New("usuário sem acesso")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
	// ErrResetInvalid indica token de redefinição inválido ou expirado.
	ErrResetInvalid = errors.New("link de redefinição inválido ou expirado")
	// ErrResetUnsupported indica que o provedor não confirma redefinições localmente.
	ErrResetUnsupported = errors.New("redefinição de senha é concluída pelo link enviado por e-mail")
)

// AuthError representa falha do provedor de contas com código estável.
type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth/%s: %v", e.Code, e.Err)
	}
	return "auth/" + e.Code
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError cria AuthError com o código informado.
func NewAuthError(code string, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

// AuthCode extrai o código de um AuthError encadeado, ou "" se não houver.
func AuthCode(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Message devolve o texto exibido ao usuário para o erro na operação.
func Message(op Operation, err error) string {
	code := AuthCode(err)
	switch op {
	case OpLogin:
		switch code {
		case CodeUserNotFound:
			return "Usuário não encontrado."
		case CodeWrongPassword:
			return "Senha incorreta."
		case CodeInvalidEmail:
			return "Email inválido."
		case CodeTooManyRequests:
			return "Muitas tentativas de login. Tente mais tarde."
		case CodeInvalidCredential:
			return "Credenciais inválidas. Verifique email e senha."
		}
		return "Falha ao fazer login."
	case OpCadastro:
		switch code {
		case CodeEmailInUse:
			return "Este e-mail já possui uma conta."
		case CodeInvalidEmail:
			return "E-mail inválido."
		case CodeWeakPassword:
			return "A senha deve ter pelo menos 6 caracteres."
		}
		return "Erro ao criar conta."
	case OpResetSenha:
		switch code {
		case CodeInvalidEmail:
			return "E-mail inválido."
		case CodeUserNotFound:
			return "Nenhum usuário encontrado com este e-mail."
		case CodeMissingEmail:
			return "Digite seu e-mail."
		}
		return "Erro ao enviar email de redefinição."
	}
	return "Erro de autenticação."
}
