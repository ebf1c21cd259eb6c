package identity

import (
	"context"
	"strings"

	"github.com/prefsb/demandas/internal/util"
)

// Principal é a identidade devolvida pelo provedor de contas.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Provider abstrai o provedor de contas (local ou Firebase).
// CreateAccount nunca altera a sessão de quem chama.
type Provider interface {
	SignIn(ctx context.Context, email, senha string) (Principal, error)
	CreateAccount(ctx context.Context, email, senha string) (Principal, error)
	DeleteAccount(ctx context.Context, uid string) error
	SendPasswordReset(ctx context.Context, email string) error
}

// PasswordResetter é implementado por provedores que concluem a redefinição no servidor.
type PasswordResetter interface {
	ResetPassword(ctx context.Context, token, novaSenha string) error
}

func checkSignInInput(email, senha string) (string, error) {
	email = util.NormalizeEmail(email)
	if err := util.ValidateEmail(email); err != nil {
		return "", NewAuthError(CodeInvalidEmail, err)
	}
	if senha == "" {
		return "", NewAuthError(CodeInvalidCredential, nil)
	}
	return email, nil
}

func checkAccountInput(email, senha string) (string, error) {
	email = util.NormalizeEmail(email)
	if err := util.ValidateEmail(email); err != nil {
		return "", NewAuthError(CodeInvalidEmail, err)
	}
	if err := util.ValidatePassword(senha); err != nil {
		return "", NewAuthError(CodeWeakPassword, err)
	}
	return email, nil
}

func checkResetInput(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", NewAuthError(CodeMissingEmail, nil)
	}
	if err := util.ValidateEmail(email); err != nil {
		return "", NewAuthError(CodeInvalidEmail, err)
	}
	return util.NormalizeEmail(email), nil
}
