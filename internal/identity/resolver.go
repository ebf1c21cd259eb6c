package identity

import (
	"context"
	"strings"
)

// RoleSource lê o tipo do registro de usuário pelo uid do provedor.
type RoleSource interface {
	TipoByUID(ctx context.Context, uid string) (tipo string, found bool, err error)
}

// Resolution é o resultado da resolução de papel.
type Resolution struct {
	Role    Role   `json:"role"`
	Message string `json:"message,omitempty"`
}

// Authorized indica se o principal recebeu um papel utilizável.
func (r Resolution) Authorized() bool {
	return r.Role != RoleNaoAutorizado
}

// Resolver decide o papel de um principal autenticado.
type Resolver struct {
	admins map[string]struct{}
	source RoleSource
}

// NewResolver cria o resolvedor com a lista de administradores injetada.
func NewResolver(adminEmails []string, source RoleSource) *Resolver {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			admins[email] = struct{}{}
		}
	}
	return &Resolver{admins: admins, source: source}
}

// IsAdmin compara o e-mail com a lista de administradores sem diferenciar maiúsculas.
func (r *Resolver) IsAdmin(email string) bool {
	_, ok := r.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Resolve aplica a regra: administrador pela lista, senão o tipo do registro de usuário.
// Administradores não passam pelo armazenamento.
func (r *Resolver) Resolve(ctx context.Context, p Principal) (Resolution, error) {
	if r.IsAdmin(p.Email) {
		return Resolution{Role: RoleAdministrador}, nil
	}

	tipo, found, err := r.source.TipoByUID(ctx, p.UID)
	if err != nil {
		return Resolution{}, err
	}
	if !found {
		return Resolution{Role: RoleNaoAutorizado, Message: MsgUsuarioNaoEncontrado}, nil
	}

	role, msg := RoleFromTipo(tipo)
	return Resolution{Role: role, Message: msg}, nil
}
