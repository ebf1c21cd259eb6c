package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/prefsb/demandas/internal/identity"
)

// RoleResolver resolve o papel atual de um principal.
type RoleResolver interface {
	Resolve(ctx context.Context, p identity.Principal) (identity.Resolution, error)
}

// Resolve recalcula o papel a cada requisição, de modo que mudanças no
// registro de usuário valem antes de o token expirar. Principais sem papel
// recebem 403 com a mensagem da resolução.
func Resolve(resolver RoleResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := identity.Principal{UID: GetSubject(ctx), Email: GetEmail(ctx)}
			if principal.UID == "" {
				writeError(w, http.StatusUnauthorized, "AUTH", "subject inválido")
				return
			}

			res, err := resolver.Resolve(ctx, principal)
			if err != nil {
				log.Error().Err(err).Str("uid", principal.UID).Msg("falha ao resolver papel")
				writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
				return
			}
			if !res.Authorized() {
				writeError(w, http.StatusForbidden, "FORBIDDEN", res.Message)
				return
			}

			ctx = context.WithValue(ctx, ContextKeyRole, res.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
