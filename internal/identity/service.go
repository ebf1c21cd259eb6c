package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prefsb/demandas/internal/auth"
	"github.com/prefsb/demandas/internal/util"
)

// AccessDeniedError carrega a mensagem da resolução de papel negada.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string {
	return e.Message
}

func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	RefreshExpiry time.Time
	Principal     Principal
	Role          Role
}

// Service concentra login, sessões e redefinição de senha.
type Service struct {
	provider   Provider
	resolver   *Resolver
	jwt        *auth.JWTManager
	redis      redis.Cmdable
	refreshTTL time.Duration
}

// NewService cria novo serviço.
func NewService(provider Provider, resolver *Resolver, jwtMgr *auth.JWTManager, client redis.Cmdable, refreshTTL time.Duration) *Service {
	return &Service{provider: provider, resolver: resolver, jwt: jwtMgr, redis: client, refreshTTL: refreshTTL}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *Service) JWT() *auth.JWTManager {
	return s.jwt
}

// Provider expõe o provedor de contas para criação administrativa.
func (s *Service) Provider() Provider {
	return s.provider
}

// Login autentica e só emite sessão para principais com papel.
func (s *Service) Login(ctx context.Context, email, senha string) (*LoginResult, error) {
	principal, err := s.provider.SignIn(ctx, email, senha)
	if err != nil {
		return nil, err
	}
	return s.LoginWithPrincipal(ctx, principal)
}

// LoginWithPrincipal resolve o papel e emite tokens; usado também pela biometria.
func (s *Service) LoginWithPrincipal(ctx context.Context, p Principal) (*LoginResult, error) {
	res, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if !res.Authorized() {
		return nil, &AccessDeniedError{Message: res.Message}
	}

	token, _, err := s.jwt.GenerateAccessToken(p.UID, p.Email, string(res.Role))
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, auth.RefreshRedisKey(refreshHash), payload, s.refreshTTL).Err(); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		RefreshExpiry: util.Now().Add(s.refreshTTL),
		Principal:     p,
		Role:          res.Role,
	}, nil
}

// Refresh consome o refresh atual e emite um novo par, resolvendo o papel de novo.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}
	raw, err := s.redis.GetDel(ctx, auth.RefreshRedisKey(auth.HashRefreshToken(rawToken))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	var p Principal
	if err := json.Unmarshal(raw, &p); err != nil || p.UID == "" {
		return nil, ErrRefreshInvalid
	}
	return s.LoginWithPrincipal(ctx, p)
}

// Logout revoga o refresh token informado.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return s.redis.Del(ctx, auth.RefreshRedisKey(auth.HashRefreshToken(rawToken))).Err()
}

// Resolve reavalia o papel do principal no armazenamento atual.
func (s *Service) Resolve(ctx context.Context, p Principal) (Resolution, error) {
	return s.resolver.Resolve(ctx, p)
}

// RequestPasswordReset dispara o envio do link de redefinição.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	return s.provider.SendPasswordReset(ctx, email)
}

// ResetPassword conclui a redefinição quando o provedor suporta.
func (s *Service) ResetPassword(ctx context.Context, token, novaSenha string) error {
	resetter, ok := s.provider.(PasswordResetter)
	if !ok {
		return ErrResetUnsupported
	}
	return resetter.ResetPassword(ctx, token, novaSenha)
}
