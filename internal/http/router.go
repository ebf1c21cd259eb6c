package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/prefsb/demandas/internal/config"
	httpmiddleware "github.com/prefsb/demandas/internal/http/middleware"
	"github.com/prefsb/demandas/internal/identity"
	"github.com/prefsb/demandas/internal/usuario"
)

// RouteRegistrar é implementado pelos handlers de domínio montados na área autenticada.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Registrar conclui o auto-cadastro de funcionários pré-autorizados.
type Registrar interface {
	SelfRegister(ctx context.Context, email, senha string) (*usuario.Usuario, error)
}

// PasskeyStore persiste as credenciais biométricas.
type PasskeyStore interface {
	ListByUID(ctx context.Context, uid string) ([]identity.PasskeyCredential, error)
	ListByEmail(ctx context.Context, email string) ([]identity.PasskeyCredential, error)
	GetByCredentialID(ctx context.Context, credentialID []byte) (identity.PasskeyCredential, error)
	Create(ctx context.Context, pk identity.PasskeyCredential) (identity.PasskeyCredential, error)
	UpdateCounter(ctx context.Context, id string, signCount uint32, cloned bool) error
}

// Deps agrupa os serviços já construídos em cmd/api.
type Deps struct {
	Identity  *identity.Service
	Passkeys  PasskeyStore
	Registrar Registrar
	Modules   []RouteRegistrar
}

type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	identity      *identity.Service
	passkeys      PasskeyStore
	registrar     Registrar
	webauthn      *webauthn.WebAuthn
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

const refreshCookieName = "demandas"

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, deps Deps) (http.Handler, error) {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.WebAuthnRPName,
		RPID:          cfg.WebAuthnRPID,
		RPOrigins:     []string{cfg.WebAuthnRPOrigin},
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		identity:      deps.Identity,
		passkeys:      deps.Passkeys,
		registrar:     deps.Registrar,
		webauthn:      wa,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Login)
			auth.Post("/cadastro", h.Cadastro)
			auth.Post("/senha/reset", h.RequestPasswordReset)
			auth.Post("/senha/confirmar", h.ConfirmPasswordReset)
			auth.Post("/passkey/login/start", h.PasskeyLoginStart)
			auth.Post("/passkey/login/finish", h.PasskeyLoginFinish)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(h.identity.JWT()))
		private.Use(httpmiddleware.Resolve(h.identity))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)
		private.Route("/auth/passkey/register", func(r chi.Router) {
			r.Post("/start", h.PasskeyRegisterStart)
			r.Post("/finish", h.PasskeyRegisterFinish)
		})
		for _, module := range deps.Modules {
			module.RegisterRoutes(private)
		}
	})

	return r, nil
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.pool.Ping(ctx)
	redisErr := h.redis.Ping(ctx).Err()

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type credentialsPayload struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

// Login autentica por e-mail e senha e só emite sessão para quem tem papel.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	result, err := h.identity.Login(r.Context(), payload.Email, payload.Senha)
	if err != nil {
		h.handleAuthError(w, identity.OpLogin, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Cadastro cria a conta de um funcionário autorizado pelo líder e já inicia a sessão.
func (h *Handler) Cadastro(w http.ResponseWriter, r *http.Request) {
	var payload credentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	ctx := r.Context()
	if _, err := h.registrar.SelfRegister(ctx, payload.Email, payload.Senha); err != nil {
		switch {
		case errors.Is(err, usuario.ErrCadastroIncompleto):
			WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		case errors.Is(err, usuario.ErrNaoAutorizado):
			WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
		default:
			h.handleAuthError(w, identity.OpCadastro, err)
		}
		return
	}

	result, err := h.identity.Login(ctx, payload.Email, payload.Senha)
	if err != nil {
		h.handleAuthError(w, identity.OpLogin, err)
		return
	}

	h.writeLoginSuccess(w, http.StatusCreated, result)
}

// RequestPasswordReset envia o link de redefinição de senha.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if err := h.identity.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		h.handleAuthError(w, identity.OpResetSenha, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "Link de redefinição enviado para o seu e-mail.",
	})
}

// ConfirmPasswordReset troca a senha usando o token recebido por e-mail.
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
		Senha string `json:"senha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	err := h.identity.ResetPassword(r.Context(), payload.Token, payload.Senha)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, identity.ErrResetInvalid), errors.Is(err, identity.ErrResetUnsupported):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case identity.AuthCode(err) != "":
		WriteError(w, http.StatusBadRequest, "VALIDATION", identity.Message(identity.OpCadastro, err), nil)
	default:
		log.Error().Err(err).Msg("falha ao redefinir senha")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao redefinir senha", nil)
	}
}

// Refresh rotaciona o refresh token e reavalia o papel.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := getRefreshFromRequest(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.identity.Refresh(r.Context(), token)
	if err != nil {
		var denied *identity.AccessDeniedError
		switch {
		case errors.Is(err, identity.ErrRefreshInvalid):
			h.clearRefreshCookie(w)
			WriteError(w, http.StatusUnauthorized, "AUTH", "refresh inválido", nil)
		case errors.As(err, &denied):
			h.clearRefreshCookie(w)
			WriteError(w, http.StatusForbidden, "FORBIDDEN", denied.Message, nil)
		default:
			log.Error().Err(err).Msg("falha ao renovar sessão")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao renovar sessão", nil)
		}
		return
	}

	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Logout revoga refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, err := getRefreshFromRequest(r); err == nil {
		if err := h.identity.Logout(r.Context(), token); err != nil {
			log.Warn().Err(err).Msg("falha ao revogar refresh token")
		}
	}

	h.clearRefreshCookie(w)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna o principal autenticado com o papel resolvido nesta requisição.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	WriteJSON(w, http.StatusOK, map[string]any{
		"user": identity.Principal{
			UID:   httpmiddleware.GetSubject(ctx),
			Email: httpmiddleware.GetEmail(ctx),
		},
		"role": httpmiddleware.GetRole(ctx),
	})
}

func (h *Handler) handleAuthError(w http.ResponseWriter, op identity.Operation, err error) {
	var denied *identity.AccessDeniedError
	if errors.As(err, &denied) {
		WriteError(w, http.StatusForbidden, "FORBIDDEN", denied.Message, nil)
		return
	}

	code := identity.AuthCode(err)
	switch {
	case code == "":
		log.Error().Err(err).Msg("falha de autenticação")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", identity.Message(op, err), nil)
	case code == identity.CodeTooManyRequests:
		WriteError(w, http.StatusTooManyRequests, "RATE_LIMIT", identity.Message(op, err), nil)
	case code == identity.CodeEmailInUse:
		WriteError(w, http.StatusConflict, "CONFLICT", identity.Message(op, err), nil)
	case op == identity.OpLogin:
		WriteError(w, http.StatusUnauthorized, "AUTH", identity.Message(op, err), nil)
	case code == identity.CodeUserNotFound:
		WriteError(w, http.StatusNotFound, "NOT_FOUND", identity.Message(op, err), nil)
	default:
		WriteError(w, http.StatusBadRequest, "VALIDATION", identity.Message(op, err), nil)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, status int, result *identity.LoginResult) {
	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)

	WriteJSON(w, status, map[string]any{
		"access_token": result.AccessToken,
		"user":         result.Principal,
		"role":         result.Role,
	})
}

func getRefreshFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("refresh ausente")
}

func (h *Handler) refreshCookie(value string) *http.Cookie {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	cookie := h.refreshCookie(token)
	cookie.Expires = expires
	http.SetCookie(w, cookie)
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	cookie := h.refreshCookie("")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}
