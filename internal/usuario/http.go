package usuario

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/prefsb/demandas/internal/http/middleware"
	"github.com/prefsb/demandas/internal/identity"
)

// Handler expõe administração de usuários e gestão de equipe.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registra as rotas; o roteador já aplicou Auth e Resolve.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/usuarios", func(r chi.Router) {
		r.With(httpmiddleware.RequireRoles(identity.RoleAdministrador)).Get("/", h.handleList)
		r.With(httpmiddleware.RequireRoles(identity.RoleAdministrador)).Post("/", h.handleCreate)
		r.With(httpmiddleware.RequireRoles(identity.RoleAdministrador)).Get("/lideres", h.handleListLeaders)
		r.With(httpmiddleware.RequireRoles(identity.RoleAdministrador)).Patch("/{id}", h.handleUpdate)
		r.With(httpmiddleware.RequireRoles(identity.RoleAdministrador, identity.RoleLider)).Delete("/{id}", h.handleDelete)
	})

	r.Route("/equipe", func(r chi.Router) {
		r.Use(httpmiddleware.RequireRoles(identity.RoleAdministrador, identity.RoleLider))
		r.Get("/", h.handleRoster)
		r.Patch("/{id}", h.handleUpdateWorkerEmail)
		r.Get("/autorizacoes", h.handleListPending)
		r.Post("/autorizacoes", h.handleAuthorize)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"usuarios": users})
}

func (h *Handler) handleListLeaders(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListLeaders(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lideres": users})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateUserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	user, err := h.service.CreateUser(r.Context(), httpmiddleware.GetEmail(r.Context()), input)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	log.Info().Str("admin", httpmiddleware.GetEmail(r.Context())).Str("email", user.Email).Str("tipo", user.Tipo).Msg("usuário criado")
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var input UpdateUserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirmar"))
	actor := Actor{Email: httpmiddleware.GetEmail(r.Context()), Role: httpmiddleware.GetRole(r.Context())}

	if err := h.service.DeleteUser(r.Context(), actor, chi.URLParam(r, "id"), confirmed); err != nil {
		handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListRoster(r.Context(), httpmiddleware.GetEmail(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"equipe": users})
}

func (h *Handler) handleUpdateWorkerEmail(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	user, err := h.service.UpdateWorkerEmail(r.Context(), httpmiddleware.GetEmail(r.Context()), chi.URLParam(r, "id"), payload.Email)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.ListPending(r.Context(), httpmiddleware.GetEmail(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"autorizacoes": pending})
}

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	pending, err := h.service.AuthorizeWorker(r.Context(), httpmiddleware.GetEmail(r.Context()), payload.Email)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pending)
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrEmailCadastrado):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrForaDaEquipe), errors.Is(err, ErrNaoAutorizado):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, ErrCadastroIncompleto), errors.Is(err, ErrCriacaoIncompleta),
		errors.Is(err, ErrEmailObrigatorio), errors.Is(err, ErrTipoInvalido),
		errors.Is(err, ErrConfirmacaoObrigatoria):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case identity.AuthCode(err) == identity.CodeEmailInUse:
		writeError(w, http.StatusConflict, "CONFLICT", identity.Message(identity.OpCadastro, err), nil)
	case identity.AuthCode(err) != "":
		writeError(w, http.StatusBadRequest, "VALIDATION", identity.Message(identity.OpCadastro, err), nil)
	default:
		log.Error().Err(err).Msg("usuario handler error")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}

// Helpers de resposta JSON compatíveis com o resto do projeto.
type successEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

type errorEnvelope struct {
	Data  any            `json:"data"`
	Error *errorResponse `json:"error"`
}

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successEnvelope{Data: payload, Error: nil})
}

func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Data: nil, Error: &errorResponse{Code: code, Message: message, Details: details}})
}
