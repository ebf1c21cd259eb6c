package demanda

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/prefsb/demandas/internal/feed"
	httpmiddleware "github.com/prefsb/demandas/internal/http/middleware"
	"github.com/prefsb/demandas/internal/identity"
)

const (
	maxImageBytes     = 10 << 20
	streamKeepAlive   = 25 * time.Second
	eventSnapshot     = "snapshot"
	eventStreamFailed = "erro"
)

// Handler expõe demandas e relatórios.
type Handler struct {
	service *Service
	source  feed.Source
}

func NewHandler(service *Service, source feed.Source) *Handler {
	return &Handler{service: service, source: source}
}

// RegisterRoutes registra as rotas; o roteador já aplicou Auth e Resolve.
func (h *Handler) RegisterRoutes(r chi.Router) {
	managers := httpmiddleware.RequireRoles(identity.RoleAdministrador, identity.RoleLider)

	r.Route("/demandas", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/stream", h.handleStream)
		r.Get("/pendentes", h.handlePending)
		r.With(managers).Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/status", h.handleAdvanceStatus)
		r.With(managers).Put("/{id}", h.handleEdit)
		r.With(managers).Post("/{id}/atribuir", h.handleReassign)
		r.With(managers).Delete("/{id}", h.handleDelete)
	})

	r.Route("/relatorios", func(r chi.Router) {
		r.Use(managers)
		r.Get("/mensal", h.handleMonthly)
		r.Get("/finalizadas", h.handleFinished)
	})
}

func actorFrom(r *http.Request) Actor {
	return Actor{Email: httpmiddleware.GetEmail(r.Context()), Role: httpmiddleware.GetRole(r.Context())}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListVisible(r.Context(), actorFrom(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"demandas": list})
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPending(r.Context(), actorFrom(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"demandas": list})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Atual string `json:"atual"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	id := chi.URLParam(r, "id")
	next, err := h.service.AdvanceStatus(r.Context(), actorFrom(r), id, payload.Atual)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": next})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if isMultipart(r) {
		img, err := parseMultipart(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return
		}
		input.Fields = fieldsFromForm(r)
		input.ResponsavelVisita = r.MultipartForm.Value["responsavelVisita"]
		input.Imagem = img
	} else if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	d, err := h.service.Create(r.Context(), actorFrom(r), input)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	log.Info().Str("id", d.ID).Str("actor", httpmiddleware.GetEmail(r.Context())).Msg("demanda criada")
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	var input EditInput
	if isMultipart(r) {
		img, err := parseMultipart(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return
		}
		f := fieldsFromForm(r)
		input = EditInput{
			Data: f.Data, HoraInicio: f.HoraInicio, Termino: f.Termino, Local: f.Local,
			Bairro: f.Bairro, Secretaria: f.Secretaria, Departamento: f.Departamento,
			Objetivo: f.Objetivo, Avaliacao: f.Avaliacao,
			Status:                 r.FormValue("status"),
			ResponsavelSolicitacao: r.FormValue("responsavelSolicitacao"),
			ResponsavelVisita:      r.MultipartForm.Value["responsavelVisita"],
			ImagemURL:              r.FormValue("imagemUrl"),
			Imagem:                 img,
		}
	} else if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	d, err := h.service.Edit(r.Context(), actorFrom(r), chi.URLParam(r, "id"), input)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleReassign(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Funcionario string `json:"funcionario"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	d, err := h.service.Reassign(r.Context(), actorFrom(r), chi.URLParam(r, "id"), payload.Funcionario)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirmar"))
	if err := h.service.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id"), confirmed); err != nil {
		handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.MonthlyReport(r.Context(), actorFrom(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meses": counts})
}

func (h *Handler) handleFinished(w http.ResponseWriter, r *http.Request) {
	loc := h.service.Location()
	from, err := parseBound(r.URL.Query().Get("de"), loc, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "data inicial inválida", nil)
		return
	}
	to, err := parseBound(r.URL.Query().Get("ate"), loc, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "data final inválida", nil)
		return
	}

	list, err := h.service.FinishedReport(r.Context(), actorFrom(r), from, to)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"demandas": list, "total": len(list)})
}

// parseBound aceita RFC3339 ou AAAA-MM-DD; uma data sem hora como limite
// final cobre o dia inteiro.
func parseBound(value string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}

// handleStream mantém um SSE com o conjunto visível completo a cada mudança.
// As assinaturas são encerradas quando o cliente desconecta.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "streaming não suportado", nil)
		return
	}
	ctx := r.Context()

	var (
		mu     sync.Mutex
		latest []Demanda
		failed error
	)
	notify := make(chan struct{}, 1)
	signal := func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	}

	unsub, err := h.service.Watch(ctx, actorFrom(r), h.source,
		func(items []Demanda) {
			mu.Lock()
			latest = items
			mu.Unlock()
			signal()
		},
		func(err error) {
			mu.Lock()
			failed = err
			mu.Unlock()
			signal()
		},
	)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	defer unsub()

	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-notify:
			mu.Lock()
			items, streamErr := latest, failed
			latest, failed = nil, nil
			mu.Unlock()

			if streamErr != nil {
				log.Error().Err(streamErr).Str("email", httpmiddleware.GetEmail(ctx)).Msg("falha na consulta do stream")
				if err := writeEvent(w, eventStreamFailed, map[string]string{"message": "Falha ao carregar demandas"}); err != nil {
					return
				}
			}
			if items != nil {
				if err := writeEvent(w, eventSnapshot, items); err != nil {
					return
				}
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
	return err
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func parseMultipart(w http.ResponseWriter, r *http.Request) (*Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, errors.New("formulário inválido")
	}

	file, header, err := r.FormFile("imagem")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errors.New("imagem inválida")
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, errors.New("imagem inválida")
	}
	if len(body) > maxImageBytes {
		return nil, errors.New("imagem excede 10MB")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errors.New("arquivo deve ser uma imagem")
	}
	return &Image{Body: body, ContentType: contentType}, nil
}

func fieldsFromForm(r *http.Request) Fields {
	return Fields{
		Data:         r.FormValue("data"),
		HoraInicio:   r.FormValue("horaInicio"),
		Termino:      r.FormValue("termino"),
		Local:        r.FormValue("local"),
		Bairro:       r.FormValue("bairro"),
		Secretaria:   r.FormValue("secretaria"),
		Departamento: r.FormValue("departamento"),
		Objetivo:     r.FormValue("objetivo"),
		Avaliacao:    r.FormValue("avaliacao"),
	}
}

func handleDomainError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "VALIDATION", verr.Message, verr.Fields)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrForaDaEquipe):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStatusInvalido),
		errors.Is(err, ErrFuncionarioObrigatorio), errors.Is(err, ErrTarefaObrigatoria),
		errors.Is(err, ErrConfirmacaoObrigatoria), errors.Is(err, ErrResponsavelInvalido):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrStatusUpdate):
		writeError(w, http.StatusInternalServerError, "INTERNAL", ErrStatusUpdate.Error(), nil)
	case errors.Is(err, ErrSalvar):
		writeError(w, http.StatusInternalServerError, "INTERNAL", ErrSalvar.Error(), nil)
	default:
		log.Error().Err(err).Msg("demanda handler error")
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
