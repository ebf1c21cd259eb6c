package demanda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prefsb/demandas/internal/feed"
	"github.com/prefsb/demandas/internal/identity"
	"github.com/prefsb/demandas/internal/storage"
	"github.com/prefsb/demandas/internal/util"
)

// Roster responde perguntas sobre equipes e líderes.
type Roster interface {
	IsOnRoster(ctx context.Context, leaderEmail, workerEmail string) (bool, error)
	IsLeader(ctx context.Context, email string) (bool, error)
}

// Service concentra o fluxo de status, a atribuição e as consultas por papel.
type Service struct {
	store    Store
	roster   Roster
	uploader storage.Uploader
	loc      *time.Location
	now      func() time.Time
}

// NewService cria o serviço; loc define o fuso dos relatórios mensais.
func NewService(store Store, roster Roster, uploader storage.Uploader, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, roster: roster, uploader: uploader, loc: loc, now: util.Now}
}

// Location devolve o fuso usado em relatórios e filtros por data.
func (s *Service) Location() *time.Location {
	return s.loc
}

// AdvanceStatus grava o sucessor do status informado pelo chamador. O registro
// só é lido para conferir a visibilidade do ator; o sucessor vem de current e
// não há verificação de versão, então chamadas concorrentes sobre o mesmo id
// ficam com a última escrita.
func (s *Service) AdvanceStatus(ctx context.Context, actor Actor, id, current string) (string, error) {
	next, err := Next(current)
	if err != nil {
		return "", err
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return "", err
	}
	if err := s.store.UpdateStatus(ctx, id, next); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
		log.Error().Err(err).Str("id", id).Str("status", next).Msg("falha ao atualizar status")
		return "", fmt.Errorf("%w: %v", ErrStatusUpdate, err)
	}
	return next, nil
}

// Create registra uma nova demanda em Início.
// Pelo administrador, os responsáveis são líderes e o solicitante fica em branco;
// pelo líder, são funcionários da própria equipe e o solicitante é o líder.
func (s *Service) Create(ctx context.Context, actor Actor, input CreateInput) (*Demanda, error) {
	input.trim()
	visita := normalizeEmails(input.ResponsavelVisita)

	assigneeMsg := MsgTrabalhadorObrigatorio
	if actor.Role == identity.RoleAdministrador {
		assigneeMsg = MsgLiderObrigatorio
	}

	if err := util.ValidateStruct(input.Fields); err != nil {
		var fields util.FieldErrors
		if !errors.As(err, &fields) {
			return nil, err
		}
		if len(visita) == 0 {
			fields["responsavelVisita"] = "campo obrigatório"
		}
		return nil, &ValidationError{Message: MsgCamposObrigatorios, Fields: fields}
	}
	if len(visita) == 0 {
		return nil, &ValidationError{Message: assigneeMsg, Fields: util.FieldErrors{"responsavelVisita": "campo obrigatório"}}
	}

	d := Demanda{
		Data:              input.Data,
		HoraInicio:        input.HoraInicio,
		Termino:           input.Termino,
		Local:             input.Local,
		Bairro:            input.Bairro,
		Secretaria:        input.Secretaria,
		Departamento:      input.Departamento,
		Objetivo:          input.Objetivo,
		Avaliacao:         input.Avaliacao,
		Status:            StatusInicio,
		ResponsavelVisita: visita,
	}

	switch actor.Role {
	case identity.RoleAdministrador:
		for _, email := range visita {
			ok, err := s.roster.IsLeader(ctx, email)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrResponsavelInvalido
			}
		}
		d.LiderEmail = visita[0]
	case identity.RoleLider:
		for _, email := range visita {
			ok, err := s.roster.IsOnRoster(ctx, actor.Email, email)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrForaDaEquipe
			}
		}
		d.ResponsavelSolicitacao = actor.Email
		d.LiderEmail = actor.Email
	default:
		return nil, ErrForbidden
	}

	// a foto sobe antes do registro; se o registro falhar o objeto fica órfão
	if input.Imagem != nil && len(input.Imagem.Body) > 0 {
		url, err := s.upload(ctx, storage.TimestampKey(s.now()), input.Imagem)
		if err != nil {
			return nil, err
		}
		d.ImagemURL = url
	}

	created, err := s.store.Create(ctx, d)
	if err != nil {
		log.Error().Err(err).Str("actor", actor.Email).Msg("falha ao criar demanda")
		return nil, fmt.Errorf("%w: %v", ErrSalvar, err)
	}
	return &created, nil
}

func (s *Service) upload(ctx context.Context, key string, img *Image) (string, error) {
	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	res, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:          key,
		Body:         img.Body,
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000",
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("falha no upload da foto")
		return "", fmt.Errorf("%w: %v", ErrSalvar, err)
	}
	return res.URL, nil
}

// Edit sobrescreve os campos descritivos da demanda. O status pode ir para
// qualquer valor do ciclo sem passar pela sequência; responsáveis e imagem só
// mudam quando o formulário os traz.
func (s *Service) Edit(ctx context.Context, actor Actor, id string, input EditInput) (*Demanda, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	e := Edit{
		Fields: Fields{
			Data: input.Data, HoraInicio: input.HoraInicio, Termino: input.Termino,
			Local: input.Local, Bairro: input.Bairro, Secretaria: input.Secretaria,
			Departamento: input.Departamento, Objetivo: input.Objetivo, Avaliacao: input.Avaliacao,
		},
		ResponsavelSolicitacao: util.NormalizeEmail(input.ResponsavelSolicitacao),
		ResponsavelVisita:      normalizeEmails(input.ResponsavelVisita),
		ImagemURL:              strings.TrimSpace(input.ImagemURL),
	}
	// responsáveis e foto ausentes no formulário mantêm o valor gravado
	if len(e.ResponsavelVisita) == 0 {
		e.ResponsavelVisita = current.ResponsavelVisita
	}
	if e.ResponsavelSolicitacao == "" {
		e.ResponsavelSolicitacao = current.ResponsavelSolicitacao
	}
	if e.ImagemURL == "" {
		e.ImagemURL = current.ImagemURL
	}
	e.trim()
	input.Local, input.Bairro, input.Objetivo = e.Local, e.Bairro, e.Objetivo

	if err := util.ValidateStruct(input); err != nil {
		var fields util.FieldErrors
		if !errors.As(err, &fields) {
			return nil, err
		}
		return nil, &ValidationError{Message: MsgEdicaoIncompleta, Fields: fields}
	}

	e.Status = NormalizeStatus(input.Status)
	if !IsCanonical(e.Status) {
		return nil, ErrStatusInvalido
	}

	if input.Imagem != nil && len(input.Imagem.Body) > 0 {
		url, err := s.upload(ctx, storage.UniqueKey(), input.Imagem)
		if err != nil {
			return nil, err
		}
		e.ImagemURL = url
	}

	if err := s.store.UpdateFields(ctx, id, e); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		log.Error().Err(err).Str("id", id).Msg("falha ao editar demanda")
		return nil, fmt.Errorf("%w: %v", ErrSalvar, err)
	}

	updated := *current
	updated.Data, updated.HoraInicio, updated.Termino = e.Data, e.HoraInicio, e.Termino
	updated.Local, updated.Bairro, updated.Secretaria = e.Local, e.Bairro, e.Secretaria
	updated.Departamento, updated.Objetivo, updated.Avaliacao = e.Departamento, e.Objetivo, e.Avaliacao
	updated.Status = e.Status
	updated.ResponsavelSolicitacao = e.ResponsavelSolicitacao
	updated.ResponsavelVisita = e.ResponsavelVisita
	updated.ImagemURL = e.ImagemURL
	return &updated, nil
}

// Reassign entrega a demanda a um único funcionário da equipe de quem atribui
// e marca o status como Designada. O líder só alcança demandas da própria
// lista de pendentes; o administrador, qualquer demanda em Início.
func (s *Service) Reassign(ctx context.Context, actor Actor, id, workerEmail string) (*Demanda, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrTarefaObrigatoria
	}
	worker := util.NormalizeEmail(workerEmail)
	if worker == "" {
		return nil, ErrFuncionarioObrigatorio
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !reassignable(actor, current) {
		return nil, ErrNotFound
	}

	ok, err := s.roster.IsOnRoster(ctx, actor.Email, worker)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForaDaEquipe
	}

	if err := s.store.Reassign(ctx, id, Assignment{Worker: worker, AtribuidorEmail: actor.Email, At: s.now()}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		log.Error().Err(err).Str("id", id).Str("worker", worker).Msg("falha ao atribuir demanda")
		return nil, fmt.Errorf("%w: %v", ErrSalvar, err)
	}

	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func reassignable(actor Actor, d Demanda) bool {
	switch actor.Role {
	case identity.RoleAdministrador:
		return NormalizeStatus(d.Status) == StatusInicio
	case identity.RoleLider:
		return PendingFilter(actor.Email).Match(d)
	default:
		return false
	}
}

// Delete remove a demanda apenas com confirmação explícita.
func (s *Service) Delete(ctx context.Context, actor Actor, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmacaoObrigatoria
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Get devolve a demanda se ela estiver no escopo de visibilidade do ator.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*Demanda, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Visible(actor, d) {
		return nil, ErrNotFound
	}
	return &d, nil
}

// Visible informa se alguma das consultas do papel alcança a demanda.
func Visible(actor Actor, d Demanda) bool {
	for _, f := range VisibilityFilters(actor.Role, actor.Email) {
		if f.Match(d) {
			return true
		}
	}
	return false
}

// ListVisible une as consultas do papel sem repetir demandas.
func (s *Service) ListVisible(ctx context.Context, actor Actor) ([]Demanda, error) {
	filters := VisibilityFilters(actor.Role, actor.Email)
	if len(filters) == 0 {
		return nil, ErrForbidden
	}
	lists := make([][]Demanda, 0, len(filters))
	for _, f := range filters {
		list, err := s.store.List(ctx, f)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return MergeByID(lists...), nil
}

// ListPending lista demandas em Início atribuídas ao ator.
func (s *Service) ListPending(ctx context.Context, actor Actor) ([]Demanda, error) {
	list, err := s.store.List(ctx, PendingFilter(actor.Email))
	if err != nil {
		return nil, err
	}
	SortByCreatedDesc(list)
	return list, nil
}

// Watch abre uma assinatura por consulta do papel e entrega o conjunto
// combinado a cada mudança. As entregas são serializadas na ordem do merge,
// então onSnapshot nunca recebe um conjunto mais antigo depois de um mais novo.
// onSnapshot não deve bloquear.
func (s *Service) Watch(ctx context.Context, actor Actor, src feed.Source, onSnapshot func([]Demanda), onError func(error)) (feed.Unsubscribe, error) {
	filters := VisibilityFilters(actor.Role, actor.Email)
	if len(filters) == 0 {
		return nil, ErrForbidden
	}

	merger := feed.NewMerger[Demanda]()
	var deliverMu sync.Mutex
	unsubs := make([]feed.Unsubscribe, 0, len(filters))
	closeAll := func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}

	for i, f := range filters {
		source := fmt.Sprintf("consulta-%d", i)
		filter := f
		unsub, err := feed.Subscribe(ctx, src, Collection,
			func(ctx context.Context) ([]Demanda, error) { return s.store.List(ctx, filter) },
			func(items []Demanda) {
				deliverMu.Lock()
				defer deliverMu.Unlock()
				merged := merger.Replace(source, items)
				SortByCreatedDesc(merged)
				onSnapshot(merged)
			},
			onError,
		)
		if err != nil {
			closeAll()
			return nil, err
		}
		unsubs = append(unsubs, unsub)
	}
	return closeAll, nil
}

// MonthlyReport conta as finalizadas do escopo por mês de criação.
func (s *Service) MonthlyReport(ctx context.Context, actor Actor) ([]MonthCount, error) {
	list, err := s.finished(ctx, actor)
	if err != nil {
		return nil, err
	}
	return MonthlyCounts(list, s.loc), nil
}

// FinishedReport lista as finalizadas do escopo criadas no intervalo.
func (s *Service) FinishedReport(ctx context.Context, actor Actor, from, to *time.Time) ([]Demanda, error) {
	list, err := s.finished(ctx, actor)
	if err != nil {
		return nil, err
	}
	return FilterByCreatedRange(list, from, to), nil
}

func (s *Service) finished(ctx context.Context, actor Actor) ([]Demanda, error) {
	filter, err := ReportFilter(actor)
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, filter)
}
