package demanda

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/prefsb/demandas/internal/feed"
	"github.com/prefsb/demandas/internal/identity"
)

var (
	admin  = Actor{Email: "admin@prefsb.com", Role: identity.RoleAdministrador}
	leader = Actor{Email: "lider@prefsb.com", Role: identity.RoleLider}
	worker = Actor{Email: "w1@prefsb.com", Role: identity.RoleTrabalhador}
)

func TestNextRing(t *testing.T) {
	status := StatusInicio
	for i := 0; i < 3; i++ {
		next, err := Next(status)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		status = next
	}
	if status != StatusInicio {
		t.Fatalf("expected ring to return to Início, got %s", status)
	}

	decomposed := norm.NFD.String(StatusInicio)
	if next, err := Next(decomposed); err != nil || next != StatusEmAndamento {
		t.Fatalf("decomposed Início should advance, got %q %v", next, err)
	}

	for _, invalid := range []string{StatusDesignada, "", "Cancelada"} {
		if _, err := Next(invalid); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%q: expected ErrInvalidTransition, got %v", invalid, err)
		}
	}
}

func TestAdvanceStatusStaysInRing(t *testing.T) {
	store := newMemStore(Demanda{ID: "d1", Status: StatusInicio})
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)

	for _, current := range []string{StatusInicio, StatusEmAndamento, StatusFinalizada} {
		next, err := svc.AdvanceStatus(context.Background(), admin, "d1", current)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !IsCanonical(next) {
			t.Fatalf("status %q outside ring", next)
		}
	}
}

func TestAdvanceStatusFailure(t *testing.T) {
	store := newMemStore(Demanda{ID: "d1", Status: StatusInicio})
	store.failUpdate = errors.New("conexão perdida")
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)

	if _, err := svc.AdvanceStatus(context.Background(), admin, "d1", StatusInicio); !errors.Is(err, ErrStatusUpdate) {
		t.Fatalf("expected ErrStatusUpdate, got %v", err)
	}
	if d, _ := store.Get(context.Background(), "d1"); d.Status != StatusInicio {
		t.Fatalf("status must not change on failure")
	}
}

func TestAdvanceStatusOutsideVisibility(t *testing.T) {
	store := newMemStore(Demanda{ID: "x", Status: StatusInicio, ResponsavelSolicitacao: "outro@prefsb.com", ResponsavelVisita: []string{"w3@prefsb.com"}})
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)
	ctx := context.Background()

	for _, actor := range []Actor{worker, leader} {
		if _, err := svc.AdvanceStatus(ctx, actor, "x", StatusInicio); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", actor.Email, err)
		}
	}
	if _, err := svc.AdvanceStatus(ctx, worker, "nao-existe", StatusInicio); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
	d, _ := store.Get(ctx, "x")
	if d.Status != StatusInicio || store.statusWrites != 0 {
		t.Fatalf("status must not change, got %s after %d writes", d.Status, store.statusWrites)
	}

	w3 := Actor{Email: "w3@prefsb.com", Role: identity.RoleTrabalhador}
	if next, err := svc.AdvanceStatus(ctx, w3, "x", StatusInicio); err != nil || next != StatusEmAndamento {
		t.Fatalf("assigned worker should advance, got %q %v", next, err)
	}
}

// Duas chamadas com visões diferentes do status atual são ambas aceitas; o
// resultado final é o da última escrita, sem detecção de conflito.
func TestAdvanceStatusConcurrentLastWriteWins(t *testing.T) {
	store := newMemStore(Demanda{ID: "d1", Status: StatusInicio})
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, current := range []string{StatusInicio, StatusEmAndamento} {
		wg.Add(1)
		go func(i int, current string) {
			defer wg.Done()
			_, errs[i] = svc.AdvanceStatus(context.Background(), admin, "d1", current)
		}(i, current)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("no call should be rejected, got %v", err)
		}
	}
	if store.statusWrites != 2 {
		t.Fatalf("expected both writes to land, got %d", store.statusWrites)
	}
	final, _ := store.Get(context.Background(), "d1")
	if final.Status != StatusEmAndamento && final.Status != StatusFinalizada {
		t.Fatalf("unexpected final status %s", final.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	store := newMemStore()
	uploader := &stubUploader{}
	svc := NewService(store, defaultRoster(), uploader, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, CreateInput{Fields: Fields{Local: "Praça"}, ResponsavelVisita: []string{"lider@prefsb.com"}})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != MsgCamposObrigatorios {
		t.Fatalf("expected required fields error, got %v", err)
	}
	if _, ok := verr.Fields["data"]; !ok {
		t.Fatalf("missing data should be reported: %v", verr.Fields)
	}
	if _, ok := verr.Fields["objetivo"]; !ok {
		t.Fatalf("missing objetivo should be reported: %v", verr.Fields)
	}

	fields := Fields{Data: "10/01/2024", Local: "Praça", Objetivo: "Poda"}
	_, err = svc.Create(ctx, admin, CreateInput{Fields: fields})
	if !errors.As(err, &verr) || verr.Message != MsgLiderObrigatorio {
		t.Fatalf("expected leader selection error, got %v", err)
	}
	_, err = svc.Create(ctx, leader, CreateInput{Fields: fields})
	if !errors.As(err, &verr) || verr.Message != MsgTrabalhadorObrigatorio {
		t.Fatalf("expected worker selection error, got %v", err)
	}

	if store.creates != 0 || len(uploader.keys) != 0 {
		t.Fatalf("validation failures must not write")
	}
}

func TestCreateAdminPath(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)

	d, err := svc.Create(context.Background(), admin, CreateInput{
		Fields:            Fields{Data: "10/01/2024", Local: "Praça", Objetivo: "Poda"},
		ResponsavelVisita: []string{"Lider@prefsb.com", "outro@prefsb.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != StatusInicio || d.ResponsavelSolicitacao != "" || d.LiderEmail != "lider@prefsb.com" {
		t.Fatalf("unexpected demanda %+v", d)
	}
	if len(d.ResponsavelVisita) != 2 || d.CreatedAt == nil {
		t.Fatalf("unexpected assignment %+v", d)
	}

	_, err = svc.Create(context.Background(), admin, CreateInput{
		Fields:            Fields{Data: "10/01/2024", Local: "Praça", Objetivo: "Poda"},
		ResponsavelVisita: []string{"w1@prefsb.com"},
	})
	if !errors.Is(err, ErrResponsavelInvalido) {
		t.Fatalf("expected ErrResponsavelInvalido, got %v", err)
	}
}

func TestCreateLeaderPathWithImage(t *testing.T) {
	store := newMemStore()
	uploader := &stubUploader{}
	svc := NewService(store, defaultRoster(), uploader, nil)
	svc.now = func() time.Time { return time.UnixMilli(1704067200000) }

	d, err := svc.Create(context.Background(), leader, CreateInput{
		Fields:            Fields{Data: "10/01/2024", Local: "Praça", Objetivo: "Poda"},
		ResponsavelVisita: []string{"w1@prefsb.com"},
		Imagem:            &Image{Body: []byte{0xff, 0xd8}, ContentType: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ResponsavelSolicitacao != leader.Email || d.LiderEmail != leader.Email {
		t.Fatalf("leader path must stamp requester, got %+v", d)
	}
	if len(uploader.keys) != 1 || uploader.keys[0] != "demandas/1704067200000.jpg" {
		t.Fatalf("unexpected upload keys %v", uploader.keys)
	}
	if d.ImagemURL != "https://cdn.prefsb.com/demandas/1704067200000.jpg" {
		t.Fatalf("unexpected image url %s", d.ImagemURL)
	}

	_, err = svc.Create(context.Background(), leader, CreateInput{
		Fields:            Fields{Data: "10/01/2024", Local: "Praça", Objetivo: "Poda"},
		ResponsavelVisita: []string{"w3@prefsb.com"},
	})
	if !errors.Is(err, ErrForaDaEquipe) {
		t.Fatalf("expected ErrForaDaEquipe, got %v", err)
	}
}

func TestCreateUploadFailureAborts(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, defaultRoster(), &stubUploader{err: errUpload}, nil)

	_, err := svc.Create(context.Background(), leader, CreateInput{
		Fields:            Fields{Data: "10/01/2024", Local: "Praça", Objetivo: "Poda"},
		ResponsavelVisita: []string{"w1@prefsb.com"},
		Imagem:            &Image{Body: []byte{1}},
	})
	if !errors.Is(err, ErrSalvar) {
		t.Fatalf("expected ErrSalvar, got %v", err)
	}
	if store.creates != 0 {
		t.Fatalf("record must not be created after upload failure")
	}
}

func TestEditOverridesStatus(t *testing.T) {
	store := newMemStore(Demanda{ID: "d1", Status: StatusInicio, ResponsavelSolicitacao: leader.Email})
	uploader := &stubUploader{}
	svc := NewService(store, defaultRoster(), uploader, nil)
	ctx := context.Background()

	_, err := svc.Edit(ctx, leader, "d1", EditInput{Local: "Praça", Objetivo: "Poda", Status: StatusFinalizada})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != MsgEdicaoIncompleta {
		t.Fatalf("expected edit validation error, got %v", err)
	}

	_, err = svc.Edit(ctx, leader, "d1", EditInput{Local: "Praça", Bairro: "Centro", Objetivo: "Poda", Status: StatusDesignada})
	if !errors.Is(err, ErrStatusInvalido) {
		t.Fatalf("expected ErrStatusInvalido, got %v", err)
	}

	d, err := svc.Edit(ctx, leader, "d1", EditInput{
		Local: "Praça", Bairro: "Centro", Objetivo: "Poda", Status: StatusFinalizada,
		ResponsavelSolicitacao: leader.Email,
		Imagem:                 &Image{Body: []byte{1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != StatusFinalizada {
		t.Fatalf("edit should jump straight to Finalizada, got %s", d.Status)
	}
	if len(uploader.keys) != 1 || len(uploader.keys[0]) != len("demandas/")+36+len(".jpg") {
		t.Fatalf("expected uuid-named upload, got %v", uploader.keys)
	}
}

func TestEditKeepsOmittedAssignees(t *testing.T) {
	store := newMemStore(Demanda{
		ID: "z", Status: StatusInicio, ResponsavelSolicitacao: leader.Email,
		ResponsavelVisita: []string{"w1@prefsb.com"}, ImagemURL: "https://cdn.prefsb.com/demandas/1.jpg",
	})
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)
	ctx := context.Background()

	d, err := svc.Edit(ctx, leader, "z", EditInput{Local: "Praça", Bairro: "Centro", Objetivo: "Poda", Status: StatusEmAndamento})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.ResponsavelVisita) != 1 || d.ResponsavelVisita[0] != "w1@prefsb.com" || d.ResponsavelSolicitacao != leader.Email {
		t.Fatalf("omitted assignees must be kept, got %+v", d)
	}

	stored, _ := store.Get(ctx, "z")
	if len(stored.ResponsavelVisita) != 1 || stored.ResponsavelSolicitacao != leader.Email || stored.ImagemURL == "" {
		t.Fatalf("stored record lost fields: %+v", stored)
	}
	if _, err := svc.Get(ctx, leader, "z"); err != nil {
		t.Fatalf("leader must still see the edited order: %v", err)
	}

	d, err = svc.Edit(ctx, leader, "z", EditInput{
		Local: "Praça", Bairro: "Centro", Objetivo: "Poda", Status: StatusEmAndamento,
		ResponsavelVisita: []string{"W2@prefsb.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.ResponsavelVisita) != 1 || d.ResponsavelVisita[0] != "w2@prefsb.com" {
		t.Fatalf("explicit assignees should replace, got %v", d.ResponsavelVisita)
	}
}

func TestReassign(t *testing.T) {
	store := newMemStore(Demanda{ID: "d1", Status: StatusInicio, ResponsavelVisita: []string{leader.Email, "outro@prefsb.com"}, CreatedAt: ts(2024, 1, 5)})
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)
	ctx := context.Background()

	pending, _ := svc.ListPending(ctx, leader)
	if len(pending) != 1 {
		t.Fatalf("expected demanda in pending view, got %d", len(pending))
	}

	if _, err := svc.Reassign(ctx, leader, "d1", ""); !errors.Is(err, ErrFuncionarioObrigatorio) {
		t.Fatalf("expected ErrFuncionarioObrigatorio, got %v", err)
	}
	if _, err := svc.Reassign(ctx, leader, "", "w1@prefsb.com"); !errors.Is(err, ErrTarefaObrigatoria) {
		t.Fatalf("expected ErrTarefaObrigatoria, got %v", err)
	}
	if _, err := svc.Reassign(ctx, leader, "d1", "w3@prefsb.com"); !errors.Is(err, ErrForaDaEquipe) {
		t.Fatalf("expected ErrForaDaEquipe, got %v", err)
	}

	d, err := svc.Reassign(ctx, leader, "d1", "W1@prefsb.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.ResponsavelVisita) != 1 || d.ResponsavelVisita[0] != "w1@prefsb.com" {
		t.Fatalf("assignees should be replaced, got %v", d.ResponsavelVisita)
	}
	if d.Status != StatusDesignada || d.AtribuidorEmail != leader.Email || d.DataAtribuicao == nil {
		t.Fatalf("unexpected reassignment %+v", d)
	}

	pending, _ = svc.ListPending(ctx, leader)
	if len(pending) != 0 {
		t.Fatalf("reassigned demanda must leave the pending view")
	}
}

func TestReassignOutsidePendingView(t *testing.T) {
	store := newMemStore(
		Demanda{ID: "y", Status: StatusFinalizada, ResponsavelSolicitacao: "outro@prefsb.com", ResponsavelVisita: []string{"w3@prefsb.com"}},
		Demanda{ID: "andamento", Status: StatusEmAndamento, ResponsavelVisita: []string{leader.Email}},
		Demanda{ID: "alheia", Status: StatusInicio, ResponsavelVisita: []string{"outro@prefsb.com"}},
	)
	roster := defaultRoster()
	roster.teams["w4@prefsb.com"] = admin.Email
	svc := NewService(store, roster, &stubUploader{}, nil)
	ctx := context.Background()

	cases := []struct {
		actor Actor
		id    string
	}{
		{leader, "y"},
		{leader, "andamento"},
		{leader, "alheia"},
		{worker, "alheia"},
		{admin, "y"},
		{leader, "nao-existe"},
	}
	for _, tc := range cases {
		if _, err := svc.Reassign(ctx, tc.actor, tc.id, "w1@prefsb.com"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s on %s: expected ErrNotFound, got %v", tc.actor.Email, tc.id, err)
		}
	}

	y, _ := store.Get(ctx, "y")
	if y.Status != StatusFinalizada || len(y.ResponsavelVisita) != 1 || y.ResponsavelVisita[0] != "w3@prefsb.com" {
		t.Fatalf("rejected reassignment must leave the record untouched, got %+v", y)
	}

	d, err := svc.Reassign(ctx, admin, "alheia", "w4@prefsb.com")
	if err != nil {
		t.Fatalf("admin should reassign an order in Início: %v", err)
	}
	if d.Status != StatusDesignada || d.ResponsavelVisita[0] != "w4@prefsb.com" {
		t.Fatalf("unexpected reassignment %+v", d)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	store := newMemStore(Demanda{ID: "d1", Status: StatusEmAndamento})
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)

	if err := svc.Delete(context.Background(), admin, "d1", false); !errors.Is(err, ErrConfirmacaoObrigatoria) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	d, err := store.Get(context.Background(), "d1")
	if err != nil || d.Status != StatusEmAndamento {
		t.Fatalf("declined delete must leave the record untouched")
	}
	if err := svc.Delete(context.Background(), admin, "d1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(context.Background(), "d1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record should be gone")
	}
}

func TestListVisibleUnionWithoutDuplicates(t *testing.T) {
	L := leader.Email
	data := []Demanda{
		{ID: "a", ResponsavelSolicitacao: L, CreatedAt: ts(2024, 1, 1)},
		{ID: "b", ResponsavelVisita: []string{L}, CreatedAt: ts(2024, 1, 2)},
		{ID: "c", ResponsavelSolicitacao: L, ResponsavelVisita: []string{"x@prefsb.com", L}, CreatedAt: ts(2024, 1, 3)},
		{ID: "d", ResponsavelSolicitacao: "outro@prefsb.com", ResponsavelVisita: []string{"w3@prefsb.com"}, CreatedAt: ts(2024, 1, 4)},
		{ID: "e", CreatedAt: ts(2024, 1, 5)},
	}
	svc := NewService(newMemStore(data...), defaultRoster(), &stubUploader{}, nil)

	list, err := svc.ListVisible(context.Background(), leader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := make([]string, 0, len(list))
	for _, d := range list {
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("expected union {a,b,c}, got %v", ids)
	}

	all, _ := svc.ListVisible(context.Background(), admin)
	if len(all) != len(data) || all[0].ID != "e" {
		t.Fatalf("admin should see everything newest first, got %d", len(all))
	}

	if _, err := svc.ListVisible(context.Background(), Actor{Email: "x@prefsb.com", Role: identity.RoleNaoAutorizado}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGetHidesOutOfScope(t *testing.T) {
	store := newMemStore(Demanda{ID: "d1", ResponsavelSolicitacao: "outro@prefsb.com"})
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)

	if _, err := svc.Get(context.Background(), worker, "d1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), admin, "d1"); err != nil {
		t.Fatalf("admin should read any demanda: %v", err)
	}
}

func TestReportsScope(t *testing.T) {
	data := []Demanda{
		{ID: "a", Status: StatusFinalizada, ResponsavelSolicitacao: leader.Email, CreatedAt: ts(2024, 1, 10)},
		{ID: "b", Status: StatusFinalizada, ResponsavelSolicitacao: "outro@prefsb.com", CreatedAt: ts(2024, 2, 10)},
		{ID: "c", Status: StatusEmAndamento, ResponsavelSolicitacao: leader.Email, CreatedAt: ts(2024, 2, 10)},
	}
	svc := NewService(newMemStore(data...), defaultRoster(), &stubUploader{}, nil)
	ctx := context.Background()

	counts, err := svc.MonthlyReport(ctx, admin)
	if err != nil || len(counts) != 2 || counts[0].Label != "Fevereiro/2024" {
		t.Fatalf("unexpected admin report %+v %v", counts, err)
	}

	list, err := svc.FinishedReport(ctx, leader, nil, nil)
	if err != nil || len(list) != 1 || list[0].ID != "a" {
		t.Fatalf("leader report should include only own finished demandas, got %+v %v", list, err)
	}

	if _, err := svc.MonthlyReport(ctx, worker); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for worker, got %v", err)
	}
}

type chanSource struct {
	events chan feed.Event
}

func (c chanSource) Listen(ctx context.Context, collection string) (<-chan feed.Event, func() error, error) {
	return c.events, func() error { return nil }, nil
}

func TestWatchMergesSubscriptions(t *testing.T) {
	L := leader.Email
	store := newMemStore(
		Demanda{ID: "a", ResponsavelSolicitacao: L, CreatedAt: ts(2024, 1, 1)},
		Demanda{ID: "b", ResponsavelSolicitacao: L, ResponsavelVisita: []string{L}, CreatedAt: ts(2024, 1, 2)},
	)
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)

	src := chanSource{events: make(chan feed.Event, 4)}
	snapshots := make(chan []Demanda, 16)
	unsub, err := svc.Watch(context.Background(), leader, src, func(items []Demanda) { snapshots <- items }, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer unsub()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case items := <-snapshots:
			if len(items) == 2 {
				if items[0].ID != "b" || items[1].ID != "a" {
					t.Fatalf("expected newest first, got %v", items)
				}
				return
			}
			if len(items) > 2 {
				t.Fatalf("duplicates in merged snapshot: %d", len(items))
			}
		case <-deadline:
			t.Fatalf("merged snapshot not delivered")
		}
	}
}

func TestWatchSerializesDeliveries(t *testing.T) {
	L := leader.Email
	store := newMemStore(
		Demanda{ID: "a", ResponsavelSolicitacao: L, CreatedAt: ts(2024, 1, 1)},
		Demanda{ID: "b", ResponsavelVisita: []string{L}, CreatedAt: ts(2024, 1, 2)},
	)
	svc := NewService(store, defaultRoster(), &stubUploader{}, nil)

	src := chanSource{events: make(chan feed.Event, 8)}
	var inFlight, overlaps, delivered int32
	unsub, err := svc.Watch(context.Background(), leader, src, func(items []Demanda) {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			atomic.AddInt32(&overlaps, 1)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		atomic.AddInt32(&delivered, 1)
	}, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	for i := 0; i < 6; i++ {
		src.events <- feed.Event{ID: "a", Op: feed.OpUpdate}
		time.Sleep(time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&delivered) < 4 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	unsub()

	if atomic.LoadInt32(&delivered) < 4 {
		t.Fatalf("expected several deliveries, got %d", delivered)
	}
	if n := atomic.LoadInt32(&overlaps); n != 0 {
		t.Fatalf("snapshots delivered concurrently %d times", n)
	}
}
