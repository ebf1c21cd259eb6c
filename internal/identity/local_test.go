package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type memCredentials struct {
	mu    sync.Mutex
	byUID map[string]Credential
}

func newMemCredentials() *memCredentials {
	return &memCredentials{byUID: make(map[string]Credential)}
}

func (m *memCredentials) GetByEmail(ctx context.Context, email string) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byUID {
		if strings.EqualFold(c.Email, email) {
			return c, nil
		}
	}
	return Credential{}, ErrCredentialNotFound
}

func (m *memCredentials) GetByUID(ctx context.Context, uid string) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byUID[uid]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	return c, nil
}

func (m *memCredentials) Insert(ctx context.Context, c Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byUID {
		if strings.EqualFold(existing.Email, c.Email) {
			return ErrCredentialExists
		}
	}
	m.byUID[c.UID] = c
	return nil
}

func (m *memCredentials) UpdateHash(ctx context.Context, uid, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byUID[uid]
	if !ok {
		return ErrCredentialNotFound
	}
	c.SenhaHash = hash
	m.byUID[uid] = c
	return nil
}

func (m *memCredentials) Delete(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUID, uid)
	return nil
}

type captureNotifier struct {
	msgs []ResetMessage
}

func (c *captureNotifier) NotifyReset(ctx context.Context, msg ResetMessage) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newLocal(t *testing.T) (*LocalProvider, *captureNotifier) {
	t.Helper()
	client := newTestRedis(t)
	notifier := &captureNotifier{}
	limiter := NewAttemptLimiter(client, 3, time.Minute)
	return NewLocalProvider(newMemCredentials(), client, limiter, notifier, time.Hour), notifier
}

func TestLocalCreateAndSignIn(t *testing.T) {
	ctx := context.Background()
	p, _ := newLocal(t)

	created, err := p.CreateAccount(ctx, " Ana@PrefSB.com ", "segredo1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Email != "ana@prefsb.com" || created.UID == "" {
		t.Fatalf("unexpected principal %+v", created)
	}

	got, err := p.SignIn(ctx, "ana@prefsb.com", "segredo1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if got.UID != created.UID {
		t.Fatalf("expected uid %s got %s", created.UID, got.UID)
	}

	if _, err := p.CreateAccount(ctx, "ana@prefsb.com", "outrasenha"); AuthCode(err) != CodeEmailInUse {
		t.Fatalf("expected email-already-in-use, got %v", err)
	}
}

func TestLocalCreateValidation(t *testing.T) {
	p, _ := newLocal(t)
	if _, err := p.CreateAccount(context.Background(), "invalido", "segredo1"); AuthCode(err) != CodeInvalidEmail {
		t.Fatalf("expected invalid-email, got %v", err)
	}
	if _, err := p.CreateAccount(context.Background(), "ok@prefsb.com", "123"); AuthCode(err) != CodeWeakPassword {
		t.Fatalf("expected weak-password, got %v", err)
	}
}

func TestLocalSignInErrorsAndLockout(t *testing.T) {
	ctx := context.Background()
	p, _ := newLocal(t)
	if _, err := p.CreateAccount(ctx, "bia@prefsb.com", "segredo1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := p.SignIn(ctx, "ninguem@prefsb.com", "x"); AuthCode(err) != CodeUserNotFound {
		t.Fatalf("expected user-not-found, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := p.SignIn(ctx, "bia@prefsb.com", "errada"); AuthCode(err) != CodeWrongPassword {
			t.Fatalf("attempt %d: expected wrong-password, got %v", i, err)
		}
	}
	if _, err := p.SignIn(ctx, "bia@prefsb.com", "segredo1"); AuthCode(err) != CodeTooManyRequests {
		t.Fatalf("expected too-many-requests, got %v", err)
	}
}

func TestLocalPasswordReset(t *testing.T) {
	ctx := context.Background()
	p, notifier := newLocal(t)
	if _, err := p.CreateAccount(ctx, "caio@prefsb.com", "segredo1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := p.SendPasswordReset(ctx, ""); AuthCode(err) != CodeMissingEmail {
		t.Fatalf("expected missing-email, got %v", err)
	}
	if err := p.SendPasswordReset(ctx, "x@prefsb.com"); AuthCode(err) != CodeUserNotFound {
		t.Fatalf("expected user-not-found, got %v", err)
	}
	if err := p.SendPasswordReset(ctx, "caio@prefsb.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(notifier.msgs) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.msgs))
	}
	token := notifier.msgs[0].Token

	if err := p.ResetPassword(ctx, token, "novasenha"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := p.ResetPassword(ctx, token, "outrasenha"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("token must be single use, got %v", err)
	}
	if _, err := p.SignIn(ctx, "caio@prefsb.com", "novasenha"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}
