package identity

import (
	"context"
	"errors"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
)

type stubPasswordAPI struct {
	principal Principal
	err       error
	resets    []string
}

func (s *stubPasswordAPI) VerifyPassword(ctx context.Context, email, senha string) (Principal, error) {
	return s.principal, s.err
}

func (s *stubPasswordAPI) SendResetCode(ctx context.Context, email string) error {
	s.resets = append(s.resets, email)
	return s.err
}

type stubAdmin struct {
	uid string
	err error
}

func (s *stubAdmin) CreateUser(ctx context.Context, user *fbauth.UserToCreate) (*fbauth.UserRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &fbauth.UserRecord{UserInfo: &fbauth.UserInfo{UID: s.uid}}, nil
}

func (s *stubAdmin) DeleteUser(ctx context.Context, uid string) error {
	return s.err
}

func TestFirebaseCode(t *testing.T) {
	tests := map[string]string{
		"EMAIL_NOT_FOUND":                                 CodeUserNotFound,
		"INVALID_PASSWORD":                                CodeWrongPassword,
		"TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled": CodeTooManyRequests,
		"INVALID_LOGIN_CREDENTIALS":                       CodeInvalidCredential,
		"EMAIL_EXISTS":                                    CodeEmailInUse,
		"MISSING_EMAIL":                                   CodeMissingEmail,
		"SOMETHING_ELSE":                                  "",
	}
	for msg, want := range tests {
		if got := firebaseCode(msg); got != want {
			t.Fatalf("firebaseCode(%q) = %q want %q", msg, got, want)
		}
	}
}

func TestFirebaseSignInMapsErrors(t *testing.T) {
	p := &FirebaseProvider{
		admin:    &stubAdmin{},
		password: &stubPasswordAPI{err: &googleapi.Error{Code: 400, Message: "INVALID_PASSWORD"}},
	}
	_, err := p.SignIn(context.Background(), "a@prefsb.com", "x")
	if AuthCode(err) != CodeWrongPassword {
		t.Fatalf("expected wrong-password, got %v", err)
	}
}

func TestFirebaseSignIn(t *testing.T) {
	p := &FirebaseProvider{
		admin:    &stubAdmin{},
		password: &stubPasswordAPI{principal: Principal{UID: "fb1", Email: "a@prefsb.com"}},
	}
	got, err := p.SignIn(context.Background(), "A@prefsb.com", "x")
	if err != nil || got.UID != "fb1" {
		t.Fatalf("unexpected %+v %v", got, err)
	}
}

func TestFirebaseCreateAccount(t *testing.T) {
	p := &FirebaseProvider{admin: &stubAdmin{uid: "fb2"}, password: &stubPasswordAPI{}}
	got, err := p.CreateAccount(context.Background(), "Novo@PrefSB.com", "segredo1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.UID != "fb2" || got.Email != "novo@prefsb.com" {
		t.Fatalf("unexpected principal %+v", got)
	}

	p.admin = &stubAdmin{err: errors.New("network")}
	if _, err := p.CreateAccount(context.Background(), "n@prefsb.com", "segredo1"); err == nil || AuthCode(err) != "" {
		t.Fatalf("expected raw error, got %v", err)
	}
}

func TestFirebaseReset(t *testing.T) {
	api := &stubPasswordAPI{}
	p := &FirebaseProvider{admin: &stubAdmin{}, password: api}
	if err := p.SendPasswordReset(context.Background(), " Ana@prefsb.com "); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(api.resets) != 1 || api.resets[0] != "ana@prefsb.com" {
		t.Fatalf("unexpected resets %v", api.resets)
	}
}
