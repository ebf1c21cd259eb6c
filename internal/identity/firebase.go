package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

type firebaseAdmin interface {
	CreateUser(ctx context.Context, user *fbauth.UserToCreate) (*fbauth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
}

type passwordAPI interface {
	VerifyPassword(ctx context.Context, email, senha string) (Principal, error)
	SendResetCode(ctx context.Context, email string) error
}

type toolkitAPI struct {
	svc *identitytoolkit.Service
}

func (t toolkitAPI) VerifyPassword(ctx context.Context, email, senha string) (Principal, error) {
	resp, err := t.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          senha,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return Principal{}, err
	}
	return Principal{UID: resp.LocalId, Email: strings.ToLower(resp.Email)}, nil
}

func (t toolkitAPI) SendResetCode(ctx context.Context, email string) error {
	_, err := t.svc.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: "PASSWORD_RESET",
		Email:       email,
	}).Context(ctx).Do()
	return err
}

// FirebaseProvider usa o Admin SDK para contas e o Identity Toolkit para senha.
// Criar contas pelo Admin SDK não troca a sessão de quem está logado.
type FirebaseProvider struct {
	admin    firebaseAdmin
	password passwordAPI
}

// NewFirebaseProvider inicializa o app Firebase com a conta de serviço e a API key web.
func NewFirebaseProvider(ctx context.Context, credentialsPath, apiKey string) (*FirebaseProvider, error) {
	if credentialsPath == "" {
		return nil, errors.New("FIREBASE_CREDENTIALS_PATH obrigatório")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("identity toolkit: %w", err)
	}

	return &FirebaseProvider{admin: client, password: toolkitAPI{svc: svc}}, nil
}

func (p *FirebaseProvider) SignIn(ctx context.Context, email, senha string) (Principal, error) {
	email, err := checkSignInInput(email, senha)
	if err != nil {
		return Principal{}, err
	}
	principal, err := p.password.VerifyPassword(ctx, email, senha)
	if err != nil {
		return Principal{}, mapFirebaseError(err)
	}
	if principal.UID == "" {
		return Principal{}, NewAuthError(CodeInvalidCredential, errors.New("usuário inválido"))
	}
	return principal, nil
}

func (p *FirebaseProvider) CreateAccount(ctx context.Context, email, senha string) (Principal, error) {
	email, err := checkAccountInput(email, senha)
	if err != nil {
		return Principal{}, err
	}
	rec, err := p.admin.CreateUser(ctx, (&fbauth.UserToCreate{}).Email(email).Password(senha))
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return Principal{}, NewAuthError(CodeEmailInUse, err)
		}
		return Principal{}, mapFirebaseError(err)
	}
	return Principal{UID: rec.UID, Email: email}, nil
}

func (p *FirebaseProvider) DeleteAccount(ctx context.Context, uid string) error {
	if err := p.admin.DeleteUser(ctx, uid); err != nil && !fbauth.IsUserNotFound(err) {
		return err
	}
	return nil
}

func (p *FirebaseProvider) SendPasswordReset(ctx context.Context, email string) error {
	email, err := checkResetInput(email)
	if err != nil {
		return err
	}
	if err := p.password.SendResetCode(ctx, email); err != nil {
		return mapFirebaseError(err)
	}
	return nil
}

func mapFirebaseError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	if code := firebaseCode(gerr.Message); code != "" {
		return NewAuthError(code, err)
	}
	return err
}

// firebaseCode traduz mensagens REST ("EMAIL_NOT_FOUND", "TOO_MANY_ATTEMPTS_TRY_LATER : ...").
func firebaseCode(message string) string {
	reason := strings.TrimSpace(strings.SplitN(message, ":", 2)[0])
	switch reason {
	case "EMAIL_NOT_FOUND":
		return CodeUserNotFound
	case "INVALID_PASSWORD":
		return CodeWrongPassword
	case "INVALID_EMAIL":
		return CodeInvalidEmail
	case "MISSING_EMAIL":
		return CodeMissingEmail
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return CodeTooManyRequests
	case "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return CodeInvalidCredential
	case "EMAIL_EXISTS":
		return CodeEmailInUse
	case "WEAK_PASSWORD":
		return CodeWeakPassword
	}
	return ""
}
