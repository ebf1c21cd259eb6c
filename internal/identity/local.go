package identity

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/prefsb/demandas/internal/auth"
	"github.com/prefsb/demandas/internal/util"
)

type credentialStore interface {
	GetByEmail(ctx context.Context, email string) (Credential, error)
	GetByUID(ctx context.Context, uid string) (Credential, error)
	Insert(ctx context.Context, c Credential) error
	UpdateHash(ctx context.Context, uid, hash string) error
	Delete(ctx context.Context, uid string) error
}

// LocalProvider autentica com credenciais próprias (argon2id) guardadas no Postgres.
type LocalProvider struct {
	store    credentialStore
	redis    redis.Cmdable
	limiter  *AttemptLimiter
	notifier ResetNotifier
	resetTTL time.Duration
}

// NewLocalProvider monta o provedor local.
func NewLocalProvider(store credentialStore, client redis.Cmdable, limiter *AttemptLimiter, notifier ResetNotifier, resetTTL time.Duration) *LocalProvider {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &LocalProvider{store: store, redis: client, limiter: limiter, notifier: notifier, resetTTL: resetTTL}
}

func (p *LocalProvider) SignIn(ctx context.Context, email, senha string) (Principal, error) {
	email, err := checkSignInInput(email, senha)
	if err != nil {
		return Principal{}, err
	}

	blocked, err := p.limiter.Blocked(ctx, email)
	if err != nil {
		return Principal{}, err
	}
	if blocked {
		return Principal{}, NewAuthError(CodeTooManyRequests, nil)
	}

	cred, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			p.recordFailure(ctx, email)
			return Principal{}, NewAuthError(CodeUserNotFound, err)
		}
		return Principal{}, err
	}

	ok, err := auth.Verify(senha, cred.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login local: verificação de senha falhou")
		return Principal{}, NewAuthError(CodeInvalidCredential, err)
	}
	if !ok {
		p.recordFailure(ctx, email)
		return Principal{}, NewAuthError(CodeWrongPassword, nil)
	}

	if err := p.limiter.Reset(ctx, email); err != nil {
		log.Warn().Err(err).Msg("login local: não foi possível limpar tentativas")
	}
	return Principal{UID: cred.UID, Email: cred.Email}, nil
}

func (p *LocalProvider) recordFailure(ctx context.Context, email string) {
	if err := p.limiter.Fail(ctx, email); err != nil {
		log.Warn().Err(err).Msg("login local: não foi possível registrar tentativa")
	}
}

func (p *LocalProvider) CreateAccount(ctx context.Context, email, senha string) (Principal, error) {
	email, err := checkAccountInput(email, senha)
	if err != nil {
		return Principal{}, err
	}

	hash, err := auth.Hash(senha)
	if err != nil {
		return Principal{}, err
	}

	cred := Credential{UID: util.NewID(), Email: email, SenhaHash: hash, CriadoEm: util.Now()}
	if err := p.store.Insert(ctx, cred); err != nil {
		if errors.Is(err, ErrCredentialExists) {
			return Principal{}, NewAuthError(CodeEmailInUse, err)
		}
		return Principal{}, err
	}
	return Principal{UID: cred.UID, Email: cred.Email}, nil
}

func (p *LocalProvider) DeleteAccount(ctx context.Context, uid string) error {
	return p.store.Delete(ctx, uid)
}

func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	email, err := checkResetInput(email)
	if err != nil {
		return err
	}

	cred, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return NewAuthError(CodeUserNotFound, err)
		}
		return err
	}

	raw, hashed, err := auth.GenerateRefreshToken()
	if err != nil {
		return err
	}
	if err := p.redis.Set(ctx, auth.ResetRedisKey(hashed), cred.UID, p.resetTTL).Err(); err != nil {
		return err
	}

	return p.notifier.NotifyReset(ctx, ResetMessage{Email: cred.Email, Token: raw})
}

// ResetPassword troca a senha a partir do token enviado; o token vale uma vez.
func (p *LocalProvider) ResetPassword(ctx context.Context, token, novaSenha string) error {
	if err := util.ValidatePassword(novaSenha); err != nil {
		return NewAuthError(CodeWeakPassword, err)
	}
	if token == "" {
		return ErrResetInvalid
	}

	uid, err := p.redis.GetDel(ctx, auth.ResetRedisKey(auth.HashRefreshToken(token))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrResetInvalid
		}
		return err
	}

	hash, err := auth.Hash(novaSenha)
	if err != nil {
		return err
	}
	if err := p.store.UpdateHash(ctx, uid, hash); err != nil {
		return err
	}

	if cred, err := p.store.GetByUID(ctx, uid); err == nil {
		_ = p.limiter.Reset(ctx, cred.Email)
	}
	return nil
}
