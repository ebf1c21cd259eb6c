package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrCredentialNotFound indica ausência de credencial local.
	ErrCredentialNotFound = errors.New("credencial não encontrada")
	// ErrCredentialExists indica e-mail já cadastrado no provedor local.
	ErrCredentialExists = errors.New("credencial já existe")
)

// Credential é a conta do provedor local.
type Credential struct {
	UID       string
	Email     string
	SenhaHash string
	CriadoEm  time.Time
}

// CredentialRepository persiste contas locais no Postgres.
type CredentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository cria instância do repositório.
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (Credential, error) {
	const query = `SELECT uid, email, senha_hash, criado_em FROM credenciais WHERE lower(email) = lower($1)`
	return scanCredential(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *CredentialRepository) GetByUID(ctx context.Context, uid string) (Credential, error) {
	const query = `SELECT uid, email, senha_hash, criado_em FROM credenciais WHERE uid = $1`
	return scanCredential(r.pool.QueryRow(ctx, query, uid))
}

func (r *CredentialRepository) Insert(ctx context.Context, c Credential) error {
	const query = `INSERT INTO credenciais (uid, email, senha_hash, criado_em) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, c.UID, c.Email, c.SenhaHash, c.CriadoEm)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCredentialExists
	}
	return err
}

func (r *CredentialRepository) UpdateHash(ctx context.Context, uid, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE credenciais SET senha_hash = $2, atualizado_em = now() WHERE uid = $1`, uid, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

func (r *CredentialRepository) Delete(ctx context.Context, uid string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM credenciais WHERE uid = $1`, uid)
	return err
}

func scanCredential(row pgx.Row) (Credential, error) {
	var c Credential
	if err := row.Scan(&c.UID, &c.Email, &c.SenhaHash, &c.CriadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrCredentialNotFound
		}
		return Credential{}, err
	}
	return c, nil
}
