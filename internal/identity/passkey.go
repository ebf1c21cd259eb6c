package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prefsb/demandas/internal/util"
)

// ErrPasskeyNotFound indica credencial biométrica inexistente.
var ErrPasskeyNotFound = errors.New("biometria não encontrada")

// PasskeyCredential é uma credencial WebAuthn vinculada a um principal.
type PasskeyCredential struct {
	ID           string
	UID          string
	Email        string
	CredentialID []byte
	PublicKey    []byte
	SignCount    uint32
	Transports   []string
	AAGUID       []byte
	Cloned       bool
	CriadoEm     time.Time
}

// PasskeyRepository persiste credenciais WebAuthn.
type PasskeyRepository struct {
	pool *pgxpool.Pool
}

// NewPasskeyRepository cria instância do repositório.
func NewPasskeyRepository(pool *pgxpool.Pool) *PasskeyRepository {
	return &PasskeyRepository{pool: pool}
}

const passkeyColumns = `id, uid, email, credential_id, public_key, sign_count, transports, aaguid, cloned, criado_em`

// ListByUID lista as credenciais do principal.
func (r *PasskeyRepository) ListByUID(ctx context.Context, uid string) ([]PasskeyCredential, error) {
	return r.list(ctx, `SELECT `+passkeyColumns+` FROM passkeys WHERE uid = $1 ORDER BY criado_em`, uid)
}

// ListByEmail lista as credenciais pelo e-mail informado no login.
func (r *PasskeyRepository) ListByEmail(ctx context.Context, email string) ([]PasskeyCredential, error) {
	return r.list(ctx, `SELECT `+passkeyColumns+` FROM passkeys WHERE lower(email) = lower($1) ORDER BY criado_em`, email)
}

func (r *PasskeyRepository) list(ctx context.Context, query string, arg any) ([]PasskeyCredential, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PasskeyCredential
	for rows.Next() {
		pk, err := scanPasskey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, rows.Err()
}

// GetByCredentialID busca a credencial pelo id WebAuthn.
func (r *PasskeyRepository) GetByCredentialID(ctx context.Context, credentialID []byte) (PasskeyCredential, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+passkeyColumns+` FROM passkeys WHERE credential_id = $1`, credentialID)
	return scanPasskey(row)
}

// Create grava uma nova credencial.
func (r *PasskeyRepository) Create(ctx context.Context, pk PasskeyCredential) (PasskeyCredential, error) {
	pk.ID = util.NewID()
	pk.CriadoEm = util.Now()
	if pk.Transports == nil {
		pk.Transports = []string{}
	}
	const query = `
        INSERT INTO passkeys (id, uid, email, credential_id, public_key, sign_count, transports, aaguid, cloned, criado_em)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query, pk.ID, pk.UID, pk.Email, pk.CredentialID, pk.PublicKey, int64(pk.SignCount), pk.Transports, pk.AAGUID, pk.Cloned, pk.CriadoEm)
	if err != nil {
		return PasskeyCredential{}, err
	}
	return pk, nil
}

// UpdateCounter atualiza contador de assinatura após login.
func (r *PasskeyRepository) UpdateCounter(ctx context.Context, id string, signCount uint32, cloned bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE passkeys SET sign_count = $2, cloned = $3, atualizado_em = now() WHERE id = $1`, id, int64(signCount), cloned)
	return err
}

// DeleteByUID remove as credenciais do principal excluído.
func (r *PasskeyRepository) DeleteByUID(ctx context.Context, uid string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM passkeys WHERE uid = $1`, uid)
	return err
}

func scanPasskey(row pgx.Row) (PasskeyCredential, error) {
	var (
		pk    PasskeyCredential
		count int64
	)
	if err := row.Scan(&pk.ID, &pk.UID, &pk.Email, &pk.CredentialID, &pk.PublicKey, &count, &pk.Transports, &pk.AAGUID, &pk.Cloned, &pk.CriadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PasskeyCredential{}, ErrPasskeyNotFound
		}
		return PasskeyCredential{}, err
	}
	pk.SignCount = uint32(count)
	return pk, nil
}
