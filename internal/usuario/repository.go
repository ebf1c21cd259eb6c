package usuario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prefsb/demandas/internal/db"
)

// Repository provê acesso às tabelas usuarios e usuarios_temp.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const usuarioColumns = `id, email, nome, tipo, papel, lider_email, criado_em`

// TipoByUID lê apenas o tipo para a resolução de papel.
func (r *Repository) TipoByUID(ctx context.Context, uid string) (string, bool, error) {
	var tipo string
	err := r.pool.QueryRow(ctx, `SELECT tipo FROM usuarios WHERE id = $1`, uid).Scan(&tipo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return tipo, true, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Usuario, error) {
	return scanUsuario(r.pool.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE id = $1`, id))
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Usuario, error) {
	return scanUsuario(r.pool.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
}

func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM usuarios WHERE lower(email) = lower($1))`, strings.TrimSpace(email)).Scan(&exists)
	return exists, err
}

// Create grava o registro; um id existente é sobrescrito como no set do documento.
const upsertUsuarioQuery = `
        INSERT INTO usuarios (id, email, nome, tipo, papel, lider_email, criado_em)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            email = EXCLUDED.email, nome = EXCLUDED.nome, tipo = EXCLUDED.tipo,
            papel = EXCLUDED.papel, lider_email = EXCLUDED.lider_email`

func (r *Repository) Create(ctx context.Context, u Usuario) error {
	_, err := r.pool.Exec(ctx, upsertUsuarioQuery, u.ID, u.Email, u.Nome, u.Tipo, u.Papel, u.LiderEmail, u.CriadoEm)
	return err
}

// CreateWithPending grava o usuário e a autorização na mesma transação.
func (r *Repository) CreateWithPending(ctx context.Context, u Usuario, p AutorizacaoPendente) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertUsuarioQuery, u.ID, u.Email, u.Nome, u.Tipo, u.Papel, u.LiderEmail, u.CriadoEm); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, upsertPendingQuery, p.Email, p.LiderEmail, p.Autorizado, p.CriadoEm)
		return err
	})
}

func (r *Repository) UpdateProfile(ctx context.Context, id, nome, papel string) error {
	return r.execOne(ctx, `UPDATE usuarios SET nome = $2, papel = $3 WHERE id = $1`, id, nome, papel)
}

func (r *Repository) UpdateEmail(ctx context.Context, id, email string) error {
	return r.execOne(ctx, `UPDATE usuarios SET email = $2 WHERE id = $1`, id, email)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM usuarios WHERE id = $1`, id)
}

func (r *Repository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List lista usuários aplicando filtros simples.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Usuario, error) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if len(filter.Tipos) > 0 {
		clauses = append(clauses, fmt.Sprintf("tipo = ANY($%d)", idx))
		args = append(args, filter.Tipos)
		idx++
	}
	if filter.LiderEmail != "" {
		clauses = append(clauses, fmt.Sprintf("lower(lider_email) = lower($%d)", idx))
		args = append(args, filter.LiderEmail)
		idx++
	}

	query := `SELECT ` + usuarioColumns + ` FROM usuarios`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY email"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Usuario
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) GetPending(ctx context.Context, email string) (AutorizacaoPendente, error) {
	var p AutorizacaoPendente
	err := r.pool.QueryRow(ctx, `SELECT email, lider_email, autorizado, criado_em FROM usuarios_temp WHERE email = $1`, email).
		Scan(&p.Email, &p.LiderEmail, &p.Autorizado, &p.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AutorizacaoPendente{}, ErrNotFound
		}
		return AutorizacaoPendente{}, err
	}
	return p, nil
}

// UpsertPending grava a autorização, mesclando com um registro existente.
func (r *Repository) UpsertPending(ctx context.Context, p AutorizacaoPendente) error {
	_, err := r.pool.Exec(ctx, upsertPendingQuery, p.Email, p.LiderEmail, p.Autorizado, p.CriadoEm)
	return err
}

const upsertPendingQuery = `
        INSERT INTO usuarios_temp (email, lider_email, autorizado, criado_em)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (email) DO UPDATE SET
            lider_email = COALESCE(NULLIF(EXCLUDED.lider_email, ''), usuarios_temp.lider_email),
            autorizado = EXCLUDED.autorizado`

// DeletePending é idempotente: apagar um registro ausente não é erro.
func (r *Repository) DeletePending(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM usuarios_temp WHERE email = $1`, email)
	return err
}

func (r *Repository) ListPending(ctx context.Context, liderEmail string) ([]AutorizacaoPendente, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT email, lider_email, autorizado, criado_em
        FROM usuarios_temp
        WHERE lower(lider_email) = lower($1)
        ORDER BY criado_em DESC`, liderEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AutorizacaoPendente
	for rows.Next() {
		var p AutorizacaoPendente
		if err := rows.Scan(&p.Email, &p.LiderEmail, &p.Autorizado, &p.CriadoEm); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanUsuario(row pgx.Row) (Usuario, error) {
	var u Usuario
	if err := row.Scan(&u.ID, &u.Email, &u.Nome, &u.Tipo, &u.Papel, &u.LiderEmail, &u.CriadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}
