package demanda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/prefsb/demandas/internal/feed"
	"github.com/prefsb/demandas/internal/util"
)

// Store é o contrato do armazenamento de demandas.
type Store interface {
	Create(ctx context.Context, d Demanda) (Demanda, error)
	Get(ctx context.Context, id string) (Demanda, error)
	List(ctx context.Context, filter Filter) ([]Demanda, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Reassign(ctx context.Context, id string, a Assignment) error
	UpdateFields(ctx context.Context, id string, e Edit) error
	Delete(ctx context.Context, id string) error
}

// Repository implementa Store sobre Postgres e avisa o feed a cada escrita.
type Repository struct {
	pool *pgxpool.Pool
	feed feed.Publisher
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool, publisher feed.Publisher) *Repository {
	return &Repository{pool: pool, feed: publisher}
}

const demandaWriteColumns = `id, data, hora_inicio, termino, local, bairro, secretaria, departamento,
    objetivo, avaliacao, imagem_url, status, responsavel_solicitacao, responsavel_visita,
    lider_email, atribuidor_email, data_atribuicao`

const demandaColumns = demandaWriteColumns + `, created_at`

// created_at fica com o DEFAULT now() do banco.
const insertDemandaQuery = `
        INSERT INTO demandas (` + demandaWriteColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        RETURNING created_at`

// Create grava a demanda; o id é gerado aqui quando ausente e created_at vem
// do banco.
func (r *Repository) Create(ctx context.Context, d Demanda) (Demanda, error) {
	if d.ID == "" {
		d.ID = util.NewID()
	}
	if d.ResponsavelVisita == nil {
		d.ResponsavelVisita = []string{}
	}

	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, insertDemandaQuery, writeArgs(d)...).Scan(&createdAt); err != nil {
		return Demanda{}, err
	}
	d.CreatedAt = &createdAt

	r.publish(ctx, d.ID, feed.OpCreate)
	return d, nil
}

// Import grava uma demanda preservando id e created_at; reexecuções sobrescrevem.
func (r *Repository) Import(ctx context.Context, d Demanda) error {
	if d.ResponsavelVisita == nil {
		d.ResponsavelVisita = []string{}
	}
	const query = `
        INSERT INTO demandas (` + demandaColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        ON CONFLICT (id) DO UPDATE SET
            data = EXCLUDED.data, hora_inicio = EXCLUDED.hora_inicio, termino = EXCLUDED.termino,
            local = EXCLUDED.local, bairro = EXCLUDED.bairro, secretaria = EXCLUDED.secretaria,
            departamento = EXCLUDED.departamento, objetivo = EXCLUDED.objetivo,
            avaliacao = EXCLUDED.avaliacao, imagem_url = EXCLUDED.imagem_url, status = EXCLUDED.status,
            responsavel_solicitacao = EXCLUDED.responsavel_solicitacao,
            responsavel_visita = EXCLUDED.responsavel_visita, lider_email = EXCLUDED.lider_email,
            atribuidor_email = EXCLUDED.atribuidor_email, data_atribuicao = EXCLUDED.data_atribuicao,
            created_at = EXCLUDED.created_at`
	_, err := r.pool.Exec(ctx, query, append(writeArgs(d), d.CreatedAt)...)
	return err
}

func writeArgs(d Demanda) []any {
	return []any{
		d.ID, d.Data, d.HoraInicio, d.Termino, d.Local, d.Bairro, d.Secretaria, d.Departamento,
		d.Objetivo, d.Avaliacao, d.ImagemURL, d.Status, d.ResponsavelSolicitacao, d.ResponsavelVisita,
		d.LiderEmail, d.AtribuidorEmail, d.DataAtribuicao,
	}
}

func (r *Repository) Get(ctx context.Context, id string) (Demanda, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+demandaColumns+` FROM demandas WHERE id = $1`, id)
	d, err := scanDemanda(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Demanda{}, ErrNotFound
		}
		return Demanda{}, err
	}
	return d, nil
}

// List executa o filtro; a semântica espelha Filter.Match.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Demanda, error) {
	query, args := buildListQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Demanda{}
	for rows.Next() {
		d, err := scanDemanda(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func buildListQuery(filter Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.ResponsavelSolicitacao != "" {
		args = append(args, filter.ResponsavelSolicitacao)
		clauses = append(clauses, fmt.Sprintf("responsavel_solicitacao = $%d", len(args)))
	}
	if filter.VisitaContains != "" {
		args = append(args, filter.VisitaContains)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(responsavel_visita)", len(args)))
	}
	if len(filter.Status) > 0 {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + demandaColumns + ` FROM demandas`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	if filter.OrderDesc {
		query += ` ORDER BY created_at DESC NULLS LAST, id`
	}
	return query, args
}

// UpdateStatus grava o status sem leitura prévia nem controle de versão.
func (r *Repository) UpdateStatus(ctx context.Context, id, status string) error {
	if err := r.execOne(ctx, `UPDATE demandas SET status = $2 WHERE id = $1`, id, status); err != nil {
		return err
	}
	r.publish(ctx, id, feed.OpUpdate)
	return nil
}

// Reassign substitui os responsáveis pela visita por um único funcionário.
func (r *Repository) Reassign(ctx context.Context, id string, a Assignment) error {
	const query = `
        UPDATE demandas
        SET responsavel_visita = ARRAY[$2::text], status = $3, atribuidor_email = $4, data_atribuicao = $5
        WHERE id = $1`
	if err := r.execOne(ctx, query, id, a.Worker, StatusDesignada, a.AtribuidorEmail, a.At); err != nil {
		return err
	}
	r.publish(ctx, id, feed.OpUpdate)
	return nil
}

// UpdateFields sobrescreve os campos editáveis.
func (r *Repository) UpdateFields(ctx context.Context, id string, e Edit) error {
	visita := e.ResponsavelVisita
	if visita == nil {
		visita = []string{}
	}
	const query = `
        UPDATE demandas SET
            data = $2, hora_inicio = $3, termino = $4, local = $5, bairro = $6, secretaria = $7,
            departamento = $8, objetivo = $9, avaliacao = $10, status = $11,
            responsavel_solicitacao = $12, responsavel_visita = $13, imagem_url = $14
        WHERE id = $1`
	err := r.execOne(ctx, query, id, e.Data, e.HoraInicio, e.Termino, e.Local, e.Bairro, e.Secretaria,
		e.Departamento, e.Objetivo, e.Avaliacao, e.Status, e.ResponsavelSolicitacao, visita, e.ImagemURL)
	if err != nil {
		return err
	}
	r.publish(ctx, id, feed.OpUpdate)
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.execOne(ctx, `DELETE FROM demandas WHERE id = $1`, id); err != nil {
		return err
	}
	r.publish(ctx, id, feed.OpDelete)
	return nil
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

// publish avisa os assinantes; a escrita já foi confirmada, então falhas só são logadas.
func (r *Repository) publish(ctx context.Context, id, op string) {
	if r.feed == nil {
		return
	}
	if err := r.feed.Publish(ctx, Collection, feed.Event{ID: id, Op: op, At: time.Now().UTC()}); err != nil {
		log.Warn().Err(err).Str("id", id).Str("op", op).Msg("falha ao publicar mudança de demanda")
	}
}

func scanDemanda(row pgx.Row) (Demanda, error) {
	var d Demanda
	err := row.Scan(
		&d.ID, &d.Data, &d.HoraInicio, &d.Termino, &d.Local, &d.Bairro, &d.Secretaria, &d.Departamento,
		&d.Objetivo, &d.Avaliacao, &d.ImagemURL, &d.Status, &d.ResponsavelSolicitacao, &d.ResponsavelVisita,
		&d.LiderEmail, &d.AtribuidorEmail, &d.DataAtribuicao, &d.CreatedAt,
	)
	return d, err
}
