package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/prefsb/demandas/internal/demanda"
	"github.com/prefsb/demandas/internal/usuario"
	"github.com/prefsb/demandas/internal/util"
)

// Coleções legadas lidas pelo importador.
const (
	CollectionDemandas     = "demandas"
	CollectionUsuarios     = "usuarios"
	CollectionUsuariosTemp = "usuarios_temp"
)

// Source percorre os documentos de uma coleção.
type Source interface {
	Each(ctx context.Context, collection string, fn func(Document) error) error
}

// DemandaSink grava demandas preservando o id.
type DemandaSink interface {
	Import(ctx context.Context, d demanda.Demanda) error
}

// UsuarioSink grava usuários e autorizações pendentes.
type UsuarioSink interface {
	Create(ctx context.Context, u usuario.Usuario) error
	UpsertPending(ctx context.Context, p usuario.AutorizacaoPendente) error
}

// Stats resume uma execução.
type Stats struct {
	Demandas     int
	SemCriacao   int
	Usuarios     int
	Autorizacoes int
	Ignorados    int
}

// Importer copia as coleções legadas para o Postgres. Reexecuções sobrescrevem
// os registros com o mesmo id.
type Importer struct {
	source   Source
	demandas DemandaSink
	usuarios UsuarioSink
	dryRun   bool
}

// New cria o importador. Com dryRun os documentos são convertidos mas não gravados.
func New(source Source, demandas DemandaSink, usuarios UsuarioSink, dryRun bool) *Importer {
	return &Importer{source: source, demandas: demandas, usuarios: usuarios, dryRun: dryRun}
}

// Run importa usuários, autorizações e demandas, nessa ordem.
func (i *Importer) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	err := i.source.Each(ctx, CollectionUsuarios, func(doc Document) error {
		u := ToUsuario(doc)
		if u.Email == "" {
			stats.Ignorados++
			log.Warn().Str("id", doc.ID).Msg("usuário sem e-mail ignorado")
			return nil
		}
		if !tipoConhecido(u.Tipo) {
			log.Warn().Str("id", doc.ID).Str("tipo", u.Tipo).Msg("usuário com tipo desconhecido ficará sem acesso")
		}
		if u.CriadoEm.IsZero() {
			u.CriadoEm = util.Now()
		}
		stats.Usuarios++
		if i.dryRun {
			return nil
		}
		return i.usuarios.Create(ctx, u)
	})
	if err != nil {
		return stats, fmt.Errorf("importar %s: %w", CollectionUsuarios, err)
	}

	err = i.source.Each(ctx, CollectionUsuariosTemp, func(doc Document) error {
		p := ToPending(doc)
		if p.Email == "" {
			stats.Ignorados++
			return nil
		}
		if p.CriadoEm.IsZero() {
			p.CriadoEm = util.Now()
		}
		stats.Autorizacoes++
		if i.dryRun {
			return nil
		}
		return i.usuarios.UpsertPending(ctx, p)
	})
	if err != nil {
		return stats, fmt.Errorf("importar %s: %w", CollectionUsuariosTemp, err)
	}

	err = i.source.Each(ctx, CollectionDemandas, func(doc Document) error {
		d := ToDemanda(doc)
		if d.CreatedAt == nil {
			stats.SemCriacao++
			log.Warn().Str("id", doc.ID).Msg("demanda sem createdAt válido ficará fora dos relatórios")
		}
		stats.Demandas++
		if i.dryRun {
			return nil
		}
		return i.demandas.Import(ctx, d)
	})
	if err != nil {
		return stats, fmt.Errorf("importar %s: %w", CollectionDemandas, err)
	}

	return stats, nil
}
