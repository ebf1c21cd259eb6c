package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prefsb/demandas/internal/db"
	"github.com/prefsb/demandas/internal/demanda"
	"github.com/prefsb/demandas/internal/importer"
	"github.com/prefsb/demandas/internal/usuario"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	_ = godotenv.Load()

	var (
		credentials = flag.String("credentials", os.Getenv("FIREBASE_CREDENTIALS_PATH"), "arquivo da conta de serviço do Firebase")
		dryRun      = flag.Bool("dry-run", false, "apenas converte e conta os documentos")
		migrate     = flag.Bool("migrate", true, "aplica as migrações antes de importar")
	)
	flag.Parse()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	ctx := context.Background()

	if *migrate && !*dryRun {
		if err := db.Migrate(dsn); err != nil {
			log.Fatal().Err(err).Msg("falha ao aplicar migrações")
		}
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	source, err := importer.NewFirestoreSource(ctx, *credentials)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível abrir o Firestore")
	}
	defer source.Close()

	// Sem publisher: nenhum cliente acompanha a base durante a importação.
	demandas := demanda.NewRepository(pool, nil)
	stats, err := importer.New(source, demandas, usuario.NewRepository(pool), *dryRun).Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Interface("parcial", stats).Msg("importação interrompida")
	}

	log.Info().
		Int("usuarios", stats.Usuarios).
		Int("autorizacoes", stats.Autorizacoes).
		Int("demandas", stats.Demandas).
		Int("sem_criacao", stats.SemCriacao).
		Int("ignorados", stats.Ignorados).
		Bool("dry_run", *dryRun).
		Msg("importação concluída")
}
