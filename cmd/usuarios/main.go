package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prefsb/demandas/internal/auth"
	"github.com/prefsb/demandas/internal/config"
	"github.com/prefsb/demandas/internal/db"
	"github.com/prefsb/demandas/internal/identity"
	"github.com/prefsb/demandas/internal/usuario"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	// hash não precisa de banco.
	if cmd == "hash" {
		if err := runHash(args); err != nil {
			log.Fatal().Err(err).Msg("falha ao gerar hash")
		}
		return
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	// Só o provedor local grava credenciais; CreateAccount não usa Redis.
	provider := identity.NewLocalProvider(identity.NewCredentialRepository(pool), nil, nil, identity.LogNotifier{}, time.Hour)
	service := usuario.NewService(usuario.NewRepository(pool), provider)

	switch cmd {
	case "criar":
		if err := runCreate(ctx, service, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao criar usuário")
		}
	case "autorizar":
		if err := runAuthorize(ctx, service, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao autorizar funcionário")
		}
	case "listar":
		if err := runList(ctx, service); err != nil {
			log.Fatal().Err(err).Msg("falha ao listar usuários")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usuarios CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  usuarios criar --email lider@prefsb.com --senha segredo --tipo lider [--nome \"Fulano\"] [--admin admin@prefsb.com]")
	fmt.Fprintln(os.Stderr, "  usuarios autorizar --lider lider@prefsb.com --email funcionario@prefsb.com")
	fmt.Fprintln(os.Stderr, "  usuarios listar")
	fmt.Fprintln(os.Stderr, "  usuarios hash <senha>")
}

func runCreate(ctx context.Context, service *usuario.Service, args []string) error {
	fs := flag.NewFlagSet("criar", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		email = fs.String("email", "", "e-mail da conta")
		senha = fs.String("senha", "", "senha inicial (mínimo 6 caracteres)")
		tipo  = fs.String("tipo", identity.TipoLider, "lider ou trabalhador")
		nome  = fs.String("nome", "", "nome exibido")
		admin = fs.String("admin", config.DefaultAdminEmail, "administrador que assume trabalhadores criados")
	)

	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := service.CreateUser(ctx, *admin, usuario.CreateUserInput{
		Email: *email,
		Senha: *senha,
		Tipo:  *tipo,
		Nome:  *nome,
	})
	if err != nil {
		if identity.AuthCode(err) != "" {
			return errors.New(identity.Message(identity.OpCadastro, err))
		}
		return err
	}

	output, _ := json.MarshalIndent(user, "", "  ")
	fmt.Println(string(output))
	return nil
}

func runAuthorize(ctx context.Context, service *usuario.Service, args []string) error {
	fs := flag.NewFlagSet("autorizar", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		lider = fs.String("lider", "", "e-mail do líder responsável")
		email = fs.String("email", "", "e-mail do funcionário")
	)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*lider) == "" {
		return errors.New("lider é obrigatório")
	}

	pending, err := service.AuthorizeWorker(ctx, *lider, *email)
	if err != nil {
		return err
	}

	output, _ := json.MarshalIndent(pending, "", "  ")
	fmt.Println(string(output))
	return nil
}

func runList(ctx context.Context, service *usuario.Service) error {
	users, err := service.ListUsers(ctx)
	if err != nil {
		return err
	}

	if len(users) == 0 {
		fmt.Println("nenhum usuário cadastrado")
		return nil
	}

	encoded, _ := json.MarshalIndent(users, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

func runHash(args []string) error {
	if len(args) < 1 {
		return errors.New("uso: usuarios hash <senha>")
	}
	hash, err := auth.Hash(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
