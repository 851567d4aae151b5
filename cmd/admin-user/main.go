package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/cosmetica/clinic-booking/internal/app/bootstrap"
	"github.com/cosmetica/clinic-booking/internal/auth"
	appconfig "github.com/cosmetica/clinic-booking/internal/config"
)

type upserter interface {
	Upsert(ctx context.Context, email, passwordHash string) (string, error)
}

func main() {
	email := flag.String("email", "", "admin email")
	flag.Parse()

	cfg := appconfig.Load()
	if err := cfg.ValidateStorage(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	poolCfg, err := bootstrap.PoolConfig(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	db := stdlib.OpenDB(*poolCfg.ConnConfig)
	defer func() { _ = db.Close() }()

	id, err := run(context.Background(), auth.NewUserStore(db), *email, os.Getenv("ADMIN_PASSWORD"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("admin user %s ready (%s)\n", strings.ToLower(strings.TrimSpace(*email)), id)
}

// run creates the admin or resets its password. The password is read from
// ADMIN_PASSWORD so it never appears in shell history.
func run(ctx context.Context, store upserter, email, password string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", errors.New("-email is required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	return store.Upsert(ctx, email, hash)
}
