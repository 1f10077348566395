// Command devtoken mints bearer tokens for local and staging use. Login is
// owned by the upstream identity service; this stands in for it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/coralreef/resortpay/pkg/auth"
	"github.com/coralreef/resortpay/pkg/config"
	"github.com/coralreef/resortpay/pkg/enums"
	"github.com/coralreef/resortpay/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "devtoken"})

	_ = godotenv.Load()

	email := flag.String("email", "", "actor email")
	role := flag.String("role", string(enums.ActorRoleUser), "actor role: user|admin")
	flag.Parse()

	if *email == "" {
		exitf("missing -email\n")
	}
	actorRole := enums.ActorRole(*role)
	if !actorRole.IsValid() {
		exitf("invalid -role %q\n", *role)
	}

	// Only the signing settings are needed, not the full api config.
	var cfg struct {
		App config.AppConfig
		JWT config.JWTConfig
	}
	if err := envconfig.Process(config.EnvPrefix, &cfg); err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	if cfg.App.IsProd() {
		exitf("devtoken is disabled in %s\n", cfg.App.Env)
	}

	normalized := auth.NormalizeEmail(*email)
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		Subject: normalized,
		Email:   normalized,
		Role:    actorRole,
		JTI:     uuid.NewString(),
	})
	if err != nil {
		logg.Error(ctx, "failed to mint token", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
