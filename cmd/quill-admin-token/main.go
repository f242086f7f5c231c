// Command quill-admin-token mints a bearer token for the admin API using
// ADMIN_JWT_SECRET from the environment or .env.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aiox-platform/quill/internal/auth"
	"github.com/aiox-platform/quill/internal/config"
)

func main() {
	subject := flag.String("subject", "operator", "name recorded in the token's sub claim")
	expiry := flag.Duration("expiry", 0, "token lifetime; defaults to ADMIN_TOKEN_EXPIRY")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if len(cfg.Admin.JWTSecret) < 32 {
		slog.Error("ADMIN_JWT_SECRET must be set and at least 32 characters")
		os.Exit(1)
	}

	lifetime := cfg.Admin.TokenExpiry
	if *expiry > 0 {
		lifetime = *expiry
	}

	tm := auth.NewTokenManager(cfg.Admin.JWTSecret, lifetime)
	token, err := tm.Issue(*subject)
	if err != nil {
		slog.Error("issuing token", "error", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(tm.Expiry()).Format(time.RFC3339))
}
