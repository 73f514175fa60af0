// Command cashcal-token registers a user and prints a session token for it,
// for local development without Google login. Logs go to stderr so the
// token is the only thing on stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"cashcal/internal/auth"
	"cashcal/internal/cli"
	"cashcal/internal/log"
)

func main() {
	email := flag.String("user", "", "e-mail of the user to sign in as")
	flag.Parse()

	cfg, logger := cli.LoadAndValidateConfig(os.Stderr)
	userID := strings.ToLower(strings.TrimSpace(*email))
	if userID == "" {
		fmt.Fprintln(os.Stderr, "usage: cashcal-token -user someone@example.com")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := cli.OpenBackend(ctx, logger, cfg)
	defer cli.CloseBackend(logger, result)

	created, err := result.Directory.GetOrCreateUser(ctx, userID)
	if err != nil {
		logger.Error("Failed to register user", log.FieldUserID, userID, log.FieldError, err)
		cli.CloseBackend(logger, result)
		os.Exit(1)
	}

	token, expires, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL).Issue(userID)
	if err != nil {
		logger.Error("Failed to issue token", log.FieldError, err)
		cli.CloseBackend(logger, result)
		os.Exit(1)
	}
	logger.Info("Issued session token", log.FieldUserID, userID, log.FieldCreated, created, "expires", expires.Format(time.RFC3339))
	fmt.Println(token)
}
