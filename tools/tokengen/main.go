// Package main issues a bearer token for an existing identity so that
// operators can call owner-scoped endpoints such as /api/my-links.
//
// Usage:
//
//	JWT_SECRET=... go run ./tools/tokengen -user <id> [-ttl 24h]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atinyakov/linkvault/internal/auth"
)

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, out io.Writer) error {
	fs := flag.NewFlagSet("tokengen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	user := fs.String("user", "", "identity id the token names")
	ttl := fs.Duration("ttl", 24*time.Hour, "token validity")
	secret := fs.String("secret", "", "signing secret (defaults to $JWT_SECRET)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *secret == "" {
		*secret = getenv("JWT_SECRET")
	}
	switch {
	case *user == "":
		return errors.New("-user is required")
	case *secret == "":
		return errors.New("no secret: set -secret or JWT_SECRET")
	case *ttl <= 0:
		return errors.New("-ttl must be positive")
	}

	token, err := auth.GenerateToken(*user, []byte(*secret), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
