// Command devtoken prints a bearer token for local development. Sessions are
// issued by the identity frontend in production.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	jwttoken "instantverify/internal/jwt_token"
	"instantverify/internal/platform/config"
	id "instantverify/pkg/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	flags.SetOutput(stderr)
	user := flags.String("user", "", "user ID to issue the token for (random when empty)")
	ttl := flags.Duration("ttl", 0, "token lifetime (JWT_TTL when zero)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 1
	}

	userID := id.NewUserID()
	if *user != "" {
		if userID, err = id.ParseUserID(*user); err != nil {
			fmt.Fprintf(stderr, "invalid -user: %v\n", err)
			return 2
		}
	}
	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	token, err := svc.GenerateAccessToken(userID, lifetime)
	if err != nil {
		fmt.Fprintf(stderr, "sign token: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "user %s, expires in %s\n", userID, lifetime)
	fmt.Fprintln(stdout, token)
	return 0
}
