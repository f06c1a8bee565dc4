// Command issue-token mints a bearer token for an operator or a
// collaborating service.
//
// Usage:
//
//	issue-token -sub op-17 -role issuer
//	issue-token -sub questionnaire -role system -ttl 720h
//
// Reads AUTH_JWT_SECRET, AUTH_JWT_ISSUER and AUTH_ACCESS_TOKEN_TTL from the
// environment.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/heartmarshall/laudo-backend/internal/auth"
	"github.com/heartmarshall/laudo-backend/pkg/ctxutil"
)

func main() {
	sub := flag.String("sub", "", "actor id (token subject)")
	role := flag.String("role", ctxutil.RoleIssuer, "issuer or system")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to AUTH_ACCESS_TOKEN_TTL or 8h")
	flag.Parse()

	secret := os.Getenv("AUTH_JWT_SECRET")
	if len(secret) < 32 {
		log.Fatal("AUTH_JWT_SECRET must be set and at least 32 characters")
	}
	issuer := os.Getenv("AUTH_JWT_ISSUER")
	if issuer == "" {
		issuer = "laudo"
	}

	lifetime := *ttl
	if lifetime == 0 {
		lifetime = 8 * time.Hour
		if raw := os.Getenv("AUTH_ACCESS_TOKEN_TTL"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				log.Fatalf("parse AUTH_ACCESS_TOKEN_TTL: %v", err)
			}
			lifetime = d
		}
	}

	if *sub == "" {
		log.Fatal("-sub is required")
	}
	if *role != ctxutil.RoleIssuer && *role != ctxutil.RoleSystem {
		log.Fatalf("unknown role %q", *role)
	}

	mgr := auth.NewJWTManager(secret, issuer, lifetime)
	token, err := mgr.GenerateAccessToken(ctxutil.Actor{ID: *sub, Role: *role})
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
}
