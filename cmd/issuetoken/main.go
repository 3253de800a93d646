// Command issuetoken mints an access token for an operator or admin account,
// signed with the server's JWT_SECRET, JWT_ISSUER and JWT_TTL.
//
//	issuetoken -user 6f1d1d8e-... -role operator
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/nekogravitycat/court-booking-engine/internal/auth"
	"github.com/nekogravitycat/court-booking-engine/internal/config"
)

func main() {
	userID := flag.String("user", "", "user ID (UUID) to put in the token subject")
	role := flag.String("role", auth.RoleOperator, "role claim: user, operator or admin")
	flag.Parse()

	if _, err := uuid.Parse(*userID); err != nil {
		log.Fatalf("-user must be a UUID: %v", err)
	}

	cfg, err := config.LoadAuth()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL).GenerateAccessToken(*userID, *role)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
}
