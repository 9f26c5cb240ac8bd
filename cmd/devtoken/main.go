// Package main prints a signed access token for local testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aura-learn/quiz-backend/config"
	"github.com/aura-learn/quiz-backend/internal/auth"
	"github.com/aura-learn/quiz-backend/internal/models"
)

func main() {
	var (
		userID int64
		role   string
		email  string
	)
	flag.Int64Var(&userID, "user", 1, "user id placed in the token")
	flag.StringVar(&role, "role", string(models.RoleStudent), "tutor or student")
	flag.StringVar(&email, "email", "", "optional email claim")
	flag.Parse()

	if role != string(models.RoleTutor) && role != string(models.RoleStudent) {
		fmt.Fprintf(os.Stderr, "role must be %q or %q\n", models.RoleTutor, models.RoleStudent)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	tok, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours).Generate(userID, email, role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
