// Command adduser bootstraps an account from the command line, for setups
// where open registration is disabled at the proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"carteira/internal/config"
	"carteira/internal/core"
	"carteira/internal/storage"
)

func main() {
	_ = godotenv.Load()

	email := flag.String("email", "", "email address of the new user")
	nome := flag.String("nome", "", "display name of the new user")
	flag.Parse()

	if *email == "" || *nome == "" {
		fmt.Fprintln(os.Stderr, "usage: adduser -email <email> -nome <name>")
		os.Exit(2)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read password: %v\n", err)
		os.Exit(1)
	}
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "password must be at least 8 characters")
		os.Exit(1)
	}

	cfg := config.Load()
	store, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}

	user := core.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		Nome:         strings.TrimSpace(*nome),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		fmt.Fprintf(os.Stderr, "create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created user %s (%s)\n", user.Email, user.ID)
}
