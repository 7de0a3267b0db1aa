package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"personastudio/internal/infra"
	"personastudio/internal/privileges"
)

func main() {
	var (
		grantFlag  string
		revokeFlag string
		noteFlag   string
		listFlag   bool
	)

	flag.StringVar(&grantFlag, "grant", "", "email to grant judge privileges")
	flag.StringVar(&revokeFlag, "revoke", "", "email to revoke judge privileges from")
	flag.StringVar(&noteFlag, "note", "", "free-form note stored with a grant")
	flag.BoolVar(&listFlag, "list", false, "list privileged accounts")
	flag.Parse()

	grant := strings.TrimSpace(grantFlag)
	revoke := strings.TrimSpace(revokeFlag)
	actions := 0
	for _, set := range []bool{grant != "", revoke != "", listFlag} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		exitWithError(errors.New("exactly one of -grant, -revoke or -list must be provided"))
	}

	_ = godotenv.Load()
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", os.Getenv("LOG_LEVEL")).With().Str("cmd", "privileges").Logger()
	store := privileges.NewStore(infra.NewSQLRunner(pool, logger))

	switch {
	case grant != "":
		acc, err := store.Grant(ctx, grant, noteFlag)
		if err != nil {
			exitWithError(fmt.Errorf("failed to grant privileges: %w", err))
		}
		fmt.Printf("Granted judge privileges to %s at %s\n", acc.Email, acc.GrantedAt.Format(time.RFC3339))
	case revoke != "":
		if err := store.Revoke(ctx, revoke); err != nil {
			exitWithError(fmt.Errorf("failed to revoke privileges: %w", err))
		}
		fmt.Printf("Revoked judge privileges from %s\n", revoke)
	default:
		accounts, err := store.List(ctx)
		if err != nil {
			exitWithError(fmt.Errorf("failed to list accounts: %w", err))
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "EMAIL\tGRANTED\tNOTE")
		for _, acc := range accounts {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", acc.Email, acc.GrantedAt.Format(time.DateOnly), acc.Note)
		}
		_ = tw.Flush()
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
