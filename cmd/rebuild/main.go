// Package main provides a one-shot maintenance tool that rebuilds or
// verifies account holdings from the transaction ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"invest-ledger/internal/reconcile"
	"invest-ledger/internal/storage/migrations"
	pgstore "invest-ledger/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	accounts := flag.String("accounts", "", "Comma-separated account IDs to process")
	verifyOnly := flag.Bool("verify-only", false, "Verify without rewriting holdings")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *postgresDSN == "" {
		log.Fatal().Msg("--postgres-dsn is required")
	}
	accountList := splitAccounts(*accounts)
	if len(accountList) == 0 {
		log.Fatal().Msg("--accounts is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rebuilder := reconcile.NewRebuilder(reconcile.RebuilderOptions{
		Transactions: pgstore.NewTransactionStore(pool),
		Holdings:     pgstore.NewHoldingStore(pool),
		Ledger:       pgstore.NewLedgerStore(pool),
		Logger:       log,
	})

	divergent := false
	for _, accountID := range accountList {
		if *verifyOnly {
			report, err := rebuilder.Verify(ctx, accountID)
			if err != nil {
				log.Fatal().Err(err).Str("account", accountID).Msg("verify failed")
			}
			printReport(report)
			if !report.Clean() {
				divergent = true
			}
			continue
		}

		rebuilt, err := rebuilder.Rebuild(ctx, accountID)
		if err != nil {
			log.Fatal().Err(err).Str("account", accountID).Msg("rebuild failed")
		}
		fmt.Printf("%s: rebuilt %d holdings\n", accountID, len(rebuilt))
	}

	if divergent {
		os.Exit(2)
	}
}

func splitAccounts(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func printReport(r *reconcile.DivergenceReport) {
	if r.Clean() {
		fmt.Printf("%s: clean (%d holdings checked)\n", r.AccountID, r.Checked)
		return
	}

	fmt.Printf("%s: %d of %d holdings diverge\n", r.AccountID, r.Divergent, r.Checked)
	for _, d := range r.Divergences {
		fmt.Printf("  %s %s: stored %s, replayed %s\n", d.Key, d.Field, d.Stored, d.Replayed)
	}
}
