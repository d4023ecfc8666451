package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/strollr-labs/strollr/internal/daemon"
	"github.com/strollr-labs/strollr/internal/domain"
	"github.com/strollr-labs/strollr/internal/infra/sqlite"
)

// ─── Ledger Inspection ──────────────────────────────────────────────────────
// Operator tooling for the on-demand query credit ledgers. Works directly on
// the database, so run it against a stopped daemon or a copy.

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerResetCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and repair on-demand query credit ledgers",
}

func openLedgerDB() (*sqlite.DB, error) {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return sqlite.Open(cfg.Storage.Path)
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show USER_ID",
	Short: "Show a user's credit ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedgerDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ledger, err := db.GetLedger(context.Background(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "user\t%s\n", ledger.UserID)
		fmt.Fprintf(w, "credits\t%d / %d\n", ledger.CreditsRemaining, ledger.MaxCreditsPerPeriod)
		fmt.Fprintf(w, "last reset\t%s\n", formatTime(ledger.LastResetAt))
		fmt.Fprintf(w, "last query\t%s\n", formatTime(ledger.LastQueryAt))
		if _, changed := ledger.Normalize(time.Now()); changed {
			fmt.Fprintf(w, "note\twould be healed on next query\n")
		}
		return w.Flush()
	},
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset USER_ID",
	Short: "Reset a user's ledger to a fresh full budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedgerDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fresh := domain.NewCreditLedger(args[0], time.Now())
		if err := db.PutLedger(context.Background(), fresh); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "ledger for %s reset to %d credits\n",
			fresh.UserID, fresh.CreditsRemaining)
		return nil
	},
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users with a stored ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedgerDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ids, err := db.ListLedgerUserIDs(context.Background())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(os.Stdout, id)
		}
		return nil
	},
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
