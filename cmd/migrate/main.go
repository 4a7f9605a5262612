package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"accountd.io/internal/account"
	"accountd.io/internal/audit"
	"accountd.io/internal/auth"
	"accountd.io/internal/migrate"
	"accountd.io/internal/store/pg"
)

var (
	dsn     string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Manage the accountd PostgreSQL schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd.Context(), func(ctx context.Context, mgr *migrate.Manager) error {
			applied, err := mgr.Up(ctx)
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			if err == nil && len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to apply")
			}
			return err
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd.Context(), func(ctx context.Context, mgr *migrate.Manager) error {
			name, err := mgr.Down(ctx)
			if errors.Is(err, migrate.ErrNothingToRollback) {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back", name)
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply seed files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd.Context(), func(ctx context.Context, mgr *migrate.Manager) error {
			applied, err := mgr.Seed(ctx)
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "seeded", name)
			}
			return err
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd.Context(), func(ctx context.Context, mgr *migrate.Manager) error {
			status, err := mgr.Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range status {
				mark := "pending"
				if s.Applied {
					mark = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", mark, s.Name)
			}
			return nil
		})
	},
}

var (
	adminUsername string
	adminEmail    string
	adminPassword string
	bcryptCost    int
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create the first administrator account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if adminPassword == "" {
			adminPassword = os.Getenv("ACCOUNTD_ADMIN_PASSWORD")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		rec := audit.NewRecorder(store.Audit())
		svc := account.NewService(store.Principals(), store.Roles(), auth.NewBcryptHasher(bcryptCost), rec)
		p, err := svc.BootstrapAdmin(ctx, auth.RegisterRequest{
			Username: adminUsername,
			Password: adminPassword,
			Email:    adminEmail,
		})
		if err != nil {
			if msg, ok := auth.Message(err); ok {
				return errors.New(msg)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", p.Username, p.ID)
		return nil
	},
}

func openStore() (*pg.Store, error) {
	if dsn == "" {
		return nil, errors.New("missing DSN: provide via --dsn or ACCOUNTD_PG_DSN")
	}
	return pg.Open(dsn)
}

func withManager(parent context.Context, fn func(context.Context, *migrate.Manager) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, migrate.NewManager(store.DB(), nil))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("ACCOUNTD_PG_DSN"), "PostgreSQL DSN")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall operation timeout")

	bootstrapCmd.Flags().StringVar(&adminUsername, "username", "admin", "Administrator username")
	bootstrapCmd.Flags().StringVar(&adminEmail, "email", "", "Administrator email")
	bootstrapCmd.Flags().StringVar(&adminPassword, "password", "", "Administrator password (or ACCOUNTD_ADMIN_PASSWORD)")
	bootstrapCmd.Flags().IntVar(&bcryptCost, "bcrypt-cost", 10, "bcrypt cost")
	_ = bootstrapCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(upCmd, downCmd, seedCmd, statusCmd, bootstrapCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
