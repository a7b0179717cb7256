package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"goodies-platform/config"
	"goodies-platform/internal/app"
	"goodies-platform/internal/services"
	"goodies-platform/pkg/database"
	"goodies-platform/pkg/logger"
)

// withApp loads configuration, builds the application against postgres
// and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx := cmd.Context()
	a, err := app.Build(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.RequireDB(); err != nil {
		return err
	}
	return fn(ctx, a)
}

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				applied, err := database.ApplyRawMigrations(ctx, a.DB, dir)
				if err != nil {
					return err
				}
				for _, name := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "migrations", "directory containing *.up.sql files")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete processed-event ledger rows older than LEDGER_RETENTION",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Sweeper.SweepOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d ledger rows\n", n)
				return nil
			})
		},
	}
}

func failuresCmd() *cobra.Command {
	var (
		all   bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List recorded reconciliation failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				failures, err := a.Replay.List(ctx, !all, limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPROVIDER\tEVENT\tTYPE\tCREATED\tRESOLVED\tERROR")
				for _, f := range failures {
					resolved := "-"
					if f.ResolvedAt.Valid {
						resolved = f.ResolvedAt.Time.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						f.ID, f.Provider, f.EventID, f.EventType, f.CreatedAt.Format(time.RFC3339), resolved, f.Error)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include resolved failures")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")
	return cmd
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <failure-id>",
		Short: "Re-apply a recorded reconciliation failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid failure id: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				rec, err := a.Replay.Replay(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replayed %s: %s\n", id, rec.Outcome)
				if rec.Totals != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "campaign %s now at %d cents from %d backers\n",
						rec.Totals.CampaignID, rec.Totals.CurrentAmountCents, rec.Totals.Backers)
				}
				return nil
			})
		},
	}
}

func adminTokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Mint an admin API token signed with ADMIN_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("ADMIN_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("ADMIN_JWT_SECRET is not set")
			}
			ttl := 30 * time.Minute
			if raw := os.Getenv("ADMIN_TOKEN_TTL"); raw != "" {
				d, err := time.ParseDuration(raw)
				if err != nil {
					return fmt.Errorf("ADMIN_TOKEN_TTL: %w", err)
				}
				ttl = d
			}
			token, expiresIn, err := services.NewAdminAuthService(secret, "", ttl).IssueToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires in %ds\n", expiresIn)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "goodiesctl", "token subject recorded in admin logs")
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <admin-key>",
		Short: "Print the bcrypt hash to put in ADMIN_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := services.HashAdminKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
