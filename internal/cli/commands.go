package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/credit-ledger/internal/app/bootstrap"
	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/jwt"
	"github.com/magabrotheeeer/credit-ledger/internal/lib/secret"
	"github.com/magabrotheeeer/credit-ledger/internal/migrations"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
	"github.com/magabrotheeeer/credit-ledger/internal/services/ledger"
	"github.com/magabrotheeeer/credit-ledger/internal/storage"
)

const commandTimeout = 5 * time.Minute

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(opts, func(cfg *config.Config, db *storage.Storage) error {
				if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(opts, func(cfg *config.Config, db *storage.Storage) error {
				if err := migrations.Rollback(db.DB, cfg.MigrationsPath, steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

func withDB(opts *options, fn func(cfg *config.Config, db *storage.Storage) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if strings.HasPrefix(cfg.StorageConnectionString, bootstrap.MemoryDSN) {
		return fmt.Errorf("migrations need a PostgreSQL connection string")
	}
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(cfg, db)
}

func withServices(cmd *cobra.Command, opts *options, fn func(ctx context.Context, svc *bootstrap.Services) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	log := opts.logger()

	store, err := bootstrap.OpenStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	c := bootstrap.OpenCache(ctx, cfg.RedisConnection, log)
	if c != nil {
		defer c.Close()
	}

	svc, err := bootstrap.NewServices(cfg, log, store, c, bootstrap.Publisher(nil, log))
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

func newSeedSlotsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-slots",
		Short: "Create or resize lifetime slot pools from the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, opts, func(ctx context.Context, svc *bootstrap.Services) error {
				if err := svc.Slots.Seed(ctx); err != nil {
					return err
				}
				avail, err := svc.Slots.Availability(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, avail)
			})
		},
	}
}

func newGrantCmd(opts *options) *cobra.Command {
	var (
		accountID string
		amount    int64
		reason    string
		ref       string
	)
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Credit an account manually (ADJUSTMENT)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if accountID == "" || reason == "" {
				return fmt.Errorf("--account and --reason are required")
			}
			return withServices(cmd, opts, func(ctx context.Context, svc *bootstrap.Services) error {
				balance, err := svc.Ledger.Credit(ctx, ledger.CreditRequest{
					AccountID:   accountID,
					Amount:      amount,
					Kind:        models.KindAdjustment,
					ExternalRef: ref,
					Description: "ledgerctl: " + reason,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "account %s balance %d\n", accountID, balance)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "credits to add")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the journal")
	cmd.Flags().StringVar(&ref, "ref", "", "external reference, makes the grant idempotent")
	return cmd
}

func newRefundsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refunds",
		Short: "Inspect and retry compensating refunds",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List refunds that have not succeeded yet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, opts, func(ctx context.Context, svc *bootstrap.Services) error {
				pending, err := svc.Compensator.Pending(ctx, limit)
				if err != nil {
					return err
				}
				if pending == nil {
					pending = []models.RefundAttempt{}
				}
				return printJSON(cmd, pending)
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 100, "maximum rows")

	retry := &cobra.Command{
		Use:   "retry",
		Short: "Retry every unsettled refund once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, opts, func(ctx context.Context, svc *bootstrap.Services) error {
				report, err := svc.Compensator.RetryPending(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}

	cmd.AddCommand(list, retry)
	return cmd
}

func newHashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret SECRET",
		Short: "Print the bcrypt hash to put into admin.secret_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := secret.Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newTokenCmd(opts *options) *cobra.Command {
	var accountID, email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an account (local testing)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if accountID == "" {
				return fmt.Errorf("--account is required")
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.JWTSecretKey == "" {
				return fmt.Errorf("jwttoken.jwt_secret_key is empty")
			}
			token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL).GenerateToken(accountID, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
