package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/agencyledger/internal/adapter/http/dto"
	"github.com/iho/agencyledger/internal/adapter/http/middleware"
	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/infrastructure/auth"
	"github.com/iho/agencyledger/internal/infrastructure/config"
	"github.com/iho/agencyledger/internal/infrastructure/logger"
	"github.com/iho/agencyledger/internal/infrastructure/postgres"
)

func payCmd(opts *options) *cobra.Command {
	var (
		req            dto.RecordPaymentRequest
		amount         string
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Record a payment against an entity balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			if !amt.IsPositive() {
				return fmt.Errorf("amount must be positive, got %s", amt)
			}
			req.Amount = amt

			if idempotencyKey == "" {
				idempotencyKey = ulid.Make().String()
			}
			headers := map[string]string{middleware.IdempotencyKeyHeader: idempotencyKey}

			var payment dto.PaymentResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/payments", nil, req, headers, &payment); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), payment)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "payment %s recorded: %s %s from %s %s (idempotency key %s)\n",
				payment.ID, payment.Amount.StringFixed(2), payment.CurrencyID, payment.EntityRole, payment.EntityID, idempotencyKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.EntityRole, "role", "customer", "Entity role: customer, affiliate or supplier")
	cmd.Flags().StringVar(&req.EntityID, "entity", "", "Entity ID")
	cmd.Flags().StringVar(&req.RecordID, "record", "", "Residence the payment is tied to")
	cmd.Flags().StringVar(&req.Kind, "kind", "", "Charge the payment offsets: sale, fine, cancellation, tawjeeh, insurance, custom, cancel_payment")
	cmd.Flags().StringVar(&req.ReferenceID, "ref", "", "ID of the offset charge")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to pay")
	cmd.Flags().StringVar(&req.CurrencyID, "currency", "", "Currency ID")
	cmd.Flags().StringVar(&req.AccountID, "account", "", "Receiving account")
	cmd.Flags().StringVar(&req.Remarks, "remarks", "", "Free text remarks")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key; generated when empty")
	for _, f := range []string{"entity", "amount", "currency", "account"} {
		_ = cmd.MarkFlagRequired(f)
	}

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret, userID, role string
		ttl                  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("a signing secret is required (--secret or JWT_SECRET)")
			}
			token, err := auth.NewJWTManager(secret).Issue(userID, domain.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleViewer), "Role: admin, operator or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func migrateCmd() *cobra.Command {
	var databaseURL, path string

	newMigrator := func(cmd *cobra.Command) (*postgres.Migrator, error) {
		if databaseURL == "" || path == "" {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			if databaseURL == "" {
				databaseURL = cfg.DatabaseURL
			}
			if path == "" {
				path = cfg.MigrationsPath
			}
		}
		logg := logger.NewWithWriter(logger.Config{Level: "info", Format: "console"}, cmd.ErrOrStderr())
		return postgres.NewMigrator(databaseURL, path, logg), nil
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Database URL; defaults to DATABASE_URL")
	cmd.PersistentFlags().StringVar(&path, "path", "", "Migrations directory; defaults to MIGRATIONS_PATH")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			return m.Up()
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			m, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			return m.Down(steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
