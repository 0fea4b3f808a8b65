package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/hms/internal/config"
	"github.com/ehr/hms/internal/domain/admin"
	"github.com/ehr/hms/internal/domain/records"
	"github.com/ehr/hms/internal/platform/auth"
	"github.com/ehr/hms/internal/platform/db"
	"github.com/ehr/hms/internal/platform/persistence"
)

// defaultAdminPassword is only accepted outside production.
const defaultAdminPassword = "Admin@123"

func main() {
	rootCmd := &cobra.Command{
		Use:          "hms-server",
		Short:        "Hospital management API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetBool("seed")
			return runServer(cmd.Context(), seed)
		},
	}
	cmd.Flags().Bool("seed", false, "Seed departments and the admin account before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, err := openFromConfig(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := db.NewMigrator(store, db.Migrations(store.Dialect())).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, err := openFromConfig(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			statuses, err := db.NewMigrator(store, db.Migrations(store.Dialect())).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed departments and the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("admin-password")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := context.Background()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := runSeed(ctx, cfg, records.NewFactory(store), password)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d department(s); admin created: %t\n", res.Departments, res.AdminCreated)
			return nil
		},
	}
	cmd.Flags().String("admin-password", "", "Password for the admin account (default from HMS_ADMIN_PASSWORD)")
	return cmd
}

func runSeed(ctx context.Context, cfg *config.Config, uow *records.Factory, password string) (*admin.SeedResult, error) {
	if password == "" {
		password = os.Getenv("HMS_ADMIN_PASSWORD")
	}
	if password == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("an admin password is required in production")
		}
		password = defaultAdminPassword
	}
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)
	ctx = persistence.WithPrincipal(ctx, persistence.SystemPrincipal)
	return admin.NewService(uow, tokens).Seed(ctx, password)
}

func openFromConfig(ctx context.Context) (persistence.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return openStore(ctx, cfg)
}

// openStore connects to the configured database.
func openStore(ctx context.Context, cfg *config.Config) (persistence.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		store, err := db.OpenPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		store, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}
