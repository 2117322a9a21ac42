package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"timesheets/internal/domain/auth"
	"timesheets/internal/domain/employee"
	"timesheets/internal/domain/export"
	"timesheets/internal/domain/timesheet"
	"timesheets/internal/platform/config"
	"timesheets/internal/platform/db"
	"timesheets/internal/transport/http/shared"
)

func SetupCommands(cfg config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "timesheetctl",
		Short:         "Operate the timesheets service",
		SilenceUsage:  true,
	}

	var statusOnly bool
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), cfg, func(ctx context.Context, pool *pgxpool.Pool) error {
				if !statusOnly {
					return db.Migrate(ctx, pool, cfg.MigrationsDir)
				}
				pending, err := db.Pending(ctx, pool, cfg.MigrationsDir)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				}
				for _, file := range pending {
					fmt.Fprintln(cmd.OutOrStdout(), "pending", file)
				}
				return nil
			})
		},
	}
	migrateCmd.Flags().BoolVar(&statusOnly, "status", false, "list pending migrations without applying them")

	seedCmd := &cobra.Command{
		Use:   "seed [employees.json]",
		Short: "Load employee directory records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			employees, err := db.LoadEmployees(args[0])
			if err != nil {
				return err
			}
			return withPool(cmd.Context(), cfg, func(ctx context.Context, pool *pgxpool.Pool) error {
				n, err := db.Seed(ctx, employee.NewStore(pool), employees)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d employees\n", n)
				return nil
			})
		},
	}

	var (
		userID     string
		employeeID string
		role       string
		ttl        time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Environment == "production" {
				return fmt.Errorf("token issuing is disabled in production")
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			if !auth.ValidRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := auth.GenerateToken(cfg.JWTSecret, auth.Claims{UserID: userID, EmployeeID: employeeID, RoleName: role}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&userID, "user", "", "user id")
	tokenCmd.Flags().StringVar(&employeeID, "employee", "", "employee id linked to the user")
	tokenCmd.Flags().StringVar(&role, "role", auth.RoleEmployee, "employee, manager or admin")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(exportCommand(cfg))
	return rootCmd
}

func exportCommand(cfg config.Config) *cobra.Command {
	var (
		format     string
		from       string
		to         string
		department string
		status     string
		employeeID string
		outDir     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a timesheet export file from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := export.ParseFormat(format)
			if err != nil {
				parsed = export.Format(strings.ToLower(strings.TrimSpace(format)))
			}
			start, err := shared.ParseDay(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := shared.ParseDay(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			req := export.Request{
				Format:     parsed,
				StartDate:  start,
				EndDate:    end,
				Department: strings.TrimSpace(department),
				Status:     strings.ToLower(strings.TrimSpace(status)),
				EmployeeID: strings.TrimSpace(employeeID),
			}
			if err := req.Validate(cfg.ExportMaxDays); err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			return withPool(cmd.Context(), cfg, func(ctx context.Context, pool *pgxpool.Pool) error {
				aggregator := export.NewAggregator(timesheet.NewStore(pool), employee.NewStore(pool), cfg.WeekStartDay, loc)
				file, err := export.NewExporter(aggregator, cfg.ExportMaxDays).Export(ctx, req)
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, file.Name)
				if err := os.WriteFile(path, file.Data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows)\n", path, file.Rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "csv, spreadsheet or document")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&department, "department", "", "department name")
	cmd.Flags().StringVar(&status, "status", "", "time entry status")
	cmd.Flags().StringVar(&employeeID, "employee", "", "employee id")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func withPool(parent context.Context, cfg config.Config, fn func(context.Context, *pgxpool.Pool) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer pool.Close()
	return fn(ctx, pool)
}
