package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/provider-availability-scheduling/internal/app"
	"github.com/hackgods/provider-availability-scheduling/internal/availability"
	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
	"github.com/hackgods/provider-availability-scheduling/internal/config"
	"github.com/hackgods/provider-availability-scheduling/internal/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "schedctl",
		Short:         "Administer provider availability",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(weekCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-30s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.DateTime)
					}
				}
				fmt.Printf("%-10d %-30s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.PostgresDSN == "" {
		return nil, nil, fmt.Errorf("POSTGRES_DSN is required")
	}

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool), pool.Close, nil
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Inspect and assign availability templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the named templates in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			catalog := availability.DefaultCatalog()
			if cfg.TemplatesPath != "" {
				loaded, err := availability.LoadCatalog(cfg.TemplatesPath)
				if err != nil {
					return err
				}
				catalog.Replace(loaded)
			}

			for _, name := range catalog.Names() {
				tmpl, _ := catalog.Get(name)
				fmt.Printf("%-12s %s\n", name, describeTemplate(tmpl))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "apply <provider-id> <name>",
		Short: "Assign a named template to a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid provider id: %w", err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			tmpl, err := a.Store.ApplyNamedTemplate(cmd.Context(), providerID, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Applied %q to %s: %s\n", tmpl.Name, providerID, describeTemplate(tmpl))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <provider-id>",
		Short: "Show the template a provider currently follows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid provider id: %w", err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			tmpl, err := a.Store.Template(cmd.Context(), providerID)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", tmpl.Name, describeTemplate(*tmpl))
			return nil
		},
	})

	return cmd
}

func weekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week <provider-id> [offset]",
		Short: "Print a provider's week grid",
		Long: "Print a provider's week grid, one row per slot.\n" +
			"Legend: o available, x booked, . closed, - day off.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid provider id: %w", err)
			}
			offset := 0
			if len(args) == 2 {
				if offset, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("invalid week offset: %w", err)
				}
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			week, err := a.Store.GetWeek(cmd.Context(), providerID, offset)
			if err != nil {
				return err
			}
			fmt.Print(renderWeek(week))
			return nil
		},
	}
}

// openApp connects to the configured Postgres. Memory storage would start
// empty on every invocation, so it is refused.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Storage != "postgres" {
		return nil, fmt.Errorf("schedctl needs STORAGE=postgres, got %q", cfg.Storage)
	}
	cfg.LockBackend = "memory"
	return app.New(ctx, cfg, config.NewLogger(cfg, "schedctl"))
}

func describeTemplate(tmpl availability.Template) string {
	var parts []string
	for _, day := range tmpl.WorkingDays() {
		hours, _ := tmpl.Hours(day)
		parts = append(parts, fmt.Sprintf("%s %s-%s",
			day.String()[:3], calendar.FormatMinutes(hours.Start), calendar.FormatMinutes(hours.End)))
	}
	if len(parts) == 0 {
		return "(no working days)"
	}
	return strings.Join(parts, ", ")
}

func renderWeek(week calendar.WeekSchedule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "provider %s, week %+d, version %d\n", week.ProviderID, week.WeekOffset, week.Version)
	if len(week.Days) == 0 {
		return b.String()
	}

	b.WriteString("      ")
	for _, day := range week.Days {
		fmt.Fprintf(&b, " %s %s", day.DayOfWeek.String()[:3], day.Date.Format("01-02"))
	}
	b.WriteString("\n")

	for i, slot := range week.Days[0].Slots {
		b.WriteString(slot.Label())
		b.WriteString(" ")
		for _, day := range week.Days {
			fmt.Fprintf(&b, " %9s", slotMark(day, i))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func slotMark(day calendar.Day, i int) string {
	if !day.IsWorkingDay {
		return "-"
	}
	if i >= len(day.Slots) {
		return " "
	}
	switch slot := day.Slots[i]; {
	case slot.Booked():
		return "x"
	case slot.Available:
		return "o"
	default:
		return "."
	}
}
