package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/MedLine/internal/app"
	"github.com/hray3182/MedLine/internal/config"
	"github.com/hray3182/MedLine/internal/database"
	"github.com/hray3182/MedLine/internal/models"
	"github.com/hray3182/MedLine/internal/notify"
	"github.com/hray3182/MedLine/internal/repository"
	"github.com/hray3182/MedLine/internal/rrule"
	"github.com/hray3182/MedLine/internal/service"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "medctl",
		Short:        "Operator tools for the MedLine reminder bot",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(ruleCmd())
	rootCmd.AddCommand(tickCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(eventsCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("DATABASE_URI is required")
	}
	return cfg, nil
}

func connect(ctx context.Context) (*config.Config, *database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return cfg, db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}

func ruleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Inspect recurrence rules",
	}
	cmd.AddCommand(ruleCheckCmd())
	cmd.AddCommand(ruleNextCmd())
	return cmd
}

func ruleCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [rule]",
		Short: "Validate a rule and print its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := rrule.Parse(rrule.Normalize(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("Rule:  %s\n", rule.String())
			fmt.Printf("Means: %s\n", rrule.Describe(rule))
			return nil
		},
	}
}

func ruleNextCmd() *cobra.Command {
	var (
		anchorStr string
		tz        string
		count     int
	)

	cmd := &cobra.Command{
		Use:   "next [rule]",
		Short: "List the next occurrences of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := rrule.Parse(rrule.Normalize(args[0]))
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("invalid timezone: %w", err)
			}

			anchor := time.Now().In(loc)
			if anchorStr != "" {
				if anchor, err = time.ParseInLocation("2006-01-02T15:04", anchorStr, loc); err != nil {
					return fmt.Errorf("invalid anchor, use YYYY-MM-DDTHH:MM: %w", err)
				}
			}

			occurrences := rrule.NewEngine(loc).Preview(rule, anchor, count)
			if len(occurrences) == 0 {
				fmt.Println("No future occurrences")
				return nil
			}
			for _, t := range occurrences {
				fmt.Println(t.Format("Mon 2006-01-02 15:04:05 MST"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&anchorStr, "anchor", "", "start from this local time (YYYY-MM-DDTHH:MM), default now")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "timezone to evaluate in")
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of occurrences")
	return cmd
}

func tickCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one dispatch pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, db, err := connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			stores := app.PostgresStores(db)
			now := time.Now()

			if dryRun {
				due, err := stores.Reminders.ListDue(ctx, now)
				if err != nil {
					return err
				}
				for _, r := range due {
					fmt.Printf("#%d %s for %s, due %s\n", r.ReminderID, r.Medication.Name, r.PatientName,
						r.NextDispatch.In(cfg.Location).Format("2006-01-02 15:04"))
				}
				fmt.Printf("%d reminders due\n", len(due))
				return nil
			}

			if cfg.TelegramToken == "" {
				return fmt.Errorf("TELEGRAM_TOKEN is required to deliver reminders")
			}
			tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
			if err != nil {
				return fmt.Errorf("telegram: %w", err)
			}

			services := service.New(stores, notify.NewTelegram(tgAPI), app.Settings(cfg))
			report := services.Dispatcher.Tick(ctx, now)
			fmt.Println(report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list the reminders that are due")
	return cmd
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage user plans",
	}

	var until string
	setCmd := &cobra.Command{
		Use:   "set [user-id] [FREE|PREMIUM]",
		Short: "Set the plan of a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			plan := models.PlanTier(strings.ToUpper(args[1]))
			if plan != models.PlanFree && plan != models.PlanPremium {
				return fmt.Errorf("plan must be FREE or PREMIUM")
			}

			var proUntil *time.Time
			if plan == models.PlanPremium {
				if until == "" {
					return fmt.Errorf("--until is required for PREMIUM")
				}
				t, err := time.Parse("2006-01-02", until)
				if err != nil {
					return fmt.Errorf("invalid --until, use YYYY-MM-DD: %w", err)
				}
				proUntil = &t
			}

			_, db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.NewUserRepository(db).SetPlan(cmd.Context(), userID, plan, proUntil); err != nil {
				return err
			}
			fmt.Printf("User %d is now %s\n", userID, plan)
			return nil
		},
	}
	setCmd.Flags().StringVar(&until, "until", "", "premium expiry date (YYYY-MM-DD)")

	cmd.AddCommand(setCmd)
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [user-id]",
		Short: "Print the taken history of a user, grouped by patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			cfg, db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			services := service.New(app.PostgresStores(db), nil, app.Settings(cfg))
			groups, err := services.History.TakenHistoryByPatient(cmd.Context(), userID)
			if err != nil {
				return err
			}
			for _, group := range groups {
				fmt.Printf("%s\n", group.Label)
				for _, medication := range group.ByMedication() {
					fmt.Printf("  %s (%d)\n", medication.Name, len(medication.Entries))
					for _, entry := range medication.Entries {
						fmt.Printf("    %s\n", entry.TakenAt.In(cfg.Location).Format("2006-01-02 15:04"))
					}
				}
			}
			return nil
		},
	}
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events [reminder-id]",
		Short: "Print every event of a reminder, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reminderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid reminder id: %w", err)
			}

			cfg, db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := repository.NewEventRepository(db).ListByReminder(cmd.Context(), reminderID)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No events")
				return nil
			}
			for _, event := range events {
				handle := event.CorrelationHandle
				if handle == "" {
					handle = "-"
				}
				fmt.Printf("%s  %s  %-17s snoozes=%d attempts=%d handle=%s\n",
					event.EventID, event.DispatchTime.In(cfg.Location).Format("2006-01-02 15:04"),
					event.Status, event.SnoozeCount, event.DeliveryAttempts, handle)
			}
			return nil
		},
	}
}
