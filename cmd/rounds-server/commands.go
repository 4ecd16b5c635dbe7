package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noemisales1009/Round-Juju/internal/domain/checklist"
	"github.com/noemisales1009/Round-Juju/internal/domain/task"
	"github.com/noemisales1009/Round-Juju/internal/platform/auth"
	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
	"github.com/noemisales1009/Round-Juju/internal/platform/db"
)

// -- tasks --

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect ward tasks",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the tasks currently in a status bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawStatus, _ := cmd.Flags().GetString("status")
			rawAt, _ := cmd.Flags().GetString("at")

			status, ok := task.ParseStatus(rawStatus)
			if !ok {
				return fmt.Errorf("--status must be one of %s", joinStatuses())
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			clk, err := cliClock(rawAt, loc)
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, svcs, err := bootstrap(ctx, cfg, clk)
			if err != nil {
				return err
			}
			defer pool.Close()

			now := clk.Now()
			tasks, err := svcs.tasks.ListByLiveStatus(ctx, status, now)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), status, now, tasks)
			return nil
		},
	}
	listCmd.Flags().String("status", string(task.StatusAlerta), "Live status bucket: "+joinStatuses())
	listCmd.Flags().String("at", "", "Evaluate at this RFC 3339 instant instead of now")
	cmd.AddCommand(listCmd)

	return cmd
}

func joinStatuses() string {
	names := make([]string, len(task.Statuses))
	for i, s := range task.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// cliClock returns the system clock, or a fixed one when --at is given.
func cliClock(rawAt string, loc *time.Location) (clock.Clock, error) {
	if rawAt == "" {
		return clock.NewSystem(loc), nil
	}
	at, err := time.Parse(time.RFC3339, rawAt)
	if err != nil {
		return nil, fmt.Errorf("--at: %w", err)
	}
	return clock.NewFixed(at, loc), nil
}

func printTasks(w io.Writer, status task.Status, now time.Time, tasks []*task.LiveTask) {
	fmt.Fprintf(w, "%d task(s) %s at %s\n", len(tasks), status, now.Format(time.RFC3339))
	if len(tasks) == 0 {
		return
	}
	fmt.Fprintf(w, "%-36s %-36s %-25s %-20s %s\n", "ID", "PATIENT", "RESPONSIBLE", "DEADLINE", "DESCRIPTION")
	for _, t := range tasks {
		fmt.Fprintf(w, "%-36s %-36s %-25s %-20s %s\n",
			t.ID, t.PatientID, t.Responsible, t.Deadline.In(now.Location()).Format("2006-01-02 15:04"), t.Description)
	}
}

// -- checklist --

func checklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Inspect round checklists",
	}

	completionCmd := &cobra.Command{
		Use:   "completion",
		Short: "Print the round completion of every patient answered on a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawDay, _ := cmd.Flags().GetString("day")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			clk := clock.NewSystem(loc)

			day := clk.Today()
			if rawDay != "" {
				if day, err = clock.ParseDate(rawDay); err != nil {
					return fmt.Errorf("--day: %w", err)
				}
			}

			ctx := context.Background()
			pool, svcs, err := bootstrap(ctx, cfg, clk)
			if err != nil {
				return err
			}
			defer pool.Close()

			comps, err := svcs.checklist.WardCompletion(ctx, day)
			if err != nil {
				return err
			}
			printCompletion(cmd.OutOrStdout(), day, svcs.catalog, comps)
			return nil
		},
	}
	completionCmd.Flags().String("day", "", "Calendar day YYYY-MM-DD (defaults to today in TIMEZONE)")
	cmd.AddCommand(completionCmd)

	return cmd
}

func printCompletion(w io.Writer, day clock.Date, catalog *checklist.Catalog, comps []*checklist.Completion) {
	fmt.Fprintf(w, "Round completion for %s: %d patient(s)\n", day, len(comps))
	for _, c := range comps {
		names := make([]string, 0, len(c.CompletedCategories))
		for _, id := range c.CompletedCategories {
			if cat, ok := catalog.Category(id); ok {
				names = append(names, cat.Name)
			}
		}
		fmt.Fprintf(w, "%-36s %3.0f%% (%d/%d) %s\n",
			c.PatientID, c.Progress*100, len(c.CompletedCategories), c.TotalCategories, strings.Join(names, ", "))
	}
}

// -- token --

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token with AUTH_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			name, _ := cmd.Flags().GetString("name")
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tok, err := auth.IssueToken(auth.JWTConfig{
				Issuer:     cfg.AuthIssuer,
				Audience:   cfg.AuthAudience,
				SigningKey: []byte(cfg.AuthSigningKey),
			}, subject, name, roles, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	issueCmd.Flags().String("subject", "", "User identifier (sub claim)")
	issueCmd.Flags().String("name", "", "Display name")
	issueCmd.Flags().StringSlice("role", []string{auth.RoleClinician}, "Role claim, repeatable")
	issueCmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	cmd.AddCommand(issueCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}
