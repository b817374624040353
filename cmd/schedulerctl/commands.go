package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	refreshFrom   string
	refreshTo     string
	retentionDays int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Re-pack future production tasks",
	RunE:  runOptimize,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh-workload",
	Short: "Recompute cached daily workload rows",
	RunE:  runRefresh,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-reminders",
	Short: "Delete sent and failed reminders older than --days",
	RunE:  runCleanup,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshFrom, "from", "", "first day, YYYY-MM-DD (default today)")
	refreshCmd.Flags().StringVar(&refreshTo, "to", "", "last day inclusive, YYYY-MM-DD (default from + 30 days)")
	cleanupCmd.Flags().IntVar(&retentionDays, "days", 30, "retention in days")

	rootCmd.AddCommand(optimizeCmd, refreshCmd, cleanupCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := open("schedulerctl-optimize")
	if err != nil {
		return err
	}
	res, err := d.production.OptimizeSchedule(ctx)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	d.log.Infof("optimize completed: considered=%d moved=%d unplaceable=%v", res.Considered, res.Moved, res.Unplaceable)
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := open("schedulerctl-refresh")
	if err != nil {
		return err
	}

	from := d.cal.StartOfDay(d.cal.Now())
	if refreshFrom != "" {
		if from, err = d.cal.ParseDay(refreshFrom); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	to := from.AddDate(0, 0, 30)
	if refreshTo != "" {
		last, err := d.cal.ParseDay(refreshTo)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		to = last.AddDate(0, 0, 1)
	}
	if !to.After(from) {
		return fmt.Errorf("--to must not be before --from")
	}

	n, err := d.workload.RefreshRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("refresh after %d days: %w", n, err)
	}
	d.log.Infof("workload refresh completed: days=%d", n)
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if retentionDays < 0 {
		return fmt.Errorf("--days must be >= 0")
	}
	d, err := open("schedulerctl-cleanup")
	if err != nil {
		return err
	}
	deleted, err := d.dispatcher.Cleanup(cmd.Context(), retentionDays)
	if err != nil {
		return err
	}
	d.log.Infof("reminder cleanup completed: deleted=%d", deleted)
	return nil
}
