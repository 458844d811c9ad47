package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"autoplan/internal/display"
	"autoplan/internal/executor"
	"autoplan/internal/journal"
)

func newShowCmd(a *app) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "show <workgraph>",
		Short: "Print a WorkGraph's phases, tasks and statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wg, err := a.store.Load(args[0])
			if err != nil {
				return err
			}
			a.println(display.FormatWorkGraph(wg, full))
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "do not truncate long values")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	var allFailed bool
	cmd := &cobra.Command{
		Use:   "reset <workgraph> [task-id...]",
		Short: "Return failed tasks to todo so the next run retries them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ids := args[0], args[1:]
			if len(ids) == 0 && !allFailed {
				return errors.New("name the tasks to reset or pass --all-failed")
			}
			if len(ids) > 0 && allFailed {
				return errors.New("--all-failed takes no task ids")
			}
			wg, err := a.store.Load(path)
			if err != nil {
				return err
			}
			reset, missing := executor.Reset(wg, ids, time.Now().UTC())
			if len(missing) > 0 {
				return fmt.Errorf("unknown task id(s): %s", strings.Join(missing, ", "))
			}
			if len(reset) == 0 {
				a.println("Nothing to reset.")
				return nil
			}
			if err := a.store.Save(wg, path); err != nil {
				return err
			}
			a.log.Info("tasks reset", "path", path, "tasks", reset)
			a.printf("Reset %d task(s): %s\n", len(reset), strings.Join(reset, ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&allFailed, "all-failed", false, "reset every failed task")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <workgraph>",
		Short: "List recorded attempts for a WorkGraph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Journal.Disabled {
				return errors.New("the attempt journal is disabled in config")
			}
			j, err := journal.Open(a.cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer j.Close()

			ctx, path := cmd.Context(), graphPath(args[0])
			entries, err := j.History(ctx, path, limit)
			if err != nil {
				return err
			}
			a.println(display.FormatHistory(args[0], entries))
			if stats, err := j.Stats(ctx, path); err == nil && len(stats) > 0 {
				a.printf("Totals: %d done, %d failed\n", stats["done"], stats["failed"])
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show the most recent N attempts (0 = all)")
	return cmd
}
