// Package cli wires the autoplan command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"autoplan/internal/config"
	"autoplan/internal/logger"
	"autoplan/internal/scorer"
	"autoplan/internal/workgraph"
)

// app carries what every command needs once flags are parsed.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	closeLog func() error
	store    workgraph.Store
	out      io.Writer

	configPath string
	verbose    bool
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log, closeLog, err := logger.New(logger.Options{
		File:    cfg.Log.File,
		Level:   level,
		Console: cmd.ErrOrStderr(),
		Verbose: a.verbose,
	})
	if err != nil {
		return err
	}
	a.cfg, a.log, a.closeLog = cfg, log, closeLog
	a.store = workgraph.NewFileStore()
	a.out = cmd.OutOrStdout()
	log.Debug("command started", "command", cmd.CommandPath(), "config", a.configPath)
	return nil
}

func (a *app) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) println(s string) {
	fmt.Fprintln(a.out, s)
}

// scorer returns the preset profiles plus the configured ones.
func (a *app) scorer() (*scorer.Scorer, error) {
	s := scorer.New()
	if err := a.cfg.ApplyProfiles(s); err != nil {
		return nil, err
	}
	return s, nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "autoplan",
		Short: "Plan and execute work toward goal facts",
		Long: `autoplan searches for an action sequence that makes a set of goal facts true,
writes it as a resumable WorkGraph, and executes the graph's tasks with an AI
agent or shell commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultFile, "path to the config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newPlanCmd(a),
		newRunCmd(a),
		newScoreCmd(a),
		newRecommendCmd(a),
		newProfilesCmd(a),
		newShowCmd(a),
		newResetCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
