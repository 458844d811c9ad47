package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"autoplan/internal/actions"
	"autoplan/internal/display"
	"autoplan/internal/executor"
	"autoplan/internal/journal"
	"autoplan/internal/listener"
	"autoplan/internal/llm_client"
	"autoplan/internal/quota"
	"autoplan/internal/supervisor"
	"autoplan/internal/utils"
	"autoplan/internal/workgraph"
)

const (
	executorAgent = "agent"
	executorShell = "shell"
	executorStub  = "stub"
)

type runFlags struct {
	execute     bool
	limit       int
	timeout     time.Duration
	executor    string
	interactive bool
	yes         bool
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <workgraph>",
		Short: "Execute a WorkGraph's pending tasks (dry run unless --execute)",
		Long: `run visits phases and tasks in order, skipping done and failed tasks, and
saves the graph after every attempt. Without --execute it only lists what
would run. Ctrl+C stops after the current task; a second Ctrl+C exits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args[0], f)
		},
	}
	cmd.Flags().BoolVar(&f.execute, "execute", false, "run tasks instead of a dry run")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "stop after this many tasks (0 = no limit)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "per-task timeout (default from config)")
	cmd.Flags().StringVar(&f.executor, "executor", "", "run every task with agent, shell or stub (default by task)")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "confirm each task before it runs")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "run risky shell commands without asking")
	return cmd
}

func (a *app) run(ctx context.Context, path string, f runFlags) error {
	path = graphPath(path)
	// The graph is read once; the risk check and the run see the same
	// document.
	wg, err := a.store.Load(path)
	if err != nil {
		return err
	}

	kind := f.executor
	if kind == "" {
		kind = a.cfg.Run.Executor
	}
	switch kind {
	case "", executorAgent, executorShell, executorStub:
	default:
		return fmt.Errorf("unknown executor %q (want agent, shell or stub)", kind)
	}

	opts := executor.Options{DryRun: !f.execute, Limit: f.limit, Timeout: f.timeout, Metered: meteredBy(kind)}
	if opts.Timeout <= 0 {
		opts.Timeout = a.cfg.Run.Timeout
	}
	opts.Progress = func(ev executor.Event) { a.println(display.FormatEvent(ev)) }

	runner := executor.NewRunner(a.store, a.buildExecutor(kind), a.log)

	if f.execute {
		var prompter *listener.Prompter
		prompt := func() (*listener.Prompter, error) {
			if prompter != nil {
				return prompter, nil
			}
			if !listener.Interactive() {
				return nil, errors.New("confirmation needs an interactive terminal")
			}
			p, err := listener.New()
			if err != nil {
				return nil, err
			}
			prompter = p
			return p, nil
		}
		defer func() {
			if prompter != nil {
				_ = prompter.Close()
			}
		}()

		if risky := utils.RiskyTasks(wg); len(risky) > 0 && kind != executorStub && !f.yes {
			p, err := prompt()
			if err != nil {
				return fmt.Errorf("graph has risky tasks (%s); re-run with --yes to allow: %w", strings.Join(risky, ", "), err)
			}
			ok, err := p.AskYesNo(fmt.Sprintf("Tasks %s run risky shell commands. Continue?", strings.Join(risky, ", ")))
			if err != nil {
				return err
			}
			if !ok {
				a.println("Run cancelled.")
				return nil
			}
		}
		if f.interactive {
			p, err := prompt()
			if err != nil {
				return err
			}
			opts.Confirm = p.ConfirmTask
		}

		verifier := actions.NewVerifier(a.cfg.Run.Workdir)
		if a.cfg.Run.VerifyTimeout > 0 {
			verifier.CommandTimeout = a.cfg.Run.VerifyTimeout
		}
		verifier.Concurrency = a.cfg.Run.VerifyConcurrency
		runner.Verifier = verifier

		if !a.cfg.Journal.Disabled {
			j, err := journal.Open(a.cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer j.Close()
			runner.Journal = j
		}

		if a.cfg.Quota.DailyLimit > 0 && kind != executorShell && kind != executorStub {
			tracker, err := quota.Load(a.cfg.Quota.File, a.cfg.Quota.DailyLimit)
			if err != nil {
				return err
			}
			defer func() {
				if err := tracker.Save(); err != nil {
					a.log.Error("save quota", "err", err)
				}
			}()
			runner.Quota = tracker
		}
	}

	sup := supervisor.New(runner, a.log)
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go sup.Watch(watchCtx, sigs)

	res := sup.Execute(ctx, wg, path, opts)
	if res.Err != nil {
		return res.Err
	}

	a.println(display.FormatRunSummary(res.Summary))
	if f.execute {
		a.println(display.FormatRunMetrics(res.Summary.Metrics))
	}

	switch {
	case res.Summary.TasksFailed > 0:
		return &exitError{code: ExitFailure, msg: fmt.Sprintf("%d task(s) failed in this run", res.Summary.TasksFailed)}
	case res.Summary.Stopped == executor.StopCancelled:
		return &exitError{code: ExitInterrupted, msg: "run interrupted"}
	}
	return nil
}

// meteredBy reports which tasks draw on the AI quota: the ones that reach
// the agent executor under the given override.
func meteredBy(kind string) func(*workgraph.Task) bool {
	switch kind {
	case executorAgent:
		return func(*workgraph.Task) bool { return true }
	case executorShell, executorStub:
		return func(*workgraph.Task) bool { return false }
	default:
		return func(t *workgraph.Task) bool { return t.ExecutorKind() == workgraph.ExecutorAgent }
	}
}

// buildExecutor routes tasks by their executor kind, or sends every task to
// one executor when kind is set.
func (a *app) buildExecutor(kind string) actions.Executor {
	workdir := a.cfg.Run.Workdir
	var agent, shell actions.Executor
	switch kind {
	case executorStub:
		stub := actions.NewStubExecutor()
		agent, shell = stub, stub
	case executorShell:
		sh := actions.NewShellExecutor(workdir)
		agent, shell = sh, sh
	case executorAgent:
		ag := newLazyAgent(a, workdir)
		agent, shell = ag, ag
	default:
		agent, shell = newLazyAgent(a, workdir), actions.NewShellExecutor(workdir)
	}
	return actions.NewDispatcher().
		Register(workgraph.ExecutorAgent, agent).
		Register(workgraph.ExecutorShell, shell)
}

// lazyAgent connects to the LLM backend on the first agent task, so graphs
// without agent tasks run without credentials.
type lazyAgent struct {
	cfg llm_client.Config
	dir string
	log *slog.Logger

	once sync.Once
	exec actions.Executor
	err  error
}

func newLazyAgent(a *app, dir string) *lazyAgent {
	return &lazyAgent{
		cfg: llm_client.Config{
			Backend:    a.cfg.LLM.Backend,
			Model:      a.cfg.LLM.Model,
			OllamaHost: a.cfg.LLM.OllamaHost,
		},
		dir: dir,
		log: a.log,
	}
}

func (l *lazyAgent) Execute(ctx context.Context, task *workgraph.Task, timeout time.Duration) actions.Result {
	l.once.Do(func() {
		p, err := llm_client.New(l.cfg)
		if err != nil {
			l.err = err
			return
		}
		model := p.AllowedModelOrDefault(l.cfg.Model)
		l.log.Info("llm backend ready", "backend", p.Name(), "model", model)
		l.exec = actions.NewAgentExecutor(p, model, l.dir)
	})
	if l.err != nil {
		return actions.Failed("llm unavailable: "+l.err.Error(), "")
	}
	return l.exec.Execute(ctx, task, timeout)
}

// graphPath makes journal entries for one file match however it was named.
func graphPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
