package actions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"autoplan/internal/workgraph"
)

const defaultVerifyConcurrency = 4

// Verifier checks a task's definition-of-done items against the workspace.
//
//	command  the shell command exits 0
//	file     the glob matches at least one file
//	code     "glob::regex", some matching file contains the regex
type Verifier struct {
	Dir            string
	Shell          *ShellExecutor
	CommandTimeout time.Duration
	Concurrency    int
}

func NewVerifier(dir string) *Verifier {
	return &Verifier{
		Dir:            dir,
		Shell:          NewShellExecutor(dir),
		CommandTimeout: 2 * time.Minute,
		Concurrency:    defaultVerifyConcurrency,
	}
}

// Verify checks every criterion and reports all unmet ones in a single error.
func (v *Verifier) Verify(ctx context.Context, task *workgraph.Task) error {
	if len(task.DefinitionOfDone) == 0 {
		return nil
	}
	unmet := make([]string, len(task.DefinitionOfDone))

	var g errgroup.Group
	limit := v.Concurrency
	if limit <= 0 {
		limit = defaultVerifyConcurrency
	}
	g.SetLimit(limit)
	for i, c := range task.DefinitionOfDone {
		g.Go(func() error {
			if err := v.check(ctx, c); err != nil {
				unmet[i] = fmt.Sprintf("%s %q: %v", c.Kind, c.Value, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var msgs []string
	for _, m := range unmet {
		if m != "" {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("definition of done not met: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func (v *Verifier) check(ctx context.Context, c workgraph.Criterion) error {
	switch c.Kind {
	case workgraph.DoneCommand:
		return v.checkCommand(ctx, c.Value)
	case workgraph.DoneFile:
		matches, err := v.glob(c.Value)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return errors.New("no matching file")
		}
		return nil
	case workgraph.DoneCode:
		return v.checkCode(c.Value)
	}
	return fmt.Errorf("unknown kind")
}

func (v *Verifier) checkCommand(ctx context.Context, command string) error {
	shell := v.Shell
	if shell == nil {
		shell = NewShellExecutor(v.Dir)
	}
	ctx, cancel := withTimeout(ctx, v.CommandTimeout)
	defer cancel()
	out, err := shell.run(ctx, command)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New(ReasonTimeout)
		}
		if out = strings.TrimSpace(out); out != "" {
			return fmt.Errorf("%w: %s", err, lastLine(out))
		}
		return err
	}
	return nil
}

func (v *Verifier) checkCode(value string) error {
	pattern, expr, ok := strings.Cut(value, "::")
	if !ok || strings.TrimSpace(pattern) == "" || expr == "" {
		return errors.New(`expected "path::regex"`)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("bad regex: %w", err)
	}
	matches, err := v.glob(strings.TrimSpace(pattern))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return errors.New("no matching file")
	}
	fsys := os.DirFS(v.dir())
	for _, m := range matches {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return fmt.Errorf("read %s: %w", m, err)
		}
		if re.Match(data) {
			return nil
		}
	}
	return errors.New("pattern not found")
}

// glob returns regular files under Dir matching pattern.
func (v *Verifier) glob(pattern string) ([]string, error) {
	pattern = strings.TrimPrefix(strings.TrimSpace(pattern), "./")
	if strings.HasPrefix(pattern, "/") || !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	var matches []string
	err := doublestar.GlobWalk(os.DirFS(v.dir()), pattern, func(path string, d fs.DirEntry) error {
		if !d.IsDir() {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("glob: %w", err)
	}
	return matches, nil
}

func (v *Verifier) dir() string {
	if v.Dir == "" {
		return "."
	}
	return v.Dir
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
