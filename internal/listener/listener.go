// Package listener asks the operator questions on the terminal.
package listener

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"

	"autoplan/internal/workgraph"
)

// Interactive reports whether stdin and stdout are both terminals.
func Interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd())
}

type Prompter struct {
	mu       sync.Mutex
	out      io.Writer
	readLine func(prompt string) (string, error)
	close    func() error

	approveAll bool
}

// New opens a readline prompter on the process terminal.
func New() (*Prompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, fmt.Errorf("init terminal input: %w", err)
	}
	return &Prompter{
		out: rl.Stdout(),
		readLine: func(prompt string) (string, error) {
			rl.SetPrompt(prompt)
			return rl.Readline()
		},
		close: rl.Close,
	}, nil
}

// NewScripted answers prompts from lines in order; used by tests and
// non-terminal callers.
func NewScripted(out io.Writer, lines ...string) *Prompter {
	return &Prompter{
		out: out,
		readLine: func(prompt string) (string, error) {
			fmt.Fprint(out, prompt)
			if len(lines) == 0 {
				return "", io.EOF
			}
			line := lines[0]
			lines = lines[1:]
			return line, nil
		},
		close: func() error { return nil },
	}
}

func (p *Prompter) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

func (p *Prompter) Println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// AskYesNo repeats the question until it gets y/yes or n/no. End of input
// or an interrupt counts as no.
func (p *Prompter) AskYesNo(question string) (bool, error) {
	ans, err := p.ask(question+" [y/n]", "y", "yes", "n", "no")
	if err != nil {
		return false, err
	}
	return ans == "y" || ans == "yes", nil
}

// ConfirmTask asks before each task runs. Answering "a" approves this and
// every later task; "q" declines and stops the run.
func (p *Prompter) ConfirmTask(task *workgraph.Task) (bool, error) {
	p.mu.Lock()
	all := p.approveAll
	p.mu.Unlock()
	if all {
		return true, nil
	}

	question := fmt.Sprintf("Run %s %s (%s)", task.ID, task.Title, task.ExecutorKind())
	if task.Command != "" {
		question += ": " + task.Command
	}
	ans, err := p.ask(question+"? [y/a/q]", "y", "yes", "a", "all", "q", "quit", "n", "no")
	if err != nil {
		return false, err
	}
	switch ans {
	case "a", "all":
		p.mu.Lock()
		p.approveAll = true
		p.mu.Unlock()
		return true, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (p *Prompter) ask(question string, valid ...string) (string, error) {
	p.Println(question)
	for {
		line, err := p.readLine("> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return "", nil
			}
			return "", err
		}
		ans := strings.TrimSpace(strings.ToLower(line))
		for _, v := range valid {
			if ans == v {
				return ans, nil
			}
		}
		p.Println("Please answer " + strings.Join(shortAnswers(valid), "/") + ".")
	}
}

func shortAnswers(valid []string) []string {
	var out []string
	for _, v := range valid {
		if len(v) == 1 {
			out = append(out, v)
		}
	}
	return out
}
