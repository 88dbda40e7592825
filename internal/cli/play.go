package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	splitter "github.com/go-andiamo/splitter"
	"github.com/spf13/cobra"

	"quiz-tournament-client/internal/app"
	"quiz-tournament-client/internal/domain"
)

// NewPlayCmd runs an interactive quiz session in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play <id|slug>",
		Short: "Play a tournament interactively",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			t, err := rt.service.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			controller, err := rt.service.Play(cmd.Context(), t.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d%% needed to pass. Type \"help\" for commands.\n", t.Name, passingOf(t, rt.cfg.Scoring.DefaultPassingPercentage))
			return runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), controller)
		}),
	}
}

func passingOf(t domain.Tournament, fallback int) int {
	if t.MinimumPassingScore != nil {
		return *t.MinimumPassingScore
	}
	return fallback
}

const replHelp = `commands:
  start                 begin the quiz
  select <n|"option">   choose an option by number or text
  next, n               confirm and go to the next question
  prev, p               go back one question
  jump <n>              go to question n
  submit                send your answers
  show                  print the current question
  quit                  abandon the quiz
`

// runREPL reads commands from in until the quiz finishes, the player quits or
// in is exhausted.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, controller *app.QuizController) error {
	words, err := splitter.NewSplitter(' ', splitter.DoubleQuotes, splitter.LeftRightDoubleDoubleQuotes)
	if err != nil {
		return err
	}

	var outMu sync.Mutex
	printf := func(format string, a ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, format, a...)
	}
	finished := make(chan struct{})
	var finishOnce sync.Once
	unsubscribe := controller.OnSessionChange(func(snap domain.SessionSnapshot) {
		switch snap.Phase {
		case domain.PhaseCompleted:
			printf("%s", renderOutcome(snap))
			finishOnce.Do(func() { close(finished) })
		case domain.PhaseFailed:
			printf("submit failed: %s (type \"submit\" to retry)\n", snap.Error)
		}
	})
	defer unsubscribe()

	// Input is read on its own goroutine so a quiz finished by the time limit
	// returns without waiting for another line.
	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	var scanErr error
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		scanErr = scanner.Err()
	}()

	for {
		select {
		case <-finished:
			return nil
		case <-ctx.Done():
			_ = controller.Discard()
			return ctx.Err()
		default:
		}
		printf("> ")
		var line string
		var ok bool
		select {
		case <-finished:
			return nil
		case <-ctx.Done():
			_ = controller.Discard()
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts, err := words.Split(line)
		if err != nil {
			printf("cannot parse input: %v\n", err)
			continue
		}
		for i, p := range parts {
			parts[i] = strings.Trim(p, "\"“”")
		}

		quit, err := replCommand(ctx, controller, parts, printf)
		if err != nil {
			printf("%s\n", describeError(err))
		}
		if quit {
			return nil
		}
	}
	if scanErr != nil {
		return scanErr
	}
	switch controller.Phase() {
	case domain.PhaseNotStarted, domain.PhaseInProgress:
		_ = controller.Discard()
	}
	return nil
}

func replCommand(ctx context.Context, controller *app.QuizController, parts []string, printf func(string, ...any)) (quit bool, err error) {
	show := func() { printf("%s", renderQuestion(controller.Snapshot())) }
	switch strings.ToLower(parts[0]) {
	case "help", "?":
		printf("%s", replHelp)
	case "start":
		if err := controller.Start(); err != nil {
			return false, err
		}
		show()
	case "select", "s":
		if len(parts) < 2 {
			return false, fmt.Errorf("%w: select needs an option", domain.ErrValidation)
		}
		option := resolveOption(controller.Snapshot(), strings.Join(parts[1:], " "))
		if err := controller.SelectAnswer(option); err != nil {
			return false, err
		}
		printf("selected %q\n", option)
	case "next", "n":
		if err := controller.Next(ctx); err != nil {
			return false, err
		}
		if controller.Phase() == domain.PhaseInProgress {
			show()
		}
	case "prev", "previous", "p":
		if err := controller.Previous(); err != nil {
			return false, err
		}
		show()
	case "jump", "j":
		if len(parts) != 2 {
			return false, fmt.Errorf("%w: jump needs a question number", domain.ErrValidation)
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a question number", domain.ErrValidation, parts[1])
		}
		if err := controller.JumpTo(n - 1); err != nil {
			return false, err
		}
		show()
	case "submit":
		if _, err := controller.Submit(ctx); err != nil && controller.Phase() != domain.PhaseFailed {
			return false, err
		}
	case "show":
		show()
	case "quit", "exit", "q":
		if controller.Phase() == domain.PhaseCompleted {
			return true, nil
		}
		if err := controller.Discard(); err != nil {
			return false, err
		}
		printf("quiz abandoned\n")
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown command %q (try \"help\")", domain.ErrValidation, parts[0])
	}
	return false, nil
}

// resolveOption maps a 1-based option number to its text. Anything else is
// passed through as option text.
func resolveOption(snap domain.SessionSnapshot, arg string) string {
	if snap.Question == nil || snap.Question.HasOption(arg) {
		return arg
	}
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(snap.Question.Options) {
		return snap.Question.Options[n-1]
	}
	return arg
}

func renderQuestion(snap domain.SessionSnapshot) string {
	if snap.Question == nil {
		return fmt.Sprintf("quiz is %s\n", strings.ReplaceAll(string(snap.Phase), "_", " "))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d/%d (%d answered)", snap.CurrentIndex+1, snap.Total, snap.AnsweredCount)
	if snap.Deadline != nil {
		fmt.Fprintf(&b, ", time runs out at %s", snap.Deadline.Local().Format("15:04:05"))
	}
	fmt.Fprintf(&b, "\n  %s\n", snap.Question.Question)
	for i, opt := range snap.Question.Options {
		marker := " "
		if opt == snap.Pending {
			marker = "*"
		}
		fmt.Fprintf(&b, "  %s %d) %s\n", marker, i+1, opt)
	}
	return b.String()
}

func renderOutcome(snap domain.SessionSnapshot) string {
	o := snap.Outcome
	if o == nil {
		return ""
	}
	total := o.Result.TotalQuestions
	if total <= 0 {
		total = snap.Total
	}
	verdict := "Not passed"
	if o.Result.Passed {
		verdict = "Passed"
	}
	return fmt.Sprintf("%s: %d/%d correct (%.1f%%, %d needed)\n",
		verdict, o.Result.Score, total, o.Evaluation.Percentage, o.Evaluation.RequiredScore)
}

func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownOption):
		return "that is not one of the options"
	case errors.Is(err, domain.ErrInvalidState):
		return "not possible right now: " + err.Error()
	case errors.Is(err, domain.ErrNetwork):
		return "network problem, please try again: " + err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return "please log in first (quizctl login)"
	}
	return err.Error()
}
