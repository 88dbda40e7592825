package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"quiz-tournament-client/internal/app"
	"quiz-tournament-client/internal/config"
	"quiz-tournament-client/internal/domain"
)

var title = cases.Title(language.English)

// NewTournamentsCmd groups the tournament browsing and admin commands.
func NewTournamentsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tournaments",
		Aliases: []string{"t"},
		Short:   "Browse and manage tournaments",
	}
	cmd.AddCommand(
		newListCmd(configPath),
		newSearchCmd(configPath),
		newShowCmd(configPath),
		newStatusCmd(configPath),
		newCreateCmd(configPath),
		newEditCmd(configPath),
		newLikeCmd(configPath),
		newLikesCmd(configPath),
		newWatchCmd(configPath),
	)
	return cmd
}

func newListCmd(configPath *string) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tournaments",
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			all, err := rt.service.List(cmd.Context())
			if err != nil {
				return err
			}
			now := rt.service.Now()
			filtered := all[:0]
			for _, t := range all {
				if status == "" || string(app.StatusOf(t, now)) == status {
					filtered = append(filtered, t)
				}
			}
			printTournaments(cmd.OutOrStdout(), filtered, now)
			return nil
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "only show upcoming, ongoing or completed tournaments")
	return cmd
}

func newSearchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Fuzzy search tournaments by name",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			found, err := rt.service.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No tournaments match %q\n", args[0])
				return nil
			}
			printTournaments(cmd.OutOrStdout(), found, rt.service.Now())
			return nil
		}),
	}
}

func newShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|slug>",
		Short: "Show a tournament",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			t, err := rt.service.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			now := rt.service.Now()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", t.Name, t.ID)
			fmt.Fprintf(out, "  status:     %s\n", title.String(string(app.StatusOf(t, now))))
			if t.Category != "" {
				fmt.Fprintf(out, "  category:   %s\n", title.String(t.Category))
			}
			if t.Difficulty != "" {
				fmt.Fprintf(out, "  difficulty: %s\n", title.String(string(t.Difficulty)))
			}
			fmt.Fprintf(out, "  starts:     %s\n", t.StartDate.Local().Format(time.RFC1123))
			fmt.Fprintf(out, "  ends:       %s\n", t.EndDate.Local().Format(time.RFC1123))
			if t.MinimumPassingScore != nil {
				fmt.Fprintf(out, "  passing:    %d%%\n", *t.MinimumPassingScore)
			}
			if t.TimeLimit > 0 {
				fmt.Fprintf(out, "  time limit: %s\n", t.TimeLimit)
			}
			fmt.Fprintf(out, "  likes:      %d\n", t.Likes)
			fmt.Fprintf(out, "  attempts:   %d\n", len(t.Attempts))
			return nil
		}),
	}
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Print whether a tournament is upcoming, ongoing or completed",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			status, err := rt.service.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		}),
	}
}

func newCreateCmd(configPath *string) *cobra.Command {
	var (
		draft      domain.TournamentDraft
		difficulty string
		start, end string
		passing    int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tournament (admin)",
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			var err error
			if draft.StartDate, err = parseWhen(start); err != nil {
				return err
			}
			if draft.EndDate, err = parseWhen(end); err != nil {
				return err
			}
			draft.Difficulty = domain.Difficulty(difficulty)
			if cmd.Flags().Changed("passing") {
				draft.MinimumPassingScore = &passing
			}
			t, err := rt.service.Create(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", t.Name, t.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&draft.Name, "name", "", "tournament name")
	cmd.Flags().StringVar(&draft.Category, "category", "", "question category")
	cmd.Flags().StringVar(&difficulty, "difficulty", string(domain.DifficultyMedium), "easy, medium or hard")
	cmd.Flags().StringVar(&start, "start", "", "start time (RFC 3339 or \"2006-01-02 15:04\")")
	cmd.Flags().StringVar(&end, "end", "", "end time (RFC 3339 or \"2006-01-02 15:04\")")
	cmd.Flags().IntVar(&passing, "passing", 0, "minimum passing score in percent")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newEditCmd(configPath *string) *cobra.Command {
	var name, start, end string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Rename or reschedule a tournament (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			var update domain.TournamentUpdate
			if cmd.Flags().Changed("name") {
				update.Name = &name
			}
			if start != "" {
				s, err := parseWhen(start)
				if err != nil {
					return err
				}
				update.StartDate = &s
			}
			if end != "" {
				e, err := parseWhen(end)
				if err != nil {
					return err
				}
				update.EndDate = &e
			}
			t, err := rt.service.Edit(cmd.Context(), args[0], update)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", t.Name, t.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&start, "start", "", "new start time")
	cmd.Flags().StringVar(&end, "end", "", "new end time")
	return cmd
}

func newLikeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "like <id>",
		Short: "Like a tournament",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			if err := rt.service.Like(cmd.Context(), args[0]); err != nil {
				return err
			}
			count, err := rt.service.LikeCount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Liked (%d likes)\n", count)
			return nil
		}),
	}
}

func newLikesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "likes <id>",
		Short: "Print a tournament's like count",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			count, err := rt.service.LikeCount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		}),
	}
}

func newWatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <id>...",
		Short: "Print status transitions until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			interval := config.TTLDuration(rt.cfg.Watch.Interval, 30*time.Second)
			watcher, err := app.NewStatusWatcher(rt.repo, interval, nil, rt.logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range args {
				watcher.Watch(id, func(c app.StatusChange) {
					if c.From == "" {
						fmt.Fprintf(out, "%s  %s is %s\n", c.At.Local().Format(time.TimeOnly), c.TournamentID, c.To)
						return
					}
					fmt.Fprintf(out, "%s  %s: %s -> %s\n", c.At.Local().Format(time.TimeOnly), c.TournamentID, c.From, c.To)
				})
			}
			if err := watcher.Start(); err != nil {
				return err
			}
			defer func() {
				if err := watcher.Stop(); err != nil {
					rt.logger.Warn("stop watcher", slog.Any("error", err))
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(stop)
			select {
			case <-stop:
			case <-cmd.Context().Done():
			}
			return nil
		}),
	}
}

func printTournaments(w io.Writer, tournaments []domain.Tournament, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tDIFFICULTY\tSTARTS\tLIKES")
	for _, t := range tournaments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			t.ID, t.Name,
			title.String(string(app.StatusOf(t, now))),
			title.String(string(t.Difficulty)),
			t.StartDate.Local().Format("2006-01-02 15:04"),
			t.Likes)
	}
	_ = tw.Flush()
}

// parseWhen accepts RFC 3339 or a local "2006-01-02 15:04" timestamp.
func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse time %q", domain.ErrValidation, s)
	}
	return t, nil
}
