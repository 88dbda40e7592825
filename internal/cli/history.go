package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewHistoryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your completed attempts",
		RunE: withRuntime(configPath, func(cmd *cobra.Command, rt *runtime, args []string) error {
			attempts, err := rt.service.History(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(attempts) == 0 {
				fmt.Fprintln(out, "No attempts recorded yet")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COMPLETED\tTOURNAMENT\tSCORE\tRESULT")
			for _, a := range attempts {
				result := "failed"
				if a.Passed {
					result = "passed"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n",
					a.CompletedAt.Local().Format("2006-01-02 15:04"), a.TournamentID, a.Score, a.TotalQuestions, result)
			}
			return tw.Flush()
		}),
	}
}
