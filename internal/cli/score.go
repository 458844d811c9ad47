package cli

import (
	"github.com/spf13/cobra"

	"autoplan/internal/display"
	"autoplan/internal/scorer"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		top     int
		pending bool
	)
	cmd := &cobra.Command{
		Use:   "score <workgraph> [profile]",
		Short: "Rank a WorkGraph's tasks with a scoring profile",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := scorer.DefaultProfile
			if len(args) == 2 {
				profile = args[1]
			}
			var filter scorer.Filter
			if pending {
				filter = scorer.PendingOnly
			}
			return a.rank(args[0], profile, top, filter)
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 10, "number of tasks to show (0 = all)")
	cmd.Flags().BoolVar(&pending, "pending", false, "rank only todo tasks")
	return cmd
}

func newRecommendCmd(a *app) *cobra.Command {
	var (
		top     int
		profile string
	)
	cmd := &cobra.Command{
		Use:   "recommend <workgraph>",
		Short: "Suggest the pending tasks to work on next",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.rank(args[0], profile, top, scorer.PendingOnly)
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 3, "number of tasks to recommend")
	cmd.Flags().StringVarP(&profile, "profile", "p", scorer.DefaultProfile, "scoring profile")
	return cmd
}

func newProfilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the scoring profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.scorer()
			if err != nil {
				return err
			}
			a.println(display.FormatProfiles(s.Profiles()))
			return nil
		},
	}
}

func (a *app) rank(path, profile string, top int, filter scorer.Filter) error {
	wg, err := a.store.Load(path)
	if err != nil {
		return err
	}
	s, err := a.scorer()
	if err != nil {
		return err
	}
	ranked, err := s.Rank(wg, profile, top, filter)
	if err != nil {
		return err
	}
	a.log.Debug("ranked tasks", "path", path, "profile", profile, "count", len(ranked))
	a.println(display.FormatRanking(profile, ranked))
	return nil
}
