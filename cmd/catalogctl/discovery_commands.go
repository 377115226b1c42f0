package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anineesan/anineesan-server/internal/service"
)

func newTopCommand(ctx *commandContext) *cobra.Command {
	var (
		rankingType string
		limit       int
	)
	prefs := &preferenceFlags{}

	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the top ranked titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			discovery, err := invoke[*service.DiscoveryService](ctx)
			if err != nil {
				return err
			}
			entities, err := discovery.Top(cmd.Context(), service.TopRequest{
				Type:        rankingType,
				Limit:       limit,
				Preferences: prefs.preferences(),
			})
			if err != nil {
				return err
			}
			return printEntities(cmd, ctx, entities, "Ranking is empty")
		},
	}
	cmd.Flags().StringVarP(&rankingType, "type", "t", "all", "Ranking (all, airing, upcoming, tv, ova, movie, special, bypopularity, favorite)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of titles (default 20)")
	prefs.register(cmd)
	return cmd
}

func newSeasonalCommand(ctx *commandContext) *cobra.Command {
	var (
		year   int
		season string
		limit  int
	)
	prefs := &preferenceFlags{}

	cmd := &cobra.Command{
		Use:   "seasonal",
		Short: "List one season's titles (current season by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			discovery, err := invoke[*service.DiscoveryService](ctx)
			if err != nil {
				return err
			}
			entities, err := discovery.Seasonal(cmd.Context(), service.SeasonalRequest{
				Year:        year,
				Season:      season,
				Limit:       limit,
				Preferences: prefs.preferences(),
			})
			if err != nil {
				return err
			}
			return printEntities(cmd, ctx, entities, "No titles this season")
		},
	}
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Year (default: current)")
	cmd.Flags().StringVarP(&season, "season", "s", "", "Season (winter, spring, summer, fall)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of titles (default 20)")
	prefs.register(cmd)
	return cmd
}

func newGenresCommand(ctx *commandContext) *cobra.Command {
	var (
		watched []int
		limit   int
	)
	prefs := &preferenceFlags{}

	cmd := &cobra.Command{
		Use:   "genres",
		Short: "Suggest well rated titles in the preferred genres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			discovery, err := invoke[*service.DiscoveryService](ctx)
			if err != nil {
				return err
			}
			req := service.GenreRequest{Watched: watched, Limit: limit}
			if p := prefs.preferences(); p != nil {
				req.Preferences = *p
			}
			entities, err := discovery.ForGenres(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printEntities(cmd, ctx, entities, "No titles matched")
		},
	}
	cmd.Flags().IntSliceVarP(&watched, "watched", "w", nil, "Anime ids to leave out")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of titles (default 20)")
	prefs.register(cmd)
	return cmd
}

func newCommunityCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "community",
		Short: "Show the latest user recommendations from MyAnimeList",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			discovery, err := invoke[*service.DiscoveryService](ctx)
			if err != nil {
				return err
			}
			recs, err := discovery.RecentRecommendations(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent recommendations")
				return nil
			}

			rows := make([][]string, 0, len(recs))
			for _, r := range recs {
				rows = append(rows, []string{r.Liked.Title, r.Suggested.Title, r.Reason})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"If you liked", "Try", "Why"}, rows, nil))
			return nil
		},
	}
}
