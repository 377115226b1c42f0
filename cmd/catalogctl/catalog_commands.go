package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/anineesan/anineesan-server/internal/domain"
	domainerrors "github.com/anineesan/anineesan-server/internal/errors"
	"github.com/anineesan/anineesan-server/internal/service"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every source and print reconciled titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := invoke[*service.CatalogService](ctx)
			if err != nil {
				return err
			}

			entities, err := catalog.Search(cmd.Context(), service.SearchRequest{
				Query: strings.Join(args, " "),
				Limit: limit,
			})
			if err != nil {
				return err
			}
			return printEntities(cmd, ctx, entities, "No titles found")
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of titles (default from FETCH_SEARCH_LIMIT)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <anime-id>",
		Short: "Show one title merged across every source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			animeID, err := parseAnimeID(args[0])
			if err != nil {
				return err
			}
			catalog, err := invoke[*service.CatalogService](ctx)
			if err != nil {
				return err
			}

			entity, err := catalog.Get(cmd.Context(), animeID)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, entity)
			}
			printEntity(cmd, entity)
			return nil
		},
	}
}

func newEpisodeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "episode <anime-id> <episode>",
		Short: "Resolve a playable stream for one episode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			animeID, err := parseAnimeID(args[0])
			if err != nil {
				return err
			}
			episode, err := strconv.Atoi(args[1])
			if err != nil {
				return domainerrors.Validationf("episode must be a number, got %q", args[1])
			}
			catalog, err := invoke[*service.CatalogService](ctx)
			if err != nil {
				return err
			}

			result, err := catalog.ResolveEpisode(cmd.Context(), service.EpisodeRequest{AnimeID: animeID, Episode: episode})
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			if !result.Available {
				fmt.Fprintf(out, "%s episode %d: no stream available\n", result.Entity.Title, episode)
				return nil
			}
			fmt.Fprintf(out, "%s episode %d\n", result.Entity.Title, episode)
			fmt.Fprintf(out, "  Matched: %s\n", result.Stream.MatchedTitle)
			fmt.Fprintf(out, "  Quality: %s\n", orDash(result.Stream.QualityLabel))
			fmt.Fprintf(out, "  URL:     %s\n", result.Stream.URL)
			return nil
		},
	}
}

func newRecommendCommand(ctx *commandContext) *cobra.Command {
	var limit int
	prefs := &preferenceFlags{}

	cmd := &cobra.Command{
		Use:   "recommend <anime-id[:rating]>...",
		Short: "Recommend titles similar to a watch history",
		Long: "Builds the recommendation index from the top ranking, seed searches and the\n" +
			"corpus snapshot, then ranks unseen titles against the given history.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := parseHistory(args)
			if err != nil {
				return err
			}
			injector, err := ctx.container()
			if err != nil {
				return err
			}
			indexer, err := do.Invoke[*service.IndexBuilder](injector)
			if err != nil {
				return err
			}
			catalog, err := do.Invoke[*service.CatalogService](injector)
			if err != nil {
				return err
			}

			if _, err := indexer.Rebuild(cmd.Context()); err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "build recommendation index")
			}

			entities, err := catalog.Recommend(cmd.Context(), service.RecommendRequest{
				History:     history,
				Limit:       limit,
				Preferences: prefs.preferences(),
			})
			if err != nil {
				return err
			}
			return printEntities(cmd, ctx, entities, "No recommendations")
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of recommendations (default 10)")
	prefs.register(cmd)
	return cmd
}

func printEntities(cmd *cobra.Command, ctx *commandContext, entities []domain.CanonicalEntity, empty string) error {
	if ctx.asJSON {
		if entities == nil {
			entities = []domain.CanonicalEntity{}
		}
		return writeJSON(cmd, entities)
	}
	if len(entities) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), empty)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), entityTable(entities))
	return nil
}

func printEntity(cmd *cobra.Command, e *domain.CanonicalEntity) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (#%d)\n", e.Title, e.ID)
	if e.TitleEnglish != "" {
		fmt.Fprintf(out, "  English:  %s\n", e.TitleEnglish)
	}
	if e.TitleNative != "" {
		fmt.Fprintf(out, "  Native:   %s\n", e.TitleNative)
	}
	fmt.Fprintf(out, "  Type:     %s\n", orDash(e.MediaType))
	fmt.Fprintf(out, "  Status:   %s\n", orDash(e.Status))
	fmt.Fprintf(out, "  Episodes: %s\n", formatEpisodes(e.Episodes))
	fmt.Fprintf(out, "  Score:    %s\n", formatScore(e.Score))
	if len(e.Genres) > 0 {
		fmt.Fprintf(out, "  Genres:   %s\n", strings.Join(e.Genres, ", "))
	}
	if len(e.Studios) > 0 {
		fmt.Fprintf(out, "  Studios:  %s\n", strings.Join(e.Studios, ", "))
	}
	fmt.Fprintf(out, "  Sources:  %s\n", sourceList(e.Sources))
	if e.Synopsis != "" {
		fmt.Fprintf(out, "\n%s\n", e.Synopsis)
	}
}

func parseAnimeID(raw string) (int, error) {
	animeID, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, domainerrors.Validationf("anime id must be a number, got %q", raw)
	}
	return animeID, nil
}

// parseHistory reads "id" or "id:rating" arguments.
func parseHistory(args []string) ([]domain.WatchHistoryEntry, error) {
	history := make([]domain.WatchHistoryEntry, 0, len(args))
	for _, arg := range args {
		rawID, rawRating, hasRating := strings.Cut(arg, ":")
		animeID, err := parseAnimeID(rawID)
		if err != nil {
			return nil, err
		}
		entry := domain.WatchHistoryEntry{AnimeID: animeID}
		if hasRating {
			rating, err := strconv.ParseFloat(rawRating, 64)
			if err != nil {
				return nil, domainerrors.Validationf("rating for %d must be a number, got %q", animeID, rawRating)
			}
			entry.Rating = &rating
		}
		history = append(history, entry)
	}
	return history, nil
}

// preferenceFlags binds the shared filtering flags.
type preferenceFlags struct {
	genres      []string
	minRating   float64
	maxEpisodes int
}

func (p *preferenceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&p.genres, "genre", "g", nil, "Keep titles in any of these genres (repeatable)")
	cmd.Flags().Float64Var(&p.minRating, "min-rating", 0, "Drop titles scored below this (0-10)")
	cmd.Flags().IntVar(&p.maxEpisodes, "max-episodes", 0, "Drop titles with more episodes than this")
}

func (p *preferenceFlags) preferences() *service.Preferences {
	prefs := &service.Preferences{
		PreferredGenres: p.genres,
		MinRating:       p.minRating,
		MaxEpisodes:     p.maxEpisodes,
	}
	if prefs.IsZero() {
		return nil
	}
	return prefs
}
