package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anineesan/anineesan-server/internal/corpus"
	domainerrors "github.com/anineesan/anineesan-server/internal/errors"
	"github.com/anineesan/anineesan-server/internal/genre"
	"github.com/anineesan/anineesan-server/internal/search"
)

func newCorpusCommand(ctx *commandContext) *cobra.Command {
	corpusCmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect and refresh the scraped catalog snapshot",
	}

	corpusCmd.AddCommand(newCorpusStatusCommand(ctx))
	corpusCmd.AddCommand(newCorpusRefreshCommand(ctx))
	corpusCmd.AddCommand(newCorpusSearchCommand(ctx))

	return corpusCmd
}

// loadCorpus returns the cache with the persisted snapshot loaded, if any.
func loadCorpus(cmd *cobra.Command, ctx *commandContext) (*corpus.Cache, error) {
	cache, err := invoke[*corpus.Cache](ctx)
	if err != nil {
		return nil, err
	}
	if _, err := cache.Warm(cmd.Context()); err != nil {
		return nil, err
	}
	return cache, nil
}

func newCorpusStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := loadCorpus(cmd, ctx)
			if err != nil {
				return err
			}
			snap := cache.Snapshot()
			if snap == nil {
				return domainerrors.NotFound("no corpus snapshot yet; run `catalogctl corpus refresh`")
			}
			if ctx.asJSON {
				return writeJSON(cmd, map[string]any{
					"id":         snap.ID,
					"fetched_at": snap.FetchedAt,
					"pages":      snap.Pages,
					"records":    len(snap.Records),
					"fresh":      cache.Fresh(),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snapshot: %s\n", snap.ID)
			fmt.Fprintf(out, "Fetched:  %s (%s ago)\n", snap.FetchedAt.Local().Format(time.DateTime), snap.Age(time.Now()).Round(time.Second))
			fmt.Fprintf(out, "Pages:    %d\n", snap.Pages)
			fmt.Fprintf(out, "Records:  %d\n", len(snap.Records))
			fmt.Fprintf(out, "Fresh:    %s\n", yesNo(cache.Fresh()))
			return nil
		},
	}
}

func newCorpusRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Scrape the catalog listing now and persist the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := loadCorpus(cmd, ctx)
			if err != nil {
				return err
			}
			snap, err := cache.Refresh(cmd.Context())
			if err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeUnavailable, "corpus refresh failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s: %d records from %d pages\n", snap.ID, len(snap.Records), snap.Pages)
			return nil
		},
	}
}

func newCorpusSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		genres     []string
		mediaTypes []string
		minScore   float64
		limit      int
		offset     int
		facets     bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the persisted snapshot without contacting any upstream",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := loadCorpus(cmd, ctx)
			if err != nil {
				return err
			}
			if cache.Snapshot() == nil {
				return domainerrors.NotFound("no corpus snapshot yet; run `catalogctl corpus refresh`")
			}

			slugs := make([]string, 0, len(genres))
			for _, g := range genres {
				slugs = append(slugs, genre.Key(g))
			}
			records, res, err := cache.Query(cmd.Context(), search.Params{
				Query:         strings.Join(args, " "),
				GenreSlugs:    slugs,
				MediaTypes:    mediaTypes,
				MinScore:      minScore,
				Limit:         limit,
				Offset:        offset,
				IncludeFacets: facets,
			})
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, map[string]any{
					"total":   res.Total,
					"records": records,
					"genres":  res.Genres,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d matches\n", res.Total)
			if len(records) > 0 {
				fmt.Fprintln(out, recordTable(records))
			}
			if facets && len(res.Genres) > 0 {
				rows := make([][]string, 0, len(res.Genres))
				for _, f := range res.Genres {
					rows = append(rows, []string{f.Value, strconv.Itoa(f.Count)})
				}
				fmt.Fprintln(out, renderTable([]string{"Genre", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&genres, "genre", "g", nil, "Keep records in any of these genres")
	cmd.Flags().StringSliceVarP(&mediaTypes, "type", "t", nil, "Keep records of these media types (TV, Movie, ...)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Drop records scored below this")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many matches")
	cmd.Flags().BoolVar(&facets, "facets", false, "Print genre counts")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
