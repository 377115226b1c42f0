package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/anineesan/anineesan-server/internal/di/providers"
	"github.com/anineesan/anineesan-server/internal/domain"
	domainerrors "github.com/anineesan/anineesan-server/internal/errors"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the record cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCachePurgeCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var sourceName string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List cached upstream records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var src domain.Source
			if sourceName != "" {
				parsed, err := domain.ParseSource(sourceName)
				if err != nil {
					return domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid --source")
				}
				src = parsed
			}

			db, err := invoke[*providers.StoreHandle](ctx)
			if err != nil {
				return err
			}
			entries, err := db.ListRecords(cmd.Context(), src)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cached records: none")
				return nil
			}

			const stampLayout = "2006-01-02 15:04"
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				expires := "never"
				if !e.ExpiresAt.IsZero() {
					expires = e.ExpiresAt.Local().Format(stampLayout)
				}
				rows = append(rows, []string{
					e.Source.String(),
					strconv.Itoa(e.ID),
					e.Record.Title,
					e.StoredAt.Local().Format(stampLayout),
					expires,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Source", "ID", "Title", "Stored", "Expires"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&sourceName, "source", "s", "", "Only list one source (mal, anilist, scrape)")
	return cmd
}

func newCachePurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Drop every cached record (the corpus snapshot is kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := invoke[*providers.StoreHandle](ctx)
			if err != nil {
				return err
			}
			started := time.Now()
			removed, err := db.PurgeRecords(cmd.Context())
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cached records")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d records in %s\n", removed, time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
}
