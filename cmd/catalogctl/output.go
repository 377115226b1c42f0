package main

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/anineesan/anineesan-server/internal/domain"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    60,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

var entityAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft}

func entityTable(entities []domain.CanonicalEntity) string {
	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []string{
			idOrDash(e.ID),
			e.Title,
			orDash(e.MediaType),
			formatEpisodes(e.Episodes),
			formatScore(e.Score),
			sourceList(e.Sources),
		})
	}
	return renderTable([]string{"ID", "Title", "Type", "Eps", "Score", "Sources"}, rows, entityAligns)
}

func recordTable(records []domain.RawRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			idOrDash(r.PrimaryID),
			r.Title,
			orDash(r.MediaType),
			formatEpisodes(r.Episodes),
			formatScore(r.Score),
			strings.Join(r.Genres, ", "),
		})
	}
	return renderTable([]string{"MAL ID", "Title", "Type", "Eps", "Score", "Genres"}, rows, entityAligns)
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score, 'f', 2, 64)
}

func formatEpisodes(episodes *int) string {
	if episodes == nil {
		return "?"
	}
	return strconv.Itoa(*episodes)
}

func idOrDash(id int) string {
	if id <= 0 {
		return "-"
	}
	return strconv.Itoa(id)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sourceList(sources []domain.Source) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.String()
	}
	return strings.Join(names, ",")
}
