package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"notes-anonymizer/internal/anonymizer"
	"notes-anonymizer/internal/archive"
	"notes-anonymizer/internal/logger"
)

func newPatternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the recognizers applied to every document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig(cmd, nil)
			lib, err := anonymizer.LoadLibrary(cfg.MatchTimeout)
			if err != nil {
				return fmt.Errorf("load patterns: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, p := range lib.Patterns() {
				fmt.Fprintf(out, "%-9s x%s  %s\n", p.Category, p.Category.Suffix(), p.Description)
				fmt.Fprintf(out, "          %s\n", p.Expression())
			}
			fmt.Fprintf(out, "%-9s x%s  %s\n", anonymizer.RefName, anonymizer.RefName.Suffix(),
				"First, last and titled names taken from each full-name match")
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List runs recorded in the archive",
		Long: `history prints every run kept in the archive, oldest first, with the
number of replacements per category. The archive holds original personal
data; protect the file accordingly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig(cmd, nil)
			if cfg.ArchivePath == "" {
				return errors.New("no archive configured: pass --archive or set ANONYMIZER_ARCHIVE")
			}

			store, err := archive.Open(cfg.ArchivePath, logger.NewTo("archive", cfg.LogLevel, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // read-only use

			runs, err := store.Runs()
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs archived in %s\n", cfg.ArchivePath)
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-14s  %s  %s\n",
					r.ID, humanize.Time(r.CreatedAt), r.InputFile, summarize(r))
			}
			return nil
		},
	}
}

// summarize renders per-category counts in suffix order, e.g.
// "FULL_NAME=2 PHONE=1". Empty categories are left out.
func summarize(r archive.Run) string {
	counts := r.CountByCategory()
	var parts []string
	for _, c := range anonymizer.Categories {
		if n := counts[c.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", c, n))
		}
	}
	if len(parts) == 0 {
		return "no replacements"
	}
	return strings.Join(parts, " ")
}
