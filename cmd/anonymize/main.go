// Command anonymize replaces personal data in a clinical-notes file with
// stable identifiers and writes the redacted text plus a mapping log.
//
// Each detected entity becomes "<n>.<category>": full names .1, ages and
// dates of birth .2, addresses .3, re-mentions of a named person .4 (sharing
// the full name's prefix), NI numbers .5, phone numbers .6, emails .7.
//
// Usage:
//
//	# PatientNotes.txt -> AnonymizedData.txt + MappedData.txt
//	./anonymize
//
//	# Explicit files, keep a copy of every mapping log
//	./anonymize ward3.txt -o ward3.anon.txt -m ward3.map.txt --archive runs.db
//
//	# List archived runs
//	./anonymize history --archive runs.db
//
// Settings come from anonymizer.yaml, .env and ANONYMIZER_* environment
// variables; flags given on the command line win.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"notes-anonymizer/internal/anonymizer"
	"notes-anonymizer/internal/archive"
	"notes-anonymizer/internal/config"
	"notes-anonymizer/internal/logger"
	"notes-anonymizer/internal/metrics"
	"notes-anonymizer/internal/notesfile"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anonymize [input]",
		Short: "Replace personal data in clinical notes with stable identifiers",
		Long: `anonymize reads a clinical-notes document, replaces names, ages and
dates of birth, addresses, NI numbers, phone numbers and emails with
identifiers such as "1.1" or "2.6", and writes the redacted text together
with a mapping log that pairs every identifier with the text it replaced.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig(cmd, args)
			quiet, _ := cmd.Flags().GetBool("quiet")
			stats, _ := cmd.Flags().GetBool("stats")
			return run(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, quiet, stats)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default "+config.DefaultFile+")")
	pf.String("archive", "", "bbolt file that keeps a copy of every mapping log")
	pf.String("log-level", "", "debug, info, warn or error")

	f := cmd.Flags()
	f.StringP("output", "o", "", "redacted text file")
	f.StringP("mapping", "m", "", "mapping log file")
	f.BoolP("quiet", "q", false, "suppress progress narration")
	f.Bool("stats", false, "print a metrics snapshot as JSON after the run")

	cmd.AddCommand(newPatternsCmd(), newHistoryCmd())
	return cmd
}

// resolveConfig loads the layered config and applies any flag the user set
// explicitly. A positional argument names the input file.
func resolveConfig(cmd *cobra.Command, args []string) *config.Config {
	path, _ := cmd.Flags().GetString("config")
	level := os.Getenv("LOG_LEVEL")
	if cmd.Flags().Changed("log-level") {
		level, _ = cmd.Flags().GetString("log-level")
	}
	cfg := config.Load(path, logger.NewTo("config", level, cmd.ErrOrStderr()))

	override := func(flag string, dst *string) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	override("archive", &cfg.ArchivePath)
	override("log-level", &cfg.LogLevel)
	override("output", &cfg.OutputFile)
	override("mapping", &cfg.MappingFile)
	if len(args) > 0 {
		cfg.InputFile = args[0]
	}
	return cfg
}

func run(out, errw io.Writer, cfg *config.Config, quiet, stats bool) error {
	log := logger.NewTo("cli", cfg.LogLevel, errw)
	defer log.Sync() //nolint:errcheck // stderr sync is best effort

	narr := out
	if quiet {
		narr = io.Discard
	}
	printBanner(narr, cfg)

	lib, err := anonymizer.LoadLibrary(cfg.MatchTimeout)
	if err != nil {
		return fmt.Errorf("load patterns: %w", err)
	}
	m := metrics.New()
	a := anonymizer.New(lib, logger.NewTo("anonymizer", cfg.LogLevel, errw), m)

	fmt.Fprintln(narr, "Reading the file...")
	text, err := notesfile.Read(cfg.InputFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", cfg.InputFile, err)
	}
	log.Infof("input_read", "%s (%s)", cfg.InputFile, humanize.Bytes(uint64(len(text))))
	fmt.Fprintf(narr, "Read %s from %s\n", humanize.Bytes(uint64(len(text))), cfg.InputFile)

	fmt.Fprintln(narr, "Replacing Personal Data with respective IDs...")
	fmt.Fprintln(narr)
	fmt.Fprintln(narr, strings.Repeat("=", 44))

	res, err := a.Anonymize(text)
	if err != nil {
		return fmt.Errorf("anonymize %s: %w", cfg.InputFile, err)
	}
	fmt.Fprint(narr, res.Log.String())

	if err := notesfile.Write(cfg.OutputFile, res.Text); err != nil {
		return fmt.Errorf("write redacted text: %w", err)
	}
	fmt.Fprintf(narr, "\nAnonymized data has been saved to the file named: %s\n", cfg.OutputFile)

	if err := notesfile.WriteTo(cfg.MappingFile, res.Log); err != nil {
		return fmt.Errorf("write mapping log: %w", err)
	}
	fmt.Fprintf(narr, "Mapped data has been saved to the file named: %s\n", cfg.MappingFile)

	if cfg.ArchivePath != "" {
		id, err := archiveResult(cfg.ArchivePath, cfg.InputFile, res.Log, logger.NewTo("archive", cfg.LogLevel, errw))
		if err != nil {
			return fmt.Errorf("archive run: %w", err)
		}
		log.Infof("archived", "run %s -> %s", id, cfg.ArchivePath)
		fmt.Fprintf(narr, "Mapping archived as run %s\n", id)
	}

	if stats {
		data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
		if err != nil {
			return fmt.Errorf("encode stats: %w", err)
		}
		fmt.Fprintln(out, string(data))
	}
	return nil
}

// archiveResult appends the mapping log of one run to the archive at path.
func archiveResult(path, input string, mlog *anonymizer.MappingLog, log *logger.Logger) (string, error) {
	store, err := archive.Open(path, log)
	if err != nil {
		return "", err
	}
	defer store.Close() //nolint:errcheck // read-write handle; Record already committed
	return store.Record(toArchiveRun(input, mlog))
}

func toArchiveRun(input string, mlog *anonymizer.MappingLog) archive.Run {
	r := archive.Run{InputFile: input}
	for _, s := range mlog.Sections() {
		for _, e := range s.Entries {
			r.Entries = append(r.Entries, archive.Entry{
				Category: s.Category.String(),
				ID:       e.ID.String(),
				Original: e.Original,
			})
		}
	}
	return r
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
	labelStyle = lipgloss.NewStyle().Faint(true).Width(16)
)

func printBanner(w io.Writer, cfg *config.Config) {
	timeout := "none"
	if cfg.MatchTimeout > 0 {
		timeout = cfg.MatchTimeout.String()
	}
	archivePath := cfg.ArchivePath
	if archivePath == "" {
		archivePath = "(disabled, set --archive or ANONYMIZER_ARCHIVE)"
	}

	rows := []struct{ label, value string }{
		{"Input", cfg.InputFile},
		{"Redacted text", cfg.OutputFile},
		{"Mapping log", cfg.MappingFile},
		{"Archive", archivePath},
		{"Match timeout", timeout},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Clinical Notes Anonymizer"))
	b.WriteByte('\n')
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s: %s\n", labelStyle.Render(r.label), r.value)
	}
	fmt.Fprintln(w, b.String())
}
