package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/evalia/internal/metrics"
	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/report"
)

var (
	historyLimit int
	historyJSON  bool
	showJSON     bool
	exportPDF    bool
	exportMD     string
	exportSeal   string
	exportDir    string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent evaluations from the memory log",
	Long: `History lists evaluations from the memory log, newest first.

Example:
  evalia history
  evalia history --limit 50
  evalia history --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(appConfig)
		if err != nil {
			return err
		}
		entries, err := st.Recent(historyLimit)
		if err != nil {
			return err
		}

		if historyJSON {
			return writeJSON(cmd, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No evaluations yet.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTIMESTAMP\tVERDICT\tAVG\tPERSONA\tCLAIM")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(e.ID), e.Timestamp, verdictOf(&e),
				metrics.FormatAverage(metrics.Average(e.Scores)), e.PersonaUsed, preview(e.Claim))
		}
		return tw.Flush()
	},
}

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored evaluation",
	Long: `Show renders one evaluation from the memory log. A unique id prefix is enough.

Example:
  evalia show 3f2a
  evalia show 3f2a9c1e --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := lookupEntry(args[0])
		if err != nil {
			return err
		}
		if showJSON {
			return writeJSON(cmd, entry)
		}
		rendered, err := report.Terminal(entry, "", 0)
		if err != nil {
			rendered = report.Markdown(entry, "")
		}
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	},
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a stored evaluation as PDF, markdown or seal image",
	Long: `Export writes artifacts for one evaluation from the memory log.

Example:
  evalia export 3f2a --pdf
  evalia export 3f2a --md verdict.md --seal seal.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !exportPDF && exportMD == "" && exportSeal == "" {
			return fmt.Errorf("nothing to export: pass --pdf, --md or --seal")
		}
		entry, err := lookupEntry(args[0])
		if err != nil {
			return err
		}
		if exportMD != "" {
			if err := os.WriteFile(exportMD, []byte(report.Markdown(entry, "")), 0644); err != nil {
				return fmt.Errorf("write markdown: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Markdown: %s\n", exportMD)
		}
		return writeArtifacts(cmd, entry, exportPDF, exportSeal, exportDir)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of entries to list (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print entries as JSON")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the entry as JSON")
	exportCmd.Flags().BoolVar(&exportPDF, "pdf", false, "write a PDF report")
	exportCmd.Flags().StringVar(&exportMD, "md", "", "write a markdown report to this path")
	exportCmd.Flags().StringVar(&exportSeal, "seal", "", "write the seal PNG to this path")
	exportCmd.Flags().StringVar(&exportDir, "output-dir", "", "directory for the PDF (default: report.output_dir)")
}

func lookupEntry(id string) (*model.MemoryEntry, error) {
	st, err := openStore(appConfig)
	if err != nil {
		return nil, err
	}
	return st.Get(id)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func verdictOf(e *model.MemoryEntry) model.Verdict {
	if e.Analysis == nil || e.Analysis.Verdict == "" {
		return "-"
	}
	return e.Analysis.Verdict
}
