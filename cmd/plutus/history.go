// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/plutus/internal/archive"
	"github.com/pdiddy/plutus/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and export archived funding reports",
	Long: `History reads the local report archive. Every report delivered by
"plutus report" is stored there unless --no-archive was given.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List archived reports, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an archived report (a unique ID prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyExportCmd = &cobra.Command{
	Use:   "export [query]",
	Short: "Export archived reports as YAML or JSON",
	RunE:  runHistoryExport,
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of reports to list")
	historyShowCmd.Flags().Bool("json", false, "print the report as JSON")
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyExportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}

func openArchive() (*archive.Store, error) {
	return archive.NewStore(loadConfig().Archive)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	recs, err := store.List(cmd.Context(), archive.ListOptions{Query: strings.Join(args, " "), Limit: limit})
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No archived reports.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), historyTable(recs))
	return nil
}

func historyTable(recs []archive.Record) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Delivered", "Terms", "Papers", "Description"})
	for _, r := range recs {
		tw.AppendRow(table.Row{
			shortID(r.Submission.ID),
			r.DeliveredAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(len(r.Result.SearchTerms)),
			strconv.Itoa(len(r.Result.FundersData)),
			truncate(r.Submission.Description, 60),
		})
	}
	return tw.Render()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(out, rec)
	}
	fmt.Fprintf(out, "Report %s\nProject: %s\n\n", rec.Submission.ID, rec.Submission.Description)
	return render.Report(out, rec.Result, render.DetectOptions(out))
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}

	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	opts := archive.ListOptions{Query: strings.Join(args, " ")}
	if format == "json" {
		return store.ExportJSON(cmd.Context(), w, opts)
	}
	return store.ExportYAML(cmd.Context(), w, opts)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
