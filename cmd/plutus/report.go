// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/plutus/internal/archive"
	"github.com/pdiddy/plutus/internal/coordinator"
	"github.com/pdiddy/plutus/internal/fallback"
	"github.com/pdiddy/plutus/internal/render"
	"github.com/pdiddy/plutus/internal/stream"
	"github.com/pdiddy/plutus/pkg/types"
)

// errCancelled is returned when a report run is interrupted.
var errCancelled = errors.New("report cancelled")

var reportCmd = &cobra.Command{
	Use:   "report [description]",
	Short: "Generate a funding report for a project description",
	Long: `Report submits a research project description and follows the report
service as it works: generating search terms, finding funded papers for each
term, compiling funding data and summarising it. The finished report is
printed and stored in the local archive.

The description is taken from the arguments, or read from stdin when no
arguments are given.`,
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.Int("max-results", 0, "maximum number of funded papers to collect (default 50)")
	f.Bool("sync", false, "use the non-streaming endpoint (no progress updates)")
	f.Bool("json", false, "print the report as JSON")
	f.Bool("no-archive", false, "do not store the report in the archive")
	f.Duration("idle-timeout", 0, "fail when the stream is silent this long (default 2m, 0 disables)")

	viper.BindPFlag("stream.max_results", f.Lookup("max-results"))
	viper.BindPFlag("archive.disabled", f.Lookup("no-archive"))

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	description, err := readDescription(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg := loadConfig()
	if sync, _ := cmd.Flags().GetBool("sync"); sync {
		cfg.Stream.Mode = types.ModeSync
	}
	if cmd.Flags().Changed("idle-timeout") {
		cfg.Stream.IdleTimeout, _ = cmd.Flags().GetDuration("idle-timeout")
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return generateReport(ctx, reportIO{out: cmd.OutOrStdout(), progress: cmd.ErrOrStderr()}, cfg, log, description, asJSON)
}

// readDescription joins args, or reads stdin when there are none and it
// is not a terminal.
func readDescription(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if in == nil || render.IsTerminal(in) {
		return "", errors.New("a project description is required")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("reading description from stdin: %w", err)
	}
	desc := strings.TrimSpace(string(data))
	if desc == "" {
		return "", errors.New("a project description is required")
	}
	return desc, nil
}

type reportIO struct {
	out      io.Writer
	progress io.Writer
}

// generateReport runs one submission to completion and prints the
// outcome. A delivered ErrorSignal is returned as the error.
func generateReport(ctx context.Context, w reportIO, cfg types.ClientConfig, log logrus.FieldLogger, description string, asJSON bool) error {
	opts := []coordinator.Option{
		coordinator.WithLogger(log),
		coordinator.WithIdleTimeout(cfg.Stream.IdleTimeout),
		coordinator.WithMaxResults(cfg.Stream.MaxResults),
	}

	if !cfg.Archive.Disabled {
		store, err := archive.NewStore(cfg.Archive)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, coordinator.WithArchiver(store))
	}

	var transport stream.Transport
	switch cfg.Stream.Mode {
	case types.ModeSync:
		opts = append(opts, coordinator.WithSync(fallback.New(cfg.Stream.HTTPConfig)))
	case types.ModeStream, "":
		transport = stream.NewSSETransport(cfg.Stream)
	default:
		return fmt.Errorf("unknown mode %q (want %s or %s)", cfg.Stream.Mode, types.ModeStream, types.ModeSync)
	}

	c := coordinator.New(transport, opts...)
	defer c.Cancel()

	updates, err := c.Submit(ctx, description, 0)
	if err != nil {
		return err
	}

	var progress *render.Progress
	if !asJSON {
		progress = render.NewProgress(w.progress, render.DetectOptions(w.progress))
	}

	var (
		result *types.Result
		sig    *types.ErrorSignal
	)
	for u := range updates {
		switch {
		case u.Progress != nil && progress != nil:
			if err := progress.Update(*u.Progress); err != nil {
				log.WithError(err).Debug("drawing progress")
			}
		case u.Result != nil:
			result = u.Result
		case u.Err != nil:
			sig = u.Err
		}
	}

	switch {
	case sig != nil:
		if asJSON {
			writeJSON(w.out, map[string]any{"error": sig})
		}
		return *sig
	case result == nil:
		return errCancelled
	case asJSON:
		return writeJSON(w.out, result)
	default:
		return render.Report(w.out, *result, render.DetectOptions(w.out))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
