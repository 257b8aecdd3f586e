// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/plutus/internal/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Serve a scripted report run on the report service endpoints",
	Long: `Replay plays a YAML script of frames on /stream_funding_report (as
server-sent events) and answers /generate_funding_report with the script's
outcome. Point "plutus report --base-url" at it to try the client without
the real service.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().String("addr", "127.0.0.1:8000", "listen address")
	replayCmd.Flags().Bool("require-token", false, "require the configured API token as a bearer token")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	script, err := replay.LoadScript(args[0])
	if err != nil {
		return err
	}

	opts := []replay.Option{replay.WithLogger(log)}
	if require, _ := cmd.Flags().GetBool("require-token"); require {
		token := loadConfig().Stream.Token
		if token == "" {
			log.Warn("--require-token given but no token is configured; accepting all requests")
		}
		opts = append(opts, replay.WithToken(token))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr, _ := cmd.Flags().GetString("addr")
	return replay.NewServer(script, opts...).ListenAndServe(ctx, addr)
}
