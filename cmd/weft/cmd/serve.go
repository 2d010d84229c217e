package cmd

import (
	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the REST API over the workflow engine.

Runs, inputs and continuations are exposed under /api/v1, with a live
event stream at /api/v1/events (Server-Sent Events).

Examples:
  # Start with the configured address (server.addr)
  weft serve

  # Listen on all interfaces
  weft serve --addr 0.0.0.0:7420`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Address to listen on (default: server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	server := api.NewServer(a.engine, a.bus,
		api.WithLogger(a.logger.Logger),
		api.WithCORSOrigins(a.cfg.Server.CORSOrigins),
	)
	return server.ListenAndServe(ctx, addr)
}
