package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/siherrmann/schematic/api"
	"github.com/spf13/cobra"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the search, context, resolve, fuzzy, relationship, upstream and
classify endpoints together with /health and /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddress, "address", "a", "", "listen address, overrides server.address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, cleanup, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	defer s.Close()

	serverConfig := cfg.Server
	if serveAddress != "" {
		serverConfig.Address = serveAddress
	}

	return api.NewServer(s, cfg.Search.Model(), serverConfig, logger).Run(ctx)
}
