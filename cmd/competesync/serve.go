package main

import (
	"competesync/pkg/api"
	"competesync/pkg/ui"

	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sync and cached reads over HTTP",
	Long: `Start the HTTP wrapper.

Endpoints:
  GET /                                        health and endpoint list
  GET /competitions/sync                       fetch and store competitions
  GET /competitions                            stored competitions
  GET /events/{eventID}/participants/sync      fetch and store participants (?nodeId=)
  GET /events/{eventID}/participants           stored participants
  GET /metrics                                 prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default :5001)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ui.PrintInfo("Listening", cfg.Server.Address)
	return api.New(a.syncer, a.store, a.metrics, nil).ListenAndServe(cmd.Context(), cfg.Server.Address)
}
