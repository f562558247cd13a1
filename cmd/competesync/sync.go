package main

import (
	"fmt"
	"os"

	"competesync/pkg/storage"
	"competesync/pkg/syncer"
	"competesync/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	nodeID     string
	exportPath string
	export     bool
	showTable  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch a remote list and store it locally",
}

var syncCompetitionsCmd = &cobra.Command{
	Use:   "competitions",
	Short: "Sync the competition list",
	Example: `  competesync sync competitions
  competesync sync competitions --max-pages 5 --table`,
	Args: cobra.NoArgs,
	RunE: runSyncCompetitions,
}

var syncParticipantsCmd = &cobra.Command{
	Use:   "participants <eventID>",
	Short: "Sync the participants of one event",
	Example: `  competesync sync participants 8a2f9c
  competesync sync participants 8a2f9c --node 1234 --export`,
	Args: cobra.ExactArgs(1),
	RunE: runSyncParticipants,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncCompetitionsCmd)
	syncCmd.AddCommand(syncParticipantsCmd)

	syncCmd.PersistentFlags().BoolVar(&showTable, "table", false, "print the synced items as a table")
	syncParticipantsCmd.Flags().StringVar(&nodeID, "node", "", "only participants under this role node")
	syncParticipantsCmd.Flags().BoolVar(&export, "export", false, "also write the participants to the export file")
	syncParticipantsCmd.Flags().StringVar(&exportPath, "export-path", "", "export file (default from config)")
}

func runSyncCompetitions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ui.PrintHighlight("[SYNCING COMPETITIONS]")
	result := a.syncer.SyncCompetitions(cmd.Context())
	if err := report(result, "competitions"); err != nil {
		return err
	}
	if showTable {
		ui.RenderCompetitions(os.Stdout, result.Items)
	}
	return nil
}

func runSyncParticipants(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	eventID := args[0]
	ui.PrintInfo("Event", eventID)
	if nodeID != "" {
		ui.PrintInfo("Role node", nodeID)
	}

	ui.PrintHighlight("[SYNCING PARTICIPANTS]")
	result := a.syncer.SyncParticipants(cmd.Context(), eventID, nodeID)
	if err := report(result, "participants"); err != nil {
		return err
	}

	if showTable {
		ui.RenderParticipants(os.Stdout, result.Items)
		ui.RenderDivisionSummary(os.Stdout, result.Items)
	}

	if export {
		path := exportPath
		if path == "" {
			path = cfg.Storage.ExportPath
		}
		if err := storage.ExportJSON(path, result.Items); err != nil {
			return err
		}
		ui.PrintInfo("Exported", path)
	}
	return nil
}

// report prints the outcome and turns an empty failed fetch into an error
func report(result syncer.Result, noun string) error {
	ui.PrintInfo("Pages", fmt.Sprintf("%d", result.Pages))
	ui.PrintInfo("Stop reason", string(result.Reason))

	if result.StoreErr != nil {
		return fmt.Errorf("failed to store %s: %w", noun, result.StoreErr)
	}
	if result.Count == 0 && result.Err != nil {
		return fmt.Errorf("could not fetch %s: %w", noun, result.Err)
	}
	if !result.Complete() {
		ui.PrintWarning(fmt.Sprintf("Partial result (%s)", result.Reason), result.Err)
	}
	ui.PrintSuccess(fmt.Sprintf("Synced %d %s", result.Stored, noun))
	return nil
}
