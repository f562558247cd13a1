package main

import (
	"os"

	"competesync/pkg/simplycompete"
	"competesync/pkg/ui"

	"github.com/spf13/cobra"
)

var showRun bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show locally stored items without contacting the remote",
}

var listCompetitionsCmd = &cobra.Command{
	Use:   "competitions",
	Short: "List stored competitions ordered by start date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, simplycompete.CompetitionsCollection, simplycompete.CompetitionsCollection, "", "startDate")
	},
}

var listParticipantsCmd = &cobra.Command{
	Use:   "participants <eventID>",
	Short: "List stored participants of one event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, simplycompete.ParticipantsKey(args[0]), simplycompete.ParticipantsCollection, args[0], "")
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.AddCommand(listCompetitionsCmd)
	listCmd.AddCommand(listParticipantsCmd)

	listCmd.PersistentFlags().BoolVar(&showRun, "last-run", false, "also show the most recent sync run")
}

func runList(cmd *cobra.Command, key, collection, resource, orderField string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.store.List(cmd.Context(), key, orderField)
	if err != nil {
		return err
	}

	if collection == simplycompete.CompetitionsCollection {
		ui.RenderCompetitions(os.Stdout, items)
	} else {
		ui.RenderParticipants(os.Stdout, items)
		ui.RenderDivisionSummary(os.Stdout, items)
	}

	if showRun {
		run, err := a.store.LastRun(cmd.Context(), collection, resource)
		if err != nil {
			return err
		}
		ui.RenderRun(os.Stdout, run)
	}
	return nil
}
