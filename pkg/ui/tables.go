package ui

import (
	"fmt"
	"io"
	"time"

	"competesync/pkg/paginator"
	"competesync/pkg/simplycompete"
	"competesync/pkg/storage"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// RenderCompetitions prints normalized competition records
func RenderCompetitions(w io.Writer, items []paginator.RawItem) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Start date"})
	for _, item := range items {
		c := simplycompete.CompetitionFromRaw(item)
		t.AppendRow(table.Row{c.ID, c.Name, c.StartDate})
	}
	t.AppendFooter(table.Row{"", "Total", len(items)})
	t.Render()
}

// RenderParticipants prints one row per participant
func RenderParticipants(w io.Writer, items []paginator.RawItem) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Name", "Country", "Division", "Club", "License", "Seed"})
	for i, item := range items {
		p := simplycompete.ParticipantFromRaw(item)
		t.AppendRow(table.Row{i + 1, p.Name(), p.Country, p.Division, p.Club, p.LicenseID, p.Seed})
	}
	t.AppendFooter(table.Row{"", "Total", len(items)})
	t.Render()
}

// RenderDivisionSummary prints participant counts per division
func RenderDivisionSummary(w io.Writer, items []paginator.RawItem) {
	participants := make([]simplycompete.Participant, 0, len(items))
	for _, item := range items {
		participants = append(participants, simplycompete.ParticipantFromRaw(item))
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Division", "Participants"})
	for _, d := range simplycompete.DivisionSummary(participants) {
		t.AppendRow(table.Row{d.Division, d.Count})
	}
	t.Render()
}

// RenderRun prints a sync run record
func RenderRun(w io.Writer, run *storage.Run) {
	if run == nil {
		fmt.Fprintln(w, Dim("never synced"))
		return
	}

	t := newTable(w)
	t.AppendRows([]table.Row{
		{"Run", run.ID},
		{"Reason", run.Reason},
		{"Items", run.Count},
		{"Pages", run.Pages},
		{"Finished", run.FinishedAt.Local().Format(time.DateTime)},
	})
	if run.Error != "" {
		t.AppendRow(table.Row{"Error", run.Error})
	}
	t.Render()
}
