package ui

import (
	"bytes"
	"os"
	"testing"
	"time"

	"competesync/pkg/paginator"
	"competesync/pkg/storage"

	"github.com/stretchr/testify/assert"
)

func TestRenderCompetitions(t *testing.T) {
	var buf bytes.Buffer
	RenderCompetitions(&buf, []paginator.RawItem{
		{"id": "c1", "name": "Spring Open", "startDate": "2024-03-01"},
	})

	out := buf.String()
	assert.Contains(t, out, "Spring Open")
	assert.Contains(t, out, "2024-03-01")
	assert.Contains(t, out, "TOTAL")
}

func TestRenderParticipantsAndDivisions(t *testing.T) {
	items := []paginator.RawItem{
		{"participantId": "1", "firstName": "Ana", "lastName": "Lee", "divisionName": "-49kg", "country": "KOR"},
		{"participantId": "2", "firstName": "Bo", "lastName": "Kim", "divisionName": "-49kg"},
		{"participantId": "3", "firstName": "Cy", "lastName": "Park", "divisionName": "-57kg"},
	}

	var buf bytes.Buffer
	RenderParticipants(&buf, items)
	assert.Contains(t, buf.String(), "Ana Lee")
	assert.Contains(t, buf.String(), "Unknown")

	buf.Reset()
	RenderDivisionSummary(&buf, items)
	assert.Contains(t, buf.String(), "-49kg")
	assert.Contains(t, buf.String(), "-57kg")
}

func TestRenderRun(t *testing.T) {
	var buf bytes.Buffer
	RenderRun(&buf, nil)
	assert.Contains(t, buf.String(), "never synced")

	buf.Reset()
	RenderRun(&buf, &storage.Run{ID: "r1", Reason: "failed", Error: "boom", FinishedAt: time.Now()})
	assert.Contains(t, buf.String(), "r1")
	assert.Contains(t, buf.String(), "boom")
}

func TestQuietMode(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetQuietMode(false)
		SetOutput(os.Stdout)
	})

	SetQuietMode(true)
	PrintInfo("label", "value")
	PrintSuccess("done")
	assert.Empty(t, buf.String())

	PrintError("failed", "reason")
	assert.Contains(t, buf.String(), "failed: reason")

	SetQuietMode(false)
	PrintInfo("label", "value")
	assert.Contains(t, buf.String(), "value")
}
