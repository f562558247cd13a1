package main

import (
	"errors"
	"path/filepath"
	"testing"

	"competesync/pkg/config"
	"competesync/pkg/paginator"
	"competesync/pkg/syncer"
	"competesync/pkg/ui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietUI(t *testing.T) {
	ui.SetQuietMode(true)
	t.Cleanup(func() {
		ui.SetQuietMode(false)
		quiet = false
	})
}

func TestReport(t *testing.T) {
	quietUI(t)

	ok := syncer.Result{FetchResult: paginator.FetchResult{Count: 2, Reason: paginator.ReasonExhausted}, Stored: 2}
	assert.NoError(t, report(ok, "competitions"))

	partial := syncer.Result{FetchResult: paginator.FetchResult{Count: 2, Reason: paginator.ReasonFailed, Err: errors.New("timeout")}}
	assert.NoError(t, report(partial, "participants"))

	failed := syncer.Result{FetchResult: paginator.FetchResult{Reason: paginator.ReasonFailed, Err: errors.New("auth exhausted")}}
	err := report(failed, "participants")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not fetch participants")

	stored := syncer.Result{FetchResult: paginator.FetchResult{Count: 1, Reason: paginator.ReasonExhausted}, StoreErr: errors.New("locked")}
	assert.ErrorContains(t, report(stored, "competitions"), "locked")
}

func TestConfigInit(t *testing.T) {
	quietUI(t)
	path := filepath.Join(t.TempDir(), "competesync.yaml")

	rootCmd.SetArgs([]string{"config", "init", path, "-q"})
	require.NoError(t, rootCmd.Execute())

	cfg := config.DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, config.DefaultConfig().Fetch.MaxPages, cfg.Fetch.MaxPages)

	rootCmd.SetArgs([]string{"config", "init", path, "-q"})
	assert.ErrorContains(t, rootCmd.Execute(), "already exists")
}

func TestChallengeRequest(t *testing.T) {
	cfg := config.DefaultConfig()
	req := challengeRequest(cfg)

	assert.Equal(t, cfg.Challenge.EntryURL, req.EntryURL)
	assert.Equal(t, cfg.Remote.UserAgent, req.UserAgent)
	assert.Equal(t, cfg.Challenge.Wait, req.Wait)
}
