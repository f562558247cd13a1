package challenge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"competesync/pkg/auth"
	"competesync/pkg/logger"
	"competesync/pkg/metrics"

	"github.com/chromedp/cdproto/network"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRequest = Request{
	EntryURL:  "https://example.test/events",
	UserAgent: "test-agent",
	Wait:      10 * time.Millisecond,
}

func newTestSolver(store auth.CredentialStore, browse BrowseFunc) (*BrowserSolver, *logger.TestLogger, *metrics.Metrics) {
	log := logger.NewTestLogger()
	m := metrics.New()
	return NewBrowserSolver(Options{
		Store:   store,
		Timeout: time.Second,
		Logger:  log,
		Metrics: m,
		Browse:  browse,
	}), log, m
}

func TestSolveSavesClearance(t *testing.T) {
	store := auth.NewMemoryStore(nil)
	var seen Request
	solver, _, m := newTestSolver(store, func(_ context.Context, req Request) ([]*network.Cookie, error) {
		seen = req
		return []*network.Cookie{
			{Name: "cf_clearance", Value: "fresh"},
			{Name: "__cf_bm", Value: "bm"},
		}, nil
	})

	set := solver.Solve(context.Background(), testRequest)

	assert.Equal(t, auth.CredentialSet{"cf_clearance": "fresh", "__cf_bm": "bm"}, set)
	assert.Equal(t, testRequest, seen)
	assert.Equal(t, set, store.Load())
	expected := `
# HELP competesync_challenge_solves_total Challenge solve attempts by outcome
# TYPE competesync_challenge_solves_total counter
competesync_challenge_solves_total{outcome="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "competesync_challenge_solves_total"))
}

func TestSolveWithoutClearanceIsEmpty(t *testing.T) {
	store := auth.NewMemoryStore(nil)
	solver, log, _ := newTestSolver(store, func(context.Context, Request) ([]*network.Cookie, error) {
		return []*network.Cookie{{Name: "__cf_bm", Value: "bm"}}, nil
	})

	set := solver.Solve(context.Background(), testRequest)

	assert.Empty(t, set)
	_, saves, _ := store.Counts()
	assert.Equal(t, 0, saves)
	assert.True(t, log.HasMessage("challenge solve failed"))
}

func TestSolveBrowserErrorIsEmpty(t *testing.T) {
	store := auth.NewMemoryStore(nil)
	solver, log, _ := newTestSolver(store, func(context.Context, Request) ([]*network.Cookie, error) {
		return nil, errors.New("chrome not found")
	})

	assert.Empty(t, solver.Solve(context.Background(), testRequest))
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
}

func TestSolveRecoversPanics(t *testing.T) {
	solver, _, _ := newTestSolver(auth.NewMemoryStore(nil), func(context.Context, Request) ([]*network.Cookie, error) {
		panic("target crashed")
	})

	assert.NotPanics(t, func() {
		assert.Empty(t, solver.Solve(context.Background(), testRequest))
	})
}

func TestSolveAppliesTimeout(t *testing.T) {
	solver := NewBrowserSolver(Options{
		Store:   auth.NewMemoryStore(nil),
		Timeout: 20 * time.Millisecond,
		Logger:  logger.NewNopLogger(),
		Browse: func(ctx context.Context, _ Request) ([]*network.Cookie, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	start := time.Now()
	assert.Empty(t, solver.Solve(context.Background(), testRequest))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSolveSaveFailureStillReturnsSet(t *testing.T) {
	store := auth.NewMemoryStore(nil)
	store.SaveError = errors.New("disk full")
	solver, log, _ := newTestSolver(store, func(context.Context, Request) ([]*network.Cookie, error) {
		return []*network.Cookie{{Name: "cf_clearance", Value: "fresh"}}, nil
	})

	set := solver.Solve(context.Background(), testRequest)
	assert.True(t, set.Valid())
	assert.True(t, log.HasMessage("failed to persist solved credentials"))
}

func TestSolverFunc(t *testing.T) {
	var s Solver = SolverFunc(func(context.Context, Request) auth.CredentialSet {
		return auth.CredentialSet{"cf_clearance": "x"}
	})
	require.True(t, s.Solve(context.Background(), testRequest).Valid())
}

func TestCookiesToSetSkipsBlankNames(t *testing.T) {
	set := cookiesToSet([]*network.Cookie{nil, {Name: ""}, {Name: "a", Value: "1"}})
	assert.Equal(t, auth.CredentialSet{"a": "1"}, set)
}
