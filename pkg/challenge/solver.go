// Package challenge obtains clearance credentials by letting a real headless
// browser pass the bot-detection interstitial and harvesting its cookie jar.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"competesync/pkg/auth"
	errs "competesync/pkg/errors"
	"competesync/pkg/logger"
	"competesync/pkg/metrics"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Request describes one solve
type Request struct {
	EntryURL  string
	UserAgent string
	// Wait bounds how long the page may take to set the clearance cookie
	Wait time.Duration
}

// Solver obtains a fresh credential set. Failures are reported as an empty set.
type Solver interface {
	Solve(ctx context.Context, req Request) auth.CredentialSet
}

// SolverFunc adapts a function to Solver
type SolverFunc func(ctx context.Context, req Request) auth.CredentialSet

func (f SolverFunc) Solve(ctx context.Context, req Request) auth.CredentialSet {
	return f(ctx, req)
}

// BrowseFunc drives a browser through req and returns the resulting cookie jar
type BrowseFunc func(ctx context.Context, req Request) ([]*network.Cookie, error)

// Options configure a BrowserSolver
type Options struct {
	Store     auth.CredentialStore
	Clearance string
	Headless  bool
	ExecPath  string
	// Timeout caps the whole solve including browser start-up
	Timeout time.Duration
	Logger  logger.Logger
	Metrics *metrics.Metrics
	// Browse replaces the chromedp session, for tests
	Browse BrowseFunc
}

// BrowserSolver passes the challenge with headless Chrome and saves the cookies it gets
type BrowserSolver struct {
	store     auth.CredentialStore
	clearance string
	headless  bool
	execPath  string
	timeout   time.Duration
	log       logger.Logger
	metrics   *metrics.Metrics
	browse    BrowseFunc
}

// NewBrowserSolver creates a solver that persists results into opts.Store
func NewBrowserSolver(opts Options) *BrowserSolver {
	s := &BrowserSolver{
		store:     opts.Store,
		clearance: opts.Clearance,
		headless:  opts.Headless,
		execPath:  opts.ExecPath,
		timeout:   opts.Timeout,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		browse:    opts.Browse,
	}
	if s.clearance == "" {
		s.clearance = auth.DefaultClearanceCookie
	}
	if s.timeout <= 0 {
		s.timeout = time.Minute
	}
	if s.log == nil {
		s.log = logger.Component("challenge")
	}
	if s.browse == nil {
		s.browse = s.runChrome
	}
	return s
}

// Solve runs the browser once. It never returns an error: any failure is logged
// and an empty set comes back. A usable set is saved to the store before returning.
func (s *BrowserSolver) Solve(ctx context.Context, req Request) auth.CredentialSet {
	start := time.Now()
	set, err := s.solve(ctx, req)
	if err != nil {
		s.metrics.ChallengeSolved(false)
		s.log.WithError(err).WarnWithFields("challenge solve failed", map[string]interface{}{
			"entry_url":   req.EntryURL,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return auth.CredentialSet{}
	}

	s.metrics.ChallengeSolved(true)
	s.log.InfoWithFields("challenge solved", map[string]interface{}{
		"cookies":     len(set),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return set
}

func (s *BrowserSolver) solve(ctx context.Context, req Request) (set auth.CredentialSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			set = nil
			err = errs.New(errs.KindChallengeSolveFailure, nil, "browser session panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cookies, err := s.browse(ctx, req)
	if err != nil {
		return nil, errs.New(errs.KindChallengeSolveFailure, err, "browser session failed")
	}

	set = cookiesToSet(cookies)
	if !set.ValidFor(s.clearance) {
		return nil, errs.New(errs.KindChallengeSolveFailure, nil,
			"clearance cookie %q not set after %s (%d cookies)", s.clearance, req.Wait, len(cookies))
	}

	if s.store != nil {
		if err := s.store.Save(set); err != nil {
			s.log.WithError(err).Warn("failed to persist solved credentials")
		}
	}
	return set, nil
}

// runChrome is the production BrowseFunc
func (s *BrowserSolver) runChrome(ctx context.Context, req Request) ([]*network.Cookie, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-zygote", true),
	)
	if req.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(req.UserAgent))
	}
	if s.execPath != "" {
		opts = append(opts, chromedp.ExecPath(s.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var cookies []*network.Cookie
	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(req.EntryURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = pollForCookie(ctx, s.clearance, req.Wait)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome run: %w", err)
	}
	return cookies, nil
}

// pollForCookie reads the cookie jar until name appears or wait elapses,
// returning the last jar seen either way.
func pollForCookie(ctx context.Context, name string, wait time.Duration) ([]*network.Cookie, error) {
	const interval = 250 * time.Millisecond
	deadline := time.Now().Add(wait)

	for {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read cookies: %w", err)
		}
		for _, c := range cookies {
			if c.Name == name && c.Value != "" {
				return cookies, nil
			}
		}
		if !time.Now().Before(deadline) {
			return cookies, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return cookies, nil
			}
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func cookiesToSet(cookies []*network.Cookie) auth.CredentialSet {
	set := make(auth.CredentialSet, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		set[c.Name] = c.Value
	}
	return set
}
