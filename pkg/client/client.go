// Package client issues GET requests against the protected service, presenting
// stored clearance credentials and refreshing them through the challenge solver
// when they are missing or rejected.
package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"competesync/pkg/auth"
	"competesync/pkg/challenge"
	errs "competesync/pkg/errors"
	"competesync/pkg/logger"
	"competesync/pkg/metrics"
	"competesync/pkg/ratelimit"
	"competesync/pkg/retry"

	"github.com/go-resty/resty/v2"
)

// DefaultMaxAttempts is the total number of credential attempts per request
const DefaultMaxAttempts = 2

// Options configure an AuthenticatedClient
type Options struct {
	Store  auth.CredentialStore
	Solver challenge.Solver
	// Challenge is passed to Solver whenever fresh credentials are needed
	Challenge challenge.Request
	Clearance string

	UserAgent string
	// Headers is the fixed header profile sent with every request
	Headers map[string]string
	Timeout time.Duration

	MaxAttempts int
	RetryDelay  time.Duration

	Limiter   ratelimit.Limiter
	Transport http.RoundTripper
	Logger    logger.Logger
	Metrics   *metrics.Metrics
}

// Response is a completed 2xx response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// AuthenticatedClient performs credentialed GETs with refresh-then-retry
type AuthenticatedClient struct {
	http        *resty.Client
	store       auth.CredentialStore
	solver      challenge.Solver
	challenge   challenge.Request
	clearance   string
	maxAttempts int
	retryDelay  time.Duration
	limiter     ratelimit.Limiter
	log         logger.Logger
	metrics     *metrics.Metrics
}

// New creates a client from opts
func New(opts Options) *AuthenticatedClient {
	c := &AuthenticatedClient{
		store:       opts.Store,
		solver:      opts.Solver,
		challenge:   opts.Challenge,
		clearance:   opts.Clearance,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		limiter:     opts.Limiter,
		log:         opts.Logger,
		metrics:     opts.Metrics,
	}
	if c.clearance == "" {
		c.clearance = auth.DefaultClearanceCookie
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.limiter == nil {
		c.limiter = ratelimit.Unlimited{}
	}
	if c.log == nil {
		c.log = logger.Component("client")
	}
	if c.challenge.UserAgent == "" {
		c.challenge.UserAgent = opts.UserAgent
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// cookies come from the credential store only
	c.http = resty.New().
		SetCookieJar(nil).
		SetTimeout(timeout).
		SetHeaders(opts.Headers)
	if opts.UserAgent != "" {
		c.http.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Transport != nil {
		c.http.SetTransport(opts.Transport)
	}
	c.http.OnAfterResponse(c.observe)

	return c
}

// Request performs a GET against url with query parameters and per-call headers
// layered over the fixed profile. Credentials are loaded (and refreshed when
// absent) before every attempt; a 401/403 invalidates them and the request is
// retried until the attempt bound is reached.
func (c *AuthenticatedClient) Request(ctx context.Context, url string, query, headers map[string]string) (*Response, error) {
	var lastRejection int

	resp, err := retry.DoWithResult(func() (*Response, error) {
		return c.attempt(ctx, url, query, headers)
	}, &retry.Config{
		MaxAttempts: c.maxAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: c.retryDelay},
		RetryIf:     isRejection,
		OnFailure: func(attempt int, err error) {
			lastRejection = errs.CodeOf(err)
			c.metrics.AuthRejection()
			c.log.WithError(err).WarnWithFields("credentials rejected, invalidating", map[string]interface{}{
				"attempt": attempt,
				"url":     url,
			})
			if invErr := c.store.Invalidate(); invErr != nil {
				c.log.WithError(invErr).Warn("failed to invalidate credentials")
			}
		},
		Context: ctx,
		Logger:  c.log,
	})

	if errors.Is(err, retry.ErrMaxAttemptsExceeded) {
		return nil, errs.New(errs.KindAuthExhausted, err,
			"credentials rejected on all %d attempts", c.maxAttempts).WithCode(lastRejection)
	}
	return resp, err
}

// attempt is one pass: obtain credentials, send, classify
func (c *AuthenticatedClient) attempt(ctx context.Context, url string, query, headers map[string]string) (*Response, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.New(errs.KindTransport, err, "rate limiter wait aborted")
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetHeaders(headers).
		SetCookies(creds.HTTPCookies()).
		Get(url)
	if err != nil {
		c.metrics.ObserveRequest(0, 0)
		c.log.WithError(err).WarnWithFields("request failed", map[string]interface{}{"url": url})
		return nil, errs.New(errs.KindTransport, err, "GET %s failed", url)
	}

	status := res.StatusCode()
	switch {
	case errs.IsAuthRejection(status):
		return nil, errs.New(errs.KindStatus, nil, "credentials rejected").WithCode(status)
	case !errs.IsSuccess(status):
		return nil, errs.New(errs.KindStatus, nil, "unexpected status from %s", url).WithCode(status)
	}

	return &Response{
		StatusCode: status,
		Header:     res.Header(),
		Body:       res.Body(),
		URL:        res.Request.URL,
	}, nil
}

// credentials returns a usable set, invoking the solver when the store has none
func (c *AuthenticatedClient) credentials(ctx context.Context) (auth.CredentialSet, error) {
	creds := c.store.Load()
	if creds.ValidFor(c.clearance) {
		return creds, nil
	}

	if c.solver != nil {
		c.metrics.CredentialRefresh()
		c.log.Info("no usable credentials, solving challenge")
		creds = c.solver.Solve(ctx, c.challenge)
		if creds.ValidFor(c.clearance) {
			return creds, nil
		}
	}
	return nil, errs.New(errs.KindNoCredentials, nil, "could not obtain credentials")
}

func (c *AuthenticatedClient) observe(_ *resty.Client, res *resty.Response) error {
	c.metrics.ObserveRequest(res.StatusCode(), res.Time())
	logger.LogRequest(c.log, res.Request.Method, res.Request.URL, res.StatusCode(), res.Time().Milliseconds())
	return nil
}

// isRejection reports whether err is a 401/403 response
func isRejection(err error) bool {
	return errs.IsKind(err, errs.KindStatus) && errs.IsAuthRejection(errs.CodeOf(err))
}
