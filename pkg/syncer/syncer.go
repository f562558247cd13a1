package syncer

import (
	"context"
	"time"

	"competesync/pkg/config"
	"competesync/pkg/logger"
	"competesync/pkg/metrics"
	"competesync/pkg/paginator"
	"competesync/pkg/simplycompete"
	"competesync/pkg/storage"
)

// Fetcher fetches every page of one endpoint
type Fetcher interface {
	FetchAll(ctx context.Context, resourceID, filterID string, maxPages int) paginator.FetchResult
}

// Store is where synced items and run records go
type Store interface {
	storage.Sink
	RecordRun(ctx context.Context, run storage.Run) (storage.Run, error)
}

// Result is the outcome of one sync
type Result struct {
	paginator.FetchResult
	Collection string
	Resource   string
	Filter     string
	// Stored is the number of items written to the store
	Stored int
	// StoreErr is set when the items could not be persisted
	StoreErr error
	RunID    string
	Duration time.Duration
}

// Syncer orchestrates fetch, normalize and store
type Syncer struct {
	competitions Fetcher
	participants Fetcher
	store        Store
	maxPages     int
	timeout      time.Duration
	logger       logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

// New creates a Syncer that fetches through requester using the endpoints in cfg
func New(cfg *config.Config, requester paginator.Requester, store Store, log logger.Logger, m *metrics.Metrics) *Syncer {
	if log == nil {
		log = logger.Component("syncer")
	}
	return NewWithFetchers(
		paginator.New(requester, simplycompete.Competitions(cfg), log, m),
		paginator.New(requester, simplycompete.Participants(cfg), log, m),
		store,
		cfg.Fetch.MaxPages,
		cfg.Fetch.Timeout,
		log,
		m,
	)
}

// NewWithFetchers creates a Syncer from explicit fetchers
func NewWithFetchers(competitions, participants Fetcher, store Store, maxPages int, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *Syncer {
	if log == nil {
		log = logger.Component("syncer")
	}
	return &Syncer{
		competitions: competitions,
		participants: participants,
		store:        store,
		maxPages:     maxPages,
		timeout:      timeout,
		logger:       log,
		metrics:      m,
		now:          time.Now,
	}
}

// SyncCompetitions fetches the event list and stores the normalized events
func (s *Syncer) SyncCompetitions(ctx context.Context) Result {
	return s.run(ctx, s.competitions, simplycompete.CompetitionsCollection, simplycompete.CompetitionsCollection, "", "", simplycompete.NormalizeCompetitions)
}

// SyncParticipants fetches the participants of eventID, optionally limited to
// one role node, and stores them as received
func (s *Syncer) SyncParticipants(ctx context.Context, eventID, nodeID string) Result {
	return s.run(ctx, s.participants, simplycompete.ParticipantsCollection, simplycompete.ParticipantsKey(eventID), eventID, nodeID, nil)
}

// run syncs one resource; items land in key, runs and metrics are labelled with collection
func (s *Syncer) run(ctx context.Context, fetcher Fetcher, collection, key, resource, filter string, normalize func([]paginator.RawItem) []paginator.RawItem) Result {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := s.now()
	s.logger.InfoWithFields("starting sync", map[string]interface{}{
		"collection": collection,
		"resource":   resource,
		"filter":     filter,
	})

	fetched := fetcher.FetchAll(ctx, resource, filter, s.maxPages)
	if normalize != nil {
		fetched.Items = normalize(fetched.Items)
		fetched.Count = len(fetched.Items)
	}

	result := Result{
		FetchResult: fetched,
		Collection:  collection,
		Resource:    resource,
		Filter:      filter,
	}

	if len(fetched.Items) > 0 {
		// a timed-out fetch still gets its partial items stored
		storeCtx := context.WithoutCancel(ctx)
		stored, err := s.store.Upsert(storeCtx, key, fetched.Items)
		if err != nil {
			result.StoreErr = err
			s.logger.WithError(err).ErrorWithFields("failed to store items", map[string]interface{}{
				"collection": collection,
				"count":      len(fetched.Items),
			})
		} else {
			result.Stored = stored
			s.metrics.ItemsStored(collection, stored)
		}
	}

	finished := s.now()
	result.Duration = finished.Sub(started)

	run := storage.Run{
		Collection: collection,
		Resource:   resource,
		Filter:     filter,
		Reason:     string(fetched.Reason),
		Count:      fetched.Count,
		Pages:      fetched.Pages,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if fetched.Err != nil {
		run.Error = fetched.Err.Error()
	}
	recorded, err := s.store.RecordRun(context.WithoutCancel(ctx), run)
	if err != nil {
		s.logger.WithError(err).Warn("failed to record sync run")
	} else {
		result.RunID = recorded.ID
	}

	logger.LogSyncResult(s.logger, collection, fetched.Count, fetched.Pages, string(fetched.Reason), fetched.Err)
	return result
}
