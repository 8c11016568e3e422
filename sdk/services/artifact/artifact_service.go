// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package artifact materializes artifacts between a local directory, an
// object storage bucket and the tracking service.
//
// Reference artifacts live in the bucket under "{type}/{name}/{alias}" and
// the tracking service only keeps their URI. Embedded artifacts are packed
// into the tracking service itself.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/bucket"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/logging"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/services/tracking"
)

// StoreOpener opens the bucket store rooted at rawURL.
type StoreOpener func(ctx context.Context, rawURL string) (bucket.Store, error)

var (
	errBucketNotConfigured = errors.New("bucket is not configured")
	errClosed              = errors.New("artifact service is closed")
)

type ArtifactService struct {
	conf        config.Config
	log         logging.Logger
	sleep       Sleeper
	backoffUnit time.Duration
	verbose     bool
	runDefaults RunRequest

	openStore  StoreOpener
	newTracker func(ctx context.Context) (tracking.Client, error)

	mu      sync.Mutex
	store   bucket.Store
	tracker tracking.Client
	run     *tracking.Run
	closed  bool
}

type Option func(*ArtifactService)

func WithLogger(l logging.Logger) Option {
	return func(s *ArtifactService) { s.log = logging.OrNop(l) }
}

func WithSleeper(fn Sleeper) Option {
	return func(s *ArtifactService) { s.sleep = fn }
}

func WithBackoffUnit(d time.Duration) Option {
	return func(s *ArtifactService) { s.backoffUnit = d }
}

// WithVerbose logs every transferred file instead of a progress line.
func WithVerbose(v bool) Option {
	return func(s *ArtifactService) { s.verbose = v }
}

// WithRunDefaults sets the run started implicitly by Upload, Download or Link.
func WithRunDefaults(req RunRequest) Option {
	return func(s *ArtifactService) { s.runDefaults = req }
}

// WithStore makes every bucket access go to st.
func WithStore(st bucket.Store) Option {
	return func(s *ArtifactService) {
		s.openStore = func(context.Context, string) (bucket.Store, error) { return st, nil }
	}
}

func WithStoreOpener(fn StoreOpener) Option {
	return func(s *ArtifactService) { s.openStore = fn }
}

func WithTracking(c tracking.Client) Option {
	return func(s *ArtifactService) {
		s.newTracker = func(context.Context) (tracking.Client, error) { return c, nil }
	}
}

func NewArtifactService(_ context.Context, conf config.Config, opts ...Option) (*ArtifactService, error) {
	if conf.Transfer.Retries < 0 {
		return nil, invalidf("retries must be >= 0, got %d", conf.Transfer.Retries)
	}
	s := &ArtifactService{
		conf:        conf,
		log:         logging.Nop(),
		sleep:       sleepContext,
		backoffUnit: conf.Transfer.BackoffUnit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backoffUnit <= 0 {
		s.backoffUnit = config.DefaultBackoffUnit
	}
	if s.openStore == nil {
		s.openStore = func(ctx context.Context, rawURL string) (bucket.Store, error) {
			return bucket.Open(ctx, rawURL, s.conf.S3,
				bucket.WithLogger(s.log),
				bucket.WithVerbose(s.verbose))
		}
	}
	if s.newTracker == nil {
		s.newTracker = func(ctx context.Context) (tracking.Client, error) {
			return tracking.NewTrackingService(ctx, s.conf, tracking.WithLogger(s.log))
		}
	}
	return s, nil
}

// bucketStore returns the cached session on the configured bucket,
// opening it on first use.
func (s *ArtifactService) bucketStore(ctx context.Context) (bucket.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	if s.store != nil {
		return s.store, nil
	}
	url := s.conf.BucketURL()
	if url == "" {
		return nil, errBucketNotConfigured
	}
	st, err := s.openStore(ctx, url)
	if err != nil {
		return nil, err
	}
	s.store = st
	return st, nil
}

// dropStore releases the cached bucket session; the next access reopens it.
func (s *ArtifactService) dropStore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
}

// storeFor resolves an absolute URI to a store and a path inside it. URIs
// outside the configured bucket get a dedicated store, released by the
// returned func.
func (s *ArtifactService) storeFor(ctx context.Context, uri string) (bucket.Store, string, func(), error) {
	st, err := s.bucketStore(ctx)
	switch {
	case err == nil:
		if rel, ok := st.Rel(uri); ok {
			return st, rel, func() {}, nil
		}
	case !errors.Is(err, errBucketNotConfigured):
		return nil, "", nil, err
	}

	foreign, err := s.openStore(ctx, uri)
	if err != nil {
		return nil, "", nil, err
	}
	return foreign, "", func() { _ = foreign.Close() }, nil
}

func (s *ArtifactService) trackerLocked(ctx context.Context) (tracking.Client, error) {
	if s.tracker != nil {
		return s.tracker, nil
	}
	tr, err := s.newTracker(ctx)
	if err != nil {
		return nil, err
	}
	s.tracker = tr
	return tr, nil
}

// StartRun opens the run every following operation is attached to.
// Only one run per service.
func (s *ArtifactService) StartRun(ctx context.Context, req RunRequest) (*tracking.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	return s.startRunLocked(ctx, req)
}

func (s *ArtifactService) startRunLocked(ctx context.Context, req RunRequest) (*tracking.Run, error) {
	if s.run != nil {
		return nil, fmt.Errorf("%w: %s", ErrRunAlreadyActive, s.run.Name)
	}
	tr, err := s.trackerLocked(ctx)
	if err != nil {
		return nil, err
	}
	tags := append(jobTags(s.conf.Job), req.Tags...)
	run, err := tr.StartRun(ctx, tracking.RunOptions{
		Name:    req.Name,
		JobType: req.JobType,
		Entity:  s.conf.Core.Entity,
		Config:  req.Config,
		Tags:    tags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	s.run = run
	s.log.Info("run started", "run", run.Name, "job_type", run.JobType)
	return run, nil
}

// activeRun returns the current run, starting one with the defaults when
// there is none.
func (s *ArtifactService) activeRun(ctx context.Context) (*tracking.Run, tracking.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, errClosed
	}
	tr, err := s.trackerLocked(ctx)
	if err != nil {
		return nil, nil, err
	}
	if s.run == nil {
		s.log.Info("no active run found, starting one")
		if _, err := s.startRunLocked(ctx, s.runDefaults); err != nil {
			return nil, nil, err
		}
	}
	return s.run, tr, nil
}

// Run returns the active run, nil when none was started.
func (s *ArtifactService) Run() *tracking.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Close completes the active run and releases every session. Calling it
// again is a no-op.
func (s *ArtifactService) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.run != nil && s.tracker != nil && s.run.State != tracking.StateCompleted {
		if err := s.tracker.FinishRun(ctx, s.run, tracking.StateCompleted); err != nil {
			errs = append(errs, fmt.Errorf("failed to finish run: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, err)
		}
		s.store = nil
	}
	if s.tracker != nil {
		s.tracker.Close()
		s.tracker = nil
	}
	return errors.Join(errs...)
}

// jobTags describes the platform job the process runs in.
func jobTags(job config.JobConfig) []string {
	if job.ID == "" {
		return nil
	}
	tags := []string{
		"job_id:" + job.ID,
		"job_name:" + job.Name,
		"owner:" + job.Owner,
	}
	return append(tags, job.Tags...)
}
