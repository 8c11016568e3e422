// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

// Package tracking talks to the experiment tracking core: runs, artifacts,
// aliases and embedded payloads.
package tracking

import (
	"context"
	"errors"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/logging"
)

// Client is what the artifact materializer needs from a tracking service.
type Client interface {
	StartRun(ctx context.Context, opts RunOptions) (*Run, error)
	FinishRun(ctx context.Context, run *Run, state string) error
	LogArtifact(ctx context.Context, run *Run, art *Artifact, aliases []string) (*Artifact, error)
	UseArtifact(ctx context.Context, run *Run, ref, kind string) (*Artifact, error)
	Download(ctx context.Context, art *Artifact, dest string) (string, error)
	Close()
}

type TrackingService struct {
	http    config.CoreHTTP
	project string
	entity  string
	log     logging.Logger
}

var _ Client = (*TrackingService)(nil)

type Option func(*TrackingService)

func WithLogger(l logging.Logger) Option {
	return func(s *TrackingService) { s.log = logging.OrNop(l) }
}

func NewTrackingService(_ context.Context, conf config.Config, opts ...Option) (*TrackingService, error) {
	if conf.Core.BaseURL == "" {
		return nil, errors.New("invalid core config: missing endpoint")
	}
	if conf.Core.Project == "" {
		return nil, errors.New("invalid core config: missing project")
	}
	s := &TrackingService{
		http:    config.NewHTTPCore(nil, conf.Core),
		project: conf.Core.Project,
		entity:  conf.Core.Entity,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TrackingService) Close() {
	s.http.Close()
}
