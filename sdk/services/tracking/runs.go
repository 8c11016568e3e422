// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

const runsResource = "runs"

// StartRun creates a run in state RUNNING.
func (s *TrackingService) StartRun(ctx context.Context, opts RunOptions) (*Run, error) {
	id := utils.UUIDv4NoDash()
	name := opts.Name
	if name == "" {
		name = id
	}

	tags := make([]interface{}, 0, len(opts.Tags))
	for _, t := range opts.Tags {
		tags = append(tags, t)
	}
	spec := map[string]interface{}{
		"job_type": opts.JobType,
		"tags":     tags,
		"config":   utils.AnyMap(opts.Config),
	}
	if opts.Entity != "" {
		spec["entity"] = opts.Entity
	} else if s.entity != "" {
		spec["entity"] = s.entity
	}

	body := map[string]interface{}{
		"id":      id,
		"kind":    "run",
		"project": s.project,
		"name":    name,
		"spec":    spec,
		"status": map[string]interface{}{
			"state": StateRunning,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}

	url := s.http.BuildURL(s.project, runsResource, "", nil)
	b, status, err := s.http.Do(ctx, "POST", url, data)
	if err != nil {
		return nil, fmt.Errorf("run creation failed (status %d): %w", status, err)
	}

	var created map[string]interface{}
	if err := json.Unmarshal(b, &created); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	run := runFromMap(created)
	if run.ID == "" {
		return nil, errors.New("core returned a run without id")
	}
	if run.Key == "" {
		run.Key = runKey(s.project, run.ID)
	}
	s.log.Debug("run started", "id", run.ID, "name", run.Name)
	return run, nil
}

// FinishRun moves the run to the given final state.
func (s *TrackingService) FinishRun(ctx context.Context, run *Run, state string) error {
	if run == nil || run.ID == "" {
		return errors.New("run not specified")
	}
	patch := map[string]interface{}{
		"status": map[string]interface{}{"state": state},
	}
	if err := s.updateRun(ctx, run.ID, patch); err != nil {
		return err
	}
	run.State = state
	s.log.Debug("run finished", "id", run.ID, "state", state)
	return nil
}

// addRelationship appends a relationship to the run metadata, merging by
// destination so repeated calls do not duplicate it.
func (s *TrackingService) addRelationship(ctx context.Context, run *Run, relType, dest string) error {
	patch := map[string]interface{}{
		"metadata": map[string]interface{}{
			"relationships": []interface{}{
				map[string]interface{}{"type": relType, "dest": dest},
			},
		},
	}
	return s.updateRun(ctx, run.ID, patch)
}

func (s *TrackingService) updateRun(ctx context.Context, id string, patch map[string]interface{}) error {
	url := s.http.BuildURL(s.project, runsResource, id, nil)
	b, status, err := s.http.Do(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("get run failed (status %d): %w", status, err)
	}
	var current map[string]interface{}
	if err := json.Unmarshal(b, &current); err != nil {
		return fmt.Errorf("failed to parse run: %w", err)
	}

	merged := utils.MergeMaps(current, patch, utils.MergeConfig{"relationships": "dest"})
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	if _, status, err := s.http.Do(ctx, "PUT", url, data); err != nil {
		return fmt.Errorf("run update failed (status %d): %w", status, err)
	}
	return nil
}

func runKey(project, id string) string {
	return fmt.Sprintf("run://%s/%s", project, id)
}

func runFromMap(m map[string]interface{}) *Run {
	spec := utils.GetMap(m, "spec")
	run := &Run{
		ID:      utils.GetStringValue(m, "id"),
		Key:     utils.GetStringValue(m, "key"),
		Project: utils.GetStringValue(m, "project"),
		Name:    utils.GetStringValue(m, "name"),
		JobType: utils.GetStringValue(spec, "job_type"),
		Config:  utils.StringMap(utils.GetMap(spec, "config")),
		State:   utils.GetStringValue(utils.GetMap(m, "status"), "state"),
	}
	if tags, ok := spec["tags"].([]interface{}); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				run.Tags = append(run.Tags, s)
			}
		}
	}
	return run
}
