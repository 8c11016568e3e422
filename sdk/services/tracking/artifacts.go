// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/utils"
)

const artifactsResource = "artifacts"

// ErrArtifactNotFound is returned when no artifact matches a lookup.
var ErrArtifactNotFound = errors.New("artifact not found")

// LogArtifact registers art as an output of run under the given aliases.
// Aliases move: a previous version holding one of them loses it.
// Embedded artifacts get their payload uploaded right after.
func (s *TrackingService) LogArtifact(ctx context.Context, run *Run, art *Artifact, aliases []string) (*Artifact, error) {
	if art == nil || art.Name == "" || art.Type == "" {
		return nil, errors.New("artifact name and type are required")
	}
	id := utils.UUIDv4NoDash()

	metadata := map[string]interface{}{
		"aliases": toAnySlice(aliases),
	}
	if run != nil && run.Key != "" {
		metadata["relationships"] = []interface{}{
			map[string]interface{}{"type": RelProducedBy, "dest": run.Key},
		}
	}
	manifest := make(map[string]interface{}, len(art.Manifest))
	for k, e := range art.Manifest {
		manifest[k] = e
	}
	entity := map[string]interface{}{
		"id":       id,
		"project":  s.project,
		"kind":     art.Type,
		"name":     art.Name,
		"metadata": metadata,
		"spec": map[string]interface{}{
			"manifest": manifest,
			"embedded": art.Embedded,
			"extra":    utils.AnyMap(art.Metadata),
		},
		"status": map[string]interface{}{
			"state": "READY",
		},
	}
	payload, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact: %w", err)
	}

	url := s.http.BuildURL(s.project, artifactsResource, "", nil)
	b, status, err := s.http.Do(ctx, "POST", url, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact (status %d): %w", status, err)
	}
	var created map[string]interface{}
	if err := json.Unmarshal(b, &created); err != nil {
		return nil, fmt.Errorf("failed to parse artifact: %w", err)
	}

	logged, err := artifactFromMap(created)
	if err != nil {
		return nil, err
	}
	if logged.Key == "" {
		logged.Key = artifactKey(logged.Type, s.project, logged.Name, logged.ID)
	}

	if art.Embedded {
		if err := s.uploadPayload(ctx, logged.ID, art.localDir); err != nil {
			return nil, err
		}
	}
	s.log.Debug("artifact logged", "key", logged.Key, "aliases", aliases)
	return logged, nil
}

// UseArtifact looks up "name:alias" of the given type and records it as an
// input of run.
func (s *TrackingService) UseArtifact(ctx context.Context, run *Run, ref, kind string) (*Artifact, error) {
	i := strings.LastIndex(ref, ":")
	if i <= 0 || i == len(ref)-1 {
		return nil, fmt.Errorf("invalid artifact reference %q, expected name:alias", ref)
	}
	name, alias := ref[:i], ref[i+1:]

	params := map[string]string{
		"name":  name,
		"kind":  kind,
		"alias": alias,
	}
	url := s.http.BuildURL(s.project, artifactsResource, "", params)
	b, status, err := s.http.Do(ctx, "GET", url, nil)
	if err != nil {
		var se *config.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s of type %s", ErrArtifactNotFound, ref, kind)
		}
		return nil, fmt.Errorf("artifact lookup failed (status %d): %w", status, err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	first, err := utils.GetFirstIfList(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s of type %s", ErrArtifactNotFound, ref, kind)
	}
	art, err := artifactFromMap(first)
	if err != nil {
		return nil, err
	}
	if art.Key == "" {
		art.Key = artifactKey(art.Type, s.project, art.Name, art.ID)
	}

	if run != nil && run.ID != "" {
		if err := s.addRelationship(ctx, run, RelConsumes, art.Key); err != nil {
			return nil, fmt.Errorf("failed to record artifact usage: %w", err)
		}
	}
	return art, nil
}

func artifactKey(kind, project, name, id string) string {
	return fmt.Sprintf("%s://%s/%s:%s", kind, project, name, id)
}

func artifactFromMap(m map[string]interface{}) (*Artifact, error) {
	art := &Artifact{
		ID:       utils.GetStringValue(m, "id"),
		Key:      utils.GetStringValue(m, "key"),
		Project:  utils.GetStringValue(m, "project"),
		Name:     utils.GetStringValue(m, "name"),
		Type:     utils.GetStringValue(m, "kind"),
		Manifest: map[string]ManifestEntry{},
	}
	if art.ID == "" {
		return nil, errors.New("core returned an artifact without id")
	}

	if aliases, ok := utils.GetMap(m, "metadata")["aliases"].([]interface{}); ok {
		for _, a := range aliases {
			if s, ok := a.(string); ok {
				art.Aliases = append(art.Aliases, s)
			}
		}
	}

	spec := utils.GetMap(m, "spec")
	art.Metadata = utils.StringMap(utils.GetMap(spec, "extra"))
	if embedded, ok := spec["embedded"].(bool); ok {
		art.Embedded = embedded
	}
	if manifest := utils.GetMap(spec, "manifest"); manifest != nil {
		// round trip through JSON to decode entries
		raw, err := json.Marshal(manifest)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &art.Manifest); err != nil {
			return nil, fmt.Errorf("invalid manifest: %w", err)
		}
	}
	return art, nil
}

func toAnySlice(in []string) []interface{} {
	out := make([]interface{}, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
