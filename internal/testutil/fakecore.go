// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/scc-digitalhub/bucketref-cli-sdk/sdk/config"
)

// FakeCore is an in-memory tracking core serving the runs and artifacts
// endpoints the SDK uses.
type FakeCore struct {
	*httptest.Server

	mu        sync.Mutex
	runs      map[string]map[string]any
	artifacts []map[string]any
	payloads  map[string][]byte
}

func NewFakeCore(t testing.TB) *FakeCore {
	t.Helper()
	f := &FakeCore{
		runs:     map[string]map[string]any{},
		payloads: map[string][]byte{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/{version}/-/{project}/runs", f.createRun)
	mux.HandleFunc("GET /api/{version}/-/{project}/runs/{id}", f.getRun)
	mux.HandleFunc("PUT /api/{version}/-/{project}/runs/{id}", f.putRun)
	mux.HandleFunc("POST /api/{version}/-/{project}/artifacts", f.createArtifact)
	mux.HandleFunc("GET /api/{version}/-/{project}/artifacts", f.listArtifacts)
	mux.HandleFunc("GET /api/{version}/-/{project}/artifacts/{id}", f.getArtifact)
	mux.HandleFunc("PUT /api/{version}/-/{project}/artifacts/{id}/payload", f.putPayload)
	mux.HandleFunc("GET /api/{version}/-/{project}/artifacts/{id}/payload", f.getPayload)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// Config returns an SDK config pointing at the fake core.
func (f *FakeCore) Config(project string) config.Config {
	return config.Config{
		Core: config.CoreConfig{
			BaseURL:    f.URL,
			APIVersion: config.DefaultAPIVersion,
			Project:    project,
		},
		Transfer: config.TransferConfig{
			Retries:     config.DefaultRetries,
			BackoffUnit: config.DefaultBackoffUnit,
		},
	}
}

// Run returns a copy of the stored run, nil when unknown.
func (f *FakeCore) Run(id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return nil
	}
	return clone(r)
}

// Runs returns copies of every stored run.
func (f *FakeCore) Runs() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, clone(r))
	}
	return out
}

// Artifacts returns copies of every artifact version, oldest first.
func (f *FakeCore) Artifacts() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.artifacts))
	for _, a := range f.artifacts {
		out = append(out, clone(a))
	}
	return out
}

// Seed stores an artifact as is, e.g. a legacy record.
func (f *FakeCore) Seed(artifact map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts = append(f.artifacts, clone(artifact))
}

func (f *FakeCore) createRun(w http.ResponseWriter, r *http.Request) {
	run, ok := decode(w, r)
	if !ok {
		return
	}
	id, _ := run["id"].(string)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	if _, ok := run["key"]; !ok {
		run["key"] = fmt.Sprintf("run://%s/%s", r.PathValue("project"), id)
	}
	f.mu.Lock()
	f.runs[id] = run
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, run)
}

func (f *FakeCore) getRun(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	run, ok := f.runs[r.PathValue("id")]
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (f *FakeCore) putRun(w http.ResponseWriter, r *http.Request) {
	run, ok := decode(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	f.mu.Lock()
	_, exists := f.runs[id]
	if exists {
		f.runs[id] = run
	}
	f.mu.Unlock()
	if !exists {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (f *FakeCore) createArtifact(w http.ResponseWriter, r *http.Request) {
	art, ok := decode(w, r)
	if !ok {
		return
	}
	id, _ := art["id"].(string)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	name, _ := art["name"].(string)
	kind, _ := art["kind"].(string)
	if _, ok := art["key"]; !ok {
		art["key"] = fmt.Sprintf("%s://%s/%s:%s", kind, r.PathValue("project"), name, id)
	}

	f.mu.Lock()
	// an alias points at one version only
	for _, alias := range aliasesOf(art) {
		for _, other := range f.artifacts {
			if other["name"] == name && other["kind"] == kind {
				removeAlias(other, alias)
			}
		}
	}
	f.artifacts = append(f.artifacts, art)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, art)
}

func (f *FakeCore) listArtifacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name, kind, alias := q.Get("name"), q.Get("kind"), q.Get("alias")

	f.mu.Lock()
	content := []any{}
	for i := len(f.artifacts) - 1; i >= 0; i-- {
		a := f.artifacts[i]
		if name != "" && a["name"] != name {
			continue
		}
		if kind != "" && a["kind"] != kind {
			continue
		}
		if alias != "" && !slices.Contains(aliasesOf(a), alias) {
			continue
		}
		content = append(content, a)
	}
	page := map[string]any{
		"content":    content,
		"totalPages": 1,
		"pageable":   map[string]any{"pageNumber": 0},
	}
	writeJSON(w, http.StatusOK, page)
	f.mu.Unlock()
}

func (f *FakeCore) getArtifact(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.artifacts {
		if a["id"] == r.PathValue("id") {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}
	writeError(w, http.StatusNotFound, "artifact not found")
}

func (f *FakeCore) putPayload(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.mu.Lock()
	f.payloads[r.PathValue("id")] = b
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeCore) getPayload(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	b, ok := f.payloads[r.PathValue("id")]
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "payload not found")
		return
	}
	w.Header().Set("Content-Type", "application/zstd")
	_, _ = w.Write(b)
}

func aliasesOf(a map[string]any) []string {
	md, _ := a["metadata"].(map[string]any)
	raw, _ := md["aliases"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func removeAlias(a map[string]any, alias string) {
	md, _ := a["metadata"].(map[string]any)
	raw, _ := md["aliases"].([]any)
	kept := raw[:0:0]
	for _, v := range raw {
		if v != alias {
			kept = append(kept, v)
		}
	}
	if md != nil {
		md["aliases"] = kept
	}
}

func decode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var m map[string]any
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return m, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"message": msg})
}

func clone(m map[string]any) map[string]any {
	b, _ := json.Marshal(m)
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	return out
}
