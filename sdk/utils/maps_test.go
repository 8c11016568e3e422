// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeMapsNested(t *testing.T) {
	base := map[string]interface{}{
		"state": "RUNNING",
		"spec":  map[string]interface{}{"job_type": "train", "tags": []interface{}{"a"}},
	}
	patch := map[string]interface{}{
		"state": "COMPLETED",
		"spec":  map[string]interface{}{"tags": []interface{}{"b"}},
	}
	got := MergeMaps(base, patch, nil)

	assert.Equal(t, "COMPLETED", got["state"])
	spec := got["spec"].(map[string]interface{})
	assert.Equal(t, "train", spec["job_type"])
	assert.Equal(t, []interface{}{"b"}, spec["tags"])
	// inputs untouched
	assert.Equal(t, "RUNNING", base["state"])
}

func TestMergeMapsArrayByKeyKeepsOrder(t *testing.T) {
	base := map[string]interface{}{
		"relationships": []interface{}{
			map[string]interface{}{"dest": "r1", "type": "produced_by"},
			map[string]interface{}{"dest": "r2", "type": "consumes"},
		},
	}
	patch := map[string]interface{}{
		"relationships": []interface{}{
			map[string]interface{}{"dest": "r3", "type": "consumes"},
			map[string]interface{}{"dest": "r1", "type": "produced_by", "note": "x"},
		},
	}
	got := MergeMaps(base, patch, MergeConfig{"relationships": "dest"})
	rels := got["relationships"].([]interface{})

	assert.Len(t, rels, 3)
	assert.Equal(t, "r1", rels[0].(map[string]interface{})["dest"])
	assert.Equal(t, "x", rels[0].(map[string]interface{})["note"])
	assert.Equal(t, "r2", rels[1].(map[string]interface{})["dest"])
	assert.Equal(t, "r3", rels[2].(map[string]interface{})["dest"])
}

func TestStringMapRoundTrip(t *testing.T) {
	in := map[string]interface{}{"lr": 0.1, "name": "x", "epochs": float64(10)}
	out := StringMap(in)
	assert.Equal(t, map[string]string{"lr": "0.1", "name": "x", "epochs": "10"}, out)
	assert.Nil(t, StringMap(nil))
	assert.Equal(t, map[string]interface{}{"a": "b"}, AnyMap(map[string]string{"a": "b"}))
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
}
