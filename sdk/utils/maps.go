// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"fmt"
	"sort"
)

// MergeConfig names, per field holding an array of maps, the key used to
// match elements (e.g. "relationships" -> "dest").
type MergeConfig map[string]string

// MergeMaps merges map2 over map1 without touching either.
// Nested maps merge recursively; arrays of maps listed in cfg merge by key,
// keeping the order of map1 and appending new elements of map2.
// Anything else in map2 overwrites.
func MergeMaps(map1, map2 map[string]interface{}, cfg MergeConfig) map[string]interface{} {
	result := make(map[string]interface{}, len(map1)+len(map2))
	for k, v := range map1 {
		result[k] = v
	}

	for k, v2 := range map2 {
		v1, exists := result[k]

		switch {
		case exists && isMap(v1) && isMap(v2):
			result[k] = MergeMaps(v1.(map[string]interface{}), v2.(map[string]interface{}), cfg)

		case exists && isSlice(v1) && isSlice(v2) && cfg != nil:
			arr1 := v1.([]interface{})
			arr2 := v2.([]interface{})
			if mergeKey, ok := cfg[k]; ok && looksLikeArrayOfMaps(arr1) && looksLikeArrayOfMaps(arr2) {
				result[k] = mergeArrayOfMapsByKey(arr1, arr2, mergeKey, cfg)
			} else {
				result[k] = v2
			}

		default:
			result[k] = v2
		}
	}

	return result
}

func mergeArrayOfMapsByKey(arr1, arr2 []interface{}, key string, cfg MergeConfig) []interface{} {
	result := make([]interface{}, 0, len(arr1)+len(arr2))
	position := make(map[string]int)

	for _, item := range arr1 {
		m := item.(map[string]interface{})
		if id, ok := m[key]; ok {
			position[fmt.Sprint(id)] = len(result)
		}
		result = append(result, m)
	}

	for _, item := range arr2 {
		m := item.(map[string]interface{})
		id, ok := m[key]
		if !ok {
			result = append(result, m)
			continue
		}
		if at, found := position[fmt.Sprint(id)]; found {
			result[at] = MergeMaps(result[at].(map[string]interface{}), m, cfg)
			continue
		}
		position[fmt.Sprint(id)] = len(result)
		result = append(result, m)
	}
	return result
}

func looksLikeArrayOfMaps(arr []interface{}) bool {
	for _, item := range arr {
		if _, ok := item.(map[string]interface{}); !ok {
			return false
		}
	}
	return true
}

func isMap(v interface{}) bool {
	_, ok := v.(map[string]interface{})
	return ok
}

func isSlice(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

// StringMap converts a JSON decoded object into string values, fmt.Sprint
// for anything that is not a string. Nil in, nil out.
func StringMap(m map[string]interface{}) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

// AnyMap is the inverse of StringMap, for JSON payloads.
func AnyMap(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
