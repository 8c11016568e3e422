// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

func getIniPath() string {
	iniPath, err := os.UserHomeDir()
	if err != nil {
		iniPath = "."
	}
	return iniPath + string(os.PathSeparator) + IniName
}

// ParsedPath is a bucket URI split in its parts: s3://Host/Path, file://Host/Path.
type ParsedPath struct {
	Scheme   string
	Host     string
	Path     string
	Filename string
}

func ParsePath(p string) (*ParsedPath, error) {
	u, err := url.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", p, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("invalid path %q: missing scheme", p)
	}
	pp := &ParsedPath{
		Scheme: strings.ToLower(u.Scheme),
		Host:   u.Host,
		Path:   u.Path,
	}
	if trimmed := strings.TrimSuffix(u.Path, "/"); trimmed != "" {
		pp.Filename = trimmed[strings.LastIndex(trimmed, "/")+1:]
	}
	return pp, nil
}

// ParseMeta turns KEY=VALUE items into a map. Only the first '=' splits,
// so values may contain '='.
func ParseMeta(items []string) (map[string]string, error) {
	result := make(map[string]string, len(items))
	for _, item := range items {
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("metadata should be KEY=VALUE pairs, got %q", item)
		}
		if k == "" {
			return nil, fmt.Errorf("metadata key is empty in %q", item)
		}
		result[k] = v
	}
	return result, nil
}

func TranslateFormat(format string) string {
	switch strings.ToLower(format) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	default:
		return "short"
	}
}

func GetFirstIfList(m map[string]interface{}) (map[string]interface{}, error) {
	if content, ok := m["content"]; ok {
		contentSlice, ok := content.([]interface{})
		if !ok {
			return nil, errors.New("invalid content")
		}
		if len(contentSlice) >= 1 {
			first, ok := contentSlice[0].(map[string]interface{})
			if !ok {
				return nil, errors.New("invalid content element")
			}
			return first, nil
		}
		return nil, errors.New("Resource not found")
	}
	return m, nil
}

func GetStringValue(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetMap returns m[key] as a map, nil when missing or of another type.
func GetMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}
