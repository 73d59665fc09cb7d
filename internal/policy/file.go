package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	fileVersion    = 1
	policyFileMode = 0644
	policyDirMode  = 0755
)

type fileData struct {
	Version  int      `json:"version"`
	Policies []Policy `json:"policies"`
}

// LoadFile reads and validates a policy file. A missing file yields an empty
// set, not an error, so a fresh workspace starts with the configured defaults.
func LoadFile(path string) ([]Policy, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if data.Version != fileVersion {
		return nil, fmt.Errorf("unsupported policy file version %d", data.Version)
	}

	for _, p := range data.Policies {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy file %s: %w", path, err)
		}
	}
	return data.Policies, nil
}

// SaveFile writes policies to disk after validating them. The round-trip is
// lossless: statement ids, effects, operations, resource patterns, and
// conditions all survive.
func SaveFile(path string, policies []Policy) error {
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), policyDirMode); err != nil {
		return fmt.Errorf("create policy dir: %w", err)
	}

	data, err := json.MarshalIndent(fileData{Version: fileVersion, Policies: policies}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal policies: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), policyFileMode)
}
