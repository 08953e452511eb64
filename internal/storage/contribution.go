package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pookie-sol/presale-api/internal/models"
)

// ContributionStore persists scanned contributions as one JSON file per
// transaction signature. It is the service's local cache of chain state; the
// hosted contribution ledger lives elsewhere.
type ContributionStore struct {
	dir string
}

// NewContributionStore creates a store rooted at dir.
func NewContributionStore(dir string) *ContributionStore {
	return &ContributionStore{dir: dir}
}

// Save writes a contribution, overwriting any previous record for the same
// signature. Saving is idempotent so rescans are harmless.
func (s *ContributionStore) Save(c *models.Contribution) error {
	if err := validSignature(c.Signature); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create contributions directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal contribution: %w", err)
	}

	filePath := filepath.Join(s.dir, c.Signature+".json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write contribution file: %w", err)
	}

	return nil
}

// Load reads one contribution by signature.
func (s *ContributionStore) Load(signature string) (*models.Contribution, error) {
	if err := validSignature(signature); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, signature+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read contribution file: %w", err)
	}

	var c models.Contribution
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contribution: %w", err)
	}

	return &c, nil
}

// Exists checks whether a signature has already been recorded.
func (s *ContributionStore) Exists(signature string) bool {
	if validSignature(signature) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, signature+".json"))
	return err == nil
}

// List returns all contributions, newest first. A missing directory is an
// empty store, not an error.
func (s *ContributionStore) List() ([]*models.Contribution, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Contribution{}, nil
		}
		return nil, fmt.Errorf("failed to read contributions directory: %w", err)
	}

	var contributions []*models.Contribution
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}

		var c models.Contribution
		if err := json.Unmarshal(data, &c); err != nil {
			continue
		}

		contributions = append(contributions, &c)
	}

	sort.Slice(contributions, func(i, j int) bool {
		return contributions[i].BlockTime > contributions[j].BlockTime
	})

	if contributions == nil {
		contributions = []*models.Contribution{}
	}
	return contributions, nil
}

// Delete removes a contribution file.
func (s *ContributionStore) Delete(signature string) error {
	if err := validSignature(signature); err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.dir, signature+".json"))
}

// validSignature rejects signatures that could escape the store directory.
// Real signatures are base58 and never contain path characters.
func validSignature(signature string) error {
	if signature == "" ||
		strings.Contains(signature, "/") ||
		strings.Contains(signature, "\\") ||
		strings.Contains(signature, "..") {
		return fmt.Errorf("invalid signature format")
	}
	return nil
}
