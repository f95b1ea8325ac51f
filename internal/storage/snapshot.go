package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"

	"bundleKeeper/internal/model"
)

// SnapshotStore keeps the last fetched state of each pool on disk.
type SnapshotStore struct {
	dir string
}

func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

func (s *SnapshotStore) path(address solana.PublicKey) string {
	return filepath.Join(s.dir, "pool-"+address.String()+".json")
}

// SavePool writes pool atomically.
func (s *SnapshotStore) SavePool(pool model.Pool) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(pool, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pool snapshot: %w", err)
	}

	path := s.path(pool.Address)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write pool snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename pool snapshot: %w", err)
	}
	return nil
}

// LoadPool returns the stored snapshot of address, if any.
func (s *SnapshotStore) LoadPool(address solana.PublicKey) (model.Pool, bool, error) {
	data, err := os.ReadFile(s.path(address))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Pool{}, false, nil
		}
		return model.Pool{}, false, fmt.Errorf("read pool snapshot: %w", err)
	}
	var pool model.Pool
	if err := json.Unmarshal(data, &pool); err != nil {
		return model.Pool{}, false, fmt.Errorf("parse pool snapshot: %w", err)
	}
	return pool, true, nil
}
