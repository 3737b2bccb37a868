// Package store persists a node's ledger to disk so it survives process
// restarts, and reloads it at startup.
package store

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ledgernode/ledgernode/src/ledger"
)

// snapshot is the on-disk representation of a node's ledger.
type snapshot struct {
	Chain    []*ledger.Block `json:"chain"`
	Balances map[int]int     `json:"balances"`
}

// Store saves and loads a single node's ledger snapshot as JSON on disk.
type Store struct {
	path string
}

// New returns a Store that persists to a file named state_node_<nodeID>.json
// inside dataDir.
func New(dataDir string, nodeID int) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}
	return &Store{
		path: filepath.Join(dataDir, fmt.Sprintf("state_node_%d.json", nodeID)),
	}, nil
}

// Save atomically writes l's chain and balances to disk: the new content is
// written to a temp file in the same directory, synced, then renamed over
// the target, so a reader never observes a partial snapshot and a crash
// mid-write never corrupts the existing one.
func (s *Store) Save(l *ledger.Ledger) error {
	data := snapshot{
		Chain:    l.Chain(),
		Balances: l.Balances(),
	}

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling snapshot")
	}

	dir := filepath.Dir(s.path)
	tmp, err := ioutil.TempFile(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "renaming temp file into place")
	}
	return nil
}

// Load reads a previously-saved snapshot and replays it into l. It is a
// no-op, returning false, if no snapshot file exists yet.
func (s *Store) Load(l *ledger.Ledger) (bool, error) {
	buf, err := ioutil.ReadFile(s.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "reading snapshot")
	}

	var data snapshot
	if err := json.Unmarshal(buf, &data); err != nil {
		return false, errors.Wrap(err, "unmarshaling snapshot")
	}

	l.Replace(data.Chain)
	return true, nil
}
