// Package ledger keeps an append-only record of the barcodes reported during
// a count run, with a Merkle digest over the records.
package ledger

import (
	"fmt"
	"sync"

	"github.com/cbergoon/merkletree"

	"barcodecount/pkg/log"
)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries []*Entry
	tracks  map[string]map[int]struct{} // payload key -> track ids
}

func NewLedger() *Ledger {
	return &Ledger{
		tracks: make(map[string]map[int]struct{}),
	}
}

// Append adds entries in order. Entries must not be modified afterwards.
func (l *Ledger) Append(entries ...*Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		l.entries = append(l.entries, e)
		key := e.Key()
		ids, ok := l.tracks[key]
		if !ok {
			ids = make(map[int]struct{})
			l.tracks[key] = ids
		}
		ids[e.TrackID] = struct{}{}
	}
}

// Entries returns a copy of the recorded entries.
func (l *Ledger) Entries() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Entry(nil), l.entries...)
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Counts returns, per payload key, the number of distinct tracks that
// reported it. Two physical items carrying the same payload count twice.
func (l *Ledger) Counts() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := make(map[string]int, len(l.tracks))
	for key, ids := range l.tracks {
		counts[key] = len(ids)
	}
	return counts
}

// Total returns the sum of Counts.
func (l *Ledger) Total() int {
	total := 0
	for _, n := range l.Counts() {
		total += n
	}
	return total
}

// Root returns the Merkle root over all entries, or nil for an empty ledger.
func (l *Ledger) Root() ([]byte, error) {
	tree, err := l.tree()
	if err != nil || tree == nil {
		return nil, err
	}
	return tree.MerkleRoot(), nil
}

// Verify rebuilds the tree and checks its internal consistency.
func (l *Ledger) Verify() error {
	tree, err := l.tree()
	if err != nil {
		return err
	}
	if tree == nil {
		return nil
	}
	ok, err := tree.VerifyTree()
	if err != nil {
		return fmt.Errorf("failed to verify ledger tree: %w", err)
	}
	if !ok {
		return fmt.Errorf("ledger tree is inconsistent")
	}
	return nil
}

// Contains reports whether e is recorded in the ledger.
func (l *Ledger) Contains(e *Entry) (bool, error) {
	tree, err := l.tree()
	if err != nil || tree == nil {
		return false, err
	}
	return tree.VerifyContent(e)
}

func (l *Ledger) tree() (*merkletree.MerkleTree, error) {
	entries := l.Entries()
	if len(entries) == 0 {
		return nil, nil
	}
	contents := make([]merkletree.Content, len(entries))
	for i, e := range entries {
		contents[i] = e
	}
	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger tree: %w", err)
	}
	log.Trace("Built ledger tree over %d entries", len(entries))
	return tree, nil
}
