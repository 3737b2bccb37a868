// Package peers holds the static node_id -> address map every node loads
// once at startup; membership never changes at runtime.
package peers

import (
	"encoding/json"
	"io/ioutil"
	"sort"

	"github.com/pkg/errors"
)

// Peer is one entry in the static peer configuration.
type Peer struct {
	NodeID int    `json:"node_id"`
	Addr   string `json:"addr"`
}

// PeerSet is the immutable set of all nodes in the cluster, including self.
type PeerSet struct {
	selfID int
	byID   map[int]string
	ids    []int
}

// Load reads a JSON array of Peer entries from path and builds a PeerSet for
// selfID, which must appear among the entries.
func Load(path string, selfID int) (*PeerSet, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading peer config")
	}

	var list []Peer
	if err := json.Unmarshal(buf, &list); err != nil {
		return nil, errors.Wrap(err, "parsing peer config")
	}

	return New(list, selfID)
}

// New builds a PeerSet from an explicit peer list, used directly by tests
// that don't want to round-trip through a JSON file.
func New(list []Peer, selfID int) (*PeerSet, error) {
	byID := make(map[int]string, len(list))
	ids := make([]int, 0, len(list))
	for _, p := range list {
		byID[p.NodeID] = p.Addr
		ids = append(ids, p.NodeID)
	}
	sort.Ints(ids)

	if _, ok := byID[selfID]; !ok {
		return nil, errors.Errorf("self id %d not present in peer set", selfID)
	}

	return &PeerSet{selfID: selfID, byID: byID, ids: ids}, nil
}

// SelfID returns this node's id.
func (p *PeerSet) SelfID() int { return p.selfID }

// Addr returns the address of nodeID, or "" if unknown.
func (p *PeerSet) Addr(nodeID int) string {
	return p.byID[nodeID]
}

// SelfAddr returns this node's own address.
func (p *PeerSet) SelfAddr() string {
	return p.byID[p.selfID]
}

// Count returns the total number of nodes, including self.
func (p *PeerSet) Count() int {
	return len(p.ids)
}

// IDs returns every node id, including self, in ascending order.
func (p *PeerSet) IDs() []int {
	out := make([]int, len(p.ids))
	copy(out, p.ids)
	return out
}

// Others returns every node id other than self, in ascending order.
func (p *PeerSet) Others() []int {
	out := make([]int, 0, len(p.ids)-1)
	for _, id := range p.ids {
		if id != p.selfID {
			out = append(out, id)
		}
	}
	return out
}
