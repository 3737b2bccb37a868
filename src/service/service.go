// Package service exposes a read-only HTTP view over a node's ledger and
// balances for external tooling. It never mutates node state.
package service

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ledgernode/ledgernode/src/node"
)

// Service serves GET /chain, GET /balances, and GET /stats for a single
// node, on its own http.ServeMux — never the package-level DefaultServeMux,
// since several nodes may run in the same process during a test.
type Service struct {
	bindAddr string
	node     *node.Node
	logger   *logrus.Entry
	mux      *http.ServeMux
}

// New builds a Service for n, registering its handlers on a fresh mux.
func New(bindAddr string, n *node.Node, logger *logrus.Entry) *Service {
	s := &Service{
		bindAddr: bindAddr,
		node:     n,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.registerHandlers()
	return s
}

func (s *Service) registerHandlers() {
	s.mux.HandleFunc("/chain", s.getLedger)
	s.mux.HandleFunc("/balances", s.getBalances)
	s.mux.HandleFunc("/stats", s.getStats)
}

// Serve blocks, listening on bindAddr until the server errors or is closed.
func (s *Service) Serve() error {
	s.logger.WithField("bind_addr", s.bindAddr).Debug("serving introspection API")
	return http.ListenAndServe(s.bindAddr, s.mux)
}

func (s *Service) getLedger(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.node.ReadLedger())
}

func (s *Service) getBalances(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.node.ReadBalances())
}

type statsResponse struct {
	Mode  node.Mode `json:"mode"`
	Depth int       `json:"depth"`
}

func (s *Service) getStats(w http.ResponseWriter, r *http.Request) {
	mode, depth := s.node.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{Mode: mode, Depth: depth})
}
