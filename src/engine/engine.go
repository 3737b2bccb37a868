// Package engine wires together a node's collaborators — peer set,
// transport, persistence store, node controller, and introspection service —
// into a single runnable unit, the way a deployment's entrypoint would.
package engine

import (
	"fmt"

	lnet "github.com/ledgernode/ledgernode/src/net"
	"github.com/ledgernode/ledgernode/src/node"
	"github.com/ledgernode/ledgernode/src/peers"
	"github.com/ledgernode/ledgernode/src/service"
	"github.com/ledgernode/ledgernode/src/store"
)

// Engine bundles one node's fully-initialized collaborators.
type Engine struct {
	Config    *node.Config
	Peers     *peers.PeerSet
	Transport lnet.Transport
	Store     *store.Store
	Node      *node.Node
	Service   *service.Service
}

// New wires a fresh Engine from config: it loads the peer set, opens the
// persistence store, creates the transport (bound later, by the node's Run
// loop), and constructs the node
// controller. It does not start any goroutines; call Run for that.
func New(config *node.Config) (*Engine, error) {
	e := &Engine{Config: config}

	ps, err := peers.Load(config.PeersFile, config.NodeID)
	if err != nil {
		return nil, fmt.Errorf("loading peer set: %w", err)
	}
	e.Peers = ps

	st, err := store.New(config.DataDir, config.NodeID)
	if err != nil {
		return nil, fmt.Errorf("opening persistence store: %w", err)
	}
	e.Store = st

	trans, err := lnet.NewTCPTransport(config.BindAddr, config.NetDelay, config.Logger())
	if err != nil {
		return nil, fmt.Errorf("binding transport: %w", err)
	}
	e.Transport = trans

	n, err := node.New(config, ps, trans, st)
	if err != nil {
		return nil, fmt.Errorf("constructing node: %w", err)
	}
	e.Node = n

	if !config.NoService && config.ServiceAddr != "" {
		e.Service = service.New(config.ServiceAddr, n, config.Logger())
	}

	return e, nil
}

// Run starts the node's event loop and, if configured, the introspection
// service. It blocks until the node's Run loop returns.
func (e *Engine) Run() {
	if e.Service != nil {
		go func() {
			if err := e.Service.Serve(); err != nil {
				e.Config.Logger().WithError(err).Error("introspection service stopped")
			}
		}()
	}

	e.Node.Run()
}

// Shutdown stops the node's event loop and releases its transport.
func (e *Engine) Shutdown() {
	e.Node.Shutdown()
}
