// Package node wires a Proof-of-Turn node's crypto, chain, pool,
// transport and TurnManager together and exposes the node's public
// operations.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pot-protocol/pot/block"
	"github.com/pot-protocol/pot/chain"
	"github.com/pot-protocol/pot/crypto"
	"github.com/pot-protocol/pot/crypto/ed25519"
	"github.com/pot-protocol/pot/message"
	"github.com/pot-protocol/pot/pool"
	"github.com/pot-protocol/pot/transport"
	"github.com/pot-protocol/pot/turn"
)

// Config is a node's bootstrap input: a node_id, the fixed ordered peer
// list (identical on every node) and every peer's public key. If
// PrivKey is nil, New generates a fresh keypair locally;
// callers that need to know a node's public key before every peer's
// PeerPublicKeys map is final (e.g. single-process simulations) can
// generate a keypair themselves with crypto/ed25519.GenerateKeypair and
// set it here.
type Config struct {
	NodeID         string
	Peers          []string
	PeerPublicKeys map[string]crypto.PubKey
	PrivKey        crypto.PrivKey
	Turn           turn.Config
}

// Node is a single Proof-of-Turn participant.
type Node struct {
	cfg     Config
	privKey crypto.PrivKey
	pubKey  crypto.PubKey

	chain *chain.Chain
	pool  *pool.Pool
	tp    transport.Transport
	tm    *turn.Manager
	log   *slog.Logger

	cancel context.CancelFunc
}

// New assembles a Node ready to Start, generating a fresh keypair unless
// cfg.PrivKey is set.
func New(cfg Config, tp transport.Transport) (*Node, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("node: empty node id")
	}

	priv := cfg.PrivKey
	var pub crypto.PubKey
	if priv == nil {
		generatedPub, generatedPriv, err := ed25519.GenerateKeypair()
		if err != nil {
			return nil, fmt.Errorf("node: generating keypair: %w", err)
		}
		priv, pub = generatedPriv, generatedPub
	} else {
		pub = priv.PubKey()
	}

	turnCfg := cfg.Turn
	turnCfg.NodeID = cfg.NodeID
	turnCfg.Peers = cfg.Peers
	turnCfg.PeerPublicKeys = cfg.PeerPublicKeys

	c := chain.New()
	p := pool.New()
	tm := turn.New(turnCfg, priv, c, p, tp)

	return &Node{
		cfg:     cfg,
		privKey: priv,
		pubKey:  pub,
		chain:   c,
		pool:    p,
		tp:      tp,
		tm:      tm,
		log:     slog.With("module", "node", "node_id", cfg.NodeID),
	}, nil
}

// PublicKey returns this node's own public key, as it should be shared
// with peers out of band before bootstrap.
func (n *Node) PublicKey() crypto.PubKey {
	return n.pubKey
}

// Start launches the node's TurnManager event loop in its own goroutine.
// It returns immediately; the loop runs until ctx is cancelled or Stop
// is called.
func (n *Node) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.log.InfoContext(ctx, "starting node")
	go n.tm.Run(runCtx)
}

// Stop halts the TurnManager event loop and waits for it to exit.
func (n *Node) Stop() {
	n.log.Info("stopping node")
	if n.cancel != nil {
		n.cancel()
	}
	n.tm.Stop()
}

// SendMessage authors, signs and broadcasts a chat Message. It reports
// only local broadcast submission, never inclusion in a block.
func (n *Node) SendMessage(content string) (string, error) {
	msg, err := message.Create(content, n.cfg.NodeID, n.privKey)
	if err != nil {
		return "", fmt.Errorf("node: creating message: %w", err)
	}

	n.pool.Add(*msg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.tp.PublishMessage(ctx, *msg); err != nil {
		return "", fmt.Errorf("node: broadcasting message: %w", err)
	}
	n.log.InfoContext(ctx, "sent message", "message_id", msg.ID)
	return msg.ID, nil
}

// GetBlockchain returns a snapshot of this node's local chain,
// chronological, genesis first.
func (n *Node) GetBlockchain() []*block.Block {
	return n.chain.Chronological()
}

// State is the public shape returned by GetState.
type State struct {
	NodeID           string     `json:"node_id"`
	Phase            turn.Phase `json:"phase"`
	CurrentLeader    string     `json:"current_leader"`
	BlockchainLength int        `json:"blockchain_length"`
	PendingMessages  int        `json:"pending_messages"`
}

// GetState reports this node's externally-visible state.
func (n *Node) GetState() State {
	s := n.tm.Snapshot()
	return State{
		NodeID:           s.NodeID,
		Phase:            s.Phase,
		CurrentLeader:    s.CurrentLeader,
		BlockchainLength: s.BlockchainLength,
		PendingMessages:  s.PendingMessages,
	}
}
