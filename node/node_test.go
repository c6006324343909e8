package node_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pot-protocol/pot/crypto"
	"github.com/pot-protocol/pot/crypto/ed25519"
	"github.com/pot-protocol/pot/node"
	"github.com/pot-protocol/pot/transport"
	"github.com/pot-protocol/pot/turn"
)

func shortTurnConfig() turn.Config {
	cfg := turn.DefaultConfig()
	cfg.TurnDuration = 150 * time.Millisecond
	cfg.TransitionDuration = 50 * time.Millisecond
	cfg.CleanupInterval = time.Hour
	return cfg
}

func spinUpNodes(t *testing.T, ids []string) ([]*node.Node, func()) {
	bus := transport.NewBus()

	// Keys are generated up front, as if exchanged out of band, so every
	// node's PeerPublicKeys map is complete before any TurnManager starts.
	privKeys := make(map[string]ed25519.PrivateKey, len(ids))
	pubKeys := make(map[string]crypto.PubKey, len(ids))
	for _, id := range ids {
		pub, priv, err := ed25519.GenerateKeypair()
		require.NoError(t, err)
		privKeys[id] = priv
		pubKeys[id] = pub
	}

	nodes := make([]*node.Node, len(ids))
	transports := make([]*transport.Memory, len(ids))
	for i, id := range ids {
		tp := bus.Join()
		transports[i] = tp
		n, err := node.New(node.Config{
			NodeID:         id,
			Peers:          ids,
			PeerPublicKeys: pubKeys,
			PrivKey:        privKeys[id],
			Turn:           shortTurnConfig(),
		}, tp)
		require.NoError(t, err)
		nodes[i] = n
	}

	ctx, cancel := context.WithCancel(context.Background())
	for _, n := range nodes {
		n.Start(ctx)
	}

	stop := func() {
		for i, n := range nodes {
			n.Stop()
			transports[i].Close()
		}
		cancel()
	}
	return nodes, stop
}

func TestSendMessageIsEventuallyCommitted(t *testing.T) {
	nodes, stop := spinUpNodes(t, []string{"alice", "bob", "carol"})
	defer stop()

	id, err := nodes[0].SendMessage("hi")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		return len(nodes[2].GetBlockchain()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetStateReflectsRotation(t *testing.T) {
	nodes, stop := spinUpNodes(t, []string{"alice", "bob"})
	defer stop()

	require.Eventually(t, func() bool {
		return nodes[0].GetState().CurrentLeader == "bob"
	}, 2*time.Second, 10*time.Millisecond)
}
