package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pot-protocol/pot/block"
	"github.com/pot-protocol/pot/crypto/ed25519"
	"github.com/pot-protocol/pot/message"
	"github.com/pot-protocol/pot/transport"
)

func TestMemoryBusDeliversToAllPeersIncludingSelf(t *testing.T) {
	bus := transport.NewBus()
	a := bus.Join()
	b := bus.Join()
	defer a.Close()
	defer b.Close()

	_, priv, err := ed25519.GenerateKeypair()
	require.NoError(t, err)
	msg, err := message.Create("hi", "alice", priv)
	require.NoError(t, err)

	require.NoError(t, a.PublishMessage(context.Background(), *msg))

	select {
	case got := <-a.Messages():
		require.Equal(t, msg.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("publisher did not receive its own message")
	}

	select {
	case got := <-b.Messages():
		require.Equal(t, msg.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("peer did not receive broadcast message")
	}
}

func TestMemoryBusDeliversBlocks(t *testing.T) {
	bus := transport.NewBus()
	a := bus.Join()
	b := bus.Join()
	defer a.Close()
	defer b.Close()

	g := block.NewGenesisBlock()
	require.NoError(t, a.PublishBlock(context.Background(), *g))

	select {
	case got := <-b.Blocks():
		require.Equal(t, g.Hash, got.Hash)
	case <-time.After(time.Second):
		t.Fatal("peer did not receive broadcast block")
	}
}
