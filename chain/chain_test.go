package chain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pot-protocol/pot/block"
	"github.com/pot-protocol/pot/chain"
	"github.com/pot-protocol/pot/crypto/ed25519"
	"github.com/pot-protocol/pot/message"
)

func mustKeypair(t *testing.T) ed25519.PrivateKey {
	_, priv, err := ed25519.GenerateKeypair()
	require.NoError(t, err)
	return priv
}

func TestNewChainStartsWithGenesis(t *testing.T) {
	c := chain.New()
	require.Equal(t, 1, c.Length())
	require.Equal(t, block.TypeGenesis, c.Latest().Type)
}

func TestAddBlockAppendsValidBlock(t *testing.T) {
	c := chain.New()
	priv := mustKeypair(t)

	msg, err := message.Create("hello", "alice", priv)
	require.NoError(t, err)

	b, err := block.NewMessageBlock(c.Latest(), *msg, "alice", priv)
	require.NoError(t, err)

	require.NoError(t, c.AddBlock(b))
	require.Equal(t, 2, c.Length())
	require.Equal(t, b.Hash, c.Latest().Hash)
}

func TestAddBlockRejectsBrokenLink(t *testing.T) {
	c := chain.New()
	priv := mustKeypair(t)

	stale := block.NewGenesisBlock()
	stale.Hash = "unrelated-parent-hash" // parent that is not the chain's head
	msg, err := message.Create("hello", "alice", priv)
	require.NoError(t, err)

	b, err := block.NewMessageBlock(stale, *msg, "alice", priv)
	require.NoError(t, err)

	require.Error(t, c.AddBlock(b))
	require.Equal(t, 1, c.Length())
}

func TestGetByIndexAndLastN(t *testing.T) {
	c := chain.New()
	priv := mustKeypair(t)

	for i := 0; i < 3; i++ {
		msg, err := message.Create("m", "alice", priv)
		require.NoError(t, err)
		b, err := block.NewMessageBlock(c.Latest(), *msg, "alice", priv)
		require.NoError(t, err)
		require.NoError(t, c.AddBlock(b))
	}

	require.Equal(t, 4, c.Length())
	require.NotNil(t, c.GetByIndex(0))
	require.Nil(t, c.GetByIndex(99))

	last2 := c.LastN(2)
	require.Len(t, last2, 2)
	require.Equal(t, c.Latest().Hash, last2[len(last2)-1].Hash)

	all := c.LastN(100)
	require.Len(t, all, 4)
}

func TestExtractMessageIDs(t *testing.T) {
	c := chain.New()
	priv := mustKeypair(t)

	msg, err := message.Create("hello", "alice", priv)
	require.NoError(t, err)
	b, err := block.NewMessageBlock(c.Latest(), *msg, "alice", priv)
	require.NoError(t, err)
	require.NoError(t, c.AddBlock(b))

	msg2, err := message.Create("world", "bob", priv)
	require.NoError(t, err)
	rec, err := block.NewRecoveryBlock(c.Latest(), []message.Message{*msg2}, "recovered", "carol", priv)
	require.NoError(t, err)
	require.NoError(t, c.AddBlock(rec))

	ids := chain.ExtractMessageIDs(c.Chronological())
	require.ElementsMatch(t, []string{msg.ID, msg2.ID}, ids)
}

func TestValidDetectsTampering(t *testing.T) {
	c := chain.New()
	priv := mustKeypair(t)

	msg, err := message.Create("hello", "alice", priv)
	require.NoError(t, err)
	b, err := block.NewMessageBlock(c.Latest(), *msg, "alice", priv)
	require.NoError(t, err)
	require.NoError(t, c.AddBlock(b))

	blocks := c.Chronological()
	require.True(t, chain.Valid(blocks))

	blocks[1].Data.Chat.Message.Content = "tampered"
	require.False(t, chain.Valid(blocks))
}

func TestReplaceChainRequiresLongerValidCandidate(t *testing.T) {
	c := chain.New()
	priv := mustKeypair(t)

	msg, err := message.Create("hello", "alice", priv)
	require.NoError(t, err)
	b, err := block.NewMessageBlock(c.Latest(), *msg, "alice", priv)
	require.NoError(t, err)
	require.NoError(t, c.AddBlock(b))

	// Shorter candidate is rejected.
	require.Error(t, c.ReplaceChain([]*block.Block{block.NewGenesisBlock()}))

	// Longer, valid candidate is accepted.
	candidate := c.Chronological()
	msg2, err := message.Create("again", "bob", priv)
	require.NoError(t, err)
	b2, err := block.NewMessageBlock(candidate[len(candidate)-1], *msg2, "bob", priv)
	require.NoError(t, err)
	candidate = append(candidate, b2)

	require.NoError(t, c.ReplaceChain(candidate))
	require.Equal(t, 3, c.Length())
}
