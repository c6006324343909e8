package block_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pot-protocol/pot/block"
	"github.com/pot-protocol/pot/crypto/ed25519"
	"github.com/pot-protocol/pot/message"
)

func newKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	pub, priv, err := ed25519.GenerateKeypair()
	require.NoError(t, err)
	return pub, priv
}

func TestGenesisBlock(t *testing.T) {
	g := block.NewGenesisBlock()
	require.EqualValues(t, 0, g.Index)
	require.Equal(t, block.TypeGenesis, g.Type)
	require.Equal(t, "0", g.PreviousHash)
	require.Equal(t, "genesis", g.AuthorID)
	require.Empty(t, g.Signature)
	require.True(t, g.VerifySignature(nil))
}

func TestNewMessageBlockChainsAndVerifies(t *testing.T) {
	pub, priv := newKeypair(t)
	g := block.NewGenesisBlock()

	msg, err := message.Create("hi", "alice", priv)
	require.NoError(t, err)

	b, err := block.NewMessageBlock(g, *msg, "alice", priv)
	require.NoError(t, err)

	require.EqualValues(t, 1, b.Index)
	require.Equal(t, g.Hash, b.PreviousHash)
	require.True(t, b.Valid(g))
	require.True(t, b.VerifySignature(pub))

	id, ok := b.MessageID()
	require.True(t, ok)
	require.Equal(t, msg.ID, id)
}

func TestValidRejectsWrongIndex(t *testing.T) {
	_, priv := newKeypair(t)
	g := block.NewGenesisBlock()
	msg, err := message.Create("hi", "alice", priv)
	require.NoError(t, err)

	b, err := block.NewMessageBlock(g, *msg, "alice", priv)
	require.NoError(t, err)

	b.Index = 5
	require.False(t, b.Valid(g))
}

func TestValidRejectsTamperedData(t *testing.T) {
	_, priv := newKeypair(t)
	g := block.NewGenesisBlock()
	msg, err := message.Create("hi", "alice", priv)
	require.NoError(t, err)

	b, err := block.NewMessageBlock(g, *msg, "alice", priv)
	require.NoError(t, err)

	b.Data.Chat.Message.Content = "tampered"
	require.False(t, b.Valid(g))
}

func TestVerifySignatureRejectsWrongKey(t *testing.T) {
	_, priv := newKeypair(t)
	otherPub, _ := newKeypair(t)
	g := block.NewGenesisBlock()
	msg, err := message.Create("hi", "alice", priv)
	require.NoError(t, err)

	b, err := block.NewMessageBlock(g, *msg, "alice", priv)
	require.NoError(t, err)

	require.False(t, b.VerifySignature(otherPub))
}

func TestRecoveryBlock(t *testing.T) {
	_, priv := newKeypair(t)
	g := block.NewGenesisBlock()

	m1, err := message.Create("one", "bob", priv)
	require.NoError(t, err)
	m2, err := message.Create("two", "bob", priv)
	require.NoError(t, err)

	b, err := block.NewRecoveryBlock(g, []message.Message{*m1, *m2}, "recovered", "alice", priv)
	require.NoError(t, err)
	require.Equal(t, block.TypeLostMessageRecovery, b.Type)

	ids := b.RecoveredMessageIDs()
	require.ElementsMatch(t, []string{m1.ID, m2.ID}, ids)
}

func TestTransitionBlockDefinedButUnused(t *testing.T) {
	_, priv := newKeypair(t)
	g := block.NewGenesisBlock()

	b, err := block.NewTransitionBlock(g, "alice", "bob", "handoff", priv)
	require.NoError(t, err)
	require.Equal(t, block.TypeTurnTransition, b.Type)
	require.Equal(t, "alice", b.Data.Transition.From)
	require.Equal(t, "bob", b.Data.Transition.To)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	pub, priv := newKeypair(t)
	g := block.NewGenesisBlock()
	msg, err := message.Create("hi", "alice", priv)
	require.NoError(t, err)

	b, err := block.NewMessageBlock(g, *msg, "alice", priv)
	require.NoError(t, err)

	data, err := b.Marshal()
	require.NoError(t, err)

	decoded, err := block.Unmarshal(data)
	require.NoError(t, err)

	require.Equal(t, b.Hash, decoded.Hash)
	require.Equal(t, b.Index, decoded.Index)
	require.True(t, decoded.Valid(g))
	require.True(t, decoded.VerifySignature(pub))
}

func TestHashRecomputationDeterministic(t *testing.T) {
	_, priv := newKeypair(t)
	g := block.NewGenesisBlock()
	msg, err := message.Create("hi", "alice", priv)
	require.NoError(t, err)

	b, err := block.NewMessageBlock(g, *msg, "alice", priv)
	require.NoError(t, err)

	require.True(t, b.Valid(g))
}
