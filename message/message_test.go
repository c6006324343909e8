package message_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pot-protocol/pot/crypto"
	"github.com/pot-protocol/pot/crypto/ed25519"
	"github.com/pot-protocol/pot/message"
)

func TestCreateAndVerify(t *testing.T) {
	_, sk, err := ed25519.GenerateKeypair()
	require.NoError(t, err)

	msg, err := message.Create("hi", "alice", sk)
	require.NoError(t, err)
	require.Equal(t, "hi", msg.Content)
	require.Equal(t, "alice", msg.AuthorID)
	require.NotEmpty(t, msg.ID)
	require.NotEmpty(t, msg.Signature)

	require.True(t, msg.Verify(sk.PubKey()))
}

func TestVerifyRejectsForgedSignature(t *testing.T) {
	_, sk, err := ed25519.GenerateKeypair()
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKeypair()
	require.NoError(t, err)

	msg, err := message.Create("hi", "alice", sk)
	require.NoError(t, err)

	require.False(t, msg.Verify(otherPub))
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	_, sk, err := ed25519.GenerateKeypair()
	require.NoError(t, err)

	msg, err := message.Create("hi", "alice", sk)
	require.NoError(t, err)

	msg.Content = "tampered"
	require.False(t, msg.Verify(sk.PubKey()))
}

func TestMessageIDDeterministic(t *testing.T) {
	_, sk, err := ed25519.GenerateKeypair()
	require.NoError(t, err)

	m1, err := message.Create("hi", "alice", sk)
	require.NoError(t, err)

	require.NotEmpty(t, m1.ID)
	require.Equal(t, crypto.MessageID(m1.Content, m1.AuthorID, m1.Timestamp), m1.ID)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	_, sk, err := ed25519.GenerateKeypair()
	require.NoError(t, err)

	msg, err := message.Create("hello there", "bob", sk)
	require.NoError(t, err)

	data, err := msg.Marshal()
	require.NoError(t, err)

	decoded, err := message.Unmarshal(data)
	require.NoError(t, err)

	require.Equal(t, msg.Content, decoded.Content)
	require.Equal(t, msg.AuthorID, decoded.AuthorID)
	require.Equal(t, msg.Timestamp, decoded.Timestamp)
	require.Equal(t, msg.ID, decoded.ID)
	require.Equal(t, msg.Signature, decoded.Signature)
	require.True(t, decoded.Verify(sk.PubKey()))
}
