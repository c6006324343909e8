package block

import (
	"fmt"
	"time"

	"github.com/pot-protocol/pot/crypto"
	"github.com/pot-protocol/pot/message"
)

// Block is a typed, hash-chained, signed container.
type Block struct {
	Index        int64
	Timestamp    int64
	Type         Type
	Data         Data
	PreviousHash string
	Hash         string
	AuthorID     string
	Signature    []byte
}

const genesisAuthor = "genesis"

// NewGenesisBlock builds the fixed, unsigned first block of every chain.
func NewGenesisBlock() *Block {
	b := &Block{
		Index:        0,
		Timestamp:    time.Now().UnixMilli(),
		Type:         TypeGenesis,
		Data:         Data{Genesis: &GenesisData{Marker: "genesis"}},
		PreviousHash: "0",
		AuthorID:     genesisAuthor,
	}
	hash, err := computeHash(b.Index, b.Timestamp, b.Data, b.PreviousHash, b.AuthorID)
	if err != nil {
		// marshaling a literal constant Data value cannot fail.
		panic(fmt.Sprintf("block: hashing genesis block: %v", err))
	}
	b.Hash = hash
	return b
}

// NewMessageBlock builds a chat_message block carrying a single committed Message.
func NewMessageBlock(prev *Block, msg message.Message, authorID string, sk crypto.PrivKey) (*Block, error) {
	return build(prev, TypeChatMessage, Data{Chat: &ChatData{Message: msg}}, authorID, sk)
}

// NewRecoveryBlock builds a lost_message_recovery block carrying every
// message a new leader observed but did not find committed.
func NewRecoveryBlock(prev *Block, msgs []message.Message, note, authorID string, sk crypto.PrivKey) (*Block, error) {
	recovered := make([]message.Message, len(msgs))
	copy(recovered, msgs)
	return build(prev, TypeLostMessageRecovery, Data{Recovery: &RecoveryData{
		RecoveredMessages: recovered,
		Note:              note,
	}}, authorID, sk)
}

// NewTransitionBlock builds a turn_transition block. The variant is
// fully defined but never invoked by turn.Manager, which rotates
// leadership implicitly rather than committing a handoff record.
func NewTransitionBlock(prev *Block, from, to, note string, sk crypto.PrivKey) (*Block, error) {
	return build(prev, TypeTurnTransition, Data{Transition: &TransitionData{
		From: from,
		To:   to,
		Note: note,
	}}, from, sk)
}

// build is the generic constructor every non-genesis Block delegates to.
func build(prev *Block, t Type, data Data, authorID string, sk crypto.PrivKey) (*Block, error) {
	if prev == nil {
		return nil, fmt.Errorf("block: nil previous block")
	}

	b := &Block{
		Index:        prev.Index + 1,
		Timestamp:    time.Now().UnixMilli(),
		Type:         t,
		Data:         data,
		PreviousHash: prev.Hash,
		AuthorID:     authorID,
	}

	hash, err := computeHash(b.Index, b.Timestamp, b.Data, b.PreviousHash, b.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("block: computing hash: %w", err)
	}
	b.Hash = hash

	sig, err := sk.Sign([]byte(signable(b.Index, b.Timestamp, b.Hash, b.PreviousHash, b.AuthorID)))
	if err != nil {
		return nil, fmt.Errorf("block: signing: %w", err)
	}
	b.Signature = sig

	return b, nil
}

// computeHash recomputes the hash over index ∥ timestamp ∥ serialize(data)
// ∥ previous_hash ∥ author_id, using the canonical encoding from codec.go.
func computeHash(index, timestamp int64, data Data, previousHash, authorID string) (string, error) {
	dataBytes, err := marshalData(data)
	if err != nil {
		return "", err
	}

	buf := make([]byte, 0, len(dataBytes)+len(previousHash)+len(authorID)+32)
	buf = append(buf, []byte(fmt.Sprintf("%d", index))...)
	buf = append(buf, []byte(fmt.Sprintf("%d", timestamp))...)
	buf = append(buf, dataBytes...)
	buf = append(buf, previousHash...)
	buf = append(buf, authorID...)
	return crypto.Hash(buf), nil
}

// signable constructs the pipe-delimited string Block signatures are
// computed over.
func signable(index, timestamp int64, hash, previousHash, authorID string) string {
	return fmt.Sprintf("%d|%d|%s|%s|%s", index, timestamp, hash, previousHash, authorID)
}

// Valid performs structural validation only: index sequencing,
// previous_hash linkage and hash recomputation. Signature
// verification is a deliberately separate call (VerifySignature), applied
// only on ingest paths where the producer's public key is known.
func (b *Block) Valid(prev *Block) bool {
	if b == nil || prev == nil {
		return false
	}
	if b.Index != prev.Index+1 {
		return false
	}
	if b.PreviousHash != prev.Hash {
		return false
	}

	recomputed, err := computeHash(b.Index, b.Timestamp, b.Data, b.PreviousHash, b.AuthorID)
	if err != nil {
		return false
	}
	return recomputed == b.Hash
}

// VerifySignature checks the Block's signature against the producer's
// known public key. Genesis carries no signature by definition and is
// trivially valid here.
func (b *Block) VerifySignature(pub crypto.PubKey) bool {
	if b.Type == TypeGenesis {
		return b.AuthorID == genesisAuthor
	}
	if pub == nil {
		return false
	}
	signed := []byte(signable(b.Index, b.Timestamp, b.Hash, b.PreviousHash, b.AuthorID))
	return pub.VerifySignature(signed, b.Signature)
}

// MessageID returns the message ID committed by a chat_message block, or
// ok=false for any other block type.
func (b *Block) MessageID() (string, bool) {
	if b.Type != TypeChatMessage || b.Data.Chat == nil {
		return "", false
	}
	return b.Data.Chat.Message.ID, true
}

// RecoveredMessageIDs returns the message IDs committed by a
// lost_message_recovery block, or nil for any other block type.
func (b *Block) RecoveredMessageIDs() []string {
	if b.Type != TypeLostMessageRecovery || b.Data.Recovery == nil {
		return nil
	}
	ids := make([]string, len(b.Data.Recovery.RecoveredMessages))
	for i, m := range b.Data.Recovery.RecoveredMessages {
		ids[i] = m.ID
	}
	return ids
}
