// Package message implements the authored, signed chat payload that
// flows through the message pool and into committed blocks.
package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/pot-protocol/pot/crypto"
)

// Message is an authored, signed chat payload with a stable content-derived ID.
type Message struct {
	Content   string `codec:"content"`
	AuthorID  string `codec:"author_id"`
	Timestamp int64  `codec:"timestamp"`
	ID        string `codec:"message_id"`
	Signature []byte `codec:"signature"`
}

// Create authors and signs a new Message. Timestamp is stamped at creation
// time; ID is the deterministic hash over content, author and timestamp.
func Create(content, authorID string, sk crypto.PrivKey) (*Message, error) {
	if authorID == "" {
		return nil, errors.New("message: empty author id")
	}

	ts := time.Now().UnixMilli()
	id := crypto.MessageID(content, authorID, ts)

	sig, err := sk.Sign([]byte(signable(content, authorID, ts, id)))
	if err != nil {
		return nil, fmt.Errorf("signing message: %w", err)
	}

	return &Message{
		Content:   content,
		AuthorID:  authorID,
		Timestamp: ts,
		ID:        id,
		Signature: sig,
	}, nil
}

// Verify recomputes the signable string and checks it against the
// author's public key. Callers must drop (and only log) any message for
// which Verify returns false — it is never surfaced as a hard error.
func (m *Message) Verify(pub crypto.PubKey) bool {
	if m == nil || pub == nil {
		return false
	}
	signed := []byte(signable(m.Content, m.AuthorID, m.Timestamp, m.ID))
	return pub.VerifySignature(signed, m.Signature)
}

// signable constructs the pipe-delimited string Message signatures are
// computed over.
func signable(content, authorID string, ts int64, id string) string {
	return fmt.Sprintf("%s|%s|%d|%s", content, authorID, ts, id)
}
