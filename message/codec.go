package message

import (
	"bytes"
	"encoding/base64"

	"github.com/ugorji/go/codec"
)

// wireMessage is the neutral wire form of a Message: stable field
// names, signature base64-encoded, timestamp an integer.
type wireMessage struct {
	Content   string `codec:"content"`
	AuthorID  string `codec:"author_id"`
	Timestamp int64  `codec:"timestamp"`
	MessageID string `codec:"message_id"`
	Signature string `codec:"signature"`
}

func jsonHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	return jh
}

// Marshal serializes a Message into its canonical wire form.
func (m *Message) Marshal() ([]byte, error) {
	w := wireMessage{
		Content:   m.Content,
		AuthorID:  m.AuthorID,
		Timestamp: m.Timestamp,
		MessageID: m.ID,
		Signature: base64.StdEncoding.EncodeToString(m.Signature),
	}

	buf := new(bytes.Buffer)
	enc := codec.NewEncoder(buf, jsonHandle())
	if err := enc.Encode(&w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal deserializes a Message from its canonical wire form.
func Unmarshal(data []byte) (*Message, error) {
	var w wireMessage
	dec := codec.NewDecoder(bytes.NewReader(data), jsonHandle())
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}

	sig, err := base64.StdEncoding.DecodeString(w.Signature)
	if err != nil {
		return nil, err
	}

	return &Message{
		Content:   w.Content,
		AuthorID:  w.AuthorID,
		Timestamp: w.Timestamp,
		ID:        w.MessageID,
		Signature: sig,
	}, nil
}
