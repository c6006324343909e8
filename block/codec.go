package block

import (
	"bytes"
	"encoding/base64"

	"github.com/ugorji/go/codec"
)

// canonicalHandle returns a codec.Handle configured for deterministic
// output: sorted map keys, stable field order. Every node must hash the
// exact same bytes for the same logical Data.
func canonicalHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	return jh
}

// marshalData canonically encodes a Data variant for hashing and for the
// wire.
func marshalData(d Data) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := codec.NewEncoder(buf, canonicalHandle())
	if err := enc.Encode(&d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wireBlock is the neutral wire form of a Block: stable field names,
// signature/hash base64/hex, timestamp an integer.
type wireBlock struct {
	Index        int64  `codec:"index"`
	Timestamp    int64  `codec:"timestamp"`
	BlockType    Type   `codec:"block_type"`
	Data         Data   `codec:"data"`
	PreviousHash string `codec:"previous_hash"`
	Hash         string `codec:"hash"`
	AuthorID     string `codec:"author_id"`
	Signature    string `codec:"signature"`
}

// Marshal serializes a Block into its canonical wire form.
func (b *Block) Marshal() ([]byte, error) {
	w := wireBlock{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		BlockType:    b.Type,
		Data:         b.Data,
		PreviousHash: b.PreviousHash,
		Hash:         b.Hash,
		AuthorID:     b.AuthorID,
		Signature:    base64.StdEncoding.EncodeToString(b.Signature),
	}

	buf := new(bytes.Buffer)
	enc := codec.NewEncoder(buf, canonicalHandle())
	if err := enc.Encode(&w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal deserializes a Block from its canonical wire form.
func Unmarshal(data []byte) (*Block, error) {
	var w wireBlock
	dec := codec.NewDecoder(bytes.NewReader(data), canonicalHandle())
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}

	sig, err := base64.StdEncoding.DecodeString(w.Signature)
	if err != nil {
		return nil, err
	}

	return &Block{
		Index:        w.Index,
		Timestamp:    w.Timestamp,
		Type:         w.BlockType,
		Data:         w.Data,
		PreviousHash: w.PreviousHash,
		Hash:         w.Hash,
		AuthorID:     w.AuthorID,
		Signature:    sig,
	}, nil
}
