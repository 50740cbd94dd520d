package block

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mezonai/starnotary/jsonx"
)

// GenesisSentinel is the payload of the height-0 block.
const GenesisSentinel = "First block in the chain - Genesis block"

// ErrCodec matches every *CodecError with errors.Is.
var ErrCodec = errors.New("block: malformed encoding")

// CodecError reports stored bytes that do not decode to a well-formed block.
type CodecError struct {
	Err error
}

func (e *CodecError) Error() string { return "block codec: " + e.Err.Error() }

func (e *CodecError) Unwrap() error { return e.Err }

func (e *CodecError) Is(target error) bool { return target == ErrCodec }

// Body is the envelope carried by a block. Payload is opaque to the chain.
type Body struct {
	ClaimantAddress string `json:"address"`
	Payload         []byte `json:"payload"`
}

// Block is one entry of the ledger. Field order is the canonical encoding order.
type Block struct {
	Hash              string `json:"hash"`
	Height            uint64 `json:"height"`
	Body              Body   `json:"body"`
	Time              int64  `json:"time"` // unix seconds
	PreviousBlockHash string `json:"previousBlockHash"`
}

// IsGenesis reports whether b sits at height 0.
func (b *Block) IsGenesis() bool {
	return b.Height == 0
}

// Serialize encodes b canonically. With includeHash false the hash field is
// encoded as an empty string, which is the form the digest is computed over.
func Serialize(b *Block, includeHash bool) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("block cannot be nil")
	}
	c := *b
	if !includeHash {
		c.Hash = ""
	}
	return jsonx.Marshal(&c)
}

// Deserialize is the inverse of Serialize(b, true). Hash fields are taken as
// stored; a malformed hash is a tamper finding for the chain audit, not a
// decoding failure.
func Deserialize(data []byte) (*Block, error) {
	if len(data) == 0 {
		return nil, &CodecError{Err: errors.New("empty input")}
	}
	var b Block
	if err := jsonx.UnmarshalStrict(data, &b); err != nil {
		return nil, &CodecError{Err: err}
	}
	return &b, nil
}

// ComputeHash returns the hex SHA-256 of the block encoded without its hash.
func ComputeHash(b *Block) (string, error) {
	data, err := Serialize(b, false)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
