package notary

import (
	"encoding/hex"
	"fmt"

	"github.com/mezonai/starnotary/block"
	"github.com/mezonai/starnotary/jsonx"
)

// Star is the payload a claimant registers. Story travels as plain text in
// requests and is stored hex encoded.
type Star struct {
	RA           string `json:"ra"`
	Dec          string `json:"dec"`
	Mag          string `json:"mag,omitempty"`
	Cen          string `json:"cen,omitempty"`
	Story        string `json:"story"`
	StoryDecoded string `json:"storyDecoded,omitempty"`
}

// StarBody is the decoded body of a non-genesis block.
type StarBody struct {
	Address string `json:"address"`
	Star    Star   `json:"star"`
}

// StarBlock is the read view of a block. Body is the genesis sentinel string
// at height 0 and a StarBody everywhere else.
type StarBlock struct {
	Hash              string      `json:"hash"`
	Height            uint64      `json:"height"`
	Body              interface{} `json:"body"`
	Time              int64       `json:"time"`
	PreviousBlockHash string      `json:"previousBlockHash"`
}

type starRecord struct {
	Star Star `json:"star"`
}

func encodeStar(star Star) ([]byte, error) {
	stored := star
	stored.Story = hex.EncodeToString([]byte(star.Story))
	stored.StoryDecoded = ""
	return jsonx.Marshal(starRecord{Star: stored})
}

func decodeStar(payload []byte) (Star, error) {
	var rec starRecord
	if err := jsonx.UnmarshalStrict(payload, &rec); err != nil {
		return Star{}, err
	}
	story, err := hex.DecodeString(rec.Star.Story)
	if err != nil {
		return Star{}, fmt.Errorf("story is not hex: %w", err)
	}
	rec.Star.StoryDecoded = string(story)
	return rec.Star, nil
}

// View decodes a stored block into its star registry form.
func View(b *block.Block) (*StarBlock, error) {
	sb := &StarBlock{
		Hash:              b.Hash,
		Height:            b.Height,
		Time:              b.Time,
		PreviousBlockHash: b.PreviousBlockHash,
	}
	if b.IsGenesis() {
		sb.Body = string(b.Body.Payload)
		return sb, nil
	}
	star, err := decodeStar(b.Body.Payload)
	if err != nil {
		return nil, &block.CodecError{Err: fmt.Errorf("block %d star payload: %w", b.Height, err)}
	}
	sb.Body = StarBody{Address: b.Body.ClaimantAddress, Star: star}
	return sb, nil
}
