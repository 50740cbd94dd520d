package events

import (
	"time"
)

// EventType is an enum-like string type for notary events
type EventType string

const (
	EventChallengeIssued   EventType = "ChallengeIssued"
	EventSignatureVerified EventType = "SignatureVerified"
	EventRequestExpired    EventType = "RequestExpired"
	EventBlockAppended     EventType = "BlockAppended"
)

// NotaryEvent represents any state change of a notarization request
type NotaryEvent interface {
	Type() EventType
	Timestamp() time.Time
	Address() string
}

// ChallengeIssued event when an address receives a challenge to sign
type ChallengeIssued struct {
	address   string
	message   string
	timestamp time.Time
}

func NewChallengeIssued(address, message string, at time.Time) *ChallengeIssued {
	return &ChallengeIssued{
		address:   address,
		message:   message,
		timestamp: at,
	}
}

func (e *ChallengeIssued) Type() EventType {
	return EventChallengeIssued
}

func (e *ChallengeIssued) Timestamp() time.Time {
	return e.timestamp
}

func (e *ChallengeIssued) Address() string {
	return e.address
}

func (e *ChallengeIssued) Message() string {
	return e.message
}

// SignatureVerified event when a challenge signature checks out
type SignatureVerified struct {
	address   string
	timestamp time.Time
}

func NewSignatureVerified(address string, at time.Time) *SignatureVerified {
	return &SignatureVerified{
		address:   address,
		timestamp: at,
	}
}

func (e *SignatureVerified) Type() EventType {
	return EventSignatureVerified
}

func (e *SignatureVerified) Timestamp() time.Time {
	return e.timestamp
}

func (e *SignatureVerified) Address() string {
	return e.address
}

// RequestExpired event when the validation window closes before submission
type RequestExpired struct {
	address   string
	verified  bool
	timestamp time.Time
}

func NewRequestExpired(address string, verified bool, at time.Time) *RequestExpired {
	return &RequestExpired{
		address:   address,
		verified:  verified,
		timestamp: at,
	}
}

func (e *RequestExpired) Type() EventType {
	return EventRequestExpired
}

func (e *RequestExpired) Timestamp() time.Time {
	return e.timestamp
}

func (e *RequestExpired) Address() string {
	return e.address
}

// Verified reports whether the request had already proven ownership.
func (e *RequestExpired) Verified() bool {
	return e.verified
}

// BlockAppended event when a star is committed to the chain
type BlockAppended struct {
	address   string
	height    uint64
	blockHash string
	timestamp time.Time
}

func NewBlockAppended(address string, height uint64, blockHash string, at time.Time) *BlockAppended {
	return &BlockAppended{
		address:   address,
		height:    height,
		blockHash: blockHash,
		timestamp: at,
	}
}

func (e *BlockAppended) Type() EventType {
	return EventBlockAppended
}

func (e *BlockAppended) Timestamp() time.Time {
	return e.timestamp
}

func (e *BlockAppended) Address() string {
	return e.address
}

func (e *BlockAppended) Height() uint64 {
	return e.height
}

func (e *BlockAppended) BlockHash() string {
	return e.blockHash
}
