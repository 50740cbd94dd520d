// Package mempool tracks in-flight notarization requests per address through
// request, verification and submission, and expires them after the
// validation window.
package mempool

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mezonai/starnotary/events"
	"github.com/mezonai/starnotary/exception"
	"github.com/mezonai/starnotary/logx"
	"github.com/mezonai/starnotary/monitoring"
	"github.com/mezonai/starnotary/verifier"
)

const (
	DefaultValidationWindow = 300 * time.Second
	challengeSuffix         = "starRegistry"
)

var (
	ErrAlreadyPending   = errors.New("mempool: a live request already exists for this address")
	ErrNoPendingRequest = errors.New("mempool: no pending request for this address")
	ErrInvalidSignature = errors.New("mempool: invalid signature")
)

type State int

const (
	StateRequested State = iota
	StateVerified
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateVerified:
		return "verified"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Request is the per-address admission record. It expires at
// RequestTimestamp plus the validation window whatever its state.
type Request struct {
	Address          string
	RequestTimestamp int64 // unix seconds
	State            State
}

// Challenge is handed to the claimant on a successful request.
type Challenge struct {
	Address          string `json:"walletAddress"`
	RequestTimestamp int64  `json:"requestTimeStamp"`
	Message          string `json:"message"`
	ValidationWindow int64  `json:"validationWindow"`
}

// Status is returned once the challenge signature verified.
type Status struct {
	Address          string `json:"address"`
	RequestTimestamp int64  `json:"requestTimeStamp"`
	Message          string `json:"message"`
	ValidationWindow int64  `json:"validationWindow"`
	SignatureValid   bool   `json:"messageSignature"`
}

// ChallengeMessage is the text a claimant signs to prove it owns address.
func ChallengeMessage(address string, requestTimestamp int64) string {
	return address + ":" + strconv.FormatInt(requestTimestamp, 10) + ":" + challengeSuffix
}

type entry struct {
	req   Request
	timer *clock.Timer
}

type addressLock struct {
	mu   sync.Mutex
	refs int
}

type Option func(*Mempool)

func WithClock(c clock.Clock) Option {
	return func(m *Mempool) { m.clock = c }
}

// WithValidationWindow overrides DefaultValidationWindow. Non-positive values
// are ignored.
func WithValidationWindow(window time.Duration) Option {
	return func(m *Mempool) {
		if window > 0 {
			m.window = window
		}
	}
}

func WithEventBus(bus *events.EventBus) Option {
	return func(m *Mempool) { m.bus = bus }
}

// Mempool is the admission state machine. Every operation on an address runs
// under that address's lock, so operations on distinct addresses proceed in
// parallel. mu only guards the maps and is never held across verification or
// a commit callback.
type Mempool struct {
	clock    clock.Clock
	window   time.Duration
	verifier verifier.Verifier
	bus      *events.EventBus

	mu      sync.Mutex
	entries map[string]*entry
	locks   map[string]*addressLock
}

func NewMempool(v verifier.Verifier, opts ...Option) (*Mempool, error) {
	if v == nil {
		return nil, fmt.Errorf("verifier cannot be nil")
	}
	m := &Mempool{
		clock:    clock.New(),
		window:   DefaultValidationWindow,
		verifier: v,
		entries:  make(map[string]*entry),
		locks:    make(map[string]*addressLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// lockAddress blocks until the caller owns address and returns the release func.
func (m *Mempool) lockAddress(address string) func() {
	m.mu.Lock()
	l, ok := m.locks[address]
	if !ok {
		l = &addressLock{}
		m.locks[address] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, address)
		}
		m.mu.Unlock()
	}
}

func (m *Mempool) expiresAt(req Request) time.Time {
	return time.Unix(req.RequestTimestamp, 0).Add(m.window)
}

func (m *Mempool) live(e *entry, now time.Time) bool {
	return e != nil && now.Before(m.expiresAt(e.req))
}

// remaining is the validation window left at now in whole seconds, clamped at 0.
func (m *Mempool) remaining(req Request, now time.Time) int64 {
	left := int64(m.window/time.Second) - (now.Unix() - req.RequestTimestamp)
	if left < 0 {
		return 0
	}
	return left
}

// RequestChallenge opens a request for address and returns the message it must
// sign. It fails with ErrAlreadyPending while a previous request is live.
func (m *Mempool) RequestChallenge(address string) (Challenge, error) {
	unlock := m.lockAddress(address)
	defer unlock()

	now := m.clock.Now()
	m.mu.Lock()
	if old := m.entries[address]; old != nil {
		if m.live(old, now) {
			m.mu.Unlock()
			monitoring.RecordRejected(monitoring.RejectedAlreadyPending)
			logx.Warn("MEMPOOL", "Request already pending for ", address)
			return Challenge{}, ErrAlreadyPending
		}
		old.timer.Stop()
	}

	e := &entry{req: Request{
		Address:          address,
		RequestTimestamp: now.Unix(),
		State:            StateRequested,
	}}
	e.timer = m.clock.AfterFunc(m.expiresAt(e.req).Sub(now), func() {
		defer exception.Recover("mempool expiry")
		m.expire(address, e)
	})
	m.entries[address] = e
	req := e.req
	size := len(m.entries)
	m.mu.Unlock()

	monitoring.SetMempoolSize(size)
	monitoring.IncreaseChallengeCount()

	challenge := Challenge{
		Address:          address,
		RequestTimestamp: req.RequestTimestamp,
		Message:          ChallengeMessage(address, req.RequestTimestamp),
		ValidationWindow: m.remaining(req, now),
	}
	m.bus.Publish(events.NewChallengeIssued(address, challenge.Message, now))
	logx.Info("MEMPOOL", fmt.Sprintf("Challenge issued address=%s timestamp=%d", address, challenge.RequestTimestamp))
	return challenge, nil
}

// SubmitSignature verifies signature over the pending challenge of address.
// A bad signature leaves the request in place so the claimant can retry.
func (m *Mempool) SubmitSignature(address, signature string) (Status, error) {
	unlock := m.lockAddress(address)
	defer unlock()

	now := m.clock.Now()
	m.mu.Lock()
	e := m.entries[address]
	if !m.live(e, now) || e.req.State != StateRequested {
		m.mu.Unlock()
		monitoring.RecordRejected(monitoring.RejectedNoPendingRequest)
		return Status{}, ErrNoPendingRequest
	}
	req := e.req
	m.mu.Unlock()

	message := ChallengeMessage(address, req.RequestTimestamp)
	if !m.verifier.Verify(message, address, signature) {
		monitoring.RecordRejected(monitoring.RejectedInvalidSignature)
		logx.Warn("MEMPOOL", "Signature verification failed for ", address)
		return Status{}, ErrInvalidSignature
	}

	m.mu.Lock()
	e.req.State = StateVerified
	m.mu.Unlock()

	monitoring.IncreaseVerifiedCount()
	m.bus.Publish(events.NewSignatureVerified(address, now))
	logx.Info("MEMPOOL", "Signature verified for ", address)

	return Status{
		Address:          address,
		RequestTimestamp: req.RequestTimestamp,
		Message:          message,
		ValidationWindow: m.remaining(req, now),
		SignatureValid:   true,
	}, nil
}

// ConsumeForSubmission removes a live verified request for address and
// reports whether there was one. At most one caller wins per verification.
func (m *Mempool) ConsumeForSubmission(address string) bool {
	ok, _ := m.ConsumeWith(address, nil)
	return ok
}

// ConsumeWith is ConsumeForSubmission with a commit step: commit runs while
// the address is locked and the request is removed only if commit returns nil.
// A commit error is returned as is with false, leaving the request verified.
func (m *Mempool) ConsumeWith(address string, commit func() error) (bool, error) {
	unlock := m.lockAddress(address)
	defer unlock()

	m.mu.Lock()
	e := m.entries[address]
	if !m.live(e, m.clock.Now()) || e.req.State != StateVerified {
		m.mu.Unlock()
		return false, nil
	}
	m.mu.Unlock()

	if commit != nil {
		if err := commit(); err != nil {
			return false, err
		}
	}

	m.mu.Lock()
	if m.entries[address] == e {
		delete(m.entries, address)
		e.timer.Stop()
	}
	size := len(m.entries)
	m.mu.Unlock()

	monitoring.SetMempoolSize(size)
	logx.Info("MEMPOOL", "Request consumed for ", address)
	return true, nil
}

// expire drops e when its window closes, unless it was already replaced or consumed.
func (m *Mempool) expire(address string, e *entry) {
	unlock := m.lockAddress(address)
	defer unlock()

	m.mu.Lock()
	if m.entries[address] != e {
		m.mu.Unlock()
		return
	}
	delete(m.entries, address)
	size := len(m.entries)
	verified := e.req.State == StateVerified
	m.mu.Unlock()

	monitoring.SetMempoolSize(size)
	monitoring.IncreaseExpiredCount()
	m.bus.Publish(events.NewRequestExpired(address, verified, m.clock.Now()))
	logx.Info("MEMPOOL", "Request expired for ", address)
}

// Status returns a snapshot of the live request for address.
func (m *Mempool) Status(address string) (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[address]
	if !m.live(e, m.clock.Now()) {
		return Request{}, false
	}
	return e.req, true
}

// ValidationWindow returns the seconds left for the live request of address.
func (m *Mempool) ValidationWindow(address string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	e := m.entries[address]
	if !m.live(e, now) {
		return 0, false
	}
	return m.remaining(e.req, now), true
}

// Len returns the number of live requests.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	n := 0
	for _, e := range m.entries {
		if m.live(e, now) {
			n++
		}
	}
	return n
}

// Close stops every expiry timer and forgets all requests.
func (m *Mempool) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for address, e := range m.entries {
		e.timer.Stop()
		delete(m.entries, address)
	}
	monitoring.SetMempoolSize(0)
}
