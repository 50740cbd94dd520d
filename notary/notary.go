// Package notary is the submission gate and query facade of the star
// registry. It admits a star only for an address whose challenge signature
// verified and whose validation window is still open.
package notary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mezonai/starnotary/block"
	"github.com/mezonai/starnotary/chain"
	"github.com/mezonai/starnotary/events"
	"github.com/mezonai/starnotary/logx"
	"github.com/mezonai/starnotary/mempool"
	"github.com/mezonai/starnotary/monitoring"
	"github.com/mezonai/starnotary/security/validation"
)

const DefaultMaxStoryBytes = 500

var (
	ErrNotAuthorized = errors.New("notary: address has no verified request")
	ErrInvalidInput  = errors.New("notary: invalid input")
)

type Option func(*Service)

func WithEventBus(bus *events.EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

func WithMaxStoryBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxStoryBytes = n
		}
	}
}

type Service struct {
	chain         *chain.Blockchain
	pool          *mempool.Mempool
	bus           *events.EventBus
	maxStoryBytes int
}

func NewService(bc *chain.Blockchain, pool *mempool.Mempool, opts ...Option) (*Service, error) {
	if bc == nil || pool == nil {
		return nil, fmt.Errorf("blockchain and mempool are required")
	}
	s := &Service{
		chain:         bc,
		pool:          pool,
		maxStoryBytes: DefaultMaxStoryBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func validateAddress(address string) error {
	if err := validation.ValidateRequired(validation.AddressField, address); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := validation.ValidateShortTextLength(validation.AddressField, address); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) validateStar(star Star) error {
	for _, f := range []struct{ name, value string }{
		{validation.RAField, star.RA},
		{validation.DecField, star.Dec},
		{validation.StoryField, star.Story},
	} {
		if err := validation.ValidateRequired(f.name, f.value); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	for _, f := range []struct{ name, value string }{
		{validation.RAField, star.RA},
		{validation.DecField, star.Dec},
		{validation.MagField, star.Mag},
		{validation.CenField, star.Cen},
	} {
		if err := validation.ValidateShortTextLength(f.name, f.value); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	if err := validation.ValidateStory(star.Story, s.maxStoryBytes); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// RequestValidation opens a notarization request for address.
func (s *Service) RequestValidation(address string) (mempool.Challenge, error) {
	if err := validateAddress(address); err != nil {
		monitoring.RecordRejected(monitoring.RejectedInvalidPayload)
		return mempool.Challenge{}, err
	}
	return s.pool.RequestChallenge(address)
}

// ValidateSignature proves ownership of address for its pending request.
func (s *Service) ValidateSignature(address, signature string) (mempool.Status, error) {
	if err := validateAddress(address); err != nil {
		monitoring.RecordRejected(monitoring.RejectedInvalidPayload)
		return mempool.Status{}, err
	}
	if err := validation.ValidateRequired(validation.SignatureField, signature); err != nil {
		monitoring.RecordRejected(monitoring.RejectedInvalidPayload)
		return mempool.Status{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.pool.SubmitSignature(address, signature)
}

// SubmitStar appends star for address. The verified request is consumed only
// when the block is committed, so a store failure leaves it usable for a retry
// within the same window. Each verification admits exactly one star.
func (s *Service) SubmitStar(ctx context.Context, address string, star Star) (*StarBlock, error) {
	if err := validateAddress(address); err != nil {
		monitoring.RecordRejected(monitoring.RejectedInvalidPayload)
		return nil, err
	}
	if err := s.validateStar(star); err != nil {
		monitoring.RecordRejected(monitoring.RejectedInvalidPayload)
		return nil, err
	}
	payload, err := encodeStar(star)
	if err != nil {
		return nil, err
	}

	var committed *block.Block
	ok, err := s.pool.ConsumeWith(address, func() error {
		b, err := s.chain.Append(ctx, block.Body{ClaimantAddress: address, Payload: payload})
		if err != nil {
			return err
		}
		committed = b
		return nil
	})
	if err != nil {
		monitoring.RecordRejected(monitoring.RejectedStoreFailure)
		logx.Error("NOTARY", "Failed to append star for ", address, ": ", err)
		return nil, err
	}
	if !ok {
		monitoring.RecordRejected(monitoring.RejectedNotAuthorized)
		return nil, ErrNotAuthorized
	}

	s.bus.Publish(events.NewBlockAppended(address, committed.Height, committed.Hash, time.Unix(committed.Time, 0)))
	logx.Info("NOTARY", fmt.Sprintf("Star registered address=%s height=%d", address, committed.Height))
	return View(committed)
}

func (s *Service) GetByHeight(ctx context.Context, h uint64) (*StarBlock, error) {
	b, err := s.chain.GetByHeight(ctx, h)
	if err != nil {
		return nil, err
	}
	return View(b)
}

func (s *Service) GetByHash(ctx context.Context, hash string) (*StarBlock, error) {
	b, err := s.chain.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return View(b)
}

// GetByAddress returns every star registered by address, oldest first.
func (s *Service) GetByAddress(ctx context.Context, address string) ([]*StarBlock, error) {
	blocks, err := s.chain.GetByClaimant(ctx, address)
	if err != nil {
		return nil, err
	}
	out := make([]*StarBlock, 0, len(blocks))
	for _, b := range blocks {
		sb, err := View(b)
		if err != nil {
			return nil, err
		}
		out = append(out, sb)
	}
	return out, nil
}

func (s *Service) Height(ctx context.Context) (uint64, error) {
	return s.chain.Height(ctx)
}

func (s *Service) ValidateChain(ctx context.Context) ([]uint64, error) {
	return s.chain.ValidateChain(ctx)
}
