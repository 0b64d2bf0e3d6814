// Package gift keeps the free-gift line of a cart in step with the
// promotion's qualification rule.
package gift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	"github.com/dinhdungweb/Helios-account/internal/event"
	"github.com/dinhdungweb/Helios-account/internal/lock"
	apperrors "github.com/dinhdungweb/Helios-account/pkg/errors"
	"github.com/dinhdungweb/Helios-account/pkg/slug"
)

// Storefront is the part of the storefront API the manager uses.
type Storefront interface {
	GetCart(ctx context.Context, token string) (*domain.Cart, error)
	AddLine(ctx context.Context, token string, variantID int64, quantity int, properties map[string]string) error
	ChangeLineQuantity(ctx context.Context, token, key string, quantity int) error
}

// MembershipChecker verifies collection membership.
type MembershipChecker interface {
	InCollection(ctx context.Context, productID int64, handle string) (member, known bool)
}

// Outcome is what a sync did to the cart.
type Outcome string

// Sync outcomes.
const (
	OutcomeDisabled  Outcome = "disabled"
	OutcomeAdded     Outcome = "added"
	OutcomeRemoved   Outcome = "removed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeAvailable Outcome = "available"
	OutcomeInFlight  Outcome = "in_flight"
)

// SyncResult describes the cart after a sync.
type SyncResult struct {
	Outcome     Outcome `json:"outcome"`
	Qualifies   bool    `json:"qualifies"`
	GiftPresent bool    `json:"gift_present"`
	Label       string  `json:"label,omitempty"`
	Message     string  `json:"message,omitempty"`
}

// Manager applies the free-gift promotion to carts.
type Manager struct {
	cfg      Config
	store    Storefront
	members  MembershipChecker
	guard    lock.Guard
	producer *event.Producer
	logger   *slog.Logger
}

// NewManager creates a gift manager. members may be nil when the trigger
// does not need collection membership.
func NewManager(cfg Config, store Storefront, members MembershipChecker, guard lock.Guard, producer *event.Producer, logger *slog.Logger) *Manager {
	cfg.TriggerCollection = slug.Handle(cfg.TriggerCollection)
	return &Manager{
		cfg:      cfg,
		store:    store,
		members:  members,
		guard:    guard,
		producer: producer,
		logger:   logger,
	}
}

// Config returns the active promotion.
func (m *Manager) Config() Config {
	return m.cfg
}

// Sync adds the gift to a qualifying cart in auto mode and removes it from
// a cart that no longer qualifies.
func (m *Manager) Sync(ctx context.Context, cartToken string) (*SyncResult, error) {
	return m.withCart(ctx, cartToken, func(ctx context.Context, cart *domain.Cart) (*SyncResult, error) {
		qualifies := m.Qualifies(ctx, cart)
		gifts := m.giftLines(cart)
		res := m.result(qualifies, len(gifts) > 0)

		switch {
		case qualifies && len(gifts) == 0 && m.cfg.Mode == ModeAuto:
			if err := m.add(ctx, cartToken); err != nil {
				return nil, err
			}
			res.Outcome, res.GiftPresent = OutcomeAdded, true
		case qualifies && len(gifts) == 0:
			res.Outcome = OutcomeAvailable
		case !qualifies && len(gifts) > 0:
			if err := m.remove(ctx, cartToken, gifts); err != nil {
				return nil, err
			}
			res.Outcome, res.GiftPresent = OutcomeRemoved, false
		}
		return res, nil
	})
}

// Add puts the gift into a qualifying cart; used by the manual-mode button.
func (m *Manager) Add(ctx context.Context, cartToken string) (*SyncResult, error) {
	if !m.cfg.Enabled {
		return nil, apperrors.InvalidInput("free gift promotion is not active")
	}
	return m.withCart(ctx, cartToken, func(ctx context.Context, cart *domain.Cart) (*SyncResult, error) {
		if !m.Qualifies(ctx, cart) {
			return nil, apperrors.InvalidInput("cart does not qualify for the free gift")
		}
		res := m.result(true, len(m.giftLines(cart)) > 0)
		if res.GiftPresent {
			return res, nil
		}
		if err := m.add(ctx, cartToken); err != nil {
			return nil, err
		}
		res.Outcome, res.GiftPresent = OutcomeAdded, true
		return res, nil
	})
}

func (m *Manager) withCart(ctx context.Context, cartToken string, fn func(context.Context, *domain.Cart) (*SyncResult, error)) (*SyncResult, error) {
	if !m.cfg.Enabled {
		SyncOutcomes.WithLabelValues(string(OutcomeDisabled)).Inc()
		return &SyncResult{Outcome: OutcomeDisabled}, nil
	}
	if strings.TrimSpace(cartToken) == "" {
		return nil, apperrors.InvalidInput("cart token is required")
	}

	release, err := m.guard.TryAcquire(ctx, "gift:"+cartToken)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			SyncOutcomes.WithLabelValues(string(OutcomeInFlight)).Inc()
			return &SyncResult{Outcome: OutcomeInFlight}, nil
		}
		return nil, apperrors.ServiceUnavailable("gift guard unavailable")
	}
	defer release()

	cart, err := m.store.GetCart(ctx, cartToken)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	res, err := fn(ctx, cart)
	if err != nil {
		return nil, err
	}
	SyncOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

// Qualifies evaluates the trigger against the cart's paid lines.
func (m *Manager) Qualifies(ctx context.Context, cart *domain.Cart) bool {
	paid := m.paidLines(cart)
	if len(paid) == 0 {
		return false
	}

	switch m.cfg.Trigger {
	case TriggerAny:
		return true
	case TriggerCollection:
		for _, l := range paid {
			if m.inTriggerCollection(ctx, l) {
				return true
			}
		}
		return false
	case TriggerMinimum:
		var total int64
		for _, l := range paid {
			total += l.FinalPrice()
		}
		return total >= m.cfg.MinimumAmount
	case TriggerProduct:
		for _, l := range paid {
			if l.Item.ProductID == m.cfg.TriggerProductID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (m *Manager) inTriggerCollection(ctx context.Context, l domain.CartLine) bool {
	for _, h := range l.PropertyCollectionHandles() {
		if h == m.cfg.TriggerCollection {
			return true
		}
	}
	if m.members == nil {
		return false
	}
	member, known := m.members.InCollection(ctx, l.Item.ProductID, m.cfg.TriggerCollection)
	return known && member
}

// isGift reports whether l is the promotion's gift.
func (m *Manager) isGift(l domain.CartLine) bool {
	if l.IsFreeGift() {
		return true
	}
	if m.cfg.VariantID != 0 && l.Item.VariantID == m.cfg.VariantID {
		return true
	}
	return m.cfg.ProductID != 0 && l.Item.ProductID == m.cfg.ProductID
}

func (m *Manager) paidLines(cart *domain.Cart) []domain.CartLine {
	if cart.IsEmpty() {
		return nil
	}
	out := make([]domain.CartLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		if !m.isGift(l) {
			out = append(out, l)
		}
	}
	return out
}

func (m *Manager) giftLines(cart *domain.Cart) []domain.CartLine {
	if cart.IsEmpty() {
		return nil
	}
	var out []domain.CartLine
	for _, l := range cart.Lines {
		if m.isGift(l) {
			out = append(out, l)
		}
	}
	return out
}

func (m *Manager) add(ctx context.Context, cartToken string) error {
	props := map[string]string{
		domain.PropertyFreeGift:  "true",
		domain.PropertyGiftLabel: m.cfg.Label,
	}
	if err := m.store.AddLine(ctx, cartToken, m.cfg.VariantID, m.cfg.Quantity, props); err != nil {
		return fmt.Errorf("add gift: %w", err)
	}

	m.logger.InfoContext(ctx, "free gift added",
		slog.Int64("variant_id", m.cfg.VariantID),
		slog.String("trigger", string(m.cfg.Trigger)),
	)
	if err := m.producer.PublishGiftAdded(ctx, m.eventData(cartToken, m.cfg.Quantity)); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish gift added event", slog.String("error", err.Error()))
	}
	return nil
}

func (m *Manager) remove(ctx context.Context, cartToken string, gifts []domain.CartLine) error {
	for _, l := range gifts {
		if err := m.store.ChangeLineQuantity(ctx, cartToken, l.Key, 0); err != nil {
			return fmt.Errorf("remove gift line %s: %w", l.Key, err)
		}
	}

	m.logger.InfoContext(ctx, "free gift removed",
		slog.Int("lines", len(gifts)),
		slog.String("trigger", string(m.cfg.Trigger)),
	)
	if err := m.producer.PublishGiftRemoved(ctx, m.eventData(cartToken, 0)); err != nil {
		m.logger.ErrorContext(ctx, "failed to publish gift removed event", slog.String("error", err.Error()))
	}
	return nil
}

func (m *Manager) eventData(cartToken string, quantity int) event.GiftData {
	return event.GiftData{
		CartToken: cartToken,
		ProductID: m.cfg.ProductID,
		VariantID: m.cfg.VariantID,
		Quantity:  quantity,
		Trigger:   string(m.cfg.Trigger),
	}
}

func (m *Manager) result(qualifies, present bool) *SyncResult {
	res := &SyncResult{
		Outcome:     OutcomeUnchanged,
		Qualifies:   qualifies,
		GiftPresent: present,
	}
	if qualifies {
		res.Label = m.cfg.Label
		res.Message = m.cfg.Message
	}
	return res
}
