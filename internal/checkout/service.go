// Package checkout runs checkout attempts: one cart read, one decision and
// one routed action per attempt, serialized per cart.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dinhdungweb/Helios-account/internal/domain"
	"github.com/dinhdungweb/Helios-account/internal/draftorder"
	"github.com/dinhdungweb/Helios-account/internal/event"
	"github.com/dinhdungweb/Helios-account/internal/lock"
	"github.com/dinhdungweb/Helios-account/internal/pricing"
	"github.com/dinhdungweb/Helios-account/internal/session"
	apperrors "github.com/dinhdungweb/Helios-account/pkg/errors"
	"github.com/dinhdungweb/Helios-account/pkg/logger"
	"github.com/dinhdungweb/Helios-account/pkg/tracing"
)

// Storefront is the part of the storefront API an attempt uses.
type Storefront interface {
	GetCart(ctx context.Context, token string) (*domain.Cart, error)
	AddLine(ctx context.Context, token string, variantID int64, quantity int, properties map[string]string) error
	ClearCart(ctx context.Context, token string) error
	CheckoutURL() (*url.URL, error)
}

// OrderBuilder creates manual orders.
type OrderBuilder interface {
	Build(ctx context.Context, in draftorder.BuildInput) (*url.URL, error)
}

// Result is the outcome of a checkout attempt.
type Result struct {
	AttemptID   string                  `json:"attempt_id"`
	State       domain.AttemptState     `json:"state"`
	RedirectURL string                  `json:"redirect_url,omitempty"`
	Decision    domain.CheckoutDecision `json:"decision,omitempty"`
	CartCleared bool                    `json:"cart_cleared"`
	History     []domain.AttemptState   `json:"history"`
}

// BuyNowInput adds one variant before checking out.
type BuyNowInput struct {
	Handle    string
	VariantID int64
	Quantity  int
}

// Service orchestrates checkout attempts.
type Service struct {
	store    Storefront
	catalog  pricing.CatalogReader
	builder  OrderBuilder
	guard    lock.Guard
	hints    session.HintStore
	producer *event.Producer
	codes    pricing.CodeBook
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService creates a checkout service. hints may be nil.
func NewService(
	store Storefront,
	catalog pricing.CatalogReader,
	builder OrderBuilder,
	guard lock.Guard,
	hints session.HintStore,
	producer *event.Producer,
	codes pricing.CodeBook,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		catalog:  catalog,
		builder:  builder,
		guard:    guard,
		hints:    hints,
		producer: producer,
		codes:    codes,
		logger:   logger,
		tracer:   tracing.Tracer("checkout"),
	}
}

type attemptOptions struct {
	kind        string
	forceManual bool
	// prepare runs under the guard before the cart is read and returns
	// percents to carry into the order.
	prepare func(ctx context.Context) (map[int64]int, error)
}

// Checkout classifies the cart and routes it to the discounted checkout or
// a manual draft order.
func (s *Service) Checkout(ctx context.Context, sc *session.Context, cartToken string) (*Result, error) {
	return s.run(ctx, sc, cartToken, attemptOptions{kind: "checkout"})
}

// ForceDraftOrder skips classification and always builds a manual order.
func (s *Service) ForceDraftOrder(ctx context.Context, sc *session.Context, cartToken string) (*Result, error) {
	return s.run(ctx, sc, cartToken, attemptOptions{kind: "draft_order", forceManual: true})
}

// BuyNow adds a variant to the cart and checks out. The variant's percent
// is resolved from a fresh product read and carried into the order.
func (s *Service) BuyNow(ctx context.Context, sc *session.Context, cartToken string, in BuyNowInput) (*Result, error) {
	if in.VariantID <= 0 || in.Quantity <= 0 || strings.TrimSpace(in.Handle) == "" {
		return nil, apperrors.InvalidInput("handle, variant_id and a positive quantity are required")
	}

	return s.run(ctx, sc, cartToken, attemptOptions{
		kind: "buy_now",
		prepare: func(ctx context.Context) (map[int64]int, error) {
			_, items, err := s.catalog.ProductItems(ctx, in.Handle, sc.Policy.Collections)
			if err != nil {
				return nil, fmt.Errorf("read product %s: %w", in.Handle, err)
			}
			var carried map[int64]int
			found := false
			for _, item := range items {
				if item.VariantID == in.VariantID {
					found = true
					if sc.Tiered() {
						carried = map[int64]int{item.VariantID: pricing.Resolve(sc.Tier, item, sc.Policy).Percent}
					}
					break
				}
			}
			if !found {
				return nil, apperrors.NotFound("variant", fmt.Sprintf("%d", in.VariantID))
			}
			if err := s.store.AddLine(ctx, cartToken, in.VariantID, in.Quantity, nil); err != nil {
				return nil, fmt.Errorf("add to cart: %w", err)
			}
			return carried, nil
		},
	})
}

func (s *Service) run(ctx context.Context, sc *session.Context, cartToken string, opts attemptOptions) (res *Result, err error) {
	if sc == nil {
		return nil, apperrors.Unauthorized("session required")
	}
	if strings.TrimSpace(cartToken) == "" {
		return nil, apperrors.InvalidInput("cart token is required")
	}

	// One attempt per cart, whichever session triggers it.
	release, err := s.guard.TryAcquire(ctx, guardKey(cartToken))
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			GuardRejections.Inc()
			s.log(ctx).InfoContext(ctx, "checkout trigger ignored, attempt in flight",
				slog.String("session_id", sc.ID),
			)
			return nil, apperrors.CheckoutInFlight()
		}
		return nil, apperrors.ServiceUnavailable("checkout guard unavailable")
	}
	defer release()

	attempt := domain.NewAttempt(uuid.NewString(), sc.ID)
	ctx = logger.WithAttemptID(ctx, attempt.ID)
	ctx, span := s.tracer.Start(ctx, "checkout.attempt", trace.WithAttributes(
		attribute.String("checkout.attempt_id", attempt.ID),
		attribute.String("checkout.kind", opts.kind),
		attribute.Bool("checkout.tiered", sc.Tiered()),
	))
	defer func() {
		if res != nil {
			span.SetAttributes(attribute.String("checkout.state", string(res.State)))
		}
		tracing.End(span, err)
	}()

	res, err = s.attempt(ctx, sc, cartToken, attempt, opts)
	if err != nil {
		s.fail(ctx, sc, attempt, err)
		return nil, err
	}
	AttemptsTotal.WithLabelValues(string(res.State)).Inc()
	return res, nil
}

func (s *Service) attempt(ctx context.Context, sc *session.Context, cartToken string, a *domain.Attempt, opts attemptOptions) (*Result, error) {
	if err := a.Transition(domain.AttemptResolving); err != nil {
		return nil, err
	}

	carried := map[int64]int{}
	if opts.prepare != nil {
		extra, err := opts.prepare(ctx)
		if err != nil {
			return nil, err
		}
		maps.Copy(carried, extra)
	}

	cart, err := s.store.GetCart(ctx, cartToken)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if cart.IsEmpty() {
		if err := a.Transition(domain.AttemptIdle); err != nil {
			return nil, err
		}
		s.log(ctx).InfoContext(ctx, "checkout skipped, cart is empty")
		return result(a, nil, ""), nil
	}

	if err := s.catalog.Enrich(ctx, cart, sc.Policy.Collections); err != nil {
		return nil, fmt.Errorf("enrich cart: %w", err)
	}

	decision, err := s.decide(sc, cart, opts.forceManual)
	if err != nil {
		return nil, err
	}
	s.revalidateHints(ctx, sc, decision)

	checkoutURL, err := s.store.CheckoutURL()
	if err != nil {
		return nil, err
	}
	action, err := Route(decision, checkoutURL)
	if err != nil {
		return nil, err
	}

	switch act := action.(type) {
	case CodeAction:
		return s.navigateWithCode(ctx, sc, cart, a, decision, act)
	case DraftOrderAction:
		for variant, percent := range act.Carried {
			if _, ok := carried[variant]; !ok {
				carried[variant] = percent
			}
		}
		return s.createDraftOrder(ctx, sc, cartToken, cart, a, act, carried)
	default:
		return nil, fmt.Errorf("unhandled checkout action %T", action)
	}
}

func (s *Service) decide(sc *session.Context, cart *domain.Cart, forceManual bool) (domain.CheckoutDecision, error) {
	if forceManual {
		return pricing.ManualOrderFor(pricing.ResolveCart(sc.Tier, sc.Policy, cart)), nil
	}
	return pricing.Classify(sc.Tier, sc.Policy, cart, s.codes)
}

func (s *Service) navigateWithCode(
	ctx context.Context,
	sc *session.Context,
	cart *domain.Cart,
	a *domain.Attempt,
	decision domain.CheckoutDecision,
	act CodeAction,
) (*Result, error) {
	if err := a.Transition(domain.AttemptCodeReady); err != nil {
		return nil, err
	}
	s.publishRouted(ctx, sc, cart, a, decision)

	if s.hints != nil && sc.Tiered() {
		code := decision.(domain.SingleDiscountCode)
		if err := s.hints.SaveDiscount(ctx, sc.ID, code.Code, string(code.Origin)); err != nil {
			s.log(ctx).WarnContext(ctx, "failed to store discount hint", slog.String("error", err.Error()))
		}
	}

	if err := a.Transition(domain.AttemptNavigated); err != nil {
		return nil, err
	}
	s.log(ctx).InfoContext(ctx, "checkout routed to discount code",
		slog.String("code", act.Code),
		slog.Int("lines", len(cart.Lines)),
	)
	return result(a, decision, act.URL.String()), nil
}

func (s *Service) createDraftOrder(
	ctx context.Context,
	sc *session.Context,
	cartToken string,
	cart *domain.Cart,
	a *domain.Attempt,
	act DraftOrderAction,
	carried map[int64]int,
) (*Result, error) {
	if err := a.Transition(domain.AttemptBuildingOrder); err != nil {
		return nil, err
	}
	s.publishRouted(ctx, sc, cart, a, act.Order)

	var presented *domain.PresentedState
	if s.hints != nil {
		p, err := s.hints.LoadPresented(ctx, sc.ID)
		if err != nil {
			s.log(ctx).WarnContext(ctx, "failed to load presented quote", slog.String("error", err.Error()))
		}
		presented = p
	}

	in := draftorder.BuildInput{
		Cart:          cart,
		CustomerID:    sc.CustomerID,
		CustomerEmail: sc.CustomerEmail,
		Tier:          sc.Tier,
		Policy:        sc.Policy,
		Carried:       carried,
		Presented:     presented,
	}

	start := time.Now()
	invoice, err := s.builder.Build(ctx, in)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	DraftOrderDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if err := a.Transition(domain.AttemptOrderCreated); err != nil {
		return nil, err
	}
	lines := draftorder.Lines(in)
	var total int64
	for _, l := range lines {
		total += l.LineTotal()
	}
	if err := s.producer.PublishDraftOrderCreated(ctx, event.DraftOrderCreatedData{
		AttemptID:  a.ID,
		CustomerID: sc.CustomerID,
		Lines:      lines,
		Total:      total,
		InvoiceURL: invoice.String(),
	}); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish draft order created event",
			slog.String("error", err.Error()),
		)
	}

	cleared := false
	if err := s.store.ClearCart(ctx, cartToken); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to clear cart after draft order, navigating anyway",
			slog.String("error", err.Error()),
		)
	} else {
		cleared = true
		if err := a.Transition(domain.AttemptCartCleared); err != nil {
			return nil, err
		}
	}

	if err := a.Transition(domain.AttemptNavigated); err != nil {
		return nil, err
	}
	s.log(ctx).InfoContext(ctx, "checkout routed to draft order",
		slog.Int("lines", len(lines)),
		slog.Int64("total", total),
		slog.Bool("cart_cleared", cleared),
	)

	res := result(a, domain.ManualOrder{Lines: lines}, invoice.String())
	res.CartCleared = cleared
	return res, nil
}

// revalidateHints compares the cached discount code against the fresh
// decision. The cached value never influences the outcome.
func (s *Service) revalidateHints(ctx context.Context, sc *session.Context, decision domain.CheckoutDecision) {
	if s.hints == nil || !sc.Tiered() {
		return
	}
	h, err := s.hints.LoadHints(ctx, sc.ID)
	if err != nil || h == nil {
		return
	}

	mismatch := h.TierPercent != sc.Tier.DefaultPercent
	if code, ok := decision.(domain.SingleDiscountCode); ok && h.DiscountCode != "" && h.DiscountCode != code.Code {
		mismatch = true
	}
	if mismatch {
		HintMismatches.Inc()
		s.log(ctx).InfoContext(ctx, "session hint differs from fresh resolution",
			slog.String("hint_code", h.DiscountCode),
			slog.Int("hint_percent", h.TierPercent),
			slog.Int("tier_percent", sc.Tier.DefaultPercent),
		)
	}
}

func (s *Service) publishRouted(ctx context.Context, sc *session.Context, cart *domain.Cart, a *domain.Attempt, decision domain.CheckoutDecision) {
	data := event.CheckoutRoutedData{
		AttemptID:   a.ID,
		SessionID:   sc.ID,
		CustomerID:  sc.CustomerID,
		Decision:    decision.Kind(),
		LineCount:   len(cart.Lines),
		Fingerprint: cart.Fingerprint(),
	}
	origin := domain.OriginNone
	if sc.Tiered() {
		data.Tier = sc.Tier.Name
	}
	if code, ok := decision.(domain.SingleDiscountCode); ok {
		data.Code = code.Code
		data.Percent = code.Percent
		data.Origin = code.Origin
		origin = code.Origin
	}
	DecisionsTotal.WithLabelValues(string(decision.Kind()), string(origin)).Inc()

	if err := s.producer.PublishCheckoutRouted(ctx, data); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish checkout routed event",
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) fail(ctx context.Context, sc *session.Context, a *domain.Attempt, cause error) {
	failedAt := a.State
	a.Fail()
	AttemptsTotal.WithLabelValues(string(domain.AttemptFailed)).Inc()

	level := slog.LevelError
	if errors.Is(cause, apperrors.ErrIdentityMissing) || errors.Is(cause, apperrors.ErrInvalidInput) ||
		errors.Is(cause, apperrors.ErrNotFound) {
		level = slog.LevelWarn
	}
	s.log(ctx).Log(ctx, level, "checkout attempt failed",
		slog.String("failed_at", string(failedAt)),
		slog.String("error", cause.Error()),
	)

	if err := s.producer.PublishCheckoutFailed(ctx, event.CheckoutFailedData{
		AttemptID:     a.ID,
		CustomerID:    sc.CustomerID,
		FailedAt:      failedAt,
		FailureReason: cause.Error(),
		Retryable:     apperrors.IsRetryable(cause),
	}); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish checkout failed event",
			slog.String("error", err.Error()),
		)
	}
}

func guardKey(cartToken string) string {
	return "checkout:" + strings.TrimSpace(cartToken)
}

func result(a *domain.Attempt, decision domain.CheckoutDecision, redirect string) *Result {
	return &Result{
		AttemptID:   a.ID,
		State:       a.State,
		RedirectURL: redirect,
		Decision:    decision,
		History:     append([]domain.AttemptState(nil), a.History...),
	}
}

// log returns the service logger enriched with the attempt and trace ids in ctx.
func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}
