// Package stripe adapts the Stripe PaymentIntents API to the PaymentGateway port.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain"
	"github.com/kevin07696/slot-billing/internal/domain/ports"
	pkghttp "github.com/kevin07696/slot-billing/pkg/http"
	"github.com/kevin07696/slot-billing/pkg/resilience"
	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"
)

// Config holds Stripe credentials and client settings
type Config struct {
	SecretKey     string
	WebhookSecret string

	// BaseURL overrides the API host, for tests
	BaseURL string

	Timeout           time.Duration
	MaxNetworkRetries int64
	Breaker           resilience.BreakerConfig

	// Timeouts bounds each API call, including stripe-go's own retries
	Timeouts *resilience.TimeoutConfig
}

// Gateway implements ports.PaymentGateway on top of stripe-go
type Gateway struct {
	intents       paymentintent.Client
	breaker       *resilience.CircuitBreaker
	timeouts      *resilience.TimeoutConfig
	webhookSecret string
	logger        *zap.Logger
}

// NewGateway creates a Stripe gateway with its own pooled HTTP client
func NewGateway(cfg Config, logger *zap.Logger) (*Gateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	backendCfg := &stripego.BackendConfig{
		HTTPClient:        pkghttp.NewHTTPClient(pkghttp.GatewayClientConfig(), cfg.Timeout),
		MaxNetworkRetries: stripego.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &leveledLogger{logger: logger.Named("stripe")},
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripego.String(cfg.BaseURL)
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.CoolDown == 0 {
		breakerCfg = resilience.DefaultBreakerConfig()
	}
	breakerCfg.Counts = isUpstreamFault

	if cfg.Timeouts == nil {
		cfg.Timeouts = resilience.DefaultTimeoutConfig()
	}

	logger.Info("stripe gateway initialized",
		zap.Bool("custom_base_url", cfg.BaseURL != ""),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int64("max_network_retries", cfg.MaxNetworkRetries))

	return &Gateway{
		intents: paymentintent.Client{
			B:   stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		breaker:       resilience.NewCircuitBreaker(breakerCfg),
		timeouts:      cfg.Timeouts,
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}, nil
}

// CreatePaymentIntent opens an intent with automatic payment methods. The
// idempotency key makes a retried call return the same intent.
func (g *Gateway) CreatePaymentIntent(ctx context.Context, req *ports.PaymentIntentRequest) (*ports.PaymentIntent, error) {
	amount, err := toMinorUnits(req.Amount, req.Currency)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "invalid intent amount", err)
	}

	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(amount),
		Currency: stripego.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripego.String(req.Description)
	}
	callCtx, cancel := g.timeouts.GatewayContext(ctx)
	defer cancel()
	params.Context = callCtx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	var pi *stripego.PaymentIntent
	err = g.breaker.Execute(func() error {
		var callErr error
		pi, callErr = g.intents.New(params)
		return callErr
	})
	if err != nil {
		return nil, g.gatewayError("create payment intent", err)
	}

	return toPort(pi), nil
}

// GetPaymentIntent retrieves the current state of an intent
func (g *Gateway) GetPaymentIntent(ctx context.Context, intentID string) (*ports.PaymentIntent, error) {
	callCtx, cancel := g.timeouts.GatewayContext(ctx)
	defer cancel()
	params := &stripego.PaymentIntentParams{}
	params.Context = callCtx

	var pi *stripego.PaymentIntent
	err := g.breaker.Execute(func() error {
		var callErr error
		pi, callErr = g.intents.Get(intentID, params)
		return callErr
	})
	if err != nil {
		return nil, g.gatewayError("retrieve payment intent", err).WithDetail("payment_intent_id", intentID)
	}

	return toPort(pi), nil
}

// ParseWebhookEvent checks the Stripe-Signature header against the raw body
// before decoding anything
func (g *Gateway) ParseWebhookEvent(payload []byte, signatureHeader string) (*ports.GatewayEvent, error) {
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeInvalidSignature, "missing Stripe-Signature header")
	}
	if err := webhook.ValidatePayload(payload, signatureHeader, g.webhookSecret); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInvalidSignature, "webhook signature verification failed", err)
	}

	var event stripego.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "malformed webhook event", err)
	}

	out := &ports.GatewayEvent{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "payment_intent.") || event.Data == nil {
		return out, nil
	}

	var pi stripego.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "malformed payment intent in webhook", err)
	}
	out.Intent = toPort(&pi)
	return out, nil
}

func (g *Gateway) gatewayError(op string, err error) *domain.DomainError {
	de := domain.WrapError(domain.ErrorCodeGatewayError, op, err)

	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		de.WithDetail("http_status", stripeErr.HTTPStatusCode).
			WithDetail("stripe_code", string(stripeErr.Code)).
			WithDetail("request_id", stripeErr.RequestID)
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		de.WithDetail("circuit", "open")
	}

	g.logger.Error("stripe call failed", zap.String("operation", op), zap.Error(err))
	return de
}

func toPort(pi *stripego.PaymentIntent) *ports.PaymentIntent {
	currency := string(pi.Currency)
	out := &ports.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       ports.IntentStatus(pi.Status),
		Currency:     strings.ToUpper(currency),
		Amount:       fromMinorUnits(pi.Amount, currency),
		Metadata:     make(map[string]string, len(pi.Metadata)),
	}
	for k, v := range pi.Metadata {
		out.Metadata[k] = v
	}
	if pi.Charges != nil && len(pi.Charges.Data) > 0 && pi.Charges.Data[0] != nil {
		out.TransactionID = pi.Charges.Data[0].ID
	}
	return out
}

// isUpstreamFault trips the breaker on network errors and 5xx/429 only
func isUpstreamFault(err error) bool {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return true
}

// leveledLogger routes stripe-go's internal logging through zap
type leveledLogger struct {
	logger *zap.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
