package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kevin07696/slot-billing/internal/auth"
	"github.com/kevin07696/slot-billing/internal/domain"
	svc "github.com/kevin07696/slot-billing/internal/services/billing"
	"github.com/kevin07696/slot-billing/internal/services/pricing"
	"github.com/kevin07696/slot-billing/pkg/observability"
	"go.uber.org/zap"
)

const (
	// MaxWebhookBodyBytes caps gateway webhook payloads
	MaxWebhookBodyBytes = 1 << 20
	maxJSONBodyBytes    = 64 << 10

	// StripeSignatureHeader carries the webhook HMAC
	StripeSignatureHeader = "Stripe-Signature"
)

// IntentCreator opens payment intents for slot purchases
type IntentCreator interface {
	CreatePurchaseIntent(ctx context.Context, actor domain.Actor, req svc.PurchaseRequest) (*svc.PurchaseIntent, error)
}

// Reconciler completes payments from webhooks and client verification
type Reconciler interface {
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*svc.WebhookResult, error)
	VerifyPayment(ctx context.Context, actor domain.Actor, paymentIntentID string, paymentRecordID int64) (*domain.CompletionResult, error)
}

// PriceManager reads and updates the pricing catalog
type PriceManager interface {
	UpsertPrice(ctx context.Context, actor domain.Actor, req pricing.UpsertPriceRequest) (*domain.PricingEntry, error)
	ListPrices(ctx context.Context) ([]*domain.PricingEntry, error)
}

// Queries serves payment records and slot counters
type Queries interface {
	GetPaymentRecord(ctx context.Context, actor domain.Actor, id int64) (*domain.PaymentRecord, error)
	GetCompanySlots(ctx context.Context, actor domain.Actor, companyID int64) (*svc.CompanySlots, error)
}

// Handler exposes the billing HTTP API
type Handler struct {
	intents  IntentCreator
	recon    Reconciler
	prices   PriceManager
	queries  Queries
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a new billing HTTP handler
func NewHandler(
	intents IntentCreator,
	recon Reconciler,
	prices PriceManager,
	queries Queries,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		intents:  intents,
		recon:    recon,
		prices:   prices,
		queries:  queries,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes mounts the billing API on mux. authenticated wraps every
// route except the gateway webhook, which authenticates by signature.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, authenticated func(http.Handler) http.Handler) {
	route := func(pattern string, handler http.Handler) {
		mux.Handle(pattern, observability.InstrumentHandler(pattern, handler))
	}

	route("POST /api/v1/billing/webhooks/stripe", http.HandlerFunc(h.StripeWebhook))

	route("POST /api/v1/billing/purchase-intents", authenticated(http.HandlerFunc(h.CreatePurchaseIntent)))
	route("POST /api/v1/billing/verify", authenticated(http.HandlerFunc(h.VerifyPayment)))
	route("GET /api/v1/billing/pricing", authenticated(http.HandlerFunc(h.ListPrices)))
	route("PUT /api/v1/billing/pricing", authenticated(http.HandlerFunc(h.UpsertPrice)))
	route("GET /api/v1/billing/payments/{id}", authenticated(http.HandlerFunc(h.GetPaymentRecord)))
	route("GET /api/v1/companies/{id}/slots", authenticated(http.HandlerFunc(h.GetCompanySlots)))
}

// CreatePurchaseIntent handles POST /api/v1/billing/purchase-intents
func (h *Handler) CreatePurchaseIntent(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req PurchaseIntentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	intent, err := h.intents.CreatePurchaseIntent(r.Context(), actor, toPurchaseRequest(req))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// VerifyPayment handles POST /api/v1/billing/verify
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req VerifyPaymentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.recon.VerifyPayment(r.Context(), actor, req.PaymentIntentID, req.PaymentRecordID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerifyResponse(result))
}

// StripeWebhook handles POST /api/v1/billing/webhooks/stripe. The raw body
// is passed through untouched since the signature covers its exact bytes.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: errorDetail{
				Code:    string(domain.ErrorCodeValidationFailed),
				Message: "webhook payload too large",
			}})
			return
		}
		writeError(w, r, h.logger, domain.WrapError(domain.ErrorCodeValidationFailed, "failed to read webhook body", err))
		return
	}

	result, err := h.recon.HandleWebhook(r.Context(), payload, r.Header.Get(StripeSignatureHeader))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, WebhookResponse{
		Received: true,
		Status:   result.Status,
		EventID:  result.EventID,
	})
}

// ListPrices handles GET /api/v1/billing/pricing
func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	entries, err := h.prices.ListPrices(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := make([]PriceResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toPriceResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"prices": resp})
}

// UpsertPrice handles PUT /api/v1/billing/pricing
func (h *Handler) UpsertPrice(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req UpsertPriceRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entry, err := h.prices.UpsertPrice(r.Context(), actor, pricing.UpsertPriceRequest{
		SlotType:     req.SlotType,
		Currency:     req.Currency,
		PricePerUnit: req.PricePerUnit,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPriceResponse(entry))
}

// GetPaymentRecord handles GET /api/v1/billing/payments/{id}
func (h *Handler) GetPaymentRecord(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	rec, err := h.queries.GetPaymentRecord(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentRecordResponse(rec))
}

// GetCompanySlots handles GET /api/v1/companies/{id}/slots
func (h *Handler) GetCompanySlots(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	slots, err := h.queries.GetCompanySlots(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// decode reads a JSON body into dst and validates its struct tags
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.WrapError(domain.ErrorCodeValidationFailed, "invalid JSON body", err)
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.WrapError(domain.ErrorCodeValidationFailed,
				fmt.Sprintf("%s failed %s validation", jsonName(fe.Field()), fe.Tag()), err).
				WithDetail("field", jsonName(fe.Field()))
		}
		return domain.WrapError(domain.ErrorCodeValidationFailed, "invalid request", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewDomainError(domain.ErrorCodeValidationFailed, "id must be a positive integer").
			WithDetail("id", raw)
	}
	return id, nil
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
