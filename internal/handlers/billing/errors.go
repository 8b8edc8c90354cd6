package billing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kevin07696/slot-billing/internal/auth"
	"github.com/kevin07696/slot-billing/internal/domain"
	"go.uber.org/zap"
)

// errorBody is the JSON error envelope returned by every billing endpoint
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPStatus maps a domain error code to its HTTP status
func HTTPStatus(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorCodeValidationFailed, domain.ErrorCodeInvalidSignature:
		return http.StatusBadRequest
	case domain.ErrorCodeAuthMissing, domain.ErrorCodeAuthInvalid:
		return http.StatusUnauthorized
	case domain.ErrorCodePaymentNotSucceeded:
		return http.StatusPaymentRequired
	case domain.ErrorCodeForbidden:
		return http.StatusForbidden
	case domain.ErrorCodeRecordNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeMetadataTampering:
		return http.StatusConflict
	case domain.ErrorCodePricingNotConfigured:
		return http.StatusUnprocessableEntity
	case domain.ErrorCodeGatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as the error envelope. Internal failures never
// expose their cause to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		de = domain.WrapError(domain.ErrorCodeInternalError, "internal server error", err)
	}

	status := HTTPStatus(de.Code)
	message := de.Message
	if status >= http.StatusInternalServerError && de.Code != domain.ErrorCodeGatewayError {
		message = "internal server error"
	}

	fields := []zap.Field{
		zap.String("code", string(de.Code)),
		zap.Int("status", status),
		zap.String("path", r.URL.Path),
		zap.String("request_id", auth.GetRequestID(r.Context())),
		zap.Error(err),
	}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("Billing request failed", fields...)
	case domain.IsSecurityEvent(err):
		logger.Warn("Billing request rejected", append(fields, zap.Bool("security_event", true))...)
	default:
		logger.Debug("Billing request rejected", fields...)
	}

	writeJSON(w, status, errorBody{Error: errorDetail{Code: string(de.Code), Message: message}})
}
