package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/storefront-orders/internal/domain/apperr"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Message string      `json:"message"`
	Code    apperr.Code `json:"code"`
	Details any         `json:"details,omitempty"`
}

var statusByCode = map[apperr.Code]int{
	apperr.CodeValidation:         http.StatusBadRequest,
	apperr.CodeInsufficientStock:  http.StatusBadRequest,
	apperr.CodePaymentDeclined:    http.StatusBadRequest,
	apperr.CodeInvalidTransition:  http.StatusBadRequest,
	apperr.CodeNotFound:           http.StatusNotFound,
	apperr.CodeConflict:           http.StatusConflict,
	apperr.CodeGatewayUnavailable: http.StatusBadGateway,
	apperr.CodeFulfillmentRisk:    http.StatusInternalServerError,
	apperr.CodeInternal:           http.StatusInternalServerError,
}

// errorResponseFor maps an error to its status and body. Internal errors never leak their cause.
func errorResponseFor(err error) (int, errorResponse) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError, errorResponse{Message: "internal error", Code: apperr.CodeInternal}
	}
	status, ok := statusByCode[ae.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := ae.Message
	if msg == "" || ae.Code == apperr.CodeInternal {
		msg = "internal error"
	}
	return status, errorResponse{Message: msg, Code: ae.Code, Details: ae.Details}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Wrap(apperr.CodeValidation, fmt.Sprintf("invalid request body: %v", err), err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
