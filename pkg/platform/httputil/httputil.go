package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "landledger/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	// The response body may be incomplete, but headers are already sent.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// It translates transport-agnostic domain errors into HTTP status codes and error responses.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		response := map[string]string{
			"error": string(domainErr.Code),
		}
		// Internal errors keep their detail out of responses; everything else
		// carries the actionable message (which field, which hash, which revert reason).
		if domainErr.Message != "" && domainErr.Code != dErrors.CodeInternal {
			response["error_description"] = domainErr.Message
		}
		WriteJSON(w, status, response)
		return
	}

	// Fallback for unexpected errors
	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeSignature, dErrors.CodeIntegrity:
		// Tampered or mis-signed submissions are client faults, not conflicts.
		return http.StatusUnprocessableEntity
	case dErrors.CodeChainRejected:
		return http.StatusUnprocessableEntity
	case dErrors.CodeChainUnavailable:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeConsistency:
		// Distinct from a plain 500: the operation half-succeeded and needs
		// the reconciliation path, never a blind retry.
		return http.StatusInternalServerError
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
