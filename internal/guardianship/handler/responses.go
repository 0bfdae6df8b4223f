package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "walezi/pkg/domain-errors"
	"walezi/pkg/platform/sentinel"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	code := dErrors.GetCode(err)
	status := statusFor(code, err)

	var dErr *dErrors.Error
	message := "internal error"
	if errors.As(err, &dErr) && status < http.StatusInternalServerError {
		message = dErr.Message
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: message})
}

func statusFor(code dErrors.Code, err error) int {
	if errors.Is(err, sentinel.ErrNotFound) {
		return http.StatusNotFound
	}
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
