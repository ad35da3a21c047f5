package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-membergate/core"
)

type errorResponse struct {
	Error      string                 `json:"error"`
	Code       string                 `json:"code,omitempty"`
	Validation []goerrors.FieldError  `json:"validation,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// writeError renders any error as the JSON envelope, resolving the HTTP
// status from the rich error when one is attached.
func writeError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	status := http.StatusInternalServerError
	payload := errorResponse{
		Error: "An unexpected error occurred",
		Code:  core.ErrorInternal,
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.Code > 0 {
			status = rich.Code
		} else {
			status = statusForCategory(rich.Category)
		}
		if strings.TrimSpace(rich.Message) != "" {
			payload.Error = rich.Message
		}
		if strings.TrimSpace(rich.TextCode) != "" {
			payload.Code = rich.TextCode
		}
		payload.Validation = rich.AllValidationErrors()
	}

	writeJSON(w, status, payload)
}

func statusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
