package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-membergate/catalog"
	"github.com/goliatone/go-membergate/core"
	"github.com/goliatone/go-membergate/ratelimit"
	"github.com/goliatone/go-membergate/webhooks"
)

const maxRequestBodyBytes int64 = 1 << 20

type verifyRequestBody struct {
	Email    string `json:"email"`
	TestMode bool   `json:"testMode"`
}

type verifyResponseBody struct {
	IsCustomer   bool             `json:"isCustomer"`
	Message      string           `json:"message"`
	CustomerData *core.UserRecord `json:"customerData,omitempty"`
}

func (s *Server) handleVerifyCustomer(w http.ResponseWriter, r *http.Request) {
	var body verifyRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.service.Verify(r.Context(), core.VerifyRequest{
		Email:    body.Email,
		TestMode: body.TestMode,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// Upstream failures still answer 200 with isCustomer=false; the caller
	// gets a usable verdict even when the sales history is unreachable.
	writeJSON(w, http.StatusOK, verifyResponseBody{
		IsCustomer:   result.IsCustomer(),
		Message:      result.Reason,
		CustomerData: result.Record,
	})
}

type loginRequestBody struct {
	Email string `json:"email"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if s.limiter != nil {
		if err := s.limiter.Allow(r.Context(), "login:"+core.NormalizeEmail(body.Email)); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				if seconds := int(throttled.RetryAfter / time.Second); seconds > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(seconds))
				}
				writeError(w, throttled.ToServiceError())
				return
			}
			writeError(w, err)
			return
		}
	}

	record, found, err := s.service.LookupUser(r.Context(), body.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error: "Email not found. Please verify your purchase first.",
			Code:  core.ErrorNotFound,
		})
		return
	}
	if s.sessions == nil {
		writeError(w, dependencyError("transport: session manager is not configured"))
		return
	}

	token, issued, err := s.sessions.Issue(r.Context(), record.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  issued.ExpiresAt,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"email": record.Email,
			"name":  record.Name,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.config.CookieName); err == nil && s.sessions != nil {
		if sess, validateErr := s.sessions.Validate(r.Context(), cookie.Value); validateErr == nil {
			if revokeErr := s.sessions.Revoke(r.Context(), sess); revokeErr != nil {
				s.logger.Error("session revoke failed", "error", revokeErr)
			}
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	unauthenticated := map[string]any{"isAuthenticated": false}

	cookie, err := r.Cookie(s.config.CookieName)
	if err != nil || s.sessions == nil {
		writeJSON(w, http.StatusOK, unauthenticated)
		return
	}
	sess, err := s.sessions.Validate(r.Context(), cookie.Value)
	if err != nil {
		writeJSON(w, http.StatusOK, unauthenticated)
		return
	}

	user := map[string]any{"email": sess.Email}
	if record, found, lookupErr := s.service.LookupUser(r.Context(), sess.Email); lookupErr == nil && found {
		user["name"] = record.Name
		if record.Subscription != nil {
			user["subscription"] = record.Subscription
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"isAuthenticated": true,
		"user":            user,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": records,
		"count": len(records),
	})
}

type addUserRequestBody struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	AdminKey string `json:"adminKey"`
}

func (s *Server) handleAdminAddUser(w http.ResponseWriter, r *http.Request) {
	var body addUserRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.AdminKey != s.config.AdminKey {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error: "Invalid admin key",
			Code:  core.ErrorUnauthorized,
		})
		return
	}

	record, err := s.service.RegisterUser(r.Context(), core.RegisterUserRequest{
		Email:  body.Email,
		Name:   body.Name,
		Source: core.RecordSourceManual,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    record,
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.processor == nil {
		writeError(w, dependencyError("transport: webhook processor is not configured"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		writeError(w, goerrors.Wrap(err, goerrors.CategoryBadInput, "transport: read webhook body").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput))
		return
	}

	result, err := s.processor.Process(r.Context(), webhooks.InboundRequest{
		Headers:    flattenHeader(r.Header),
		Body:       body,
		ReceivedAt: s.now(),
	})
	if err != nil {
		if result.StatusCode == http.StatusUnauthorized {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "webhook signature rejected",
				Code:  core.ErrorUnauthorized,
			})
			return
		}
		writeError(w, err)
		return
	}

	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"received": result.Accepted})
}

func (s *Server) handleTest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleTokenStatus(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		writeError(w, dependencyError("transport: token source is not configured"))
		return
	}
	if r.URL.Query().Get("force") == "true" {
		s.tokens.Invalidate()
	}

	token, err := s.tokens.AccessToken(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response := map[string]any{
		"success":      true,
		"tokenPreview": previewToken(token),
	}
	if expiresAt, ok := s.tokens.ExpiresAt(); ok {
		response["expiresAt"] = expiresAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleCatalogProducts(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, dependencyError("transport: catalog is not configured"))
		return
	}
	query := catalog.SearchQuery{
		Text:     r.URL.Query().Get("q"),
		Brand:    r.URL.Query().Get("brand"),
		Category: r.URL.Query().Get("category"),
	}
	products := s.catalog.Search(query)
	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

func (s *Server) handleCatalogBrands(w http.ResponseWriter, _ *http.Request) {
	if s.catalog == nil {
		writeError(w, dependencyError("transport: catalog is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"brands": s.catalog.Brands()})
}

func (s *Server) handleCatalogCategories(w http.ResponseWriter, _ *http.Request) {
	if s.catalog == nil {
		writeError(w, dependencyError("transport: catalog is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.catalog.Categories()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "transport: invalid request body").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	return nil
}

func dependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}

func previewToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}

func flattenHeader(header http.Header) map[string]string {
	if len(header) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = values[0]
	}
	return flat
}
