package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"resumewizard/internal/apiclient"
	"resumewizard/internal/auth"
	"resumewizard/internal/errors"
)

// Certificates expiring within these windows are reported as critical or warning
const (
	certCriticalThreshold = 24 * time.Hour
	certWarningThreshold  = 7 * 24 * time.Hour
)

// healthHandler reports liveness with the upstream breaker and certificate state
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "resumewizard",
		"version": s.Version,
	}

	healthy := true
	if s.client != nil {
		breaker := s.client.Breaker()
		response["backend"] = map[string]any{
			"base_url":        s.client.BaseURL(),
			"circuit_breaker": breaker.State(),
		}
		healthy = breaker.IsHealthy()
	}

	if certStatus := s.checkCertificateHealth(); certStatus != nil {
		response["certificates"] = certStatus
		if certHealthy, ok := certStatus["healthy"].(bool); ok && !certHealthy {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// checkCertificateHealth checks the health of TLS certificates
func (s *Server) checkCertificateHealth() map[string]any {
	if s.CertificateManager == nil {
		return nil
	}

	certStatus := make(map[string]any)

	timeToExpiry, err := s.CertificateManager.CheckExpiry()
	if err != nil {
		certStatus["healthy"] = false
		certStatus["error"] = fmt.Sprintf("Failed to check certificate expiry: %v", err)
		return certStatus
	}

	certStatus["time_to_expiry_hours"] = int(timeToExpiry.Hours())

	switch {
	case timeToExpiry <= 0:
		certStatus["healthy"] = false
		certStatus["status"] = "expired"
	case timeToExpiry <= certCriticalThreshold:
		certStatus["healthy"] = false
		certStatus["status"] = "critical"
	case timeToExpiry <= certWarningThreshold:
		certStatus["healthy"] = true
		certStatus["status"] = "warning"
	default:
		certStatus["healthy"] = true
		certStatus["status"] = "ok"
	}

	certStatus["auto_reload"] = s.CertificateManager.WatcherStatus()
	certStatus["metrics"] = s.CertificateManager.GetMetrics()
	return certStatus
}

// statsHandler reports rate limiting, session, breaker and cache statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "resumewizard",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"max_upload_size_bytes":  s.MaxUploadSize,
			"auth_enabled":           s.AuthEnabled,
			"api_keys_configured":    len(s.APIKeys),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.client != nil {
		response["circuit_breaker"] = s.client.Breaker().GetStats()
	}
	if s.sessions != nil {
		response["sessions"] = s.sessions.Stats()
	}
	if s.roles != nil {
		response["job_roles"] = s.roles.Stats()
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "content-type must be application/json", err)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return errors.NewValidationError(errors.ErrCodeFileTooLarge,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return errors.NewIOError(errors.ErrCodeInvalidRequest, "failed to read request body", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to parse JSON", err)
	}
	return nil
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent, so an encode failure cannot be reported
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: error, Message: message})
}

// writeError maps a domain or upstream error onto a status and error body
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := errorStatus(err)
	message := err.Error()

	var appErr *errors.AppError
	if apiErr, ok := apiclient.AsAPIError(err); ok {
		message = apiErr.Message
	} else if stderrors.As(err, &appErr) {
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed", "endpoint", r.URL.Path, "status", status)
	} else {
		s.Logger.Debug("Request rejected", "endpoint", r.URL.Path, "status", status, "error", err.Error())
	}
	writeErrorResponse(w, title, message, status)
}

// errorStatus picks the HTTP status and short title for err
func errorStatus(err error) (int, string) {
	if apiErr, ok := apiclient.AsAPIError(err); ok {
		if apiErr.StatusCode == 0 {
			return http.StatusBadGateway, "Backend unavailable"
		}
		return apiErr.StatusCode, "Backend API error"
	}

	if stderrors.Is(err, auth.ErrNotInitialized) {
		return http.StatusServiceUnavailable, "Auth unavailable"
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError, "Internal error"
	}

	switch appErr.Code {
	case errors.ErrCodeInvalidFileType:
		return http.StatusUnsupportedMediaType, "Invalid file type"
	case errors.ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.ErrCodeSessionNotFound:
		return http.StatusNotFound, "Not found"
	case errors.ErrCodeForbidden:
		return http.StatusForbidden, "Forbidden"
	case errors.ErrCodeTurnLimitReached:
		return http.StatusConflict, "Turn limit reached"
	}

	switch appErr.Type {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest, "Invalid request"
	case errors.ErrorTypeAuth:
		return http.StatusUnauthorized, "Unauthorized"
	case errors.ErrorTypeState:
		return http.StatusConflict, "Conflict"
	case errors.ErrorTypeUpstream, errors.ErrorTypeNetwork:
		return http.StatusBadGateway, "Backend unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
