package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"resumewizard/internal/apiclient"
	"resumewizard/internal/resume"
)

// proxyRoute describes one same-origin relay to the resume backend
type proxyRoute struct {
	endpoint     string
	failure      string
	cacheControl string
}

// ProxyErrorResponse is returned when the backend answers with a non-2xx status
type ProxyErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details"`
	Status  int    `json:"status"`
}

func (s *Server) proxyGenerateResume(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, proxyRoute{
		endpoint: resume.PathGenerateResume,
		failure:  "Failed to generate resume",
	})
}

func (s *Server) proxyGetJobRoles(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, proxyRoute{
		endpoint:     resume.PathGetJobRoles,
		failure:      "Failed to fetch job roles",
		cacheControl: s.AppConfig.JobRoles.CacheControl,
	})
}

func (s *Server) proxyEditResume(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, proxyRoute{
		endpoint: resume.PathEditResume,
		failure:  "Failed to edit resume",
	})
}

// proxy relays the request body and Authorization header unchanged and
// mirrors the backend status
func (s *Server) proxy(w http.ResponseWriter, r *http.Request, route proxyRoute) {
	var body io.Reader
	if r.Method != http.MethodGet {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if stderrors.As(err, &maxBytesErr) {
				writeErrorResponse(w, route.failure, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			writeErrorResponse(w, route.failure, err.Error(), http.StatusBadRequest)
			return
		}
		body = bytes.NewReader(data)
	}

	header := http.Header{}
	if authz := r.Header.Get("Authorization"); authz != "" {
		header.Set("Authorization", authz)
	}
	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Forward(r.Context(), r.Method, route.endpoint, header, body)
	if err != nil {
		status := apiclient.StatusCode(err)
		if status == 0 {
			status = http.StatusInternalServerError
		}
		message := err.Error()
		if apiErr, ok := apiclient.AsAPIError(err); ok {
			message = apiErr.Message
		}
		writeErrorResponse(w, route.failure, message, status)
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.Logger.Warn("Backend rejected proxied request",
			"endpoint", route.endpoint,
			"status", resp.StatusCode)
		writeJSON(w, resp.StatusCode, ProxyErrorResponse{
			Error:   "Backend API error",
			Details: proxyDetails(resp.Body),
			Status:  resp.StatusCode,
		})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	if route.cacheControl != "" {
		w.Header().Set("Cache-Control", route.cacheControl)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		s.Logger.LogError(err, "Failed to write proxied response", "endpoint", route.endpoint)
	}
}

// proxyDetails keeps JSON error bodies structured and passes anything else as text
func proxyDetails(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return string(body)
}
