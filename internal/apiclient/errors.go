package apiclient

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// User-facing messages used when the upstream gives nothing better
const (
	MessageUnexpected  = "An unexpected error occurred"
	MessageNotFound    = "Cannot process your request"
	MessageUnavailable = "Service temporarily unavailable"
)

// APIError is the single error shape every caller above the client sees.
// StatusCode is 0 for transport failures.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	ErrorCode  *int   `json:"error_code,omitempty"`
	Cause      error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.ErrorCode != nil {
		return fmt.Sprintf("api error %d (code %d): %s", e.StatusCode, *e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsTransport reports whether the request never produced an HTTP response
func (e *APIError) IsTransport() bool {
	return e.StatusCode == 0
}

// AsAPIError extracts an *APIError from err's chain
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusCode returns the normalized status of err, or 0 when err carries none
func StatusCode(err error) int {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.StatusCode
	}
	return 0
}

// errorEnvelope is the loose shape of backend error bodies
type errorEnvelope struct {
	Error     json.RawMessage `json:"error"`
	Message   json.RawMessage `json:"message"`
	Detail    json.RawMessage `json:"detail"`
	ErrorCode *json.Number    `json:"error_code"`
}

func (env *errorEnvelope) message() string {
	for _, raw := range []json.RawMessage{env.Error, env.Message, env.Detail} {
		if msg := rawString(raw); msg != "" {
			return msg
		}
	}
	return ""
}

func (env *errorEnvelope) code() *int {
	if env.ErrorCode == nil {
		return nil
	}
	n, err := env.ErrorCode.Int64()
	if err != nil {
		return nil
	}
	code := int(n)
	return &code
}

// rawString returns a JSON string value, or "" for null, numbers and objects
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func decodeEnvelope(body []byte) (*errorEnvelope, bool) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var env errorEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, false
	}
	return &env, true
}

// normalizeStatusError builds the error for a non-2xx response
func normalizeStatusError(status int, header http.Header, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: MessageUnexpected}

	env, ok := decodeEnvelope(body)
	if ok {
		apiErr.ErrorCode = env.code()
	}

	if status == http.StatusNotFound {
		apiErr.Message = MessageNotFound
		return apiErr
	}

	if ok && (isJSONContentType(header) || header.Get("Content-Type") == "") {
		if msg := env.message(); msg != "" {
			apiErr.Message = msg
		}
	}
	return apiErr
}

// CheckResponseForErrors fails a successful response whose JSON body carries a
// non-null error_code. Bodies that are not JSON objects pass through.
func CheckResponseForErrors(status int, body []byte) error {
	env, ok := decodeEnvelope(body)
	if !ok {
		return nil
	}
	code := env.code()
	if code == nil {
		return nil
	}

	msg := env.message()
	if msg == "" {
		msg = MessageUnexpected
	}
	return &APIError{
		StatusCode: inBandStatus(status, *code),
		Message:    msg,
		ErrorCode:  code,
	}
}

// inBandStatus picks the status reported for an error signalled inside a
// successful envelope. HTTP-like codes are used as is so they classify like
// real status errors.
func inBandStatus(httpStatus, code int) int {
	if httpStatus >= 400 {
		return httpStatus
	}
	if code >= 400 && code <= 599 {
		return code
	}
	return http.StatusInternalServerError
}

func isJSONContentType(header http.Header) bool {
	return strings.Contains(strings.ToLower(header.Get("Content-Type")), "application/json")
}

func transportError(cause error) *APIError {
	return &APIError{StatusCode: 0, Message: MessageUnexpected, Cause: cause}
}
