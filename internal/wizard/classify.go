package wizard

import (
	stderrors "errors"
	"net/http"

	"resumewizard/internal/apiclient"
)

// ErrorInfo is the user-facing description of a failed step
type ErrorInfo struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"status_code"`
}

// StatusFormatNotSupported is the backend status for unsupported resume formats
const StatusFormatNotSupported = 420

var defaultErrorInfo = ErrorInfo{
	Title:   "Internal Server Error!!",
	Message: "Failed to generate resume for you..",
	Details: "Unexpected Error occurred while we processing your request.",
}

var gatewayErrorInfo = ErrorInfo{
	Title:   "Service Unavailable",
	Message: "Our resume service is taking a break right now.",
	Details: "Please try again in a few minutes.",
}

var errorTable = map[int]ErrorInfo{
	http.StatusUnauthorized: {
		Title:   "Unauthorized",
		Message: "You are not authorized to access this resource.",
		Details: "Please login to your account to access this resource.",
	},
	http.StatusPaymentRequired: {
		Title:   "Payment Required",
		Message: "Failed to generate resume for you..",
		Details: "You are trying to access a paid resource.",
	},
	StatusFormatNotSupported: {
		Title:   "Format Not Supported",
		Message: "The Requested Resume Format is not supported yet",
		Details: "Please try again with a different file format.",
	},
	http.StatusInternalServerError: {
		Title:   "Hold On!",
		Message: "We are trying hard to bring support for more resume formats",
		Details: "Please try again later or contact support.",
	},
	http.StatusBadGateway:         gatewayErrorInfo,
	http.StatusServiceUnavailable: gatewayErrorInfo,
	http.StatusGatewayTimeout:     gatewayErrorInfo,
}

// MissingInformation is reported when generate is attempted with an
// incomplete form
var MissingInformation = ErrorInfo{
	Title:      "Missing Information",
	Message:    "Please complete all steps before generating your resume.",
	Details:    "Make sure you've added a job description, selected roles, and uploaded a file.",
	StatusCode: http.StatusBadRequest,
}

// InvalidFileType is reported for uploads that are not PDF or Word
var InvalidFileType = ErrorInfo{
	Title:      "Invalid File Type",
	Message:    "Please upload a PDF or Word document.",
	Details:    "Accepted formats are .pdf, .docx and .doc.",
	StatusCode: http.StatusUnsupportedMediaType,
}

// FileTooLarge is reported for uploads over the size limit
var FileTooLarge = ErrorInfo{
	Title:      "File Too Large",
	Message:    "The selected file is too large.",
	Details:    "Please upload a file of 10MB or less.",
	StatusCode: http.StatusRequestEntityTooLarge,
}

// Classify maps a failure to the copy shown to the user. Backend failures
// are looked up by status, falling back to the backend error code when the
// status is unknown.
func Classify(err error) ErrorInfo {
	switch {
	case err == nil:
		return ErrorInfo{}
	case stderrors.Is(err, ErrMissingInformation):
		return MissingInformation
	case stderrors.Is(err, ErrInvalidFileType):
		return InvalidFileType
	case stderrors.Is(err, ErrFileTooLarge):
		return FileTooLarge
	}

	status := 0
	if apiErr, ok := apiclient.AsAPIError(err); ok {
		status = apiErr.StatusCode
		if status == 0 && apiErr.ErrorCode != nil {
			status = *apiErr.ErrorCode
		}
	}

	info, ok := errorTable[status]
	if !ok {
		info = defaultErrorInfo
	}
	info.StatusCode = status
	if info.StatusCode == 0 {
		info.StatusCode = http.StatusInternalServerError
	}
	return info
}
