// Package resume shapes wizard requests into calls against the resume backend.
package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"resumewizard/internal/apiclient"
	"resumewizard/internal/errors"
)

// Backend endpoints
const (
	PathGenerateResume = "/api/v1/generate_resume"
	PathGetJobRoles    = "/api/v1/get_job_roles"
	PathEditResume     = "/api/v1/edit_resume"
)

// Upload is a resume file held in memory
type Upload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Size returns the upload length in bytes
func (u *Upload) Size() int64 {
	if u == nil {
		return 0
	}
	return int64(len(u.Data))
}

// Result carries the locator of a generated or edited resume
type Result struct {
	ResumeURL string `json:"resume_url"`
}

// Backend is the capability the wizard, edit chat and CLI depend on
type Backend interface {
	ParseResume(ctx context.Context, file Upload, jobDescription string, jobRoles []string, token string) (*Result, error)
	GetJobRoles(ctx context.Context, token string) ([]string, error)
	EditResume(ctx context.Context, resumeURL, instruction, token string) (*Result, error)
}

// Service implements Backend over the HTTP client wrapper. Errors from the
// client are returned unchanged.
type Service struct {
	client *apiclient.Client
	logger *errors.Logger
}

// NewService creates a resume service
func NewService(client *apiclient.Client, logger *errors.Logger) *Service {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Service{client: client, logger: logger}
}

type resumeEnvelope struct {
	GCSURL string `json:"gcs_url"`
}

type jobRolesEnvelope struct {
	JobRoles []string `json:"job_roles"`
}

// ParseResume uploads the file with the target description and roles and
// returns the generated resume locator
func (s *Service) ParseResume(ctx context.Context, file Upload, jobDescription string, jobRoles []string, token string) (*Result, error) {
	if jobRoles == nil {
		jobRoles = []string{}
	}
	rolesJSON, err := json.Marshal(jobRoles)
	if err != nil {
		return nil, fmt.Errorf("encode job roles: %w", err)
	}

	s.logger.Debug("Submitting resume for generation",
		"filename", file.Filename,
		"size", len(file.Data),
		"roles", len(jobRoles),
		"authenticated", token != "")

	resp, err := s.client.RequestFormData(ctx, PathGenerateResume, token,
		apiclient.FileField("file", file.Filename, file.ContentType, file.Data),
		apiclient.TextField("job_description", jobDescription),
		apiclient.TextField("related_jobs", string(rolesJSON)),
	)
	if err != nil {
		return nil, err
	}
	return decodeResult(resp)
}

// GetJobRoles fetches the role taxonomy. Callers decide on any fallback.
func (s *Service) GetJobRoles(ctx context.Context, token string) ([]string, error) {
	resp, err := s.client.Request(ctx, PathGetJobRoles, apiclient.RequestOptions{
		Method: http.MethodGet,
		Token:  token,
	})
	if err != nil {
		return nil, err
	}

	var env jobRolesEnvelope
	if err := resp.JSON(&env); err != nil {
		return nil, err
	}
	if env.JobRoles == nil {
		return []string{}, nil
	}
	return env.JobRoles, nil
}

// EditResume asks the backend to apply an instruction to an existing
// artifact. The file is not re-uploaded; the backend fetches it by URL.
func (s *Service) EditResume(ctx context.Context, resumeURL, instruction, token string) (*Result, error) {
	resp, err := s.client.RequestFormData(ctx, PathEditResume, token,
		apiclient.TextField("resume_url", resumeURL),
		apiclient.TextField("user_instruction", instruction),
	)
	if err != nil {
		return nil, err
	}
	return decodeResult(resp)
}

func decodeResult(resp *apiclient.Response) (*Result, error) {
	var env resumeEnvelope
	if err := resp.JSON(&env); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.GCSURL) == "" {
		return nil, &apiclient.APIError{
			StatusCode: http.StatusBadGateway,
			Message:    "Backend returned no resume URL",
		}
	}
	return &Result{ResumeURL: env.GCSURL}, nil
}
