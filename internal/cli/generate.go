package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"resumewizard/internal/artifact"
	"resumewizard/internal/common"
	"resumewizard/internal/errors"
	"resumewizard/internal/resume"
	"resumewizard/internal/types"
	"resumewizard/internal/wizard"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a tailored resume from an existing one",
	Long: `Upload a resume (PDF or Word) with a job description and target roles,
and print where the generated resume can be downloaded.

The job description is given inline with --description or read from a
text file with --description-file. Repeat --role for each target role.`,
	Args:    cobra.NoArgs,
	PreRunE: outputPreRun(&generateConfig.CommandConfig),
	RunE:    runGenerate,
}

var generateConfig struct {
	common.CommandConfig
	ResumeFile      string
	Description     string
	DescriptionFile string
	Roles           []string
}

var extensionTypes = map[string]string{
	".pdf":  wizard.MimePDF,
	".docx": wizard.MimeDOCX,
	".doc":  wizard.MimeDOC,
}

func init() {
	addOutputFlags(generateCmd, &generateConfig.CommandConfig)
	generateCmd.Flags().StringVarP(&generateConfig.ResumeFile, "file", "f", "", "Resume file to upload (.pdf, .docx or .doc)")
	generateCmd.Flags().StringVarP(&generateConfig.Description, "description", "d", "", "Job description text")
	generateCmd.Flags().StringVar(&generateConfig.DescriptionFile, "description-file", "", "Read the job description from a text file")
	generateCmd.Flags().StringArrayVarP(&generateConfig.Roles, "role", "r", nil, "Target job role (repeatable)")

	_ = generateCmd.MarkFlagRequired("file")
	generateCmd.MarkFlagsMutuallyExclusive("description", "description-file")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	files := common.NewFileProcessor(logger)

	input, err := loadGenerateInput(files, cfg.Wizard.MaxUploadSize, cfg.Server.MaxRequestSize)
	if err != nil {
		return reportFailure(logger, "resume generation", err)
	}

	backend := newBackend(cfg, logger)
	token := resolveToken()

	err = common.RunCommand(cmd.Context(), logger, generateConfig.CommandConfig, "resume generation",
		func(ctx context.Context) (types.GenerateOutput, error) {
			result, err := backend.ParseResume(ctx, input.upload, input.description, input.roles, token)
			if err != nil {
				return types.GenerateOutput{}, err
			}
			return types.GenerateOutput{
				ResumeArtifact: describeArtifact(result.ResumeURL),
				SourceFile:     input.upload.Filename,
				JobRoles:       input.roles,
			}, nil
		})
	if err != nil {
		return reportFailure(logger, "resume generation", err)
	}
	return nil
}

type generateInput struct {
	upload      resume.Upload
	description string
	roles       []string
}

// loadGenerateInput applies the same completeness and upload checks the
// wizard applies before its generate step
func loadGenerateInput(files *common.FileProcessor, maxUpload, maxText int64) (*generateInput, error) {
	if maxUpload <= 0 {
		maxUpload = wizard.DefaultMaxUploadSize
	}

	description := generateConfig.Description
	if generateConfig.DescriptionFile != "" {
		text, err := files.ReadText(generateConfig.DescriptionFile, maxText)
		if err != nil {
			return nil, err
		}
		description = text
	}

	var roles []string
	for _, role := range generateConfig.Roles {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	if strings.TrimSpace(description) == "" || len(roles) == 0 {
		return nil, wizard.ErrMissingInformation
	}

	data, err := files.ReadBytes(generateConfig.ResumeFile, maxUpload)
	if err != nil {
		return nil, err
	}
	upload := resume.Upload{
		Filename:    filepath.Base(generateConfig.ResumeFile),
		ContentType: extensionTypes[strings.ToLower(filepath.Ext(generateConfig.ResumeFile))],
		Data:        data,
	}
	if err := wizard.ValidateUpload(&upload, maxUpload); err != nil {
		return nil, err
	}

	return &generateInput{upload: upload, description: description, roles: roles}, nil
}

// describeArtifact derives the preview and download details of a locator
func describeArtifact(resumeURL string) types.ResumeArtifact {
	canonical := artifact.StripCacheBust(resumeURL)
	return types.ResumeArtifact{
		ResumeURL:        canonical,
		PreviewURL:       artifact.PreviewURL(canonical, time.Now()),
		FileType:         string(artifact.DetectFileType(canonical)),
		DownloadFilename: artifact.DownloadFilename(canonical),
	}
}

// reportFailure logs the user-facing copy for err and wraps it
func reportFailure(logger *errors.Logger, operation string, err error) error {
	info := wizard.Classify(err)
	logger.Warn(info.Title, "message", info.Message, "details", info.Details, "status", info.StatusCode)
	return fmt.Errorf("%s failed: %w", operation, err)
}
