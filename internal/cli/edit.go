package cli

import (
	"context"
	"strings"

	"resumewizard/internal/artifact"
	"resumewizard/internal/common"
	"resumewizard/internal/errors"
	"resumewizard/internal/types"

	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Apply an edit instruction to a generated resume",
	Long: `Ask the backend to revise a previously generated resume. Pass the
resume URL printed by "generate" (a preview URL works too, its cache-busting
parameter is removed) and a plain-language instruction.`,
	Args:    cobra.NoArgs,
	PreRunE: outputPreRun(&editConfig.CommandConfig),
	RunE:    runEdit,
}

var editConfig struct {
	common.CommandConfig
	ResumeURL   string
	Instruction string
}

func init() {
	addOutputFlags(editCmd, &editConfig.CommandConfig)
	editCmd.Flags().StringVarP(&editConfig.ResumeURL, "url", "u", "", "URL of the resume to edit")
	editCmd.Flags().StringVarP(&editConfig.Instruction, "instruction", "i", "", "What to change, e.g. \"Shorten the summary\"")

	_ = editCmd.MarkFlagRequired("url")
	_ = editCmd.MarkFlagRequired("instruction")
}

func runEdit(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	instruction := strings.TrimSpace(editConfig.Instruction)
	if instruction == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "Instruction cannot be empty", nil)
	}
	resumeURL := artifact.StripCacheBust(strings.TrimSpace(editConfig.ResumeURL))

	backend := newBackend(cfg, logger)
	token := resolveToken()

	err := common.RunCommand(cmd.Context(), logger, editConfig.CommandConfig, "resume edit",
		func(ctx context.Context) (types.EditOutput, error) {
			result, err := backend.EditResume(ctx, resumeURL, instruction, token)
			if err != nil {
				return types.EditOutput{}, err
			}
			return types.EditOutput{
				ResumeArtifact: describeArtifact(result.ResumeURL),
				PreviousURL:    resumeURL,
				Instruction:    instruction,
			}, nil
		})
	if err != nil {
		return reportFailure(logger, "resume edit", err)
	}
	return nil
}
