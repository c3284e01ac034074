package cli

import (
	"context"
	"fmt"

	"resumewizard/internal/common"
	"resumewizard/internal/types"

	"github.com/spf13/cobra"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the job roles offered by the backend",
	Long: `Fetch the job role taxonomy from the resume backend. When the backend
cannot be reached the fallback catalog is printed instead and the output
is marked as such.`,
	Args:    cobra.NoArgs,
	PreRunE: outputPreRun(&rolesConfig),
	RunE:    runRoles,
}

var rolesConfig common.CommandConfig

func init() {
	addOutputFlags(rolesCmd, &rolesConfig)
}

func runRoles(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	roles, _ := newRolesService(cfg, newBackend(cfg, logger), logger, nil)
	token := resolveToken()

	err := common.RunCommand(cmd.Context(), logger, rolesConfig, "job role lookup",
		func(ctx context.Context) (types.JobRolesOutput, error) {
			list, fallback := roles.Roles(ctx, token)
			return types.JobRolesOutput{JobRoles: list, Fallback: fallback}, nil
		})
	if err != nil {
		return fmt.Errorf("failed to list job roles: %w", err)
	}
	return nil
}
