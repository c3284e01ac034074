package common

import (
	"context"
	"time"

	"resumewizard/internal/errors"
)

// OperationFunc performs one backend call for a CLI command
type OperationFunc[Output any] func(ctx context.Context) (Output, error)

// RunCommand times an operation, logs its outcome and writes the formatted
// result to the configured output.
func RunCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	name string,
	operation OperationFunc[Output],
) error {
	if logger == nil {
		logger = errors.Discard()
	}
	outputHandler := NewOutputHandler(logger)

	// fail before the backend call rather than after it
	if err := outputHandler.fileProcessor.ValidateOutputFile(cmdConfig.OutputFile); err != nil {
		return err
	}

	logger.Info("Starting "+name, "output_format", cmdConfig.OutputFormat)
	start := time.Now()

	result, err := operation(ctx)
	if err != nil {
		logger.Debug(name+" failed", "duration", time.Since(start))
		return err
	}
	logger.Info(name+" completed", "duration", time.Since(start))

	return outputHandler.HandleOutput(result, cmdConfig)
}
