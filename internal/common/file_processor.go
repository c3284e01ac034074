package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"resumewizard/internal/errors"
	"resumewizard/internal/utils"
)

// FileProcessor handles the file reads and writes of CLI commands
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	if logger == nil {
		logger = errors.Discard()
	}
	return &FileProcessor{logger: logger}
}

// ReadBytes validates and reads a file no larger than maxSize bytes
func (fp *FileProcessor) ReadBytes(filename string, maxSize int64) ([]byte, error) {
	info, err := utils.ValidateInputFile(filename, 0)
	if err != nil {
		if _, statErr := os.Stat(filename); os.IsNotExist(statErr) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Invalid input file: %s", filename), err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File too large: %s (%s, limit %s)", filename,
				utils.FormatFileSize(info.Size()), utils.FormatFileSize(maxSize)), nil)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	reader := io.Reader(file)
	if maxSize > 0 {
		// the file may grow between stat and read
		reader = io.LimitReader(file, maxSize+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}
	if maxSize > 0 && int64(len(content)) > maxSize {
		return nil, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File too large: %s", filename), nil)
	}

	fp.logger.Debug("Read input file", "filename", filename, "size", utils.FormatFileSize(int64(len(content))))
	return content, nil
}

// ReadText reads a plain-text input such as a job description
func (fp *FileProcessor) ReadText(filename string, maxSize int64) (string, error) {
	if !utils.IsTextFile(filename) {
		fp.logger.Warn("File may not be a text file", "filename", filename)
	}
	content, err := fp.ReadBytes(filename, maxSize)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// WriteFile writes content to a file, creating its directory
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError(errors.ErrCodeFileWriteFailed,
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError(errors.ErrCodeFileWriteFailed,
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}
	return nil
}

// ValidateOutputFile validates an output path; empty means stdout
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError(errors.ErrCodeFileWriteFailed,
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}
	return nil
}
