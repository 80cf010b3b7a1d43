// Package apilinter invokes the external api-linter binary and returns its
// raw report text. Obtaining and versioning the binary is not handled here.
package apilinter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomschdev/proto-lindt-ext/internal/utils"
)

const (
	DEFAULT_COMMAND     = "api-linter"
	DEFAULT_RUN_TIMEOUT = 30 * time.Second

	MAX_STDERR_LOG_LENGTH = 1000
)

// InvocationError is returned for every way a linter run can fail: missing
// binary, non-zero exit, timeout or cancellation. It is never fatal to the
// caller, a failed run only suppresses the current validation pass.
type InvocationError struct {
	FilePath string
	Stderr   string
	Cause    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("linter invocation failed for %s: %s", e.FilePath, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}

type Runner struct {
	//Name or path of the linter binary, defaults to DEFAULT_COMMAND.
	Command string

	//Additional arguments placed before the file path.
	ExtraArgs []string

	//Defaults to DEFAULT_RUN_TIMEOUT.
	Timeout time.Duration

	Logger zerolog.Logger
}

// Run invokes `<linter-binary> <absolute-file-path>` and returns the report
// written to standard output. The command is expected to exit with code 0.
func (r Runner) Run(ctx context.Context, absFilePath string) (string, error) {
	command := r.Command
	if command == "" {
		command = DEFAULT_COMMAND
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_RUN_TIMEOUT
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(utils.CopySlice(r.ExtraArgs), absFilePath)
	cmd := exec.CommandContext(ctx, command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	if err != nil {
		stderrText := strings.TrimSpace(stderr.String())
		if len(stderrText) > MAX_STDERR_LOG_LENGTH {
			stderrText = stderrText[:MAX_STDERR_LOG_LENGTH]
		}

		r.Logger.Debug().
			Str("file", absFilePath).
			Str("stderr", stderrText).
			Err(err).
			Msg("linter invocation failed")

		return "", &InvocationError{
			FilePath: absFilePath,
			Stderr:   stderrText,
			Cause:    err,
		}
	}

	r.Logger.Debug().
		Str("file", absFilePath).
		Dur("duration", time.Since(start)).
		Msg("linter invocation succeeded")

	return stdout.String(), nil
}
