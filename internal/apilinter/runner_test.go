package apilinter

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func writeFakeLinter(t *testing.T, script string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake linter scripts are not supported on windows")
	}

	path := filepath.Join(t.TempDir(), "fake-api-linter")
	assert.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestRunReturnsStandardOutput(t *testing.T) {
	binary := writeFakeLinter(t, `printf -- '- file_path: %s\n    problems:\n' "$1"`)

	runner := Runner{Command: binary, Logger: zerolog.Nop()}
	output, err := runner.Run(context.Background(), "/tmp/a.proto")

	assert.NoError(t, err)
	assert.Equal(t, "- file_path: /tmp/a.proto\n    problems:\n", output)
}

func TestRunNonZeroExitIsInvocationError(t *testing.T) {
	binary := writeFakeLinter(t, `echo "boom" >&2; exit 3`)

	runner := Runner{Command: binary, Logger: zerolog.Nop()}
	_, err := runner.Run(context.Background(), "/tmp/a.proto")

	var invocationErr *InvocationError
	if assert.ErrorAs(t, err, &invocationErr) {
		assert.Equal(t, "/tmp/a.proto", invocationErr.FilePath)
		assert.Equal(t, "boom", invocationErr.Stderr)
	}
}

func TestRunMissingBinaryIsInvocationError(t *testing.T) {
	runner := Runner{
		Command: filepath.Join(t.TempDir(), "does-not-exist"),
		Logger:  zerolog.Nop(),
	}
	_, err := runner.Run(context.Background(), "/tmp/a.proto")

	var invocationErr *InvocationError
	assert.ErrorAs(t, err, &invocationErr)
}

func TestRunTimeoutIsInvocationError(t *testing.T) {
	binary := writeFakeLinter(t, `sleep 5`)

	runner := Runner{Command: binary, Timeout: 50 * time.Millisecond, Logger: zerolog.Nop()}

	start := time.Now()
	_, err := runner.Run(context.Background(), "/tmp/a.proto")

	var invocationErr *InvocationError
	assert.ErrorAs(t, err, &invocationErr)
	assert.Less(t, time.Since(start), 2*time.Second)
}
