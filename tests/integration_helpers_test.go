package tests

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// integrationResult captures the combined output and exit status of one CLI invocation.
type integrationResult struct {
	output   string
	exitCode int
}

// runIntegrationCommand runs the built CLI from a scratch directory and reports a non-zero exit status
// instead of failing.
func runIntegrationCommand(testInstance *testing.T, environment []string, timeout time.Duration, arguments ...string) integrationResult {
	testInstance.Helper()
	executionContext, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	command := exec.CommandContext(executionContext, integrationBinaryPath, arguments...)
	command.Dir = testInstance.TempDir()
	command.Env = append(append([]string{}, os.Environ()...), environment...)

	outputBytes, runError := command.CombinedOutput()
	result := integrationResult{output: string(outputBytes)}
	var exitError *exec.ExitError
	switch {
	case runError == nil:
	case errors.As(runError, &exitError):
		result.exitCode = exitError.ExitCode()
	default:
		testInstance.Fatalf("command failed: %v\n%s", runError, result.output)
	}
	return result
}

func filterStructuredOutput(rawOutput string) string {
	lines := strings.Split(rawOutput, "\n")
	var filtered []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		if strings.HasPrefix(trimmed, "{") {
			continue
		}
		filtered = append(filtered, line)
	}
	if len(filtered) == 0 {
		return ""
	}
	return strings.Join(filtered, "\n") + "\n"
}
