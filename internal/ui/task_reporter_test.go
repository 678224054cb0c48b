package ui_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/codesync/internal/ui"
)

func TestTaskReporterNestsTasks(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zapcore.DebugLevel)
	currentTime := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	reporter := ui.NewTaskReporter(zap.New(observerCore)).WithClock(func() time.Time { return currentTime })

	outerTask := reporter.Begin("Performing migration")
	innerTask := reporter.Begin("Creating codebase")
	currentTime = currentTime.Add(3 * time.Second)
	reporter.Complete(innerTask)
	reporter.Fail(outerTask, errors.New("push failed"))

	entries := observedLogs.All()
	require.Len(testInstance, entries, 4)
	require.Equal(testInstance, "Performing migration...", entries[0].Message)
	require.Equal(testInstance, "  Creating codebase...", entries[1].Message)
	require.Equal(testInstance, "  Done: Creating codebase (3 seconds)", entries[2].Message)
	require.Equal(testInstance, zapcore.WarnLevel, entries[3].Level)
	require.Equal(testInstance, "Failed: Performing migration: push failed", entries[3].Message)

	nextTask := reporter.Begin("Equivalence check")
	require.NotNil(testInstance, nextTask)
	require.Equal(testInstance, "Equivalence check...", observedLogs.All()[4].Message)
}
