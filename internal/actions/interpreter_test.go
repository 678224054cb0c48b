package actions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/actions"
)

func TestInterpreterRun(testInstance *testing.T) {
	testInstance.Run("drains_queue_in_order", func(testInstance *testing.T) {
		fixture := newRunFixture(testInstance)
		executed := []string{}
		initial := []actions.Action{
			&recordingAction{name: "first", executed: &executed},
			&recordingAction{name: "second", executed: &executed},
		}
		require.NoError(testInstance, actions.NewInterpreter(nil).Run(context.Background(), fixture.runContext, initial))
		require.Equal(testInstance, []string{"first", "second"}, executed)
	})

	testInstance.Run("update_replaces_queue", func(testInstance *testing.T) {
		fixture := newRunFixture(testInstance)
		executed := []string{}
		replacement := &recordingAction{name: "replacement", executed: &executed}
		initial := []actions.Action{
			&recordingAction{name: "first", executed: &executed, update: &actions.StateUpdate{Actions: []actions.Action{replacement}}},
			&recordingAction{name: "skipped", executed: &executed},
		}
		require.NoError(testInstance, actions.NewInterpreter(nil).Run(context.Background(), fixture.runContext, initial))
		require.Equal(testInstance, []string{"first", "replacement"}, executed)
	})

	testInstance.Run("empty_update_halts", func(testInstance *testing.T) {
		fixture := newRunFixture(testInstance)
		executed := []string{}
		initial := []actions.Action{
			&recordingAction{name: "stop", executed: &executed, update: &actions.StateUpdate{Actions: []actions.Action{}}},
			&recordingAction{name: "skipped", executed: &executed},
		}
		require.NoError(testInstance, actions.NewInterpreter(nil).Run(context.Background(), fixture.runContext, initial))
		require.Equal(testInstance, []string{"stop"}, executed)
	})

	testInstance.Run("failure_aborts", func(testInstance *testing.T) {
		fixture := newRunFixture(testInstance)
		executed := []string{}
		failure := errors.New("ledger unavailable")
		initial := []actions.Action{
			&recordingAction{name: "broken", executed: &executed, failure: failure},
			&recordingAction{name: "skipped", executed: &executed},
		}
		runError := actions.NewInterpreter(nil).Run(context.Background(), fixture.runContext, initial)
		require.ErrorIs(testInstance, runError, failure)
		require.ErrorContains(testInstance, runError, "broken failed")
		require.Equal(testInstance, []string{"broken"}, executed)
	})
}

func TestRunContextValidate(testInstance *testing.T) {
	testCases := []struct {
		name          string
		mutate        func(runContext *actions.RunContext)
		expectedError error
	}{
		{name: "missing_creator", mutate: func(runContext *actions.RunContext) { runContext.PublicCreator = nil }, expectedError: actions.ErrMissingCreators},
		{name: "missing_ledger", mutate: func(runContext *actions.RunContext) { runContext.Ledger = nil }, expectedError: actions.ErrMissingLedger},
		{name: "missing_report", mutate: func(runContext *actions.RunContext) { runContext.Report = nil }, expectedError: actions.ErrMissingReport},
		{name: "missing_project", mutate: func(runContext *actions.RunContext) { runContext.Project = nil }, expectedError: actions.ErrMissingProject},
	}
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newRunFixture(testInstance)
			testCase.mutate(fixture.runContext)
			require.ErrorIs(testInstance, fixture.runContext.Validate(), testCase.expectedError)
		})
	}
}
