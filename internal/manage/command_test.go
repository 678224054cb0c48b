package manage_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/manage"
	"github.com/temirov/codesync/internal/report"
	"github.com/temirov/codesync/internal/utils"
	pathutils "github.com/temirov/codesync/internal/utils/path"
)

const (
	testProjectConfigurationConstant = "name: demo\ninternal_repository: {url: /srv/internal}\npublic_repository: {url: /srv/public}\nmoe_db_url: /srv/ledger.db\n"
	testProjectFileNameConstant      = "demo.yaml"
)

type commandHarness struct {
	fixture         *serviceFixture
	builder         *manage.CommandBuilder
	projectPath     string
	receivedOptions []manage.EnvironmentOptions
}

func newCommandHarness(testInstance *testing.T) *commandHarness {
	fixture := newServiceFixture(testInstance)
	projectPath := filepath.Join(testInstance.TempDir(), testProjectFileNameConstant)
	require.NoError(testInstance, os.WriteFile(projectPath, []byte(testProjectConfigurationConstant), 0o600))

	harness := &commandHarness{fixture: fixture, projectPath: projectPath}
	harness.builder = &manage.CommandBuilder{
		EnvironmentFactory: func(_ context.Context, options manage.EnvironmentOptions) (*manage.Environment, error) {
			harness.receivedOptions = append(harness.receivedOptions, options)
			return fixture.environment, nil
		},
		HomeExpander: pathutils.NewHomeExpanderWithProvider(func() (string, error) { return "/home/tester", nil }),
		Clock:        func() time.Time { return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC) },
	}
	return harness
}

func (harness *commandHarness) command(testInstance *testing.T, name string) (*cobra.Command, *bytes.Buffer) {
	commands, buildError := harness.builder.Build()
	require.NoError(testInstance, buildError)
	for _, command := range commands {
		if command.Name() == name {
			output := &bytes.Buffer{}
			command.SetOut(output)
			command.SetErr(output)
			command.SetContext(context.Background())
			return command, output
		}
	}
	testInstance.Fatalf("command %s not built", name)
	return nil, nil
}

func TestBuildRegistersCommands(testInstance *testing.T) {
	commands, buildError := (&manage.CommandBuilder{}).Build()
	require.NoError(testInstance, buildError)

	names := make([]string, 0, len(commands))
	for _, command := range commands {
		names = append(names, command.Name())
		require.NotNil(testInstance, command.Flags().Lookup("project-config"))
		require.NotNil(testInstance, command.Flags().Lookup("ledger"))
	}
	require.Equal(testInstance, []string{"manage", "diff", "push", "note-equivalence", "lock-status"}, names)
}

func TestManageCommandPropagatesReturnCode(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	command, output := harness.command(testInstance, "manage")
	command.SetArgs([]string{"--project-config", harness.projectPath, "--ledger", "~/ledgers/demo.db"})

	executionError := command.Execute()
	var returnCodeError manage.ReturnCodeError
	require.True(testInstance, errors.As(executionError, &returnCodeError))
	require.Equal(testInstance, report.ReturnCodeInterventionRequired, returnCodeError.ReturnCode)
	require.NoError(testInstance, returnCodeError.Cause)
	require.Contains(testInstance, output.String(), summaryHeaderConstant)

	require.Len(testInstance, harness.receivedOptions, 1)
	require.Equal(testInstance, "/home/tester/ledgers/demo.db", harness.receivedOptions[0].LedgerURL)
	require.Equal(testInstance, "demo", harness.receivedOptions[0].Project.Name)
	require.Equal(testInstance, manage.DefaultCommandConfiguration().InitialWindow, harness.receivedOptions[0].InitialWindow)
}

func TestManageCommandSucceedsWhenNothingToMigrate(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	command, _ := harness.command(testInstance, "manage")
	command.SetArgs([]string{"--project-config", harness.projectPath, "--internal-revision", "1000", "--allow-concurrent"})

	require.NoError(testInstance, command.Execute())
	require.Empty(testInstance, harness.fixture.ledger.ProcessCallLog())
}

func TestManageCommandWrapsRunFailure(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	harness.fixture.ledger.Equivalences = nil
	command, _ := harness.command(testInstance, "manage")
	command.SetArgs([]string{"--project-config", harness.projectPath, "--allow-concurrent"})

	executionError := command.Execute()
	var returnCodeError manage.ReturnCodeError
	require.True(testInstance, errors.As(executionError, &returnCodeError))
	require.Equal(testInstance, report.ReturnCodeChangeProduced, returnCodeError.ReturnCode)
	require.Error(testInstance, returnCodeError.Cause)
}

func TestCommandsRequireProjectConfiguration(testInstance *testing.T) {
	testCases := []struct {
		name        string
		commandName string
	}{
		{name: "manage", commandName: "manage"},
		{name: "diff", commandName: "diff"},
		{name: "lock_status", commandName: "lock-status"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			harness := newCommandHarness(testInstance)
			command, _ := harness.command(testInstance, testCase.commandName)
			command.SetArgs([]string{})
			require.ErrorIs(testInstance, command.Execute(), manage.ErrMissingProjectConfiguration)
			require.Empty(testInstance, harness.receivedOptions)
		})
	}
}

func TestCommandsRejectPositionalArguments(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	command, _ := harness.command(testInstance, "push")
	command.SetArgs([]string{"--project-config", harness.projectPath, "extra"})
	require.ErrorContains(testInstance, command.Execute(), "does not accept positional arguments")
}

func TestProjectConfigurationResolvesAgainstConfigurationFile(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	harness.builder.ConfigurationProvider = func() manage.CommandConfiguration {
		configuration := manage.DefaultCommandConfiguration()
		configuration.ProjectConfiguration = testProjectFileNameConstant
		return configuration
	}
	command, output := harness.command(testInstance, "lock-status")
	configurationFilePath := filepath.Join(filepath.Dir(harness.projectPath), "config.yaml")
	command.SetContext(utils.NewCommandContextAccessor().WithConfigurationFilePath(context.Background(), configurationFilePath))
	command.SetArgs([]string{})

	require.NoError(testInstance, command.Execute())
	require.Contains(testInstance, output.String(), "No process has run against")
}

func TestNoteEquivalenceCommandRecordsEquivalence(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	command, output := harness.command(testInstance, "note-equivalence")
	command.SetArgs([]string{"--project-config", harness.projectPath, "--internal-revision", "1001", "--public-revision", "p0"})

	require.NoError(testInstance, command.Execute())
	require.Contains(testInstance, output.String(), "Noted equivalence")
	require.Len(testInstance, harness.fixture.ledger.Equivalences, 2)
}

func TestDiffCommandPrintsDifferences(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	command, output := harness.command(testInstance, "diff")
	command.SetArgs([]string{"--project-config", harness.projectPath, "--internal-revision", "1001", "--public-revision", "p0"})

	require.NoError(testInstance, command.Execute())
	require.Contains(testInstance, output.String(), testFileNameConstant)
}

func TestPushCommandRejectsUnknownDestination(testInstance *testing.T) {
	harness := newCommandHarness(testInstance)
	command, _ := harness.command(testInstance, "push")
	command.SetArgs([]string{"--project-config", harness.projectPath, "--destination", "mirror"})
	require.ErrorContains(testInstance, command.Execute(), "unknown push destination")
}
