package cli_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/cmd/cli"
	"github.com/temirov/codesync/internal/manage"
	"github.com/temirov/codesync/internal/report"
)

func TestEmbeddedDefaultsDecodeIntoApplicationConfiguration(testInstance *testing.T) {
	configurationData, configurationType := cli.EmbeddedDefaultConfiguration()
	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)
	require.NoError(testInstance, viperInstance.ReadConfig(bytes.NewReader(configurationData)))

	var configuration cli.ApplicationConfiguration
	require.NoError(testInstance, viperInstance.Unmarshal(&configuration))

	defaults := manage.DefaultCommandConfiguration()
	require.Equal(testInstance, "info", configuration.Common.LogLevel)
	require.Equal(testInstance, "structured", configuration.Common.LogFormat)
	require.Equal(testInstance, defaults.InitialWindow, configuration.Sync.InitialWindow)
	require.Equal(testInstance, defaults.MaxWindow, configuration.Sync.MaxWindow)
	require.Equal(testInstance, 60*time.Second, configuration.Sync.KeepaliveInterval)
	require.Empty(testInstance, configuration.Sync.LedgerURL)
}

func TestExitCodeMapping(testInstance *testing.T) {
	runFailure := errors.New("ledger unavailable")
	testCases := []struct {
		name               string
		executionError     error
		expectedExitCode   int
		expectedReportable error
	}{
		{
			name:             "success",
			expectedExitCode: report.ReturnCodeNothingToMigrate,
		},
		{
			name:             "intervention_required",
			executionError:   manage.ReturnCodeError{ReturnCode: report.ReturnCodeInterventionRequired},
			expectedExitCode: report.ReturnCodeInterventionRequired,
		},
		{
			name:               "failed_run",
			executionError:     manage.ReturnCodeError{ReturnCode: report.ReturnCodeChangeProduced, Cause: runFailure},
			expectedExitCode:   report.ReturnCodeChangeProduced,
			expectedReportable: runFailure,
		},
		{
			name:               "plain_failure",
			executionError:     runFailure,
			expectedExitCode:   1,
			expectedReportable: runFailure,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedExitCode, cli.ExitCode(testCase.executionError))
			require.Equal(testInstance, testCase.expectedReportable, cli.ReportableError(testCase.executionError))
		})
	}
}
