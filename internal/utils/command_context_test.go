package utils_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/utils"
)

func TestCommandContextAccessorRoundTrip(testInstance *testing.T) {
	accessor := utils.NewCommandContextAccessor()

	_, missing := accessor.ConfigurationFilePath(context.Background())
	require.False(testInstance, missing)

	executionContext := accessor.WithConfigurationFilePath(context.Background(), "/etc/codesync/config.yaml")

	configurationFilePath, configurationAvailable := accessor.ConfigurationFilePath(executionContext)
	require.True(testInstance, configurationAvailable)
	require.Equal(testInstance, "/etc/codesync/config.yaml", configurationFilePath)
}
