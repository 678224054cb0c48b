package docs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/project"
	pathutils "github.com/temirov/codesync/internal/utils/path"
)

const (
	readmeFileNameConstant           = "README.md"
	yamlFenceStartConstant           = "```yaml"
	yamlFenceEndConstant             = "```"
	configHeaderMarkerConstant       = "# config.yaml"
	projectHeaderMarkerConstant      = "# widgets.yaml"
	parentDirectoryReferenceConstant = ".."
	missingHeaderMessageConstant     = "README example missing header marker %s"
	missingStartFenceMessageConstant = "README example missing yaml fence start"
	missingEndFenceMessageConstant   = "README example missing yaml fence end"
)

type readmeApplicationConfiguration struct {
	Common map[string]string `yaml:"common"`
	Sync   map[string]any    `yaml:"sync"`
}

func readmeSnippet(testInstance *testing.T, headerMarker string) string {
	testInstance.Helper()
	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)

	readmePath := filepath.Join(workingDirectory, parentDirectoryReferenceConstant, readmeFileNameConstant)
	contentBytes, readError := os.ReadFile(readmePath)
	require.NoError(testInstance, readError)

	contentText := string(contentBytes)
	headerIndex := strings.Index(contentText, headerMarker)
	require.NotEqualf(testInstance, -1, headerIndex, missingHeaderMessageConstant, headerMarker)

	fenceStartIndex := strings.LastIndex(contentText[:headerIndex], yamlFenceStartConstant)
	require.NotEqual(testInstance, -1, fenceStartIndex, missingStartFenceMessageConstant)

	remainingText := contentText[headerIndex:]
	fenceEndRelativeIndex := strings.Index(remainingText, yamlFenceEndConstant)
	require.NotEqual(testInstance, -1, fenceEndRelativeIndex, missingEndFenceMessageConstant)
	fenceEndIndex := headerIndex + fenceEndRelativeIndex

	return strings.TrimSpace(contentText[fenceStartIndex+len(yamlFenceStartConstant) : fenceEndIndex])
}

func TestReadmeApplicationConfigurationParses(testInstance *testing.T) {
	snippet := readmeSnippet(testInstance, configHeaderMarkerConstant)

	var applicationConfiguration readmeApplicationConfiguration
	require.NoError(testInstance, yaml.Unmarshal([]byte(snippet), &applicationConfiguration))

	require.Equal(testInstance, "console", applicationConfiguration.Common["log_format"])
	for _, expectedKey := range []string{"project_config", "ledger_url", "temp_dir", "initial_window", "max_window", "keepalive_interval", "color"} {
		require.Contains(testInstance, applicationConfiguration.Sync, expectedKey)
	}
}

func TestReadmeProjectConfigurationParses(testInstance *testing.T) {
	snippet := readmeSnippet(testInstance, projectHeaderMarkerConstant)

	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return "/home/tester", nil })
	parsedProject, parseError := project.Parse([]byte(snippet), expander)
	require.NoError(testInstance, parseError)

	require.Equal(testInstance, "widgets", parsedProject.Name)
	require.Len(testInstance, parsedProject.Translators, 2)
	require.Equal(testInstance, "/home/tester/.codesync/widgets.db", parsedProject.LedgerURL)
	require.Equal(testInstance, model.CommitStrategyCommitLocally, parsedProject.Strategy(model.MigrationDirectionImport).CommitStrategy)
}
