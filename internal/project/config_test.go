package project_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/project"
	pathutils "github.com/temirov/codesync/internal/utils/path"
)

const (
	testHomeDirectoryConstant     = "/home/tester"
	completeConfigurationConstant = `
name: widgets
internal_repository:
  type: git
  url: ~/repos/widgets-internal
  branch: main
  additional_files_re: '^third_party/'
public_repository:
  url: https://github.com/example/widgets.git
translators:
  - type: scrubber
    from_project_space: internal
    to_project_space: public
    with:
      command: scrub
      arguments: ["--strict"]
  - type: identity
    from_project_space: Public
    to_project_space: internal
noisy_files_re: '\.orig$'
moe_db_url: ~/ledger/widgets.db
owners: [alice, bob]
manual_equivalence_deltas: true
import_strategy:
  commit_strategy: commit_locally
  separate_revisions: true
export_strategy:
  merge_strategy: merge
  commit_strategy: commit_remotely
  preapprove_public_changelogs: true
`
)

func newTestExpander() *pathutils.HomeExpander {
	return pathutils.NewHomeExpanderWithProvider(func() (string, error) { return testHomeDirectoryConstant, nil })
}

func TestParseCompleteConfiguration(testInstance *testing.T) {
	parsedProject, parseError := project.Parse([]byte(completeConfigurationConstant), newTestExpander())
	require.NoError(testInstance, parseError)

	require.Equal(testInstance, "widgets", parsedProject.Name)
	require.Equal(testInstance, "widgets_internal", parsedProject.Internal.Name)
	require.Equal(testInstance, filepath.Join(testHomeDirectoryConstant, "repos/widgets-internal"), parsedProject.Internal.URL)
	require.Equal(testInstance, "main", parsedProject.Internal.Branch)
	require.True(testInstance, parsedProject.Internal.AdditionalFilesPattern.MatchString("third_party/zlib/zlib.h"))
	require.Equal(testInstance, "widgets_public", parsedProject.Public.Name)
	require.Equal(testInstance, "master", parsedProject.Public.Branch)
	require.Nil(testInstance, parsedProject.Public.AdditionalFilesPattern)

	require.Len(testInstance, parsedProject.Translators, 2)
	require.Equal(testInstance, "scrubber", parsedProject.Translators[0].Type)
	require.Equal(testInstance, model.ProjectSpaceInternal, parsedProject.Translators[0].FromProjectSpace)
	require.Equal(testInstance, "scrub", parsedProject.Translators[0].Options["command"])
	require.Equal(testInstance, model.ProjectSpacePublic, parsedProject.Translators[1].FromProjectSpace)

	require.True(testInstance, parsedProject.NoisyFilesPattern.MatchString("lib/main.go.orig"))
	require.Equal(testInstance, filepath.Join(testHomeDirectoryConstant, "ledger/widgets.db"), parsedProject.LedgerURL)
	require.Equal(testInstance, []string{"alice", "bob"}, parsedProject.Owners)
	require.True(testInstance, parsedProject.ManualEquivalenceDeltas)

	require.Equal(testInstance, model.MigrationStrategy{
		MergeStrategy:     model.MergeStrategyMerge,
		CommitStrategy:    model.CommitStrategyCommitLocally,
		SeparateRevisions: true,
	}, parsedProject.Strategy(model.MigrationDirectionImport))
	require.Equal(testInstance, model.MigrationStrategy{
		MergeStrategy:              model.MergeStrategyMerge,
		CommitStrategy:             model.CommitStrategyCommitRemotely,
		PreapprovePublicChangelogs: true,
	}, parsedProject.Strategy(model.MigrationDirectionExport))
	require.Equal(testInstance, parsedProject.Public, parsedProject.RepositoryFor(model.RepositorySidePublic))
}

func TestParseAppliesStrategyDefaults(testInstance *testing.T) {
	parsedProject, parseError := project.Parse([]byte("name: demo\ninternal_repository: {url: /srv/internal}\npublic_repository: {url: /srv/public}\n"), nil)
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, model.MigrationStrategy{MergeStrategy: model.MergeStrategyMerge, CommitStrategy: model.CommitStrategyLeavePending}, parsedProject.ImportStrategy)
	require.Equal(testInstance, model.MigrationStrategy{MergeStrategy: model.MergeStrategyOverwrite, CommitStrategy: model.CommitStrategyLeavePending}, parsedProject.ExportStrategy)
	require.Empty(testInstance, parsedProject.Translators)
	require.Nil(testInstance, parsedProject.NoisyFilesPattern)
	require.Equal(testInstance, "git", parsedProject.Internal.Type)
}

func TestParseRejectsInvalidFields(testInstance *testing.T) {
	const repositories = "internal_repository: {url: /srv/internal}\npublic_repository: {url: /srv/public}\n"
	testCases := []struct {
		name          string
		document      string
		expectedField string
	}{
		{
			name:          "missing_name",
			document:      repositories,
			expectedField: "name",
		},
		{
			name:          "unsupported_repository_type",
			document:      "name: demo\ninternal_repository: {type: svn, url: /srv/internal}\npublic_repository: {url: /srv/public}\n",
			expectedField: "internal_repository.type",
		},
		{
			name:          "missing_public_url",
			document:      "name: demo\ninternal_repository: {url: /srv/internal}\n",
			expectedField: "public_repository.url",
		},
		{
			name:          "invalid_additional_files_pattern",
			document:      "name: demo\ninternal_repository: {url: /srv/internal, additional_files_re: '('}\npublic_repository: {url: /srv/public}\n",
			expectedField: "internal_repository.additional_files_re",
		},
		{
			name:          "invalid_noisy_files_pattern",
			document:      "name: demo\nnoisy_files_re: '['\n" + repositories,
			expectedField: "noisy_files_re",
		},
		{
			name:          "unknown_project_space",
			document:      "name: demo\ntranslators: [{type: identity, from_project_space: internal, to_project_space: mirror}]\n" + repositories,
			expectedField: "translators[0].to_project_space",
		},
		{
			name:          "unknown_merge_strategy",
			document:      "name: demo\nexport_strategy: {merge_strategy: rebase}\n" + repositories,
			expectedField: "export_strategy.merge_strategy",
		},
		{
			name:          "unknown_commit_strategy",
			document:      "name: demo\nimport_strategy: {commit_strategy: someday}\n" + repositories,
			expectedField: "import_strategy.commit_strategy",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, parseError := project.Parse([]byte(testCase.document), nil)
			var configurationError project.InvalidConfigurationError
			require.True(testInstance, errors.As(parseError, &configurationError))
			require.Equal(testInstance, testCase.expectedField, configurationError.FieldName)
		})
	}
}

func TestLoadReadsConfigurationFile(testInstance *testing.T) {
	configurationPath := filepath.Join(testInstance.TempDir(), "widgets.yaml")
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(completeConfigurationConstant), 0o600))

	loadedProject, loadError := project.Load(configurationPath, newTestExpander())
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "widgets", loadedProject.Name)

	_, missingPathError := project.Load(" ", nil)
	var configurationError project.InvalidConfigurationError
	require.True(testInstance, errors.As(missingPathError, &configurationError))
	require.Equal(testInstance, "path", configurationError.FieldName)

	_, unreadableError := project.Load(filepath.Join(testInstance.TempDir(), "absent.yaml"), nil)
	require.ErrorIs(testInstance, unreadableError, os.ErrNotExist)
}
