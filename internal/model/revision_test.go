package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/model"
)

const (
	testRepositoryNameConstant = "internal"
)

func TestNewRevisionParsesMigrationMarker(testInstance *testing.T) {
	testCases := []struct {
		name                string
		changelog           string
		expectedMigrationID string
	}{
		{
			name:                "marker_present",
			changelog:           "Fix bug\n\nRevision created by codesync push.\nMOE_MIGRATION=1234\n",
			expectedMigrationID: "1234",
		},
		{
			name:                "marker_absent",
			changelog:           "Fix bug",
			expectedMigrationID: "",
		},
		{
			name:                "marker_with_word_identifier",
			changelog:           "MOE_MIGRATION=abc_12 trailing",
			expectedMigrationID: "abc_12",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			revision := model.NewRevision("1", testRepositoryNameConstant, model.RevisionOptions{Changelog: testCase.changelog})
			require.Equal(testInstance, testCase.expectedMigrationID, revision.MigrationID)
			require.Equal(testInstance, testCase.changelog, revision.SingleScrubbedLog())
		})
	}
}

func TestFormatMigrationMarkerRoundTrips(testInstance *testing.T) {
	marker := model.FormatMigrationMarker("42")
	require.Equal(testInstance, "MOE_MIGRATION=42", marker)
	require.Equal(testInstance, "42", model.ParseMigrationMarker(marker))
}

func TestConcatenateChangelogs(testInstance *testing.T) {
	testCases := []struct {
		name     string
		logs     []string
		expected string
	}{
		{
			name:     "empty",
			logs:     nil,
			expected: "",
		},
		{
			name:     "single_revision_uses_its_log",
			logs:     []string{"only"},
			expected: "only",
		},
		{
			name:     "logs_without_trailing_newline",
			logs:     []string{"first", "second"},
			expected: "first\n\nsecond",
		},
		{
			name:     "logs_with_trailing_newline",
			logs:     []string{"first\n", "second\n", "third"},
			expected: "first\n\nsecond\n\nthird",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			revisions := make([]model.Revision, 0, len(testCase.logs))
			for _, log := range testCase.logs {
				revisions = append(revisions, model.NewRevision("r", testRepositoryNameConstant, model.RevisionOptions{Changelog: log}))
			}
			require.Equal(testInstance, testCase.expected, model.ConcatenateChangelogs(revisions))
		})
	}
}

func TestParseStrategies(testInstance *testing.T) {
	mergeStrategy, mergeError := model.ParseMergeStrategy(" Merge ")
	require.NoError(testInstance, mergeError)
	require.Equal(testInstance, model.MergeStrategyMerge, mergeStrategy)

	_, invalidMergeError := model.ParseMergeStrategy("rebase")
	require.Error(testInstance, invalidMergeError)

	commitStrategy, commitError := model.ParseCommitStrategy("commit_remotely")
	require.NoError(testInstance, commitError)
	require.Equal(testInstance, model.CommitStrategyCommitRemotely, commitStrategy)

	status, statusError := model.ParseMigrationStatus("submitted")
	require.NoError(testInstance, statusError)
	require.True(testInstance, status.IsTerminal())

	direction, directionError := model.ParseMigrationDirection("import")
	require.NoError(testInstance, directionError)
	require.Equal(testInstance, model.RepositorySidePublic, direction.SourceSide())
}
