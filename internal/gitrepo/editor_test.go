package gitrepo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/gitrepo"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/report"
)

const (
	testRemoteConstant = "https://github.com/example/widget.git"
	testBranchConstant = "main"
)

func newEditor(testInstance *testing.T, executor *cloningExecutor, commitStrategy model.CommitStrategy) *gitrepo.Editor {
	testInstance.Helper()
	client, clientError := gitrepo.NewClient(executor, testRemoteConstant, testBranchConstant)
	require.NoError(testInstance, clientError)
	editor, editorError := gitrepo.NewEditor(gitrepo.EditorOptions{
		Directory: testInstance.TempDir(),
		Client:    client,
		Strategy:  model.MigrationStrategy{CommitStrategy: commitStrategy},
	})
	require.NoError(testInstance, editorError)
	return editor
}

func TestEditorPutFile(testInstance *testing.T) {
	executor := &cloningExecutor{}
	editor := newEditor(testInstance, executor, model.CommitStrategyLeavePending)
	sourceDirectory := testInstance.TempDir()
	require.NoError(testInstance, os.WriteFile(filepath.Join(sourceDirectory, "new.txt"), []byte("new\n"), 0o755))
	require.NoError(testInstance, os.WriteFile(filepath.Join(editor.Root(), "old.txt"), []byte("old\n"), 0o644))

	require.NoError(testInstance, editor.PutFile(context.Background(), "dir/new.txt", filepath.Join(sourceDirectory, "new.txt")))
	require.NoError(testInstance, editor.PutFile(context.Background(), "old.txt", filepath.Join(sourceDirectory, "old.txt")))
	require.Error(testInstance, editor.PutFile(context.Background(), "ghost.txt", filepath.Join(sourceDirectory, "ghost.txt")))

	copied, readError := os.ReadFile(filepath.Join(editor.Root(), "dir", "new.txt"))
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "new\n", string(copied))
	require.Equal(testInstance, [][]string{
		{"add", "--", "dir/new.txt"},
		{"rm", "-q", "--", "old.txt"},
	}, executor.commands)
}

func TestEditorFinalizeChange(testInstance *testing.T) {
	testCases := []struct {
		name             string
		status           string
		commitStrategy   model.CommitStrategy
		expectedModified bool
		expectedTodos    int
		expectedSteps    int
		expectMessage    bool
	}{
		{name: "clean_tree", status: "", commitStrategy: model.CommitStrategyLeavePending},
		{name: "pending_change", status: " M a.txt\n", commitStrategy: model.CommitStrategyLeavePending, expectedModified: true, expectedTodos: 2, expectMessage: true},
		{name: "committed_change", status: " M a.txt\n", commitStrategy: model.CommitStrategyCommitLocally, expectedModified: true, expectedSteps: 1},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &cloningExecutor{outputs: map[string]string{"status": testCase.status, "diff": "diff --git a/a.txt b/a.txt\n"}}
			editor := newEditor(testInstance, executor, testCase.commitStrategy)
			runReport := report.New(zap.NewNop())

			require.NoError(testInstance, editor.FinalizeChange(context.Background(), "message\nMOE_MIGRATION=3\n", runReport))
			require.Equal(testInstance, testCase.expectedModified, editor.ChangesMade())
			require.Len(testInstance, runReport.Todos(), testCase.expectedTodos)
			require.Len(testInstance, runReport.Steps(), testCase.expectedSteps)

			messageContents, readError := os.ReadFile(filepath.Join(editor.Root(), ".git-commit.tmp"))
			if !testCase.expectMessage {
				require.True(testInstance, os.IsNotExist(readError))
				return
			}
			require.NoError(testInstance, readError)
			require.Equal(testInstance, "message\nMOE_MIGRATION=3\n", string(messageContents))
			require.Contains(testInstance, runReport.Todos()[1], "git commit -F .git-commit.tmp")
			require.Equal(testInstance, "diff --git a/a.txt b/a.txt\n", editor.Diff())
		})
	}
}

func TestEditorFinalizeChangeRefusesExistingMessageFile(testInstance *testing.T) {
	editor := newEditor(testInstance, &cloningExecutor{}, model.CommitStrategyLeavePending)
	require.NoError(testInstance, os.WriteFile(filepath.Join(editor.Root(), ".git-commit.tmp"), []byte("stale"), 0o644))
	require.Error(testInstance, editor.FinalizeChange(context.Background(), "message", report.New(nil)))
}

func TestEditorCommitChange(testInstance *testing.T) {
	testCases := []struct {
		name             string
		status           string
		commitStrategy   model.CommitStrategy
		expectedCommit   string
		expectedCommands [][]string
		expectedLink     string
	}{
		{
			name:           "leave_pending",
			status:         " M a.txt\n",
			commitStrategy: model.CommitStrategyLeavePending,
		},
		{
			name:           "clean_tree_commit_locally",
			commitStrategy: model.CommitStrategyCommitLocally,
		},
		{
			name:           "clean_tree_commit_remotely",
			commitStrategy: model.CommitStrategyCommitRemotely,
		},
		{
			name:           "commit_locally",
			status:         " M a.txt\n",
			commitStrategy: model.CommitStrategyCommitLocally,
			expectedCommit: "abc123abc123",
			expectedCommands: [][]string{
				{"commit", "-m", "message"},
				{"rev-parse", "--short=12", "HEAD"},
			},
		},
		{
			name:           "commit_remotely",
			status:         " M a.txt\n",
			commitStrategy: model.CommitStrategyCommitRemotely,
			expectedCommit: "abc123abc123",
			expectedCommands: [][]string{
				{"commit", "-m", "message"},
				{"rev-parse", "--short=12", "HEAD"},
				{"push", testRemoteConstant, "HEAD:refs/heads/main"},
			},
			expectedLink: "https://github.com/example/widget/commit/abc123abc123",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &cloningExecutor{outputs: map[string]string{"status": testCase.status, "rev-parse": "abc123abc123\n"}}
			editor := newEditor(testInstance, executor, testCase.commitStrategy)
			require.NoError(testInstance, editor.FinalizeChange(context.Background(), "message", report.New(nil)))
			require.Equal(testInstance, len(testCase.status) > 0, editor.ChangesMade())
			executor.commands = nil

			commitID, commitError := editor.CommitChange(context.Background())
			require.NoError(testInstance, commitError)
			require.Equal(testInstance, testCase.expectedCommit, commitID)
			if testCase.expectedCommands == nil {
				require.Empty(testInstance, executor.commands)
			} else {
				require.Equal(testInstance, testCase.expectedCommands, executor.commands)
			}
			require.Equal(testInstance, testCase.expectedLink, editor.Link())
		})
	}
}
