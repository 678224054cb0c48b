package push_test

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/push"
	"github.com/temirov/codesync/internal/report"
	"github.com/temirov/codesync/internal/repository/testsupport"
)

func sourceCodebase(testInstance *testing.T, tree testsupport.Tree, options codebase.Options) *codebase.Codebase {
	testInstance.Helper()
	directory := testInstance.TempDir()
	require.NoError(testInstance, testsupport.WriteTree(directory, tree))
	return codebase.New(directory, model.ProjectSpacePublic, options)
}

func TestCommitMessageCarriesMigrationMarker(testInstance *testing.T) {
	message := push.CommitMessage("Fix widget", "42")
	require.Equal(testInstance, "\nFix widget\n\nRevision created by codesync push.\nMOE_MIGRATION=42\n", message)
	require.Equal(testInstance, "42", model.ParseMigrationMarker(message))

	plainMessage := push.CommitMessage("Fix widget", "")
	require.Equal(testInstance, "\nFix widget\n\nRevision created by codesync push.\n", plainMessage)
	require.Empty(testInstance, model.ParseMigrationMarker(plainMessage))
}

func TestPushOutcomes(testInstance *testing.T) {
	testCases := []struct {
		name          string
		initialTree   testsupport.Tree
		leavePending  bool
		expectedKind  push.OutcomeKind
		expectedID    string
		expectedTodos int
	}{
		{
			name:         "committed",
			initialTree:  testsupport.Tree{"a.txt": {Contents: "old\n"}, "stale.txt": {Contents: "gone\n"}},
			expectedKind: push.OutcomeCommitted,
			expectedID:   "abc123",
		},
		{
			name:          "pending",
			initialTree:   testsupport.Tree{"a.txt": {Contents: "old\n"}},
			leavePending:  true,
			expectedKind:  push.OutcomePending,
			expectedTodos: 1,
		},
		{
			name:         "nothing_pushed",
			initialTree:  testsupport.Tree{"a.txt": {Contents: "new\n"}},
			expectedKind: push.OutcomeNothingPushed,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			source := sourceCodebase(testInstance, testsupport.Tree{"a.txt": {Contents: "new\n"}}, codebase.Options{})
			editor := &testsupport.EditorStub{
				Directory:    filepath.Join(testInstance.TempDir(), "editor"),
				InitialTree:  testCase.initialTree,
				CommitID:     "abc123",
				LeavePending: testCase.leavePending,
			}
			runReport := report.New(nil)
			pusher, pusherError := push.NewPusher(push.Options{
				Source:      source,
				Editor:      editor,
				Reporter:    runReport,
				Changelog:   "Update a",
				MigrationID: "7",
			})
			require.NoError(testInstance, pusherError)

			outcome, pushError := pusher.Push(context.Background())
			require.NoError(testInstance, pushError)
			require.Equal(testInstance, testCase.expectedKind, outcome.Kind)
			require.Equal(testInstance, testCase.expectedID, outcome.CommitID)
			require.Len(testInstance, runReport.Todos(), testCase.expectedTodos)
			require.Equal(testInstance, 1, editor.Checkouts)
			require.Equal(testInstance, []string{push.CommitMessage("Update a", "7")}, editor.FinalizedMessages)

			files, walkError := editor.Walk()
			require.NoError(testInstance, walkError)
			require.Equal(testInstance, []string{"a.txt"}, files)
		})
	}
}

func TestPushHonorsIgnorePattern(testInstance *testing.T) {
	source := sourceCodebase(testInstance, testsupport.Tree{"a.txt": {Contents: "new\n"}}, codebase.Options{})
	editor := &testsupport.EditorStub{
		Directory:   filepath.Join(testInstance.TempDir(), "editor"),
		InitialTree: testsupport.Tree{"generated/keep.txt": {Contents: "kept\n"}},
		CommitID:    "abc123",
	}
	pusher, pusherError := push.NewPusher(push.Options{
		Source:        source,
		Editor:        editor,
		IgnorePattern: regexp.MustCompile(`^generated/`),
	})
	require.NoError(testInstance, pusherError)

	_, pushError := pusher.Push(context.Background())
	require.NoError(testInstance, pushError)
	require.Equal(testInstance, []string{"a.txt"}, editor.PutFiles)
	contents, readError := editor.ReadFile("generated/keep.txt")
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "kept\n", contents)
}

func TestPushRejectsEmptySource(testInstance *testing.T) {
	pattern, patternError := codebase.CompilePattern(`.*`)
	require.NoError(testInstance, patternError)
	source := sourceCodebase(testInstance, testsupport.Tree{"a.txt": {Contents: "new\n"}}, codebase.Options{AdditionalFilesPattern: pattern})
	editor := &testsupport.EditorStub{Directory: filepath.Join(testInstance.TempDir(), "editor")}

	pusher, pusherError := push.NewPusher(push.Options{Source: source, Editor: editor})
	require.NoError(testInstance, pusherError)
	_, pushError := pusher.Push(context.Background())
	require.ErrorIs(testInstance, pushError, push.ErrNoFilesToPush)
	require.Empty(testInstance, editor.PutFiles)
}

func TestNewPusherValidatesOptions(testInstance *testing.T) {
	_, missingSourceError := push.NewPusher(push.Options{Editor: &testsupport.EditorStub{}})
	require.ErrorIs(testInstance, missingSourceError, push.ErrMissingSource)
	_, missingEditorError := push.NewPusher(push.Options{Source: codebase.New(testInstance.TempDir(), model.ProjectSpacePublic, codebase.Options{})})
	require.ErrorIs(testInstance, missingEditorError, push.ErrMissingEditor)
}
