package gitrepo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/execshell"
	"github.com/temirov/codesync/internal/gitrepo"
	"github.com/temirov/codesync/internal/model"
)

const (
	testRepositoryNameConstant = "project_git"
	testAuthorEmailConstant    = "author@example.com"
)

// cloningExecutor performs clones with go-git and records every other command.
type cloningExecutor struct {
	outputs  map[string]string
	commands [][]string
}

func (executor *cloningExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.commands = append(executor.commands, details.Arguments)
	if details.Arguments[0] == "clone" {
		argumentCount := len(details.Arguments)
		_, cloneError := git.PlainClone(details.Arguments[argumentCount-1], false, &git.CloneOptions{URL: details.Arguments[argumentCount-2]})
		return execshell.ExecutionResult{}, cloneError
	}
	return execshell.ExecutionResult{StandardOutput: executor.outputs[details.Arguments[0]]}, nil
}

type commitFixture struct {
	message string
	files   map[string]string
	scripts []string
}

func createOrigin(testInstance *testing.T, commits []commitFixture) (string, []string) {
	testInstance.Helper()
	originDirectory := testInstance.TempDir()
	origin, initError := git.PlainInit(originDirectory, false)
	require.NoError(testInstance, initError)
	worktree, worktreeError := origin.Worktree()
	require.NoError(testInstance, worktreeError)

	commitTime := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	hashes := make([]string, 0, len(commits))
	for _, fixture := range commits {
		for relativeFileName, contents := range fixture.files {
			targetPath := filepath.Join(originDirectory, relativeFileName)
			require.NoError(testInstance, os.MkdirAll(filepath.Dir(targetPath), 0o755))
			require.NoError(testInstance, os.WriteFile(targetPath, []byte(contents), 0o644))
		}
		for _, script := range fixture.scripts {
			require.NoError(testInstance, os.Chmod(filepath.Join(originDirectory, script), 0o755))
		}
		for relativeFileName := range fixture.files {
			_, addError := worktree.Add(relativeFileName)
			require.NoError(testInstance, addError)
		}
		commitTime = commitTime.Add(time.Hour)
		hash, commitError := worktree.Commit(fixture.message, &git.CommitOptions{
			Author: &object.Signature{Name: "Author", Email: testAuthorEmailConstant, When: commitTime},
		})
		require.NoError(testInstance, commitError)
		hashes = append(hashes, hash.String()[:gitrepo.RevisionIDLength])
	}
	return originDirectory, hashes
}

func newRepository(testInstance *testing.T, origin string, initialWindow int, maxWindow int) *gitrepo.Repository {
	testInstance.Helper()
	gitRepository, constructionError := gitrepo.NewRepository(gitrepo.RepositoryOptions{
		Name:          testRepositoryNameConstant,
		URL:           origin,
		TemporaryRoot: testInstance.TempDir(),
		InitialWindow: initialWindow,
		MaxWindow:     maxWindow,
		Executor:      &cloningExecutor{},
	})
	require.NoError(testInstance, constructionError)
	return gitRepository
}

type equivalenceFinderStub struct {
	equivalentRevision string
	queried            []string
}

func (finder *equivalenceFinderStub) FindEquivalences(_ context.Context, revision model.Revision, side model.RepositorySide) ([]model.Equivalence, error) {
	finder.queried = append(finder.queried, revision.ID)
	if revision.ID != finder.equivalentRevision {
		return nil, nil
	}
	correspondence := model.Correspondence{InternalRevision: revision.ID, PublicRevision: "public"}
	if side == model.RepositorySidePublic {
		correspondence = model.Correspondence{InternalRevision: "internal", PublicRevision: revision.ID}
	}
	return []model.Equivalence{{Correspondence: correspondence}}, nil
}

func TestGetHeadRevision(testInstance *testing.T) {
	origin, hashes := createOrigin(testInstance, []commitFixture{
		{message: "first", files: map[string]string{"a.txt": "a\n"}},
		{message: "second", files: map[string]string{"a.txt": "b\n"}},
	})
	gitRepository := newRepository(testInstance, origin, 0, 0)

	testCases := []struct {
		name          string
		maxRevisionID string
		expected      string
		expectError   bool
	}{
		{name: "head_by_default", expected: hashes[1]},
		{name: "explicit_head", maxRevisionID: "HEAD", expected: hashes[1]},
		{name: "abbreviated_id", maxRevisionID: hashes[0], expected: hashes[0]},
		{name: "wrong_length", maxRevisionID: hashes[0][:7], expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			head, headError := gitRepository.GetHeadRevision(context.Background(), testCase.maxRevisionID)
			if testCase.expectError {
				require.Error(testInstance, headError)
				return
			}
			require.NoError(testInstance, headError)
			require.Equal(testInstance, testCase.expected, head)
		})
	}
}

func TestExportWritesTreeWithExecutableBits(testInstance *testing.T) {
	origin, hashes := createOrigin(testInstance, []commitFixture{
		{message: "first", files: map[string]string{"src/main.go": "package main\n", "run.sh": "#!/bin/sh\n"}, scripts: []string{"run.sh"}},
		{message: "second", files: map[string]string{"src/main.go": "package main // v2\n"}},
	})
	gitRepository := newRepository(testInstance, origin, 0, 0)
	exportDirectory := filepath.Join(testInstance.TempDir(), "export")

	require.NoError(testInstance, gitRepository.Export(context.Background(), exportDirectory, hashes[0]))

	contents, readError := os.ReadFile(filepath.Join(exportDirectory, "src", "main.go"))
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "package main\n", string(contents))

	scriptInfo, statError := os.Stat(filepath.Join(exportDirectory, "run.sh"))
	require.NoError(testInstance, statError)
	require.NotZero(testInstance, scriptInfo.Mode().Perm()&0o111)

	_, gitDirectoryError := os.Stat(filepath.Join(exportDirectory, ".git"))
	require.True(testInstance, os.IsNotExist(gitDirectoryError))
}

func TestRevisionsSinceEquivalence(testInstance *testing.T) {
	origin, hashes := createOrigin(testInstance, []commitFixture{
		{message: "base", files: map[string]string{"a.txt": "0\n"}},
		{message: "one\n\nMOE_MIGRATION=7\n", files: map[string]string{"a.txt": "1\n"}},
		{message: "two", files: map[string]string{"a.txt": "2\n"}},
		{message: "three", files: map[string]string{"a.txt": "3\n"}},
	})

	testCases := []struct {
		name          string
		initialWindow int
		maxWindow     int
		expectError   bool
	}{
		{name: "default_window", initialWindow: 0, maxWindow: 0},
		{name: "window_widens", initialWindow: 1, maxWindow: 8},
		{name: "window_exhausted", initialWindow: 1, maxWindow: 2, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			gitRepository := newRepository(testInstance, origin, testCase.initialWindow, testCase.maxWindow)
			finder := &equivalenceFinderStub{equivalentRevision: hashes[0]}

			revisions, equivalences, walkError := gitRepository.RevisionsSinceEquivalence(context.Background(), hashes[3], model.RepositorySideInternal, finder)
			if testCase.expectError {
				require.Error(testInstance, walkError)
				return
			}
			require.NoError(testInstance, walkError)
			require.Equal(testInstance, []string{hashes[3], hashes[2], hashes[1]}, model.RevisionIDs(revisions))
			require.Len(testInstance, equivalences, 1)
			require.Equal(testInstance, hashes[0], equivalences[0].InternalRevision)
			require.Equal(testInstance, "7", revisions[2].MigrationID)
			require.Equal(testInstance, testAuthorEmailConstant, revisions[0].Author)
			require.Equal(testInstance, testRepositoryNameConstant, revisions[0].RepositoryName)
		})
	}
}

func TestNewRepositoryValidatesOptions(testInstance *testing.T) {
	testCases := []struct {
		name     string
		options  gitrepo.RepositoryOptions
		expected error
	}{
		{name: "missing_name", options: gitrepo.RepositoryOptions{TemporaryRoot: "/tmp", URL: "u", Executor: &cloningExecutor{}}, expected: gitrepo.ErrMissingName},
		{name: "missing_temporary_root", options: gitrepo.RepositoryOptions{Name: "n", URL: "u", Executor: &cloningExecutor{}}, expected: gitrepo.ErrMissingTemporaryRoot},
		{name: "missing_url", options: gitrepo.RepositoryOptions{Name: "n", TemporaryRoot: "/tmp", Executor: &cloningExecutor{}}, expected: gitrepo.ErrMissingURL},
		{name: "missing_executor", options: gitrepo.RepositoryOptions{Name: "n", TemporaryRoot: "/tmp", URL: "u"}, expected: gitrepo.ErrMissingExecutor},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, constructionError := gitrepo.NewRepository(testCase.options)
			require.ErrorIs(testInstance, constructionError, testCase.expected)
		})
	}
}

func TestRepositoryName(testInstance *testing.T) {
	require.Equal(testInstance, "widget_git", gitrepo.RepositoryName("widget"))
}
