package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/repository"
	"github.com/temirov/codesync/internal/repository/testsupport"
	"github.com/temirov/codesync/internal/translate"
)

func newStubRepository() *testsupport.RepositoryStub {
	return &testsupport.RepositoryStub{
		RepositoryName: "internal_git",
		HeadRevision:   "r2",
		Trees: map[string]testsupport.Tree{
			"r1": {"main.go": {Contents: "v1\n"}},
			"r2": {"main.go": {Contents: "v2\n"}, "run.sh": {Contents: "#!/bin/sh\n", Executable: true}},
		},
		ExportErrors: map[string]error{"broken": errors.New("tree unavailable")},
	}
}

func newCreator(testInstance *testing.T, stub *testsupport.RepositoryStub, translators []translate.Translator) *repository.ExportingCodebaseCreator {
	testInstance.Helper()
	creator, creationError := repository.NewExportingCodebaseCreator(repository.ExportingCodebaseCreatorOptions{
		Repository:   stub,
		ProjectSpace: model.ProjectSpaceInternal,
		Translators:  translators,
		ExportRoot:   testInstance.TempDir(),
	})
	require.NoError(testInstance, creationError)
	return creator
}

func TestExportingCodebaseCreatorReusesRevisionExports(testInstance *testing.T) {
	stub := newStubRepository()
	creator := newCreator(testInstance, stub, nil)

	first, firstError := creator.Create(context.Background(), "r1")
	require.NoError(testInstance, firstError)
	second, secondError := creator.Create(context.Background(), "r1")
	require.NoError(testInstance, secondError)

	require.Equal(testInstance, first.Root(), second.Root())
	require.Equal(testInstance, []string{"r1"}, stub.ExportedRevisions)
	require.Equal(testInstance, "r1", first.RevisionID())

	files, walkError := first.Walk()
	require.NoError(testInstance, walkError)
	require.Equal(testInstance, []string{"main.go"}, files)
}

func TestExportingCodebaseCreatorRefreshesHead(testInstance *testing.T) {
	stub := newStubRepository()
	creator := newCreator(testInstance, stub, nil)

	_, firstError := creator.Create(context.Background(), repository.HeadRevisionIdentifier)
	require.NoError(testInstance, firstError)
	head, secondError := creator.Create(context.Background(), repository.HeadRevisionIdentifier)
	require.NoError(testInstance, secondError)

	require.Equal(testInstance, []string{"r2", "r2"}, stub.ExportedRevisions)
	executable, executableError := codebase.IsExecutable(head.FilePath("run.sh"))
	require.NoError(testInstance, executableError)
	require.True(testInstance, executable)
}

func TestExportingCodebaseCreatorWrapsExportFailures(testInstance *testing.T) {
	stub := newStubRepository()
	creator := newCreator(testInstance, stub, nil)

	_, createError := creator.Create(context.Background(), "broken")
	var creationError codebase.CreationError
	require.ErrorAs(testInstance, createError, &creationError)
	require.Equal(testInstance, "broken", creationError.RevisionID)

	_, retryError := creator.Create(context.Background(), "broken")
	require.ErrorAs(testInstance, retryError, &creationError)
	require.Equal(testInstance, []string{"broken", "broken"}, stub.ExportedRevisions)
}

func TestExportingCodebaseCreatorTranslation(testInstance *testing.T) {
	testCases := []struct {
		name               string
		translators        []translate.Translator
		expectedSpace      model.ProjectSpace
		expectNoTranslator bool
	}{
		{
			name:          "identity_translation",
			translators:   []translate.Translator{translate.NewIdentityTranslator(model.ProjectSpaceInternal, model.ProjectSpacePublic)},
			expectedSpace: model.ProjectSpacePublic,
		},
		{
			name:               "missing_translator_is_not_a_creation_error",
			expectNoTranslator: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			creator := newCreator(testInstance, newStubRepository(), testCase.translators)
			translated, translateError := creator.CreateInProjectSpace(context.Background(), "r1", model.ProjectSpacePublic)
			if testCase.expectNoTranslator {
				require.ErrorIs(testInstance, translateError, translate.ErrNoTranslator)
				var creationError codebase.CreationError
				require.False(testInstance, errors.As(translateError, &creationError))
				return
			}
			require.NoError(testInstance, translateError)
			require.Equal(testInstance, testCase.expectedSpace, translated.ProjectSpace())
		})
	}
}

func TestNewExportingCodebaseCreatorValidatesOptions(testInstance *testing.T) {
	_, missingRepositoryError := repository.NewExportingCodebaseCreator(repository.ExportingCodebaseCreatorOptions{ExportRoot: testInstance.TempDir()})
	require.ErrorIs(testInstance, missingRepositoryError, repository.ErrMissingRepository)

	_, missingRootError := repository.NewExportingCodebaseCreator(repository.ExportingCodebaseCreatorOptions{Repository: newStubRepository()})
	require.ErrorIs(testInstance, missingRootError, repository.ErrMissingExportRoot)
}
