package actions_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/actions"
	ledgertestsupport "github.com/temirov/codesync/internal/ledger/testsupport"
	"github.com/temirov/codesync/internal/merge"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/project"
	"github.com/temirov/codesync/internal/report"
	"github.com/temirov/codesync/internal/repository"
	"github.com/temirov/codesync/internal/repository/testsupport"
	"github.com/temirov/codesync/internal/translate"
)

const (
	testInternalNameConstant = "demo_internal"
	testPublicNameConstant   = "demo_public"
	testFileNameConstant     = "lib/main.go"
	testBaseContentsConstant = "package lib\n"
	testCommitIDConstant     = "abc123"
)

type runFixture struct {
	internal   *testsupport.RepositoryStub
	public     *testsupport.RepositoryStub
	editor     *testsupport.EditorStub
	ledger     *ledgertestsupport.MemoryLedger
	report     *report.Report
	runContext *actions.RunContext
}

func treeWith(contents string) testsupport.Tree {
	return testsupport.Tree{testFileNameConstant: {Contents: contents}}
}

func internalRevision(revisionID string) model.Revision {
	return model.NewRevision(revisionID, testInternalNameConstant, model.RevisionOptions{Changelog: "Change " + revisionID})
}

// newRunFixture builds an internal repository at 1000 and a public repository at p0 holding the same tree.
func newRunFixture(testInstance *testing.T) *runFixture {
	workspace := testInstance.TempDir()
	editor := &testsupport.EditorStub{
		Directory:   filepath.Join(workspace, "editor"),
		InitialTree: treeWith(testBaseContentsConstant),
		CommitID:    testCommitIDConstant,
	}
	internalRepository := &testsupport.RepositoryStub{
		RepositoryName: testInternalNameConstant,
		HeadRevision:   "1000",
		Trees:          map[string]testsupport.Tree{"1000": treeWith(testBaseContentsConstant)},
	}
	publicRepository := &testsupport.RepositoryStub{
		RepositoryName: testPublicNameConstant,
		HeadRevision:   "p0",
		Trees:          map[string]testsupport.Tree{"p0": treeWith(testBaseContentsConstant)},
		Editor:         editor,
	}

	internalCreator, internalError := repository.NewExportingCodebaseCreator(repository.ExportingCodebaseCreatorOptions{
		Repository:   internalRepository,
		ProjectSpace: model.ProjectSpaceInternal,
		Translators:  []translate.Translator{translate.NewIdentityTranslator(model.ProjectSpaceInternal, model.ProjectSpacePublic)},
		ExportRoot:   workspace,
	})
	require.NoError(testInstance, internalError)
	publicCreator, publicError := repository.NewExportingCodebaseCreator(repository.ExportingCodebaseCreatorOptions{
		Repository:   publicRepository,
		ProjectSpace: model.ProjectSpacePublic,
		Translators:  []translate.Translator{translate.NewIdentityTranslator(model.ProjectSpacePublic, model.ProjectSpaceInternal)},
		ExportRoot:   workspace,
	})
	require.NoError(testInstance, publicError)

	memoryLedger := ledgertestsupport.NewMemoryLedger()
	runReport := report.New(nil)
	return &runFixture{
		internal: internalRepository,
		public:   publicRepository,
		editor:   editor,
		ledger:   memoryLedger,
		report:   runReport,
		runContext: &actions.RunContext{
			InternalCreator: internalCreator,
			PublicCreator:   publicCreator,
			Ledger:          memoryLedger,
			Report:          runReport,
			Project: &project.Project{
				Name:           "demo",
				ImportStrategy: model.MigrationStrategy{MergeStrategy: model.MergeStrategyMerge, CommitStrategy: model.CommitStrategyLeavePending},
				ExportStrategy: model.MigrationStrategy{MergeStrategy: model.MergeStrategyOverwrite, CommitStrategy: model.CommitStrategyLeavePending},
			},
		},
	}
}

func (fixture *runFixture) exportMigration(revisions []model.Revision, numToMigrate int) *actions.Migration {
	return &actions.Migration{
		PreviousRevision: internalRevision("1000"),
		AppliedAgainst:   model.NewRevision("p0", testPublicNameConstant, model.RevisionOptions{}),
		Revisions:        revisions,
		Config:           actions.NewMigrationConfig(fixture.runContext, model.MigrationDirectionExport),
		NumToMigrate:     numToMigrate,
	}
}

type recordingAction struct {
	name     string
	executed *[]string
	update   *actions.StateUpdate
	failure  error
}

func (action *recordingAction) Name() string {
	return action.name
}

func (action *recordingAction) Execute(_ context.Context, _ *actions.RunContext, _ []actions.Action) (*actions.StateUpdate, error) {
	*action.executed = append(*action.executed, action.name)
	return action.update, action.failure
}

type failingMerger struct {
	failedFiles []string
	inputs      []merge.Inputs
}

func (merger *failingMerger) Merge(_ context.Context, inputs merge.Inputs) (*merge.Result, error) {
	merger.inputs = append(merger.inputs, inputs)
	return &merge.Result{MergedCodebase: inputs.Generated, FailedMerges: merger.failedFiles}, nil
}
