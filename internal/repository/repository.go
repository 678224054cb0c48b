package repository

import (
	"context"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/report"
)

// HeadRevisionIdentifier asks a backend for the head of its configured branch.
const HeadRevisionIdentifier = ""

// EquivalenceFinder looks up stored equivalences that involve a revision.
type EquivalenceFinder interface {
	FindEquivalences(executionContext context.Context, revision model.Revision, side model.RepositorySide) ([]model.Equivalence, error)
}

// Reporter records run steps and follow-up items for the operator.
type Reporter interface {
	AddStep(name string, command string, commandArguments map[string]string) *report.Step
	AddTodo(text string)
}

// Repository is a source control backend.
type Repository interface {
	Name() string
	// Export writes the tree at revisionID into directory. HeadRevisionIdentifier exports the head.
	Export(executionContext context.Context, directory string, revisionID string) error
	GetHeadRevision(executionContext context.Context, maxRevisionID string) (string, error)
	// RevisionsSinceEquivalence walks history back from headRevisionID and returns the walked
	// revisions newest first together with the equivalences found at the stopping revision.
	RevisionsSinceEquivalence(executionContext context.Context, headRevisionID string, side model.RepositorySide, finder EquivalenceFinder) ([]model.Revision, []model.Equivalence, error)
	MakeRevisionFromID(revisionID string) model.Revision
	MakeEditor(executionContext context.Context, strategy model.MigrationStrategy, revisions []model.Revision) (Editor, error)
}

// Editor is a writable checkout that receives migrated files.
type Editor interface {
	Root() string
	Checkout(executionContext context.Context) error
	// Walk lists the relative paths of tracked content, excluding backend metadata.
	Walk() ([]string, error)
	// PutFile makes relativeFileName match sourcePath. A missing sourcePath deletes the file.
	PutFile(executionContext context.Context, relativeFileName string, sourcePath string) error
	FinalizeChange(executionContext context.Context, message string, reporter Reporter) error
	ChangesMade() bool
	// CommitChange commits finalized changes and returns the new revision, or an empty
	// string when the strategy leaves the change pending.
	CommitChange(executionContext context.Context) (string, error)
	Diff() string
	Link() string
}

// CodebaseCreator materializes codebases of one repository.
type CodebaseCreator interface {
	RepositoryName() string
	ProjectSpace() model.ProjectSpace
	Create(executionContext context.Context, revisionID string) (*codebase.Codebase, error)
	CreateInProjectSpace(executionContext context.Context, revisionID string, projectSpace model.ProjectSpace) (*codebase.Codebase, error)
	MakeEditor(executionContext context.Context, strategy model.MigrationStrategy, revisions []model.Revision) (Editor, error)
	MakeRevisionFromID(revisionID string) model.Revision
}
