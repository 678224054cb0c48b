package actions

import (
	"github.com/temirov/codesync/internal/bookkeeping"
	"github.com/temirov/codesync/internal/model"
)

// ChooseActions builds the initial plan of a run from its book: confirm the stored equivalence,
// note the equivalences of newly landed migrations, stop early when the heads already match,
// then migrate each direction that has pending revisions.
func ChooseActions(book *bookkeeping.Book, runContext *RunContext) []Action {
	plan := []Action{
		&EquivalenceCheck{InternalRevision: book.Equivalence.InternalRevision, PublicRevision: book.Equivalence.PublicRevision, Dispatch: ErrorIfDifferent},
	}
	for _, finished := range book.FinishedImports {
		plan = append(plan, &EquivalenceCheck{InternalRevision: finished.SubmittedAs.ID, PublicRevision: finished.UpToRevision.ID, Dispatch: NoteIfSame})
	}
	for _, finished := range book.FinishedExports {
		plan = append(plan, &EquivalenceCheck{InternalRevision: finished.UpToRevision.ID, PublicRevision: finished.SubmittedAs.ID, Dispatch: NoteIfSame})
	}
	plan = append(plan, &EquivalenceCheck{InternalRevision: book.Current.InternalRevision, PublicRevision: book.Current.PublicRevision, Dispatch: NoteAndStopIfSame})

	if len(book.RevisionsToImport) > 0 {
		plan = append(plan, newDirectionMigration(runContext, model.MigrationDirectionImport, book.Equivalence, book.LastImport, book.RevisionsToImport))
	}
	if len(book.RevisionsToExport) > 0 {
		plan = append(plan, newDirectionMigration(runContext, model.MigrationDirectionExport, book.Equivalence, book.LastExport, book.RevisionsToExport))
	}
	return plan
}

// NewMigrationConfig wires the creators and repository settings of direction.
func NewMigrationConfig(runContext *RunContext, direction model.MigrationDirection) MigrationConfig {
	config := MigrationConfig{
		Direction:              direction,
		SourceCreator:          runContext.InternalCreator,
		SourceRepositoryConfig: runContext.Project.Internal,
		TargetCreator:          runContext.PublicCreator,
		TargetRepositoryConfig: runContext.Project.Public,
		Strategy:               runContext.Project.Strategy(direction),
	}
	if direction == model.MigrationDirectionImport {
		config.SourceCreator, config.TargetCreator = runContext.PublicCreator, runContext.InternalCreator
		config.SourceRepositoryConfig, config.TargetRepositoryConfig = runContext.Project.Public, runContext.Project.Internal
	}
	return config
}

// newDirectionMigration starts from the last submitted migration of direction, or from the
// equivalence when none landed since.
func newDirectionMigration(runContext *RunContext, direction model.MigrationDirection, equivalence model.Correspondence, lastMigration *model.Migration, revisions []model.Revision) *Migration {
	config := NewMigrationConfig(runContext, direction)
	sourceSide := direction.SourceSide()
	targetSide := model.RepositorySideInternal
	if sourceSide == model.RepositorySideInternal {
		targetSide = model.RepositorySidePublic
	}

	var previousRevision, appliedAgainst model.Revision
	if lastMigration != nil && lastMigration.SubmittedAs != nil {
		previousRevision = lastMigration.UpToRevision
		appliedAgainst = *lastMigration.SubmittedAs
	} else {
		previousRevision = config.SourceCreator.MakeRevisionFromID(equivalence.RevisionFor(sourceSide))
		appliedAgainst = config.TargetCreator.MakeRevisionFromID(equivalence.RevisionFor(targetSide))
	}

	numToMigrate := MigrateAll
	if config.Strategy.SeparateRevisions {
		numToMigrate = 1
	}
	return &Migration{
		PreviousRevision: previousRevision,
		AppliedAgainst:   appliedAgainst,
		Revisions:        revisions,
		Config:           config,
		NumToMigrate:     numToMigrate,
	}
}
