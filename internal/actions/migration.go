package actions

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/ledger"
	"github.com/temirov/codesync/internal/merge"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/project"
	"github.com/temirov/codesync/internal/push"
	"github.com/temirov/codesync/internal/report"
	"github.com/temirov/codesync/internal/repository"
)

// MigrateAll asks a Migration to move every candidate revision in one batch.
const MigrateAll = -1

const (
	migrationNameConstant                  = "migration"
	migrationTaskTemplateConstant          = "Migrating %s up to revision %s by applying it against %s"
	mergeStrategyErrorTemplateConstant     = "attempted %s with the error merge strategy"
	missingMergerMessageConstant           = "merge strategy requires a merger"
	alreadySubmittedStepNameConstant       = "migrate_changes"
	alreadySubmittedCommandConstant        = "find_migration"
	alreadySubmittedTemplateConstant       = "%s of revisions [%s, %s] has already been submitted in migration %s"
	resolveMergesTodoTemplateConstant      = "Resolve failed merges in %s"
	approveOnDashboardTodoTemplateConstant = "Alternately, visit the project dashboard at %s, approve each migration, then rerun codesync manage"
	createPreviousErrorTemplateConstant    = "unable to create previous codebase at %s: %w"
	createBaseErrorTemplateConstant        = "unable to create destination codebase at %s: %w"
	compareSourcesErrorTemplateConstant    = "unable to compare %s with %s: %w"
	findMigrationErrorTemplateConstant     = "unable to look up migration up to %s: %w"
	startMigrationErrorTemplateConstant    = "unable to start migration up to %s: %w"
	mergeErrorTemplateConstant             = "unable to merge codebases: %w"
	editorErrorTemplateConstant            = "unable to create editor: %w"
	pushErrorTemplateConstant              = "unable to push migration %s: %w"
	recordDiffErrorTemplateConstant        = "unable to record diff of migration %s: %w"
	finishErrorTemplateConstant            = "unable to finish migration %s: %w"
	cancelErrorTemplateConstant            = "unable to cancel migration %s: %w"
	foldedMessageConstant                  = "revision could not be built; folding it into the next batch"
	noChangeMessageConstant                = "revisions change nothing; skipping"
	alreadySubmittedMessageConstant        = "migration already submitted"
	mockedMessageConstant                  = "migration recorded without pushing"
	completedMessageConstant               = "migration completed"
	pendingMessageConstant                 = "migration ready for human intervention"
	noOpMessageConstant                    = "migration resulted in a no-op"
	logFieldDirectionConstant              = "direction"
	logFieldUpToConstant                   = "up_to"
	logFieldMigrationConstant              = "migration_id"
	logFieldCommitConstant                 = "commit"
	logFieldBatchSizeConstant              = "batch_size"
)

// ErrMissingMerger indicates a merge-strategy migration run without a Merger.
var ErrMissingMerger = errors.New(missingMergerMessageConstant)

// MigrationConfig fixes the direction and the collaborators of one migration line.
type MigrationConfig struct {
	Direction              model.MigrationDirection
	SourceCreator          repository.CodebaseCreator
	SourceRepositoryConfig project.Repository
	TargetCreator          repository.CodebaseCreator
	TargetRepositoryConfig project.Repository
	Strategy               model.MigrationStrategy
}

// Migration moves a batch of revisions from the source repository to the destination.
type Migration struct {
	// PreviousRevision is the source revision the destination already reflects.
	PreviousRevision model.Revision
	// AppliedAgainst is the destination revision the batch is layered onto.
	AppliedAgainst model.Revision
	Revisions      []model.Revision
	Config         MigrationConfig
	// Mock records the migration in the ledger without pushing it.
	Mock bool
	// NumToMigrate is the batch size, or MigrateAll.
	NumToMigrate int
}

// Name identifies the action.
func (migration *Migration) Name() string {
	return migrationNameConstant
}

// Execute migrates the next batch of revisions.
func (migration *Migration) Execute(executionContext context.Context, runContext *RunContext, remaining []Action) (*StateUpdate, error) {
	if len(migration.Revisions) == 0 {
		return nil, nil
	}
	batch, _ := migration.split()
	task := runContext.Tasks.Begin(fmt.Sprintf(migrationTaskTemplateConstant, migration.Config.Direction, batch[len(batch)-1].ID, migration.AppliedAgainst.ID))
	update, migrationError := migration.perform(executionContext, runContext, remaining)
	if migrationError != nil {
		runContext.Tasks.Fail(task, migrationError)
		return nil, migrationError
	}
	runContext.Tasks.Complete(task)
	return update, nil
}

func (migration *Migration) split() ([]model.Revision, []model.Revision) {
	if migration.NumToMigrate == MigrateAll || migration.NumToMigrate >= len(migration.Revisions) {
		return migration.Revisions, nil
	}
	return migration.Revisions[:migration.NumToMigrate], migration.Revisions[migration.NumToMigrate:]
}

func (migration *Migration) perform(executionContext context.Context, runContext *RunContext, remaining []Action) (*StateUpdate, error) {
	logger := runContext.logger()
	batch, remainingRevisions := migration.split()
	upToRevision := batch[len(batch)-1]
	source := migration.Config.SourceCreator
	target := migration.Config.TargetCreator
	fields := []zap.Field{
		zap.String(logFieldDirectionConstant, string(migration.Config.Direction)),
		zap.String(logFieldUpToConstant, upToRevision.ID),
		zap.Int(logFieldBatchSizeConstant, len(batch)),
	}

	var followUp []Action
	var result *StateUpdate
	if len(remainingRevisions) > 0 {
		followUp = []Action{migration.next(upToRevision, remainingRevisions, migration.Mock)}
		result = &StateUpdate{Actions: prepend(followUp, remaining)}
	}

	previousSource, previousError := source.Create(executionContext, migration.PreviousRevision.ID)
	if previousError != nil {
		return nil, fmt.Errorf(createPreviousErrorTemplateConstant, migration.PreviousRevision.ID, previousError)
	}
	currentSource, translatedSource, sourceError := migration.buildSource(executionContext, upToRevision.ID)
	if sourceError != nil {
		var creationError codebase.CreationError
		if len(remainingRevisions) == 0 || !errors.As(sourceError, &creationError) {
			return nil, sourceError
		}
		logger.Info(foldedMessageConstant, append(fields, zap.Error(sourceError))...)
		folded := *migration
		folded.NumToMigrate = migration.NumToMigrate + 1
		return &StateUpdate{Actions: prepend([]Action{&folded}, remaining)}, nil
	}

	difference, compareError := codebase.AreCodebasesDifferent(previousSource, currentSource, runContext.Project.NoisyFilesPattern)
	if compareError != nil {
		return nil, fmt.Errorf(compareSourcesErrorTemplateConstant, migration.PreviousRevision.ID, upToRevision.ID, compareError)
	}
	if !difference.HasDifference() {
		logger.Info(noChangeMessageConstant, fields...)
		return result, nil
	}

	strategy := migration.Config.Strategy
	if strategy.MergeStrategy == model.MergeStrategyError {
		return nil, fmt.Errorf(mergeStrategyErrorTemplateConstant, migration.Config.Direction)
	}

	existing, findError := runContext.Ledger.FindMigration(executionContext, upToRevision)
	if findError != nil {
		return nil, fmt.Errorf(findMigrationErrorTemplateConstant, upToRevision.ID, findError)
	}
	var migrationID, changelog string
	switch {
	case existing == nil || existing.Status == model.MigrationStatusCanceled:
		changelog = model.ConcatenateChangelogs(batch)
		startedID, startError := runContext.Ledger.StartMigration(executionContext, ledger.StartMigrationRequest{
			Direction:    migration.Config.Direction,
			UpToRevision: upToRevision,
			Revisions:    batch,
			Changelog:    changelog,
			PreApproved:  strategy.PreapprovePublicChangelogs && allPreApproved(batch),
		})
		if startError != nil {
			return nil, fmt.Errorf(startMigrationErrorTemplateConstant, upToRevision.ID, startError)
		}
		migrationID = startedID
	case existing.Status == model.MigrationStatusSubmitted:
		step := runContext.Report.AddStep(alreadySubmittedStepNameConstant, alreadySubmittedCommandConstant, nil)
		step.SetResult(fmt.Sprintf(alreadySubmittedTemplateConstant, migration.Config.Direction, batch[0].ID, upToRevision.ID, existing.ID))
		logger.Warn(alreadySubmittedMessageConstant, append(fields, zap.String(logFieldMigrationConstant, existing.ID))...)
		return result, nil
	default:
		migrationID = existing.ID
		changelog = existing.Changelog
		if existing.Status == model.MigrationStatusApproved {
			strategy.CommitStrategy = model.CommitStrategyCommitRemotely
		}
	}
	fields = append(fields, zap.String(logFieldMigrationConstant, migrationID))

	if migration.Mock {
		logger.Info(mockedMessageConstant, fields...)
		return result, nil
	}

	baseCodebase, baseError := target.Create(executionContext, migration.AppliedAgainst.ID)
	if baseError != nil {
		return nil, fmt.Errorf(createBaseErrorTemplateConstant, migration.AppliedAgainst.ID, baseError)
	}
	codebaseToPush := translatedSource
	var mergeResult *merge.Result
	if strategy.MergeStrategy == model.MergeStrategyMerge {
		merged, mergeError := migration.merge(executionContext, runContext, baseCodebase, translatedSource)
		if mergeError != nil {
			return nil, mergeError
		}
		mergeResult = merged
		codebaseToPush = merged.MergedCodebase
	}

	editor, editorError := target.MakeEditor(executionContext, strategy, batch)
	if editorError != nil {
		return nil, fmt.Errorf(editorErrorTemplateConstant, editorError)
	}
	pusher, pusherError := push.NewPusher(push.Options{
		Source:        codebaseToPush,
		Editor:        editor,
		Reporter:      runContext.Report,
		IgnorePattern: runContext.Project.Public.AdditionalFilesPattern,
		Changelog:     changelog,
		MigrationID:   migrationID,
		Logger:        logger,
	})
	if pusherError != nil {
		return nil, fmt.Errorf(pushErrorTemplateConstant, migrationID, pusherError)
	}
	outcome, pushError := pusher.Push(executionContext)
	if pushError != nil {
		return nil, fmt.Errorf(pushErrorTemplateConstant, migrationID, pushError)
	}

	if outcome.Kind == push.OutcomeNothingPushed {
		if cancelError := runContext.Ledger.CancelMigration(executionContext, migrationID); cancelError != nil {
			return nil, fmt.Errorf(cancelErrorTemplateConstant, migrationID, cancelError)
		}
		logger.Info(noOpMessageConstant, fields...)
		return result, nil
	}

	if diffError := runContext.Ledger.UpdateMigrationDiff(executionContext, migrationID, editor.Diff(), editor.Link()); diffError != nil {
		return nil, fmt.Errorf(recordDiffErrorTemplateConstant, migrationID, diffError)
	}

	if outcome.Kind == push.OutcomeCommitted {
		logger.Info(completedMessageConstant, append(fields, zap.String(logFieldCommitConstant, outcome.CommitID))...)
		runContext.Report.RaiseReturnCode(report.ReturnCodeChangeProduced)
		if finishError := runContext.Ledger.FinishMigration(executionContext, migrationID, target.MakeRevisionFromID(outcome.CommitID)); finishError != nil {
			return nil, fmt.Errorf(finishErrorTemplateConstant, migrationID, finishError)
		}
		check := migration.equivalenceCheckFor(upToRevision, outcome.CommitID)
		return &StateUpdate{Actions: prepend(append([]Action{check}, followUp...), remaining)}, nil
	}

	logger.Info(pendingMessageConstant, fields...)
	runContext.Report.RaiseReturnCode(report.ReturnCodeInterventionRequired)
	if mergeResult.HasFailures() {
		runContext.Report.AddTodo(fmt.Sprintf(resolveMergesTodoTemplateConstant, editor.Root()))
	}
	if migration.Config.Direction == model.MigrationDirectionExport {
		runContext.Report.AddTodo(fmt.Sprintf(approveOnDashboardTodoTemplateConstant, runContext.Ledger.DashboardURL()))
	}
	if len(remainingRevisions) > 0 {
		return &StateUpdate{Actions: prepend([]Action{migration.next(upToRevision, remainingRevisions, true)}, remaining)}, nil
	}
	if len(remaining) > 0 {
		return &StateUpdate{Actions: mockMigrations(remaining)}, nil
	}
	return nil, nil
}

// buildSource creates the source codebase at revisionID and its translation into the
// destination project space.
func (migration *Migration) buildSource(executionContext context.Context, revisionID string) (*codebase.Codebase, *codebase.Codebase, error) {
	source := migration.Config.SourceCreator
	created, createError := source.Create(executionContext, revisionID)
	if createError != nil {
		return nil, nil, createError
	}
	translated, translateError := source.CreateInProjectSpace(executionContext, revisionID, migration.Config.TargetCreator.ProjectSpace())
	if translateError != nil {
		return nil, nil, translateError
	}
	return created, translated, nil
}

// merge reconciles the translated source with the destination base. The previous source revision
// is translated into the destination project space so all three inputs share it.
func (migration *Migration) merge(executionContext context.Context, runContext *RunContext, baseCodebase *codebase.Codebase, translatedSource *codebase.Codebase) (*merge.Result, error) {
	if runContext.Merger == nil {
		return nil, ErrMissingMerger
	}
	previous, previousError := migration.Config.SourceCreator.CreateInProjectSpace(executionContext, migration.PreviousRevision.ID, migration.Config.TargetCreator.ProjectSpace())
	if previousError != nil {
		return nil, fmt.Errorf(createPreviousErrorTemplateConstant, migration.PreviousRevision.ID, previousError)
	}
	inputs := merge.Inputs{Previous: previous, Generated: translatedSource, Public: baseCodebase}
	if migration.Config.Direction == model.MigrationDirectionImport {
		inputs.Generated = baseCodebase
		inputs.Public = translatedSource
	}
	result, mergeError := runContext.Merger.Merge(executionContext, inputs)
	if mergeError != nil {
		return nil, fmt.Errorf(mergeErrorTemplateConstant, mergeError)
	}
	return result, nil
}

func (migration *Migration) next(previousRevision model.Revision, revisions []model.Revision, mock bool) *Migration {
	return &Migration{
		PreviousRevision: previousRevision,
		AppliedAgainst:   migration.AppliedAgainst,
		Revisions:        revisions,
		Config:           migration.Config,
		Mock:             mock,
		NumToMigrate:     1,
	}
}

func (migration *Migration) equivalenceCheckFor(upToRevision model.Revision, commitID string) *EquivalenceCheck {
	if migration.Config.Direction == model.MigrationDirectionImport {
		return &EquivalenceCheck{InternalRevision: commitID, PublicRevision: upToRevision.ID, Dispatch: NoteIfSame}
	}
	return &EquivalenceCheck{InternalRevision: upToRevision.ID, PublicRevision: commitID, Dispatch: NoteIfSame}
}

// mockMigrations returns actions with every Migration replaced by a mocked copy.
func mockMigrations(actions []Action) []Action {
	mocked := slices.Clone(actions)
	for index, action := range mocked {
		if sibling, isMigration := action.(*Migration); isMigration {
			duplicate := *sibling
			duplicate.Mock = true
			mocked[index] = &duplicate
		}
	}
	return mocked
}

func allPreApproved(revisions []model.Revision) bool {
	for _, revision := range revisions {
		if !revision.PreApproved {
			return false
		}
	}
	return true
}
