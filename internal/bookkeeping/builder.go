package bookkeeping

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/repository"
	"github.com/temirov/codesync/internal/ui"
)

const (
	missingInternalRepositoryMessageConstant = "bookkeeping requires the internal repository"
	missingPublicRepositoryMessageConstant   = "bookkeeping requires the public repository"
	missingLedgerMessageConstant             = "bookkeeping requires a ledger"
	incompatibleEquivalencesTemplateConstant = "no compatible equivalence: internal candidates [%s], public candidates [%s]"
	unsubmittedMigrationTemplateConstant     = "migration %s is submitted but has no submitted revision"
	verifyTaskDescriptionConstant            = "Verifying equivalences"
	walkTaskTemplateConstant                 = "Walking %s history of %s"
	compatibleTaskDescriptionConstant        = "Finding a compatible equivalence"
	retireTaskDescriptionConstant            = "Retiring finished migrations"
	pendingTaskDescriptionConstant           = "Collecting revisions to migrate"
	noteTaskDescriptionConstant              = "Recording revisions in the ledger"
	verifyErrorTemplateConstant              = "unable to verify equivalences: %w"
	walkErrorTemplateConstant                = "unable to walk %s history: %w"
	retireErrorTemplateConstant              = "unable to retire migrations: %w"
	pendingErrorTemplateConstant             = "unable to collect revisions to migrate: %w"
	noteErrorTemplateConstant                = "unable to record revisions: %w"
	invalidatedEquivalenceMessageConstant    = "equivalence no longer matches history; marking invalid"
	missingMigrationMessageConstant          = "finished migration could not be fetched"
	unsubmittedRetiredMessageConstant        = "finished migration has no submitted revision"
	logFieldEquivalenceConstant              = "equivalence"
	logFieldResolvedConstant                 = "resolved"
	logFieldMigrationConstant                = "migration_id"
	candidateSeparatorConstant               = ", "
)

var (
	// ErrMissingInternalRepository indicates Options without an internal repository.
	ErrMissingInternalRepository = errors.New(missingInternalRepositoryMessageConstant)
	// ErrMissingPublicRepository indicates Options without a public repository.
	ErrMissingPublicRepository = errors.New(missingPublicRepositoryMessageConstant)
	// ErrMissingLedger indicates Options without a ledger.
	ErrMissingLedger = errors.New(missingLedgerMessageConstant)
)

// IncompatibleEquivalencesError reports two history walks that found no shared equivalence.
type IncompatibleEquivalencesError struct {
	InternalCandidates []model.Equivalence
	PublicCandidates   []model.Equivalence
}

// Error lists the candidates found on both sides.
func (incompatibleError IncompatibleEquivalencesError) Error() string {
	return fmt.Sprintf(incompatibleEquivalencesTemplateConstant, describeCandidates(incompatibleError.InternalCandidates), describeCandidates(incompatibleError.PublicCandidates))
}

// UnsubmittedMigrationError reports a Submitted migration the ledger holds without its landed revision.
type UnsubmittedMigrationError struct {
	MigrationID string
}

// Error names the migration.
func (unsubmittedError UnsubmittedMigrationError) Error() string {
	return fmt.Sprintf(unsubmittedMigrationTemplateConstant, unsubmittedError.MigrationID)
}

// HistoryWalker is the part of a repository bookkeeping needs.
type HistoryWalker interface {
	GetHeadRevision(executionContext context.Context, maxRevisionID string) (string, error)
	RevisionsSinceEquivalence(executionContext context.Context, headRevisionID string, side model.RepositorySide, finder repository.EquivalenceFinder) ([]model.Revision, []model.Equivalence, error)
}

// Ledger is the part of the ledger bookkeeping reads and writes.
type Ledger interface {
	repository.EquivalenceFinder
	NoteEquivalence(executionContext context.Context, correspondence model.Correspondence, status model.VerificationStatus) error
	FindUnverifiedEquivalences(executionContext context.Context) ([]model.Equivalence, error)
	FinishMigration(executionContext context.Context, migrationID string, submittedAs model.Revision) error
	GetMigration(executionContext context.Context, migrationID string) (*model.Migration, error)
	FindMigrationForRevision(executionContext context.Context, revision model.Revision) (*model.Migration, error)
	NoteRevisions(executionContext context.Context, revisions []model.Revision) error
}

// Options configures a Builder.
type Options struct {
	Internal HistoryWalker
	Public   HistoryWalker
	Ledger   Ledger
	Tasks    *ui.TaskReporter
	Logger   *zap.Logger
}

// Builder assembles a Book from both repositories and the ledger.
type Builder struct {
	internal HistoryWalker
	public   HistoryWalker
	ledger   Ledger
	tasks    *ui.TaskReporter
	logger   *zap.Logger
}

// NewBuilder validates options and constructs a Builder.
func NewBuilder(options Options) (*Builder, error) {
	if options.Internal == nil {
		return nil, ErrMissingInternalRepository
	}
	if options.Public == nil {
		return nil, ErrMissingPublicRepository
	}
	if options.Ledger == nil {
		return nil, ErrMissingLedger
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tasks := options.Tasks
	if tasks == nil {
		tasks = ui.NewTaskReporter(logger)
	}
	return &Builder{
		internal: options.Internal,
		public:   options.Public,
		ledger:   options.Ledger,
		tasks:    tasks,
		logger:   logger,
	}, nil
}

// Build reconciles history starting at the current heads.
func (builder *Builder) Build(executionContext context.Context, current model.Correspondence) (*Book, error) {
	if verifyError := builder.runTask(verifyTaskDescriptionConstant, func() error {
		return builder.VerifyEquivalences(executionContext)
	}); verifyError != nil {
		return nil, fmt.Errorf(verifyErrorTemplateConstant, verifyError)
	}

	var internalRevisions, publicRevisions []model.Revision
	var internalCandidates, publicCandidates []model.Equivalence
	walkError := builder.runTask(fmt.Sprintf(walkTaskTemplateConstant, model.RepositorySideInternal, current.InternalRevision), func() error {
		var err error
		internalRevisions, internalCandidates, err = builder.internal.RevisionsSinceEquivalence(executionContext, current.InternalRevision, model.RepositorySideInternal, builder.ledger)
		return err
	})
	if walkError != nil {
		return nil, fmt.Errorf(walkErrorTemplateConstant, model.RepositorySideInternal, walkError)
	}
	walkError = builder.runTask(fmt.Sprintf(walkTaskTemplateConstant, model.RepositorySidePublic, current.PublicRevision), func() error {
		var err error
		publicRevisions, publicCandidates, err = builder.public.RevisionsSinceEquivalence(executionContext, current.PublicRevision, model.RepositorySidePublic, builder.ledger)
		return err
	})
	if walkError != nil {
		return nil, fmt.Errorf(walkErrorTemplateConstant, model.RepositorySidePublic, walkError)
	}

	book := &Book{Current: current}
	if compatibleError := builder.runTask(compatibleTaskDescriptionConstant, func() error {
		equivalence, err := FindCompatibleEquivalence(internalCandidates, publicCandidates)
		book.Equivalence = equivalence
		return err
	}); compatibleError != nil {
		return nil, compatibleError
	}

	if retireError := builder.runTask(retireTaskDescriptionConstant, func() error {
		var err error
		if book.FinishedImports, err = builder.RetireMigrations(executionContext, internalRevisions); err != nil {
			return err
		}
		book.FinishedExports, err = builder.RetireMigrations(executionContext, publicRevisions)
		return err
	}); retireError != nil {
		return nil, fmt.Errorf(retireErrorTemplateConstant, retireError)
	}

	if pendingError := builder.runTask(pendingTaskDescriptionConstant, func() error {
		var err error
		if book.RevisionsToExport, book.LastExport, err = builder.RevisionsToMigrate(executionContext, internalRevisions); err != nil {
			return err
		}
		book.RevisionsToImport, book.LastImport, err = builder.RevisionsToMigrate(executionContext, publicRevisions)
		return err
	}); pendingError != nil {
		return nil, fmt.Errorf(pendingErrorTemplateConstant, pendingError)
	}

	if noteError := builder.runTask(noteTaskDescriptionConstant, func() error {
		if err := builder.ledger.NoteRevisions(executionContext, book.RevisionsToExport); err != nil {
			return err
		}
		return builder.ledger.NoteRevisions(executionContext, book.RevisionsToImport)
	}); noteError != nil {
		return nil, fmt.Errorf(noteErrorTemplateConstant, noteError)
	}

	return book, nil
}

// VerifyEquivalences checks every unverified equivalence against current history. An equivalence
// whose revisions resolve unchanged becomes Verified; otherwise it is marked Invalid and, when both
// sides still resolve, the resolved pair is recorded as Verified in its place.
func (builder *Builder) VerifyEquivalences(executionContext context.Context) error {
	unverified, findError := builder.ledger.FindUnverifiedEquivalences(executionContext)
	if findError != nil {
		return findError
	}
	for _, equivalence := range unverified {
		resolved := model.Correspondence{
			InternalRevision: builder.resolve(executionContext, builder.internal, equivalence.InternalRevision),
			PublicRevision:   builder.resolve(executionContext, builder.public, equivalence.PublicRevision),
		}
		if len(resolved.InternalRevision) > 0 && len(resolved.PublicRevision) > 0 {
			if noteError := builder.ledger.NoteEquivalence(executionContext, resolved, model.VerificationVerified); noteError != nil {
				return noteError
			}
		}
		if resolved != equivalence.Correspondence {
			builder.logger.Info(
				invalidatedEquivalenceMessageConstant,
				zap.Stringer(logFieldEquivalenceConstant, equivalence.Correspondence),
				zap.Stringer(logFieldResolvedConstant, resolved),
			)
			if noteError := builder.ledger.NoteEquivalence(executionContext, equivalence.Correspondence, model.VerificationInvalid); noteError != nil {
				return noteError
			}
		}
	}
	return nil
}

// RetireMigrations finishes every migration whose marker appears in revisions and returns the
// finished records. Migrations the ledger cannot return are skipped.
func (builder *Builder) RetireMigrations(executionContext context.Context, revisions []model.Revision) ([]model.Migration, error) {
	retired := []model.Migration{}
	for _, revision := range revisions {
		if len(revision.MigrationID) == 0 {
			continue
		}
		if finishError := builder.ledger.FinishMigration(executionContext, revision.MigrationID, revision); finishError != nil {
			return nil, finishError
		}
		migration, getError := builder.ledger.GetMigration(executionContext, revision.MigrationID)
		if getError != nil || migration == nil {
			builder.logger.Debug(missingMigrationMessageConstant, zap.String(logFieldMigrationConstant, revision.MigrationID), zap.Error(getError))
			continue
		}
		if migration.SubmittedAs == nil {
			builder.logger.Debug(unsubmittedRetiredMessageConstant, zap.String(logFieldMigrationConstant, revision.MigrationID))
			continue
		}
		retired = append(retired, *migration)
	}
	return retired, nil
}

// RevisionsToMigrate scans revisions newest first and stops at the first one covered by a Submitted
// migration. It returns the revisions above that point oldest first and the stopping migration.
func (builder *Builder) RevisionsToMigrate(executionContext context.Context, revisions []model.Revision) ([]model.Revision, *model.Migration, error) {
	pending := []model.Revision{}
	var lastMigration *model.Migration
	for _, revision := range revisions {
		migration, findError := builder.ledger.FindMigrationForRevision(executionContext, revision)
		if findError != nil {
			return nil, nil, findError
		}
		if migration != nil && migration.Status == model.MigrationStatusSubmitted {
			if migration.SubmittedAs == nil {
				return nil, nil, UnsubmittedMigrationError{MigrationID: migration.ID}
			}
			lastMigration = migration
			break
		}
		pending = append(pending, revision)
	}
	slices.Reverse(pending)
	return pending, lastMigration, nil
}

// FindCompatibleEquivalence returns the first correspondence present in both candidate lists.
func FindCompatibleEquivalence(internalCandidates []model.Equivalence, publicCandidates []model.Equivalence) (model.Correspondence, error) {
	for _, internalCandidate := range internalCandidates {
		for _, publicCandidate := range publicCandidates {
			if internalCandidate.Correspondence == publicCandidate.Correspondence {
				return internalCandidate.Correspondence, nil
			}
		}
	}
	return model.Correspondence{}, IncompatibleEquivalencesError{InternalCandidates: internalCandidates, PublicCandidates: publicCandidates}
}

func (builder *Builder) resolve(executionContext context.Context, walker HistoryWalker, revisionID string) string {
	resolved, resolveError := walker.GetHeadRevision(executionContext, revisionID)
	if resolveError != nil {
		return ""
	}
	return resolved
}

func (builder *Builder) runTask(description string, work func() error) error {
	task := builder.tasks.Begin(description)
	if workError := work(); workError != nil {
		builder.tasks.Fail(task, workError)
		return workError
	}
	builder.tasks.Complete(task)
	return nil
}

func describeCandidates(candidates []model.Equivalence) string {
	descriptions := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		descriptions = append(descriptions, candidate.Correspondence.String())
	}
	return strings.Join(descriptions, candidateSeparatorConstant)
}
