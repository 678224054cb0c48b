package manage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/actions"
	"github.com/temirov/codesync/internal/bookkeeping"
	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/ledger"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/push"
	"github.com/temirov/codesync/internal/report"
	"github.com/temirov/codesync/internal/repository"
	"github.com/temirov/codesync/internal/ui"
)

const (
	missingEnvironmentMessageConstant    = "service requires an environment"
	incompleteEnvironmentMessageConstant = "environment requires both repositories, both codebase creators, and a ledger"
	missingRevisionsMessageConstant      = "both an internal and a public revision are required"
	unknownDestinationTemplateConstant   = "unknown push destination %q; expected internal or public"
	lockErrorTemplateConstant            = "unable to lock project %s: %w"
	headErrorTemplateConstant            = "unable to resolve %s head: %w"
	bookkeepingErrorTemplateConstant     = "bookkeeping failed: %w"
	describeBookErrorTemplateConstant    = "unable to describe pending work: %w"
	createCodebaseErrorTemplateConstant  = "unable to create %s codebase: %w"
	compareErrorTemplateConstant         = "unable to compare codebases: %w"
	renderErrorTemplateConstant          = "unable to render differences: %w"
	editorErrorTemplateConstant          = "unable to prepare %s editor: %w"
	pushErrorTemplateConstant            = "unable to push to %s: %w"
	noteErrorTemplateConstant            = "unable to note equivalence: %w"
	processErrorTemplateConstant         = "unable to read the last process: %w"
	writeErrorTemplateConstant           = "unable to write output: %w"
	equivalentCodebasesTemplateConstant  = "Codebases are equivalent: %s and %s\n"
	pushChangelogTemplateConstant        = "Push of %s"
	notedEquivalenceTemplateConstant     = "Noted equivalence (internal %s, public %s); the next run verifies it\n"
	noProcessTemplateConstant            = "No process has run against %s\n"
	fileHeaderConstant                   = "File"
	differenceHeaderConstant             = "Difference"
	fieldHeaderConstant                  = "Field"
	valueHeaderConstant                  = "Value"
	processRowConstant                   = "process"
	runTokenRowConstant                  = "run token"
	holdsLockRowConstant                 = "holds lock"
	startedRowConstant                   = "started"
	lastSeenRowConstant                  = "last seen"
	endedRowConstant                     = "ended"
	yesConstant                          = "yes"
	noConstant                           = "no"
	neverConstant                        = "-"
	pastSuffixConstant                   = "ago"
	futureSuffixConstant                 = "from now"
	lineSeparatorConstant                = "\n"
	runStartedMessageConstant            = "managing codebases"
	runFinishedMessageConstant           = "run finished"
	notedEquivalenceMessageConstant      = "noted equivalence"
	logFieldInternalConstant             = "internal_revision"
	logFieldPublicConstant               = "public_revision"
	logFieldReturnCodeConstant           = "return_code"
	logFieldAllowConcurrentConstant      = "allow_concurrent"
	headTaskDescriptionConstant          = "Resolving repository heads"
	runTaskDescriptionConstant           = "Running migration actions"
)

var (
	// ErrMissingEnvironment indicates ServiceOptions without an environment.
	ErrMissingEnvironment = errors.New(missingEnvironmentMessageConstant)
	// ErrIncompleteEnvironment indicates an environment missing a repository, creator, or ledger.
	ErrIncompleteEnvironment = errors.New(incompleteEnvironmentMessageConstant)
	// ErrMissingRevisions indicates a note-equivalence request without both revisions.
	ErrMissingRevisions = errors.New(missingRevisionsMessageConstant)
)

// ManageOptions configures one manage run.
type ManageOptions struct {
	// InternalRevision caps the internal head. Empty means the branch head.
	InternalRevision string
	AllowConcurrent  bool
}

// DiffOptions names the two revisions to compare. Empty revisions mean the branch heads.
type DiffOptions struct {
	InternalRevision string
	PublicRevision   string
	Full             bool
}

// PushOptions configures a one-off push outside of a migration.
type PushOptions struct {
	Destination model.RepositorySide
	// SourceRevision is read from the other repository. Empty means its head.
	SourceRevision string
	// CodebaseDirectory, when set, is pushed as-is instead of a source revision.
	CodebaseDirectory string
}

// NoteEquivalenceOptions names a manually asserted equivalence.
type NoteEquivalenceOptions struct {
	InternalRevision string
	PublicRevision   string
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Environment       *Environment
	Output            io.Writer
	Color             bool
	KeepaliveInterval time.Duration
	Tasks             *ui.TaskReporter
	Clock             func() time.Time
	Logger            *zap.Logger
}

// Service runs the operations of the command line against one Environment.
type Service struct {
	environment       *Environment
	output            io.Writer
	color             bool
	keepaliveInterval time.Duration
	tasks             *ui.TaskReporter
	clock             func() time.Time
	logger            *zap.Logger
}

// NewService validates options and builds a Service.
func NewService(options ServiceOptions) (*Service, error) {
	environment := options.Environment
	if environment == nil || environment.Project == nil {
		return nil, ErrMissingEnvironment
	}
	if environment.Internal == nil || environment.Public == nil || environment.InternalCreator == nil || environment.PublicCreator == nil || environment.Ledger == nil {
		return nil, ErrIncompleteEnvironment
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	output := options.Output
	if output == nil {
		output = io.Discard
	}
	tasks := options.Tasks
	if tasks == nil {
		tasks = ui.NewTaskReporter(logger)
	}
	clock := options.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		environment:       environment,
		output:            output,
		color:             options.Color,
		keepaliveInterval: options.KeepaliveInterval,
		tasks:             tasks,
		clock:             clock,
		logger:            logger,
	}, nil
}

// ManageCodebases reconciles both repositories and migrates pending revisions. It returns the report
// return code: 0 when nothing needed migrating, 1 when a change was produced, and 2 when a human must
// intervene. The summary is printed and the lock released even when the run fails.
func (service *Service) ManageCodebases(executionContext context.Context, options ManageOptions) (int, error) {
	service.logger.Info(runStartedMessageConstant,
		zap.String(logFieldInternalConstant, options.InternalRevision),
		zap.Bool(logFieldAllowConcurrentConstant, options.AllowConcurrent),
	)
	if !options.AllowConcurrent {
		lock, lockError := ledger.NewProcessLock(service.environment.Ledger, ledger.NewProcessIdentity(), ledger.ProcessLockOptions{
			KeepaliveInterval: service.keepaliveInterval,
			Logger:            service.logger,
		})
		if lockError != nil {
			return 0, fmt.Errorf(lockErrorTemplateConstant, service.environment.Project.Name, lockError)
		}
		if acquireError := lock.Acquire(executionContext); acquireError != nil {
			return 0, fmt.Errorf(lockErrorTemplateConstant, service.environment.Project.Name, acquireError)
		}
		defer lock.Release(executionContext)
	}

	runReport := report.New(service.logger)
	runError := service.manage(executionContext, options, runReport)
	if summaryError := runReport.PrintSummary(service.output, report.SummaryOptions{Color: service.color}); summaryError != nil && runError == nil {
		runError = summaryError
	}
	service.logger.Info(runFinishedMessageConstant, zap.Int(logFieldReturnCodeConstant, runReport.ReturnCode()), zap.Error(runError))
	return runReport.ReturnCode(), runError
}

func (service *Service) manage(executionContext context.Context, options ManageOptions, runReport *report.Report) error {
	environment := service.environment

	headTask := service.tasks.Begin(headTaskDescriptionConstant)
	internalHead, internalError := environment.Internal.GetHeadRevision(executionContext, options.InternalRevision)
	if internalError != nil {
		service.tasks.Fail(headTask, internalError)
		return fmt.Errorf(headErrorTemplateConstant, model.RepositorySideInternal, internalError)
	}
	publicHead, publicError := environment.Public.GetHeadRevision(executionContext, repository.HeadRevisionIdentifier)
	if publicError != nil {
		service.tasks.Fail(headTask, publicError)
		return fmt.Errorf(headErrorTemplateConstant, model.RepositorySidePublic, publicError)
	}
	service.tasks.Complete(headTask)
	current := model.Correspondence{InternalRevision: internalHead, PublicRevision: publicHead}

	builder, builderError := bookkeeping.NewBuilder(bookkeeping.Options{
		Internal: environment.Internal,
		Public:   environment.Public,
		Ledger:   environment.Ledger,
		Tasks:    service.tasks,
		Logger:   service.logger,
	})
	if builderError != nil {
		return fmt.Errorf(bookkeepingErrorTemplateConstant, builderError)
	}
	book, buildError := builder.Build(executionContext, current)
	if buildError != nil {
		return fmt.Errorf(bookkeepingErrorTemplateConstant, buildError)
	}
	if describeError := book.Describe(service.output); describeError != nil {
		return fmt.Errorf(describeBookErrorTemplateConstant, describeError)
	}

	runContext := &actions.RunContext{
		InternalCreator: environment.InternalCreator,
		PublicCreator:   environment.PublicCreator,
		Ledger:          environment.Ledger,
		Report:          runReport,
		Project:         environment.Project,
		Merger:          environment.Merger,
		Tasks:           service.tasks,
		Logger:          service.logger,
	}
	runTask := service.tasks.Begin(runTaskDescriptionConstant)
	if runError := actions.NewInterpreter(service.logger).Run(executionContext, runContext, actions.ChooseActions(book, runContext)); runError != nil {
		service.tasks.Fail(runTask, runError)
		return runError
	}
	service.tasks.Complete(runTask)
	return nil
}

// DiffCodebases compares the internal codebase translated into the public project space with the
// public codebase and writes the differing files. It reports whether they differ.
func (service *Service) DiffCodebases(executionContext context.Context, options DiffOptions) (bool, error) {
	environment := service.environment
	generated, generatedError := environment.InternalCreator.CreateInProjectSpace(executionContext, options.InternalRevision, model.ProjectSpacePublic)
	if generatedError != nil {
		return false, fmt.Errorf(createCodebaseErrorTemplateConstant, model.RepositorySideInternal, generatedError)
	}
	public, publicError := environment.PublicCreator.Create(executionContext, options.PublicRevision)
	if publicError != nil {
		return false, fmt.Errorf(createCodebaseErrorTemplateConstant, model.RepositorySidePublic, publicError)
	}

	difference, compareError := codebase.AreCodebasesDifferent(generated, public, environment.Project.NoisyFilesPattern)
	if compareError != nil {
		return false, fmt.Errorf(compareErrorTemplateConstant, compareError)
	}
	if !difference.HasDifference() {
		return false, service.write(fmt.Sprintf(equivalentCodebasesTemplateConstant, generated, public))
	}

	differences := table.NewWriter()
	differences.AppendHeader(table.Row{fileHeaderConstant, differenceHeaderConstant})
	for _, fileDifference := range difference.Differences {
		differences.AppendRow(table.Row{fileDifference.RelativeFileName, fileDifference.String()})
	}
	rendered := differences.Render() + lineSeparatorConstant
	if options.Full {
		fullDiff, renderError := codebase.RenderCodebaseDiff(generated, public, difference)
		if renderError != nil {
			return true, fmt.Errorf(renderErrorTemplateConstant, renderError)
		}
		rendered += fullDiff
	}
	return true, service.write(rendered)
}

// PushCodebase makes the destination repository match a source codebase and leaves the change
// pending for review. The follow-up items are printed with the summary.
func (service *Service) PushCodebase(executionContext context.Context, options PushOptions) (push.Outcome, error) {
	environment := service.environment
	var sourceCreator, destinationCreator repository.CodebaseCreator
	switch options.Destination {
	case model.RepositorySidePublic:
		sourceCreator, destinationCreator = environment.InternalCreator, environment.PublicCreator
	case model.RepositorySideInternal:
		sourceCreator, destinationCreator = environment.PublicCreator, environment.InternalCreator
	default:
		return push.Outcome{}, fmt.Errorf(unknownDestinationTemplateConstant, options.Destination)
	}
	destinationSpace := model.ProjectSpace(options.Destination)

	var source *codebase.Codebase
	if len(strings.TrimSpace(options.CodebaseDirectory)) > 0 {
		source = codebase.New(options.CodebaseDirectory, destinationSpace, codebase.Options{})
	} else {
		created, createError := sourceCreator.CreateInProjectSpace(executionContext, options.SourceRevision, destinationSpace)
		if createError != nil {
			return push.Outcome{}, fmt.Errorf(createCodebaseErrorTemplateConstant, sourceCreator.ProjectSpace(), createError)
		}
		source = created
	}

	strategy := model.MigrationStrategy{MergeStrategy: model.MergeStrategyError, CommitStrategy: model.CommitStrategyLeavePending}
	editor, editorError := destinationCreator.MakeEditor(executionContext, strategy, nil)
	if editorError != nil {
		return push.Outcome{}, fmt.Errorf(editorErrorTemplateConstant, options.Destination, editorError)
	}

	runReport := report.New(service.logger)
	pusher, pusherError := push.NewPusher(push.Options{
		Source:        source,
		Editor:        editor,
		Reporter:      runReport,
		IgnorePattern: environment.Project.Public.AdditionalFilesPattern,
		Changelog:     fmt.Sprintf(pushChangelogTemplateConstant, source),
		Logger:        service.logger,
	})
	if pusherError != nil {
		return push.Outcome{}, fmt.Errorf(pushErrorTemplateConstant, options.Destination, pusherError)
	}
	outcome, pushError := pusher.Push(executionContext)
	if summaryError := runReport.PrintSummary(service.output, report.SummaryOptions{Color: service.color}); summaryError != nil && pushError == nil {
		return outcome, summaryError
	}
	if pushError != nil {
		return outcome, fmt.Errorf(pushErrorTemplateConstant, options.Destination, pushError)
	}
	return outcome, nil
}

// NoteEquivalence records a manually asserted equivalence as unverified so the next run checks it
// against history before trusting it.
func (service *Service) NoteEquivalence(executionContext context.Context, options NoteEquivalenceOptions) error {
	internalRevision := strings.TrimSpace(options.InternalRevision)
	publicRevision := strings.TrimSpace(options.PublicRevision)
	if len(internalRevision) == 0 || len(publicRevision) == 0 {
		return ErrMissingRevisions
	}
	correspondence := model.Correspondence{InternalRevision: internalRevision, PublicRevision: publicRevision}
	if noteError := service.environment.Ledger.NoteEquivalence(executionContext, correspondence, model.VerificationUnverified); noteError != nil {
		return fmt.Errorf(noteErrorTemplateConstant, noteError)
	}
	service.logger.Info(notedEquivalenceMessageConstant,
		zap.String(logFieldInternalConstant, internalRevision),
		zap.String(logFieldPublicConstant, publicRevision),
	)
	return service.write(fmt.Sprintf(notedEquivalenceTemplateConstant, internalRevision, publicRevision))
}

// LockStatus writes the last process recorded against the project.
func (service *Service) LockStatus(executionContext context.Context) error {
	process, processError := service.environment.Ledger.GetLastProcess(executionContext)
	if processError != nil {
		return fmt.Errorf(processErrorTemplateConstant, processError)
	}
	if process == nil {
		return service.write(fmt.Sprintf(noProcessTemplateConstant, service.environment.Project.Name))
	}

	holdsLock := noConstant
	if process.IsRunning(service.clock(), ledger.DefaultProcessTimeout) {
		holdsLock = yesConstant
	}
	status := table.NewWriter()
	status.AppendHeader(table.Row{fieldHeaderConstant, valueHeaderConstant})
	status.AppendRow(table.Row{processRowConstant, process.ProcessID})
	status.AppendRow(table.Row{runTokenRowConstant, process.RunToken})
	status.AppendRow(table.Row{holdsLockRowConstant, holdsLock})
	status.AppendRow(table.Row{startedRowConstant, service.relativeTime(process.StartedAt)})
	status.AppendRow(table.Row{lastSeenRowConstant, service.relativeTime(process.LastSeenAt)})
	status.AppendRow(table.Row{endedRowConstant, service.relativeTime(process.EndedAt)})
	return service.write(status.Render() + lineSeparatorConstant)
}

func (service *Service) relativeTime(moment time.Time) string {
	if moment.IsZero() {
		return neverConstant
	}
	return humanize.RelTime(moment, service.clock(), pastSuffixConstant, futureSuffixConstant)
}

func (service *Service) write(text string) error {
	if _, writeError := io.WriteString(service.output, text); writeError != nil {
		return fmt.Errorf(writeErrorTemplateConstant, writeError)
	}
	return nil
}
