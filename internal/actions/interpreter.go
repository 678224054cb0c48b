package actions

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/ledger"
	"github.com/temirov/codesync/internal/merge"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/project"
	"github.com/temirov/codesync/internal/report"
	"github.com/temirov/codesync/internal/repository"
	"github.com/temirov/codesync/internal/ui"
)

const (
	missingCreatorsMessageConstant = "run context requires internal and public codebase creators"
	missingLedgerMessageConstant   = "run context requires a ledger"
	missingReportMessageConstant   = "run context requires a report"
	missingProjectMessageConstant  = "run context requires a project"
	actionFailedTemplateConstant   = "%s failed: %w"
	actionStartedMessageConstant   = "executing action"
	queueDrainedMessageConstant    = "action queue drained"
	logFieldActionConstant         = "action"
	logFieldQueuedConstant         = "queued"
	logFieldExecutedConstant       = "executed"
)

var (
	// ErrMissingCreators indicates a RunContext without both codebase creators.
	ErrMissingCreators = errors.New(missingCreatorsMessageConstant)
	// ErrMissingLedger indicates a RunContext without a ledger.
	ErrMissingLedger = errors.New(missingLedgerMessageConstant)
	// ErrMissingReport indicates a RunContext without a report.
	ErrMissingReport = errors.New(missingReportMessageConstant)
	// ErrMissingProject indicates a RunContext without a project.
	ErrMissingProject = errors.New(missingProjectMessageConstant)
)

// Ledger is the part of the ledger actions record results in.
type Ledger interface {
	NoteEquivalence(executionContext context.Context, correspondence model.Correspondence, status model.VerificationStatus) error
	StartMigration(executionContext context.Context, request ledger.StartMigrationRequest) (string, error)
	FinishMigration(executionContext context.Context, migrationID string, submittedAs model.Revision) error
	CancelMigration(executionContext context.Context, migrationID string) error
	FindMigration(executionContext context.Context, upToRevision model.Revision) (*model.Migration, error)
	UpdateMigrationDiff(executionContext context.Context, migrationID string, diff string, link string) error
	DashboardURL() string
}

// Merger produces merged codebases for migrations using the merge strategy.
type Merger interface {
	Merge(executionContext context.Context, inputs merge.Inputs) (*merge.Result, error)
}

// RunContext is the state shared by every action of one run.
type RunContext struct {
	InternalCreator repository.CodebaseCreator
	PublicCreator   repository.CodebaseCreator
	Ledger          Ledger
	Report          *report.Report
	Project         *project.Project
	Merger          Merger
	Tasks           *ui.TaskReporter
	Logger          *zap.Logger
}

// Validate checks that the required collaborators are present.
func (runContext *RunContext) Validate() error {
	if runContext.InternalCreator == nil || runContext.PublicCreator == nil {
		return ErrMissingCreators
	}
	if runContext.Ledger == nil {
		return ErrMissingLedger
	}
	if runContext.Report == nil {
		return ErrMissingReport
	}
	if runContext.Project == nil {
		return ErrMissingProject
	}
	return nil
}

func (runContext *RunContext) logger() *zap.Logger {
	if runContext.Logger == nil {
		return zap.NewNop()
	}
	return runContext.Logger
}

// Action is one step of a run.
type Action interface {
	Name() string
	// Execute performs the step. remaining holds the actions queued after it. A nil update keeps
	// remaining as the queue; a non-nil update replaces it, and an empty one halts the run.
	Execute(executionContext context.Context, runContext *RunContext, remaining []Action) (*StateUpdate, error)
}

// StateUpdate replaces the queue of actions still to run.
type StateUpdate struct {
	Actions []Action
}

// Interpreter drains a queue of actions.
type Interpreter struct {
	logger *zap.Logger
}

// NewInterpreter builds an Interpreter. A nil logger discards output.
func NewInterpreter(logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{logger: logger}
}

// Run executes actions until the queue is empty or an action fails.
func (interpreter *Interpreter) Run(executionContext context.Context, runContext *RunContext, initial []Action) error {
	if validationError := runContext.Validate(); validationError != nil {
		return validationError
	}
	queue := append([]Action(nil), initial...)
	executed := 0
	for len(queue) > 0 {
		action := queue[0]
		remaining := queue[1:]
		interpreter.logger.Debug(actionStartedMessageConstant, zap.String(logFieldActionConstant, action.Name()), zap.Int(logFieldQueuedConstant, len(remaining)))

		update, executeError := action.Execute(executionContext, runContext, remaining)
		if executeError != nil {
			return fmt.Errorf(actionFailedTemplateConstant, action.Name(), executeError)
		}
		executed++
		if update != nil {
			queue = update.Actions
		} else {
			queue = remaining
		}
	}
	interpreter.logger.Debug(queueDrainedMessageConstant, zap.Int(logFieldExecutedConstant, executed))
	return nil
}

func prepend(actions []Action, remaining []Action) []Action {
	combined := make([]Action, 0, len(actions)+len(remaining))
	combined = append(combined, actions...)
	return append(combined, remaining...)
}
