package actions

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
)

const (
	equivalenceCheckNameConstant                    = "equivalence_check"
	equivalenceTaskTemplateConstant                 = "Checking for an equivalence between internal revision %s and public revision %s"
	equivalenceMismatchTemplateConstant             = "equivalence is not equivalent: %s; internal %s (viewable at %s), public %s (viewable at %s)"
	noteEquivalenceStepNameConstant                 = "note_equivalence"
	noteEquivalenceCommandConstant                  = "codesync note-equivalence"
	internalRevisionArgumentConstant                = "internal-revision"
	publicRevisionArgumentConstant                  = "public-revision"
	generatedOnlyMessageConstant                    = "files exist only in the generated codebase"
	publicOnlyMessageConstant                       = "files exist only in the public codebase; see public_repository.additional_files_re"
	equivalenceNotedMessageConstant                 = "equivalence noted"
	dispatchErrorIfDifferentLabelConstant           = "ErrorIfDifferent"
	dispatchNoteIfSameLabelConstant                 = "NoteIfSame"
	dispatchNoteAndStopIfSameLabelConstant          = "NoteAndStopIfSame"
	dispatchNoteIfSameErrorIfDifferentLabelConstant = "NoteIfSameErrorIfDifferent"
	dispatchUnknownLabelConstant                    = "unknown"
	logFieldFilesConstant                           = "files"
	logFieldInternalRevisionConstant                = "internal_revision"
	logFieldPublicRevisionConstant                  = "public_revision"
	equivalenceCreateErrorTemplateConstant          = "unable to create %s codebase at %s: %w"
	equivalenceCompareErrorTemplateConstant         = "unable to compare codebases: %w"
)

// ResultDispatch selects what an EquivalenceCheck does with its comparison.
type ResultDispatch int

// Equivalence check policies.
const (
	// ErrorIfDifferent fails the run when the codebases differ.
	ErrorIfDifferent ResultDispatch = iota
	// NoteIfSame records the equivalence when the codebases match.
	NoteIfSame
	// NoteAndStopIfSame records the equivalence and halts the run when the codebases match.
	NoteAndStopIfSame
	// NoteIfSameErrorIfDifferent records a match and fails on a difference.
	NoteIfSameErrorIfDifferent
)

// String renders the policy name.
func (dispatch ResultDispatch) String() string {
	switch dispatch {
	case ErrorIfDifferent:
		return dispatchErrorIfDifferentLabelConstant
	case NoteIfSame:
		return dispatchNoteIfSameLabelConstant
	case NoteAndStopIfSame:
		return dispatchNoteAndStopIfSameLabelConstant
	case NoteIfSameErrorIfDifferent:
		return dispatchNoteIfSameErrorIfDifferentLabelConstant
	default:
		return dispatchUnknownLabelConstant
	}
}

// EquivalenceMismatchError reports two revisions expected to be equivalent whose codebases differ.
type EquivalenceMismatchError struct {
	InternalRevision string
	PublicRevision   string
	GeneratedPath    string
	PublicPath       string
	Difference       *codebase.CodebaseDifference
}

// Error names both revisions and the first difference.
func (mismatchError EquivalenceMismatchError) Error() string {
	return fmt.Sprintf(equivalenceMismatchTemplateConstant, mismatchError.Difference, mismatchError.InternalRevision, mismatchError.GeneratedPath, mismatchError.PublicRevision, mismatchError.PublicPath)
}

// EquivalenceCheck compares the internal revision, translated into the public project space, with
// the public revision.
type EquivalenceCheck struct {
	InternalRevision string
	PublicRevision   string
	Dispatch         ResultDispatch
}

// Name identifies the action.
func (check *EquivalenceCheck) Name() string {
	return equivalenceCheckNameConstant
}

// Execute builds both codebases, compares them unless the project declares manual equivalence
// deltas, and applies the dispatch policy.
func (check *EquivalenceCheck) Execute(executionContext context.Context, runContext *RunContext, remaining []Action) (*StateUpdate, error) {
	task := runContext.Tasks.Begin(fmt.Sprintf(equivalenceTaskTemplateConstant, check.InternalRevision, check.PublicRevision))
	update, checkError := check.perform(executionContext, runContext)
	if checkError != nil {
		runContext.Tasks.Fail(task, checkError)
		return nil, checkError
	}
	runContext.Tasks.Complete(task)
	return update, nil
}

func (check *EquivalenceCheck) perform(executionContext context.Context, runContext *RunContext) (*StateUpdate, error) {
	generated, generatedError := runContext.InternalCreator.CreateInProjectSpace(executionContext, check.InternalRevision, model.ProjectSpacePublic)
	if generatedError != nil {
		return nil, fmt.Errorf(equivalenceCreateErrorTemplateConstant, model.RepositorySideInternal, check.InternalRevision, generatedError)
	}
	public, publicError := runContext.PublicCreator.Create(executionContext, check.PublicRevision)
	if publicError != nil {
		return nil, fmt.Errorf(equivalenceCreateErrorTemplateConstant, model.RepositorySidePublic, check.PublicRevision, publicError)
	}

	var difference *codebase.CodebaseDifference
	if !runContext.Project.ManualEquivalenceDeltas {
		var compareError error
		difference, compareError = codebase.AreCodebasesDifferent(generated, public, runContext.Project.NoisyFilesPattern)
		if compareError != nil {
			return nil, fmt.Errorf(equivalenceCompareErrorTemplateConstant, compareError)
		}
	}
	differs := difference.HasDifference()

	switch check.Dispatch {
	case ErrorIfDifferent:
		if differs {
			return nil, check.mismatch(runContext, difference, generated, public)
		}
		return nil, nil
	case NoteAndStopIfSame:
		if differs {
			return nil, nil
		}
		if noteError := check.note(executionContext, runContext); noteError != nil {
			return nil, noteError
		}
		return &StateUpdate{Actions: []Action{}}, nil
	case NoteIfSameErrorIfDifferent:
		if differs {
			return nil, check.mismatch(runContext, difference, generated, public)
		}
		return nil, check.note(executionContext, runContext)
	default:
		if differs {
			return nil, nil
		}
		return nil, check.note(executionContext, runContext)
	}
}

func (check *EquivalenceCheck) note(executionContext context.Context, runContext *RunContext) error {
	correspondence := model.Correspondence{InternalRevision: check.InternalRevision, PublicRevision: check.PublicRevision}
	if noteError := runContext.Ledger.NoteEquivalence(executionContext, correspondence, model.VerificationVerified); noteError != nil {
		return noteError
	}
	runContext.Report.AddStep(noteEquivalenceStepNameConstant, noteEquivalenceCommandConstant, map[string]string{
		internalRevisionArgumentConstant: check.InternalRevision,
		publicRevisionArgumentConstant:   check.PublicRevision,
	})
	runContext.logger().Info(equivalenceNotedMessageConstant,
		zap.String(logFieldInternalRevisionConstant, check.InternalRevision),
		zap.String(logFieldPublicRevisionConstant, check.PublicRevision),
	)
	return nil
}

func (check *EquivalenceCheck) mismatch(runContext *RunContext, difference *codebase.CodebaseDifference, generated *codebase.Codebase, public *codebase.Codebase) error {
	if len(difference.FirstOnly) > 0 {
		runContext.logger().Warn(generatedOnlyMessageConstant, zap.Strings(logFieldFilesConstant, difference.FirstOnly))
	}
	if len(difference.SecondOnly) > 0 {
		runContext.logger().Warn(publicOnlyMessageConstant, zap.Strings(logFieldFilesConstant, difference.SecondOnly))
	}
	return EquivalenceMismatchError{
		InternalRevision: check.InternalRevision,
		PublicRevision:   check.PublicRevision,
		GeneratedPath:    generated.Root(),
		PublicPath:       public.Root(),
		Difference:       difference,
	}
}
