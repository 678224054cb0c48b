package push

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/repository"
)

const (
	commitMessageTemplateConstant      = "\n%s\n\nRevision created by codesync push.\n%s\n"
	plainCommitMessageTemplateConstant = "\n%s\n\nRevision created by codesync push.\n"
	noFilesToPushMessageConstant       = "found no files to push; the additional files pattern may be too broad"
	missingSourceMessageConstant       = "push requires a source codebase"
	missingEditorMessageConstant       = "push requires a destination editor"
	checkoutErrorTemplateConstant      = "unable to check out %s: %w"
	walkErrorTemplateConstant          = "unable to list files of %s: %w"
	putFileErrorTemplateConstant       = "unable to push %s: %w"
	finalizeErrorTemplateConstant      = "unable to finalize change in %s: %w"
	commitErrorTemplateConstant        = "unable to commit change in %s: %w"
	pushingMessageConstant             = "pushing files"
	emptySourceDebugMessageConstant    = "source codebase contents"
	pushedMessageConstant              = "push finished"
	logFieldFileCountConstant          = "files"
	logFieldDestinationConstant        = "destination"
	logFieldSourceConstant             = "source"
	logFieldOutcomeConstant            = "outcome"
	logFieldCommitConstant             = "commit"
	logFieldAllFilesConstant           = "all_files"
	outcomeNothingPushedLabel          = "nothing pushed"
	outcomeCommittedLabel              = "committed"
	outcomePendingLabel                = "pending"
)

var (
	// ErrNoFilesToPush indicates a source codebase that enumerates no files.
	ErrNoFilesToPush = errors.New(noFilesToPushMessageConstant)
	// ErrMissingSource indicates a pusher built without a source codebase.
	ErrMissingSource = errors.New(missingSourceMessageConstant)
	// ErrMissingEditor indicates a pusher built without a destination editor.
	ErrMissingEditor = errors.New(missingEditorMessageConstant)
)

// OutcomeKind classifies the result of a push.
type OutcomeKind int

// Push outcomes.
const (
	OutcomeNothingPushed OutcomeKind = iota
	OutcomeCommitted
	OutcomePending
)

// String renders the outcome label.
func (kind OutcomeKind) String() string {
	switch kind {
	case OutcomeCommitted:
		return outcomeCommittedLabel
	case OutcomePending:
		return outcomePendingLabel
	default:
		return outcomeNothingPushedLabel
	}
}

// Outcome describes a finished push.
type Outcome struct {
	Kind     OutcomeKind
	CommitID string
}

// CommitMessage renders the message of a migration commit. The trailing marker line identifies the migration
// and is omitted for pushes made outside a migration.
func CommitMessage(changelog string, migrationID string) string {
	if len(migrationID) == 0 {
		return fmt.Sprintf(plainCommitMessageTemplateConstant, changelog)
	}
	return fmt.Sprintf(commitMessageTemplateConstant, changelog, model.FormatMigrationMarker(migrationID))
}

// Options configures a Pusher.
type Options struct {
	Source        *codebase.Codebase
	Editor        repository.Editor
	Reporter      repository.Reporter
	IgnorePattern *regexp.Regexp
	Changelog     string
	MigrationID   string
	Logger        *zap.Logger
}

// Pusher makes a destination editor match a source codebase.
type Pusher struct {
	source        *codebase.Codebase
	editor        repository.Editor
	reporter      repository.Reporter
	ignorePattern *regexp.Regexp
	changelog     string
	migrationID   string
	logger        *zap.Logger
}

// NewPusher validates options and builds a Pusher.
func NewPusher(options Options) (*Pusher, error) {
	if options.Source == nil {
		return nil, ErrMissingSource
	}
	if options.Editor == nil {
		return nil, ErrMissingEditor
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pusher{
		source:        options.Source,
		editor:        options.Editor,
		reporter:      options.Reporter,
		ignorePattern: options.IgnorePattern,
		changelog:     options.Changelog,
		migrationID:   options.MigrationID,
		logger:        logger,
	}, nil
}

// Push checks out the editor, copies every file of the union of source and destination, then
// finalizes and commits the change.
func (pusher *Pusher) Push(executionContext context.Context) (Outcome, error) {
	destination := pusher.editor.Root()
	if checkoutError := pusher.editor.Checkout(executionContext); checkoutError != nil {
		return Outcome{}, fmt.Errorf(checkoutErrorTemplateConstant, destination, checkoutError)
	}

	files, unionError := pusher.fileUnion()
	if unionError != nil {
		return Outcome{}, unionError
	}

	pusher.logger.Info(pushingMessageConstant,
		zap.Int(logFieldFileCountConstant, len(files)),
		zap.String(logFieldSourceConstant, pusher.source.Root()),
		zap.String(logFieldDestinationConstant, destination),
	)
	for _, relativeFileName := range files {
		if putError := pusher.editor.PutFile(executionContext, relativeFileName, pusher.source.FilePath(relativeFileName)); putError != nil {
			return Outcome{}, fmt.Errorf(putFileErrorTemplateConstant, relativeFileName, putError)
		}
	}

	if finalizeError := pusher.editor.FinalizeChange(executionContext, CommitMessage(pusher.changelog, pusher.migrationID), pusher.reporter); finalizeError != nil {
		return Outcome{}, fmt.Errorf(finalizeErrorTemplateConstant, destination, finalizeError)
	}
	commitID, commitError := pusher.editor.CommitChange(executionContext)
	if commitError != nil {
		return Outcome{}, fmt.Errorf(commitErrorTemplateConstant, destination, commitError)
	}

	outcome := Outcome{Kind: OutcomeNothingPushed, CommitID: commitID}
	switch {
	case len(commitID) > 0:
		outcome.Kind = OutcomeCommitted
	case pusher.editor.ChangesMade():
		outcome.Kind = OutcomePending
	}
	pusher.logger.Info(pushedMessageConstant,
		zap.Stringer(logFieldOutcomeConstant, outcome.Kind),
		zap.String(logFieldCommitConstant, commitID),
		zap.String(logFieldDestinationConstant, destination),
	)
	return outcome, nil
}

func (pusher *Pusher) fileUnion() ([]string, error) {
	sourceFiles, sourceError := pusher.source.Walk()
	if sourceError != nil {
		return nil, fmt.Errorf(walkErrorTemplateConstant, pusher.source.Root(), sourceError)
	}
	if len(sourceFiles) == 0 {
		allFiles, _ := codebase.ListFiles(pusher.source.Root(), nil)
		pusher.logger.Error(emptySourceDebugMessageConstant,
			zap.String(logFieldSourceConstant, pusher.source.Root()),
			zap.Strings(logFieldAllFilesConstant, allFiles),
		)
		return nil, ErrNoFilesToPush
	}

	destinationFiles, destinationError := pusher.editor.Walk()
	if destinationError != nil {
		return nil, fmt.Errorf(walkErrorTemplateConstant, pusher.editor.Root(), destinationError)
	}

	union := codebase.UnionOfFiles(sourceFiles, destinationFiles)
	if pusher.ignorePattern == nil {
		return union, nil
	}
	filtered := make([]string, 0, len(union))
	for _, relativeFileName := range union {
		if !pusher.ignorePattern.MatchString(relativeFileName) {
			filtered = append(filtered, relativeFileName)
		}
	}
	return filtered, nil
}
