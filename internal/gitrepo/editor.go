package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/repository"
)

const (
	commitMessageFileNameConstant         = ".git-commit.tmp"
	gitAddSubcommandConstant              = "add"
	gitRemoveSubcommandConstant           = "rm"
	gitStatusSubcommandConstant           = "status"
	gitPorcelainFlagConstant              = "--porcelain"
	gitDiffSubcommandConstant             = "diff"
	gitCachedFlagConstant                 = "--cached"
	gitCommitSubcommandConstant           = "commit"
	gitMessageFlagConstant                = "-m"
	gitPushSubcommandConstant             = "push"
	gitRevParseSubcommandConstant         = "rev-parse"
	gitShortFlagTemplateConstant          = "--short=%d"
	gitQuietRemoveFlagConstant            = "-q"
	gitPathSeparatorArgumentConstant      = "--"
	pushRefspecTemplateConstant           = "HEAD:refs/heads/%s"
	patchesAppliedTemplateConstant        = "Patches applied against %s in %s"
	refineMessageTodoTemplateConstant     = "Refine commit message in %s/" + commitMessageFileNameConstant + " (for code words, brevity, etc.)"
	submitTodoTemplateConstant            = "%s\n   To submit, run: (cd %s && git commit -F " + commitMessageFileNameConstant + " && rm " + commitMessageFileNameConstant + " )"
	missingEditorDirectoryMessageConstant = "git editor requires a directory"
	missingClientMessageConstant          = "git editor requires a client"
	neitherFileExistsTemplateConstant     = "neither %s nor %s exists"
	messageFileExistsTemplateConstant     = "%s exists, but the commit message belongs there"
	writeMessageErrorTemplateConstant     = "unable to write commit message: %w"
	putFileErrorTemplateConstant          = "unable to update %s: %w"
	editorCheckedOutMessageConstant       = "git editor checked out"
	changesPushedMessageConstant          = "pushed changes"
	logFieldCommitConstant                = "commit"
	commitMessageFilePermissionsConstant  = 0o644
)

var (
	// ErrMissingEditorDirectory indicates an editor without a working directory.
	ErrMissingEditorDirectory = errors.New(missingEditorDirectoryMessageConstant)
	// ErrMissingClient indicates an editor without a git client.
	ErrMissingClient = errors.New(missingClientMessageConstant)
)

// EditorOptions configures an Editor.
type EditorOptions struct {
	Directory string
	Client    *Client
	Strategy  model.MigrationStrategy
	Revisions []model.Revision
	Logger    *zap.Logger
}

// Editor applies one migration to a fresh clone of the destination branch.
type Editor struct {
	directory     string
	client        *Client
	strategy      model.MigrationStrategy
	revisions     []model.Revision
	logger        *zap.Logger
	checkedOut    bool
	modified      bool
	diff          string
	link          string
	commitMessage string
}

// NewEditor validates options and builds an Editor.
func NewEditor(options EditorOptions) (*Editor, error) {
	if len(options.Directory) == 0 {
		return nil, ErrMissingEditorDirectory
	}
	if options.Client == nil {
		return nil, ErrMissingClient
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{
		directory: options.Directory,
		client:    options.Client,
		strategy:  options.Strategy,
		revisions: options.Revisions,
		logger:    logger,
	}, nil
}

// Root returns the checkout directory.
func (editor *Editor) Root() string {
	return editor.directory
}

// Checkout clones the destination branch once.
func (editor *Editor) Checkout(executionContext context.Context) error {
	if editor.checkedOut {
		return nil
	}
	if cloneError := editor.client.Clone(executionContext, editor.directory); cloneError != nil {
		return cloneError
	}
	editor.checkedOut = true
	editor.logger.Info(editorCheckedOutMessageConstant,
		zap.String(logFieldURLConstant, editor.client.URL()),
		zap.String(logFieldDirectoryConstant, editor.directory),
	)
	return nil
}

// Walk lists the checked out files outside .git.
func (editor *Editor) Walk() ([]string, error) {
	return codebase.ListFiles(editor.directory, nil)
}

// PutFile copies sourcePath over relativeFileName and stages it, or removes the file when sourcePath is missing.
func (editor *Editor) PutFile(executionContext context.Context, relativeFileName string, sourcePath string) error {
	destinationPath := filepath.Join(editor.directory, filepath.FromSlash(relativeFileName))
	sourceExists, sourceError := codebase.FileExists(sourcePath)
	if sourceError != nil {
		return fmt.Errorf(putFileErrorTemplateConstant, relativeFileName, sourceError)
	}
	destinationExists, destinationError := codebase.FileExists(destinationPath)
	if destinationError != nil {
		return fmt.Errorf(putFileErrorTemplateConstant, relativeFileName, destinationError)
	}

	if !sourceExists && !destinationExists {
		return fmt.Errorf(neitherFileExistsTemplateConstant, sourcePath, destinationPath)
	}
	if !sourceExists {
		_, removeError := editor.client.Run(executionContext, editor.directory, gitRemoveSubcommandConstant, gitQuietRemoveFlagConstant, gitPathSeparatorArgumentConstant, relativeFileName)
		return removeError
	}

	if copyError := codebase.CopyFile(sourcePath, destinationPath); copyError != nil {
		return fmt.Errorf(putFileErrorTemplateConstant, relativeFileName, copyError)
	}
	_, addError := editor.client.Run(executionContext, editor.directory, gitAddSubcommandConstant, gitPathSeparatorArgumentConstant, relativeFileName)
	return addError
}

// FinalizeChange records whether anything is staged. A pending strategy leaves the message in
// .git-commit.tmp and asks the operator to commit.
func (editor *Editor) FinalizeChange(executionContext context.Context, message string, reporter repository.Reporter) error {
	editor.commitMessage = message
	messagePath := filepath.Join(editor.directory, commitMessageFileNameConstant)
	messageFileExists, existsError := codebase.FileExists(messagePath)
	if existsError != nil {
		return existsError
	}
	if messageFileExists {
		return fmt.Errorf(messageFileExistsTemplateConstant, messagePath)
	}

	status, statusError := editor.client.Run(executionContext, editor.directory, gitStatusSubcommandConstant, gitPorcelainFlagConstant)
	if statusError != nil {
		return statusError
	}
	if len(strings.TrimSpace(status)) == 0 {
		editor.modified = false
		return nil
	}
	editor.modified = true

	diff, diffError := editor.client.Run(executionContext, editor.directory, gitDiffSubcommandConstant, gitCachedFlagConstant)
	if diffError != nil {
		return diffError
	}
	editor.diff = diff

	patchesMessage := fmt.Sprintf(patchesAppliedTemplateConstant, editor.client.URL(), editor.directory)
	if editor.strategy.CommitStrategy != model.CommitStrategyLeavePending {
		reporter.AddStep(patchesMessage, "", nil)
		return nil
	}

	if writeError := os.WriteFile(messagePath, []byte(message), commitMessageFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeMessageErrorTemplateConstant, writeError)
	}
	reporter.AddTodo(fmt.Sprintf(refineMessageTodoTemplateConstant, editor.directory))
	reporter.AddTodo(fmt.Sprintf(submitTodoTemplateConstant, patchesMessage, editor.directory))
	return nil
}

// ChangesMade reports whether FinalizeChange found staged modifications.
func (editor *Editor) ChangesMade() bool {
	return editor.modified
}

// CommitChange commits the staged change and pushes it for CommitRemotely.
// It returns an empty id when the change is left pending or the tree is clean.
func (editor *Editor) CommitChange(executionContext context.Context) (string, error) {
	if editor.strategy.CommitStrategy == model.CommitStrategyLeavePending {
		return "", nil
	}
	if !editor.modified {
		return "", nil
	}
	if _, commitError := editor.client.Run(executionContext, editor.directory, gitCommitSubcommandConstant, gitMessageFlagConstant, editor.commitMessage); commitError != nil {
		return "", commitError
	}
	headOutput, headError := editor.client.Run(executionContext, editor.directory, gitRevParseSubcommandConstant, fmt.Sprintf(gitShortFlagTemplateConstant, RevisionIDLength), headReferenceConstant)
	if headError != nil {
		return "", headError
	}
	commitID := strings.TrimSpace(headOutput)

	if editor.strategy.CommitStrategy == model.CommitStrategyCommitRemotely {
		pushArguments := []string{gitPushSubcommandConstant, editor.client.URL()}
		if len(editor.client.Branch()) > 0 {
			pushArguments = append(pushArguments, fmt.Sprintf(pushRefspecTemplateConstant, editor.client.Branch()))
		}
		if _, pushError := editor.client.Run(executionContext, editor.directory, pushArguments...); pushError != nil {
			return "", pushError
		}
		editor.logger.Info(changesPushedMessageConstant,
			zap.String(logFieldURLConstant, editor.client.URL()),
			zap.String(logFieldCommitConstant, commitID),
		)
		editor.link = CommitLink(editor.client.URL(), commitID)
	}
	return commitID, nil
}

// Diff returns the staged diff captured by FinalizeChange.
func (editor *Editor) Diff() string {
	return editor.diff
}

// Link returns a web link to the pushed commit when the remote is a recognized host.
func (editor *Editor) Link() string {
	return editor.link
}
