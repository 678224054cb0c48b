package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/repository"
)

// RevisionIDLength is the length of abbreviated revision identifiers.
const RevisionIDLength = 12

const (
	repositoryNameSuffixConstant         = "_git"
	headReferenceConstant                = "HEAD"
	cloneDirectoryNameConstant           = "git"
	editorDirectoryPatternConstant       = "_editor_*"
	defaultInitialWindowConstant         = 400
	missingNameMessageConstant           = "git repository name is required"
	missingTemporaryRootMessageConstant  = "git repository requires a temporary directory"
	invalidRevisionIDTemplateConstant    = "received revision id %q, expected length %d"
	resolveRevisionErrorTemplateConstant = "unable to resolve revision %q in %s: %w"
	prepareCloneErrorTemplateConstant    = "unable to prepare clone directory %s: %w"
	openCloneErrorTemplateConstant       = "unable to open clone %s: %w"
	prepareEditorErrorTemplateConstant   = "unable to prepare editor directory: %w"
	cloneReadyMessageConstant            = "git repository cloned"
	logFieldRepositoryConstant           = "repository"
	logFieldDirectoryConstant            = "directory"
	logFieldURLConstant                  = "url"
)

var (
	// ErrMissingName indicates a repository without a name.
	ErrMissingName = errors.New(missingNameMessageConstant)
	// ErrMissingTemporaryRoot indicates a repository without a working area.
	ErrMissingTemporaryRoot = errors.New(missingTemporaryRootMessageConstant)
)

// RepositoryName derives the ledger repository name for a project.
func RepositoryName(projectName string) string {
	return projectName + repositoryNameSuffixConstant
}

// RepositoryOptions configures a Repository.
type RepositoryOptions struct {
	Name          string
	URL           string
	Branch        string
	TemporaryRoot string
	InitialWindow int
	MaxWindow     int
	Executor      GitExecutor
	Logger        *zap.Logger
}

// Repository is a remote Git branch read through a lazily created local clone.
type Repository struct {
	name          string
	client        *Client
	temporaryRoot string
	initialWindow int
	maxWindow     int
	logger        *zap.Logger
	clone         *git.Repository
}

// NewRepository validates options and builds a Repository.
func NewRepository(options RepositoryOptions) (*Repository, error) {
	if len(strings.TrimSpace(options.Name)) == 0 {
		return nil, ErrMissingName
	}
	if len(options.TemporaryRoot) == 0 {
		return nil, ErrMissingTemporaryRoot
	}
	client, clientError := NewClient(options.Executor, options.URL, options.Branch)
	if clientError != nil {
		return nil, clientError
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	initialWindow := options.InitialWindow
	if initialWindow <= 0 {
		initialWindow = defaultInitialWindowConstant
	}
	maxWindow := options.MaxWindow
	if maxWindow < initialWindow {
		maxWindow = initialWindow
	}
	return &Repository{
		name:          options.Name,
		client:        client,
		temporaryRoot: options.TemporaryRoot,
		initialWindow: initialWindow,
		maxWindow:     maxWindow,
		logger:        logger,
	}, nil
}

// Name returns the repository name recorded in the ledger.
func (gitRepository *Repository) Name() string {
	return gitRepository.name
}

// GetHeadRevision returns the abbreviated id of HEAD, or of maxRevisionID when given.
func (gitRepository *Repository) GetHeadRevision(executionContext context.Context, maxRevisionID string) (string, error) {
	target := strings.TrimSpace(maxRevisionID)
	if len(target) == 0 {
		target = headReferenceConstant
	}
	if target != headReferenceConstant && len(target) != RevisionIDLength {
		return "", fmt.Errorf(invalidRevisionIDTemplateConstant, target, RevisionIDLength)
	}
	commit, resolveError := gitRepository.resolveCommit(executionContext, target)
	if resolveError != nil {
		return "", resolveError
	}
	return abbreviate(commit.Hash), nil
}

// MakeRevisionFromID builds a revision of this repository.
func (gitRepository *Repository) MakeRevisionFromID(revisionID string) model.Revision {
	return model.NewRevision(revisionID, gitRepository.name, model.RevisionOptions{})
}

// MakeEditor prepares an editor with its own clone.
func (gitRepository *Repository) MakeEditor(_ context.Context, strategy model.MigrationStrategy, revisions []model.Revision) (repository.Editor, error) {
	if mkdirError := os.MkdirAll(gitRepository.temporaryRoot, cloneDirectoryPermissionsConstant); mkdirError != nil {
		return nil, fmt.Errorf(prepareEditorErrorTemplateConstant, mkdirError)
	}
	editorDirectory, directoryError := os.MkdirTemp(gitRepository.temporaryRoot, gitRepository.name+editorDirectoryPatternConstant)
	if directoryError != nil {
		return nil, fmt.Errorf(prepareEditorErrorTemplateConstant, directoryError)
	}
	return NewEditor(EditorOptions{
		Directory: editorDirectory,
		Client:    gitRepository.client,
		Strategy:  strategy,
		Revisions: revisions,
		Logger:    gitRepository.logger,
	})
}

func (gitRepository *Repository) openClone(executionContext context.Context) (*git.Repository, error) {
	if gitRepository.clone != nil {
		return gitRepository.clone, nil
	}
	cloneDirectory := filepath.Join(gitRepository.temporaryRoot, gitRepository.name, cloneDirectoryNameConstant)
	if removeError := os.RemoveAll(cloneDirectory); removeError != nil {
		return nil, fmt.Errorf(prepareCloneErrorTemplateConstant, cloneDirectory, removeError)
	}
	if mkdirError := os.MkdirAll(filepath.Dir(cloneDirectory), cloneDirectoryPermissionsConstant); mkdirError != nil {
		return nil, fmt.Errorf(prepareCloneErrorTemplateConstant, cloneDirectory, mkdirError)
	}
	if cloneError := gitRepository.client.Clone(executionContext, cloneDirectory); cloneError != nil {
		return nil, cloneError
	}
	clone, openError := git.PlainOpen(cloneDirectory)
	if openError != nil {
		return nil, fmt.Errorf(openCloneErrorTemplateConstant, cloneDirectory, openError)
	}
	gitRepository.logger.Info(cloneReadyMessageConstant,
		zap.String(logFieldRepositoryConstant, gitRepository.name),
		zap.String(logFieldURLConstant, gitRepository.client.URL()),
		zap.String(logFieldDirectoryConstant, cloneDirectory),
	)
	gitRepository.clone = clone
	return clone, nil
}

func (gitRepository *Repository) resolveCommit(executionContext context.Context, revisionID string) (*object.Commit, error) {
	clone, openError := gitRepository.openClone(executionContext)
	if openError != nil {
		return nil, openError
	}
	if len(revisionID) == 0 {
		revisionID = headReferenceConstant
	}
	hash, resolveError := clone.ResolveRevision(plumbing.Revision(revisionID))
	if resolveError != nil {
		return nil, fmt.Errorf(resolveRevisionErrorTemplateConstant, revisionID, gitRepository.name, resolveError)
	}
	commit, commitError := clone.CommitObject(*hash)
	if commitError != nil {
		return nil, fmt.Errorf(resolveRevisionErrorTemplateConstant, revisionID, gitRepository.name, commitError)
	}
	return commit, nil
}

func abbreviate(hash plumbing.Hash) string {
	return hash.String()[:RevisionIDLength]
}
