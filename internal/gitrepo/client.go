package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/codesync/internal/execshell"
)

const (
	gitCloneSubcommandConstant     = "clone"
	gitBranchFlagConstant          = "-b"
	gitQuietFlagConstant           = "--quiet"
	missingExecutorMessageConstant = "git client requires a git executor"
	missingURLMessageConstant      = "git repository url is required"
	cloneErrorTemplateConstant     = "failed to clone git repository %s: %w"
)

var (
	// ErrMissingExecutor indicates the client was built without a git executor.
	ErrMissingExecutor = errors.New(missingExecutorMessageConstant)
	// ErrMissingURL indicates a blank repository url.
	ErrMissingURL = errors.New(missingURLMessageConstant)
)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client clones one remote branch.
type Client struct {
	executor GitExecutor
	url      string
	branch   string
}

// NewClient validates its collaborators.
func NewClient(executor GitExecutor, url string, branch string) (*Client, error) {
	if executor == nil {
		return nil, ErrMissingExecutor
	}
	if len(strings.TrimSpace(url)) == 0 {
		return nil, ErrMissingURL
	}
	return &Client{executor: executor, url: url, branch: strings.TrimSpace(branch)}, nil
}

// URL returns the remote url.
func (client *Client) URL() string {
	return client.url
}

// Branch returns the configured branch, or an empty string for the remote default.
func (client *Client) Branch() string {
	return client.branch
}

// Clone checks the branch out into directory.
func (client *Client) Clone(executionContext context.Context, directory string) error {
	arguments := []string{gitCloneSubcommandConstant, gitQuietFlagConstant}
	if len(client.branch) > 0 {
		arguments = append(arguments, gitBranchFlagConstant, client.branch)
	}
	arguments = append(arguments, client.url, directory)
	if _, cloneError := client.executor.ExecuteGit(executionContext, execshell.CommandDetails{Arguments: arguments}); cloneError != nil {
		return fmt.Errorf(cloneErrorTemplateConstant, client.url, cloneError)
	}
	return nil
}

// Run executes git inside workingDirectory and returns its standard output.
func (client *Client) Run(executionContext context.Context, workingDirectory string, arguments ...string) (string, error) {
	result, runError := client.executor.ExecuteGit(executionContext, execshell.CommandDetails{Arguments: arguments, WorkingDirectory: workingDirectory})
	if runError != nil {
		return "", runError
	}
	return result.StandardOutput, nil
}
