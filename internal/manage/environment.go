package manage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/actions"
	"github.com/temirov/codesync/internal/execshell"
	"github.com/temirov/codesync/internal/gitrepo"
	"github.com/temirov/codesync/internal/ledger"
	"github.com/temirov/codesync/internal/merge"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/project"
	"github.com/temirov/codesync/internal/repository"
	"github.com/temirov/codesync/internal/translate"
)

const (
	workingDirectoryPatternConstant       = "codesync_%s_"
	workingDirectoryPermissionsConstant   = 0o755
	missingProjectMessageConstant         = "environment requires a project"
	missingExecutorMessageConstant        = "environment requires a shell executor"
	missingLedgerURLMessageConstant       = "no ledger location configured; set moe_db_url or --ledger"
	workingDirectoryErrorTemplateConstant = "unable to create working directory: %w"
	repositoryErrorTemplateConstant       = "unable to configure %s repository: %w"
	translatorErrorTemplateConstant       = "unable to configure translators: %w"
	creatorErrorTemplateConstant          = "unable to configure %s codebase creator: %w"
	mergerErrorTemplateConstant           = "unable to configure merge tool: %w"
	ledgerErrorTemplateConstant           = "unable to open ledger %s: %w"
	environmentReadyMessageConstant       = "environment ready"
	logFieldWorkingDirectoryConstant      = "working_directory"
	logFieldLedgerConstant                = "ledger"
	logFieldProjectConstant               = "project"
)

var (
	// ErrMissingProject indicates EnvironmentOptions without a project.
	ErrMissingProject = errors.New(missingProjectMessageConstant)
	// ErrMissingExecutor indicates EnvironmentOptions without a shell executor.
	ErrMissingExecutor = errors.New(missingExecutorMessageConstant)
	// ErrMissingLedgerURL indicates neither the project nor the options name a ledger.
	ErrMissingLedgerURL = errors.New(missingLedgerURLMessageConstant)
)

// EnvironmentOptions configures NewEnvironment.
type EnvironmentOptions struct {
	Project *project.Project
	// LedgerURL overrides the ledger location of the project.
	LedgerURL string
	// TemporaryRoot holds the per-run working directory. Empty means the system default.
	TemporaryRoot string
	InitialWindow int
	MaxWindow     int
	Executor      *execshell.ShellExecutor
	Logger        *zap.Logger
}

// Environment is everything a run needs to reach both repositories and the ledger.
type Environment struct {
	Project          *project.Project
	Internal         repository.Repository
	Public           repository.Repository
	InternalCreator  repository.CodebaseCreator
	PublicCreator    repository.CodebaseCreator
	Ledger           ledger.Ledger
	Merger           actions.Merger
	WorkingDirectory string
}

// NewEnvironment builds the git repositories, translators, codebase creators, merger, and ledger of a project.
func NewEnvironment(executionContext context.Context, options EnvironmentOptions) (*Environment, error) {
	if options.Project == nil {
		return nil, ErrMissingProject
	}
	if options.Executor == nil {
		return nil, ErrMissingExecutor
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ledgerLocation := strings.TrimSpace(options.LedgerURL)
	if len(ledgerLocation) == 0 {
		ledgerLocation = options.Project.LedgerURL
	}
	if len(ledgerLocation) == 0 {
		return nil, ErrMissingLedgerURL
	}

	if len(options.TemporaryRoot) > 0 {
		if mkdirError := os.MkdirAll(options.TemporaryRoot, workingDirectoryPermissionsConstant); mkdirError != nil {
			return nil, fmt.Errorf(workingDirectoryErrorTemplateConstant, mkdirError)
		}
	}
	workingDirectory, workingError := os.MkdirTemp(options.TemporaryRoot, fmt.Sprintf(workingDirectoryPatternConstant, options.Project.Name))
	if workingError != nil {
		return nil, fmt.Errorf(workingDirectoryErrorTemplateConstant, workingError)
	}

	translators, translatorsError := translate.Build(options.Project.Translators, translate.Dependencies{
		Executor:      options.Executor,
		TemporaryRoot: workingDirectory,
		Logger:        logger,
	})
	if translatorsError != nil {
		return nil, fmt.Errorf(translatorErrorTemplateConstant, translatorsError)
	}

	environment := &Environment{Project: options.Project, WorkingDirectory: workingDirectory}
	for _, side := range []model.RepositorySide{model.RepositorySideInternal, model.RepositorySidePublic} {
		settings := options.Project.RepositoryFor(side)
		gitRepository, repositoryError := gitrepo.NewRepository(gitrepo.RepositoryOptions{
			Name:          gitrepo.RepositoryName(settings.Name),
			URL:           settings.URL,
			Branch:        settings.Branch,
			TemporaryRoot: filepath.Join(workingDirectory, string(side)),
			InitialWindow: options.InitialWindow,
			MaxWindow:     options.MaxWindow,
			Executor:      options.Executor,
			Logger:        logger,
		})
		if repositoryError != nil {
			return nil, fmt.Errorf(repositoryErrorTemplateConstant, side, repositoryError)
		}
		creator, creatorError := repository.NewExportingCodebaseCreator(repository.ExportingCodebaseCreatorOptions{
			Repository:             gitRepository,
			ProjectSpace:           model.ProjectSpace(side),
			AdditionalFilesPattern: settings.AdditionalFilesPattern,
			Translators:            translators,
			ExportRoot:             workingDirectory,
			Logger:                 logger,
		})
		if creatorError != nil {
			return nil, fmt.Errorf(creatorErrorTemplateConstant, side, creatorError)
		}
		if side == model.RepositorySideInternal {
			environment.Internal, environment.InternalCreator = gitRepository, creator
		} else {
			environment.Public, environment.PublicCreator = gitRepository, creator
		}
	}

	merger, mergerError := merge.NewMerger(merge.Options{Executor: options.Executor, TemporaryRoot: workingDirectory, Logger: logger})
	if mergerError != nil {
		return nil, fmt.Errorf(mergerErrorTemplateConstant, mergerError)
	}
	environment.Merger = merger

	openedLedger, ledgerError := ledger.Open(executionContext, ledgerLocation, options.Project.Name, logger)
	if ledgerError != nil {
		return nil, fmt.Errorf(ledgerErrorTemplateConstant, ledgerLocation, ledgerError)
	}
	environment.Ledger = openedLedger

	logger.Info(environmentReadyMessageConstant,
		zap.String(logFieldProjectConstant, options.Project.Name),
		zap.String(logFieldWorkingDirectoryConstant, workingDirectory),
		zap.String(logFieldLedgerConstant, openedLedger.DashboardURL()),
	)
	return environment, nil
}

// Close releases the ledger. The working directory is kept so pending changes stay reachable.
func (environment *Environment) Close() error {
	if environment == nil || environment.Ledger == nil {
		return nil
	}
	return environment.Ledger.Close()
}
