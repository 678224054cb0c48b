package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/translate"
)

const (
	exportDirectorySuffixConstant      = "_export"
	headDirectoryNameConstant          = "head"
	stagingDirectoryPatternConstant    = ".staging_*"
	missingRepositoryMessageConstant   = "codebase creator requires a repository"
	missingExportRootMessageConstant   = "codebase creator requires an export directory"
	prepareExportErrorTemplateConstant = "unable to prepare export directory %s: %w"
	exportErrorTemplateConstant        = "unable to export %s: %w"
	publishExportErrorTemplateConstant = "unable to publish export %s: %w"
	exportReusedMessageConstant        = "reusing exported codebase"
	exportCompletedMessageConstant     = "exported codebase"
	logFieldRepositoryConstant         = "repository"
	logFieldRevisionConstant           = "revision"
	logFieldDirectoryConstant          = "directory"
	exportDirectoryPermissionsConstant = 0o755
)

var (
	// ErrMissingRepository indicates a creator built without a repository.
	ErrMissingRepository = errors.New(missingRepositoryMessageConstant)
	// ErrMissingExportRoot indicates a creator built without an export directory.
	ErrMissingExportRoot = errors.New(missingExportRootMessageConstant)
)

// ExportingCodebaseCreatorOptions configures an ExportingCodebaseCreator.
type ExportingCodebaseCreatorOptions struct {
	Repository             Repository
	ProjectSpace           model.ProjectSpace
	AdditionalFilesPattern *regexp.Regexp
	Translators            []translate.Translator
	ExportRoot             string
	Logger                 *zap.Logger
}

// ExportingCodebaseCreator exports one directory per revision below ExportRoot.
// Exports of a fixed revision are reused; head exports are refreshed every time.
type ExportingCodebaseCreator struct {
	repository             Repository
	projectSpace           model.ProjectSpace
	additionalFilesPattern *regexp.Regexp
	translators            []translate.Translator
	exportDirectory        string
	logger                 *zap.Logger
}

// NewExportingCodebaseCreator validates options and builds the creator.
func NewExportingCodebaseCreator(options ExportingCodebaseCreatorOptions) (*ExportingCodebaseCreator, error) {
	if options.Repository == nil {
		return nil, ErrMissingRepository
	}
	if len(options.ExportRoot) == 0 {
		return nil, ErrMissingExportRoot
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportingCodebaseCreator{
		repository:             options.Repository,
		projectSpace:           options.ProjectSpace,
		additionalFilesPattern: options.AdditionalFilesPattern,
		translators:            options.Translators,
		exportDirectory:        filepath.Join(options.ExportRoot, options.Repository.Name()+exportDirectorySuffixConstant),
		logger:                 logger,
	}, nil
}

// RepositoryName returns the name of the backing repository.
func (creator *ExportingCodebaseCreator) RepositoryName() string {
	return creator.repository.Name()
}

// ProjectSpace returns the project space of created codebases.
func (creator *ExportingCodebaseCreator) ProjectSpace() model.ProjectSpace {
	return creator.projectSpace
}

// MakeEditor delegates to the repository.
func (creator *ExportingCodebaseCreator) MakeEditor(executionContext context.Context, strategy model.MigrationStrategy, revisions []model.Revision) (Editor, error) {
	return creator.repository.MakeEditor(executionContext, strategy, revisions)
}

// MakeRevisionFromID delegates to the repository.
func (creator *ExportingCodebaseCreator) MakeRevisionFromID(revisionID string) model.Revision {
	return creator.repository.MakeRevisionFromID(revisionID)
}

// Create exports the tree at revisionID. Export failures are reported as codebase.CreationError.
func (creator *ExportingCodebaseCreator) Create(executionContext context.Context, revisionID string) (*codebase.Codebase, error) {
	directoryName := revisionID
	if revisionID == HeadRevisionIdentifier {
		directoryName = headDirectoryNameConstant
	}
	exportPath := filepath.Join(creator.exportDirectory, directoryName)
	revisionFields := []zap.Field{
		zap.String(logFieldRepositoryConstant, creator.repository.Name()),
		zap.String(logFieldRevisionConstant, directoryName),
		zap.String(logFieldDirectoryConstant, exportPath),
	}

	if revisionID == HeadRevisionIdentifier {
		if removeError := os.RemoveAll(exportPath); removeError != nil {
			return nil, fmt.Errorf(prepareExportErrorTemplateConstant, exportPath, removeError)
		}
	}

	exists, existsError := codebase.FileExists(exportPath)
	if existsError != nil {
		return nil, fmt.Errorf(prepareExportErrorTemplateConstant, exportPath, existsError)
	}
	if exists {
		creator.logger.Debug(exportReusedMessageConstant, revisionFields...)
	} else if exportError := creator.export(executionContext, exportPath, revisionID); exportError != nil {
		return nil, exportError
	}

	return codebase.New(exportPath, creator.projectSpace, codebase.Options{
		AdditionalFilesPattern: creator.additionalFilesPattern,
		RevisionID:             revisionID,
	}), nil
}

// CreateInProjectSpace creates the codebase and translates it into projectSpace.
// Translation failures are reported as codebase.CreationError; a missing translator is not.
func (creator *ExportingCodebaseCreator) CreateInProjectSpace(executionContext context.Context, revisionID string, projectSpace model.ProjectSpace) (*codebase.Codebase, error) {
	created, createError := creator.Create(executionContext, revisionID)
	if createError != nil {
		return nil, createError
	}
	translated, translateError := translate.TranslateToProjectSpace(executionContext, created, projectSpace, creator.translators)
	if translateError == nil {
		return translated, nil
	}
	var creationError codebase.CreationError
	if errors.Is(translateError, translate.ErrNoTranslator) || errors.As(translateError, &creationError) {
		return nil, translateError
	}
	return nil, codebase.CreationError{RevisionID: revisionID, Cause: translateError}
}

// export writes into a staging directory and renames it so a failed export never looks complete.
func (creator *ExportingCodebaseCreator) export(executionContext context.Context, exportPath string, revisionID string) error {
	if mkdirError := os.MkdirAll(creator.exportDirectory, exportDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(prepareExportErrorTemplateConstant, creator.exportDirectory, mkdirError)
	}
	stagingPath, stagingError := os.MkdirTemp(creator.exportDirectory, stagingDirectoryPatternConstant)
	if stagingError != nil {
		return fmt.Errorf(prepareExportErrorTemplateConstant, creator.exportDirectory, stagingError)
	}

	if exportError := creator.repository.Export(executionContext, stagingPath, revisionID); exportError != nil {
		_ = os.RemoveAll(stagingPath)
		return codebase.CreationError{RevisionID: revisionID, Cause: fmt.Errorf(exportErrorTemplateConstant, creator.repository.Name(), exportError)}
	}
	if renameError := os.Rename(stagingPath, exportPath); renameError != nil {
		_ = os.RemoveAll(stagingPath)
		return fmt.Errorf(publishExportErrorTemplateConstant, exportPath, renameError)
	}

	creator.logger.Info(exportCompletedMessageConstant,
		zap.String(logFieldRepositoryConstant, creator.repository.Name()),
		zap.String(logFieldRevisionConstant, revisionID),
		zap.String(logFieldDirectoryConstant, exportPath),
	)
	return nil
}
