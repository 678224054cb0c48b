package translate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/execshell"
	"github.com/temirov/codesync/internal/model"
)

const (
	inputPlaceholderConstant            = "{input}"
	outputPlaceholderConstant           = "{output}"
	translatedDirectoryPrefixConstant   = "translated_codebase_"
	missingCommandMessageConstant       = "translator command is required"
	missingExecutorMessageConstant      = "translator requires a shell executor"
	createOutputErrorTemplateConstant   = "unable to prepare translation output: %w"
	copyInputErrorTemplateConstant      = "unable to copy %s for in-place translation: %w"
	runCommandErrorTemplateConstant     = "translation from %s to %s failed: %w"
	translationStartedMessageConstant   = "translating codebase"
	translationCompletedMessageConstant = "translated codebase"
	logFieldFromSpaceConstant           = "from_project_space"
	logFieldToSpaceConstant             = "to_project_space"
	logFieldInputConstant               = "input"
	logFieldOutputConstant              = "output"
)

var (
	// ErrMissingCommand indicates a scrubber translator without a command.
	ErrMissingCommand = errors.New(missingCommandMessageConstant)
	// ErrMissingExecutor indicates a scrubber translator without a shell executor.
	ErrMissingExecutor = errors.New(missingExecutorMessageConstant)
)

// ScrubberOptions configures a ScrubberTranslator. Arguments may reference {input} and {output}.
type ScrubberOptions struct {
	Command   string   `mapstructure:"command"`
	Arguments []string `mapstructure:"arguments"`
	InPlace   bool     `mapstructure:"in_place"`
}

// CommandExecutor runs translation commands.
type CommandExecutor interface {
	ExecuteCommand(executionContext context.Context, name execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ScrubberTranslator runs an external scrubber that writes the translated tree into a fresh directory.
// With InPlace, the input is first copied into that directory and the command rewrites it there.
type ScrubberTranslator struct {
	fromProjectSpace model.ProjectSpace
	toProjectSpace   model.ProjectSpace
	options          ScrubberOptions
	executor         CommandExecutor
	temporaryRoot    string
	logger           *zap.Logger
}

// NewScrubberTranslator validates options and constructs a ScrubberTranslator.
func NewScrubberTranslator(fromProjectSpace model.ProjectSpace, toProjectSpace model.ProjectSpace, options ScrubberOptions, executor CommandExecutor, temporaryRoot string, logger *zap.Logger) (*ScrubberTranslator, error) {
	if len(strings.TrimSpace(options.Command)) == 0 {
		return nil, ErrMissingCommand
	}
	if executor == nil {
		return nil, ErrMissingExecutor
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScrubberTranslator{
		fromProjectSpace: fromProjectSpace,
		toProjectSpace:   toProjectSpace,
		options:          options,
		executor:         executor,
		temporaryRoot:    temporaryRoot,
		logger:           logger,
	}, nil
}

// FromProjectSpace implements Translator.
func (translator *ScrubberTranslator) FromProjectSpace() model.ProjectSpace {
	return translator.fromProjectSpace
}

// ToProjectSpace implements Translator.
func (translator *ScrubberTranslator) ToProjectSpace() model.ProjectSpace {
	return translator.toProjectSpace
}

// Translate runs the configured command and returns the produced tree.
func (translator *ScrubberTranslator) Translate(executionContext context.Context, source *codebase.Codebase) (*codebase.Codebase, error) {
	if verificationError := verifySourceSpace(source, translator.fromProjectSpace); verificationError != nil {
		return nil, verificationError
	}

	outputDirectory, createError := os.MkdirTemp(translator.temporaryRoot, translatedDirectoryPrefixConstant)
	if createError != nil {
		return nil, fmt.Errorf(createOutputErrorTemplateConstant, createError)
	}

	if translator.options.InPlace {
		if copyError := codebase.CopyTree(source, outputDirectory); copyError != nil {
			return nil, fmt.Errorf(copyInputErrorTemplateConstant, source, copyError)
		}
	}

	translator.logger.Info(translationStartedMessageConstant,
		zap.String(logFieldFromSpaceConstant, string(translator.fromProjectSpace)),
		zap.String(logFieldToSpaceConstant, string(translator.toProjectSpace)),
		zap.String(logFieldInputConstant, source.Root()),
		zap.String(logFieldOutputConstant, outputDirectory),
	)

	arguments := make([]string, 0, len(translator.options.Arguments))
	placeholderReplacer := strings.NewReplacer(inputPlaceholderConstant, source.Root(), outputPlaceholderConstant, outputDirectory)
	for _, argument := range translator.options.Arguments {
		arguments = append(arguments, placeholderReplacer.Replace(argument))
	}

	_, executionError := translator.executor.ExecuteCommand(executionContext, execshell.CommandName(translator.options.Command), execshell.CommandDetails{Arguments: arguments})
	if executionError != nil {
		return nil, codebase.CreationError{
			RevisionID: source.RevisionID(),
			Cause:      fmt.Errorf(runCommandErrorTemplateConstant, translator.fromProjectSpace, translator.toProjectSpace, executionError),
		}
	}

	translator.logger.Info(translationCompletedMessageConstant, zap.String(logFieldOutputConstant, outputDirectory))
	return codebase.New(outputDirectory, translator.toProjectSpace, codebase.Options{
		AdditionalFilesPattern: source.AdditionalFilesPattern(),
		RevisionID:             source.RevisionID(),
	}), nil
}
