package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/execshell"
)

const (
	mergedDirectoryPatternConstant        = "merged_codebase_"
	mergedFileModeConstant                = 0o644
	mergedDirectoryModeConstant           = 0o755
	printMergedFlagConstant               = "-p"
	mergeExitConflictsConstant            = 1
	mergeExitTroubleConstant              = 2
	missingExecutorMessageConstant        = "merge requires an executor"
	missingCodebaseMessageConstant        = "merge requires generated, public, and previous codebases"
	neitherSideExistsTemplateConstant     = "neither %s nor %s exists"
	createMergedDirectoryTemplateConstant = "unable to create merged codebase: %w"
	mergeFileErrorTemplateConstant        = "unable to merge %s: %w"
	writeMergedFileTemplateConstant       = "unable to write merged file %s: %w"
	failedMergeMessageConstant            = "failed merge"
	mergeTroubleMessageConstant           = "merge found trouble"
	unexpectedExitMessageConstant         = "merge returned an unexpected status"
	deleteEditConflictMessageConstant     = "file deleted on one side and edited on the other"
	mergeSummaryMessageConstant           = "codebases merged"
	logFieldFileConstant                  = "file"
	logFieldArgumentsConstant             = "arguments"
	logFieldExitCodeConstant              = "exit_code"
	logFieldExaminedConstant              = "examined"
	logFieldMergedConstant                = "merged"
	logFieldFailedConstant                = "failed"
	logFieldMergedRootConstant            = "merged_root"
)

var (
	// ErrMissingExecutor indicates a merger built without a merge executor.
	ErrMissingExecutor = errors.New(missingExecutorMessageConstant)
	// ErrMissingCodebase indicates Merge was called without one of its three inputs.
	ErrMissingCodebase = errors.New(missingCodebaseMessageConstant)
)

// Executor runs the external three-way text merge tool.
type Executor interface {
	ExecuteMerge(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Options configures a Merger.
type Options struct {
	Executor      Executor
	TemporaryRoot string
	Logger        *zap.Logger
}

// Inputs are the three codebases of a merge. Generated and Previous share the destination project space.
type Inputs struct {
	Generated *codebase.Codebase
	Public    *codebase.Codebase
	Previous  *codebase.Codebase
}

// Result describes a finished merge.
type Result struct {
	MergedCodebase *codebase.Codebase
	// MergedFiles lists the files that needed a merge rather than a plain copy.
	MergedFiles []string
	// FailedMerges lists files a human must resolve, without duplicates, in examination order.
	FailedMerges []string
}

// HasFailures reports whether any file failed to merge cleanly.
func (result *Result) HasFailures() bool {
	return result != nil && len(result.FailedMerges) > 0
}

// Merger performs three-way codebase merges.
type Merger struct {
	executor      Executor
	temporaryRoot string
	logger        *zap.Logger
}

// NewMerger validates options and builds a Merger.
func NewMerger(options Options) (*Merger, error) {
	if options.Executor == nil {
		return nil, ErrMissingExecutor
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{executor: options.Executor, temporaryRoot: options.TemporaryRoot, logger: logger}, nil
}

// Merge writes the merged codebase into a fresh directory below the temporary root.
func (merger *Merger) Merge(executionContext context.Context, inputs Inputs) (*Result, error) {
	if inputs.Generated == nil || inputs.Public == nil || inputs.Previous == nil {
		return nil, ErrMissingCodebase
	}

	mergedRoot, mkdirError := os.MkdirTemp(merger.temporaryRoot, mergedDirectoryPatternConstant)
	if mkdirError != nil {
		return nil, fmt.Errorf(createMergedDirectoryTemplateConstant, mkdirError)
	}

	generatedFiles, generatedError := inputs.Generated.Walk()
	if generatedError != nil {
		return nil, generatedError
	}
	publicFiles, publicError := inputs.Public.Walk()
	if publicError != nil {
		return nil, publicError
	}
	files := orderedUnion(generatedFiles, publicFiles)

	state := &mergeState{failedSet: map[string]struct{}{}}
	for _, relativeFileName := range files {
		if fileError := merger.mergeFile(executionContext, inputs, mergedRoot, relativeFileName, state); fileError != nil {
			return nil, fmt.Errorf(mergeFileErrorTemplateConstant, relativeFileName, fileError)
		}
	}

	merger.logger.Info(mergeSummaryMessageConstant,
		zap.Int(logFieldExaminedConstant, len(files)),
		zap.Int(logFieldMergedConstant, len(state.merged)),
		zap.Int(logFieldFailedConstant, len(state.failed)),
		zap.String(logFieldMergedRootConstant, mergedRoot),
	)

	return &Result{
		MergedCodebase: codebase.New(mergedRoot, inputs.Generated.ProjectSpace(), codebase.Options{
			AdditionalFilesPattern: inputs.Generated.AdditionalFilesPattern(),
		}),
		MergedFiles:  state.merged,
		FailedMerges: state.failed,
	}, nil
}

type mergeState struct {
	merged    []string
	failed    []string
	failedSet map[string]struct{}
}

func (state *mergeState) fail(relativeFileName string) {
	if _, seen := state.failedSet[relativeFileName]; seen {
		return
	}
	state.failedSet[relativeFileName] = struct{}{}
	state.failed = append(state.failed, relativeFileName)
}

func (merger *Merger) mergeFile(executionContext context.Context, inputs Inputs, mergedRoot string, relativeFileName string, state *mergeState) error {
	generatedPath := inputs.Generated.FilePath(relativeFileName)
	publicPath := inputs.Public.FilePath(relativeFileName)
	mergedPath := filepath.Join(mergedRoot, filepath.FromSlash(relativeFileName))

	difference, compareError := codebase.AreFilesDifferent(generatedPath, publicPath, relativeFileName)
	if compareError != nil {
		return compareError
	}
	if difference == nil {
		return codebase.CopyFile(publicPath, mergedPath)
	}
	state.merged = append(state.merged, relativeFileName)

	previous, previousError := describeInput(inputs.Previous.FilePath(relativeFileName))
	if previousError != nil {
		return previousError
	}
	public, publicError := describeInput(publicPath)
	if publicError != nil {
		return publicError
	}
	generated, generatedError := describeInput(generatedPath)
	if generatedError != nil {
		return generatedError
	}

	if !public.exists && !generated.exists {
		return fmt.Errorf(neitherSideExistsTemplateConstant, publicPath, generatedPath)
	}

	if previous.exists && (!public.exists || !generated.exists) {
		survivor := public
		if !public.exists {
			survivor = generated
		}
		survivorDifference, survivorError := codebase.AreFilesDifferent(survivor.path, previous.path, relativeFileName)
		if survivorError != nil {
			return survivorError
		}
		if survivorDifference == nil {
			return nil
		}
		merger.logger.Warn(deleteEditConflictMessageConstant, zap.String(logFieldFileConstant, relativeFileName))
		state.fail(relativeFileName)
	}

	arguments := []string{printMergedFlagConstant, public.toolPath(), previous.toolPath(), generated.toolPath()}
	result, mergeError := merger.executor.ExecuteMerge(executionContext, execshell.CommandDetails{Arguments: arguments})
	exitCode := 0
	if mergeError != nil {
		var failedError execshell.CommandFailedError
		if !errors.As(mergeError, &failedError) {
			return mergeError
		}
		result = failedError.Result
		exitCode = failedError.Result.ExitCode
	}

	if mkdirError := os.MkdirAll(filepath.Dir(mergedPath), mergedDirectoryModeConstant); mkdirError != nil {
		return fmt.Errorf(writeMergedFileTemplateConstant, mergedPath, mkdirError)
	}
	if writeError := os.WriteFile(mergedPath, []byte(result.StandardOutput), mergedFileModeConstant); writeError != nil {
		return fmt.Errorf(writeMergedFileTemplateConstant, mergedPath, writeError)
	}
	if executableError := codebase.SetExecutable(mergedPath, mergedExecutableBit(previous, public, generated)); executableError != nil {
		return executableError
	}

	if exitCode != 0 {
		state.fail(relativeFileName)
		fields := []zap.Field{
			zap.String(logFieldFileConstant, relativeFileName),
			zap.Strings(logFieldArgumentsConstant, arguments),
			zap.Int(logFieldExitCodeConstant, exitCode),
		}
		switch exitCode {
		case mergeExitConflictsConstant:
			merger.logger.Error(failedMergeMessageConstant, fields...)
		case mergeExitTroubleConstant:
			merger.logger.Error(mergeTroubleMessageConstant, fields...)
		default:
			merger.logger.Error(unexpectedExitMessageConstant, fields...)
		}
	}
	return nil
}

type mergeInput struct {
	path       string
	exists     bool
	executable bool
}

// toolPath returns the path handed to the merge tool; a missing file reads as empty.
func (input mergeInput) toolPath() string {
	if !input.exists {
		return os.DevNull
	}
	return input.path
}

func describeInput(path string) (mergeInput, error) {
	exists, existsError := codebase.FileExists(path)
	if existsError != nil || !exists {
		return mergeInput{path: path}, existsError
	}
	executable, executableError := codebase.IsExecutable(path)
	if executableError != nil {
		return mergeInput{}, executableError
	}
	return mergeInput{path: path, exists: true, executable: executable}, nil
}

// mergedExecutableBit keeps an agreed bit, otherwise the bit of the side that changed it.
func mergedExecutableBit(previous mergeInput, public mergeInput, generated mergeInput) bool {
	if public.executable == generated.executable {
		return public.executable
	}
	return !previous.executable
}

func orderedUnion(first []string, second []string) []string {
	seen := make(map[string]struct{}, len(first)+len(second))
	union := make([]string, 0, len(first)+len(second))
	for _, list := range [][]string{first, second} {
		for _, relativeFileName := range list {
			if _, duplicate := seen[relativeFileName]; duplicate {
				continue
			}
			seen[relativeFileName] = struct{}{}
			union = append(union, relativeFileName)
		}
	}
	return union
}
