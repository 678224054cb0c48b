package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	flagPrefixConstant                      = "-"
)

const (
	gitCloneSubcommandNameConstant  = "clone"
	gitAddSubcommandNameConstant    = "add"
	gitRemoveSubcommandNameConstant = "rm"
	gitCommitSubcommandNameConstant = "commit"
	gitPushSubcommandNameConstant   = "push"
	gitStatusSubcommandNameConstant = "status"
	gitBranchFlagConstant           = "-b"
	mergeArgumentCountConstant      = 3
)

const (
	gitCloneStartTemplateConstant             = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant           = "Cloned %s into %s"
	gitCloneFailureTemplateConstant           = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant  = "Unable to clone %s: %s"
	gitAddStartTemplateConstant               = "Staging %s in %s"
	gitAddSuccessTemplateConstant             = "Staged %s in %s"
	gitAddFailureTemplateConstant             = "Failed to stage %s in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant    = "Unable to stage %s in %s: %s"
	gitRemoveStartTemplateConstant            = "Removing %s in %s"
	gitRemoveSuccessTemplateConstant          = "Removed %s in %s"
	gitRemoveFailureTemplateConstant          = "Failed to remove %s in %s (exit code %d%s)"
	gitRemoveExecutionFailureTemplateConstant = "Unable to remove %s in %s: %s"
	gitCommitStartTemplateConstant            = "Committing migration in %s"
	gitCommitSuccessTemplateConstant          = "Committed migration in %s"
	gitCommitFailureTemplateConstant          = "Failed to commit migration in %s (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant = "Unable to commit migration in %s: %s"
	gitPushStartTemplateConstant              = "Pushing %s to %s"
	gitPushSuccessTemplateConstant            = "Pushed %s to %s"
	gitPushFailureTemplateConstant            = "Failed to push %s to %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant   = "Unable to push %s to %s: %s"
	gitStatusStartTemplateConstant            = "Inspecting pending changes in %s"
	gitStatusSuccessTemplateConstant          = "Inspected pending changes in %s"
	gitStatusFailureTemplateConstant          = "Failed to inspect pending changes in %s (exit code %d%s)"
	gitStatusExecutionFailureTemplateConstant = "Unable to inspect pending changes in %s: %s"
	mergeStartTemplateConstant                = "Merging %s with %s against %s"
	mergeSuccessTemplateConstant              = "Merged %s cleanly"
	mergeConflictTemplateConstant             = "Merge of %s left conflicts"
	mergeTroubleTemplateConstant              = "Merge of %s found trouble%s"
	mergeUnexpectedFailureTemplateConstant    = "Merge of %s returned status %d%s"
	mergeExecutionFailureTemplateConstant     = "Unable to merge %s: %s"
	mergeConflictExitCodeConstant             = 1
	mergeTroubleExitCodeConstant              = 2
	gitDefaultPushTargetLabelConstant         = "default remote"
	gitDefaultPushSourceLabelConstant         = "current branch"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandMerge:
		return formatter.describeMergeMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subcommand := strings.TrimSpace(command.Details.Arguments[0])
	switch subcommand {
	case gitCloneSubcommandNameConstant:
		return formatter.describeGitCloneMessage(command, result, failure, stage)
	case gitAddSubcommandNameConstant:
		return formatter.describeGitPathMessage(command, result, failure, stage, gitAddStartTemplateConstant, gitAddSuccessTemplateConstant, gitAddFailureTemplateConstant, gitAddExecutionFailureTemplateConstant)
	case gitRemoveSubcommandNameConstant:
		return formatter.describeGitPathMessage(command, result, failure, stage, gitRemoveStartTemplateConstant, gitRemoveSuccessTemplateConstant, gitRemoveFailureTemplateConstant, gitRemoveExecutionFailureTemplateConstant)
	case gitCommitSubcommandNameConstant:
		return formatter.describeGitDirectoryMessage(command, result, failure, stage, gitCommitStartTemplateConstant, gitCommitSuccessTemplateConstant, gitCommitFailureTemplateConstant, gitCommitExecutionFailureTemplateConstant)
	case gitStatusSubcommandNameConstant:
		return formatter.describeGitDirectoryMessage(command, result, failure, stage, gitStatusStartTemplateConstant, gitStatusSuccessTemplateConstant, gitStatusFailureTemplateConstant, gitStatusExecutionFailureTemplateConstant)
	case gitPushSubcommandNameConstant:
		return formatter.describeGitPushMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitCloneMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	positionalArguments := formatter.collectPositionalArguments(command.Details.Arguments[1:], gitBranchFlagConstant)
	repositoryURL := fallbackUnknownValueLabelConstant
	destination := formatter.describeWorkingDirectory(command)
	if len(positionalArguments) > 0 {
		repositoryURL = positionalArguments[0]
	}
	if len(positionalArguments) > 1 {
		destination = positionalArguments[1]
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitCloneStartTemplateConstant, repositoryURL, destination)
	case messageStageSuccess:
		return fmt.Sprintf(gitCloneSuccessTemplateConstant, repositoryURL, destination)
	case messageStageFailure:
		return fmt.Sprintf(gitCloneFailureTemplateConstant, repositoryURL, destination, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, repositoryURL, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitPathMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage, startTemplate string, successTemplate string, failureTemplate string, executionFailureTemplate string) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	positionalArguments := formatter.collectPositionalArguments(command.Details.Arguments[1:])
	targetPath := fallbackUnknownValueLabelConstant
	if len(positionalArguments) > 0 {
		targetPath = positionalArguments[0]
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(startTemplate, targetPath, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(successTemplate, targetPath, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(failureTemplate, targetPath, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(executionFailureTemplate, targetPath, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitDirectoryMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage, startTemplate string, successTemplate string, failureTemplate string, executionFailureTemplate string) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(startTemplate, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(successTemplate, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(failureTemplate, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(executionFailureTemplate, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitPushMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	positionalArguments := formatter.collectPositionalArguments(command.Details.Arguments[1:])
	pushTarget := gitDefaultPushTargetLabelConstant
	pushSource := gitDefaultPushSourceLabelConstant
	if len(positionalArguments) > 0 {
		pushTarget = positionalArguments[0]
	}
	if len(positionalArguments) > 1 {
		pushSource = positionalArguments[1]
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitPushStartTemplateConstant, pushSource, pushTarget)
	case messageStageSuccess:
		return fmt.Sprintf(gitPushSuccessTemplateConstant, pushSource, pushTarget)
	case messageStageFailure:
		return fmt.Sprintf(gitPushFailureTemplateConstant, pushSource, pushTarget, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitPushExecutionFailureTemplateConstant, pushSource, pushTarget, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeMergeMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	positionalArguments := formatter.collectPositionalArguments(command.Details.Arguments)
	if len(positionalArguments) < mergeArgumentCountConstant {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
	firstModified := positionalArguments[0]
	original := positionalArguments[1]
	secondModified := positionalArguments[2]

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(mergeStartTemplateConstant, firstModified, secondModified, original)
	case messageStageSuccess:
		return fmt.Sprintf(mergeSuccessTemplateConstant, firstModified)
	case messageStageFailure:
		switch result.ExitCode {
		case mergeConflictExitCodeConstant:
			return fmt.Sprintf(mergeConflictTemplateConstant, firstModified)
		case mergeTroubleExitCodeConstant:
			return fmt.Sprintf(mergeTroubleTemplateConstant, firstModified, formatter.formatStandardErrorSuffix(result.StandardError))
		default:
			return fmt.Sprintf(mergeUnexpectedFailureTemplateConstant, firstModified, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		}
	case messageStageExecutionFailure:
		return fmt.Sprintf(mergeExecutionFailureTemplateConstant, firstModified, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

// collectPositionalArguments drops flags; flags listed in valueFlags also drop the value that follows them.
func (formatter CommandMessageFormatter) collectPositionalArguments(arguments []string, valueFlags ...string) []string {
	positionalArguments := make([]string, 0, len(arguments))
	skipNext := false
	for _, argument := range arguments {
		if skipNext {
			skipNext = false
			continue
		}
		trimmedArgument := strings.TrimSpace(argument)
		if strings.HasPrefix(trimmedArgument, flagPrefixConstant) {
			for _, valueFlag := range valueFlags {
				if trimmedArgument == valueFlag {
					skipNext = true
				}
			}
			continue
		}
		positionalArguments = append(positionalArguments, trimmedArgument)
	}
	return positionalArguments
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = commandLabel + commandArgumentsJoinSeparatorConstant + strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant)
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}
