package manage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/execshell"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/project"
	"github.com/temirov/codesync/internal/report"
	"github.com/temirov/codesync/internal/ui"
	"github.com/temirov/codesync/internal/utils"
	pathutils "github.com/temirov/codesync/internal/utils/path"
)

const (
	manageCommandUseConstant                   = "manage"
	manageCommandShortDescriptionConstant      = "Reconcile both repositories and migrate pending revisions"
	manageCommandLongDescriptionConstant       = "manage finds the latest equivalence between the internal and public repositories, migrates every revision submitted since, and prints a recap. It exits 0 when nothing needed migrating, 1 when a change was produced, and 2 when a human must intervene."
	diffCommandUseConstant                     = "diff"
	diffCommandShortDescriptionConstant        = "Compare the translated internal codebase with the public codebase"
	pushCommandUseConstant                     = "push"
	pushCommandShortDescriptionConstant        = "Push one codebase into the other repository outside of a migration"
	noteEquivalenceCommandUseConstant          = "note-equivalence"
	noteEquivalenceCommandShortConstant        = "Record that two revisions hold equivalent codebases"
	lockStatusCommandUseConstant               = "lock-status"
	lockStatusCommandShortDescriptionConstant  = "Show the last process that ran against the project ledger"
	unexpectedArgumentsTemplateConstant        = "%s does not accept positional arguments"
	missingProjectConfigurationMessageConstant = "no project configuration given; pass --project-config or set sync.project_config"
	projectLoadErrorTemplateConstant           = "unable to load project configuration: %w"
	environmentErrorTemplateConstant           = "unable to prepare project environment: %w"
	manageErrorTemplateConstant                = "manage failed: %w"
	diffErrorTemplateConstant                  = "diff failed: %w"
	pushCommandErrorTemplateConstant           = "push failed: %w"
	noteEquivalenceErrorTemplateConstant       = "note-equivalence failed: %w"
	lockStatusErrorTemplateConstant            = "lock-status failed: %w"
	returnCodeMessageTemplateConstant          = "run finished with return code %d"
	environmentCloseFailedMessageConstant      = "unable to close project environment"
	flagProjectConfigurationNameConstant       = "project-config"
	flagProjectConfigurationUsageConstant      = "Path to the project configuration file (YAML)"
	flagLedgerNameConstant                     = "ledger"
	flagLedgerUsageConstant                    = "Override the ledger location (SQLite path, sqlite:// or http(s):// URL)"
	flagInternalRevisionNameConstant           = "internal-revision"
	flagInternalRevisionUsageConstant          = "Internal revision to use instead of the branch head"
	flagPublicRevisionNameConstant             = "public-revision"
	flagPublicRevisionUsageConstant            = "Public revision to use instead of the branch head"
	flagAllowConcurrentNameConstant            = "allow-concurrent"
	flagAllowConcurrentUsageConstant           = "Run without taking the project lock"
	flagFullNameConstant                       = "full"
	flagFullUsageConstant                      = "Print a unified diff for every differing file"
	flagDestinationNameConstant                = "destination"
	flagDestinationUsageConstant               = "Repository to push into (internal or public)"
	flagSourceRevisionNameConstant             = "source-revision"
	flagSourceRevisionUsageConstant            = "Revision of the other repository to push. Defaults to its head"
	flagCodebaseNameConstant                   = "codebase"
	flagCodebaseUsageConstant                  = "Directory to push as-is instead of a source revision"
	flagColorNameConstant                      = "color"
	flagColorUsageConstant                     = "Colorize the run recap"
)

// ErrMissingProjectConfiguration indicates a command run without a project configuration path.
var ErrMissingProjectConfiguration = errors.New(missingProjectConfigurationMessageConstant)

// ReturnCodeError carries a non-zero manage return code to the process entrypoint.
type ReturnCodeError struct {
	ReturnCode int
	Cause      error
}

func (returnCodeError ReturnCodeError) Error() string {
	if returnCodeError.Cause != nil {
		return returnCodeError.Cause.Error()
	}
	return fmt.Sprintf(returnCodeMessageTemplateConstant, returnCodeError.ReturnCode)
}

// Unwrap exposes the failure behind the return code.
func (returnCodeError ReturnCodeError) Unwrap() error {
	return returnCodeError.Cause
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current synchronization configuration.
type ConfigurationProvider func() CommandConfiguration

// EnvironmentFactory builds the Environment of a loaded project.
type EnvironmentFactory func(executionContext context.Context, options EnvironmentOptions) (*Environment, error)

// CommandBuilder assembles the synchronization commands.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider func() bool
	Executor                     *execshell.ShellExecutor
	EnvironmentFactory           EnvironmentFactory
	HomeExpander                 *pathutils.HomeExpander
	Clock                        func() time.Time
}

// Build constructs the manage, diff, push, note-equivalence, and lock-status commands.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	manageCommand := &cobra.Command{
		Use:   manageCommandUseConstant,
		Short: manageCommandShortDescriptionConstant,
		Long:  manageCommandLongDescriptionConstant,
		RunE:  builder.runManage,
	}
	manageCommand.Flags().String(flagInternalRevisionNameConstant, "", flagInternalRevisionUsageConstant)
	manageCommand.Flags().Bool(flagAllowConcurrentNameConstant, false, flagAllowConcurrentUsageConstant)
	manageCommand.Flags().Bool(flagColorNameConstant, false, flagColorUsageConstant)

	diffCommand := &cobra.Command{
		Use:   diffCommandUseConstant,
		Short: diffCommandShortDescriptionConstant,
		RunE:  builder.runDiff,
	}
	diffCommand.Flags().String(flagInternalRevisionNameConstant, "", flagInternalRevisionUsageConstant)
	diffCommand.Flags().String(flagPublicRevisionNameConstant, "", flagPublicRevisionUsageConstant)
	diffCommand.Flags().Bool(flagFullNameConstant, false, flagFullUsageConstant)

	pushCommand := &cobra.Command{
		Use:   pushCommandUseConstant,
		Short: pushCommandShortDescriptionConstant,
		RunE:  builder.runPush,
	}
	pushCommand.Flags().String(flagDestinationNameConstant, string(model.RepositorySidePublic), flagDestinationUsageConstant)
	pushCommand.Flags().String(flagSourceRevisionNameConstant, "", flagSourceRevisionUsageConstant)
	pushCommand.Flags().String(flagCodebaseNameConstant, "", flagCodebaseUsageConstant)
	pushCommand.Flags().Bool(flagColorNameConstant, false, flagColorUsageConstant)

	noteEquivalenceCommand := &cobra.Command{
		Use:   noteEquivalenceCommandUseConstant,
		Short: noteEquivalenceCommandShortConstant,
		RunE:  builder.runNoteEquivalence,
	}
	noteEquivalenceCommand.Flags().String(flagInternalRevisionNameConstant, "", flagInternalRevisionUsageConstant)
	noteEquivalenceCommand.Flags().String(flagPublicRevisionNameConstant, "", flagPublicRevisionUsageConstant)

	lockStatusCommand := &cobra.Command{
		Use:   lockStatusCommandUseConstant,
		Short: lockStatusCommandShortDescriptionConstant,
		RunE:  builder.runLockStatus,
	}

	commands := []*cobra.Command{manageCommand, diffCommand, pushCommand, noteEquivalenceCommand, lockStatusCommand}
	for _, command := range commands {
		command.Flags().String(flagProjectConfigurationNameConstant, "", flagProjectConfigurationUsageConstant)
		command.Flags().String(flagLedgerNameConstant, "", flagLedgerUsageConstant)
	}
	return commands, nil
}

func (builder *CommandBuilder) runManage(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
	}
	service, closeService, serviceError := builder.openService(command)
	if serviceError != nil {
		return serviceError
	}
	defer closeService()

	internalRevision, _ := command.Flags().GetString(flagInternalRevisionNameConstant)
	allowConcurrent, _ := command.Flags().GetBool(flagAllowConcurrentNameConstant)
	returnCode, manageError := service.ManageCodebases(command.Context(), ManageOptions{
		InternalRevision: strings.TrimSpace(internalRevision),
		AllowConcurrent:  allowConcurrent,
	})
	if manageError != nil {
		return ReturnCodeError{ReturnCode: max(returnCode, report.ReturnCodeChangeProduced), Cause: fmt.Errorf(manageErrorTemplateConstant, manageError)}
	}
	if returnCode != report.ReturnCodeNothingToMigrate {
		return ReturnCodeError{ReturnCode: returnCode}
	}
	return nil
}

func (builder *CommandBuilder) runDiff(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
	}
	service, closeService, serviceError := builder.openService(command)
	if serviceError != nil {
		return serviceError
	}
	defer closeService()

	internalRevision, _ := command.Flags().GetString(flagInternalRevisionNameConstant)
	publicRevision, _ := command.Flags().GetString(flagPublicRevisionNameConstant)
	full, _ := command.Flags().GetBool(flagFullNameConstant)
	if _, diffError := service.DiffCodebases(command.Context(), DiffOptions{
		InternalRevision: strings.TrimSpace(internalRevision),
		PublicRevision:   strings.TrimSpace(publicRevision),
		Full:             full,
	}); diffError != nil {
		return fmt.Errorf(diffErrorTemplateConstant, diffError)
	}
	return nil
}

func (builder *CommandBuilder) runPush(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
	}
	service, closeService, serviceError := builder.openService(command)
	if serviceError != nil {
		return serviceError
	}
	defer closeService()

	destination, _ := command.Flags().GetString(flagDestinationNameConstant)
	sourceRevision, _ := command.Flags().GetString(flagSourceRevisionNameConstant)
	codebaseDirectory, _ := command.Flags().GetString(flagCodebaseNameConstant)
	if _, pushError := service.PushCodebase(command.Context(), PushOptions{
		Destination:       model.RepositorySide(strings.ToLower(strings.TrimSpace(destination))),
		SourceRevision:    strings.TrimSpace(sourceRevision),
		CodebaseDirectory: strings.TrimSpace(codebaseDirectory),
	}); pushError != nil {
		return fmt.Errorf(pushCommandErrorTemplateConstant, pushError)
	}
	return nil
}

func (builder *CommandBuilder) runNoteEquivalence(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
	}
	service, closeService, serviceError := builder.openService(command)
	if serviceError != nil {
		return serviceError
	}
	defer closeService()

	internalRevision, _ := command.Flags().GetString(flagInternalRevisionNameConstant)
	publicRevision, _ := command.Flags().GetString(flagPublicRevisionNameConstant)
	if noteError := service.NoteEquivalence(command.Context(), NoteEquivalenceOptions{
		InternalRevision: internalRevision,
		PublicRevision:   publicRevision,
	}); noteError != nil {
		return fmt.Errorf(noteEquivalenceErrorTemplateConstant, noteError)
	}
	return nil
}

func (builder *CommandBuilder) runLockStatus(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
	}
	service, closeService, serviceError := builder.openService(command)
	if serviceError != nil {
		return serviceError
	}
	defer closeService()

	if statusError := service.LockStatus(command.Context()); statusError != nil {
		return fmt.Errorf(lockStatusErrorTemplateConstant, statusError)
	}
	return nil
}

// openService loads the project named by the command and builds its Environment and Service.
// The returned function closes the environment.
func (builder *CommandBuilder) openService(command *cobra.Command) (*Service, func(), error) {
	configuration := builder.resolveConfiguration()
	logger := builder.resolveLogger()
	expander := builder.resolveHomeExpander()

	projectConfigurationPath, pathError := builder.resolveProjectConfigurationPath(command, configuration, expander)
	if pathError != nil {
		return nil, nil, pathError
	}
	loadedProject, loadError := project.Load(projectConfigurationPath, expander)
	if loadError != nil {
		return nil, nil, fmt.Errorf(projectLoadErrorTemplateConstant, loadError)
	}

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return nil, nil, executorError
	}

	ledgerOverride, _ := command.Flags().GetString(flagLedgerNameConstant)
	if len(strings.TrimSpace(ledgerOverride)) == 0 {
		ledgerOverride = configuration.LedgerURL
	}
	environment, environmentError := builder.resolveEnvironmentFactory()(command.Context(), EnvironmentOptions{
		Project:       loadedProject,
		LedgerURL:     expander.Expand(strings.TrimSpace(ledgerOverride)),
		TemporaryRoot: expander.Expand(configuration.TemporaryDirectory),
		InitialWindow: configuration.InitialWindow,
		MaxWindow:     configuration.MaxWindow,
		Executor:      executor,
		Logger:        logger,
	})
	if environmentError != nil {
		return nil, nil, fmt.Errorf(environmentErrorTemplateConstant, environmentError)
	}
	closeEnvironment := func() {
		if closeError := environment.Close(); closeError != nil {
			logger.Warn(environmentCloseFailedMessageConstant, zap.Error(closeError))
		}
	}

	colorEnabled := configuration.Color
	if colorFlag := command.Flags().Lookup(flagColorNameConstant); colorFlag != nil && colorFlag.Changed {
		colorEnabled, _ = command.Flags().GetBool(flagColorNameConstant)
	}
	service, serviceError := NewService(ServiceOptions{
		Environment:       environment,
		Output:            utils.NewFlushingWriter(command.OutOrStdout()),
		Color:             colorEnabled,
		KeepaliveInterval: configuration.KeepaliveInterval,
		Tasks:             ui.NewTaskReporter(logger),
		Clock:             builder.Clock,
		Logger:            logger,
	})
	if serviceError != nil {
		closeEnvironment()
		return nil, nil, serviceError
	}
	return service, closeEnvironment, nil
}

// resolveProjectConfigurationPath prefers the flag. A path taken from the application configuration is
// resolved against the directory of the configuration file that named it.
func (builder *CommandBuilder) resolveProjectConfigurationPath(command *cobra.Command, configuration CommandConfiguration, expander *pathutils.HomeExpander) (string, error) {
	flagValue, _ := command.Flags().GetString(flagProjectConfigurationNameConstant)
	resolvedPath := expander.Expand(strings.TrimSpace(flagValue))
	if len(resolvedPath) == 0 && len(configuration.ProjectConfiguration) > 0 {
		baseDirectory := ""
		if configurationFilePath, available := utils.NewCommandContextAccessor().ConfigurationFilePath(command.Context()); available {
			baseDirectory = filepath.Dir(configurationFilePath)
		}
		resolvedPath = expander.Resolve(baseDirectory, configuration.ProjectConfiguration)
	}
	if len(resolvedPath) == 0 {
		return "", ErrMissingProjectConfiguration
	}
	return resolvedPath, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().sanitize()
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (*execshell.ShellExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	shellExecutor, creationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if creationError != nil {
		return nil, creationError
	}
	if builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider() {
		shellExecutor = shellExecutor.WithObserver(ui.NewConsoleCommandEventLogger(logger))
	}
	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveEnvironmentFactory() EnvironmentFactory {
	if builder.EnvironmentFactory != nil {
		return builder.EnvironmentFactory
	}
	return NewEnvironment
}

func (builder *CommandBuilder) resolveHomeExpander() *pathutils.HomeExpander {
	if builder.HomeExpander != nil {
		return builder.HomeExpander
	}
	return pathutils.NewHomeExpander()
}
