package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

const (
	summaryHeaderConstant             = "|||| RUN COMPLETE. RECAP:"
	actionItemsHeaderConstant         = "|||| ACTION ITEMS"
	stepBeginningTemplateConstant     = "==== BEGINNING: %s"
	stepNumberedTemplateConstant      = "==== %d) %s"
	stepCommandTemplateConstant       = "[ %s ]"
	stepResultTemplateConstant        = "RESULTS: %s"
	todoTemplateConstant              = "*) %s"
	commandArgumentTemplateConstant   = "--%s=%s"
	commandArgumentSeparatorConstant  = " "
	lineSeparatorConstant             = "\n"
	stepAddedMessageConstant          = "report step added"
	todoAddedMessageConstant          = "report action item added"
	logFieldStepNameConstant          = "step"
	logFieldStepCommandConstant       = "command"
	logFieldTodoConstant              = "action_item"
	writeSummaryErrorTemplateConstant = "unable to write run summary: %w"
)

// Process exit codes reported by a run.
const (
	ReturnCodeNothingToMigrate     = 0
	ReturnCodeChangeProduced       = 1
	ReturnCodeInterventionRequired = 2
)

// Step records one unit of work performed during a run.
type Step struct {
	Name    string
	Command string
	mutex   sync.Mutex
	result  string
}

// SetResult records the outcome once the step finishes.
func (step *Step) SetResult(result string) {
	if step == nil {
		return
	}
	step.mutex.Lock()
	defer step.mutex.Unlock()
	step.result = result
}

// Result returns the recorded outcome.
func (step *Step) Result() string {
	if step == nil {
		return ""
	}
	step.mutex.Lock()
	defer step.mutex.Unlock()
	return step.result
}

// Output renders the step; a non-positive number renders it as just begun.
func (step *Step) Output(stepNumber int) string {
	lines := make([]string, 0, 4)
	if stepNumber <= 0 {
		lines = append(lines, fmt.Sprintf(stepBeginningTemplateConstant, step.Name))
	} else {
		lines = append(lines, fmt.Sprintf(stepNumberedTemplateConstant, stepNumber, step.Name))
	}
	if len(step.Command) > 0 {
		lines = append(lines, fmt.Sprintf(stepCommandTemplateConstant, step.Command))
	}
	if result := step.Result(); len(result) > 0 {
		lines = append(lines, fmt.Sprintf(stepResultTemplateConstant, result))
	}
	lines = append(lines, "")
	return strings.Join(lines, lineSeparatorConstant)
}

// Report collects steps, action items, and the run return code. It is safe for concurrent use.
type Report struct {
	logger     *zap.Logger
	mutex      sync.Mutex
	steps      []*Step
	todos      []string
	returnCode int
}

// New constructs an empty report.
func New(logger *zap.Logger) *Report {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Report{logger: logger}
}

// AddStep records a step. Command arguments are rendered as sorted --key=value flags.
func (runReport *Report) AddStep(name string, command string, commandArguments map[string]string) *Step {
	step := &Step{Name: name, Command: formatCommand(command, commandArguments)}

	runReport.mutex.Lock()
	runReport.steps = append(runReport.steps, step)
	runReport.mutex.Unlock()

	runReport.logger.Info(stepAddedMessageConstant, zap.String(logFieldStepNameConstant, name), zap.String(logFieldStepCommandConstant, step.Command))
	return step
}

// AddTodo records an action item for the user.
func (runReport *Report) AddTodo(text string) {
	runReport.mutex.Lock()
	runReport.todos = append(runReport.todos, text)
	runReport.mutex.Unlock()

	runReport.logger.Info(todoAddedMessageConstant, zap.String(logFieldTodoConstant, text))
}

// Todos returns the recorded action items in order.
func (runReport *Report) Todos() []string {
	runReport.mutex.Lock()
	defer runReport.mutex.Unlock()
	return append([]string{}, runReport.todos...)
}

// Steps returns the recorded steps in order.
func (runReport *Report) Steps() []*Step {
	runReport.mutex.Lock()
	defer runReport.mutex.Unlock()
	return append([]*Step{}, runReport.steps...)
}

// ReturnCode returns the exit status accumulated so far.
func (runReport *Report) ReturnCode() int {
	runReport.mutex.Lock()
	defer runReport.mutex.Unlock()
	return runReport.returnCode
}

// SetReturnCode overwrites the exit status.
func (runReport *Report) SetReturnCode(returnCode int) {
	runReport.mutex.Lock()
	defer runReport.mutex.Unlock()
	runReport.returnCode = returnCode
}

// RaiseReturnCode keeps the most severe exit status seen.
func (runReport *Report) RaiseReturnCode(returnCode int) {
	runReport.mutex.Lock()
	defer runReport.mutex.Unlock()
	if returnCode > runReport.returnCode {
		runReport.returnCode = returnCode
	}
}

// SummaryOptions controls summary rendering.
type SummaryOptions struct {
	Color bool
}

// PrintSummary writes the recap of all steps followed by the numbered action items.
func (runReport *Report) PrintSummary(writer io.Writer, options SummaryOptions) error {
	headingColor := color.New(color.Bold, color.FgCyan)
	actionColor := color.New(color.Bold, color.FgYellow)
	if options.Color {
		headingColor.EnableColor()
		actionColor.EnableColor()
	} else {
		headingColor.DisableColor()
		actionColor.DisableColor()
	}

	var builder strings.Builder
	builder.WriteString(lineSeparatorConstant)
	builder.WriteString(headingColor.Sprint(summaryHeaderConstant))
	builder.WriteString(lineSeparatorConstant)
	for stepIndex, step := range runReport.Steps() {
		builder.WriteString(step.Output(stepIndex + 1))
		builder.WriteString(lineSeparatorConstant)
	}

	todos := runReport.Todos()
	if len(todos) > 0 {
		builder.WriteString(actionColor.Sprint(actionItemsHeaderConstant))
		builder.WriteString(lineSeparatorConstant)
		for _, todo := range todos {
			builder.WriteString(fmt.Sprintf(todoTemplateConstant, todo))
			builder.WriteString(lineSeparatorConstant)
		}
	}

	if _, writeError := io.WriteString(writer, builder.String()); writeError != nil {
		return fmt.Errorf(writeSummaryErrorTemplateConstant, writeError)
	}
	return nil
}

func formatCommand(command string, commandArguments map[string]string) string {
	if len(commandArguments) == 0 {
		return command
	}
	argumentKeys := make([]string, 0, len(commandArguments))
	for argumentKey := range commandArguments {
		argumentKeys = append(argumentKeys, argumentKey)
	}
	sort.Strings(argumentKeys)

	parts := []string{command}
	for _, argumentKey := range argumentKeys {
		parts = append(parts, fmt.Sprintf(commandArgumentTemplateConstant, argumentKey, commandArguments[argumentKey]))
	}
	return strings.Join(parts, commandArgumentSeparatorConstant)
}
