package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const (
	taskStartedTemplateConstant   = "%s%s..."
	taskCompletedTemplateConstant = "%sDone: %s (%s)"
	taskFailedTemplateConstant    = "%sFailed: %s: %v"
	taskIndentUnitConstant        = "  "
	logFieldTaskDepthConstant     = "task_depth"
)

// Task identifies a running unit of work reported by a TaskReporter.
type Task struct {
	description string
	depth       int
	startedAt   time.Time
}

// TaskReporter logs nested progress for long-running engine steps such as creating codebases and pushing.
type TaskReporter struct {
	logger *zap.Logger
	clock  func() time.Time
	mutex  sync.Mutex
	depth  int
}

// NewTaskReporter constructs a reporter. A nil logger discards output.
func NewTaskReporter(logger *zap.Logger) *TaskReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskReporter{logger: logger, clock: time.Now}
}

// WithClock replaces the time source used for elapsed-time reporting.
func (reporter *TaskReporter) WithClock(clock func() time.Time) *TaskReporter {
	if clock != nil {
		reporter.clock = clock
	}
	return reporter
}

// Begin announces a task and nests subsequent tasks beneath it until Complete or Fail is called.
func (reporter *TaskReporter) Begin(description string) *Task {
	if reporter == nil {
		return &Task{description: description}
	}
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	task := &Task{description: description, depth: reporter.depth, startedAt: reporter.clock()}
	reporter.depth++
	reporter.logger.Info(fmt.Sprintf(taskStartedTemplateConstant, indentFor(task.depth), description), zap.Int(logFieldTaskDepthConstant, task.depth))
	return task
}

// Complete closes task successfully.
func (reporter *TaskReporter) Complete(task *Task) {
	if reporter == nil || task == nil {
		return
	}
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	reporter.closeTask(task)
	elapsed := humanize.RelTime(task.startedAt, reporter.clock(), "", "")
	reporter.logger.Info(fmt.Sprintf(taskCompletedTemplateConstant, indentFor(task.depth), task.description, strings.TrimSpace(elapsed)), zap.Int(logFieldTaskDepthConstant, task.depth))
}

// Fail closes task with failure.
func (reporter *TaskReporter) Fail(task *Task, failure error) {
	if reporter == nil || task == nil {
		return
	}
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	reporter.closeTask(task)
	reporter.logger.Warn(fmt.Sprintf(taskFailedTemplateConstant, indentFor(task.depth), task.description, failure), zap.Int(logFieldTaskDepthConstant, task.depth))
}

func (reporter *TaskReporter) closeTask(task *Task) {
	if reporter.depth > task.depth {
		reporter.depth = task.depth
	}
}

func indentFor(depth int) string {
	if depth <= 0 {
		return ""
	}
	return strings.Repeat(taskIndentUnitConstant, depth)
}
