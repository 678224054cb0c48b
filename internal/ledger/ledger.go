package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/temirov/codesync/internal/model"
)

const (
	projectLockedMessageConstant  = "another process is running against this project"
	httpErrorTemplateConstant     = "%s failed for %s: status %d: %s"
	missingProjectMessageConstant = "ledger project name is required"
	invalidSideTemplateConstant   = "invalid repository side: %s"
	diffMaxLengthConstant         = 100000
	revisionsPerBatchConstant     = 10
	defaultProcessTimeoutConstant = 20 * time.Minute
	dashboardPathTemplateConstant = "%s/project/%s"
	logFieldMigrationConstant     = "migration_id"
	logFieldProcessConstant       = "process_id"
	logFieldMethodConstant        = "method"
	logFieldCountConstant         = "count"
)

// DefaultProcessTimeout is how long a process record holds the lock without a keepalive.
const DefaultProcessTimeout = defaultProcessTimeoutConstant

var (
	// ErrProjectLocked indicates that another run holds the project lock.
	ErrProjectLocked = errors.New(projectLockedMessageConstant)
	// ErrMissingProject indicates a ledger opened without a project name.
	ErrMissingProject = errors.New(missingProjectMessageConstant)
)

// HTTPError reports a ledger request that did not succeed.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Contents   string
}

// Error describes the failed request.
func (httpError HTTPError) Error() string {
	return fmt.Sprintf(httpErrorTemplateConstant, httpError.Method, httpError.URL, httpError.StatusCode, strings.TrimSpace(httpError.Contents))
}

// StartMigrationRequest describes a migration about to be pushed.
type StartMigrationRequest struct {
	Direction    model.MigrationDirection
	UpToRevision model.Revision
	Revisions    []model.Revision
	Changelog    string
	Diff         string
	Link         string
	PreApproved  bool
}

// Process describes one recorded run against a project.
type Process struct {
	ProcessID  string
	RunToken   string
	Running    bool
	StartedAt  time.Time
	LastSeenAt time.Time
	EndedAt    time.Time
}

// IsRunning reports whether the process still holds the lock at now.
func (process Process) IsRunning(now time.Time, timeout time.Duration) bool {
	return process.Running && now.Sub(process.LastSeenAt) <= timeout
}

// Ledger is the durable record of equivalences, migrations, revisions, and run locks.
type Ledger interface {
	NoteEquivalence(executionContext context.Context, correspondence model.Correspondence, status model.VerificationStatus) error
	FindEquivalences(executionContext context.Context, revision model.Revision, side model.RepositorySide) ([]model.Equivalence, error)
	FindUnverifiedEquivalences(executionContext context.Context) ([]model.Equivalence, error)

	StartMigration(executionContext context.Context, request StartMigrationRequest) (string, error)
	// FinishMigration and CancelMigration tolerate a migration id the ledger does not know.
	FinishMigration(executionContext context.Context, migrationID string, submittedAs model.Revision) error
	CancelMigration(executionContext context.Context, migrationID string) error
	// GetMigration returns nil when the migration cannot be fetched.
	GetMigration(executionContext context.Context, migrationID string) (*model.Migration, error)
	FindMigration(executionContext context.Context, upToRevision model.Revision) (*model.Migration, error)
	FindMigrationForRevision(executionContext context.Context, revision model.Revision) (*model.Migration, error)
	UpdateMigrationDiff(executionContext context.Context, migrationID string, diff string, link string) error

	NoteRevisions(executionContext context.Context, revisions []model.Revision) error
	GetRevisions(executionContext context.Context, repositoryName string, limit int) ([]model.Revision, error)

	StartProcess(executionContext context.Context, identity ProcessIdentity, requireLock bool) error
	UpdateProcess(executionContext context.Context, identity ProcessIdentity) error
	EndProcess(executionContext context.Context, identity ProcessIdentity) error
	GetLastProcess(executionContext context.Context) (*Process, error)

	DashboardURL() string
	Close() error
}

func truncateDiff(diff string) string {
	if len(diff) > diffMaxLengthConstant {
		return diff[:diffMaxLengthConstant]
	}
	return diff
}

func revisionBatches(revisions []model.Revision) [][]model.Revision {
	batches := make([][]model.Revision, 0, len(revisions)/revisionsPerBatchConstant+1)
	for start := 0; start < len(revisions); start += revisionsPerBatchConstant {
		end := min(start+revisionsPerBatchConstant, len(revisions))
		batches = append(batches, revisions[start:end])
	}
	return batches
}

func validateSide(side model.RepositorySide) error {
	if side != model.RepositorySideInternal && side != model.RepositorySidePublic {
		return fmt.Errorf(invalidSideTemplateConstant, side)
	}
	return nil
}
