// Package testsupport provides an in-memory ledger for tests of packages that record migrations.
package testsupport

import (
	"context"
	"strconv"
	"sync"

	"github.com/temirov/codesync/internal/ledger"
	"github.com/temirov/codesync/internal/model"
)

const (
	memoryDashboardURLConstant = "memory://ledger"
)

// FinishedMigration records one FinishMigration call.
type FinishedMigration struct {
	MigrationID string
	SubmittedAs model.Revision
}

// DiffUpdate records one UpdateMigrationDiff call.
type DiffUpdate struct {
	MigrationID string
	Diff        string
	Link        string
}

// NotedEquivalence records one NoteEquivalence call.
type NotedEquivalence struct {
	Correspondence model.Correspondence
	Status         model.VerificationStatus
}

// MemoryLedger keeps ledger records in memory and remembers every mutating call.
type MemoryLedger struct {
	mutex sync.Mutex

	Equivalences       []model.Equivalence
	Migrations         []*model.Migration
	Revisions          []model.Revision
	NotedEquivalences  []NotedEquivalence
	StartedMigrations  []ledger.StartMigrationRequest
	FinishedMigrations []FinishedMigration
	CanceledMigrations []string
	DiffUpdates        []DiffUpdate
	NotedRevisionCalls int
	ProcessCalls       []string
	LastProcess        *ledger.Process

	StartProcessError   error
	StartMigrationError error
}

// NewMemoryLedger builds an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// AddMigration seeds a migration and returns it.
func (memory *MemoryLedger) AddMigration(migration model.Migration) *model.Migration {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	if len(migration.ID) == 0 {
		migration.ID = strconv.Itoa(len(memory.Migrations) + 1)
	}
	stored := migration
	memory.Migrations = append(memory.Migrations, &stored)
	return &stored
}

// NoteEquivalence stores or updates the equivalence.
func (memory *MemoryLedger) NoteEquivalence(executionContext context.Context, correspondence model.Correspondence, status model.VerificationStatus) error {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.NotedEquivalences = append(memory.NotedEquivalences, NotedEquivalence{Correspondence: correspondence, Status: status})
	for index := range memory.Equivalences {
		if memory.Equivalences[index].Correspondence == correspondence {
			memory.Equivalences[index].VerificationStatus = status
			return nil
		}
	}
	memory.Equivalences = append(memory.Equivalences, model.Equivalence{Correspondence: correspondence, VerificationStatus: status})
	return nil
}

// FindEquivalences returns the non-invalid equivalences of revision on side.
func (memory *MemoryLedger) FindEquivalences(executionContext context.Context, revision model.Revision, side model.RepositorySide) ([]model.Equivalence, error) {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	matches := []model.Equivalence{}
	for _, equivalence := range memory.Equivalences {
		if equivalence.VerificationStatus == model.VerificationInvalid {
			continue
		}
		if equivalence.RevisionFor(side) == revision.ID {
			matches = append(matches, equivalence)
		}
	}
	return matches, nil
}

// FindUnverifiedEquivalences returns the unverified equivalences.
func (memory *MemoryLedger) FindUnverifiedEquivalences(executionContext context.Context) ([]model.Equivalence, error) {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	matches := []model.Equivalence{}
	for _, equivalence := range memory.Equivalences {
		if equivalence.VerificationStatus == model.VerificationUnverified {
			matches = append(matches, equivalence)
		}
	}
	return matches, nil
}

// StartMigration records the request and creates a Pending or Approved migration.
func (memory *MemoryLedger) StartMigration(executionContext context.Context, request ledger.StartMigrationRequest) (string, error) {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	if memory.StartMigrationError != nil {
		return "", memory.StartMigrationError
	}
	memory.StartedMigrations = append(memory.StartedMigrations, request)
	status := model.MigrationStatusPending
	if request.PreApproved {
		status = model.MigrationStatusApproved
	}
	migration := &model.Migration{
		ID:           strconv.Itoa(len(memory.Migrations) + 1),
		Direction:    request.Direction,
		Status:       status,
		UpToRevision: request.UpToRevision,
		Changelog:    request.Changelog,
		Diff:         request.Diff,
		Link:         request.Link,
		Revisions:    request.Revisions,
	}
	memory.Migrations = append(memory.Migrations, migration)
	return migration.ID, nil
}

// FinishMigration marks a known migration Submitted.
func (memory *MemoryLedger) FinishMigration(executionContext context.Context, migrationID string, submittedAs model.Revision) error {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.FinishedMigrations = append(memory.FinishedMigrations, FinishedMigration{MigrationID: migrationID, SubmittedAs: submittedAs})
	if migration := memory.lookup(migrationID); migration != nil {
		migration.Status = model.MigrationStatusSubmitted
		submitted := submittedAs
		migration.SubmittedAs = &submitted
	}
	return nil
}

// CancelMigration marks a known migration Canceled.
func (memory *MemoryLedger) CancelMigration(executionContext context.Context, migrationID string) error {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.CanceledMigrations = append(memory.CanceledMigrations, migrationID)
	if migration := memory.lookup(migrationID); migration != nil {
		migration.Status = model.MigrationStatusCanceled
	}
	return nil
}

// GetMigration returns a copy of the migration, or nil.
func (memory *MemoryLedger) GetMigration(executionContext context.Context, migrationID string) (*model.Migration, error) {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	return copyMigration(memory.lookup(migrationID)), nil
}

// FindMigration returns the latest migration up to upToRevision.
func (memory *MemoryLedger) FindMigration(executionContext context.Context, upToRevision model.Revision) (*model.Migration, error) {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	for index := len(memory.Migrations) - 1; index >= 0; index-- {
		if memory.Migrations[index].UpToRevision.ID == upToRevision.ID {
			return copyMigration(memory.Migrations[index]), nil
		}
	}
	return nil, nil
}

// FindMigrationForRevision returns the latest migration whose up-to revision is revision.
func (memory *MemoryLedger) FindMigrationForRevision(executionContext context.Context, revision model.Revision) (*model.Migration, error) {
	return memory.FindMigration(executionContext, revision)
}

// UpdateMigrationDiff records the update.
func (memory *MemoryLedger) UpdateMigrationDiff(executionContext context.Context, migrationID string, diff string, link string) error {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.DiffUpdates = append(memory.DiffUpdates, DiffUpdate{MigrationID: migrationID, Diff: diff, Link: link})
	if migration := memory.lookup(migrationID); migration != nil {
		migration.Diff = diff
		migration.Link = link
	}
	return nil
}

// NoteRevisions appends revisions not yet known.
func (memory *MemoryLedger) NoteRevisions(executionContext context.Context, revisions []model.Revision) error {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.NotedRevisionCalls++
	for _, revision := range revisions {
		known := false
		for _, existing := range memory.Revisions {
			if existing.ID == revision.ID && existing.RepositoryName == revision.RepositoryName {
				known = true
				break
			}
		}
		if !known {
			memory.Revisions = append(memory.Revisions, revision)
		}
	}
	return nil
}

// GetRevisions returns up to limit noted revisions of a repository, latest noted first.
func (memory *MemoryLedger) GetRevisions(executionContext context.Context, repositoryName string, limit int) ([]model.Revision, error) {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	revisions := []model.Revision{}
	for index := len(memory.Revisions) - 1; index >= 0 && len(revisions) < limit; index-- {
		if memory.Revisions[index].RepositoryName == repositoryName {
			revisions = append(revisions, memory.Revisions[index])
		}
	}
	return revisions, nil
}

// StartProcess records the call and fails with StartProcessError when set.
func (memory *MemoryLedger) StartProcess(executionContext context.Context, identity ledger.ProcessIdentity, requireLock bool) error {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.ProcessCalls = append(memory.ProcessCalls, "start")
	if memory.StartProcessError != nil {
		return memory.StartProcessError
	}
	memory.LastProcess = &ledger.Process{ProcessID: identity.ProcessID, RunToken: identity.RunToken, Running: true}
	return nil
}

// UpdateProcess records the call.
func (memory *MemoryLedger) UpdateProcess(executionContext context.Context, identity ledger.ProcessIdentity) error {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.ProcessCalls = append(memory.ProcessCalls, "update")
	return nil
}

// EndProcess records the call.
func (memory *MemoryLedger) EndProcess(executionContext context.Context, identity ledger.ProcessIdentity) error {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	memory.ProcessCalls = append(memory.ProcessCalls, "end")
	if memory.LastProcess != nil {
		memory.LastProcess.Running = false
	}
	return nil
}

// GetLastProcess returns the last started process.
func (memory *MemoryLedger) GetLastProcess(executionContext context.Context) (*ledger.Process, error) {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	if memory.LastProcess == nil {
		return nil, nil
	}
	process := *memory.LastProcess
	return &process, nil
}

// ProcessCallLog returns a copy of the process calls in order.
func (memory *MemoryLedger) ProcessCallLog() []string {
	memory.mutex.Lock()
	defer memory.mutex.Unlock()
	return append([]string(nil), memory.ProcessCalls...)
}

// DashboardURL returns a fixed url.
func (memory *MemoryLedger) DashboardURL() string {
	return memoryDashboardURLConstant
}

// Close does nothing.
func (memory *MemoryLedger) Close() error {
	return nil
}

func (memory *MemoryLedger) lookup(migrationID string) *model.Migration {
	for _, migration := range memory.Migrations {
		if migration.ID == migrationID {
			return migration
		}
	}
	return nil
}

func copyMigration(migration *model.Migration) *model.Migration {
	if migration == nil {
		return nil
	}
	duplicate := *migration
	return &duplicate
}
