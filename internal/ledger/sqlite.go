package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
// 0 - tables created from schema.sql
// 1 - index on migrated revision ids
const currentSchemaVersion = 1

const (
	sqliteDriverNameConstant          = "sqlite3"
	storageTimeLayoutConstant         = "2006-01-02T15:04:05.000000000Z07:00"
	dashboardFileTemplateConstant     = "file://%s#%s"
	missingPathMessageConstant        = "ledger database path is required"
	unknownMigrationTemplateConstant  = "unknown migration %s"
	openDatabaseErrorTemplateConstant = "failed to open ledger database %s: %w"
	pragmaErrorTemplateConstant       = "failed to execute %q: %w"
	schemaErrorTemplateConstant       = "failed to apply ledger schema: %w"
	queryErrorTemplateConstant        = "ledger %s failed: %w"
	processNotRunningTemplateConstant = "process %s no longer running"
	unknownProcessTemplateConstant    = "no process %s for project %s"
	runningProcessTemplateConstant    = "%s at %s, which was last seen at %s"
	unknownMigrationLogMessage        = "ignoring unknown migration"
	migrationRecordedLogMessage       = "migration recorded"

	operationNoteEquivalence     = "note equivalence"
	operationFindEquivalences    = "find equivalences"
	operationStartMigration      = "start migration"
	operationFinishMigration     = "finish migration"
	operationCancelMigration     = "cancel migration"
	operationGetMigration        = "get migration"
	operationUpdateMigrationDiff = "update migration diff"
	operationNoteRevisions       = "note revisions"
	operationGetRevisions        = "get revisions"
	operationStartProcess        = "start process"
	operationUpdateProcess       = "update process"
	operationEndProcess          = "end process"
	operationGetLastProcess      = "get last process"
)

const (
	upsertEquivalenceQuery = `INSERT INTO equivalences (project, internal_revision, public_revision, verification_status, noted_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (project, internal_revision, public_revision) DO UPDATE SET verification_status = excluded.verification_status`
	findInternalEquivalencesQuery = `SELECT internal_revision, public_revision, verification_status FROM equivalences
WHERE project = ? AND internal_revision = ? AND verification_status != ? ORDER BY noted_at`
	findPublicEquivalencesQuery = `SELECT internal_revision, public_revision, verification_status FROM equivalences
WHERE project = ? AND public_revision = ? AND verification_status != ? ORDER BY noted_at`
	findEquivalencesByStatusQuery = `SELECT internal_revision, public_revision, verification_status FROM equivalences
WHERE project = ? AND verification_status = ? ORDER BY noted_at`
	migrationColumns     = `migration_id, direction, status, up_to_revision, up_to_repository, submitted_as, submitted_repository, changelog, diff, link`
	latestMigrationQuery = `SELECT ` + migrationColumns + ` FROM migrations WHERE project = ? AND up_to_revision = ? ORDER BY migration_id DESC LIMIT 1`
	migrationByIDQuery   = `SELECT ` + migrationColumns + ` FROM migrations WHERE project = ? AND migration_id = ?`
	insertMigrationQuery = `INSERT INTO migrations (project, direction, status, up_to_revision, up_to_repository, changelog, diff, link, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	editMigrationQuery          = `UPDATE migrations SET changelog = ?, diff = CASE WHEN ? != '' THEN ? ELSE diff END, link = CASE WHEN ? != '' THEN ? ELSE link END WHERE migration_id = ?`
	insertMigratedRevisionQuery = `INSERT INTO migrated_revisions (migration_id, position, rev_id, repository_name) VALUES (?, ?, ?, ?)`
	migratedRevisionsQuery      = `SELECT m.rev_id, m.repository_name, COALESCE(r.author, ''), COALESCE(r.revision_time, ''), COALESCE(r.changelog, '')
FROM migrated_revisions m LEFT JOIN revisions r ON r.repository_name = m.repository_name AND r.rev_id = m.rev_id
WHERE m.migration_id = ? ORDER BY m.position`
	finishMigrationQuery = `UPDATE migrations SET status = ?, submitted_as = ?, submitted_repository = ? WHERE project = ? AND migration_id = ?`
	cancelMigrationQuery = `UPDATE migrations SET status = ? WHERE project = ? AND migration_id = ?`
	updateDiffQuery      = `UPDATE migrations SET diff = CASE WHEN ? != '' THEN ? ELSE diff END, link = CASE WHEN ? != '' THEN ? ELSE link END WHERE project = ? AND migration_id = ?`
	upsertRevisionQuery  = `INSERT INTO revisions (repository_name, rev_id, author, revision_time, changelog, noted_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (repository_name, rev_id) DO UPDATE SET
    author = CASE WHEN excluded.author != '' THEN excluded.author ELSE revisions.author END,
    revision_time = CASE WHEN excluded.revision_time != '' THEN excluded.revision_time ELSE revisions.revision_time END,
    changelog = CASE WHEN excluded.changelog != '' THEN excluded.changelog ELSE revisions.changelog END`
	recentRevisionsQuery = `SELECT rev_id, repository_name, author, revision_time, changelog FROM revisions
WHERE repository_name = ? ORDER BY revision_time DESC, noted_at DESC LIMIT ?`
	processColumns      = `process_id, run_token, running, start_time, last_seen, end_time`
	lastProcessQuery    = `SELECT ` + processColumns + ` FROM processes WHERE project = ? ORDER BY last_seen DESC LIMIT 1`
	runningProcessQuery = `SELECT ` + processColumns + ` FROM processes WHERE project = ? AND running = 1 ORDER BY last_seen DESC LIMIT 1`
	processByTokenQuery = `SELECT ` + processColumns + ` FROM processes WHERE project = ? AND run_token = ?`
	insertProcessQuery  = `INSERT INTO processes (run_token, project, process_id, running, start_time, last_seen) VALUES (?, ?, ?, 1, ?, ?)`
	touchProcessQuery   = `UPDATE processes SET last_seen = ? WHERE run_token = ?`
	endProcessQuery     = `UPDATE processes SET running = 0, end_time = CASE WHEN running = 1 THEN ? ELSE end_time END WHERE run_token = ?`
)

// ErrMissingPath indicates a SQLite ledger without a database path.
var ErrMissingPath = errors.New(missingPathMessageConstant)

// SQLiteLedgerOptions configures a SQLiteLedger.
type SQLiteLedgerOptions struct {
	Path           string
	Project        string
	ProcessTimeout time.Duration
	Clock          func() time.Time
	Logger         *zap.Logger
}

// SQLiteLedger keeps the ledger in a local SQLite database.
type SQLiteLedger struct {
	database       *sql.DB
	path           string
	project        string
	processTimeout time.Duration
	clock          func() time.Time
	logger         *zap.Logger
}

// NewSQLiteLedger opens or creates the database at options.Path and applies pragmas and migrations.
func NewSQLiteLedger(options SQLiteLedgerOptions) (*SQLiteLedger, error) {
	path := strings.TrimSpace(options.Path)
	if len(path) == 0 {
		return nil, ErrMissingPath
	}
	if len(strings.TrimSpace(options.Project)) == 0 {
		return nil, ErrMissingProject
	}

	database, openError := sql.Open(sqliteDriverNameConstant, path)
	if openError != nil {
		return nil, fmt.Errorf(openDatabaseErrorTemplateConstant, path, openError)
	}
	if pingError := database.Ping(); pingError != nil {
		database.Close()
		return nil, fmt.Errorf(openDatabaseErrorTemplateConstant, path, pingError)
	}

	// SQLite allows one writer.
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	if pragmaError := applyPragmas(database); pragmaError != nil {
		database.Close()
		return nil, pragmaError
	}
	if schemaError := applySchema(database); schemaError != nil {
		database.Close()
		return nil, fmt.Errorf(schemaErrorTemplateConstant, schemaError)
	}

	processTimeout := options.ProcessTimeout
	if processTimeout <= 0 {
		processTimeout = defaultProcessTimeoutConstant
	}
	clock := options.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SQLiteLedger{
		database:       database,
		path:           path,
		project:        options.Project,
		processTimeout: processTimeout,
		clock:          clock,
		logger:         logger,
	}, nil
}

func applyPragmas(database *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, execError := database.Exec(pragma); execError != nil {
			return fmt.Errorf(pragmaErrorTemplateConstant, pragma, execError)
		}
	}
	return nil
}

func applySchema(database *sql.DB) error {
	if _, execError := database.Exec(schemaSQL); execError != nil {
		return execError
	}

	var version int
	if queryError := database.QueryRow("PRAGMA user_version").Scan(&version); queryError != nil {
		return queryError
	}
	if version < 1 {
		if _, execError := database.Exec("CREATE INDEX IF NOT EXISTS migrated_revisions_by_revision ON migrated_revisions (repository_name, rev_id)"); execError != nil {
			return execError
		}
	}
	_, execError := database.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion))
	return execError
}

// DashboardURL points at the database file.
func (ledger *SQLiteLedger) DashboardURL() string {
	return fmt.Sprintf(dashboardFileTemplateConstant, ledger.path, ledger.project)
}

// Close closes the database.
func (ledger *SQLiteLedger) Close() error {
	if ledger.database == nil {
		return nil
	}
	return ledger.database.Close()
}

// NoteEquivalence inserts the correspondence or updates its status.
func (ledger *SQLiteLedger) NoteEquivalence(executionContext context.Context, correspondence model.Correspondence, status model.VerificationStatus) error {
	_, execError := ledger.database.ExecContext(executionContext, upsertEquivalenceQuery,
		ledger.project, correspondence.InternalRevision, correspondence.PublicRevision, int(status), ledger.timestamp())
	return wrapQueryError(operationNoteEquivalence, execError)
}

// FindEquivalences returns the non-invalid equivalences revision takes part in on side.
func (ledger *SQLiteLedger) FindEquivalences(executionContext context.Context, revision model.Revision, side model.RepositorySide) ([]model.Equivalence, error) {
	if sideError := validateSide(side); sideError != nil {
		return nil, sideError
	}
	query := findInternalEquivalencesQuery
	if side == model.RepositorySidePublic {
		query = findPublicEquivalencesQuery
	}
	return ledger.queryEquivalences(executionContext, query, ledger.project, revision.ID, int(model.VerificationInvalid))
}

// FindUnverifiedEquivalences returns the equivalences awaiting verification.
func (ledger *SQLiteLedger) FindUnverifiedEquivalences(executionContext context.Context) ([]model.Equivalence, error) {
	return ledger.queryEquivalences(executionContext, findEquivalencesByStatusQuery, ledger.project, int(model.VerificationUnverified))
}

func (ledger *SQLiteLedger) queryEquivalences(executionContext context.Context, query string, arguments ...any) ([]model.Equivalence, error) {
	rows, queryError := ledger.database.QueryContext(executionContext, query, arguments...)
	if queryError != nil {
		return nil, wrapQueryError(operationFindEquivalences, queryError)
	}
	defer rows.Close()

	equivalences := []model.Equivalence{}
	for rows.Next() {
		var equivalence model.Equivalence
		var status int
		if scanError := rows.Scan(&equivalence.InternalRevision, &equivalence.PublicRevision, &status); scanError != nil {
			return nil, wrapQueryError(operationFindEquivalences, scanError)
		}
		equivalence.VerificationStatus = model.VerificationStatus(status)
		equivalences = append(equivalences, equivalence)
	}
	return equivalences, wrapQueryError(operationFindEquivalences, rows.Err())
}

// StartMigration records a migration up to request.UpToRevision. A still active migration for the same
// revision is edited in place; otherwise a new migration with the next sequential id is created.
func (ledger *SQLiteLedger) StartMigration(executionContext context.Context, request StartMigrationRequest) (string, error) {
	transaction, beginError := ledger.database.BeginTx(executionContext, nil)
	if beginError != nil {
		return "", wrapQueryError(operationStartMigration, beginError)
	}
	defer transaction.Rollback()

	diff := truncateDiff(request.Diff)
	existing, lookupError := scanMigration(transaction.QueryRowContext(executionContext, latestMigrationQuery, ledger.project, request.UpToRevision.ID))
	if lookupError != nil {
		return "", wrapQueryError(operationStartMigration, lookupError)
	}

	var migrationID int64
	if existing != nil && !existing.Status.IsTerminal() {
		migrationID, _ = strconv.ParseInt(existing.ID, 10, 64)
		if _, execError := transaction.ExecContext(executionContext, editMigrationQuery,
			request.Changelog, diff, diff, request.Link, request.Link, migrationID); execError != nil {
			return "", wrapQueryError(operationStartMigration, execError)
		}
	} else {
		status := model.MigrationStatusPending
		if request.PreApproved {
			status = model.MigrationStatusApproved
		}
		result, execError := transaction.ExecContext(executionContext, insertMigrationQuery,
			ledger.project, string(request.Direction), string(status), request.UpToRevision.ID, request.UpToRevision.RepositoryName,
			request.Changelog, diff, request.Link, ledger.timestamp())
		if execError != nil {
			return "", wrapQueryError(operationStartMigration, execError)
		}
		migrationID, execError = result.LastInsertId()
		if execError != nil {
			return "", wrapQueryError(operationStartMigration, execError)
		}
		for position, revision := range request.Revisions {
			if _, insertError := transaction.ExecContext(executionContext, insertMigratedRevisionQuery,
				migrationID, position, revision.ID, revision.RepositoryName); insertError != nil {
				return "", wrapQueryError(operationStartMigration, insertError)
			}
		}
	}

	if commitError := transaction.Commit(); commitError != nil {
		return "", wrapQueryError(operationStartMigration, commitError)
	}
	migrationIDText := strconv.FormatInt(migrationID, 10)
	ledger.logger.Info(migrationRecordedLogMessage, zap.String(logFieldMigrationConstant, migrationIDText))
	return migrationIDText, nil
}

// FinishMigration marks the migration Submitted as submittedAs; unknown ids are logged and ignored.
func (ledger *SQLiteLedger) FinishMigration(executionContext context.Context, migrationID string, submittedAs model.Revision) error {
	result, execError := ledger.database.ExecContext(executionContext, finishMigrationQuery,
		string(model.MigrationStatusSubmitted), submittedAs.ID, submittedAs.RepositoryName, ledger.project, migrationID)
	if execError != nil {
		return wrapQueryError(operationFinishMigration, execError)
	}
	ledger.warnWhenUnknown(result, migrationID, operationFinishMigration)
	return nil
}

// CancelMigration marks the migration Canceled; unknown ids are logged and ignored.
func (ledger *SQLiteLedger) CancelMigration(executionContext context.Context, migrationID string) error {
	result, execError := ledger.database.ExecContext(executionContext, cancelMigrationQuery,
		string(model.MigrationStatusCanceled), ledger.project, migrationID)
	if execError != nil {
		return wrapQueryError(operationCancelMigration, execError)
	}
	ledger.warnWhenUnknown(result, migrationID, operationCancelMigration)
	return nil
}

func (ledger *SQLiteLedger) warnWhenUnknown(result sql.Result, migrationID string, operation string) {
	affected, affectedError := result.RowsAffected()
	if affectedError == nil && affected == 0 {
		ledger.logger.Warn(unknownMigrationLogMessage,
			zap.String(logFieldMigrationConstant, migrationID),
			zap.String(logFieldMethodConstant, operation),
		)
	}
}

// GetMigration fetches a migration by id, or nil when it does not exist.
func (ledger *SQLiteLedger) GetMigration(executionContext context.Context, migrationID string) (*model.Migration, error) {
	migration, scanError := scanMigration(ledger.database.QueryRowContext(executionContext, migrationByIDQuery, ledger.project, migrationID))
	if scanError != nil {
		return nil, wrapQueryError(operationGetMigration, scanError)
	}
	return ledger.withRevisions(executionContext, migration)
}

// FindMigration returns the latest migration whose up-to revision is upToRevision.
func (ledger *SQLiteLedger) FindMigration(executionContext context.Context, upToRevision model.Revision) (*model.Migration, error) {
	migration, scanError := scanMigration(ledger.database.QueryRowContext(executionContext, latestMigrationQuery, ledger.project, upToRevision.ID))
	if scanError != nil {
		return nil, wrapQueryError(operationGetMigration, scanError)
	}
	return ledger.withRevisions(executionContext, migration)
}

// FindMigrationForRevision returns the migration that covered revision as its up-to revision.
func (ledger *SQLiteLedger) FindMigrationForRevision(executionContext context.Context, revision model.Revision) (*model.Migration, error) {
	return ledger.FindMigration(executionContext, revision)
}

// UpdateMigrationDiff stores the pushed diff, truncated, and link.
func (ledger *SQLiteLedger) UpdateMigrationDiff(executionContext context.Context, migrationID string, diff string, link string) error {
	truncated := truncateDiff(diff)
	result, execError := ledger.database.ExecContext(executionContext, updateDiffQuery, truncated, truncated, link, link, ledger.project, migrationID)
	if execError != nil {
		return wrapQueryError(operationUpdateMigrationDiff, execError)
	}
	if affected, affectedError := result.RowsAffected(); affectedError == nil && affected == 0 {
		return fmt.Errorf(unknownMigrationTemplateConstant, migrationID)
	}
	return nil
}

func (ledger *SQLiteLedger) withRevisions(executionContext context.Context, migration *model.Migration) (*model.Migration, error) {
	if migration == nil {
		return nil, nil
	}
	rows, queryError := ledger.database.QueryContext(executionContext, migratedRevisionsQuery, migration.ID)
	if queryError != nil {
		return nil, wrapQueryError(operationGetMigration, queryError)
	}
	defer rows.Close()

	for rows.Next() {
		revision, scanError := scanRevision(rows)
		if scanError != nil {
			return nil, wrapQueryError(operationGetMigration, scanError)
		}
		migration.Revisions = append(migration.Revisions, revision)
	}
	return migration, wrapQueryError(operationGetMigration, rows.Err())
}

// NoteRevisions upserts revisions; empty attributes never overwrite known ones.
func (ledger *SQLiteLedger) NoteRevisions(executionContext context.Context, revisions []model.Revision) error {
	for _, batch := range revisionBatches(revisions) {
		if batchError := ledger.noteRevisionBatch(executionContext, batch); batchError != nil {
			return wrapQueryError(operationNoteRevisions, batchError)
		}
	}
	return nil
}

func (ledger *SQLiteLedger) noteRevisionBatch(executionContext context.Context, batch []model.Revision) error {
	transaction, beginError := ledger.database.BeginTx(executionContext, nil)
	if beginError != nil {
		return beginError
	}
	defer transaction.Rollback()

	notedAt := ledger.timestamp()
	for _, revision := range batch {
		revisionTime := ""
		if !revision.Time.IsZero() {
			revisionTime = formatStorageTime(revision.Time)
		}
		if _, execError := transaction.ExecContext(executionContext, upsertRevisionQuery,
			revision.RepositoryName, revision.ID, revision.Author, revisionTime, revision.Changelog, notedAt); execError != nil {
			return execError
		}
	}
	return transaction.Commit()
}

// GetRevisions returns up to limit noted revisions of a repository, newest first.
func (ledger *SQLiteLedger) GetRevisions(executionContext context.Context, repositoryName string, limit int) ([]model.Revision, error) {
	rows, queryError := ledger.database.QueryContext(executionContext, recentRevisionsQuery, repositoryName, limit)
	if queryError != nil {
		return nil, wrapQueryError(operationGetRevisions, queryError)
	}
	defer rows.Close()

	revisions := []model.Revision{}
	for rows.Next() {
		revision, scanError := scanRevision(rows)
		if scanError != nil {
			return nil, wrapQueryError(operationGetRevisions, scanError)
		}
		revisions = append(revisions, revision)
	}
	return revisions, wrapQueryError(operationGetRevisions, rows.Err())
}

// StartProcess records a run. With requireLock, any process that is running and seen within the
// process timeout yields ErrProjectLocked.
func (ledger *SQLiteLedger) StartProcess(executionContext context.Context, identity ProcessIdentity, requireLock bool) error {
	transaction, beginError := ledger.database.BeginTx(executionContext, nil)
	if beginError != nil {
		return wrapQueryError(operationStartProcess, beginError)
	}
	defer transaction.Rollback()

	now := ledger.clock()
	if requireLock {
		last, scanError := scanProcess(transaction.QueryRowContext(executionContext, runningProcessQuery, ledger.project))
		if scanError != nil {
			return wrapQueryError(operationStartProcess, scanError)
		}
		if last != nil && last.IsRunning(now, ledger.processTimeout) {
			return fmt.Errorf(lockedErrorTemplateConstant, ErrProjectLocked,
				fmt.Sprintf(runningProcessTemplateConstant, runningProcessMarkerConstant, last.ProcessID, last.LastSeenAt.Format(wireTimeLayoutConstant)))
		}
	}

	timestamp := formatStorageTime(now)
	if _, execError := transaction.ExecContext(executionContext, insertProcessQuery,
		identity.RunToken, ledger.project, identity.ProcessID, timestamp, timestamp); execError != nil {
		return wrapQueryError(operationStartProcess, execError)
	}
	return wrapQueryError(operationStartProcess, transaction.Commit())
}

// UpdateProcess renews the run lock of a running process.
func (ledger *SQLiteLedger) UpdateProcess(executionContext context.Context, identity ProcessIdentity) error {
	process, scanError := scanProcess(ledger.database.QueryRowContext(executionContext, processByTokenQuery, ledger.project, identity.RunToken))
	if scanError != nil {
		return wrapQueryError(operationUpdateProcess, scanError)
	}
	if process == nil {
		return fmt.Errorf(unknownProcessTemplateConstant, identity.ProcessID, ledger.project)
	}
	if !process.Running {
		return fmt.Errorf(processNotRunningTemplateConstant, identity.ProcessID)
	}
	_, execError := ledger.database.ExecContext(executionContext, touchProcessQuery, ledger.timestamp(), identity.RunToken)
	return wrapQueryError(operationUpdateProcess, execError)
}

// EndProcess releases the run lock.
func (ledger *SQLiteLedger) EndProcess(executionContext context.Context, identity ProcessIdentity) error {
	result, execError := ledger.database.ExecContext(executionContext, endProcessQuery, ledger.timestamp(), identity.RunToken)
	if execError != nil {
		return wrapQueryError(operationEndProcess, execError)
	}
	if affected, affectedError := result.RowsAffected(); affectedError == nil && affected == 0 {
		return fmt.Errorf(unknownProcessTemplateConstant, identity.ProcessID, ledger.project)
	}
	return nil
}

// GetLastProcess returns the most recently seen run, or nil.
func (ledger *SQLiteLedger) GetLastProcess(executionContext context.Context) (*Process, error) {
	process, scanError := scanProcess(ledger.database.QueryRowContext(executionContext, lastProcessQuery, ledger.project))
	if scanError != nil {
		return nil, wrapQueryError(operationGetLastProcess, scanError)
	}
	return process, nil
}

func (ledger *SQLiteLedger) timestamp() string {
	return formatStorageTime(ledger.clock())
}

type rowScanner interface {
	Scan(destinations ...any) error
}

func scanMigration(row rowScanner) (*model.Migration, error) {
	var (
		migrationID         int64
		direction           string
		status              string
		upToRevision        string
		upToRepository      string
		submittedAs         sql.NullString
		submittedRepository sql.NullString
		migration           model.Migration
	)
	scanError := row.Scan(&migrationID, &direction, &status, &upToRevision, &upToRepository,
		&submittedAs, &submittedRepository, &migration.Changelog, &migration.Diff, &migration.Link)
	if errors.Is(scanError, sql.ErrNoRows) {
		return nil, nil
	}
	if scanError != nil {
		return nil, scanError
	}
	migration.ID = strconv.FormatInt(migrationID, 10)
	migration.Direction = model.MigrationDirection(direction)
	migration.Status = model.MigrationStatus(status)
	migration.UpToRevision = model.NewRevision(upToRevision, upToRepository, model.RevisionOptions{})
	if submittedAs.Valid && len(submittedAs.String) > 0 {
		submitted := model.NewRevision(submittedAs.String, submittedRepository.String, model.RevisionOptions{})
		migration.SubmittedAs = &submitted
	}
	return &migration, nil
}

func scanRevision(row rowScanner) (model.Revision, error) {
	var revisionID, repositoryName, author, revisionTime, changelog string
	if scanError := row.Scan(&revisionID, &repositoryName, &author, &revisionTime, &changelog); scanError != nil {
		return model.Revision{}, scanError
	}
	return model.NewRevision(revisionID, repositoryName, model.RevisionOptions{
		Author:    author,
		Time:      parseStorageTime(revisionTime),
		Changelog: changelog,
	}), nil
}

func scanProcess(row rowScanner) (*Process, error) {
	var (
		process   Process
		running   int
		startTime string
		lastSeen  string
		endTime   string
	)
	scanError := row.Scan(&process.ProcessID, &process.RunToken, &running, &startTime, &lastSeen, &endTime)
	if errors.Is(scanError, sql.ErrNoRows) {
		return nil, nil
	}
	if scanError != nil {
		return nil, scanError
	}
	process.Running = running != 0
	process.StartedAt = parseStorageTime(startTime)
	process.LastSeenAt = parseStorageTime(lastSeen)
	process.EndedAt = parseStorageTime(endTime)
	return &process, nil
}

func formatStorageTime(value time.Time) string {
	return value.UTC().Format(storageTimeLayoutConstant)
}

func parseStorageTime(value string) time.Time {
	if parsed, parseError := time.Parse(storageTimeLayoutConstant, value); parseError == nil {
		return parsed
	}
	return parseWireTime(value)
}

func wrapQueryError(operation string, queryError error) error {
	if queryError == nil {
		return nil
	}
	return fmt.Errorf(queryErrorTemplateConstant, operation, queryError)
}
