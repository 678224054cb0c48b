package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/model"
)

const (
	apiPathTemplateConstant              = "%s/api/%s"
	formContentTypeConstant              = "application/x-www-form-urlencoded"
	contentTypeHeaderConstant            = "Content-Type"
	pythonTrueConstant                   = "True"
	pythonFalseConstant                  = "False"
	runningProcessMarkerConstant         = "Project already has a running process"
	missingURLMessageConstant            = "ledger url is required"
	buildRequestErrorTemplateConstant    = "unable to build %s request for %s: %w"
	sendRequestErrorTemplateConstant     = "%s %s failed: %w"
	decodeResponseErrorTemplateConstant  = "unable to decode response of %s: %w"
	lockedErrorTemplateConstant          = "%w: %s"
	defaultHTTPTimeoutConstant           = 60 * time.Second
	strayMigrationMessageConstant        = "ignoring ledger failure for migration"
	migrationLookupFailedMessageConstant = "migration lookup failed"

	methodNoteEquivalence      = "note_equivalence"
	methodFindEquivalences     = "find_equivalences"
	methodStartMigration       = "start_migration"
	methodFinishMigration      = "finish_migration"
	methodCancelMigration      = "cancel_migration"
	methodMigrationInfo        = "migration_info"
	methodFindMigration        = "find_migration"
	methodMigrationForRevision = "migration_for_revision"
	methodUpdateMigrationDiff  = "update_migration_diff"
	methodNoteRevisions        = "note_revisions"
	methodRevisions            = "revisions"
	methodStartProcess         = "start_process"
	methodUpdateProcess        = "update_process"
	methodEndProcess           = "end_process"
	methodGetLastProcess       = "get_last_process"

	fieldProjectName        = "project_name"
	fieldInternalRevision   = "internal_revision"
	fieldPublicRevision     = "public_revision"
	fieldVerificationStatus = "verification_status"
	fieldChangelog          = "changelog"
	fieldDiff               = "diff"
	fieldLink               = "link"
	fieldDirection          = "direction"
	fieldUpToRevision       = "up_to_revision"
	fieldMigratedRevisions  = "migrated_revisions"
	fieldStatus             = "status"
	fieldMigrationID        = "migration_id"
	fieldSubmittedAs        = "submitted_as"
	fieldAbbreviated        = "abbreviated"
	fieldRevision           = "revision"
	fieldRevisions          = "revisions"
	fieldRepository         = "repository"
	fieldNumRevisions       = "num_revisions"
	fieldProcessID          = "process_id"
	fieldRunToken           = "run_token"
	fieldRequireLock        = "require_lock"
)

// ErrMissingURL indicates an HTTP ledger without a service url.
var ErrMissingURL = errors.New(missingURLMessageConstant)

type responseEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// HTTPLedgerOptions configures an HTTPLedger.
type HTTPLedgerOptions struct {
	BaseURL    string
	Project    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// HTTPLedger talks to a ledger service: GET and form POST requests to {url}/api/{method}
// answered with {"data": ...} envelopes.
type HTTPLedger struct {
	baseURL    string
	project    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPLedger validates options and builds an HTTPLedger.
func NewHTTPLedger(options HTTPLedgerOptions) (*HTTPLedger, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(options.BaseURL), "/")
	if len(baseURL) == 0 {
		return nil, ErrMissingURL
	}
	if len(strings.TrimSpace(options.Project)) == 0 {
		return nil, ErrMissingProject
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeoutConstant}
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPLedger{baseURL: baseURL, project: options.Project, httpClient: httpClient, logger: logger}, nil
}

// DashboardURL returns the project page of the ledger service.
func (ledger *HTTPLedger) DashboardURL() string {
	return fmt.Sprintf(dashboardPathTemplateConstant, ledger.baseURL, ledger.project)
}

// Close releases nothing; HTTP connections are pooled by the client.
func (ledger *HTTPLedger) Close() error {
	return nil
}

// NoteEquivalence records correspondence with status.
func (ledger *HTTPLedger) NoteEquivalence(executionContext context.Context, correspondence model.Correspondence, status model.VerificationStatus) error {
	values := ledger.projectValues()
	values.Set(fieldInternalRevision, encodeRevisionJSON(model.Revision{ID: correspondence.InternalRevision}))
	values.Set(fieldPublicRevision, encodeRevisionJSON(model.Revision{ID: correspondence.PublicRevision}))
	values.Set(fieldVerificationStatus, formatInteger(int(status)))
	return ledger.post(executionContext, methodNoteEquivalence, values, nil)
}

// FindEquivalences returns the equivalences revision takes part in on side.
func (ledger *HTTPLedger) FindEquivalences(executionContext context.Context, revision model.Revision, side model.RepositorySide) ([]model.Equivalence, error) {
	if sideError := validateSide(side); sideError != nil {
		return nil, sideError
	}
	values := ledger.projectValues()
	if side == model.RepositorySideInternal {
		values.Set(fieldInternalRevision, encodeRevisionJSON(revision))
	} else {
		values.Set(fieldPublicRevision, encodeRevisionJSON(revision))
	}
	var envelope equivalencesEnvelope
	if getError := ledger.get(executionContext, methodFindEquivalences, values, &envelope); getError != nil {
		return nil, getError
	}
	return decodeEquivalences(envelope.Equivalences), nil
}

// FindUnverifiedEquivalences returns every equivalence awaiting verification.
func (ledger *HTTPLedger) FindUnverifiedEquivalences(executionContext context.Context) ([]model.Equivalence, error) {
	values := ledger.projectValues()
	values.Set(fieldVerificationStatus, formatInteger(int(model.VerificationUnverified)))
	var envelope equivalencesEnvelope
	if getError := ledger.get(executionContext, methodFindEquivalences, values, &envelope); getError != nil {
		return nil, getError
	}
	equivalences := decodeEquivalences(envelope.Equivalences)
	for index := range equivalences {
		equivalences[index].VerificationStatus = model.VerificationUnverified
	}
	return equivalences, nil
}

// StartMigration creates a Pending migration, or an Approved one when pre-approved.
func (ledger *HTTPLedger) StartMigration(executionContext context.Context, request StartMigrationRequest) (string, error) {
	values := ledger.projectValues()
	values.Set(fieldChangelog, request.Changelog)
	values.Set(fieldDiff, truncateDiff(request.Diff))
	values.Set(fieldLink, request.Link)
	values.Set(fieldDirection, string(request.Direction))
	values.Set(fieldUpToRevision, encodeRevisionJSON(request.UpToRevision))
	values.Set(fieldMigratedRevisions, encodeRevisionsJSON(request.Revisions))
	if request.PreApproved {
		values.Set(fieldStatus, string(model.MigrationStatusApproved))
	}
	var result startMigrationResult
	if postError := ledger.post(executionContext, methodStartMigration, values, &result); postError != nil {
		return "", postError
	}
	return string(result.MigrationID), nil
}

// FinishMigration marks the migration Submitted as submittedAs. Service rejections are logged and ignored
// because a stray marker in a changelog can name a migration the service does not know.
func (ledger *HTTPLedger) FinishMigration(executionContext context.Context, migrationID string, submittedAs model.Revision) error {
	values := ledger.projectValues()
	values.Set(fieldMigrationID, migrationID)
	values.Set(fieldSubmittedAs, encodeRevisionJSON(submittedAs))
	return ledger.ignoreHTTPError(migrationID, methodFinishMigration, ledger.post(executionContext, methodFinishMigration, values, nil))
}

// CancelMigration marks the migration Canceled, ignoring service rejections.
func (ledger *HTTPLedger) CancelMigration(executionContext context.Context, migrationID string) error {
	values := url.Values{}
	values.Set(fieldMigrationID, migrationID)
	return ledger.ignoreHTTPError(migrationID, methodCancelMigration, ledger.post(executionContext, methodCancelMigration, values, nil))
}

// GetMigration fetches a migration by id; a service rejection yields nil.
func (ledger *HTTPLedger) GetMigration(executionContext context.Context, migrationID string) (*model.Migration, error) {
	values := ledger.projectValues()
	values.Set(fieldMigrationID, migrationID)
	values.Set(fieldAbbreviated, pythonTrueConstant)
	var payload *migrationPayload
	getError := ledger.get(executionContext, methodMigrationInfo, values, &payload)
	var httpError HTTPError
	if errors.As(getError, &httpError) {
		ledger.logger.Debug(migrationLookupFailedMessageConstant, zap.String(logFieldMigrationConstant, migrationID), zap.Error(getError))
		return nil, nil
	}
	if getError != nil {
		return nil, getError
	}
	return decodeMigration(payload), nil
}

// FindMigration returns the latest migration whose up-to revision is upToRevision.
func (ledger *HTTPLedger) FindMigration(executionContext context.Context, upToRevision model.Revision) (*model.Migration, error) {
	values := ledger.projectValues()
	values.Set(fieldUpToRevision, encodeRevisionJSON(upToRevision))
	values.Set(fieldAbbreviated, pythonFalseConstant)
	var payload *migrationPayload
	if getError := ledger.get(executionContext, methodFindMigration, values, &payload); getError != nil {
		return nil, getError
	}
	return decodeMigration(payload), nil
}

// FindMigrationForRevision returns the migration that covered revision as its up-to revision.
func (ledger *HTTPLedger) FindMigrationForRevision(executionContext context.Context, revision model.Revision) (*model.Migration, error) {
	values := ledger.projectValues()
	values.Set(fieldRevision, encodeRevisionJSON(revision))
	var envelope migrationEnvelope
	if getError := ledger.get(executionContext, methodMigrationForRevision, values, &envelope); getError != nil {
		return nil, getError
	}
	return decodeMigration(envelope.Migration), nil
}

// UpdateMigrationDiff stores the pushed diff, truncated, and link.
func (ledger *HTTPLedger) UpdateMigrationDiff(executionContext context.Context, migrationID string, diff string, link string) error {
	values := ledger.projectValues()
	values.Set(fieldMigrationID, migrationID)
	values.Set(fieldDiff, truncateDiff(diff))
	values.Set(fieldLink, link)
	return ledger.post(executionContext, methodUpdateMigrationDiff, values, nil)
}

// NoteRevisions uploads revisions in small batches.
func (ledger *HTTPLedger) NoteRevisions(executionContext context.Context, revisions []model.Revision) error {
	for _, batch := range revisionBatches(revisions) {
		values := url.Values{}
		values.Set(fieldRevisions, encodeRevisionsJSON(batch))
		if postError := ledger.post(executionContext, methodNoteRevisions, values, nil); postError != nil {
			return postError
		}
	}
	return nil
}

// GetRevisions returns up to limit noted revisions of a repository, newest first.
func (ledger *HTTPLedger) GetRevisions(executionContext context.Context, repositoryName string, limit int) ([]model.Revision, error) {
	values := url.Values{}
	values.Set(fieldRepository, repositoryName)
	values.Set(fieldNumRevisions, formatInteger(limit))
	var envelope revisionsEnvelope
	if getError := ledger.get(executionContext, methodRevisions, values, &envelope); getError != nil {
		return nil, getError
	}
	return decodeRevisions(envelope.Revisions), nil
}

// StartProcess records a run. With requireLock, a running process yields ErrProjectLocked.
func (ledger *HTTPLedger) StartProcess(executionContext context.Context, identity ProcessIdentity, requireLock bool) error {
	values := ledger.processValues(identity)
	values.Set(fieldRequireLock, pythonFalseConstant)
	if requireLock {
		values.Set(fieldRequireLock, pythonTrueConstant)
	}
	postError := ledger.post(executionContext, methodStartProcess, values, nil)
	var httpError HTTPError
	if errors.As(postError, &httpError) && strings.Contains(httpError.Contents, runningProcessMarkerConstant) {
		return fmt.Errorf(lockedErrorTemplateConstant, ErrProjectLocked, strings.TrimSpace(httpError.Contents))
	}
	return postError
}

// UpdateProcess renews the run lock.
func (ledger *HTTPLedger) UpdateProcess(executionContext context.Context, identity ProcessIdentity) error {
	return ledger.post(executionContext, methodUpdateProcess, ledger.processValues(identity), nil)
}

// EndProcess releases the run lock.
func (ledger *HTTPLedger) EndProcess(executionContext context.Context, identity ProcessIdentity) error {
	return ledger.post(executionContext, methodEndProcess, ledger.processValues(identity), nil)
}

// GetLastProcess returns the most recently seen run, or nil.
func (ledger *HTTPLedger) GetLastProcess(executionContext context.Context) (*Process, error) {
	var payload *processPayload
	if getError := ledger.get(executionContext, methodGetLastProcess, ledger.projectValues(), &payload); getError != nil {
		return nil, getError
	}
	return decodeProcess(payload), nil
}

func (ledger *HTTPLedger) projectValues() url.Values {
	values := url.Values{}
	values.Set(fieldProjectName, ledger.project)
	return values
}

func (ledger *HTTPLedger) processValues(identity ProcessIdentity) url.Values {
	values := ledger.projectValues()
	values.Set(fieldProcessID, identity.ProcessID)
	values.Set(fieldRunToken, identity.RunToken)
	return values
}

func (ledger *HTTPLedger) ignoreHTTPError(migrationID string, method string, requestError error) error {
	var httpError HTTPError
	if errors.As(requestError, &httpError) {
		ledger.logger.Warn(strayMigrationMessageConstant,
			zap.String(logFieldMigrationConstant, migrationID),
			zap.String(logFieldMethodConstant, method),
			zap.Error(requestError),
		)
		return nil
	}
	return requestError
}

func (ledger *HTTPLedger) get(executionContext context.Context, method string, values url.Values, target any) error {
	requestURL := fmt.Sprintf(apiPathTemplateConstant, ledger.baseURL, method)
	if len(values) > 0 {
		requestURL += "?" + values.Encode()
	}
	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, requestURL, nil)
	if requestError != nil {
		return fmt.Errorf(buildRequestErrorTemplateConstant, http.MethodGet, requestURL, requestError)
	}
	return ledger.do(request, target)
}

func (ledger *HTTPLedger) post(executionContext context.Context, method string, values url.Values, target any) error {
	requestURL := fmt.Sprintf(apiPathTemplateConstant, ledger.baseURL, method)
	request, requestError := http.NewRequestWithContext(executionContext, http.MethodPost, requestURL, strings.NewReader(values.Encode()))
	if requestError != nil {
		return fmt.Errorf(buildRequestErrorTemplateConstant, http.MethodPost, requestURL, requestError)
	}
	request.Header.Set(contentTypeHeaderConstant, formContentTypeConstant)
	return ledger.do(request, target)
}

func (ledger *HTTPLedger) do(request *http.Request, target any) error {
	response, sendError := ledger.httpClient.Do(request)
	if sendError != nil {
		return fmt.Errorf(sendRequestErrorTemplateConstant, request.Method, request.URL.Redacted(), sendError)
	}
	defer response.Body.Close()

	body, readError := io.ReadAll(response.Body)
	if readError != nil {
		return fmt.Errorf(sendRequestErrorTemplateConstant, request.Method, request.URL.Redacted(), readError)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return HTTPError{Method: request.Method, URL: request.URL.Redacted(), StatusCode: response.StatusCode, Contents: string(body)}
	}
	if target == nil || len(body) == 0 {
		return nil
	}

	var envelope responseEnvelope
	if decodeError := json.Unmarshal(body, &envelope); decodeError != nil {
		return fmt.Errorf(decodeResponseErrorTemplateConstant, request.URL.Path, decodeError)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if decodeError := json.Unmarshal(envelope.Data, target); decodeError != nil {
		return fmt.Errorf(decodeResponseErrorTemplateConstant, request.URL.Path, decodeError)
	}
	return nil
}
