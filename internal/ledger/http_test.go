package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/codesync/internal/ledger"
	"github.com/temirov/codesync/internal/model"
)

const (
	testProjectNameConstant = "widget"
)

type recordedRequest struct {
	Method string
	Path   string
	Values url.Values
}

type fakeLedgerService struct {
	mutex     sync.Mutex
	requests  []recordedRequest
	responses map[string]func(values url.Values) (int, string)
}

func newFakeLedgerService() *fakeLedgerService {
	return &fakeLedgerService{responses: map[string]func(values url.Values) (int, string){}}
}

func (service *fakeLedgerService) respond(method string, handler func(values url.Values) (int, string)) {
	service.responses[method] = handler
}

func (service *fakeLedgerService) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	request.ParseForm()
	method := strings.TrimPrefix(request.URL.Path, "/api/")
	service.mutex.Lock()
	service.requests = append(service.requests, recordedRequest{Method: request.Method, Path: method, Values: request.Form})
	handler := service.responses[method]
	service.mutex.Unlock()

	status, body := http.StatusOK, `{"data": null}`
	if handler != nil {
		status, body = handler(request.Form)
	}
	writer.WriteHeader(status)
	fmt.Fprint(writer, body)
}

func (service *fakeLedgerService) requestsFor(method string) []recordedRequest {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	matches := []recordedRequest{}
	for _, request := range service.requests {
		if request.Path == method {
			matches = append(matches, request)
		}
	}
	return matches
}

func newTestHTTPLedger(testInstance *testing.T, service *fakeLedgerService, logger *zap.Logger) *ledger.HTTPLedger {
	testInstance.Helper()
	server := httptest.NewServer(service)
	testInstance.Cleanup(server.Close)
	httpLedger, buildError := ledger.NewHTTPLedger(ledger.HTTPLedgerOptions{BaseURL: server.URL + "/", Project: testProjectNameConstant, Logger: logger})
	require.NoError(testInstance, buildError)
	return httpLedger
}

func decodeRevisionField(testInstance *testing.T, values url.Values, field string) map[string]any {
	testInstance.Helper()
	decoded := map[string]any{}
	require.NoError(testInstance, json.Unmarshal([]byte(values.Get(field)), &decoded))
	return decoded
}

func TestHTTPLedgerNoteEquivalencePostsRevisionDumps(testInstance *testing.T) {
	service := newFakeLedgerService()
	httpLedger := newTestHTTPLedger(testInstance, service, nil)

	noteError := httpLedger.NoteEquivalence(context.Background(), model.Correspondence{InternalRevision: "1001", PublicRevision: "abc"}, model.VerificationVerified)
	require.NoError(testInstance, noteError)

	requests := service.requestsFor("note_equivalence")
	require.Len(testInstance, requests, 1)
	require.Equal(testInstance, http.MethodPost, requests[0].Method)
	require.Equal(testInstance, testProjectNameConstant, requests[0].Values.Get("project_name"))
	require.Equal(testInstance, "1", requests[0].Values.Get("verification_status"))
	require.Equal(testInstance, "1001", decodeRevisionField(testInstance, requests[0].Values, "internal_revision")["rev_id"])
	require.Equal(testInstance, "abc", decodeRevisionField(testInstance, requests[0].Values, "public_revision")["rev_id"])
}

func TestHTTPLedgerFindEquivalencesDecodesEnvelope(testInstance *testing.T) {
	service := newFakeLedgerService()
	service.respond("find_equivalences", func(values url.Values) (int, string) {
		return http.StatusOK, `{"data": {"equivalences": [{"internal_revision": {"rev_id": 1001}, "public_revision": {"rev_id": "abc"}}]}}`
	})
	httpLedger := newTestHTTPLedger(testInstance, service, nil)

	equivalences, findError := httpLedger.FindEquivalences(context.Background(), model.Revision{ID: "abc"}, model.RepositorySidePublic)
	require.NoError(testInstance, findError)
	require.Equal(testInstance, []model.Equivalence{{Correspondence: model.Correspondence{InternalRevision: "1001", PublicRevision: "abc"}}}, equivalences)

	requests := service.requestsFor("find_equivalences")
	require.Len(testInstance, requests, 1)
	require.Equal(testInstance, http.MethodGet, requests[0].Method)
	require.Empty(testInstance, requests[0].Values.Get("internal_revision"))
	require.Equal(testInstance, "abc", decodeRevisionField(testInstance, requests[0].Values, "public_revision")["rev_id"])

	_, sideError := httpLedger.FindEquivalences(context.Background(), model.Revision{ID: "abc"}, model.RepositorySide("sideways"))
	require.Error(testInstance, sideError)
}

func TestHTTPLedgerStartMigration(testInstance *testing.T) {
	service := newFakeLedgerService()
	service.respond("start_migration", func(values url.Values) (int, string) {
		return http.StatusOK, `{"data": {"migration_id": 17}}`
	})
	httpLedger := newTestHTTPLedger(testInstance, service, nil)

	longDiff := strings.Repeat("x", 100010)
	migrationID, startError := httpLedger.StartMigration(context.Background(), ledger.StartMigrationRequest{
		Direction:    model.MigrationDirectionExport,
		UpToRevision: model.Revision{ID: "1003", RepositoryName: "widget_internal"},
		Revisions:    []model.Revision{{ID: "1002"}, {ID: "1003"}},
		Changelog:    "log",
		Diff:         longDiff,
		PreApproved:  true,
	})
	require.NoError(testInstance, startError)
	require.Equal(testInstance, "17", migrationID)

	values := service.requestsFor("start_migration")[0].Values
	require.Equal(testInstance, "export", values.Get("direction"))
	require.Equal(testInstance, "Approved", values.Get("status"))
	require.Len(testInstance, values.Get("diff"), 100000)
	require.Equal(testInstance, "1003", decodeRevisionField(testInstance, values, "up_to_revision")["rev_id"])

	var migrated []map[string]any
	require.NoError(testInstance, json.Unmarshal([]byte(values.Get("migrated_revisions")), &migrated))
	require.Len(testInstance, migrated, 2)
}

func TestHTTPLedgerMigrationFailuresAreTolerated(testInstance *testing.T) {
	rejection := func(values url.Values) (int, string) {
		return http.StatusBadRequest, `{"error_message": "Invalid migration id"}`
	}
	service := newFakeLedgerService()
	service.respond("finish_migration", rejection)
	service.respond("cancel_migration", rejection)
	service.respond("migration_info", rejection)

	core, logs := observer.New(zap.WarnLevel)
	httpLedger := newTestHTTPLedger(testInstance, service, zap.New(core))

	require.NoError(testInstance, httpLedger.FinishMigration(context.Background(), "99", model.Revision{ID: "abc"}))
	require.NoError(testInstance, httpLedger.CancelMigration(context.Background(), "99"))
	migration, getError := httpLedger.GetMigration(context.Background(), "99")
	require.NoError(testInstance, getError)
	require.Nil(testInstance, migration)
	require.Equal(testInstance, 2, logs.Len())
}

func TestHTTPLedgerGetMigrationDecodesSubmittedAs(testInstance *testing.T) {
	service := newFakeLedgerService()
	service.respond("migration_info", func(values url.Values) (int, string) {
		return http.StatusOK, `{"data": {"migration_id": 5, "direction": "import", "status": "Submitted",
			"up_to_revision": {"rev_id": "abc"}, "submitted_as": {"rev_id": "1004"}}}`
	})
	httpLedger := newTestHTTPLedger(testInstance, service, nil)

	migration, getError := httpLedger.GetMigration(context.Background(), "5")
	require.NoError(testInstance, getError)
	require.NotNil(testInstance, migration)
	require.Equal(testInstance, model.MigrationDirectionImport, migration.Direction)
	require.Equal(testInstance, model.MigrationStatusSubmitted, migration.Status)
	require.Equal(testInstance, "abc", migration.UpToRevision.ID)
	require.NotNil(testInstance, migration.SubmittedAs)
	require.Equal(testInstance, "1004", migration.SubmittedAs.ID)
}

func TestHTTPLedgerNoteRevisionsBatches(testInstance *testing.T) {
	service := newFakeLedgerService()
	httpLedger := newTestHTTPLedger(testInstance, service, nil)

	revisions := make([]model.Revision, 0, 23)
	for index := 0; index < 23; index++ {
		revisions = append(revisions, model.Revision{ID: fmt.Sprintf("%d", index), RepositoryName: "widget_internal"})
	}
	require.NoError(testInstance, httpLedger.NoteRevisions(context.Background(), revisions))
	require.Len(testInstance, service.requestsFor("note_revisions"), 3)
}

func TestHTTPLedgerStartProcessDetectsLock(testInstance *testing.T) {
	testCases := []struct {
		name          string
		status        int
		body          string
		expectLocked  bool
		expectFailure bool
	}{
		{
			name:   "free",
			status: http.StatusOK,
			body:   `{"data": null}`,
		},
		{
			name:          "locked",
			status:        http.StatusBadRequest,
			body:          `{"error_message": "Project already has a running process at alice[12]@host"}`,
			expectLocked:  true,
			expectFailure: true,
		},
		{
			name:          "other_failure",
			status:        http.StatusInternalServerError,
			body:          `boom`,
			expectFailure: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			service := newFakeLedgerService()
			service.respond("start_process", func(values url.Values) (int, string) {
				return testCase.status, testCase.body
			})
			httpLedger := newTestHTTPLedger(testInstance, service, nil)

			startError := httpLedger.StartProcess(context.Background(), ledger.ProcessIdentity{ProcessID: "bob[1]@host", RunToken: "token"}, true)
			require.Equal(testInstance, testCase.expectFailure, startError != nil)
			require.Equal(testInstance, testCase.expectLocked, errors.Is(startError, ledger.ErrProjectLocked))
			require.Equal(testInstance, "True", service.requestsFor("start_process")[0].Values.Get("require_lock"))
		})
	}
}

func TestHTTPLedgerDashboardURL(testInstance *testing.T) {
	httpLedger, buildError := ledger.NewHTTPLedger(ledger.HTTPLedgerOptions{BaseURL: "https://ledger.example.com/", Project: testProjectNameConstant})
	require.NoError(testInstance, buildError)
	require.Equal(testInstance, "https://ledger.example.com/project/widget", httpLedger.DashboardURL())

	_, missingURLError := ledger.NewHTTPLedger(ledger.HTTPLedgerOptions{Project: testProjectNameConstant})
	require.ErrorIs(testInstance, missingURLError, ledger.ErrMissingURL)
	_, missingProjectError := ledger.NewHTTPLedger(ledger.HTTPLedgerOptions{BaseURL: "https://ledger.example.com"})
	require.ErrorIs(testInstance, missingProjectError, ledger.ErrMissingProject)
}
