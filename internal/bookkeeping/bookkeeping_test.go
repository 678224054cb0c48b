package bookkeeping_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/bookkeeping"
	ledgertestsupport "github.com/temirov/codesync/internal/ledger/testsupport"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/repository"
	"github.com/temirov/codesync/internal/repository/testsupport"
)

const (
	testInternalNameConstant = "internal"
	testPublicNameConstant   = "public"
)

type resolvingWalker struct {
	resolutions map[string]string
}

func (walker resolvingWalker) GetHeadRevision(_ context.Context, maxRevisionID string) (string, error) {
	resolved, exists := walker.resolutions[maxRevisionID]
	if !exists {
		return "", errors.New("unknown revision")
	}
	return resolved, nil
}

func (walker resolvingWalker) RevisionsSinceEquivalence(context.Context, string, model.RepositorySide, repository.EquivalenceFinder) ([]model.Revision, []model.Equivalence, error) {
	return nil, nil, nil
}

func internalRevision(revisionID string, changelog string) model.Revision {
	return model.NewRevision(revisionID, testInternalNameConstant, model.RevisionOptions{Changelog: changelog})
}

func publicRevision(revisionID string, changelog string) model.Revision {
	return model.NewRevision(revisionID, testPublicNameConstant, model.RevisionOptions{Changelog: changelog})
}

func newFixture() (*testsupport.RepositoryStub, *testsupport.RepositoryStub, *ledgertestsupport.MemoryLedger) {
	internalRepository := &testsupport.RepositoryStub{
		RepositoryName: testInternalNameConstant,
		HeadRevision:   "1002",
		History: []model.Revision{
			internalRevision("1002", "Second internal change"),
			internalRevision("1001", "Imported public fix\n\nMOE_MIGRATION=1\n"),
			internalRevision("1000", "Base"),
		},
	}
	publicRepository := &testsupport.RepositoryStub{
		RepositoryName: testPublicNameConstant,
		HeadRevision:   "a2",
		History: []model.Revision{
			publicRevision("a2", "Public follow-up"),
			publicRevision("a1", "Public fix"),
			publicRevision("a0", "Base"),
		},
	}
	memoryLedger := ledgertestsupport.NewMemoryLedger()
	memoryLedger.Equivalences = []model.Equivalence{
		{Correspondence: model.Correspondence{InternalRevision: "1000", PublicRevision: "a0"}, VerificationStatus: model.VerificationVerified},
	}
	memoryLedger.AddMigration(model.Migration{
		Direction:    model.MigrationDirectionImport,
		Status:       model.MigrationStatusPending,
		UpToRevision: publicRevision("a1", "Public fix"),
	})
	return internalRepository, publicRepository, memoryLedger
}

func newBuilder(testInstance *testing.T, internal bookkeeping.HistoryWalker, public bookkeeping.HistoryWalker, ledger bookkeeping.Ledger) *bookkeeping.Builder {
	builder, builderError := bookkeeping.NewBuilder(bookkeeping.Options{Internal: internal, Public: public, Ledger: ledger})
	require.NoError(testInstance, builderError)
	return builder
}

func TestBuildRetiresLandedMigrationsAndCollectsPendingRevisions(testInstance *testing.T) {
	internalRepository, publicRepository, memoryLedger := newFixture()
	builder := newBuilder(testInstance, internalRepository, publicRepository, memoryLedger)

	current := model.Correspondence{InternalRevision: "1002", PublicRevision: "a2"}
	book, buildError := builder.Build(context.Background(), current)
	require.NoError(testInstance, buildError)

	require.Equal(testInstance, model.Correspondence{InternalRevision: "1000", PublicRevision: "a0"}, book.Equivalence)
	require.Equal(testInstance, current, book.Current)

	require.Len(testInstance, book.FinishedImports, 1)
	require.Equal(testInstance, "1", book.FinishedImports[0].ID)
	require.Equal(testInstance, "1001", book.FinishedImports[0].SubmittedAs.ID)
	require.Empty(testInstance, book.FinishedExports)

	require.Equal(testInstance, []string{"a2"}, model.RevisionIDs(book.RevisionsToImport))
	require.NotNil(testInstance, book.LastImport)
	require.Equal(testInstance, "1", book.LastImport.ID)

	require.Equal(testInstance, []string{"1001", "1002"}, model.RevisionIDs(book.RevisionsToExport))
	require.Nil(testInstance, book.LastExport)
	require.True(testInstance, book.HasPendingRevisions())

	require.Equal(testInstance, []ledgertestsupport.FinishedMigration{{MigrationID: "1", SubmittedAs: internalRepository.History[1]}}, memoryLedger.FinishedMigrations)
	require.Equal(testInstance, 2, memoryLedger.NotedRevisionCalls)
	require.Len(testInstance, memoryLedger.Revisions, 3)
}

func TestBuildWithNothingToMigrate(testInstance *testing.T) {
	internalRepository, publicRepository, memoryLedger := newFixture()
	builder := newBuilder(testInstance, internalRepository, publicRepository, memoryLedger)

	book, buildError := builder.Build(context.Background(), model.Correspondence{InternalRevision: "1000", PublicRevision: "a0"})
	require.NoError(testInstance, buildError)
	require.False(testInstance, book.HasPendingRevisions())
	require.Empty(testInstance, book.FinishedImports)
	require.Empty(testInstance, memoryLedger.FinishedMigrations)
}

func TestBuildRejectsIncompatibleEquivalences(testInstance *testing.T) {
	internalRepository, publicRepository, memoryLedger := newFixture()
	memoryLedger.Equivalences = append(memoryLedger.Equivalences, model.Equivalence{
		Correspondence:     model.Correspondence{InternalRevision: "999", PublicRevision: "a1"},
		VerificationStatus: model.VerificationVerified,
	})
	builder := newBuilder(testInstance, internalRepository, publicRepository, memoryLedger)

	_, buildError := builder.Build(context.Background(), model.Correspondence{InternalRevision: "1002", PublicRevision: "a2"})
	var incompatibleError bookkeeping.IncompatibleEquivalencesError
	require.ErrorAs(testInstance, buildError, &incompatibleError)
	require.Len(testInstance, incompatibleError.InternalCandidates, 1)
	require.Len(testInstance, incompatibleError.PublicCandidates, 1)
	require.Contains(testInstance, buildError.Error(), "(internal 999, public a1)")
}

func TestRevisionsToMigrateRequiresSubmittedRevision(testInstance *testing.T) {
	internalRepository, publicRepository, memoryLedger := newFixture()
	memoryLedger.AddMigration(model.Migration{
		Direction:    model.MigrationDirectionImport,
		Status:       model.MigrationStatusSubmitted,
		UpToRevision: publicRevision("a2", ""),
	})
	builder := newBuilder(testInstance, internalRepository, publicRepository, memoryLedger)

	_, _, scanError := builder.RevisionsToMigrate(context.Background(), publicRepository.History)
	var unsubmittedError bookkeeping.UnsubmittedMigrationError
	require.ErrorAs(testInstance, scanError, &unsubmittedError)
	require.Equal(testInstance, "2", unsubmittedError.MigrationID)
}

func TestVerifyEquivalences(testInstance *testing.T) {
	testCases := []struct {
		name                string
		internalResolutions map[string]string
		publicResolutions   map[string]string
		expectedNotes       []ledgertestsupport.NotedEquivalence
	}{
		{
			name:                "unchanged_revisions_become_verified",
			internalResolutions: map[string]string{"1000": "1000"},
			publicResolutions:   map[string]string{"a0": "a0"},
			expectedNotes: []ledgertestsupport.NotedEquivalence{
				{Correspondence: model.Correspondence{InternalRevision: "1000", PublicRevision: "a0"}, Status: model.VerificationVerified},
			},
		},
		{
			name:                "rewritten_revision_is_replaced",
			internalResolutions: map[string]string{"1000": "1000"},
			publicResolutions:   map[string]string{"a0": "b0"},
			expectedNotes: []ledgertestsupport.NotedEquivalence{
				{Correspondence: model.Correspondence{InternalRevision: "1000", PublicRevision: "b0"}, Status: model.VerificationVerified},
				{Correspondence: model.Correspondence{InternalRevision: "1000", PublicRevision: "a0"}, Status: model.VerificationInvalid},
			},
		},
		{
			name:                "unresolvable_revision_is_invalidated",
			internalResolutions: map[string]string{},
			publicResolutions:   map[string]string{"a0": "a0"},
			expectedNotes: []ledgertestsupport.NotedEquivalence{
				{Correspondence: model.Correspondence{InternalRevision: "1000", PublicRevision: "a0"}, Status: model.VerificationInvalid},
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			memoryLedger := ledgertestsupport.NewMemoryLedger()
			memoryLedger.Equivalences = []model.Equivalence{
				{Correspondence: model.Correspondence{InternalRevision: "1000", PublicRevision: "a0"}, VerificationStatus: model.VerificationUnverified},
			}
			builder := newBuilder(testInstance, resolvingWalker{resolutions: testCase.internalResolutions}, resolvingWalker{resolutions: testCase.publicResolutions}, memoryLedger)

			require.NoError(testInstance, builder.VerifyEquivalences(context.Background()))
			require.Equal(testInstance, testCase.expectedNotes, memoryLedger.NotedEquivalences)
		})
	}
}

func TestNewBuilderValidatesOptions(testInstance *testing.T) {
	stub := &testsupport.RepositoryStub{}
	memoryLedger := ledgertestsupport.NewMemoryLedger()
	testCases := []struct {
		name          string
		options       bookkeeping.Options
		expectedError error
	}{
		{name: "missing_internal", options: bookkeeping.Options{Public: stub, Ledger: memoryLedger}, expectedError: bookkeeping.ErrMissingInternalRepository},
		{name: "missing_public", options: bookkeeping.Options{Internal: stub, Ledger: memoryLedger}, expectedError: bookkeeping.ErrMissingPublicRepository},
		{name: "missing_ledger", options: bookkeeping.Options{Internal: stub, Public: stub}, expectedError: bookkeeping.ErrMissingLedger},
	}
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, builderError := bookkeeping.NewBuilder(testCase.options)
			require.ErrorIs(testInstance, builderError, testCase.expectedError)
		})
	}
}

func TestDescribeBook(testInstance *testing.T) {
	book := &bookkeeping.Book{
		Equivalence: model.Correspondence{InternalRevision: "1000", PublicRevision: "a0"},
		Current:     model.Correspondence{InternalRevision: "1002", PublicRevision: "a2"},
		RevisionsToImport: []model.Revision{
			publicRevision("a1", "Add public helper"),
			publicRevision("a2", "Fix typo\nin docs"),
		},
		RevisionsToExport: []model.Revision{
			internalRevision("1001", "Refactor the storage layer so every caller shares one connection pool"),
		},
	}

	var output bytes.Buffer
	require.NoError(testInstance, book.Describe(&output))

	golden := goldie.New(testInstance, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	golden.Assert(testInstance, "describe_book", output.Bytes())
}
