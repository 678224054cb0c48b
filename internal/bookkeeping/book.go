package bookkeeping

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/temirov/codesync/internal/model"
)

const (
	changelogExcerptLengthConstant = 60
	stateHeaderConstant            = "State"
	internalHeaderConstant         = "Internal revision"
	publicHeaderConstant           = "Public revision"
	directionHeaderConstant        = "Direction"
	revisionHeaderConstant         = "Revision"
	changelogHeaderConstant        = "Changelog"
	equivalenceRowLabelConstant    = "equivalence"
	currentRowLabelConstant        = "current"
	describeErrorTemplateConstant  = "unable to describe book: %w"
	tableSeparatorConstant         = "\n"
)

// Book describes the state of a project: the equivalence both histories share, the current heads,
// migrations that landed since, and revisions still to migrate in replay order.
type Book struct {
	Equivalence       model.Correspondence
	Current           model.Correspondence
	FinishedImports   []model.Migration
	FinishedExports   []model.Migration
	RevisionsToExport []model.Revision
	LastExport        *model.Migration
	RevisionsToImport []model.Revision
	LastImport        *model.Migration
}

// HasPendingRevisions reports whether any direction has revisions to migrate.
func (book *Book) HasPendingRevisions() bool {
	return len(book.RevisionsToExport) > 0 || len(book.RevisionsToImport) > 0
}

// Describe writes the book as two tables: correspondences, then pending revisions.
func (book *Book) Describe(writer io.Writer) error {
	states := table.NewWriter()
	states.AppendHeader(table.Row{stateHeaderConstant, internalHeaderConstant, publicHeaderConstant})
	states.AppendRow(table.Row{equivalenceRowLabelConstant, book.Equivalence.InternalRevision, book.Equivalence.PublicRevision})
	states.AppendRow(table.Row{currentRowLabelConstant, book.Current.InternalRevision, book.Current.PublicRevision})

	pending := table.NewWriter()
	pending.AppendHeader(table.Row{directionHeaderConstant, revisionHeaderConstant, changelogHeaderConstant})
	for _, revision := range book.RevisionsToImport {
		pending.AppendRow(table.Row{string(model.MigrationDirectionImport), revision.ID, changelogExcerpt(revision)})
	}
	for _, revision := range book.RevisionsToExport {
		pending.AppendRow(table.Row{string(model.MigrationDirectionExport), revision.ID, changelogExcerpt(revision)})
	}

	if _, writeError := io.WriteString(writer, states.Render()+tableSeparatorConstant+pending.Render()+tableSeparatorConstant); writeError != nil {
		return fmt.Errorf(describeErrorTemplateConstant, writeError)
	}
	return nil
}

func changelogExcerpt(revision model.Revision) string {
	excerpt := revision.SingleScrubbedLog()
	if runes := []rune(excerpt); len(runes) > changelogExcerptLengthConstant {
		excerpt = string(runes[:changelogExcerptLengthConstant])
	}
	return strings.TrimSpace(strings.ReplaceAll(excerpt, "\n", " "))
}
