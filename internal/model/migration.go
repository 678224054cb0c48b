package model

import (
	"fmt"
	"strings"
)

const (
	unsupportedDirectionTemplateConstant = "unsupported migration direction: %s"
	unsupportedStatusTemplateConstant    = "unsupported migration status: %s"
)

// MigrationDirection identifies which way a migration moves changes.
type MigrationDirection string

// Supported migration directions.
const (
	MigrationDirectionImport MigrationDirection = MigrationDirection("import")
	MigrationDirectionExport MigrationDirection = MigrationDirection("export")
)

// ParseMigrationDirection validates a textual direction.
func ParseMigrationDirection(value string) (MigrationDirection, error) {
	switch MigrationDirection(strings.ToLower(strings.TrimSpace(value))) {
	case MigrationDirectionImport:
		return MigrationDirectionImport, nil
	case MigrationDirectionExport:
		return MigrationDirectionExport, nil
	default:
		return "", fmt.Errorf(unsupportedDirectionTemplateConstant, value)
	}
}

// SourceSide returns the repository side revisions are read from.
func (direction MigrationDirection) SourceSide() RepositorySide {
	if direction == MigrationDirectionImport {
		return RepositorySidePublic
	}
	return RepositorySideInternal
}

// MigrationStatus tracks the ledger lifecycle of a migration.
type MigrationStatus string

// Migration statuses. Submitted and Canceled are terminal.
const (
	MigrationStatusPending   MigrationStatus = MigrationStatus("Pending")
	MigrationStatusApproved  MigrationStatus = MigrationStatus("Approved")
	MigrationStatusSubmitted MigrationStatus = MigrationStatus("Submitted")
	MigrationStatusCanceled  MigrationStatus = MigrationStatus("Canceled")
)

// ParseMigrationStatus validates a textual status.
func ParseMigrationStatus(value string) (MigrationStatus, error) {
	for _, status := range []MigrationStatus{MigrationStatusPending, MigrationStatusApproved, MigrationStatusSubmitted, MigrationStatusCanceled} {
		if strings.EqualFold(string(status), strings.TrimSpace(value)) {
			return status, nil
		}
	}
	return "", fmt.Errorf(unsupportedStatusTemplateConstant, value)
}

// IsTerminal reports whether no further transitions are possible.
func (status MigrationStatus) IsTerminal() bool {
	return status == MigrationStatusSubmitted || status == MigrationStatusCanceled
}

// Migration is a ledger record of a batch of revisions moving between repositories.
type Migration struct {
	ID           string             `json:"migration_id"`
	Direction    MigrationDirection `json:"direction"`
	Status       MigrationStatus    `json:"status"`
	UpToRevision Revision           `json:"up_to_revision"`
	SubmittedAs  *Revision          `json:"submitted_as,omitempty"`
	Changelog    string             `json:"changelog,omitempty"`
	Diff         string             `json:"diff,omitempty"`
	Link         string             `json:"link,omitempty"`
	Revisions    []Revision         `json:"migrated_revisions,omitempty"`
}
