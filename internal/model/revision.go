package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	migrationMarkerPrefixConstant        = "MOE_MIGRATION="
	migrationMarkerTemplateConstant      = migrationMarkerPrefixConstant + "%s"
	migrationMarkerPatternConstant       = `MOE_MIGRATION=(\w+)`
	revisionDescriptionTemplateConstant  = "%s@%s"
	changelogSeparatorConstant           = "\n"
	singleRevisionCountConstant          = 1
	migrationMarkerSubmatchCountConstant = 2
)

var migrationMarkerExpression = regexp.MustCompile(migrationMarkerPatternConstant)

// Revision describes one immutable revision of a repository.
type Revision struct {
	ID             string    `json:"rev_id"`
	RepositoryName string    `json:"repository_name"`
	Changelog      string    `json:"changelog,omitempty"`
	ScrubbedLog    string    `json:"scrubbed_log,omitempty"`
	Author         string    `json:"author,omitempty"`
	Time           time.Time `json:"time,omitempty"`
	PreApproved    bool      `json:"pre_approved,omitempty"`
	MigrationID    string    `json:"-"`
}

// RevisionOptions carries the optional attributes of a revision.
type RevisionOptions struct {
	Changelog   string
	ScrubbedLog string
	Author      string
	Time        time.Time
	PreApproved bool
}

// NewRevision builds a revision and extracts any embedded migration marker from its changelog.
func NewRevision(revisionID string, repositoryName string, options RevisionOptions) Revision {
	scrubbedLog := options.ScrubbedLog
	if len(scrubbedLog) == 0 {
		scrubbedLog = options.Changelog
	}
	return Revision{
		ID:             revisionID,
		RepositoryName: repositoryName,
		Changelog:      options.Changelog,
		ScrubbedLog:    scrubbedLog,
		Author:         options.Author,
		Time:           options.Time,
		PreApproved:    options.PreApproved,
		MigrationID:    ParseMigrationMarker(options.Changelog),
	}
}

// SingleScrubbedLog returns the public-safe changelog of the revision.
func (revision Revision) SingleScrubbedLog() string {
	if len(revision.ScrubbedLog) > 0 {
		return revision.ScrubbedLog
	}
	return revision.Changelog
}

// String renders the revision as id@repository.
func (revision Revision) String() string {
	return fmt.Sprintf(revisionDescriptionTemplateConstant, revision.ID, revision.RepositoryName)
}

// ParseMigrationMarker returns the migration identifier embedded in text, or an empty string.
func ParseMigrationMarker(text string) string {
	matches := migrationMarkerExpression.FindStringSubmatch(text)
	if len(matches) < migrationMarkerSubmatchCountConstant {
		return ""
	}
	return matches[1]
}

// FormatMigrationMarker renders the commit message line that identifies a migration.
func FormatMigrationMarker(migrationID string) string {
	return fmt.Sprintf(migrationMarkerTemplateConstant, migrationID)
}

// ConcatenateChangelogs joins the scrubbed logs of revisions into a single changelog.
func ConcatenateChangelogs(revisions []Revision) string {
	if len(revisions) == singleRevisionCountConstant {
		return revisions[0].SingleScrubbedLog()
	}

	var builder strings.Builder
	for revisionIndex, revision := range revisions {
		scrubbedLog := revision.SingleScrubbedLog()
		builder.WriteString(scrubbedLog)
		isLast := revisionIndex == len(revisions)-1
		if !isLast && !strings.HasSuffix(scrubbedLog, changelogSeparatorConstant) {
			builder.WriteString(changelogSeparatorConstant)
		}
		if !isLast {
			builder.WriteString(changelogSeparatorConstant)
		}
	}
	return builder.String()
}

// RevisionIDs extracts identifiers preserving order.
func RevisionIDs(revisions []Revision) []string {
	identifiers := make([]string, 0, len(revisions))
	for _, revision := range revisions {
		identifiers = append(identifiers, revision.ID)
	}
	return identifiers
}
