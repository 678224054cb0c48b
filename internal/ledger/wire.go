package ledger

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/temirov/codesync/internal/model"
)

const (
	wireTimeLayoutConstant = "2006-01-02 15:04:05"
)

// flexibleString accepts JSON strings and numbers, since ledger services report ids either way.
type flexibleString string

// UnmarshalJSON decodes a string or a number.
func (value *flexibleString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*value = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if decodeError := json.Unmarshal(trimmed, &text); decodeError != nil {
			return decodeError
		}
		*value = flexibleString(text)
		return nil
	}
	var number json.Number
	if decodeError := json.Unmarshal(trimmed, &number); decodeError != nil {
		return decodeError
	}
	*value = flexibleString(number.String())
	return nil
}

type revisionPayload struct {
	RevisionID     flexibleString `json:"rev_id"`
	RepositoryName string         `json:"repository_name,omitempty"`
	Author         string         `json:"author,omitempty"`
	Time           string         `json:"time,omitempty"`
	Changelog      string         `json:"changelog,omitempty"`
}

type equivalencePayload struct {
	InternalRevision   revisionPayload `json:"internal_revision"`
	PublicRevision     revisionPayload `json:"public_revision"`
	VerificationStatus *int            `json:"verification_status,omitempty"`
}

type migrationPayload struct {
	MigrationID  flexibleString    `json:"migration_id"`
	Direction    string            `json:"direction"`
	Status       string            `json:"status"`
	UpToRevision revisionPayload   `json:"up_to_revision"`
	SubmittedAs  *revisionPayload  `json:"submitted_as"`
	Changelog    string            `json:"changelog"`
	Diff         string            `json:"diff"`
	Link         string            `json:"link"`
	Revisions    []revisionPayload `json:"revisions"`
}

type processPayload struct {
	ProcessID string `json:"process_id"`
	Running   bool   `json:"running"`
	StartTime string `json:"start_time"`
	LastSeen  string `json:"last_seen"`
	EndTime   string `json:"end_time"`
}

type equivalencesEnvelope struct {
	Equivalences []equivalencePayload `json:"equivalences"`
}

type migrationEnvelope struct {
	Migration *migrationPayload `json:"migration"`
}

type revisionsEnvelope struct {
	Revisions []revisionPayload `json:"revisions"`
}

type startMigrationResult struct {
	MigrationID flexibleString `json:"migration_id"`
}

func encodeRevision(revision model.Revision) revisionPayload {
	payload := revisionPayload{
		RevisionID:     flexibleString(revision.ID),
		RepositoryName: revision.RepositoryName,
		Author:         revision.Author,
	}
	if !revision.Time.IsZero() {
		payload.Time = revision.Time.UTC().Format(wireTimeLayoutConstant)
	}
	return payload
}

func encodeRevisionJSON(revision model.Revision) string {
	encoded, _ := json.Marshal(encodeRevision(revision))
	return string(encoded)
}

func encodeRevisionsJSON(revisions []model.Revision) string {
	payloads := make([]revisionPayload, 0, len(revisions))
	for _, revision := range revisions {
		payloads = append(payloads, encodeRevision(revision))
	}
	encoded, _ := json.Marshal(payloads)
	return string(encoded)
}

func decodeRevision(payload revisionPayload) model.Revision {
	return model.NewRevision(string(payload.RevisionID), payload.RepositoryName, model.RevisionOptions{
		Author:    payload.Author,
		Time:      parseWireTime(payload.Time),
		Changelog: payload.Changelog,
	})
}

func decodeRevisions(payloads []revisionPayload) []model.Revision {
	revisions := make([]model.Revision, 0, len(payloads))
	for _, payload := range payloads {
		revisions = append(revisions, decodeRevision(payload))
	}
	return revisions
}

func decodeEquivalences(payloads []equivalencePayload) []model.Equivalence {
	equivalences := make([]model.Equivalence, 0, len(payloads))
	for _, payload := range payloads {
		equivalence := model.Equivalence{Correspondence: model.Correspondence{
			InternalRevision: string(payload.InternalRevision.RevisionID),
			PublicRevision:   string(payload.PublicRevision.RevisionID),
		}}
		if payload.VerificationStatus != nil {
			equivalence.VerificationStatus = model.VerificationStatus(*payload.VerificationStatus)
		}
		equivalences = append(equivalences, equivalence)
	}
	return equivalences
}

func decodeMigration(payload *migrationPayload) *model.Migration {
	if payload == nil || len(payload.MigrationID) == 0 {
		return nil
	}
	migration := &model.Migration{
		ID:           string(payload.MigrationID),
		Direction:    model.MigrationDirection(payload.Direction),
		Status:       model.MigrationStatus(payload.Status),
		UpToRevision: decodeRevision(payload.UpToRevision),
		Changelog:    payload.Changelog,
		Diff:         payload.Diff,
		Link:         payload.Link,
		Revisions:    decodeRevisions(payload.Revisions),
	}
	if direction, directionError := model.ParseMigrationDirection(payload.Direction); directionError == nil {
		migration.Direction = direction
	}
	if status, statusError := model.ParseMigrationStatus(payload.Status); statusError == nil {
		migration.Status = status
	}
	if payload.SubmittedAs != nil && len(payload.SubmittedAs.RevisionID) > 0 {
		submittedAs := decodeRevision(*payload.SubmittedAs)
		migration.SubmittedAs = &submittedAs
	}
	return migration
}

func decodeProcess(payload *processPayload) *Process {
	if payload == nil || len(payload.ProcessID) == 0 {
		return nil
	}
	return &Process{
		ProcessID:  payload.ProcessID,
		Running:    payload.Running,
		StartedAt:  parseWireTime(payload.StartTime),
		LastSeenAt: parseWireTime(payload.LastSeen),
		EndedAt:    parseWireTime(payload.EndTime),
	}
}

func parseWireTime(value string) time.Time {
	if len(value) == 0 {
		return time.Time{}
	}
	for _, layout := range []string{wireTimeLayoutConstant, time.RFC3339Nano} {
		if parsed, parseError := time.Parse(layout, value); parseError == nil {
			return parsed
		}
	}
	return time.Time{}
}

func formatInteger(value int) string {
	return strconv.Itoa(value)
}
