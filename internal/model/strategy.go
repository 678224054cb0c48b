package model

import (
	"fmt"
	"strings"
)

const (
	unsupportedMergeStrategyTemplateConstant  = "unsupported merge strategy: %s"
	unsupportedCommitStrategyTemplateConstant = "unsupported commit strategy: %s"
)

// MergeStrategy selects how a migrated tree is reconciled with its destination.
type MergeStrategy string

// Supported merge strategies.
const (
	MergeStrategyError     MergeStrategy = MergeStrategy("error")
	MergeStrategyOverwrite MergeStrategy = MergeStrategy("overwrite")
	MergeStrategyMerge     MergeStrategy = MergeStrategy("merge")
)

// CommitStrategy selects whether and where a reconciled tree is committed.
type CommitStrategy string

// Supported commit strategies.
const (
	CommitStrategyLeavePending   CommitStrategy = CommitStrategy("leave_pending")
	CommitStrategyCommitLocally  CommitStrategy = CommitStrategy("commit_locally")
	CommitStrategyCommitRemotely CommitStrategy = CommitStrategy("commit_remotely")
)

// ParseMergeStrategy validates a textual merge strategy.
func ParseMergeStrategy(value string) (MergeStrategy, error) {
	normalized := MergeStrategy(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case MergeStrategyError, MergeStrategyOverwrite, MergeStrategyMerge:
		return normalized, nil
	default:
		return "", fmt.Errorf(unsupportedMergeStrategyTemplateConstant, value)
	}
}

// ParseCommitStrategy validates a textual commit strategy.
func ParseCommitStrategy(value string) (CommitStrategy, error) {
	normalized := CommitStrategy(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case CommitStrategyLeavePending, CommitStrategyCommitLocally, CommitStrategyCommitRemotely:
		return normalized, nil
	default:
		return "", fmt.Errorf(unsupportedCommitStrategyTemplateConstant, value)
	}
}

// MigrationStrategy configures one migration direction.
type MigrationStrategy struct {
	MergeStrategy              MergeStrategy
	CommitStrategy             CommitStrategy
	SeparateRevisions          bool
	CopyMetadata               bool
	PreapprovePublicChangelogs bool
}
