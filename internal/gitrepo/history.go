package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/repository"
)

const (
	equivalenceNotFoundTemplateConstant = "could not find equivalence in %d revisions of %s"
	walkHistoryErrorTemplateConstant    = "unable to walk history of %s: %w"
	windowWidenedMessageConstant        = "widening history window"
	logFieldWindowConstant              = "window"
)

// RevisionsSinceEquivalence walks history from headRevisionID newest first until a revision
// carries ledger equivalences. The window starts at InitialWindow and doubles up to MaxWindow.
func (gitRepository *Repository) RevisionsSinceEquivalence(executionContext context.Context, headRevisionID string, side model.RepositorySide, finder repository.EquivalenceFinder) ([]model.Revision, []model.Equivalence, error) {
	headCommit, resolveError := gitRepository.resolveCommit(executionContext, headRevisionID)
	if resolveError != nil {
		return nil, nil, resolveError
	}

	window := gitRepository.initialWindow
	walked := make([]model.Revision, 0, window)
	var equivalences []model.Equivalence
	windowExhausted := false

	iterator := object.NewCommitIterCTime(headCommit, nil, nil)
	walkError := iterator.ForEach(func(commit *object.Commit) error {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		if len(walked) >= window {
			if window >= gitRepository.maxWindow {
				windowExhausted = true
				return storer.ErrStop
			}
			window = min(window*2, gitRepository.maxWindow)
			gitRepository.logger.Info(windowWidenedMessageConstant,
				zap.String(logFieldRepositoryConstant, gitRepository.name),
				zap.Int(logFieldWindowConstant, window),
			)
		}

		revision := gitRepository.revisionFromCommit(commit)
		found, findError := finder.FindEquivalences(executionContext, revision, side)
		if findError != nil {
			return findError
		}
		if len(found) > 0 {
			equivalences = found
			return storer.ErrStop
		}
		walked = append(walked, revision)
		return nil
	})
	if walkError != nil && !errors.Is(walkError, storer.ErrStop) {
		return nil, nil, fmt.Errorf(walkHistoryErrorTemplateConstant, gitRepository.name, walkError)
	}
	if len(equivalences) == 0 || windowExhausted {
		return nil, nil, fmt.Errorf(equivalenceNotFoundTemplateConstant, len(walked), gitRepository.name)
	}
	return walked, equivalences, nil
}

func (gitRepository *Repository) revisionFromCommit(commit *object.Commit) model.Revision {
	return model.NewRevision(abbreviate(commit.Hash), gitRepository.name, model.RevisionOptions{
		Changelog: strings.TrimRight(commit.Message, "\n"),
		Author:    commit.Author.Email,
		Time:      commit.Author.When,
	})
}
