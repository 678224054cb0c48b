// Package translate converts codebases between project spaces.
package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
)

const (
	noTranslatorMessageConstant           = "no translator configured"
	noTranslatorTemplateConstant          = "no translator from %s to %s"
	wrongSourceSpaceTemplateConstant      = "cannot translate %s from %s: codebase is in project space %s"
	translatorTypeIdentityConstant        = "identity"
	translatorTypeScrubberConstant        = "scrubber"
	unsupportedTranslatorTemplateConstant = "unsupported translator type: %s"
)

// ErrNoTranslator indicates that no configured translator connects two project spaces.
var ErrNoTranslator = errors.New(noTranslatorMessageConstant)

// Translator rewrites a codebase from one project space into another.
type Translator interface {
	FromProjectSpace() model.ProjectSpace
	ToProjectSpace() model.ProjectSpace
	Translate(executionContext context.Context, source *codebase.Codebase) (*codebase.Codebase, error)
}

// TranslateToProjectSpace returns source unchanged when it already follows projectSpace,
// otherwise the result of the first translator connecting the two spaces.
func TranslateToProjectSpace(executionContext context.Context, source *codebase.Codebase, projectSpace model.ProjectSpace, translators []Translator) (*codebase.Codebase, error) {
	if source.ProjectSpace() == projectSpace {
		return source, nil
	}
	for _, translator := range translators {
		if translator.FromProjectSpace() == source.ProjectSpace() && translator.ToProjectSpace() == projectSpace {
			return translator.Translate(executionContext, source)
		}
	}
	return nil, fmt.Errorf("%w: "+noTranslatorTemplateConstant, ErrNoTranslator, source.ProjectSpace(), projectSpace)
}

func verifySourceSpace(source *codebase.Codebase, fromProjectSpace model.ProjectSpace) error {
	if source.ProjectSpace() != fromProjectSpace {
		return fmt.Errorf(wrongSourceSpaceTemplateConstant, source, fromProjectSpace, source.ProjectSpace())
	}
	return nil
}
