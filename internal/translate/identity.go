package translate

import (
	"context"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
)

// IdentityTranslator relabels a codebase whose layout is identical in both project spaces.
type IdentityTranslator struct {
	fromProjectSpace model.ProjectSpace
	toProjectSpace   model.ProjectSpace
}

// NewIdentityTranslator constructs an IdentityTranslator.
func NewIdentityTranslator(fromProjectSpace model.ProjectSpace, toProjectSpace model.ProjectSpace) *IdentityTranslator {
	return &IdentityTranslator{fromProjectSpace: fromProjectSpace, toProjectSpace: toProjectSpace}
}

// FromProjectSpace implements Translator.
func (translator *IdentityTranslator) FromProjectSpace() model.ProjectSpace {
	return translator.fromProjectSpace
}

// ToProjectSpace implements Translator.
func (translator *IdentityTranslator) ToProjectSpace() model.ProjectSpace {
	return translator.toProjectSpace
}

// Translate shares the source tree under the destination project space.
func (translator *IdentityTranslator) Translate(_ context.Context, source *codebase.Codebase) (*codebase.Codebase, error) {
	if verificationError := verifySourceSpace(source, translator.fromProjectSpace); verificationError != nil {
		return nil, verificationError
	}
	return source.InProjectSpace(translator.toProjectSpace), nil
}
