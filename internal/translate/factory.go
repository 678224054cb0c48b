package translate

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/temirov/codesync/internal/model"
)

const (
	decodeOptionsErrorTemplateConstant = "unable to decode %s translator options: %w"
)

// Definition describes one configured translator.
type Definition struct {
	Type             string
	FromProjectSpace model.ProjectSpace
	ToProjectSpace   model.ProjectSpace
	Options          map[string]any
}

// Dependencies carries the collaborators translators may need.
type Dependencies struct {
	Executor      CommandExecutor
	TemporaryRoot string
	Logger        *zap.Logger
}

// Build constructs the translators described by definitions in order.
func Build(definitions []Definition, dependencies Dependencies) ([]Translator, error) {
	translators := make([]Translator, 0, len(definitions))
	for _, definition := range definitions {
		translator, buildError := buildTranslator(definition, dependencies)
		if buildError != nil {
			return nil, buildError
		}
		translators = append(translators, translator)
	}
	return translators, nil
}

func buildTranslator(definition Definition, dependencies Dependencies) (Translator, error) {
	translatorType := strings.ToLower(strings.TrimSpace(definition.Type))
	switch translatorType {
	case translatorTypeIdentityConstant, "":
		return NewIdentityTranslator(definition.FromProjectSpace, definition.ToProjectSpace), nil
	case translatorTypeScrubberConstant:
		var options ScrubberOptions
		decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &options,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if decoderError != nil {
			return nil, fmt.Errorf(decodeOptionsErrorTemplateConstant, translatorType, decoderError)
		}
		if decodeError := decoder.Decode(definition.Options); decodeError != nil {
			return nil, fmt.Errorf(decodeOptionsErrorTemplateConstant, translatorType, decodeError)
		}
		scrubber, scrubberError := NewScrubberTranslator(definition.FromProjectSpace, definition.ToProjectSpace, options, dependencies.Executor, dependencies.TemporaryRoot, dependencies.Logger)
		if scrubberError != nil {
			return nil, scrubberError
		}
		return scrubber, nil
	default:
		return nil, fmt.Errorf(unsupportedTranslatorTemplateConstant, definition.Type)
	}
}
