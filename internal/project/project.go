package project

import (
	"regexp"

	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/translate"
)

// Repository is a validated repository definition.
type Repository struct {
	Name                   string
	Type                   string
	URL                    string
	Branch                 string
	AdditionalFilesPattern *regexp.Regexp
}

// Project is a validated project configuration.
type Project struct {
	Name                    string
	Internal                Repository
	Public                  Repository
	Translators             []translate.Definition
	NoisyFilesPattern       *regexp.Regexp
	LedgerURL               string
	Owners                  []string
	ManualEquivalenceDeltas bool
	ImportStrategy          model.MigrationStrategy
	ExportStrategy          model.MigrationStrategy
}

// Strategy returns the configured strategy of direction.
func (project *Project) Strategy(direction model.MigrationDirection) model.MigrationStrategy {
	if direction == model.MigrationDirectionImport {
		return project.ImportStrategy
	}
	return project.ExportStrategy
}

// RepositoryFor returns the repository definition of side.
func (project *Project) RepositoryFor(side model.RepositorySide) Repository {
	if side == model.RepositorySidePublic {
		return project.Public
	}
	return project.Internal
}
