package project

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/translate"
	pathutils "github.com/temirov/codesync/internal/utils/path"
)

const (
	repositoryTypeGitConstant            = "git"
	defaultBranchConstant                = "master"
	internalRepositoryNameSuffixConstant = "_internal"
	publicRepositoryNameSuffixConstant   = "_public"
	fieldPathConstant                    = "path"
	fieldNameConstant                    = "name"
	fieldInternalRepositoryConstant      = "internal_repository"
	fieldPublicRepositoryConstant        = "public_repository"
	fieldTypeSuffixConstant              = ".type"
	fieldURLSuffixConstant               = ".url"
	fieldAdditionalFilesSuffixConstant   = ".additional_files_re"
	fieldNoisyFilesConstant              = "noisy_files_re"
	fieldTranslatorsTemplateConstant     = "translators[%d]"
	fieldImportStrategyConstant          = "import_strategy"
	fieldExportStrategyConstant          = "export_strategy"
	fieldMergeStrategySuffixConstant     = ".merge_strategy"
	fieldCommitStrategySuffixConstant    = ".commit_strategy"
	fieldFromProjectSpaceSuffixConstant  = ".from_project_space"
	fieldToProjectSpaceSuffixConstant    = ".to_project_space"
	invalidFieldTemplateConstant         = "%s: %s"
	pathRequiredMessageConstant          = "project configuration path must be provided"
	nameRequiredMessageConstant          = "project name must be provided"
	urlRequiredMessageConstant           = "repository url must be provided"
	unsupportedTypeTemplateConstant      = "unsupported repository type %q"
	invalidPatternTemplateConstant       = "invalid pattern: %v"
	invalidProjectSpaceTemplateConstant  = "unsupported project space %q"
	loadErrorTemplateConstant            = "unable to read project configuration: %w"
	parseErrorTemplateConstant           = "unable to parse project configuration: %w"
)

// Config is the project configuration document as written on disk.
type Config struct {
	Name                    string             `yaml:"name"`
	InternalRepository      RepositoryConfig   `yaml:"internal_repository"`
	PublicRepository        RepositoryConfig   `yaml:"public_repository"`
	Translators             []TranslatorConfig `yaml:"translators"`
	NoisyFilesRE            string             `yaml:"noisy_files_re"`
	LedgerURL               string             `yaml:"moe_db_url"`
	Owners                  []string           `yaml:"owners"`
	ManualEquivalenceDeltas bool               `yaml:"manual_equivalence_deltas"`
	ImportStrategy          StrategyConfig     `yaml:"import_strategy"`
	ExportStrategy          StrategyConfig     `yaml:"export_strategy"`
}

// RepositoryConfig describes one side of the project.
type RepositoryConfig struct {
	Type              string `yaml:"type"`
	URL               string `yaml:"url"`
	Branch            string `yaml:"branch"`
	AdditionalFilesRE string `yaml:"additional_files_re"`
}

// TranslatorConfig describes one translator between project spaces.
type TranslatorConfig struct {
	Type             string         `yaml:"type"`
	FromProjectSpace string         `yaml:"from_project_space"`
	ToProjectSpace   string         `yaml:"to_project_space"`
	Options          map[string]any `yaml:"with"`
}

// StrategyConfig describes how one direction migrates.
type StrategyConfig struct {
	MergeStrategy              string `yaml:"merge_strategy"`
	CommitStrategy             string `yaml:"commit_strategy"`
	SeparateRevisions          bool   `yaml:"separate_revisions"`
	CopyMetadata               bool   `yaml:"copy_metadata"`
	PreapprovePublicChangelogs bool   `yaml:"preapprove_public_changelogs"`
}

// InvalidConfigurationError reports a configuration field that failed validation.
type InvalidConfigurationError struct {
	FieldName string
	Message   string
}

// Error describes the invalid field.
func (configurationError InvalidConfigurationError) Error() string {
	return fmt.Sprintf(invalidFieldTemplateConstant, configurationError.FieldName, configurationError.Message)
}

// Load reads a project configuration file and validates it.
func Load(filePath string, expander *pathutils.HomeExpander) (*Project, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return nil, InvalidConfigurationError{FieldName: fieldPathConstant, Message: pathRequiredMessageConstant}
	}
	contents, readError := os.ReadFile(expander.Expand(trimmedPath))
	if readError != nil {
		return nil, fmt.Errorf(loadErrorTemplateConstant, readError)
	}
	return Parse(contents, expander)
}

// Parse decodes a project configuration document and validates it.
func Parse(contents []byte, expander *pathutils.HomeExpander) (*Project, error) {
	var configuration Config
	if unmarshalError := yaml.Unmarshal(contents, &configuration); unmarshalError != nil {
		return nil, fmt.Errorf(parseErrorTemplateConstant, unmarshalError)
	}
	return configuration.Validate(expander)
}

// Validate checks the configuration and compiles it into a Project.
func (configuration Config) Validate(expander *pathutils.HomeExpander) (*Project, error) {
	name := strings.TrimSpace(configuration.Name)
	if len(name) == 0 {
		return nil, InvalidConfigurationError{FieldName: fieldNameConstant, Message: nameRequiredMessageConstant}
	}

	internalRepository, internalError := configuration.InternalRepository.validate(fieldInternalRepositoryConstant, name+internalRepositoryNameSuffixConstant, expander)
	if internalError != nil {
		return nil, internalError
	}
	publicRepository, publicError := configuration.PublicRepository.validate(fieldPublicRepositoryConstant, name+publicRepositoryNameSuffixConstant, expander)
	if publicError != nil {
		return nil, publicError
	}

	noisyFilesPattern, noisyError := codebase.CompilePattern(configuration.NoisyFilesRE)
	if noisyError != nil {
		return nil, InvalidConfigurationError{FieldName: fieldNoisyFilesConstant, Message: fmt.Sprintf(invalidPatternTemplateConstant, noisyError)}
	}

	translators := make([]translate.Definition, 0, len(configuration.Translators))
	for translatorIndex, translatorConfig := range configuration.Translators {
		definition, translatorError := translatorConfig.validate(fmt.Sprintf(fieldTranslatorsTemplateConstant, translatorIndex))
		if translatorError != nil {
			return nil, translatorError
		}
		translators = append(translators, definition)
	}

	importStrategy, importError := configuration.ImportStrategy.validate(fieldImportStrategyConstant, model.MergeStrategyMerge)
	if importError != nil {
		return nil, importError
	}
	exportStrategy, exportError := configuration.ExportStrategy.validate(fieldExportStrategyConstant, model.MergeStrategyOverwrite)
	if exportError != nil {
		return nil, exportError
	}

	return &Project{
		Name:                    name,
		Internal:                internalRepository,
		Public:                  publicRepository,
		Translators:             translators,
		NoisyFilesPattern:       noisyFilesPattern,
		LedgerURL:               expander.Expand(strings.TrimSpace(configuration.LedgerURL)),
		Owners:                  configuration.Owners,
		ManualEquivalenceDeltas: configuration.ManualEquivalenceDeltas,
		ImportStrategy:          importStrategy,
		ExportStrategy:          exportStrategy,
	}, nil
}

func (repositoryConfig RepositoryConfig) validate(fieldName string, repositoryName string, expander *pathutils.HomeExpander) (Repository, error) {
	repositoryType := strings.ToLower(strings.TrimSpace(repositoryConfig.Type))
	if len(repositoryType) == 0 {
		repositoryType = repositoryTypeGitConstant
	}
	if repositoryType != repositoryTypeGitConstant {
		return Repository{}, InvalidConfigurationError{FieldName: fieldName + fieldTypeSuffixConstant, Message: fmt.Sprintf(unsupportedTypeTemplateConstant, repositoryConfig.Type)}
	}
	url := strings.TrimSpace(repositoryConfig.URL)
	if len(url) == 0 {
		return Repository{}, InvalidConfigurationError{FieldName: fieldName + fieldURLSuffixConstant, Message: urlRequiredMessageConstant}
	}
	additionalFilesPattern, patternError := codebase.CompilePattern(repositoryConfig.AdditionalFilesRE)
	if patternError != nil {
		return Repository{}, InvalidConfigurationError{FieldName: fieldName + fieldAdditionalFilesSuffixConstant, Message: fmt.Sprintf(invalidPatternTemplateConstant, patternError)}
	}
	branch := strings.TrimSpace(repositoryConfig.Branch)
	if len(branch) == 0 {
		branch = defaultBranchConstant
	}
	return Repository{
		Name:                   repositoryName,
		Type:                   repositoryType,
		URL:                    expander.Expand(url),
		Branch:                 branch,
		AdditionalFilesPattern: additionalFilesPattern,
	}, nil
}

func (translatorConfig TranslatorConfig) validate(fieldName string) (translate.Definition, error) {
	fromProjectSpace, fromError := parseProjectSpace(fieldName+fieldFromProjectSpaceSuffixConstant, translatorConfig.FromProjectSpace)
	if fromError != nil {
		return translate.Definition{}, fromError
	}
	toProjectSpace, toError := parseProjectSpace(fieldName+fieldToProjectSpaceSuffixConstant, translatorConfig.ToProjectSpace)
	if toError != nil {
		return translate.Definition{}, toError
	}
	return translate.Definition{
		Type:             translatorConfig.Type,
		FromProjectSpace: fromProjectSpace,
		ToProjectSpace:   toProjectSpace,
		Options:          translatorConfig.Options,
	}, nil
}

func (strategyConfig StrategyConfig) validate(fieldName string, defaultMergeStrategy model.MergeStrategy) (model.MigrationStrategy, error) {
	mergeStrategy := defaultMergeStrategy
	if len(strings.TrimSpace(strategyConfig.MergeStrategy)) > 0 {
		parsed, parseError := model.ParseMergeStrategy(strategyConfig.MergeStrategy)
		if parseError != nil {
			return model.MigrationStrategy{}, InvalidConfigurationError{FieldName: fieldName + fieldMergeStrategySuffixConstant, Message: parseError.Error()}
		}
		mergeStrategy = parsed
	}
	commitStrategy := model.CommitStrategyLeavePending
	if len(strings.TrimSpace(strategyConfig.CommitStrategy)) > 0 {
		parsed, parseError := model.ParseCommitStrategy(strategyConfig.CommitStrategy)
		if parseError != nil {
			return model.MigrationStrategy{}, InvalidConfigurationError{FieldName: fieldName + fieldCommitStrategySuffixConstant, Message: parseError.Error()}
		}
		commitStrategy = parsed
	}
	return model.MigrationStrategy{
		MergeStrategy:              mergeStrategy,
		CommitStrategy:             commitStrategy,
		SeparateRevisions:          strategyConfig.SeparateRevisions,
		CopyMetadata:               strategyConfig.CopyMetadata,
		PreapprovePublicChangelogs: strategyConfig.PreapprovePublicChangelogs,
	}, nil
}

func parseProjectSpace(fieldName string, value string) (model.ProjectSpace, error) {
	switch projectSpace := model.ProjectSpace(strings.ToLower(strings.TrimSpace(value))); projectSpace {
	case model.ProjectSpaceInternal, model.ProjectSpacePublic:
		return projectSpace, nil
	default:
		return "", InvalidConfigurationError{FieldName: fieldName, Message: fmt.Sprintf(invalidProjectSpaceTemplateConstant, value)}
	}
}
