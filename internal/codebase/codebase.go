package codebase

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/temirov/codesync/internal/model"
)

const (
	invalidPatternTemplateConstant      = "invalid file pattern %q: %w"
	codebaseDescriptionTemplateConstant = "%s codebase at %s"
)

// Options carries the optional attributes of a codebase.
type Options struct {
	AdditionalFilesPattern *regexp.Regexp
	RevisionID             string
}

// Codebase is a directory holding the state of a project at one revision.
type Codebase struct {
	root                   string
	projectSpace           model.ProjectSpace
	additionalFilesPattern *regexp.Regexp
	revisionID             string
}

// New describes the tree rooted at root.
func New(root string, projectSpace model.ProjectSpace, options Options) *Codebase {
	return &Codebase{
		root:                   filepath.Clean(root),
		projectSpace:           projectSpace,
		additionalFilesPattern: options.AdditionalFilesPattern,
		revisionID:             options.RevisionID,
	}
}

// CompilePattern compiles an optional file pattern. A blank expression yields nil.
func CompilePattern(expression string) (*regexp.Regexp, error) {
	trimmedExpression := strings.TrimSpace(expression)
	if len(trimmedExpression) == 0 {
		return nil, nil
	}
	compiledPattern, compileError := regexp.Compile(trimmedExpression)
	if compileError != nil {
		return nil, fmt.Errorf(invalidPatternTemplateConstant, trimmedExpression, compileError)
	}
	return compiledPattern, nil
}

// Root returns the directory holding the codebase.
func (codebase *Codebase) Root() string {
	return codebase.root
}

// ProjectSpace returns the conventions the codebase follows.
func (codebase *Codebase) ProjectSpace() model.ProjectSpace {
	return codebase.projectSpace
}

// AdditionalFilesPattern returns the pattern of files extraneous to this codebase, or nil.
func (codebase *Codebase) AdditionalFilesPattern() *regexp.Regexp {
	return codebase.additionalFilesPattern
}

// RevisionID returns the revision the codebase was created at.
func (codebase *Codebase) RevisionID() string {
	return codebase.revisionID
}

// Walk lists the relative file names of the codebase, excluding additional files.
func (codebase *Codebase) Walk() ([]string, error) {
	return ListFiles(codebase.root, codebase.additionalFilesPattern)
}

// FilePath resolves a relative file name inside the codebase.
func (codebase *Codebase) FilePath(relativeFileName string) string {
	return filepath.Join(codebase.root, filepath.FromSlash(relativeFileName))
}

// InProjectSpace returns a codebase sharing the same tree but tagged with another project space.
func (codebase *Codebase) InProjectSpace(projectSpace model.ProjectSpace) *Codebase {
	duplicatedCodebase := *codebase
	duplicatedCodebase.projectSpace = projectSpace
	return &duplicatedCodebase
}

// String describes the codebase for logs and reports.
func (codebase *Codebase) String() string {
	return fmt.Sprintf(codebaseDescriptionTemplateConstant, codebase.projectSpace, codebase.root)
}
