// Package testsupport provides in-memory repository backends for tests.
package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/temirov/codesync/internal/codebase"
	"github.com/temirov/codesync/internal/model"
	"github.com/temirov/codesync/internal/repository"
)

const (
	unknownRevisionTemplateConstant   = "unknown revision %q in %s"
	noEquivalenceTemplateConstant     = "no equivalence found in %s history"
	pendingChangeTodoTemplateConstant = "Commit the change in %s"
	executableFilePermissionsConstant = 0o755
	regularFilePermissionsConstant    = 0o644
)

// TreeFile describes one file of a stubbed tree.
type TreeFile struct {
	Contents   string
	Executable bool
}

// Tree maps relative paths to files.
type Tree map[string]TreeFile

// WriteTree materializes tree below directory.
func WriteTree(directory string, tree Tree) error {
	for relativeFileName, file := range tree {
		targetPath := filepath.Join(directory, filepath.FromSlash(relativeFileName))
		if mkdirError := os.MkdirAll(filepath.Dir(targetPath), executableFilePermissionsConstant); mkdirError != nil {
			return mkdirError
		}
		permissions := os.FileMode(regularFilePermissionsConstant)
		if file.Executable {
			permissions = executableFilePermissionsConstant
		}
		if writeError := os.WriteFile(targetPath, []byte(file.Contents), permissions); writeError != nil {
			return writeError
		}
		if chmodError := os.Chmod(targetPath, permissions); chmodError != nil {
			return chmodError
		}
	}
	return nil
}

// RepositoryStub serves trees and history from memory.
type RepositoryStub struct {
	RepositoryName string
	HeadRevision   string
	// History lists revisions newest first.
	History           []model.Revision
	Trees             map[string]Tree
	ExportErrors      map[string]error
	Editor            repository.Editor
	ExportedRevisions []string
	EditorRevisions   [][]model.Revision
	EditorStrategies  []model.MigrationStrategy
}

// Name returns the configured repository name.
func (stub *RepositoryStub) Name() string {
	return stub.RepositoryName
}

// Export writes the stubbed tree of revisionID.
func (stub *RepositoryStub) Export(_ context.Context, directory string, revisionID string) error {
	if revisionID == repository.HeadRevisionIdentifier {
		revisionID = stub.HeadRevision
	}
	stub.ExportedRevisions = append(stub.ExportedRevisions, revisionID)
	if exportError, exists := stub.ExportErrors[revisionID]; exists {
		return exportError
	}
	tree, exists := stub.Trees[revisionID]
	if !exists {
		return fmt.Errorf(unknownRevisionTemplateConstant, revisionID, stub.RepositoryName)
	}
	return WriteTree(directory, tree)
}

// GetHeadRevision returns maxRevisionID when set, otherwise the configured head.
func (stub *RepositoryStub) GetHeadRevision(_ context.Context, maxRevisionID string) (string, error) {
	if len(maxRevisionID) > 0 {
		return maxRevisionID, nil
	}
	return stub.HeadRevision, nil
}

// RevisionsSinceEquivalence walks History from headRevisionID until finder reports equivalences.
func (stub *RepositoryStub) RevisionsSinceEquivalence(executionContext context.Context, headRevisionID string, side model.RepositorySide, finder repository.EquivalenceFinder) ([]model.Revision, []model.Equivalence, error) {
	started := false
	walked := make([]model.Revision, 0, len(stub.History))
	for _, revision := range stub.History {
		if !started && revision.ID != headRevisionID {
			continue
		}
		started = true
		equivalences, findError := finder.FindEquivalences(executionContext, revision, side)
		if findError != nil {
			return nil, nil, findError
		}
		if len(equivalences) > 0 {
			return walked, equivalences, nil
		}
		walked = append(walked, revision)
	}
	return nil, nil, fmt.Errorf(noEquivalenceTemplateConstant, stub.RepositoryName)
}

// MakeRevisionFromID returns the history entry with revisionID or a bare revision.
func (stub *RepositoryStub) MakeRevisionFromID(revisionID string) model.Revision {
	for _, revision := range stub.History {
		if revision.ID == revisionID {
			return revision
		}
	}
	return model.NewRevision(revisionID, stub.RepositoryName, model.RevisionOptions{})
}

// MakeEditor returns the configured editor.
func (stub *RepositoryStub) MakeEditor(_ context.Context, strategy model.MigrationStrategy, revisions []model.Revision) (repository.Editor, error) {
	stub.EditorRevisions = append(stub.EditorRevisions, revisions)
	stub.EditorStrategies = append(stub.EditorStrategies, strategy)
	if editorStub, isStub := stub.Editor.(*EditorStub); isStub {
		editorStub.Strategy = strategy
	}
	return stub.Editor, nil
}

// EditorStub is a directory-backed editor that commits by returning CommitID.
// LeavePending holds changes back unless the editor was made for CommitRemotely.
type EditorStub struct {
	Directory         string
	InitialTree       Tree
	CommitID          string
	LeavePending      bool
	Strategy          model.MigrationStrategy
	Checkouts         int
	PutFiles          []string
	FinalizedMessages []string
	DiffText          string
	LinkText          string
	modified          bool
	touched           bool
}

// Root returns the editor directory.
func (editor *EditorStub) Root() string {
	return editor.Directory
}

// Checkout writes InitialTree into the editor directory.
func (editor *EditorStub) Checkout(_ context.Context) error {
	editor.Checkouts++
	if mkdirError := os.MkdirAll(editor.Directory, executableFilePermissionsConstant); mkdirError != nil {
		return mkdirError
	}
	return WriteTree(editor.Directory, editor.InitialTree)
}

// Walk lists the editor files.
func (editor *EditorStub) Walk() ([]string, error) {
	return codebase.ListFiles(editor.Directory, nil)
}

// PutFile copies or deletes a file and tracks whether the tree changed.
func (editor *EditorStub) PutFile(_ context.Context, relativeFileName string, sourcePath string) error {
	editor.PutFiles = append(editor.PutFiles, relativeFileName)
	destinationPath := filepath.Join(editor.Directory, filepath.FromSlash(relativeFileName))

	sourceExists, sourceError := codebase.FileExists(sourcePath)
	if sourceError != nil {
		return sourceError
	}
	if !sourceExists {
		destinationExists, destinationError := codebase.FileExists(destinationPath)
		if destinationError != nil {
			return destinationError
		}
		if destinationExists {
			editor.touched = true
			return os.Remove(destinationPath)
		}
		return nil
	}

	difference, compareError := codebase.AreFilesDifferent(sourcePath, destinationPath, relativeFileName)
	if compareError != nil {
		return compareError
	}
	if difference == nil {
		return nil
	}
	editor.touched = true
	return codebase.CopyFile(sourcePath, destinationPath)
}

// FinalizeChange records message and whether any file changed.
func (editor *EditorStub) FinalizeChange(_ context.Context, message string, reporter repository.Reporter) error {
	editor.FinalizedMessages = append(editor.FinalizedMessages, message)
	editor.modified = editor.touched
	if editor.modified && editor.pending() && reporter != nil {
		reporter.AddTodo(fmt.Sprintf(pendingChangeTodoTemplateConstant, editor.Directory))
	}
	return nil
}

func (editor *EditorStub) pending() bool {
	return editor.LeavePending && editor.Strategy.CommitStrategy != model.CommitStrategyCommitRemotely
}

// ChangesMade reports whether FinalizeChange saw modifications.
func (editor *EditorStub) ChangesMade() bool {
	return editor.modified
}

// CommitChange returns CommitID unless the change is left pending.
func (editor *EditorStub) CommitChange(_ context.Context) (string, error) {
	if !editor.modified || editor.pending() {
		return "", nil
	}
	return editor.CommitID, nil
}

// Diff returns DiffText.
func (editor *EditorStub) Diff() string {
	return editor.DiffText
}

// Link returns LinkText.
func (editor *EditorStub) Link() string {
	return editor.LinkText
}

// ReadFile returns the contents of a file in the editor.
func (editor *EditorStub) ReadFile(relativeFileName string) (string, error) {
	contents, readError := os.ReadFile(filepath.Join(editor.Directory, filepath.FromSlash(relativeFileName)))
	if readError != nil {
		return "", readError
	}
	return string(contents), nil
}
