package gitrepo

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	cloneDirectoryPermissionsConstant = 0o755
	regularFilePermissionsConstant    = 0o644
	executablePermissionsConstant     = 0o755
	exportFileErrorTemplateConstant   = "unable to export %s: %w"
	readTreeErrorTemplateConstant     = "unable to read tree of %s: %w"
)

// Export writes the tree at revisionID into directory, preserving executable bits and symbolic links.
func (gitRepository *Repository) Export(executionContext context.Context, directory string, revisionID string) error {
	commit, resolveError := gitRepository.resolveCommit(executionContext, revisionID)
	if resolveError != nil {
		return resolveError
	}
	tree, treeError := commit.Tree()
	if treeError != nil {
		return fmt.Errorf(readTreeErrorTemplateConstant, abbreviate(commit.Hash), treeError)
	}
	if mkdirError := os.MkdirAll(directory, cloneDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(exportFileErrorTemplateConstant, directory, mkdirError)
	}
	return tree.Files().ForEach(func(file *object.File) error {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		return exportFile(directory, file)
	})
}

func exportFile(directory string, file *object.File) error {
	targetPath := filepath.Join(directory, filepath.FromSlash(file.Name))
	if mkdirError := os.MkdirAll(filepath.Dir(targetPath), cloneDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(exportFileErrorTemplateConstant, file.Name, mkdirError)
	}

	if file.Mode == filemode.Symlink {
		linkTarget, contentsError := file.Contents()
		if contentsError != nil {
			return fmt.Errorf(exportFileErrorTemplateConstant, file.Name, contentsError)
		}
		if symlinkError := os.Symlink(linkTarget, targetPath); symlinkError != nil {
			return fmt.Errorf(exportFileErrorTemplateConstant, file.Name, symlinkError)
		}
		return nil
	}

	permissions := os.FileMode(regularFilePermissionsConstant)
	if file.Mode == filemode.Executable {
		permissions = executablePermissionsConstant
	}
	reader, readerError := file.Reader()
	if readerError != nil {
		return fmt.Errorf(exportFileErrorTemplateConstant, file.Name, readerError)
	}
	defer reader.Close()

	output, createError := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, permissions)
	if createError != nil {
		return fmt.Errorf(exportFileErrorTemplateConstant, file.Name, createError)
	}
	if _, copyError := io.Copy(output, reader); copyError != nil {
		output.Close()
		return fmt.Errorf(exportFileErrorTemplateConstant, file.Name, copyError)
	}
	if closeError := output.Close(); closeError != nil {
		return fmt.Errorf(exportFileErrorTemplateConstant, file.Name, closeError)
	}
	return os.Chmod(targetPath, permissions)
}
