package codebase

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

const (
	gitMetadataDirectoryNameConstant = ".git"
	executableMaskConstant           = 0o111
	defaultDirectoryModeConstant     = 0o755
	listFilesErrorTemplateConstant   = "unable to list files under %s: %w"
	copyFileErrorTemplateConstant    = "unable to copy %s to %s: %w"
	statFileErrorTemplateConstant    = "unable to inspect %s: %w"
)

// ListFiles returns the slash-separated relative names of regular files below root, sorted.
// Files matching ignorePattern and version control metadata are omitted.
func ListFiles(root string, ignorePattern *regexp.Regexp) ([]string, error) {
	var relativeFileNames []string
	walkError := filepath.WalkDir(root, func(path string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		if directoryEntry.IsDir() {
			if directoryEntry.Name() == gitMetadataDirectoryNameConstant && path != root {
				return fs.SkipDir
			}
			return nil
		}

		relativePath, relativeError := filepath.Rel(root, path)
		if relativeError != nil {
			return relativeError
		}
		relativeFileName := filepath.ToSlash(relativePath)
		if ignorePattern != nil && ignorePattern.MatchString(relativeFileName) {
			return nil
		}
		relativeFileNames = append(relativeFileNames, relativeFileName)
		return nil
	})
	if walkError != nil {
		return nil, fmt.Errorf(listFilesErrorTemplateConstant, root, walkError)
	}

	sort.Strings(relativeFileNames)
	return relativeFileNames, nil
}

// FileExists reports whether path names an existing file.
func FileExists(path string) (bool, error) {
	_, statError := os.Stat(path)
	if statError == nil {
		return true, nil
	}
	if errors.Is(statError, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf(statFileErrorTemplateConstant, path, statError)
}

// IsExecutable reports whether any executable bit is set on path.
func IsExecutable(path string) (bool, error) {
	fileInfo, statError := os.Stat(path)
	if statError != nil {
		return false, fmt.Errorf(statFileErrorTemplateConstant, path, statError)
	}
	return fileInfo.Mode().Perm()&executableMaskConstant != 0, nil
}

// SetExecutable adds or removes the executable bits that mirror the read bits of path.
func SetExecutable(path string, executable bool) error {
	fileInfo, statError := os.Stat(path)
	if statError != nil {
		return fmt.Errorf(statFileErrorTemplateConstant, path, statError)
	}
	permissions := fileInfo.Mode().Perm()
	if executable {
		permissions |= (permissions & 0o444) >> 2
	} else {
		permissions &^= executableMaskConstant
	}
	return os.Chmod(path, permissions)
}

// CopyFile copies source to destination, creating parent directories and preserving the executable bit.
func CopyFile(source string, destination string) error {
	sourceFile, openError := os.Open(source)
	if openError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, source, destination, openError)
	}
	defer sourceFile.Close()

	sourceInfo, statError := sourceFile.Stat()
	if statError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, source, destination, statError)
	}

	if mkdirError := os.MkdirAll(filepath.Dir(destination), defaultDirectoryModeConstant); mkdirError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, source, destination, mkdirError)
	}

	destinationFile, createError := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, sourceInfo.Mode().Perm())
	if createError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, source, destination, createError)
	}

	if _, copyError := io.Copy(destinationFile, sourceFile); copyError != nil {
		destinationFile.Close()
		return fmt.Errorf(copyFileErrorTemplateConstant, source, destination, copyError)
	}
	if closeError := destinationFile.Close(); closeError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, source, destination, closeError)
	}

	// OpenFile leaves the mode of an existing destination untouched.
	return os.Chmod(destination, sourceInfo.Mode().Perm())
}

// CopyTree copies every file of source below destination.
func CopyTree(source *Codebase, destination string) error {
	relativeFileNames, walkError := ListFiles(source.Root(), nil)
	if walkError != nil {
		return walkError
	}
	for _, relativeFileName := range relativeFileNames {
		if copyError := CopyFile(source.FilePath(relativeFileName), filepath.Join(destination, filepath.FromSlash(relativeFileName))); copyError != nil {
			return copyError
		}
	}
	return nil
}
