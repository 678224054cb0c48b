package codebase

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

const (
	fileMissingReasonConstant             = "File missing from one codebase"
	executableBitReasonConstant           = "Executable bit differs"
	contentsDifferReasonConstant          = "File contents differ"
	unknownDifferenceReasonConstant       = "[Unknown]"
	firstDifferenceTemplateConstant       = "%s: %s"
	missingFromFirstTemplateConstant      = "Missing from codebase 1: %s\n"
	missingFromSecondTemplateConstant     = "Missing from codebase 2: %s\n"
	differenceLineTemplateConstant        = "%s\n"
	fileListSeparatorConstant             = ","
	readFileErrorTemplateConstant         = "unable to read %s: %w"
	compareCodebasesErrorTemplateConstant = "unable to compare %s with %s: %w"
)

// FileDifference describes why one relative file differs between two codebases.
type FileDifference struct {
	RelativeFileName string
	FirstMissing     bool
	SecondMissing    bool
	Reason           string
}

// String returns the difference reason.
func (difference FileDifference) String() string {
	if len(difference.Reason) == 0 {
		return unknownDifferenceReasonConstant
	}
	return difference.Reason
}

// CodebaseDifference accumulates every file difference between two codebases.
type CodebaseDifference struct {
	FirstDifference       string
	FirstDifferenceReason string
	FirstOnly             []string
	SecondOnly            []string
	Differences           []FileDifference
}

// HasDifference reports whether any file differs.
func (codebaseDifference *CodebaseDifference) HasDifference() bool {
	return codebaseDifference != nil && len(codebaseDifference.Differences) > 0
}

// AddDifference records a file difference, remembering the first one for concise reporting.
func (codebaseDifference *CodebaseDifference) AddDifference(difference FileDifference) {
	if len(codebaseDifference.Differences) == 0 {
		codebaseDifference.FirstDifference = difference.RelativeFileName
		codebaseDifference.FirstDifferenceReason = fmt.Sprintf(firstDifferenceTemplateConstant, difference.RelativeFileName, difference.String())
	}
	switch {
	case difference.FirstMissing:
		codebaseDifference.SecondOnly = append(codebaseDifference.SecondOnly, difference.RelativeFileName)
	case difference.SecondMissing:
		codebaseDifference.FirstOnly = append(codebaseDifference.FirstOnly, difference.RelativeFileName)
	}
	codebaseDifference.Differences = append(codebaseDifference.Differences, difference)
}

// String summarizes files present on only one side and the first difference.
func (codebaseDifference *CodebaseDifference) String() string {
	if codebaseDifference == nil {
		return unknownDifferenceReasonConstant
	}
	var builder strings.Builder
	if len(codebaseDifference.SecondOnly) > 0 {
		builder.WriteString(fmt.Sprintf(missingFromFirstTemplateConstant, strings.Join(codebaseDifference.SecondOnly, fileListSeparatorConstant)))
	}
	if len(codebaseDifference.FirstOnly) > 0 {
		builder.WriteString(fmt.Sprintf(missingFromSecondTemplateConstant, strings.Join(codebaseDifference.FirstOnly, fileListSeparatorConstant)))
	}
	if len(codebaseDifference.FirstDifferenceReason) > 0 {
		builder.WriteString(fmt.Sprintf(differenceLineTemplateConstant, codebaseDifference.FirstDifferenceReason))
	}
	if builder.Len() == 0 {
		return unknownDifferenceReasonConstant
	}
	return builder.String()
}

// AreFilesDifferent compares existence, the executable bit, and contents. Two missing files are equal.
func AreFilesDifferent(firstPath string, secondPath string, relativeFileName string) (*FileDifference, error) {
	firstExists, firstError := FileExists(firstPath)
	if firstError != nil {
		return nil, firstError
	}
	secondExists, secondError := FileExists(secondPath)
	if secondError != nil {
		return nil, secondError
	}

	difference := FileDifference{RelativeFileName: relativeFileName, FirstMissing: !firstExists, SecondMissing: !secondExists}
	if !firstExists || !secondExists {
		if !firstExists && !secondExists {
			return nil, nil
		}
		difference.Reason = fileMissingReasonConstant
		return &difference, nil
	}

	firstExecutable, firstExecutableError := IsExecutable(firstPath)
	if firstExecutableError != nil {
		return nil, firstExecutableError
	}
	secondExecutable, secondExecutableError := IsExecutable(secondPath)
	if secondExecutableError != nil {
		return nil, secondExecutableError
	}
	if firstExecutable != secondExecutable {
		difference.Reason = executableBitReasonConstant
		return &difference, nil
	}

	sameContents, compareError := haveSameContents(firstPath, secondPath)
	if compareError != nil {
		return nil, compareError
	}
	if !sameContents {
		difference.Reason = contentsDifferReasonConstant
		return &difference, nil
	}
	return nil, nil
}

// AreCodebasesDifferent compares every file of the union of both codebases, skipping paths matching noisyFilesPattern.
// It returns nil when nothing differs.
func AreCodebasesDifferent(first *Codebase, second *Codebase, noisyFilesPattern *regexp.Regexp) (*CodebaseDifference, error) {
	firstFiles, firstWalkError := first.Walk()
	if firstWalkError != nil {
		return nil, fmt.Errorf(compareCodebasesErrorTemplateConstant, first, second, firstWalkError)
	}
	secondFiles, secondWalkError := second.Walk()
	if secondWalkError != nil {
		return nil, fmt.Errorf(compareCodebasesErrorTemplateConstant, first, second, secondWalkError)
	}

	result := &CodebaseDifference{}
	for _, relativeFileName := range UnionOfFiles(firstFiles, secondFiles) {
		if noisyFilesPattern != nil && noisyFilesPattern.MatchString(relativeFileName) {
			continue
		}
		fileDifference, differenceError := AreFilesDifferent(first.FilePath(relativeFileName), second.FilePath(relativeFileName), relativeFileName)
		if differenceError != nil {
			return nil, fmt.Errorf(compareCodebasesErrorTemplateConstant, first, second, differenceError)
		}
		if fileDifference != nil {
			result.AddDifference(*fileDifference)
		}
	}

	if !result.HasDifference() {
		return nil, nil
	}
	return result, nil
}

// UnionOfFiles merges relative file lists into one sorted list without duplicates.
func UnionOfFiles(fileLists ...[]string) []string {
	seen := make(map[string]struct{})
	var union []string
	for _, fileList := range fileLists {
		for _, relativeFileName := range fileList {
			if _, alreadySeen := seen[relativeFileName]; alreadySeen {
				continue
			}
			seen[relativeFileName] = struct{}{}
			union = append(union, relativeFileName)
		}
	}
	sort.Strings(union)
	return union
}

func haveSameContents(firstPath string, secondPath string) (bool, error) {
	firstContents, firstReadError := os.ReadFile(firstPath)
	if firstReadError != nil {
		return false, fmt.Errorf(readFileErrorTemplateConstant, firstPath, firstReadError)
	}
	secondContents, secondReadError := os.ReadFile(secondPath)
	if secondReadError != nil {
		return false, fmt.Errorf(readFileErrorTemplateConstant, secondPath, secondReadError)
	}
	return bytes.Equal(firstContents, secondContents), nil
}
