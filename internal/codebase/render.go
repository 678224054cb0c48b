package codebase

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	firstHeaderTemplateConstant  = "--- %s\n"
	secondHeaderTemplateConstant = "+++ %s\n"
	deletedLinePrefixConstant    = "-"
	insertedLinePrefixConstant   = "+"
	unchangedLinePrefixConstant  = " "
	lineTerminatorConstant       = "\n"
	noNewlineMarkerConstant      = "\\ No newline at end of file\n"
)

// RenderFileDiff renders a line-oriented diff of two files. A missing file is rendered as empty.
func RenderFileDiff(firstPath string, secondPath string, relativeFileName string) (string, error) {
	firstContents, firstError := readOptionalFile(firstPath)
	if firstError != nil {
		return "", firstError
	}
	secondContents, secondError := readOptionalFile(secondPath)
	if secondError != nil {
		return "", secondError
	}

	differ := diffmatchpatch.New()
	firstRunes, secondRunes, lineArray := differ.DiffLinesToRunes(firstContents, secondContents)
	lineDiffs := differ.DiffCharsToLines(differ.DiffMainRunes(firstRunes, secondRunes, false), lineArray)

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(firstHeaderTemplateConstant, relativeFileName))
	builder.WriteString(fmt.Sprintf(secondHeaderTemplateConstant, relativeFileName))
	for _, lineDiff := range lineDiffs {
		prefix := unchangedLinePrefixConstant
		switch lineDiff.Type {
		case diffmatchpatch.DiffDelete:
			prefix = deletedLinePrefixConstant
		case diffmatchpatch.DiffInsert:
			prefix = insertedLinePrefixConstant
		}
		writePrefixedLines(&builder, prefix, lineDiff.Text)
	}
	return builder.String(), nil
}

// RenderCodebaseDiff renders every content difference of difference between first and second.
func RenderCodebaseDiff(first *Codebase, second *Codebase, difference *CodebaseDifference) (string, error) {
	if !difference.HasDifference() {
		return "", nil
	}
	var builder strings.Builder
	for _, fileDifference := range difference.Differences {
		renderedDiff, renderError := RenderFileDiff(first.FilePath(fileDifference.RelativeFileName), second.FilePath(fileDifference.RelativeFileName), fileDifference.RelativeFileName)
		if renderError != nil {
			return "", renderError
		}
		builder.WriteString(renderedDiff)
	}
	return builder.String(), nil
}

func writePrefixedLines(builder *strings.Builder, prefix string, text string) {
	if len(text) == 0 {
		return
	}
	lines := strings.SplitAfter(text, lineTerminatorConstant)
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		builder.WriteString(prefix)
		builder.WriteString(line)
		if !strings.HasSuffix(line, lineTerminatorConstant) {
			builder.WriteString(lineTerminatorConstant)
			builder.WriteString(noNewlineMarkerConstant)
		}
	}
}

func readOptionalFile(path string) (string, error) {
	exists, existsError := FileExists(path)
	if existsError != nil {
		return "", existsError
	}
	if !exists {
		return "", nil
	}
	contents, readError := os.ReadFile(path)
	if readError != nil {
		return "", fmt.Errorf(readFileErrorTemplateConstant, path, readError)
	}
	return string(contents), nil
}
