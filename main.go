package main

import (
	"fmt"
	"os"

	"github.com/temirov/codesync/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the codesync command-line application.
func main() {
	executionError := cli.Execute()
	if reportableError := cli.ReportableError(executionError); reportableError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, reportableError)
	}
	os.Exit(cli.ExitCode(executionError))
}
