package pathutils_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/codesync/internal/utils/path"
)

const (
	testHomeDirectoryConstant = "/home/engineer"
)

func TestHomeExpanderResolve(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) {
		return testHomeDirectoryConstant, nil
	})

	testCases := []struct {
		name          string
		baseDirectory string
		candidatePath string
		expectedPath  string
	}{
		{
			name:          "home_shortcut",
			baseDirectory: "/projects",
			candidatePath: "~/checkouts/public",
			expectedPath:  filepath.Join(testHomeDirectoryConstant, "checkouts", "public"),
		},
		{
			name:          "relative_to_configuration",
			baseDirectory: "/projects/sample",
			candidatePath: "internal",
			expectedPath:  filepath.Join("/projects/sample", "internal"),
		},
		{
			name:          "absolute_path_unchanged",
			baseDirectory: "/projects",
			candidatePath: "/srv/repositories/public/",
			expectedPath:  "/srv/repositories/public",
		},
		{
			name:          "blank_path",
			baseDirectory: "/projects",
			candidatePath: "  ",
			expectedPath:  "",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedPath, expander.Resolve(testCase.baseDirectory, testCase.candidatePath))
		})
	}
}

func TestHomeExpanderLeavesShortcutWhenHomeUnavailable(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) {
		return "", errors.New("no home")
	})
	require.Equal(testInstance, "~/public", expander.Expand("~/public"))
}
