package utils_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/codesync/internal/utils"
)

func TestFlushingWriterFlushesBufferedWriter(testInstance *testing.T) {
	var destination bytes.Buffer
	bufferedWriter := bufio.NewWriterSize(&destination, 4096)

	writer := utils.NewFlushingWriter(bufferedWriter)
	_, writeError := writer.Write([]byte("|||| RUN COMPLETE. RECAP:\n"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, "|||| RUN COMPLETE. RECAP:\n", destination.String())

	require.Same(testInstance, writer, utils.NewFlushingWriter(writer))
	require.Nil(testInstance, utils.NewFlushingWriter(nil))
}
