package memsink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSinkCapturesPushesInOrder(t *testing.T) {
	var s = New()

	require.NoError(t, s.PushExportBuffer(1, 7, "sig", nil, false, true))
	require.NoError(t, s.PushExportBuffer(2, 7, "sig", nil, false, false))

	var got = s.Buffers()
	require.Len(t, got, 2)
	require.True(t, got[0].EndOfStream)
	require.False(t, got[1].EndOfStream)

	s.Reset()
	require.Empty(t, s.Buffers())
}
