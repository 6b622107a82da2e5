package fssink

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"go.exportstream.dev/core/internal/codecs"
	"go.exportstream.dev/core/stream"
)

func TestPushExportBufferPersistsBlockBytes(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s = New(fs, "/export")

	var memsink = &countingSink{}
	var ts = stream.NewTupleStream(7, 1, memsink)
	ts.SetDefaultCapacity(4096)
	ts.SetSignatureAndGeneration("export_TBL", 1)

	ts.AppendTuple(0, 1, 1, 1000, 1, stream.Tuple{stream.StringColumn{Value: "row"}}, stream.OpInsert)
	ts.Commit(1, 2, false)
	ts.PeriodicFlush(-1, 1, 2)

	require.Len(t, memsink.pushes, 1)
	var push = memsink.pushes[0]
	require.NoError(t, s.PushExportBuffer(push.gen, push.partition, push.sig, push.block, false, push.eos))

	exists, err := afero.DirExists(fs, "/export/export_TBL/partition-00007")
	require.NoError(t, err)
	require.True(t, exists)

	entries, err := afero.ReadDir(fs, "/export/export_TBL/partition-00007")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotEmpty(t, entries[0].Size())
}

type countingSink struct {
	pushes []pushed
}

type pushed struct {
	gen       int64
	partition int32
	sig       string
	block     *stream.StreamBlock
	eos       bool
}

func (c *countingSink) PushExportBuffer(generationID int64, partitionID int32, signature string, block *stream.StreamBlock, sync bool, endOfStream bool) error {
	c.pushes = append(c.pushes, pushed{gen: generationID, partition: partitionID, sig: signature, block: block, eos: endOfStream})
	return nil
}

func TestPushExportBufferWithGzipCodecWritesCompressedAndDecodableBytes(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s = NewWithCodec(fs, "/export", codecs.CodecGzip)

	var memsink = &countingSink{}
	var ts = stream.NewTupleStream(7, 1, memsink)
	ts.SetDefaultCapacity(4096)
	ts.SetSignatureAndGeneration("export_TBL", 1)

	ts.AppendTuple(0, 1, 1, 1000, 1, stream.Tuple{stream.StringColumn{Value: "row"}}, stream.OpInsert)
	ts.Commit(1, 2, false)
	ts.PeriodicFlush(-1, 1, 2)

	require.Len(t, memsink.pushes, 1)
	var push = memsink.pushes[0]
	require.NoError(t, s.PushExportBuffer(push.gen, push.partition, push.sig, push.block, false, push.eos))

	entries, err := afero.ReadDir(fs, "/export/export_TBL/partition-00007")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasSuffix(entries[0].Name(), ".gz"))

	raw, err := afero.ReadFile(fs, "/export/export_TBL/partition-00007/"+entries[0].Name())
	require.NoError(t, err)

	decoded, err := codecs.Decompress(raw, codecs.CodecGzip)
	require.NoError(t, err)
	require.Equal(t, push.block.Bytes(), decoded)
}

func TestPushExportBufferNilBlockIsNoop(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var s = New(fs, "/export")

	require.NoError(t, s.PushExportBuffer(1, 1, "sig", nil, false, true))

	entries, err := afero.ReadDir(fs, "/export")
	require.True(t, err != nil || len(entries) == 0)
}
