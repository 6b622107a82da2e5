// Command streamctl drives a TupleStream by hand from the command line,
// for manual inspection of append/commit/rollback/flush behavior and of
// the blocks a TopEndSink receives.
package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"go.exportstream.dev/core/internal/boilerplate"
	"go.exportstream.dev/core/internal/codecs"
	"go.exportstream.dev/core/sink/fssink"
	"go.exportstream.dev/core/sink/memsink"
	"go.exportstream.dev/core/stream"
)

type config struct {
	Signature string   `long:"signature" default:"export_TBL" description:"Stream signature to attach to appended blocks"`
	Partition int32    `long:"partition" default:"1" description:"Partition id owning this stream"`
	Site      int64    `long:"site" default:"1" description:"Site id owning this stream"`
	Capacity  int      `long:"capacity" default:"65536" description:"Default block capacity in bytes"`
	Rows      []string `long:"row" description:"User-column string value to append as one row; repeatable"`
	SinkKind  string   `long:"sink" choice:"mem" choice:"fs" default:"mem" description:"TopEndSink backend to drain into"`
	SinkRoot  string   `long:"sink-root" default:"./streamctl-export" description:"Root directory for the fs sink"`
	Compress  bool     `long:"compress" description:"Gzip-compress blocks written by the fs sink"`
	Format    string   `long:"format" choice:"table" choice:"yaml" default:"table" description:"Output format for the pushed-block summary (mem sink only)"`

	Log boilerplate.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
}

func main() {
	var cfg config
	var parser = flags.NewParser(&cfg, flags.Default)
	boilerplate.MustParseArgs(parser)
	boilerplate.InitLog(cfg.Log)

	var sink stream.TopEndSink
	var mem *memsink.Sink
	switch cfg.SinkKind {
	case "fs":
		if cfg.Compress {
			sink = fssink.NewWithCodec(afero.NewOsFs(), cfg.SinkRoot, codecs.CodecGzip)
		} else {
			sink = fssink.New(afero.NewOsFs(), cfg.SinkRoot)
		}
	default:
		mem = memsink.New()
		sink = mem
	}

	var s = stream.NewTupleStream(cfg.Partition, cfg.Site, sink)
	s.SetLogger(log.WithField("component", "streamctl"))
	s.SetDefaultCapacity(cfg.Capacity)
	s.SetSignatureAndGeneration(cfg.Signature, 1)

	var txnID, seqNo int64 = 1, 1
	for _, row := range cfg.Rows {
		s.AppendTuple(txnID-1, txnID, seqNo, seqNo, 1, stream.Tuple{stream.StringColumn{Value: row}}, stream.OpInsert)
		seqNo++
	}
	s.Commit(txnID, txnID+1, false)
	s.PeriodicFlush(-1, txnID, txnID+1)

	fmt.Printf("appended %d rows; stream USO now %s\n", len(cfg.Rows), humanize.Comma(s.USO()))

	if mem != nil {
		switch cfg.Format {
		case "yaml":
			printPushedBlocksYAML(mem.Buffers())
		default:
			printPushedBlocksTable(mem.Buffers())
		}
	}
}

// pushedBlockSummary is the YAML-friendly shape of a memsink.Buffer, since
// memsink.Buffer itself carries an unmarshalable *stream.StreamBlock.
type pushedBlockSummary struct {
	Generation  int64  `yaml:"generation"`
	Partition   int32  `yaml:"partition"`
	Signature   string `yaml:"signature"`
	Bytes       int    `yaml:"bytes"`
	EndOfStream bool   `yaml:"endOfStream"`
}

func summarize(buffers []memsink.Buffer) []pushedBlockSummary {
	var out = make([]pushedBlockSummary, 0, len(buffers))
	for _, b := range buffers {
		var size int
		if b.Block != nil {
			size = len(b.Block.Bytes())
		}
		out = append(out, pushedBlockSummary{
			Generation:  b.GenerationID,
			Partition:   b.PartitionID,
			Signature:   b.Signature,
			Bytes:       size,
			EndOfStream: b.EndOfStream,
		})
	}
	return out
}

func printPushedBlocksYAML(buffers []memsink.Buffer) {
	b, err := yaml.Marshal(summarize(buffers))
	if err != nil {
		log.WithError(err).Fatal("failed to encode pushed blocks as yaml")
	}
	os.Stdout.Write(b)
}

func printPushedBlocksTable(buffers []memsink.Buffer) {
	var table = tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Generation", "Partition", "Signature", "Bytes", "EndOfStream"})

	for _, b := range summarize(buffers) {
		table.Append([]string{
			fmt.Sprintf("%d", b.Generation),
			fmt.Sprintf("%d", b.Partition),
			b.Signature,
			humanize.IBytes(uint64(b.Bytes)),
			fmt.Sprintf("%t", b.EndOfStream),
		})
	}
	table.Render()
}
