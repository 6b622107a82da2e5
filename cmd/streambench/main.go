// Command streambench drives many TupleStream and PlannerFacade instances
// concurrently -- one of each per simulated partition -- to exercise the
// one-writer-per-stream and one-planner-call-at-a-time invariants under
// concurrent load.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.exportstream.dev/core/internal/boilerplate"
	"go.exportstream.dev/core/plan"
	"go.exportstream.dev/core/sink/memsink"
	"go.exportstream.dev/core/stream"
)

type config struct {
	Partitions   int `long:"partitions" default:"8" description:"Number of simulated partitions to run concurrently"`
	RowsPerPart  int `long:"rows" default:"1000" description:"Rows appended per partition"`
	PlansPerPart int `long:"plans" default:"200" description:"Ad-hoc plan() calls issued per partition"`

	Log boilerplate.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
}

func main() {
	var cfg config
	var parser = flags.NewParser(&cfg, flags.Default)
	boilerplate.MustParseArgs(parser)
	boilerplate.InitLog(cfg.Log)

	var group, _ = errgroup.WithContext(context.Background())
	var results = make([]partitionResult, cfg.Partitions)

	for i := 0; i < cfg.Partitions; i++ {
		var partitionID = i
		group.Go(func() error {
			results[partitionID] = runPartition(int32(partitionID), cfg.RowsPerPart, cfg.PlansPerPart)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		log.WithError(err).Fatal("streambench run failed")
	}

	var totalBlocks, totalPlans int
	for _, r := range results {
		totalBlocks += r.blocksPushed
		totalPlans += r.plansIssued
	}
	fmt.Printf("partitions=%d rows/partition=%d blocks_pushed=%d plans_issued=%d\n",
		cfg.Partitions, cfg.RowsPerPart, totalBlocks, totalPlans)
}

type partitionResult struct {
	blocksPushed int
	plansIssued  int
}

// fakeOptimizer simulates a non-reentrant SQL optimizer: each streambench
// partition gets its own facade and its own optimizer, since the real
// PlannerFacade only serializes calls made through a single facade.
type fakeOptimizer struct {
	siteID string
}

func (o *fakeOptimizer) Compile(sql string, partitioning plan.Partitioning, large, swapTables bool) (*plan.CompiledPlan, error) {
	var token = strings.SplitN(sql, "WHERE id=", 2)
	var parsedToken = sql
	if len(token) == 2 {
		parsedToken = token[0] + "WHERE id=?"
	}
	return &plan.CompiledPlan{
		ParsedToken:             parsedToken,
		UserParamCount:          0,
		ParamTypes:              []plan.ParamType{plan.ParamInt64},
		ExtractedLiterals:       []string{o.siteID},
		CompiledAsParameterized: true,
	}, nil
}

func runPartition(partitionID int32, rows, plans int) partitionResult {
	var sink = memsink.New()
	var s = stream.NewTupleStream(partitionID, int64(partitionID), sink)
	s.SetDefaultCapacity(1 << 16)
	s.SetSignatureAndGeneration(fmt.Sprintf("bench_partition_%d", partitionID), 1)

	for i := 0; i < rows; i++ {
		var txnID = int64(i + 1)
		s.AppendTuple(txnID-1, txnID, txnID, txnID, 1, stream.Tuple{stream.StringColumn{Value: uuid.NewString()}}, stream.OpInsert)
		s.Commit(txnID, txnID+1, false)
	}
	s.PeriodicFlush(-1, int64(rows), int64(rows)+1)

	var facade = plan.NewPlannerFacade(&fakeOptimizer{siteID: fmt.Sprintf("%d", partitionID)}, plan.NewPlanCache(64, 64), nil)
	for i := 0; i < plans; i++ {
		var sql = fmt.Sprintf("SELECT * FROM T WHERE id=%d", i)
		if _, err := facade.Plan(sql, plan.PartitioningInferred, false, nil, false, false); err != nil {
			log.WithError(err).WithField("partition", partitionID).Warn("plan failed")
		}
	}

	return partitionResult{blocksPushed: len(sink.Buffers()), plansIssued: plans}
}
