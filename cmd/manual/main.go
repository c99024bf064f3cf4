package main

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"

	"github.com/PranshVaishnav/scopedalloc/internal/demo"
	manualrun "github.com/PranshVaishnav/scopedalloc/internal/demo/manual"
	"github.com/PranshVaishnav/scopedalloc/memory"
)

// Runs the explicit acquire/release variant of the workload and reports
// the checked allocator's counters. On the happy path they balance; the
// point of keeping this binary is that nothing but author discipline
// makes that so.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	n := 1000
	if len(os.Args) > 1 {
		n, err = strconv.Atoi(os.Args[1])
		if err != nil || n <= 0 {
			logger.Fatal("iteration count must be a positive integer",
				zap.String("arg", os.Args[1]), zap.Error(err))
		}
	}

	if os.Getenv("MEMPROFILE") != "" {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	checked := memory.NewCheckedAllocator(memory.NewHeapAllocator())
	r := manualrun.New(checked)

	start := time.Now()
	for i := 0; i < n; i++ {
		if err := demo.Act(r, os.Stdout); err != nil {
			logger.Fatal("workload iteration failed", zap.Int("iteration", i), zap.Error(err))
		}
	}
	elapsed := time.Since(start)

	logger.Info("manual run complete",
		zap.Int("iterations", n),
		zap.Duration("total", elapsed),
		zap.Duration("average", elapsed/time.Duration(n)),
		zap.Uint64("acquires", checked.Acquires()),
		zap.Uint64("releases", checked.Releases()),
		zap.Int("outstanding", checked.Outstanding()),
		zap.Uint64("faults", checked.Faults()),
	)
}
