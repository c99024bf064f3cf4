package main

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"

	"github.com/PranshVaishnav/scopedalloc/internal/demo"
	scopedrun "github.com/PranshVaishnav/scopedalloc/internal/demo/scoped"
	"github.com/PranshVaishnav/scopedalloc/memory"
)

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
	r := scopedrun.New(checked)

	start := time.Now()
	for i := 0; i < n; i++ {
		if err := demo.Act(r, os.Stdout); err != nil {
			logger.Fatal("workload iteration failed", zap.Int("iteration", i), zap.Error(err))
		}
	}
	elapsed := time.Since(start)

	logger.Info("scoped run complete",
		zap.Int("iterations", n),
		zap.Duration("total", elapsed),
		zap.Duration("average", elapsed/time.Duration(n)),
		zap.Uint64("acquires", checked.Acquires()),
		zap.Uint64("releases", checked.Releases()),
		zap.Int("outstanding", checked.Outstanding()),
	)
}
