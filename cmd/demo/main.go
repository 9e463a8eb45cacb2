package main

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/taskgrid/pkg/scheduler"
)

type Config struct {
	Scheduler struct {
		WorkerCount        int `yaml:"worker_count"`
		ReadyQueueCapacity int `yaml:"ready_queue_capacity"`
		RecordPoolCapacity int `yaml:"record_pool_capacity"`
	} `yaml:"scheduler"`
}

// The demo drives a three-stage pipeline through the scheduler:
//
//	extract ──┬─ transform[0] ─┬── merge
//	          ├─ transform[1] ─┤
//	          ├─ ...           ┤
//	          └─ transform[7] ─┘
//
// extract is gated behind a blocked handle so the fan-out is visibly idle
// until the barrier is released.
func main() {
	cfg, err := loadConfig("configs/default.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	mgr, err := scheduler.Initialize(scheduler.Options{
		WorkerCount:        cfg.Scheduler.WorkerCount,
		ReadyQueueCapacity: cfg.Scheduler.ReadyQueueCapacity,
		RecordPoolCapacity: cfg.Scheduler.RecordPoolCapacity,
	})
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}
	defer mgr.Shutdown()

	fmt.Printf("✓ Scheduler started with %d workers\n", cfg.Scheduler.WorkerCount)

	const transforms = 8
	var extracted, transformed, merged atomic.Uint64

	extract := mgr.InsertBlockedFunc(func() {
		extracted.Add(1)
	})

	stage := make([]scheduler.JobHandle, transforms)
	for i := range stage {
		stage[i] = mgr.InsertAfterFunc(func() {
			time.Sleep(5 * time.Millisecond) // simulate a unit of work
			transformed.Add(1)
		}, extract.JobHandle)
	}

	merge := mgr.InsertAfterFunc(func() {
		merged.Add(1)
	}, stage...)

	fmt.Printf("⏳ Pipeline wired: 1 extract → %d transforms → 1 merge\n", transforms)
	fmt.Printf("📊 Before release: extracted=%d transformed=%d merged=%d\n",
		extracted.Load(), transformed.Load(), merged.Load())

	fmt.Println("⚡ Releasing the extract barrier...")
	extract.ReleaseBarrier(1)

	merge.WaitOn()
	fmt.Printf("📊 After merge:    extracted=%d transformed=%d merged=%d\n",
		extracted.Load(), transformed.Load(), merged.Load())

	stats := mgr.Stats()
	fmt.Printf("\n✓ Done: %d submitted, %d completed\n", stats["submitted"], stats["completed"])
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
