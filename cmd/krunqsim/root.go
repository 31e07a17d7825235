package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"krunq/internal/dispatch"
	"krunq/internal/job"
	"krunq/internal/runq"
	"krunq/internal/task"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "krunqsim",
		Short: "Tick-driven simulator for the per-core run-queue engine",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		policy     string
		cores      int
		csvPath    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register cores, spawn tasks and run the dispatch loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := dispatch.Load(configPath)
			if policy != "" {
				cfg.Policy = policy
			}
			if cores > 0 {
				cfg.Cores = cores
			}
			if csvPath != "" {
				cfg.CSVPath = csvPath
			}

			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				level = logrus.InfoLevel
			}
			logrus.SetLevel(level)

			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "path to YAML config")
	cmd.Flags().StringVarP(&policy, "policy", "p", "", "override scheduling policy (roundrobin|priority|realtime|epoch)")
	cmd.Flags().IntVar(&cores, "cores", 0, "override number of cores")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write dispatch events to this CSV file")
	return cmd
}

func run(cfg dispatch.Config) error {
	engine, err := dispatch.NewEngine(cfg.Policy)
	if err != nil {
		return err
	}

	for c := 0; c < cfg.Cores; c++ {
		if err := engine.InitCore(runq.CoreID(c)); err != nil {
			// duplicate init is a boot-sequence bug, not something to retry
			return fmt.Errorf("bring up core %d: %w", c, err)
		}
	}

	loop := dispatch.NewLoop(engine, cfg)
	if cfg.CSVPath != "" {
		if err := loop.EnableCSVLogging(cfg.CSVPath); err != nil {
			return fmt.Errorf("open csv log: %w", err)
		}
	}

	table := task.NewTable()
	for _, tc := range taskConfigs(cfg) {
		ref := task.New(tc.Name)
		table.Register(ref)

		spec := dispatch.TaskSpec{Period: tc.Period, Priority: tc.Priority}
		if tc.Core != nil {
			core := runq.CoreID(*tc.Core)
			spec.Core = &core
		}

		work := job.Forever()
		if tc.WorkTicks > 0 {
			work = job.FixedTicks(tc.WorkTicks)
		}
		if err := loop.Spawn(ref, spec, work); err != nil {
			return fmt.Errorf("spawn %s: %w", tc.Name, err)
		}
	}

	fmt.Printf("policy=%s cores=%d ticks=%d tasks=%d\n",
		cfg.Policy, cfg.Cores, cfg.Ticks, table.Len())

	if err := loop.Run(context.Background()); err != nil {
		return err
	}

	dispatch.Summary(table, loop)
	return nil
}

// taskConfigs returns the configured task list, or a policy-appropriate demo
// mix when the config names none.
func taskConfigs(cfg dispatch.Config) []dispatch.TaskConfig {
	if len(cfg.Tasks) > 0 {
		return cfg.Tasks
	}

	u32 := func(v uint32) *uint32 { return &v }
	u8 := func(v uint8) *uint8 { return &v }

	switch cfg.Policy {
	case "realtime":
		return []dispatch.TaskConfig{
			{Name: "sensor", Period: u32(5), WorkTicks: 40},
			{Name: "control", Period: u32(10), WorkTicks: 40},
			{Name: "telemetry", Period: u32(20), WorkTicks: 40},
			{Name: "logger", WorkTicks: 40}, // aperiodic
		}
	case "epoch":
		return []dispatch.TaskConfig{
			{Name: "batch_a", Priority: u8(10), WorkTicks: 60},
			{Name: "batch_b", Priority: u8(20), WorkTicks: 60},
			{Name: "interactive", Priority: u8(30), WorkTicks: 60},
		}
	default:
		return []dispatch.TaskConfig{
			{Name: "worker_a", WorkTicks: 50},
			{Name: "worker_b", WorkTicks: 50},
			{Name: "worker_c", WorkTicks: 50},
		}
	}
}
