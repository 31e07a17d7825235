package dispatch

import (
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml.
type Config struct {
	TickMS   int    `yaml:"tick_ms"`   // tick interval in milliseconds
	Ticks    int    `yaml:"ticks"`     // total ticks to simulate
	Cores    int    `yaml:"cores"`     // number of cores to bring up
	Policy   string `yaml:"policy"`    // roundrobin | priority | realtime | epoch
	LogLevel string `yaml:"log_level"` // logrus level name
	CSVPath  string `yaml:"csv_path"`  // empty = no CSV log

	Tasks []TaskConfig `yaml:"tasks"`
}

// TaskConfig describes one simulated task.
type TaskConfig struct {
	Name      string  `yaml:"name"`
	Core      *int    `yaml:"core"`       // pin to a core; nil = load balancer
	WorkTicks int     `yaml:"work_ticks"` // quanta until exit; 0 = runs forever
	Period    *uint32 `yaml:"period"`     // realtime policy only; nil = aperiodic
	Priority  *uint8  `yaml:"priority"`   // epoch policy only
}

func defaultConfig() Config {
	return Config{
		TickMS:   5,
		Ticks:    200,
		Cores:    2,
		Policy:   "roundrobin",
		LogLevel: "info",
	}
}

// Load reads YAML and overrides defaults; empty or missing path = defaults
// only.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	// sanity clamps
	if cfg.TickMS <= 0 {
		cfg.TickMS = 5
	}
	if cfg.Ticks <= 0 {
		cfg.Ticks = 200
	}
	if cfg.Cores <= 0 || cfg.Cores > 255 {
		cfg.Cores = 2
	}
	switch cfg.Policy {
	case "roundrobin", "priority", "realtime", "epoch":
	default:
		cfg.Policy = "roundrobin"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
}
