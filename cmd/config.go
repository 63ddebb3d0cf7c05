package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/inference-sim/hostsim/sim"
	"github.com/inference-sim/hostsim/sim/layout"
	"github.com/inference-sim/hostsim/sim/sink"
	"github.com/inference-sim/hostsim/sim/trace"
)

const envPrefix = "HOSTSIM_"

// Settings are the knobs shared by run and play. Keys are flat so every
// field can come from the YAML file, a HOSTSIM_ variable or a flag.
type Settings struct {
	Seed           int64  `koanf:"seed"`
	TickMs         int    `koanf:"tick_ms"`
	SpawnQuantumMs int    `koanf:"spawn_quantum_ms"`
	MaxTicks       int    `koanf:"max_ticks"`
	Routing        string `koanf:"routing"`

	Catalog  string `koanf:"catalog"`
	Level    string `koanf:"level"`
	Plan     string `koanf:"plan"`
	Campaign bool   `koanf:"campaign"`

	Trace       string `koanf:"trace"`
	MetricsAddr string `koanf:"metrics_addr"`
	SinkJSONL   string `koanf:"sink_jsonl"`

	GreptimeHost     string `koanf:"greptime_host"`
	GreptimePort     int    `koanf:"greptime_port"`
	GreptimeDatabase string `koanf:"greptime_database"`
	GreptimeTable    string `koanf:"greptime_table"`

	LayoutColumns int     `koanf:"layout_columns"`
	LayoutSpacing float64 `koanf:"layout_spacing"`
}

func defaultSettings() Settings {
	lc := layout.DefaultConfig()
	return Settings{
		Seed:             42,
		TickMs:           100,
		SpawnQuantumMs:   int(sim.DefaultSpawnQuantum / time.Millisecond),
		MaxTicks:         100_000,
		Routing:          "nearest",
		Trace:            string(trace.TraceLevelNone),
		GreptimePort:     4001,
		GreptimeDatabase: "public",
		GreptimeTable:    sink.DefaultOutcomeTable,
		LayoutColumns:    lc.Columns,
		LayoutSpacing:    lc.Spacing,
	}
}

// addSettingsFlags registers one flag per settings key, bound to st.
func addSettingsFlags(fs *pflag.FlagSet, st *Settings) {
	d := defaultSettings()
	fs.Int64Var(&st.Seed, "seed", d.Seed, "Seed for request sizes and spawn positions")
	fs.IntVar(&st.TickMs, "tick-ms", d.TickMs, "Simulated milliseconds per tick")
	fs.IntVar(&st.SpawnQuantumMs, "spawn-quantum-ms", d.SpawnQuantumMs, "Spawn integration step in milliseconds")
	fs.IntVar(&st.MaxTicks, "max-ticks", d.MaxTicks, "Abort a level that has not been graded after this many ticks")
	fs.StringVar(&st.Routing, "routing", d.Routing, "Routing policy: nearest, round-robin, least-loaded")
	fs.StringVar(&st.Catalog, "catalog", "", "YAML level catalog (built-in campaign when empty)")
	fs.StringVar(&st.Level, "level", "", "Level title or 1-based index (first level when empty)")
	fs.StringVar(&st.Plan, "plan", "", "YAML plan applied to the servers before the run")
	fs.BoolVar(&st.Campaign, "campaign", false, "Keep playing the following levels while they pass")
	fs.StringVar(&st.Trace, "trace", d.Trace, "Trace level: none, decisions, outcomes")
	fs.StringVar(&st.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	fs.StringVar(&st.SinkJSONL, "sink-jsonl", "", "Write every outcome as a JSON line to this file")
	fs.StringVar(&st.GreptimeHost, "greptime-host", "", "Write outcomes to the GreptimeDB at this host")
	fs.IntVar(&st.GreptimePort, "greptime-port", d.GreptimePort, "GreptimeDB gRPC port")
	fs.StringVar(&st.GreptimeDatabase, "greptime-database", d.GreptimeDatabase, "GreptimeDB database")
	fs.StringVar(&st.GreptimeTable, "greptime-table", d.GreptimeTable, "GreptimeDB table for outcomes")
	fs.IntVar(&st.LayoutColumns, "layout-columns", d.LayoutColumns, "Servers per row on the playfield")
	fs.Float64Var(&st.LayoutSpacing, "layout-spacing", d.LayoutSpacing, "Distance between neighbouring servers")
}

// loadSettings layers, from low to high precedence: defaults, the YAML file
// (path or $HOSTSIM_CONFIG), HOSTSIM_ variables, then flags set on the command line.
func loadSettings(path string, flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading settings %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("reading %s environment: %w", envPrefix, err)
	}

	if flags != nil {
		var setErr error
		flags.Visit(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := k.Set(key, f.Value.String()); err != nil && setErr == nil {
				setErr = err
			}
		})
		if setErr != nil {
			return nil, setErr
		}
	}

	st := defaultSettings()
	if err := k.UnmarshalWithConf("", &st, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return &st, nil
}

// Validate rejects settings the simulator cannot run with.
func (s Settings) Validate() error {
	if s.TickMs <= 0 {
		return fmt.Errorf("tick_ms must be > 0, got %d", s.TickMs)
	}
	if s.SpawnQuantumMs <= 0 {
		return fmt.Errorf("spawn_quantum_ms must be > 0, got %d", s.SpawnQuantumMs)
	}
	if s.MaxTicks <= 0 {
		return fmt.Errorf("max_ticks must be > 0, got %d", s.MaxTicks)
	}
	if !sim.IsValidRoutingPolicy(s.Routing) {
		return fmt.Errorf("unknown routing policy %q; valid: nearest, round-robin, least-loaded", s.Routing)
	}
	if !trace.IsValidTraceLevel(s.Trace) {
		return fmt.Errorf("unknown trace level %q; valid: none, decisions, outcomes", s.Trace)
	}
	return s.layoutConfig().Validate()
}

// TickDuration is the simulated time advanced per tick.
func (s Settings) TickDuration() time.Duration {
	return time.Duration(s.TickMs) * time.Millisecond
}

func (s Settings) layoutConfig() layout.Config {
	lc := layout.DefaultConfig()
	lc.Columns = s.LayoutColumns
	lc.Spacing = s.LayoutSpacing
	return lc
}

func (s Settings) simConfig(tr *trace.SimulationTrace) sim.Config {
	return sim.Config{
		Seed:          s.Seed,
		SpawnQuantum:  time.Duration(s.SpawnQuantumMs) * time.Millisecond,
		RoutingPolicy: s.Routing,
		Positions:     layout.New(s.layoutConfig(), s.Seed),
		Trace:         tr,
	}
}
