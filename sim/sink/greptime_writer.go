package sink

import (
	"context"
	"fmt"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
	"github.com/sirupsen/logrus"
)

// DefaultOutcomeTable is the GreptimeDB table outcome rows are written to.
const DefaultOutcomeTable = "hostsim_outcomes"

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeConfig locates the GreptimeDB instance.
type GreptimeConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Table    string `koanf:"table"`
}

// GreptimeDBWriter writes outcome rows to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
}

// NewGreptimeDBWriter connects to GreptimeDB. The table is created on first write.
func NewGreptimeDBWriter(cfg GreptimeConfig) (*GreptimeDBWriter, error) {
	gcfg := greptime.NewConfig(cfg.Host).WithDatabase(cfg.Database)
	if cfg.Port > 0 {
		gcfg = gcfg.WithPort(cfg.Port)
	}
	client, err := greptime.NewClient(gcfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to greptimedb %s: %w", cfg.Host, err)
	}
	name := cfg.Table
	if name == "" {
		name = DefaultOutcomeTable
	}
	return &GreptimeDBWriter{client: client, table: name}, nil
}

// WriteOutcomes inserts rows in one request.
func (w *GreptimeDBWriter) WriteOutcomes(rows []OutcomeRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.buildTable(rows)
	if err != nil {
		return err
	}
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		return fmt.Errorf("writing %d outcome rows: %w", len(rows), err)
	}
	logrus.Debugf("greptimedb: wrote %d rows to %s", len(rows), w.table)
	return nil
}

func (w *GreptimeDBWriter) buildTable(rows []OutcomeRow) (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, err
	}
	columns := []struct {
		name string
		tag  bool
		typ  types.ColumnType
	}{
		{"run_id", true, types.STRING},
		{"level", true, types.STRING},
		{"kind", true, types.STRING},
		{"request_id", false, types.UINT64},
		{"server", false, types.INT64},
		{"target", false, types.INT64},
		{"reason", false, types.STRING},
		{"age", false, types.FLOAT64},
		{"size", false, types.INT64},
		{"clock_ms", false, types.INT64},
		{"passed", false, types.BOOLEAN},
	}
	for _, c := range columns {
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.name, err)
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}

	for _, r := range rows {
		err := tbl.AddRow(r.RunID, r.Level, r.Kind, r.Request, int64(r.Server), int64(r.Target),
			r.Reason, r.Age, int64(r.Size), r.ClockMs, r.Passed, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", r.Request, err)
		}
	}
	return tbl, nil
}

// Close is a no-op; the ingester client has no resources to release.
func (w *GreptimeDBWriter) Close() error {
	return nil
}
