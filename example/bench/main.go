// Copyright 2022 MatrixOrigin.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fagongzi/util/format"
	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/matrixorigin/cubebatch/client"
	"github.com/matrixorigin/cubebatch/components/log"
	"github.com/matrixorigin/cubebatch/config"
	"github.com/matrixorigin/cubebatch/grafana"
	"github.com/matrixorigin/cubebatch/row"
	"github.com/matrixorigin/cubebatch/transport"
	"github.com/matrixorigin/cubebatch/transport/mem"
	"github.com/matrixorigin/cubebatch/transport/pebble"
	"github.com/matrixorigin/cubebatch/transport/redis"
)

func main() {
	b := &bench{}

	cmd := &cobra.Command{
		Use:     "bench",
		Short:   "Write then read rows through the batch client",
		PreRunE: bindFlags,
		RunE:    b.run,
	}
	cmd.Flags().String("config-file", "", "Path to the client config file.")
	cmd.Flags().String("transport", "mem", "Transport. Available: mem, redis, pebble.")
	cmd.Flags().String("redis-addr", "127.0.0.1:6379", "Redis address, used by the redis transport.")
	cmd.Flags().String("data-dir", filepath.Join(os.TempDir(), "cubebatch-bench"), "Directory of the pebble transport.")
	cmd.Flags().Int("ops", 100000, "Rows to write and read.")
	cmd.Flags().Int("tables", 4, "Tables the rows are spread over.")
	cmd.Flags().Int("value-size", 64, "Bytes of each column value.")
	cmd.Flags().String("log-level", "info", "Log level.")

	dashboard := &cobra.Command{
		Use:     "dashboard",
		Short:   "Create the grafana dashboard of the client metrics",
		PreRunE: bindFlags,
		RunE:    createDashboard,
	}
	dashboard.Flags().String("grafana", "http://127.0.0.1:3000", "Grafana address.")
	dashboard.Flags().String("api-key", "", "Grafana API key.")
	dashboard.Flags().String("datasource", "Prometheus", "Prometheus datasource name.")
	cmd.AddCommand(dashboard)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bindFlags every flag can also be set by a CUBEBATCH_BENCH_ env var, e.g.
// CUBEBATCH_BENCH_REDIS_ADDR
func bindFlags(cmd *cobra.Command, args []string) error {
	viper.SetEnvPrefix("cubebatch_bench")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	return viper.BindPFlags(cmd.Flags())
}

type bench struct {
	logger *zap.Logger
	cfg    config.Config
	trans  transport.Transport
	tables []string
}

func (b *bench) setup() error {
	b.logger = log.GetZapLogger(viper.GetString("log-level")).Named("bench")

	file := viper.GetString("config-file")
	if file != "" {
		cfg, err := config.Load(file)
		if err != nil {
			return err
		}
		b.cfg = *cfg
	}

	n := viper.GetInt("tables")
	if n <= 0 {
		return fmt.Errorf("invalid tables %d", n)
	}
	for i := 0; i < n; i++ {
		b.tables = append(b.tables, "t"+strconv.Itoa(i))
	}

	name := viper.GetString("transport")
	switch name {
	case "mem":
		s := mem.NewStore(mem.WithLogger(b.logger))
		s.CreateTable(b.tables...)
		b.trans = s
	case "redis":
		b.trans = redis.Dial(viper.GetString("redis-addr"), redis.WithLogger(b.logger))
	case "pebble":
		trans, err := pebble.NewTransport(viper.GetString("data-dir"), pebble.WithLogger(b.logger))
		if err != nil {
			return err
		}
		b.trans = trans
	default:
		return fmt.Errorf("unknown transport %s", name)
	}
	return nil
}

func (b *bench) run(cmd *cobra.Command, args []string) error {
	if err := b.setup(); err != nil {
		return err
	}
	defer b.trans.Close()

	ops := viper.GetInt("ops")
	valueSize := viper.GetInt("value-size")

	if err := b.write(ops, valueSize); err != nil {
		return err
	}
	return b.read(ops)
}

func (b *bench) key(i int) (string, row.PrimaryKey) {
	return b.tables[i%len(b.tables)], row.PrimaryKey{
		row.NewColumn("partition", format.Uint64ToBytes(uint64(i%1024))),
		row.NewColumn("id", format.Uint64ToBytes(uint64(i))),
	}
}

func (b *bench) write(ops, valueSize int) error {
	w, err := client.NewWriter(b.cfg, b.trans, client.WithLogger(b.logger))
	if err != nil {
		return err
	}

	value := make([]byte, valueSize)
	rec := newRecorder(ops)
	start := time.Now()
	for i := 0; i < ops; i++ {
		table, key := b.key(i)
		c := row.NewPut(table, key, row.NewColumn("value", value))
		f, err := w.AddRowChange(context.Background(), c)
		if err != nil {
			w.Close()
			return err
		}
		rec.track(f, time.Now())
	}
	if err := w.Close(); err != nil {
		return err
	}
	rec.wait()
	b.report("write", start, rec, w.Statistics())
	return nil
}

func (b *bench) read(ops int) error {
	r, err := client.NewReader(b.cfg, b.trans, client.WithLogger(b.logger))
	if err != nil {
		return err
	}
	for _, table := range b.tables {
		r.SetQueryConfig(table, row.QueryConfig{Columns: []string{"value"}})
	}

	rec := newRecorder(ops)
	start := time.Now()
	for i := 0; i < ops; i++ {
		table, key := b.key(i)
		f, err := r.AddPrimaryKey(context.Background(), table, key)
		if err != nil {
			r.Close()
			return err
		}
		rec.track(f, time.Now())
	}
	if err := r.Close(); err != nil {
		return err
	}
	rec.wait()
	b.report("read", start, rec, r.Statistics())
	return nil
}

func (b *bench) report(name string, start time.Time, rec *recorder, s client.Statistics) {
	cost := time.Since(start)
	fields := []zap.Field{
		zap.String("phase", name),
		zap.Duration("cost", cost),
		zap.Int("failed", rec.failed),
		zap.Float64("rows/s", float64(len(rec.latencies))/cost.Seconds()),
		zap.Uint64("requests", s.TotalRequests),
		zap.Uint64("single-row-requests", s.TotalSingleRowRequests),
		zap.Uint64("batch-failures", s.TotalBatchFailures),
		zap.Duration("batch-latency", s.BatchLatency),
	}
	for _, p := range []float64{50, 95, 99} {
		v, err := stats.Percentile(rec.latencies, p)
		if err != nil {
			continue
		}
		fields = append(fields, zap.Duration(fmt.Sprintf("p%.0f", p),
			time.Duration(v)))
	}
	if max, err := stats.Max(rec.latencies); err == nil {
		fields = append(fields, zap.Duration("max", time.Duration(max)))
	}
	b.logger.Info("bench completed", fields...)
}

// recorder collects the completion latency of every submitted row
type recorder struct {
	sync.Mutex
	wg        sync.WaitGroup
	latencies stats.Float64Data
	failed    int
}

func newRecorder(ops int) *recorder {
	return &recorder{latencies: make(stats.Float64Data, 0, ops)}
}

func (r *recorder) track(f *client.Future, start time.Time) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := f.GetError(context.Background())
		cost := time.Since(start)

		r.Lock()
		defer r.Unlock()
		r.latencies = append(r.latencies, float64(cost))
		if err != nil {
			r.failed++
		}
	}()
}

func (r *recorder) wait() {
	r.wg.Wait()
}

func createDashboard(cmd *cobra.Command, args []string) error {
	addr := viper.GetString("grafana")
	apiKey := viper.GetString("api-key")
	ds := viper.GetString("datasource")
	return grafana.NewDashboardCreator(addr, apiKey, ds).Create()
}
