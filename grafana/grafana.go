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

package grafana

import (
	"context"
	"fmt"
	"net/http"

	"github.com/K-Phoen/grabana"
	"github.com/K-Phoen/grabana/axis"
	"github.com/K-Phoen/grabana/graph"
	"github.com/K-Phoen/grabana/row"
	"github.com/K-Phoen/grabana/singlestat"
	"github.com/K-Phoen/grabana/table"
	"github.com/K-Phoen/grabana/target/prometheus"
	"github.com/K-Phoen/grabana/variable/interval"
)

var (
	folderName = "Cubebatch"
	metricName = "cubebatch_client_"
)

// DashboardCreator cubebatch grafana dashboard creator
type DashboardCreator struct {
	cli        *grabana.Client
	dataSource string
}

// NewDashboardCreator returns a dashboard creator
func NewDashboardCreator(grafana, apiKey, dataSource string) *DashboardCreator {
	return &DashboardCreator{
		cli:        grabana.NewClient(http.DefaultClient, grafana, apiKey),
		dataSource: dataSource,
	}
}

// Create create dashboard
func (c *DashboardCreator) Create() error {
	folder, err := c.createFolder()
	if err != nil {
		return err
	}

	return c.createClientDashboard(folder)
}

func (c *DashboardCreator) createFolder() (*grabana.Folder, error) {
	folder, err := c.cli.GetFolderByTitle(context.Background(), folderName)
	if err != nil && err != grabana.ErrFolderNotFound {
		return nil, err
	}

	if folder == nil {
		folder, err = c.cli.CreateFolder(context.Background(), folderName)
		if err != nil {
			return nil, err
		}
	}

	return folder, nil
}

func (c *DashboardCreator) createClientDashboard(folder *grabana.Folder) error {
	db := grabana.NewDashboardBuilder("Batch Client Status",
		grabana.AutoRefresh("5s"),
		grabana.Tags([]string{"generated"}),
		grabana.VariableAsInterval(
			"interval",
			interval.Values([]string{"30s", "1m", "5m", "10m", "30m", "1h", "6h", "12h"}),
		),
		c.overviewRow(),
		c.requestRow(),
		c.latencyRow(),
		c.batchingRow(),
		c.pipelineRow())

	_, err := c.cli.UpsertDashboard(context.Background(), folder, db)
	return err
}

func (c *DashboardCreator) overviewRow() grabana.DashboardBuilderOption {
	return grabana.Row(
		"Overview status",
		c.withSingleStat("Rows succeeded/s",
			fmt.Sprintf(`sum(rate(%srow_total{status="succeed"}[$interval]))`, metricName)),
		c.withSingleStat("Rows failed/s",
			fmt.Sprintf(`sum(rate(%srow_total{status!="succeed"}[$interval]))`, metricName)),
		c.withSingleStat("Batch failures/s",
			fmt.Sprintf(`sum(rate(%sbatch_request_total{status="failed"}[$interval]))`, metricName)),
	)
}

func (c *DashboardCreator) requestRow() grabana.DashboardBuilderOption {
	return grabana.Row(
		"Request status",
		c.withGraph("Batch requests", 4,
			fmt.Sprintf("sum(rate(%sbatch_request_total[$interval])) by (kind, status)", metricName),
			"{{ kind }}({{ status }})"),
		c.withGraph("Single row requests", 4,
			fmt.Sprintf("sum(rate(%ssingle_row_request_total[$interval])) by (kind, status)", metricName),
			"{{ kind }}({{ status }})"),
		c.withGraph("Rows", 4,
			fmt.Sprintf("sum(rate(%srow_total[$interval])) by (kind, status)", metricName),
			"{{ kind }}({{ status }})"),
	)
}

func (c *DashboardCreator) latencyRow() grabana.DashboardBuilderOption {
	var opts []row.Option
	for _, q := range []string{"0.50", "0.99", "0.9999"} {
		opts = append(opts, c.withGraph(fmt.Sprintf("%s%% request time", percent(q)), 4,
			fmt.Sprintf(`histogram_quantile(%s, sum(rate(%srequest_duration_seconds_bucket[$interval])) by (le, kind, type))`,
				q, metricName),
			"{{ kind }}({{ type }})", axis.Unit("s"), axis.Min(0)))
	}
	return grabana.Row("Request latency", opts...)
}

func (c *DashboardCreator) batchingRow() grabana.DashboardBuilderOption {
	var opts []row.Option
	for _, q := range []string{"0.50", "0.99"} {
		opts = append(opts, c.withGraph(fmt.Sprintf("%s%% rows per batch", percent(q)), 3,
			fmt.Sprintf(`histogram_quantile(%s, sum(rate(%sbatch_rows_bucket[$interval])) by (le, kind))`,
				q, metricName),
			"{{ kind }}", axis.Min(0)))
		opts = append(opts, c.withGraph(fmt.Sprintf("%s%% bytes per batch", percent(q)), 3,
			fmt.Sprintf(`histogram_quantile(%s, sum(rate(%sbatch_bytes_bucket[$interval])) by (le, kind))`,
				q, metricName),
			"{{ kind }}", axis.Unit("bytes"), axis.Min(0)))
	}
	return grabana.Row("Batching", opts...)
}

func (c *DashboardCreator) pipelineRow() grabana.DashboardBuilderOption {
	return grabana.Row(
		"Pipeline internal status",
		c.withGraph("Bucket queue", 6,
			fmt.Sprintf("sum(%sbucket_queue_size) by (kind, bucket)", metricName),
			"{{ kind }}-{{ bucket }}"),
		c.withTable("Inflight batch requests", 6,
			fmt.Sprintf("sum(%sinflight_batch_requests) by (kind)", metricName),
			"{{ kind }}"),
	)
}

func percent(quantile string) string {
	switch quantile {
	case "0.50":
		return "50"
	case "0.99":
		return "99"
	case "0.9999":
		return "99.99"
	}
	return quantile
}

func (c *DashboardCreator) withSingleStat(title string, pql string) row.Option {
	return row.WithSingleStat(
		title,
		singlestat.Height("200px"),
		singlestat.Span(4),
		singlestat.WithPrometheusTarget(pql),
		singlestat.Unit("short"),
	)
}

func (c *DashboardCreator) withGraph(title string, span float32, pql string, legend string, opts ...axis.Option) row.Option {
	return row.WithGraph(
		title,
		graph.Span(span),
		graph.Height("400px"),
		graph.DataSource(c.dataSource),
		graph.WithPrometheusTarget(
			pql,
			prometheus.Legend(legend),
		),
		graph.LeftYAxis(opts...),
	)
}

func (c *DashboardCreator) withTable(title string, span float32, pql string, legend string) row.Option {
	return row.WithTable(
		title,
		table.Span(span),
		table.Height("400px"),
		table.DataSource(c.dataSource),
		table.WithPrometheusTarget(
			pql,
			prometheus.Legend(legend)),
		table.AsTimeSeriesAggregations([]table.Aggregation{
			{Label: "Current", Type: table.Current},
			{Label: "Max", Type: table.Max},
			{Label: "Min", Type: table.Min},
		}),
	)
}
