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

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "cubebatch"
	subsystem = "client"
)

var (
	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(queueGauge)
	registry.MustRegister(inflightGauge)

	registry.MustRegister(batchRequestCounter)
	registry.MustRegister(singleRequestCounter)
	registry.MustRegister(rowCounter)

	registry.MustRegister(batchRowsHistogram)
	registry.MustRegister(batchBytesHistogram)
	registry.MustRegister(requestDurationHistogram)
}

// Registry returns the registry holding all client metrics
func Registry() *prometheus.Registry {
	return registry
}
