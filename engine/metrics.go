// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for query execution
var (
	promQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ormbridge_queries_total",
			Help: "Total number of queries executed by the engine",
		},
		[]string{"connection", "operation", "status"},
	)
	promQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ormbridge_query_duration_milliseconds",
			Help:    "Query duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"connection", "operation"},
	)
	promCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ormbridge_cache_lookups_total",
			Help: "Query cache lookups by result",
		},
		[]string{"connection", "result"},
	)
)

func init() {
	prometheus.MustRegister(promQueries)
	prometheus.MustRegister(promQueryDuration)
	prometheus.MustRegister(promCacheLookups)
}
