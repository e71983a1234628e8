// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/choria-io/archinstall/model"
)

var (
	NameSpace = "choria"
	Subsystem = "archinstall"

	// DownloadTime is a summary of the time taken to download an archive
	DownloadTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "download_duration_seconds"),
		Help: "Time taken to download an archive",
	}, []string{"host"})

	// DownloadCount counts downloads by outcome
	DownloadCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "download_count"),
		Help: "How many archive downloads were attempted",
	}, []string{"host", "status"})

	// DownloadRetryCount counts downloads that were retried after a transient failure
	DownloadRetryCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "download_retry_count"),
		Help: "How many downloads were retried",
	}, []string{"host"})

	// DownloadBytes counts bytes received from remote servers
	DownloadBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "download_bytes"),
		Help: "How many bytes were downloaded",
	}, []string{"host"})

	// ExtractTime is a summary of the time taken to extract an archive
	ExtractTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "extract_duration_seconds"),
		Help: "Time taken to extract an archive",
	}, []string{"format"})

	// PipelineRunTime is a summary of the time taken by a complete install pipeline run
	PipelineRunTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "pipeline_duration_seconds"),
		Help: "Time taken by a complete install pipeline run",
	}, []string{"outcome"})

	// PipelineOutcomeCount counts pipeline runs by their terminal stage
	PipelineOutcomeCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "pipeline_outcome_count"),
		Help: "How many pipeline runs ended in a certain stage",
	}, []string{"outcome", "stage"})

	// CacheHitCount counts cache ensure calls that found the cache ready
	CacheHitCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "cache_hit_count"),
		Help: "How many cache ensure calls found a ready cache",
	}, []string{"cache"})

	// CacheMissCount counts cache ensure calls that had to download and extract
	CacheMissCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "cache_miss_count"),
		Help: "How many cache ensure calls had to populate the cache",
	}, []string{"cache"})

	// CacheCleanCount counts cache removals
	CacheCleanCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "cache_clean_count"),
		Help: "How many times a cache was cleaned",
	}, []string{"cache"})
)

func RegisterMetrics() {
	prometheus.MustRegister(DownloadTime)
	prometheus.MustRegister(DownloadCount)
	prometheus.MustRegister(DownloadRetryCount)
	prometheus.MustRegister(DownloadBytes)
	prometheus.MustRegister(ExtractTime)
	prometheus.MustRegister(PipelineRunTime)
	prometheus.MustRegister(PipelineOutcomeCount)
	prometheus.MustRegister(CacheHitCount)
	prometheus.MustRegister(CacheMissCount)
	prometheus.MustRegister(CacheCleanCount)
}

func ListenAndServe(port int, log model.Logger) {
	if port <= 0 {
		return
	}

	go func() {
		log.Info("Starting monitoring server", "port", port)
		http.Handle("/metrics", promhttp.Handler())
		err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
		if err != nil {
			log.Error("HTTP Listener failed", "error", err)
		}
	}()
}
