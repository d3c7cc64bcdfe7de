// Copyright © 2026 Noesis Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cicerone_chats_total",
		Help: "Answered questions by tenant and answer source.",
	}, []string{"tenant", "source"})

	guardrailRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cicerone_guardrail_rejections_total",
		Help: "SQL statements rejected by the guardrail, by rule.",
	}, []string{"tenant", "rule"})

	pipelineBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cicerone_pipeline_builds_total",
		Help: "Pipeline assemblies, counting warmup and config-version rebuilds.",
	}, []string{"tenant"})
)
