package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Métricas de negócio
	VoiceCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_voice_commands_total",
		Help: "Total de comandos de voz processados",
	}, []string{"intent", "status"})

	VoiceLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirror_voice_latency_seconds",
		Help:    "Latência de processamento de voz",
		Buckets: prometheus.DefBuckets,
	})

	CompletionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirror_completion_failures_total",
		Help: "Falhas do motor de completions resolvidas como intent desconhecido",
	})

	// Métricas de infraestrutura
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_connected_clients",
		Help: "Sessões conectadas ao canal de push",
	})

	BroadcastFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mirror_broadcast_failures_total",
		Help: "Entregas de eventos push que falharam",
	})

	TTSCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_tts_cache_hits_total",
		Help: "Consultas ao cache de síntese de voz",
	}, []string{"result"})
)
