package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the OncoBrief service.
// Metrics are organized by subsystem: digests, articles, summarization,
// PubMed requests, podcasts, and email. All counters and histograms are
// registered via promauto against the provided registerer.
type Metrics struct {
	// DigestsGenerated counts digest pipeline runs that completed successfully.
	DigestsGenerated prometheus.Counter

	// DigestsFailed counts digest pipeline runs that ended in failure.
	DigestsFailed prometheus.Counter

	// DigestDuration observes the end-to-end duration of digest runs in seconds.
	DigestDuration prometheus.Histogram

	// ArticlesPerDigest observes the distribution of article counts per digest.
	ArticlesPerDigest prometheus.Histogram

	// ArticlesSummarized counts articles that received an AI summary.
	ArticlesSummarized prometheus.Counter

	// SummaryFallbacks counts summaries produced by the extractive fallback
	// after all generative attempts were exhausted.
	SummaryFallbacks prometheus.Counter

	// SummaryRetries counts individual retry attempts against the generative API.
	SummaryRetries prometheus.Counter

	// PubMedRequests counts requests to the PubMed E-utilities API, labeled
	// by endpoint (esearch, efetch).
	PubMedRequests *prometheus.CounterVec

	// PubMedRequestsFailed counts failed PubMed requests, labeled by endpoint.
	PubMedRequestsFailed *prometheus.CounterVec

	// TopicSearches counts topic explorer searches, labeled by outcome
	// (found, empty, fallback).
	TopicSearches *prometheus.CounterVec

	// PodcastChunks observes the number of SSML chunks synthesized per podcast.
	PodcastChunks prometheus.Histogram

	// PodcastsGenerated counts podcasts synthesized successfully.
	PodcastsGenerated prometheus.Counter

	// EmailsSent counts digest emails delivered to the SMTP relay.
	EmailsSent prometheus.Counter

	// EmailsFailed counts digest emails that failed to send.
	EmailsFailed prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered with the default
// Prometheus registry. The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a new Metrics instance registered with the given
// registerer. Tests pass a fresh registry to avoid duplicate registration.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DigestsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_generated_total",
			Help:      "Total number of digests generated successfully",
		}),
		DigestsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_failed_total",
			Help:      "Total number of digest generation runs that failed",
		}),
		DigestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "digest_duration_seconds",
			Help:      "Duration of digest generation runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		ArticlesPerDigest: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "articles_per_digest",
			Help:      "Number of articles included per digest",
			Buckets:   []float64{0, 1, 5, 10, 15, 25, 50},
		}),
		ArticlesSummarized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_summarized_total",
			Help:      "Total number of articles that received an AI summary",
		}),
		SummaryFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_fallbacks_total",
			Help:      "Total number of extractive fallback summaries produced",
		}),
		SummaryRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_retries_total",
			Help:      "Total number of retry attempts against the generative API",
		}),
		PubMedRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubmed_requests_total",
			Help:      "Total number of PubMed E-utilities requests by endpoint",
		}, []string{"endpoint"}),
		PubMedRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubmed_requests_failed_total",
			Help:      "Total number of failed PubMed E-utilities requests by endpoint",
		}, []string{"endpoint"}),
		TopicSearches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topic_searches_total",
			Help:      "Total number of topic explorer searches by outcome",
		}, []string{"outcome"}),
		PodcastChunks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "podcast_chunks",
			Help:      "Number of SSML chunks synthesized per podcast",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		}),
		PodcastsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "podcasts_generated_total",
			Help:      "Total number of podcasts synthesized successfully",
		}),
		EmailsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Total number of digest emails sent",
		}),
		EmailsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_failed_total",
			Help:      "Total number of digest emails that failed to send",
		}),
	}
}
