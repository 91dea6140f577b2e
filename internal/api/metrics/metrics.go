// Package metrics defines and registers all custom Prometheus metrics
// for the mini-app backend. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics register with the default Prometheus registry at package load;
// the /metrics route exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "miniapp"

// ── Trust boundary metrics ───────────────────────────────────────────────────

// VerificationsTotal counts signature verification outcomes per channel.
// Labels:
//   - channel: "client_payload", "bot_webhook", or "payment_webhook"
//   - result: "valid", "missing", "invalid", or "expired"
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total number of inbound signature verifications, by channel and result.",
	},
	[]string{"channel", "result"},
)

// AuthFlowsTotal counts terminal auth flow outcomes.
// Labels:
//   - flow: "client_payload", "code", "deep_link", "email_signup", "email_login"
//   - result: "success" or "failure"
var AuthFlowsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_flows_total",
		Help:      "Total number of completed authentication flows, by flow and result.",
	},
	[]string{"flow", "result"},
)

// ── Session metrics ──────────────────────────────────────────────────────────

// SessionsIssuedTotal counts sessions issued across all flows.
var SessionsIssuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_issued_total",
		Help:      "Total number of sessions issued.",
	},
)

// SessionsRevokedTotal counts explicit logouts.
var SessionsRevokedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_revoked_total",
		Help:      "Total number of sessions revoked by logout.",
	},
)

// ── Webhook metrics ──────────────────────────────────────────────────────────

// UpdatesDedupTotal counts webhook deduplication decisions.
// Label:
//   - result: "hit" (duplicate, skipped) or "miss" (new update, dispatched)
var UpdatesDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_dedup_total",
		Help:      "Total number of webhook deduplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// UpdatesQueueDepth tracks updates waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var UpdatesQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "updates_queue_depth",
		Help:      "Current number of updates pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
