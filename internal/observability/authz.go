package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AuthzMetrics records permission decisions and role snapshot state.
// It satisfies rbac.DecisionObserver and rbac.SnapshotObserver.
type AuthzMetrics struct {
	decisions *prometheus.CounterVec
	roles     prometheus.Gauge
	version   prometheus.Gauge
}

// NewAuthzMetrics registers the authorization collectors against registerer.
func NewAuthzMetrics(registerer prometheus.Registerer) *AuthzMetrics {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staffora_authz_decisions_total",
		Help: "Permission decisions by resource, action and result.",
	}, []string{"resource", "action", "result"})
	roles := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "staffora_authz_roles_loaded",
		Help: "Roles in the active snapshot.",
	})
	version := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "staffora_authz_snapshot_version",
		Help: "Version of the active role snapshot.",
	})
	registerer.MustRegister(decisions, roles, version)
	return &AuthzMetrics{decisions: decisions, roles: roles, version: version}
}

// ObserveDecision counts one decision.
func (m *AuthzMetrics) ObserveDecision(action, resource string, allowed bool) {
	if m == nil {
		return
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.decisions.WithLabelValues(resource, action, result).Inc()
}

// ObserveSnapshot tracks the installed snapshot.
func (m *AuthzMetrics) ObserveSnapshot(roles int, version uint64) {
	if m == nil {
		return
	}
	m.roles.Set(float64(roles))
	m.version.Set(float64(version))
}
