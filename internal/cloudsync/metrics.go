package cloudsync

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nurpe/obras-service/internal/model"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	loads       *prometheus.CounterVec
	pushes      *prometheus.CounterVec
	deletes     *prometheus.CounterVec
	rowsPushed  *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obras",
			Subsystem: "sync",
			Name:      "loads_total",
			Help:      "Full state loads from the remote store.",
		}, []string{"result"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obras",
			Subsystem: "sync",
			Name:      "pushes_total",
			Help:      "Debounced push cycles to the remote store.",
		}, []string{"result"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obras",
			Subsystem: "sync",
			Name:      "deletes_total",
			Help:      "Remote-first record deletions.",
		}, []string{"kind", "result"}),
		rowsPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obras",
			Subsystem: "sync",
			Name:      "rows_pushed_total",
			Help:      "Rows upserted to the remote store.",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "obras",
			Subsystem: "sync",
			Name:      "status_transitions_total",
			Help:      "Sync status transitions by target status.",
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(m.loads, m.pushes, m.deletes, m.rowsPushed, m.transitions)
	}
	return m
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func (m *Metrics) observeLoad(ok bool) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) observePush(ok bool) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) observeDelete(kind model.Kind, ok bool) {
	if m == nil {
		return
	}
	m.deletes.WithLabelValues(string(kind), result(ok)).Inc()
}

func (m *Metrics) observeRows(kind model.Kind, n int) {
	if m == nil {
		return
	}
	m.rowsPushed.WithLabelValues(string(kind)).Add(float64(n))
}

func (m *Metrics) setStatus(s Status) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(s)).Inc()
}
