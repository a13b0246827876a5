package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/event"
)

// Metrics counts domain events as they cross the bus.
type Metrics struct {
	invitations *prometheus.CounterVec
	removals    *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	scores      prometheus.Histogram
}

// NewMetrics registers the collectors on reg and subscribes them to eb.
func NewMetrics(reg prometheus.Registerer, eb *event.Bus) (*Metrics, error) {
	m := &Metrics{
		invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgquiz",
			Name:      "invitation_transitions_total",
			Help:      "Invitations created or responded to, by type and resulting status.",
		}, []string{"type", "status"}),
		removals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgquiz",
			Name:      "member_removals_total",
			Help:      "Members that left or were removed from a company.",
		}, []string{"reason"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgquiz",
			Name:      "quiz_attempts_total",
			Help:      "Scored quiz attempts, by whether every question was answered correctly.",
		}, []string{"perfect"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orgquiz",
			Name:      "quiz_attempt_score",
			Help:      "Score of quiz attempts, in percent.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}

	for _, c := range []prometheus.Collector{m.invitations, m.removals, m.attempts, m.scores} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	eb.Subscribe(domain.EventNameInvitationCreated, func(_ context.Context, e event.Event) error {
		inv := e.(domain.EventInvitationCreated).Invitation
		m.invitations.WithLabelValues(string(inv.Type), string(inv.Status)).Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameInvitationResponded, func(_ context.Context, e event.Event) error {
		inv := e.(domain.EventInvitationResponded).Invitation
		m.invitations.WithLabelValues(string(inv.Type), string(inv.Status)).Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameMemberRemoved, func(_ context.Context, e event.Event) error {
		reason := "removed"
		if e.(domain.EventMemberRemoved).Left {
			reason = "left"
		}
		m.removals.WithLabelValues(reason).Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameQuizAttempted, func(_ context.Context, e event.Event) error {
		a := e.(domain.EventQuizAttempted).Attempt
		perfect := "false"
		if a.TotalQuestions > 0 && a.CorrectAnswersCount == a.TotalQuestions {
			perfect = "true"
		}
		m.attempts.WithLabelValues(perfect).Inc()
		m.scores.Observe(a.Score.InexactFloat64())
		return nil
	})

	return m, nil
}
