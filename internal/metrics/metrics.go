package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts attendance sessions created.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classattend_sessions_created_total",
		Help: "Attendance sessions created.",
	})

	// SessionsActivated counts successful activations.
	SessionsActivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classattend_sessions_activated_total",
		Help: "Attendance sessions activated.",
	})

	// CodeVerifications counts code verification attempts by outcome.
	CodeVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_code_verifications_total",
		Help: "Attendance code verification attempts.",
	}, []string{"outcome"})

	// Admissions counts selfie submissions by outcome.
	Admissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classattend_admissions_total",
		Help: "Selfie admission attempts.",
	}, []string{"outcome"})
)
