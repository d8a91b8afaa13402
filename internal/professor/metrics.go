package professor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricSignIns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "evaldash_sign_ins_total",
	Help: "Sign-in attempts by outcome.",
}, []string{"outcome"})
