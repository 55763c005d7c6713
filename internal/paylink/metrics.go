package paylink

import "github.com/prometheus/client_golang/prometheus"

var (
	linksCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "splitpay",
		Subsystem: "paylink",
		Name:      "links_created_total",
		Help:      "Total payment links created.",
	})

	paymentsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "splitpay",
		Subsystem: "paylink",
		Name:      "payments_completed_total",
		Help:      "Total payment links settled.",
	})

	paymentsCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "splitpay",
		Subsystem: "paylink",
		Name:      "payments_cancelled_total",
		Help:      "Total payment links cancelled by their creator.",
	})
)

func init() {
	prometheus.MustRegister(linksCreatedTotal, paymentsCompletedTotal, paymentsCancelledTotal)
}
