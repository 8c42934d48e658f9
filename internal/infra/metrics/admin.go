package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminRequestsTotal, adminAuthTotal) }

var (
	adminRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_http_requests_total",
			Help: "Admin API requests by route pattern and status code.",
		},
		[]string{"route", "code"},
	)
	adminAuthTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_auth_total",
			Help: "Admin API bearer checks.",
		},
		[]string{"status"}, // authorized | unauthorized
	)
)

func ObserveAdminRequest(route string, code int) {
	adminRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func IncAdminAuth(status string) {
	adminAuthTotal.WithLabelValues(norm(status)).Inc()
}
