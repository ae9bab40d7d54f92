package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WalletOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwallet_wallet_operations_total",
			Help: "Wallet operations by operation and outcome",
		},
		[]string{"operation", "outcome"}, // topup|withdraw|... , ok|<error code>
	)

	GuardAccounts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwallet_guard_accounts_total",
			Help: "Accounts checked by the budget guard by detected condition",
		},
		[]string{"condition"}, // none|low_balance|spend_exceeded|error
	)

	GuardCampaignsPaused = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adwallet_guard_campaigns_paused_total",
			Help: "Campaigns paused by the budget guard",
		},
	)

	GuardRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwallet_guard_runs_total",
			Help: "Budget guard ticks by result",
		},
		[]string{"result"}, // ok|failed
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwallet_notifications_total",
			Help: "Notification dispatch outcomes by status and channel",
		},
		[]string{"status", "channel"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwallet_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		WalletOperations,
		GuardAccounts,
		GuardCampaignsPaused,
		GuardRuns,
		Notifications,
		HTTPRequests,
	)
}
