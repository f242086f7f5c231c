package quota

import "time"

// UserQuota is the durable usage record kept per user under "usage:<userID>".
type UserQuota struct {
	RequestsToday int    `json:"requests_today"`
	LastResetDate string `json:"last_reset_date"`
	TotalRequests int    `json:"total_requests"`
}

// Snapshot is a read-only view of one user's usage after rollover.
type Snapshot struct {
	RequestsToday int       `json:"requests_today"`
	DailyLimit    int       `json:"daily_limit"`
	Remaining     int       `json:"remaining"`
	TotalRequests int       `json:"total_requests"`
	NextReset     time.Time `json:"next_reset"`
}

// GlobalStats aggregates every stored usage record.
type GlobalStats struct {
	TotalUsers            int `json:"total_users"`
	TotalRequestsAllTime  int `json:"total_requests_all_time"`
	RequestsTodayAllUsers int `json:"requests_today_all_users"`
}
