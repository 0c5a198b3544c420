package models

// DashboardStats is the read-only system overview shown to admins.
type DashboardStats struct {
	TotalManagers     int `json:"total_managers"`
	AvailableManagers int `json:"available_managers"`
	PendingChats      int `json:"pending_chats"`
	ActiveChats       int `json:"active_chats"`
}

// ManagerPerformance aggregates a manager's handled chats and ratings
// over a reporting period. BoundChats is a recount of chat rows
// currently bound to the manager, independent of the advisory
// active_chats counter, so counter drift is visible in reports.
type ManagerPerformance struct {
	ManagerID       int64   `json:"manager_id"`
	Name            string  `json:"name"`
	TotalChats      int     `json:"total_chats"`
	ActiveCounter   int     `json:"active_counter"`
	BoundChats      int     `json:"bound_chats"`
	AvgRating       float64 `json:"avg_rating"`
	RatingCount     int     `json:"rating_count"`
	PositiveRatings int     `json:"positive_ratings"`
	NegativeRatings int     `json:"negative_ratings"`
}
