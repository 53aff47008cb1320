package dto

import "time"

// AttendanceStats summarises a set of attendance records.
type AttendanceStats struct {
	Present            int     `json:"present"`
	Late               int     `json:"late"`
	Absent             int     `json:"absent"`
	Total              int     `json:"total"`
	AttendanceRate     int     `json:"attendance_rate"`
	CompletedDays      int     `json:"completed_days"`
	TotalHoursWorked   float64 `json:"total_hours_worked"`
	AverageHoursPerDay float64 `json:"average_hours_per_day"`
}

// StatsQuery selects the population and period of a stats request.
type StatsQuery struct {
	ActorID *uint  `query:"actor_id"`
	Group   string `query:"group" validate:"omitempty,max=64"`
	From    string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To      string `query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// AttendanceStatsResponse wraps stats with the scope they were computed for.
type AttendanceStatsResponse struct {
	Scope       string          `json:"scope"`
	From        string          `json:"from,omitempty"`
	To          string          `json:"to,omitempty"`
	Stats       AttendanceStats `json:"stats"`
	GeneratedAt time.Time       `json:"generated_at"`
	CacheHit    bool            `json:"cache_hit"`
}
