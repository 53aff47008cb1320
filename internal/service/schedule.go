package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/presence-go-api/internal/models"
)

// DefaultLateCutoff is used when no cutoff is configured.
const DefaultLateCutoff = "08:15"

// DaySchedule maps instants to calendar days and classifies lateness against a
// time-of-day cutoff, both in one configured location.
type DaySchedule struct {
	cutoff   time.Duration
	location *time.Location
}

// NewDaySchedule parses an "HH:MM" or "HH:MM:SS" cutoff.
func NewDaySchedule(cutoff string, location *time.Location) (DaySchedule, error) {
	if strings.TrimSpace(cutoff) == "" {
		cutoff = DefaultLateCutoff
	}
	offset, err := parseTimeOfDay(cutoff)
	if err != nil {
		return DaySchedule{}, err
	}
	if location == nil {
		location = time.UTC
	}
	return DaySchedule{cutoff: offset, location: location}, nil
}

// MustDaySchedule is NewDaySchedule for static values; it panics on a bad cutoff.
func MustDaySchedule(cutoff string, location *time.Location) DaySchedule {
	schedule, err := NewDaySchedule(cutoff, location)
	if err != nil {
		panic(err)
	}
	return schedule
}

// Day returns the calendar day of ts in the schedule location.
func (d DaySchedule) Day(ts time.Time) string {
	return ts.In(d.location).Format(models.DateLayout)
}

// IsLate reports whether the local time of day of ts is strictly after the cutoff.
func (d DaySchedule) IsLate(ts time.Time) bool {
	local := ts.In(d.location)
	sinceMidnight := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	return sinceMidnight > d.cutoff
}

// Location returns the zone days are computed in.
func (d DaySchedule) Location() *time.Location {
	return d.location
}

// ParseDay validates a YYYY-MM-DD day string.
func ParseDay(value string) (string, error) {
	parsed, err := time.Parse(models.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return "", invalidField("date", "must be formatted as YYYY-MM-DD")
	}
	return parsed.Format(models.DateLayout), nil
}

func parseTimeOfDay(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	layouts := []string{"15:04:05", "15:04"}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return time.Duration(parsed.Hour())*time.Hour +
				time.Duration(parsed.Minute())*time.Minute +
				time.Duration(parsed.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid late cutoff %q: expected HH:MM or HH:MM:SS", value)
}
