package model

import "time"

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date truncates t to a UTC calendar date. All engine date math runs on these
// normalized values so that zone offsets never shift a stay by a day.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Nights returns the number of nights between checkin and checkout.
func Nights(checkin, checkout time.Time) int {
	return int(Date(checkout).Sub(Date(checkin)).Hours() / 24)
}

// NightsOf enumerates every night of a stay: the half-open range
// [checkin, checkout). The checkout date itself is excluded, which is what
// permits same-day turnover between two bookings.
func NightsOf(checkin, checkout time.Time) []time.Time {
	var days []time.Time
	for d := Date(checkin); d.Before(Date(checkout)); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DaysOf enumerates every day of a daytime visit: the closed range
// [start, end]. Day-use capacity is consumed on each calendar day present,
// including the last one.
func DaysOf(start, end time.Time) []time.Time {
	var days []time.Time
	for d := Date(start); !d.After(Date(end)); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DaysUntil returns how many whole days remain from `from` until `until`.
// The result is negative when `from` is already past `until`.
func DaysUntil(from, until time.Time) int {
	return int(Date(until).Sub(Date(from)).Hours() / 24)
}
