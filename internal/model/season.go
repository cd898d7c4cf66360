package model

import "time"

// Season is a recurring slice of the year for one property. The start and end
// are stored as month/day patterns that repeat annually; a pattern whose start
// falls after its end (e.g. Nov 1 .. Apr 30) wraps the year boundary.
type Season struct {
	ID                 int64     `db:"id"`
	Property           Property  `db:"property"`
	Name               string    `db:"name"`
	StartMonth         int       `db:"start_month"`
	StartDay           int       `db:"start_day"`
	EndMonth           int       `db:"end_month"`
	EndDay             int       `db:"end_day"`
	IsDefault          bool      `db:"is_default"`
	AdvanceBookingDays *int      `db:"advance_booking_days"`
	MaxNights          *int      `db:"max_nights"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// monthDay collapses a date to a comparable MMDD ordinal.
func monthDay(m, d int) int {
	return m*100 + d
}

// Matches reports whether date falls inside the season's recurring pattern.
// Both endpoints are inclusive. The stored year of the pattern is irrelevant;
// only month and day take part in the comparison.
func (s Season) Matches(date time.Time) bool {
	md := monthDay(int(date.Month()), date.Day())
	start := monthDay(s.StartMonth, s.StartDay)
	end := monthDay(s.EndMonth, s.EndDay)

	if start <= end {
		return md >= start && md <= end
	}
	// Wrap-around pattern, e.g. Nov 1 .. Apr 30.
	return md >= start || md <= end
}

// ResolveSeason picks the season matching date out of seasons, falling back to
// the default season. The second return value is false when neither a match
// nor a default exists, which is a catalog configuration error.
func ResolveSeason(seasons []Season, date time.Time) (Season, bool) {
	var def *Season
	for i := range seasons {
		if seasons[i].Matches(date) && !seasons[i].IsDefault {
			return seasons[i], true
		}
		if seasons[i].IsDefault {
			def = &seasons[i]
		}
	}
	if def != nil {
		return *def, true
	}
	return Season{}, false
}
