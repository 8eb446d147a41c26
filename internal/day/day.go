// Package day maps local sidereal day (LSD) ordinals to civil dates and time
// intervals.
package day

import (
	"fmt"
	"math"
	"time"
	_ "time/tzdata"
)

const (
	// CSDZero is the unix time at which LSD 0 starts (2013-11-15 04:21:30.908 UTC).
	CSDZero = 1384489290.908304

	// SiderealSecond is the length of one sidereal second in SI seconds.
	SiderealSecond = 0.9972695663290682

	// SiderealDay is the length of one sidereal day in SI seconds.
	SiderealDay = 86400 * SiderealSecond
)

var pacific = loadPacific()

func loadPacific() *time.Location {
	loc, err := time.LoadLocation("America/Vancouver")
	if err != nil {
		return time.FixedZone("PST", -8*3600)
	}
	return loc
}

// Day is one acquisition period. Two Days are equal iff their ordinals are equal.
type Day struct {
	LSD int
}

// FromLSD returns the Day with ordinal lsd.
func FromLSD(lsd int) Day {
	return Day{LSD: lsd}
}

// FromTime returns the Day whose interval contains t.
func FromTime(t time.Time) Day {
	unix := float64(t.UnixNano()) / 1e9
	return Day{LSD: int(math.Floor((unix - CSDZero) / SiderealDay))}
}

// FromDate returns the Day that starts during the given civil date (PT).
func FromDate(date time.Time) Day {
	y, m, d := date.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, pacific)
	next := FromTime(midnight).LSD + 1
	// Pick the first LSD starting on this date. Short (DST) dates may have none,
	// in which case the one covering midnight is used.
	if FromLSD(next).Start().Before(midnight.AddDate(0, 0, 1)) {
		return FromLSD(next)
	}
	return FromTime(midnight)
}

// Start returns the inclusive start of the day.
func (d Day) Start() time.Time {
	return unixToTime(CSDZero + float64(d.LSD)*SiderealDay)
}

// End returns the exclusive end of the day.
func (d Day) End() time.Time {
	return unixToTime(CSDZero + float64(d.LSD+1)*SiderealDay)
}

// Interval returns [Start, End).
func (d Day) Interval() (time.Time, time.Time) {
	return d.Start(), d.End()
}

// Contains reports whether t falls within [Start, End).
func (d Day) Contains(t time.Time) bool {
	return !t.Before(d.Start()) && t.Before(d.End())
}

// Date returns the civil date (PT) on which the day starts, at midnight.
func (d Day) Date() time.Time {
	y, m, dd := d.Start().In(pacific).Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, pacific)
}

func (d Day) String() string {
	return fmt.Sprintf("%d [%s (PT)]", d.LSD, d.Date().Format("2006-01-02"))
}

// Compare orders Days by ordinal.
func Compare(a, b Day) int {
	switch {
	case a.LSD < b.LSD:
		return -1
	case a.LSD > b.LSD:
		return 1
	}
	return 0
}

func unixToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
