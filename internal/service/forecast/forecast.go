// Argus RidePlan - Ride time and weather planning for GPS routes.
// Copyright (C) 2026  Paulo Sérgio
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package forecast decides which segments get a weather lookup.
//
// Weather providers publish discrete samples at quarter-hour marks
// (:00, :15, :30, :45). For every mark covered by the ride, the segment
// whose passage time is closest to the mark, within the window, is flagged.
package forecast

import (
	"time"

	"argus-rideplan/internal/domain"
)

const (
	DefaultWindow = 5 * time.Minute
	markStep      = 15 * time.Minute
)

// Mark returns a copy of the table with GetForecast set on the selected
// segments. Every other segment is left unflagged. Tables without passage
// times come back unflagged.
//
// Ties are broken in favour of the later passage, so a rider reaching the
// mark one minute late wins over one passing one minute early (12:14 and
// 12:16 around 12:15 select 12:16). This is deliberately not first-seen
// wins. Segments sharing the exact same passage time keep the first one.
func Mark(segments []domain.Segment, window time.Duration) []domain.Segment {
	out := make([]domain.Segment, len(segments))
	copy(out, segments)
	for i := range out {
		out[i].GetForecast = false
	}
	if len(out) == 0 || window < 0 {
		return out
	}

	first, last, ok := span(out)
	if !ok {
		return out
	}

	for _, mark := range Marks(first, last) {
		best := -1
		var bestDiff time.Duration
		for i, s := range out {
			diff := absDuration(s.PassageTime.Sub(mark))
			if diff > window {
				continue
			}
			if best == -1 || diff < bestDiff ||
				(diff == bestDiff && s.PassageTime.After(out[best].PassageTime)) {
				best, bestDiff = i, diff
			}
		}
		if best >= 0 {
			out[best].GetForecast = true
		}
	}
	return out
}

// Marks lists every quarter-hour mark from the hour containing first up to
// the hour at or after last, both inclusive.
func Marks(first, last time.Time) []time.Time {
	start := floorHour(first)
	end := ceilHour(last)

	var marks []time.Time
	for m := start; !m.After(end); m = m.Add(markStep) {
		marks = append(marks, m)
	}
	return marks
}

// Requests lists the lookups the weather collaborator has to perform.
func Requests(segments []domain.Segment) []domain.ForecastRequest {
	var reqs []domain.ForecastRequest
	for _, s := range segments {
		if !s.GetForecast {
			continue
		}
		reqs = append(reqs, domain.ForecastRequest{
			Index:       s.Index,
			Latitude:    s.Latitude,
			Longitude:   s.Longitude,
			PassageTime: s.PassageTime,
			Bearing:     s.Bearing,
		})
	}
	return reqs
}

// NextQuarterHour returns the first quarter-hour mark at least five minutes
// after now. It is the default ride start.
func NextQuarterHour(now time.Time) time.Time {
	t := now.Add(5 * time.Minute)
	base := floorHour(t)
	quarter := (t.Minute()/15 + 1) * 15
	return base.Add(time.Duration(quarter) * time.Minute)
}

func span(segments []domain.Segment) (time.Time, time.Time, bool) {
	first, last := segments[0].PassageTime, segments[0].PassageTime
	for _, s := range segments {
		if s.PassageTime.IsZero() {
			return time.Time{}, time.Time{}, false
		}
		if s.PassageTime.Before(first) {
			first = s.PassageTime
		}
		if s.PassageTime.After(last) {
			last = s.PassageTime
		}
	}
	return first, last, true
}

func floorHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

func ceilHour(t time.Time) time.Time {
	f := floorHour(t)
	if f.Equal(t) {
		return f
	}
	return f.Add(time.Hour)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
