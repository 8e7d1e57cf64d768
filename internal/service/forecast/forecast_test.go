package forecast

import (
	"testing"
	"time"

	"argus-rideplan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2025-06-01 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func table(times ...string) []domain.Segment {
	segs := make([]domain.Segment, len(times))
	for i, hhmm := range times {
		segs[i] = domain.Segment{Index: i, PassageTime: at(hhmm), Latitude: 45, Longitude: float64(i)}
	}
	return segs
}

func flagged(segs []domain.Segment) []int {
	var idx []int
	for _, s := range segs {
		if s.GetForecast {
			idx = append(idx, s.Index)
		}
	}
	return idx
}

func TestMarkTieBreakPrefersLaterPassage(t *testing.T) {
	segs := table("12:01", "12:14", "12:16", "12:29")
	got := Mark(segs, DefaultWindow)

	// 12:00 -> 12:01, 12:15 -> 12:16 (tie with 12:14), 12:30 -> 12:29
	assert.Equal(t, []int{0, 2, 3}, flagged(got))
}

func TestMarkIsDeterministic(t *testing.T) {
	segs := table("12:01", "12:14", "12:16", "12:29")
	first := Mark(segs, DefaultWindow)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Mark(segs, DefaultWindow))
	}
}

func TestMarkSelectsClosestWithinWindow(t *testing.T) {
	segs := table("08:52", "08:57", "08:59", "09:03", "09:09", "09:22", "09:40")
	got := Mark(segs, DefaultWindow)

	// 09:00 -> 08:59, 09:15 none (09:09 is 6 min away), 09:30 none, 09:45 -> 09:40
	assert.Equal(t, []int{2, 6}, flagged(got))
}

func TestMarkDoesNotMutateInput(t *testing.T) {
	segs := table("12:00", "12:15")
	_ = Mark(segs, DefaultWindow)
	assert.Empty(t, flagged(segs))
}

func TestMarkClearsStaleFlags(t *testing.T) {
	segs := table("12:07", "12:08")
	segs[0].GetForecast = true
	assert.Empty(t, flagged(Mark(segs, DefaultWindow)))
}

func TestMarkEmptyAndUnscheduled(t *testing.T) {
	assert.Empty(t, Mark(nil, DefaultWindow))

	segs := []domain.Segment{{Index: 0}, {Index: 1}}
	assert.Empty(t, flagged(Mark(segs, DefaultWindow)))
}

func TestMarkAtMostOnePerMark(t *testing.T) {
	var times []string
	for m := 0; m < 60; m++ {
		times = append(times, at("10:00").Add(time.Duration(m)*time.Minute).Format("15:04"))
	}
	got := Mark(table(times...), DefaultWindow)

	// 11:00 is picked up by the 10:59 passage
	assert.Equal(t, []int{0, 15, 30, 45, 59}, flagged(got))
}

func TestMarks(t *testing.T) {
	marks := Marks(at("12:01"), at("12:29"))
	require.Len(t, marks, 5)
	assert.Equal(t, at("12:00"), marks[0])
	assert.Equal(t, at("13:00"), marks[4])

	exact := Marks(at("12:00"), at("13:00"))
	assert.Len(t, exact, 5)
}

func TestRequests(t *testing.T) {
	segs := Mark(table("12:01", "12:14", "12:16", "12:29"), DefaultWindow)
	segs[2].Bearing = 270

	reqs := Requests(segs)
	require.Len(t, reqs, 3)
	assert.Equal(t, 2, reqs[1].Index)
	assert.Equal(t, at("12:16"), reqs[1].PassageTime)
	assert.Equal(t, 270.0, reqs[1].Bearing)
	assert.Equal(t, 2.0, reqs[1].Longitude)
}

func TestNextQuarterHour(t *testing.T) {
	assert.Equal(t, at("12:15"), NextQuarterHour(at("12:02")))
	assert.Equal(t, at("12:30"), NextQuarterHour(at("12:11")))
	assert.Equal(t, at("13:00"), NextQuarterHour(at("12:50")))
	assert.Equal(t, at("13:00"), NextQuarterHour(at("12:45")))
}
