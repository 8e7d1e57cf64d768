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

package fit

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"argus-rideplan/internal/domain"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/kit/bufferedwriter"
	"github.com/muktihari/fit/kit/scaleoffset"
	"github.com/muktihari/fit/kit/semicircles"
	"github.com/muktihari/fit/profile/filedef"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
)

var ErrEmptyPlan = errors.New("plan has no segments to export")

const productName = "Argus RidePlan"

// Service writes a computed plan as a FIT course, so the predicted passage
// times can be raced against on a head unit.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Save writes the course to a file.
func (s *Service) Save(path string, plan *domain.Plan) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := s.Export(f, plan); err != nil {
		return err
	}
	return f.Close()
}

// Export encodes the course: file id, course, one lap with the totals, timer
// start/stop events and one record per segment. Course points are not written.
func (s *Service) Export(w io.Writer, plan *domain.Plan) error {
	if plan == nil || len(plan.Segments) == 0 {
		return ErrEmptyPlan
	}
	segs := plan.Segments
	first, last := segs[0], segs[len(segs)-1]

	name := plan.RouteName
	if name == "" {
		name = "Untitled Route"
	}

	course := filedef.NewCourse()

	// 1. File header
	course.FileId = *mesgdef.NewFileId(nil).
		SetType(typedef.FileCourse).
		SetTimeCreated(first.PassageTime).
		SetManufacturer(typedef.ManufacturerDevelopment).
		SetProduct(0).
		SetProductName(productName)

	course.Course = mesgdef.NewCourse(nil).
		SetName(name).
		SetSport(typedef.SportCycling).
		SetCapabilities(typedef.CourseCapabilitiesPosition | typedef.CourseCapabilitiesTime | typedef.CourseCapabilitiesDistance)

	// 2. Lap with route totals
	elapsed := uint32(plan.Summary.TotalDuration.Milliseconds())
	course.Lap = mesgdef.NewLap(nil).
		SetTimestamp(last.PassageTime).
		SetStartTime(first.PassageTime).
		SetStartPositionLat(semicircles.ToSemicircles(first.Latitude)).
		SetStartPositionLong(semicircles.ToSemicircles(first.Longitude)).
		SetEndPositionLat(semicircles.ToSemicircles(last.Latitude)).
		SetEndPositionLong(semicircles.ToSemicircles(last.Longitude)).
		SetTotalElapsedTime(elapsed).
		SetTotalTimerTime(elapsed).
		SetTotalDistance(uint32(scaleoffset.Discard(last.CumDistance, 100, 0))).
		SetTotalAscent(uint16(math.Round(last.CumGain))).
		SetTotalDescent(uint16(math.Round(math.Abs(last.CumLoss))))

	// 3. Timer events around the records
	course.Events = append(course.Events,
		mesgdef.NewEvent(nil).
			SetTimestamp(first.PassageTime).
			SetEvent(typedef.EventTimer).
			SetEventType(typedef.EventTypeStart),
	)

	for _, seg := range segs {
		record := mesgdef.NewRecord(nil).
			SetTimestamp(seg.PassageTime).
			SetPositionLat(semicircles.ToSemicircles(seg.Latitude)).
			SetPositionLong(semicircles.ToSemicircles(seg.Longitude)).
			SetDistance(uint32(scaleoffset.Discard(seg.CumDistance, 100, 0))).
			SetAltitude(uint16(scaleoffset.Discard(seg.ElevationSmooth, 5, 500))).
			SetSpeed(uint16(scaleoffset.Discard(seg.Speed/3.6, 1000, 0)))
		if plan.Power > 0 {
			record.SetPower(uint16(math.Round(plan.Power)))
		}
		course.Records = append(course.Records, record)
	}

	course.Events = append(course.Events,
		mesgdef.NewEvent(nil).
			SetTimestamp(last.PassageTime).
			SetEvent(typedef.EventTimer).
			SetEventType(typedef.EventTypeStopAll),
	)

	// 4. Encode
	fit := course.ToFIT(nil)
	bw := bufferedwriter.New(w)
	if err := encoder.New(bw).Encode(&fit); err != nil {
		return fmt.Errorf("encode fit course: %w", err)
	}
	return bw.Flush()
}
