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

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"argus-rideplan/internal/domain"
	"argus-rideplan/internal/logging"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("record not found")

// PlanRecord is the stored form of a computed plan. The segment table, the
// setup and the statistics are kept as JSON blobs; only the list columns are
// real columns.
type PlanRecord struct {
	ID         string    `gorm:"primaryKey"`
	RouteName  string    `gorm:"index"`
	Power      float64
	Start      time.Time
	End        time.Time
	DistanceKm float64
	TotalTime  string
	Setup      string
	Summary    string
	Stats      string
	Segments   string
	CreatedAt  time.Time `gorm:"index"`
}

// Service encapsulates all database operations.
// It acts as the persistence layer of the application.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewService opens the database and runs migrations. A default bike profile
// is created when none exists.
func NewService(path string, defaults domain.BikeProfile, log *zap.Logger) (*Service, error) {
	log = logging.Or(log).Named("storage")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// AutoMigrate creates or updates the tables from the models.
	if err := db.AutoMigrate(&domain.BikeProfile{}, &PlanRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	// The application assumes a single rider.
	var count int64
	db.Model(&domain.BikeProfile{}).Count(&count)
	if count == 0 {
		defaults.ID = 1
		if defaults.Name == "" {
			defaults.Name = "Cyclist"
		}
		if err := db.Create(&defaults).Error; err != nil {
			return nil, fmt.Errorf("create default profile: %w", err)
		}
		log.Info("created default bike profile", zap.String("name", defaults.Name))
	}

	return &Service{db: db, log: log}, nil
}

// Close releases the underlying connection pool.
func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============
// BIKE PROFILE
// ============

// GetProfile returns the single bike profile.
func (s *Service) GetProfile() (domain.BikeProfile, error) {
	var p domain.BikeProfile
	if err := s.db.First(&p).Error; err != nil {
		return p, wrap(err)
	}
	return p, nil
}

// SaveProfile replaces the profile. The ID is forced to 1 so the same row is
// always updated.
func (s *Service) SaveProfile(p domain.BikeProfile) error {
	p.ID = 1
	if err := s.db.Save(&p).Error; err != nil {
		s.log.Error("failed to save profile", zap.Error(err))
		return err
	}
	return nil
}

// =====
// PLANS
// =====

func (s *Service) SavePlan(p *domain.Plan) error {
	rec, err := toRecord(p)
	if err != nil {
		return err
	}
	if err := s.db.Save(rec).Error; err != nil {
		s.log.Error("failed to save plan", zap.String("id", p.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) GetPlan(id string) (*domain.Plan, error) {
	var rec PlanRecord
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		return nil, wrap(err)
	}
	return fromRecord(&rec)
}

// ListPlans returns the most recent plans, newest first. limit <= 0 means all.
func (s *Service) ListPlans(limit int) ([]domain.PlanInfo, error) {
	q := s.db.Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []PlanRecord
	if err := q.Omit("segments", "setup", "stats", "summary").Find(&recs).Error; err != nil {
		return nil, err
	}
	return infos(recs), nil
}

// PlansByMonth lists plans whose ride starts in the given month (YYYY-MM).
func (s *Service) PlansByMonth(month string) ([]domain.PlanInfo, error) {
	var recs []PlanRecord
	err := s.db.Omit("segments", "setup", "stats", "summary").
		Where("strftime('%Y-%m', start) = ?", month).
		Order("start asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return infos(recs), nil
}

func (s *Service) DeletePlan(id string) error {
	res := s.db.Delete(&PlanRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TotalPlannedDistance sums the distance of every stored plan.
func (s *Service) TotalPlannedDistance() float64 {
	// A pointer is used to handle NULL values returned by SQL aggregation.
	var total *float64
	if err := s.db.Model(&PlanRecord{}).Select("sum(distance_km)").Scan(&total).Error; err != nil || total == nil {
		return 0
	}
	return *total
}

func toRecord(p *domain.Plan) (*PlanRecord, error) {
	segments, err := json.Marshal(p.Segments)
	if err != nil {
		return nil, fmt.Errorf("encode segments: %w", err)
	}
	setup, err := json.Marshal(p.Setup)
	if err != nil {
		return nil, fmt.Errorf("encode setup: %w", err)
	}
	summary, err := json.Marshal(p.Summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	stats, err := json.Marshal(p.Stats)
	if err != nil {
		return nil, fmt.Errorf("encode stats: %w", err)
	}
	return &PlanRecord{
		ID:         p.ID,
		RouteName:  p.RouteName,
		Power:      p.Power,
		Start:      p.Summary.Start,
		End:        p.Summary.End,
		DistanceKm: p.Summary.DistanceKm,
		TotalTime:  p.Summary.TotalTime,
		Setup:      string(setup),
		Summary:    string(summary),
		Stats:      string(stats),
		Segments:   string(segments),
		CreatedAt:  p.CreatedAt,
	}, nil
}

func fromRecord(rec *PlanRecord) (*domain.Plan, error) {
	p := &domain.Plan{
		ID:        rec.ID,
		RouteName: rec.RouteName,
		Power:     rec.Power,
		CreatedAt: rec.CreatedAt,
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  interface{}
	}{
		{"segments", rec.Segments, &p.Segments},
		{"setup", rec.Setup, &p.Setup},
		{"summary", rec.Summary, &p.Summary},
		{"stats", rec.Stats, &p.Stats},
	} {
		if f.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decode %s of plan %s: %w", f.name, rec.ID, err)
		}
	}
	return p, nil
}

func infos(recs []PlanRecord) []domain.PlanInfo {
	out := make([]domain.PlanInfo, len(recs))
	for i, r := range recs {
		out[i] = domain.PlanInfo{
			ID:         r.ID,
			RouteName:  r.RouteName,
			Power:      r.Power,
			DistanceKm: r.DistanceKm,
			TotalTime:  r.TotalTime,
			Start:      r.Start,
			CreatedAt:  r.CreatedAt,
		}
	}
	return out
}

func wrap(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
