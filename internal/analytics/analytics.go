package analytics

import (
	"context"
	"math"

	"github.com/Adrieleise/upnxt/internal/models"
	"github.com/Adrieleise/upnxt/internal/store"
)

// Aggregate derives a doctor's daily summary from terminal archive records.
// Wait-time stats cover Served entries only (servedAt - joinedAt in whole
// minutes, average rounded to nearest); a day without Served entries gets
// zero wait stats.
func Aggregate(date, doctorID string, records []models.Patient) models.DailyAnalytics {
	summary := models.DailyAnalytics{Date: date, DoctorID: doctorID}

	var waits []int
	for _, p := range records {
		switch p.Status {
		case models.StatusServed:
			summary.TotalServed++
			if p.ServedAt != nil {
				minutes := int(math.Round(p.ServedAt.Sub(p.JoinedAt).Minutes()))
				waits = append(waits, minutes)
			}
		case models.StatusSkipped:
			summary.TotalSkipped++
		case models.StatusCanceled:
			summary.TotalCanceled++
		}
	}

	if len(waits) == 0 {
		return summary
	}

	total := 0
	summary.MinWaitMins = waits[0]
	summary.MaxWaitMins = waits[0]
	for _, w := range waits {
		total += w
		if w < summary.MinWaitMins {
			summary.MinWaitMins = w
		}
		if w > summary.MaxWaitMins {
			summary.MaxWaitMins = w
		}
	}
	summary.AverageWaitMins = int(math.Round(float64(total) / float64(len(waits))))
	return summary
}

// Service recomputes and persists daily summaries from the archive.
type Service struct {
	archive store.ArchiveStore
	daily   store.AnalyticsStore
}

func NewService(archive store.ArchiveStore, daily store.AnalyticsStore) *Service {
	return &Service{archive: archive, daily: daily}
}

// CloseDay writes a summary row for every doctor with archive activity on
// the given day. Called after a successful reset; safe to rerun.
func (s *Service) CloseDay(ctx context.Context, date string) error {
	doctorIDs, err := s.archive.ArchivedDoctorIDs(ctx, date)
	if err != nil {
		return err
	}
	for _, doctorID := range doctorIDs {
		records, err := s.archive.ListArchived(ctx, doctorID, date)
		if err != nil {
			return err
		}
		if err := s.daily.UpsertDaily(ctx, Aggregate(date, doctorID, records)); err != nil {
			return err
		}
	}
	return nil
}

// Recompute rebuilds one doctor's summary for a day from the archive.
func (s *Service) Recompute(ctx context.Context, doctorID, date string) (models.DailyAnalytics, error) {
	records, err := s.archive.ListArchived(ctx, doctorID, date)
	if err != nil {
		return models.DailyAnalytics{}, err
	}
	summary := Aggregate(date, doctorID, records)
	if err := s.daily.UpsertDaily(ctx, summary); err != nil {
		return models.DailyAnalytics{}, err
	}
	return summary, nil
}

// Range lists stored summaries for a date range, optionally one doctor.
func (s *Service) Range(ctx context.Context, doctorID, from, to string) ([]models.DailyAnalytics, error) {
	return s.daily.ListDaily(ctx, doctorID, from, to)
}
