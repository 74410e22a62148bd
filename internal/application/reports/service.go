package reports

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cropmarket-backend/internal/application/emails"
	"cropmarket-backend/internal/domain"
	"cropmarket-backend/internal/infrastructure/events"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrMissingFields = errors.New("Missing required fields")

// Input is one report as submitted. Only ListingID and Description are required.
type Input struct {
	ListingID   string
	Name        string
	Contact     string
	Description string
}

type Service struct {
	DB *gorm.DB

	Notifier    emails.Notifier  // optional
	NotifyEmail string           // moderator inbox; empty disables notices
	SiteURL     string           // used to link the reported listing
	Events      events.Publisher // optional
}

// SubmittedEvent is published after a report is stored.
type SubmittedEvent struct {
	ReportID  uint   `json:"reportId"`
	ListingID string `json:"listingId"`
}

// Submit stores a report. The listing is not checked for existence: reports
// may outlive or predate the listing they name.
func (s *Service) Submit(ctx context.Context, in Input) (*domain.Report, error) {
	report := &domain.Report{
		ListingPublicID: strings.TrimSpace(in.ListingID),
		ReporterName:    strings.TrimSpace(in.Name),
		ReporterContact: strings.TrimSpace(in.Contact),
		Description:     strings.TrimSpace(in.Description),
	}
	if report.ListingPublicID == "" || report.Description == "" {
		return nil, ErrMissingFields
	}
	if err := s.DB.WithContext(ctx).Create(report).Error; err != nil {
		return nil, fmt.Errorf("Failed to store report: %w", err)
	}

	s.notify(ctx, report)
	if s.Events != nil {
		if err := s.Events.Publish(ctx, events.SubjectReportSubmitted, SubmittedEvent{
			ReportID:  report.ID,
			ListingID: report.ListingPublicID,
		}); err != nil {
			log.Warn().Err(err).Uint("report_id", report.ID).Msg("reports: publish event failed")
		}
	}
	return report, nil
}

func (s *Service) notify(ctx context.Context, r *domain.Report) {
	if s.Notifier == nil || s.NotifyEmail == "" {
		return
	}
	notice := emails.ReportNotice{
		ListingID:   r.ListingPublicID,
		Reporter:    r.ReporterName,
		Contact:     r.ReporterContact,
		Description: r.Description,
	}
	if s.SiteURL != "" {
		notice.ListingURL = s.SiteURL + "/listing.html?id=" + url.QueryEscape(r.ListingPublicID)
	}
	if err := s.Notifier.SendReportNotice(ctx, s.NotifyEmail, notice); err != nil {
		log.Error().Err(err).Uint("report_id", r.ID).Msg("reports: moderator notice failed")
	}
}
