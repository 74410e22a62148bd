package reports

import (
	"context"
	"errors"
	"testing"

	"cropmarket-backend/internal/application/emails"
	"cropmarket-backend/internal/domain"
	"cropmarket-backend/internal/infrastructure/database"
	"cropmarket-backend/internal/infrastructure/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	to      []string
	notices []emails.ReportNotice
	err     error
}

func (n *recordingNotifier) SendReportNotice(_ context.Context, to string, notice emails.ReportNotice) error {
	n.to = append(n.to, to)
	n.notices = append(n.notices, notice)
	return n.err
}

type recordingPublisher struct {
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

func TestSubmit_StoresTrimmedReport(t *testing.T) {
	db := database.NewTestDB(t)
	svc := &Service{DB: db}

	r, err := svc.Submit(context.Background(), Input{
		ListingID:   "  no-such-listing ",
		Name:        " Anna ",
		Description: " wrong phone number ",
	})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)

	var stored domain.Report
	require.NoError(t, db.First(&stored, r.ID).Error)
	assert.Equal(t, "no-such-listing", stored.ListingPublicID)
	assert.Equal(t, "Anna", stored.ReporterName)
	assert.Equal(t, "", stored.ReporterContact)
	assert.Equal(t, "wrong phone number", stored.Description)
}

func TestSubmit_MissingFields(t *testing.T) {
	db := database.NewTestDB(t)
	svc := &Service{DB: db}

	for _, in := range []Input{
		{ListingID: "x"},
		{Description: "spam"},
		{ListingID: "  ", Description: "  "},
	} {
		_, err := svc.Submit(context.Background(), in)
		assert.ErrorIs(t, err, ErrMissingFields)
	}

	var n int64
	require.NoError(t, db.Model(&domain.Report{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSubmit_NotifiesAndPublishes(t *testing.T) {
	notifier := &recordingNotifier{}
	pub := &recordingPublisher{}
	svc := &Service{
		DB:          database.NewTestDB(t),
		Notifier:    notifier,
		NotifyEmail: "mod@cropmarket.gr",
		SiteURL:     "https://cropmarket.gr",
		Events:      pub,
	}

	_, err := svc.Submit(context.Background(), Input{ListingID: "corn-crete-a1b2c3", Contact: "698", Description: "sold already"})
	require.NoError(t, err)

	require.Len(t, notifier.notices, 1)
	assert.Equal(t, "mod@cropmarket.gr", notifier.to[0])
	assert.Equal(t, "https://cropmarket.gr/listing.html?id=corn-crete-a1b2c3", notifier.notices[0].ListingURL)
	assert.Equal(t, "698", notifier.notices[0].Contact)
	assert.Equal(t, []string{events.SubjectReportSubmitted}, pub.subjects)
}

func TestSubmit_NotifierFailureDoesNotFailReport(t *testing.T) {
	svc := &Service{
		DB:          database.NewTestDB(t),
		Notifier:    &recordingNotifier{err: errors.New("smtp down")},
		NotifyEmail: "mod@cropmarket.gr",
	}
	r, err := svc.Submit(context.Background(), Input{ListingID: "x", Description: "y"})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
}

func TestSubmit_NoRecipientSkipsNotice(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := &Service{DB: database.NewTestDB(t), Notifier: notifier}
	_, err := svc.Submit(context.Background(), Input{ListingID: "x", Description: "y"})
	require.NoError(t, err)
	assert.Empty(t, notifier.notices)
}
