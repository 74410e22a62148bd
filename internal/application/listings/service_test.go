package listings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"testing"
	"time"

	"cropmarket-backend/internal/application/media"
	"cropmarket-backend/internal/domain"
	"cropmarket-backend/internal/infrastructure/cache"
	"cropmarket-backend/internal/infrastructure/database"
	"cropmarket-backend/internal/infrastructure/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const placeholder = "images/listings/placeholder.jpg"

type fakeMedia struct {
	paths     []string
	stageErr  error
	staged    int
	discarded []string
}

func (f *fakeMedia) CheckCount(n int) error {
	if n > media.MaxFiles {
		return media.ErrTooManyFiles
	}
	return nil
}

func (f *fakeMedia) Stage(_ context.Context, files []*multipart.FileHeader) ([]string, error) {
	f.staged++
	if f.stageErr != nil {
		return nil, f.stageErr
	}
	return f.paths, nil
}

func (f *fakeMedia) Discard(_ context.Context, paths []string) {
	f.discarded = append(f.discarded, paths...)
}

type recordingPublisher struct {
	subjects []string
	payloads []interface{}
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data interface{}) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeMedia) {
	db := database.NewTestDB(t)
	fm := &fakeMedia{}
	return &Service{
		DB:               db,
		Media:            fm,
		PlaceholderImage: placeholder,
	}, db, fm
}

func ptr[T any](v T) *T { return &v }

func fullListing() NewListing {
	return NewListing{
		CropType:     "Wheat",
		Region:       "Thessaly",
		QuantityTons: 120.5,
		PricePerKg:   ptr(0.31),
		PriceNote:    ptr("ex-farm"),
		HarvestStart: ptr("2025-06"),
		HarvestEnd:   ptr("2025-07"),
		SellerName:   "Nikos",
		SellerPhone:  ptr("+30 690 000 0000"),
		SellerEmail:  ptr("nikos@example.gr"),
		Description:  ptr("Durum, 13% protein"),
	}
}

func TestCreateListing_RoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	paths := []string{"uploads/listings/b.jpg", "uploads/listings/a.png", "uploads/listings/c.webp"}

	_, err := svc.CreateListing(ctx, "wheat-thessaly-0a1b2c", fullListing(), paths)
	require.NoError(t, err)

	v, err := svc.GetListing(ctx, "wheat-thessaly-0a1b2c")
	require.NoError(t, err)
	assert.Equal(t, "wheat-thessaly-0a1b2c", v.ID)
	assert.Equal(t, "Wheat", v.CropType)
	assert.Equal(t, "Thessaly", v.Region)
	assert.Equal(t, 120.5, v.QuantityTons)
	require.NotNil(t, v.PricePerKg)
	assert.InDelta(t, 0.31, *v.PricePerKg, 1e-9)
	assert.Equal(t, "ex-farm", *v.PriceNote)
	assert.Equal(t, "2025-06", *v.HarvestStart)
	assert.Equal(t, "2025-07", *v.HarvestEnd)
	assert.Equal(t, "Nikos", v.Seller.Name)
	assert.Equal(t, "+30 690 000 0000", *v.Seller.Phone)
	assert.Equal(t, "nikos@example.gr", *v.Seller.Email)
	assert.Equal(t, "Durum, 13% protein", *v.Description)
	assert.Equal(t, paths, v.Images)
	assert.Equal(t, paths[0], v.Image)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, v.CreatedAt)
}

func TestCreateListing_WritesCreatedEvent(t *testing.T) {
	svc, db, _ := newTestService(t)
	listing, err := svc.CreateListing(context.Background(), "corn-crete-000001", fullListing(), []string{"uploads/listings/x.jpg"})
	require.NoError(t, err)

	var ev domain.ListingEvent
	require.NoError(t, db.Where("listing_id = ?", listing.ID).First(&ev).Error)
	assert.Equal(t, domain.ListingEventCreated, ev.EventType)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(ev.EventData, &data))
	assert.Equal(t, "corn-crete-000001", data["public_id"])
	assert.Equal(t, float64(1), data["image_count"])
	assert.Equal(t, true, data["has_price"])
}

func TestGetListing_OptionalsNullAndPlaceholder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateListing(ctx, "barley-larissa-abcdef", NewListing{
		CropType: "Barley", Region: "Larissa", QuantityTons: 10, SellerName: "Eleni",
	}, nil)
	require.NoError(t, err)

	v, err := svc.GetListing(ctx, "barley-larissa-abcdef")
	require.NoError(t, err)
	assert.Equal(t, placeholder, v.Image)
	assert.NotNil(t, v.Images)
	assert.Empty(t, v.Images)

	body, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	for _, k := range []string{"pricePerKg", "priceNote", "harvestStart", "harvestEnd", "description"} {
		val, present := out[k]
		assert.True(t, present, k)
		assert.Nil(t, val, k)
	}
	assert.Equal(t, []interface{}{}, out["images"])
	seller := out["seller"].(map[string]interface{})
	assert.Nil(t, seller["phone"])
	assert.Nil(t, seller["email"])
}

func TestGetListing_PublicIDBeforeNumericKey(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateListing(ctx, "wheat-a", fullListing(), nil)
	require.NoError(t, err)
	second, err := svc.CreateListing(ctx, "1", fullListing(), nil)
	require.NoError(t, err)
	require.Equal(t, uint(1), first.ID)
	require.Equal(t, uint(2), second.ID)

	// "1" is both the second listing's public id and the first one's key.
	v, err := svc.GetListing(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", v.ID)

	// "2" matches no public id, so the key lookup applies.
	v, err = svc.GetListing(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "1", v.ID)
}

func TestGetListing_NumericKeyFallback(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateListing(ctx, "oats-epirus-123456", fullListing(), nil)
	require.NoError(t, err)

	v, err := svc.GetListing(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "oats-epirus-123456", v.ID)
}

func TestGetListing_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"nope", "999", "99999999999999999999999"} {
		_, err := svc.GetListing(ctx, id)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf, id)
		assert.Equal(t, id, nf.Requested)
	}

	_, err := svc.GetListing(ctx, "   ")
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestListListings_NewestFirstWithTieBreak(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"old", "tie-a", "tie-b"} {
		_, err := svc.CreateListing(ctx, id, fullListing(), []string{"uploads/listings/" + id + ".jpg"})
		require.NoError(t, err)
	}
	past := time.Now().Add(-72 * time.Hour)
	same := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&domain.Listing{}).Where("public_id = ?", "old").Update("created_at", past).Error)
	require.NoError(t, db.Model(&domain.Listing{}).Where("public_id IN ?", []string{"tie-a", "tie-b"}).Update("created_at", same).Error)

	views, err := svc.ListListings(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "tie-b", views[0].ID)
	assert.Equal(t, "tie-a", views[1].ID)
	assert.Equal(t, "old", views[2].ID)
	assert.Equal(t, []string{"uploads/listings/tie-b.jpg"}, views[0].Images)

	n, err := svc.CountListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestListListings_Empty(t *testing.T) {
	svc, _, _ := newTestService(t)
	views, err := svc.ListListings(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestCreateListing_ImageFailureRollsBack(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_images", func(tx *gorm.DB) {
		if tx.Statement.Table == "listing_images" {
			tx.AddError(errors.New("disk full"))
		}
	}))

	_, err := svc.CreateListing(ctx, "wheat-thessaly-ffffff", fullListing(), []string{"uploads/listings/a.jpg"})
	require.Error(t, err)

	_, err = svc.GetListing(ctx, "wheat-thessaly-ffffff")
	assert.True(t, IsNotFound(err))

	var listings, evs int64
	require.NoError(t, db.Model(&domain.Listing{}).Count(&listings).Error)
	require.NoError(t, db.Model(&domain.ListingEvent{}).Count(&evs).Error)
	assert.Zero(t, listings)
	assert.Zero(t, evs)
}

func TestSubmit_Success(t *testing.T) {
	svc, _, fm := newTestService(t)
	pub := &recordingPublisher{}
	svc.Events = pub
	svc.IDs = IdentityGenerator{Rand: bytes.NewReader([]byte{0xde, 0xad, 0xbe})}
	fm.paths = []string{"uploads/listings/one.jpg", "uploads/listings/two.jpg"}

	id, err := svc.Submit(context.Background(), RawListing{
		CropType: " Durum Wheat ", Region: "Thessaly", QuantityTons: "25", SellerName: "Kostas",
	}, make([]*multipart.FileHeader, 2))
	require.NoError(t, err)
	assert.Equal(t, "durum-wheat-thessaly-deadbe", id)

	v, err := svc.GetListing(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Durum Wheat", v.CropType)
	assert.Equal(t, fm.paths, v.Images)

	require.Equal(t, []string{events.SubjectListingCreated}, pub.subjects)
	ev := pub.payloads[0].(CreatedEvent)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, 2, ev.ImageCount)
}

func TestSubmit_TooManyFilesBeforeValidation(t *testing.T) {
	svc, _, fm := newTestService(t)
	_, err := svc.Submit(context.Background(), RawListing{}, make([]*multipart.FileHeader, media.MaxFiles+1))
	assert.ErrorIs(t, err, media.ErrTooManyFiles)
	assert.Zero(t, fm.staged)
}

func TestSubmit_ValidationBeforeIntake(t *testing.T) {
	svc, _, fm := newTestService(t)
	_, err := svc.Submit(context.Background(), RawListing{CropType: "Wheat"}, make([]*multipart.FileHeader, 1))
	assert.True(t, IsValidationError(err))
	assert.Zero(t, fm.staged)
}

func TestSubmit_IntakeErrorStopsBeforeDatabase(t *testing.T) {
	svc, db, fm := newTestService(t)
	fm.stageErr = media.ErrUnsupportedType

	_, err := svc.Submit(context.Background(), validRaw(), make([]*multipart.FileHeader, 1))
	assert.ErrorIs(t, err, media.ErrUnsupportedType)

	var n int64
	require.NoError(t, db.Model(&domain.Listing{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSubmit_PersistenceFailure(t *testing.T) {
	svc, _, fm := newTestService(t)
	ctx := context.Background()
	fm.paths = []string{"uploads/listings/orphan.jpg"}

	// Identical randomness yields an identical id; collisions are not retried.
	svc.IDs = IdentityGenerator{Rand: bytes.NewReader([]byte{1, 2, 3, 1, 2, 3, 1, 2, 3})}
	_, err := svc.Submit(ctx, validRaw(), make([]*multipart.FileHeader, 1))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, validRaw(), make([]*multipart.FileHeader, 1))
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
	assert.Empty(t, fm.discarded, "staged files are kept by default")

	svc.DiscardOnFailure = true
	_, err = svc.Submit(ctx, validRaw(), make([]*multipart.FileHeader, 1))
	require.Error(t, err)
	assert.Equal(t, fm.paths, fm.discarded)
}

func TestGetListing_CachedResponseIsStable(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	svc.Cache = &cache.ListingCache{Client: rdb, TTL: time.Hour}

	_, err = svc.CreateListing(ctx, "cotton-serres-c0ffee", fullListing(), []string{"uploads/listings/c.jpg"})
	require.NoError(t, err)

	first, err := svc.GetListing(ctx, "cotton-serres-c0ffee")
	require.NoError(t, err)
	assert.True(t, mr.Exists("listing:cotton-serres-c0ffee"))

	// Served from the cache even once the row is gone.
	require.NoError(t, db.Exec("DELETE FROM listing_events").Error)
	require.NoError(t, db.Exec("DELETE FROM listing_images").Error)
	require.NoError(t, db.Exec("DELETE FROM listings").Error)
	second, err := svc.GetListing(ctx, "cotton-serres-c0ffee")
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))

	// Misses are not cached.
	_, err = svc.GetListing(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.False(t, mr.Exists("listing:missing"))
}
