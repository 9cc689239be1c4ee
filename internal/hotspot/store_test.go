package hotspot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ListIsFailSilent(t *testing.T) {
	repo := newFakeRepo()
	repo.listErr = errors.New("connection refused")
	s := newTestStore(repo)

	got := s.List(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
}

func TestStore_ListByLocation(t *testing.T) {
	repo := newFakeRepo(seedRows()...)
	s := newTestStore(repo)

	got := s.ListByLocation(context.Background(), 25.03, 121.55, 0.5)
	assert.Equal(t, []string{"a"}, ids(got))
	assert.Equal(t, domain.UserLocation{Lat: 25.03, Lng: 121.55}, repo.lastCenter)
	assert.InDelta(t, 0.5, repo.lastRadius, 1e-9)
}

func TestStore_ListByLocationRejectsBadInput(t *testing.T) {
	repo := newFakeRepo(seedRows()...)
	s := newTestStore(repo)

	assert.Empty(t, s.ListByLocation(context.Background(), 95, 121, 3))
	assert.Empty(t, s.ListByLocation(context.Background(), 25, 121, 0))
	assert.Empty(t, s.ListByLocation(context.Background(), 25, 121, math.NaN()))
	assert.Empty(t, s.ListByLocation(context.Background(), 25, 121, math.Inf(1)))
	assert.Empty(t, s.ListByLocation(context.Background(), math.NaN(), 121, 3))
	assert.Zero(t, repo.count("list_within_radius"))
}

func TestStore_ListByBounds(t *testing.T) {
	repo := newFakeRepo(seedRows()...)
	s := newTestStore(repo)

	got := s.ListByBounds(context.Background(), 25.045, 25.035, 121.57, 121.555)
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestStore_ListByBoundsInvertedIsEmpty(t *testing.T) {
	repo := newFakeRepo(seedRows()...)
	s := newTestStore(repo)

	got := s.ListByBounds(context.Background(), 26, 25, 121, 122)
	assert.Empty(t, got)
	assert.Zero(t, repo.count("list_by_bounds"), "inverted box never reaches the database")
}

func TestStore_CreateValidatesBeforeNetwork(t *testing.T) {
	repo := newFakeRepo()
	s := newTestStore(repo)

	_, err := s.Create(context.Background(), domain.HotspotInput{Title: "  ", Severity: domain.SeverityLow})
	require.ErrorIs(t, err, domain.ErrEmptyTitle)
	_, err = s.Create(context.Background(), domain.HotspotInput{Title: "x", Severity: "extreme"})
	require.ErrorIs(t, err, domain.ErrInvalidSeverity)
	assert.Zero(t, repo.count("create"))
}

type staticGeocoder struct {
	info domain.AddressInfo
	err  error
}

func (g staticGeocoder) ReverseGeocode(context.Context, float64, float64) (domain.AddressInfo, error) {
	return g.info, g.err
}

func TestStore_CreateAttachesGeocodedAddress(t *testing.T) {
	repo := newFakeRepo()
	pub := &recordingPublisher{}
	s := newTestStore(repo,
		WithGeocoder(staticGeocoder{info: domain.AddressInfo{Formatted: "臺北市信義區市府路1號"}}),
		WithPublisher(pub),
	)

	h, err := s.Create(context.Background(), domain.HotspotInput{Lat: 25.03, Lng: 121.56, Title: " Flood ", Severity: domain.SeverityHigh})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", h.ID)
	assert.Equal(t, "Flood", h.Title)
	assert.Equal(t, "臺北市信義區市府路1號", h.Address)

	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.ChangeInsert, pub.events[0].Type)
	assert.Equal(t, "srv-1", pub.events[0].ID)
}

func TestStore_CreateSkipsFallbackAddress(t *testing.T) {
	repo := newFakeRepo()
	s := newTestStore(repo, WithGeocoder(staticGeocoder{err: errors.New("rate limited")}))

	h, err := s.Create(context.Background(), domain.HotspotInput{Lat: 25.03, Lng: 121.56, Title: "Flood", Severity: domain.SeverityHigh})
	require.NoError(t, err)
	assert.Empty(t, h.Address)
}

func TestStore_CreateKeepsGivenAddress(t *testing.T) {
	repo := newFakeRepo()
	s := newTestStore(repo, WithGeocoder(staticGeocoder{info: domain.AddressInfo{Formatted: "elsewhere"}}))

	h, err := s.Create(context.Background(), domain.HotspotInput{Lat: 25.03, Lng: 121.56, Title: "Flood", Severity: domain.SeverityHigh, Address: "given"})
	require.NoError(t, err)
	assert.Equal(t, "given", h.Address)
}

func TestStore_Update(t *testing.T) {
	repo := newFakeRepo(seedRows()...)
	s := newTestStore(repo)
	sev := domain.SeverityCritical

	h, err := s.Update(context.Background(), "a", domain.HotspotPatch{Severity: &sev})
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityCritical, h.Severity)

	_, err = s.Update(context.Background(), "a", domain.HotspotPatch{})
	require.ErrorIs(t, err, domain.ErrNoFieldsToUpdate)
	assert.Equal(t, 1, repo.count("update"), "empty patch never reaches the database")

	_, err = s.Update(context.Background(), "missing", domain.HotspotPatch{Severity: &sev})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	repo := newFakeRepo(seedRows()...)
	pub := &recordingPublisher{}
	s := newTestStore(repo, WithPublisher(pub))

	assert.True(t, s.Delete(context.Background(), "a"))
	assert.False(t, s.Delete(context.Background(), "a"), "second delete finds no row")
	require.ErrorIs(t, s.Remove(context.Background(), "a"), domain.ErrNotFound)
	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.ChangeEvent{Type: domain.ChangeDelete, ID: "a"}, pub.events[0])
}

type memPhotos struct {
	name, contentType string
	body              []byte
	err               error
}

func (m *memPhotos) Upload(_ context.Context, name, contentType string, r io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.name, m.contentType = name, contentType
	m.body, _ = io.ReadAll(r)
	return "https://cdn.example/" + name, nil
}

func TestStore_UploadPhoto(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(baseTime))
	t.Cleanup(func() { domain.SetClock(nil) })

	photos := &memPhotos{}
	s := newTestStore(newFakeRepo(), WithPhotoStore(photos))

	url, err := s.UploadPhoto(context.Background(), "IMG_0001.JPG", "image/jpeg", bytes.NewReader([]byte("data")))
	require.NoError(t, err)
	assert.Equal(t, "hotspot-photos/1756728000000.jpg", photos.name)
	assert.Equal(t, "https://cdn.example/hotspot-photos/1756728000000.jpg", url)
	assert.Equal(t, "image/jpeg", photos.contentType)
	assert.Equal(t, []byte("data"), photos.body)
}

func TestStore_UploadPhotoDisabled(t *testing.T) {
	s := newTestStore(newFakeRepo())
	_, err := s.UploadPhoto(context.Background(), "a.png", "image/png", bytes.NewReader(nil))
	require.ErrorIs(t, err, domain.ErrPhotoStoreDisabled)
}

func TestPhotoObjectName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "hotspot-photos/1700000000123.png", PhotoObjectName("shot.PNG", at))
	assert.Equal(t, "hotspot-photos/1700000000123", PhotoObjectName("noext", at))
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(domain.ErrEmptyTitle))
	assert.True(t, IsValidationError(domain.ErrNoFieldsToUpdate))
	assert.False(t, IsValidationError(domain.ErrNotFound))
	assert.False(t, IsValidationError(errors.New("boom")))
}
