package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatflow/internal/audit"
	"seatflow/internal/events"
	"seatflow/internal/extension"
	"seatflow/internal/handler"
	"seatflow/internal/ledger"
	"seatflow/internal/models"
	"seatflow/internal/registry"
	"seatflow/internal/reservation"
	"seatflow/internal/router"
	"seatflow/internal/store"
)

const testSecret = "test-secret"

type testServer struct {
	echo     *echo.Echo
	handler  *handler.Handler
	registry *registry.Registry
	ledger   *ledger.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.New(io.Discard)
	st := store.NewMemory()
	reg := registry.New(st, &logger)
	led := ledger.New(st, &logger)
	bus := events.NewBus()
	rules := func() models.BookingRules { return models.BookingRules{} }
	recorder := audit.NewStoreRecorder(st, &logger)

	engine := reservation.New(reg, led, st, rules, bus, recorder, &logger)
	extensions := extension.New(reg, led, st, rules, bus, &logger)

	_, err := reg.EnsureSeats(context.Background(), []models.Seat{
		{ID: "F1-A-01", Floor: "Ground floor", Section: "A"},
		{ID: "F1-A-02", Floor: "Ground floor", Section: "A"},
	})
	require.NoError(t, err)

	h := &handler.Handler{
		Registry:   reg,
		Ledger:     led,
		Engine:     engine,
		Extensions: extensions,
		Sweeper:    reservation.NewSweeper(engine, time.Minute, &logger),
		Exporter:   audit.NewExporter(led, recorder),
		Logger:     &logger,
	}

	e := echo.New()
	router.Register(e, h, router.Options{JWTSecret: testSecret})
	return &testServer{echo: e, handler: h, registry: reg, ledger: led}
}

func token(t *testing.T, sub string, admin bool) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "admin": admin, "exp": time.Now().Add(time.Hour).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) request(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.request(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodGet, "/v1/seats", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.request(t, http.MethodGet, "/v1/seats", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClaimFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	user := token(t, "u1", false)

	rec := s.request(t, http.MethodPost, "/v1/seats/F1-A-01/claim", `{"user_name":"Alice","duration_minutes":60}`, user)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var claim struct {
		Booking models.Booking `json:"booking"`
		QR      string         `json:"qr"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))
	assert.NotEmpty(t, claim.QR)
	assert.Equal(t, "u1", claim.Booking.UserID)

	// A second claim for the same user conflicts.
	rec = s.request(t, http.MethodPost, "/v1/seats/F1-A-02/claim", `{"duration_minutes":60}`, user)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Check in with the returned QR payload.
	body, err := json.Marshal(map[string]string{"qr": claim.QR})
	require.NoError(t, err)
	rec = s.request(t, http.MethodPost, "/v1/checkin", string(body), user)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	seat, err := s.registry.Get(context.Background(), "F1-A-01")
	require.NoError(t, err)
	assert.Equal(t, models.SeatOccupied, seat.Status)

	// And out again.
	rec = s.request(t, http.MethodPost, "/v1/checkout", string(body), user)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClaimValidation(t *testing.T) {
	s := newTestServer(t)
	user := token(t, "u1", false)

	rec := s.request(t, http.MethodPost, "/v1/seats/F1-A-01/claim", `{}`, user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Policy violations map to 422.
	rec = s.request(t, http.MethodPost, "/v1/seats/F1-A-01/claim", `{"duration_minutes":5}`, user)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.request(t, http.MethodPost, "/v1/seats/NOPE/claim", `{"duration_minutes":60}`, user)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequireAdminClaim(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodPost, "/v1/admin/sweep", "", token(t, "u1", false))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.request(t, http.MethodPost, "/v1/admin/sweep", "", token(t, "boss", true))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminCancelOverHTTP(t *testing.T) {
	s := newTestServer(t)
	user := token(t, "u1", false)
	admin := token(t, "boss", true)

	rec := s.request(t, http.MethodPost, "/v1/seats/F1-A-01/claim", `{"duration_minutes":60}`, user)
	require.Equal(t, http.StatusCreated, rec.Code)

	var claim struct {
		Booking models.Booking `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))

	// Missing reason is a policy violation.
	rec = s.request(t, http.MethodPost, "/v1/admin/bookings/"+claim.Booking.ID+"/cancel", `{}`, admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.request(t, http.MethodPost, "/v1/admin/bookings/"+claim.Booking.ID+"/cancel", `{"reason":"event"}`, admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	b, err := s.ledger.Get(context.Background(), "u1", claim.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, b.Status)
}

func TestMaintenanceOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := token(t, "boss", true)

	rec := s.request(t, http.MethodPost, "/v1/admin/seats/F1-A-01/maintenance", `{}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.request(t, http.MethodPost, "/v1/admin/seats/F1-A-01/maintenance", `{"reason":"wobbly chair"}`, admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	seat, err := s.registry.Get(context.Background(), "F1-A-01")
	require.NoError(t, err)
	assert.Equal(t, models.SeatMaintenance, seat.Status)

	rec = s.request(t, http.MethodDelete, "/v1/admin/seats/F1-A-01/maintenance", "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtendOverHTTP(t *testing.T) {
	s := newTestServer(t)
	user := token(t, "u1", false)

	rec := s.request(t, http.MethodPost, "/v1/seats/F1-A-01/claim", `{"duration_minutes":60}`, user)
	require.Equal(t, http.StatusCreated, rec.Code)

	var claim struct {
		Booking models.Booking `json:"booking"`
		QR      string         `json:"qr"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))

	body, err := json.Marshal(map[string]string{"qr": claim.QR})
	require.NoError(t, err)
	rec = s.request(t, http.MethodPost, "/v1/checkin", string(body), user)
	require.Equal(t, http.StatusOK, rec.Code)

	// Probe first, then extend.
	rec = s.request(t, http.MethodPost, "/v1/bookings/"+claim.Booking.ID+"/extension", `{"additional_minutes":30}`, user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.request(t, http.MethodPost, "/v1/bookings/"+claim.Booking.ID+"/extend", `{"additional_minutes":30}`, user)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result extension.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)

	// Another user cannot touch the booking.
	rec = s.request(t, http.MethodPost, "/v1/bookings/"+claim.Booking.ID+"/extend", `{"additional_minutes":30}`, token(t, "u2", false))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSeatsAndBookings(t *testing.T) {
	s := newTestServer(t)
	user := token(t, "u1", false)

	rec := s.request(t, http.MethodGet, "/v1/seats", "", user)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 2, listing.Count)

	rec = s.request(t, http.MethodGet, "/v1/seats?section=A", "", user)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.request(t, http.MethodGet, "/v1/bookings", "", user)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.request(t, http.MethodGet, "/v1/seats/F1-A-01", "", user)
	assert.Equal(t, http.StatusOK, rec.Code)
}
