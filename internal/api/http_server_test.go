package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hvacbook/internal/config"
	"hvacbook/internal/domain"
	"hvacbook/internal/models"
	"hvacbook/internal/repository"
	"hvacbook/internal/schedule"
	"hvacbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEncoder struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeEncoder) Encode(_ context.Context, _ *models.Invite) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), nil
}

func (f *fakeEncoder) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEncoder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []*models.Message
}

func (f *fakeMailer) Send(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeMailer) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// syncBuffer collects log output written from server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// stubService returns a fixed result and error from Book.
type stubService struct {
	result *models.BookingResult
	err    error
}

func (s stubService) Availability(context.Context, string) ([]models.Slot, error) {
	return nil, s.err
}

func (s stubService) Book(context.Context, *models.BookingRequest) (*models.BookingResult, error) {
	return s.result, s.err
}

func logEntries(t *testing.T, raw string, message string) []map[string]any {
	t.Helper()
	var found []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] == message {
			found = append(found, entry)
		}
	}
	return found
}

type panicService struct{}

func (panicService) Availability(context.Context, string) ([]models.Slot, error) {
	panic("boom")
}

func (panicService) Book(context.Context, *models.BookingRequest) (*models.BookingResult, error) {
	panic("boom")
}

type env struct {
	store   *repository.MemoryReservationStore
	encoder *fakeEncoder
	mailer  *fakeMailer
	server  *httptest.Server
}

func newEnv(t *testing.T, httpCfg config.HTTPConfig) *env {
	t.Helper()
	catalog, err := schedule.NewWeeklyCatalog(config.DefaultWeekly())
	require.NoError(t, err)

	e := &env{
		store:   repository.NewMemoryReservationStore(),
		encoder: &fakeEncoder{},
		mailer:  &fakeMailer{},
	}
	logger := zerolog.Nop()
	svc := service.NewBookingService(e.store, catalog, e.encoder, e.mailer, nil, service.BusinessInfo{
		Name:     "J & L Climate Co.",
		Sender:   "office@example.com",
		Inbox:    "office@example.com",
		Location: time.UTC,
	}, service.Timeouts{Invite: time.Second, Delivery: time.Second}, &logger)

	if len(httpCfg.CORS.AllowedOrigins) == 0 {
		httpCfg.CORS.AllowedOrigins = []string{"*"}
	}
	srv := NewHTTPServer(httpCfg, svc, &logger)
	e.server = httptest.NewServer(srv.server.Handler)
	t.Cleanup(e.server.Close)
	return e
}

func bookingBody(overrides map[string]string) []byte {
	body := map[string]string{
		"date":    "2025-06-02",
		"time":    "10:00",
		"name":    "Jane Doe",
		"email":   "jane@example.com",
		"phone":   "555-0100",
		"address": "1 Main St",
		"details": "AC not cooling",
	}
	for k, v := range overrides {
		if v == "" {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	raw, _ := json.Marshal(body)
	return raw
}

func (e *env) book(t *testing.T, body []byte) (int, failureResponse) {
	t.Helper()
	resp, err := http.Post(e.server.URL+"/book", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var out failureResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *env) availableValues(t *testing.T, date string) []string {
	t.Helper()
	resp, err := http.Get(e.server.URL + "/availability?date=" + date)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out availabilityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, date, out.Date)

	values := make([]string, 0, len(out.Available))
	for _, s := range out.Available {
		values = append(values, s.Value)
	}
	return values
}

func TestRootAndHealth(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})

	resp, err := http.Get(e.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HVAC backend is running", buf.String())

	resp2, err := http.Get(e.server.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var health map[string]bool
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&health))
	assert.Equal(t, map[string]bool{"ok": true}, health)
}

func TestAvailability(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})

	assert.Equal(t, []string{"08:00", "10:00", "12:00", "14:00", "16:00"}, e.availableValues(t, "2025-06-02"))
	assert.Equal(t, []string{"09:00", "11:00"}, e.availableValues(t, "2025-06-07"))
	assert.Equal(t, []string{}, e.availableValues(t, "2025-06-08"))

	for _, query := range []string{"", "?date=", "?date=tomorrow"} {
		resp, err := http.Get(e.server.URL + "/availability" + query)
		require.NoError(t, err)
		var out failureResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		assert.False(t, out.Success)
		assert.NotEmpty(t, out.Message)
	}
}

func TestBook_HappyPath(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})

	status, out := e.book(t, bookingBody(nil))
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, out.Success)
	assert.Equal(t, "Booked & invite emailed", out.Message)

	assert.NotContains(t, e.availableValues(t, "2025-06-02"), "10:00")
	assert.Equal(t, 2, e.mailer.count())
}

func TestBook_MissingPhone(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})

	status, out := e.book(t, bookingBody(map[string]string{"phone": ""}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, out.Success)
	assert.Equal(t, "Missing required fields: phone", out.Message)

	reserved, err := e.store.Reserved(context.Background(), "2025-06-02")
	require.NoError(t, err)
	assert.Empty(t, reserved)
	assert.Zero(t, e.mailer.count())
}

func TestBook_MissingSeveralFields(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})

	status, out := e.book(t, bookingBody(map[string]string{"phone": "", "details": ""}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing required fields: phone, details", out.Message)
}

func TestBook_InvalidJSON(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})

	status, out := e.book(t, []byte(`{"date":`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, out.Success)
}

func TestBook_Conflict(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})
	require.NoError(t, e.store.TryReserve(context.Background(), "2025-06-02", "10:00"))

	status, out := e.book(t, bookingBody(nil))
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, out.Success)
	assert.Equal(t, "This time slot is already booked", out.Message)

	reserved, err := e.store.Reserved(context.Background(), "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, reserved)
	assert.Zero(t, e.encoder.count())
	assert.Zero(t, e.mailer.count())
}

func TestBook_InviteFailureKeepsSlot(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})
	e.encoder.fail(errors.New("bad calendar"))

	status, out := e.book(t, bookingBody(nil))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Booking created but failed to create calendar invite", out.Message)
	assert.Zero(t, e.mailer.count())

	status, out = e.book(t, bookingBody(nil))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "This time slot is already booked", out.Message)
}

func TestBook_DeliveryFailure(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})
	e.mailer.fail(errors.New("smtp down"))

	status, out := e.book(t, bookingBody(nil))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Booking created but failed to send email", out.Message)
	assert.NotContains(t, e.availableValues(t, "2025-06-02"), "10:00")
}

func TestBook_ConcurrentRequests(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})

	const n = 8
	statuses := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(e.server.URL+"/book", "application/json", bytes.NewReader(bookingBody(nil)))
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	counts := map[int]int{}
	for s := range statuses {
		counts[s]++
	}
	assert.Equal(t, 1, counts[http.StatusOK])
	assert.Equal(t, n-1, counts[http.StatusConflict])
}

func TestBook_RateLimited(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{RateLimit: config.HTTPRateLimitConfig{RPS: 0.001, Burst: 1}})

	status, _ := e.book(t, bookingBody(nil))
	assert.Equal(t, http.StatusOK, status)

	status, out := e.book(t, bookingBody(map[string]string{"time": "12:00"}))
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.False(t, out.Success)

	reserved, err := e.store.Reserved(context.Background(), "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, reserved)
}

func TestCORS(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{CORS: config.CORSConfig{AllowedOrigins: []string{"https://jlclimate.example"}}})

	req, err := http.NewRequest(http.MethodOptions, e.server.URL+"/book", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://jlclimate.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://jlclimate.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, e.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})

	resp, err := http.Get(e.server.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(e.server.URL + "/book")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPanicRecovery(t *testing.T) {
	logger := zerolog.Nop()
	srv := NewHTTPServer(config.HTTPConfig{CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}}, panicService{}, &logger)
	ts := httptest.NewServer(srv.server.Handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/book", "application/json", strings.NewReader(string(bookingBody(nil))))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out failureResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Server error", out.Message)
}

func TestPanicRecovery_RequestLogged(t *testing.T) {
	var buf syncBuffer
	logger := zerolog.New(&buf)
	srv := NewHTTPServer(config.HTTPConfig{CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}}, panicService{}, &logger)
	ts := httptest.NewServer(srv.server.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/availability?date=2025-06-02")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	entries := logEntries(t, buf.String(), "http request")
	require.Len(t, entries, 1, "request log: %s", buf.String())
	assert.Equal(t, float64(http.StatusInternalServerError), entries[0]["status"])
	assert.Equal(t, "/availability", entries[0]["path"])
}

func TestBook_FailedBookingKeepsSlotLogged(t *testing.T) {
	tests := []struct {
		name    string
		result  *models.BookingResult
		err     error
		wantLog bool
	}{
		{
			name:    "delivery failed",
			result:  &models.BookingResult{Date: "2025-06-02", Time: "08:00", Outcome: models.OutcomeDeliveryFailed},
			err:     &domain.DeliveryError{Recipient: "jane@example.com", Err: errors.New("smtp down")},
			wantLog: true,
		},
		{
			name:   "conflict",
			result: &models.BookingResult{Date: "2025-06-02", Time: "08:00", Outcome: models.OutcomeConflict},
			err:    domain.ErrConflict,
		},
		{
			name: "store failure",
			err:  errors.New("redis: connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf syncBuffer
			logger := zerolog.New(&buf)
			srv := NewHTTPServer(config.HTTPConfig{}, stubService{result: tt.result, err: tt.err}, &logger)
			ts := httptest.NewServer(srv.server.Handler)
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/book", "application/json", bytes.NewReader(bookingBody(nil)))
			require.NoError(t, err)
			resp.Body.Close()

			entries := logEntries(t, buf.String(), "slot stays reserved after failed booking")
			if !tt.wantLog {
				assert.Empty(t, entries)
				return
			}
			require.Len(t, entries, 1)
			assert.Equal(t, string(models.OutcomeDeliveryFailed), entries[0]["outcome"])
			assert.Equal(t, "08:00", entries[0]["time"])
		})
	}
}

func TestAvailability_LogsOnlyServerErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog bool
	}{
		{name: "validation", err: &domain.ValidationError{Reason: "Invalid or missing date, expected YYYY-MM-DD"}},
		{name: "store failure", err: errors.New("disk I/O error"), wantLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf syncBuffer
			logger := zerolog.New(&buf)
			srv := NewHTTPServer(config.HTTPConfig{}, stubService{err: tt.err}, &logger)
			ts := httptest.NewServer(srv.server.Handler)
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/availability?date=2025-06-02")
			require.NoError(t, err)
			resp.Body.Close()

			entries := logEntries(t, buf.String(), "availability failed")
			if tt.wantLog {
				assert.Len(t, entries, 1)
			} else {
				assert.Empty(t, entries)
			}
		})
	}
}

func TestBook_NonStringField(t *testing.T) {
	e := newEnv(t, config.HTTPConfig{})

	body := []byte(`{"date":"2025-06-02","time":"08:00","name":"Jane Doe","email":"jane@example.com",` +
		`"phone":5550100,"address":"1 Main St","details":"AC not cooling"}`)
	status, out := e.book(t, body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid JSON body", out.Message)
	assert.False(t, out.Success)

	assert.Contains(t, e.availableValues(t, "2025-06-02"), "08:00")
	assert.Equal(t, 0, e.encoder.count())
}

func TestWriteTimeout(t *testing.T) {
	logger := zerolog.Nop()

	srv := NewHTTPServer(config.HTTPConfig{WriteTimeout: 90 * time.Second}, panicService{}, &logger)
	assert.Equal(t, 90*time.Second, srv.server.WriteTimeout)

	srv = NewHTTPServer(config.HTTPConfig{}, panicService{}, &logger)
	assert.Equal(t, models.DefaultWriteTimeout, srv.server.WriteTimeout)
}

func TestClassify(t *testing.T) {
	s := &HTTPServer{}
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", &domain.ValidationError{Fields: []string{"phone"}}, http.StatusBadRequest, "Missing required fields: phone"},
		{"conflict", domain.ErrConflict, http.StatusConflict, msgConflict},
		{"invite", &domain.InviteEncodingError{Err: errors.New("x")}, http.StatusInternalServerError, msgInviteFailed},
		{"delivery", &domain.DeliveryError{Recipient: "a@b.c", Err: errors.New("x")}, http.StatusInternalServerError, msgDeliveryFailed},
		{"other", errors.New("disk full"), http.StatusInternalServerError, msgServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := s.classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, message)
		})
	}
}
