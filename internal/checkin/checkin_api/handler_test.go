package checkin_api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"checkin-gate/internal/checkin/db"
	checkin "checkin-gate/internal/checkin/service"
	"checkin-gate/internal/config"
	"checkin-gate/internal/database"
	"checkin-gate/internal/database/migrations"
	"checkin-gate/internal/logger"
	"checkin-gate/internal/models"
	"checkin-gate/internal/sse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "s3cret-key"

type stubGuard struct {
	failures map[string]int
	max      int
}

func (g *stubGuard) Locked(_ context.Context, client string) (bool, error) {
	return g.failures[client] >= g.max, nil
}

func (g *stubGuard) RecordFailure(_ context.Context, client string) (int, error) {
	g.failures[client]++
	return g.failures[client], nil
}

func (g *stubGuard) Clear(_ context.Context, client string) error {
	delete(g.failures, client)
	return nil
}

func setupHandler(t *testing.T, logs io.Writer) (*Handler, http.Handler) {
	ctx := context.Background()
	log := logger.NewWriterLogger(logs)

	bunDB, err := database.Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, DSN: "file::memory:"}, log)
	require.NoError(t, err)
	require.NoError(t, migrations.NewRunner(bunDB, log).RunMigrations(ctx))
	t.Cleanup(func() { bunDB.Close() })

	gateDB := &db.DB{Bun: bunDB}
	_, err = gateDB.CreateGuests(ctx, []models.Guest{
		{ID: "G1", Name: "Mario", Room: "A"},
		{ID: "G2", Name: "Luisa <B>", Room: "B"},
	})
	require.NoError(t, err)
	require.NoError(t, gateDB.CreateTokens(ctx, []models.Token{
		{Token: "T1", GuestID: "G1"},
		{Token: "T2", GuestID: "G2"},
	}))

	svc := checkin.NewGateService(gateDB, log)
	h := NewHandler(svc, config.GateConfig{
		AdminKey:        testKey,
		EventTitle:      "GRAN GALA",
		QRBaseURL:       "https://gate.example/q?token=",
		DisplayTimezone: "UTC",
	}, log)
	h.Events = sse.NewArrivalEmitter()
	svc.Publishers = append(svc.Publishers, h.Events)

	return h, NewRouter(h)
}

func do(t *testing.T, router http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, router := setupHandler(t, io.Discard)

	rec := do(t, router, "GET", "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK - server attivo", rec.Body.String())
}

func TestCheckByID(t *testing.T) {
	_, router := setupHandler(t, io.Discard)

	rec := do(t, router, "GET", "/check?id=G1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACCESSO CONSENTITO")
	assert.Contains(t, rec.Body.String(), "#2e7d32")
	assert.Contains(t, rec.Body.String(), "Sala: A")
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	rec = do(t, router, "GET", "/check?id=G1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACCESSO NEGATO")
	assert.Contains(t, rec.Body.String(), "Già entrato")
	assert.Contains(t, rec.Body.String(), "#c62828")
}

func TestCheckByIDErrors(t *testing.T) {
	_, router := setupHandler(t, io.Discard)

	rec := do(t, router, "GET", "/check", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Errore: ID mancante.", rec.Body.String())

	rec = do(t, router, "GET", "/check?id=nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Errore: ID non trovato.", rec.Body.String())
}

func TestGuestNameIsEscaped(t *testing.T) {
	_, router := setupHandler(t, io.Discard)

	rec := do(t, router, "GET", "/check?id=G2", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Luisa &lt;B&gt;")
	assert.NotContains(t, rec.Body.String(), "Luisa <B>")
}

func TestTokenFlow(t *testing.T) {
	h, router := setupHandler(t, io.Discard)

	rec := do(t, router, "GET", "/q?token=T1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONFERMA INGRESSO")
	assert.Contains(t, rec.Body.String(), `value="T1"`)

	stats, err := h.GateService.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Arrived, "preview must not admit")

	form := url.Values{"token": {"T1"}}.Encode()
	rec = do(t, router, "POST", "/confirm", strings.NewReader(form))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACCESSO CONSENTITO")

	rec = do(t, router, "POST", "/confirm", strings.NewReader(form))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Già entrato")

	rec = do(t, router, "GET", "/q?token=T1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, "GET", "/check?id=G1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTokenErrors(t *testing.T) {
	_, router := setupHandler(t, io.Discard)

	rec := do(t, router, "GET", "/q?token=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, "POST", "/confirm", strings.NewReader("token="))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, "POST", "/confirm", strings.NewReader("token=nope"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperatorKeyRequired(t *testing.T) {
	var logs bytes.Buffer
	_, router := setupHandler(t, &logs)

	for _, path := range []string{"/reset", "/report", "/download-db", "/export-tokens", "/stats", "/qr.png?token=T1"} {
		rec := do(t, router, "GET", path, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)

		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		rec = do(t, router, "GET", path+sep+"key=wrong-guess", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	assert.NotContains(t, logs.String(), "wrong-guess")
	assert.Contains(t, logs.String(), "FORBIDDEN")
}

func TestEmptySecretClosesOperatorRoutes(t *testing.T) {
	h, router := setupHandler(t, io.Discard)
	h.Config.AdminKey = ""

	rec := do(t, router, "GET", "/reset?key=", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestKeyLockout(t *testing.T) {
	h, router := setupHandler(t, io.Discard)
	h.KeyGuard = &stubGuard{failures: map[string]int{}, max: 2}

	for i := 0; i < 2; i++ {
		rec := do(t, router, "GET", "/stats?key=bad", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}

	rec := do(t, router, "GET", "/stats?key="+testKey, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func doFrom(router http.Handler, remoteAddr, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestKeyLockoutIgnoresSpoofedHeaders(t *testing.T) {
	h, router := setupHandler(t, io.Discard)
	h.KeyGuard = &stubGuard{failures: map[string]int{}, max: 3}

	var codes []int
	for i := 0; i < 6; i++ {
		addr := fmt.Sprintf("198.51.100.%d", i+1)
		rec := doFrom(router, "203.0.113.7:4000", "/stats?key=bad", map[string]string{
			"X-Forwarded-For": addr,
			"X-Real-IP":       addr,
			"True-Client-IP":  addr,
		})
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{403, 403, 403, 429, 429, 429}, codes)
}

func TestSpoofedAddressCannotLockOutOperator(t *testing.T) {
	h, router := setupHandler(t, io.Discard)
	guard := &stubGuard{failures: map[string]int{}, max: 2}
	h.KeyGuard = guard

	for i := 0; i < 2; i++ {
		rec := doFrom(router, "203.0.113.7:4000", "/stats?key=bad", map[string]string{"X-Forwarded-For": "192.168.1.50"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}
	assert.Zero(t, guard.failures["192.168.1.50"])

	rec := doFrom(router, "192.168.1.50:5555", "/stats?key="+testKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrustedProxyForwardsClientAddress(t *testing.T) {
	h, router := setupHandler(t, io.Discard)
	guard := &stubGuard{failures: map[string]int{}, max: 5}
	h.KeyGuard = guard
	h.TrustedProxies = ParseTrustedProxies([]string{"10.0.0.0/8"}, nil)

	doFrom(router, "10.1.2.3:8080", "/stats?key=bad", map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.9, 10.0.0.5"})
	doFrom(router, "10.1.2.3:8080", "/stats?key=bad", map[string]string{"X-Real-IP": "198.51.100.10"})
	doFrom(router, "203.0.113.7:4000", "/stats?key=bad", map[string]string{"X-Forwarded-For": "198.51.100.9"})

	assert.Equal(t, 1, guard.failures["198.51.100.9"], "nearest untrusted hop")
	assert.Equal(t, 1, guard.failures["198.51.100.10"])
	assert.Equal(t, 1, guard.failures["203.0.113.7"], "untrusted peers are not believed")
	assert.Zero(t, guard.failures["1.2.3.4"])
	assert.Zero(t, guard.failures["10.1.2.3"])
}

func TestParseTrustedProxies(t *testing.T) {
	nets := ParseTrustedProxies([]string{"10.0.0.0/8", "127.0.0.1", "::1", "not-a-cidr"}, nil)

	require.Len(t, nets, 3)
	assert.True(t, nets[0].Contains(net.ParseIP("10.200.0.1")))
	assert.True(t, nets[1].Contains(net.ParseIP("127.0.0.1")))
	assert.False(t, nets[1].Contains(net.ParseIP("127.0.0.2")))
	assert.True(t, nets[2].Contains(net.ParseIP("::1")))
}

func TestResetEndpoint(t *testing.T) {
	_, router := setupHandler(t, io.Discard)

	do(t, router, "GET", "/check?id=G1", nil)
	do(t, router, "POST", "/confirm", strings.NewReader("token=T2"))

	rec := do(t, router, "GET", "/reset?key="+testKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Body.String())

	rec = do(t, router, "GET", "/check?id=G1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReport(t *testing.T) {
	_, router := setupHandler(t, io.Discard)
	do(t, router, "GET", "/check?id=G2", nil)

	rec := do(t, router, "GET", "/report?format=json&key="+testKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var guests []models.Guest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &guests))
	require.Len(t, guests, 2)
	assert.Equal(t, "G2", guests[0].ID)
	assert.True(t, guests[0].Arrived)
	assert.Equal(t, "G1", guests[1].ID)

	rec = do(t, router, "GET", "/report?key="+testKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Entrati: 1 / 2")
}

func TestStats(t *testing.T) {
	_, router := setupHandler(t, io.Discard)

	rec := do(t, router, "GET", "/stats?key="+testKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.GateStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, models.GateStats{Guests: 2, Tokens: 2, PendingCount: 2}, stats)
}

func TestExportTokens(t *testing.T) {
	_, router := setupHandler(t, io.Discard)

	rec := do(t, router, "GET", "/export-tokens?key="+testKey, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		"id,nome,sala,token,link\n"+
			"G1,Mario,A,T1,https://gate.example/q?token=T1\n"+
			"G2,Luisa <B>,B,T2,https://gate.example/q?token=T2\n",
		rec.Body.String())
}

func TestDownloadDB(t *testing.T) {
	_, router := setupHandler(t, io.Discard)

	rec := do(t, router, "GET", "/download-db?key="+testKey, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.sqlite3", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("SQLite format 3\x00")))
}

func TestQRCode(t *testing.T) {
	_, router := setupHandler(t, io.Discard)

	rec := do(t, router, "GET", "/qr.png?token=T1&key="+testKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = do(t, router, "GET", "/qr.png?key="+testKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestLoggerOmitsQuery(t *testing.T) {
	var logs bytes.Buffer
	_, router := setupHandler(t, &logs)

	do(t, router, "GET", "/reset?key="+testKey, nil)

	assert.Contains(t, logs.String(), "GET /reset - 200")
	assert.NotContains(t, logs.String(), testKey)
}

func TestStreamEvents(t *testing.T) {
	h, router := setupHandler(t, io.Discard)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/events?key="+testKey, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return h.Events.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	_, err = h.GateService.AdmitByID(context.Background(), "G1")
	require.NoError(t, err)

	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: guest.admitted"):
			event = line
		case event != "" && strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var evt models.GateEvent
	require.NoError(t, json.Unmarshal([]byte(data), &evt))
	assert.Equal(t, "G1", evt.GuestID)
	assert.Equal(t, models.PathID, evt.Path)
}
