package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/presence-go-api/internal/config"
	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/middleware"
	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/observability"
)

func TestScanRejectsUnknownAndInactiveCodes(t *testing.T) {
	env := newTestApp(t)
	inactive := models.Actor{Matricule: "L-0009", Kind: models.ActorKindLearner, FullName: "Inactive learner", GroupCode: "P7"}
	require.NoError(t, env.db.Create(&inactive).Error)
	station := bearer(t, 500, "station")

	resp := env.doJSON(t, http.MethodPost, "/api/v1/scans", station, dto.ScanRequest{Payload: "NOPE-404"})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	body := readEnvelope(t, resp, nil)
	require.Equal(t, "unrecognized code", body.Message)

	resp = env.doJSON(t, http.MethodPost, "/api/v1/scans", station, dto.ScanRequest{Payload: inactive.Matricule})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPost, "/api/v1/scans", station, map[string]string{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var count int64
	require.NoError(t, env.db.Model(&models.AttendanceRecord{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestScanRequiresStationRole(t *testing.T) {
	env := newTestApp(t)
	learner := seedActor(t, env.db, "L-0010", models.ActorKindLearner)

	resp := env.doJSON(t, http.MethodPost, "/api/v1/scans", bearer(t, learner.ID, "learner"), dto.ScanRequest{Payload: learner.Matricule})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPost, "/api/v1/scans", "", dto.ScanRequest{Payload: learner.Matricule})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCoachScansPairIntoCheckInAndCheckOut(t *testing.T) {
	env := newTestApp(t)
	coach := seedActor(t, env.db, "C-0001", models.ActorKindCoach)
	station := bearer(t, 500, "station")

	steps := []struct {
		at     time.Time
		status int
		action string
	}{
		{time.Date(2024, 3, 4, 8, 5, 0, 0, time.UTC), fiber.StatusCreated, "checkin"},
		{time.Date(2024, 3, 4, 8, 5, 20, 0, time.UTC), fiber.StatusOK, "none"},
		{time.Date(2024, 3, 4, 17, 35, 0, 0, time.UTC), fiber.StatusCreated, "checkout"},
		{time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC), fiber.StatusOK, "none"},
	}

	var last dto.ScanResponse
	for _, step := range steps {
		scannedAt := step.at
		resp := env.doJSON(t, http.MethodPost, "/api/v1/scans", station, dto.ScanRequest{ID: coach.Matricule, ScannedAt: &scannedAt})
		require.Equal(t, step.status, resp.StatusCode, step.at)
		readEnvelope(t, resp, &last)
		require.Equal(t, step.action, last.Action, step.at)
	}

	require.True(t, last.AlreadyScanned)
	require.NotNil(t, last.Record.CheckIn)
	require.NotNil(t, last.Record.CheckOut)
	require.Equal(t, 9.5, last.Record.CheckOut.Sub(*last.Record.CheckIn).Hours())
}

func TestMealScanDeduplicatesPerDay(t *testing.T) {
	env := newTestApp(t)
	learner := seedActor(t, env.db, "L-0011", models.ActorKindLearner)
	coach := seedActor(t, env.db, "C-0002", models.ActorKindCoach)
	station := bearer(t, 500, "station")

	breakfast := time.Date(2024, 3, 4, 7, 30, 0, 0, time.UTC)
	resp := env.doJSON(t, http.MethodPost, "/api/v1/scans/meals", station, dto.MealScanRequest{Payload: learner.Matricule, MealType: "BREAKFAST", ScannedAt: &breakfast})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var meal dto.MealScanResponse
	readEnvelope(t, resp, &meal)
	require.Equal(t, "2024-03-04", meal.Date)

	again := breakfast.Add(10 * time.Minute)
	resp = env.doJSON(t, http.MethodPost, "/api/v1/scans/meals", station, dto.MealScanRequest{Payload: learner.Matricule, MealType: "BREAKFAST", ScannedAt: &again})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	lunch := breakfast.Add(5 * time.Hour)
	resp = env.doJSON(t, http.MethodPost, "/api/v1/scans/meals", station, dto.MealScanRequest{Payload: learner.Matricule, MealType: "LUNCH", ScannedAt: &lunch})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPost, "/api/v1/scans/meals", station, dto.MealScanRequest{Payload: coach.Matricule, MealType: "LUNCH", ScannedAt: &lunch})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPost, "/api/v1/scans/meals", station, dto.MealScanRequest{Payload: learner.Matricule, MealType: "DINNER"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestScanRateLimitPerStation(t *testing.T) {
	env := newTestApp(t, func(cfg *config.Config) { cfg.ScanRateLimit = 2 })
	learner := seedActor(t, env.db, "L-0012", models.ActorKindLearner)
	station := bearer(t, 501, "station")

	for i := 0; i < 2; i++ {
		resp := env.doJSON(t, http.MethodPost, "/api/v1/scans", station, dto.ScanRequest{Payload: learner.Matricule})
		require.Less(t, resp.StatusCode, fiber.StatusBadRequest)
	}

	resp := env.doJSON(t, http.MethodPost, "/api/v1/scans", station, dto.ScanRequest{Payload: learner.Matricule})
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPost, "/api/v1/scans", bearer(t, 502, "station"), dto.ScanRequest{Payload: learner.Matricule})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLiveFeedStreamsScanResults(t *testing.T) {
	env := newTestApp(t)
	learner := seedActor(t, env.db, "L-0013", models.ActorKindLearner)
	station := bearer(t, 500, "station")

	baseURL, shutdown := startFiberServer(t, env.app)
	defer shutdown()

	observability.RegisterMetrics()
	before := testutil.ToFloat64(observability.LiveFeedClientsActive())

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/scans/live?access_token=" + station
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(observability.LiveFeedClientsActive()) == before+1
	}, 2*time.Second, 10*time.Millisecond)

	scannedAt := time.Date(2024, 3, 4, 8, 16, 0, 0, time.UTC)
	raw, err := json.Marshal(dto.ScanRequest{Payload: learner.Matricule, ScannedAt: &scannedAt})
	require.NoError(t, err)
	scanResp := env.doWithHeaders(t, http.MethodPost, "/api/v1/scans", station, bytes.NewReader(raw), fiber.MIMEApplicationJSON, map[string]string{
		middleware.HeaderStationID: "gate-north",
	})
	require.Equal(t, fiber.StatusCreated, scanResp.StatusCode)
	require.NotEmpty(t, scanResp.Header.Get(middleware.HeaderCorrelationID))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event dto.ScanEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, learner.ID, event.ActorID)
	require.Equal(t, learner.Matricule, event.Matricule)
	require.Equal(t, "checkin", event.Action)
	require.True(t, event.IsLate)
	require.Equal(t, "2024-03-04", event.Date)
	require.Equal(t, "gate-north", event.StationID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(observability.LiveFeedClientsActive()) == before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLiveFeedRequiresUpgrade(t *testing.T) {
	env := newTestApp(t)

	resp := env.do(t, http.MethodGet, "/api/v1/scans/live", bearer(t, 500, "station"), nil, "")
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	return "http://" + listener.Addr().String(), func() {
		_ = app.Shutdown()
		<-done
	}
}
