package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/presence-go-api/internal/config"
	"github.com/noah-isme/presence-go-api/internal/database"
	"github.com/noah-isme/presence-go-api/internal/handler"
	"github.com/noah-isme/presence-go-api/internal/middleware"
	"github.com/noah-isme/presence-go-api/internal/models"
	"github.com/noah-isme/presence-go-api/internal/repository"
	"github.com/noah-isme/presence-go-api/internal/router"
	"github.com/noah-isme/presence-go-api/internal/service"
)

const testJWTSecret = "presence-handler-secret"

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

type memoryStorage struct {
	mu      sync.Mutex
	uploads []string
}

func (m *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, name)
	return fmt.Sprintf("memory://%d/%s", len(m.uploads), name), nil
}

type testApp struct {
	app           *fiber.App
	db            *gorm.DB
	storage       *memoryStorage
	notifications service.NotificationService
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    json.RawMessage        `json:"data"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func newTestApp(t *testing.T, overrides ...func(*config.Config)) *testApp {
	t.Helper()

	cfg := config.Config{
		AppName:             "Presence Test",
		AppEnv:              "test",
		JWTSecret:           testJWTSecret,
		NotificationChannel: "presence-test",
		LateCutoff:          "08:15",
		Timezone:            "UTC",
		MaxDocumentMB:       2,
	}
	for _, override := range overrides {
		override(&cfg)
	}

	db := newTestDB(t)
	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	schedule := service.MustDaySchedule(cfg.LateCutoff, time.UTC)
	storage := &memoryStorage{}

	actorRepo := repository.NewActorRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), service.NotificationOptions{
		ChannelBase: cfg.NotificationChannel,
		Actors:      actorRepo,
	}, validate, logger)
	feed := service.NewScanFeed(nil, cfg.NotificationChannel, logger)

	attendance := service.NewAttendanceService(attendanceRepo, schedule, logger)
	scans := service.NewScanService(
		service.NewDirectoryResolver(actorRepo),
		attendance,
		service.NewCheckInOutService(attendanceRepo, schedule, 0, logger),
		service.NewMealService(repository.NewMealScanRepository(db), schedule, logger),
		feed,
		validate,
		logger,
	)

	app := fiber.New()
	app.Use(middleware.CorrelationID())
	router.Register(app, cfg, router.Dependencies{
		ScanHandler: handler.NewScanHandler(scans, feed, logger),
		AttendanceHandler: handler.NewAttendanceHandler(handler.AttendanceHandlerDeps{
			Records:        service.NewAttendanceQueryService(attendanceRepo, validate),
			Stats:          service.NewStatsService(attendanceRepo, nil, 0, validate, logger),
			Sweep:          service.NewSweepService(actorRepo, attendance, activity, schedule, validate, logger),
			Justifications: service.NewJustificationService(attendanceRepo, storage, notifications, activity, cfg.MaxDocumentMB, validate, logger),
			Activity:       activity,
		}, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger, time.Second),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	return &testApp{app: app, db: db, storage: storage, notifications: notifications}
}

func seedActor(t *testing.T, db *gorm.DB, matricule string, kind models.ActorKind) models.Actor {
	t.Helper()

	actor := models.Actor{
		Matricule: matricule,
		Kind:      kind,
		FullName:  "Actor " + matricule,
		Email:     strings.ToLower(matricule) + "@example.com",
		GroupCode: "P7",
		Active:    true,
	}
	require.NoError(t, db.Create(&actor).Error)
	return actor
}

func bearer(t *testing.T, actorID uint, role string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", actorID),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func (a *testApp) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	return a.doWithHeaders(t, method, path, token, body, contentType, nil)
}

func (a *testApp) doWithHeaders(t *testing.T, method, path, token string, body io.Reader, contentType string, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (a *testApp) doJSON(t *testing.T, method, path, token string, payload interface{}) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return a.do(t, method, path, token, body, fiber.MIMEApplicationJSON)
}

func readEnvelope(t *testing.T, resp *http.Response, data interface{}) envelope {
	t.Helper()
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func justificationForm(t *testing.T, text, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("justification", text))
	if fileName != "" {
		part, err := writer.CreateFormFile("document", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}
