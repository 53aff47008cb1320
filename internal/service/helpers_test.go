package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/presence-go-api/internal/database"
	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/models"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func testSchedule() DaySchedule {
	return MustDaySchedule("08:15", time.UTC)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the shared in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func seedActor(t *testing.T, db *gorm.DB, matricule string, kind models.ActorKind, active bool) models.Actor {
	t.Helper()

	actor := models.Actor{
		Matricule: matricule,
		Kind:      kind,
		FullName:  "Actor " + matricule,
		Email:     matricule + "@example.com",
		GroupCode: "P7",
		Active:    active,
	}
	require.NoError(t, db.Create(&actor).Error)
	return actor
}

func at(day, clock string) time.Time {
	ts, err := time.Parse("2006-01-02 15:04:05", day+" "+clock)
	if err != nil {
		panic(err)
	}
	return ts
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("document", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["document"][0]
}

type recordedNotice struct {
	ActorID  uint
	Kind     string
	Message  string
	RecordID *uint
}

type stubNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (s *stubNotifier) Notify(_ context.Context, actorID uint, kind, message string, recordID *uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, recordedNotice{ActorID: actorID, Kind: kind, Message: message, RecordID: recordID})
	return nil
}

func (s *stubNotifier) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]string, 0, len(s.notices))
	for _, notice := range s.notices {
		kinds = append(kinds, notice.Kind)
	}
	return kinds
}

type stubActivityRecorder struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (s *stubActivityRecorder) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return dto.ActivityResponse{Action: entry.Action, EntityType: entry.EntityType, EntityID: entry.EntityID}, nil
}

type memoryStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (m *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploads == nil {
		m.uploads = map[string][]byte{}
	}
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	ref := fmt.Sprintf("memory://%d/%s", len(m.uploads)+1, name)
	m.uploads[ref] = buf.Bytes()
	return ref, nil
}

func ptrUint(v uint) *uint {
	return &v
}
