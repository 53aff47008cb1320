package handler_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/presence-go-api/internal/dto"
	"github.com/noah-isme/presence-go-api/internal/models"
)

func TestLateArrivalJustificationLifecycle(t *testing.T) {
	env := newTestApp(t)
	learner := seedActor(t, env.db, "L-2041", models.ActorKindLearner)
	other := seedActor(t, env.db, "L-2042", models.ActorKindLearner)

	station := bearer(t, 500, "station")
	admin := bearer(t, 900, "admin")
	learnerToken := bearer(t, learner.ID, "learner")

	scannedAt := time.Date(2024, 3, 4, 8, 20, 0, 0, time.UTC)
	resp := env.doJSON(t, http.MethodPost, "/api/v1/scans", station, dto.ScanRequest{Payload: learner.Matricule, ScannedAt: &scannedAt})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var scan dto.ScanResponse
	readEnvelope(t, resp, &scan)
	require.Equal(t, "checkin", scan.Action)
	require.True(t, scan.IsLate)
	require.Equal(t, "2024-03-04", scan.Record.Date)
	require.Equal(t, string(models.JustificationToJustify), scan.Record.Status)
	recordPath := fmt.Sprintf("/api/v1/attendance/%d", scan.Record.ID)

	resp = env.doJSON(t, http.MethodPost, "/api/v1/scans", station, dto.ScanRequest{Payload: learner.Matricule, ScannedAt: &scannedAt})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var repeat dto.ScanResponse
	body := readEnvelope(t, resp, &repeat)
	require.Equal(t, "already scanned", body.Message)
	require.True(t, repeat.AlreadyScanned)
	require.Equal(t, scan.Record.ID, repeat.Record.ID)

	form, contentType := justificationForm(t, "Bus broke down on the ring road", "", nil)
	resp = env.do(t, http.MethodPost, recordPath+"/justification", bearer(t, other.ID, "learner"), form, contentType)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	form, contentType = justificationForm(t, "Bus broke down on the ring road", "", nil)
	resp = env.do(t, http.MethodPost, recordPath+"/justification", learnerToken, form, contentType)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var submitted dto.AttendanceRecordResponse
	readEnvelope(t, resp, &submitted)
	require.Equal(t, string(models.JustificationPending), submitted.Status)
	require.Equal(t, "Bus broke down on the ring road", submitted.Justification)

	resp = env.doJSON(t, http.MethodPatch, recordPath+"/review", learnerToken, dto.JustificationReviewRequest{Status: "APPROVED"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPatch, recordPath+"/review", admin, dto.JustificationReviewRequest{Status: "REJECTED", Comment: "Please attach proof"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var rejected dto.AttendanceRecordResponse
	readEnvelope(t, resp, &rejected)
	require.Equal(t, string(models.JustificationRejected), rejected.Status)
	require.Equal(t, "Please attach proof", rejected.Comment)

	resp = env.doJSON(t, http.MethodPatch, recordPath+"/review", admin, dto.JustificationReviewRequest{Status: "APPROVED"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	conflict := readEnvelope(t, resp, nil)
	require.Equal(t, string(models.JustificationRejected), conflict.Details["status"])

	form, contentType = justificationForm(t, "Bus company certificate attached", "certificate.png", pngHeader)
	resp = env.do(t, http.MethodPost, recordPath+"/justification", learnerToken, form, contentType)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var resubmitted dto.AttendanceRecordResponse
	readEnvelope(t, resp, &resubmitted)
	require.Equal(t, string(models.JustificationPending), resubmitted.Status)
	require.Equal(t, "memory://1/certificate.png", resubmitted.DocumentRef)
	require.Empty(t, resubmitted.Comment)
	require.Nil(t, resubmitted.ReviewedAt)

	resp = env.doJSON(t, http.MethodPatch, recordPath+"/review", admin, dto.JustificationReviewRequest{Status: "APPROVED", Comment: "ok"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var approved dto.AttendanceRecordResponse
	readEnvelope(t, resp, &approved)
	require.Equal(t, string(models.JustificationApproved), approved.Status)
	require.NotNil(t, approved.ReviewedAt)

	resp = env.do(t, http.MethodGet, recordPath+"/history", admin, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var history dto.ActivityListResponse
	readEnvelope(t, resp, &history)
	require.EqualValues(t, 4, history.Total)
	require.Equal(t, "APPROVED", history.Items[0].Metadata["to"])

	resp = env.do(t, http.MethodGet, "/api/v1/notifications", learnerToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var notifications []dto.NotificationResponse
	readEnvelope(t, resp, &notifications)
	require.Len(t, notifications, 4)
	for _, notification := range notifications {
		require.Equal(t, scan.Record.ID, *notification.RecordID)
	}

	resp = env.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/notifications/%d/read", notifications[0].ID), learnerToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/notifications/%d/read", notifications[0].ID), bearer(t, other.ID, "learner"), nil, "")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestJustificationRejectsNonImageDocument(t *testing.T) {
	env := newTestApp(t)
	learner := seedActor(t, env.db, "L-3001", models.ActorKindLearner)

	scannedAt := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	resp := env.doJSON(t, http.MethodPost, "/api/v1/scans", bearer(t, 500, "station"), dto.ScanRequest{Payload: learner.Matricule, ScannedAt: &scannedAt})
	var scan dto.ScanResponse
	readEnvelope(t, resp, &scan)

	form, contentType := justificationForm(t, "Doctor visit", "note.pdf", []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n"))
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/attendance/%d/justification", scan.Record.ID), bearer(t, learner.ID, "learner"), form, contentType)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := readEnvelope(t, resp, nil)
	require.Contains(t, body.Details, "document")
	require.Empty(t, env.storage.uploads)

	var stored models.AttendanceRecord
	require.NoError(t, env.db.First(&stored, scan.Record.ID).Error)
	require.Equal(t, models.JustificationToJustify, stored.JustificationStatus)
}

func TestJustificationRequiresText(t *testing.T) {
	env := newTestApp(t)
	learner := seedActor(t, env.db, "L-3002", models.ActorKindLearner)

	scannedAt := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	resp := env.doJSON(t, http.MethodPost, "/api/v1/scans", bearer(t, 500, "station"), dto.ScanRequest{Payload: learner.Matricule, ScannedAt: &scannedAt})
	var scan dto.ScanResponse
	readEnvelope(t, resp, &scan)

	form, contentType := justificationForm(t, "   ", "", nil)
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/attendance/%d/justification", scan.Record.ID), bearer(t, learner.ID, "learner"), form, contentType)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/attendance/99999/justification", bearer(t, learner.ID, "learner"), nil, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAttendanceListingAndStats(t *testing.T) {
	env := newTestApp(t)
	learner := seedActor(t, env.db, "L-4001", models.ActorKindLearner)
	station := bearer(t, 500, "station")
	admin := bearer(t, 900, "admin")

	for _, ts := range []time.Time{
		time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 6, 8, 10, 0, 0, time.UTC),
	} {
		scannedAt := ts
		resp := env.doJSON(t, http.MethodPost, "/api/v1/scans", station, dto.ScanRequest{Payload: learner.Matricule, ScannedAt: &scannedAt})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp := env.doJSON(t, http.MethodPost, "/api/v1/attendance/sweep", admin, dto.SweepRequest{Date: "2024-03-07"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var sweep dto.SweepResponse
	readEnvelope(t, resp, &sweep)
	require.Equal(t, 1, sweep.Created)

	learnerToken := bearer(t, learner.ID, "learner")
	resp = env.do(t, http.MethodGet, "/api/v1/attendance/me?from=2024-03-05", learnerToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var mine []dto.AttendanceRecordResponse
	readEnvelope(t, resp, &mine)
	require.Len(t, mine, 3)

	resp = env.do(t, http.MethodGet, "/api/v1/attendance/me/stats?from=2024-03-01&to=2024-03-31", learnerToken, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stats dto.AttendanceStatsResponse
	readEnvelope(t, resp, &stats)
	require.Equal(t, 2, stats.Stats.Present)
	require.Equal(t, 1, stats.Stats.Late)
	require.Equal(t, 1, stats.Stats.Absent)
	require.Equal(t, 75, stats.Stats.AttendanceRate)

	resp = env.do(t, http.MethodGet, "/api/v1/attendance/stats?group=P7", admin, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	readEnvelope(t, resp, &stats)
	require.Equal(t, 4, stats.Stats.Total)

	resp = env.do(t, http.MethodGet, "/api/v1/attendance/stats", admin, nil, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/attendance?status=TO_JUSTIFY", admin, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var pending []dto.AttendanceRecordResponse
	readEnvelope(t, resp, &pending)
	require.Len(t, pending, 2)

	resp = env.do(t, http.MethodGet, "/api/v1/attendance", learnerToken, nil, "")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/attendance/me", "", nil, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
