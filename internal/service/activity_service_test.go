package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/presence-go-api/internal/repository"
)

func TestActivityServiceRecordMasksEmail(t *testing.T) {
	db := newTestDB(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), testLogger())

	entry, err := svc.Record(context.Background(), ActivityEntry{
		ActorID:    1,
		ActorRole:  "Admin",
		Action:     ActivityJustificationApproved,
		EntityType: "attendance_record",
		EntityID:   ptrUint(5),
		Metadata: map[string]interface{}{
			"email":   "learner@example.com",
			"comment": "fine",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "fine", entry.Metadata["comment"])
	require.Equal(t, "admin", entry.ActorRole)
}

func TestActivityServiceRequiresAction(t *testing.T) {
	db := newTestDB(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{EntityType: "attendance_record"})
	require.Error(t, err)

	_, err = svc.Record(context.Background(), ActivityEntry{Action: "x"})
	require.Error(t, err)
}

func TestActivityServiceHistoryFiltersByRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewActivityService(repository.NewActivityLogRepository(db), testLogger())
	ctx := context.Background()

	for _, id := range []uint{7, 7, 8} {
		_, err := svc.Record(ctx, ActivityEntry{
			ActorID:    1,
			ActorRole:  RoleAdmin,
			Action:     ActivityJustificationSubmitted,
			EntityType: "attendance_record",
			EntityID:   ptrUint(id),
		})
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, 7, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), history.Total)
	require.Len(t, history.Items, 2)
	for _, item := range history.Items {
		require.Equal(t, uint(7), *item.EntityID)
	}
}
