package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/onquest-api/internal/itinerary"
	"github.com/noah-isme/onquest-api/internal/models"
)

// recordLockedReads notes the table of every query carrying a FOR UPDATE clause.
// sqlite drops the clause when rendering, so it is read off the statement.
func recordLockedReads(t *testing.T, db *gorm.DB) func() []string {
	t.Helper()
	var (
		mu     sync.Mutex
		tables []string
	)
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:locked_reads", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses["FOR"]; !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		tables = append(tables, tx.Statement.Table)
	}))
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), tables...)
	}
}

func TestReadModifyWriteLocksRows(t *testing.T) {
	db := setupTestDB(t)
	locked := recordLockedReads(t, db)
	ctx := context.Background()

	conversations := NewConversationRepository(db)
	group := seedGroup(t, conversations, "alice", "LOCK2345")
	_, err := conversations.AddMember(ctx, group.ID, models.ConversationMember{UserID: "bob", Role: models.MemberRoleMember}, nil)
	require.NoError(t, err)
	_, err = conversations.RemoveMember(ctx, group.ID, "bob", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"conversations", "conversations"}, locked())

	messages := seedMessages(t, group.ID, "alice")
	require.NoError(t, db.Create(&messages).Error)
	_, err = NewMessageRepository(db).Mutate(ctx, messages[0].ID, func(message *models.Message) error {
		message.Edited = true
		return nil
	})
	require.NoError(t, err)
	require.Contains(t, locked(), "messages")

	trips := NewTripRepository(db)
	trip := models.Trip{Title: "Porto weekend", CreatedBy: "alice"}
	require.NoError(t, trips.Create(ctx, &trip))
	_, err = trips.AddMedia(ctx, trip.ID, []itinerary.Media{{URL: "https://cdn/a.jpg", Type: itinerary.MediaPhoto, Path: "trips/x/a.jpg"}})
	require.NoError(t, err)
	require.Contains(t, locked(), "trips")
}
