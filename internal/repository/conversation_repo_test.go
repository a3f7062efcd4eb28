package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/onquest-api/internal/models"
)

func seedGroup(t *testing.T, repo ConversationRepository, owner, code string) models.Conversation {
	t.Helper()
	inviteCode := code
	conversation := models.Conversation{
		ID:             NewID(),
		Type:           models.ConversationTypeGroup,
		Name:           "Lisbon crew",
		Members:        datatypes.JSONSlice[models.MemberRef]{{UID: owner, Role: models.MemberRoleAdmin}},
		MemberCount:    1,
		InviteCode:     &inviteCode,
		CreatedBy:      owner,
		LastActivityAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateGroup(context.Background(), &conversation, models.ConversationMember{
		UserID: owner,
		Role:   models.MemberRoleAdmin,
	}, nil))
	return conversation
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&count).Error)
	return count
}

func TestConversationRepositoryJoinRejectsExistingMember(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()
	group := seedGroup(t, repo, "alice", "ABCD2345")

	found, err := repo.FindByInviteCode(ctx, "ABCD2345")
	require.NoError(t, err)
	require.Equal(t, group.ID, found.ID)

	updated, err := repo.AddMember(ctx, group.ID, models.ConversationMember{UserID: "bob", Role: models.MemberRoleMember}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, updated.MemberCount)
	require.Len(t, updated.Members, 2)

	_, err = repo.AddMember(ctx, group.ID, models.ConversationMember{UserID: "bob", Role: models.MemberRoleMember}, nil)
	require.ErrorIs(t, err, models.ErrAlreadyMember)

	stored, err := repo.Get(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.MemberCount)
	require.Equal(t, int64(2), countRows(t, db, &models.ConversationMember{}, "conversation_id = ?", group.ID))
	require.Equal(t, int64(1), countRows(t, db, &models.UserChat{}, "user_id = ?", "bob"))
}

func TestConversationRepositoryLeaveTransfersOwnership(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()
	group := seedGroup(t, repo, "alice", "ABCD2346")

	for _, uid := range []string{"bob", "carol"} {
		_, err := repo.AddMember(ctx, group.ID, models.ConversationMember{UserID: uid, Role: models.MemberRoleMember}, nil)
		require.NoError(t, err)
	}

	result, err := repo.RemoveMember(ctx, group.ID, "alice", nil)
	require.NoError(t, err)
	require.False(t, result.Deleted)
	require.Equal(t, []string{"alice", "bob", "carol"}, result.Members)
	require.Equal(t, "bob", result.Conversation.CreatedBy)
	require.Equal(t, 2, result.Conversation.MemberCount)
	require.Equal(t, models.MemberRoleAdmin, result.Conversation.Members[0].Role)

	var bob models.ConversationMember
	require.NoError(t, db.First(&bob, "conversation_id = ? AND user_id = ?", group.ID, "bob").Error)
	require.Equal(t, models.MemberRoleAdmin, bob.Role)
	require.Equal(t, int64(0), countRows(t, db, &models.UserChat{}, "user_id = ?", "alice"))

	_, err = repo.RemoveMember(ctx, group.ID, "alice", nil)
	require.ErrorIs(t, err, models.ErrNotMember)
}

func TestConversationRepositoryLastLeaveDeletes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()
	group := seedGroup(t, repo, "alice", "ABCD2347")

	result, err := repo.RemoveMember(ctx, group.ID, "alice", nil)
	require.NoError(t, err)
	require.True(t, result.Deleted)

	_, err = repo.Get(ctx, group.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	require.Equal(t, int64(0), countRows(t, db, &models.UnreadCounter{}, "conversation_id = ?", group.ID))
}

func TestConversationRepositoryDirectIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	_, err := repo.FindDirect(ctx, "alice", "bob")
	require.ErrorIs(t, err, models.ErrNotFound)

	direct := models.Conversation{
		ID:          "dm-pair",
		Type:        models.ConversationTypeDM,
		Members:     datatypes.JSONSlice[models.MemberRef]{{UID: "alice", Role: models.MemberRoleMember}, {UID: "bob", Role: models.MemberRoleMember}},
		MemberCount: 2,
		CreatedBy:   "alice",
	}
	members := []models.ConversationMember{{UserID: "alice", Role: models.MemberRoleMember}, {UserID: "bob", Role: models.MemberRoleMember}}
	created, err := repo.CreateDirect(ctx, &direct, members)
	require.NoError(t, err)

	again := direct
	again.CreatedBy = "bob"
	second, err := repo.CreateDirect(ctx, &again, members)
	require.NoError(t, err)
	require.Equal(t, created.ID, second.ID)
	require.Equal(t, "alice", second.CreatedBy)

	found, err := repo.FindDirect(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, int64(1), countRows(t, db, &models.Conversation{}, "type = ?", models.ConversationTypeDM))
}

func TestConversationRepositoryRecordMessageUpdatesCountersAndOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	older := seedGroup(t, repo, "alice", "OLDR2345")
	newer := seedGroup(t, repo, "alice", "NEWR2345")
	for _, id := range []string{older.ID, newer.ID} {
		_, err := repo.AddMember(ctx, id, models.ConversationMember{UserID: "bob", Role: models.MemberRoleMember}, nil)
		require.NoError(t, err)
	}

	message := models.Message{
		ID:        NewID(),
		ChatID:    older.ID,
		SenderID:  "alice",
		Content:   "hello",
		Type:      models.MessageTypeText,
		CreatedAt: time.Now().UTC().Add(time.Minute),
	}
	require.NoError(t, repo.RecordMessage(ctx, &message, "hello"))

	counts, err := repo.UnreadCounts(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, counts[older.ID])
	require.Equal(t, 0, counts[newer.ID])

	counts, err = repo.UnreadCounts(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 0, counts[older.ID])

	list, err := repo.ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, older.ID, list[0].ID)
	require.Equal(t, "hello", list[0].LastMessage)

	require.NoError(t, repo.ResetUnread(ctx, older.ID, "bob"))
	counts, err = repo.UnreadCounts(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 0, counts[older.ID])

	orphan := models.Message{ID: NewID(), ChatID: "missing", SenderID: "alice", Type: models.MessageTypeText, CreatedAt: time.Now().UTC()}
	require.ErrorIs(t, repo.RecordMessage(ctx, &orphan, "x"), models.ErrNotFound)
}

func TestConversationRepositorySetPresence(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()
	group := seedGroup(t, repo, "alice", "PRES2345")

	chatIDs, err := repo.SetPresence(ctx, "alice", true, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, []string{group.ID}, chatIDs)

	members, err := repo.Members(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.True(t, members[0].IsOnline)

	isMember, err := repo.IsMember(ctx, group.ID, "alice")
	require.NoError(t, err)
	require.True(t, isMember)
}
