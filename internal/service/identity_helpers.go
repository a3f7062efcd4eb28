package service

import (
	"context"
	"strings"
	"time"

	"github.com/noah-isme/onquest-api/internal/models"
	"github.com/noah-isme/onquest-api/internal/repository"
)

// ensureProfile creates or refreshes the caller's user document.
func ensureProfile(ctx context.Context, users repository.UserRepository, identity models.Identity) error {
	profile := models.UserProfile{
		UID:         identity.UID,
		DisplayName: identity.Name(),
		Email:       strings.TrimSpace(identity.Email),
		PhotoURL:    strings.TrimSpace(identity.PhotoURL),
	}
	if err := users.Upsert(ctx, &profile); err != nil {
		return models.Remote("upsert profile", err)
	}
	return nil
}

func memberFromIdentity(identity models.Identity, role models.MemberRole) models.ConversationMember {
	return models.ConversationMember{
		UserID:      identity.UID,
		Role:        role,
		DisplayName: identity.Name(),
		Email:       strings.TrimSpace(identity.Email),
		PhotoURL:    identity.Avatar(),
		JoinedAt:    time.Now().UTC(),
		IsOnline:    true,
	}
}
