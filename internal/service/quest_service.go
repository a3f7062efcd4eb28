package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/onquest-api/internal/dto"
	"github.com/noah-isme/onquest-api/internal/itinerary"
	"github.com/noah-isme/onquest-api/internal/models"
	"github.com/noah-isme/onquest-api/internal/repository"
)

// QuestService drives itinerary editor sessions and the trips they are saved to.
type QuestService interface {
	CreateDraft(ctx context.Context, identity models.Identity) (dto.QuestDraftResponse, error)
	EditTrip(ctx context.Context, identity models.Identity, tripID string) (dto.QuestDraftResponse, error)
	GetDraft(ctx context.Context, identity models.Identity, draftID string) (dto.QuestDraftResponse, error)
	DiscardDraft(ctx context.Context, identity models.Identity, draftID string) error
	UpdateDetails(ctx context.Context, identity models.Identity, draftID string, req dto.QuestDetailsRequest) (dto.QuestDraftResponse, error)
	AddDay(ctx context.Context, identity models.Identity, draftID string) (dto.QuestDraftResponse, error)
	SetDayDate(ctx context.Context, identity models.Identity, draftID string, dayIndex int, req dto.DayDateRequest) (dto.QuestDraftResponse, error)
	AddCard(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID) (dto.QuestDraftResponse, error)
	UpdateCard(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int, req dto.CardUpdateRequest) (dto.QuestDraftResponse, error)
	DeleteCard(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int) (dto.QuestDraftResponse, error)
	MoveCard(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int, req dto.MoveCardRequest) (dto.QuestDraftResponse, error)
	ToggleTimePeriod(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID) (dto.QuestDraftResponse, error)
	Validate(ctx context.Context, identity models.Identity, draftID string) (itinerary.ValidationResult, error)
	Save(ctx context.Context, identity models.Identity, draftID string) (dto.TripResponse, error)
	UploadCardMedia(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int, files []*multipart.FileHeader) (dto.QuestDraftResponse, error)
	RemoveCardMedia(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int, req dto.RemoveMediaRequest) (dto.QuestDraftResponse, error)

	GetTrip(ctx context.Context, identity models.Identity, tripID string) (dto.TripResponse, error)
	UpdateTitle(ctx context.Context, identity models.Identity, tripID string, req dto.TitleRequest) (dto.TripResponse, error)
	UpdateDescription(ctx context.Context, identity models.Identity, tripID string, req dto.DescriptionRequest) (dto.TripResponse, error)
	ToggleLike(ctx context.Context, identity models.Identity, tripID string) (dto.EngagementResponse, error)
	ToggleSave(ctx context.Context, identity models.Identity, tripID string) (dto.EngagementResponse, error)
	ToggleFollow(ctx context.Context, identity models.Identity, tripID string) (dto.EngagementResponse, error)
	Duplicate(ctx context.Context, identity models.Identity, tripID string) (dto.TripResponse, error)
	IncrementViewCount(ctx context.Context, tripID string)
}

type questService struct {
	drafts   repository.DraftRepository
	trips    repository.TripRepository
	users    repository.UserRepository
	media    MediaService
	validate *validator.Validate
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewQuestService constructs the quest service.
func NewQuestService(drafts repository.DraftRepository, trips repository.TripRepository, users repository.UserRepository, media MediaService, validate *validator.Validate, logger zerolog.Logger) QuestService {
	return &questService{
		drafts:   drafts,
		trips:    trips,
		users:    users,
		media:    media,
		validate: validate,
		logger:   logger.With().Str("component", "quest_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/onquest-api/internal/service/quest"),
	}
}

func (s *questService) CreateDraft(ctx context.Context, identity models.Identity) (dto.QuestDraftResponse, error) {
	if !identity.Authenticated() {
		return dto.QuestDraftResponse{}, models.ErrNotAuthenticated
	}

	draft := repository.QuestDraft{
		ID:      uuid.NewString(),
		OwnerID: identity.UID,
		Editor:  *itinerary.NewEditor(),
	}
	if err := s.drafts.Save(ctx, &draft); err != nil {
		return dto.QuestDraftResponse{}, models.Remote("save draft", err)
	}
	return dto.NewQuestDraftResponse(draft.ID, &draft.Editor, draft.UpdatedAt), nil
}

// EditTrip opens a new editor session on an existing trip.
func (s *questService) EditTrip(ctx context.Context, identity models.Identity, tripID string) (dto.QuestDraftResponse, error) {
	if !identity.Authenticated() {
		return dto.QuestDraftResponse{}, models.ErrNotAuthenticated
	}

	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return dto.QuestDraftResponse{}, models.Remote("load trip", err)
	}
	if !trip.CanEdit(identity.UID) {
		return dto.QuestDraftResponse{}, models.ErrNotFound
	}

	days := append([]itinerary.Day{}, trip.Days...)
	if len(days) == 0 {
		days, err = itinerary.Rebuild(trip.FlowCards)
		if err != nil {
			return dto.QuestDraftResponse{}, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
	}

	editor := itinerary.NewEditor()
	editor.Quest = itinerary.Quest{
		ID:          trip.ID,
		Title:       trip.Title,
		Description: trip.Description,
		IsPrivate:   trip.IsPrivate,
		Tags:        append([]string{}, trip.Tags...),
		Days:        days,
	}
	if markers := editor.MapMarkers(); len(markers) > 0 {
		editor.Center = itinerary.LatLng{Lat: markers[0].Lat, Lng: markers[0].Lng}
	}

	draft := repository.QuestDraft{ID: uuid.NewString(), OwnerID: identity.UID, Editor: *editor}
	if err := s.drafts.Save(ctx, &draft); err != nil {
		return dto.QuestDraftResponse{}, models.Remote("save draft", err)
	}
	return dto.NewQuestDraftResponse(draft.ID, &draft.Editor, draft.UpdatedAt), nil
}

func (s *questService) GetDraft(ctx context.Context, identity models.Identity, draftID string) (dto.QuestDraftResponse, error) {
	draft, err := s.loadDraft(ctx, identity, draftID)
	if err != nil {
		return dto.QuestDraftResponse{}, err
	}
	return dto.NewQuestDraftResponse(draft.ID, &draft.Editor, draft.UpdatedAt), nil
}

func (s *questService) DiscardDraft(ctx context.Context, identity models.Identity, draftID string) error {
	if _, err := s.loadDraft(ctx, identity, draftID); err != nil {
		return err
	}
	if err := s.drafts.Delete(ctx, identity.UID, draftID); err != nil {
		return models.Remote("delete draft", err)
	}
	return nil
}

func (s *questService) UpdateDetails(ctx context.Context, identity models.Identity, draftID string, req dto.QuestDetailsRequest) (dto.QuestDraftResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.QuestDraftResponse{}, err
	}
	return s.mutateDraft(ctx, identity, draftID, func(editor *itinerary.Editor) error {
		if req.Title != nil {
			editor.Quest.Title = *req.Title
		}
		if req.Description != nil {
			editor.Quest.Description = *req.Description
		}
		if req.IsPrivate != nil {
			editor.Quest.IsPrivate = *req.IsPrivate
		}
		if req.Tags != nil {
			editor.Quest.Tags = cleanTags(req.Tags)
		}
		return nil
	})
}

func (s *questService) AddDay(ctx context.Context, identity models.Identity, draftID string) (dto.QuestDraftResponse, error) {
	return s.mutateDraft(ctx, identity, draftID, func(editor *itinerary.Editor) error {
		editor.AddDay()
		return nil
	})
}

func (s *questService) SetDayDate(ctx context.Context, identity models.Identity, draftID string, dayIndex int, req dto.DayDateRequest) (dto.QuestDraftResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.QuestDraftResponse{}, err
	}
	return s.mutateDraft(ctx, identity, draftID, func(editor *itinerary.Editor) error {
		return editor.SetDayDate(dayIndex, req.Date)
	})
}

func (s *questService) AddCard(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID) (dto.QuestDraftResponse, error) {
	return s.mutateDraft(ctx, identity, draftID, func(editor *itinerary.Editor) error {
		_, err := editor.AddCard(dayIndex, period)
		return err
	})
}

func (s *questService) UpdateCard(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int, req dto.CardUpdateRequest) (dto.QuestDraftResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.QuestDraftResponse{}, err
	}
	return s.mutateDraft(ctx, identity, draftID, func(editor *itinerary.Editor) error {
		_, err := editor.UpdateCard(dayIndex, period, cardIndex, req.Patch())
		return err
	})
}

func (s *questService) DeleteCard(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int) (dto.QuestDraftResponse, error) {
	return s.mutateDraft(ctx, identity, draftID, func(editor *itinerary.Editor) error {
		return editor.DeleteCard(dayIndex, period, cardIndex)
	})
}

func (s *questService) MoveCard(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int, req dto.MoveCardRequest) (dto.QuestDraftResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.QuestDraftResponse{}, err
	}
	return s.mutateDraft(ctx, identity, draftID, func(editor *itinerary.Editor) error {
		_, err := editor.MoveCard(dayIndex, period, cardIndex, itinerary.Direction(req.Direction))
		return err
	})
}

func (s *questService) ToggleTimePeriod(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID) (dto.QuestDraftResponse, error) {
	return s.mutateDraft(ctx, identity, draftID, func(editor *itinerary.Editor) error {
		_, err := editor.ToggleTimePeriod(dayIndex, period)
		return err
	})
}

func (s *questService) Validate(ctx context.Context, identity models.Identity, draftID string) (itinerary.ValidationResult, error) {
	draft, err := s.loadDraft(ctx, identity, draftID)
	if err != nil {
		return itinerary.ValidationResult{}, err
	}
	return draft.Editor.Validate(), nil
}

// Save validates the draft and writes it to its trip, creating the trip on the
// first save. The draft adopts the trip id once the write is confirmed.
func (s *questService) Save(ctx context.Context, identity models.Identity, draftID string) (dto.TripResponse, error) {
	ctx, span := s.tracer.Start(ctx, "quest.save")
	defer span.End()
	span.SetAttributes(attribute.String("quest.draft_id", draftID))

	draft, err := s.loadDraft(ctx, identity, draftID)
	if err != nil {
		return dto.TripResponse{}, err
	}

	result := draft.Editor.Validate()
	if !result.IsValid {
		span.SetStatus(codes.Error, "validation failed")
		return dto.TripResponse{}, &models.ValidationError{Violations: result.Errors}
	}

	quest := draft.Editor.Quest
	trip := models.Trip{
		ID:          quest.ID,
		Title:       strings.TrimSpace(quest.Title),
		Description: strings.TrimSpace(quest.Description),
		IsPrivate:   quest.IsPrivate,
		IsDraft:     true,
		CreatedBy:   identity.UID,
		Tags:        datatypes.JSONSlice[string](cleanTags(quest.Tags)),
		FlowCards:   datatypes.JSONSlice[itinerary.FlatCard](itinerary.Flatten(quest.Days)),
		Days:        datatypes.JSONSlice[itinerary.Day](quest.Days),
	}

	if trip.ID == "" {
		err = s.trips.Create(ctx, &trip)
	} else {
		var existing models.Trip
		existing, err = s.trips.Get(ctx, trip.ID)
		if err == nil && !existing.CanEdit(identity.UID) {
			err = models.ErrNotFound
		}
		if err == nil {
			err = s.trips.Update(ctx, &trip)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return dto.TripResponse{}, models.Remote("save quest", err)
	}

	draft.Editor.Quest.ID = trip.ID
	if err := s.drafts.Save(ctx, &draft); err != nil {
		return dto.TripResponse{}, models.Remote("save draft", err)
	}

	saved, err := s.trips.Get(ctx, trip.ID)
	if err != nil {
		return dto.TripResponse{}, models.Remote("load trip", err)
	}

	span.SetAttributes(attribute.String("quest.trip_id", trip.ID), attribute.Int("quest.cards", len(trip.FlowCards)))
	span.SetStatus(codes.Ok, "saved")
	s.logger.Info().Str("trip_id", trip.ID).Str("draft_id", draftID).Int("cards", len(trip.FlowCards)).Msg("quest saved")
	return dto.NewTripResponse(saved, identity.UID), nil
}

// UploadCardMedia uploads files to the draft's trip and merges them into the
// card once every upload succeeded. Drafts that were never saved have no trip
// to attach to and are returned unchanged.
func (s *questService) UploadCardMedia(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int, files []*multipart.FileHeader) (dto.QuestDraftResponse, error) {
	draft, err := s.loadDraft(ctx, identity, draftID)
	if err != nil {
		return dto.QuestDraftResponse{}, err
	}
	card, err := draft.Editor.Card(dayIndex, period, cardIndex)
	if err != nil {
		return dto.QuestDraftResponse{}, editorError(err)
	}
	if draft.Editor.Quest.ID == "" {
		return dto.NewQuestDraftResponse(draft.ID, &draft.Editor, draft.UpdatedAt), nil
	}

	uploaded, err := s.media.UploadMedia(ctx, identity, draft.Editor.Quest.ID, files)
	if err != nil {
		return dto.QuestDraftResponse{}, err
	}

	// The draft may have changed while uploading; merge into the card as it is now.
	return s.mutateDraft(ctx, identity, draftID, func(editor *itinerary.Editor) error {
		index := editor.IndexOf(dayIndex, period, card, cardIndex)
		if index < 0 {
			return fmt.Errorf("%w: card changed during upload", models.ErrInvalidInput)
		}
		current, err := editor.Card(dayIndex, period, index)
		if err != nil {
			return err
		}
		return editor.SetCardMedia(dayIndex, period, index, unionMedia(current.Media, uploaded))
	})
}

// RemoveCardMedia removes the item remotely first; the card keeps showing it
// when that fails.
func (s *questService) RemoveCardMedia(ctx context.Context, identity models.Identity, draftID string, dayIndex int, period itinerary.PeriodID, cardIndex int, req dto.RemoveMediaRequest) (dto.QuestDraftResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.QuestDraftResponse{}, err
	}

	draft, err := s.loadDraft(ctx, identity, draftID)
	if err != nil {
		return dto.QuestDraftResponse{}, err
	}
	card, err := draft.Editor.Card(dayIndex, period, cardIndex)
	if err != nil {
		return dto.QuestDraftResponse{}, editorError(err)
	}

	var item *itinerary.Media
	for i := range card.Media {
		if card.Media[i].Path == req.Path {
			item = &card.Media[i]
			break
		}
	}
	if item == nil {
		return dto.QuestDraftResponse{}, models.ErrNotFound
	}

	if _, err := s.media.RemoveMedia(ctx, identity, draft.Editor.Quest.ID, *item, req.DeleteObject); err != nil {
		return dto.QuestDraftResponse{}, err
	}

	kept := make([]itinerary.Media, 0, len(card.Media))
	for _, media := range card.Media {
		if media.Path != req.Path {
			kept = append(kept, media)
		}
	}
	return s.mutateDraft(ctx, identity, draftID, func(editor *itinerary.Editor) error {
		return editor.SetCardMedia(dayIndex, period, cardIndex, kept)
	})
}

func (s *questService) GetTrip(ctx context.Context, identity models.Identity, tripID string) (dto.TripResponse, error) {
	trip, err := s.visibleTrip(ctx, identity, tripID)
	if err != nil {
		return dto.TripResponse{}, err
	}
	if trip.CreatedBy != identity.UID {
		s.IncrementViewCount(ctx, trip.ID)
	}
	return dto.NewTripResponse(trip, identity.UID), nil
}

func (s *questService) UpdateTitle(ctx context.Context, identity models.Identity, tripID string, req dto.TitleRequest) (dto.TripResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.TripResponse{}, err
	}
	return s.updateTrip(ctx, identity, tripID, map[string]interface{}{"title": strings.TrimSpace(req.Title)})
}

func (s *questService) UpdateDescription(ctx context.Context, identity models.Identity, tripID string, req dto.DescriptionRequest) (dto.TripResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.TripResponse{}, err
	}
	return s.updateTrip(ctx, identity, tripID, map[string]interface{}{"description": strings.TrimSpace(req.Description)})
}

func (s *questService) ToggleLike(ctx context.Context, identity models.Identity, tripID string) (dto.EngagementResponse, error) {
	if _, err := s.visibleTrip(ctx, identity, tripID); err != nil {
		return dto.EngagementResponse{}, err
	}
	trip, liked, err := s.trips.ToggleLike(ctx, tripID, identity.UID)
	if err != nil {
		return dto.EngagementResponse{}, models.Remote("toggle like", err)
	}
	return dto.EngagementResponse{TripID: trip.ID, Active: liked, Count: trip.LikesCount}, nil
}

func (s *questService) ToggleSave(ctx context.Context, identity models.Identity, tripID string) (dto.EngagementResponse, error) {
	return s.toggleUserList(ctx, identity, tripID, repository.TripCounterSaves, s.users.ToggleSavedTrip, func(trip models.Trip) int {
		return trip.SavesCount
	})
}

func (s *questService) ToggleFollow(ctx context.Context, identity models.Identity, tripID string) (dto.EngagementResponse, error) {
	return s.toggleUserList(ctx, identity, tripID, repository.TripCounterFollowers, s.users.ToggleFollowedTrip, func(trip models.Trip) int {
		return trip.FollowersCount
	})
}

func (s *questService) Duplicate(ctx context.Context, identity models.Identity, tripID string) (dto.TripResponse, error) {
	if _, err := s.visibleTrip(ctx, identity, tripID); err != nil {
		return dto.TripResponse{}, err
	}
	copied, err := s.trips.Duplicate(ctx, tripID, identity.UID)
	if err != nil {
		return dto.TripResponse{}, models.Remote("duplicate trip", err)
	}
	s.logger.Info().Str("trip_id", tripID).Str("copy_id", copied.ID).Str("user_id", identity.UID).Msg("trip duplicated")
	return dto.NewTripResponse(copied, identity.UID), nil
}

// IncrementViewCount bumps the view counter. Failures are only logged.
func (s *questService) IncrementViewCount(ctx context.Context, tripID string) {
	if err := s.trips.IncrementCounter(ctx, tripID, repository.TripCounterViews, 1); err != nil {
		s.logger.Warn().Err(err).Str("trip_id", tripID).Msg("failed to increment view count")
	}
}

func (s *questService) toggleUserList(
	ctx context.Context,
	identity models.Identity,
	tripID string,
	counter repository.TripCounter,
	toggle func(ctx context.Context, uid, tripID string) (bool, error),
	count func(models.Trip) int,
) (dto.EngagementResponse, error) {
	trip, err := s.visibleTrip(ctx, identity, tripID)
	if err != nil {
		return dto.EngagementResponse{}, err
	}
	if err := ensureProfile(ctx, s.users, identity); err != nil {
		return dto.EngagementResponse{}, err
	}

	active, err := toggle(ctx, identity.UID, tripID)
	if err != nil {
		return dto.EngagementResponse{}, models.Remote("toggle "+string(counter), err)
	}
	delta := -1
	if active {
		delta = 1
	}
	if err := s.trips.IncrementCounter(ctx, tripID, counter, delta); err != nil {
		return dto.EngagementResponse{}, models.Remote("update "+string(counter), err)
	}

	total := count(trip) + delta
	if total < 0 {
		total = 0
	}
	return dto.EngagementResponse{TripID: tripID, Active: active, Count: total}, nil
}

func (s *questService) updateTrip(ctx context.Context, identity models.Identity, tripID string, fields map[string]interface{}) (dto.TripResponse, error) {
	if !identity.Authenticated() {
		return dto.TripResponse{}, models.ErrNotAuthenticated
	}
	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return dto.TripResponse{}, models.Remote("load trip", err)
	}
	if !trip.CanEdit(identity.UID) {
		return dto.TripResponse{}, models.ErrNotFound
	}
	if err := s.trips.UpdateFields(ctx, tripID, fields); err != nil {
		return dto.TripResponse{}, models.Remote("update trip", err)
	}
	updated, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return dto.TripResponse{}, models.Remote("load trip", err)
	}
	return dto.NewTripResponse(updated, identity.UID), nil
}

// visibleTrip loads a trip the caller may see. Private trips of other users
// are reported as missing.
func (s *questService) visibleTrip(ctx context.Context, identity models.Identity, tripID string) (models.Trip, error) {
	if !identity.Authenticated() {
		return models.Trip{}, models.ErrNotAuthenticated
	}
	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return models.Trip{}, models.Remote("load trip", err)
	}
	if trip.IsPrivate && !trip.CanEdit(identity.UID) {
		return models.Trip{}, models.ErrNotFound
	}
	return trip, nil
}

func (s *questService) loadDraft(ctx context.Context, identity models.Identity, draftID string) (repository.QuestDraft, error) {
	if !identity.Authenticated() {
		return repository.QuestDraft{}, models.ErrNotAuthenticated
	}
	draft, err := s.drafts.Load(ctx, identity.UID, draftID)
	if err != nil {
		return repository.QuestDraft{}, models.Remote("load draft", err)
	}
	return draft, nil
}

// mutateDraft applies one editor operation and stores the result. The stored
// draft is the local layer; it is never rolled back when a later save fails.
func (s *questService) mutateDraft(ctx context.Context, identity models.Identity, draftID string, apply func(editor *itinerary.Editor) error) (dto.QuestDraftResponse, error) {
	draft, err := s.loadDraft(ctx, identity, draftID)
	if err != nil {
		return dto.QuestDraftResponse{}, err
	}
	if err := apply(&draft.Editor); err != nil {
		return dto.QuestDraftResponse{}, editorError(err)
	}
	if err := s.drafts.Save(ctx, &draft); err != nil {
		return dto.QuestDraftResponse{}, models.Remote("save draft", err)
	}
	return dto.NewQuestDraftResponse(draft.ID, &draft.Editor, draft.UpdatedAt), nil
}

func editorError(err error) error {
	if errors.Is(err, itinerary.ErrDayOutOfRange) || errors.Is(err, itinerary.ErrCardOutOfRange) || errors.Is(err, itinerary.ErrUnknownPeriod) {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return err
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func unionMedia(existing, added []itinerary.Media) []itinerary.Media {
	out := append([]itinerary.Media{}, existing...)
	seen := make(map[string]struct{}, len(out))
	for _, item := range out {
		seen[item.Path] = struct{}{}
	}
	for _, item := range added {
		if _, ok := seen[item.Path]; ok {
			continue
		}
		seen[item.Path] = struct{}{}
		out = append(out, item)
	}
	return out
}
