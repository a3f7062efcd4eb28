package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/onquest-api/internal/itinerary"
	"github.com/noah-isme/onquest-api/internal/models"
	"github.com/noah-isme/onquest-api/internal/observability"
	"github.com/noah-isme/onquest-api/internal/repository"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = fmt.Errorf("%w: file exceeds maximum allowed size", models.ErrInvalidInput)
	// ErrNoFiles indicates an upload request without any file.
	ErrNoFiles = fmt.Errorf("%w: at least one file is required", models.ErrInvalidInput)
)

// ObjectStorage abstracts the object store holding uploaded media.
type ObjectStorage interface {
	Upload(ctx context.Context, path string, reader io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// MediaService keeps stored objects consistent with the trips referencing them.
type MediaService interface {
	UploadMedia(ctx context.Context, identity models.Identity, tripID string, files []*multipart.FileHeader) ([]itinerary.Media, error)
	RemoveMedia(ctx context.Context, identity models.Identity, tripID string, item itinerary.Media, deleteObject bool) ([]itinerary.Media, error)
	UploadAttachment(ctx context.Context, chatID string, file *multipart.FileHeader) (models.Attachment, error)
	DiscardAttachment(attachment models.Attachment)
}

type mediaService struct {
	storage ObjectStorage
	trips   repository.TripRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

type storedObject struct {
	path string
	url  string
	mime string
	name string
	size int64
}

// NewMediaService constructs a media service.
func NewMediaService(storage ObjectStorage, trips repository.TripRepository, maxSizeMB int, logger zerolog.Logger) MediaService {
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	return &mediaService{
		storage: storage,
		trips:   trips,
		logger:  logger.With().Str("component", "media_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/onquest-api/internal/service/media"),
	}
}

// UploadMedia uploads every file in parallel and, only when all of them
// succeeded, appends the batch to the trip's media. A failed batch leaves the
// trip untouched and removes whatever objects it already stored.
func (s *mediaService) UploadMedia(ctx context.Context, identity models.Identity, tripID string, files []*multipart.FileHeader) ([]itinerary.Media, error) {
	if !identity.Authenticated() {
		return nil, models.ErrNotAuthenticated
	}
	tripID = strings.TrimSpace(tripID)
	if tripID == "" {
		return []itinerary.Media{}, nil
	}

	ctx, span := s.tracer.Start(ctx, "media.upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("media.trip_id", tripID),
		attribute.Int("media.files", len(files)),
	)

	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, models.Remote("load trip", err)
	}
	if !trip.CanEdit(identity.UID) {
		return nil, models.ErrNotFound
	}

	objects, err := s.storeAll(ctx, "trips/"+tripID, files)
	if err != nil {
		observability.MediaUploads().WithLabelValues("failed").Add(float64(len(files)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return nil, err
	}

	media := make([]itinerary.Media, 0, len(objects))
	for _, object := range objects {
		media = append(media, itinerary.Media{
			URL:  object.url,
			Type: classifyMedia(object.mime),
			Name: object.name,
			Size: object.size,
			Path: object.path,
		})
	}

	if _, err := s.trips.AddMedia(ctx, tripID, media); err != nil {
		s.discard(objects)
		observability.MediaUploads().WithLabelValues("failed").Add(float64(len(files)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return nil, models.Remote("attach media", err)
	}

	observability.MediaUploads().WithLabelValues("stored").Add(float64(len(media)))
	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().Str("trip_id", tripID).Int("files", len(media)).Msg("media uploaded")
	return media, nil
}

// RemoveMedia detaches item from the trip first and only then deletes the
// stored object when asked to. It returns the trip's remaining media.
func (s *mediaService) RemoveMedia(ctx context.Context, identity models.Identity, tripID string, item itinerary.Media, deleteObject bool) ([]itinerary.Media, error) {
	if !identity.Authenticated() {
		return nil, models.ErrNotAuthenticated
	}
	if strings.TrimSpace(item.Path) == "" {
		return nil, fmt.Errorf("%w: media path is required", models.ErrInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "media.remove")
	defer span.End()
	span.SetAttributes(
		attribute.String("media.trip_id", tripID),
		attribute.String("media.path", item.Path),
		attribute.Bool("media.delete_object", deleteObject),
	)

	remaining := []itinerary.Media{}
	if strings.TrimSpace(tripID) != "" {
		trip, err := s.trips.Get(ctx, tripID)
		if err != nil {
			return nil, models.Remote("load trip", err)
		}
		if !trip.CanEdit(identity.UID) {
			return nil, models.ErrNotFound
		}

		updated, err := s.trips.RemoveMedia(ctx, tripID, item.Path)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "detach failed")
			return nil, models.Remote("detach media", err)
		}
		remaining = append(remaining, updated.Media...)
	}

	if deleteObject {
		if err := s.storage.Delete(ctx, item.Path); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete failed")
			return nil, models.Remote("delete object", err)
		}
	}

	span.SetStatus(codes.Ok, "removed")
	return remaining, nil
}

// UploadAttachment stores a single chat file under the conversation's prefix.
func (s *mediaService) UploadAttachment(ctx context.Context, chatID string, file *multipart.FileHeader) (models.Attachment, error) {
	if file == nil {
		return models.Attachment{}, ErrNoFiles
	}

	ctx, span := s.tracer.Start(ctx, "media.attachment")
	defer span.End()
	span.SetAttributes(attribute.String("media.chat_id", chatID))

	objects, err := s.storeAll(ctx, "chats/"+chatID, []*multipart.FileHeader{file})
	if err != nil {
		observability.MediaUploads().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return models.Attachment{}, err
	}

	object := objects[0]
	observability.MediaUploads().WithLabelValues("stored").Inc()
	span.SetStatus(codes.Ok, "stored")
	return models.Attachment{
		Name: object.name,
		URL:  object.url,
		Type: object.mime,
		Size: object.size,
		Path: object.path,
	}, nil
}

// DiscardAttachment deletes a stored chat file whose message was never written.
func (s *mediaService) DiscardAttachment(attachment models.Attachment) {
	s.discard([]storedObject{{path: attachment.Path}})
}

func (s *mediaService) storeAll(ctx context.Context, prefix string, files []*multipart.FileHeader) ([]storedObject, error) {
	objects := make([]storedObject, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		group.Go(func() error {
			object, err := s.store(groupCtx, prefix, file)
			if err != nil {
				return err
			}
			objects[i] = object
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		s.discard(objects)
		if models.IsDomainError(err) {
			return nil, err
		}
		return nil, models.Remote("upload media", err)
	}
	return objects, nil
}

func (s *mediaService) store(ctx context.Context, prefix string, file *multipart.FileHeader) (storedObject, error) {
	if file == nil {
		return storedObject{}, ErrNoFiles
	}
	if file.Size > s.maxSize {
		return storedObject{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return storedObject{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return storedObject{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return storedObject{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	path := objectPath(prefix, file.Filename, detected.Extension())

	url, err := s.storage.Upload(ctx, path, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return storedObject{}, err
	}

	return storedObject{
		path: path,
		url:  url,
		mime: detected.String(),
		name: strings.TrimSpace(filepath.Base(file.Filename)),
		size: int64(buf.Len()),
	}, nil
}

// discard deletes objects of an aborted batch. Failures are only logged.
func (s *mediaService) discard(objects []storedObject) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, object := range objects {
		if object.path == "" {
			continue
		}
		if err := s.storage.Delete(ctx, object.path); err != nil {
			s.logger.Warn().Err(err).Str("path", object.path).Msg("failed to discard uploaded object")
		}
	}
}

func objectPath(prefix, filename, detectedExt string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = detectedExt
	}
	if ext == "" {
		ext = ".bin"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s/%d-%s%s", prefix, time.Now().UnixNano(), suffix, ext)
}

func classifyMedia(mime string) itinerary.MediaType {
	if strings.HasPrefix(strings.ToLower(mime), "image/") {
		return itinerary.MediaPhoto
	}
	return itinerary.MediaVideo
}
