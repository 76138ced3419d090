package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-client/internal/metrics"
	"github.com/fathima-sithara/dm-client/internal/models"
	"github.com/fathima-sithara/dm-client/internal/repository"
	"github.com/fathima-sithara/dm-client/internal/storage"
	"github.com/fathima-sithara/dm-client/internal/utils"
)

const (
	maxImageBytes = 10 << 20
	thumbWidth    = 320
)

// MediaService uploads chat images and avatars to object storage.
type MediaService struct {
	repo    *repository.MediaRepo
	store   storage.Uploader
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewMediaService builds the uploader. repo may be nil, in which case no
// media records are kept.
func NewMediaService(repo *repository.MediaRepo, store storage.Uploader, m *metrics.Metrics, log *zap.SugaredLogger) *MediaService {
	if m == nil {
		m = metrics.New()
	}
	return &MediaService{repo: repo, store: store, metrics: m, log: utils.OrNop(log), now: time.Now}
}

// UploadImage stores a chat image under images/<timestamp>-<filename> with a
// single object-storage call and returns its URL. Upload errors are
// classified as transient or permanent; nothing is retried.
func (s *MediaService) UploadImage(ctx context.Context, ownerID, filename string, data []byte) (string, error) {
	return s.upload(ctx, ownerID, filename, data, false)
}

// UploadAvatar stores a profile picture like UploadImage and, when the image
// decodes, a 320px JPEG thumbnail next to it.
func (s *MediaService) UploadAvatar(ctx context.Context, ownerID, filename string, data []byte) (string, error) {
	return s.upload(ctx, ownerID, filename, data, true)
}

func (s *MediaService) upload(ctx context.Context, ownerID, filename string, data []byte, withThumb bool) (string, error) {
	if len(data) == 0 || len(data) > maxImageBytes {
		return "", fmt.Errorf("%w: image size not allowed", ErrValidation)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: %s is not an image", ErrValidation, contentType)
	}

	now := s.now().UTC()
	key := storage.ImageKey(now, filename)
	url, err := s.store.Upload(ctx, key, contentType, data)
	if err != nil {
		s.metrics.Uploads.WithLabelValues("failed").Inc()
		s.log.Errorw("upload image", "key", key, "error", err)
		return "", storage.Classify(err)
	}
	s.metrics.Uploads.WithLabelValues("ok").Inc()

	thumbKey := ""
	if withThumb {
		thumbKey = s.uploadThumbnail(ctx, key, data)
	}

	if s.repo != nil {
		media := &models.Media{
			ID:          utils.NewID(),
			UserID:      ownerID,
			Key:         key,
			URL:         url,
			Thumbnail:   thumbKey,
			Type:        "image",
			Size:        int64(len(data)),
			ContentType: contentType,
			CreatedAt:   now,
		}
		if err := s.repo.Insert(ctx, media); err != nil {
			s.log.Warnw("record media", "key", key, "error", err)
		}
	}
	return url, nil
}

// uploadThumbnail is best effort and returns the stored key, or "" when no
// thumbnail was stored.
func (s *MediaService) uploadThumbnail(ctx context.Context, key string, data []byte) string {
	thumb, err := generateThumbnail(data)
	if err != nil {
		s.log.Debugw("skip thumbnail", "key", key, "error", err)
		return ""
	}
	thumbKey := key + "_thumb.jpg"
	if _, err := s.store.Upload(ctx, thumbKey, "image/jpeg", thumb); err != nil {
		s.log.Warnw("upload thumbnail", "key", key, "error", err)
		return ""
	}
	return thumbKey
}

func generateThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
