package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"

	"studyai-backend/internal/logger"
	"studyai-backend/internal/models"
)

var youtubeURLPattern = regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([\w-]{11})`)

// EmbedURL maps a watch, short or embed link to its embeddable form.
func EmbedURL(raw string) (videoID, embed string, ok bool) {
	m := youtubeURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if len(m) < 2 {
		return "", "", false
	}
	return m[1], "https://www.youtube.com/embed/" + m[1], true
}

type videoMetadataFetcher interface {
	GetVideoContext(ctx context.Context, url string) (*yt.Video, error)
}

// YouTubeService resolves pasted links into embeds. The video itself is
// never downloaded or sent to the model.
type YouTubeService struct {
	client  videoMetadataFetcher
	timeout time.Duration
	log     *logger.Logger
}

func NewYouTubeService(log *logger.Logger) *YouTubeService {
	return &YouTubeService{
		client:  &yt.Client{},
		timeout: 10 * time.Second,
		log:     log,
	}
}

// Resolve validates the link and decorates the embed with whatever metadata
// YouTube returns. Metadata failures are not errors.
func (s *YouTubeService) Resolve(ctx context.Context, raw string) (*models.VideoEmbed, error) {
	id, embed, ok := EmbedURL(raw)
	if !ok {
		return nil, fieldError("url", "not a recognised YouTube link")
	}

	v := &models.VideoEmbed{
		URL:      strings.TrimSpace(raw),
		VideoID:  id,
		EmbedURL: embed,
	}
	if s.client == nil {
		return v, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	meta, err := s.client.GetVideoContext(ctx, fmt.Sprintf("https://www.youtube.com/watch?v=%s", id))
	if err != nil {
		s.log.Debug("youtube metadata unavailable", "video_id", id, "error", err)
		return v, nil
	}
	v.Title = meta.Title
	v.Author = meta.Author
	v.DurationSeconds = int(meta.Duration.Seconds())
	return v, nil
}
