// ABOUTME: Downloads linked contact photos so they can be stored on the router
// ABOUTME: Photos that cannot be fetched stay links and are skipped by image sync
package carddav

import (
	"context"
	"mime"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/harperreed/card2box/models"
	"go.uber.org/zap"
)

// PhotoFetcher embeds photos that a server only references by URL.
type PhotoFetcher struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewPhotoFetcher creates a fetcher. Credentials are sent with every request
// because servers such as iCloud protect photo links with the account login.
func NewPhotoFetcher(user, password string, logger *zap.Logger) *PhotoFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if user != "" {
		client.SetBasicAuth(user, password)
	}
	return &PhotoFetcher{http: client, logger: logger}
}

// Embed replaces linked photos with their downloaded data and returns how
// many were embedded.
func (f *PhotoFetcher) Embed(ctx context.Context, contacts []*models.Contact) int {
	embedded := 0
	for _, c := range contacts {
		if !c.Photo.IsLink() {
			continue
		}

		resp, err := f.http.R().SetContext(ctx).Get(c.Photo.URL)
		if err != nil || resp.IsError() || len(resp.Body()) == 0 {
			fields := []zap.Field{zap.String("uid", c.UID), zap.String("url", c.Photo.URL)}
			if err != nil {
				fields = append(fields, zap.Error(err))
			} else {
				fields = append(fields, zap.Int("status", resp.StatusCode()))
			}
			f.logger.Warn("failed to download linked photo", fields...)
			continue
		}

		c.Photo.Data = resp.Body()
		c.Photo.Format = formatFromContentType(resp.Header().Get("Content-Type"))
		embedded++
	}
	return embedded
}

func formatFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	_, subtype, _ := strings.Cut(mediaType, "/")
	return strings.ToUpper(subtype)
}
