package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/creatorpulse/metrics-api/configs"
	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/h2non/filetype"
)

const maxThumbnailBytes = 10 << 20

// ArchiveService writes to Cloudflare R2: daily snapshot archives after
// batch runs, and mirrored content thumbnails (the platforms' CDN URLs
// expire, ours don't).
type ArchiveService struct {
	config cfg.Config
	client *http.Client
}

func NewArchiveService(cfg cfg.Config) *ArchiveService {
	return &ArchiveService{
		config: cfg,
		client: &http.Client{Timeout: requestTimeout},
	}
}

func (r *ArchiveService) r2Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.R2.AccessKey, r.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.config.R2.AccountID))
	}), nil
}

func (r *ArchiveService) uploadToR2(ctx context.Context, key string, file []byte, contentType string) error {
	client, err := r.r2Client(ctx)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	}

	_, err = client.PutObject(ctx, input)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

// UploadSnapshotArchive stores the day's snapshots as one JSON object per
// platform. Re-running a sync overwrites the same key.
func (r *ArchiveService) UploadSnapshotArchive(ctx context.Context, platform string, date time.Time, snapshots []*models.MetricSnapshot) error {
	body, err := json.Marshal(snapshots)
	if err != nil {
		return fmt.Errorf("error marshalling snapshot archive: %w", err)
	}

	key := fmt.Sprintf("archives/%s/%s.json", platform, date.Format("2006-01-02"))
	return r.uploadToR2(ctx, key, body, "application/json")
}

// MirrorThumbnail downloads a thumbnail, sniffs its actual type and stores
// it under a stable key. Returns the mirrored URL.
func (r *ArchiveService) MirrorThumbnail(ctx context.Context, platform, externalID, srcURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", srcURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected response status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
	if err != nil {
		return "", fmt.Errorf("error reading thumbnail: %w", err)
	}

	if !filetype.IsImage(data) {
		return "", fmt.Errorf("thumbnail for %s is not an image", externalID)
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("thumbnails/%s/%s.%s", platform, externalID, kind.Extension)
	if err := r.uploadToR2(ctx, key, data, kind.MIME.Value); err != nil {
		return "", err
	}

	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s/%s", r.config.R2.AccountID, r.config.R2.BucketName, key), nil
}
