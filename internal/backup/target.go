package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/studio-b12/gowebdav"

	"hlstype/internal/config"
)

// Target names.
const (
	TargetS3     = "s3"
	TargetWebDAV = "webdav"
)

// ErrNotConfigured is returned when a target lacks required settings.
var ErrNotConfigured = errors.New("backup target not configured")

// Entry describes one stored backup.
type Entry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Target stores and lists backup archives.
type Target interface {
	Name() string
	Upload(ctx context.Context, name string, data []byte) error
	List(ctx context.Context) ([]Entry, error)
}

// S3Target keeps backups in an S3 compatible bucket.
type S3Target struct {
	client *s3.Client
	bucket string
}

// NewS3Target connects to the configured bucket using static credentials.
func NewS3Target(ctx context.Context, cfg config.S3Config) (*S3Target, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("S3 configuration incomplete: %w", ErrNotConfigured)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})
	return &S3Target{client: client, bucket: cfg.Bucket}, nil
}

func (t *S3Target) Name() string { return TargetS3 }

func (t *S3Target) Upload(ctx context.Context, name string, data []byte) error {
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(name),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}

func (t *S3Target) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(t.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
		Prefix: aws.String(filePrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			entries = append(entries, Entry{
				Name:     aws.ToString(obj.Key),
				Size:     aws.ToInt64(obj.Size),
				Modified: aws.ToTime(obj.LastModified),
			})
		}
	}
	sortEntries(entries)
	return entries, nil
}

// WebDAVTarget keeps backups in the root collection of a WebDAV server.
type WebDAVTarget struct {
	client *gowebdav.Client
}

func NewWebDAVTarget(cfg config.WebDAVConfig) (*WebDAVTarget, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("WebDAV URL not configured: %w", ErrNotConfigured)
	}
	client := gowebdav.NewClient(cfg.URL, cfg.User, cfg.Password)
	client.SetTimeout(5 * time.Minute)
	return &WebDAVTarget{client: client}, nil
}

func (t *WebDAVTarget) Name() string { return TargetWebDAV }

func (t *WebDAVTarget) Upload(_ context.Context, name string, data []byte) error {
	if err := t.client.Write(name, data, 0644); err != nil {
		return fmt.Errorf("webdav upload failed: %w", err)
	}
	return nil
}

func (t *WebDAVTarget) List(_ context.Context) ([]Entry, error) {
	files, err := t.client.ReadDir("/")
	if err != nil {
		return nil, fmt.Errorf("webdav list failed: %w", err)
	}
	var entries []Entry
	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), filePrefix) {
			continue
		}
		entries = append(entries, Entry{Name: f.Name(), Size: f.Size(), Modified: f.ModTime()})
	}
	sortEntries(entries)
	return entries, nil
}

// NewTarget builds the named target from configuration.
func NewTarget(ctx context.Context, name string, cfg config.BackupConfig) (Target, error) {
	switch name {
	case TargetS3:
		return NewS3Target(ctx, cfg.S3)
	case TargetWebDAV:
		return NewWebDAVTarget(cfg.WebDAV)
	default:
		return nil, fmt.Errorf("unknown backup target %q", name)
	}
}

// newest first
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Modified.After(entries[j].Modified)
	})
}
