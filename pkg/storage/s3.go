package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const (
	// FolderVideos is the S3 prefix for uploaded video objects.
	FolderVideos = "videos"
	// FolderMetadata is the S3 prefix for per-video JSON metadata documents.
	FolderMetadata = "metadata"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Name returns the object's filename (key without prefix).
func (o ObjectInfo) Name() string { return path.Base(o.Key) }

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	Endpoint             string
	PublicBucket         bool
	PresignExpireMinutes int
}

// S3 provides bucket operations for videos and their metadata documents.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	signer   *windowedSigner
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or .env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket not configured")
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using credentials from .env/config", zap.String("region", cfg.Region), zap.String("bucket", cfg.Bucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024 // 5MB parts for streaming
		u.Concurrency = 1            // parts are read in order so progress is monotonic
	})
	s := &S3{
		client:   client,
		uploader: uploader,
		presign:  s3.NewPresignClient(client),
		cfg:      cfg,
		logger:   logger,
	}
	s.signer = &windowedSigner{signer: v4.NewSigner(), window: s.PresignWindow()}
	return s, nil
}

// VideoKey returns the object key for an uploaded video: videos/{id}_{filename}.
func VideoKey(id, filename string) string {
	return path.Join(FolderVideos, id+"_"+sanitizeFilename(filename))
}

// MetadataKey returns the object key for a video's metadata document: metadata/{id}.json.
func MetadataKey(id string) string {
	return path.Join(FolderMetadata, id+".json")
}

// VideoKeyFromURL recovers the video object key from a download URL, signed or not, in either
// virtual-hosted or path style. ok is false when the URL does not point under videos/.
func VideoKeyFromURL(rawURL string) (key string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "", false
	}
	i := strings.LastIndex(u.Path, "/"+FolderVideos+"/")
	if i < 0 {
		return "", false
	}
	key = u.Path[i+1:]
	if key == FolderVideos+"/" {
		return "", false
	}
	return key, true
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "video"
	}
	return name
}

// PresignExpire returns the configured presign duration. S3 caps presigned URLs at 7 days.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	d := time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
	if d > 7*24*time.Hour {
		d = 7 * 24 * time.Hour
	}
	return d
}

// PresignWindow is the granularity of presigned URL signing times: half the expiry.
// Every presign of a key within one window yields the same URL, and that URL stays valid
// for at least half the expiry.
func (s *S3) PresignWindow() time.Duration {
	return s.PresignExpire() / 2
}

// windowedSigner truncates the v4 signing time to a fixed window.
type windowedSigner struct {
	signer *v4.Signer
	window time.Duration
}

func (w *windowedSigner) PresignHTTP(ctx context.Context, creds aws.Credentials, r *http.Request, payloadHash, service, region string, signingTime time.Time, optFns ...func(*v4.SignerOptions)) (string, http.Header, error) {
	return w.signer.PresignHTTP(ctx, creds, r, payloadHash, service, region, signingTime.UTC().Truncate(w.window), optFns...)
}

// PublicObjectURL returns the public URL for an object (no signing; use when bucket is public).
func (s *S3) PublicObjectURL(key string) string {
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// DownloadURL returns a URL the transcription service and browsers can fetch the object from.
// Presigned URLs carry their access token in the query string and are stable within one
// PresignWindow, so listing unchanged storage twice yields identical URLs.
func (s *S3) DownloadURL(ctx context.Context, key string) (string, error) {
	if s.cfg.PublicBucket {
		return s.PublicObjectURL(key), nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.PresignExpire()
		opts.Presigner = s.signer
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// Upload streams a reader to S3. onProgress, when non-nil, receives byte counts as the body is consumed.
func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64, onProgress ProgressFunc) error {
	if onProgress != nil {
		body = NewProgressReader(body, contentLength, onProgress)
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if contentLength > 0 {
		input.ContentLength = aws.Int64(contentLength)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	s.logger.Debug("object uploaded", zap.String("key", key), zap.Int64("size", contentLength))
	return nil
}

// PutObject writes a small object in one request.
func (s *S3) PutObject(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// GetObject reads a whole object. Returns ErrNotFound when the key does not exist.
func (s *S3) GetObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// ListObjects returns every object under prefix, following continuation tokens.
func (s *S3) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	var objects []ObjectInfo
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}
