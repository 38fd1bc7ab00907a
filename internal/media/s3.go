package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3Config points an S3Host at an S3-compatible bucket fronted by an image CDN.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicURL is the CDN origin that serves bucket keys and understands ?tr=.
	PublicURL string
}

// objectAPI is the subset of the S3 client S3Host uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Host struct {
	client    objectAPI
	bucket    string
	publicURL string
}

func NewS3Host(cfg S3Config) *S3Host {
	opts := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &S3Host{
		client:    s3.New(opts),
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
	}
}

func (h *S3Host) Name() string { return "s3" }

func (h *S3Host) Upload(ctx context.Context, in UploadInput) (*Asset, error) {
	contentType := http.DetectContentType(in.Content)
	key := path.Join(in.Folder, uuid.NewString()+extensionFor(contentType))

	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(in.Content),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(in.Content))),
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	return &Asset{
		Key:         key,
		URL:         displayURL(h.publicURL, key, Transform{}),
		Size:        int64(len(in.Content)),
		ContentType: contentType,
	}, nil
}

func (h *S3Host) URL(key string, t Transform) string {
	return displayURL(h.publicURL, key, t)
}

func (h *S3Host) Details(ctx context.Context, rawURL string) (*Asset, error) {
	key, err := keyFromURL(h.publicURL, rawURL)
	if err != nil {
		return nil, err
	}

	out, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("head object %s: %w", key, err)
	}

	return &Asset{
		Key:         key,
		URL:         displayURL(h.publicURL, key, Transform{}),
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

func (h *S3Host) Delete(ctx context.Context, key string) error {
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
