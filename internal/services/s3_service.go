// ./fieldcam-backend/internal/services/s3_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"fieldcam/backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3 presigned URLs cannot outlive seven days.
const s3LinkTTL = 7 * 24 * time.Hour

type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

type S3Options struct {
	Region       string
	RootUser     string
	RootPassword string
	BaseEndpoint string
	Bucket       string
}

// S3Store maps folders onto key prefixes. A folder id is its full prefix
// without the trailing slash; an empty id is the bucket root.
type S3Store struct {
	client  s3API
	presign s3Presigner
	bucket  string
	log     *zap.Logger
}

func NewS3Store(ctx context.Context, opts S3Options, logger *zap.Logger) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.RootUser,
			opts.RootPassword,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("could not load S3 config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, s3.NewPresignClient(client), opts.Bucket, logger), nil
}

func newS3Store(client s3API, presign s3Presigner, bucket string, logger *zap.Logger) *S3Store {
	return &S3Store{client: client, presign: presign, bucket: bucket, log: logger.Named("s3")}
}

func (s *S3Store) RootID() string { return "" }

func (s *S3Store) ListChildren(ctx context.Context, parentID string) ([]Entry, error) {
	prefix := folderPrefix(parentID)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var entries []Entry
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not list %q: %w", prefix, classifyTransport(err))
		}
		for _, cp := range page.CommonPrefixes {
			id := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			entries = append(entries, Entry{ID: id, Name: path.Base(id), Kind: KindFolder})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			entries = append(entries, Entry{ID: key, Name: path.Base(key), Kind: KindFile})
		}
	}
	return entries, nil
}

// CreateFolder writes an empty marker object so the prefix lists even when
// it has no files yet.
func (s *S3Store) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	id := joinKey(parentID, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id + "/"),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return "", fmt.Errorf("could not create folder %q: %w", name, classifyTransport(err))
	}
	s.log.Info("created folder", zap.String("name", name), zap.String("id", id))
	return id, nil
}

func (s *S3Store) Upload(ctx context.Context, up FileUpload) (*models.RemoteFileRef, error) {
	key := joinKey(up.ParentID, up.Name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(up.Content),
		ContentType: aws.String(up.MimeType),
	})
	if err != nil {
		return nil, fmt.Errorf("could not put object: %w", classifyTransport(err))
	}

	ref := &models.RemoteFileRef{ID: key, Name: up.Name, FolderID: up.ParentID}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s3LinkTTL))
	if err != nil {
		s.log.Warn("could not presign link", zap.String("key", key), zap.Error(err))
	} else {
		ref.Link = req.URL
	}
	s.log.Info("file uploaded", zap.String("key", key), zap.Int("bytes", len(up.Content)))
	return ref, nil
}

func folderPrefix(id string) string {
	if id == "" {
		return ""
	}
	return strings.TrimSuffix(id, "/") + "/"
}

func joinKey(parentID, name string) string {
	return folderPrefix(parentID) + name
}
