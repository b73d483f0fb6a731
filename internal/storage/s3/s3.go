package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/dev-tams/newsdrop/internal/errutil"
	"github.com/dev-tams/newsdrop/internal/storage/remote"
)

const docExt = ".pdf"

// api is the subset of the S3 client the store calls.
type api interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Storage maps folders to key prefixes. A folder exists once it holds any
// object or the "<folder>/" marker written by Mkdir.
type Storage struct {
	bucket string
	prefix string
	client api
}

type Options struct {
	Bucket string
	Region string
	Prefix string
	// Endpoint targets an S3-compatible service; path-style addressing is used.
	Endpoint  string
	AccessKey string
	SecretKey string
}

func New(ctx context.Context, opt Options) (*Storage, error) {
	if opt.Bucket == "" || opt.Region == "" {
		return nil, fmt.Errorf("s3: bucket and region are required")
	}

	creds := credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, "")

	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(opt.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opt.Endpoint != "" {
			o.BaseEndpoint = aws.String(opt.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newWithClient(opt.Bucket, opt.Prefix, client), nil
}

func newWithClient(bucket, prefix string, client api) *Storage {
	return &Storage{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		client: client,
	}
}

func (s *Storage) Name() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.prefix)
}

func (s *Storage) folderKey(folder string) string {
	return path.Join(s.prefix, strings.Trim(folder, "/")) + "/"
}

func (s *Storage) List(ctx context.Context, folder string) ([]remote.Entry, error) {
	prefix := s.folderKey(folder)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var out []remote.Entry
	exists := false
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, apiError("s3 list", err)
		}
		for _, cp := range page.CommonPrefixes {
			exists = true
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			out = append(out, remote.Entry{Name: name})
		}
		for _, obj := range page.Contents {
			exists = true
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), docExt)
			out = append(out, remote.Entry{IsFile: true, Name: name})
		}
	}

	if !exists {
		return nil, fmt.Errorf("%w: s3://%s/%s", remote.ErrFolderNotFound, s.bucket, prefix)
	}
	return out, nil
}

func (s *Storage) Mkdir(ctx context.Context, folder string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.folderKey(folder)),
		Body:   bytes.NewReader(nil),
	})
	return apiError("s3 mkdir", err)
}

func (s *Storage) Put(ctx context.Context, localPath, folder string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer errutil.Close(f, "Failed to close upload source", "path", localPath)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.folderKey(folder) + remote.DocumentName(localPath) + docExt),
		Body:        f,
		ContentType: aws.String("application/pdf"),
	})
	return apiError("s3 putobject", err)
}

func (s *Storage) Remove(ctx context.Context, folder, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.folderKey(folder) + name + docExt),
	})
	return apiError("s3 deleteobject", err)
}

func apiError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s failed: %s: %s", op, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
