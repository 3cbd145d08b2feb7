// Package kb exposes the knowledge-base document store backing the agent's
// retrieval, so users can browse and download the source documents.
package kb

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"medagent/logger"
)

// Documents live under a fixed prefix in the bucket; everything else in
// the bucket is ingestion metadata.
const knowledgeBasePrefix = "knowledgeBase/"

const downloadURLExpiry = time.Hour

// File is one knowledge-base document.
type File struct {
	Key  string
	Size int64
}

// ListObjectsAPI is the listing slice of the S3 client.
type ListObjectsAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// PresignGetObjectAPI is the presigning slice of the S3 presign client.
type PresignGetObjectAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Browser lists knowledge-base documents and mints download links.
type Browser struct {
	client  ListObjectsAPI
	presign PresignGetObjectAPI
	bucket  string
	logger  logger.Logger
}

// NewBrowser creates a Browser over the given bucket.
func NewBrowser(client ListObjectsAPI, presign PresignGetObjectAPI, bucket string, log logger.Logger) *Browser {
	return &Browser{client: client, presign: presign, bucket: bucket, logger: log}
}

// ListFiles returns all knowledge-base documents sorted by key. Listing
// failures degrade to an empty result: the browser is a convenience view
// and must not take the chat down with it.
func (b *Browser) ListFiles(ctx context.Context) []File {
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(knowledgeBasePrefix),
	})
	if err != nil {
		b.logger.Warn("failed to list knowledge base files",
			logger.String("bucket", b.bucket),
			logger.Error(err))
		return nil
	}

	files := make([]File, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		size := int64(0)
		if obj.Size != nil {
			size = *obj.Size
		}
		files = append(files, File{Key: *obj.Key, Size: size})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files
}

// DownloadURL returns a presigned link for one document, valid for an hour.
func (b *Browser) DownloadURL(ctx context.Context, key string) (string, error) {
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(downloadURLExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
