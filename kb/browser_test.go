package kb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"medagent/logger"
)

type fakeLister struct {
	out *s3.ListObjectsV2Output
	err error

	gotPrefix string
}

func (f *fakeLister) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if params.Prefix != nil {
		f.gotPrefix = *params.Prefix
	}
	return f.out, f.err
}

type fakePresigner struct {
	url string
	err error
}

func (f *fakePresigner) PresignGetObject(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: f.url}, nil
}

func TestListFilesSorted(t *testing.T) {
	lister := &fakeLister{out: &s3.ListObjectsV2Output{
		Contents: []s3types.Object{
			{Key: aws.String("knowledgeBase/b.pdf"), Size: aws.Int64(20)},
			{Key: aws.String("knowledgeBase/a.pdf"), Size: aws.Int64(10)},
		},
	}}
	b := NewBrowser(lister, nil, "bucket", logger.NewNoop())

	files := b.ListFiles(context.Background())
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Key != "knowledgeBase/a.pdf" || files[1].Key != "knowledgeBase/b.pdf" {
		t.Errorf("files not sorted: %v", files)
	}
	if files[0].Size != 10 {
		t.Errorf("size = %d", files[0].Size)
	}
	if lister.gotPrefix != "knowledgeBase/" {
		t.Errorf("prefix = %q", lister.gotPrefix)
	}
}

func TestListFilesDegradesOnError(t *testing.T) {
	lister := &fakeLister{err: errors.New("access denied")}
	b := NewBrowser(lister, nil, "bucket", logger.NewNoop())

	if files := b.ListFiles(context.Background()); len(files) != 0 {
		t.Errorf("expected empty result, got %v", files)
	}
}

func TestDownloadURL(t *testing.T) {
	b := NewBrowser(nil, &fakePresigner{url: "https://example.com/signed"}, "bucket", logger.NewNoop())

	url, err := b.DownloadURL(context.Background(), "knowledgeBase/a.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://example.com/signed" {
		t.Errorf("url = %q", url)
	}
}

func TestDownloadURLError(t *testing.T) {
	b := NewBrowser(nil, &fakePresigner{err: errors.New("boom")}, "bucket", logger.NewNoop())

	if _, err := b.DownloadURL(context.Background(), "k"); err == nil {
		t.Fatal("expected error")
	}
}
