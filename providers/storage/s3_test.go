package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/hengadev/phiguard/internal/reliability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	mock.Mock
	uploadedData []byte
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if params.Body != nil {
		data, err := io.ReadAll(params.Body)
		if err != nil {
			return nil, err
		}
		m.uploadedData = data
	}
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

type mockPresigner struct {
	mock.Mock
}

func (m *mockPresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	args := m.Called(ctx, params, opts.Expires)
	req, _ := args.Get(0).(*PresignedRequest)
	return req, args.Error(1)
}

var fastRetry = reliability.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func TestS3_Upload(t *testing.T) {
	client := new(mockS3Client)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "phi-docs" &&
			aws.ToString(in.Key) == "patient-1/evidence/f.png" &&
			aws.ToString(in.ContentType) == "image/png" &&
			in.ServerSideEncryption == types.ServerSideEncryptionAes256
	})).Return(&s3.PutObjectOutput{ETag: aws.String(`"etag-1"`)}, nil).Once()

	p := newS3(client, new(mockPresigner), "phi-docs", "us-east-1", fastRetry)
	res, err := p.Upload(context.Background(), UploadInput{
		Data:     []byte("png-bytes"),
		OwnerID:  "patient-1",
		Category: "evidence",
		FileName: "f.png",
		MimeType: "image/png",
	})
	require.NoError(t, err)

	assert.Equal(t, "patient-1/evidence/f.png", res.Key)
	assert.Equal(t, "phi-docs", res.Bucket)
	assert.Equal(t, `"etag-1"`, res.ETag)
	assert.Equal(t, "https://phi-docs.s3.us-east-1.amazonaws.com/patient-1/evidence/f.png", res.Location)
	assert.Equal(t, TypeS3, res.StorageType)
	assert.Equal(t, "png-bytes", string(client.uploadedData))
	client.AssertExpectations(t)
}

func TestS3_UploadRetriesThenFails(t *testing.T) {
	client := new(mockS3Client)
	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("slow down")).Twice()

	p := newS3(client, new(mockPresigner), "phi-docs", "", fastRetry)
	_, err := p.Upload(context.Background(), UploadInput{Data: []byte("x"), OwnerID: "p", Category: "evidence", FileName: "f"})

	assert.ErrorIs(t, err, phierr.ErrStorageUnavailable)
	assert.Equal(t, "x", string(client.uploadedData), "each attempt sends the full body")
	client.AssertExpectations(t)
}

func TestS3_GenerateDownloadURL(t *testing.T) {
	presigner := new(mockPresigner)
	presigner.On("PresignGetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "k" && aws.ToString(in.ResponseContentDisposition) == `attachment; filename="report.pdf"`
	}), 10*time.Minute).Return(&PresignedRequest{URL: "https://signed.example/k"}, nil).Once()

	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	p := newS3(new(mockS3Client), presigner, "phi-docs", "us-east-1", fastRetry)
	p.now = func() time.Time { return now }

	link, err := p.GenerateDownloadURL(context.Background(), "k", 10*time.Minute, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/k", link.URL)
	assert.Equal(t, now.Add(10*time.Minute), link.ExpiresAt)
	presigner.AssertExpectations(t)

	_, err = p.GenerateDownloadURL(context.Background(), "", time.Minute, "")
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)
}

func TestS3_Delete(t *testing.T) {
	client := new(mockS3Client)
	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "k"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	p := newS3(client, new(mockPresigner), "phi-docs", "us-east-1", fastRetry)
	require.NoError(t, p.Delete(context.Background(), "k"))
	client.AssertExpectations(t)
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)
}
