// Package export archives saved MARC records as ISO 2709 (.mrc) objects in
// S3-compatible storage.
package export

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/marc"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// ContentType of exported objects.
const ContentType = "application/marc"

// Exporter stores one record version and returns its object key.
type Exporter interface {
	Export(ctx context.Context, dto model.ParsedRecordDto) (string, error)
}

// objectPutter is the subset of *s3.Client used here.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter writes exports to a single bucket.
type S3Exporter struct {
	client objectPutter
	bucket string
	now    func() time.Time

	mu      sync.Mutex // guards entropy
	entropy io.Reader
}

// NewS3Exporter creates an exporter for AWS S3 or an S3-compatible service
// such as MinIO.
func NewS3Exporter(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string) (*S3Exporter, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
				}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing is required for MinIO and other S3-compatible services
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return newS3Exporter(client, bucket), nil
}

func newS3Exporter(client objectPutter, bucket string) *S3Exporter {
	return &S3Exporter{
		client:  client,
		bucket:  bucket,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Export serializes dto to ISO 2709 and uploads it.
func (e *S3Exporter) Export(ctx context.Context, dto model.ParsedRecordDto) (string, error) {
	body, err := Encode(dto)
	if err != nil {
		return "", err
	}
	key := ObjectKey(dto, e.newID())
	sum := sha256.Sum256(body)

	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(ContentType),
		Metadata: map[string]string{
			"record-id":      dto.ID,
			"record-type":    string(dto.RecordType),
			"record-version": dto.RelatedRecordVersion,
			"sha256":         hex.EncodeToString(sum[:]),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export %s: %w", key, err)
	}
	return key, nil
}

func (e *S3Exporter) newID() ulid.ULID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(e.now()), e.entropy)
}

// Encode renders the MARC-in-JSON content of dto in transmission format.
func Encode(dto model.ParsedRecordDto) ([]byte, error) {
	record, err := marc.ParseJSON(dto.ParsedRecord.Content)
	if err != nil {
		return nil, err
	}
	return record.MarshalISO2709()
}

// ObjectKey is <record type>/<record id>/<ulid>.mrc; keys of one record sort
// by export time.
func ObjectKey(dto model.ParsedRecordDto, id ulid.ULID) string {
	return fmt.Sprintf("%s/%s/%s.mrc", strings.ToLower(string(dto.RecordType)), dto.ID, id)
}
