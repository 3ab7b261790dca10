// internal/services/audit_archive_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/nutriforum/pricing-backend/internal/config"
	"github.com/nutriforum/pricing-backend/internal/models"
)

var ErrArchiveDisabled = errors.New("audit archive bucket is not configured")

type objectUploader interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// AuditArchiveService copies audit entries to S3 as JSON lines for long term
// retention outside the primary database.
type AuditArchiveService struct {
	audits   *AuditService
	uploader objectUploader
	bucket   string
	prefix   string
	now      func() time.Time
}

type ArchiveResult struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Entries int    `json:"entries"`
	Bytes   int    `json:"bytes"`
}

func NewAuditArchiveService(cfg *config.Config, audits *AuditService) (*AuditArchiveService, error) {
	svc := &AuditArchiveService{
		audits: audits,
		bucket: cfg.AWS.AuditBucket,
		prefix: cfg.AWS.AuditPrefix,
		now:    time.Now,
	}
	if cfg.AWS.AuditBucket == "" || cfg.AWS.AccessKeyID == "" {
		// Archive stays disabled for local development
		return svc, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc.uploader = s3.New(sess)
	return svc, nil
}

func (s *AuditArchiveService) Enabled() bool {
	return s.uploader != nil
}

// Export writes every audit entry matching filter to a new object.
func (s *AuditArchiveService) Export(ctx context.Context, filter AuditFilter) (*ArchiveResult, error) {
	if !s.Enabled() {
		return nil, ErrArchiveDisabled
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	entries, err := s.audits.Each(ctx, filter, 500, func(entry models.PriceAudit) error {
		return encoder.Encode(entry)
	})
	if err != nil {
		return nil, err
	}

	key := path.Join(s.prefix, s.now().UTC().Format("2006/01/02"), fmt.Sprintf("price-audits-%d.jsonl", s.now().UnixNano()))
	size := buf.Len()

	_, err = s.uploader.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return nil, &StorageError{Op: "upload audit archive", Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"bucket":  s.bucket,
		"key":     key,
		"entries": entries,
	}).Info("Price audit archive uploaded")

	return &ArchiveResult{Bucket: s.bucket, Key: key, Entries: entries, Bytes: size}, nil
}
