// Package archive stores immutable JSON snapshots of signed proposals in
// object storage. Once a proposal is signed its archived copy is the record
// of what the client agreed to, regardless of later database state.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"accord/api/internal/store"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Service struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the archive bucket exists.
func New(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Service{client: client, bucket: cfg.Bucket}, nil
}

// signedRecord is the archived payload. It carries the full proposal plus
// the archive timestamp so the object is self-describing.
type signedRecord struct {
	Proposal   store.Proposal `json:"proposal"`
	SignedBy   string         `json:"signedBy"`
	ArchivedAt time.Time      `json:"archivedAt"`
}

// ArchiveSigned writes the signed proposal snapshot. The object key is
// stable per proposal, so re-archiving after a restore overwrites rather
// than duplicates.
func (s *Service) ArchiveSigned(ctx context.Context, proposal store.Proposal, signedBy string) error {
	record := signedRecord{
		Proposal:   proposal,
		SignedBy:   signedBy,
		ArchivedAt: time.Now().UTC(),
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal signed record: %w", err)
	}

	key := objectKey(proposal.ID)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put archive object %s: %w", key, err)
	}
	return nil
}

// SignedURL returns a time-limited download link for a proposal's archived
// snapshot.
func (s *Service) SignedURL(ctx context.Context, proposalID string, expiry time.Duration) (string, error) {
	key := objectKey(proposalID)
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", proposalID+".json"))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign archive object %s: %w", key, err)
	}
	return u.String(), nil
}

// Exists reports whether a proposal has an archived snapshot.
func (s *Service) Exists(ctx context.Context, proposalID string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, objectKey(proposalID), minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat archive object: %w", err)
	}
	return true, nil
}

func objectKey(proposalID string) string {
	return "signed/" + proposalID + ".json"
}
