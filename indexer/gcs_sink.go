package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/estuary/docpipe/auth"
)

// GCSSink ships each submitted batch as a single newline-delimited-JSON
// object to a Google Cloud Storage bucket, standing in for a downstream
// search engine or document store.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
	signer *auth.Signer
	now    func() time.Time
}

var _ Sink = (*GCSSink)(nil)

// NewGCSSink returns a GCSSink writing batches under
// gs://bucket/prefix/. signer, if non-nil, mints a bearer token recorded
// as object metadata so a downstream reader can verify the batch came
// from this pipeline.
func NewGCSSink(client *storage.Client, bucket, prefix string, signer *auth.Signer) *GCSSink {
	return &GCSSink{client: client, bucket: bucket, prefix: prefix, signer: signer, now: time.Now}
}

// ValidateConnection checks that the bucket exists and is reachable.
func (s *GCSSink) ValidateConnection(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("indexer: gcs sink: validating bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Submit writes batch as one NDJSON object. GCS has no per-document
// partial-failure mode for a single object write, so Submit either
// succeeds for the whole batch or returns a transport error.
func (s *GCSSink) Submit(ctx context.Context, batch []Record) (SubmitResult, error) {
	objectName := fmt.Sprintf("%s/%d.ndjson", s.prefix, s.now().UnixNano())
	obj := s.client.Bucket(s.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = "application/x-ndjson"

	if s.signer != nil {
		token, err := s.signer.Mint(s.prefix)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("indexer: gcs sink: minting token: %w", err)
		}
		w.Metadata = map[string]string{"docpipe-auth": token}
	}

	for _, rec := range batch {
		line, err := json.Marshal(rec.Doc.AsMap())
		if err != nil {
			_ = w.Close()
			return SubmitResult{}, fmt.Errorf("indexer: gcs sink: encoding document %s: %w", rec.Doc.ID(), err)
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			_ = w.Close()
			return SubmitResult{}, fmt.Errorf("indexer: gcs sink: writing batch: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return SubmitResult{}, fmt.Errorf("indexer: gcs sink: closing object %s: %w", objectName, err)
	}
	return SubmitResult{}, nil
}

func (s *GCSSink) Close() error { return s.client.Close() }
