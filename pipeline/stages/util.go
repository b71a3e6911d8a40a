package stages

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	"google.golang.org/grpc/metadata"

	"github.com/estuary/docpipe/document"
)

func withBearerToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// parseNDJSONDocuments parses newline-delimited document JSON objects, as
// returned by a Remote connector.
func parseNDJSONDocuments(raw []byte) ([]*document.Document, error) {
	var docs []*document.Document
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		doc, err := document.NewFromJSON(line)
		if err != nil {
			return nil, fmt.Errorf("stages: parsing connector output: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
