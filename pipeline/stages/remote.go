package stages

import (
	"context"
	"fmt"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/estuary/docpipe/document"
)

// rawCodec passes []byte payloads through unchanged, so Remote can carry
// a document's JSON encoding over gRPC without requiring generated
// protobuf stubs for every connector's message shape — the opaque
// connector here is genuinely opaque: an external collaborator (JDBC
// connector, etc.) that the core never inspects.
type rawCodec struct{}

func (rawCodec) Name() string { return "docpipe-raw" }

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("stages: rawCodec: Marshal expects *[]byte, got %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("stages: rawCodec: Unmarshal expects *[]byte, got %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func init() {
	encoding.RegisterCodec(rawCodec{})
}

// remoteMethod is the single RPC every Remote connector implements:
// process one document's JSON, return zero or more child documents'
// JSON, newline-delimited.
const remoteMethod = "/docpipe.stages.Remote/ProcessDocument"

// Remote is a Stage that delegates ProcessDocument to an out-of-process
// connector over gRPC, instrumented with grpc_prometheus client metrics
// (call counts and latency histograms).
type Remote struct {
	name string
	// Target is the gRPC dial target, e.g. "unix:///var/run/docpipe/x.sock"
	// or "dns:///connector:9000".
	Target string
	// TokenProvider, if set, mints a bearer token attached to every call
	// via the "authorization" metadata key.
	TokenProvider func(ctx context.Context) (string, error)

	dialOpts []grpc.DialOption
	conn     *grpc.ClientConn
}

// NewRemote returns a Remote stage dialing target. name implements
// pipeline.Named.
func NewRemote(name, target string, tokenProvider func(ctx context.Context) (string, error)) *Remote {
	return &Remote{name: name, Target: target, TokenProvider: tokenProvider}
}

// NewRemoteWithDialOptions is NewRemote plus additional grpc.DialOptions,
// for tests that dial an in-process bufconn listener instead of a real
// socket.
func NewRemoteWithDialOptions(name, target string, tokenProvider func(ctx context.Context) (string, error), opts ...grpc.DialOption) *Remote {
	r := NewRemote(name, target, tokenProvider)
	r.dialOpts = opts
	return r
}

// Name implements pipeline.Named.
func (r *Remote) Name() string { return r.name }

// Start dials the connector.
func (r *Remote) Start() error {
	opts := append([]grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithBlock(),
		grpc.WithUnaryInterceptor(grpc_prometheus.UnaryClientInterceptor),
	}, r.dialOpts...)
	conn, err := grpc.DialContext(context.Background(), r.Target, opts...)
	if err != nil {
		return fmt.Errorf("stages: remote %q: dialing %s: %w", r.name, r.Target, err)
	}
	r.conn = conn
	return nil
}

// Stop closes the connector connection.
func (r *Remote) Stop() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// ProcessDocument marshals doc to JSON, invokes the connector's single
// RPC, and parses the response as newline-delimited child document JSON.
// The Stage interface is opaque: Remote never interprets what the
// connector does to the document, only that it returns children.
func (r *Remote) ProcessDocument(doc *document.Document) ([]*document.Document, error) {
	ctx := context.Background()
	if r.TokenProvider != nil {
		token, err := r.TokenProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("stages: remote %q: minting token: %w", r.name, err)
		}
		ctx = withBearerToken(ctx, token)
	}

	body := doc.String()
	in := []byte(body)
	var out []byte

	if err := r.conn.Invoke(ctx, remoteMethod, &in, &out, grpc.CallContentSubtype(rawCodec{}.Name())); err != nil {
		return nil, fmt.Errorf("stages: remote %q: invoking connector: %w", r.name, err)
	}
	if len(out) == 0 {
		return nil, nil
	}

	return parseNDJSONDocuments(out)
}
