package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	pb "go.gazette.dev/core/broker/protocol"
	mbp "go.gazette.dev/core/mainboilerplate"

	"github.com/estuary/docpipe/auth"
	"github.com/estuary/docpipe/catalog"
	"github.com/estuary/docpipe/indexer"
	"github.com/estuary/docpipe/internal/buildpipeline"
	"github.com/estuary/docpipe/ops"
	"github.com/estuary/docpipe/retry"
	"github.com/estuary/docpipe/transport/gazette"
	"github.com/estuary/docpipe/worker"
)

const iniFilename = "docpipe-worker.ini"

// cmdServe starts a Worker and Indexer pair for one named pipeline,
// running until signaled to exit.
type cmdServe struct {
	Catalog     string        `long:"catalog" required:"true" description:"Catalog database URL or path"`
	Pipeline    string        `long:"pipeline" required:"true" description:"Name of the pipeline to serve, as loaded from the catalog"`
	LogInterval time.Duration `long:"log-interval" default:"30s" description:"How often the worker logs its processing rate"`

	Retry struct {
		Backend string `long:"backend" default:"memory" choice:"memory" choice:"etcd" description:"Where per-document retry counts are tracked"`
		RunID   string `long:"run-id" description:"Run ID scoping the etcd retry-backend's key prefix"`
		Prefix  string `long:"prefix" default:"docpipe/retry" description:"Etcd key prefix for the retry backend"`
	} `group:"Retry" namespace:"retry" env-namespace:"RETRY"`

	Sink struct {
		Type   string `long:"type" default:"memory" choice:"memory" choice:"gcs" description:"Indexer sink destination"`
		Bucket string `long:"bucket" description:"GCS bucket name, when --sink.type=gcs"`
		Prefix string `long:"prefix" description:"GCS object name prefix, when --sink.type=gcs"`
	} `group:"Sink" namespace:"sink" env-namespace:"SINK"`

	Auth struct {
		SigningKey string        `long:"signing-key" description:"HMAC key minting bearer tokens for remote stages and sinks; unset disables signing"`
		TokenTTL   time.Duration `long:"token-ttl" default:"5m" description:"Lifetime of a minted bearer token"`
	} `group:"Auth" namespace:"auth" env-namespace:"AUTH"`

	Indexer struct {
		BatchSize    int           `long:"batch-size" default:"100" description:"Maximum documents per Indexer batch"`
		BatchTimeout time.Duration `long:"batch-timeout" default:"1s" description:"Maximum time a partial Indexer batch waits before shipping"`
	} `group:"Indexer" namespace:"indexer" env-namespace:"INDEXER"`

	Broker      mbp.ClientConfig      `group:"Broker" namespace:"broker" env-namespace:"BROKER"`
	Etcd        mbp.EtcdConfig        `group:"Etcd" namespace:"etcd" env-namespace:"ETCD"`
	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
}

func (cmd cmdServe) Execute(_ []string) error {
	defer mbp.InitDiagnosticsAndRecover(cmd.Diagnostics)()
	mbp.InitLog(cmd.Log)

	log.WithFields(log.Fields{
		"pipeline":  cmd.Pipeline,
		"version":   mbp.Version,
		"buildDate": mbp.BuildDate,
	}).Info("docpipe-worker configuration")

	pb.RegisterGRPCDispatcher("local")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cat, err := catalog.Open(cmd.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	cfg, err := cat.LoadPipeline(ctx, cmd.Pipeline, nil)
	if err != nil {
		return err
	}

	var tokenProvider buildpipeline.TokenProvider
	var signer *auth.Signer
	if cmd.Auth.SigningKey != "" {
		signer = auth.NewSigner([]byte(cmd.Auth.SigningKey), cmd.Auth.TokenTTL)
		tokenProvider = func(_ context.Context) (string, error) {
			return signer.Mint(fmt.Sprintf("pipeline:%s", cmd.Pipeline))
		}
	}

	built, err := buildpipeline.Build(cfg, tokenProvider)
	if err != nil {
		return fmt.Errorf("building pipeline %q: %w", cmd.Pipeline, err)
	}

	rjc := cmd.Broker.MustRoutedJournalClient(ctx)
	workerMessenger := gazette.NewWorkerMessenger(rjc, cmd.Pipeline)
	indexerMessenger := gazette.NewIndexerMessenger(rjc, cmd.Pipeline)

	retryCounter, err := cmd.buildRetryCounter(ctx)
	if err != nil {
		return err
	}

	sink, err := cmd.buildSink(ctx, signer)
	if err != nil {
		return err
	}

	publisher := ops.NewLocalPublisher(ops.Labeling{Run: ops.RunRef{Pipeline: cmd.Pipeline}})

	w := worker.New(cmd.Pipeline, workerMessenger, built, retryCounter, worker.Options{
		MaxRetries:  cfg.MaxRetries,
		LogInterval: cmd.LogInterval,
	}, publisher)

	idx := indexer.New(cmd.Pipeline, indexerMessenger, sink, indexer.Options{
		BatchSize:         cmd.Indexer.BatchSize,
		BatchTimeout:      cmd.Indexer.BatchTimeout,
		VersioningEnabled: cfg.VersioningEnabled,
		RoutingField:      cfg.RoutingField,
	}, publisher)

	errCh := make(chan error, 2)
	go func() { errCh <- w.Run(ctx) }()
	go func() { errCh <- idx.Run(ctx) }()

	var runErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && runErr == nil {
			runErr = err
			cancel()
		}
	}

	_ = workerMessenger.Close()
	_ = indexerMessenger.Close()
	_ = retryCounter.Close()
	_ = sink.Close()

	log.Info("docpipe-worker stopped")
	return runErr
}

func (cmd cmdServe) buildRetryCounter(ctx context.Context) (retry.Counter, error) {
	switch cmd.Retry.Backend {
	case "etcd":
		client := cmd.Etcd.MustDial()
		return retry.NewEtcdCounter(ctx, client, cmd.Retry.Prefix, cmd.Retry.RunID)
	default:
		return retry.NewMemoryCounter(), nil
	}
}

func (cmd cmdServe) buildSink(ctx context.Context, signer *auth.Signer) (indexer.Sink, error) {
	switch cmd.Sink.Type {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("building gcs client: %w", err)
		}
		return indexer.NewGCSSink(client, cmd.Sink.Bucket, cmd.Sink.Prefix, signer), nil
	default:
		return indexer.NewMemorySink(), nil
	}
}

func main() {
	parser := flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	_, err := parser.AddCommand("serve", "Serve a pipeline's Worker and Indexer", `
Serve a pipeline's Worker and Indexer until signaled to exit (SIGTERM/SIGINT).
`, &cmdServe{})
	mbp.Must(err, "failed to add serve command")

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
