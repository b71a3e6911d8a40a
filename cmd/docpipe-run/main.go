package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	pb "go.gazette.dev/core/broker/protocol"
	mbp "go.gazette.dev/core/mainboilerplate"

	"github.com/estuary/docpipe/document"
	"github.com/estuary/docpipe/publisher"
	"github.com/estuary/docpipe/transport/gazette"
)

const iniFilename = "docpipe-run.ini"

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
)

// cmdRun publishes one run's source documents from a file (or stdin, a
// stand-in for an external Connector) and blocks until the run is
// reconciled, then exits with a status reflecting whether any document
// FAILed.
type cmdRun struct {
	Pipeline string `long:"pipeline" required:"true" description:"Name of the pipeline this run feeds"`
	Source   string `long:"source" default:"-" description:"NDJSON file of source documents to publish, or - for stdin"`

	Broker      mbp.ClientConfig      `group:"Broker" namespace:"broker" env-namespace:"BROKER"`
	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
}

func (cmd cmdRun) Execute(_ []string) error {
	defer mbp.InitDiagnosticsAndRecover(cmd.Diagnostics)()
	mbp.InitLog(cmd.Log)

	pb.RegisterGRPCDispatcher("local")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	source, err := cmd.openSource()
	if err != nil {
		return err
	}
	defer source.Close()

	rjc := cmd.Broker.MustRoutedJournalClient(ctx)
	messenger := gazette.NewPublisherMessenger(rjc)
	pub := publisher.New(cmd.Pipeline, messenger, publisher.Options{}, nil)

	runID, err := pub.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initializing run: %w", err)
	}
	log.WithFields(log.Fields{"pipeline": cmd.Pipeline, "runId": runID}).Info("starting run")

	if err := publishSource(ctx, pub, source); err != nil {
		return fmt.Errorf("publishing source documents: %w", err)
	}
	pub.MarkConnectorDone()

	runErr := pub.Run(ctx)
	published, succeeded, failed := pub.Counts()
	hasErrors := pub.HasErrors()
	_ = pub.Close()

	if runErr != nil {
		return fmt.Errorf("reconciling run: %w", runErr)
	}
	if hasErrors {
		fmt.Println(red(fmt.Sprintf("%d of %d documents failed", failed, published)))
		os.Exit(1)
	}
	fmt.Println(green(fmt.Sprintf("reconciled: %d documents succeeded", succeeded)))
	return nil
}

func (cmd cmdRun) openSource() (io.ReadCloser, error) {
	if cmd.Source == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(cmd.Source)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cmd.Source, err)
	}
	return f, nil
}

// publishSource reads one JSON document per line from r and publishes
// each to pub, stamping it with the run's ID along the way.
func publishSource(ctx context.Context, pub *publisher.Publisher, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		doc, err := document.NewFromJSON(line)
		if err != nil {
			return fmt.Errorf("parsing source document: %w", err)
		}
		if err := pub.Publish(ctx, doc); err != nil {
			return fmt.Errorf("publishing document %q: %w", doc.ID(), err)
		}
	}
	return scanner.Err()
}

func main() {
	parser := flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	_, err := parser.AddCommand("run", "Execute connectors for one run, then exit", `
Publish a run's source documents and block until every document (and its
transitively-discovered children) has reached a terminal state, then exit
0 if every document succeeded or non-zero if any document FAILed.
`, &cmdRun{})
	mbp.Must(err, "failed to add run command")

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
