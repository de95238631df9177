package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hanpama/fedreq/internal/coordinator"
	"github.com/hanpama/fedreq/internal/dedup"
	"github.com/hanpama/fedreq/internal/eventbus"
	"github.com/hanpama/fedreq/internal/grpctp"
	"github.com/hanpama/fedreq/internal/otel"
	"github.com/hanpama/fedreq/internal/protoreg"
	"github.com/hanpama/fedreq/internal/reqid"
	"github.com/hanpama/fedreq/internal/reqmap"
)

const rootUsage = `fedreq - requirement deduplication for federated fetches

USAGE:
  fedreq <command> [flags]

COMMANDS:
  group            Group objects by equivalent requirement value
  dispatch         Group objects and fetch each group once from its subgraph
  compile-proto    Generate .proto files for declared fetch slots
  help             Show help for any command
`

const groupUsage = `group FLAGS:
  -in <file>                 Input, one "<objectID> <GraphQL literal>" per line (default: -, stdin)
  -node <name>               Fetch node of the slot (default: Query.entities)
  -slot <name>               Slot name (default: representations)
  -slots <file>              Slot declarations; enforces the slot's declared layout
  -workers N                 Parallel index workers (default: 1)
  -chunk N                   Objects between cancellation checks (default: 512)
  -log.level <level>         debug, info, warn or error (default: info)
  -otel.endpoint <addr>      OTLP collector endpoint
  -otel.service <name>       OpenTelemetry service name (default: fedreq)
`

const dispatchUsage = `dispatch FLAGS:
  -in <file>                          Input, as for group (default: -, stdin)
  -slots <file>                       Slot declarations (required)
  -package <name>                     Proto package of the subgraph services (default: fedreq.subgraphs)
  -node <name> -slot <name>           Slot to dispatch (default: the only declared slot)
  -workers N -chunk N                 As for group
  -transport.backend <Svc=host:port>  Map gRPC service to endpoint. Repeatable; use
                                        -transport.backend *=host:port
                                      for a default. Specific mappings override it.
  -transport.max-conns-per-endpoint N Max conns per endpoint (default: 2)
  -transport.rpc-timeout <duration>   RPC timeout, e.g. 3s (default: 3s)
  -log.level <level>                  debug, info, warn or error (default: info)
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: fedreq)
`

const compileProtoUsage = `compile-proto FLAGS:
  -slots <file>      Slot declarations (required), one per line:
                       <node>.<slot> <Service> [batch] name:type ... [-> type]
  -package <name>    Proto package (default: fedreq.subgraphs)
  -out <dir>         Write one .proto per service under dir (default: stdout)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("fedreq failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}
	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "group":
		return cmdGroup(ctx, cmdArgs, stdout, stderr)
	case "dispatch":
		return cmdDispatch(ctx, cmdArgs, stdout, stderr)
	case "compile-proto":
		return cmdCompileProto(cmdArgs, stdout, stderr)
	case "help", "-h", "-help", "--help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "group":
		fmt.Fprint(stdout, groupUsage)
	case "dispatch":
		fmt.Fprint(stdout, dispatchUsage)
	case "compile-proto":
		fmt.Fprint(stdout, compileProtoUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// common holds the flags shared by group and dispatch.
type common struct {
	in           string
	node, slot   string
	workers      int
	chunk        int
	logLevel     string
	otelEndpoint string
	otelService  string
}

func (c *common) register(fs *flag.FlagSet, defaultNode string) {
	fs.StringVar(&c.in, "in", "-", "Input file")
	fs.StringVar(&c.node, "node", defaultNode, "Fetch node")
	fs.StringVar(&c.slot, "slot", "representations", "Slot name")
	fs.IntVar(&c.workers, "workers", 1, "Parallel index workers")
	fs.IntVar(&c.chunk, "chunk", 512, "Objects between cancellation checks")
	fs.StringVar(&c.logLevel, "log.level", "info", "Log level")
	fs.StringVar(&c.otelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&c.otelService, "otel.service", "fedreq", "OpenTelemetry service name")
}

// setup installs the event bus, the slog event logger and tracing, and
// returns the pass context and a shutdown func.
func (c *common) setup(ctx context.Context, stderr io.Writer) (context.Context, *slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, nil, nil, fmt.Errorf("-log.level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	eventbus.Use(eventbus.New())
	unlog := logEvents(logger)
	shutdown, err := otel.Setup(c.otelEndpoint, c.otelService)
	if err != nil {
		unlog()
		eventbus.Use(nil)
		return nil, nil, nil, fmt.Errorf("otel setup: %w", err)
	}
	ctx, pass := reqid.NewContext(ctx)
	logger = logger.With("pass", pass)
	return ctx, logger, func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("otel shutdown", "err", err)
		}
		unlog()
		eventbus.Use(nil)
	}, nil
}

func (c *common) buildOptions() []dedup.Option {
	return []dedup.Option{dedup.WithWorkers(c.workers), dedup.WithChunkSize(c.chunk)}
}

func cmdGroup(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var c common
	slots := ""
	pkg := "fedreq.subgraphs"
	fs := flag.NewFlagSet("group", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	c.register(fs, "Query.entities")
	fs.StringVar(&slots, "slots", slots, "Slot declarations")
	fs.StringVar(&pkg, "package", pkg, "Proto package")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, groupUsage)
		return err
	}

	var reg *protoreg.Registry
	if slots != "" {
		var err error
		if reg, err = loadRegistry(slots, pkg); err != nil {
			return fmt.Errorf("load slots: %w", err)
		}
	}
	ctx, logger, shutdown, err := c.setup(ctx, stderr)
	if err != nil {
		return err
	}
	defer shutdown()

	entries, err := readEntriesFile(c.in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	key := reqmap.Key{FetchNode: c.node, Slot: c.slot}
	groups, err := dedup.Build(ctx, key, literalMapper{reg: reg}, entries, c.buildOptions()...)
	if err != nil {
		return err
	}
	logger.Debug("writing groups", "slot", key.String(), "groups", len(groups))

	enc := json.NewEncoder(stdout)
	for _, g := range groups {
		if err := enc.Encode(groupLine{Canonical: g.Canonical.String(), Members: g.Members}); err != nil {
			return err
		}
	}
	return nil
}

type backendFlag struct {
	m map[string][]string
}

func (b *backendFlag) String() string { return "" }

func (b *backendFlag) Set(v string) error {
	svc, ep, ok := strings.Cut(v, "=")
	svc, ep = strings.TrimSpace(svc), strings.TrimSpace(ep)
	if !ok || svc == "" || ep == "" {
		return fmt.Errorf("invalid backend %q", v)
	}
	if b.m == nil {
		b.m = map[string][]string{}
	}
	b.m[svc] = append(b.m[svc], ep)
	return nil
}

// providerFor maps every service declared in reg to its backends, falling
// back to the "*" mapping.
func providerFor(reg *protoreg.Registry, backends map[string][]string) (*grpctp.StaticEndpoints, error) {
	wildcard := backends["*"]
	providers := map[string][]string{}
	for _, fd := range reg.GetAllServiceFiles() {
		for i := range fd.Services().Len() {
			fn := string(fd.Services().Get(i).FullName())
			eps := backends[fn]
			if len(eps) == 0 {
				eps = wildcard
			}
			if len(eps) == 0 {
				return nil, fmt.Errorf("no backend mapping for %s", fn)
			}
			providers[fn] = eps
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no services declared")
	}
	return grpctp.NewStaticEndpoints(providers), nil
}

func cmdDispatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var c common
	slots := ""
	pkg := "fedreq.subgraphs"
	maxConns := 2
	rpcTimeout := 3 * time.Second
	var bf backendFlag
	fs := flag.NewFlagSet("dispatch", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	c.register(fs, "")
	fs.StringVar(&slots, "slots", slots, "Slot declarations")
	fs.StringVar(&pkg, "package", pkg, "Proto package")
	fs.Var(&bf, "transport.backend", "Map gRPC service to endpoint")
	fs.IntVar(&maxConns, "transport.max-conns-per-endpoint", maxConns, "Max conns per endpoint")
	fs.DurationVar(&rpcTimeout, "transport.rpc-timeout", rpcTimeout, "RPC timeout")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, dispatchUsage)
		return err
	}
	if slots == "" {
		fmt.Fprint(stderr, dispatchUsage)
		return fmt.Errorf("-slots is required")
	}
	reg, err := loadRegistry(slots, pkg)
	if err != nil {
		return fmt.Errorf("load slots: %w", err)
	}
	key := reqmap.Key{FetchNode: c.node, Slot: c.slot}
	if c.node == "" {
		keys := reg.Keys()
		if len(keys) != 1 {
			return fmt.Errorf("-node is required when %d slots are declared", len(keys))
		}
		key = keys[0]
	}
	if _, ok := reg.Layout(key); !ok {
		return fmt.Errorf("slot %s is not declared in %s", key, slots)
	}
	provider, err := providerFor(reg, bf.m)
	if err != nil {
		return err
	}

	ctx, logger, shutdown, err := c.setup(ctx, stderr)
	if err != nil {
		return err
	}
	defer shutdown()

	entries, err := readEntriesFile(c.in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	groups, err := dedup.Build(ctx, key, literalMapper{reg: reg}, entries, c.buildOptions()...)
	if err != nil {
		return err
	}

	trOpts := []grpctp.Option{grpctp.WithProvider(provider), grpctp.WithMaxConnsPerEndpoint(maxConns)}
	if rpcTimeout > 0 {
		trOpts = append(trOpts, grpctp.WithRPCTimeout(rpcTimeout))
	}
	transport := grpctp.New(trOpts...)
	defer transport.Close()

	results := coordinator.New(reg, transport).Dispatch(ctx, key, groups)
	byObject := coordinator.FanOut(groups, results)
	logger.Info("dispatched", "slot", key.String(), "objects", len(entries), "groups", len(groups))

	enc := json.NewEncoder(stdout)
	for _, e := range entries {
		r := byObject[e.ID]
		line := resultLine{Object: e.ID}
		if r.Error != nil {
			line.Error = r.Error.Error()
		} else if line.Value, err = jsonValue(r.Value); err != nil {
			return fmt.Errorf("object %d: %w", e.ID, err)
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

func cmdCompileProto(args []string, stdout, stderr io.Writer) error {
	slots := ""
	pkg := "fedreq.subgraphs"
	outDir := ""
	fs := flag.NewFlagSet("compile-proto", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&slots, "slots", slots, "Slot declarations")
	fs.StringVar(&pkg, "package", pkg, "Proto package")
	fs.StringVar(&outDir, "out", outDir, "Output directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, compileProtoUsage)
		return err
	}
	if slots == "" {
		fmt.Fprint(stderr, compileProtoUsage)
		return fmt.Errorf("-slots is required")
	}
	reg, err := loadRegistry(slots, pkg)
	if err != nil {
		return fmt.Errorf("load slots: %w", err)
	}
	if outDir == "" {
		return protoreg.Render(reg, stdout)
	}
	if err := protoreg.RenderDir(reg, outDir); err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	return nil
}
