// Command eeg-analyze runs one seizure phase analysis and prints the result as
// JSON. With -remote it calls a running eeg-engine instead of analysing locally.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-eeg/internal/api"
	"github.com/miradorstack/mirador-eeg/internal/cache"
	"github.com/miradorstack/mirador-eeg/internal/config"
	"github.com/miradorstack/mirador-eeg/internal/edfio"
	"github.com/miradorstack/mirador-eeg/internal/engine"
	"github.com/miradorstack/mirador-eeg/internal/models"
	"github.com/miradorstack/mirador-eeg/internal/services"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

type options struct {
	configPath string
	remote     string
	describe   bool
	channels   stringList
	req        models.AnalysisRequest
	filter     models.FilterRequest
}

type stringList []string

func (s *stringList) String() string { return fmt.Sprint(*s) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "eeg-analyze:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read .env: %w", err)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var out any
	if opts.remote != "" {
		out, err = runRemote(ctx, opts)
	} else {
		out, err = runLocal(ctx, cfg, logger, opts)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("eeg-analyze", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&o.remote, "remote", "", "Address of an eeg-engine to call instead of analysing locally")
	fs.BoolVar(&o.describe, "describe", false, "Summarise the whole recording instead of analysing a seizure")
	fs.Var(&o.channels, "channel", "Electrode to keep (repeatable, local mode only)")
	fs.StringVar(&o.req.Recording, "recording", "", "Recording path relative to the data directory")
	fs.Float64Var(&o.req.StartTime, "start", 0, "Seizure start in seconds")
	fs.Float64Var(&o.req.EndTime, "end", 0, "Seizure end in seconds")
	fs.Float64Var(&o.req.SamplingFreq, "rate", 0, "Sampling frequency override in Hz")
	fs.Float64Var(&o.filter.LowFreq, "low", 0, "Band-pass low cutoff in Hz")
	fs.Float64Var(&o.filter.HighFreq, "high", 0, "Band-pass high cutoff in Hz (0 disables filtering)")
	fs.IntVar(&o.filter.Order, "order", 4, "Butterworth order")
	fs.StringVar(&o.req.CorrelationMode, "mode", "", "Correlation mode: raw or pearson")
	fs.BoolVar(&o.req.Clamp, "clamp", false, "Shorten phases at recording edges instead of failing")
	fs.BoolVar(&o.req.Export, "export", false, "Write each phase as EDF into the export directory")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.req.Recording == "" {
		return options{}, errors.New("-recording is required")
	}
	if o.filter.HighFreq > 0 {
		f := o.filter
		o.req.Filter = &f
	}
	return o, nil
}

func runLocal(ctx context.Context, cfg *config.Config, logger *slog.Logger, o options) (any, error) {
	var loaderOpts []edfio.Option
	if len(o.channels) > 0 {
		loaderOpts = append(loaderOpts, edfio.WithChannels(o.channels...))
	}
	pipeline := engine.NewPipeline(logger, edfio.NewFileLoader(loaderOpts...), engine.ConfigOptions(cfg)...)
	if o.describe {
		return pipeline.Describe(ctx, o.req.Recording)
	}

	cacheProvider, err := cache.FromConfig(cfg.Cache)
	if err != nil {
		logger.Warn("result cache unavailable", slog.Any("error", err))
		cacheProvider = cache.NoopProvider{}
	}
	defer cacheProvider.Close()
	svc := services.NewAnalysisService(logger, pipeline, cacheProvider, cfg.Cache.ResultTTL, cfg.Analysis.Timeout)
	return svc.Analyze(ctx, o.req)
}

func runRemote(ctx context.Context, o options) (any, error) {
	conn, err := grpc.NewClient(o.remote, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", o.remote, err)
	}
	defer conn.Close()
	client := api.NewPhaseAnalysisClient(conn)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if o.describe {
		in, err := structpb.NewStruct(map[string]any{"recording": o.req.Recording})
		if err != nil {
			return nil, err
		}
		out, err := client.DescribeRecording(ctx, in)
		if err != nil {
			return nil, err
		}
		return out.AsMap(), nil
	}

	doc := map[string]any{
		"recording":  o.req.Recording,
		"start_time": o.req.StartTime,
		"end_time":   o.req.EndTime,
		"clamp":      o.req.Clamp,
		"export":     o.req.Export,
	}
	if o.req.SamplingFreq > 0 {
		doc["sampling_freq"] = o.req.SamplingFreq
	}
	if o.req.CorrelationMode != "" {
		doc["correlation_mode"] = o.req.CorrelationMode
	}
	if f := o.req.Filter; f != nil {
		doc["filter"] = map[string]any{"low_freq": f.LowFreq, "high_freq": f.HighFreq, "order": f.Order}
	}
	in, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, err
	}
	out, err := client.AnalyzeRecording(ctx, in)
	if err != nil {
		return nil, err
	}
	return api.FromStructAnalysisResult(out)
}
