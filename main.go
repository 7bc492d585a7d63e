package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/nijaru/yt-transcribe/config"
	"github.com/nijaru/yt-transcribe/guard"
	"github.com/nijaru/yt-transcribe/history"
	"github.com/nijaru/yt-transcribe/logger"
	"github.com/nijaru/yt-transcribe/media"
	"github.com/nijaru/yt-transcribe/models"
	"github.com/nijaru/yt-transcribe/pipeline"
	"github.com/nijaru/yt-transcribe/storage"
	"github.com/nijaru/yt-transcribe/utils"
	"github.com/nijaru/yt-transcribe/whisper"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

const exitUsage = 2

type options struct {
	apiKey         string
	output         string
	splitSentences bool
	retries        int
	timeout        time.Duration
	verbose        bool
	quiet          bool
	showVersion    bool
	url            string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("yt-transcribe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: yt-transcribe [flags] URL")
		fmt.Fprintln(stderr, "\nTranscribes the English audio of a YouTube video.")
		fmt.Fprintln(stderr, "\nFlags:")
		fs.PrintDefaults()
	}
	fs.StringVarP(&opts.apiKey, "api-key", "k", "", "transcription API key (default $OPENAI_API_KEY)")
	fs.StringVarP(&opts.output, "output", "o", "", "also write the transcript to a file or s3://bucket/key")
	fs.BoolVar(&opts.splitSentences, "split-sentences", false, "put each sentence on its own line")
	fs.IntVar(&opts.retries, "retries", -1, "retries for rate limited or unavailable service (default $TRANSCRIBE_MAX_RETRIES)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "transcription request timeout (default $TRANSCRIBE_TIMEOUT)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "no progress output")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.showVersion {
		return opts, nil
	}
	switch fs.NArg() {
	case 0:
		fs.Usage()
		return nil, errors.New("a video URL is required")
	case 1:
		opts.url = fs.Arg(0)
	default:
		return nil, errors.Errorf("expected one video URL, got %d arguments", fs.NArg())
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "yt-transcribe %s\n", version)
		return 0
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	cfg := config.LoadConfig()
	if opts.apiKey == "" {
		opts.apiKey = cfg.APIKey
	}
	if opts.retries >= 0 {
		cfg.MaxRetries = opts.retries
	}
	if opts.timeout > 0 {
		cfg.TranscribeTimeout = opts.timeout
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(stderr, "error: invalid configuration: %v\n", err)
		return exitUsage
	}
	if strings.TrimSpace(opts.apiKey) == "" {
		fmt.Fprintln(stderr, "error: no API key; pass --api-key or set OPENAI_API_KEY")
		return exitUsage
	}

	log, closeLog, err := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Dir:     cfg.LogDir,
		Verbose: opts.verbose,
		Console: stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	defer closeLog()

	runID := uuid.New()
	entry := log.WithField("run_id", runID.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var output storage.Writer
	if opts.output != "" {
		output, err = storage.NewWriter(ctx, opts.output, storage.S3Config{
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
		})
		if err == nil {
			err = output.Prepare(ctx)
		}
		if err != nil {
			fmt.Fprintf(stderr, "error: invalid output: %v\n", err)
			return exitUsage
		}
	}

	source := &timedSource{
		source: media.NewFetcher(
			media.NewYtDlpResolver(cfg.YtDlpPath, entry),
			media.NewDownloader(&http.Client{}, cfg.DownloadChunkSize, cfg.DownloadConcurrency, cfg.TempDir, entry),
			entry,
		).WithMaxBytes(cfg.MaxPayloadBytes),
		timeout: cfg.FetchTimeout,
	}
	client := whisper.NewClient(cfg.WhisperConfig(), nil, entry)
	p := pipeline.New(source, guard.New(cfg.MaxPayloadBytes), client, entry)
	if !opts.quiet {
		p.OnTransition(newProgress(stderr).observe)
	}

	started := time.Now()
	transcript, runErr := p.Run(ctx, opts.url, opts.apiKey)
	var videoID string
	if src, err := models.NewVideoSource(opts.url); err == nil {
		videoID = src.ID()
	}
	recordHistory(ctx, cfg.HistoryDBPath, entry, history.Run{
		ID:         runID,
		URL:        opts.url,
		VideoID:    videoID,
		AudioBytes: source.bytes,
		Transcript: transcript.Text,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, runErr)

	if runErr != nil {
		report := pipeline.Describe(runErr)
		fmt.Fprintf(stderr, "error: %s\n", report)
		return report.ExitCode
	}

	text := transcript.Text
	if opts.splitSentences {
		text = utils.SplitSentences(text)
	}
	fmt.Fprintln(stdout, text)

	if output != nil {
		if err := output.Write(ctx, text); err != nil {
			entry.WithError(err).Error("Failed to save transcript")
			fmt.Fprintf(stderr, "error: %v\n", err)
			return pipeline.ExitInternal
		}
		entry.WithField("location", output.Location()).Info("Transcript saved")
		if !opts.quiet {
			fmt.Fprintf(stderr, "Saved transcript to %s\n", output.Location())
		}
	}
	return pipeline.ExitOK
}

// timedSource bounds the fetch stage and remembers the payload size for the
// run journal.
type timedSource struct {
	source  media.Source
	timeout time.Duration
	bytes   int64
}

func (s *timedSource) Fetch(ctx context.Context, src models.VideoSource) (*models.AudioPayload, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	payload, err := s.source.Fetch(ctx, src)
	if payload != nil {
		s.bytes = payload.SizeBytes
	}
	return payload, err
}

// progress prints one line per stage, e.g. "Fetching audio... done.".
type progress struct {
	w      io.Writer
	inLine bool
}

func newProgress(w io.Writer) *progress {
	return &progress{w: w}
}

func (p *progress) observe(from, to pipeline.State) {
	switch to {
	case pipeline.StateFetching:
		p.begin("Fetching audio...")
	case pipeline.StateSizeChecking:
		p.end("done.")
	case pipeline.StateTranscribing:
		p.begin("Transcribing...")
	case pipeline.StateDone:
		p.end("done.")
	case pipeline.StateFailed:
		p.end("failed.")
	}
}

func (p *progress) begin(msg string) {
	fmt.Fprint(p.w, msg)
	p.inLine = true
}

func (p *progress) end(msg string) {
	if !p.inLine {
		return
	}
	fmt.Fprintln(p.w, " "+msg)
	p.inLine = false
}

func recordHistory(ctx context.Context, dbPath string, log logrus.FieldLogger, rec history.Run, runErr error) {
	if dbPath == "" {
		return
	}
	if runErr != nil {
		report := pipeline.Describe(runErr)
		rec.Status = history.StatusFailed
		rec.ErrorClass = report.Class
		rec.ExitCode = report.ExitCode
		var perr *pipeline.Error
		if errors.As(runErr, &perr) {
			rec.Stage = perr.Stage.String()
		}
	} else {
		rec.Status = history.StatusCompleted
	}

	store, err := history.Open(dbPath)
	if err != nil {
		log.WithError(err).Warn("Run history unavailable")
		return
	}
	defer store.Close()

	// The run context may already be cancelled; the journal write should still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := store.Record(writeCtx, rec); err != nil {
		log.WithError(err).Warn("Failed to record run history")
	}
}
