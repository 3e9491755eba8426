package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"

	"github.com/ayusman/stockvision/internal/analysis"
	"github.com/ayusman/stockvision/internal/config"
	"github.com/ayusman/stockvision/internal/detector"
	"github.com/ayusman/stockvision/internal/export"
	"github.com/ayusman/stockvision/internal/server"
	"github.com/ayusman/stockvision/internal/store"
	"github.com/ayusman/stockvision/internal/video"
)

const usage = `stockvision - video inventory counting

Usage:
  stockvision serve                      start the dashboard server
  stockvision analyze <video> [flags]    analyze a video file
  stockvision list [-limit n]            list recent analyses
  stockvision show <id>                  print one analysis as JSON
  stockvision delete <id>                delete an analysis
  stockvision export <id> [-o file]      export an analysis as CSV
  stockvision annotate <id> <video> [-o dir]
                                         write annotated frames as JPEGs
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(os.Args[1], os.Args[2:], cfg, logger); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		}),
	)
}

func run(command string, args []string, cfg *config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	switch command {
	case "serve":
		return cmdServe(cfg, st, logger)
	case "analyze":
		return cmdAnalyze(args, cfg, st, logger)
	case "list":
		return cmdList(args, st)
	case "show":
		return cmdShow(args, st)
	case "delete":
		return cmdDelete(args, st)
	case "export":
		return cmdExport(args, st)
	case "annotate":
		return cmdAnnotate(args, st)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// newDetector builds the configured detection backend, falling back to the
// mock when the local inference service is not installed.
func newDetector(cfg *config.Config, logger *slog.Logger) (detector.Detector, error) {
	switch cfg.DetectorBackend {
	case config.BackendRemote:
		return detector.NewRemoteDetector(detector.RemoteConfig{
			Endpoint:          cfg.PredictURL(),
			APIKey:            cfg.APIKey,
			Timeout:           cfg.RequestTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger)
	case config.BackendMock:
		return detector.NewMockDetector(), nil
	default:
		yolo, err := detector.NewYOLODetector(detector.YOLOConfig{
			ModelPath:     cfg.ModelPath,
			MinConfidence: cfg.MinConfidence,
		})
		if err != nil {
			logger.Warn("local model not available, using mock detector", "error", err)
			return detector.NewMockDetector(), nil
		}
		logger.Info("using local YOLO detection", "model", cfg.ModelPath)
		return yolo, nil
	}
}

// pipelineAnalyzer adapts the pipeline to the server's Analyzer interface.
type pipelineAnalyzer struct {
	pipeline *analysis.Pipeline
}

func (a *pipelineAnalyzer) Analyze(ctx context.Context, path string, intervalSeconds float64) (*analysis.Run, error) {
	return a.pipeline.RunFile(ctx, path, intervalSeconds)
}

func cmdServe(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
	det, err := newDetector(cfg, logger)
	if err != nil {
		return err
	}
	defer det.Close()

	hub := server.NewProgressHub(logger)

	pipeline := analysis.NewPipeline(det, logger)
	pipeline.OnProgress = hub.Broadcast

	srv := server.New(server.Config{
		Store:           st,
		Analyzer:        &pipelineAnalyzer{pipeline: pipeline},
		Hub:             hub,
		MaxUploadBytes:  cfg.MaxUploadBytes(),
		DefaultInterval: cfg.IntervalSeconds,
		Logger:          logger,
	})

	return srv.ListenAndServe(cfg.ListenAddr)
}

func cmdAnalyze(args []string, cfg *config.Config, st *store.Store, logger *slog.Logger) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	interval := fs.Float64("interval", cfg.IntervalSeconds, "seconds between sampled frames")
	noSave := fs.Bool("no-save", false, "print results without persisting")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("analyze: expected exactly one video path")
	}
	videoPath := fs.Arg(0)

	info, err := video.Probe(videoPath)
	if err != nil {
		return err
	}
	logger.Info("video opened",
		"path", videoPath,
		"fps", info.FPS,
		"frames", info.FrameCount,
		"resolution", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"duration_seconds", info.DurationSec,
	)

	det, err := newDetector(cfg, logger)
	if err != nil {
		return err
	}
	defer det.Close()

	pipeline := analysis.NewPipeline(det, logger)

	run, err := pipeline.RunFile(context.Background(), videoPath, *interval)
	if err != nil {
		return err
	}

	if !*noSave {
		if err := st.Runs().Save(run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}

	printSummary(run)
	return nil
}

func cmdList(args []string, st *store.Store) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("limit", 10, "maximum runs to list")
	fs.Parse(args)

	runs, err := st.Runs().List(*limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no analyses yet")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %-30s  frames=%-4d detections=%-5d avg=%.2f  %s\n",
			run.ID, run.SourceName,
			run.Summary.TotalFrames, run.Summary.TotalDetections,
			run.Summary.AvgPerFrame,
			run.CreatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func cmdShow(args []string, st *store.Store) error {
	if len(args) != 1 {
		return fmt.Errorf("show: expected exactly one analysis id")
	}

	run, err := st.Runs().GetByID(args[0])
	if err != nil {
		return err
	}

	return printJSON(run)
}

func cmdDelete(args []string, st *store.Store) error {
	if len(args) != 1 {
		return fmt.Errorf("delete: expected exactly one analysis id")
	}

	deleted, err := st.Runs().Delete(args[0])
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Printf("no analysis with id %s\n", args[0])
		return nil
	}

	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func cmdExport(args []string, st *store.Store) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("o", "", "output file (default: <source>_results.csv)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("export: expected exactly one analysis id")
	}

	run, err := st.Runs().GetByID(fs.Arg(0))
	if err != nil {
		return err
	}

	path := *output
	if path == "" {
		path = export.Filename(run)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := export.WriteCSV(f, run.Results); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

// cmdAnnotate re-reads the sampled frames of a stored analysis from the
// original video and writes each one out with its detections drawn on.
func cmdAnnotate(args []string, st *store.Store) error {
	fs := flag.NewFlagSet("annotate", flag.ExitOnError)
	outDir := fs.String("o", "annotated", "output directory for frame images")
	fs.Parse(args)

	if fs.NArg() != 2 {
		return fmt.Errorf("annotate: expected an analysis id and a video path")
	}

	run, err := st.Runs().GetByID(fs.Arg(0))
	if err != nil {
		return err
	}

	src := video.NewFileSource(fs.Arg(1))
	if err := src.Open(); err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	written := 0
	for _, result := range run.Results {
		img, err := src.ReadFrameAt(result.FrameIndex)
		if err != nil {
			return fmt.Errorf("read frame %d: %w", result.FrameIndex, err)
		}

		annotated, err := video.DrawDetections(img, result.Detections)
		if err != nil {
			return fmt.Errorf("annotate frame %d: %w", result.FrameIndex, err)
		}

		path := filepath.Join(*outDir, fmt.Sprintf("frame_%06d.jpg", result.FrameIndex))
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := jpeg.Encode(f, annotated, &jpeg.Options{Quality: 90}); err != nil {
			f.Close()
			return err
		}
		f.Close()
		written++
	}

	fmt.Printf("wrote %d frames to %s\n", written, *outDir)
	return nil
}

func printSummary(run *analysis.Run) {
	fmt.Printf("analysis %s\n", run.ID)
	fmt.Printf("  source:           %s\n", run.SourceName)
	fmt.Printf("  frames sampled:   %d\n", run.Summary.TotalFrames)
	fmt.Printf("  total detections: %d\n", run.Summary.TotalDetections)
	fmt.Printf("  avg per frame:    %.2f\n", run.Summary.AvgPerFrame)
	fmt.Printf("  peak / minimum:   %d / %d\n", run.Summary.MaxInFrame, run.Summary.MinInFrame)
	fmt.Printf("  detection rate:   %.1f%%\n", run.Summary.DetectionRate*100)
	if run.Summary.DegradedFrames > 0 {
		fmt.Printf("  degraded frames:  %d\n", run.Summary.DegradedFrames)
	}
	fmt.Printf("  processing time:  %s\n", run.ProcessingTime.Round(time.Millisecond))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
