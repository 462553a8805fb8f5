// Package pipeline wires together the ring buffer, detector, rule
// evaluator, smoothing filter, escalation machine, recorder, skeleton
// pipeline, and event store into the agent's single capture loop
// (spec.md §9's end-to-end flow). It is the direct descendant of
// cmd/octoreflex/main.go's runWorker: one loop consuming a stream of
// inputs (kernel events there, camera frames here), driving a state
// machine, fed by or feeding the same handful of long-lived
// collaborators constructed once at startup.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kionce57/falldetect/contrib"
	"github.com/kionce57/falldetect/internal/capture"
	"github.com/kionce57/falldetect/internal/config"
	"github.com/kionce57/falldetect/internal/detection"
	"github.com/kionce57/falldetect/internal/escalation"
	"github.com/kionce57/falldetect/internal/observability"
	"github.com/kionce57/falldetect/internal/recorder"
	"github.com/kionce57/falldetect/internal/ringbuffer"
	"github.com/kionce57/falldetect/internal/rule"
	"github.com/kionce57/falldetect/internal/skeleton"
	"github.com/kionce57/falldetect/internal/smoothing"
	"github.com/kionce57/falldetect/internal/store"
)

// Conductor owns the capture loop and every long-lived collaborator it
// drives. Construct with New, run with Run, release resources with
// Close.
type Conductor struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *observability.Metrics
	db      *store.DB

	buf       *ringbuffer.Buffer
	source    capture.Source
	detector  detection.Detector
	smoother  *smoothing.Filter
	machine   *escalation.Machine
	rec       *recorder.Recorder
	extractor *skeleton.Extractor
	collector *skeleton.Collector

	bboxTh rule.BBoxThresholds
	poseTh rule.PoseThresholds

	lastTS float64
}

// New builds a Conductor from configuration. The caller retains ownership
// of db and source and must close them appropriately; New does not open
// or close the database.
func New(cfg *config.Config, db *store.DB, metrics *observability.Metrics, source capture.Source, log *zap.Logger) (*Conductor, error) {
	engine, err := contrib.BuildEngine(cfg.Detection.Engine, contrib.EngineConfig{
		ModelPath: cfg.Detection.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: build detection engine: %w", err)
	}

	var det detection.Detector
	if cfg.Detection.UsePose {
		var opts []detection.PoseDetectorOption
		if cfg.Detection.Confidence > 0 {
			opts = append(opts, detection.WithPoseConfidenceFloor(cfg.Detection.Confidence))
		}
		det = detection.NewPoseDetector(engine, log, opts...)
	} else {
		var opts []detection.BBoxDetectorOption
		if cfg.Detection.Confidence > 0 {
			opts = append(opts, detection.WithConfidenceFloor(cfg.Detection.Confidence))
		}
		det = detection.NewBBoxDetector(engine, log, opts...)
	}

	var smoother *smoothing.Filter
	if cfg.Detection.EnableSmoothing {
		smoother, err = smoothing.New(cfg.Detection.SmoothingMinCutoff, cfg.Detection.SmoothingBeta, 1.0)
		if err != nil {
			return nil, fmt.Errorf("pipeline: build smoothing filter: %w", err)
		}
	}

	bufCap := ringbuffer.Capacity(cfg.Recording.BufferSeconds, cfg.Camera.FPS)
	buf := ringbuffer.New(bufCap)

	if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: create clip output dir: %w", err)
	}

	onClip := func(eventID, clipPath string) error {
		metrics.ClipsRecordedTotal.Inc()
		return db.SetClipPath(eventID, clipPath)
	}
	rec := recorder.New(buf, recorder.NewFFmpegEncoder(cfg.Camera.FPS), cfg.Recording.OutputDir,
		cfg.Recording.ClipBeforeSec, cfg.Recording.ClipAfterSec, onClip, log)
	rec.SetSkippedHook(func(eventID, reason string) {
		metrics.ClipsSkippedTotal.WithLabelValues(reason).Inc()
	})

	observers := []interface{}{rec, newStoreObserver(db, log), newMetricsObserver(metrics)}

	var extractor *skeleton.Extractor
	var collector *skeleton.Collector
	if cfg.Lifecycle.AutoSkeletonExtract {
		writer := skeleton.NewFileWriter(cfg.Lifecycle.SkeletonOutputDir)
		extractor = skeleton.NewExtractor(writer, 64, 2, log)
		extractor.SetOutcomeHook(func(outcome string) {
			metrics.ExtractionsTotal.WithLabelValues(outcome).Inc()
		})
		extractor.SetDroppedHook(func() {
			metrics.ExtractionsTotal.WithLabelValues("dropped").Inc()
		})
		extractor.SetWrittenHook(func(eventID, path string) {
			if err := db.SetUploadStatus(eventID, "", store.UploadPending, ""); err != nil {
				log.Error("failed to mark skeleton upload pending",
					zap.String("event_id", eventID), zap.String("path", path), zap.Error(err))
			}
		})
		collector = skeleton.NewCollector(extractor, "default", float64(cfg.Camera.FPS))
		observers = append(observers, collector)
	}

	machine := escalation.New(escalation.Config{
		DelaySec:         cfg.Analysis.DelaySec,
		SameEventWindow:  cfg.Analysis.SameEventWindow,
		ReNotifyInterval: cfg.Analysis.ReNotifyInterval,
	}, observers...)

	bboxTh := rule.DefaultBBoxThresholds()
	bboxTh.FallThreshold = cfg.Analysis.FallThreshold
	poseTh := rule.DefaultPoseThresholds()

	return &Conductor{
		cfg: cfg, log: log, metrics: metrics, db: db,
		buf: buf, source: source, detector: det, smoother: smoother,
		machine: machine, rec: rec, extractor: extractor, collector: collector,
		bboxTh: bboxTh, poseTh: poseTh,
	}, nil
}

// Run starts the capture loop and blocks until ctx is cancelled or the
// frame source exhausts itself.
func (c *Conductor) Run(ctx context.Context) error {
	frames, err := c.source.Frames(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: start capture: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			c.processFrame(f)
		}
	}
}

func (c *Conductor) processFrame(f capture.Frame) {
	now := time.Now()
	ts := ringbuffer.UnixSeconds(now)

	c.buf.Push(ringbuffer.Frame{Timestamp: ts, Image: f.Image, Width: f.Width, Height: f.Height})
	c.metrics.BufferDepth.Set(float64(c.buf.Len()))

	start := time.Now()
	detections := c.detector.Detect(context.Background(), f.Image, f.Width, f.Height)
	c.metrics.DetectionLatencyHist.Observe(time.Since(start).Seconds())
	c.metrics.DetectionsTotal.WithLabelValues(c.detector.Kind().String()).Inc()

	if len(detections) == 0 {
		c.metrics.DetectionEmptyTotal.Inc()
		c.reportErrors(c.machine.Update(false, 0, now))
		return
	}

	// Single-subject tracking: the first detection this frame, in the
	// order the detector returned them, drives the state machine
	// (spec.md §3 — one camera, one tracked subject at a time).
	d := detections[0]

	if d.Kind == detection.KindSkeleton {
		if c.smoother != nil {
			dt := ts - c.lastTS
			d.Skeleton = c.smoother.Apply(d.Skeleton, dt)
		}
		if c.collector != nil {
			c.collector.AddSample(ts, d.Skeleton)
		}
	}
	c.lastTS = ts

	observed := rule.Evaluate(d, c.bboxTh, c.poseTh)
	confidence := 0.0
	switch d.Kind {
	case detection.KindSkeleton:
		confidence = rule.PoseConfidence(d.Skeleton, c.poseTh)
	case detection.KindBBox:
		if observed {
			confidence = 1.0
		}
	}

	c.reportErrors(c.machine.Update(observed, confidence, now))
}

func (c *Conductor) reportErrors(errs []error) {
	for _, err := range errs {
		c.log.Error("escalation observer error", zap.Error(err))
	}
}

// Close releases the conductor's own long-lived collaborators (recorder
// timers, skeleton extraction workers). It does not close the database
// or the capture source, which the caller owns.
func (c *Conductor) Close() {
	c.rec.Close()
	if c.extractor != nil {
		c.extractor.Close()
	}
}
