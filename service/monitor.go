package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/ricky22407-lang/Buyer-1/config"
	"github.com/ricky22407-lang/Buyer-1/model"
)

// MonitorState is the capture lifecycle state. There is deliberately no
// paused state: stopping releases everything, starting re-acquires it.
type MonitorState string

const (
	MonitorIdle     MonitorState = "idle"
	MonitorStarting MonitorState = "starting"
	MonitorRunning  MonitorState = "running"
)

// IngestFunc receives an accepted analysis result. The monitor never touches
// the ledger directly.
type IngestFunc func(ctx context.Context, result model.AnalysisResult, source model.OrderSource, group string) IngestSummary

// Monitor owns the periodic capture loop over a live screen feed. Every
// interval it captures one frame, scores it against the previous one, and
// only forwards frames with enough visible change to the extractor. The
// extractor is slow and rate limited; the whole point of this component is
// calling it as rarely as possible.
type Monitor struct {
	provider CaptureProvider
	analyzer Analyzer
	ingest   IngestFunc
	archive  *ArchiveService // optional, may be nil
	context  func() string   // active-product context for the extractor

	interval  time.Duration
	minChange float64
	grid      int
	threshold int
	log       *activityLog

	mu     sync.Mutex
	state  MonitorState
	cancel context.CancelFunc
	source FrameSource
	group  string
	seller string
}

func NewMonitor(cfg *config.MonitorConfig, provider CaptureProvider, analyzer Analyzer, ingest IngestFunc, archive *ArchiveService, productContext func() string) *Monitor {
	return &Monitor{
		provider:  provider,
		analyzer:  analyzer,
		ingest:    ingest,
		archive:   archive,
		context:   productContext,
		interval:  cfg.Interval(),
		minChange: cfg.MinChangePct,
		grid:      cfg.GridSize,
		threshold: cfg.PixelThreshold,
		log:       newActivityLog(cfg.LogLines),
		state:     MonitorIdle,
	}
}

// Start acquires the capture source and begins the periodic loop. It fails
// without side effects when the monitor is not idle or the source cannot be
// acquired.
func (m *Monitor) Start(ctx context.Context, group, seller string) error {
	m.mu.Lock()
	if m.state != MonitorIdle {
		m.mu.Unlock()
		return fmt.Errorf("monitor is %s, not idle", m.state)
	}
	m.state = MonitorStarting
	m.mu.Unlock()

	source, err := m.provider.Acquire(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = MonitorIdle
		m.mu.Unlock()
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.state = MonitorRunning
	m.cancel = cancel
	m.source = source
	m.group = group
	m.seller = seller
	m.mu.Unlock()

	// Each episode scores against its own frame history, so the first
	// captured frame is always treated as fully changed.
	diff := NewFrameDiff(m.grid, m.threshold)

	m.log.add(fmt.Sprintf("monitoring started (%s)", group))
	slog.Info("monitor started", "group", group, "interval", m.interval)

	go m.run(runCtx, source, diff, group, seller)
	return nil
}

// Stop ends the current episode. Safe to call in any state; an analysis
// already in flight for an earlier frame finishes on its own and its result
// still lands in the ledger.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != MonitorRunning {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.cancel = nil
	m.state = MonitorIdle
	m.mu.Unlock()

	cancel()
	m.log.add("monitoring stopped")
	slog.Info("monitor stopped")
}

func (m *Monitor) State() MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Logs returns the recent activity lines, newest first.
func (m *Monitor) Logs() []string {
	return m.log.lines()
}

// run is the Running episode: wait interval, capture, score, maybe analyze.
// Every exit path releases the source and returns the monitor to idle.
func (m *Monitor) run(ctx context.Context, source FrameSource, diff *FrameDiff, group, seller string) {
	defer func() {
		source.Close()
		m.mu.Lock()
		if m.source == source {
			m.source = nil
			m.state = MonitorIdle
			m.cancel = nil
		}
		m.mu.Unlock()
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-source.Done():
			m.log.add("capture source ended externally")
			slog.Info("capture source ended, monitor returning to idle")
			return
		case <-ticker.C:
			m.captureCycle(ctx, source, diff, group, seller)
		}
	}
}

func (m *Monitor) captureCycle(ctx context.Context, source FrameSource, diff *FrameDiff, group, seller string) {
	frame, err := source.Capture(ctx)
	if err != nil {
		// Source-ended errors are handled by the Done select arm on the
		// next loop iteration; everything else is a skipped cycle.
		slog.Warn("frame capture failed", "error", err)
		return
	}

	score := diff.Score(frame)
	if score < m.minChange {
		return
	}

	pngBytes, err := encodePNG(frame)
	if err != nil {
		slog.Warn("frame encode failed", "error", err)
		return
	}

	m.log.add(fmt.Sprintf("screen changed %.1f%%, analyzing...", score))

	// The analysis is deliberately detached from the episode context:
	// stopping the monitor only cancels the periodic trigger, never a call
	// already dispatched for a captured frame.
	go m.analyzeFrame(pngBytes, group, seller)
}

func (m *Monitor) analyzeFrame(pngBytes []byte, group, seller string) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	if m.archive != nil {
		if _, err := m.archive.StoreFrame(ctx, group, pngBytes); err != nil {
			slog.Warn("frame archive failed", "error", err)
		}
	}

	result, err := m.analyzer.Analyze(ctx, AnalyzeInput{
		Images:         [][]byte{pngBytes},
		ProductContext: m.context(),
		Seller:         seller,
	})
	if err != nil {
		m.log.add("analysis failed")
		slog.Warn("frame analysis failed", "group", group, "error", err)
		return
	}

	if result.Empty() {
		m.log.add("no new orders or products")
		return
	}

	sum := m.ingest(ctx, result, model.SourceMonitor, group)
	if sum.OrdersAdded > 0 {
		m.log.add(fmt.Sprintf("found %d new order(s)", sum.OrdersAdded))
	}
	if sum.ProductsAdded > 0 || sum.ProductsMerged > 0 {
		m.log.add(fmt.Sprintf("found %d new / %d updated product(s)", sum.ProductsAdded, sum.ProductsMerged))
	}
}

func encodePNG(f *Frame) ([]byte, error) {
	img := &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// activityLog is a small newest-first ring of operator-facing status lines.
type activityLog struct {
	mu    sync.Mutex
	max   int
	items []string
}

func newActivityLog(max int) *activityLog {
	return &activityLog{max: max}
}

func (l *activityLog) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)
	l.items = append([]string{line}, l.items...)
	if len(l.items) > l.max {
		l.items = l.items[:l.max]
	}
}

func (l *activityLog) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}
