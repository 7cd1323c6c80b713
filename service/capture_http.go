package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"
	"time"
)

// CaptureProvider acquires a live frame source. Acquisition can fail (agent
// unreachable, capture permission revoked at the OS level); the monitor
// surfaces that and stays idle.
type CaptureProvider interface {
	Acquire(ctx context.Context) (FrameSource, error)
}

// FrameSource is one exclusive capture session. Capture returns the current
// frame; Done is closed when the source ends externally (the operator
// revoked sharing on the agent side); Close releases the session and is
// safe to call more than once.
type FrameSource interface {
	Capture(ctx context.Context) (*Frame, error)
	Done() <-chan struct{}
	Close() error
}

// SnapshotProvider talks to a screen-mirror agent over HTTP. The agent
// serves the current screen as PNG/JPEG on GET <url>, holds the device
// awake while POST <url>/wake-lock is active, and answers 410 Gone once the
// operator stops sharing.
type SnapshotProvider struct {
	URL    string
	client *http.Client
}

func NewSnapshotProvider(url string) *SnapshotProvider {
	return &SnapshotProvider{
		URL:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *SnapshotProvider) Acquire(ctx context.Context) (FrameSource, error) {
	src := &httpFrameSource{
		url:    p.URL,
		client: p.client,
		done:   make(chan struct{}),
	}

	// Probe once so permission problems surface at start, not mid-episode.
	if _, err := src.Capture(ctx); err != nil {
		return nil, fmt.Errorf("capture source unavailable: %w", err)
	}

	// Best-effort wake lock; agents without the endpoint still work.
	req, err := http.NewRequestWithContext(ctx, "POST", p.URL+"/wake-lock", nil)
	if err == nil {
		if resp, err := p.client.Do(req); err == nil {
			resp.Body.Close()
			src.wakeLocked = resp.StatusCode < 300
		}
	}

	return src, nil
}

type httpFrameSource struct {
	url        string
	client     *http.Client
	wakeLocked bool

	// An external end (410 Gone) closes done but must not consume the
	// wake-lock release: the agent answering 410 is still alive and holding
	// the device awake until Close tells it to let go.
	endOnce     sync.Once
	releaseOnce sync.Once
	done        chan struct{}
}

func (s *httpFrameSource) Capture(ctx context.Context) (*Frame, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		// The operator stopped sharing on the agent side.
		s.signalEnded()
		return nil, fmt.Errorf("capture source ended")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot agent returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	return frameFromImage(img), nil
}

func (s *httpFrameSource) Done() <-chan struct{} {
	return s.done
}

func (s *httpFrameSource) Close() error {
	s.endOnce.Do(func() {
		close(s.done)
	})
	s.releaseOnce.Do(func() {
		if !s.wakeLocked {
			return
		}
		// Release is best-effort; a dead agent released it anyway.
		req, err := http.NewRequest("DELETE", s.url+"/wake-lock", nil)
		if err == nil {
			if resp, err := s.client.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	})
	return nil
}

// signalEnded marks the stream finished without releasing the wake lock.
// An agent that reports 410 is still running; the lock stays held until
// the monitor calls Close.
func (s *httpFrameSource) signalEnded() {
	s.endOnce.Do(func() {
		close(s.done)
	})
}

// frameFromImage converts any decoded image into the RGBA frame layout the
// differ expects.
func frameFromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return &Frame{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pix:    rgba.Pix,
	}
}
