// Package video models the frame producer side of C8: a stream of
// BGRA-normalized CapturedFrames at the monitor's native resolution, with
// monotonic timestamps recorded at arrival, and a recycled buffer pool so
// the hot path never allocates in steady state.
//
// The platform-specific desktop-duplication/screen-capture call is injected
// via Source so this package stays testable without a display.
package video

import (
	"log/slog"
	"sync"
	"time"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/boundedqueue"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/cancel"
)

// CapturedFrame is one BGRA frame with its arrival timestamp in 100-ns
// units, matching the A/V muxer's clock domain.
type CapturedFrame struct {
	Buffer    []byte
	Width     int
	Height    int
	Timestamp int64
}

// Source is the platform capture primitive: it blocks until a frame is
// ready, fills buf (sized Width*Height*4), and reports whether a frame was
// produced. A false ok with a nil error skips the frame silently; a non-nil
// error is logged and the frame skipped, and more than 10 consecutive errors
// end the capture loop.
type Source interface {
	Width() int
	Height() int
	ReadInto(buf []byte) (ok bool, err error)
	Close() error
}

// Capture drives a Source, recycling frame buffers through a sync.Pool and
// pushing CapturedFrames into a bounded, drop-oldest queue.
type Capture struct {
	source Source
	token  *cancel.Token
	queue  *boundedqueue.Queue[CapturedFrame]
	pool   *sync.Pool
	done   chan struct{}
	clock  func() int64
}

// New starts the capture loop against source, producing frames into a
// bounded queue of the given capacity. Frame timestamps are 100-ns ticks
// elapsed since this call, not wall-clock time, matching the muxer's
// sample-count-derived audio clock (spec §3/C8: "a monotonic clock starting
// at stream open").
func New(source Source, queueCapacity int) *Capture {
	frameSize := source.Width() * source.Height() * 4
	baseline := monotonicNow()
	c := &Capture{
		source: source,
		token:  cancel.New(),
		queue:  boundedqueue.New[CapturedFrame]("video-capture", queueCapacity),
		pool: &sync.Pool{
			New: func() any { return make([]byte, frameSize) },
		},
		done:  make(chan struct{}),
		clock: func() int64 { return monotonicNow() - baseline },
	}
	go c.run()
	return c
}

func (c *Capture) run() {
	defer close(c.done)
	var consecutiveErrors int
	for !c.token.IsCanceled() {
		buf := c.pool.Get().([]byte)
		ok, err := c.source.ReadInto(buf)
		if err != nil {
			consecutiveErrors++
			slog.Warn("capture/video: read error", "error", err, "consecutive", consecutiveErrors)
			c.pool.Put(buf)
			if consecutiveErrors > 10 {
				return
			}
			continue
		}
		consecutiveErrors = 0
		if !ok {
			c.pool.Put(buf)
			continue
		}
		frame := CapturedFrame{
			Buffer:    buf,
			Width:     c.source.Width(),
			Height:    c.source.Height(),
			Timestamp: c.clock(),
		}
		c.queue.Push(frame)
	}
}

// Recycle returns a frame's buffer to the pool once the muxer is done
// encoding it.
func (c *Capture) Recycle(f CapturedFrame) {
	c.pool.Put(f.Buffer)
}

// Stop signals the capture loop to exit on its next iteration.
func (c *Capture) Stop() {
	c.token.Cancel()
}

// Join waits for the capture loop to exit and releases the source.
func (c *Capture) Join() {
	<-c.done
	if err := c.source.Close(); err != nil {
		slog.Warn("capture/video: source close error", "error", err)
	}
}

// Queue returns the bounded, drop-oldest output queue.
func (c *Capture) Queue() *boundedqueue.Queue[CapturedFrame] {
	return c.queue
}

// processStart anchors monotonicNow; time.Since uses the monotonic clock
// reading carried by time.Now, so wall-clock adjustments do not affect it.
var processStart = time.Now()

func monotonicNow() int64 {
	return int64(time.Since(processStart) / 100)
}
