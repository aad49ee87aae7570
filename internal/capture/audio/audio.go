// Package audio captures the system's default render endpoint in loopback
// mode (spec C7), converts frames to stereo 16-bit PCM, and pushes them into
// a bounded queue for the muxer to drain.
package audio

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/boundedqueue"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/cancel"
)

// CapturedAudio is one batch of interleaved stereo 16-bit PCM samples.
type CapturedAudio struct {
	Samples    []int16
	SampleRate uint32
	Channels   uint32
}

// Capture owns the loopback device and the producer goroutine that fills
// the output queue.
type Capture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	token  *cancel.Token
	queue  *boundedqueue.Queue[CapturedAudio]
	done   chan struct{}

	sampleRate   uint32
	sourceFormat malgo.FormatType
	sourceChans  uint32
}

// New opens the default render endpoint in loopback mode and starts
// streaming. queueCapacity bounds the number of CapturedAudio batches
// buffered between producer and muxer.
func New(queueCapacity int) (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("capture/audio: backend log", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("capture/audio: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 2
	deviceConfig.SampleRate = 48000
	deviceConfig.PeriodSizeInMilliseconds = 1000

	c := &Capture{
		ctx:          ctx,
		token:        cancel.New(),
		queue:        boundedqueue.New[CapturedAudio]("audio-capture", queueCapacity),
		done:         make(chan struct{}),
		sampleRate:   deviceConfig.SampleRate,
		sourceFormat: deviceConfig.Capture.Format,
		sourceChans:  deviceConfig.Capture.Channels,
	}

	callbacks := malgo.DeviceCallbacks{
		Data: c.onData,
	}
	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		return nil, fmt.Errorf("capture/audio: init device: %w", err)
	}
	c.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		return nil, fmt.Errorf("capture/audio: start device: %w", err)
	}

	go c.drainLoop()
	return c, nil
}

// onData is invoked by the backend on its own callback thread with already
// mix-formatted frames; we only need the 16-bit conversion and mono->stereo
// duplication, since malgo delivers framed PCM rather than raw WASAPI
// packets.
func (c *Capture) onData(output, input []byte, frameCount uint32) {
	samples := convertToStereoS16(input, c.sourceFormat, c.sourceChans, frameCount)
	if len(samples) == 0 {
		return
	}
	c.queue.Push(CapturedAudio{Samples: samples, SampleRate: c.sampleRate, Channels: 2})
}

// drainLoop exists only to observe the cancellation token on a ~5ms cadence,
// matching the C7 stop handshake; actual data delivery happens on the
// backend's own callback thread via onData.
func (c *Capture) drainLoop() {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if c.token.IsCanceled() {
			close(c.done)
			return
		}
	}
}

// Stop begins the two-step shutdown handshake: signal the flag, then the
// caller must call Join to wait for teardown.
func (c *Capture) Stop() {
	c.token.Cancel()
}

// Join waits for the drain loop to observe cancellation and tears down the
// device and context. The queue survives so a consumer can drain remaining
// items.
func (c *Capture) Join() {
	<-c.done
	if err := c.device.Stop(); err != nil {
		slog.Warn("capture/audio: device stop error", "error", err)
	}
	c.device.Uninit()
	c.ctx.Uninit()
}

// Queue returns the bounded output queue producers push into and consumers
// (the muxer) drain from.
func (c *Capture) Queue() *boundedqueue.Queue[CapturedAudio] {
	return c.queue
}

// convertToStereoS16 converts a raw mix-format buffer to interleaved stereo
// 16-bit PCM: pass-through for already-S16 sources, clamp+scale for F32
// sources, and mono duplication for single-channel sources.
func convertToStereoS16(input []byte, format malgo.FormatType, channels uint32, frameCount uint32) []int16 {
	switch format {
	case malgo.FormatS16:
		mono := decodeS16(input, frameCount*channels)
		return duplicateIfMono(mono, channels)
	case malgo.FormatF32:
		mono := decodeF32AsS16(input, frameCount*channels)
		return duplicateIfMono(mono, channels)
	default:
		slog.Warn("capture/audio: unsupported source format, dropping packet", "format", format)
		return nil
	}
}

func decodeS16(input []byte, sampleCount uint32) []int16 {
	out := make([]int16, 0, sampleCount)
	for i := uint32(0); i+1 < uint32(len(input)) && uint32(len(out)) < sampleCount; i += 2 {
		out = append(out, int16(uint16(input[i])|uint16(input[i+1])<<8))
	}
	return out
}

func decodeF32AsS16(input []byte, sampleCount uint32) []int16 {
	out := make([]int16, 0, sampleCount)
	for i := uint32(0); i+3 < uint32(len(input)) && uint32(len(out)) < sampleCount; i += 4 {
		bits := uint32(input[i]) | uint32(input[i+1])<<8 | uint32(input[i+2])<<16 | uint32(input[i+3])<<24
		f := math.Float32frombits(bits)
		if f > 1.0 {
			f = 1.0
		} else if f < -1.0 {
			f = -1.0
		}
		out = append(out, int16(f*32767))
	}
	return out
}

func duplicateIfMono(samples []int16, channels uint32) []int16 {
	if channels != 1 {
		return samples
	}
	out := make([]int16, 0, len(samples)*2)
	for _, s := range samples {
		out = append(out, s, s)
	}
	return out
}
