// Package mux implements the A/V muxer (spec C9): a single encoder thread
// that drains bounded video/audio queues into an ffmpeg subprocess over two
// pipes, tracking audio timestamp as ground truth for synchronization and
// discarding audio that falls too far behind video at shutdown.
//
// The subprocess-pipe idiom is carried over from the teacher's
// processAudioWithFFmpeg: shell out, stream bytes, wrap CombinedOutput
// errors.
package mux

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/boundedqueue"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/capture/audio"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/capture/video"
)

const maxAudioLag100ns = 150_000_000 // 15s in 100-ns units

// Muxer owns the ffmpeg subprocess and the encode loop.
type Muxer struct {
	videoQueue *boundedqueue.Queue[video.CapturedFrame]
	audioQueue *boundedqueue.Queue[audio.CapturedAudio]

	stop atomic.Bool
	done chan error

	lastVideoTS     int64
	audioTimestamp  int64
	framesEncoded   int64
	recycleFrame    func(video.CapturedFrame)
}

// Config carries the output path and encoding parameters passed to ffmpeg.
type Config struct {
	OutputPath string
	Width      int
	Height     int
	FPS        int
	SampleRate int
	Channels   int
}

// New builds a Muxer over the two queues; nothing runs until Start, after
// which the recording session owner calls Stop and then Join.
func New(videoQueue *boundedqueue.Queue[video.CapturedFrame], audioQueue *boundedqueue.Queue[audio.CapturedAudio], recycleFrame func(video.CapturedFrame)) *Muxer {
	return &Muxer{
		videoQueue:   videoQueue,
		audioQueue:   audioQueue,
		done:         make(chan error, 1),
		recycleFrame: recycleFrame,
	}
}

// Start launches the encoder goroutine against an ffmpeg subprocess
// configured by cfg. The caller must eventually call Stop then Join.
func (m *Muxer) Start(ctx context.Context, cfg Config) {
	go m.run(ctx, cfg)
}

// Stop requests drain-and-finalize; it does not block.
func (m *Muxer) Stop() {
	m.stop.Store(true)
}

// Join blocks until the encoder loop has finalized the output file and
// returns its terminal error, if any. Per the shutdown contract, Join must
// be called before the video/audio capture producers are torn down.
func (m *Muxer) Join() error {
	return <-m.done
}

// FramesEncoded reports the number of video frames written so far.
func (m *Muxer) FramesEncoded() int64 {
	return atomic.LoadInt64(&m.framesEncoded)
}

func (m *Muxer) run(ctx context.Context, cfg Config) {
	cmd, videoPipe, audioPipe, audioReadEnd, stdinErr := buildFFmpegCommand(ctx, cfg)
	if stdinErr != nil {
		m.done <- fmt.Errorf("mux: build ffmpeg command: %w", stdinErr)
		return
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		m.done <- fmt.Errorf("mux: start ffmpeg: %w", err)
		return
	}
	// The child has its own copy of the audio pipe's read end; the parent
	// must close its copy or ffmpeg never sees EOF on pipe:3.
	audioReadEnd.Close()

	m.encodeLoop(videoPipe, audioPipe, cfg)

	videoPipe.Close()
	audioPipe.Close()

	if err := cmd.Wait(); err != nil {
		m.done <- fmt.Errorf("mux: ffmpeg finalize failed: %w: %s", err, stderr.String())
		return
	}
	m.done <- nil
}

// encodeLoop implements the §4.9 loop policy exactly.
func (m *Muxer) encodeLoop(videoOut, audioOut io.Writer, cfg Config) {
	for {
		stopping := m.stop.Load()

		if stopping && m.videoQueue.IsEmpty() && m.audioQueue.IsEmpty() {
			time.Sleep(100 * time.Millisecond)
			if m.videoQueue.IsEmpty() && m.audioQueue.IsEmpty() {
				return
			}
			continue
		}

		videoTimeout := 30 * time.Millisecond
		if stopping {
			videoTimeout = 10 * time.Millisecond
		}
		if frame, ok := m.videoQueue.Pop(videoTimeout); ok {
			if frame.Timestamp > m.lastVideoTS {
				if _, err := videoOut.Write(frame.Buffer); err != nil {
					slog.Warn("mux: video write error", "error", err)
				} else {
					m.lastVideoTS = frame.Timestamp
					atomic.AddInt64(&m.framesEncoded, 1)
				}
			}
			if m.recycleFrame != nil {
				m.recycleFrame(frame)
			}
		}

		lag := m.lastVideoTS - m.audioTimestamp
		mayWriteAudio := !stopping || (m.audioTimestamp <= m.lastVideoTS && lag < maxAudioLag100ns)

		if stopping && !mayWriteAudio {
			discarded := m.drainAudioQueue()
			if discarded > 0 {
				slog.Warn("mux: discarding lagging audio at shutdown", "discarded_batches", discarded, "lag_100ns", lag)
			}
			continue
		}

		if !mayWriteAudio {
			continue
		}

		audioTimeout := 10 * time.Millisecond
		if stopping {
			audioTimeout = 5 * time.Millisecond
		}
		if batch, ok := m.audioQueue.Pop(audioTimeout); ok {
			if err := writePCM(audioOut, batch.Samples); err != nil {
				slog.Warn("mux: audio write error", "error", err)
			} else {
				samplesPerChannel := len(batch.Samples) / max1(int(batch.Channels))
				m.audioTimestamp += int64(samplesPerChannel) * 10_000_000 / int64(max1(int(batch.SampleRate)))
			}
		}
	}
}

func (m *Muxer) drainAudioQueue() int {
	count := 0
	for {
		if _, ok := m.audioQueue.Pop(time.Millisecond); !ok {
			return count
		}
		count++
	}
}

func writePCM(w io.Writer, samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[2*i] = byte(uint16(s))
		buf[2*i+1] = byte(uint16(s) >> 8)
	}
	_, err := w.Write(buf)
	return err
}

func max1(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

// buildFFmpegCommand configures an ffmpeg subprocess with two named-pipe-like
// stdin streams multiplexed onto two os/exec StdinPipes is not possible
// directly (a process has one stdin); we instead open ffmpeg with the video
// stream on stdin and the audio stream through an extra pipe file descriptor
// via "-i pipe:3", matching the two-pipe design used by comparable
// subprocess-based muxers in the ecosystem.
func buildFFmpegCommand(ctx context.Context, cfg Config) (*exec.Cmd, io.WriteCloser, io.WriteCloser, *os.File, error) {
	videoSize := fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	args := []string{
		"-y",
		"-f", "rawvideo", "-pix_fmt", "bgra", "-s", videoSize, "-r", fmt.Sprintf("%d", cfg.FPS), "-i", "pipe:0",
		"-f", "s16le", "-ar", fmt.Sprintf("%d", cfg.SampleRate), "-ac", fmt.Sprintf("%d", cfg.Channels), "-i", "pipe:3",
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		cfg.OutputPath,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	videoPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("mux: open video stdin pipe: %w", err)
	}

	audioReadEnd, audioWriter, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("mux: open audio pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{audioReadEnd}

	return cmd, videoPipe, audioWriter, audioReadEnd, nil
}
