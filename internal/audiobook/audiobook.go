// Package audiobook runs the batch audiobook export job (spec C11): per
// input file it extracts text via internal/extract, segments it, drives an
// injected TTS engine per segment, and reports status/progress/log events
// through bounded queues the owner polls. Grounded throughout on
// run_batch/export_single_audiobook/export_parts/write_report in
// batch_audiobooks_window.rs.
package audiobook

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/boundedqueue"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/cancel"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/extract"
)

// Status is a per-file state in the Pending -> Running -> {Done, Failed,
// Canceled} machine.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

const (
	maxRetryAttempts = 3 // initial attempt plus two retries
	retryWaitFirst   = 1 * time.Second
	retryWaitLater   = 3 * time.Second
)

// Engine synthesizes the chunks of one output part into the audio file at
// output; a real implementation drives an external TTS process or SDK. No TTS vendor is named (Non-goal): Engine is the seam
// every concrete backend implements.
type Engine interface {
	Synthesize(ctx context.Context, chunks []string, voice Voice, output string, cancel *cancel.Token) error
}

// Voice carries the TTS knobs the original exposes per job (voice id,
// pitch/rate/volume); split mode and the pronunciation dictionary are
// handled by the splitter, not the engine.
type Voice struct {
	ID     string
	Rate   int
	Pitch  int
	Volume int
}

// SplitConfig selects between uniform split-by-count and marker-anchored
// splitting.
type SplitConfig struct {
	SplitByMarker        bool
	Marker               string
	MarkerRequiresNewline bool
	PartCount            int
}

// StatusUpdate, LogMessage, and ProgressUpdate are the three event types
// posted to the Events queue; the caller's UI polls and renders them.
type StatusUpdate struct {
	Index  int
	Status Status
	Output string
}

type LogMessage struct {
	Line string
}

type ProgressUpdate struct {
	Completed int
	Total     int
}

// Done is posted once after every input has been processed and the report
// has been written.
type Done struct {
	ReportPath string
}

// Event wraps exactly one of the above in the shared queue.
type Event struct {
	Status   *StatusUpdate
	Log      *LogMessage
	Progress *ProgressUpdate
	Done     *Done
}

// Job is one batch audiobook export run.
type Job struct {
	Inputs  []string
	Output  OutputOptions
	Split   SplitConfig
	Voice   Voice
	Engine  Engine
	Events  *boundedqueue.Queue[Event]
	Cancel  *cancel.Token
}

type resultItem struct {
	input   string
	status  Status
	outputs []string
	errMsg  string
}

// Run executes the batch synchronously, posting events to Job.Events as it
// goes. Call it from its own goroutine to match the original's background
// worker thread.
func Run(ctx context.Context, job Job) {
	total := len(job.Inputs)
	completed := 0
	var results []resultItem

	for index, input := range job.Inputs {
		if job.Cancel.IsCanceled() {
			postStatus(job.Events, index, StatusCanceled, "")
			results = append(results, resultItem{input: input, status: StatusCanceled})
			continue
		}

		postStatus(job.Events, index, StatusRunning, "")

		var outputs []string
		var lastErr string
		succeeded := false
		attempts := 0
		for {
			attempts++
			out, err := exportSingle(ctx, input, job)
			if err == nil {
				outputs = out
				succeeded = true
				break
			}
			lastErr = err.Error()
			transient := isTransientError(lastErr)
			if transient && attempts < maxRetryAttempts && !job.Cancel.IsCanceled() {
				postLog(job.Events, fmt.Sprintf("retrying %s: %s", input, lastErr))
				wait := retryWaitFirst
				if attempts > 1 {
					wait = retryWaitLater
				}
				postLog(job.Events, fmt.Sprintf("waiting %s before retry", wait))
				time.Sleep(wait)
				continue
			}
			break
		}

		switch {
		case succeeded:
			completed++
			postStatus(job.Events, index, StatusDone, outputLabel(outputs))
			postLog(job.Events, fmt.Sprintf("done: %s", input))
			results = append(results, resultItem{input: input, status: StatusDone, outputs: outputs})
		case job.Cancel.IsCanceled():
			// Cancellation is never reported as a failure (spec §7): a
			// cancel observed mid-exportSingle surfaces here as a generic
			// error, but the terminal state must still be Canceled.
			postStatus(job.Events, index, StatusCanceled, "")
			results = append(results, resultItem{input: input, status: StatusCanceled})
		default:
			postStatus(job.Events, index, StatusFailed, "")
			postLog(job.Events, fmt.Sprintf("failed: %s: %s", input, lastErr))
			if isAntivirusRelated(lastErr) {
				postLog(job.Events, "this may be caused by antivirus software locking the file")
			}
			results = append(results, resultItem{input: input, status: StatusFailed, errMsg: lastErr})
		}

		postProgress(job.Events, completed, total)
	}

	reportPath, _ := writeReport(job.Output.OutputFolder, job.Voice, job.Output.Format, job.Split, results)
	postDone(job.Events, reportPath)
}

func outputLabel(outputs []string) string {
	if len(outputs) > 1 {
		return fmt.Sprintf("%d files", len(outputs))
	}
	if len(outputs) == 1 {
		return outputs[0]
	}
	return ""
}

func exportSingle(ctx context.Context, input string, job Job) ([]string, error) {
	raw, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	text, err := extract.Text(input, raw)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text found")
	}

	cleaned := stripDashedLines(text)
	parts := buildParts(cleaned, job.Split)
	if len(parts) == 0 {
		return nil, fmt.Errorf("no text found")
	}

	outputs, err := buildOutputPaths(input, len(parts), job.Output)
	if err != nil {
		return nil, err
	}

	if err := exportParts(ctx, parts, outputs, job); err != nil {
		if !job.Cancel.IsCanceled() {
			cleanupPartialOutputs(outputs)
		}
		return nil, err
	}
	return outputs, nil
}

func buildParts(text string, split SplitConfig) [][]string {
	if split.SplitByMarker {
		positions := collectMarkerPositions(text, split.Marker, split.MarkerRequiresNewline)
		return buildPartsByPositions(text, positions)
	}
	chunks := splitText(text)
	return splitChunksByCount(chunks, split.PartCount)
}

func exportParts(ctx context.Context, parts [][]string, outputs []string, job Job) error {
	if len(parts) != len(outputs) {
		return fmt.Errorf("output count mismatch")
	}
	for i, chunks := range parts {
		if job.Cancel.IsCanceled() {
			return fmt.Errorf("canceled")
		}
		if err := job.Engine.Synthesize(ctx, chunks, job.Voice, outputs[i], job.Cancel); err != nil {
			return err
		}
	}
	return nil
}

func cleanupPartialOutputs(outputs []string) {
	for _, path := range outputs {
		_ = os.Remove(path)
	}
}

func postStatus(q *boundedqueue.Queue[Event], index int, status Status, output string) {
	q.Push(Event{Status: &StatusUpdate{Index: index, Status: status, Output: output}})
}

func postLog(q *boundedqueue.Queue[Event], line string) {
	q.Push(Event{Log: &LogMessage{Line: line}})
}

func postProgress(q *boundedqueue.Queue[Event], completed, total int) {
	q.Push(Event{Progress: &ProgressUpdate{Completed: completed, Total: total}})
}

func postDone(q *boundedqueue.Queue[Event], reportPath string) {
	q.Push(Event{Done: &Done{ReportPath: reportPath}})
}
