// report.go writes the batch summary report (spec C11, grounded on
// write_report in batch_audiobooks_window.rs): CRLF-joined lines, one
// status/input/output/error block per result.
package audiobook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const reportFileName = "audiobook_batch_report.txt"

func writeReport(outputFolder string, voice Voice, format Format, split SplitConfig, results []resultItem) (string, error) {
	var lines []string
	lines = append(lines, fmt.Sprintf("Batch report - %s", time.Now().Format("2006-01-02 15:04:05")))
	lines = append(lines, fmt.Sprintf("Voice: %s", voice.ID))
	lines = append(lines, fmt.Sprintf("Format: %s", strings.ToUpper(string(format))))
	lines = append(lines, splitDescription(split))
	lines = append(lines, "")

	for _, item := range results {
		lines = append(lines, fmt.Sprintf("%s - %s", statusLabel(item.status), item.input))
		for _, out := range item.outputs {
			lines = append(lines, fmt.Sprintf("  Output: %s", out))
		}
		if item.errMsg != "" {
			lines = append(lines, fmt.Sprintf("  Error: %s", item.errMsg))
		}
		lines = append(lines, "")
	}

	reportPath := filepath.Join(outputFolder, reportFileName)
	if err := os.WriteFile(reportPath, []byte(strings.Join(lines, "\r\n")), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return reportPath, nil
}

func splitDescription(split SplitConfig) string {
	if split.SplitByMarker {
		return fmt.Sprintf("Split by text: %s", split.Marker)
	}
	if split.PartCount == 0 {
		return "Split: disabled"
	}
	return fmt.Sprintf("Split parts: %d", split.PartCount)
}

func statusLabel(s Status) string {
	switch s {
	case StatusDone:
		return "Done"
	case StatusFailed:
		return "Failed"
	case StatusCanceled:
		return "Canceled"
	case StatusRunning:
		return "Running"
	default:
		return "Pending"
	}
}
