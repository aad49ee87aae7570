// errors.go classifies export failures by substring match (spec C11,
// grounded on is_transient_error/is_antivirus_related in
// batch_audiobooks_window.rs) to drive the retry policy and the
// antivirus-hint log line.
package audiobook

import "strings"

var transientMarkers = []string{
	"timeout", "tempor", "websocket", "connection",
	"rate limit", "429", "502", "503", "service unavailable",
}

var antivirusMarkers = []string{
	"access is denied", "permission", "cannot access the file", "blocked",
}

func isTransientError(err string) bool {
	lower := strings.ToLower(err)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isAntivirusRelated(err string) bool {
	lower := strings.ToLower(err)
	for _, marker := range antivirusMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
