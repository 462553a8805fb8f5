package recorder

import (
	"fmt"
	"path/filepath"
	"time"
)

// clipFilePath builds the clip filename format from spec.md §4.4:
// YYYYMMDD_HHMMSS_<event_id>.mp4, timestamped in UTC on the time the
// caller passes (the Recorder passes the event's ConfirmedAt).
func clipFilePath(outDir string, detectedAt time.Time, eventID string) string {
	name := fmt.Sprintf("%s_%s.mp4", detectedAt.UTC().Format("20060102_150405"), eventID)
	return filepath.Join(outDir, name)
}
