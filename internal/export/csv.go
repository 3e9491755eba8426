// Package export flattens analysis runs into tabular form for offline use.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ayusman/stockvision/internal/analysis"
)

// csvHeader is the column layout consumed by downstream spreadsheets.
var csvHeader = []string{
	"Frame_Index",
	"Timestamp_Seconds",
	"Timestamp_Formatted",
	"Object_Count",
	"Detection_Details",
}

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS past the hour.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// WriteCSV writes one row per frame result to w.
func WriteCSV(w io.Writer, results []analysis.FrameResult) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, fr := range results {
		details := make([]string, 0, len(fr.Detections))
		for i, d := range fr.Detections {
			details = append(details, fmt.Sprintf("Object_%d:(%d,%d,%d,%d):conf_%.3f",
				i+1, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2, d.Score))
		}

		row := []string{
			strconv.Itoa(fr.FrameIndex),
			strconv.FormatFloat(fr.Timestamp, 'f', -1, 64),
			FormatTimestamp(fr.Timestamp),
			strconv.Itoa(fr.Count),
			strings.Join(details, ";"),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// Filename suggests a download filename for a run's CSV export.
func Filename(run *analysis.Run) string {
	base := strings.TrimSuffix(run.SourceName, ".mp4")
	base = strings.TrimSuffix(base, ".webm")
	base = strings.TrimSuffix(base, ".ogg")
	if base == "" {
		base = "analysis"
	}
	return fmt.Sprintf("%s_results.csv", base)
}
