package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/stockvision/internal/analysis"
	"github.com/ayusman/stockvision/internal/detector"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{65, "01:05"},
		{599.9, "09:59"},
		{3600, "01:00:00"},
		{3700, "01:01:40"},
		{7325, "02:02:05"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimestamp(tt.seconds), "seconds=%v", tt.seconds)
	}
}

func TestWriteCSV(t *testing.T) {
	results := []analysis.FrameResult{
		{
			FrameIndex: 0,
			Timestamp:  0,
			Detections: []detector.Detection{
				{Label: "medibox", Score: 0.912, Box: detector.BoundingBox{X1: 10, Y1: 20, X2: 30, Y2: 40}},
				{Label: "medibox", Score: 0.507, Box: detector.BoundingBox{X1: 50, Y1: 60, X2: 70, Y2: 80}},
			},
			Count: 2,
		},
		{
			FrameIndex: 150,
			Timestamp:  5,
			Detections: []detector.Detection{},
			Count:      0,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"Frame_Index", "Timestamp_Seconds", "Timestamp_Formatted",
		"Object_Count", "Detection_Details",
	}, records[0])

	first := records[1]
	assert.Equal(t, "0", first[0])
	assert.Equal(t, "00:00", first[2])
	assert.Equal(t, "2", first[3])
	assert.Equal(t, "Object_1:(10,20,30,40):conf_0.912;Object_2:(50,60,70,80):conf_0.507", first[4])

	second := records[2]
	assert.Equal(t, "150", second[0])
	assert.Equal(t, "5", second[1])
	assert.Equal(t, "00:05", second[2])
	assert.Equal(t, "0", second[3])
	assert.Equal(t, "", second[4])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1, "header only")
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "warehouse_results.csv",
		Filename(&analysis.Run{SourceName: "warehouse.mp4"}))
	assert.Equal(t, "clip_results.csv",
		Filename(&analysis.Run{SourceName: "clip.webm"}))
	assert.Equal(t, "analysis_results.csv",
		Filename(&analysis.Run{SourceName: ""}))
}
