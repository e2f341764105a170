package segment

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/reaction.report/internal/config"
	"github.com/banshee-data/reaction.report/internal/fsutil"
	"github.com/banshee-data/reaction.report/internal/monitoring"
	"github.com/banshee-data/reaction.report/internal/telemetry"
)

const twoTrials = `time,throttle,brake,steering,speed,ttc
0.1,0.5,0,0,20,3
0.2,0.5,0,0,19,2.5
 Time , THROTTLE,Brake,Steering,Speed,TTC
0.1,0,0.8,1,12,1.2
0.2,0,0.9,abc,11,
0.3,0,1,2,10,0
`

func muteLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func newSegmenter(t *testing.T, files map[string]string) *Segmenter {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	for name, body := range files {
		mfs.WriteFile(name, []byte(body))
	}
	return NewSegmenter(mfs, config.DefaultHeader)
}

func TestSplitFile(t *testing.T) {
	muteLogs(t)
	s := newSegmenter(t, map[string]string{"p3.csv": twoTrials})

	trials, err := s.SplitFile("p3.csv")
	require.NoError(t, err)
	require.Len(t, trials, 2)

	first := trials[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 1, first.Start())
	assert.Equal(t, 2, first.End())
	assert.Equal(t, 19.0, first.Rows[1].Speed)
	assert.Equal(t, 2.5, first.Rows[1].TTC)

	second := trials[1]
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, 4, second.Start(), "indices are file positions, not trial-relative")
	assert.Equal(t, 6, second.End())
	if diff := cmp.Diff([]string{"Time", "THROTTLE", "Brake", "Steering", "Speed", "TTC"}, second.Columns); diff != "" {
		t.Errorf("column names mismatch (-want +got):\n%s", diff)
	}

	row, ok := second.At(5)
	require.True(t, ok)
	assert.True(t, telemetry.IsMissing(row.Steering), "non-numeric cell must be missing")
	assert.True(t, telemetry.IsMissing(row.TTC), "empty cell must be missing")
	assert.Equal(t, 0.9, row.Brake)
}

func TestSplitFileMissingSource(t *testing.T) {
	muteLogs(t)
	s := newSegmenter(t, nil)

	trials, err := s.SplitFile("absent.csv")
	assert.True(t, errors.Is(err, ErrSourceNotFound), "got %v", err)
	assert.Empty(t, trials)
}

func TestSplitFileLogsMarkers(t *testing.T) {
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, format)
	})

	s := newSegmenter(t, map[string]string{"p3.csv": twoTrials})
	_, err := s.SplitFile("p3.csv")
	require.NoError(t, err)
	require.NotEmpty(t, logged)
	assert.True(t, strings.HasPrefix(logged[0], "Header Indices"))
}

func TestIsMarker(t *testing.T) {
	h := config.DefaultHeader
	tests := []struct {
		name string
		rec  []string
		want bool
	}{
		{"exact", []string{"time", "throttle", "brake", "steering", "speed", "ttc"}, true},
		{"case and whitespace", []string{" TIME", "Throttle ", "brake", "Steering", "SPEED", " ttc "}, true},
		{"reordered", []string{"throttle", "time", "brake", "steering", "speed", "ttc"}, false},
		{"missing column", []string{"time", "throttle", "brake", "steering", "speed"}, false},
		{"extra column", []string{"time", "throttle", "brake", "steering", "speed", "ttc", "gear"}, false},
		{"data row", []string{"0.1", "0", "0", "0", "20", "3"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsMarker(tt.rec, h), tt.name)
	}
	assert.False(t, IsMarker(nil, nil), "empty header never matches")
}

func TestSplitPartitionsRows(t *testing.T) {
	body := "junk,row\n" + strings.Repeat(twoTrials, 3)
	records, err := ReadRecords(strings.NewReader(body))
	require.NoError(t, err)

	markers := FindMarkers(records, config.DefaultHeader)
	trials := Split(records, markers)
	require.Len(t, trials, len(markers))
	require.Len(t, trials, 6)

	// Every non-marker row after the first marker belongs to exactly one trial.
	next := markers[0] + 1
	for i, tr := range trials {
		if tr.Len() == 0 {
			continue
		}
		assert.Equal(t, next, tr.Start(), "trial %d start", i+1)
		next = tr.End() + 2 // skip the following marker row
	}
	assert.Equal(t, len(records)+1, next)

	covered := 0
	for _, tr := range trials {
		covered += tr.Len()
	}
	assert.Equal(t, len(records)-markers[0]-len(markers), covered)
}

func TestSplitMarkerOnFirstRow(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(twoTrials))
	require.NoError(t, err)

	markers := FindMarkers(records, config.DefaultHeader)
	require.Equal(t, []int{0, 3}, markers)

	trials := Split(records, markers)
	require.Len(t, trials, 2, "no leading empty trial")
	assert.Equal(t, 1, trials[0].Start())
}

func TestSplitNoMarkers(t *testing.T) {
	records, err := ReadRecords(strings.NewReader("1,2,3\n4,5,6\n"))
	require.NoError(t, err)

	trials := Split(records, FindMarkers(records, config.DefaultHeader))
	assert.Empty(t, trials)
}

func TestSplitAdjacentMarkers(t *testing.T) {
	body := "time,throttle,brake,steering,speed,ttc\ntime,throttle,brake,steering,speed,ttc\n1,0,0,0,5,0\n"
	records, err := ReadRecords(strings.NewReader(body))
	require.NoError(t, err)

	trials := Split(records, FindMarkers(records, config.DefaultHeader))
	require.Len(t, trials, 2)
	assert.Equal(t, 0, trials[0].Len())
	assert.Equal(t, 2, trials[1].Start())
}

func TestSplitShortRow(t *testing.T) {
	body := "time,throttle,brake,steering,speed,ttc\n1,0,0\n"
	records, err := ReadRecords(strings.NewReader(body))
	require.NoError(t, err)

	trials := Split(records, FindMarkers(records, config.DefaultHeader))
	require.Len(t, trials, 1)
	row := trials[0].Rows[0]
	assert.Equal(t, 1.0, row.Time)
	assert.True(t, telemetry.IsMissing(row.Speed))
	assert.True(t, telemetry.IsMissing(row.TTC))
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, 1.5, Coerce(" 1.5 "))
	assert.Equal(t, -7.0, Coerce("-7"))
	assert.Equal(t, 1e-3, Coerce("1e-3"))
	assert.True(t, telemetry.IsMissing(Coerce("")))
	assert.True(t, telemetry.IsMissing(Coerce("n/a")))
	assert.True(t, telemetry.IsMissing(Coerce("NaN")))
}

func TestSplitFile_ByteOrderMark(t *testing.T) {
	muteLogs(t)
	s := newSegmenter(t, map[string]string{"excel.csv": "\ufeff" + twoTrials})

	trials, err := s.SplitFile("excel.csv")
	require.NoError(t, err)
	require.Len(t, trials, 2, "the marker on the first line must survive the BOM")
	assert.Equal(t, 1, trials[0].Start())
	assert.Equal(t, 4, trials[1].Start())
}

func TestReadRecords_StripsLeadingBOMOnly(t *testing.T) {
	records, err := ReadRecords(strings.NewReader("\ufefftime,speed\n1,\ufeff2\n"))
	require.NoError(t, err)
	assert.Equal(t, "time", records[0][0])
	assert.Equal(t, "\ufeff2", records[1][1])
}
