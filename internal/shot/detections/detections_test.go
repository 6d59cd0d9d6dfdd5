package detections

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/shotcall/internal/shot"
)

func drain(t *testing.T, src FrameSource) ([]shot.Frame, error) {
	t.Helper()
	var out []shot.Frame
	for {
		f, err := src.Next(context.Background())
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
}

func TestJSONLSourceGroupsFrames(t *testing.T) {
	t.Parallel()
	input := strings.Join([]string{
		`{"class":"basketball","bbox":[10,10,40,40],"confidence":0.9,"frame_index":0,"timestamp":0}`,
		`{"class":"Basketball_Hoop","bbox":[450,275,550,325],"confidence":0.8,"frame_index":0,"timestamp":0}`,
		``,
		`{"frame_index":1,"timestamp":0.0333}`,
		`{"class":"ball","bbox":[12,14,42,44],"confidence":0.7,"frame_index":2,"timestamp":0.0667}`,
	}, "\n")

	frames, err := drain(t, NewJSONLSource(strings.NewReader(input)))
	require.ErrorIs(t, err, io.EOF)

	want := []shot.Frame{
		{Index: 0, Timestamp: 0, Detections: []shot.Detection{
			{Class: shot.ClassBall, BBox: shot.BBox{10, 10, 40, 40}, Confidence: 0.9},
			{Class: shot.ClassHoop, BBox: shot.BBox{450, 275, 550, 325}, Confidence: 0.8},
		}},
		{Index: 1, Timestamp: 0.0333},
		{Index: 2, Timestamp: 0.0667, Detections: []shot.Detection{
			{Class: shot.ClassBall, BBox: shot.BBox{12, 14, 42, 44}, Confidence: 0.7, FrameIndex: 2, Timestamp: 0.0667},
		}},
	}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONLSourceMalformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bad json", input: `{"class":`, want: "line 1"},
		{name: "unknown class", input: `{"class":"player","bbox":[0,0,1,1],"confidence":0.5,"frame_index":0}`, want: "unknown detection class"},
		{name: "missing frame index", input: `{"class":"ball","bbox":[0,0,1,1],"confidence":0.5}`, want: "missing frame_index"},
		{name: "missing bbox", input: `{"class":"ball","confidence":0.5,"frame_index":3}`, want: "missing bbox"},
		{name: "confidence out of range", input: `{"class":"ball","bbox":[0,0,1,1],"confidence":1.5,"frame_index":3}`, want: "outside [0, 1]"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewJSONLSource(strings.NewReader(tt.input)).Next(context.Background())
			require.ErrorIs(t, err, ErrMalformedDetection)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestJSONLSourceReturnsFrameBeforeError(t *testing.T) {
	t.Parallel()
	input := `{"class":"ball","bbox":[0,0,10,10],"confidence":0.5,"frame_index":0,"timestamp":0}` + "\n" + `not json`
	src := NewJSONLSource(strings.NewReader(input))

	f, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.Index)

	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, ErrMalformedDetection)
	assert.Contains(t, err.Error(), "line 2")

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, ErrMalformedDetection, "errors are sticky")
}

func TestSourcesHonourContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSliceSource([]shot.Frame{{Index: 0}}).Next(ctx)
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = NewJSONLSource(strings.NewReader(`{"frame_index":0}`)).Next(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSliceSource(t *testing.T) {
	t.Parallel()
	frames, err := drain(t, NewSliceSource([]shot.Frame{{Index: 3}, {Index: 4}}))
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, frames, 2)
	assert.Equal(t, int64(4), frames[1].Index)
}

func TestSelectBest(t *testing.T) {
	t.Parallel()
	f := shot.Frame{Detections: []shot.Detection{
		{Class: shot.ClassBall, BBox: shot.BBox{0, 0, 10, 10}, Confidence: 0.3},
		{Class: shot.ClassBall, BBox: shot.BBox{0, 0, 10, 10}, Confidence: 0.6},
		{Class: shot.ClassHoop, BBox: shot.BBox{0, 0, 10, 10}, Confidence: 0.9},
	}}
	d, ok := SelectBest(f, shot.ClassBall, 0.35)
	require.True(t, ok)
	assert.Equal(t, 0.6, d.Confidence)

	_, ok = SelectBest(f, shot.ClassBall, 0.7)
	assert.False(t, ok)
}
