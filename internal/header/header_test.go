package header

import (
	"errors"
	"testing"
	"time"

	aerrors "github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func floatPtr(f float64) *float64 { return &f }

func TestNewSchemeInfersDType(t *testing.T) {
	s, err := NewScheme("", nil)
	require.NoError(t, err)
	assert.Equal(t, types.StringType, s.DType)

	s, err = NewScheme("", LabelList(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, types.IntType, s.DType)

	s, err = NewScheme("", LabelList("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, types.StringType, s.DType)

	_, err = NewScheme(types.IntType, LabelList("a"))
	assert.True(t, errors.Is(err, aerrors.ErrInvalidRecord))
}

func TestValidateRecords(t *testing.T) {
	tests := []struct {
		name   string
		record any
		valid  bool
	}{
		{"rater", &Rater{Type: RaterHuman}, true},
		{"rater without type", &Rater{}, false},
		{"rater bad type", &Rater{Type: "robot"}, false},
		{"split", &Split{Type: SplitTrain}, true},
		{"split bad type", &Split{Type: "holdout"}, false},
		{"audio", &Media{Type: MediaAudio, Format: "wav", SamplingRate: 16000, Channels: 1, BitDepth: 16}, true},
		{"video", &Media{Type: MediaVideo, Format: "avi", VideoFPS: 25, VideoResolution: []int{800, 600}}, true},
		{"video bad resolution", &Media{Type: MediaVideo, VideoResolution: []int{800}}, false},
		{"negative sampling rate", &Media{Type: MediaAudio, SamplingRate: -1}, false},
		{"bounded int", &Scheme{DType: types.IntType, Minimum: floatPtr(0), Maximum: floatPtr(100)}, true},
		{"inverted bounds", &Scheme{DType: types.IntType, Minimum: floatPtr(1), Maximum: floatPtr(0)}, false},
		{"bounded string", &Scheme{DType: types.StringType, Minimum: floatPtr(0)}, false},
		{"unknown dtype", &Scheme{DType: "complex"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.record)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, aerrors.ErrInvalidRecord), "got %v", err)
			}
		})
	}
}

func TestSchemeCheck(t *testing.T) {
	s := &Scheme{DType: types.IntType, Minimum: floatPtr(0), Maximum: floatPtr(100)}

	v, err := s.Check(types.Float(5))
	require.NoError(t, err)
	assert.True(t, v.Equal(types.Int(5)))

	_, err = s.Check(types.Int(101))
	assert.True(t, errors.Is(err, aerrors.ErrConstraintViolation))

	_, err = s.Check(types.String("a"))
	assert.True(t, errors.Is(err, aerrors.ErrTypeMismatch))

	v, err = s.Check(types.Null())
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	labels := &Scheme{DType: types.StringType, Labels: LabelList("a", "b")}
	_, err = labels.Check(types.String("c"))
	assert.True(t, errors.Is(err, aerrors.ErrConstraintViolation))
	_, err = labels.Check(types.String("b"))
	assert.NoError(t, err)

	tm := &Scheme{DType: types.TimeType, Maximum: floatPtr(1)}
	_, err = tm.Check(types.Time(2 * time.Second))
	assert.True(t, errors.Is(err, aerrors.ErrConstraintViolation))
}

func TestSchemeCheckVector(t *testing.T) {
	s := &Scheme{DType: types.FloatType, Minimum: floatPtr(-1), Maximum: floatPtr(1)}
	v, err := s.CheckVector("float", types.VectorOf(0, 1, nil))
	require.NoError(t, err)
	assert.Equal(t, types.FloatType, v.DType)

	_, err = s.CheckVector("float", types.VectorOf(0.5, 2.0, -3.0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, aerrors.ErrConstraintViolation))
	var violations ValidationErrors
	require.True(t, errors.As(err, &violations))
	assert.Len(t, violations, 2)
	assert.Equal(t, 1, violations[0].Row)
}

func TestLabelsYAML(t *testing.T) {
	schemes := map[string]*Scheme{
		"list": {DType: types.StringType, Labels: LabelList("label1", "label2")},
		"map_str": {DType: types.StringType, Labels: LabelMap(
			[]any{"label2", "label1"},
			map[any]map[string]any{
				"label1": {"prop1": 1, "prop2": "a"},
				"label2": {"prop1": 2, "prop2": "b"},
			})},
		"map_int": {DType: types.IntType, Labels: LabelMap(
			[]any{1, 2},
			map[any]map[string]any{1: {"prop1": 1}, 2: {"prop1": 2}})},
	}
	b, err := yaml.Marshal(schemes)
	require.NoError(t, err)

	var loaded map[string]*Scheme
	require.NoError(t, yaml.Unmarshal(b, &loaded))
	for id, s := range schemes {
		assert.True(t, s.Equal(loaded[id]), "scheme %s:\n%s", id, b)
	}
	assert.Equal(t, "label2", loaded["map_str"].Labels.Values[0])
	assert.True(t, loaded["map_int"].Labels.Contains(types.Int(2), types.IntType))
}

func TestCopyIsIndependent(t *testing.T) {
	s := &Scheme{DType: types.StringType, Labels: LabelList("a"), Meta: map[string]any{"k": "v"}}
	c := s.Copy()
	c.Labels.Values[0] = "b"
	c.Meta["k"] = "w"
	assert.Equal(t, "a", s.Labels.Values[0])
	assert.Equal(t, "v", s.Meta["k"])
	assert.False(t, s.Equal(c))

	m := &Media{Type: MediaVideo, VideoResolution: []int{800, 600}}
	mc := m.Copy()
	mc.VideoResolution[0] = 1
	assert.Equal(t, 800, m.VideoResolution[0])
}

func TestMetaEqual(t *testing.T) {
	assert.True(t, MetaEqual(nil, map[string]any{}))
	assert.True(t, MetaEqual(map[string]any{"a": 1}, map[string]any{"a": int64(1)}))
	assert.False(t, MetaEqual(map[string]any{"a": 1}, nil))
}
