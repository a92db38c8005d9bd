// Package header defines the metadata records a database shares between its
// tables: schemes, raters, media and splits.
package header

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/annotab/annotab/internal/errors"
	"github.com/annotab/annotab/pkg/types"
	"github.com/go-playground/validator/v10"
)

// Rater types.
const (
	RaterHuman   = "human"
	RaterMachine = "machine"
	RaterTruth   = "truth"
	RaterVote    = "vote"
	RaterOther   = "other"
)

// Split types.
const (
	SplitTrain   = "train"
	SplitDevelop = "dev"
	SplitTest    = "test"
	SplitOther   = "other"
)

// Media types.
const (
	MediaAudio = "audio"
	MediaVideo = "video"
	MediaOther = "other"
)

// Database usage values.
const (
	UsageCommercial   = "commercial"
	UsageOther        = "other"
	UsageResearch     = "research"
	UsageRestricted   = "restricted"
	UsageUnrestricted = "unrestricted"
)

// Scheme declares the data type and value constraints of a column.
type Scheme struct {
	DType       types.DataType `yaml:"dtype" json:"dtype" validate:"required,oneof=bool date float int object str time"`
	Minimum     *float64       `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum     *float64       `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	Labels      *Labels        `yaml:"labels,omitempty" json:"labels,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Meta        map[string]any `yaml:"meta,omitempty" json:"meta,omitempty"`
}

// NewScheme creates a scheme of dtype. An empty dtype is inferred from the
// labels, or defaults to string.
func NewScheme(dtype types.DataType, labels *Labels) (*Scheme, error) {
	s := &Scheme{DType: dtype, Labels: labels}
	s.Normalize()
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Normalize fills in the data type of a scheme that does not declare one.
func (s *Scheme) Normalize() {
	if s.DType != "" {
		return
	}
	if s.Labels != nil && len(s.Labels.Values) > 0 {
		s.DType = types.InferValues(types.Values(s.Labels.Values...))
		return
	}
	s.DType = types.StringType
}

// IsNumeric reports whether minimum and maximum apply to the scheme.
func (s *Scheme) IsNumeric() bool {
	switch s.DType {
	case types.IntType, types.FloatType, types.TimeType:
		return true
	}
	return false
}

// Equal reports whether both schemes declare the same constraints.
func (s *Scheme) Equal(o *Scheme) bool {
	return jsonEqual(s, o)
}

// Copy returns an independent copy.
func (s *Scheme) Copy() *Scheme {
	out := *s
	out.Minimum = copyFloat(s.Minimum)
	out.Maximum = copyFloat(s.Maximum)
	if s.Labels != nil {
		out.Labels = s.Labels.Copy()
	}
	out.Meta = copyMeta(s.Meta)
	return &out
}

// Rater describes who or what produced the values of a column.
type Rater struct {
	Type        string         `yaml:"type" json:"type" validate:"required,oneof=human machine truth vote other"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Meta        map[string]any `yaml:"meta,omitempty" json:"meta,omitempty"`
}

// Equal reports whether both raters are the same.
func (r *Rater) Equal(o *Rater) bool {
	return jsonEqual(r, o)
}

// Copy returns an independent copy.
func (r *Rater) Copy() *Rater {
	out := *r
	out.Meta = copyMeta(r.Meta)
	return &out
}

// Media describes the audio or video format of the files a table indexes.
type Media struct {
	Type            string         `yaml:"type" json:"type" validate:"required,oneof=audio video other"`
	Format          string         `yaml:"format,omitempty" json:"format,omitempty"`
	SamplingRate    int            `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" validate:"gte=0"`
	Channels        int            `yaml:"channels,omitempty" json:"channels,omitempty" validate:"gte=0"`
	BitDepth        int            `yaml:"bit_depth,omitempty" json:"bit_depth,omitempty" validate:"gte=0"`
	VideoFPS        int            `yaml:"video_fps,omitempty" json:"video_fps,omitempty" validate:"gte=0"`
	VideoResolution []int          `yaml:"video_resolution,omitempty,flow" json:"video_resolution,omitempty" validate:"omitempty,len=2,dive,gt=0"`
	VideoChannels   int            `yaml:"video_channels,omitempty" json:"video_channels,omitempty" validate:"gte=0"`
	VideoDepth      int            `yaml:"video_depth,omitempty" json:"video_depth,omitempty" validate:"gte=0"`
	Description     string         `yaml:"description,omitempty" json:"description,omitempty"`
	Meta            map[string]any `yaml:"meta,omitempty" json:"meta,omitempty"`
}

// Equal reports whether both media records are the same.
func (m *Media) Equal(o *Media) bool {
	return jsonEqual(m, o)
}

// Copy returns an independent copy.
func (m *Media) Copy() *Media {
	out := *m
	if m.VideoResolution != nil {
		out.VideoResolution = append([]int(nil), m.VideoResolution...)
	}
	out.Meta = copyMeta(m.Meta)
	return &out
}

// Split describes a data partition such as train or test.
type Split struct {
	Type        string         `yaml:"type" json:"type" validate:"required,oneof=train dev test other"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Meta        map[string]any `yaml:"meta,omitempty" json:"meta,omitempty"`
}

// Equal reports whether both splits are the same.
func (s *Split) Equal(o *Split) bool {
	return jsonEqual(s, o)
}

// Copy returns an independent copy.
func (s *Split) Copy() *Split {
	out := *s
	out.Meta = copyMeta(s.Meta)
	return &out
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks a record against its struct tags. Schemes are additionally
// checked for consistent bounds and labels.
func Validate(record any) error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	if err := validate.Struct(record); err != nil {
		return errors.Wrap(errors.ErrCategoryValidation, errors.CodeInvalidRecord,
			fmt.Sprintf("invalid %T", record), err)
	}
	if s, ok := record.(*Scheme); ok {
		return s.validateConstraints()
	}
	return nil
}

func (s *Scheme) validateConstraints() error {
	if (s.Minimum != nil || s.Maximum != nil) && !s.IsNumeric() {
		return errors.Newf(errors.ErrCategoryValidation, errors.CodeInvalidRecord,
			"minimum and maximum require a numeric scheme, got %s", s.DType)
	}
	if s.Minimum != nil && s.Maximum != nil && *s.Minimum > *s.Maximum {
		return errors.Newf(errors.ErrCategoryValidation, errors.CodeInvalidRecord,
			"minimum %v is larger than maximum %v", *s.Minimum, *s.Maximum)
	}
	if s.Labels != nil {
		if s.Labels.Meta != nil && s.DType != types.StringType && s.DType != types.IntType {
			return errors.Newf(errors.ErrCategoryValidation, errors.CodeInvalidRecord,
				"a label mapping requires str or int labels, got %s", s.DType)
		}
		if _, err := types.CoerceAll(types.Values(s.Labels.Values...), s.DType); err != nil {
			return errors.Wrap(errors.ErrCategoryValidation, errors.CodeInvalidRecord,
				fmt.Sprintf("labels do not match dtype %s", s.DType), err)
		}
	}
	return nil
}

func jsonEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// copyMeta deep copies a metadata mapping through its JSON encoding.
func copyMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	var out map[string]any
	v, err := types.DecodeObject(b)
	if err == nil {
		out, _ = v.AsObject().(map[string]any)
	}
	return out
}

// CopyMeta returns a deep copy of a metadata mapping.
func CopyMeta(m map[string]any) map[string]any {
	return copyMeta(m)
}

// MetaEqual compares two metadata mappings by their JSON encoding. A nil and
// an empty mapping are equal.
func MetaEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return jsonEqual(a, b)
}
