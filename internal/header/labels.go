package header

import (
	"fmt"

	"github.com/annotab/annotab/pkg/types"
	"gopkg.in/yaml.v3"
)

// Labels is the label set of a categorical scheme. A plain list has no
// metadata; labels given as a mapping carry one metadata record per label.
type Labels struct {
	Values []any
	Meta   []map[string]any
}

// LabelList creates labels without metadata.
func LabelList(values ...any) *Labels {
	return &Labels{Values: values}
}

// LabelMap creates labels with metadata. keys fixes the label order.
func LabelMap(keys []any, meta map[any]map[string]any) *Labels {
	l := &Labels{Values: keys, Meta: make([]map[string]any, len(keys))}
	for i, k := range keys {
		l.Meta[i] = meta[k]
	}
	return l
}

// Contains reports whether v equals one of the labels once both are
// converted to dtype.
func (l *Labels) Contains(v types.Value, dtype types.DataType) bool {
	for _, label := range l.Values {
		c, err := types.Coerce(types.FromNative(label), dtype)
		if err == nil && c.Equal(v) {
			return true
		}
	}
	return false
}

// Copy returns an independent copy.
func (l *Labels) Copy() *Labels {
	out := &Labels{Values: append([]any(nil), l.Values...)}
	if l.Meta != nil {
		out.Meta = make([]map[string]any, len(l.Meta))
		for i, m := range l.Meta {
			out.Meta[i] = copyMeta(m)
		}
	}
	return out
}

// MarshalYAML writes a sequence for plain labels and an ordered mapping for
// labels with metadata.
func (l *Labels) MarshalYAML() (interface{}, error) {
	if l.Meta == nil {
		return l.Values, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i, v := range l.Values {
		var key, value yaml.Node
		if err := key.Encode(v); err != nil {
			return nil, err
		}
		if err := value.Encode(l.Meta[i]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &key, &value)
	}
	return node, nil
}

// UnmarshalYAML accepts both a sequence and a mapping of labels.
func (l *Labels) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var values []any
		if err := node.Decode(&values); err != nil {
			return err
		}
		l.Values, l.Meta = values, nil
		return nil
	case yaml.MappingNode:
		l.Values = make([]any, 0, len(node.Content)/2)
		l.Meta = make([]map[string]any, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var key any
			if err := node.Content[i].Decode(&key); err != nil {
				return err
			}
			var meta map[string]any
			if err := node.Content[i+1].Decode(&meta); err != nil {
				return err
			}
			l.Values = append(l.Values, key)
			l.Meta = append(l.Meta, meta)
		}
		return nil
	default:
		return fmt.Errorf("labels must be a list or a mapping, got yaml kind %d", node.Kind)
	}
}
