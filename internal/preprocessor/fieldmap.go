package preprocessor

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FieldMap assigns to every operation the frame keys it reads and writes, one
// per role of the operation and in the same order. An empty key disables that
// role for the operation.
type FieldMap struct {
	m *orderedmap.OrderedMap[Op, []Key]
}

// NewFieldMap returns an empty map.
func NewFieldMap() *FieldMap {
	return &FieldMap{m: orderedmap.New[Op, []Key]()}
}

// Set binds op to keys, replacing any earlier binding.
func (fm *FieldMap) Set(op Op, keys ...Key) {
	fm.m.Set(op, append([]Key(nil), keys...))
}

// Get returns the keys bound to op.
func (fm *FieldMap) Get(op Op) ([]Key, bool) {
	keys, ok := fm.m.Get(op)
	return keys, ok
}

// Ops lists the bound operations in insertion order.
func (fm *FieldMap) Ops() []Op {
	out := make([]Op, 0, fm.m.Len())
	for p := fm.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Len is the number of bound operations.
func (fm *FieldMap) Len() int { return fm.m.Len() }

// Clone returns an independent copy that can be extended without touching fm.
func (fm *FieldMap) Clone() *FieldMap {
	out := NewFieldMap()
	for p := fm.m.Oldest(); p != nil; p = p.Next() {
		out.Set(p.Key, p.Value...)
	}
	return out
}

// FieldMapOptions selects which optional annotations the default map routes
// through the operations.
type FieldMapOptions struct {
	IncludeLabelWeights     bool `mapstructure:"include_label_weights" yaml:"include_label_weights" json:"include_label_weights"`
	IncludeLabelConfidences bool `mapstructure:"include_label_confidences" yaml:"include_label_confidences" json:"include_label_confidences"`
	IncludeMulticlassScores bool `mapstructure:"include_multiclass_scores" yaml:"include_multiclass_scores" json:"include_multiclass_scores"`
	IncludeInstanceMasks    bool `mapstructure:"include_instance_masks" yaml:"include_instance_masks" json:"include_instance_masks"`
	IncludeKeypoints        bool `mapstructure:"include_keypoints" yaml:"include_keypoints" json:"include_keypoints"`
}

// DefaultFieldMapOptions routes label weights only.
func DefaultFieldMapOptions() FieldMapOptions {
	return FieldMapOptions{IncludeLabelWeights: true}
}

// defaultKey is the frame key of each role, or "" when opts disable it.
func (o FieldMapOptions) defaultKey(r Role) Key {
	switch r {
	case RoleImage:
		return KeyImage
	case RoleBoxes:
		return KeyBoxes
	case RoleLabels:
		return KeyClasses
	case RoleLabelWeights:
		if o.IncludeLabelWeights {
			return KeyWeights
		}
	case RoleLabelConfidences:
		if o.IncludeLabelConfidences {
			return KeyConfidences
		}
	case RoleMulticlassScores:
		if o.IncludeMulticlassScores {
			return KeyMulticlassScores
		}
	case RoleMasks:
		if o.IncludeInstanceMasks {
			return KeyInstanceMasks
		}
	case RoleKeypoints:
		if o.IncludeKeypoints {
			return KeyKeypoints
		}
	case RoleImageClasses:
		return KeyImageClasses
	}
	return ""
}

// DefaultFieldMap binds every operation to the standard frame keys.
func DefaultFieldMap(opts FieldMapOptions) *FieldMap {
	fm := NewFieldMap()
	for _, info := range Operations() {
		keys := make([]Key, len(info.Roles))
		for i, r := range info.Roles {
			keys[i] = opts.defaultKey(r)
		}
		fm.Set(info.Name, keys...)
	}
	return fm
}
