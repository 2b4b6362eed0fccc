package preprocessor

import (
	"github.com/ironsheep/image-augment/internal/tensor"
)

// Key names a tensor in a Frame.
type Key string

// Standard frame keys.
const (
	KeyImage            Key = "image"
	KeyBoxes            Key = "groundtruth_boxes"
	KeyClasses          Key = "groundtruth_classes"
	KeyWeights          Key = "groundtruth_weights"
	KeyConfidences      Key = "groundtruth_confidences"
	KeyMulticlassScores Key = "multiclass_scores"
	KeyInstanceMasks    Key = "groundtruth_instance_masks"
	KeyKeypoints        Key = "groundtruth_keypoints"
	KeyImageClasses     Key = "groundtruth_image_classes"
)

// Frame is an annotated sample: an image plus any number of annotation
// tensors. Per-instance tensors share their first dimension with the boxes.
type Frame map[Key]*tensor.Dense

// Clone returns a copy of the map. Tensors are shared.
func (f Frame) Clone() Frame {
	out := make(Frame, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Role is the meaning of a tensor to an operation, independent of the frame
// key it is stored under.
type Role int

const (
	RoleImage Role = iota
	RoleBoxes
	RoleLabels
	RoleLabelWeights
	RoleLabelConfidences
	RoleMulticlassScores
	RoleMasks
	RoleKeypoints
	RoleImageClasses
)

var roleNames = [...]string{
	RoleImage:            "image",
	RoleBoxes:            "boxes",
	RoleLabels:           "labels",
	RoleLabelWeights:     "label_weights",
	RoleLabelConfidences: "label_confidences",
	RoleMulticlassScores: "multiclass_scores",
	RoleMasks:            "masks",
	RoleKeypoints:        "keypoints",
	RoleImageClasses:     "image_classes",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

// Fields is the typed record an operation reads and returns. A nil field is
// absent.
type Fields struct {
	Image            *tensor.Dense
	Boxes            *tensor.Dense
	Labels           *tensor.Dense
	LabelWeights     *tensor.Dense
	LabelConfidences *tensor.Dense
	MulticlassScores *tensor.Dense
	Masks            *tensor.Dense
	Keypoints        *tensor.Dense
	ImageClasses     *tensor.Dense
}

func (f *Fields) slot(r Role) **tensor.Dense {
	switch r {
	case RoleImage:
		return &f.Image
	case RoleBoxes:
		return &f.Boxes
	case RoleLabels:
		return &f.Labels
	case RoleLabelWeights:
		return &f.LabelWeights
	case RoleLabelConfidences:
		return &f.LabelConfidences
	case RoleMulticlassScores:
		return &f.MulticlassScores
	case RoleMasks:
		return &f.Masks
	case RoleKeypoints:
		return &f.Keypoints
	case RoleImageClasses:
		return &f.ImageClasses
	}
	return nil
}

// Get returns the tensor stored for r.
func (f *Fields) Get(r Role) *tensor.Dense {
	if s := f.slot(r); s != nil {
		return *s
	}
	return nil
}

// Set stores t for r.
func (f *Fields) Set(r Role, t *tensor.Dense) {
	if s := f.slot(r); s != nil {
		*s = t
	}
}

// instanceRoles are the roles index-aligned with the boxes.
var instanceRoles = []Role{
	RoleBoxes, RoleLabels, RoleLabelWeights, RoleLabelConfidences,
	RoleMulticlassScores, RoleMasks, RoleKeypoints,
}

// checkAligned verifies that every present per-instance tensor has one row
// per box.
func (f *Fields) checkAligned() error {
	if f.Boxes == nil {
		return nil
	}
	n := f.Boxes.Dim(0)
	for _, r := range instanceRoles {
		t := f.Get(r)
		if t == nil {
			continue
		}
		if t.Rank() == 0 || t.Dim(0) != n {
			return configError("%s has shape %v for %d boxes", r, t.Shape(), n)
		}
	}
	return nil
}

// gather selects the same instances from every present per-instance tensor.
func (f Fields) gather(indices []int) Fields {
	for _, r := range instanceRoles {
		if t := f.Get(r); t != nil {
			f.Set(r, t.Gather(indices))
		}
	}
	return f
}
