package preprocessor

import (
	"github.com/ironsheep/image-augment/internal/boxes"
	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/imaging"
	"github.com/ironsheep/image-augment/internal/keypoints"
	"github.com/ironsheep/image-augment/internal/tensor"
)

// FlipParams configures the horizontal and vertical flips.
type FlipParams struct {
	// KeypointFlipPermutation maps each output keypoint to the input keypoint
	// it is mirrored from, e.g. left eye to right eye. Required when keypoints
	// are present.
	KeypointFlipPermutation []int `mapstructure:"keypoint_flip_permutation" json:"keypoint_flip_permutation,omitempty"`
}

// flipThreshold is the Bernoulli cut: a draw above it flips.
const flipThreshold = 0.5

// mirror holds the per-field transforms of one flip direction.
type mirror struct {
	id        cache.OpID
	permutes  bool
	image     func(*tensor.Dense) (*tensor.Dense, error)
	masks     func(*tensor.Dense) (*tensor.Dense, error)
	boxes     func(*tensor.Dense) *tensor.Dense
	keypoints func(kp *tensor.Dense, perm []int) (*tensor.Dense, error)
}

var (
	horizontal = mirror{
		id:       cache.HorizontalFlip,
		permutes: true,
		image:    imaging.FlipLeftRight,
		masks:    imaging.FlipMasksLeftRight,
		boxes:    boxes.FlipLeftRight,
		keypoints: func(kp *tensor.Dense, perm []int) (*tensor.Dense, error) {
			return keypoints.FlipHorizontal(kp, 0.5, perm)
		},
	}
	vertical = mirror{
		id:       cache.VerticalFlip,
		permutes: true,
		image:    imaging.FlipUpDown,
		masks:    imaging.FlipMasksUpDown,
		boxes:    boxes.FlipUpDown,
		keypoints: func(kp *tensor.Dense, perm []int) (*tensor.Dense, error) {
			return keypoints.FlipVertical(kp, 0.5, perm)
		},
	}
	rotation = mirror{
		id:    cache.Rotation90,
		image: imaging.Rot90,
		masks: imaging.RotMasks90,
		boxes: boxes.Rot90,
		keypoints: func(kp *tensor.Dense, _ []int) (*tensor.Dense, error) {
			return keypoints.Rot90(kp), nil
		},
	}
)

// apply draws once and, on a flip, transforms every present field.
func (m mirror) apply(env Env, f Fields, perm []int) (Fields, error) {
	if m.permutes && f.Keypoints != nil {
		if perm == nil {
			return f, configError("keypoints are present but keypoint_flip_permutation is not set")
		}
		if err := keypoints.ValidatePermutation(f.Keypoints, perm); err != nil {
			return f, configError("%v", err)
		}
	}
	if env.cachedUniform(m.id, "", 0, 1) <= flipThreshold {
		return f, nil
	}

	var err error
	if f.Image, err = m.image(f.Image); err != nil {
		return f, err
	}
	if f.Boxes != nil {
		f.Boxes = m.boxes(f.Boxes)
	}
	if f.Masks != nil {
		if f.Masks, err = m.masks(f.Masks); err != nil {
			return f, err
		}
	}
	if f.Keypoints != nil {
		if f.Keypoints, err = m.keypoints(f.Keypoints, perm); err != nil {
			return f, err
		}
	}
	return f, nil
}

func randomHorizontalFlip(env Env, f Fields, p FlipParams) (Fields, error) {
	return horizontal.apply(env, f, p.KeypointFlipPermutation)
}

func randomVerticalFlip(env Env, f Fields, p FlipParams) (Fields, error) {
	return vertical.apply(env, f, p.KeypointFlipPermutation)
}

func randomRotation90(env Env, f Fields, _ NoParams) (Fields, error) {
	return rotation.apply(env, f, nil)
}
