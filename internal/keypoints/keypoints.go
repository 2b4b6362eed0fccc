// Package keypoints implements geometry on normalized keypoints.
//
// Keypoints are a [N, K, 2] tensor of (y, x) pairs: N instances with K
// keypoints each. A missing keypoint is NaN and stays NaN through every
// transform here.
package keypoints

import (
	"math"

	"github.com/pkg/errors"

	"github.com/ironsheep/image-augment/internal/boxes"
	"github.com/ironsheep/image-augment/internal/tensor"
)

// Validate checks that kp is a [N, K, 2] tensor.
func Validate(kp *tensor.Dense) error {
	if kp.Rank() != 3 || kp.Dim(2) != 2 {
		return errors.Errorf("keypoints: want shape [N K 2], got %v", kp.Shape())
	}
	return nil
}

// ValidatePermutation checks that perm reorders exactly K keypoints.
func ValidatePermutation(kp *tensor.Dense, perm []int) error {
	k := kp.Dim(1)
	if len(perm) != k {
		return errors.Errorf("keypoints: flip permutation has %d entries for %d keypoints", len(perm), k)
	}
	seen := make([]bool, k)
	for _, p := range perm {
		if p < 0 || p >= k || seen[p] {
			return errors.Errorf("keypoints: %v is not a permutation of 0..%d", perm, k-1)
		}
		seen[p] = true
	}
	return nil
}

func mapPoints(kp *tensor.Dense, fn func(y, x float64) (float64, float64)) *tensor.Dense {
	out := tensor.New(kp.Shape()...)
	src, dst := kp.Data(), out.Data()
	for i := 0; i+1 < len(src); i += 2 {
		dst[i], dst[i+1] = fn(src[i], src[i+1])
	}
	return out
}

// FlipHorizontal mirrors x around flipPoint and reorders the keypoints of each
// instance by perm, so that output keypoint j is input keypoint perm[j].
func FlipHorizontal(kp *tensor.Dense, flipPoint float64, perm []int) (*tensor.Dense, error) {
	return flip(kp, 1, flipPoint, perm)
}

// FlipVertical mirrors y around flipPoint and reorders keypoints by perm.
func FlipVertical(kp *tensor.Dense, flipPoint float64, perm []int) (*tensor.Dense, error) {
	return flip(kp, 0, flipPoint, perm)
}

func flip(kp *tensor.Dense, axis int, flipPoint float64, perm []int) (*tensor.Dense, error) {
	if err := ValidatePermutation(kp, perm); err != nil {
		return nil, err
	}
	out := tensor.New(kp.Shape()...)
	for n := 0; n < kp.Dim(0); n++ {
		for j, p := range perm {
			y, x := kp.At(n, p, 0), kp.At(n, p, 1)
			if axis == 0 {
				y = 2*flipPoint - y
			} else {
				x = 2*flipPoint - x
			}
			out.Set(y, n, j, 0)
			out.Set(x, n, j, 1)
		}
	}
	return out, nil
}

// Rot90 rotates keypoints 90 degrees counter-clockwise with the image.
func Rot90(kp *tensor.Dense) *tensor.Dense {
	return mapPoints(kp, func(y, x float64) (float64, float64) { return 1 - x, y })
}

// ChangeCoordinateFrame expresses keypoints relative to w.
func ChangeCoordinateFrame(kp *tensor.Dense, w boxes.Window) *tensor.Dense {
	h, wd := w.Height(), w.Width()
	return mapPoints(kp, func(y, x float64) (float64, float64) {
		return (y - w[0]) / h, (x - w[1]) / wd
	})
}

// PruneOutsideWindow replaces keypoints that fall outside w with NaN.
func PruneOutsideWindow(kp *tensor.Dense, w boxes.Window) *tensor.Dense {
	return mapPoints(kp, func(y, x float64) (float64, float64) {
		if y < w[0] || y > w[2] || x < w[1] || x > w[3] {
			return math.NaN(), math.NaN()
		}
		return y, x
	})
}

// Scale multiplies y by ys and x by xs.
func Scale(kp *tensor.Dense, ys, xs float64) *tensor.Dense {
	return mapPoints(kp, func(y, x float64) (float64, float64) { return y * ys, x * xs })
}
