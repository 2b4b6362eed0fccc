// Package tensor provides the dense float64 array every frame field is stored in.
//
// A Dense value has a shape and a row-major backing slice. Images are rank 3
// [height, width, channels], boxes rank 2 [N, 4], instance masks rank 3
// [N, height, width] and keypoints rank 3 [N, num_keypoints, 2]. Integer
// fields such as class labels are stored as integer-valued float64 so that
// every per-instance array can be gathered with the same call.
//
// # Ownership
//
// Operations in this repository treat Dense values as immutable: transforms
// return a new Dense rather than writing into their input. Data exposes the
// backing slice for fast loops; callers that mutate it must own the value.
package tensor
