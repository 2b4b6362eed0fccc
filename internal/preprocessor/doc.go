// Package preprocessor applies randomized augmentation to an image and its
// annotations.
//
// A pipeline is a list of Steps. Preprocess runs them in order over a Frame,
// a map from Key to tensor. Which tensors a step receives is decided by a
// FieldMap: for every operation it lists one frame key per Role, in the
// operation's argument order, and the results are written back under the same
// keys. DefaultFieldMap builds the standard map; FieldMapOptions decide which
// optional annotations (weights, confidences, multiclass scores, masks,
// keypoints) are routed through the geometric operations.
//
// # Annotations
//
// Boxes are [N, 4] rows of normalized [ymin, xmin, ymax, xmax]. Labels,
// weights, confidences, multiclass scores, masks and keypoints are
// per-instance: their first dimension is N and row i always belongs to box i.
// Operations that drop boxes drop the same rows from every per-instance field.
// Keypoints are [N, K, 2] normalized (y, x) pairs; NaN marks a missing point
// and stays NaN through every transform.
//
// # Replay
//
// Every random decision except box jitter is drawn through a cache.Cache.
// Passing the same cache to two Preprocess calls with the same steps and
// image sizes reproduces the same flips, crops and color shifts:
//
//	c := cache.New()
//	img, _ := preprocessor.Preprocess(imageFrame, steps, preprocessor.WithCache(c))
//	lbl, _ := preprocessor.Preprocess(labelFrame, steps, preprocessor.WithCache(c))
//
// A cache must not be written by two pipelines at the same time.
//
// # Errors
//
// Configuration errors wrap ErrConfig: unknown operations, fields the field
// map names but the frame lacks, invalid parameters, keypoints without a flip
// permutation, images that are not [H, W, C]. A crop search that finds no
// window is not an error; the step leaves the frame unchanged.
package preprocessor
