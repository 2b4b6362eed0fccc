// Package annotation reads and writes the JSON annotation files that travel
// with each image, and converts them to and from preprocessor frames.
//
// A file looks like:
//
//	{
//	  "image": "street.png",
//	  "boxes": [[0.1, 0.2, 0.5, 0.6]],
//	  "classes": [3],
//	  "weights": [1.0],
//	  "keypoints": [[[0.2, 0.3], [null, null]]]
//	}
//
// Boxes are [ymin, xmin, ymax, xmax] normalized to the image. A null number
// stands for NaN, which marks an invisible keypoint or an unset weight.
// Optional fields that are omitted produce no frame entry, so the operations
// that route them see them as absent.
package annotation
