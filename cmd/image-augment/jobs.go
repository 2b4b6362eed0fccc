package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ironsheep/image-augment/internal/runner"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// collectJobs expands inputs into jobs. Explicit annotation paths pair with
// inputs by position and require plain files; otherwise each image picks up
// a sibling <stem>.json when one exists.
func collectJobs(inputs, annotations []string) ([]runner.Job, error) {
	if len(annotations) > 0 {
		if len(annotations) != len(inputs) {
			return nil, errors.Errorf("got %d annotation files for %d inputs", len(annotations), len(inputs))
		}
		jobs := make([]runner.Job, len(inputs))
		for i, in := range inputs {
			if st, err := os.Stat(in); err != nil {
				return nil, errors.Wrapf(err, "input %s", in)
			} else if st.IsDir() {
				return nil, errors.Errorf("input %s is a directory; annotation files pair with image files", in)
			}
			jobs[i] = runner.Job{Image: in, Annotations: annotations[i]}
		}
		return jobs, nil
	}

	var jobs []runner.Job
	for _, in := range inputs {
		images, err := expandInput(in)
		if err != nil {
			return nil, err
		}
		for _, img := range images {
			jobs = append(jobs, runner.Job{Image: img, Annotations: siblingAnnotations(img)})
		}
	}
	if len(jobs) == 0 {
		return nil, errors.New("no input images found")
	}
	return jobs, nil
}

// expandInput returns in itself, or the sorted images directly inside it when
// in is a directory.
func expandInput(in string) ([]string, error) {
	st, err := os.Stat(in)
	if err != nil {
		return nil, errors.Wrapf(err, "input %s", in)
	}
	if !st.IsDir() {
		return []string{in}, nil
	}
	entries, err := os.ReadDir(in)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", in)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, filepath.Join(in, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func siblingAnnotations(img string) string {
	p := strings.TrimSuffix(img, filepath.Ext(img)) + ".json"
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}
