// Package runner drives a configured pipeline over a batch of image files.
//
// Each job loads an image and its optional annotation file, runs the
// configured steps and writes the augmented image, its annotations and, when
// asked for, a preview with the boxes drawn. Independent jobs run
// concurrently, each with its own draw cache. In replay mode every job shares
// one cache so that all of them receive the same augmentation; those jobs run
// one at a time because a shared cache must have a single writer.
package runner

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/image-augment/internal/annotation"
	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/config"
	"github.com/ironsheep/image-augment/internal/imaging"
	"github.com/ironsheep/image-augment/internal/preprocessor"
)

// Job is one input of a run.
type Job struct {
	Image string
	// Annotations is the path of the annotation file. Empty means the image
	// has no instances.
	Annotations string
}

// Result lists the files a job produced.
type Result struct {
	Job
	Output      string
	Annotations string
	Preview     string
	Instances   int
}

// Runner executes a pipeline configuration.
type Runner struct {
	cfg    *config.Config
	fm     *preprocessor.FieldMap
	outDir string
	loader *imaging.Loader
	log    *zap.Logger
}

// New returns a runner writing into outDir. A nil logger discards logs.
func New(cfg *config.Config, outDir string, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		fm:     cfg.FieldMapping(),
		outDir: outDir,
		loader: imaging.NewLoader(),
		log:    log,
	}
}

// Run processes jobs and returns their results in input order. The first
// failing job cancels the jobs that have not started. Jobs whose outputs
// would share a name are rejected before anything is written.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	if err := checkOutputNames(jobs); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", r.outDir)
	}
	defer r.loader.Clear()

	results := make([]Result, len(jobs))
	if r.cfg.Replay {
		shared := cache.New()
		src := r.source(0)
		for i, job := range jobs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := r.process(job, shared, src)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.process(job, cache.New(), r.source(uint64(i)))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// source returns the random stream of job i, or nil for unseeded runs.
func (r *Runner) source(i uint64) *rand.Rand {
	if r.cfg.Seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(r.cfg.Seed, i))
}

func (r *Runner) process(job Job, c *cache.Cache, src *rand.Rand) (Result, error) {
	log := r.log.With(zap.String("image", job.Image))

	img, err := r.loader.LoadTensor(job.Image)
	if err != nil {
		return Result{}, err
	}
	ann := &annotation.Annotations{}
	if job.Annotations != "" {
		if ann, err = annotation.Load(job.Annotations); err != nil {
			return Result{}, err
		}
	}
	frame, err := ann.ToFrame(img)
	if err != nil {
		return Result{}, errors.Wrap(err, job.Image)
	}

	opts := []preprocessor.Option{
		preprocessor.WithFieldMap(r.fm),
		preprocessor.WithCache(c),
		preprocessor.WithLogger(log),
	}
	if src != nil {
		opts = append(opts, preprocessor.WithRand(src))
	}
	out, err := preprocessor.Preprocess(frame, r.cfg.Steps, opts...)
	if err != nil {
		return Result{}, errors.Wrap(err, job.Image)
	}

	res := Result{Job: job}
	stem := outputStem(job.Image)
	res.Output = filepath.Join(r.outDir, stem+outputExt(job.Image))
	if err := imaging.Save(res.Output, out[preprocessor.KeyImage]); err != nil {
		return Result{}, err
	}

	outAnn, err := annotation.FromFrame(out, filepath.Base(res.Output))
	if err != nil {
		return Result{}, err
	}
	res.Instances = len(outAnn.Boxes)
	res.Annotations = filepath.Join(r.outDir, stem+".json")
	if err := annotation.Save(res.Annotations, outAnn); err != nil {
		return Result{}, err
	}

	if r.cfg.Preview {
		res.Preview = filepath.Join(r.outDir, stem+"_preview.png")
		if err := writePreview(res.Preview, out); err != nil {
			return Result{}, err
		}
	}

	log.Info("augmented",
		zap.String("output", res.Output),
		zap.Int("instances", res.Instances),
		zap.Int("cached_draws", c.Len()))
	return res, nil
}

// outputStem names every file a job writes.
func outputStem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// checkOutputNames fails when two inputs map to the same output stem, as
// a/x.png and b/x.png or x.png and x.jpg do.
func checkOutputNames(jobs []Job) error {
	seen := make(map[string]string, len(jobs))
	for _, job := range jobs {
		stem := outputStem(job.Image)
		if prev, ok := seen[stem]; ok {
			return errors.Errorf("inputs %s and %s both write outputs named %q", prev, job.Image, stem)
		}
		seen[stem] = job.Image
	}
	return nil
}

// outputExt keeps JPEG inputs as JPEG and writes everything else as PNG.
func outputExt(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		return ext
	default:
		return ".png"
	}
}

func writePreview(path string, f preprocessor.Frame) error {
	img := f[preprocessor.KeyImage]
	if img.Rank() == 4 {
		var err error
		if img, err = img.Squeeze(0); err != nil {
			return err
		}
	}
	preview, err := imaging.Preview(img, f[preprocessor.KeyBoxes], f[preprocessor.KeyClasses],
		f[preprocessor.KeyKeypoints], imaging.DefaultPreviewOptions())
	if err != nil {
		return err
	}
	return imaging.SaveImage(path, preview)
}
