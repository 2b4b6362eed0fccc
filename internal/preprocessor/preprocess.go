package preprocessor

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/image-augment/internal/boxes"
	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/keypoints"
)

type options struct {
	cache    *cache.Cache
	fieldMap *FieldMap
	rand     *rand.Rand
	logger   *zap.Logger
}

// Option configures Preprocess.
type Option func(*options)

// WithCache replays the random draws recorded in c and records new ones.
func WithCache(c *cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithFieldMap replaces the default field map.
func WithFieldMap(fm *FieldMap) Option {
	return func(o *options) { o.fieldMap = fm }
}

// WithRand sets the source of fresh draws.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rand = r }
}

// WithSeed draws from a PCG generator seeded with seed.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.rand = rand.New(rand.NewPCG(seed, seed)) }
}

// WithLogger logs every applied step at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fieldMap == nil {
		o.fieldMap = DefaultFieldMap(DefaultFieldMapOptions())
	}
	return o
}

// resolvedStep is a step whose operation, keys and parameters were checked.
type resolvedStep struct {
	op     Op
	impl   operation
	keys   []Key
	params any
}

func resolveStep(s Step, fm *FieldMap) (resolvedStep, error) {
	impl, ok := registry[s.Op]
	if !ok {
		return resolvedStep{}, configError("unknown operation %q", s.Op)
	}
	keys, ok := fm.Get(s.Op)
	if !ok {
		return resolvedStep{}, configError("operation %q is not in the field map", s.Op)
	}
	if len(keys) != len(impl.roles) {
		return resolvedStep{}, configError("field map binds %d fields to %s, it takes %d", len(keys), s.Op, len(impl.roles))
	}
	params, err := impl.resolve(s.Params)
	if err != nil {
		return resolvedStep{}, wrapOp(err, s.Op)
	}
	return resolvedStep{op: s.Op, impl: impl, keys: keys, params: params}, nil
}

// ValidateSteps checks operation names and parameters against fm without
// touching any data. A nil fm means the default field map.
func ValidateSteps(steps []Step, fm *FieldMap) error {
	if fm == nil {
		fm = DefaultFieldMap(DefaultFieldMapOptions())
	}
	for i, s := range steps {
		if _, err := resolveStep(s, fm); err != nil {
			return errors.Wrapf(err, "step %d", i)
		}
	}
	return nil
}

// Preprocess applies steps in order to a copy of frame and returns it.
//
// Every step reads the fields its field map entry names, so a step sees the
// effect of every step before it. A [1, H, W, C] image is treated as [H, W, C]
// and restored to rank 4 on return. The input frame is never modified.
//
// Configuration errors wrap ErrConfig and are reported before any data of the
// offending step is touched.
func Preprocess(frame Frame, steps []Step, opts ...Option) (Frame, error) {
	o := newOptions(opts)

	resolved := make([]resolvedStep, len(steps))
	for i, s := range steps {
		r, err := resolveStep(s, o.fieldMap)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", i)
		}
		resolved[i] = r
	}

	out := frame.Clone()
	batched := map[Key]bool{}
	for _, key := range imageKeys(resolved) {
		img, ok := out[key]
		if !ok || img == nil {
			return nil, configError("frame has no %s", key)
		}
		if img.Rank() != 4 {
			continue
		}
		sq, err := img.Squeeze(0)
		if err != nil {
			return nil, configError("batched image must hold exactly one image, got %v", img.Shape())
		}
		out[key] = sq
		batched[key] = true
	}

	env := Env{Rand: o.rand, Cache: o.cache}
	for i, r := range resolved {
		if err := r.run(env, out); err != nil {
			return nil, errors.Wrapf(err, "step %d", i)
		}
		o.logger.Debug("applied operation",
			zap.Int("step", i),
			zap.String("op", string(r.op)),
			zap.Any("fields", r.keys))
	}

	for key := range batched {
		out[key] = out[key].ExpandDims(0)
	}
	return out, nil
}

// imageKeys lists the distinct keys the steps read as their image.
func imageKeys(steps []resolvedStep) []Key {
	var keys []Key
	seen := map[Key]bool{}
	for _, r := range steps {
		for i, role := range r.impl.roles {
			if k := r.keys[i]; role == RoleImage && k != "" && !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// run binds the step's fields from frame, applies the operation and writes the
// results back under the same keys.
func (r resolvedStep) run(env Env, frame Frame) error {
	var f Fields
	for i, role := range r.impl.roles {
		key := r.keys[i]
		if key == "" {
			continue
		}
		t, ok := frame[key]
		if !ok || t == nil {
			return configError("%s needs field %q", r.op, key)
		}
		f.Set(role, t)
	}
	if err := r.impl.checkRequired(f); err != nil {
		return wrapOp(err, r.op)
	}
	if err := checkFields(f); err != nil {
		return wrapOp(err, r.op)
	}

	res, err := r.impl.apply(env, f, r.params)
	if err != nil {
		return wrapOp(err, r.op)
	}
	for i, role := range r.impl.roles {
		if key := r.keys[i]; key != "" {
			frame[key] = res.Get(role)
		}
	}
	return nil
}

// checkRequired rejects a call that lacks a field the operation cannot do
// without: the image, the boxes and labels, and the sole input of single-field
// operations.
func (op operation) checkRequired(f Fields) error {
	for _, r := range op.roles {
		required := r == RoleImage || r == RoleBoxes || r == RoleLabels || len(op.roles) == 1
		if required && f.Get(r) == nil {
			return configError("%s is required", r)
		}
	}
	return nil
}

// checkFields validates the shapes operations rely on.
func checkFields(f Fields) error {
	if f.Image != nil && f.Image.Rank() != 3 {
		return configError("image must be [height width channels], got %v", f.Image.Shape())
	}
	if f.Boxes != nil {
		if err := boxes.Validate(f.Boxes); err != nil {
			return configError("%v", err)
		}
	}
	if f.Keypoints != nil {
		if err := keypoints.Validate(f.Keypoints); err != nil {
			return configError("%v", err)
		}
	}
	if f.Masks != nil && f.Masks.Rank() != 3 {
		return configError("masks must be [instances height width], got %v", f.Masks.Shape())
	}
	return f.checkAligned()
}

// Apply runs a single operation on f. Parameters are resolved as in a Step.
func Apply(env Env, op Op, f Fields, params any) (Fields, error) {
	impl, ok := registry[op]
	if !ok {
		return f, configError("unknown operation %q", op)
	}
	p, err := impl.resolve(params)
	if err != nil {
		return f, wrapOp(err, op)
	}
	if err := impl.checkRequired(f); err != nil {
		return f, wrapOp(err, op)
	}
	if err := checkFields(f); err != nil {
		return f, wrapOp(err, op)
	}
	res, err := impl.apply(env, f, p)
	if err != nil {
		return f, wrapOp(err, op)
	}
	return res, nil
}
