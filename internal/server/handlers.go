package server

import (
	"math/rand/v2"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/image-augment/internal/annotation"
	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/imaging"
	"github.com/ironsheep/image-augment/internal/preprocessor"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	Name      string              `json:"name"`
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if errors.Is(err, preprocessor.ErrConfig) {
		return s.errorResponse(req.ID, -32602, "Invalid pipeline", err.Error())
	}
	if err != nil {
		s.log.Info("tool failed", zap.String("tool", params.Name), zap.Error(err))
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

func (s *Server) executeTool(name string, args jsoniter.RawMessage) (interface{}, error) {
	switch name {
	case "augment_list_operations":
		return s.handleListOperations()
	case "augment_validate":
		return s.handleValidate(args)
	case "augment_apply":
		return s.handleApply(args)
	case "augment_new_session":
		return s.handleNewSession()
	case "augment_end_session":
		return s.handleEndSession(args)
	default:
		return nil, errors.Errorf("unknown tool: %s", name)
	}
}

func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
		},
	}
	if data != "" {
		resp.Error.Data = data
	}
	return resp
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as {}.
func decodeArgs(args jsoniter.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(args, v), "invalid arguments")
}

type operationInfo struct {
	Name       preprocessor.Op `json:"name"`
	Fields     []string        `json:"fields"`
	Replayable bool            `json:"replayable"`
	Defaults   interface{}     `json:"defaults"`
}

func (s *Server) handleListOperations() (interface{}, error) {
	ops := preprocessor.Operations()
	out := make([]operationInfo, len(ops))
	for i, op := range ops {
		fields := make([]string, len(op.Roles))
		for j, r := range op.Roles {
			fields[j] = r.String()
		}
		out[i] = operationInfo{Name: op.Name, Fields: fields, Replayable: op.Replayable, Defaults: op.Defaults}
	}
	return map[string]interface{}{"operations": out}, nil
}

type pipelineArgs struct {
	Steps    []preprocessor.Step           `json:"steps"`
	FieldMap *preprocessor.FieldMapOptions `json:"field_map,omitempty"`
}

func (a pipelineArgs) fieldMap() *preprocessor.FieldMap {
	opts := preprocessor.DefaultFieldMapOptions()
	if a.FieldMap != nil {
		opts = *a.FieldMap
	}
	return preprocessor.DefaultFieldMap(opts)
}

func (s *Server) handleValidate(args jsoniter.RawMessage) (interface{}, error) {
	var a pipelineArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := preprocessor.ValidateSteps(a.Steps, a.fieldMap()); err != nil {
		return map[string]interface{}{"valid": false, "error": err.Error()}, nil
	}
	return map[string]interface{}{"valid": true, "steps": len(a.Steps)}, nil
}

type applyArgs struct {
	pipelineArgs
	// Image is the path of the input image.
	Image string `json:"image"`
	// AnnotationsPath and Annotations are alternatives; inline wins.
	AnnotationsPath string                  `json:"annotations_path,omitempty"`
	Annotations     *annotation.Annotations `json:"annotations,omitempty"`
	Session         string                  `json:"session,omitempty"`
	Seed            uint64                  `json:"seed,omitempty"`
	// Output, when set, receives the augmented image.
	Output string `json:"output,omitempty"`
	// ReturnImage adds the augmented image as base64 PNG to the result.
	ReturnImage bool `json:"return_image,omitempty"`
}

type applyResult struct {
	Width       int                     `json:"width"`
	Height      int                     `json:"height"`
	Annotations *annotation.Annotations `json:"annotations"`
	Output      string                  `json:"output,omitempty"`
	ImageBase64 string                  `json:"image_base64,omitempty"`
	Session     string                  `json:"session,omitempty"`
	CachedDraws int                     `json:"cached_draws"`
}

func (s *Server) handleApply(args jsoniter.RawMessage) (interface{}, error) {
	var a applyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Image == "" {
		return nil, errors.New("image is required")
	}

	fm := a.fieldMap()
	if err := preprocessor.ValidateSteps(a.Steps, fm); err != nil {
		return nil, err
	}

	c := cache.New()
	if a.Session != "" {
		var ok bool
		if c, ok = s.session(a.Session); !ok {
			return nil, errors.Errorf("unknown session %q", a.Session)
		}
	}

	img, err := s.loader.LoadTensor(a.Image)
	if err != nil {
		return nil, err
	}
	ann := a.Annotations
	if ann == nil && a.AnnotationsPath != "" {
		if ann, err = annotation.Load(a.AnnotationsPath); err != nil {
			return nil, err
		}
	}
	if ann == nil {
		ann = &annotation.Annotations{}
	}
	frame, err := ann.ToFrame(img)
	if err != nil {
		return nil, err
	}

	opts := []preprocessor.Option{
		preprocessor.WithFieldMap(fm),
		preprocessor.WithCache(c),
		preprocessor.WithLogger(s.log),
	}
	if a.Seed != 0 {
		opts = append(opts, preprocessor.WithRand(rand.New(rand.NewPCG(a.Seed, 0))))
	}
	out, err := preprocessor.Preprocess(frame, a.Steps, opts...)
	if err != nil {
		return nil, err
	}

	outImg := out[preprocessor.KeyImage]
	outAnn, err := annotation.FromFrame(out, a.Output)
	if err != nil {
		return nil, err
	}
	res := applyResult{
		Width:       outAnn.Width,
		Height:      outAnn.Height,
		Annotations: outAnn,
		Output:      a.Output,
		Session:     a.Session,
		CachedDraws: c.Len(),
	}
	if a.Output != "" {
		if err := imaging.Save(a.Output, outImg); err != nil {
			return nil, err
		}
	}
	if a.ReturnImage {
		encoded, err := imaging.ToImage(outImg)
		if err != nil {
			return nil, err
		}
		if res.ImageBase64, err = imaging.EncodeBase64PNG(encoded); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *Server) session(id string) (*cache.Cache, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[id]
	return c, ok
}

func (s *Server) handleNewSession() (interface{}, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = cache.New()
	s.mu.Unlock()
	return map[string]interface{}{"session": id}, nil
}

type sessionArgs struct {
	Session string `json:"session"`
}

func (s *Server) handleEndSession(args jsoniter.RawMessage) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[a.Session]
	if !ok {
		return nil, errors.Errorf("unknown session %q", a.Session)
	}
	delete(s.sessions, a.Session)
	return map[string]interface{}{"session": a.Session, "ended": true, "cached_draws": c.Len()}, nil
}
