package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var stepsSchema = map[string]interface{}{
	"type":        "array",
	"description": "Operations to apply in order. Each step is {\"op\": name, \"params\": {...}}; omitted params take the operation defaults.",
	"items": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"op":     map[string]interface{}{"type": "string"},
			"params": map[string]interface{}{"type": "object"},
		},
		"required": []string{"op"},
	},
}

var fieldMapSchema = map[string]interface{}{
	"type":        "object",
	"description": "Optional annotations routed through the operations. Label weights are on by default.",
	"properties": map[string]interface{}{
		"include_label_weights":     map[string]interface{}{"type": "boolean"},
		"include_label_confidences": map[string]interface{}{"type": "boolean"},
		"include_multiclass_scores": map[string]interface{}{"type": "boolean"},
		"include_instance_masks":    map[string]interface{}{"type": "boolean"},
		"include_keypoints":         map[string]interface{}{"type": "boolean"},
	},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "augment_list_operations",
			Description: "List every augmentation operation with the annotation fields it transforms, whether its random draws can be replayed, and its default parameters.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "augment_validate",
			Description: "Check operation names and parameters of a pipeline without reading any image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"steps":     stepsSchema,
					"field_map": fieldMapSchema,
				},
				"required": []string{"steps"},
			},
		},
		{
			Name:        "augment_apply",
			Description: "Augment one image together with its boxes, labels and other annotations. Returns the transformed annotations, and the image when requested.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"annotations_path": map[string]interface{}{
						"type":        "string",
						"description": "Path to a JSON annotation file",
					},
					"annotations": map[string]interface{}{
						"type":        "object",
						"description": "Inline annotations: boxes as [ymin, xmin, ymax, xmax] in [0, 1], classes, and optional weights, confidences, multiclass_scores, keypoints, masks",
					},
					"steps":     stepsSchema,
					"field_map": fieldMapSchema,
					"session": map[string]interface{}{
						"type":        "string",
						"description": "Replay session from augment_new_session. Calls in one session receive the same augmentation.",
					},
					"seed": map[string]interface{}{
						"type":        "integer",
						"description": "Seed for reproducible draws. 0 draws from system entropy.",
					},
					"output": map[string]interface{}{
						"type":        "string",
						"description": "Path to write the augmented image to (PNG or JPEG by extension)",
					},
					"return_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the augmented image as base64 PNG. Default false",
						"default":     false,
					},
				},
				"required": []string{"image", "steps"},
			},
		},
		{
			Name:        "augment_new_session",
			Description: "Open a replay session. Pass its id to augment_apply to give several images identical random augmentations.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "augment_end_session",
			Description: "Close a replay session and release its recorded draws.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session": map[string]interface{}{
						"type":        "string",
						"description": "Session id from augment_new_session",
					},
				},
				"required": []string{"session"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
