package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/xiewu/frigate/internal/camera"
	"github.com/xiewu/frigate/internal/genai"
)

// LiveContextTool reports the objects currently tracked on one camera.
type LiveContextTool struct {
	BaseTool
	states  *camera.StateStore
	cameras map[string]bool
}

// NewLiveContextTool builds the tool. knownCameras is the set of
// configured camera ids; asking about anything else is an error even when
// the scope would allow it.
func NewLiveContextTool(states *camera.StateStore, knownCameras []string) *LiveContextTool {
	known := make(map[string]bool, len(knownCameras))
	for _, id := range knownCameras {
		known[id] = true
	}

	return &LiveContextTool{
		BaseTool: BaseTool{
			ToolName: "get_live_context",
			ToolDescription: "Get the current detection information for a camera: objects being tracked, " +
				"zones, timestamps. Use this to understand what is visible in the live view. " +
				"Call this when the user has included a live image or when answering questions " +
				"about what is happening right now on a specific camera.",
			ToolParameters: genai.ToolParameters{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"camera": {
						Type:        jsonschema.String,
						Description: "Camera name to get live context for.",
					},
				},
				Required: []string{"camera"},
			},
		},
		states:  states,
		cameras: known,
	}
}

// liveDetection is the reduced view of a tracked object handed to the
// model.
type liveDetection struct {
	Label      string   `json:"label"`
	Zones      []string `json:"zones"`
	SubLabel   string   `json:"sub_label,omitempty"`
	Stationary bool     `json:"stationary"`
}

func errorEnvelope(message string) string {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return string(payload)
}

func (t *LiveContextTool) Execute(ctx context.Context, args map[string]interface{}, scope camera.AccessScope) (string, error) {
	name, _ := args["camera"].(string)
	if name == "" {
		return errorEnvelope("Camera parameter is required"), nil
	}

	// Access is checked before any state read so a denied caller learns
	// nothing about whether the camera exists.
	if !scope.Allows(name) {
		return errorEnvelope(fmt.Sprintf("Camera '%s' not found or access denied", name)), nil
	}
	if !t.cameras[name] {
		return errorEnvelope(fmt.Sprintf("Camera '%s' not found", name)), nil
	}

	objects, frameTime := t.states.State(name).Snapshot()

	detections := make([]liveDetection, 0, len(objects))
	for _, object := range objects {
		// Objects not present in the current frame are stale.
		if object.FrameTime != frameTime {
			continue
		}
		zones := object.CurrentZones
		if zones == nil {
			zones = []string{}
		}
		detections = append(detections, liveDetection{
			Label:      object.Label,
			Zones:      zones,
			SubLabel:   object.SubLabel,
			Stationary: object.Stationary,
		})
	}

	payload, err := json.Marshal(map[string]interface{}{
		"camera":     name,
		"timestamp":  frameTime,
		"detections": detections,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
