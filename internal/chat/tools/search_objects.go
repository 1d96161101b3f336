package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/xiewu/frigate/internal/camera"
	"github.com/xiewu/frigate/internal/event"
	"github.com/xiewu/frigate/internal/genai"
	"github.com/xiewu/frigate/internal/logger"
)

// SearchObjectsTool searches the tracked-object history by camera, label,
// time range and zones.
type SearchObjectsTool struct {
	BaseTool
	store        event.Store
	defaultLimit int
}

func NewSearchObjectsTool(store event.Store, defaultLimit int) *SearchObjectsTool {
	return &SearchObjectsTool{
		BaseTool: BaseTool{
			ToolName: "search_objects",
			ToolDescription: "Search for detected objects by camera, object label, time range, " +
				"zones, and other filters. Use this to answer questions about when " +
				"objects were detected, what objects appeared, or to find specific object detections. " +
				"An 'object' represents a tracked detection (e.g., a person, package, car). " +
				"Results include start_time_local and end_time_local strings in the server's " +
				"local timezone; repeat those strings verbatim when telling the user about times.",
			ToolParameters: genai.ToolParameters{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"camera": {
						Type:        jsonschema.String,
						Description: "Camera name to filter by (optional). Use 'all' for all cameras.",
					},
					"label": {
						Type:        jsonschema.String,
						Description: "Object label to filter by (e.g., 'person', 'package', 'car').",
					},
					"sub_label": {
						Type:        jsonschema.String,
						Description: "Sub label to filter by, such as a recognized name (optional).",
					},
					"after": {
						Type:        jsonschema.String,
						Description: "Start time in ISO 8601 format (e.g., '2024-01-01T00:00:00Z').",
					},
					"before": {
						Type:        jsonschema.String,
						Description: "End time in ISO 8601 format (e.g., '2024-01-01T23:59:59Z').",
					},
					"zones": {
						Type:        jsonschema.Array,
						Items:       &jsonschema.Definition{Type: jsonschema.String},
						Description: "List of zone names to filter by.",
					},
					"limit": {
						Type:        jsonschema.Integer,
						Description: "Maximum number of objects to return.",
					},
				},
			},
		},
		store:        store,
		defaultLimit: defaultLimit,
	}
}

// parseISOTime converts an ISO 8601 string to unix seconds. An unparsable
// value degrades to an open bound rather than failing the search.
func parseISOTime(args map[string]interface{}, key string) float64 {
	value, ok := args[key].(string)
	if !ok || value == "" {
		return 0
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		logger.Warnf("Invalid '%s' timestamp format: %s", key, value)
		return 0
	}
	return float64(parsed.Unix())
}

func stringArg(args map[string]interface{}, key, fallback string) string {
	if value, ok := args[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

func (t *SearchObjectsTool) Execute(ctx context.Context, args map[string]interface{}, scope camera.AccessScope) (string, error) {
	zones := "all"
	if list, ok := args["zones"].([]interface{}); ok {
		var names []string
		for _, entry := range list {
			if name, ok := entry.(string); ok && name != "" {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			zones = strings.Join(names, ",")
		}
	}

	limit := t.defaultLimit
	if value, ok := args["limit"].(float64); ok && int(value) > 0 {
		limit = int(value)
	}

	filters := event.SearchFilters{
		Camera:   stringArg(args, "camera", "all"),
		Label:    stringArg(args, "label", "all"),
		SubLabel: stringArg(args, "sub_label", "all"),
		Zones:    zones,
		After:    parseISOTime(args, "after"),
		Before:   parseISOTime(args, "before"),
		Limit:    limit,
	}

	events := t.store.Search(filters, scope.AllowedCameras)

	results := make([]map[string]interface{}, 0, len(events))
	for _, ev := range events {
		entry := map[string]interface{}{
			"id":         ev.ID,
			"camera":     ev.Camera,
			"label":      ev.Label,
			"start_time": ev.StartTime,
		}
		if ev.SubLabel != "" {
			entry["sub_label"] = ev.SubLabel
		}
		if len(ev.Zones) > 0 {
			entry["zones"] = ev.Zones
		}
		if ev.EndTime > 0 {
			entry["end_time"] = ev.EndTime
		}
		if ev.TopScore > 0 {
			entry["top_score"] = ev.TopScore
		}
		if local := formatLocalTime(ev.StartTime); local != "" {
			entry["start_time_local"] = local
		}
		if local := formatLocalTime(ev.EndTime); local != "" {
			entry["end_time_local"] = local
		}
		results = append(results, entry)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"count":  len(results),
		"events": results,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func formatLocalTime(unixSeconds float64) string {
	if unixSeconds <= 0 {
		return ""
	}
	return time.Unix(int64(unixSeconds), 0).Local().Format("2006-01-02 15:04:05 MST")
}
