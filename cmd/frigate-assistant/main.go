package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/xiewu/frigate/internal/camera"
	"github.com/xiewu/frigate/internal/chat"
	"github.com/xiewu/frigate/internal/chat/tools"
	"github.com/xiewu/frigate/internal/config"
	"github.com/xiewu/frigate/internal/event"
	"github.com/xiewu/frigate/internal/genai"
	"github.com/xiewu/frigate/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	question := flag.String("question", "", "question to ask the assistant")
	liveCamera := flag.String("camera", "", "camera whose live frame is attached to the question")
	stream := flag.Bool("stream", false, "stream the answer as NDJSON frames")
	describe := flag.String("describe", "", "path to a JPEG to describe with the vision provider")
	flag.Parse()

	// Secrets may live in a .env file next to the binary.
	if err := godotenv.Load(); err == nil {
		logger.Debugf("Loaded environment from .env file")
	}

	defer func() {
		logger.CloseLogFiles()
	}()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Errorf("Configuration error: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Infof("Shutdown signal received, exiting...")
		cancel()
	}()

	registry := genai.NewRegistry()
	genai.RegisterBuiltins(registry)

	manager := genai.NewManager(registry)
	manager.Rebuild(cfg.ClientConfigs())

	if *describe != "" {
		describeImage(ctx, manager, *describe, *question)
		return
	}

	if *question == "" {
		logger.Errorf("No question provided. Use -question or -describe.")
		os.Exit(1)
	}

	events := event.NewMemoryStore()
	states := camera.NewStateStore()
	frames := camera.NewFrameStore()

	cameraIDs := make([]string, 0, len(cfg.Cameras))
	for id := range cfg.Cameras {
		cameraIDs = append(cameraIDs, id)
	}

	dispatcher := tools.NewDispatcher(
		tools.NewSearchObjectsTool(events, cfg.SearchLimit()),
		tools.NewLiveContextTool(states, cameraIDs),
	)

	orchestrator := chat.NewOrchestrator(manager, dispatcher, frames, cfg.FriendlyNames(), cfg.MaxToolIterations())

	req := chat.Request{
		Messages:         []chat.IncomingMessage{{Role: "user", Content: *question}},
		IncludeLiveImage: *liveCamera,
	}
	scope := camera.AccessScope{}

	if *stream {
		if err := chat.WriteNDJSON(os.Stdout, orchestrator.CompleteStream(ctx, req, scope)); err != nil {
			logger.Errorf("Failed to write response: %v", err)
			os.Exit(1)
		}
		return
	}

	resp := orchestrator.Complete(ctx, req, scope)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(resp); err != nil {
		logger.Errorf("Failed to write response: %v", err)
		os.Exit(1)
	}
}

// describeImage sends a single image to the vision provider, outside the
// chat loop.
func describeImage(ctx context.Context, manager *genai.Manager, path, prompt string) {
	client := manager.VisionClient()
	if client == nil {
		logger.Errorf("No vision provider is bound.")
		os.Exit(1)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Errorf("Failed to read image %s: %v", path, err)
		os.Exit(1)
	}
	data = camera.DownscaleJPEG(data, 1024)

	if prompt == "" {
		prompt = "Describe what is happening in this image."
	}

	description, ok := client.SendVision(ctx, prompt, [][]byte{data})
	if !ok {
		logger.Errorf("Vision provider failed to describe the image.")
		os.Exit(1)
	}

	logger.Successf("%s", description)
}
