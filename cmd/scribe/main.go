// Command scribe is the desktop host that wires the meeting-capture core
// together: audio capture, chunking, local+remote transcription, storage,
// search, and summarization. It loads configuration the way the teacher's
// cmd/agent/main.go does — a .env file for provider keys, a YAML file for
// everything else — then starts the pipeline and blocks until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/scribeflow/meetcore/internal/config"
	"github.com/scribeflow/meetcore/internal/logging"
	"github.com/scribeflow/meetcore/pkg/asrlocal"
	"github.com/scribeflow/meetcore/pkg/asrremote"
	"github.com/scribeflow/meetcore/pkg/audio"
	"github.com/scribeflow/meetcore/pkg/dispatch"
	"github.com/scribeflow/meetcore/pkg/llm"
	"github.com/scribeflow/meetcore/pkg/pipeline"
	"github.com/scribeflow/meetcore/pkg/search"
	"github.com/scribeflow/meetcore/pkg/session"
	"github.com/scribeflow/meetcore/pkg/store"
	"github.com/scribeflow/meetcore/pkg/summarize"
)

func main() {
	configPath := flag.String("config", "scribe.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "path to a .env file with provider API keys")
	deviceName := flag.String("device", "", "capture device name (empty uses the system default)")
	meetingTitle := flag.String("title", "Untitled meeting", "title for the meeting this run records")
	meetingType := flag.String("meeting-type", "", "meeting type, used to pick a default summary template")
	searchQuery := flag.String("search", "", "search stored transcripts instead of recording")
	flag.Parse()

	logger := logging.NewSlog(slog.LevelInfo)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	providers := config.LoadProviders(*envPath)

	st, err := store.Open(cfg.StorePath, nil, logger)
	if err != nil {
		logger.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	asrDispatcher := buildASRDispatcher(cfg, providers, logger)
	llmDispatcher := buildLLMDispatcher(cfg, providers, logger)

	host := asrlocal.New(localModelLoader(cfg, logger), "default", cfg.Local, logger)

	device, err := audio.NewMalgoDevice()
	if err != nil {
		logger.Error("failed to init audio device", "err", err)
		os.Exit(1)
	}

	audioCfg := audio.DefaultConfig()
	audioCfg.RequestedSampleRate = cfg.Audio.SampleRate
	audioCfg.RequestedChannels = cfg.Audio.Channels
	capture := audio.New(device, audioCfg, logger)

	sessions := session.NewRegistry()

	pipelineCfg := pipeline.DefaultConfig()
	pl := pipeline.New(capture, cfg.Chunker, host, asrDispatcher, sessions, st, pipelineCfg, logger)

	summarizer := summarize.New(st, st, st, llmDispatcher, sessions, summarize.DefaultConfig(), logger)
	defer summarizer.Close()

	searchSvc := search.New(st, search.DefaultConfig())
	if *searchQuery != "" {
		results, err := searchSvc.Search(context.Background(), *searchQuery, search.Filters{}, 20, 0)
		if err != nil {
			logger.Error("search failed", "err", err)
			os.Exit(1)
		}
		for _, r := range results {
			fmt.Printf("%s  %.2f  %s\n", r.MeetingID, r.Relevance, r.Content)
		}
		return
	}

	meetingID := uuid.NewString()
	if err := st.CreateMeeting(context.Background(), store.Meeting{
		ID:          meetingID,
		Title:       *meetingTitle,
		MeetingType: *meetingType,
		StartedAt:   time.Now(),
	}); err != nil {
		logger.Error("failed to create meeting", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pl.StartCapture(ctx, *deviceName); err != nil {
		logger.Error("failed to start capture", "err", err)
		os.Exit(1)
	}

	sessionID := uuid.NewString()
	if err := pl.StartSession(ctx, sessionID, meetingID); err != nil {
		logger.Error("failed to start session", "err", err)
		os.Exit(1)
	}

	go logEvents(pl, logger)

	fmt.Printf("Recording meeting %q (id=%s). Press Ctrl+C to stop.\n", *meetingTitle, meetingID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nStopping capture...")
	if err := pl.StopSession(context.Background()); err != nil {
		logger.Warn("stop session failed", "err", err)
	}
	if err := pl.StopCapture(); err != nil {
		logger.Warn("stop capture failed", "err", err)
	}

	summary, err := summarizer.SummarizeSync(context.Background(), "", summarize.Request{MeetingID: meetingID})
	if err != nil {
		logger.Warn("summarization failed", "err", err)
		return
	}
	fmt.Printf("\nSummary:\n%s\n", summary.Content)
}

func logEvents(pl *pipeline.Pipeline, logger logging.Logger) {
	for ev := range pl.Events() {
		switch ev.Type {
		case pipeline.EventTranscriptionChunk:
			rec, _ := ev.Data.(store.TranscriptionRecord)
			fmt.Printf("\r\033[K[TRANSCRIPT] %s\n", rec.Content)
		case pipeline.EventTranscriptionError:
			logger.Warn("transcription error", "session", ev.SessionID, "err", ev.Data)
		case pipeline.EventSessionStarted:
			fmt.Println("[SESSION] started")
		case pipeline.EventSessionStopped:
			fmt.Println("[SESSION] stopped")
		}
	}
}

func buildASRDispatcher(cfg config.File, providers config.Providers, logger logging.Logger) *dispatch.Dispatcher {
	var remoteProviders []dispatch.Provider
	for _, name := range cfg.RemoteASRProviders {
		switch name {
		case "groq":
			if providers.GroqKey != "" {
				remoteProviders = append(remoteProviders, asrremote.AsDispatchProvider(asrremote.NewGroqProvider(providers.GroqKey, "whisper-large-v3-turbo")))
			}
		case "openai":
			if providers.OpenAIKey != "" {
				remoteProviders = append(remoteProviders, asrremote.AsDispatchProvider(asrremote.NewOpenAIProvider(providers.OpenAIKey, "whisper-1")))
			}
		case "deepgram":
			if providers.DeepgramKey != "" {
				remoteProviders = append(remoteProviders, asrremote.AsDispatchProvider(asrremote.NewDeepgramProvider(providers.DeepgramKey)))
			}
		case "assemblyai":
			if providers.AssemblyAIKey != "" {
				remoteProviders = append(remoteProviders, asrremote.AsDispatchProvider(asrremote.NewAssemblyAIProvider(providers.AssemblyAIKey)))
			}
		}
	}
	return dispatch.New(remoteProviders, dispatch.BreakerConfig{}, cfg.Budget, nil, logger)
}

func buildLLMDispatcher(cfg config.File, providers config.Providers, logger logging.Logger) *dispatch.Dispatcher {
	var llmProviders []dispatch.Provider
	for _, name := range cfg.SummarizeProviders {
		switch name {
		case "groq":
			if providers.GroqKey != "" {
				llmProviders = append(llmProviders, llm.AsDispatchProvider(llm.NewGroqLLM(providers.GroqKey, "llama-3.3-70b-versatile")))
			}
		case "openai":
			if providers.OpenAIKey != "" {
				llmProviders = append(llmProviders, llm.AsDispatchProvider(llm.NewOpenAILLM(providers.OpenAIKey, "gpt-4o")))
			}
		case "anthropic":
			if providers.AnthropicKey != "" {
				llmProviders = append(llmProviders, llm.AsDispatchProvider(llm.NewAnthropicLLM(providers.AnthropicKey, "claude-3-5-sonnet-20241022")))
			}
		case "google":
			if providers.GoogleKey != "" {
				llmProviders = append(llmProviders, llm.AsDispatchProvider(llm.NewGoogleLLM(providers.GoogleKey, "gemini-1.5-flash")))
			}
		}
	}
	return dispatch.New(llmProviders, dispatch.BreakerConfig{}, cfg.Budget, nil, logger)
}

func localModelLoader(cfg config.File, logger logging.Logger) asrlocal.ModelLoader {
	serverURL := os.Getenv("WHISPER_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8081"
	}
	return func(modelID string) (asrlocal.Model, error) {
		return asrlocal.NewWhisperServerModel(serverURL, modelID), nil
	}
}
