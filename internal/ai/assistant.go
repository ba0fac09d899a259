// Package ai titles, classifies and analyzes error reports. Every operation
// always produces an answer: when the model is unreachable the keyword
// heuristics take over.
package ai

import (
	"context"

	"github.com/srmaas/errorreport/internal/config"
	"github.com/srmaas/errorreport/internal/llm"
	"github.com/srmaas/errorreport/internal/storage"
	"go.uber.org/zap"
)

// Operation names used in logs and the ai_calls_total metric.
const (
	OpGenerateTitle    = "generate_title"
	OpClassifySystem   = "classify_system"
	OpAnalyzeImage     = "analyze_image"
	OpTranscribeAudio  = "transcribe_audio"
	OpGenerateAnalysis = "generate_analysis"
)

type Assistant interface {
	GenerateTitle(ctx context.Context, content string) string
	ClassifySystem(ctx context.Context, content string) string
	AnalyzeImage(ctx context.Context, image []byte) string
	TranscribeAudio(ctx context.Context, audio []byte) string
	GenerateAnalysis(ctx context.Context, kind string, data AnalysisData) string
}

// AnalysisData is the aggregate snapshot an analysis narrative is written from.
type AnalysisData struct {
	TotalErrors    int64                  `json:"totalErrors"`
	ResolvedErrors int64                  `json:"resolvedErrors"`
	NewErrors      int64                  `json:"newErrors"`
	InProgress     int64                  `json:"inProgress"`
	Completed      int64                  `json:"completed"`
	WeeklyStats    []storage.PeriodStat   `json:"weeklyStats"`
	CategoryStats  []storage.CategoryStat `json:"categoryStats"`
}

// New picks the assistant for the configured AI mode. Speech recognition is
// wired whenever an inference token is configured, even in offline mode.
func New(cfg *config.Config, logger *zap.Logger) Assistant {
	var speech *SpeechRecognizer
	if cfg.HFAPIToken != "" || cfg.UseOnlineAI() {
		speech = NewSpeechRecognizer(
			llm.NewSpeechClient(cfg.HFAPIURL, cfg.HFAPIToken, cfg.AITimeout),
			cfg.SpeechModel,
			cfg.SpeechFallbackModel,
			logger,
		)
	}

	if !cfg.UseOnlineAI() {
		logger.Info("AI assistant running offline with keyword heuristics")
		return NewHeuristic(speech)
	}

	logger.Info("AI assistant running online",
		zap.String("ollama", cfg.OllamaURL),
		zap.String("textModel", cfg.OllamaTextModel),
		zap.String("visionModel", cfg.OllamaVisionModel),
	)
	return NewRemote(llm.NewClient(cfg.OllamaURL, cfg.AITimeout), Models{
		Text:   cfg.OllamaTextModel,
		Vision: cfg.OllamaVisionModel,
	}, speech, logger)
}
