package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/srmaas/errorreport/internal/llm"
	"github.com/srmaas/errorreport/internal/middleware"
	"github.com/srmaas/errorreport/internal/model"
	"go.uber.org/zap"
)

// Generator runs a completion against a named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, images ...[]byte) (string, error)
}

type Models struct {
	Text   string
	Vision string
}

// Remote asks the language models and degrades to the keyword heuristics on
// any transport or model error.
type Remote struct {
	gen    Generator
	models Models
	speech *SpeechRecognizer
	logger *zap.Logger
}

func NewRemote(gen Generator, models Models, speech *SpeechRecognizer, logger *zap.Logger) *Remote {
	return &Remote{gen: gen, models: models, speech: speech, logger: logger}
}

// ask returns the model answer, or ok=false after logging and counting the failure.
func (r *Remote) ask(ctx context.Context, op, modelName, prompt string, images ...[]byte) (string, bool) {
	start := time.Now()
	resp, err := r.gen.Generate(ctx, modelName, prompt, images...)
	elapsed := time.Since(start)
	if err != nil {
		r.logger.Warn("AI call failed, using fallback",
			zap.String("operation", op),
			zap.String("model", modelName),
			zap.Error(err),
		)
		middleware.RecordAICall(op, middleware.OutcomeFallback, elapsed)
		return "", false
	}
	middleware.RecordAICall(op, middleware.OutcomeSuccess, elapsed)
	return resp, true
}

func (r *Remote) GenerateTitle(ctx context.Context, content string) string {
	resp, ok := r.ask(ctx, OpGenerateTitle, r.models.Text, fmt.Sprintf(llm.TitlePrompt, content))
	if !ok {
		return KeywordTitle(content)
	}
	if title := llm.FirstLine(resp, "제목"); title != "" {
		return title
	}
	return DefaultTitle
}

func (r *Remote) ClassifySystem(ctx context.Context, content string) string {
	resp, ok := r.ask(ctx, OpClassifySystem, r.models.Text, fmt.Sprintf(llm.ClassifyPrompt, content))
	if !ok {
		return KeywordCategory(content)
	}
	answer := llm.FirstLine(resp, "분류")
	for _, category := range Categories {
		if strings.Contains(answer, category) {
			return category
		}
	}
	return CategoryOther
}

func (r *Remote) AnalyzeImage(ctx context.Context, image []byte) string {
	resp, ok := r.ask(ctx, OpAnalyzeImage, r.models.Vision, llm.ImagePrompt, image)
	if !ok || resp == "" {
		return OfflineImageAnalysis
	}
	return resp
}

func (r *Remote) TranscribeAudio(ctx context.Context, audio []byte) string {
	if r.speech == nil {
		return TranscriptionFailed
	}
	return r.speech.Transcribe(ctx, audio)
}

func (r *Remote) GenerateAnalysis(ctx context.Context, kind string, data AnalysisData) string {
	resp, ok := r.ask(ctx, OpGenerateAnalysis, r.models.Text, analysisPrompt(kind, data))
	if !ok || resp == "" {
		return FallbackAnalysis(kind, data)
	}
	return resp
}

func analysisPrompt(kind string, data AnalysisData) string {
	switch kind {
	case model.AnalysisPattern:
		weekly := data.WeeklyStats
		if len(weekly) > 4 {
			weekly = weekly[len(weekly)-4:]
		}
		return fmt.Sprintf(llm.PatternPrompt, data.TotalErrors, data.ResolvedErrors, toJSON(weekly), toJSON(data.CategoryStats))
	case model.AnalysisTrend:
		return fmt.Sprintf(llm.TrendPrompt, toJSON(data.WeeklyStats), toJSON(data.CategoryStats))
	case model.AnalysisSummary:
		top := data.CategoryStats
		if len(top) > 3 {
			top = top[:3]
		}
		return fmt.Sprintf(llm.SummaryPrompt, data.NewErrors, data.InProgress, data.Completed, toJSON(top))
	default:
		return fmt.Sprintf(llm.OverviewPrompt, toJSON(data))
	}
}

func toJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "[]"
	}
	return string(b)
}
