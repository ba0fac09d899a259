package ai

import (
	"context"
	"time"

	"github.com/srmaas/errorreport/internal/middleware"
	"go.uber.org/zap"
)

// Transcriber converts audio to text with a named speech model.
type Transcriber interface {
	Transcribe(ctx context.Context, model string, audio []byte) (string, error)
}

// SpeechRecognizer tries the primary speech model, then the fallback model,
// and finally answers with TranscriptionFailed.
type SpeechRecognizer struct {
	client   Transcriber
	primary  string
	fallback string
	logger   *zap.Logger
}

func NewSpeechRecognizer(client Transcriber, primary, fallback string, logger *zap.Logger) *SpeechRecognizer {
	return &SpeechRecognizer{client: client, primary: primary, fallback: fallback, logger: logger}
}

func (s *SpeechRecognizer) Transcribe(ctx context.Context, audio []byte) string {
	start := time.Now()

	for i, model := range []string{s.primary, s.fallback} {
		if model == "" {
			continue
		}
		text, err := s.client.Transcribe(ctx, model, audio)
		if err != nil {
			s.logger.Warn("speech recognition failed",
				zap.String("model", model),
				zap.Int("audioBytes", len(audio)),
				zap.Error(err),
			)
			continue
		}
		outcome := middleware.OutcomeSuccess
		if i > 0 {
			outcome = middleware.OutcomeFallback
		}
		middleware.RecordAICall(OpTranscribeAudio, outcome, time.Since(start))
		if text == "" {
			return TranscriptionFailed
		}
		return text
	}

	middleware.RecordAICall(OpTranscribeAudio, middleware.OutcomeFallback, time.Since(start))
	return TranscriptionFailed
}
