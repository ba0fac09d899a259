package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SpeechClient calls the Hugging Face inference API for automatic speech
// recognition. The audio is posted as the raw request body.
type SpeechClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func NewSpeechClient(baseURL, token string, timeout time.Duration) *SpeechClient {
	return &SpeechClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *SpeechClient) Transcribe(ctx context.Context, model string, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+model, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(audio))
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speech model %s returned status %d: %s", model, resp.StatusCode, string(body))
	}

	var result transcriptionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("speech model %s: %s", model, result.Error)
	}
	return strings.TrimSpace(result.Text), nil
}

var ErrEmptyAudio = errors.New("audio payload is empty")

// DecodeBase64Audio decodes a base64 audio payload, accepting data URLs such
// as "data:audio/webm;base64,....".
func DecodeBase64Audio(payload string) ([]byte, error) {
	data := strings.TrimSpace(payload)
	if i := strings.Index(data, ","); i >= 0 {
		data = data[i+1:]
	}
	if data == "" {
		return nil, ErrEmptyAudio
	}

	audio, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		audio, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return nil, fmt.Errorf("decode audio: %w", err)
		}
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}
