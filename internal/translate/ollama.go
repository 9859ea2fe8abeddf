package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const translatorSystemPrompt = "You are a professional translator. Translate the given text accurately while preserving the original meaning and tone."

type ollamaTranslator struct {
	endpoint    string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllamaTranslator translates through a local Ollama server's generate
// endpoint, one request per segment, no streaming.
func NewOllamaTranslator(endpoint, model string, temperature float64, timeout time.Duration) Translator {
	return &ollamaTranslator{
		endpoint:    strings.TrimRight(endpoint, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (t *ollamaTranslator) Translate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}

	prompt := fmt.Sprintf(
		"Translate the following text from %s to %s. Only return the translated text, nothing else: %s",
		req.SourceLang, req.TargetLang, req.Text)

	payload := ollamaRequest{
		Model:   t.model,
		Prompt:  prompt,
		System:  translatorSystemPrompt,
		Stream:  false,
		Options: ollamaOptions{Temperature: t.temperature},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", Permanent(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("ollama returned status %s", resp.Status)
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return "", Permanent(err)
		default:
			// 429 and 5xx are worth retrying.
			return "", err
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var out ollamaResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}
