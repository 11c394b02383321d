// Package transcribe sends recorded audio to an OpenAI-compatible
// speech-to-text endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1"
	DefaultModel    = "whisper-1"

	// maxUploadBytes mirrors the hosted API's 25 MB limit.
	maxUploadBytes = 25 << 20
)

type Options struct {
	APIKey     string
	Endpoint   string
	Model      string
	Language   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	apiKey   string
	endpoint string
	model    string
	language string
	http     *http.Client
	logger   *zap.Logger
}

func New(opts Options) *Client {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:   strings.TrimSpace(opts.APIKey),
		endpoint: endpoint,
		model:    model,
		language: sanitizeLanguage(opts.Language),
		http:     httpClient,
		logger:   logger,
	}
}

// CheckCredential fails fast when no API key is configured.
func (c *Client) CheckCredential() error {
	if c.apiKey == "" {
		return &Error{Kind: KindCredential, Err: ErrMissingCredential}
	}
	return nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Transcribe uploads audioPath and returns the transcript text. There is no
// retry; the caller decides what to do with a failure.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := c.CheckCredential(); err != nil {
		return "", err
	}

	body, contentType, err := c.buildForm(audioPath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/audio/transcriptions", body)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	c.logger.Debug("sending transcription request", zap.String("endpoint", c.endpoint), zap.String("model", c.model), zap.String("audio", audioPath))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &Error{Kind: KindNetwork, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Kind: kindForStatus(resp.StatusCode), StatusCode: resp.StatusCode, Err: errors.New(apiErrorMessage(respBody))}
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Kind: KindRejected, StatusCode: resp.StatusCode, Err: fmt.Errorf("parse response: %w", err)}
	}

	c.logger.Debug("transcription response received", zap.Duration("elapsed", time.Since(started)), zap.Int("chars", len(parsed.Text)))
	return strings.TrimSpace(parsed.Text), nil
}

func (c *Client) buildForm(audioPath string) (*bytes.Buffer, string, error) {
	audioPath = filepath.Clean(audioPath)
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, "", &Error{Kind: KindRejected, Err: fmt.Errorf("audio file not found: %w", err)}
	}
	if info.Size() == 0 {
		return nil, "", &Error{Kind: KindRejected, Err: fmt.Errorf("audio file %s is empty", audioPath)}
	}
	if info.Size() > maxUploadBytes {
		return nil, "", &Error{Kind: KindRejected, Err: fmt.Errorf("audio file %s is %d bytes; limit is %d", audioPath, info.Size(), maxUploadBytes)}
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", &Error{Kind: KindRejected, Err: fmt.Errorf("open audio file: %w", err)}
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := [][2]string{
		{"model", c.model},
		{"response_format", "json"},
	}
	if c.language != "" {
		fields = append(fields, [2]string{"language", c.language})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", field[0], err)
		}
	}

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy audio into form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status >= 500:
		return KindServer
	default:
		return KindRejected
	}
}

func apiErrorMessage(body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}
	if len(trimmed) > 300 {
		trimmed = trimmed[:300] + "..."
	}
	return trimmed
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "auto" {
		return ""
	}
	return trimmed
}
