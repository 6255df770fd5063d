// Package extraction turns raw document bytes into extracted fields. A
// TextRecognizer produces text and the PatternExtractor maps that text onto
// the field schema of each document class.
package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/rentum/rentum/internal/domain/apperrors"
	"github.com/rentum/rentum/internal/domain/services"
)

var (
	ErrUnreadableDocument = fmt.Errorf("%w: document contains no readable text", apperrors.ErrExtractionFailure)
	ErrRecognizerRejected = fmt.Errorf("%w: recognizer rejected the document", apperrors.ErrExtractionFailure)
	ErrRecognizerDown     = fmt.Errorf("%w: recognizer unavailable", apperrors.ErrDependencyFailure)
)

// PlainTextRecognizer treats the document as UTF-8 text. Used for uploads
// that are already text and in tests.
type PlainTextRecognizer struct{}

// NewPlainTextRecognizer creates a plain text recognizer
func NewPlainTextRecognizer() *PlainTextRecognizer {
	return &PlainTextRecognizer{}
}

// Recognize implements services.TextRecognizer
func (r *PlainTextRecognizer) Recognize(ctx context.Context, content []byte) (*services.RecognizedText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(content) || strings.ContainsRune(string(content), 0) {
		return nil, ErrUnreadableDocument
	}
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, ErrUnreadableDocument
	}
	return &services.RecognizedText{Text: text, Confidence: 1.0}, nil
}

// RemoteRecognizerConfig holds configuration for the OCR HTTP endpoint
type RemoteRecognizerConfig struct {
	BaseURL       string
	APIKey        string
	Path          string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

type recognizeRequest struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// RemoteRecognizer sends documents to an OCR service over HTTP
type RemoteRecognizer struct {
	config RemoteRecognizerConfig
	client *resty.Client
}

// NewRemoteRecognizer creates a recognizer for the given endpoint
func NewRemoteRecognizer(config RemoteRecognizerConfig) (*RemoteRecognizer, error) {
	if config.BaseURL == "" {
		return nil, errors.New("OCR base URL is required")
	}

	// Set defaults
	if config.Path == "" {
		config.Path = "/v1/recognize"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = 500 * time.Millisecond
	}

	client := resty.New()
	client.SetTimeout(config.Timeout)
	client.SetHeader("Content-Type", "application/json")
	if config.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+config.APIKey)
	}
	client.SetBaseURL(config.BaseURL)

	return &RemoteRecognizer{
		config: config,
		client: client,
	}, nil
}

// Recognize implements services.TextRecognizer
func (r *RemoteRecognizer) Recognize(ctx context.Context, content []byte) (*services.RecognizedText, error) {
	request := recognizeRequest{Content: base64.StdEncoding.EncodeToString(content)}

	var response recognizeResponse
	var err error

	for attempt := 0; attempt < r.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			if waitErr := sleepContext(ctx, time.Duration(attempt)*r.config.RetryBackoff); waitErr != nil {
				return nil, waitErr
			}
		}

		resp, reqErr := r.client.R().
			SetContext(ctx).
			SetBody(request).
			SetResult(&response).
			Post(r.config.Path)

		if reqErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			err = fmt.Errorf("%w: %v", ErrRecognizerDown, reqErr)
			continue
		}

		status := resp.StatusCode()
		switch {
		case status == http.StatusOK:
			return toRecognized(response)
		case status == http.StatusTooManyRequests || status >= 500:
			err = fmt.Errorf("%w: status %d", ErrRecognizerDown, status)
			continue
		default:
			// 4xx other than rate limiting means the document itself is bad.
			return nil, fmt.Errorf("%w: status %d: %s", ErrRecognizerRejected, status, resp.String())
		}
	}
	return nil, err
}

func toRecognized(response recognizeResponse) (*services.RecognizedText, error) {
	text := strings.TrimSpace(response.Text)
	if text == "" {
		return nil, ErrUnreadableDocument
	}
	if response.Confidence < 0 || response.Confidence > 1 {
		return nil, fmt.Errorf("%w: recognizer confidence %v", services.ErrConfidenceOutOfRange, response.Confidence)
	}
	return &services.RecognizedText{Text: text, Confidence: response.Confidence}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
