// Package classify runs trained per-SDG multi-label rule classifiers over
// refined evidence sentences. The models themselves live behind an external
// serving endpoint; classification is a pure function of model weights and
// input text.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrModelNotFound reports that the serving endpoint does not host the
// requested model. Callers treat this as degraded mode, not a failure.
var ErrModelNotFound = errors.New("classifier model not found")

// Classifier scores one text against every rule label of its model,
// returning independent sigmoid probabilities per label.
type Classifier interface {
	Classify(ctx context.Context, text string) (map[string]float64, error)
}

// Service is a client for the model-serving endpoint hosting the trained
// rule classifiers.
type Service struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewService creates a serving client.
func NewService(baseURL string, timeout time.Duration, log *zap.Logger) *Service {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Service{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Has probes whether the serving endpoint hosts the named model.
func (s *Service) Has(ctx context.Context, modelName string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models/"+modelName, nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn("model probe failed",
			zap.String("model", modelName),
			zap.Error(err))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Classifier returns a Classifier bound to one hosted model.
func (s *Service) Classifier(modelName string) Classifier {
	return &servingClassifier{svc: s, model: modelName}
}

type servingClassifier struct {
	svc   *Service
	model string
}

type classifyRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type classifyResponse struct {
	Probabilities map[string]float64 `json:"probabilities"`
}

// Classify posts one sentence to the serving endpoint and returns the
// per-label probabilities.
func (c *servingClassifier) Classify(ctx context.Context, text string) (map[string]float64, error) {
	body, err := json.Marshal(classifyRequest{Model: c.model, Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.svc.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.svc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", c.model, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("classify %s: %w", c.model, ErrModelNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classify %s: unexpected status %d", c.model, resp.StatusCode)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode classify response: %w", err)
	}
	return parsed.Probabilities, nil
}
