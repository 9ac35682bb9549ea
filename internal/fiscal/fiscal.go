// Package fiscal is the boundary to the LLM-backed extraction and response
// component. Its raw output is duck-typed; everything crossing into the core
// is validated against the closed intent set here.
package fiscal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/plenacare/plantao/pkg/models"
)

// ErrFiscalUnavailable wraps transport and decoding failures of the fiscal
// service. Callers degrade to the auxiliary flow or the template responder.
var ErrFiscalUnavailable = errors.New("fiscal service unavailable")

// Classifier extracts intent and structured data from one message.
type Classifier interface {
	Classify(ctx context.Context, text string, state *models.SessionState) (*models.Extraction, error)
}

// Responder renders the user-facing reply from the final persisted state and
// the flow outcome.
type Responder interface {
	Render(ctx context.Context, state *models.SessionState, outcome *models.FlowOutcome) (string, error)
}

// Client talks to the fiscal HTTP service.
type Client struct {
	baseURL string
	http    *http.Client
	codec   tokenizer.Codec
}

// Config holds fiscal service settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a fiscal client. The tokenizer is used only for budget
// accounting in logs; its absence is not fatal.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		log.Warn().Err(err).Msg("Tokenizer unavailable, token accounting disabled")
		codec = nil
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		codec:   codec,
	}
}

// rawExtraction is the duck-typed wire shape of the classifier output.
type rawExtraction struct {
	Intent        string            `json:"intent"`
	Vitais        map[string]string `json:"vitais"`
	Nota          string            `json:"nota"`
	RespostaValor string            `json:"respostaValor"`
	Resumo        map[string]string `json:"resumo"`
}

// Classify calls the extraction endpoint and validates the result into the
// closed intent set. An unrecognized intent degrades to auxiliary, never
// fails the request.
func (c *Client) Classify(ctx context.Context, text string, state *models.SessionState) (*models.Extraction, error) {
	req := map[string]any{
		"text":             text,
		"session_id":       state.SessionID,
		"has_schedule":     state.HasSchedule(),
		"fluxosExecutados": state.FluxosExecutados,
	}

	c.countTokens("classify", text)

	var raw rawExtraction
	if err := c.post(ctx, "/v1/classify", req, &raw); err != nil {
		return nil, err
	}

	return &models.Extraction{
		Intent:        models.ValidIntent(raw.Intent),
		Vitais:        raw.Vitais,
		Nota:          raw.Nota,
		RespostaValor: raw.RespostaValor,
		Resumo:        raw.Resumo,
	}, nil
}

// Render asks the fiscal service to phrase the reply for an outcome.
func (c *Client) Render(ctx context.Context, state *models.SessionState, outcome *models.FlowOutcome) (string, error) {
	req := map[string]any{
		"session_id": state.SessionID,
		"outcome":    outcome,
		"state": map[string]any{
			"fluxos_executados":  state.FluxosExecutados,
			"finishReminderSent": state.FinishReminderSent,
			"pendente":           state.Pendente,
			"clinico_faltantes":  state.Clinico.Faltantes,
			"afericao_realizada": state.Clinico.AfericaoCompleta,
		},
	}

	var resp struct {
		Reply string `json:"reply"`
	}
	if err := c.post(ctx, "/v1/render", req, &resp); err != nil {
		return "", err
	}
	if resp.Reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrFiscalUnavailable)
	}

	c.countTokens("render", resp.Reply)
	return resp.Reply, nil
}

func (c *Client) countTokens(op, text string) {
	if c.codec == nil {
		return
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return
	}
	log.Debug().Str("op", op).Int("tokens", len(ids)).Msg("Fiscal token accounting")
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFiscalUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", ErrFiscalUnavailable, path, resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %s malformed response: %v", ErrFiscalUnavailable, path, err)
	}
	return nil
}
