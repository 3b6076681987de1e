package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/pagemill/pagemill/internal/robust"
)

// doRequest makes a single HTTP request to OpenRouter. Failures come back
// tagged with the pipeline error taxonomy so the robustness decorators can
// decide whether to retry; this method itself never retries.
func (c *OpenRouterConverter) doRequest(ctx context.Context, body *openRouterRequest) (*openRouterResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", uuid.New().String())
	req.Header.Set("X-Title", "Pagemill")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, robust.Classify(fmt.Errorf("request failed: %w", err))
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, robust.APIError(0, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.Record429(0)
		return nil, robust.RateLimitError(fmt.Errorf("openrouter rate limited: %s", truncate(string(respBody), 200)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, robust.APIError(resp.StatusCode,
			fmt.Errorf("openrouter error: %s", truncate(string(respBody), 500)))
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(respBody, &orResp); err != nil {
		return nil, robust.APIError(0, fmt.Errorf("failed to unmarshal response: %w", err))
	}

	// API-level error in a 200 body; some codes are transient.
	if orResp.Error != nil {
		code := fmt.Sprintf("%v", orResp.Error.Code)
		switch code {
		case "overloaded", "rate_limit_exceeded", "429":
			return nil, robust.RateLimitError(fmt.Errorf("openrouter API error: %s", orResp.Error.Message))
		case "500", "502", "503":
			return nil, robust.APIError(503, fmt.Errorf("openrouter API error: %s", orResp.Error.Message))
		}
		return nil, robust.APIError(0, fmt.Errorf("openrouter API error (%s): %s", code, orResp.Error.Message))
	}

	if len(orResp.Choices) == 0 {
		// Empty choices are usually transient.
		return nil, &robust.PipelineError{
			Kind:      robust.KindAPI,
			Retryable: true,
			Err:       fmt.Errorf("empty choices in response (model=%s, id=%s)", orResp.Model, orResp.ID),
		}
	}

	return &orResp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func usageFrom(resp *openRouterResponse) Usage {
	if resp == nil || resp.Usage == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CostUSD:          resp.Usage.Cost,
	}
}
