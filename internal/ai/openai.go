// ABOUTME: OpenAI chat-completions wire adapter
// ABOUTME: Flat message list with bearer-token authentication

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *HTTPGateway) generateOpenAI(ctx context.Context, req Request) (string, error) {
	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = "You are a helpful assistant."
	}

	messages := []chatMessage{{Role: "system", Content: systemPrompt}}
	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: RoleUser, Content: req.Message})

	payload := chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
	}

	var resp chatCompletionResponse
	if err := g.postJSON(ctx, g.openaiBaseURL+"/chat/completions", "Bearer "+req.Credential, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", newError(ErrMalformedResponse, "openai response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// postJSON sends an authenticated JSON request and decodes the response,
// classifying failures into the gateway error taxonomy.
func (g *HTTPGateway) postJSON(ctx context.Context, url, authorization string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return wrapError(err, ErrTransport, "encoding request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return wrapError(err, ErrTransport, "building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		httpReq.Header.Set("Authorization", authorization)
	}

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return wrapError(err, ErrTransport, "provider request failed")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		code := classifyStatus(httpResp.StatusCode)
		return &Error{
			Code:    code,
			Message: fmt.Sprintf("provider returned status %d", httpResp.StatusCode),
			Status:  httpResp.StatusCode,
		}
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return wrapError(err, ErrMalformedResponse, "decoding provider response")
	}
	return nil
}
