// ABOUTME: Groq chat-completions wire adapter
// ABOUTME: OpenAI-compatible request shape against the Groq endpoint and model catalog

package ai

import "context"

func (g *HTTPGateway) generateGroq(ctx context.Context, req Request) (string, error) {
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt + styleDirective})
	}
	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: RoleUser, Content: req.Message})

	payload := chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   1024,
	}

	var resp chatCompletionResponse
	if err := g.postJSON(ctx, g.groqBaseURL+"/chat/completions", "Bearer "+req.Credential, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", newError(ErrMalformedResponse, "groq response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
