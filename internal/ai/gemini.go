// ABOUTME: Gemini generateContent wire adapter
// ABOUTME: Nested contents structure, query-string key auth, synthetic system exchange

package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// generateGemini speaks the generateContent protocol. The wire format has no
// first-class system role, so the system prompt is injected as a synthetic
// user/model exchange at the start of the contents list.
func (g *HTTPGateway) generateGemini(ctx context.Context, req Request) (string, error) {
	model := strings.TrimPrefix(req.Model, "models/")

	var contents []geminiContent
	if req.SystemPrompt != "" {
		contents = append(contents,
			geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: "System instruction: " + req.SystemPrompt + styleDirective}},
			},
			geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: "Ok."}},
			},
		)
	}
	for _, turn := range req.History {
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: turn.Content}}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: req.Message}}})

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.geminiBaseURL, model, url.QueryEscape(req.Credential))

	var resp geminiResponse
	if err := g.postJSON(ctx, endpoint, "", geminiRequest{Contents: contents}, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", newError(ErrMalformedResponse, "gemini response contained no candidates")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
