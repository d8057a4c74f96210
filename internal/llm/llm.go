// Package llm wraps the Anthropic Messages API behind the two structured
// calls the validation engine needs: one independent review per panel
// member, and semantic panel selection for unrecognized domains. Responses
// are validated against closed schemas here so nothing malformed leaks
// into aggregation.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
)

// Client wraps the Anthropic API for reviewer calls.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// reviewContract is appended to every reviewer's instructions so each call
// returns the same structured shape.
const reviewContract = `Respond with ONLY a JSON object with these fields:
- "status": one of "needs-improvement", "acceptable", "excellent"
- "score": integer from 0 to 100
- "issues": array of objects {"severity": "critical" | "major" | "minor", "category": string, "description": string, "suggestion": string}
- "strengths": array of strings naming what the work item does well
- "improvementPriorities": array of strings, one short actionable item each, most important first

Rules:
- Review only the work item you are given, from your role's perspective
- Every issue must carry exactly one of the three severities
- An empty issues array is valid for clean work items
- Return valid JSON only, no markdown fencing or explanation`

// buildReviewPrompt constructs the system and user prompts for one
// reviewer call.
func buildReviewPrompt(instructions string, item *models.WorkItem) (system string, user string) {
	system = instructions + "\n\n" + reviewContract

	var sb strings.Builder
	sb.WriteString("Review this ")
	sb.WriteString(string(item.Kind))
	sb.WriteString(":\n\n")
	sb.WriteString("ID: ")
	sb.WriteString(item.ID)
	sb.WriteString("\nTitle: ")
	sb.WriteString(item.Title)
	sb.WriteString("\n")
	if item.Description != "" {
		sb.WriteString("Description: ")
		sb.WriteString(item.Description)
		sb.WriteString("\n")
	}
	if item.Domain != "" {
		sb.WriteString("Domain: ")
		sb.WriteString(item.Domain)
		sb.WriteString("\n")
	}
	if len(item.Features) > 0 {
		sb.WriteString("Features: ")
		sb.WriteString(strings.Join(item.Features, ", "))
		sb.WriteString("\n")
	}
	if len(item.AcceptanceCriteria) > 0 {
		sb.WriteString("Acceptance criteria:\n")
		for _, c := range item.AcceptanceCriteria {
			sb.WriteString("- ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
	}
	user = sb.String()
	return
}

// ReviewWorkItem runs one reviewer over a work item and returns its
// validated structured result. The caller stamps ReviewerID; transport
// failures surface as *ProviderError and malformed responses as
// *ParseError.
func (c *Client) ReviewWorkItem(ctx context.Context, instructions string, item *models.WorkItem) (*models.ReviewResult, error) {
	systemPrompt, userPrompt := buildReviewPrompt(instructions, item)

	text, err := c.complete(ctx, systemPrompt, userPrompt, 2048)
	if err != nil {
		return nil, err
	}

	var result models.ReviewResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, &ParseError{Raw: text, Err: fmt.Errorf("parse LLM response as JSON: %w", err)}
	}
	if err := validateResult(&result, text); err != nil {
		return nil, err
	}
	return &result, nil
}

// selectContract is the system prompt for semantic panel selection.
const selectContract = `You assign specialist reviewers to agile planning work items whose business domain has no predefined reviewer mapping. Given the work item kind, its free-text domain, and a candidate reviewer list, pick the specialists whose expertise best covers the domain's risks.

Rules:
- Choose between 1 and 4 reviewers
- Choose ONLY from the candidate list, verbatim IDs
- Prefer specialists over generalists; universal reviewers are already assigned
- Return ONLY a JSON array of reviewer ID strings, no markdown fencing or explanation`

// buildSelectPrompt constructs the system and user prompts for semantic
// panel selection.
func buildSelectPrompt(kind models.WorkItemKind, domain string, candidates []string) (system string, user string) {
	system = selectContract

	var sb strings.Builder
	sb.WriteString("Work item kind: ")
	sb.WriteString(string(kind))
	sb.WriteString("\nDomain: ")
	sb.WriteString(domain)
	sb.WriteString("\n\nCandidate reviewers:\n")
	for _, id := range candidates {
		sb.WriteString("- ")
		sb.WriteString(id)
		sb.WriteString("\n")
	}
	user = sb.String()
	return
}

// SelectPanel asks the model to pick domain specialists from the candidate
// roster for a free-text domain description.
func (c *Client) SelectPanel(ctx context.Context, kind models.WorkItemKind, domain string, candidates []string) ([]string, error) {
	systemPrompt, userPrompt := buildSelectPrompt(kind, domain, candidates)

	text, err := c.complete(ctx, systemPrompt, userPrompt, 1024)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(text), &ids); err != nil {
		return nil, &ParseError{Raw: text, Err: fmt.Errorf("parse LLM response as JSON: %w", err)}
	}
	return ids, nil
}

// complete sends one system+user exchange and returns the fenced-stripped
// text of the response.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", &ProviderError{Err: fmt.Errorf("anthropic API call: %w", err)}
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", &ParseError{Err: fmt.Errorf("no text content in API response")}
	}

	return stripFences(text), nil
}

// stripFences removes surrounding markdown code fencing, if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// validateResult enforces the closed review schema at the provider
// boundary: known status, score in range, known severities.
func validateResult(r *models.ReviewResult, raw string) error {
	if !r.Status.Valid() {
		return &ParseError{Raw: raw, Err: fmt.Errorf("invalid status %q", r.Status)}
	}
	if r.Score < 0 || r.Score > 100 {
		return &ParseError{Raw: raw, Err: fmt.Errorf("score %d out of range 0-100", r.Score)}
	}
	for i, issue := range r.Issues {
		if !issue.Severity.Valid() {
			return &ParseError{Raw: raw, Err: fmt.Errorf("issue %d: invalid severity %q", i, issue.Severity)}
		}
	}
	return nil
}
