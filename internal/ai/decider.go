package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/EricCohen9/melingo/internal/analyzer"
)

// Decision is the engagement judgment for a session.
type Decision struct {
	ShouldShowMessage bool   `json:"should_show_message"`
	Message           string `json:"message,omitempty"`
	TriggerType       string `json:"trigger_type,omitempty"`
	Reasoning         string `json:"reasoning,omitempty"`
}

// Decider turns a session summary into an engagement decision. It asks an
// OpenAI model when a key is configured and falls back to deterministic
// heuristics otherwise, or whenever the model call or its output fails.
type Decider struct {
	client  openai.Client
	model   string
	enabled bool
}

func NewDecider(apiKey, model string) *Decider {
	d := &Decider{model: model}
	if apiKey != "" {
		d.client = openai.NewClient(option.WithAPIKey(apiKey))
		d.enabled = true
	}
	return d
}

// Decide judges whether to intervene for the summarized session.
func (d *Decider) Decide(ctx context.Context, sum *analyzer.Summary) *Decision {
	if !d.enabled {
		log.Debug().Str("component", "ai").Msg("No model configured, using heuristic decision")
		return Fallback(sum)
	}

	decision, err := d.ask(ctx, sum)
	if err != nil {
		log.Warn().Err(err).Str("component", "ai").Msg("Model decision failed, using heuristics")
		return Fallback(sum)
	}
	return decision
}

const systemPrompt = "You are a smart e-commerce engagement assistant."

func (d *Decider) ask(ctx context.Context, sum *analyzer.Summary) (*Decision, error) {
	resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(d.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(sum)),
		},
		MaxTokens:   openai.Int(200),
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("ai: empty completion")
	}

	decision, err := parseDecision(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("component", "ai").
		Bool("should_show", decision.ShouldShowMessage).
		Str("trigger_type", decision.TriggerType).
		Str("reasoning", decision.Reasoning).
		Msg("Model decision")

	if decision.ShouldShowMessage && decision.Message == "" {
		decision.Message = "Special offer just for you!"
	}
	if decision.ShouldShowMessage && decision.TriggerType == "" {
		decision.TriggerType = "discount"
	}
	return decision, nil
}

func buildPrompt(sum *analyzer.Summary) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant helping an e-commerce store engage customers at the right moment.\n\n")
	b.WriteString("Analyze this user session data and decide if you should show an engagement message:\n\n")
	b.WriteString("Session Analysis:\n")
	fmt.Fprintf(&b, "- Total page views: %d\n", sum.PageViews)
	fmt.Fprintf(&b, "- Total clicks: %d\n", sum.Clicks)
	fmt.Fprintf(&b, "- Products viewed: %d\n", sum.ProductPageViews)
	fmt.Fprintf(&b, "- Cart interactions: %d\n", sum.CartActions)
	fmt.Fprintf(&b, "- Session duration: %.1f seconds\n", sum.SessionDuration)
	fmt.Fprintf(&b, "- Current page type: %s\n", sum.CurrentPage)
	fmt.Fprintf(&b, "- Has items in cart: %t\n", sum.HasCartItems)
	b.WriteString("\nRules for engagement:\n")
	b.WriteString("1. Don't be annoying - only show messages when it adds value\n")
	b.WriteString("2. Consider user behavior patterns (hesitation, high engagement, etc.)\n")
	b.WriteString("3. Time messages appropriately (not too early, not too late)\n")
	b.WriteString("4. Personalize based on behavior\n")
	b.WriteString("\nRespond in JSON format:\n")
	b.WriteString(`{"should_show_message": true/false, "message": "Your personalized message here (max 50 words)", "reasoning": "Brief explanation of why", "trigger_type": "discount" | "help" | "urgency" | "recommendation" | null}`)
	return b.String()
}

// parseDecision extracts the JSON decision from model output, tolerating
// code fences and surrounding prose.
func parseDecision(content string) (*Decision, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	// Fall back to the outermost braces when the model wrapped the JSON in
	// prose.
	if !strings.HasPrefix(trimmed, "{") {
		start := strings.Index(trimmed, "{")
		end := strings.LastIndex(trimmed, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("ai: no JSON object in completion")
		}
		trimmed = trimmed[start : end+1]
	}

	var decision Decision
	if err := json.Unmarshal([]byte(trimmed), &decision); err != nil {
		return nil, fmt.Errorf("ai: decode decision: %w", err)
	}
	return &decision, nil
}

// Fallback is the deterministic decision chain used without a model.
func Fallback(sum *analyzer.Summary) *Decision {
	if sum.HasCartItems {
		return &Decision{
			ShouldShowMessage: true,
			Message:           "Great choice! Complete your order for free shipping!",
			TriggerType:       "urgency",
		}
	}
	if sum.TotalEvents >= 3 {
		return &Decision{
			ShouldShowMessage: true,
			Message:           "Still browsing? Get 10% off your first order!",
			TriggerType:       "discount",
		}
	}
	return &Decision{ShouldShowMessage: false}
}
