package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/fixgenie/internal/fixgenie/metrics"
	"github.com/kart-io/fixgenie/internal/model"
	"github.com/kart-io/fixgenie/internal/pkg/errkind"
	"github.com/kart-io/fixgenie/pkg/llm"
	"github.com/kart-io/fixgenie/pkg/llm/resilience"
)

// maxContextField caps description and resolution lengths inside a prompt
// context block.
const maxContextField = 500

// degradedConfidenceFactor scales confidence when retrieval ran without the
// dense path.
const degradedConfidenceFactor = 0.6

// maxHybridConfidence caps generated answers. Full certainty is reserved for
// exact id lookups.
const maxHybridConfidence = 0.99

const systemPrompt = `You are FixGenie, an assistant for payment platform engineers. Answer strictly from the incident context blocks provided. Cite incident ids for every claim. If the context does not cover the question, say so instead of guessing.`

// PromptTemplate assembles the generation prompt from named slots. The query
// text is always the sanitized form; raw user input never reaches a prompt.
type PromptTemplate struct {
	Query    string
	Contexts []ContextBlock
}

// ContextBlock is one retrieved incident rendered for the prompt.
type ContextBlock struct {
	IncidentID string
	Title      string
	Summary    string
	Resolution string
	MatchType  string
}

// Render produces the user prompt text.
func (t PromptTemplate) Render() string {
	var sb strings.Builder
	sb.WriteString("Resolved incidents:\n\n")
	for i, c := range t.Contexts {
		sb.WriteString(fmt.Sprintf("[%d] %s (%s)\n", i+1, c.IncidentID, c.MatchType))
		sb.WriteString("Title: " + c.Title + "\n")
		sb.WriteString("Summary: " + c.Summary + "\n")
		sb.WriteString("Resolution: " + c.Resolution + "\n\n")
	}
	sb.WriteString("Question: " + t.Query + "\n")
	sb.WriteString("Answer using only the incidents above, citing their ids.")
	return sb.String()
}

// Generator turns an admitted candidate set into an answer. All generative
// calls go through the rate limiter, circuit breaker and retry stack; exact
// id lookups and refusals never reach the model.
type Generator struct {
	chat    llm.ChatProvider
	limiter *llm.RateLimiter
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
}

// NewGenerator creates a generator over the chat provider.
func NewGenerator(chat llm.ChatProvider, limiter *llm.RateLimiter) *Generator {
	return &Generator{
		chat:    chat,
		limiter: limiter,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:   resilience.DefaultRetryConfig(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// buildTemplate renders candidates into context blocks.
func buildTemplate(q *model.Query, candidates []model.RetrievalCandidate) PromptTemplate {
	t := PromptTemplate{Query: q.Sanitized}
	for _, c := range candidates {
		if c.Incident == nil {
			continue
		}
		t.Contexts = append(t.Contexts, ContextBlock{
			IncidentID: c.IncidentID,
			Title:      c.Incident.Title,
			Summary:    truncate(c.Incident.Description, maxContextField),
			Resolution: truncate(c.Incident.Resolution, maxContextField),
			MatchType:  c.MatchType,
		})
	}
	return t
}

// Generate produces the answer text and its confidence for an admitted
// candidate set. Confidence is min(top fused, composite), scaled down in
// degraded mode.
func (g *Generator) Generate(ctx context.Context, q *model.Query, candidates []model.RetrievalCandidate, composite float64, degraded bool) (string, float64, error) {
	if ok, err := g.limiter.Acquire(ctx); err != nil {
		return "", 0, errkind.Wrap(errkind.KindInternal, "rate limiter wait failed", err)
	} else if !ok {
		return "", 0, errkind.New(errkind.KindRateLimited, "generation capacity exhausted, retry later")
	}

	prompt := buildTemplate(q, candidates).Render()

	var answer string
	start := time.Now()
	err := resilience.RetryWithBackoff(ctx, g.retry, func() error {
		return g.breaker.Execute(func() error {
			out, chatErr := g.chat.Generate(ctx, prompt, systemPrompt)
			if chatErr != nil {
				metrics.Get().RecordLLMRetry()
				return chatErr
			}
			answer = out
			return nil
		})
	})
	metrics.Get().RecordLLMCall(time.Since(start), err)
	if err != nil {
		return "", 0, errkind.Wrap(errkind.KindTransientRemote, "generation failed", err)
	}

	confidence := composite
	if len(candidates) > 0 && candidates[0].FusedScore < confidence {
		confidence = candidates[0].FusedScore
	}
	if confidence > maxHybridConfidence {
		confidence = maxHybridConfidence
	}
	if degraded {
		confidence *= degradedConfidenceFactor
	}
	return answer, clamp01(confidence), nil
}

// FormatExactID renders the answer for an exact id lookup without any
// generative call. Confidence is always 1.0 for an exact hit.
func (g *Generator) FormatExactID(inc *model.Incident) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s\n\n", inc.ID, inc.Title))
	sb.WriteString(inc.Description)
	sb.WriteString("\n\nResolution: ")
	sb.WriteString(inc.Resolution)
	if inc.ResolvedBy != "" {
		sb.WriteString("\n\nResolved by: " + inc.ResolvedBy)
	}
	return sb.String()
}

// RefusalMessage renders the canned refusal for a reason. Refusals never call
// the model.
func (g *Generator) RefusalMessage(reason model.RefusalReason) string {
	switch reason {
	case model.RefusalOutOfDomain:
		return "This question is outside the payment incident knowledge base. Ask about payment gateways, transactions, webhooks or related production incidents."
	case model.RefusalNoCandidates:
		return "No past incident matches this query. Try adding the merchant, gateway or the exact error message."
	default:
		return "The closest past incidents do not match this query well enough to answer reliably. Try adding the merchant, gateway or the exact error message."
	}
}
