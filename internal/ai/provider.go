// Package ai implements the opaque AI text-completion provider (§1):
// a single upstream call with a timeout, wrapped so an upstream failure
// degrades to a deterministic fallback instead of failing the caller's
// request outright.
package ai

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/pkg/errs"
)

// Provider is the minimal surface §1 calls for: a prompt in, completion
// text out. Kept as an interface (rather than exposing *openai.Client
// directly) so Service can be constructed with a fake in tests.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// openAIProvider is grounded on the teacher's internal/adapters/ai
// package's provider shape (GetName/Analyze-per-provider), narrowed to
// a single provider and a single free-text completion call per spec
// §1's "opaque text-completion service" framing — there is no ensemble
// or consensus voting here, since nothing in SPEC_FULL.md needs
// multi-provider agreement.
type openAIProvider struct {
	client *openai.Client
	model  string
}

const defaultModel = openai.GPT4oMini

func newOpenAIProvider(apiKey string) *openAIProvider {
	return &openAIProvider{client: openai.NewClient(apiKey), model: defaultModel}
}

func (p *openAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", errs.Wrap(errs.KindUpstream, "ai completion request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.New(errs.KindUpstream, "ai completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Result is what Service.Complete always returns — never an error,
// since a failed upstream call degrades into fallback text rather than
// propagating (§6 "degraded: true" policy).
type Result struct {
	Text     string
	Degraded bool
}

// fallbackText is returned whenever the provider is disabled or the
// upstream call fails; it names the tool the caller should fall back
// to rather than pretending an opinion was formed.
const fallbackText = "AI analysis is temporarily unavailable. Rely on the Risk Engine's verdict and the latest quote for this decision."

// Service wraps Provider with the enabled/timeout/fallback policy; it
// is what the rest of the module depends on instead of *openai.Client.
type Service struct {
	provider Provider
	timeout  time.Duration
	enabled  bool
}

// NewService returns a Service that degrades every call to fallbackText
// when cfg carries no provider key, so callers never need a separate
// "is AI configured" branch (§7 "AI_PROVIDER_KEY absence... disables AI
// endpoints gracefully").
func NewService(cfg config.AIConfig) *Service {
	if !cfg.Enabled() {
		return &Service{enabled: false}
	}
	return &Service{
		provider: newOpenAIProvider(cfg.ProviderKey),
		timeout:  cfg.Timeout,
		enabled:  true,
	}
}

// NewServiceWithProvider is used by tests to substitute a fake Provider
// without touching the real OpenAI client.
func NewServiceWithProvider(provider Provider, timeout time.Duration) *Service {
	return &Service{provider: provider, timeout: timeout, enabled: true}
}

// Complete runs prompt through the provider within Service's timeout,
// falling back to fallbackText on any error or when AI is disabled.
func (s *Service) Complete(ctx context.Context, prompt string) Result {
	if !s.enabled {
		return Result{Text: fallbackText, Degraded: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.provider.Complete(callCtx, prompt)
	if err != nil {
		return Result{Text: fallbackText, Degraded: true}
	}
	return Result{Text: text, Degraded: false}
}
