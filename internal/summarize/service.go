package summarize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/keygate/keygate/internal/cache"
	"github.com/keygate/keygate/internal/llm"
)

const systemPrompt = "You are an expert technical summarizer. Given the README content of a GitHub repository, summarize its purpose and functionality. Respond only with information taken from the README, as a JSON object with a \"summary\" string and a \"cool_facts\" array of strings."

const cacheTTL = 24 * time.Hour

// Summary is the structured output produced for a repository README.
type Summary struct {
	Summary   string   `json:"summary"`
	CoolFacts []string `json:"cool_facts"`
}

// Service turns README content into a structured summary via the LLM
// gateway, memoizing results per repository and README revision.
type Service struct {
	gw    llm.Gateway
	cache *cache.Cache
	model string
}

func NewService(gw llm.Gateway, c *cache.Cache, model string) *Service {
	return &Service{gw: gw, cache: c, model: model}
}

func (s *Service) SummarizeReadme(ctx context.Context, repo, readme string) (*Summary, error) {
	cacheKey := summaryCacheKey(repo, readme)

	if s.cache != nil {
		var cached Summary
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("summary cache read failed", "repo", repo, "error", err)
		}
	}

	raw, err := s.gw.Complete(ctx, llm.CompletionRequest{
		Model:       s.model,
		System:      systemPrompt,
		Prompt:      "Summarize this GitHub repository from this readme file content:\n" + readme,
		Temperature: 0.7,
		JSONOutput:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize readme: %w", err)
	}

	summary, err := parseSummary(raw)
	if err != nil {
		return nil, fmt.Errorf("summarize readme: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, cacheTTL); err != nil {
			slog.Warn("summary cache write failed", "repo", repo, "error", err)
		}
	}

	return summary, nil
}

// parseSummary tolerates models that wrap the JSON object in a markdown code
// fence despite the JSON-output instruction.
func parseSummary(raw string) (*Summary, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var s Summary
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("parse summary output: %w", err)
	}
	if s.Summary == "" {
		return nil, fmt.Errorf("parse summary output: missing summary field")
	}
	if s.CoolFacts == nil {
		s.CoolFacts = []string{}
	}
	return &s, nil
}

func summaryCacheKey(repo, readme string) string {
	digest := sha256.Sum256([]byte(readme))
	return "summary:" + strings.ToLower(repo) + ":" + hex.EncodeToString(digest[:8])
}
