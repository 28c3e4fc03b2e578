package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/rmachado/expense-audit/internal/config"
)

// Gemini is the production Judger backed by the Gemini API. The API is
// an external rate-limited service, so every call goes through a local
// limiter; bounding in-flight calls is the judgement queue's job.
type Gemini struct {
	client  *genai.Client
	model   string
	limits  Limits
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewGemini creates the Gemini-backed oracle. Credentials come from
// the environment the way the genai client resolves them.
func NewGemini(ctx context.Context, cfg config.OracleConfig, log zerolog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	interval := rate.Every(minuteOver(cfg.RequestsPerMinute))
	return &Gemini{
		client:  client,
		model:   cfg.Model,
		limits:  Limits{MaxRationaleLen: cfg.MaxRationaleLen, MaxQuotes: cfg.MaxQuotes},
		limiter: rate.NewLimiter(interval, 1),
		log:     log,
	}, nil
}

// Judge sends the evidence plus instructions to the model and returns
// the validated verdict. Transport failures come back wrapped in
// ErrUnavailable; undecodable or out-of-range responses in
// ErrInvalidVerdict.
func (g *Gemini) Judge(ctx context.Context, evidence, instructions string) (Verdict, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Verdict{}, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: instructions + "\n\nEVIDENCE:\n" + evidence},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: generate content: %v", ErrUnavailable, err)
	}

	raw := resp.Text()
	if raw == "" {
		return Verdict{}, fmt.Errorf("%w: empty response", ErrInvalidVerdict)
	}

	v, err := ParseVerdict(raw, g.limits)
	if err != nil {
		g.log.Warn().Err(err).Str("model", g.model).Msg("discarding unusable oracle response")
		return Verdict{}, err
	}
	return v, nil
}

func minuteOver(perMinute int) time.Duration {
	if perMinute <= 0 {
		perMinute = 1
	}
	return time.Minute / time.Duration(perMinute)
}
