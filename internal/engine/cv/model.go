package cv

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_cv/internal/engine"
)

// Prediction is one model confidence for one input span.
type Prediction interface {
	Confidence() float64
}

// Model scores text spans. Predict blocks; it is the only blocking boundary
// in the extraction path and must honor ctx.
type Model interface {
	Predict(ctx context.Context, texts []string) ([]Prediction, error)
}

// Tokenizer encodes a span into token IDs. The gate only probes for its
// presence; backends may use it for length budgeting.
type Tokenizer interface {
	Encode(text string) ([]int, error)
}

// StaticPrediction is a plain confidence value.
type StaticPrediction struct {
	Conf float64
}

// Confidence implements Prediction.
func (p StaticPrediction) Confidence() float64 { return p.Conf }

// WordTokenizer is a whitespace tokenizer with stable hashed IDs. It exists
// to satisfy the gate's tokenizer probe for LLM-backed models, which do
// their own tokenization server-side.
type WordTokenizer struct{}

// Encode implements Tokenizer.
func (WordTokenizer) Encode(text string) ([]int, error) {
	fields := strings.Fields(text)
	ids := make([]int, len(fields))
	for i, f := range fields {
		h := fnv.New32a()
		h.Write([]byte(strings.ToLower(f)))
		ids[i] = int(h.Sum32())
	}
	return ids, nil
}

// LLMModel scores spans through the configured LLM, rate-limited and
// retried via the engine.
type LLMModel struct {
	limiter *rate.Limiter
}

// NewLLMModel creates an LLM-backed model using the engine's rate limits.
func NewLLMModel() *LLMModel {
	rps := engine.Cfg.PredictRateLimit
	if rps <= 0 {
		rps = 2
	}
	burst := engine.Cfg.PredictBurst
	if burst <= 0 {
		burst = 4
	}
	return &LLMModel{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

const llmScorePrompt = `You are scoring résumé text spans for whether each one is a genuine work-experience statement (a real job: role, employer, or employment dates).
Return ONLY a JSON array of numbers between 0.0 and 1.0, one per span, in order. No prose.

Spans:
%s`

// Predict implements Model.
func (m *LLMModel) Predict(ctx context.Context, texts []string) ([]Prediction, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	engine.IncrPredictCalls()

	var sb strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, engine.TruncateRunes(t, 300, "…"))
	}
	prompt := fmt.Sprintf(llmScorePrompt, sb.String())

	confs, err := engine.RetryDo(ctx, engine.DefaultRetryConfig, func() ([]float64, error) {
		return engine.CallLLMToJSON[[]float64](ctx, prompt, 300)
	})
	if err != nil {
		engine.IncrPredictErrors()
		return nil, fmt.Errorf("llm predict: %w", err)
	}
	if len(confs) != len(texts) {
		engine.IncrPredictErrors()
		return nil, fmt.Errorf("llm predict: got %d confidences for %d spans", len(confs), len(texts))
	}

	preds := make([]Prediction, len(confs))
	for i, c := range confs {
		preds[i] = StaticPrediction{Conf: c}
	}
	return preds, nil
}

// ErrModelUnavailable is returned by MockModel when configured unhealthy.
var ErrModelUnavailable = errors.New("model unavailable")

// MockModel is a test double with controllable health, latency and scores.
type MockModel struct {
	Healthy      bool
	ResponseTime time.Duration
	Confs        []float64 // cycled per span; empty = length heuristic
	Err          error     // overrides the default unhealthy error
}

// Predict implements Model.
func (m *MockModel) Predict(ctx context.Context, texts []string) ([]Prediction, error) {
	if !m.Healthy {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, ErrModelUnavailable
	}
	if m.ResponseTime > 0 {
		select {
		case <-time.After(m.ResponseTime):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	preds := make([]Prediction, len(texts))
	for i, t := range texts {
		conf := 0.55
		if len(t) > 20 {
			conf = 0.85
		}
		if len(m.Confs) > 0 {
			conf = m.Confs[i%len(m.Confs)]
		}
		preds[i] = StaticPrediction{Conf: conf}
	}
	return preds, nil
}
