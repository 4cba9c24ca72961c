package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

const (
	describeMaxTokens = 256
	describeRetries   = 3
	describeBaseDelay = time.Second

	// describeRPS bounds request rate; rules arrive in bursts and the
	// limiter smooths them out.
	describeRPS   = 2
	describeBurst = 4
)

// ErrEmptyCompletion indicates the model returned no usable text.
var ErrEmptyCompletion = errors.New("empty completion")

// ClaudeDescriber rewrites rule descriptions in plain business language
// using the Anthropic API.
type ClaudeDescriber struct {
	client  anthropic.Client
	model   string
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewClaudeDescriber creates a describer for the given model.
func NewClaudeDescriber(apiKey, model string, logger *logging.Logger) (*ClaudeDescriber, error) {
	if apiKey == "" {
		return nil, errors.New("describer: API key required")
	}
	if model == "" {
		return nil, errors.New("describer: model required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ClaudeDescriber{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(describeRPS), describeBurst),
		logger:  logger.Named("enrich.describer"),
	}, nil
}

// Describe returns a one-sentence business description of the rule,
// retrying transient failures with exponential backoff.
func (d *ClaudeDescriber) Describe(ctx context.Context, r *rules.Rule) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}

	prompt := buildDescribePrompt(r)

	var lastErr error
	for attempt := 0; attempt < describeRetries; attempt++ {
		if attempt > 0 {
			delay := describeBaseDelay << (attempt - 1)
			d.logger.Debug("retrying description",
				zap.String("rule_id", r.ID),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(d.model),
			MaxTokens: describeMaxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			lastErr = err
			continue
		}

		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			lastErr = ErrEmptyCompletion
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("describing rule %s: %w", r.ID, lastErr)
}

func buildDescribePrompt(r *rules.Rule) string {
	var sb strings.Builder
	sb.WriteString("Describe this business rule in one plain-language sentence for a business analyst. ")
	sb.WriteString("Reply with the sentence only.\n\n")
	fmt.Fprintf(&sb, "Rule type: %s\n", r.Type)
	fmt.Fprintf(&sb, "Expression: %s\n", r.NormalizedExpression)
	if len(r.Tables) > 0 {
		fmt.Fprintf(&sb, "Tables: %s\n", strings.Join(r.Tables, ", "))
	}
	if len(r.Columns) > 0 {
		fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(r.Columns, ", "))
	}
	if r.Source.Snippet != "" {
		fmt.Fprintf(&sb, "Source:\n%s\n", r.Source.Snippet)
	}
	return sb.String()
}
