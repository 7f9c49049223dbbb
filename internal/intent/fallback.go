package intent

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kjstillabower/travel-wardrobe-service/internal/client"
	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
)

// FallbackParser tries the primary parser and falls back to the rule parser
// on any error. A nil primary always uses the rules.
type FallbackParser struct {
	primary  Parser
	fallback Parser
}

// NewFallbackParser returns a parser that prefers primary. primary may be nil.
func NewFallbackParser(primary, fallback Parser) *FallbackParser {
	return &FallbackParser{primary: primary, fallback: fallback}
}

// Parse implements Parser. Only an empty query is an error; a failed primary
// is recorded in Intent.FallbackReason.
func (p *FallbackParser) Parse(ctx context.Context, query string) (models.Intent, error) {
	logger := observability.LoggerFromContext(ctx)

	if p.primary != nil {
		in, err := p.primary.Parse(ctx, query)
		if err == nil {
			observability.IntentParsesTotal.WithLabelValues(in.Source, "success").Inc()
			return in, nil
		}
		if errors.Is(err, ErrEmptyQuery) {
			return models.Intent{}, err
		}

		reason := string(client.CategorizeError(err))
		observability.IntentParsesTotal.WithLabelValues(models.IntentSourceGenAI, "error").Inc()
		logger.Warn("intent model failed, using rules", zap.Error(err), zap.String("category", reason))

		in, ferr := p.fallback.Parse(ctx, query)
		if ferr != nil {
			return models.Intent{}, ferr
		}
		in.FallbackReason = "genai_" + reason
		observability.IntentParsesTotal.WithLabelValues(in.Source, "fallback").Inc()
		return in, nil
	}

	in, err := p.fallback.Parse(ctx, query)
	if err != nil {
		return models.Intent{}, err
	}
	observability.IntentParsesTotal.WithLabelValues(in.Source, "success").Inc()
	return in, nil
}
