// Package classifier turns fetched posts into risk verdicts using an
// LLM-backed sentiment analysis. Classifier failures never abort a monitoring
// cycle; they degrade to an UNKNOWN verdict carrying the error.
package classifier

import (
	"context"

	"github.com/gamepop/fin-x-watcher/pkg/models"
)

// Classifier produces a risk verdict for an entity from a set of posts.
// Implementations always return a usable verdict; a non-nil error signals
// that the verdict is degraded and a fallback may produce a better one.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, entity string, posts []models.Post) (models.RiskVerdict, error)
}

// Chain tries classifiers in order and returns the first successful verdict.
// When every classifier fails the last degraded verdict is returned along
// with the last error.
type Chain struct {
	classifiers []Classifier
}

func NewChain(classifiers ...Classifier) *Chain {
	return &Chain{classifiers: classifiers}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Classify(ctx context.Context, entity string, posts []models.Post) (models.RiskVerdict, error) {
	var lastVerdict models.RiskVerdict
	var lastErr error
	for _, cl := range c.classifiers {
		verdict, err := cl.Classify(ctx, entity, posts)
		if err == nil {
			return verdict, nil
		}
		lastVerdict, lastErr = verdict, err
	}
	if lastErr == nil {
		lastVerdict = UnknownVerdict(entity, "no classifiers configured")
	}
	return lastVerdict, lastErr
}

// UnknownVerdict builds the degraded verdict used when classification fails.
func UnknownVerdict(entity, reason string) models.RiskVerdict {
	return models.RiskVerdict{
		RiskLevel: models.RiskUnknown,
		Summary:   "Classification unavailable for " + entity,
		Error:     reason,
	}
}
