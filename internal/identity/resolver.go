package identity

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/credentials"
	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/pkg/linkedin"
)

// AttemptStrategy tags identity steps in the attempt log.
const AttemptStrategy = "identity"

// Resolver runs the org-ID cascade. Results are never cached.
type Resolver struct {
	sources []Source
}

// NewResolver builds a resolver over an explicit, ordered source list.
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// DefaultSources returns the structured lookup, page scan and about-page scan
// steps in cascade order.
func DefaultSources(client linkedin.Client, creds credentials.Provider, lookupQueryID string) []Source {
	return []Source{
		&StructuredLookup{Client: client, Creds: creds, QueryID: lookupQueryID},
		&PageScan{Client: client},
		&PageScan{Client: client, Sub: "about"},
	}
}

// Resolve runs each source in order until one yields an ID. Every step is
// appended to log. When all fail, the error lists every step's failure.
func (r *Resolver) Resolve(ctx context.Context, ref model.CompanyReference, log *model.AttemptLog) (model.OrganizationIdentity, error) {
	logger := zap.L().With(zap.String("company", ref.Slug))

	var causes []error
	for _, src := range r.sources {
		method := src.Method()
		if err := ctx.Err(); err != nil {
			causes = append(causes, eris.Wrapf(err, "%s", method))
			break
		}

		start := time.Now()
		id, err := src.Lookup(ctx, ref)
		if err == nil && id == "" {
			err = &model.ParseFailure{What: "organization id"}
		}
		log.Append(model.NewAttempt(AttemptStrategy, "", string(method), start, err))

		if err != nil {
			logger.Debug("identity: step failed", zap.String("method", string(method)), zap.Error(err))
			causes = append(causes, eris.Wrapf(err, "%s", method))
			continue
		}

		logger.Debug("identity: resolved", zap.String("method", string(method)), zap.String("org_id", id))
		return model.OrganizationIdentity{ID: id, Method: method}, nil
	}

	return model.OrganizationIdentity{}, &model.OrganizationNotResolvedError{Slug: ref.Slug, Causes: causes}
}
