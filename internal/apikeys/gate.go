package apikeys

import (
	"context"
	"net/http"
	"strings"
)

// Gate is the single entry point for quota-protected endpoints. It admits a
// request by validating the presented credential and then consuming one unit
// of quota, guaranteeing at most one usage increment per admitted call.
type Gate struct {
	svc *Service
}

func NewGate(svc *Service) *Gate {
	return &Gate{svc: svc}
}

// Admit validates the credential and, only if validation succeeds, consumes
// quota. Validation rejections short-circuit without touching the meter.
func (g *Gate) Admit(ctx context.Context, token string) (*Usage, error) {
	u, err := g.svc.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	return g.svc.Consume(ctx, u)
}

// ExtractCredential resolves the bearer credential of a request, in priority
// order: Authorization bearer header, x-api-key header, "key" query
// parameter. First match wins; an empty string means no credential.
func ExtractCredential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("x-api-key"); key != "" {
		return key
	}
	return r.URL.Query().Get("key")
}
