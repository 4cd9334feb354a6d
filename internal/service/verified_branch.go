package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"go.uber.org/zap"
)

type userIDKey struct{}

// WithUserID scopes ledger-backed lookups in ctx to one user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// VerifiedBranch is the high-trust branch. It answers only from verified,
// live facts in the ledger, so every answer it gives is fully sourced.
type VerifiedBranch struct {
	factStore       domain.FactStore
	ledger          *LedgerService
	embeddingClient domain.EmbeddingClient
	limit           int
	logger          *zap.Logger
}

func NewVerifiedBranch(fs domain.FactStore, ledger *LedgerService, ec domain.EmbeddingClient, logger *zap.Logger) *VerifiedBranch {
	return &VerifiedBranch{
		factStore:       fs,
		ledger:          ledger,
		embeddingClient: ec,
		limit:           DefaultRelevantFacts,
		logger:          logger,
	}
}

func (b *VerifiedBranch) Branch() domain.Branch {
	return domain.BranchHighTrust
}

// Query returns an empty result when nothing verified matches.
func (b *VerifiedBranch) Query(ctx context.Context, text string) (*domain.BranchResult, error) {
	start := time.Now()
	result := &domain.BranchResult{Branch: domain.BranchHighTrust, Confidence: 100}

	userID := UserIDFromContext(ctx)
	if userID == "" || b.embeddingClient == nil {
		result.Latency = time.Since(start)
		return result, nil
	}

	embedding, err := b.embeddingClient.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := b.factStore.FindSimilar(ctx, userID, embedding, domain.TrustVerified, FactSimilarityThreshold, b.limit)
	if err != nil {
		return nil, fmt.Errorf("find verified facts: %w", err)
	}

	var statements []string
	for _, m := range matches {
		claim, err := b.ledger.GetClaim(ctx, m.ID)
		if err != nil {
			b.logger.Warn("fact without readable claim", zap.String("fact_id", m.ID.String()), zap.Error(err))
			continue
		}
		if claim.IsInvalidated() || claim.Branch != domain.BranchHighTrust {
			continue
		}
		statements = append(statements, strings.TrimRight(claim.Statement, ". ")+".")
		result.Sources = append(result.Sources, domain.Source{
			Kind:    domain.SourceKindLedger,
			Ref:     "claim:" + claim.ID.String(),
			Title:   claim.Statement,
			ClaimID: claim.ID.String(),
		})
	}

	result.Content = strings.Join(statements, " ")
	result.Latency = time.Since(start)
	return result, nil
}
