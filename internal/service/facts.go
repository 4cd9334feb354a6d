package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrFactNotFound          = errors.New("fact not found")
	ErrFactAlreadyReviewed   = errors.New("fact has already been reviewed")
	ErrReviewerNotAuthorized = errors.New("reviewer level may not review facts")
	ErrFactUserMissing       = errors.New("user_id is required")
	ErrInvalidUserLevel      = errors.New("invalid verification level")
)

const (
	// FactSimilarityThreshold is the cosine similarity a fact must exceed to
	// count as relevant to a query.
	FactSimilarityThreshold = 0.3
	DefaultRelevantFacts    = 5
)

type factPattern struct {
	typ                  domain.FactType
	re                   *regexp.Regexp
	confidence           int
	requiresVerification bool
}

// factPatterns is the fallback extraction table, tried in order per
// sentence. The first matching pattern claims the sentence.
var factPatterns = []factPattern{
	{domain.FactIdentity, regexp.MustCompile(`(?i)\b(my name is|i am called|i'm called|call me)\s+\p{L}+`), 90, true},
	{domain.FactRelationship, regexp.MustCompile(`(?i)\bmy (wife|husband|partner|son|daughter|mother|mom|father|dad|brother|sister|friend|boss|manager|colleague|team ?lead)('s| is| name is)\s+\S+`), 80, true},
	{domain.FactInstruction, regexp.MustCompile(`(?i)\b(remember that|always|never|please)\s+(remember|call|respond|answer|use|reply|refer|address|write)\b`), 75, false},
	{domain.FactInstruction, regexp.MustCompile(`(?i)^\s*remember that\s+\S+`), 75, false},
	{domain.FactPreference, regexp.MustCompile(`(?i)\bi (really |truly )?(like|love|prefer|enjoy|hate|dislike|can't stand)\s+\S+`), 80, false},
	{domain.FactGoal, regexp.MustCompile(`(?i)\b(i (want|plan|hope|intend|aim|need) to|my goal is to|i'm trying to|i am trying to)\s+\S+`), 75, false},
	{domain.FactContext, regexp.MustCompile(`(?i)\bi (live|work|study|am based|'m based)\s+(in|at|for|on)\s+\S+`), 80, false},
	{domain.FactDeclaration, regexp.MustCompile(`(?i)\b(i am|i'm)\s+(a|an|the)\s+\S+`), 70, true},
}

var sentenceSplit = regexp.MustCompile(`[.!?\n]+`)

var keywordStopwords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true, "have": true, "about": true,
	"there": true, "their": true, "they": true, "what": true, "when": true, "your": true,
	"name": true, "really": true, "truly": true, "always": true, "never": true, "please": true,
	"remember": true, "want": true, "like": true, "love": true,
}

// ExtractFactsByPattern is the dependency-free extraction path.
func ExtractFactsByPattern(text string) []domain.ExtractedFact {
	var out []domain.ExtractedFact
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		for _, p := range factPatterns {
			if !p.re.MatchString(sentence) {
				continue
			}
			out = append(out, domain.ExtractedFact{
				Type:                 p.typ,
				Content:              sentence,
				Confidence:           p.confidence,
				Keywords:             keywords(sentence),
				RequiresVerification: p.requiresVerification,
			})
			break
		}
	}
	return out
}

func keywords(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	}) {
		if len(w) < 4 || keywordStopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// FactService extracts facts from conversational input, assigns trust and
// stores each fact as a claim in the ledger.
type FactService struct {
	factStore       domain.FactStore
	ledger          *LedgerService
	extractor       domain.FactExtractor
	embeddingClient domain.EmbeddingClient
	logger          *zap.Logger
}

func NewFactService(fs domain.FactStore, ledger *LedgerService, ec domain.EmbeddingClient, logger *zap.Logger) *FactService {
	return &FactService{
		factStore:       fs,
		ledger:          ledger,
		embeddingClient: ec,
		logger:          logger,
	}
}

// SetExtractor installs the language-model extractor. Without one, only the
// pattern table is used.
func (s *FactService) SetExtractor(e domain.FactExtractor) {
	s.extractor = e
}

// Extract returns the facts found in text. Extractor failure falls back to
// the pattern table.
func (s *FactService) Extract(ctx context.Context, text string) []domain.ExtractedFact {
	if s.extractor != nil {
		facts, err := s.extractor.ExtractFacts(ctx, text)
		if err == nil {
			return validFacts(facts)
		}
		s.logger.Warn("fact extractor failed, using patterns", zap.Error(err))
	}
	return ExtractFactsByPattern(text)
}

func validFacts(in []domain.ExtractedFact) []domain.ExtractedFact {
	out := in[:0]
	for _, f := range in {
		f.Content = strings.TrimSpace(f.Content)
		if f.Content == "" || !domain.ValidFactType(string(f.Type)) {
			continue
		}
		f.Confidence = clampConfidence(f.Confidence)
		if len(f.Keywords) == 0 {
			f.Keywords = keywords(f.Content)
		}
		out = append(out, f)
	}
	return out
}

// ExtractAndStore extracts facts from text and persists each with the trust
// state implied by the submitter level. A fact that fails to persist is
// logged and skipped.
func (s *FactService) ExtractAndStore(ctx context.Context, userID, text string, level domain.VerificationLevel) ([]domain.Fact, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrFactUserMissing
	}
	if level == "" {
		level = domain.LevelUnverified
	}
	if !domain.ValidVerificationLevel(string(level)) {
		return nil, ErrInvalidUserLevel
	}

	var stored []domain.Fact
	for _, ef := range s.Extract(ctx, text) {
		f, err := s.store(ctx, userID, ef, level)
		if err != nil {
			s.logger.Warn("failed to store extracted fact",
				zap.String("user_id", userID),
				zap.String("type", string(ef.Type)),
				zap.Error(err))
			continue
		}
		stored = append(stored, *f)
	}
	return stored, nil
}

func (s *FactService) store(ctx context.Context, userID string, ef domain.ExtractedFact, level domain.VerificationLevel) (*domain.Fact, error) {
	trust := domain.AssignTrust(level, ef.RequiresVerification)

	in := CreateClaimInput{
		Statement: ef.Content,
		Domain:    "user:" + userID,
		Tags:      []string{"fact", string(ef.Type)},
		Trigger:   "fact_extraction",
		Agent:     userID,
	}
	if trust == domain.TrustVerified {
		in.Branch = domain.BranchHighTrust
	} else {
		in.Branch = domain.BranchHypothesis
		conf := domain.BranchHypothesis.Clamp(ef.Confidence)
		in.Confidence = &conf
	}
	claim, err := s.ledger.CreateClaim(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create fact claim: %w", err)
	}

	var embedding []float32
	if s.embeddingClient != nil {
		embedding, err = s.embeddingClient.Embed(ctx, ef.Content)
		if err != nil {
			s.logger.Warn("failed to embed fact", zap.String("claim_id", claim.ID.String()), zap.Error(err))
			embedding = nil
		}
	}

	f := &domain.Fact{
		ID:                   claim.ID,
		UserID:               userID,
		Type:                 ef.Type,
		Content:              ef.Content,
		TrustState:           trust,
		Confidence:           ef.Confidence,
		Keywords:             ef.Keywords,
		RequiresVerification: ef.RequiresVerification,
		SubmitterLevel:       level,
		Embedding:            embedding,
		CreatedAt:            claim.CreatedAt,
	}
	if err := s.factStore.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create fact: %w", err)
	}
	return f, nil
}

// VerifyFact approves or rejects a pending fact. Approval promotes the
// backing claim to the high-trust branch; rejection invalidates it and
// everything derived from it.
func (s *FactService) VerifyFact(ctx context.Context, factID uuid.UUID, reviewerID string, reviewerLevel domain.VerificationLevel, approve bool) error {
	if !reviewerLevel.CanReview() {
		return ErrReviewerNotAuthorized
	}

	f, err := s.factStore.GetByID(ctx, factID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrFactNotFound
		}
		return err
	}
	if f.TrustState != domain.TrustPending {
		return ErrFactAlreadyReviewed
	}

	// The claim is settled first so a fact is never marked reviewed while
	// its claim lags behind.
	state := domain.TrustRejected
	if approve {
		state = domain.TrustVerified
		_, err = s.ledger.Promote(ctx, factID, TransitionInput{
			Trigger: "fact_review",
			Agent:   reviewerID,
			Reason:  "fact approved",
		})
	} else {
		_, err = s.ledger.Invalidate(ctx, factID, reviewerID, "fact rejected in review", true)
	}
	if err != nil {
		return fmt.Errorf("update fact claim: %w", err)
	}

	if err := s.factStore.UpdateTrust(ctx, factID, state, reviewerID, timeNow()); err != nil {
		return fmt.Errorf("update fact trust: %w", err)
	}

	s.logger.Info("fact reviewed",
		zap.String("fact_id", factID.String()),
		zap.String("reviewer", reviewerID),
		zap.String("trust_state", string(state)))
	return nil
}

// Relevant returns the user's identity fact, if any, followed by up to n
// facts whose similarity to query exceeds FactSimilarityThreshold.
func (s *FactService) Relevant(ctx context.Context, userID, query string, n int) ([]domain.FactWithScore, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrFactUserMissing
	}
	if n <= 0 {
		n = DefaultRelevantFacts
	}

	var embedding []float32
	if s.embeddingClient != nil {
		emb, err := s.embeddingClient.Embed(ctx, query)
		if err != nil {
			s.logger.Warn("failed to embed fact query", zap.Error(err))
		} else {
			embedding = emb
		}
	}

	var out []domain.FactWithScore
	identity, err := s.factStore.GetIdentity(ctx, userID)
	switch {
	case err == nil:
		out = append(out, domain.FactWithScore{Fact: *identity, Score: store.CosineSimilarity(identity.Embedding, embedding)})
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("load identity fact: %w", err)
	}

	if embedding == nil {
		return out, nil
	}
	similar, err := s.factStore.FindSimilar(ctx, userID, embedding, "", FactSimilarityThreshold, n)
	if err != nil {
		return nil, fmt.Errorf("find similar facts: %w", err)
	}
	for _, f := range similar {
		if identity != nil && f.ID == identity.ID {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// ListPending returns facts awaiting review. An empty userID lists all users.
func (s *FactService) ListPending(ctx context.Context, userID string) ([]domain.Fact, error) {
	return s.factStore.ListByTrust(ctx, userID, domain.TrustPending)
}
