package service

import (
	"context"
	"time"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultMemberTimeout = 30 * time.Second

type DeliberationService struct {
	critic        *CritiqueEngine
	verdicts      *VerdictEngine
	memberTimeout time.Duration
	logger        *zap.Logger
}

func NewDeliberationService(logger *zap.Logger) *DeliberationService {
	return &DeliberationService{
		critic:        NewCritiqueEngine(),
		verdicts:      NewVerdictEngine(),
		memberTimeout: DefaultMemberTimeout,
		logger:        logger,
	}
}

// SetMemberTimeout bounds each member call. Zero disables the bound.
func (s *DeliberationService) SetMemberTimeout(d time.Duration) {
	s.memberTimeout = d
}

// Deliberate asks every member concurrently, critiques each answer and
// renders a verdict. A failing, panicking or timed-out member is logged and
// simply contributes no response. Responses keep the members' order.
func (s *DeliberationService) Deliberate(ctx context.Context, prompt string, members []domain.CouncilMember) *domain.DeliberationResult {
	slots := make([]*domain.CouncilResponse, len(members))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range members {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("council member panicked", zap.String("member", m.Name()), zap.Any("panic", r))
				}
			}()
			slots[i] = s.ask(gctx, prompt, m)
			return nil
		})
	}
	_ = g.Wait()

	responses := make([]domain.CouncilResponse, 0, len(members))
	for _, r := range slots {
		if r != nil {
			responses = append(responses, *r)
		}
	}

	challenges := s.critic.CritiqueAll(responses)
	verdict, proposal, avg := s.verdicts.Render(responses, challenges)

	s.logger.Debug("deliberation finished",
		zap.Int("members", len(members)),
		zap.Int("responses", len(responses)),
		zap.Int("challenges", len(challenges)),
		zap.String("verdict", string(verdict.Label)))

	return &domain.DeliberationResult{
		Verdict:           verdict,
		Proposal:          proposal,
		Responses:         responses,
		Challenges:        challenges,
		AverageConfidence: avg,
	}
}

func (s *DeliberationService) ask(ctx context.Context, prompt string, m domain.CouncilMember) *domain.CouncilResponse {
	if s.memberTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.memberTimeout)
		defer cancel()
	}

	start := time.Now()
	ans, err := m.Query(ctx, prompt)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		s.logger.Warn("council member failed", zap.String("member", m.Name()), zap.Error(err))
		return nil
	}
	if ans == nil || ans.Content == "" {
		s.logger.Warn("council member returned no content", zap.String("member", m.Name()))
		return nil
	}
	return &domain.CouncilResponse{
		Member:     m.Name(),
		Content:    ans.Content,
		Confidence: clampConfidence(ans.Confidence),
		Reasoning:  ans.Reasoning,
		Sources:    ans.Sources,
		Latency:    time.Since(start),
	}
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
