package api

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/veritas/internal/config"
	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/embedding"
	"github.com/Harshitk-cp/veritas/internal/llm"
	"github.com/Harshitk-cp/veritas/internal/service"
	"github.com/Harshitk-cp/veritas/internal/stream"
	"go.uber.org/zap"
)

// Services is the wired service graph behind the HTTP surface.
type Services struct {
	Ledger       *service.LedgerService
	Facts        *service.FactService
	Orchestrator *service.Orchestrator
	Retention    *service.RetentionService
	Hub          *stream.Hub
	Branches     *service.BranchRegistry
	Council      *service.CouncilRegistry

	closers []func() error
}

// Close releases the stream mirror, if any.
func (s *Services) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}

// BuildServices wires the services from the environment and the council
// roster. A collaborator that cannot be created is logged and left out; the
// system then answers "I do not know" more often rather than failing to start.
func BuildServices(ctx context.Context, b *Backend, council *config.Council, logger *zap.Logger) (*Services, error) {
	if council == nil {
		council = config.DefaultCouncil()
	}

	embeddingProvider := config.EmbeddingProvider()
	embeddingClient, err := embedding.NewClient(ctx, embeddingProvider, config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("Embedding client initialization failed, using hashed embeddings",
			zap.String("provider", embeddingProvider), zap.Error(err))
		embeddingClient = embedding.NewMockClient()
	} else {
		logger.Info("Embedding client initialized", zap.String("provider", embeddingProvider))
	}

	ledger := service.NewLedgerService(b.Claims, b.Dependencies, b.Checkpoints, logger)
	facts := service.NewFactService(b.Facts, ledger, embeddingClient, logger)

	llmProvider := config.LLMProvider()
	if llmProvider != llm.ProviderMock {
		if c, err := llm.NewClient(llmProvider, config.LLMAPIKey(), llm.Options{}); err != nil {
			logger.Warn("Fact extractor unavailable, using patterns", zap.String("provider", llmProvider), zap.Error(err))
		} else {
			facts.SetExtractor(llm.NewFactExtractor(c))
		}
	}

	members := service.NewCouncilRegistry()
	for _, m := range council.Members {
		provider := providerOr(m.Provider, llmProvider)
		c, err := llm.NewClient(provider, config.APIKeyFor(provider), llm.Options{Model: m.Model, Temperature: m.Temperature})
		if err != nil {
			logger.Warn("Council member skipped", zap.String("member", m.Name), zap.String("provider", provider), zap.Error(err))
			continue
		}
		member, err := llm.NewCouncilMember(m.Name, m.Style, c)
		if err != nil {
			return nil, fmt.Errorf("council member %q: %w", m.Name, err)
		}
		members.Register(member)
	}
	logger.Info("Council initialized", zap.Int("members", members.Len()))

	branches := service.NewBranchRegistry()
	for _, bc := range council.Branches {
		if !bc.IsEnabled() {
			continue
		}
		branch := domain.Branch(bc.Name)
		if branch == domain.BranchHighTrust {
			branches.Register(service.NewVerifiedBranch(b.Facts, ledger, embeddingClient, logger))
			continue
		}
		provider := providerOr(bc.Provider, llmProvider)
		c, err := llm.NewClient(provider, config.APIKeyFor(provider), llm.Options{Model: bc.Model})
		if err != nil {
			logger.Warn("Branch skipped", zap.String("branch", bc.Name), zap.String("provider", provider), zap.Error(err))
			continue
		}
		adapter, err := llm.NewBranchAdapter(branch, c)
		if err != nil {
			return nil, err
		}
		branches.Register(adapter)
	}

	deliberation := service.NewDeliberationService(logger)
	deliberation.SetMemberTimeout(config.MemberTimeout())

	hub := stream.NewHub(logger)
	svcs := &Services{
		Ledger:    ledger,
		Facts:     facts,
		Retention: service.NewRetentionService(b.Claims, config.AuditRetentionDays(), config.AuditRetentionKeep(), logger),
		Hub:       hub,
		Branches:  branches,
		Council:   members,
	}

	if url := config.RedisURL(); url != "" {
		pub, err := stream.NewRedisPublisherFromURL(url)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = pub.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("Redis unavailable, stream mirroring disabled", zap.Error(err))
			_ = pub.Close()
		} else {
			hub.SetPublisher(pub)
			svcs.closers = append(svcs.closers, pub.Close)
			logger.Info("Stream mirroring enabled")
		}
	}

	orch := service.NewOrchestrator(service.NewRouter(), branches, members, deliberation, service.NewValidationGate(logger), ledger, logger)
	orch.SetFactService(facts)
	orch.SetHub(hub)
	orch.SetBranchTimeout(config.BranchTimeout())
	svcs.Orchestrator = orch

	return svcs, nil
}

func providerOr(p, def string) string {
	if p == "" {
		return def
	}
	return p
}

// Ensure clients satisfy interfaces at compile time.
var (
	_ domain.EmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.GeminiClient)(nil)
	_ domain.EmbeddingClient = (*embedding.MockClient)(nil)
	_ domain.Completer       = (*llm.OpenAIClient)(nil)
	_ domain.Completer       = (*llm.AnthropicClient)(nil)
	_ domain.Completer       = (*llm.GeminiClient)(nil)
	_ domain.Completer       = (*llm.MockClient)(nil)
	_ domain.CouncilMember   = (*llm.CouncilMember)(nil)
	_ domain.BranchAdapter   = (*llm.BranchAdapter)(nil)
	_ domain.BranchAdapter   = (*service.VerifiedBranch)(nil)
	_ domain.FactExtractor   = (*llm.FactExtractor)(nil)
)
