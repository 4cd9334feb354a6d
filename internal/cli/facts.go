package cli

import (
	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/spf13/cobra"
)

func newFactsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "facts",
		Aliases: []string{"fact"},
		Short:   "Extract and review user facts",
	}

	pending := &cobra.Command{
		Use:   "pending",
		Short: "List facts awaiting review",
		Args:  cobra.NoArgs,
	}
	user := pending.Flags().StringP("user", "u", "", "Only this user's facts")
	pending.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		facts, err := e.facts.ListPending(cmd.Context(), *user)
		if err != nil {
			return err
		}
		return e.out.Result(facts, func() {
			for i := range facts {
				e.out.Fact(&facts[i])
			}
			e.out.Line("%d pending fact(s)", len(facts))
		})
	})

	extract := &cobra.Command{
		Use:   "extract <text>",
		Short: "Extract and store facts from text with the pattern extractor",
		Args:  cobra.ExactArgs(1),
	}
	extractUser := extract.Flags().StringP("user", "u", "", "User the facts belong to (required)")
	level := extract.Flags().String("level", string(domain.LevelUnverified), "Submitter verification level")
	_ = extract.MarkFlagRequired("user")
	extract.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		facts, err := e.facts.ExtractAndStore(cmd.Context(), *extractUser, args[0], domain.VerificationLevel(*level))
		if err != nil {
			return err
		}
		return e.out.Result(facts, func() {
			for i := range facts {
				e.out.Fact(&facts[i])
			}
			e.out.Line("%d fact(s) stored", len(facts))
		})
	})

	cmd.AddCommand(pending, extract, newReviewCmd(o, "approve", true), newReviewCmd(o, "reject", false))
	return cmd
}

func newReviewCmd(o *options, use string, approve bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <fact-id>",
		Short: use + " a pending fact",
		Args:  cobra.ExactArgs(1),
	}
	reviewer := cmd.Flags().String("reviewer", "", "Reviewer id (required)")
	level := cmd.Flags().String("level", string(domain.LevelAdmin), "Reviewer verification level")
	_ = cmd.MarkFlagRequired("reviewer")

	cmd.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := e.facts.VerifyFact(cmd.Context(), id, *reviewer, domain.VerificationLevel(*level), approve); err != nil {
			return err
		}
		state := domain.TrustRejected
		if approve {
			state = domain.TrustVerified
		}
		return e.out.Result(map[string]any{"fact_id": id, "trust_state": state}, func() {
			e.out.Success("fact %s %s", id, state)
		})
	})
	return cmd
}
