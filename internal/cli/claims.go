package cli

import (
	"fmt"
	"strings"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/Harshitk-cp/veritas/internal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func newClaimsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "claims",
		Aliases: []string{"claim"},
		Short:   "List, inspect and change knowledge claims",
	}
	cmd.AddCommand(
		newClaimsListCmd(o),
		newClaimsGetCmd(o),
		newClaimsAddCmd(o),
		newClaimsTransitionCmd(o),
		newClaimsLinkCmd(o),
		newClaimsDepsCmd(o),
	)
	return cmd
}

func newClaimsListCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List claims",
		Args:  cobra.NoArgs,
	}
	state := cmd.Flags().String("state", "", "Only claims in this state")
	branch := cmd.Flags().String("branch", "", "Only claims in this branch")
	dom := cmd.Flags().String("domain", "", "Only claims in this domain")
	tag := cmd.Flags().String("tag", "", "Only claims carrying this tag")
	all := cmd.Flags().Bool("all", false, "Include invalidated claims")
	limit := cmd.Flags().IntP("limit", "l", 50, "Maximum number of claims")

	cmd.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		filter := domain.ClaimFilter{Domain: *dom, Tag: *tag, IncludeInvalidated: *all, Limit: *limit}
		if *state != "" {
			if !domain.ValidClaimState(*state) {
				return service.ErrInvalidState
			}
			s := domain.ClaimState(*state)
			filter.State = &s
		}
		if *branch != "" {
			if !domain.ValidBranch(*branch) {
				return service.ErrInvalidBranch
			}
			b := domain.Branch(*branch)
			filter.Branch = &b
		}

		claims, err := e.ledger.ListClaims(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return e.out.Result(claims, func() {
			for i := range claims {
				e.out.Claim(&claims[i])
			}
			e.out.Line("%d claim(s)", len(claims))
		})
	})
	return cmd
}

func newClaimsGetCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <claim-id>",
		Short: "Show one claim and its audit trail",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := e.ledger.GetClaim(cmd.Context(), id)
		if err != nil {
			return err
		}
		return e.out.Result(c, func() {
			e.out.Claim(c)
			e.out.Audit(c.AuditTrail)
		})
	})
	return cmd
}

func newClaimsAddCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <statement>",
		Short: "Record a new claim",
		Args:  cobra.ExactArgs(1),
	}
	confidence := cmd.Flags().IntP("confidence", "c", -1, "Confidence 0-100 (default: bottom of the branch range)")
	branch := cmd.Flags().StringP("branch", "b", "", "Branch (default: follows the confidence)")
	dom := cmd.Flags().String("domain", "", "Domain")
	tags := cmd.Flags().StringSlice("tag", nil, "Tag (repeatable)")
	agent := cmd.Flags().String("agent", "ledgerctl", "Agent recorded in the audit trail")

	cmd.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		in := service.CreateClaimInput{
			Statement: args[0],
			Domain:    *dom,
			Tags:      *tags,
			Branch:    domain.Branch(*branch),
			Trigger:   "ledgerctl",
			Agent:     *agent,
		}
		if *confidence >= 0 {
			in.Confidence = confidence
		}
		c, err := e.ledger.CreateClaim(cmd.Context(), in)
		if err != nil {
			return err
		}
		return e.out.Result(c, func() {
			e.out.Success("created claim %s", c.ID)
			e.out.Claim(c)
		})
	})
	return cmd
}

func newClaimsTransitionCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transition <claim-id> <state>",
		Short: "Move a claim forward through its lifecycle",
		Args:  cobra.ExactArgs(2),
	}
	confidence := cmd.Flags().IntP("confidence", "c", -1, "New confidence")
	branch := cmd.Flags().StringP("branch", "b", "", "New branch")
	reason := cmd.Flags().StringP("reason", "r", "", "Reason recorded in the audit trail")
	agent := cmd.Flags().String("agent", "ledgerctl", "Agent recorded in the audit trail")

	cmd.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		in := service.TransitionInput{Trigger: "ledgerctl", Agent: *agent, Reason: *reason}
		if *confidence >= 0 {
			in.NewConfidence = confidence
		}
		if *branch != "" {
			b := domain.Branch(*branch)
			in.NewBranch = &b
		}
		c, err := e.ledger.Transition(cmd.Context(), id, domain.ClaimState(strings.ToLower(args[1])), in)
		if err != nil {
			return err
		}
		return e.out.Result(c, func() {
			e.out.Success("claim %s is now %s", c.ID, c.State)
		})
	})
	return cmd
}

func newClaimsLinkCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link <claim-id> <depends-on-id>",
		Short: "Record that a claim depends on another",
		Args:  cobra.ExactArgs(2),
	}
	typ := cmd.Flags().StringP("type", "t", string(domain.DependencyDerivesFrom), "Dependency type: derives_from, references, invalidates, supersedes")
	agent := cmd.Flags().String("agent", "ledgerctl", "Agent recorded in the audit trail")

	cmd.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		claimID, err := parseID(args[0])
		if err != nil {
			return err
		}
		dependsOn, err := parseID(args[1])
		if err != nil {
			return err
		}
		d, err := e.ledger.AddDependency(cmd.Context(), claimID, dependsOn, domain.DependencyType(*typ), *agent)
		if err != nil {
			return err
		}
		return e.out.Result(d, func() {
			e.out.Success("%s %s %s", d.ClaimID, d.Type, d.DependsOnID)
		})
	})
	return cmd
}

func newClaimsDepsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps <claim-id>",
		Short: "Show what a claim depends on and what depends on it",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		deps, err := e.ledger.GetDependencies(cmd.Context(), id)
		if err != nil {
			return err
		}
		dependents, err := e.ledger.GetDependents(cmd.Context(), id)
		if err != nil {
			return err
		}
		result := map[string]any{"claim_id": id, "dependencies": deps, "dependents": dependents}
		return e.out.Result(result, func() {
			e.out.Line("depends on:")
			for _, d := range deps {
				e.out.Line("  %s  %s", d.DependsOnID, d.Type)
			}
			e.out.Line("depended on by:")
			for _, d := range dependents {
				e.out.Line("  %s  %s", d.ClaimID, d.Type)
			}
		})
	})
	return cmd
}

func newInvalidateCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate <claim-id>",
		Short: "Invalidate a claim and, by default, everything that depends on it",
		Args:  cobra.ExactArgs(1),
	}
	by := cmd.Flags().String("by", "", "Who is invalidating (required)")
	reason := cmd.Flags().StringP("reason", "r", "", "Why")
	noCascade := cmd.Flags().Bool("no-cascade", false, "Only invalidate this claim")
	_ = cmd.MarkFlagRequired("by")

	cmd.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		n, err := e.ledger.Invalidate(cmd.Context(), id, *by, *reason, !*noCascade)
		if err != nil {
			return err
		}
		result := map[string]any{"claim_id": id, "invalidated_count": n, "cascade": !*noCascade}
		return e.out.Result(result, func() {
			e.out.Success("invalidated %d claim(s)", n)
		})
	})
	return cmd
}
