package cli

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newCheckpointsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoints",
		Aliases: []string{"checkpoint", "cp"},
		Short:   "Create, list, roll back and delete checkpoints",
	}
	owner := cmd.PersistentFlags().String("owner", "", "Checkpoint owner (required)")
	_ = cmd.MarkPersistentFlagRequired("owner")

	create := &cobra.Command{
		Use:   "create <claim-id>...",
		Short: "Snapshot the listed claims",
		Args:  cobra.MinimumNArgs(1),
	}
	label := create.Flags().StringP("label", "l", "", "Label")
	create.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		ids := make([]uuid.UUID, 0, len(args))
		for _, a := range args {
			id, err := parseID(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		cp, err := e.ledger.CreateCheckpoint(cmd.Context(), *owner, *label, ids)
		if err != nil {
			return err
		}
		return e.out.Result(cp, func() {
			e.out.Success("checkpoint %s covers %d claim(s)", cp.ID, len(cp.ClaimIDs))
		})
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List the owner's checkpoints",
		Args:  cobra.NoArgs,
	}
	list.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		cps, err := e.ledger.ListCheckpoints(cmd.Context(), *owner)
		if err != nil {
			return err
		}
		return e.out.Result(cps, func() {
			for _, cp := range cps {
				e.out.Line("%s  %s  %3d claim(s)  %s", cp.ID, cp.CreatedAt.Format("2006-01-02 15:04:05"), len(cp.ClaimIDs), cp.Label)
			}
			e.out.Line("%d checkpoint(s)", len(cps))
		})
	})

	rollback := &cobra.Command{
		Use:   "rollback <checkpoint-id>",
		Short: "Restore snapshotted claims and deprecate newer ones",
		Args:  cobra.ExactArgs(1),
	}
	rollback.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		res, err := e.ledger.Rollback(cmd.Context(), id, *owner)
		if err != nil {
			return err
		}
		return e.out.Result(res, func() {
			e.out.Success("restored %d claim(s), deprecated %d", res.RestoredCount, res.InvalidatedCount)
		})
	})

	del := &cobra.Command{
		Use:   "delete <checkpoint-id>",
		Short: "Delete a checkpoint",
		Args:  cobra.ExactArgs(1),
	}
	del.RunE = withEnv(o, func(cmd *cobra.Command, args []string, e *env) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := e.ledger.DeleteCheckpoint(cmd.Context(), id, *owner); err != nil {
			return err
		}
		return e.out.Result(map[string]any{"checkpoint_id": id, "deleted": true}, func() {
			e.out.Success("deleted checkpoint %s", id)
		})
	})

	cmd.AddCommand(create, list, rollback, del)
	return cmd
}
