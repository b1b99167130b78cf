package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ammiranda/nestedset_service/calculator"
	"github.com/ammiranda/nestedset_service/migrations"
	"github.com/ammiranda/nestedset_service/models"
	"github.com/ammiranda/nestedset_service/service"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Cleanup(ctx)

			version, dirty, err := migrations.Version(store.DB(), opts.driver(ctx))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d", version)
			if dirty {
				fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func newRootsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "roots",
		Short: "List the root node of every tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, closeFn, err := opts.openService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			roots, err := svc.FindAllRootNodes(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tOWNER\tNODES")
			for _, root := range roots {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", root.ID, root.Name, root.OwnerName, root.Width()/2)
			}
			return w.Flush()
		},
	}
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <root-id>",
		Short: "Print one tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootID, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, closeFn, err := opts.openService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			nodes, err := svc.FindTreeByRootID(ctx, rootID)
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				return fmt.Errorf("tree %d not found", rootID)
			}

			fmt.Fprint(cmd.OutOrStdout(), renderTree(nodes))
			return nil
		},
	}
}

func newAddRootCmd(opts *options) *cobra.Command {
	var (
		ownerID      int64
		isUserFolder bool
	)

	cmd := &cobra.Command{
		Use:   "add-root <name>",
		Short: "Start a new tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.CreateRootRequest{Name: args[0], OwnerID: ownerID, IsUserFolder: isUserFolder}
			if err := req.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, closeFn, err := opts.openService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			result := svc.AddRootNode(ctx, req.OwnerID, req.Name, req.IsUserFolder)
			if err := resultError(result.ErrorMessages()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created root %d\n", result.Value)
			return nil
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 1, "owner user id")
	cmd.Flags().BoolVar(&isUserFolder, "user-folder", false, "mark the root as a user folder")
	return cmd
}

func newAddCmd(opts *options) *cobra.Command {
	var ownerID int64

	cmd := &cobra.Command{
		Use:   "add <parent-id> <name>",
		Short: "Append a child node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, closeFn, err := opts.openService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			parent, err := svc.FindNodeOwner(ctx, parentID)
			if err != nil {
				return err
			}
			// Children belong to the parent's owner unless told otherwise
			if ownerID == 0 {
				ownerID = parent.OwnerID
			}

			req := models.CreateNodeRequest{Name: args[1], OwnerID: ownerID, ParentID: parent.ID}
			if err := req.Validate(); err != nil {
				return err
			}

			result := svc.AddSubNode(ctx, req.OwnerID, req.Name, *parent)
			if err := resultError(result.ErrorMessages()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created node %d under %d\n", result.Value, parent.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 0, "owner user id (default: the parent's owner)")
	return cmd
}

func newMoveCmd(opts *options) *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "move <node-id> <target-id>",
		Short: "Move a node and its subtree relative to a target node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			movedID, err := parseID(args[0])
			if err != nil {
				return err
			}
			targetID, err := parseID(args[1])
			if err != nil {
				return err
			}
			parsed, err := calculator.ParseRegion(region)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, closeFn, err := opts.openService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			moved, err := svc.FindNodeOwner(ctx, movedID)
			if err != nil {
				return fmt.Errorf("node %d: %w", movedID, err)
			}
			target, err := svc.FindNodeOwner(ctx, targetID)
			if err != nil {
				return fmt.Errorf("target %d: %w", targetID, err)
			}

			result, err := svc.MoveNode(ctx, *moved, *target, parsed)
			if err != nil {
				return err
			}
			if err := resultError(result.ErrorMessages()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %d %s %d\n", moved.ID, parsed, target.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", string(calculator.AppendChild), "placement relative to the target: before, after or appendChild")
	return cmd
}

func newRemoveCmd(opts *options) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "rm <node-id>",
		Short: "Delete a leaf node, or a whole subtree with --recursive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, closeFn, err := opts.openService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			node, err := svc.FindNodeOwner(ctx, id)
			if err != nil {
				return err
			}

			var result service.Result[bool]
			if recursive {
				result = svc.DeleteTree(ctx, *node)
			} else {
				result = svc.DeleteSingleNode(ctx, *node)
			}
			if err := resultError(result.ErrorMessages()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d node(s)\n", node.Width()/2)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete the node together with its subtree")
	return cmd
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid node id %q", value)
	}
	return id, nil
}

func resultError(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return errors.New(strings.Join(messages, "; "))
}
