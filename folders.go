package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newFoldersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Inspect the document library folder tree",
	}

	cmd.AddCommand(newFoldersResolveCmd())
	cmd.AddCommand(newFoldersLsCmd())

	return cmd
}

func newFoldersResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <path>",
		Short: "Resolve a folder path, creating missing segments",
		Args:  cobra.ExactArgs(1),
		RunE:  runFoldersResolve,
	}
}

func newFoldersLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder's children",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFoldersLs,
	}
}

func runFoldersResolve(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	client, err := newGraphClient(ctx, logger)
	if err != nil {
		return err
	}

	handle, err := newResolver(client, logger).ResolveOrCreate(ctx, cfg.Graph.DriveID, args[0])
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(handle)
	}

	fmt.Printf("%s\t%s\n", handle.ID, args[0])

	return nil
}

func runFoldersLs(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	client, err := newGraphClient(ctx, logger)
	if err != nil {
		return err
	}

	folderID := "root"

	if len(args) == 1 && args[0] != "" && args[0] != "/" {
		handle, err := newResolver(client, logger).ResolveOrCreate(ctx, cfg.Graph.DriveID, args[0])
		if err != nil {
			return err
		}

		folderID = handle.ID
	}

	items, err := client.ListChildren(ctx, cfg.Graph.DriveID, folderID)
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(items)
	}

	rows := make([][]string, len(items))

	for i, item := range items {
		kind := "file"
		size := formatSize(item.Size)

		if item.IsFolder {
			kind = "folder"
			size = "-"
		}

		rows[i] = []string{kind, size, item.Name}
	}

	printTable(os.Stdout, []string{"TYPE", "SIZE", "NAME"}, rows)

	return nil
}
