package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/uploadrelay/uploadrelay/internal/recipient"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage the project directory",
		Long: `Manage the project-to-recipient directory. Mutating subcommands require
the admin password (store.admin_password or UPLOADRELAY_ADMIN_PASSWORD);
pass it with --password or enter it at the prompt.`,
	}

	cmd.PersistentFlags().String("password", "", "admin password (prompted if not given)")

	cmd.AddCommand(newProjectsListCmd())
	cmd.AddCommand(newProjectsAddCmd())
	cmd.AddCommand(newProjectsEditCmd())
	cmd.AddCommand(newProjectsRmCmd())
	cmd.AddCommand(newProjectsImportCmd())
	cmd.AddCommand(newProjectsHistoryCmd())

	return cmd
}

func newProjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all projects and their recipients",
		Args:  cobra.NoArgs,
		RunE:  runProjectsList,
	}
}

func newProjectsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <project-id> <email>",
		Short: "Add a project",
		Args:  cobra.ExactArgs(2),
		RunE:  runProjectsAdd,
	}
}

func newProjectsEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <project-id> <email>",
		Short: "Change a project's recipient, optionally renaming it",
		Args:  cobra.ExactArgs(2),
		RunE:  runProjectsEdit,
	}

	cmd.Flags().String("rename", "", "new project ID")

	return cmd
}

func newProjectsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <project-id>",
		Short: "Remove a project",
		Args:  cobra.ExactArgs(1),
		RunE:  runProjectsRm,
	}
}

func newProjectsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Bulk import projects from a CSV or XLSX file",
		Long: `Bulk import projects. The file needs a project ID column and an email
column. Rows with blank fields and project IDs already in the directory are
skipped, never overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: runProjectsImport,
	}
}

func newProjectsHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the directory change log, newest first",
		Args:  cobra.NoArgs,
		RunE:  runProjectsHistory,
	}

	cmd.Flags().IntP("limit", "n", 20, "number of entries to show (0 for all)")

	return cmd
}

func runProjectsList(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	lister, ok := store.(interface {
		List(ctx context.Context) ([]recipient.Project, error)
	})
	if !ok {
		return fmt.Errorf("store backend %q does not support listing", cfg.Store.Backend)
	}

	projects, err := lister.List(cmd.Context())
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(projects)
	}

	rows := make([][]string, len(projects))
	for i, p := range projects {
		rows[i] = []string{p.ID, p.Email}
	}

	printTable(os.Stdout, []string{"PROJECT", "EMAIL"}, rows)

	return nil
}

func runProjectsAdd(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	if err := requireAdminPassword(cmd); err != nil {
		return err
	}

	store, err := openAdminStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Add(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}

	statusf(flagQuiet, "Added project %s -> %s\n", args[0], args[1])

	return nil
}

func runProjectsEdit(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	if err := requireAdminPassword(cmd); err != nil {
		return err
	}

	store, err := openAdminStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	newID, _ := cmd.Flags().GetString("rename") //nolint:errcheck // flag exists
	if newID == "" {
		newID = args[0]
	}

	if err := store.Update(cmd.Context(), args[0], newID, args[1]); err != nil {
		return err
	}

	statusf(flagQuiet, "Updated project %s -> %s\n", newID, args[1])

	return nil
}

func runProjectsRm(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	if err := requireAdminPassword(cmd); err != nil {
		return err
	}

	store, err := openAdminStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}

	statusf(flagQuiet, "Removed project %s\n", args[0])

	return nil
}

func runProjectsImport(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	if err := requireAdminPassword(cmd); err != nil {
		return err
	}

	rows, err := recipient.ReadProjects(args[0])
	if err != nil {
		return err
	}

	store, err := openAdminStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	added, skipped, err := recipient.BulkImport(cmd.Context(), store, rows)
	if err != nil {
		return fmt.Errorf("import stopped after %d rows: %w", added+skipped, err)
	}

	statusf(flagQuiet, "Imported %d projects, skipped %d\n", added, skipped)

	return nil
}

func runProjectsHistory(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	store, err := openAdminStore(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit") //nolint:errcheck // flag exists

	changes, err := store.Changes(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(changes)
	}

	rows := make([][]string, len(changes))
	for i, c := range changes {
		rows[i] = []string{formatTime(c.At), c.Action, c.ProjectID, c.Details}
	}

	printTable(os.Stdout, []string{"WHEN", "ACTION", "PROJECT", "DETAILS"}, rows)

	return nil
}

// requireAdminPassword gates mutating directory commands. The expected
// password comes from config or UPLOADRELAY_ADMIN_PASSWORD; the supplied one
// from --password or an interactive prompt. Comparison is constant-time.
func requireAdminPassword(cmd *cobra.Command) error {
	expected := cfg.Store.AdminPassword
	if expected == "" {
		return errors.New("no admin password configured; set store.admin_password or UPLOADRELAY_ADMIN_PASSWORD")
	}

	given, _ := cmd.Flags().GetString("password") //nolint:errcheck // flag exists
	if given == "" {
		var err error

		given, err = promptPassword("Admin password: ")
		if err != nil {
			return err
		}
	}

	if subtle.ConstantTimeCompare([]byte(given), []byte(expected)) != 1 {
		return errors.New("admin password incorrect")
	}

	return nil
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(b), nil
}
