package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"competesync/pkg/auth"
	"competesync/pkg/config"
	"competesync/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage cached clearance credentials",
	Long: `Manage the clearance cookies used to pass the remote's bot challenge.

Credentials are cached by the configured backend:
  - file       cookies.json next to the working directory (default)
  - encrypted  AES-GCM file with PBKDF2 key derivation
  - keyring    system keychain
  - env        SIMPLYCOMPETE_CF_CLEARANCE, read-only

Cached tokens are bound to the user agent and IP they were issued for.`,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Discard cached credentials and solve the challenge now",
	Args:  cobra.NoArgs,
	RunE:  runAuthRefresh,
}

var authImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Store a clearance token copied from a desktop browser",
	Args:  cobra.NoArgs,
	RunE:  runAuthImport,
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cached cookie names with masked values",
	Args:  cobra.NoArgs,
	RunE:  runAuthShow,
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached credentials",
	Args:  cobra.NoArgs,
	RunE:  runAuthClear,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authImportCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authClearCmd)
}

func openCredentials(cmd *cobra.Command) (*config.Config, auth.CredentialStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := auth.NewStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	return cfg, store, nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.creds.Invalidate(); err != nil {
		ui.PrintWarning("Could not clear cached credentials", err)
	}

	ui.PrintHighlight("[SOLVING CHALLENGE]")
	ui.PrintInfo("Entry page", cfg.Challenge.EntryURL)

	set := a.solver.Solve(cmd.Context(), challengeRequest(cfg))
	if !set.ValidFor(cfg.Credentials.ClearanceCookie) {
		return fmt.Errorf("challenge produced no %s cookie; try 'competesync auth import'", cfg.Credentials.ClearanceCookie)
	}

	printCredentials(set)
	ui.PrintSuccess("Credentials refreshed")
	return nil
}

func runAuthImport(cmd *cobra.Command, args []string) error {
	cfg, store, err := openCredentials(cmd)
	if err != nil {
		return err
	}

	auth.WriteImportGuide(os.Stdout, cfg.Challenge.EntryURL, cfg.Credentials.ClearanceCookie)

	token, err := readSecret(fmt.Sprintf("%s: ", cfg.Credentials.ClearanceCookie))
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("no token entered")
	}

	set := auth.ImportedSet(cfg.Credentials.ClearanceCookie, token)
	if err := store.Save(set); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	printCredentials(set)
	ui.PrintSuccess("Credentials imported")
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	cfg, store, err := openCredentials(cmd)
	if err != nil {
		return err
	}

	ui.PrintInfo("Backend", cfg.Credentials.Backend)
	set := store.Load()
	if len(set) == 0 {
		ui.PrintWarning("No cached credentials")
		return nil
	}
	if !set.ValidFor(cfg.Credentials.ClearanceCookie) {
		ui.PrintWarning("Cached credentials lack the clearance cookie", cfg.Credentials.ClearanceCookie)
	}
	printCredentials(set)
	return nil
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	_, store, err := openCredentials(cmd)
	if err != nil {
		return err
	}
	if err := store.Invalidate(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	ui.PrintSuccess("Credentials cleared")
	return nil
}

func printCredentials(set auth.CredentialSet) {
	masked := auth.Sanitize(set)
	names := make([]string, 0, len(masked))
	for name := range masked {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s = %s\n", ui.Cyan(name), masked[name])
	}
}

// readSecret reads without echo from a terminal, or a line from piped stdin
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Print(prompt)
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
