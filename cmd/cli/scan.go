package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/glimps-re/autovt/pkg/auth"
	"github.com/glimps-re/autovt/pkg/handler"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNoTarget = errors.New("a directory to scan is mandatory")

var (
	// stdinIsTerminal reports whether the operator can be prompted.
	stdinIsTerminal = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd()))
	}
	promptDirectory = func() (string, error) {
		return pterm.DefaultInteractiveTextInput.Show("Directory to scan")
	}
	promptPassword = func(username string) (string, error) {
		fmt.Fprintf(os.Stderr, "Password for %s: ", username)
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		return string(password), err
	}
)

var scanCmd = &cobra.Command{
	Use:   "scan [<username> <password>] <directory>",
	Short: "Scan every file of a directory",
	Long: `Scan every file of a directory through the service upload page.

Credentials are optional, files are scanned anonymously without them. They can
also be set with --username and --password, the password is prompted when only
the username is known. Without directory, it is prompted when possible.`,
	Args: checkScanArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		target, creds, err := resolveScanArgs(args)
		if err != nil {
			return
		}
		cmd.SilenceUsage = true

		h, err := handler.NewHandler(cmd.Context(), conf, target, cmd.OutOrStdout())
		if err != nil {
			logger.Error("could not init scan properly", slog.String("error", err.Error()))
			return
		}
		defer func() {
			if e := h.Close(); e != nil {
				logger.Warn("could not close scan properly", slog.String("error", e.Error()))
			}
		}()
		if err = h.Run(cmd.Context(), creds); err != nil {
			logger.Error("scan aborted", slog.String("target", target), slog.String("error", err.Error()))
			return
		}
		return
	},
}

func checkScanArgs(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 0, 1, 3:
		return nil
	default:
		return fmt.Errorf("accepts a directory, optionally preceded by username and password, received %d args", len(args))
	}
}

// resolveScanArgs returns the directory to scan and the credentials to sign in
// with, prompting the operator for what is missing.
func resolveScanArgs(args []string) (target string, creds auth.Credentials, err error) {
	creds = auth.Credentials{Username: conf.Username, Password: conf.Password}
	switch len(args) {
	case 3:
		creds = auth.Credentials{Username: args[0], Password: args[1]}
		target = args[2]
	case 1:
		target = args[0]
	case 0:
		if !stdinIsTerminal() {
			return "", creds, errNoTarget
		}
		if target, err = promptDirectory(); err != nil {
			return
		}
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return "", creds, errNoTarget
	}
	info, err := os.Stat(filepath.Clean(target))
	if err != nil {
		return "", creds, fmt.Errorf("could not check directory %s: %w", target, err)
	}
	if !info.IsDir() {
		return "", creds, fmt.Errorf("%s is not a directory", target)
	}

	if creds.Username != "" && creds.Password == "" && stdinIsTerminal() {
		if creds.Password, err = promptPassword(creds.Username); err != nil {
			return "", creds, fmt.Errorf("could not read password: %w", err)
		}
	}
	if creds.Anonymous() {
		logger.Info("no credentials, files are scanned anonymously")
	}
	return
}
