// Go2n is a command line client for 2N IP intercoms and access units.
//
// It reads device state (identity, switches, IO ports, log events), drives
// switches and output ports, and keeps named connection profiles so a device
// can be addressed with --profile instead of repeating host and account.
//
// Usage:
//
//	go2n [command] [flags]
//
// Passwords are read from GO2N_PASSWORD or prompted on the terminal.
// See 'go2n --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/elektronisch/go2n/internal/logging"
	"github.com/elektronisch/go2n/internal/version"
	"github.com/elektronisch/go2n/pkg/twon"
)

// PasswordEnvVar supplies the API account password without a prompt
const PasswordEnvVar = "GO2N_PASSWORD"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(defaultEnv()).ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// env is everything a command touches outside its flags
type env struct {
	in           io.Reader
	out          io.Writer
	errOut       io.Writer
	getenv       func(string) string
	readPassword func(prompt string) (string, error)
	now          func() time.Time
	configPath   string       // empty for the default location
	httpClient   *http.Client // nil for a dedicated transport
}

func defaultEnv() env {
	return env{
		in:           os.Stdin,
		out:          os.Stdout,
		errOut:       os.Stderr,
		getenv:       os.Getenv,
		readPassword: terminalPassword,
		now:          time.Now,
	}
}

// app carries the global flags shared by every command
type app struct {
	env

	host         string
	username     string
	authMethod   string
	protocol     string
	tlsVerify    bool
	unprivileged bool
	timeout      time.Duration
	profile      string
	logLevel     string
}

func newRootCmd(e env) *cobra.Command {
	a := &app{env: e}

	root := &cobra.Command{
		Use:   "go2n",
		Short: "Command line client for 2N IP intercoms",
		Long: `A command line client for the HTTP API of 2N IP intercoms and access units.

Reads device identity, switches, IO ports and log events, drives switches
and output ports, and keeps named connection profiles.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Initialize(a.logLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate("go2n {{.Version}}\n")
	root.SetIn(e.in)
	root.SetOut(e.out)
	root.SetErr(e.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.host, "host", "", "Device host or IP address, optionally with :port")
	flags.StringVarP(&a.username, "user", "u", "", "API account name (password from "+PasswordEnvVar+" or prompt)")
	flags.StringVar(&a.authMethod, "auth", string(twon.AuthBasic), "Authentication method (basic, digest)")
	flags.StringVar(&a.protocol, "protocol", string(twon.ProtocolHTTP), "Protocol (http, https)")
	flags.BoolVar(&a.tlsVerify, "tls-verify", false, "Verify the device's TLS certificate")
	flags.BoolVar(&a.unprivileged, "unprivileged", false, "Skip endpoints that need a privileged account")
	flags.DurationVar(&a.timeout, "timeout", twon.DefaultTimeout, "Per-request timeout")
	flags.StringVarP(&a.profile, "profile", "p", "", "Use a saved device profile (see 'go2n device list')")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); default from "+logging.LogLevelEnvVar)

	root.AddCommand(
		a.scanCmd(),
		a.infoCmd(),
		a.switchCmd(),
		a.portCmd(),
		a.restartCmd(),
		a.audioTestCmd(),
		a.logsCmd(),
		a.deviceCmd(),
		a.watchCmd(),
		a.metricsCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.out, "go2n %s\n", version.Full())
		},
	}
}

func terminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password required: set %s or run in a terminal", PasswordEnvVar)
	}
	_, _ = fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// printError prints err followed by troubleshooting tips for device errors
func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)

	var devErr *twon.DeviceError
	if !errors.As(err, &devErr) {
		return
	}
	_, _ = fmt.Fprintln(w, "\nTroubleshooting:")
	for _, tip := range twon.TroubleshootingHint(err) {
		_, _ = fmt.Fprintf(w, "  - %s\n", tip)
	}
}
