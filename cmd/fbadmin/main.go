package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fbadmin/internal/admin"
	"fbadmin/internal/config"
)

const version = "0.1.0"

// credentialHelp is printed when the service account cannot be used
const credentialHelp = "ERROR: invalid service account credentials. See README."

var errUsage = fmt.Errorf("%w: unknown or missing command", admin.ErrInvalidArgument)

// reportedError is a failure the command has already printed
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func newRootCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fbadmin",
		Short:         "Firebase Admin quickstart CLI",
		Long:          "Manage users, Remote Config templates, realtime database listeners and FCM messages of one Firebase project.",
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		RunE:          usage,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rt.configPath, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&rt.envPrefix, "env-prefix", config.DefaultEnvPrefix, "Environment variable prefix")
	cmd.PersistentFlags().StringVar(&rt.dotenvPath, "env-file", ".env", "Path to a .env file loaded before the environment (empty disables)")

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprint(c.ErrOrStderr(), c.UsageString())
		return fmt.Errorf("%w: %v", admin.ErrInvalidArgument, err)
	})

	cmd.AddCommand(newCmdAuth(rt))
	cmd.AddCommand(newCmdConfig(rt))
	cmd.AddCommand(newCmdDatabase(rt))
	cmd.AddCommand(newCmdMessaging(rt))
	return cmd
}

// usage is the RunE of the root and group commands. They only run when no
// known sub-command was given.
func usage(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "unknown command %q for %q\n", args[0], cmd.CommandPath())
	}
	fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
	return errUsage
}

// exactArgs is cobra.ExactArgs with the error classified as an invalid argument
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
			return fmt.Errorf("%w: %v", admin.ErrInvalidArgument, err)
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
			return fmt.Errorf("%w: %v", admin.ErrInvalidArgument, err)
		}
		return nil
	}
}

// run executes one command line and returns the process exit status
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	rt := &runtime{in: in, out: out, errOut: errOut}
	defer rt.close()

	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	report(rt, out, errOut, err)
	return admin.ExitCode(err)
}

// report prints a failed command. Remote failures go to stdout next to the
// command output, everything else to stderr.
func report(rt *runtime, out, errOut io.Writer, err error) {
	var reported *reportedError
	switch {
	case err == nil, errors.As(err, &reported), errors.Is(err, admin.ErrPublishCanceled), errors.Is(err, errUsage):
		return
	case admin.IsCredentialError(err):
		fmt.Fprintln(out, credentialHelp)
		fmt.Fprintln(out, err)
	case admin.IsRemoteError(err):
		if rt.logger != nil {
			rt.logger.Debug("remote call failed", "error", err, "status", admin.HTTPStatus(err), "code", admin.SdkCode(err))
		}
		fmt.Fprintln(out, admin.ErrorBody(err))
	default:
		fmt.Fprintf(errOut, "Error: %v\n", err)
	}
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
