package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"

	"github.com/optimaxdev/automerge-semantic-release/internal/automerge"
	"github.com/optimaxdev/automerge-semantic-release/internal/cfg"
	"github.com/optimaxdev/automerge-semantic-release/internal/githubclt"
	"github.com/optimaxdev/automerge-semantic-release/internal/retryer"
)

const appName = "automerge"

var logger = zap.NewNop()

// Version is set via a ldflag on compilation
var Version = "unknown"

// errReported is returned by commands that already reported the error to
// the user.
var errReported = errors.New("error reported")

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

type arguments struct {
	Verbose    bool
	ConfigFile string
	DryRun     bool
}

func newRootCmd() *cobra.Command {
	var args arguments

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Merge semantic release branches into the later release branches of the same major version",
		Long: appName + ` merges a changed release branch (1.x, 1.2.x) into all later release
branches of the same major version. When a merge conflicts, a pull request is
created for it and no further branches are merged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pflags := rootCmd.PersistentFlags()
	pflags.BoolVarP(&args.Verbose, "verbose", "v", false, "enable verbose logging")
	pflags.StringVarP(&args.ConfigFile, "cfg-file", "c", "", "path to a TOML or YAML configuration file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run as GitHub Action step, the triggering event is read from the GitHub Actions environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd.Context(), &args)
		},
	}
	runFlags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	runFlags.BoolVar(&args.DryRun, "dry-run", false, "simulate all changes on GitHub")
	runCmd.Flags().AddFlagSet(runFlags)

	// without a subcommand the action is run
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runFlags)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "receive GitHub webhook events via HTTP and run the automerge for them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), &args)
		},
	}
	serveCmd.Flags().AddFlagSet(runFlags)

	rootCmd.AddCommand(
		runCmd,
		serveCmd,
		&cobra.Command{
			Use:   "config",
			Short: "print the default configuration in TOML format",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return cfg.Default().Marshal(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, Version)
			},
		},
	)

	return rootCmd
}

func loadConfig(path string) (*cfg.Config, error) {
	if path == "" {
		return cfg.Default(), nil
	}

	config, err := cfg.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not load configuration file %s: %w", path, err)
	}

	return config, nil
}

// newGateway returns the gateway to GitHub, API calls that fail temporarily
// are retried until the configured retry timeout expires.
func newGateway(config *cfg.Config, rt *retryer.Retryer) (automerge.Gateway, error) {
	var clt *githubclt.Client

	if config.GithubAPIURL != "" {
		var err error

		clt, err = githubclt.NewEnterprise(config.GithubAPIToken, config.GithubAPIURL, config.GithubGraphQLURL)
		if err != nil {
			return nil, fmt.Errorf("creating github client failed: %w", err)
		}
	} else {
		clt = githubclt.New(config.GithubAPIToken)
	}

	var gw automerge.Gateway = retryer.NewGateway(clt, rt)

	if config.DryRun {
		gw = automerge.NewDryGateway(gw, logger)
	}

	return gw, nil
}

func newWorkflow(config *cfg.Config) (*automerge.Workflow, *retryer.Retryer, error) {
	retryTimeout, err := config.RetryTimeoutDuration()
	if err != nil {
		return nil, nil, err
	}

	rt := retryer.NewRetryer(retryTimeout)

	gw, err := newGateway(config, rt)
	if err != nil {
		return nil, nil, err
	}

	return automerge.NewWorkflow(
		gw,
		automerge.WithRefPrefix(config.RefPrefix),
		automerge.WithPullRequestLabel(config.AutomergePRLabel),
	), rt, nil
}

func main() {
	defer panicHandler()

	goodbye.Notify(context.Background())

	ctx, cancelFn := context.WithCancel(context.Background())
	goodbye.Register(func(context.Context, os.Signal) {
		cancelFn()
	})

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "ERROR:", err.Error())
		}

		goodbye.Exit(context.Background(), 1)
	}

	goodbye.Exit(context.Background(), 0)
}
