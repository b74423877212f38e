package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/optimaxdev/automerge-semantic-release/internal/ghaction"
	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
)

// runAction runs the automerge for the event that triggered the GitHub
// Actions workflow. Errors are reported as workflow error annotations.
func runAction(ctx context.Context, args *arguments) error {
	rt := ghaction.New(nil, nil)

	err := runActionStep(ctx, rt, args)
	if err != nil {
		rt.SetFailed(err)
		logger.Error("automerge failed", logfields.Event("automerge_failed"), zap.Error(err))

		return fmt.Errorf("%w: %w", errReported, err)
	}

	return nil
}

func runActionStep(ctx context.Context, rt *ghaction.Runtime, args *arguments) error {
	config, err := loadConfig(args.ConfigFile)
	if err != nil {
		return err
	}

	inputs := rt.Inputs()
	config.ApplyActionInputs(inputs.Token, inputs.AutomergePRLabel, inputs.RemoteName)

	if err := ghaction.RequireInput(ghaction.InputToken, config.GithubAPIToken); err != nil {
		return err
	}

	if args.DryRun {
		config.DryRun = true
	}

	if config.GithubAPIURL == "" {
		config.GithubAPIURL, config.GithubGraphQLURL, err = rt.APIURLs()
		if err != nil {
			return err
		}
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID := rt.RunID()
	if runID == "" {
		runID = uuid.NewString()
	}

	if err := initLogger(config, args.Verbose || rt.Debug(), logfields.RunID(runID)); err != nil {
		return err
	}

	logger.Info(
		"configuration loaded",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", args.ConfigFile),
		zap.Bool("github_actions", rt.IsAction()),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.String("github_api_url", config.GithubAPIURL),
		zap.String("github_graphql_url", config.GithubGraphQLURL),
		zap.String("automerge_pr_label", config.AutomergePRLabel),
		zap.String("remote_name", config.RemoteName),
		zap.String("ref_prefix", config.RefPrefix),
		zap.Bool("dry_run", config.DryRun),
		zap.String("retry_timeout", config.RetryTimeout),
	)

	pc, err := rt.PushContext()
	if err != nil {
		return fmt.Errorf("reading triggering event failed: %w", err)
	}

	logger.Debug(
		"triggering event read",
		append([]zap.Field{logfields.Event("trigger_event_read")}, pc.LogFields()...)...,
	)

	wf, retryer, err := newWorkflow(config)
	if err != nil {
		return err
	}
	defer retryer.Stop()

	return wf.Run(ctx, pc)
}
