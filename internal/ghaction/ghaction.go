// Package ghaction reads the inputs and the triggering event of a GitHub
// Actions workflow run and reports failures to the runner.
package ghaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sethvargo/go-githubactions"

	"github.com/optimaxdev/automerge-semantic-release/internal/trigger"
)

const (
	InputToken            = "token"
	InputAutomergePRLabel = "automergePrLabel"
	InputRemoteName       = "remoteName"
)

var ErrMissingInput = errors.New("input required and not supplied")

// Inputs are the values configured in the "with" section of the workflow
// step.
type Inputs struct {
	Token            string
	AutomergePRLabel string
	// RemoteName is informational, merges always happen via the GitHub
	// API.
	RemoteName string
}

// Runtime provides access to the GitHub Actions environment.
type Runtime struct {
	action *githubactions.Action
	getenv func(string) string
}

// New returns a Runtime that reads environment variables via getenv and
// writes workflow commands to w.
// If getenv is nil os.Getenv is used, if w is nil os.Stdout.
func New(getenv func(string) string, w io.Writer) *Runtime {
	if getenv == nil {
		getenv = os.Getenv
	}

	if w == nil {
		w = os.Stdout
	}

	return &Runtime{
		action: githubactions.New(
			githubactions.WithGetenv(getenv),
			githubactions.WithWriter(w),
		),
		getenv: getenv,
	}
}

// IsAction returns true if the process runs as a GitHub Actions step.
func (r *Runtime) IsAction() bool {
	return r.getenv("GITHUB_ACTIONS") == "true"
}

// Inputs returns the step inputs, unset inputs are empty.
func (r *Runtime) Inputs() *Inputs {
	return &Inputs{
		Token:            r.action.GetInput(InputToken),
		AutomergePRLabel: r.action.GetInput(InputAutomergePRLabel),
		RemoteName:       r.action.GetInput(InputRemoteName),
	}
}

// RequireInput returns an error wrapping ErrMissingInput if val is empty.
func RequireInput(name, val string) error {
	if val == "" {
		return fmt.Errorf("%w: %s", ErrMissingInput, name)
	}

	return nil
}

// RunID returns the GITHUB_RUN_ID, it is empty outside of GitHub Actions.
func (r *Runtime) RunID() string {
	return r.getenv("GITHUB_RUN_ID")
}

// Debug returns true if step debug logging is enabled for the workflow run.
func (r *Runtime) Debug() bool {
	return r.getenv("RUNNER_DEBUG") == "1"
}

// APIURLs returns the REST and GraphQL API endpoints of the GitHub instance
// that runs the workflow. The values are empty outside of GitHub Actions.
func (r *Runtime) APIURLs() (restURL, graphQLURL string, err error) {
	ghctx, err := r.action.Context()
	if err != nil {
		return "", "", fmt.Errorf("reading github context failed: %w", err)
	}

	return ghctx.APIURL, ghctx.GraphqlURL, nil
}

// PushContext reads the event that triggered the workflow from the event
// file and converts it to a trigger.PushContext.
func (r *Runtime) PushContext() (*trigger.PushContext, error) {
	ghctx, err := r.action.Context()
	if err != nil {
		return nil, fmt.Errorf("reading github context failed: %w", err)
	}

	if ghctx.EventName == "" {
		return nil, errors.New("GITHUB_EVENT_NAME environment variable is empty")
	}

	if ghctx.EventPath == "" || ghctx.Event == nil {
		return nil, errors.New("event payload is missing, GITHUB_EVENT_PATH is not set")
	}

	payload, err := json.Marshal(ghctx.Event)
	if err != nil {
		return nil, fmt.Errorf("marshalling event payload failed: %w", err)
	}

	return trigger.FromPayload(ghctx.EventName, payload, ghctx.SHA)
}

// SetFailed writes err as error annotation to the workflow log.
// The caller is responsible for terminating with a non-zero exit code.
func (r *Runtime) SetFailed(err error) {
	r.action.Errorf("%s", err)
}
