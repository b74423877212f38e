// Package trigger converts GitHub event payloads into the context of an
// automerge run.
package trigger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
)

var (
	ErrMissingRepositoryName = errors.New("failed to get repository name")
	ErrUnsupportedEvent      = errors.New("unsupported event type")
)

const branchRefPrefix = "refs/heads/"

// PushContext describes the branch change that triggered an automerge run.
// For push events BaseBranch and HeadBranch are both the pushed branch.
// For pull request events BaseBranch is the target and HeadBranch the source
// branch of the pull request.
type PushContext struct {
	Owner      string
	Repository string
	BaseBranch string
	HeadBranch string
	HeadSHA    string

	EventType string
	// DeliveryID is the GitHub webhook delivery ID, it is empty when the
	// event was read from a GitHub Actions event file.
	DeliveryID string
}

func (p *PushContext) String() string {
	return fmt.Sprintf("%s/%s %s (base: %s, head: %s)", p.Owner, p.Repository, p.EventType, p.BaseBranch, p.HeadBranch)
}

func (p *PushContext) LogFields() []zap.Field {
	fields := make([]zap.Field, 0, 7)

	if p.DeliveryID != "" {
		fields = append(fields, zap.String("github.delivery_id", p.DeliveryID))
	}

	if p.EventType != "" {
		fields = append(fields, zap.String("github.event_type", p.EventType))
	}

	fields = append(fields,
		logfields.RepositoryOwner(p.Owner),
		logfields.Repository(p.Repository),
		logfields.BaseBranch(p.BaseBranch),
		logfields.Branch(p.HeadBranch),
	)

	if p.HeadSHA != "" {
		fields = append(fields, logfields.Commit(p.HeadSHA))
	}

	return fields
}

// FromPayload parses a JSON event payload of type eventName and converts it
// to a PushContext.
// headSHA is the commit that triggered the workflow (GITHUB_SHA), it takes
// precedence over the commit in push event payloads. It can be empty.
func FromPayload(eventName string, payload []byte, headSHA string) (*PushContext, error) {
	ev, err := github.ParseWebHook(eventName, payload)
	if err != nil {
		return nil, fmt.Errorf("parsing %s event payload failed: %w", eventName, err)
	}

	pc, err := FromEvent(eventName, ev)
	if err != nil {
		return nil, err
	}

	if headSHA != "" && eventName == "push" {
		pc.HeadSHA = headSHA
	}

	return pc, nil
}

// FromEvent converts an event returned by github.ParseWebHook to a
// PushContext.
// Push and pull request events are supported, for other events an error
// wrapping ErrUnsupportedEvent is returned.
func FromEvent(eventType string, ev any) (*PushContext, error) {
	switch ev := ev.(type) {
	case *github.PushEvent:
		return fromPushEvent(eventType, ev)

	case *github.PullRequestEvent:
		return fromPullRequestEvent(eventType, ev)

	default:
		return nil, fmt.Errorf("%w: %s (%T)", ErrUnsupportedEvent, eventType, ev)
	}
}

func fromPushEvent(eventType string, ev *github.PushEvent) (*PushContext, error) {
	repo := ev.GetRepo()
	if repo.GetName() == "" {
		return nil, ErrMissingRepositoryName
	}

	owner := repo.GetOwner().GetLogin()
	if owner == "" {
		owner = repo.GetOwner().GetName()
	}

	branch := branchRefToRef(ev.GetRef())

	return &PushContext{
		Owner:      owner,
		Repository: repo.GetName(),
		BaseBranch: branch,
		HeadBranch: branch,
		HeadSHA:    ev.GetAfter(),
		EventType:  eventType,
	}, nil
}

func fromPullRequestEvent(eventType string, ev *github.PullRequestEvent) (*PushContext, error) {
	repo := ev.GetRepo()
	if repo.GetName() == "" {
		return nil, ErrMissingRepositoryName
	}

	pr := ev.GetPullRequest()

	return &PushContext{
		Owner:      repo.GetOwner().GetLogin(),
		Repository: repo.GetName(),
		BaseBranch: pr.GetBase().GetRef(),
		HeadBranch: pr.GetHead().GetRef(),
		HeadSHA:    pr.GetHead().GetSHA(),
		EventType:  eventType,
	}, nil
}

func branchRefToRef(ref string) string {
	return strings.TrimPrefix(ref, branchRefPrefix)
}
