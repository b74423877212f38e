package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	github_prov "github.com/optimaxdev/automerge-semantic-release/internal/provider/github"
	"github.com/optimaxdev/automerge-semantic-release/internal/trigger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingRunner struct {
	lock sync.Mutex
	runs []*trigger.PushContext
	err  error
}

func (r *recordingRunner) Run(_ context.Context, pc *trigger.PushContext) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.runs = append(r.runs, pc)
	return r.err
}

func (r *recordingRunner) Runs() []*trigger.PushContext {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]*trigger.PushContext(nil), r.runs...)
}

func newEvent(t *testing.T, eventType, deliveryID, payload string) *github_prov.Event {
	t.Helper()

	ev, err := github.ParseWebHook(eventType, []byte(payload))
	require.NoError(t, err)

	return &github_prov.Event{
		DeliveryID: deliveryID,
		Type:       eventType,
		JSON:       []byte(payload),
		Event:      ev,
	}
}

func startEventLoop(t *testing.T, runner Runner) *EvLoop {
	t.Helper()

	filter, err := NewFilter(DefaultFilterQuery)
	require.NoError(t, err)

	evl := NewEventLoop(filter, runner)

	errCh := make(chan error, 1)
	go func() {
		errCh <- evl.Start(context.Background())
	}()

	t.Cleanup(func() {
		evl.Stop()
		assert.NoError(t, <-errCh)
	})

	return evl
}

func TestEventLoopRunsMatchingEvents(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	runner := recordingRunner{}
	evl := startEventLoop(t, &runner)

	evl.C() <- newEvent(t, "push", "1", `{"ref":"refs/heads/1.x","deleted":true,"repository":{"name":"app","owner":{"login":"octo"}}}`)
	evl.C() <- newEvent(t, "pull_request", "2", `{"action":"opened","pull_request":{"base":{"ref":"1.x"},"head":{"ref":"feature"}},"repository":{"name":"app","owner":{"login":"octo"}}}`)
	evl.C() <- newEvent(t, "pull_request", "4", `{"action":"closed","pull_request":{"merged":true,"base":{"ref":"1.1.x"},"head":{"ref":"feature/x"}},"repository":{"name":"app","owner":{"login":"octo"}}}`)
	evl.C() <- newEvent(t, "push", "3", `{"ref":"refs/heads/1.1.x","after":"c0ffee","repository":{"name":"app","owner":{"login":"octo"}}}`)

	assert.Eventually(t, func() bool { return evl.Processed() == 1 }, 5*time.Second, 10*time.Millisecond)

	runs := runner.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "3", runs[0].DeliveryID)
	assert.Equal(t, "1.1.x", runs[0].BaseBranch)
	assert.Equal(t, "c0ffee", runs[0].HeadSHA)
}

func TestEventLoopContinuesAfterFailedRun(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	runner := recordingRunner{err: errors.New("error mocked by TestEventLoopContinuesAfterFailedRun")}
	evl := startEventLoop(t, &runner)

	payload := `{"ref":"refs/heads/1.x","repository":{"name":"app","owner":{"login":"octo"}}}`
	evl.C() <- newEvent(t, "push", "1", payload)
	evl.C() <- newEvent(t, "push", "2", payload)

	assert.Eventually(t, func() bool { return evl.Failed() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 2, evl.Processed())
}

func TestEventLoopTerminatesOnContextCancel(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	filter, err := NewFilter(DefaultFilterQuery)
	require.NoError(t, err)

	evl := NewEventLoop(filter, &recordingRunner{})

	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	assert.ErrorIs(t, evl.Start(ctx), context.Canceled)
}

func TestEventLoopStopProcessesQueuedEvents(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	filter, err := NewFilter(DefaultFilterQuery)
	require.NoError(t, err)

	runner := recordingRunner{}
	evl := NewEventLoop(filter, &runner)

	payload := `{"ref":"refs/heads/1.x","after":"c0ffee","repository":{"name":"app","owner":{"login":"octo"}}}`
	evl.C() <- newEvent(t, "push", "1", payload)
	evl.C() <- newEvent(t, "push", "2", payload)

	evl.Stop()

	require.NoError(t, evl.Start(context.Background()))
	assert.EqualValues(t, 2, evl.Processed())
	assert.EqualValues(t, 0, evl.Failed())
	assert.Len(t, runner.Runs(), 2)
}
