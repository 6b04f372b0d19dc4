package comment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClient stores issue comments in memory, delay is applied to every
// operation to widen race windows.
type fakeClient struct {
	mu       sync.Mutex
	comments []*github.IssueComment
	nextID   int64
	delay    time.Duration

	creates int
	updates int
}

func (c *fakeClient) sleep() {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
}

func (c *fakeClient) ListIssueComments(context.Context, string, string, int) ([]*github.IssueComment, error) {
	c.sleep()

	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]*github.IssueComment, 0, len(c.comments))
	for _, cm := range c.comments {
		result = append(result, &github.IssueComment{ID: github.Int64(cm.GetID()), Body: github.String(cm.GetBody())})
	}

	return result, nil
}

func (c *fakeClient) CreateIssueComment(_ context.Context, _, _ string, _ int, body string) (*github.IssueComment, error) {
	c.sleep()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.creates++
	cm := github.IssueComment{ID: github.Int64(c.nextID), Body: github.String(body)}
	c.comments = append(c.comments, &cm)

	return &cm, nil
}

func (c *fakeClient) UpdateIssueComment(_ context.Context, _, _ string, commentID int64, body string) error {
	c.sleep()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cm := range c.comments {
		if cm.GetID() == commentID {
			c.updates++
			cm.Body = github.String(body)
			return nil
		}
	}

	return errors.New("comment not found")
}

func (c *fakeClient) trackingComments() []*github.IssueComment {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result []*github.IssueComment
	for _, cm := range c.comments {
		if strings.HasPrefix(cm.GetBody(), Marker) {
			result = append(result, cm)
		}
	}

	return result
}

func newTestManager(t *testing.T) *Manager {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	m := NewManager()
	m.now = func() time.Time { return testNow }

	return m
}

var testRef = Ref{Owner: "octo", Repo: "hello", Number: 1}

func TestUpdateCreatesComment(t *testing.T) {
	m := newTestManager(t)
	clt := fakeClient{
		comments: []*github.IssueComment{{ID: github.Int64(100), Body: github.String("looks good")}},
		nextID:   100,
	}

	err := m.Update(context.Background(), &clt, testRef, testSnapshot(), "pull request opened")
	require.NoError(t, err)

	tracking := clt.trackingComments()
	require.Len(t, tracking, 1)
	assert.Equal(t, []Entry{{Time: testNow, Message: "pull request opened"}}, ParseLog(tracking[0].GetBody()))
	assert.Equal(t, 1, clt.creates)
}

func TestUpdateAppendsToExistingLog(t *testing.T) {
	m := newTestManager(t)
	clt := fakeClient{}

	require.NoError(t, m.Update(context.Background(), &clt, testRef, testSnapshot(), "opened"))

	m.now = func() time.Time { return testNow.Add(time.Minute) }
	require.NoError(t, m.Update(context.Background(), &clt, testRef, testSnapshot(), "reviewed"))

	tracking := clt.trackingComments()
	require.Len(t, tracking, 1)
	assert.Equal(t, []Entry{
		{Time: testNow, Message: "opened"},
		{Time: testNow.Add(time.Minute), Message: "reviewed"},
	}, ParseLog(tracking[0].GetBody()))
	assert.Equal(t, 1, clt.creates)
	assert.Equal(t, 1, clt.updates)
}

func TestUpdateWithoutActivityKeepsLog(t *testing.T) {
	m := newTestManager(t)
	clt := fakeClient{}

	require.NoError(t, m.Update(context.Background(), &clt, testRef, testSnapshot(), "opened"))
	first := clt.trackingComments()[0].GetBody()

	m.now = func() time.Time { return testNow.Add(time.Hour) }
	require.NoError(t, m.Update(context.Background(), &clt, testRef, testSnapshot(), ""))
	require.NoError(t, m.Update(context.Background(), &clt, testRef, testSnapshot(), "  "))

	tracking := clt.trackingComments()
	require.Len(t, tracking, 1)
	assert.Equal(t, first, tracking[0].GetBody())
	assert.Len(t, ParseLog(tracking[0].GetBody()), 1)
	assert.Equal(t, 0, clt.updates)
}

func TestUpdateFirstTrackingCommentWins(t *testing.T) {
	m := newTestManager(t)
	clt := fakeClient{
		comments: []*github.IssueComment{
			{ID: github.Int64(1), Body: github.String(Render(testSnapshot(), nil))},
			{ID: github.Int64(2), Body: github.String(Render(testSnapshot(), nil))},
		},
		nextID: 2,
	}

	require.NoError(t, m.Update(context.Background(), &clt, testRef, testSnapshot(), "synchronized"))

	assert.Len(t, ParseLog(clt.comments[0].GetBody()), 1)
	assert.Empty(t, ParseLog(clt.comments[1].GetBody()))
	assert.Equal(t, 0, clt.creates)
}

func TestUpdateIgnoresCommentsQuotingMarker(t *testing.T) {
	m := newTestManager(t)
	quote := "> " + strings.ReplaceAll(Render(testSnapshot(), nil), "\n", "\n> ") + "\nwhy is this not merged yet?"
	clt := fakeClient{
		comments: []*github.IssueComment{{ID: github.Int64(1), Body: github.String(quote)}},
		nextID:   1,
	}

	require.NoError(t, m.Update(context.Background(), &clt, testRef, testSnapshot(), "pull request opened"))

	assert.Equal(t, quote, clt.comments[0].GetBody())
	assert.Equal(t, 1, clt.creates)
	assert.Equal(t, 0, clt.updates)

	tracking := clt.trackingComments()
	require.Len(t, tracking, 1)
	assert.Equal(t, int64(2), tracking[0].GetID())
}

func TestConcurrentUpdatesConverge(t *testing.T) {
	m := newTestManager(t)
	clt := fakeClient{delay: 20 * time.Millisecond}

	var wg sync.WaitGroup
	for _, msg := range []string{"timer refresh", "review submitted"} {
		msg := msg
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Update(context.Background(), &clt, testRef, testSnapshot(), msg))
		}()
	}

	wg.Wait()

	tracking := clt.trackingComments()
	require.Len(t, tracking, 1)
	assert.Equal(t, 1, clt.creates)

	var messages []string
	for _, e := range ParseLog(tracking[0].GetBody()) {
		messages = append(messages, e.Message)
	}
	assert.ElementsMatch(t, []string{"timer refresh", "review submitted"}, messages)
}
