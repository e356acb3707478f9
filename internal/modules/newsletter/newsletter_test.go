package newsletter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibecodingwiki/core/internal/database"
	"go.uber.org/zap"

	vcwmail "github.com/vibecodingwiki/core/internal/pkg/mail"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []vcwmail.Message
}

func (m *recordingMailer) Enabled() bool { return true }

func (m *recordingMailer) Send(msg vcwmail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *recordingMailer) message(i int) vcwmail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[i]
}

func newTestService(t *testing.T) (*Service, *recordingMailer) {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	mailer := &recordingMailer{}
	return NewService(db, mailer, zap.NewNop()), mailer
}

func TestSubscribeNewEmail(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "  Reader@Example.COM ", "footer")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", sub.Email)
	assert.Equal(t, "footer", sub.Source)
	assert.Nil(t, sub.UnsubscribedAt)

	require.Eventually(t, func() bool { return mailer.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"reader@example.com"}, mailer.message(0).To)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, "a@example.com", "")
	require.NoError(t, err)
	second, err := svc.Subscribe(ctx, "a@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := svc.ActiveCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// The welcome email only goes out on the first opt-in.
	require.Eventually(t, func() bool { return mailer.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSubscribeRejectsInvalidEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Subscribe(context.Background(), "not-an-email", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestUnsubscribeAndResubscribe(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, "b@example.com", "hero")
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, "b@example.com"))

	count, err := svc.ActiveCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	sub, err := svc.Subscribe(ctx, "b@example.com", "sidebar")
	require.NoError(t, err)
	assert.Nil(t, sub.UnsubscribedAt)

	count, err = svc.ActiveCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestUnsubscribeUnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Unsubscribe(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotSubscribed)
}
