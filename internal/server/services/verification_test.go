package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/dmitrijs2005/contactsapi/internal/server/auth"
	"github.com/dmitrijs2005/contactsapi/internal/server/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenFromMessage(t *testing.T, msg notify.Message) string {
	t.Helper()
	data, ok := msg.Data.(notify.VerifyEmailData)
	require.True(t, ok)
	i := strings.LastIndex(data.URL, "/")
	require.Positive(t, i)
	return data.URL[i+1:]
}

func TestVerificationURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8000/api/auth/verify/abc", VerificationURL("http://localhost:8000/", "abc"))
	assert.Equal(t, "http://localhost:8000/api/auth/verify/abc", VerificationURL("http://localhost:8000", "abc"))
}

func TestStart_QueuesVerificationEmail(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.verify.Start(context.Background(), "alice@example.com", "http://localhost:8000/"))

	sent := f.queue.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Equal(t, notify.SubjectVerifyEmail, sent[0].Subject)
	assert.Equal(t, notify.TemplateVerifyEmail, sent[0].Template)

	data := sent[0].Data.(notify.VerifyEmailData)
	assert.True(t, strings.HasPrefix(data.URL, "http://localhost:8000/api/auth/verify/"))

	sub, err := f.codec.Decode(tokenFromMessage(t, sent[0]), auth.ScopeVerify)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sub)
}

func TestRedeem_VerifiesOnce(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "alice@example.com", "pw", false)
	ctx := context.Background()

	require.NoError(t, f.verify.Start(ctx, "alice@example.com", "http://localhost/"))
	token := tokenFromMessage(t, f.queue.sent()[0])

	require.NoError(t, f.verify.Redeem(ctx, token))
	assert.True(t, f.stored(t, "alice@example.com").Verified)

	assert.ErrorIs(t, f.verify.Redeem(ctx, token), common.ErrAlreadyVerified)
}

func TestRedeem_InvalidTokens(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "alice@example.com", "pw", false)
	ctx := context.Background()

	assert.ErrorIs(t, f.verify.Redeem(ctx, "garbage"), common.ErrInvalidToken)

	access, err := f.codec.Encode("alice@example.com", auth.ScopeAccess, time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, f.verify.Redeem(ctx, access), common.ErrInvalidToken)

	ghost, err := f.codec.Encode("ghost@example.com", auth.ScopeVerify, time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, f.verify.Redeem(ctx, ghost), common.ErrInvalidToken)

	expired, err := f.codec.Encode("alice@example.com", auth.ScopeVerify, time.Minute)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)
	assert.ErrorIs(t, f.verify.Redeem(ctx, expired), common.ErrInvalidToken)

	assert.False(t, f.stored(t, "alice@example.com").Verified)
}

func TestRedeem_ConcurrentVerifyReportsAlreadyVerified(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "alice@example.com", "pw", false)
	ctx := context.Background()

	token, err := f.codec.Encode("alice@example.com", auth.ScopeVerify, time.Hour)
	require.NoError(t, err)

	f.repo.beforePersist = func() {
		a, err := f.mem.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		a.Verified = true
		require.NoError(t, f.mem.Persist(ctx, a))
	}

	assert.ErrorIs(t, f.verify.Redeem(ctx, token), common.ErrAlreadyVerified)
}

func TestRedeem_StoreError(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "alice@example.com", "pw", false)

	token, err := f.codec.Encode("alice@example.com", auth.ScopeVerify, time.Hour)
	require.NoError(t, err)

	f.repo.persistErr = errBoom
	assert.ErrorIs(t, f.verify.Redeem(context.Background(), token), common.ErrorInternal)
}

func TestLoginRequiresVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.signup.Signup(ctx, "alice@example.com", "pw", "http://localhost/")
	require.NoError(t, err)

	_, err = f.sessions.Login(ctx, "alice@example.com", "pw")
	require.ErrorIs(t, err, common.ErrEmailNotVerified)

	sent := f.queue.sent()
	require.Len(t, sent, 1)
	require.NoError(t, f.verify.Redeem(ctx, tokenFromMessage(t, sent[0])))

	pair, err := f.sessions.Login(ctx, "alice@example.com", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestResend(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "pending@example.com", "pw", false)
	f.addAccount(t, "done@example.com", "pw", true)
	ctx := context.Background()

	require.NoError(t, f.verify.Resend(ctx, "ghost@example.com", "http://localhost/"))
	require.NoError(t, f.verify.Resend(ctx, "done@example.com", "http://localhost/"))
	assert.Empty(t, f.queue.sent())

	require.NoError(t, f.verify.Resend(ctx, "pending@example.com", "http://localhost/"))
	sent := f.queue.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "pending@example.com", sent[0].To)

	f.repo.findErr = errBoom
	assert.ErrorIs(t, f.verify.Resend(ctx, "pending@example.com", "http://localhost/"), common.ErrorInternal)
}
