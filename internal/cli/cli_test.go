package cli

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/auth"
	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/richardliu001/wallet-ledger/internal/service"
	"github.com/richardliu001/wallet-ledger/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testOpener(t *testing.T) Opener {
	db := storetest.Open(t)
	log := zap.NewNop().Sugar()
	r := repo.NewRepository(db, nil, nil, log)
	app := &App{
		Repo:       r,
		Auth:       auth.NewService(db, config.AuthConfig{JWTSecret: "cli-secret", SessionTTL: time.Hour, MaxActiveKeys: 5}, log),
		Onboarding: service.NewOnboardingService(r, log),
	}
	return func(string) (*App, error) { return app, nil }
}

func run(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--conf", "unused.yaml"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestProvisionThenOperate(t *testing.T) {
	open := testOpener(t)

	out, err := run(t, open, "provision", "--email", "ops@x.io", "--name", "Ops")
	require.NoError(t, err)
	m := regexp.MustCompile(`user_id=(\d+) wallet_number=(4\d{12})`).FindStringSubmatch(out)
	require.Len(t, m, 3, out)

	out, err = run(t, open, "balance", "--wallet-number", m[2])
	require.NoError(t, err)
	assert.Contains(t, out, "balance=0 (₦0.00)")

	out, err = run(t, open, "balance", "--user-id", m[1])
	require.NoError(t, err)
	assert.Contains(t, out, m[2])

	out, err = run(t, open, "issue-key", "--user-id", m[1], "--perm", "read", "--perm", "transfer", "--expiry", "1D")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "key=sk_"), out)
	assert.Contains(t, out, "expires_at=")

	out, err = run(t, open, "session-token", "--user-id", m[1])
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}

func TestCommandErrors(t *testing.T) {
	open := testOpener(t)

	_, err := run(t, open, "balance")
	assert.Error(t, err)

	_, err = run(t, open, "provision", "--email", "not-an-email")
	assert.ErrorIs(t, err, service.ErrInvalidEmail)

	_, err = run(t, open, "issue-key", "--user-id", "42")
	assert.Error(t, err)

	_, err = run(t, open, "issue-key", "--user-id", "1", "--expiry", "2W")
	assert.Error(t, err)

	_, err = run(t, open, "session-token", "--user-id", "42")
	assert.ErrorIs(t, err, repo.ErrUserNotFound)
}
