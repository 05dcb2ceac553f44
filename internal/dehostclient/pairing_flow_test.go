package dehostclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/dehost-labs/dehost/internal/api"
	"github.com/dehost-labs/dehost/internal/pairing"
	"github.com/dehost-labs/dehost/internal/serverdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) (*Client, *serverdb.ServerDB) {
	t.Helper()
	store, err := serverdb.Open(filepath.Join(t.TempDir(), "dehost.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv, err := api.NewServer(api.Config{RateLimitPairing: 1000, DefaultCallbackPort: 4000}, store)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL), store
}

// dashboardBrowser plays the signed-in user: it reads the code from the
// orchestrator, verifies it against the backend, then reports to the CLI
// callback the way the cliauth page does.
func dashboardBrowser(t *testing.T, c *Client, o **pairing.Orchestrator, userID string) pairing.BrowserFunc {
	return func(pairingURL string) error {
		u, err := url.Parse(pairingURL)
		if err != nil {
			return err
		}
		port := u.Query().Get("port")
		code := (*o).Code()
		go func() {
			status := "success"
			if err := c.VerifyCode(context.Background(), userID, code); err != nil {
				status = "failure"
			}
			resp, err := http.Get("http://127.0.0.1:" + port + pairing.CallbackPath + "?status=" + status)
			if err != nil {
				t.Errorf("callback: %v", err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	}
}

func TestPairingEndToEnd(t *testing.T) {
	c, store := newBackend(t)

	var o *pairing.Orchestrator
	o = pairing.New(pairing.Config{
		ListenAddr: "127.0.0.1:0",
		PairingURL: c.PairingURL(),
		Timeout:    5 * time.Second,
	}, c, dashboardBrowser(t, c, &o, "u_alice"))

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pairing.StateSucceeded, res.State)

	require.NotEmpty(t, res.Session)
	verified, err := c.IsVerified(context.Background(), res.Code, res.Session)
	require.NoError(t, err)
	assert.True(t, verified)

	userID, err := store.ResolveSession(res.Session)
	require.NoError(t, err)
	assert.Equal(t, "u_alice", userID)

	dep, err := c.RecordDeployment(context.Background(), DeploymentRequest{
		Session:       res.Session,
		Name:          "site",
		Domain:        "site.example",
		CID:           "bafytest",
		DeploymentURL: "https://gateway.lighthouse.storage/ipfs/bafytest",
	})
	require.NoError(t, err)
	assert.Equal(t, "u_alice", dep.UserID)

	list, err := store.ListDeployments("u_alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, dep.ID, list[0].ID)
}

func TestSecondVerificationRejected(t *testing.T) {
	c, _ := newBackend(t)
	ctx := context.Background()

	_, err := c.SaveCode(ctx, "482913")
	require.NoError(t, err)
	require.NoError(t, c.VerifyCode(ctx, "u1", "482913"))
	assert.ErrorIs(t, c.VerifyCode(ctx, "u2", "482913"), pairing.ErrAlreadyVerified)
}

func TestPairingTimesOutWithoutBrowser(t *testing.T) {
	c, _ := newBackend(t)

	o := pairing.New(pairing.Config{
		ListenAddr: "127.0.0.1:0",
		PairingURL: c.PairingURL(),
		Timeout:    200 * time.Millisecond,
	}, c, pairing.BrowserFunc(func(string) error { return nil }))

	res, err := o.Run(context.Background())
	require.ErrorIs(t, err, pairing.ErrTimeout)
	assert.Equal(t, pairing.StateTimedOut, res.State)

	verified, err := c.IsVerified(context.Background(), res.Code, "")
	require.NoError(t, err)
	assert.False(t, verified)
}
