package e2e_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/guessnumber-go/internal/api"
	"github.com/mcoot/guessnumber-go/internal/client"
	"github.com/mcoot/guessnumber-go/internal/factory"
	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/services/session"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	projectRoot := findProjectRoot(t)

	binaryPath := filepath.Join(t.TempDir(), "guessnum-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/guessnum")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{binaryPath: binaryPath, serverURL: serverURL}
}

func (r *cliRunner) run(args ...string) (string, error) {
	return r.runWithInput("", "json", args...)
}

func (r *cliRunner) runWithInput(stdin, format string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--name", "e2e",
		"--output", format,
	}, args...)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binaryPath, fullArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer runs the relay and API on a free local port
type testServer struct {
	app      *factory.App
	url      string
	relayURL string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{Logger: logger, Hub: app.Hub})
	serverCfg := api.DefaultServerConfig()
	serverCfg.Host = "127.0.0.1"
	serverCfg.Port = port
	serverCfg.ShutdownTimeout = 5 * time.Second
	server := api.NewServer(router, serverCfg, logger)
	server.OnShutdown(app.Close)

	go func() {
		if err := server.Start(); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	addr := "127.0.0.1:" + strconv.Itoa(port)
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app:      app,
		url:      serverURL,
		relayURL: "ws://" + addr + "/",
		shutdown: func() {
			_ = server.Shutdown(context.Background())
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	httpClient := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := httpClient.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready")
}

// player is an in-process participant: a relay client driving a session
type player struct {
	client  *client.Client
	session *session.Session
	cancel  context.CancelFunc
}

func connectPlayer(t *testing.T, srv *testServer, name string) *player {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	c, err := client.Dial(context.Background(), srv.relayURL, client.DefaultTimeout, logger)
	require.NoError(t, err)

	cfg := session.DefaultConfig()
	cfg.Username = name
	sess := srv.app.NewSession(cfg, c)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = client.Drive(ctx, c, sess) }()

	p := &player{client: c, session: sess, cancel: cancel}
	t.Cleanup(p.close)
	return p
}

func (p *player) close() {
	p.cancel()
	p.session.Close()
	p.client.Close()
}

func (p *player) eventually(t *testing.T, cond func(model.SessionSnapshot) bool, msg string) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(p.session.Snapshot()) }, 5*time.Second, 20*time.Millisecond, msg)
}

func TestCLI_HealthCheck(t *testing.T) {
	srv := startTestServer(t)
	defer srv.shutdown()
	cli := newCLIRunner(t, srv.url)

	output, err := cli.run("health")
	require.NoError(t, err, output)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.Equal(t, "ok", result["status"])
	assert.Equal(t, float64(0), result["participants"])
}

func TestCLI_RoomGet(t *testing.T) {
	srv := startTestServer(t)
	defer srv.shutdown()
	cli := newCLIRunner(t, srv.url)

	host := connectPlayer(t, srv, "hana")
	host.eventually(t, func(s model.SessionSnapshot) bool { return s.IsHost }, "host should own a room")
	guest := connectPlayer(t, srv, "gus")
	roomID := string(host.client.SelfID())
	require.NoError(t, guest.client.Join(context.Background(), model.RoomID(roomID)))

	output, err := cli.run("room", "get", roomID)
	require.NoError(t, err, output)

	var room map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &room))
	assert.Equal(t, roomID, room["id"])
	assert.Equal(t, roomID, room["host"])
	assert.Equal(t, true, room["host_present"])
	assert.Equal(t, float64(1), room["guests"])
	assert.Equal(t, srv.url+"/?room="+roomID, room["join_url"])
}

func TestCLI_RoomGetUnknown(t *testing.T) {
	srv := startTestServer(t)
	defer srv.shutdown()
	cli := newCLIRunner(t, srv.url)

	output, err := cli.run("room", "get", "nope")
	require.Error(t, err)
	assert.Contains(t, output, "ROOM_NOT_FOUND")
}

func TestCLI_SoloGiveUp(t *testing.T) {
	srv := startTestServer(t)
	defer srv.shutdown()
	cli := newCLIRunner(t, srv.url)

	output, err := cli.runWithInput("12\n000\ngiveup\nquit\n", "text", "solo", "--digits", "3")
	require.NoError(t, err, output)

	assert.Contains(t, output, "Guess the 3-digit number.")
	assert.Contains(t, output, "000  exact=")
	assert.Contains(t, output, "The number was ")
	assert.Contains(t, output, "Error:")
}

func TestCLI_JoinHandshakesWithHost(t *testing.T) {
	srv := startTestServer(t)
	defer srv.shutdown()
	cli := newCLIRunner(t, srv.url)

	host := connectPlayer(t, srv, "hana")
	host.eventually(t, func(s model.SessionSnapshot) bool { return s.IsHost }, "host should own a room")
	roomID := string(host.client.SelfID())

	output, err := cli.runWithInput("quit\n", "text", "join", roomID)
	require.NoError(t, err, output)
	assert.Contains(t, output, "Joined room "+roomID)

	host.eventually(t, func(s model.SessionSnapshot) bool { return len(s.Members) == 0 }, "guest should be gone after quitting")
}

func TestRaceOverRelay(t *testing.T) {
	srv := startTestServer(t)
	defer srv.shutdown()

	host := connectPlayer(t, srv, "hana")
	host.eventually(t, func(s model.SessionSnapshot) bool { return s.IsHost }, "host should own a room")
	guest := connectPlayer(t, srv, "gus")
	require.NoError(t, guest.client.Join(context.Background(), model.RoomID(host.client.SelfID())))
	require.NoError(t, guest.session.Handshake(context.Background()))

	host.eventually(t, func(s model.SessionSnapshot) bool { return len(s.Members) == 1 }, "host should see the guest")
	require.NoError(t, host.session.Start(model.DefaultGameConfig()))

	guest.eventually(t, func(s model.SessionSnapshot) bool { return s.Phase == model.PhasePlaying }, "guest should receive the round")
	assert.False(t, guest.session.Snapshot().IsMyTurn())

	// Only a win could make this guess end the round; both outcomes are checked
	result, err := host.session.SubmitGuess("0000")
	require.NoError(t, err)

	if result.IsWin() {
		guest.eventually(t, func(s model.SessionSnapshot) bool { return s.Phase == model.PhaseLost }, "guest should lose")
		return
	}
	guest.eventually(t, func(s model.SessionSnapshot) bool { return s.IsMyTurn() }, "turn should pass to the guest")
	guest.eventually(t, func(s model.SessionSnapshot) bool {
		for _, peer := range s.Peers {
			if peer.ID == host.client.SelfID() {
				return peer.GuessCount == 1
			}
		}
		return false
	}, "guest should see the host's guess")

	_, err = host.session.SubmitGuess("1111")
	assert.ErrorIs(t, err, model.ErrNotYourTurn)

	host.close()
	guest.eventually(t, func(s model.SessionSnapshot) bool { return s.Phase == model.PhaseLobby }, "guest should return to the lobby when the host leaves")
}
