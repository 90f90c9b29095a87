package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/rpgbot/internal/catalog"
	"github.com/cory-johannsen/rpgbot/internal/config"
	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/dice"
	"github.com/cory-johannsen/rpgbot/internal/game/duel"
	"github.com/cory-johannsen/rpgbot/internal/gateway"
)

var gatewayCfg = config.GatewayConfig{Host: "127.0.0.1", Port: 8080}

// recordingStarter captures start requests. Users in engaged report as
// already duelling; a non-nil registryErr fails every Engaged call.
type recordingStarter struct {
	mu          sync.Mutex
	calls       []string
	engaged     map[string]bool
	registryErr error
}

func newRecordingStarter(engaged ...string) *recordingStarter {
	r := &recordingStarter{engaged: map[string]bool{}}
	for _, u := range engaged {
		r.engaged[u] = true
	}
	return r
}

func (r *recordingStarter) Engaged(_ context.Context, userID string) (bool, error) {
	if r.registryErr != nil {
		return false, r.registryErr
	}
	return r.engaged[userID], nil
}

func (r *recordingStarter) Challenge(_ context.Context, challenger, target duel.Participant) (duel.Result, error) {
	r.record("challenge:" + challenger.UserID + ":" + target.UserID)
	return duel.Result{Outcome: duel.OutcomeDeclined}, nil
}

func (r *recordingStarter) Practice(_ context.Context, challenger duel.Participant) (duel.Result, error) {
	r.record("practice:" + challenger.UserID)
	return duel.Result{Outcome: duel.OutcomeErrored}, errors.New("boom")
}

func (r *recordingStarter) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recordingStarter) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func do(t *testing.T, s *gateway.Server, method, path, body string) (int, string) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestServer_Healthz(t *testing.T) {
	s := gateway.NewServer(gatewayCfg, gateway.NewHub(zaptest.NewLogger(t)), newRecordingStarter(), zaptest.NewLogger(t))
	code, body := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"gateway":"ok"`)

	s.AddCheck("registry", func(context.Context) error { return errors.New("down") })
	code, body = do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, `"registry":"down"`)
}

func TestServer_StartDuel(t *testing.T) {
	starter := newRecordingStarter()
	s := gateway.NewServer(gatewayCfg, gateway.NewHub(zaptest.NewLogger(t)), starter, zaptest.NewLogger(t))

	code, _ := do(t, s, http.MethodPost, "/duels",
		`{"challenger":{"user_id":"a","name":"Alice"},"target":{"user_id":"b","name":"Bob"}}`)
	assert.Equal(t, http.StatusAccepted, code)
	code, _ = do(t, s, http.MethodPost, "/duels", `{"challenger":{"user_id":"a","name":"Alice"}}`)
	assert.Equal(t, http.StatusAccepted, code)

	s.Wait()
	assert.ElementsMatch(t, []string{"challenge:a:b", "practice:a"}, starter.Calls())
}

func TestServer_StartDuelRejectsBadRequests(t *testing.T) {
	starter := newRecordingStarter()
	s := gateway.NewServer(gatewayCfg, gateway.NewHub(zaptest.NewLogger(t)), starter, zaptest.NewLogger(t))

	for name, body := range map[string]string{
		"malformed":        `{`,
		"no challenger":    `{"target":{"user_id":"b","name":"Bob"}}`,
		"nameless target":  `{"challenger":{"user_id":"a","name":"Alice"},"target":{"user_id":"b"}}`,
		"self challenge":   `{"challenger":{"user_id":"a","name":"Alice"},"target":{"user_id":"a","name":"Alice"}}`,
		"challenger no id": `{"challenger":{"name":"Alice"}}`,
	} {
		code, _ := do(t, s, http.MethodPost, "/duels", body)
		assert.Equal(t, http.StatusBadRequest, code, name)
	}
	s.Wait()
	assert.Empty(t, starter.Calls())
}

func TestServer_StartDuelRejectsEngagedParticipants(t *testing.T) {
	starter := newRecordingStarter("b")
	s := gateway.NewServer(gatewayCfg, gateway.NewHub(zaptest.NewLogger(t)), starter, zaptest.NewLogger(t))

	code, body := do(t, s, http.MethodPost, "/duels",
		`{"challenger":{"user_id":"a","name":"Alice"},"target":{"user_id":"b","name":"Bob"}}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body, `"user_id":"b"`)
	code, _ = do(t, s, http.MethodPost, "/duels", `{"challenger":{"user_id":"b","name":"Bob"}}`)
	assert.Equal(t, http.StatusConflict, code)

	starter.registryErr = errors.New("redis down")
	code, _ = do(t, s, http.MethodPost, "/duels", `{"challenger":{"user_id":"a","name":"Alice"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	s.Wait()
	assert.Empty(t, starter.Calls())
}

func TestServer_Interactions(t *testing.T) {
	hub := gateway.NewHub(zaptest.NewLogger(t))
	s := gateway.NewServer(gatewayCfg, hub, newRecordingStarter(), zaptest.NewLogger(t))
	id := uuid.New()

	code, _ := do(t, s, http.MethodPost, "/interactions", `{"session_id":"`+id.String()+`","user_id":"u1","action":"attack"}`)
	assert.Equal(t, http.StatusConflict, code)
	for name, body := range map[string]string{
		"no action":      `{"session_id":"` + id.String() + `","user_id":"u1"}`,
		"no session":     `{"user_id":"u1","action":"attack"}`,
		"bad session id": `{"session_id":"nope","user_id":"u1","action":"attack"}`,
	} {
		code, _ = do(t, s, http.MethodPost, "/interactions", body)
		assert.Equal(t, http.StatusBadRequest, code, name)
	}

	done := awaitAsync(t, context.Background(), hub, duel.Prompt{SessionID: id, UserID: "u1", Stage: duel.StageTurn, Timeout: time.Minute})
	code, _ = do(t, s, http.MethodPost, "/interactions", `{"session_id":"`+uuid.NewString()+`","user_id":"u1","action":"surrender"}`)
	assert.Equal(t, http.StatusConflict, code, "a press for another session leaves the prompt open")
	code, _ = do(t, s, http.MethodPost, "/interactions", `{"session_id":"`+id.String()+`","user_id":"u1","action":"surrender"}`)
	assert.Equal(t, http.StatusNoContent, code)
	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, duel.ActionSurrender, got.sel.Action)
}

func TestServer_Prompts(t *testing.T) {
	hub := gateway.NewHub(zaptest.NewLogger(t))
	s := gateway.NewServer(gatewayCfg, hub, newRecordingStarter(), zaptest.NewLogger(t))

	code, _ := do(t, s, http.MethodGet, "/prompts/u1", "")
	assert.Equal(t, http.StatusNotFound, code)

	id := uuid.New()
	done := awaitAsync(t, context.Background(), hub, duel.Prompt{
		SessionID: id,
		UserID:    "u1",
		Stage:     duel.StageItemMenu,
		Actions:   []duel.Action{duel.ActionItem, duel.ActionBack},
		Items:     []combat.ItemView{{ID: "i1", Name: "Apple", Icon: "🍎"}},
		Timeout:   time.Minute,
	})
	code, body := do(t, s, http.MethodGet, "/prompts/u1", "")
	require.Equal(t, http.StatusOK, code)
	var list []gateway.PromptResponse
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 1)
	resp := list[0]
	assert.Equal(t, id, resp.SessionID)
	assert.Equal(t, duel.StageItemMenu, resp.Stage)
	assert.Equal(t, []duel.Action{duel.ActionItem, duel.ActionBack}, resp.Actions)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Apple", resp.Items[0].Name)
	assert.Equal(t, time.Minute.Milliseconds(), resp.TimeoutMs)

	require.NoError(t, hub.Press(id, "u1", duel.ActionBack, ""))
	<-done
}

func TestServer_DuelView(t *testing.T) {
	hub := gateway.NewHub(zaptest.NewLogger(t))
	s := gateway.NewServer(gatewayCfg, hub, newRecordingStarter(), zaptest.NewLogger(t))

	code, _ := do(t, s, http.MethodGet, "/duels/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, s, http.MethodGet, "/duels/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)

	id := uuid.New()
	require.NoError(t, hub.RenderNotice(context.Background(), duel.Notice{SessionID: id, Text: duel.NoticeAlreadyEngaged}))
	code, body := do(t, s, http.MethodGet, "/duels/"+id.String(), "")
	require.Equal(t, http.StatusOK, code)
	var v gateway.View
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	assert.Equal(t, id, v.SessionID)
	assert.Equal(t, []string{duel.NoticeAlreadyEngaged}, v.Notices)
}

// zeroSource always draws the lowest value.
type zeroSource struct{}

func (zeroSource) Intn(int) int { return 0 }

func TestServer_PracticeDuelEndToEnd(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hub := gateway.NewHub(logger)
	axe := combat.Weapon{Key: "axe", Name: "Axe", Icon: "🪓", MinDamage: 1000, MaxDamage: 1000, Crit: dice.Percent(0), CritMultiplier: 1}
	cat, err := catalog.FromDefs([]combat.Weapon{axe}, nil)
	require.NoError(t, err)

	deps := duel.Deps{
		Options: duel.Options{
			Config:   duel.DefaultConfig(),
			Source:   zeroSource{},
			Catalog:  cat,
			Renderer: hub,
			Registry: duel.NewMemoryRegistry(),
			Logger:   logger,
		},
		Interactor: hub,
	}
	s := gateway.NewServer(gatewayCfg, hub, gateway.DepsStarter{Deps: deps}, logger)

	code, _ := do(t, s, http.MethodPost, "/duels", `{"challenger":{"user_id":"a","name":"Alice"}}`)
	require.Equal(t, http.StatusAccepted, code)

	// A zero source makes the challenger act first; one axe blow ends it.
	var id uuid.UUID
	require.Eventually(t, func() bool {
		pending := hub.Pending("a")
		if len(pending) == 0 {
			return false
		}
		id = pending[0].SessionID
		return hub.Press(id, "a", duel.ActionAttack, "") == nil
	}, 2*time.Second, 5*time.Millisecond, "alice was never prompted")

	s.Wait()
	code, body := do(t, s, http.MethodGet, "/duels/"+id.String(), "")
	require.Equal(t, http.StatusOK, code)
	var v gateway.View
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	assert.Equal(t, gateway.ViewSummary, v.Kind)
	assert.Contains(t, v.Text, "🏆 Alice won!")
}
