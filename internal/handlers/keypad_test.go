package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/zipkiosk/internal/handlers/testutil"
	"github.com/charlesng35/zipkiosk/internal/keypad"
	"github.com/charlesng35/zipkiosk/internal/models"
	"github.com/charlesng35/zipkiosk/internal/realtime"
)

type submitPayload struct {
	Entry models.Entry `json:"entry"`
	State keypad.State `json:"state"`
}

func TestKeypadStateAndEditing(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/keypad", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var state keypad.State
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &state)
	require.Equal(t, 0, state.Length)
	require.False(t, state.SubmitEnabled)

	env.TypeZip("282771")
	require.Equal(t, "28277", env.Keypad.State().Digits)

	w = env.Request(http.MethodPost, "/api/keypad/backspace", nil)
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &state)
	require.Equal(t, "2827", state.Digits)

	w = env.Request(http.MethodPost, "/api/keypad/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &state)
	require.Equal(t, "", state.Digits)
}

func TestKeypadRejectsBadDigits(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/keypad/digits", map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "BAD_REQUEST", testutil.DecodeResponse(t, w).Error.Code)

	for _, digit := range []string{"a", "12", "-"} {
		w := env.Request(http.MethodPost, "/api/keypad/digits", map[string]string{"digit": digit})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		resp := testutil.DecodeResponse(t, w)
		require.False(t, resp.Success)
		require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	}

	state := env.Keypad.State()
	require.Equal(t, "", state.Digits)
	require.Equal(t, "Digits only", state.Message)
}

func TestKeypadSubmit(t *testing.T) {
	env := testutil.NewEnv(t)

	env.TypeZip("28202")
	w := env.Request(http.MethodPost, "/api/keypad/submit", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var payload submitPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	require.Equal(t, "28202", payload.Entry.Zip)
	require.Equal(t, "2025-03-14T15:09:26.535Z", payload.Entry.Timestamp)
	require.Equal(t, "", payload.State.Digits)
	require.Equal(t, keypad.MessageSaved, payload.State.Message)

	count, err := env.Store.Count(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	env.Advance(2 * time.Second)
	require.Empty(t, env.Keypad.State().Message)
}

func TestKeypadSubmitIncomplete(t *testing.T) {
	env := testutil.NewEnv(t)

	env.TypeZip("282")
	w := env.Request(http.MethodPost, "/api/keypad/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	require.Equal(t, keypad.MessageNeedDigits, resp.Error.Message)
	require.Equal(t, "282", env.Keypad.State().Digits)
}

func TestKeypadSubmitStorageFailureKeepsBuffer(t *testing.T) {
	env := testutil.NewEnv(t)

	env.TypeZip("28202")
	env.BreakStorage()

	w := env.Request(http.MethodPost, "/api/keypad/submit", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "WRITE_FAILED", testutil.DecodeResponse(t, w).Error.Code)

	state := env.Keypad.State()
	require.Equal(t, "28202", state.Digits)
	require.Equal(t, keypad.MessageSaveFailed, state.Message)
}

func TestKeypadStreamPushesState(t *testing.T) {
	env := testutil.NewEnv(t)
	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/keypad/stream", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	read := func() keypad.State {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg struct {
			realtime.Message
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, realtime.StreamKeypad, msg.Stream)
		var state keypad.State
		require.NoError(t, json.Unmarshal(msg.Data, &state))
		return state
	}

	require.Equal(t, "_____", read().Display)
	require.Eventually(t, func() bool { return env.Realtime.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = env.Keypad.PushDigit("4")
	require.NoError(t, err)
	require.Equal(t, "4", read().Digits)
}
