package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sceneflow-go/internal/logger"
	"sceneflow-go/internal/queue"
)

type fixedState queue.State

func (s fixedState) State() queue.State { return queue.State(s) }

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(Handler(fixedState(queue.StateDisconnected), logger.Discard()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestReadyz(t *testing.T) {
	cases := []struct {
		state queue.State
		code  int
	}{
		{queue.StateDisconnected, http.StatusServiceUnavailable},
		{queue.StateConnecting, http.StatusServiceUnavailable},
		{queue.StateListening, http.StatusOK},
		{queue.StateProcessing, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.state.String(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			Handler(fixedState(tc.state), logger.Discard()).ServeHTTP(rec, req)

			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d", rec.Code, tc.code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["state"] != tc.state.String() {
				t.Fatalf("body = %v", body)
			}
		})
	}
}
