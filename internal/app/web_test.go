package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/imu_tester/internal/acquire"
	"github.com/relabs-tech/imu_tester/internal/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func result(name string, v rate.Verdict) acquire.RunResult {
	return acquire.RunResult{Scenario: name, Mode: acquire.ModePoll, Verdict: v, Samples: 10}
}

type resultsBody struct {
	Results []acquire.RunResult `json:"results"`
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestResultStore(t *testing.T) {
	store := NewResultStore()
	store.Add(result("poll_1khz", rate.Fail))
	store.Add(result("init", rate.Pass))
	store.Add(result("poll_1khz", rate.Pass))

	latest := store.Latest()
	require.Len(t, latest, 2)
	require.Equal(t, "init", latest[0].Scenario)
	require.Equal(t, rate.Pass, latest[1].Verdict)
	require.Len(t, store.History(), 3)

	for i := 0; i < historySize+5; i++ {
		store.Add(result("init", rate.Pass))
	}
	require.Len(t, store.History(), historySize)
}

func TestResultsAPI(t *testing.T) {
	store := NewResultStore()
	router := NewRouter(store)

	rec := get(t, router, "/api/results")
	require.Equal(t, http.StatusOK, rec.Code)
	var body resultsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Results)

	require.Equal(t, http.StatusNotFound, get(t, router, "/api/results/fifo_8khz").Code)

	store.Add(result("fifo_8khz", rate.Skip))

	rec = get(t, router, "/api/results/fifo_8khz")
	require.Equal(t, http.StatusOK, rec.Code)
	var one acquire.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	require.Equal(t, rate.Skip, one.Verdict)
	require.Equal(t, acquire.ModePoll, one.Mode)

	rec = get(t, router, "/api/history")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
}

func TestResultsWebsocket(t *testing.T) {
	store := NewResultStore()
	store.Add(result("init", rate.Pass))

	srv := httptest.NewServer(NewRouter(store))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var res acquire.RunResult
	require.NoError(t, conn.ReadJSON(&res))
	require.Equal(t, "init", res.Scenario)

	// wait until the handler has registered for updates
	require.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		return len(store.clients) == 1
	}, 5*time.Second, 10*time.Millisecond)

	store.Add(result("dri_1khz", rate.Fail))
	require.NoError(t, conn.ReadJSON(&res))
	require.Equal(t, "dri_1khz", res.Scenario)
	require.Equal(t, rate.Fail, res.Verdict)
}
