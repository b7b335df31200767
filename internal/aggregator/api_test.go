package aggregator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedmostafam0/distracrawl/internal/model"
)

func TestRouterTasksAndSummary(t *testing.T) {
	a := New(20)
	a.HandleProgressEvent(model.ProgressEvent{
		Event:     model.EventJobReceived,
		JobID:     "job-1",
		SeedURLs:  []string{"http://a.test/"},
		Timestamp: tsAt(time.Now()),
	})

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tasks")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tasks []model.TaskState
	json.NewDecoder(resp.Body).Decode(&tasks)
	require.Len(t, tasks, 1)
	assert.Equal(t, "job-1", tasks[0].TaskID)

	resp2, err := http.Get(srv.URL + "/tasks/job-1")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/tasks/unknown")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)

	resp4, err := http.Get(srv.URL + "/summary")
	require.NoError(t, err)
	defer resp4.Body.Close()
	var summary model.Summary
	json.NewDecoder(resp4.Body).Decode(&summary)
	assert.Equal(t, 1, summary.ActiveTasks)
}
