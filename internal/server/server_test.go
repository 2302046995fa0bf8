package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ardf-results/internal/database"
	"ardf-results/internal/repository"
	"ardf-results/internal/server"
	"ardf-results/internal/service"
	"ardf-results/internal/sync"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	raceRepo := repository.NewRaceRepository(db, logger)
	courseRepo := repository.NewCourseRepository(db, logger)
	competitorRepo := repository.NewCompetitorRepository(db, logger)
	resultRepo := repository.NewResultRepository(db, logger)
	serviceRepo := repository.NewServiceConfigRepository(db, logger)

	engine := sync.NewEngine(nil, resultRepo, serviceRepo, competitorRepo, logger)

	srv := server.NewResultsServer(
		service.NewRaceService(raceRepo, courseRepo, logger),
		service.NewCompetitorService(competitorRepo, logger),
		service.NewReadoutService(raceRepo, courseRepo, competitorRepo, resultRepo, logger),
		service.NewResultService(resultRepo, competitorRepo, courseRepo, engine, logger),
		serviceRepo,
		engine,
		logger,
	)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body string, out any) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestRaceLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	var race struct {
		ID string `json:"id"`
	}
	resp := postJSON(t, ts.URL+"/api/races",
		`{"name":"Regional Championship","date":"2026-06-14","zero_time":"10:00:00"}`, &race)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, race.ID)

	var course struct {
		ID string `json:"id"`
	}
	resp = postJSON(t, ts.URL+"/api/races/"+race.ID+"/courses", `{
		"name": "M21",
		"race_type": "classic",
		"controls": [
			{"code": 31, "order": 1, "kind": "CONTROL"},
			{"code": 32, "order": 2, "kind": "CONTROL"},
			{"code": 33, "order": 3, "kind": "BEACON"}
		]
	}`, &course)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var competitor struct {
		ID string `json:"id"`
	}
	resp = postJSON(t, ts.URL+"/api/races/"+race.ID+"/competitors", `{
		"course_id": "`+course.ID+`",
		"first_name": "Jana",
		"last_name": "Nova",
		"card_number": 2078969,
		"start_number": 1
	}`, &competitor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Status   string `json:"status"`
		RunTimeS int    `json:"run_time_s"`
	}
	resp = postJSON(t, ts.URL+"/api/races/"+race.ID+"/readouts", `{
		"card_type": "SI5",
		"card_number": 2078969,
		"start": "10:05:00",
		"finish": "11:00:00",
		"controls": [
			{"code": 31, "reading": "10:15:00"},
			{"code": 32, "reading": "10:30:00"},
			{"code": 33, "reading": "10:45:00"}
		]
	}`, &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", result.Status)
	assert.Equal(t, 55*60, result.RunTimeS)

	var ranked []struct {
		Place  int `json:"place"`
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
	}
	resp = getJSON(t, ts.URL+"/api/races/"+race.ID+"/results", &ranked)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, ranked, 1)
	assert.Equal(t, 1, ranked[0].Place)
	assert.Equal(t, "OK", ranked[0].Result.Status)
}

func TestReadoutForUnknownCardIs404(t *testing.T) {
	ts := newTestServer(t)

	var race struct {
		ID string `json:"id"`
	}
	postJSON(t, ts.URL+"/api/races",
		`{"name":"Sprint","date":"2026-06-14","zero_time":"09:00:00"}`, &race)

	resp := postJSON(t, ts.URL+"/api/races/"+race.ID+"/readouts",
		`{"card_number": 404404, "start": "09:05:00", "finish": "09:30:00", "controls": []}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidRegistrationIs400(t *testing.T) {
	ts := newTestServer(t)

	var race struct {
		ID string `json:"id"`
	}
	postJSON(t, ts.URL+"/api/races",
		`{"name":"Sprint","date":"2026-06-14","zero_time":"09:00:00"}`, &race)

	var body struct {
		Error string `json:"error"`
	}
	resp := postJSON(t, ts.URL+"/api/races/"+race.ID+"/competitors",
		`{"course_id":"c1","first_name":"Jana","card_number":0,"start_number":1}`, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body.Error)
}

func TestServiceConfigEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var race struct {
		ID string `json:"id"`
	}
	postJSON(t, ts.URL+"/api/races",
		`{"name":"Sprint","date":"2026-06-14","zero_time":"09:00:00"}`, &race)

	var svc struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	resp := postJSON(t, ts.URL+"/api/races/"+race.ID+"/services", `{
		"service_type": "oresults",
		"url": "https://results.example/upload",
		"api_key": "key",
		"enabled": true
	}`, &svc)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "INIT", svc.Status)

	resp = postJSON(t, ts.URL+"/api/races/"+race.ID+"/services",
		`{"service_type":"teletext","url":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown service type is refused")

	var services []struct {
		ID string `json:"id"`
	}
	resp = getJSON(t, ts.URL+"/api/races/"+race.ID+"/services", &services)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, services, 1)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/services/"+svc.ID+"/enabled",
		bytes.NewBufferString(`{"enabled":false}`))
	require.NoError(t, err)
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer putResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, putResp.StatusCode)
}
