package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/diagram-agent/internal/models"
	"github.com/example/diagram-agent/internal/scheduler"
)

// fakeRunner plays a short scripted run into the hub stream.
type fakeRunner struct {
	hub    *scheduler.Hub
	events []scheduler.Event
	got    models.Document
}

func (f *fakeRunner) Run(ctx context.Context, runID string, doc models.Document) {
	f.got = doc
	stream := f.hub.Stream(runID)
	for _, ev := range f.events {
		stream.Publish(ev.Event, ev.Payload)
	}
	stream.Close()
}

func newTestServer(t *testing.T, events []scheduler.Event) (*httptest.Server, *fakeRunner) {
	t.Helper()
	hub := scheduler.NewHub()
	runner := &fakeRunner{hub: hub, events: events}
	srv := NewServer(runner, hub, slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, runner
}

func postRun(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	res, err := http.Post(ts.URL+"/runs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return res
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	res, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCreateRunReturnsRunID(t *testing.T) {
	ts, runner := newTestServer(t, []scheduler.Event{
		{Event: scheduler.EventComplete},
	})
	res := postRun(t, ts, `{"title":"doc","sections":[{"heading":"A","text":"enough words here"}]}`)
	defer res.Body.Close()

	require.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	var out map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.NotEmpty(t, out["run_id"])

	// Drain the stream so the fake's Run has finished before inspecting it.
	readEvents(t, ts, out["run_id"])
	assert.Equal(t, "doc", runner.got.Title)
	require.Len(t, runner.got.Sections, 1)
	assert.Equal(t, "sec-1", runner.got.Sections[0].ID, "sections are normalized before the run")
}

func TestCreateRunRejectsEmptyInput(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	for _, body := range []string{
		`{}`,
		`{"sections":[{"text":"   "}]}`,
		`{"markdown":""}`,
		`not json`,
	} {
		res := postRun(t, ts, body)
		res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, "body %q", body)
	}
}

func TestCreateRunRejectsBadPDFBase64(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	res := postRun(t, ts, `{"pdf_base64":"%%not-base64%%"}`)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestCreateRunAcceptsMarkdown(t *testing.T) {
	ts, runner := newTestServer(t, []scheduler.Event{{Event: scheduler.EventComplete}})
	res := postRun(t, ts, `{"markdown":"# Intro\n\nsome body text here"}`)
	defer res.Body.Close()

	require.Equal(t, http.StatusAccepted, res.StatusCode)
	var out map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	readEvents(t, ts, out["run_id"])

	require.Len(t, runner.got.Sections, 1)
	assert.Equal(t, "Intro", runner.got.Sections[0].Heading)
}

func TestStreamEventsNDJSON(t *testing.T) {
	scripted := []scheduler.Event{
		{Event: scheduler.EventPlan, Payload: scheduler.PlanPayload{Items: []models.PlanItem{{SectionID: "s1", Priority: 1}}}},
		{Event: scheduler.EventDiagram, Payload: scheduler.DiagramPayload{SectionID: "s1", Artifact: models.Artifact{Content: "<svg/>"}}},
		{Event: scheduler.EventComplete},
	}
	ts, _ := newTestServer(t, scripted)
	res := postRun(t, ts, `{"sections":[{"text":"body"}]}`)
	defer res.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))

	events, contentType := readEventsWithType(t, ts, out["run_id"])
	assert.Equal(t, "application/x-ndjson", contentType)
	require.Len(t, events, 3)
	assert.Equal(t, scheduler.EventPlan, events[0].Event)
	assert.Equal(t, scheduler.EventDiagram, events[1].Event)
	assert.Equal(t, scheduler.EventComplete, events[2].Event)
	assert.Equal(t, out["run_id"], events[0].RunID)
}

func TestStreamEventsUnknownRun(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	res, err := http.Get(ts.URL + "/runs/nope/events")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestStreamDroppedFromHubAfterClose(t *testing.T) {
	ts, runner := newTestServer(t, []scheduler.Event{{Event: scheduler.EventComplete}})
	res := postRun(t, ts, `{"sections":[{"text":"body"}]}`)
	defer res.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))

	readEvents(t, ts, out["run_id"])

	_, ok := runner.hub.Lookup(out["run_id"])
	assert.False(t, ok, "finished streams are forgotten")
}

func readEvents(t *testing.T, ts *httptest.Server, runID string) []scheduler.Event {
	events, _ := readEventsWithType(t, ts, runID)
	return events
}

// readEventsWithType consumes the NDJSON stream to EOF, which happens once the
// run publishes its terminal event and the stream closes.
func readEventsWithType(t *testing.T, ts *httptest.Server, runID string) ([]scheduler.Event, string) {
	t.Helper()
	res, err := http.Get(ts.URL + "/runs/" + runID + "/events")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var events []scheduler.Event
	sc := bufio.NewScanner(res.Body)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev scheduler.Event
		require.NoError(t, json.Unmarshal(line, &ev))
		events = append(events, ev)
	}
	require.NoError(t, sc.Err())
	return events, res.Header.Get("Content-Type")
}
