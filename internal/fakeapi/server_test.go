package fakeapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/foxzi/listctl/internal/config"
	"github.com/foxzi/listctl/internal/metrics"
)

const testAPIKey = "fake-key"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, m *metrics.Metrics) (*Server, *Store) {
	t.Helper()
	store := newTestStore(t)

	eng := 0.5
	lists := []config.FakeList{{
		ID:    10,
		Name:  "Newsletter",
		Count: 2,
		Segments: []config.FakeSegment{
			{ID: 100, Name: "Active", Query: "opens > 0", Count: 1, Engagement: &eng},
			{ID: 101, Name: "Dormant", Query: "opens = 0", Count: 1},
			{ID: 102, Name: "New", Count: 0},
		},
	}}
	if err := Seed(store, lists); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	cfg := &config.FakeConfig{APIKey: testAPIKey}
	srv, err := NewServer(store, cfg, m, newTestLogger())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv, store
}

type response struct {
	code     int
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	dataText string
}

func post(t *testing.T, srv *Server, endpoint string, form url.Values) response {
	t.Helper()
	if form.Get("api_key") == "" {
		form.Set("api_key", testAPIKey)
	}
	if !form.Has("user_key") {
		form.Set("user_key", "user")
	}

	req := httptest.NewRequest(http.MethodPost, "/List/"+endpoint, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s: invalid JSON %q: %v", endpoint, rec.Body.String(), err)
	}
	resp.code = rec.Code
	json.Unmarshal(resp.Data, &resp.dataText)
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var health HealthResponse
	json.Unmarshal(rec.Body.Bytes(), &health)
	if health.Status != "ok" {
		t.Errorf("health status = %q, want ok", health.Status)
	}
}

func TestAuth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantMsg  string
	}{
		{name: "wrong key", form: url.Values{"api_key": {"nope"}, "list_id": {"10"}}, wantCode: http.StatusUnauthorized, wantMsg: "invalid api key"},
		{name: "missing user key", form: url.Values{"user_key": {""}, "list_id": {"10"}}, wantCode: http.StatusOK, wantMsg: "user_key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, "GetList", tt.form)
			if resp.code != tt.wantCode {
				t.Errorf("code = %d, want %d", resp.code, tt.wantCode)
			}
			if resp.Status != "failed" || resp.dataText != tt.wantMsg {
				t.Errorf("response = %s %q, want failed %q", resp.Status, resp.dataText, tt.wantMsg)
			}
		})
	}
}

func TestAuthAnyKeyWhenUnset(t *testing.T) {
	store := newTestStore(t)
	store.PutList(&List{ID: 1, Name: "x", Count: 3})

	srv, err := NewServer(store, &config.FakeConfig{}, nil, newTestLogger())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	resp := post(t, srv, "GetList", url.Values{"api_key": {"anything"}, "list_id": {"1"}})
	if resp.Status != "success" {
		t.Errorf("status = %s (%s), want success", resp.Status, resp.Data)
	}
}

func TestGetList(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := post(t, srv, "GetList", url.Values{"list_id": {"10"}})
	if resp.Status != "success" {
		t.Fatalf("status = %s (%s)", resp.Status, resp.Data)
	}
	var data map[string]string
	json.Unmarshal(resp.Data, &data)
	if data["count"] != "2" || data["name"] != "Newsletter" || data["id"] != "10" {
		t.Errorf("data = %v", data)
	}

	resp = post(t, srv, "GetList", url.Values{"list_id": {"99"}})
	if resp.Status != "failed" || resp.dataText != "list not found" {
		t.Errorf("unknown list = %s %q", resp.Status, resp.dataText)
	}
}

func TestCreateSublist(t *testing.T) {
	srv, store := newTestServer(t, nil)

	resp := post(t, srv, "CreateSublist", url.Values{"list_id": {"10"}, "name": {"Fresh"}, "query": {""}})
	if resp.Status != "success" {
		t.Fatalf("status = %s (%s)", resp.Status, resp.Data)
	}
	if resp.dataText != "103" {
		t.Errorf("id = %q, want 103", resp.dataText)
	}

	seg, err := store.GetSegment(103)
	if err != nil {
		t.Fatalf("GetSegment() error = %v", err)
	}
	if seg.Name != "Fresh" || seg.ListID != 10 {
		t.Errorf("stored segment = %+v", seg)
	}

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{name: "missing name", form: url.Values{"list_id": {"10"}}, want: "name is required"},
		{name: "unknown list", form: url.Values{"list_id": {"99"}, "name": {"x"}}, want: "list not found"},
		{name: "missing list", form: url.Values{"name": {"x"}}, want: "list_id is required"},
		{name: "bad list", form: url.Values{"list_id": {"ten"}, "name": {"x"}}, want: `invalid list_id: "ten"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, "CreateSublist", tt.form)
			if resp.Status != "failed" || resp.dataText != tt.want {
				t.Errorf("response = %s %q, want failed %q", resp.Status, resp.dataText, tt.want)
			}
		})
	}
}

func TestSetInfo(t *testing.T) {
	srv, store := newTestServer(t, nil)

	resp := post(t, srv, "SetInfo", url.Values{"list_id": {"100"}, "parent_list_id": {"10"}, "name": {"Renamed"}})
	if resp.Status != "success" || resp.dataText != "true" {
		t.Fatalf("response = %s %s", resp.Status, resp.Data)
	}

	seg, _ := store.GetSegment(100)
	if seg.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", seg.Name)
	}
	if seg.Query != "opens > 0" {
		t.Errorf("Query = %q, want unchanged", seg.Query)
	}

	resp = post(t, srv, "SetInfo", url.Values{"list_id": {"100"}, "parent_list_id": {"10"}, "query": {""}})
	if resp.Status != "success" {
		t.Fatalf("clear query = %s %s", resp.Status, resp.Data)
	}
	seg, _ = store.GetSegment(100)
	if seg.Query != "" {
		t.Errorf("Query = %q, want empty", seg.Query)
	}

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{name: "wrong parent", form: url.Values{"list_id": {"100"}, "parent_list_id": {"11"}}, want: "sublist does not belong to the given list"},
		{name: "empty name", form: url.Values{"list_id": {"100"}, "parent_list_id": {"10"}, "name": {" "}}, want: "name must not be empty"},
		{name: "unknown", form: url.Values{"list_id": {"999"}, "parent_list_id": {"10"}}, want: "sublist not found"},
		{name: "missing parent", form: url.Values{"list_id": {"100"}}, want: "parent_list_id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, "SetInfo", tt.form)
			if resp.Status != "failed" || resp.dataText != tt.want {
				t.Errorf("response = %s %q, want failed %q", resp.Status, resp.dataText, tt.want)
			}
		})
	}
}

func TestDeleteSublist(t *testing.T) {
	m := metrics.New()
	srv, store := newTestServer(t, m)

	resp := post(t, srv, "DeleteSublist", url.Values{"list_id": {"101"}})
	if resp.Status != "success" || resp.dataText != "true" {
		t.Fatalf("response = %s %s", resp.Status, resp.Data)
	}
	if _, err := store.GetSegment(101); err == nil {
		t.Error("segment still stored after delete")
	}

	resp = post(t, srv, "DeleteSublist", url.Values{"list_id": {"101"}})
	if resp.Status != "failed" || resp.dataText != "sublist not found" {
		t.Errorf("second delete = %s %q", resp.Status, resp.dataText)
	}

	if got := testutil.ToFloat64(m.ServerErrorsTotal.WithLabelValues("remote_failure")); got != 1 {
		t.Errorf("remote_failure errors = %v, want 1", got)
	}
}

func TestGetInfo(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := post(t, srv, "GetInfo", url.Values{"list_id": {"100"}})
	if resp.Status != "success" {
		t.Fatalf("status = %s (%s)", resp.Status, resp.Data)
	}
	var seg wireSegment
	json.Unmarshal(resp.Data, &seg)
	if seg.ID != "100" || seg.ListID != "10" || seg.Name != "Active" || seg.Query != "opens > 0" || seg.Count != "1" {
		t.Errorf("segment = %+v", seg)
	}
	if seg.Engagement != nil {
		t.Errorf("Engagement = %q without engagement flag, want null", *seg.Engagement)
	}

	resp = post(t, srv, "GetInfo", url.Values{"list_id": {"100"}, "engagement": {"true"}, "statistics": {"false"}})
	json.Unmarshal(resp.Data, &seg)
	if seg.Engagement == nil || *seg.Engagement != "0.50" {
		t.Errorf("Engagement = %v, want 0.50", seg.Engagement)
	}

	resp = post(t, srv, "GetInfo", url.Values{"list_id": {"100"}, "statistics": {"maybe"}})
	if resp.Status != "failed" || resp.dataText != `invalid statistics: "maybe"` {
		t.Errorf("bad flag = %s %q", resp.Status, resp.dataText)
	}
}

func TestGetSublists(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name    string
		form    url.Values
		wantIDs []string
	}{
		{name: "all", form: url.Values{"list_id": {"10"}}, wantIDs: []string{"100", "101", "102"}},
		{name: "limit", form: url.Values{"list_id": {"10"}, "limit": {"2"}}, wantIDs: []string{"100", "101"}},
		{name: "offset", form: url.Values{"list_id": {"10"}, "offset": {"1"}}, wantIDs: []string{"101", "102"}},
		{name: "zero limit means all", form: url.Values{"list_id": {"10"}, "limit": {"0"}}, wantIDs: []string{"100", "101", "102"}},
		{name: "offset past end", form: url.Values{"list_id": {"10"}, "offset": {"5"}}, wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, "GetSublists", tt.form)
			if resp.Status != "success" {
				t.Fatalf("status = %s (%s)", resp.Status, resp.Data)
			}
			var data struct {
				Sublists []wireSegment `json:"sublists"`
			}
			json.Unmarshal(resp.Data, &data)
			if data.Sublists == nil {
				t.Fatal("sublists missing")
			}
			ids := make([]string, 0, len(data.Sublists))
			for _, seg := range data.Sublists {
				ids = append(ids, seg.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestGetSublistsDetails(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	sublists := func(form url.Values) []wireSegment {
		t.Helper()
		var data struct {
			Sublists []wireSegment `json:"sublists"`
		}
		resp := post(t, srv, "GetSublists", form)
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			t.Fatalf("decode sublists: %v", err)
		}
		if len(data.Sublists) == 0 {
			t.Fatal("no sublists returned")
		}
		return data.Sublists
	}

	plain := sublists(url.Values{"list_id": {"10"}})
	if plain[0].Query != "" {
		t.Errorf("Query = %q without details, want empty", plain[0].Query)
	}
	if plain[0].Engagement != nil {
		t.Errorf("Engagement = %q without details, want null", *plain[0].Engagement)
	}

	detailed := sublists(url.Values{"list_id": {"10"}, "details": {"true"}})
	if detailed[0].Query != "opens > 0" {
		t.Errorf("Query = %q with details, want opens > 0", detailed[0].Query)
	}
	if detailed[0].Engagement == nil || *detailed[0].Engagement != "0.50" {
		t.Errorf("Engagement = %v with details, want 0.50", detailed[0].Engagement)
	}

	resp := post(t, srv, "GetSublists", url.Values{"list_id": {"10"}, "limit": {"-1"}})
	if resp.Status != "failed" {
		t.Errorf("negative limit status = %s, want failed", resp.Status)
	}
}

func TestSeedIdempotent(t *testing.T) {
	store := newTestStore(t)
	lists := []config.FakeList{{
		ID:   1,
		Name: "one",
		Segments: []config.FakeSegment{
			{Name: "auto"},
			{ID: 20, Name: "fixed"},
		},
	}}

	for i := 0; i < 3; i++ {
		if err := Seed(store, lists); err != nil {
			t.Fatalf("Seed() run %d error = %v", i, err)
		}
	}

	segs, err := store.ListSegments(1)
	if err != nil {
		t.Fatalf("ListSegments() error = %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}

	lists[0].Count = 7
	Seed(store, lists)
	l, _ := store.GetList(1)
	if l.Count != 7 {
		t.Errorf("Count = %d after reseed, want 7", l.Count)
	}
}

func TestNewServerInvalidAllowedIPs(t *testing.T) {
	store := newTestStore(t)
	_, err := NewServer(store, &config.FakeConfig{AllowedIPs: []string{"not-an-ip"}}, nil, newTestLogger())
	if err == nil {
		t.Error("NewServer() error = nil, want error for invalid allowed_ips")
	}
}
