package server

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/cartrules/internal/analyzer"
	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/runs"
	"github.com/blackwell-systems/cartrules/internal/store"
)

const demoJSON = `[
  {"id": 1, "items": ["手机壳", "充电宝", "数据线"]},
  {"id": 2, "items": ["手机壳", "数据线"]},
  {"id": 3, "items": ["充电宝", "耳机"]},
  {"id": 4, "items": ["手机壳", "耳机", "数据线"]},
  {"id": 5, "items": ["充电宝", "手机壳"]},
  {"id": 6, "items": ["数据线", "耳机"]},
  {"id": 7, "items": ["手机壳", "充电宝", "数据线"]},
  {"id": 8, "items": ["手机壳", "耳机"]},
  {"id": 9, "items": ["充电宝", "数据线"]},
  {"id": 10, "items": ["手机壳", "数据线"]}
]`

func newTestServer(t *testing.T, opts Options) (*Server, *store.Store) {
	t.Helper()

	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.CreateSchema())

	if opts.Defaults.MinSupport == 0 {
		opts.Defaults = analyzer.Params{MinSupport: 0.1, MinConfidence: 0.1}
	}
	rm := runs.New(st, t.TempDir(), nil)
	return New(analyzer.New(st, nil), st, rm, opts, nil), st
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMine_InlineTransactions(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/v1/mine", `{"transactions": `+demoJSON+`, "min_support": 0.1, "min_confidence": 0.7}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[mineResponse](t, rec)
	assert.Equal(t, 10, resp.Transactions)
	assert.Len(t, resp.Itemsets, 12)
	assert.Equal(t, []string{"手机壳"}, resp.Itemsets[0].Items)
	assert.InDelta(t, 0.7, resp.Itemsets[0].Support, 1e-12)
	assert.NotEmpty(t, resp.Levels)
	assert.Empty(t, resp.RunID)

	require.NotEmpty(t, resp.Rules)
	for _, r := range resp.Rules {
		assert.GreaterOrEqual(t, r.Confidence, 0.7)
	}
}

func TestMine_StoredDatasetAndSave(t *testing.T) {
	s, st := newTestServer(t, Options{})
	_, err := st.SaveDataset(dataset.Demo(), "")
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/v1/mine", `{"dataset": "demo", "save": true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[mineResponse](t, rec)
	assert.Equal(t, "demo", resp.Dataset)
	require.NotEmpty(t, resp.RunID)
	assert.Len(t, resp.Rules, 24, "defaults apply when thresholds are omitted")

	rec = do(t, s, http.MethodGet, "/v1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]runView](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, resp.RunID, list[0].ID)
	assert.Equal(t, 12, list[0].Itemsets)

	rec = do(t, s, http.MethodGet, "/v1/runs/"+resp.RunID[:8], "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decode[runs.Archive](t, rec)
	assert.Equal(t, resp.RunID, a.ID)
	assert.Len(t, a.Rules, 24)
}

func TestMine_Errors(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed body", `{"transactions": [`, http.StatusBadRequest, kindBadRequest},
		{"unknown field", `{"support": 0.1}`, http.StatusBadRequest, kindBadRequest},
		{"no source", `{"min_support": 0.1}`, http.StatusBadRequest, kindBadRequest},
		{"both sources", `{"dataset": "demo", "transactions": ` + demoJSON + `}`, http.StatusBadRequest, kindBadRequest},
		{"support out of range", `{"transactions": ` + demoJSON + `, "min_support": 1.5}`, http.StatusBadRequest, kindInvalidParameter},
		{"confidence zero", `{"transactions": ` + demoJSON + `, "min_confidence": 0}`, http.StatusBadRequest, kindInvalidParameter},
		{"negative min lift", `{"transactions": ` + demoJSON + `, "min_lift": -1}`, http.StatusBadRequest, kindInvalidParameter},
		{"negative max len", `{"transactions": ` + demoJSON + `, "max_len": -1}`, http.StatusBadRequest, kindInvalidParameter},
		{"empty transactions", `{"transactions": []}`, http.StatusBadRequest, kindEncoding},
		{"control character in label", `{"transactions": [{"id": 1, "items": ["a\u001fb", "c"]}]}`, http.StatusBadRequest, kindEncoding},
		{"duplicate ids", `{"transactions": [{"id": 1, "items": ["a"]}, {"id": "1", "items": ["b"]}]}`, http.StatusBadRequest, kindEncoding},
		{"unknown dataset", `{"dataset": "nope"}`, http.StatusNotFound, kindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/mine", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decode[errorResponse](t, rec)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestExplain(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/v1/explain", `{"transactions": `+demoJSON+`, "antecedent": ["手机壳"], "consequent": ["数据线"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[explainResponse](t, rec)
	assert.InDelta(t, 5.0/7.0, resp.Rule.Confidence, 1e-12)
	assert.InDelta(t, 50.0/49.0, resp.Rule.Lift, 1e-12)
	assert.Equal(t, "positive", string(resp.Interpretation.Association))

	rec = do(t, s, http.MethodPost, "/v1/explain", `{"transactions": `+demoJSON+`, "antecedent": ["手机壳"], "consequent": ["手机壳"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, kindBadRequest, decode[errorResponse](t, rec).Kind)
}

func TestInlineTransactionsUseAliases(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	s.analyzer.SetAliases(map[string]string{"case": "phone case"})

	body := `{"transactions": [
		{"id": 1, "items": ["case", "cable"]},
		{"id": 2, "items": ["phone case", "cable"]},
		{"id": 3, "items": ["case"]},
		{"id": 4, "items": ["cable"]}
	]`

	rec := do(t, s, http.MethodPost, "/v1/explain", body+`, "antecedent": ["case"], "consequent": ["cable"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[explainResponse](t, rec)
	assert.Equal(t, []string{"phone case"}, resp.Rule.Antecedent)
	assert.InDelta(t, 2.0/3.0, resp.Rule.Confidence, 1e-12)
	assert.InDelta(t, 0.5, resp.Rule.Support, 1e-12)

	rec = do(t, s, http.MethodPost, "/v1/mine", body+`, "min_support": 0.25}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	mined := decode[mineResponse](t, rec)
	require.Len(t, mined.Itemsets, 3)
	counts := map[string]int{}
	for _, set := range mined.Itemsets {
		assert.NotContains(t, set.Items, "case")
		counts[strings.Join(set.Items, "+")] = set.Count
	}
	assert.Equal(t, map[string]int{"cable": 3, "phone case": 3, "cable+phone case": 2}, counts)
}

func TestExplain_CertainRuleHasNullConviction(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	body := `{"transactions": [{"id": 1, "items": ["x", "y"]}, {"id": 2, "items": ["x", "y"]}, {"id": 3, "items": ["x"]}],
	          "antecedent": ["y"], "consequent": ["x"]}`
	rec := do(t, s, http.MethodPost, "/v1/explain", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"conviction":null`)

	resp := decode[explainResponse](t, rec)
	assert.True(t, math.IsInf(resp.Rule.Conviction, 1))
}

func TestListDatasets(t *testing.T) {
	s, st := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/v1/datasets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	_, err := st.SaveDataset(dataset.Demo(), "demo.csv")
	require.NoError(t, err)

	rec = do(t, s, http.MethodGet, "/v1/datasets", "")
	list := decode[[]datasetView](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "demo", list[0].Name)
	assert.Equal(t, 10, list[0].Transactions)
	assert.Equal(t, 4, list[0].Items)
}

func TestGetRun_NotFound(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/v1/runs/deadbeef", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, kindNotFound, decode[errorResponse](t, rec).Kind)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/mine", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	plain, _ := newTestServer(t, Options{})
	rec = do(t, plain, http.MethodGet, "/healthz", "")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
