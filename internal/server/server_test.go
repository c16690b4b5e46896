package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/franckalain/cropguard/internal/alerts"
	"github.com/franckalain/cropguard/internal/apperrors"
	"github.com/franckalain/cropguard/internal/catalog"
	"github.com/franckalain/cropguard/internal/community"
	"github.com/franckalain/cropguard/internal/history"
	"github.com/franckalain/cropguard/internal/kv"
	"github.com/franckalain/cropguard/internal/ml"
	"github.com/franckalain/cropguard/internal/models"
	"github.com/franckalain/cropguard/internal/outbreaks"
	"github.com/franckalain/cropguard/internal/projector"
)

var (
	pngBytes   = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	pngDataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	fixedNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newTestServer(t *testing.T, medium kv.Store) (*Server, *httptest.Server) {
	t.Helper()

	classifier, err := ml.NewLocalClassifierFactory(ml.LocalConfig{Fixed: "Powdery Mildew"}).CreateClassifier()
	require.NoError(t, err)

	cat := catalog.Default()
	store := history.New(medium, cat)
	s := New(store, cat, classifier, nil,
		WithClock(func() time.Time { return fixedNow }),
		WithStaticDir(t.TempDir()))

	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func postScan(t *testing.T, ts *httptest.Server, image string) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]string{"image": image})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/api/scans", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestScanAndReadBack(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(0))

	resp := postScan(t, ts, pngDataURI)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := decodeBody[ScanResult](t, resp)

	assert.Nil(t, result.Warning)
	assert.Equal(t, "Powdery Mildew", result.Record.Disease)
	assert.Equal(t, pngDataURI, result.Record.ImageData)
	assert.Equal(t, "78% Confidence", result.View.ConfidenceLabel)
	assert.Equal(t, projector.SourceEmbedded, result.View.Source)

	id := strconv.FormatInt(result.Record.ID, 10)

	listResp := get(t, ts.URL+"/api/history")
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	list := decodeBody[HistoryResponse](t, listResp)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 1, list.Summary.TotalScans)

	treatment := decodeBody[projector.View](t, get(t, ts.URL+"/api/history/"+id+"/treatment"))
	want, _ := catalog.Default().Lookup("Powdery Mildew")
	assert.Equal(t, want.Treatments, treatment.Treatments)

	share := decodeBody[map[string]string](t, get(t, ts.URL+"/api/history/"+id+"/share"))
	assert.Contains(t, share["text"], "Disease: Powdery Mildew")

	reportResp := get(t, ts.URL+"/api/history/"+id+"/report")
	assert.Contains(t, reportResp.Header.Get("Content-Type"), "text/html")
	html, err := io.ReadAll(reportResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Powdery Mildew")

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/history/"+id, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	missing := get(t, ts.URL+"/api/history/"+id)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	fe := decodeBody[apperrors.FrontendError](t, missing)
	assert.Equal(t, "SCAN_NOT_FOUND", fe.Code)
	assert.Equal(t, "Treatment information not found", fe.Message)
}

func TestScanRejectsBadImage(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(0))

	resp := postScan(t, ts, "not base64!!")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_IMAGE", decodeBody[apperrors.FrontendError](t, resp).Code)

	bad := get(t, ts.URL+"/api/history/abc")
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestScanSurvivesStorageFailure(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(16))

	resp := postScan(t, ts, pngDataURI)
	require.Equal(t, http.StatusOK, resp.StatusCode, "unsaved scans are not created resources")
	result := decodeBody[ScanResult](t, resp)

	require.NotNil(t, result.Warning)
	assert.Equal(t, "STORAGE_UNAVAILABLE", result.Warning.Code)
	assert.Equal(t, "Powdery Mildew", result.View.Disease)

	list := decodeBody[HistoryResponse](t, get(t, ts.URL+"/api/history"))
	assert.Empty(t, list.Items)
}

func TestCatalogRoutes(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(0))

	labels := decodeBody[[]string](t, get(t, ts.URL+"/api/catalog"))
	assert.Equal(t, catalog.Default().Labels(), labels)

	entry := get(t, ts.URL+"/api/catalog/Rust%20Disease")
	require.Equal(t, http.StatusOK, entry.StatusCode)
	data := decodeBody[models.TreatmentData](t, entry)
	assert.NotEmpty(t, data.Schedule)

	unknown := get(t, ts.URL+"/api/catalog/Blue%20Mould")
	assert.Equal(t, http.StatusNotFound, unknown.StatusCode)
	assert.Equal(t, "UNKNOWN_DISEASE", decodeBody[apperrors.FrontendError](t, unknown).Code)
}

func TestAlertsRoutes(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(0))

	maize := decodeBody[[]alerts.Alert](t, get(t, ts.URL+"/api/alerts?crop=Maize"))
	require.Len(t, maize, 2)
	for _, a := range maize {
		assert.Equal(t, "Maize", a.Crop)
	}

	bad := get(t, ts.URL+"/api/alerts?window=1y")
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	critical := decodeBody[alerts.Alert](t, get(t, ts.URL+"/api/alerts/critical"))
	assert.Equal(t, alerts.SeverityCritical, critical.Severity)
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCommunityRoutes(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(0))

	posts := decodeBody[[]community.Post](t, get(t, ts.URL+"/api/community"))
	require.Len(t, posts, 3)

	resp := postJSON(t, ts.URL+"/api/community", map[string]string{"content": "Aphids on my beans this week."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	post := decodeBody[community.Post](t, resp)
	assert.Equal(t, fixedNow.UnixMilli(), post.ID)
	assert.Equal(t, community.DefaultAuthor, post.Author)

	posts = decodeBody[[]community.Post](t, get(t, ts.URL+"/api/community"))
	require.Len(t, posts, 4)
	assert.Equal(t, post.ID, posts[0].ID)

	blank := postJSON(t, ts.URL+"/api/community", map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, blank.StatusCode)
	fe := decodeBody[apperrors.FrontendError](t, blank)
	assert.Equal(t, "INVALID_REQUEST", fe.Code)
	assert.Equal(t, "Write something before posting", fe.Message)
}

func TestOutbreakRoutes(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(0))

	rust := decodeBody[[]outbreaks.Report](t, get(t, ts.URL+"/api/outbreaks?disease=maize_rust"))
	require.Len(t, rust, 1)
	assert.Equal(t, "Maize Rust", rust[0].DiseaseType)

	resp := postJSON(t, ts.URL+"/api/outbreaks", outbreaks.NewReport{
		Coords: "36.82,-1.29", DiseaseType: "Blight", Severity: outbreaks.SeverityHigh, Notes: "Whole row.",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decodeBody[outbreaks.Report](t, resp)
	assert.Equal(t, "2026-03-01", added.Date)

	high := decodeBody[[]outbreaks.Report](t, get(t, ts.URL+"/api/outbreaks?disease=blight&severity=high"))
	require.Len(t, high, 1)
	assert.Equal(t, added.ID, high[0].ID)

	bad := postJSON(t, ts.URL+"/api/outbreaks", outbreaks.NewReport{Coords: "here", DiseaseType: "Blight", Severity: "high"})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestRequestsAreLoggedWithID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	classifier, err := ml.NewLocalClassifierFactory(ml.LocalConfig{Fixed: "Powdery Mildew"}).CreateClassifier()
	require.NoError(t, err)
	cat := catalog.Default()
	s := New(history.New(kv.NewMemory(0), cat), cat, classifier, zap.New(core), WithStaticDir(t.TempDir()))
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)

	get(t, ts.URL+"/api/history")
	get(t, ts.URL+"/api/catalog")

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.Equal(t, "/api/history", first["path"])
	assert.NotEmpty(t, first["request_id"])
	assert.NotEqual(t, first["request_id"], entries[1].ContextMap()["request_id"])
}

func TestExportCSV(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(0))
	postScan(t, ts, pngDataURI)

	resp := get(t, ts.URL+"/api/history/export.csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,timestamp,disease,confidence,severity,treatments,tips,schedule", lines[0])
	assert.Contains(t, lines[1], "Powdery Mildew")
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(0))
	resp := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type wsReply struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) wsReply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var r wsReply
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func TestWebSocketProtocol(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(0))
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "scan", "data": map[string]string{"image": pngDataURI}}))
	assert.Equal(t, "history_changed", readReply(t, conn).Type)

	reply := readReply(t, conn)
	require.Equal(t, "scan_result", reply.Type)
	var result ScanResult
	require.NoError(t, json.Unmarshal(reply.Data, &result))
	assert.Equal(t, "Powdery Mildew", result.Record.Disease)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "get_history"}))
	reply = readReply(t, conn)
	require.Equal(t, "history", reply.Type)
	var hist HistoryResponse
	require.NoError(t, json.Unmarshal(reply.Data, &hist))
	require.Len(t, hist.Items, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "share_treatment", "data": map[string]int64{"id": result.Record.ID}}))
	reply = readReply(t, conn)
	require.Equal(t, "share", reply.Type)
	assert.Contains(t, string(reply.Data), "Powdery Mildew")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "view_treatment", "data": map[string]int64{"id": 1}}))
	reply = readReply(t, conn)
	require.Equal(t, "error", reply.Type)
	assert.Contains(t, string(reply.Data), "SCAN_NOT_FOUND")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "confirm_scan"}))
	reply = readReply(t, conn)
	require.Equal(t, "error", reply.Type)
	assert.Contains(t, string(reply.Data), "INVALID_REQUEST")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "clear_history"}))
	assert.Equal(t, "history_changed", readReply(t, conn).Type)
}

func TestWebSocketCommunityAndOutbreaks(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(0))
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "get_posts"}))
	reply := readReply(t, conn)
	require.Equal(t, "posts", reply.Type)
	var posts []community.Post
	require.NoError(t, json.Unmarshal(reply.Data, &posts))
	assert.Len(t, posts, 3)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "new_post", "data": map[string]string{"author": "Ali M.", "content": "Rain all week."}}))
	assert.Equal(t, "posts_changed", readReply(t, conn).Type)
	reply = readReply(t, conn)
	require.Equal(t, "post", reply.Type)
	assert.Contains(t, string(reply.Data), "Ali M.")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "new_post", "data": map[string]string{"content": ""}}))
	reply = readReply(t, conn)
	require.Equal(t, "error", reply.Type)
	assert.Contains(t, string(reply.Data), "INVALID_REQUEST")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "add_outbreak", "data": outbreaks.NewReport{
		Coords: "37.1,-0.2", DiseaseType: "Rice Blast", Severity: outbreaks.SeverityLow,
	}}))
	assert.Equal(t, "outbreaks_changed", readReply(t, conn).Type)
	assert.Equal(t, "outbreak", readReply(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "get_outbreaks", "data": outbreaks.Filter{Severity: outbreaks.SeverityLow}}))
	reply = readReply(t, conn)
	require.Equal(t, "outbreaks", reply.Type)
	var low []outbreaks.Report
	require.NoError(t, json.Unmarshal(reply.Data, &low))
	require.Len(t, low, 1)
	assert.Equal(t, "Rice Blast", low[0].DiseaseType)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "get_outbreaks"}))
	reply = readReply(t, conn)
	require.NoError(t, json.Unmarshal(reply.Data, &low))
	assert.Len(t, low, 3)
}

func TestWebSocketStorageNotification(t *testing.T) {
	_, ts := newTestServer(t, kv.NewMemory(16))
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "scan", "data": map[string]string{"image": pngDataURI}}))

	reply := readReply(t, conn)
	require.Equal(t, "notification", reply.Type)
	assert.Contains(t, string(reply.Data), "STORAGE_UNAVAILABLE")
	assert.Equal(t, "scan_result", readReply(t, conn).Type)
}

func TestDecodeImage(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngBytes)

	got, err := decodeImage(raw)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)

	got, err = decodeImage(pngDataURI)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)

	for _, in := range []string{"", "data:image/png;base64", "%%%"} {
		_, err := decodeImage(in)
		assert.ErrorIs(t, err, apperrors.ErrInvalidImage, in)
	}
}
