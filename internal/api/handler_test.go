package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/calculator"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/config"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/importer"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/oracle"
	"github.com/Cradcliff187/profitbuild-dash-sub010/internal/retry"
)

const sheetCSV = `Item,Subcontractor,Labor,Material,Sub,Total,Markup,Total Price
Demo,RCG,"$15,000","$6,000",,"$21,000",20%,"$25,200"
Electrical rough-in,Sparks Inc,,,"$8,000","$8,000",20%,"$9,600"
Total Cost,,,,,"$29,000",,
`

func newTestRouter(t *testing.T, mock *oracle.MockClassifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	coordinator, err := importer.NewCoordinator(mock,
		calculator.LaborRates{BillingRatePerHour: 75, ActualCostRatePerHour: 55},
		nil,
		retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Data.DataDir = t.TempDir()

	handler := NewHandler(coordinator, nil, cfg)
	router := gin.New()
	handler.RegisterRoutes(router.Group("/api"))
	return router
}

func mockResponse() *oracle.Response {
	return &oracle.Response{
		LineItems: []oracle.Candidate{
			{
				Description: "Demo", Category: "labor_internal",
				Quantity: float64(1), CostPerUnit: float64(15000),
				MarkupPercent: float64(20), SourceRow: float64(0),
			},
			{
				Description: "Electrical rough-in", Category: "subcontractor",
				Quantity: float64(1), CostPerUnit: float64(8000),
				MarkupPercent: float64(20), SourceRow: float64(1),
			},
		},
	}
}

func uploadCSV(t *testing.T, router *gin.Engine, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeSessionID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	if resp.ID == "" {
		t.Fatalf("response has no session id: %s", w.Body.String())
	}
	return resp.ID
}

func TestImportEndToEnd(t *testing.T) {
	router := newTestRouter(t, &oracle.MockClassifier{Response: mockResponse()})

	w := uploadCSV(t, router, "costs.csv", sheetCSV)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}
	id := decodeSessionID(t, w)

	w = doJSON(router, http.MethodPost, "/api/imports/"+id+"/process", "")
	if w.Code != http.StatusOK {
		t.Fatalf("process status = %d: %s", w.Code, w.Body.String())
	}

	var processed struct {
		State   string            `json:"state"`
		Items   []json.RawMessage `json:"items"`
		Summary struct {
			TotalPrice float64 `json:"totalPrice"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &processed); err != nil {
		t.Fatalf("decode process response: %v", err)
	}
	if processed.State != "review" {
		t.Errorf("state = %q, want review", processed.State)
	}
	if len(processed.Items) != 3 {
		t.Errorf("got %d items, want 3 (compound row splits)", len(processed.Items))
	}
	if processed.Summary.TotalPrice != 34800 {
		t.Errorf("totalPrice = %v, want 34800", processed.Summary.TotalPrice)
	}

	w = doJSON(router, http.MethodPatch, "/api/imports/"+id+"/selection", `{"indexes":[0,2]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("selection status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(router, http.MethodPost, "/api/imports/"+id+"/confirm", "")
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status = %d: %s", w.Code, w.Body.String())
	}
	var confirmed struct {
		Items []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
		} `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &confirmed); err != nil {
		t.Fatalf("decode confirm response: %v", err)
	}
	if len(confirmed.Items) != 2 {
		t.Fatalf("confirmed %d items, want 2", len(confirmed.Items))
	}
	if confirmed.Items[0].ID == "" {
		t.Error("confirmed item missing id")
	}

	// The session is terminal now.
	w = doJSON(router, http.MethodPost, "/api/imports/"+id+"/confirm", "")
	if w.Code != http.StatusConflict {
		t.Errorf("double confirm status = %d, want 409", w.Code)
	}
}

func TestCreateImportRejectsUnrecognizedFormat(t *testing.T) {
	router := newTestRouter(t, &oracle.MockClassifier{})

	w := uploadCSV(t, router, "contacts.csv", "Name,Phone\nBob,555-0100\n")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", w.Code, w.Body.String())
	}
	var resp struct {
		MissingColumns []string `json:"missingColumns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.MissingColumns) == 0 {
		t.Error("missing columns not reported")
	}
}

func TestCreateImportRequiresFile(t *testing.T) {
	router := newTestRouter(t, &oracle.MockClassifier{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestProcessOracleFailure(t *testing.T) {
	router := newTestRouter(t, &oracle.MockClassifier{Err: oracle.ErrRateLimited})

	w := uploadCSV(t, router, "costs.csv", sheetCSV)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d", w.Code)
	}
	id := decodeSessionID(t, w)

	w = doJSON(router, http.MethodPost, "/api/imports/"+id+"/process", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("process status = %d, want 503: %s", w.Code, w.Body.String())
	}

	// The session fell back to upload and can be retried.
	w = doJSON(router, http.MethodGet, "/api/imports/"+id, "")
	var session struct {
		State        string `json:"state"`
		RejectReason string `json:"rejectReason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.State != "upload" {
		t.Errorf("state = %q, want upload", session.State)
	}
	if session.RejectReason == "" {
		t.Error("reject reason not recorded")
	}
}

func TestProcessMalformedOracleResponse(t *testing.T) {
	router := newTestRouter(t, &oracle.MockClassifier{Err: &oracle.MalformedError{Reason: "content is not json"}})

	w := uploadCSV(t, router, "costs.csv", sheetCSV)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d", w.Code)
	}
	id := decodeSessionID(t, w)

	w = doJSON(router, http.MethodPost, "/api/imports/"+id+"/process", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("process status = %d, want 502: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "malformed") {
		t.Errorf("body = %s, want mention of malformed response", w.Body.String())
	}
}

func TestConfigEndpoints(t *testing.T) {
	router := newTestRouter(t, &oracle.MockClassifier{Response: mockResponse()})

	w := doJSON(router, http.MethodGet, "/api/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get config status = %d", w.Code)
	}
	var got config.AppConfig
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if got.Rates.BillingRatePerHour != 75 {
		t.Errorf("billing rate = %v, want default 75", got.Rates.BillingRatePerHour)
	}

	w = doJSON(router, http.MethodPatch, "/api/config", `{"billingRatePerHour":150,"actualCostRatePerHour":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch config status = %d: %s", w.Code, w.Body.String())
	}

	// The new billing rate drives labor quantities on the next import.
	w = uploadCSV(t, router, "costs.csv", sheetCSV)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d", w.Code)
	}
	id := decodeSessionID(t, w)
	w = doJSON(router, http.MethodPost, "/api/imports/"+id+"/process", "")
	if w.Code != http.StatusOK {
		t.Fatalf("process status = %d: %s", w.Code, w.Body.String())
	}
	var processed struct {
		Items []struct {
			Quantity    float64 `json:"quantity"`
			CostPerUnit float64 `json:"costPerUnit"`
		} `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &processed); err != nil {
		t.Fatalf("decode process response: %v", err)
	}
	if len(processed.Items) == 0 {
		t.Fatal("no items processed")
	}
	if processed.Items[0].Quantity != 100 || processed.Items[0].CostPerUnit != 150 {
		t.Errorf("labor item qty=%v cost=%v, want 100 at 150",
			processed.Items[0].Quantity, processed.Items[0].CostPerUnit)
	}
}

func TestInvalidConfigUpdateRejected(t *testing.T) {
	router := newTestRouter(t, &oracle.MockClassifier{})

	w := doJSON(router, http.MethodPatch, "/api/config", `{"billingRatePerHour":-5}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}

	// The bad value must not stick.
	w = doJSON(router, http.MethodGet, "/api/config", "")
	var got config.AppConfig
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if got.Rates.BillingRatePerHour != 75 {
		t.Errorf("billing rate = %v after rejected update, want 75", got.Rates.BillingRatePerHour)
	}
}

func TestUploadKeptInDataDir(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &oracle.MockClassifier{Response: mockResponse()}
	coordinator, err := importer.NewCoordinator(mock,
		calculator.LaborRates{BillingRatePerHour: 75, ActualCostRatePerHour: 55},
		nil,
		retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Data.DataDir = t.TempDir()
	handler := NewHandler(coordinator, nil, cfg)
	router := gin.New()
	handler.RegisterRoutes(router.Group("/api"))

	w := uploadCSV(t, router, "costs.csv", sheetCSV)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}

	entries, err := os.ReadDir(filepath.Join(cfg.Data.DataDir, "uploads"))
	if err != nil {
		t.Fatalf("read uploads dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files in uploads dir, want 1", len(entries))
	}
	if !strings.HasSuffix(entries[0].Name(), "costs.csv") {
		t.Errorf("stored upload = %q", entries[0].Name())
	}
}

func TestSessionNotFound(t *testing.T) {
	router := newTestRouter(t, &oracle.MockClassifier{})

	w := doJSON(router, http.MethodGet, "/api/imports/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestStatus(t *testing.T) {
	router := newTestRouter(t, &oracle.MockClassifier{})

	w := doJSON(router, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
