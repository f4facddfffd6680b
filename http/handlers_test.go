package http

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carprice/dataset"
	"carprice/db"
	"carprice/ml"
	"carprice/monitoring"
	"carprice/serving"
)

const sampleCSV = `brand,model,year,mileage,fuel_type,transmission,price
Toyota,Corolla,2020,30000,Petrol,Manual,18500
Toyota,Corolla,2017,72000,Petrol,Automatic,13200
Toyota,Prius,2019,41000,Hybrid,Automatic,21000
Honda,Civic,2018,45000,Petrol,Manual,15000
Honda,Civic,2021,12000,Petrol,Automatic,22500
Honda,Jazz,2015,98000,Petrol,Manual,7800
Ford,Focus,2016,88000,Diesel,Manual,8900
Ford,Fiesta,2019,35000,Petrol,Manual,11500
BMW,320d,2018,60000,Diesel,Automatic,24000
BMW,X5,2020,40000,Diesel,Automatic,48000
Volkswagen,Golf,2017,65000,Petrol,Manual,12000
Volkswagen,Golf,2021,15000,Electric,Automatic,29500
`

type testEnv struct {
	mux     *http.ServeMux
	service *serving.Service
	store   *dataset.Store
	dir     string
}

func newTestEnv(t *testing.T, trained bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "cars.csv")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := dataset.Open(csvPath, 8, nil)
	if err != nil {
		t.Fatal(err)
	}
	history, err := db.InitDB(filepath.Join(dir, "carprice.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { history.Close() })

	cfg := ml.DefaultTrainConfig()
	cfg.NumTrees = 10
	metrics := monitoring.NewMetrics()
	service := serving.NewService(store, serving.NewHolder(nil), ml.NewTrainer(cfg, nil),
		filepath.Join(dir, "car_model.bundle"),
		serving.WithHistory(history),
		serving.WithMetrics(metrics),
	)
	if trained {
		if _, err := service.Retrain(context.Background()); err != nil {
			t.Fatalf("train: %v", err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>carprice</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	NewHandlers(service, nil, metrics, dir, nil).Register(mux)
	return &testEnv{mux: mux, service: service, store: store, dir: dir}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return payload
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do("GET", "/api/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", w.Code, http.StatusOK)
	}
	payload := decodeBody(t, w)
	if payload["status"] != "ok" || payload["model_loaded"] != false {
		t.Fatalf("unexpected body: %v", payload)
	}
}

func TestOptionsWithoutModel(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do("GET", "/api/options", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if _, ok := decodeBody(t, w)["error"]; !ok {
		t.Fatal("expected error message")
	}
}

func TestOptions(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do("GET", "/api/options", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var payload struct {
		Version string   `json:"version"`
		Brands  []string `json:"brands"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	want := []string{"BMW", "Ford", "Honda", "Toyota", "Volkswagen"}
	if strings.Join(payload.Brands, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected brands: %v", payload.Brands)
	}
	if payload.Version != env.service.Holder().Load().Version {
		t.Fatalf("unexpected version %q", payload.Version)
	}
}

func TestModelsForBrand(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do("GET", "/api/models/Honda", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if strings.Join(payload.Models, ",") != "Civic,Jazz" {
		t.Fatalf("unexpected models: %v", payload.Models)
	}

	w = env.do("GET", "/api/models/Tesla", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"models":[]}` {
		t.Fatalf("expected empty list, got %d %s", w.Code, w.Body.String())
	}
}

func TestHandlePredict(t *testing.T) {
	env := newTestEnv(t, true)
	body := `{"brand":"Toyota","model":"Corolla","year":2020,"mileage":"30000","fuel_type":"Petrol","transmission":"Manual"}`
	w := env.do("POST", "/api/predict", body)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var payload struct {
		PredictedPrice float64                    `json:"predicted_price"`
		Input          map[string]json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.PredictedPrice <= 0 {
		t.Fatalf("unexpected price %v", payload.PredictedPrice)
	}
	if cents := payload.PredictedPrice * 100; math.Abs(cents-math.Round(cents)) > 1e-6 {
		t.Fatalf("price %v has more than two decimals", payload.PredictedPrice)
	}
	if string(payload.Input["year"]) != "2020" {
		t.Fatalf("year should be echoed as a number, got %s", payload.Input["year"])
	}
	if string(payload.Input["mileage"]) != `"30000"` {
		t.Fatalf("mileage should be echoed as a string, got %s", payload.Input["mileage"])
	}
	if string(payload.Input["brand"]) != `"Toyota"` {
		t.Fatalf("unexpected brand echo %s", payload.Input["brand"])
	}
}

func TestHandlePredictUnknownBrand(t *testing.T) {
	env := newTestEnv(t, true)
	body := `{"brand":"Tesla","model":"Corolla","year":2020,"mileage":30000,"fuel_type":"Petrol","transmission":"Manual"}`
	w := env.do("POST", "/api/predict", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["field"] != "brand" || payload["value"] != "Tesla" {
		t.Fatalf("unexpected error body: %v", payload)
	}
}

func TestHandlePredictMissingFields(t *testing.T) {
	env := newTestEnv(t, true)
	body := `{"brand":"Toyota","model":"Corolla","year":0,"mileage":null,"fuel_type":"Petrol"}`
	w := env.do("POST", "/api/predict", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var payload struct {
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if strings.Join(payload.Fields, ",") != "year,mileage,transmission" {
		t.Fatalf("unexpected missing fields: %v", payload.Fields)
	}
}

func TestHandlePredictInvalidNumber(t *testing.T) {
	env := newTestEnv(t, true)
	body := `{"brand":"Toyota","model":"Corolla","year":"abc","mileage":30000,"fuel_type":"Petrol","transmission":"Manual"}`
	w := env.do("POST", "/api/predict", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if payload := decodeBody(t, w); payload["field"] != "year" || payload["value"] != "abc" {
		t.Fatalf("unexpected error body: %v", payload)
	}
}

func TestHandlePredictTruncatesFractionalNumbers(t *testing.T) {
	env := newTestEnv(t, true)
	predict := func(year, mileage string) *httptest.ResponseRecorder {
		body := `{"brand":"Toyota","model":"Corolla","year":` + year + `,"mileage":` + mileage + `,"fuel_type":"Petrol","transmission":"Manual"}`
		return env.do("POST", "/api/predict", body)
	}

	whole := predict("2020", "30000")
	fractional := predict("2020.5", "30000.9")
	if whole.Code != http.StatusOK || fractional.Code != http.StatusOK {
		t.Fatalf("expected 200s, got %d and %d: %s", whole.Code, fractional.Code, fractional.Body.String())
	}
	if decodeBody(t, whole)["predicted_price"] != decodeBody(t, fractional)["predicted_price"] {
		t.Fatal("fractional year and mileage should predict like their truncated values")
	}
	if echo := decodeBody(t, fractional)["input"].(map[string]any); echo["year"] != 2020.5 {
		t.Fatalf("year should be echoed as sent, got %v", echo["year"])
	}

	w := predict(`"2020.5"`, "30000")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("fractional text: expected 400, got %d", w.Code)
	}
	if payload := decodeBody(t, w); payload["field"] != "year" || payload["value"] != "2020.5" {
		t.Fatalf("unexpected error body: %v", payload)
	}
}

func TestHandlePredictComparesCategoriesExactly(t *testing.T) {
	env := newTestEnv(t, true)
	body := `{"brand":"  Toyota\t","model":"Corolla","year":2020,"mileage":30000,"fuel_type":"Petrol","transmission":"Manual"}`
	w := env.do("POST", "/api/predict", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if payload := decodeBody(t, w); payload["field"] != "brand" || payload["value"] != "  Toyota\t" {
		t.Fatalf("unexpected error body: %v", payload)
	}
}

func TestHandlePredictWithoutModel(t *testing.T) {
	env := newTestEnv(t, false)
	body := `{"brand":"Toyota","model":"Corolla","year":2020,"mileage":30000,"fuel_type":"Petrol","transmission":"Manual"}`
	w := env.do("POST", "/api/predict", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandlePredictMalformedJSON(t *testing.T) {
	env := newTestEnv(t, true)
	for _, body := range []string{`{"brand":`, `null`, `[1,2]`} {
		w := env.do("POST", "/api/predict", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestHandleAdd(t *testing.T) {
	env := newTestEnv(t, false)
	body := `{"brand":"Kia","model":"Ceed","year":"2019","mileage":41000,"fuel_type":"Petrol","transmission":"Manual","price":10999.5}`
	w := env.do("POST", "/api/add", body)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	payload := decodeBody(t, w)
	if payload["total_cars"] != float64(13) || payload["message"] != "Car added successfully" {
		t.Fatalf("unexpected body: %v", payload)
	}

	w = env.do("GET", "/api/models/Kia", "")
	if !strings.Contains(w.Body.String(), "Ceed") {
		t.Fatalf("appended model not listed: %s", w.Body.String())
	}
}

func TestHandleAddMissingPrice(t *testing.T) {
	env := newTestEnv(t, false)
	body := `{"brand":"Kia","model":"Ceed","year":2019,"mileage":41000,"fuel_type":"Petrol","transmission":"Manual"}`
	w := env.do("POST", "/api/add", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var payload struct {
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Fields) != 1 || payload.Fields[0] != "price" {
		t.Fatalf("unexpected missing fields: %v", payload.Fields)
	}
	count, err := env.store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 12 {
		t.Fatalf("store should be unchanged, has %d records", count)
	}
}

func TestTrainThenModelInfoAndHistory(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do("POST", "/api/train", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	trained := decodeBody(t, w)
	if trained["snapshot_size"] != float64(12) {
		t.Fatalf("unexpected train response: %v", trained)
	}

	w = env.do("GET", "/api/model", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	info := decodeBody(t, w)
	if info["version"] != trained["version"] || info["stale"] != false {
		t.Fatalf("unexpected model info: %v", info)
	}

	w = env.do("GET", "/api/training/history?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var history struct {
		Runs []db.TrainingLog `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatal(err)
	}
	if len(history.Runs) != 1 || history.Runs[0].Version != trained["version"] {
		t.Fatalf("unexpected history: %+v", history.Runs)
	}

	if w := env.do("GET", "/api/training/history?limit=x", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestMetricsAndIndex(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do("GET", "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "carprice_") {
		t.Fatalf("unexpected metrics response %d", w.Code)
	}

	w = env.do("GET", "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "carprice") {
		t.Fatalf("unexpected index response %d %s", w.Code, w.Body.String())
	}
}

func TestFieldsTruthiness(t *testing.T) {
	var f fields
	if err := json.Unmarshal([]byte(`{"a":null,"b":false,"c":"","d":0,"e":0.0,"f":[],"g":"0","h":2020,"i":" x ","j":true}`), &f); err != nil {
		t.Fatal(err)
	}
	cases := map[string]string{
		"a": "", "b": "", "c": "", "d": "", "e": "", "f": "", "missing": "",
		"g": "0", "h": "2020", "i": " x ", "j": "true",
	}
	for name, want := range cases {
		if got := f.text(name); got != want {
			t.Fatalf("text(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestFieldsInteger(t *testing.T) {
	var f fields
	if err := json.Unmarshal([]byte(`{"a":2020.5,"b":-3.9,"c":"2020.5","d":"abc","e":0.4,"f":1e300,"g":0,"h":true}`), &f); err != nil {
		t.Fatal(err)
	}
	cases := map[string]string{
		"a": "2020", "b": "-3", "c": "2020.5", "d": "abc", "e": "0", "f": "1e300", "g": "", "h": "true",
	}
	for name, want := range cases {
		if got := f.integer(name); got != want {
			t.Fatalf("integer(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestDatasetQuality(t *testing.T) {
	env := newTestEnv(t, false)
	body := `{"brand":"Toyota","model":"Corolla","year":2020,"mileage":30000,"fuel_type":"Petrol","transmission":"Manual","price":18500}`
	if w := env.do("POST", "/api/add", body); w.Code != http.StatusOK {
		t.Fatalf("add failed: %d %s", w.Code, w.Body.String())
	}

	w := env.do("GET", "/api/dataset/quality", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decodeBody(t, w)
	if payload["total"] != float64(13) || payload["flagged"] != float64(1) {
		t.Fatalf("unexpected report: %v", payload)
	}
}
