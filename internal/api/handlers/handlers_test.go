package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/db"
	"github.com/Fantasim/tokenmeta/internal/metadata"
	"github.com/Fantasim/tokenmeta/internal/models"
	"github.com/Fantasim/tokenmeta/internal/multicall/multicalltest"
	"github.com/Fantasim/tokenmeta/internal/network"
	"github.com/Fantasim/tokenmeta/internal/tokenlist"
)

var (
	homesteadAggregator = common.HexToAddress("0x5ba1e12693dc8f9c48aad8770482f4739beed696")

	weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	mkr  = common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
	dead = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

type nopBackend struct {
	*multicalltest.Aggregator
}

func (nopBackend) Close() {}

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.sqlite")

	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := database.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database
}

type testEnv struct {
	router http.Handler
	db     *db.DB
	agg    *multicalltest.Aggregator
}

func setupRouter(t *testing.T, overrides tokenlist.Overrides, opts ...metadata.Option) *testEnv {
	t.Helper()

	database := setupTestDB(t)

	registry, err := network.NewRegistry("test-key", nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	agg := multicalltest.NewAggregator(homesteadAggregator, multicalltest.TokenHandler(map[common.Address]multicalltest.Token{
		weth: multicalltest.StandardToken("Wrapped Ether", "WETH", 18),
		mkr: {
			Name:     multicalltest.Bytes32String("Maker"),
			Symbol:   multicalltest.Bytes32String("MKR"),
			Decimals: multicalltest.ABIUint(18),
		},
	}))

	opts = append([]metadata.Option{metadata.WithDialer(func(context.Context, network.Config) (metadata.Backend, error) {
		return nopBackend{agg}, nil
	})}, opts...)
	fetcher := metadata.NewFetcher(registry, opts...)
	t.Cleanup(fetcher.Close)

	cfg := &config.Config{DBPath: "test.sqlite"}

	r := chi.NewRouter()
	r.Get("/api/health", HealthHandler(cfg, "test"))
	r.Get("/api/networks", ListNetworks(registry))
	r.Post("/api/networks/{network}/metadata", FetchMetadata(&MetadataDeps{DB: database, Fetcher: fetcher}))
	r.Get("/api/networks/{network}/metadata", ListMetadata(database))
	r.Get("/api/networks/{network}/runs", ListFetchRuns(database))
	r.Get("/api/networks/{network}/tokenlist", GetTokenList(database, overrides, "test-list"))

	return &testEnv{router: r, db: database, agg: agg}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.APIErrorDetail {
	t.Helper()
	var resp models.APIError
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return resp.Error
}

func TestHealthHandler(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do("GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("unexpected health response %v", resp)
	}
}

func TestListNetworks(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do("GET", "/api/networks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data []networkResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(resp.Data) != len(models.AllNetworks) {
		t.Fatalf("expected %d networks, got %d", len(models.AllNetworks), len(resp.Data))
	}
	if resp.Data[0].Network != models.NetworkHomestead || resp.Data[0].ChainID != 1 {
		t.Errorf("unexpected first network %+v", resp.Data[0])
	}
	if !resp.Data[0].Configured {
		t.Error("expected homestead configured with an infura key")
	}
	if strings.Contains(w.Body.String(), "test-key") {
		t.Error("response must not expose endpoint credentials")
	}
}

func TestFetchMetadata(t *testing.T) {
	env := setupRouter(t, nil)

	body := `{"tokens":["` + weth.Hex() + `","` + strings.ToLower(mkr.Hex()) + `","` + dead.Hex() + `"]}`
	w := env.do("POST", "/api/networks/homestead/metadata", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data map[string]models.TokenMetadata `json:"data"`
		Meta models.APIMeta                  `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	if resp.Meta.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Meta.Total)
	}
	if got := resp.Data[weth.Hex()]; got.Symbol != "WETH" || got.ChainID != 1 {
		t.Errorf("weth = %+v", got)
	}
	if got := resp.Data[mkr.Hex()]; got.Name != "Maker" {
		t.Errorf("mkr = %+v", got)
	}
	if got := resp.Data[dead.Hex()]; got.Name != "UNKNOWN" || got.Decimals != 18 {
		t.Errorf("dead = %+v", got)
	}
	if env.agg.AggregateCalls() != 1 {
		t.Errorf("aggregate calls = %d, want 1", env.agg.AggregateCalls())
	}

	stored, err := env.db.ListTokenMetadata(models.NetworkHomestead)
	if err != nil {
		t.Fatalf("ListTokenMetadata() error = %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("stored %d tokens, want 3", len(stored))
	}

	runs, _ := env.db.ListFetchRuns(models.NetworkHomestead, 10)
	if len(runs) != 1 || runs[0].TokenCount != 3 || runs[0].FallbackCount != 3 {
		t.Errorf("unexpected fetch runs %+v", runs)
	}
}

func TestFetchMetadata_InvalidNetwork(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do("POST", "/api/networks/goerli/metadata", `{"tokens":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decodeError(t, w).Code; got != config.ErrorInvalidNetwork {
		t.Errorf("code = %s, want %s", got, config.ErrorInvalidNetwork)
	}
}

func TestFetchMetadata_InvalidAddress(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do("POST", "/api/networks/homestead/metadata", `{"tokens":["0x1234"]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decodeError(t, w).Code; got != config.ErrorInvalidAddress {
		t.Errorf("code = %s, want %s", got, config.ErrorInvalidAddress)
	}
	if env.agg.AggregateCalls() != 0 {
		t.Error("invalid input must not reach the network")
	}
}

func TestFetchMetadata_InvalidBody(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do("POST", "/api/networks/homestead/metadata", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decodeError(t, w).Code; got != config.ErrorInvalidRequest {
		t.Errorf("code = %s, want %s", got, config.ErrorInvalidRequest)
	}
}

func TestFetchMetadata_TooManyTokens(t *testing.T) {
	env := setupRouter(t, nil)

	tokens := make([]string, config.MaxTokensPerRequest+1)
	for i := range tokens {
		tokens[i] = weth.Hex()
	}
	body, _ := json.Marshal(fetchRequest{Tokens: tokens})

	w := env.do("POST", "/api/networks/homestead/metadata", string(body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decodeError(t, w).Code; got != config.ErrorTooManyTokens {
		t.Errorf("code = %s, want %s", got, config.ErrorTooManyTokens)
	}
}

func TestFetchMetadata_AggregateFailure(t *testing.T) {
	env := setupRouter(t, nil)
	env.agg.FailWith(errors.New("connection reset"))

	w := env.do("POST", "/api/networks/homestead/metadata", `{"tokens":["`+weth.Hex()+`"]}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if got := decodeError(t, w).Code; got != config.ErrorAggregateCallFailed {
		t.Errorf("code = %s, want %s", got, config.ErrorAggregateCallFailed)
	}

	stored, _ := env.db.ListTokenMetadata(models.NetworkHomestead)
	if len(stored) != 0 {
		t.Errorf("expected nothing stored on failure, got %d", len(stored))
	}

	runs, _ := env.db.ListFetchRuns(models.NetworkHomestead, 10)
	if len(runs) != 1 || runs[0].Error == "" {
		t.Errorf("expected one failed run recorded, got %+v", runs)
	}
}

func TestFetchMetadata_CircuitOpen(t *testing.T) {
	env := setupRouter(t, nil, metadata.WithCircuitBreaker(true))
	env.agg.FailWith(errors.New("connection reset"))

	body := `{"tokens":["` + weth.Hex() + `"]}`
	for i := 0; i < config.CircuitBreakerThreshold; i++ {
		if w := env.do("POST", "/api/networks/homestead/metadata", body); w.Code != http.StatusBadGateway {
			t.Fatalf("attempt %d status = %d, want 502", i, w.Code)
		}
	}

	w := env.do("POST", "/api/networks/homestead/metadata", body)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if got := decodeError(t, w).Code; got != config.ErrorCircuitOpen {
		t.Errorf("code = %s, want %s", got, config.ErrorCircuitOpen)
	}
	if env.agg.AggregateCalls() != config.CircuitBreakerThreshold {
		t.Errorf("aggregate calls = %d, want %d", env.agg.AggregateCalls(), config.CircuitBreakerThreshold)
	}
}

func TestListMetadata(t *testing.T) {
	env := setupRouter(t, nil)
	env.db.UpsertTokenMetadata(models.NetworkHomestead, []models.TokenMetadata{
		{Address: weth, ChainID: 1, Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18},
	})

	w := env.do("GET", "/api/networks/homestead/metadata", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data []models.TokenMetadata `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Address != weth {
		t.Errorf("unexpected data %+v", resp.Data)
	}

	w = env.do("GET", "/api/networks/polygon/metadata", "")
	if !strings.Contains(w.Body.String(), `"data":[]`) {
		t.Errorf("expected empty data array, got %s", w.Body.String())
	}
}

func TestListFetchRuns(t *testing.T) {
	env := setupRouter(t, nil)
	for i := 0; i < 3; i++ {
		env.db.RecordFetchRun(models.FetchRun{Network: models.NetworkHomestead, TokenCount: i})
	}

	w := env.do("GET", "/api/networks/homestead/runs?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data []models.FetchRun `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("expected 2 runs, got %d", len(resp.Data))
	}
}

func TestGetTokenList(t *testing.T) {
	logo := "https://example.org/mkr.png"
	overrides := tokenlist.Overrides{
		models.NetworkHomestead: {mkr: {LogoURI: &logo}},
	}
	env := setupRouter(t, overrides)
	env.db.UpsertTokenMetadata(models.NetworkHomestead, []models.TokenMetadata{
		{Address: weth, ChainID: 1, Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18},
		{Address: mkr, ChainID: 1, Name: "Maker", Symbol: "MKR", Decimals: 18},
	})

	w := env.do("GET", "/api/networks/homestead/tokenlist?list=vetted", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var doc models.TokenList
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if doc.Name != "test-list" {
		t.Errorf("name = %s, want test-list", doc.Name)
	}
	if len(doc.Tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(doc.Tokens))
	}
	if doc.Tokens[0].Address != mkr.Hex() || doc.Tokens[0].LogoURI != logo {
		t.Errorf("unexpected first token %+v", doc.Tokens[0])
	}
	if len(doc.Keywords) != 1 || doc.Keywords[0] != "vetted" {
		t.Errorf("unexpected keywords %v", doc.Keywords)
	}
}

func TestGetTokenList_InvalidList(t *testing.T) {
	env := setupRouter(t, nil)

	w := env.do("GET", "/api/networks/homestead/tokenlist?list=favourites", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decodeError(t, w).Code; got != config.ErrorInvalidList {
		t.Errorf("code = %s, want %s", got, config.ErrorInvalidList)
	}
}
