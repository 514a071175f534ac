package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/marketmap/internal/adapters/http"
	"github.com/samirrijal/marketmap/internal/adapters/supercluster"
	"github.com/samirrijal/marketmap/internal/core/domain"
	"github.com/samirrijal/marketmap/internal/core/usecases"
)

// ---- Mock repository ----

type mockMarketRepo struct {
	getByIDFn      func(ctx context.Context, id string) (*domain.Market, error)
	listFn         func(ctx context.Context, state string, offset, limit int) ([]domain.Market, int, error)
	listByStatesFn func(ctx context.Context, states []string) ([]domain.Market, error)
	findNearbyFn   func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Market, error)
}

func (m *mockMarketRepo) UpsertBatch(ctx context.Context, markets []domain.Market) error { return nil }
func (m *mockMarketRepo) GetByID(ctx context.Context, id string) (*domain.Market, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *mockMarketRepo) List(ctx context.Context, state string, offset, limit int) ([]domain.Market, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, state, offset, limit)
	}
	return nil, 0, nil
}
func (m *mockMarketRepo) ListByStates(ctx context.Context, states []string) ([]domain.Market, error) {
	if m.listByStatesFn != nil {
		return m.listByStatesFn(ctx, states)
	}
	return nil, nil
}
func (m *mockMarketRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Market, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}
func (m *mockMarketRepo) InBounds(ctx context.Context, b domain.ViewportBounds, limit int) ([]domain.Market, error) {
	return nil, nil
}

type fakeProfiles map[string]domain.PerformanceProfile

func (f fakeProfiles) Profile(name string) (domain.PerformanceProfile, bool) {
	if p, ok := f[strings.ToLower(name)]; ok {
		return p, true
	}
	return f["ios"], false
}

func (f fakeProfiles) Platforms() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ---- Test helpers ----

const unionLat, unionLon = 40.7359, -73.9903

// unionSquare returns five markets within about 30 m of each other.
func unionSquare() []domain.Market {
	const d = 0.0002
	return []domain.Market{
		{ID: "c", Name: "Union Square Greenmarket", Latitude: unionLat, Longitude: unionLon, State: "NY"},
		{ID: "n", Name: "North", Latitude: unionLat + d, Longitude: unionLon, State: "NY"},
		{ID: "s", Name: "South", Latitude: unionLat - d, Longitude: unionLon, State: "NY"},
		{ID: "e", Name: "East", Latitude: unionLat, Longitude: unionLon + d, State: "NY", IsFavorite: true},
		{ID: "w", Name: "West", Latitude: unionLat, Longitude: unionLon - d, State: "NY"},
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(t *testing.T, repo *mockMarketRepo) *handler.Dependencies {
	t.Helper()
	engine, err := supercluster.New("kdtree")
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	clusters, err := usecases.NewClusterService(engine, string(engine.Backend()), 8, nil, nil)
	if err != nil {
		t.Fatalf("cluster service: %v", err)
	}
	return &handler.Dependencies{
		Markets:  usecases.NewMarketService(repo, nil),
		Clusters: clusters,
		Profiles: fakeProfiles{
			"ios":     domain.DefaultProfile("ios"),
			"android": domain.DefaultProfile("android"),
		},
	}
}

func nearbyRepo() *mockMarketRepo {
	return &mockMarketRepo{
		findNearbyFn: func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.Market, error) {
			return unionSquare(), nil
		},
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func get(t *testing.T, app *fiber.App, target string) (int, []byte, map[string]string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, readBody(t, resp.Body), headers
}

// ---- Profile handler tests ----

func TestListProfiles(t *testing.T) {
	app := setupApp(makeDeps(t, &mockMarketRepo{}))

	status, body, _ := get(t, app, "/v1/profiles")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var profiles []domain.PerformanceProfile
	if err := json.Unmarshal(body, &profiles); err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 2 || profiles[0].Name != "android" {
		t.Errorf("unexpected profiles: %+v", profiles)
	}
}

func TestGetProfile_Unknown(t *testing.T) {
	app := setupApp(makeDeps(t, &mockMarketRepo{}))

	status, _, _ := get(t, app, "/v1/profiles/watch")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
}

// ---- Market handler tests ----

func TestListMarkets_Pagination(t *testing.T) {
	var gotState string
	repo := &mockMarketRepo{
		listFn: func(ctx context.Context, state string, offset, limit int) ([]domain.Market, int, error) {
			gotState = state
			return unionSquare()[offset : offset+limit], 5, nil
		},
	}
	app := setupApp(makeDeps(t, repo))

	status, body, headers := get(t, app, "/v1/markets?state=ny&offset=2&limit=2")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if gotState != "NY" {
		t.Errorf("expected state NY, got %q", gotState)
	}

	var result struct {
		Data       []domain.Market `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 5 || len(result.Data) != 2 || result.Pagination.Offset != 2 {
		t.Errorf("unexpected page: %+v", result.Pagination)
	}
	if link := headers["Link"]; !strings.Contains(link, `rel="next"`) || !strings.Contains(link, "state=ny") {
		t.Errorf("expected next link keeping state, got %q", link)
	}
}

func TestNearbyMarkets_Validation(t *testing.T) {
	app := setupApp(makeDeps(t, nearbyRepo()))

	cases := map[string]int{
		"/v1/markets/nearby":                                400,
		"/v1/markets/nearby?lat=40.7":                       400,
		"/v1/markets/nearby?lat=40.7&lon=-74&radius=150":    400,
		"/v1/markets/nearby?lat=40.7&lon=-74&radius=10":     200,
		"/v1/markets/nearby?lat=40.7&lon=-74&radius=oops10": 200, // falls back to the default radius
	}
	for target, want := range cases {
		if status, _, _ := get(t, app, target); status != want {
			t.Errorf("%s: expected %d, got %d", target, want, status)
		}
	}
}

func TestNearbyMarkets_ZeroCoordinates(t *testing.T) {
	app := setupApp(makeDeps(t, nearbyRepo()))

	status, _, _ := get(t, app, "/v1/markets/nearby?lat=0&lon=0&radius=5")
	if status != 200 {
		t.Fatalf("expected 200 for the origin, got %d", status)
	}
}

func TestGetMarket(t *testing.T) {
	repo := &mockMarketRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Market, error) {
			if id == "c" {
				m := unionSquare()[0]
				return &m, nil
			}
			return nil, domain.ErrNotFound
		},
	}
	app := setupApp(makeDeps(t, repo))

	status, body, _ := get(t, app, "/v1/markets/c")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var m domain.Market
	_ = json.Unmarshal(body, &m)
	if m.Name != "Union Square Greenmarket" {
		t.Errorf("unexpected market: %+v", m)
	}

	status, body, _ = get(t, app, "/v1/markets/missing")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	var apiErr handler.APIError
	_ = json.Unmarshal(body, &apiErr)
	if apiErr.Code != "not_found" || apiErr.RequestID == "" {
		t.Errorf("unexpected error body: %+v", apiErr)
	}
}

func TestGetMarket_RepoFailure(t *testing.T) {
	repo := &mockMarketRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Market, error) {
			return nil, errors.New("connection reset")
		},
	}
	app := setupApp(makeDeps(t, repo))

	status, body, headers := get(t, app, "/v1/markets/c")
	if status != 500 {
		t.Fatalf("expected 500, got %d", status)
	}
	if strings.Contains(string(body), "connection reset") {
		t.Error("internal error details must not leak")
	}
	if headers["Cache-Control"] != "no-store" {
		t.Errorf("expected no-store on errors, got %q", headers["Cache-Control"])
	}
}

// ---- Cluster handler tests ----

func TestClusters_ZoomedOut(t *testing.T) {
	repo := &mockMarketRepo{
		listByStatesFn: func(ctx context.Context, states []string) ([]domain.Market, error) {
			return unionSquare(), nil
		},
	}
	app := setupApp(makeDeps(t, repo))

	status, body, _ := get(t, app, "/v1/clusters?lat=40.7359&lon=-73.9903&lat_span=20&lon_span=45&platform=ios")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var view domain.ClusterView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatal(err)
	}
	if view.Zoom != 3 || len(view.Markers) != 1 {
		t.Fatalf("expected a single marker at zoom 3, got %d markers at zoom %d", len(view.Markers), view.Zoom)
	}
	if m := view.Markers[0]; m.Kind != domain.MarkerCluster || m.Count != 5 || m.Badge != "5" {
		t.Errorf("unexpected marker: %+v", m)
	}
}

func TestClusters_ZoomedIn(t *testing.T) {
	app := setupApp(makeDeps(t, nearbyRepo()))

	status, body, _ := get(t, app, "/v1/clusters?lat=40.7359&lon=-73.9903&lat_span=0.002&lon_span=0.0014")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var view domain.ClusterView
	_ = json.Unmarshal(body, &view)
	if len(view.Markers) != 5 {
		t.Fatalf("expected 5 markers, got %d", len(view.Markers))
	}
	icons := map[string]string{}
	for _, m := range view.Markers {
		icons[m.Key] = m.Icon
	}
	if icons["market-e"] != usecases.IconFavoriteMarket || icons["market-c"] != usecases.IconMarket {
		t.Errorf("unexpected icons: %v", icons)
	}
}

func TestClusters_BadRegion(t *testing.T) {
	app := setupApp(makeDeps(t, nearbyRepo()))

	for _, target := range []string{
		"/v1/clusters?lat=40&lon=-74&lat_span=1",
		"/v1/clusters?lat=95&lon=-74&lat_span=1&lon_span=1",
		"/v1/clusters?lat=40&lon=-74&lat_span=-1&lon_span=1",
		"/v1/clusters?lat=abc&lon=-74&lat_span=1&lon_span=1",
	} {
		if status, _, _ := get(t, app, target); status != 400 {
			t.Errorf("%s: expected 400, got %d", target, status)
		}
	}
}

func TestClusters_GeoJSON(t *testing.T) {
	repo := &mockMarketRepo{
		listByStatesFn: func(ctx context.Context, states []string) ([]domain.Market, error) {
			return unionSquare(), nil
		},
	}
	app := setupApp(makeDeps(t, repo))

	status, body, headers := get(t, app, "/v1/clusters/geojson?lat=40.7359&lon=-73.9903&lat_span=20&lon_span=45")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if headers["Content-Type"] != "application/geo+json" {
		t.Errorf("unexpected content type %q", headers["Content-Type"])
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("unexpected collection: %s", body)
	}
	f := fc.Features[0]
	if f.Properties["cluster"] != true || f.Properties["point_count"] != float64(5) {
		t.Errorf("unexpected properties: %v", f.Properties)
	}
	if lon := f.Geometry.Coordinates[0]; lon > -73.98 || lon < -74 {
		t.Errorf("expected [lon, lat] order, got %v", f.Geometry.Coordinates)
	}
}

func TestClusterLeaves(t *testing.T) {
	repo := &mockMarketRepo{
		listByStatesFn: func(ctx context.Context, states []string) ([]domain.Market, error) {
			return unionSquare(), nil
		},
	}
	app := setupApp(makeDeps(t, repo))
	region := "lat=40.7359&lon=-73.9903&lat_span=20&lon_span=45"

	_, body, _ := get(t, app, "/v1/clusters?"+region)
	var view domain.ClusterView
	_ = json.Unmarshal(body, &view)
	if len(view.Markers) != 1 {
		t.Fatalf("expected one cluster, got %d markers", len(view.Markers))
	}
	id := view.Markers[0].Event.ClusterID

	status, body, _ := get(t, app, "/v1/clusters/"+jsonInt(id)+"/leaves?"+region+"&limit=3")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var leaves struct {
		Markets []domain.Market `json:"markets"`
	}
	_ = json.Unmarshal(body, &leaves)
	if len(leaves.Markets) != 3 {
		t.Errorf("expected 3 leaves, got %d", len(leaves.Markets))
	}

	if status, _, _ := get(t, app, "/v1/clusters/1/leaves?"+region); status != 404 {
		t.Errorf("expected 404 for unknown cluster, got %d", status)
	}
	if status, _, _ := get(t, app, "/v1/clusters/abc/leaves?"+region); status != 400 {
		t.Errorf("expected 400 for malformed id, got %d", status)
	}
}

func TestClusterChildren(t *testing.T) {
	repo := &mockMarketRepo{
		listByStatesFn: func(ctx context.Context, states []string) ([]domain.Market, error) {
			return unionSquare(), nil
		},
	}
	app := setupApp(makeDeps(t, repo))
	region := "lat=40.7359&lon=-73.9903&lat_span=20&lon_span=45"

	_, body, _ := get(t, app, "/v1/clusters?"+region)
	var view domain.ClusterView
	_ = json.Unmarshal(body, &view)
	if len(view.Markers) != 1 {
		t.Fatalf("expected one cluster, got %d markers", len(view.Markers))
	}

	status, body, _ := get(t, app, "/v1/clusters/"+jsonInt(view.Markers[0].Event.ClusterID)+"/children?"+region)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var children struct {
		Markers []domain.Marker `json:"markers"`
	}
	_ = json.Unmarshal(body, &children)
	total := 0
	for _, m := range children.Markers {
		total += m.Count
	}
	if len(children.Markers) == 0 || total != 5 {
		t.Errorf("expected children covering 5 markets, got %d markers totalling %d", len(children.Markers), total)
	}

	if status, _, _ := get(t, app, "/v1/clusters/1/children?"+region); status != 404 {
		t.Errorf("expected 404 for unknown cluster, got %d", status)
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestMarkers_Deprecated(t *testing.T) {
	app := setupApp(makeDeps(t, nearbyRepo()))

	status, _, headers := get(t, app, "/v1/markers?lat=40.7359&lon=-73.9903&lat_span=0.01&lon_span=0.01")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if headers["Deprecation"] != "true" || headers["Sunset"] == "" {
		t.Errorf("expected deprecation headers, got %v", headers)
	}
	if !strings.Contains(headers["Link"], "/v1/clusters") {
		t.Errorf("expected successor link, got %q", headers["Link"])
	}
}

// ---- Infrastructure ----

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps(t, &mockMarketRepo{}))

	_, _, headers := get(t, app, "/v1/profiles")
	etag := headers["Etag"]
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	req := httptest.NewRequest("GET", "/v1/profiles", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestCacheControl_ByRoute(t *testing.T) {
	app := setupApp(makeDeps(t, nearbyRepo()))

	tests := []struct {
		target string
		want   string
	}{
		{"/v1/health", "public, max-age=10"},
		{"/v1/profiles", "public, max-age=3600"},
		{"/v1/markets/nearby?lat=40.7359&lon=-73.9903", "public, max-age=300"},
		{"/v1/clusters?lat=40&lon=-74&lat_span=1", "no-store"},
	}
	for _, tt := range tests {
		_, _, headers := get(t, app, tt.target)
		if got := headers["Cache-Control"]; got != tt.want {
			t.Errorf("%s: expected Cache-Control %q, got %q", tt.target, tt.want, got)
		}
	}
}

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps(t, &mockMarketRepo{}))

	status, body, _ := get(t, app, "/v1/health")
	if status != 200 || !strings.Contains(string(body), "healthy") {
		t.Errorf("unexpected health response %d: %s", status, body)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func TestReady(t *testing.T) {
	deps := makeDeps(t, &mockMarketRepo{})
	app := setupApp(deps)
	if status, _, _ := get(t, app, "/v1/ready"); status != 503 {
		t.Errorf("expected 503 without a database, got %d", status)
	}

	deps = makeDeps(t, &mockMarketRepo{})
	deps.DB = fakePinger{}
	deps.Cache = fakePinger{err: errors.New("down")}
	app = setupApp(deps)
	status, body, _ := get(t, app, "/v1/ready")
	if status != 503 || !strings.Contains(string(body), "down") {
		t.Errorf("expected 503 with cache error, got %d: %s", status, body)
	}

	deps.Cache = nil
	app = setupApp(deps)
	if status, _, _ := get(t, app, "/v1/ready"); status != 200 {
		t.Errorf("expected 200, got %d", status)
	}
}

// ---- GraphQL ----

func TestGraphQL_Clusters(t *testing.T) {
	repo := &mockMarketRepo{
		listByStatesFn: func(ctx context.Context, states []string) ([]domain.Market, error) {
			return unionSquare(), nil
		},
	}
	app := setupApp(makeDeps(t, repo))

	query := `{"query":"{ clusters(lat: 40.7359, lon: -73.9903, lat_span: 20.0, lon_span: 45.0, platform: \"ios\") { zoom markers { kind count cluster_id } } profiles { name debounce_ms } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}

	var result struct {
		Data struct {
			Clusters struct {
				Zoom    int `json:"zoom"`
				Markers []struct {
					Kind      string `json:"kind"`
					Count     int    `json:"count"`
					ClusterID string `json:"cluster_id"`
				} `json:"markers"`
			} `json:"clusters"`
			Profiles []struct {
				Name       string `json:"name"`
				DebounceMS int    `json:"debounce_ms"`
			} `json:"profiles"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	c := result.Data.Clusters
	if c.Zoom != 3 || len(c.Markers) != 1 || c.Markers[0].Count != 5 || c.Markers[0].ClusterID == "" {
		t.Errorf("unexpected clusters: %+v", c)
	}
	if len(result.Data.Profiles) != 2 || result.Data.Profiles[0].DebounceMS != 150 {
		t.Errorf("unexpected profiles: %+v", result.Data.Profiles)
	}
}

func TestGraphQL_BadBody(t *testing.T) {
	app := setupApp(makeDeps(t, &mockMarketRepo{}))

	req := httptest.NewRequest("POST", "/graphql", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDocs(t *testing.T) {
	deps := makeDeps(t, &mockMarketRepo{})
	deps.OpenAPIPath = "../../../api/openapi.yaml"
	app := setupApp(deps)

	status, body, headers := get(t, app, "/docs/openapi.yaml")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.HasPrefix(headers["Content-Type"], "application/yaml") {
		t.Errorf("unexpected content type %q", headers["Content-Type"])
	}
	if !strings.Contains(string(body), "Marketmap API") {
		t.Error("expected the OpenAPI document")
	}

	status, body, _ = get(t, app, "/docs")
	if status != 200 || !strings.Contains(string(body), "/docs/openapi.yaml") {
		t.Errorf("expected swagger page, got %d", status)
	}
}

func TestDocs_Missing(t *testing.T) {
	deps := makeDeps(t, &mockMarketRepo{})
	deps.OpenAPIPath = "does/not/exist.yaml"
	app := setupApp(deps)

	if status, _, _ := get(t, app, "/docs"); status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
}
