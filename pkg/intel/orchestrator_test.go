package intel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/crateintel/pkg/docsource"
	crerrors "github.com/matzehuels/crateintel/pkg/errors"
	"github.com/matzehuels/crateintel/pkg/upstream/crates"
)

// fakeSource is a docsource.Source with canned responses.
type fakeSource struct {
	deps        *docsource.DependencyGraph
	examples    []docsource.UsageExample
	manifest    string
	tree        *docsource.SourceTreeBundle
	depsErr     error
	treeErr     error
	manifestErr error
	depsCalls   int
}

func (f *fakeSource) CrawlTree(ctx context.Context, name, version string) (*docsource.SourceTreeBundle, error) {
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	return f.tree, nil
}

func (f *fakeSource) Dependencies(ctx context.Context, name, version string) (*docsource.DependencyGraph, error) {
	f.depsCalls++
	if f.depsErr != nil {
		return nil, f.depsErr
	}
	return f.deps, nil
}

func (f *fakeSource) Examples(ctx context.Context, name, version string) ([]docsource.UsageExample, error) {
	return f.examples, nil
}

func (f *fakeSource) Manifest(ctx context.Context, name, version string) (string, error) {
	if f.manifestErr != nil {
		return "", f.manifestErr
	}
	return f.manifest, nil
}

func (f *fakeSource) Ping(ctx context.Context) error { return nil }

func populatedSource() *fakeSource {
	tree := docsource.NewSourceTreeBundle()
	tree.AddFile("src/lib.rs", "pub struct Widget;\n")
	return &fakeSource{
		deps: docsource.NewDependencyGraph([]docsource.DependencyEntry{
			{Name: "serde", Req: "^1.0", Kind: docsource.KindNormal},
		}, "widget", docsource.ProvenanceSection),
		examples: []docsource.UsageExample{
			{Code: "use widget::Widget;\nfn main() {}", Source: docsource.SourceMainDoc, Language: "rust"},
		},
		manifest: "[package]\nname = \"widget\"\n",
		tree:     tree,
	}
}

func registryServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/crates/widget"):
			json.NewEncoder(w).Encode(map[string]any{
				"crate": map[string]any{
					"name":        "widget",
					"max_version": "2.1.0",
					"description": "A widget library",
					"downloads":   42000,
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func testRegistry(t *testing.T, url string) *crates.Client {
	t.Helper()
	c := crates.NewClient(nil, time.Minute)
	c.SetBaseURL(url)
	return c
}

func TestExtractBasic(t *testing.T) {
	server := registryServer(t)
	defer server.Close()

	o := NewOrchestrator(testRegistry(t, server.URL), populatedSource(), nil, nil)
	rec, err := o.Extract(context.Background(), "widget", "latest", DepthBasic, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	basic, ok := rec.(*BasicRecord)
	if !ok {
		t.Fatalf("expected *BasicRecord, got %T", rec)
	}
	if basic.Version != "2.1.0" {
		t.Errorf("expected resolved version 2.1.0, got %q", basic.Version)
	}
	if basic.Downloads != 42000 {
		t.Errorf("expected downloads 42000, got %d", basic.Downloads)
	}
	if basic.Narrative == "" {
		t.Error("basic record should carry a narrative")
	}
	if basic.ExpiresAt.Before(time.Now().Add(23 * time.Hour)) {
		t.Error("basic TTL should be ~24h")
	}
}

func TestExtractBasicIncludesManifest(t *testing.T) {
	server := registryServer(t)
	defer server.Close()
	src := populatedSource()

	o := NewOrchestrator(testRegistry(t, server.URL), src, nil, nil)
	rec, err := o.Extract(context.Background(), "widget", "latest", DepthBasic, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if rec.Base().Manifest != src.manifest {
		t.Errorf("basic record manifest = %q, want %q", rec.Base().Manifest, src.manifest)
	}

	// The manifest belongs to the serialized record too.
	payload, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if fields["manifest"] != src.manifest {
		t.Errorf("serialized manifest = %v, want %q", fields["manifest"], src.manifest)
	}
}

func TestExtractDegradesOnManifestFailure(t *testing.T) {
	server := registryServer(t)
	defer server.Close()
	src := populatedSource()
	src.manifestErr = errors.New("source view unavailable")

	o := NewOrchestrator(testRegistry(t, server.URL), src, nil, nil)
	rec, err := o.Extract(context.Background(), "widget", "latest", DepthBasic, Options{})
	if err != nil {
		t.Fatalf("manifest failure must not fail the extraction: %v", err)
	}
	if rec.Base().Manifest != "" {
		t.Errorf("failed manifest section should be empty, got %q", rec.Base().Manifest)
	}
	if rec.Base().Narrative == "" {
		t.Error("record should still carry a narrative")
	}
}

func TestExtractFullHonorsOptionFlags(t *testing.T) {
	server := registryServer(t)
	defer server.Close()
	src := populatedSource()

	o := NewOrchestrator(testRegistry(t, server.URL), src, nil, nil)

	rec, err := o.Extract(context.Background(), "widget", "latest", DepthFull, Options{Dependencies: true})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	full, ok := rec.(*FullRecord)
	if !ok {
		t.Fatalf("expected *FullRecord, got %T", rec)
	}
	if full.Dependencies == nil || full.Dependencies.TotalCount != 1 {
		t.Error("dependencies flag should populate the graph")
	}
	if full.Examples != nil {
		t.Error("examples were not requested")
	}

	rec, err = o.Extract(context.Background(), "widget", "latest", DepthFull, Options{Examples: true})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	full = rec.(*FullRecord)
	if full.Dependencies != nil {
		t.Error("dependencies were not requested")
	}
	if len(full.Examples) != 1 {
		t.Errorf("expected 1 example, got %d", len(full.Examples))
	}
}

func TestExtractDeepGathersEverything(t *testing.T) {
	server := registryServer(t)
	defer server.Close()

	o := NewOrchestrator(testRegistry(t, server.URL), populatedSource(), nil, nil)
	rec, err := o.Extract(context.Background(), "widget", "2.1.0", DepthDeep, Options{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	deep, ok := rec.(*DeepRecord)
	if !ok {
		t.Fatalf("expected *DeepRecord, got %T", rec)
	}
	if deep.Dependencies == nil || len(deep.Examples) == 0 {
		t.Error("deep extraction should gather dependencies and examples regardless of flags")
	}
	if deep.Manifest == "" {
		t.Error("deep extraction should fetch the manifest")
	}
	if deep.SourceTree == nil || deep.SourceTree.Stats.TotalFiles != 1 {
		t.Error("deep extraction should crawl the source tree")
	}
	if !strings.Contains(deep.Narrative, "widget") {
		t.Errorf("narrative should mention the crate: %q", deep.Narrative)
	}
	if deep.ExpiresAt.After(time.Now().Add(6*time.Hour + time.Minute)) {
		t.Error("deep TTL should be 6h")
	}
}

func TestExtractStubOnRegistryFailure(t *testing.T) {
	// A garbled response fails the fetch without tripping retry delays.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>registry is down</html>"))
	}))
	defer server.Close()

	o := NewOrchestrator(testRegistry(t, server.URL), populatedSource(), nil, nil)
	rec, err := o.Extract(context.Background(), "widget", "latest", DepthBasic, Options{})
	if err != nil {
		t.Fatalf("expected stub degradation, got error: %v", err)
	}
	if rec.Base().Version != StubVersion {
		t.Errorf("expected stub version %q, got %q", StubVersion, rec.Base().Version)
	}
	if rec.Base().Downloads != 0 {
		t.Error("stub metadata should carry zero downloads")
	}
	if rec.Base().Narrative == "" {
		t.Error("stub record should still carry a template narrative")
	}
}

func TestExtractCrateNotFound(t *testing.T) {
	server := registryServer(t)
	defer server.Close()

	o := NewOrchestrator(testRegistry(t, server.URL), populatedSource(), nil, nil)
	_, err := o.Extract(context.Background(), "no-such-crate", "latest", DepthBasic, Options{})
	if err == nil {
		t.Fatal("expected error for unknown crate")
	}
	if crerrors.GetCode(err) != crerrors.ErrCodeCrateNotFound {
		t.Errorf("expected CRATE_NOT_FOUND, got %v", err)
	}
}

func TestExtractDegradesOnSectionFailure(t *testing.T) {
	server := registryServer(t)
	defer server.Close()
	src := populatedSource()
	src.depsErr = errors.New("listing page unavailable")
	src.treeErr = errors.New("host unreachable")

	o := NewOrchestrator(testRegistry(t, server.URL), src, nil, nil)
	rec, err := o.Extract(context.Background(), "widget", "latest", DepthDeep, Options{})
	if err != nil {
		t.Fatalf("section failures must not fail the extraction: %v", err)
	}
	deep := rec.(*DeepRecord)
	if deep.Dependencies != nil || deep.SourceTree != nil {
		t.Error("failed sections should be absent")
	}
	if len(deep.Examples) == 0 || deep.Manifest == "" {
		t.Error("surviving sections should still be present")
	}
}
