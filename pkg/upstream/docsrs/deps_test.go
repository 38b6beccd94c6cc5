package docsrs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matzehuels/crateintel/pkg/cache"
	"github.com/matzehuels/crateintel/pkg/docsource"
	"github.com/matzehuels/crateintel/pkg/upstream/crates"
)

const depSectionPage = `<html><body><ul class="pure-menu-list">
<li class="pure-menu-heading">Dependencies</li>
<li class="pure-menu-item"><a class="pure-menu-link" href="/crate/serde_derive/1.0.193">serde_derive ^1.0 <i class="kind">normal</i></a></li>
<li class="pure-menu-item"><a class="pure-menu-link" href="/crate/serde_json/1.0.108">serde_json ^1.0 <i class="kind">dev</i></a></li>
<li class="pure-menu-item"><a class="pure-menu-link" href="/crate/rkyv/0.7.42">rkyv ^0.7 <i class="kind">normal optional</i></a></li>
<li class="pure-menu-heading">Versions</li>
<li class="pure-menu-item"><a class="pure-menu-link" href="/crate/serde/1.0.192">1.0.192</a></li>
</ul></body></html>`

const depLinksOnlyPage = `<html><body>
<div class="sidebar">
<a href="/crate/quote/1.0.33">quote ^1.0</a>
<a href="/crate/syn/2.0.39">syn ^2.0</a>
<a href="/crate/serde/1.0.193">serde ^1.0</a>
<a href="/about">About docs.rs</a>
</div></body></html>`

func TestDependencies_SectionStrategy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(depSectionPage))
	}))
	defer server.Close()

	s := testSource(t, server.URL)
	g, err := s.Dependencies(context.Background(), "serde", "1.0.193")
	if err != nil {
		t.Fatalf("Dependencies failed: %v", err)
	}

	if g.Provenance != docsource.ProvenanceSection {
		t.Errorf("Provenance = %q, want section", g.Provenance)
	}
	if g.TotalCount != 3 {
		t.Fatalf("TotalCount = %d, want 3 (entries beyond the section heading must not leak in)", g.TotalCount)
	}
	if g.RuntimeCount != 2 {
		t.Errorf("RuntimeCount = %d, want 2", g.RuntimeCount)
	}

	byName := make(map[string]docsource.DependencyEntry)
	for _, e := range g.Entries {
		byName[e.Name] = e
	}
	if e := byName["serde_derive"]; e.Req != "^1.0" || e.Kind != docsource.KindNormal {
		t.Errorf("serde_derive = %+v", e)
	}
	if e := byName["serde_json"]; e.Kind != docsource.KindDev {
		t.Errorf("serde_json kind = %q, want dev", e.Kind)
	}
	if e := byName["rkyv"]; !e.Optional {
		t.Errorf("rkyv = %+v, want optional", e)
	}
}

func TestDependencies_LinksFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(depLinksOnlyPage))
	}))
	defer server.Close()

	s := testSource(t, server.URL)
	g, err := s.Dependencies(context.Background(), "serde", "1.0.193")
	if err != nil {
		t.Fatalf("Dependencies failed: %v", err)
	}

	if g.Provenance != docsource.ProvenanceLinks {
		t.Errorf("Provenance = %q, want links", g.Provenance)
	}
	// Self-reference excluded, non-dependency links ignored.
	if g.TotalCount != 2 {
		t.Fatalf("TotalCount = %d, want 2 (%+v)", g.TotalCount, g.Entries)
	}
	for _, e := range g.Entries {
		if e.Name == "serde" {
			t.Error("self-reference survived link scanning")
		}
	}
}

func TestDependencies_RegistryFallback(t *testing.T) {
	// The docs page is down; the registry dependency API still answers.
	docsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer docsServer.Close()

	regServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dependencies":[
			{"crate_id":"serde_derive","req":"^1.0","kind":"normal","optional":false},
			{"crate_id":"serde_test","req":"^1.0","kind":"dev","optional":false}
		]}`))
	}))
	defer regServer.Close()

	reg := crates.NewClient(cache.NewMemoryCache(), time.Hour)
	reg.SetBaseURL(regServer.URL)
	s := New(cache.NewMemoryCache(), reg, time.Hour, WithBaseURL(docsServer.URL), WithFetchDelay(0))

	g, err := s.Dependencies(context.Background(), "serde", "1.0.193")
	if err != nil {
		t.Fatalf("Dependencies failed: %v", err)
	}
	if g.Provenance != docsource.ProvenanceRegistryAPI {
		t.Errorf("Provenance = %q, want registry-api", g.Provenance)
	}
	// Only runtime-kind entries survive the registry fallback.
	if g.TotalCount != 1 || g.Entries[0].Name != "serde_derive" {
		t.Errorf("Entries = %+v", g.Entries)
	}
}
