package docsrs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matzehuels/crateintel/pkg/docsource"
)

const mainDocPage = `<html><body>
<div class="docblock">
<p>Serde is a framework for serializing and deserializing Rust data structures.</p>
<pre>use serde::{Serialize, Deserialize};

#[derive(Serialize, Deserialize)]
struct Point { x: i32, y: i32 }</pre>
<pre>short</pre>
<pre>this block is long enough but carries no lexical signal of being real usage code at all</pre>
</div>
<h2 id="examples">Examples</h2>
<p>Convert a Point to JSON:</p>
<pre>let json = serde_json::to_string(&amp;point)?;</pre>
</body></html>`

const structPage = `<html><body><div class="docblock">
<pre>use demo::Client;

let client = Client::new("token");
client.send()?;</pre>
</div></body></html>`

func TestExamples(t *testing.T) {
	var fetched []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched = append(fetched, r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, "/demo/"):
			w.Write([]byte(mainDocPage))
		case strings.HasSuffix(r.URL.Path, "struct.Client.html"):
			w.Write([]byte(structPage))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	s := testSource(t, server.URL)
	examples, err := s.Examples(context.Background(), "demo", "1.0.0")
	if err != nil {
		t.Fatalf("Examples failed: %v", err)
	}

	if len(examples) != 3 {
		t.Fatalf("len(examples) = %d, want 3: %+v", len(examples), examples)
	}

	// Heading-derived example sorts first despite being the shortest.
	if examples[0].Source != docsource.SourceExamplesSection {
		t.Errorf("examples[0].Source = %q, want examples-section", examples[0].Source)
	}
	if examples[0].Description != "Examples" {
		t.Errorf("examples[0].Description = %q", examples[0].Description)
	}
	if !strings.Contains(examples[0].Code, "serde_json::to_string(&point)") {
		t.Errorf("entities not decoded: %q", examples[0].Code)
	}

	// The derive block passes the signal filter; the signal-free block and
	// the short block do not.
	var sources []docsource.ExampleSource
	for _, ex := range examples {
		sources = append(sources, ex.Source)
		if ex.Language != "rust" {
			t.Errorf("Language = %q", ex.Language)
		}
	}
	wantSources := []docsource.ExampleSource{
		docsource.SourceExamplesSection,
		docsource.SourceMainDoc,
		docsource.SourceMethodDoc,
	}
	for i, want := range wantSources {
		if sources[i] != want {
			t.Errorf("sources[%d] = %q, want %q", i, sources[i], want)
		}
	}

	// Secondary page probing hit the conventional pages.
	probed := false
	for _, p := range fetched {
		if strings.HasSuffix(p, "struct.Client.html") {
			probed = true
		}
	}
	if !probed {
		t.Error("secondary pages were not probed")
	}
}

func TestExamples_MainPageUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := testSource(t, server.URL)
	examples, err := s.Examples(context.Background(), "demo", "1.0.0")
	if err != nil {
		t.Fatalf("Examples should degrade, got error: %v", err)
	}
	if len(examples) != 0 {
		t.Errorf("examples = %+v, want none", examples)
	}
}

func TestHasUsageSignal(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"use serde::Serialize;", true},
		{"serde_json::to_string(&x)", true},
		{"fn main() { println!(); }", true},
		{"#[derive(Debug)]", true},
		{"let x = 1; let y = 2;", false},
	}
	for _, tt := range tests {
		if got := hasUsageSignal(tt.code); got != tt.want {
			t.Errorf("hasUsageSignal(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
