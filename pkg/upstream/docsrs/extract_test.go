package docsrs

import "testing"

func TestExtractSourceText(t *testing.T) {
	page := `<html><body>
	<div id="source-code">
	<pre><span class="kw">pub</span> <span class="kw">fn</span> demo() -&gt; u8 {` + "\r\n" + `    1` + "\r\n" + `}</pre>
	</div></body></html>`

	text, err := extractSourceText(page)
	if err != nil {
		t.Fatalf("extractSourceText failed: %v", err)
	}
	want := "pub fn demo() -> u8 {\n    1\n}"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestExtractSourceText_FallbackSelectors(t *testing.T) {
	// No #source-code container; generic pre should still match.
	page := `<html><body><pre class="rust">use serde::Serialize;</pre></body></html>`
	text, err := extractSourceText(page)
	if err != nil {
		t.Fatalf("extractSourceText failed: %v", err)
	}
	if text != "use serde::Serialize;" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractSourceText_StripsLineNumbers(t *testing.T) {
	page := `<html><body><div class="source-code"><pre><span class="line-numbers">1
2</span>fn a() {}</pre></div></body></html>`
	text, err := extractSourceText(page)
	if err != nil {
		t.Fatalf("extractSourceText failed: %v", err)
	}
	if text != "fn a() {}" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractSourceText_NoContainer(t *testing.T) {
	if _, err := extractSourceText("<html><body><p>404</p></body></html>"); err == nil {
		t.Fatal("expected error for page without source container")
	}
}

func TestParseListing(t *testing.T) {
	page := `<html><body><div class="package-page-container">
	<a href="../"><i class="folder-up"></i>..</a>
	<a href="src/"><i class="fa folder"></i>src</a>
	<a href="benches/">benches/</a>
	<a href="Cargo.toml"><i class="fa file"></i>Cargo.toml</a>
	<a href="README.md">README.md</a>
	<a href="LICENSE">LICENSE</a>
	<a href="/crate/serde/1.0.193">serde</a>
	<a href="https://docs.rs/about">About</a>
	</div></body></html>`

	entries, err := parseListing(page)
	if err != nil {
		t.Fatalf("parseListing failed: %v", err)
	}

	got := make(map[string]bool)
	for _, e := range entries {
		got[e.name] = e.isDir
	}

	want := map[string]bool{
		"src":        true,
		"benches":    true,
		"Cargo.toml": false,
		"README.md":  false,
		"LICENSE":    false,
	}
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for name, isDir := range want {
		if gotDir, ok := got[name]; !ok || gotDir != isDir {
			t.Errorf("entry %q: isDir = %v, present = %v; want %v", name, gotDir, ok, isDir)
		}
	}
}

func TestClassifyListingEntry_ExtensionlessDirs(t *testing.T) {
	page := `<html><body><a href="examples">examples</a><a href="Makefile">Makefile</a></body></html>`
	entries, err := parseListing(page)
	if err != nil {
		t.Fatalf("parseListing failed: %v", err)
	}
	for _, e := range entries {
		switch e.name {
		case "examples":
			if !e.isDir {
				t.Error("examples should classify as directory")
			}
		case "Makefile":
			if e.isDir {
				t.Error("Makefile should classify as file")
			}
		}
	}
}
