package pathutil

import "testing"

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	paths := []string{
		"",
		"/",
		"/photos",
		"/photos/",
		"/photos///",
		"/photos/2024 Trip",
		"relative/dir/",
	}

	for _, p := range paths {
		once := Normalize(p)
		twice := Normalize(once)

		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", p, once, twice)
		}
	}
}

func TestNormalize_StripsTrailingSeparators(t *testing.T) {
	t.Parallel()

	if got := Normalize("/photos/cats/"); got != "/photos/cats" {
		t.Errorf("Normalize = %q, want %q", got, "/photos/cats")
	}

	if got := Normalize("/photos/cats///"); got != "/photos/cats" {
		t.Errorf("Normalize = %q, want %q", got, "/photos/cats")
	}
}

func TestNormalize_PreservesRootAndEmpty(t *testing.T) {
	t.Parallel()

	if got := Normalize(""); got != "" {
		t.Errorf("Normalize(\"\") = %q, want \"\"", got)
	}

	if got := Normalize("/"); got != "/" {
		t.Errorf("Normalize(\"/\") = %q, want \"/\"", got)
	}

	if got := Normalize("//"); got != "/" {
		t.Errorf("Normalize(\"//\") = %q, want \"/\"", got)
	}
}

func TestNormalize_NFC(t *testing.T) {
	t.Parallel()

	// "é" decomposed (e + combining acute) vs precomposed.
	decomposed := "/photos/café"
	precomposed := "/photos/café"

	if Normalize(decomposed) != Normalize(precomposed) {
		t.Errorf("NFC forms differ: %q vs %q", Normalize(decomposed), Normalize(precomposed))
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"", "", true},
		{"", "/photos", false},
		{"/photos", "", false},
		{"/photos", "/photos/", true},
		{"/Photos", "/photos", true},
		{"/photos", "/photos/cats", false},
	}

	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("Equal(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIsWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		parent, child string
		want          bool
	}{
		{"/photos", "/photos", true},
		{"/photos/", "/photos", true},
		{"/photos", "/photos/cats", true},
		{"/photos", "/Photos/Cats/2024", true},
		{"/photos", "/photoshoot", false},
		{"/photos/cats", "/photos", false},
		{"", "/photos", false},
		{"/", "/photos", true},
	}

	for _, tt := range tests {
		if got := IsWithin(tt.parent, tt.child); got != tt.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
		}
	}
}

func TestFold(t *testing.T) {
	t.Parallel()

	if Fold("/Photos/Cats/") != Fold("/photos/cats") {
		t.Error("Fold should collapse case and trailing separators")
	}
}
