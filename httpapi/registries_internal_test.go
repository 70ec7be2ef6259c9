package httpapi

import "testing"

func TestSplitPackageID(t *testing.T) {
	cases := []struct {
		id      string
		name    string
		version string
		ok      bool
	}{
		{"foo-1.0.0", "foo", "1.0.0", true},
		{"scan-worker-2.3.1", "scan-worker", "2.3.1", true},
		{"foo-1.0.0-rc.1", "foo", "1.0.0-rc.1", true},
		{"no-version-here", "", "", false},
	}
	for _, c := range cases {
		name, version, ok := splitPackageID(c.id)
		if ok != c.ok {
			t.Fatalf("splitPackageID(%q) ok = %v, want %v", c.id, ok, c.ok)
		}
		if ok && (name != c.name || version != c.version) {
			t.Fatalf("splitPackageID(%q) = (%q, %q), want (%q, %q)", c.id, name, version, c.name, c.version)
		}
	}
}
