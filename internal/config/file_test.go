package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugins.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestParseFile_Sections(t *testing.T) {
	path := writeTemp(t, `
"*":
  query_timeout: 10s
  amihost: 127.0.0.2
asteriskstats:
  amihost: 192.168.1.10
  amiport: 5038
  list_codecs: [alaw, ulaw, gsm]
  list_trunks: PSTN=Zap/(?P<num>\d+)=1-3
ntpstats:
`)
	f, err := ParseFile(path, false)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	sec := f.Section("asteriskstats")
	want := map[string]string{
		"query_timeout": "10s",
		"amihost":       "192.168.1.10",
		"amiport":       "5038",
		"list_codecs":   "alaw,ulaw,gsm",
		"list_trunks":   `PSTN=Zap/(?P<num>\d+)=1-3`,
	}
	for k, v := range want {
		if sec[k] != v {
			t.Errorf("section[%q] = %q, want %q", k, sec[k], v)
		}
	}

	if got := f.Section("ntpstats")["amihost"]; got != "127.0.0.2" {
		t.Errorf("ntpstats amihost = %q, want wildcard value", got)
	}
}

func TestParseFile_MissingOptional(t *testing.T) {
	f, err := ParseFile(filepath.Join(t.TempDir(), "nope.yaml"), true)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(f) != 0 {
		t.Errorf("len(File) = %d, want 0", len(f))
	}
}

func TestParseFile_MissingRequired(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "nope.yaml"), false); err == nil {
		t.Fatal("ParseFile() = nil error, want error for missing file")
	}
}

func TestParseFile_RejectsNestedMapping(t *testing.T) {
	path := writeTemp(t, `
pgstats:
  pghost:
    primary: db1
`)
	if _, err := ParseFile(path, false); err == nil {
		t.Fatal("ParseFile() = nil error, want error for nested mapping")
	}
}

func TestParseFile_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "asteriskstats: [unterminated\n")
	if _, err := ParseFile(path, false); err == nil {
		t.Fatal("ParseFile() = nil error, want parse error")
	}
}
