package version

import (
	"strings"
	"testing"
)

func TestSupportedModels(t *testing.T) {
	got := SupportedModels()
	want := []string{"INT-44HDX", "INT-66HDX", "INT-88HDX"}
	if len(got) != len(want) {
		t.Fatalf("SupportedModels() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SupportedModels()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFull(t *testing.T) {
	out := Full()
	if !strings.HasPrefix(out, "intmatrix "+Version) {
		t.Errorf("Full() = %q, want version first", out)
	}
	if !strings.Contains(out, "INT-88HDX") {
		t.Errorf("Full() = %q, want model list", out)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "intmatrix/"+Version {
		t.Errorf("UserAgent() = %q", got)
	}
}
