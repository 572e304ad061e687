package resources

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func openTestDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "resources.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d
}

func TestSeedIncludesNationalHelpline(t *testing.T) {
	d := openTestDirectory(t)
	all, err := d.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("directory empty after seed")
	}
	found := false
	for _, h := range all {
		if h.Phone == "1195" {
			found = true
			if !h.AllHours {
				t.Error("national helpline must be marked 24h")
			}
		}
	}
	if !found {
		t.Fatal("national GBV helpline 1195 missing from seed")
	}
}

func TestSeedRunsOnce(t *testing.T) {
	d := openTestDirectory(t)
	before, _ := d.All()
	if err := d.seed(); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	after, _ := d.All()
	if len(after) != len(before) {
		t.Fatalf("seed duplicated entries: %d -> %d", len(before), len(after))
	}
}

func TestByKind(t *testing.T) {
	d := openTestDirectory(t)
	hotlines, err := d.ByKind("hotline")
	if err != nil {
		t.Fatalf("ByKind: %v", err)
	}
	if len(hotlines) == 0 {
		t.Fatal("no hotlines in seed")
	}
	for _, h := range hotlines {
		if h.Kind != "hotline" {
			t.Fatalf("entry %q has kind %q", h.Name, h.Kind)
		}
	}
}

func TestAdd(t *testing.T) {
	d := openTestDirectory(t)
	before, _ := d.All()
	if err := d.Add(&Helpline{Name: "Safe Shelter Mombasa", Phone: "+254 700 000 000", Kind: "shelter", Region: "Mombasa"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	after, _ := d.All()
	if len(after) != len(before)+1 {
		t.Fatalf("entries = %d, want %d", len(after), len(before)+1)
	}
}
