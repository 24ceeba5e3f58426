package textutil

import "testing"

func TestUpperTurkish(t *testing.T) {
	cases := map[string]string{
		"siyah":   "SİYAH",
		"kırmızı": "KIRMIZI",
		"large":   "LARGE",
		"":        "",
	}
	for input, expected := range cases {
		if got := UpperTurkish(input); got != expected {
			t.Errorf("UpperTurkish(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestSKUFragment(t *testing.T) {
	t.Run("truncates and uppercases", func(t *testing.T) {
		if got := SKUFragment("siyah", 4); got != "SİYA" {
			t.Fatalf("unexpected fragment %q", got)
		}
	})

	t.Run("removes interior whitespace before truncating", func(t *testing.T) {
		if got := SKUFragment("X L", 4); got != "XL" {
			t.Fatalf("unexpected fragment %q", got)
		}
	})

	t.Run("strips punctuation before truncating", func(t *testing.T) {
		if got := SKUFragment("X-Large", 4); got != "XLAR" {
			t.Fatalf("unexpected fragment %q", got)
		}
		if got := SKUFragment("40/42", 4); got != "4042" {
			t.Fatalf("unexpected fragment %q", got)
		}
	})

	t.Run("keeps turkish letters", func(t *testing.T) {
		if got := SKUFragment("ışık mavi", 4); got != "IŞIK" {
			t.Fatalf("unexpected fragment %q", got)
		}
	})

	t.Run("keeps short names whole", func(t *testing.T) {
		if got := SKUFragment("XL", 4); got != "XL" {
			t.Fatalf("unexpected fragment %q", got)
		}
	})
}

func TestSKURoot(t *testing.T) {
	if got := SKURoot("prod_01hxyzabcd", 8); got != "HXYZABCD" {
		t.Fatalf("unexpected root %q", got)
	}
	if got := SKURoot("p1", 8); got != "P1" {
		t.Fatalf("expected short ids kept whole, got %q", got)
	}
}

func TestBuildSKU(t *testing.T) {
	if got := BuildSKU("ZABCD123", "SİYA", "XL"); got != "ZABCD123-SİYA-XL" {
		t.Fatalf("unexpected sku %q", got)
	}
	if got := BuildSKU("ZABCD123", "", "XL"); got != "ZABCD123-XL" {
		t.Fatalf("expected empty fragments skipped, got %q", got)
	}
}
