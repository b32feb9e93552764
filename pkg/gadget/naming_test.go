package gadget

import "testing"

func TestListingNames(t *testing.T) {
	if got := BinarySummaryName("ls"); got != "ls.gdt.cnt" {
		t.Errorf("BinarySummaryName(ls) = %q", got)
	}

	tests := []struct {
		name    string
		listing bool
		summary bool
		binary  string
	}{
		{"ls.gdt", true, false, "ls"},
		{"ls.gdt.zst", true, false, "ls"},
		{"ls.gdt.gz", true, false, "ls"},
		{"ls.gdt.xz", true, false, "ls"},
		{"ls.gdt.cnt", false, true, "ls.gdt.cnt"},
		{"notes.txt", false, false, "notes.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsListing(tt.name); got != tt.listing {
				t.Errorf("IsListing() = %v, want %v", got, tt.listing)
			}
			if got := IsSummary(tt.name); got != tt.summary {
				t.Errorf("IsSummary() = %v, want %v", got, tt.summary)
			}
			if tt.listing {
				if got := TrimListingExt(tt.name); got != tt.binary {
					t.Errorf("TrimListingExt() = %q, want %q", got, tt.binary)
				}
			}
		})
	}
}
