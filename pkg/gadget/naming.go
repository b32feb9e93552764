package gadget

import "strings"

// File naming conventions shared by generation, categorization and
// aggregation:
//
//	binaries/<set>/ls  ->  gadgets/<set>/ls.gdt  ->  gadgets/<set>/ls.gdt.cnt
const (
	ListingExt = ".gdt"
	SummaryExt = ".cnt"
)

// ListingName returns the gadget listing file name for a binary.
func ListingName(binary string) string {
	return binary + ListingExt
}

// SummaryName returns the summary file name for a gadget listing.
func SummaryName(listing string) string {
	return listing + SummaryExt
}

// BinarySummaryName returns the summary file name for a binary.
func BinarySummaryName(binary string) string {
	return SummaryName(ListingName(binary))
}

// IsListing reports whether name is a gadget listing, compressed or not.
func IsListing(name string) bool {
	for _, ext := range []string{ListingExt, ListingExt + ".zst", ListingExt + ".gz", ListingExt + ".xz"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// IsSummary reports whether name is a summary file.
func IsSummary(name string) bool {
	return strings.HasSuffix(name, SummaryExt)
}

// TrimListingExt strips the listing extension and any compression suffix,
// returning the binary name.
func TrimListingExt(name string) string {
	name = strings.TrimSuffix(name, ".zst")
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".xz")
	return strings.TrimSuffix(name, ListingExt)
}
