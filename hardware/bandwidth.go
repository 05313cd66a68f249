package hardware

import "strings"

// bandwidthEntry maps a GPU name substring to its effective memory bandwidth
// in GB/s. Matching is case-insensitive, first match in declaration order
// wins, so more specific names ("4080 super") must precede their prefixes
// ("4080").
type bandwidthEntry struct {
	substr string
	gbs    int
}

var bandwidthTable = []bandwidthEntry{
	{"4090", 1008}, {"4080 super", 736}, {"4080", 717}, {"4070 ti super", 672}, {"4070 ti", 504},
	{"4070 super", 504}, {"4070", 504}, {"4060 ti", 288}, {"4060", 272},
	{"3090 ti", 1008}, {"3090", 936}, {"3080 ti", 912}, {"3080", 760}, {"3070 ti", 608},
	{"3070", 448}, {"3060 ti", 448}, {"3060", 360}, {"3050", 224},
	{"2080 ti", 616}, {"2080 super", 496}, {"2080", 448}, {"2070 super", 448}, {"2070", 448},
	{"2060 super", 448}, {"2060", 336}, {"1660 ti", 288}, {"1660 super", 336}, {"1660", 192},
	{"1650 super", 192}, {"1650", 128}, {"1080 ti", 484}, {"1080", 320}, {"1070 ti", 256},
	{"1070", 256}, {"1060", 192},
	{"7900 xtx", 960}, {"7900 xt", 800}, {"7800 xt", 624}, {"7700 xt", 432}, {"7600", 288},
	{"6950 xt", 576}, {"6900 xt", 512}, {"6800 xt", 512}, {"6700 xt", 384}, {"6600 xt", 256},
}

// Vendor fallbacks used when no table entry matches.
const (
	fallbackNvidiaGBs  = 300
	fallbackAMDGBs     = 400
	fallbackDefaultGBs = 50
)

// LookupBandwidth returns the estimated memory bandwidth in GB/s for a GPU.
// Unknown GPUs fall back to a per-vendor estimate; systems without a GPU get
// a dual-channel DDR figure.
func LookupBandwidth(gpuName string, vendor GPUVendor) int {
	lower := strings.ToLower(gpuName)
	for _, entry := range bandwidthTable {
		if strings.Contains(lower, entry.substr) {
			return entry.gbs
		}
	}
	switch vendor {
	case VendorNvidia:
		return fallbackNvidiaGBs
	case VendorAMD:
		return fallbackAMDGBs
	default:
		return fallbackDefaultGBs
	}
}
