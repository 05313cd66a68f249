package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gpuProfile(vramGB float64, bandwidthGBs int) Profile {
	vendor := VendorNvidia
	if vramGB == 0 {
		vendor = VendorNone
	}
	return Profile{
		RAMGB:              32,
		GPUVendor:          vendor,
		VRAMGB:             vramGB,
		MemoryBandwidthGBs: bandwidthGBs,
	}
}

func TestClassifyTierBoundaries(t *testing.T) {
	tests := []struct {
		vramGB float64
		want   Tier
	}{
		{0, TierCPUOnly},
		{3.9, TierCPUOnly},
		{4, TierLow},
		{5.9, TierLow},
		{6, TierLowMid},
		{8, TierMid},
		{11.9, TierMid},
		{12, TierMidHigh},
		{16, TierHigh},
		{23.9, TierHigh},
		{24, TierUltra},
		{48, TierUltra},
	}

	for _, tt := range tests {
		got, err := ClassifyTier(tt.vramGB)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "vramGB=%g", tt.vramGB)
	}
}

func TestClassifyTierMonotonic(t *testing.T) {
	prev := TierCPUOnly
	for vram := 0.0; vram <= 32; vram += 0.25 {
		tier, err := ClassifyTier(vram)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tier, prev, "tier regressed at vramGB=%g", vram)
		prev = tier
	}
}

func TestClassifyTierRejectsNegative(t *testing.T) {
	_, err := ClassifyTier(-1)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "vramGB", verr.Field)
}

func TestMaxModelGBUsesVRAMWhenPresent(t *testing.T) {
	p := Profile{RAMGB: 32, VRAMGB: 8, GPUVendor: VendorNvidia}
	got, err := MaxModelGB(p)
	require.NoError(t, err)
	assert.InDelta(t, 6.56, got, 1e-9)
}

func TestMaxModelGBFallsBackToRAM(t *testing.T) {
	p := Profile{RAMGB: 16, VRAMGB: 0, GPUVendor: VendorNone}
	got, err := MaxModelGB(p)
	require.NoError(t, err)
	assert.InDelta(t, 8.8, got, 1e-9)
}

func TestMaxModelGBScalesLinearly(t *testing.T) {
	base, err := MaxModelGB(Profile{RAMGB: 32, VRAMGB: 6})
	require.NoError(t, err)
	doubled, err := MaxModelGB(Profile{RAMGB: 32, VRAMGB: 12})
	require.NoError(t, err)
	assert.InDelta(t, base*2, doubled, 1e-9)

	ramBase, err := MaxModelGB(Profile{RAMGB: 8, VRAMGB: 0})
	require.NoError(t, err)
	ramDoubled, err := MaxModelGB(Profile{RAMGB: 16, VRAMGB: 0})
	require.NoError(t, err)
	assert.InDelta(t, ramBase*2, ramDoubled, 1e-9)
}

func TestEstimateThroughputZeroSize(t *testing.T) {
	toks, err := EstimateThroughput(gpuProfile(8, 504), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, toks)
}

func TestEstimateThroughputFitsInVRAM(t *testing.T) {
	// 504 / (5.2 * 1.15) = 84.28 -> 84
	toks, err := EstimateThroughput(gpuProfile(8, 504), 5.2)
	require.NoError(t, err)
	assert.Equal(t, 84, toks)

	label, severity := SpeedLabel(toks)
	assert.Equal(t, "Blazing fast", label)
	assert.Equal(t, SeverityGood, severity)
}

func TestEstimateThroughputClampsToRAMWhenNoGPU(t *testing.T) {
	p := Profile{RAMGB: 16, VRAMGB: 0, MemoryBandwidthGBs: 50}
	toks, err := EstimateThroughput(p, 8)
	require.NoError(t, err)
	// raw = 50/(8*1.15) = 5.43, below the 12.8 RAM cap
	assert.Equal(t, 5, toks)

	// with a high bandwidth figure the RAM cap kicks in
	p.MemoryBandwidthGBs = 500
	toks, err = EstimateThroughput(p, 8)
	require.NoError(t, err)
	assert.Equal(t, 13, toks) // min(54.3, 16*0.8=12.8) -> 13
}

func TestEstimateThroughputClampsOnVRAMOverflow(t *testing.T) {
	// 10 GB model on an 8 GB card spills to system memory
	p := gpuProfile(8, 504)
	toks, err := EstimateThroughput(p, 10)
	require.NoError(t, err)
	// raw = 504/11.5 = 43.8, clamped to 32*0.8 = 25.6 -> 26
	assert.Equal(t, 26, toks)
}

func TestEstimateThroughputMonotonicInSize(t *testing.T) {
	p := gpuProfile(12, 504)
	prev := int(^uint(0) >> 1)
	for size := 0.5; size <= 30; size += 0.5 {
		toks, err := EstimateThroughput(p, size)
		require.NoError(t, err)
		assert.LessOrEqual(t, toks, prev, "throughput increased at size=%g", size)
		prev = toks
	}
}

func TestEstimateThroughputNeverBelowOne(t *testing.T) {
	p := Profile{RAMGB: 4, VRAMGB: 0, MemoryBandwidthGBs: 50}
	toks, err := EstimateThroughput(p, 200)
	require.NoError(t, err)
	assert.Equal(t, 1, toks)
}

func TestEstimateThroughputRejectsNegativeSize(t *testing.T) {
	_, err := EstimateThroughput(gpuProfile(8, 504), -1)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSpeedLabelBands(t *testing.T) {
	tests := []struct {
		toks     int
		label    string
		severity Severity
	}{
		{120, "Blazing fast", SeverityGood},
		{40, "Blazing fast", SeverityGood},
		{39, "Conversational", SeverityGood},
		{20, "Conversational", SeverityGood},
		{19, "Comfortable", SeverityAccent},
		{10, "Comfortable", SeverityAccent},
		{9, "Usable", SeverityWarn},
		{5, "Usable", SeverityWarn},
		{4, "Slow", SeverityBad},
		{0, "Slow", SeverityBad},
	}
	for _, tt := range tests {
		label, severity := SpeedLabel(tt.toks)
		assert.Equal(t, tt.label, label, "toks=%d", tt.toks)
		assert.Equal(t, tt.severity, severity, "toks=%d", tt.toks)
	}
}

func TestEstimateVRAMUsage(t *testing.T) {
	// 8K context: kv = 8 * 0.5 / 1024 * 8 = 0.03125, floored to 0.5
	got, err := EstimateVRAMUsage(5.2, 8)
	require.NoError(t, err)
	assert.InDelta(t, 5.7, got, 1e-9)

	// large context dominates the floor: 256K -> kv = 1.0
	got, err = EstimateVRAMUsage(5.2, 256)
	require.NoError(t, err)
	assert.InDelta(t, 6.2, got, 1e-9)

	// zero context still reserves the minimum overhead
	got, err = EstimateVRAMUsage(5.2, 0)
	require.NoError(t, err)
	assert.InDelta(t, 5.7, got, 1e-9)
}

func TestProfileNormalizeInvariant(t *testing.T) {
	p := Profile{GPUVendor: VendorNvidia, VRAMGB: 0, CPUCores: 4, CPUThreads: 8}
	p.normalize()
	assert.Equal(t, VendorNone, p.GPUVendor)
	assert.Zero(t, p.VRAMGB)

	p = Profile{GPUVendor: VendorNone, VRAMGB: 8, CPUCores: 4, CPUThreads: 8}
	p.normalize()
	assert.Zero(t, p.VRAMGB)
}
