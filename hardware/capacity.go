package hardware

import (
	"fmt"
	"math"
)

// ValidationError reports a numeric input that violates the non-negative
// contract of the capacity functions.
type ValidationError struct {
	Field string
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %g (must be non-negative)", e.Field, e.Value)
}

func checkNonNegative(field string, value float64) error {
	if value < 0 || math.IsNaN(value) {
		return &ValidationError{Field: field, Value: value}
	}
	return nil
}

// Tier is an ordinal bucket of GPU memory capacity. Higher values mean more
// VRAM headroom.
type Tier int

const (
	TierCPUOnly Tier = iota
	TierLow
	TierLowMid
	TierMid
	TierMidHigh
	TierHigh
	TierUltra
)

func (t Tier) String() string {
	switch t {
	case TierUltra:
		return "ultra"
	case TierHigh:
		return "high"
	case TierMidHigh:
		return "mid_high"
	case TierMid:
		return "mid"
	case TierLowMid:
		return "low_mid"
	case TierLow:
		return "low"
	default:
		return "cpu_only"
	}
}

// Label returns the human-readable tier name.
func (t Tier) Label() string {
	switch t {
	case TierUltra:
		return "Ultra (24 GB+)"
	case TierHigh:
		return "High (16 GB)"
	case TierMidHigh:
		return "Mid-High (12 GB)"
	case TierMid:
		return "Mid (8 GB)"
	case TierLowMid:
		return "Low-Mid (6 GB)"
	case TierLow:
		return "Low (4 GB)"
	default:
		return "CPU Only"
	}
}

// ClassifyTier buckets a VRAM capacity into its tier. Boundary values belong
// to the higher tier: exactly 24 GB is ultra.
func ClassifyTier(vramGB float64) (Tier, error) {
	if err := checkNonNegative("vramGB", vramGB); err != nil {
		return TierCPUOnly, err
	}
	switch {
	case vramGB >= 24:
		return TierUltra, nil
	case vramGB >= 16:
		return TierHigh, nil
	case vramGB >= 12:
		return TierMidHigh, nil
	case vramGB >= 8:
		return TierMid, nil
	case vramGB >= 6:
		return TierLowMid, nil
	case vramGB >= 4:
		return TierLow, nil
	default:
		return TierCPUOnly, nil
	}
}

// MaxModelGB returns the largest model file the profile can be expected to
// run. VRAM keeps 18% headroom for runtime overhead and display buffers;
// pure-CPU systems keep 45% of RAM free for the OS and the KV cache, a
// larger reserve because system memory is shared with everything else.
func MaxModelGB(p Profile) (float64, error) {
	if err := checkNonNegative("vramGB", p.VRAMGB); err != nil {
		return 0, err
	}
	if err := checkNonNegative("ramGB", p.RAMGB); err != nil {
		return 0, err
	}
	if p.VRAMGB > 0 {
		return p.VRAMGB * 0.82, nil
	}
	return p.RAMGB * 0.55, nil
}

// EstimateThroughput predicts generation speed in tokens per second for a
// model of the given file size. The estimate divides memory bandwidth by the
// per-token working set (weights plus 15% overhead). When the model does not
// fit comfortably in VRAM (no GPU, or the file exceeds 95% of VRAM) the
// estimate is clamped to a host-memory-bound ceiling of ramGB*0.8. Both
// clamp conditions are checked independently: unified-memory profiles report
// VRAM > 0 and still rely on the overflow clause.
//
// Returns 0 for a zero-size model, otherwise at least 1.
func EstimateThroughput(p Profile, modelSizeGB float64) (int, error) {
	if err := checkNonNegative("modelSizeGB", modelSizeGB); err != nil {
		return 0, err
	}
	if err := checkNonNegative("vramGB", p.VRAMGB); err != nil {
		return 0, err
	}
	if err := checkNonNegative("ramGB", p.RAMGB); err != nil {
		return 0, err
	}
	if modelSizeGB == 0 {
		return 0, nil
	}

	raw := float64(p.MemoryBandwidthGBs) / (modelSizeGB * 1.15)
	if p.VRAMGB == 0 || modelSizeGB > p.VRAMGB*0.95 {
		raw = math.Min(raw, p.RAMGB*0.8)
	}

	toks := int(math.Round(raw))
	if toks < 1 {
		toks = 1
	}
	return toks, nil
}

// Severity classes attached to speed labels, consumed by presentation only.
type Severity string

const (
	SeverityGood   Severity = "good"
	SeverityAccent Severity = "accent"
	SeverityWarn   Severity = "warn"
	SeverityBad    Severity = "bad"
)

// SpeedLabel maps a throughput estimate to a qualitative band. Exactly 40
// tokens/s belongs to the top band.
func SpeedLabel(tokensPerSecond int) (string, Severity) {
	switch {
	case tokensPerSecond >= 40:
		return "Blazing fast", SeverityGood
	case tokensPerSecond >= 20:
		return "Conversational", SeverityGood
	case tokensPerSecond >= 10:
		return "Comfortable", SeverityAccent
	case tokensPerSecond >= 5:
		return "Usable", SeverityWarn
	default:
		return "Slow", SeverityBad
	}
}

// EstimateVRAMUsage approximates total GPU memory needed to load a model:
// the weights plus a KV cache that grows linearly with context length. The
// 0.5 GB floor covers scratch buffers even at tiny contexts.
func EstimateVRAMUsage(modelSizeGB, contextKiloTokens float64) (float64, error) {
	if err := checkNonNegative("modelSizeGB", modelSizeGB); err != nil {
		return 0, err
	}
	if err := checkNonNegative("contextKiloTokens", contextKiloTokens); err != nil {
		return 0, err
	}
	kv := contextKiloTokens * 0.5 / 1024 * 8
	return modelSizeGB + math.Max(0.5, kv), nil
}

// DefaultContextKiloTokens is the context size assumed when the caller does
// not specify one.
const DefaultContextKiloTokens = 8
