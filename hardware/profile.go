package hardware

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// GPUVendor identifies the vendor of the primary GPU.
type GPUVendor string

const (
	VendorNone   GPUVendor = "none"
	VendorNvidia GPUVendor = "nvidia"
	VendorAMD    GPUVendor = "amd"
	VendorIntel  GPUVendor = "intel"

	// Apple Silicon exposes unified memory to the GPU rather than
	// dedicated VRAM; capacity math treats the GPU-addressable share
	// as VRAM.
	VendorApple GPUVendor = "apple"
)

// Profile is a snapshot of the machine's compute hardware plus the derived
// memory bandwidth estimate. A Profile is built once by Detect and replaced
// wholesale on refresh; it is never partially updated.
type Profile struct {
	CPUName            string    `json:"cpuName"`
	CPUCores           int       `json:"cpuCores"`
	CPUThreads         int       `json:"cpuThreads"`
	RAMGB              float64   `json:"ramGB"`
	GPUName            string    `json:"gpuName"`
	GPUVendor          GPUVendor `json:"gpuVendor"`
	VRAMGB             float64   `json:"vramGB"`
	MemoryBandwidthGBs int       `json:"memoryBandwidthGBs"`
	OSName             string    `json:"osName"`
}

// Detect probes the local machine and returns a complete Profile. CPU, RAM
// and GPU probes run concurrently; each falls back to a conservative default
// when its tool is unavailable, so Detect always returns a usable snapshot.
func Detect() Profile {
	p := Profile{
		CPUName:   "Unknown CPU",
		GPUName:   "No dedicated GPU",
		GPUVendor: VendorNone,
		OSName:    runtime.GOOS,
	}

	var g errgroup.Group
	var gpu gpuProbe

	g.Go(func() error {
		p.CPUName = detectCPUName()
		return nil
	})
	g.Go(func() error {
		p.CPUCores = detectPhysicalCores()
		p.CPUThreads = runtime.NumCPU()
		return nil
	})
	g.Go(func() error {
		p.RAMGB = detectTotalRAM()
		return nil
	})
	g.Go(func() error {
		gpu = detectGPU()
		return nil
	})
	g.Wait()

	if gpu.vendor != VendorNone {
		p.GPUName = gpu.name
		p.GPUVendor = gpu.vendor
		p.VRAMGB = gpu.vramGB
	}
	p.normalize()
	p.MemoryBandwidthGBs = LookupBandwidth(p.GPUName, p.GPUVendor)
	return p
}

// normalize enforces the snapshot invariant: a profile without GPU memory
// reports no GPU vendor, and a vendorless profile reports no GPU memory.
func (p *Profile) normalize() {
	if p.VRAMGB <= 0 {
		p.VRAMGB = 0
		p.GPUVendor = VendorNone
		p.GPUName = "No dedicated GPU"
	}
	if p.GPUVendor == VendorNone {
		p.VRAMGB = 0
	}
	if p.CPUCores < 1 {
		p.CPUCores = 1
	}
	if p.CPUThreads < p.CPUCores {
		p.CPUThreads = p.CPUCores
	}
}

// Export renders a plain-text system profile suitable for pasting into a
// support thread or bug report.
func (p Profile) Export() string {
	tier, _ := ClassifyTier(p.VRAMGB)
	max, _ := MaxModelGB(p)
	return fmt.Sprintf(
		"=== ModelCompass System Profile ===\n"+
			"CPU: %s (%dC/%dT)\n"+
			"RAM: %.1f GB\n"+
			"GPU: %s\n"+
			"VRAM: %.1f GB\n"+
			"Vendor: %s\n"+
			"Tier: %s\n"+
			"Bandwidth: ~%d GB/s\n"+
			"Max GGUF: ~%.1f GB\n"+
			"OS: %s\n",
		p.CPUName, p.CPUCores, p.CPUThreads,
		p.RAMGB, p.GPUName, p.VRAMGB, p.GPUVendor,
		tier.Label(), p.MemoryBandwidthGBs, max, p.OSName)
}
