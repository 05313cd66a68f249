package hardware

import (
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

type gpuProbe struct {
	name   string
	vendor GPUVendor
	vramGB float64
}

// detectGPU probes for a dedicated GPU, trying vendor tools in order of how
// reliable their memory reporting is. A zero probe means no usable GPU.
func detectGPU() gpuProbe {
	if probe, ok := detectNvidiaGPU(); ok {
		return probe
	}
	if probe, ok := detectAMDGPU(); ok {
		return probe
	}
	if runtime.GOOS == "darwin" {
		if probe, ok := detectAppleGPU(); ok {
			return probe
		}
	}
	if runtime.GOOS == "windows" {
		if probe, ok := detectWindowsVideoController(); ok {
			return probe
		}
	}
	if runtime.GOOS == "linux" {
		if probe, ok := detectPCIGPU(); ok {
			return probe
		}
	}
	return gpuProbe{vendor: VendorNone}
}

// detectNvidiaGPU queries nvidia-smi, also checking the well-known Windows
// install locations when the binary is not on PATH.
func detectNvidiaGPU() (gpuProbe, bool) {
	candidates := []string{"nvidia-smi"}
	if runtime.GOOS == "windows" {
		candidates = append(candidates,
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`)
	}

	for _, bin := range candidates {
		cmd := exec.Command(bin, "--query-gpu=name,memory.total", "--format=csv,noheader,nounits")
		output, err := cmd.Output()
		if err != nil {
			continue
		}
		// first line is the primary GPU
		line := strings.SplitN(strings.TrimSpace(string(output)), "\n", 2)[0]
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		memMB, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || memMB <= 0 {
			continue
		}
		return gpuProbe{
			name:   name,
			vendor: VendorNvidia,
			vramGB: roundGB(memMB / 1024.0),
		}, true
	}
	return gpuProbe{}, false
}

// detectAMDGPU queries rocm-smi for VRAM size.
func detectAMDGPU() (gpuProbe, bool) {
	cmd := exec.Command("rocm-smi", "--showproductname", "--showmeminfo", "vram", "--csv")
	output, err := cmd.Output()
	if err != nil {
		return gpuProbe{}, false
	}

	probe := gpuProbe{vendor: VendorAMD, name: "AMD GPU"}
	for _, line := range strings.Split(string(output), "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "card series") || strings.Contains(lower, "radeon") {
			parts := strings.Split(line, ",")
			if len(parts) >= 2 {
				probe.name = strings.TrimSpace(parts[len(parts)-1])
			}
		}
		if strings.Contains(lower, "vram total") {
			fields := strings.Split(line, ",")
			if len(fields) >= 2 {
				if bytes, err := strconv.ParseFloat(strings.TrimSpace(fields[len(fields)-1]), 64); err == nil && bytes > 0 {
					probe.vramGB = roundGB(bytes / (1024 * 1024 * 1024))
				}
			}
		}
	}
	if probe.vramGB <= 0 {
		return gpuProbe{}, false
	}
	return probe, true
}

// detectAppleGPU reports Apple Silicon unified memory. Up to 75% of system
// memory is addressable by the GPU, so that share is reported as VRAM.
func detectAppleGPU() (gpuProbe, bool) {
	cmd := exec.Command("system_profiler", "SPDisplaysDataType")
	output, err := cmd.Output()
	if err != nil {
		return gpuProbe{}, false
	}
	text := string(output)
	if !strings.Contains(text, "Apple M") {
		return gpuProbe{}, false
	}

	name := "Apple Silicon GPU"
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Chipset Model:") {
			name = strings.TrimSpace(strings.TrimPrefix(trimmed, "Chipset Model:"))
			break
		}
	}

	memOut, err := exec.Command("sysctl", "-n", "hw.memsize").Output()
	if err != nil {
		return gpuProbe{}, false
	}
	memBytes, err := strconv.ParseFloat(strings.TrimSpace(string(memOut)), 64)
	if err != nil || memBytes <= 0 {
		return gpuProbe{}, false
	}
	return gpuProbe{
		name:   name,
		vendor: VendorApple,
		vramGB: roundGB(memBytes / (1024 * 1024 * 1024) * 0.75),
	}, true
}

// detectWindowsVideoController falls back to WMI when no vendor tool is
// available. Picks the controller with the most adapter RAM.
func detectWindowsVideoController() (gpuProbe, bool) {
	cmd := exec.Command("powershell", "-Command",
		"Get-CimInstance -ClassName Win32_VideoController | ForEach-Object { \"$($_.AdapterRAM),$($_.Name)\" }")
	output, err := cmd.Output()
	if err != nil {
		return gpuProbe{}, false
	}

	best := gpuProbe{}
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ",", 2)
		if len(parts) < 2 {
			continue
		}
		ramBytes, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			ramBytes = 0
		}
		name := strings.TrimSpace(parts[1])
		vendor := vendorFromName(name)
		if vendor == VendorNone {
			continue
		}
		vram := roundGB(ramBytes / (1024 * 1024 * 1024))
		if vram >= best.vramGB {
			best = gpuProbe{name: name, vendor: vendor, vramGB: vram}
		}
	}
	if best.vendor == VendorNone || best.vramGB <= 0 {
		return gpuProbe{}, false
	}
	return best, true
}

// detectPCIGPU scrapes lspci for a VGA controller name. VRAM size is not
// reported there, so the probe carries no memory figure and normalization
// treats the GPU as absent for capacity purposes.
func detectPCIGPU() (gpuProbe, bool) {
	output, err := exec.Command("lspci").Output()
	if err != nil {
		return gpuProbe{}, false
	}
	for _, line := range strings.Split(string(output), "\n") {
		if !strings.Contains(line, "VGA compatible controller") && !strings.Contains(line, "3D controller") {
			continue
		}
		idx := strings.Index(line, ": ")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[idx+2:])
		if vendor := vendorFromName(name); vendor != VendorNone {
			// lspci never reports memory size; the zero-VRAM probe is
			// discarded during profile normalization
			return gpuProbe{name: name, vendor: vendor}, true
		}
	}
	return gpuProbe{}, false
}

func vendorFromName(name string) GPUVendor {
	lower := strings.ToLower(name)
	for _, k := range []string{"nvidia", "geforce", "rtx", "gtx", "quadro"} {
		if strings.Contains(lower, k) {
			return VendorNvidia
		}
	}
	for _, k := range []string{"amd", "radeon", "rx "} {
		if strings.Contains(lower, k) {
			return VendorAMD
		}
	}
	if strings.Contains(lower, "arc") {
		return VendorIntel
	}
	return VendorNone
}

func roundGB(gb float64) float64 {
	return float64(int(gb*10+0.5)) / 10
}
