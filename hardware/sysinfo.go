package hardware

import (
	"bufio"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// detectCPUName returns the marketing name of the CPU.
func detectCPUName() string {
	switch runtime.GOOS {
	case "windows":
		cmd := exec.Command("powershell", "-Command",
			"Get-CimInstance -ClassName Win32_Processor | Select-Object -ExpandProperty Name")
		if output, err := cmd.Output(); err == nil {
			if name := strings.TrimSpace(string(output)); name != "" {
				return name
			}
		}
	case "darwin":
		if output, err := exec.Command("sysctl", "-n", "machdep.cpu.brand_string").Output(); err == nil {
			if name := strings.TrimSpace(string(output)); name != "" {
				return name
			}
		}
	default:
		if file, err := os.Open("/proc/cpuinfo"); err == nil {
			defer file.Close()
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := scanner.Text()
				if strings.HasPrefix(line, "model name") {
					parts := strings.SplitN(line, ":", 2)
					if len(parts) == 2 {
						return strings.TrimSpace(parts[1])
					}
				}
			}
		}
	}
	return "Unknown CPU"
}

// detectPhysicalCores detects the number of physical CPU cores.
func detectPhysicalCores() int {
	switch runtime.GOOS {
	case "windows":
		return detectWindowsPhysicalCores()
	case "linux":
		return detectLinuxPhysicalCores()
	case "darwin":
		return detectMacOSPhysicalCores()
	default:
		return runtime.NumCPU() / 2
	}
}

func detectWindowsPhysicalCores() int {
	cmd := exec.Command("powershell", "-Command",
		"Get-CimInstance -ClassName Win32_Processor | Measure-Object -Property NumberOfCores -Sum | Select-Object -ExpandProperty Sum")
	output, err := cmd.Output()
	if err != nil {
		return runtime.NumCPU() / 2
	}
	if cores, err := strconv.Atoi(strings.TrimSpace(string(output))); err == nil && cores > 0 {
		return cores
	}
	return runtime.NumCPU() / 2
}

func detectLinuxPhysicalCores() int {
	file, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return runtime.NumCPU() / 2
	}
	defer file.Close()

	physicalIDs := make(map[string]bool)
	coresPerSocket := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "physical id") {
			parts := strings.Split(line, ":")
			if len(parts) > 1 {
				physicalIDs[strings.TrimSpace(parts[1])] = true
			}
		} else if strings.HasPrefix(line, "cpu cores") {
			parts := strings.Split(line, ":")
			if len(parts) > 1 {
				if cores, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
					coresPerSocket = cores
				}
			}
		}
	}

	if len(physicalIDs) > 0 && coresPerSocket > 0 {
		return len(physicalIDs) * coresPerSocket
	}
	return runtime.NumCPU() / 2
}

func detectMacOSPhysicalCores() int {
	output, err := exec.Command("sysctl", "-n", "hw.physicalcpu").Output()
	if err != nil {
		return runtime.NumCPU() / 2
	}
	if cores, err := strconv.Atoi(strings.TrimSpace(string(output))); err == nil {
		return cores
	}
	return runtime.NumCPU() / 2
}

// detectTotalRAM detects total system RAM in GB.
func detectTotalRAM() float64 {
	switch runtime.GOOS {
	case "windows":
		return detectWindowsRAM()
	case "linux":
		return detectLinuxRAM()
	case "darwin":
		return detectMacOSRAM()
	default:
		return 16.0
	}
}

func detectWindowsRAM() float64 {
	cmd := exec.Command("powershell", "-Command",
		"Get-CimInstance -ClassName Win32_PhysicalMemory | Measure-Object -Property Capacity -Sum | Select-Object -ExpandProperty Sum")
	output, err := cmd.Output()
	if err != nil {
		return 16.0
	}
	totalBytes, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 16.0
	}
	return totalBytes / (1024 * 1024 * 1024)
}

func detectLinuxRAM() float64 {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 16.0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if memKB, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
					return float64(memKB) / (1024 * 1024)
				}
			}
		}
	}
	return 16.0
}

func detectMacOSRAM() float64 {
	output, err := exec.Command("sysctl", "-n", "hw.memsize").Output()
	if err != nil {
		return 16.0
	}
	if memBytes, err := strconv.ParseInt(strings.TrimSpace(string(output)), 10, 64); err == nil {
		return float64(memBytes) / (1024 * 1024 * 1024)
	}
	return 16.0
}
