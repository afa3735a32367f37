package host

import (
	"golang.org/x/sys/cpu"
)

// cpuFeatures lists the SIMD features of the CPU, reported as the device extensions.
func cpuFeatures() []string {
	var features []string
	add := func(has bool, name string) {
		if has {
			features = append(features, name)
		}
	}
	add(cpu.X86.HasSSE41, "cpu_sse4_1")
	add(cpu.X86.HasSSE42, "cpu_sse4_2")
	add(cpu.X86.HasAVX, "cpu_avx")
	add(cpu.X86.HasAVX2, "cpu_avx2")
	add(cpu.X86.HasFMA, "cpu_fma")
	add(cpu.X86.HasAVX512F, "cpu_avx512f")
	add(cpu.ARM64.HasASIMD, "cpu_asimd")
	add(cpu.ARM64.HasFPHP, "cpu_fp16")
	add(cpu.ARM64.HasASIMDHP, "cpu_asimd_fp16")
	return features
}
