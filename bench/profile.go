package bench

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/omartijn/ozo/logger"
)

// profiles manages optional CPU and memory profiling around a run.
type profiles struct {
	cpuFile *os.File
	memPath string
}

func startProfiles(cpuPath, memPath string) (*profiles, error) {
	p := &profiles{memPath: memPath}
	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, err
		}
		p.cpuFile = f
	}
	return p, nil
}

func (p *profiles) stop() {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
	}
	if p.memPath != "" {
		f, err := os.Create(p.memPath)
		if err != nil {
			logger.Warn("memory profile not written", "error", err.Error())
			return
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			logger.Warn("memory profile not written", "error", err.Error())
		}
	}
}
