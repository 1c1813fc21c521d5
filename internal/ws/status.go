package ws

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// procSampler reads resource usage of the running server. Any probe that
// fails on the current platform leaves its field zero.
type procSampler struct {
	proc *process.Process
}

func newProcSampler() *procSampler {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return &procSampler{}
	}
	return &procSampler{proc: p}
}

func (p *procSampler) sample() ProcessStats {
	st := ProcessStats{Goroutines: runtime.NumGoroutine()}
	if p.proc == nil {
		return st
	}
	if mem, err := p.proc.MemoryInfo(); err == nil && mem != nil {
		st.RSSBytes = mem.RSS
	}
	if cpu, err := p.proc.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if fds, err := p.proc.NumFDs(); err == nil {
		st.OpenFDs = fds
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Snapshot()
	payload := StatusPayload{
		Active:        snap.Active,
		Total:         snap.Total,
		Since:         snap.Since,
		UptimeSeconds: time.Since(snap.Since).Seconds(),
		Sessions:      s.privacy.FilterSlice(s.hub.Sessions()),
		Process:       s.proc.sample(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.Log.Printf("status encode error: %v", err)
	}
}
