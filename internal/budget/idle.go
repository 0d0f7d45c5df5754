package budget

import (
	"log"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

const historyLen = 5
const minSamples = 3

// Gate monitors system-wide CPU usage so the daemon only runs consolidation
// cycles while the host is quiet. Dream cycles are maintenance work and
// should never compete with a busy machine.
type Gate struct {
	mu sync.Mutex

	// Configuration
	pollInterval  time.Duration // How often to sample CPU (default 5s)
	busyThreshold float64       // Avg CPU % above which the host is busy (default 30%)
	idleDuration  time.Duration // How long below threshold before Idle() (default 30s)

	// State
	history  []float64
	lastBusy time.Time

	// Control
	stopChan chan struct{}
	running  bool
}

// NewGate creates a CPU idle gate with default thresholds
func NewGate() *Gate {
	return &Gate{
		pollInterval:  5 * time.Second,
		busyThreshold: 30.0,
		idleDuration:  30 * time.Second,
		history:       make([]float64, 0, historyLen),
		lastBusy:      time.Now(),
		stopChan:      make(chan struct{}),
	}
}

// SetThresholds configures detection thresholds
func (g *Gate) SetThresholds(busy float64, idleDur time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.busyThreshold = busy
	g.idleDuration = idleDur
}

// Start begins sampling CPU usage in the background
func (g *Gate) Start() {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.stopChan = make(chan struct{})
	g.mu.Unlock()

	go g.watchLoop()
	log.Printf("[budget] Idle gate started (poll=%v, busy>%.0f%%, idle_dur=%v)",
		g.pollInterval, g.busyThreshold, g.idleDuration)
}

// Stop stops sampling
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		close(g.stopChan)
		g.running = false
	}
}

func (g *Gate) watchLoop() {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			pcts, err := cpu.Percent(0, false)
			if err != nil || len(pcts) == 0 {
				continue
			}
			g.observe(pcts[0], time.Now())
		}
	}
}

// observe folds one CPU sample into the rolling window. Kept separate from
// the poll loop so tests can drive the state machine with synthetic samples.
func (g *Gate) observe(pct float64, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.history = append(g.history, pct)
	if len(g.history) > historyLen {
		g.history = g.history[1:]
	}

	avg := avgOf(g.history)
	if avg > g.busyThreshold {
		if now.Sub(g.lastBusy) >= g.idleDuration {
			log.Printf("[budget] Host busy again (avg CPU %.1f%%)", avg)
		}
		g.lastBusy = now
	}
}

// Idle reports whether the host has stayed below the busy threshold long
// enough to run a cycle. Always false until a few samples have arrived.
func (g *Gate) Idle() bool {
	return g.idleAt(time.Now())
}

func (g *Gate) idleAt(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.history) < minSamples {
		return false
	}
	return now.Sub(g.lastBusy) >= g.idleDuration
}

func avgOf(history []float64) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, v := range history {
		sum += v
	}
	return sum / float64(len(history))
}
