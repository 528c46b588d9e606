// Package monitoring turns a running job into a small HTTP server so
// the progress of every rank can be watched from outside the process.
package monitoring

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"

	"github.com/vortexsim/vortex/sim"
)

// Monitor serves the state of the ranks of one job.
type Monitor struct {
	portNumber int
	ranks      []*sim.Simulation
	logger     *logrus.Logger
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{logger: logrus.StandardLogger()}
}

// WithPortNumber sets the port number of the monitoring server. Ports
// below 1000 are rejected and replaced with a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is not allowed for the monitoring server. "+
				"Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterRank adds one rank to be monitored.
func (m *Monitor) RegisterRank(s *sim.Simulation) {
	m.ranks = append(m.ranks, s)
}

// StartServer starts the monitoring server on its own goroutine.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()
	r.HandleFunc("/api/now", m.handleNow)
	r.HandleFunc("/api/components", m.handleComponents)
	r.HandleFunc("/api/resources", m.handleResources)
	r.HandleFunc("/api/abort", m.handleAbort).Methods("POST")

	listener, err := net.Listen(
		"tcp", fmt.Sprintf(":%d", m.portNumber))
	if err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Monitoring simulation with http://localhost:%d\n",
		listener.Addr().(*net.TCPAddr).Port)

	go func() {
		if err := http.Serve(listener, r); err != nil {
			m.logger.WithError(err).Error("monitoring server stopped")
		}
	}()
}

type rankStatus struct {
	Rank         int         `json:"rank"`
	CurrentCycle sim.SimTime `json:"current_cycle"`
}

func (m *Monitor) handleNow(w http.ResponseWriter, _ *http.Request) {
	statuses := make([]rankStatus, 0, len(m.ranks))
	for _, s := range m.ranks {
		statuses = append(statuses, rankStatus{
			Rank:         s.Rank(),
			CurrentCycle: s.CurrentCycle(),
		})
	}

	m.writeJSON(w, statuses)
}

type componentStatus struct {
	Rank int    `json:"rank"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (m *Monitor) handleComponents(w http.ResponseWriter, _ *http.Request) {
	components := make([]componentStatus, 0)
	for _, s := range m.ranks {
		for _, c := range s.Components() {
			components = append(components, componentStatus{
				Rank: s.Rank(),
				ID:   c.ID().String(),
				Name: c.Name(),
			})
		}
	}

	m.writeJSON(w, components)
}

type resourceStatus struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
}

func (m *Monitor) handleResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpu, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceStatus{
		CPUPercent: cpu,
		MemoryRSS:  memInfo.RSS,
	})
}

func (m *Monitor) handleAbort(w http.ResponseWriter, _ *http.Request) {
	for _, s := range m.ranks {
		s.Abort()
	}

	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.WithError(err).Error("cannot encode monitor response")
	}
}
