package controller

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/pump-pi/pump-pi/controller/modules/pump"
)

var bootTime = time.Now()

// loadAPI mounts the read-only HTTP surface. Control stays on the physical
// panel; the API only observes.
func (c *Controller) loadAPI(r *mux.Router) {
	r.HandleFunc("/api/state", c.getState).Methods("GET")
	r.HandleFunc("/api/calibration", c.getCalibration).Methods("GET")
	r.HandleFunc("/api/health", c.getHealth).Methods("GET")
	r.HandleFunc("/api/log", c.getLog).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}

func (c *Controller) getState(w http.ResponseWriter, _ *http.Request) {
	respond(w, c.pump.Snapshot())
}

func (c *Controller) getCalibration(w http.ResponseWriter, _ *http.Request) {
	snap := c.pump.Snapshot()
	respond(w, pump.Calibration{Threshold: snap.Threshold, WaterLoad: snap.WaterLoad})
}

type healthPayload struct {
	Uptime  string  `json:"uptime"`
	Load1   float64 `json:"load1"`
	MemUsed string  `json:"memory_used"`
	MemPct  float64 `json:"memory_used_percent"`
}

func (c *Controller) getHealth(w http.ResponseWriter, _ *http.Request) {
	h := healthPayload{Uptime: humanize.Time(bootTime)}
	if avg, err := load.Avg(); err == nil {
		h.Load1 = avg.Load1
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.MemUsed = humanize.IBytes(vm.Used)
		h.MemPct = vm.UsedPercent
	}
	respond(w, h)
}

func (c *Controller) getLog(w http.ResponseWriter, _ *http.Request) {
	respond(w, c.pump.Logs())
}

func respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("controller: api encode: %v", err)
	}
}
