package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// LivenessMessage is the body of GET /server.
const LivenessMessage = "Server is running! (WatchMeNow.com)"

// Pinger is anything whose connectivity can be checked, e.g. the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClientCounter reports how many clients follow the live film feed.
type ClientCounter interface {
	ClientCount() int
}

// ServerHandler reports on the process and the host it runs on.
type ServerHandler struct {
	store     Pinger
	feed      ClientCounter
	startedAt time.Time
}

// NewServerHandler creates a new ServerHandler. feed may be nil when the
// websocket feed is disabled.
func NewServerHandler(store Pinger, feed ClientCounter) *ServerHandler {
	return &ServerHandler{store: store, feed: feed, startedAt: time.Now()}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string       `json:"status"`
	Store       string       `json:"store"`
	Uptime      string       `json:"uptime"`
	FeedClients int          `json:"feedClients"`
	HostUptime  uint64       `json:"hostUptimeSeconds,omitempty"`
	Memory      *MemoryStats `json:"memory,omitempty"`
	CheckedAt   time.Time    `json:"checkedAt"`
}

// MemoryStats summarizes host memory.
type MemoryStats struct {
	TotalBytes     uint64  `json:"totalBytes"`
	AvailableBytes uint64  `json:"availableBytes"`
	UsedPercent    float64 `json:"usedPercent"`
}

// Liveness answers with a fixed string.
func (h *ServerHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(LivenessMessage))
}

// Health pings the store and collects host statistics. The store being
// unreachable turns the response into a 503.
func (h *ServerHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Store:     "ok",
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		CheckedAt: time.Now().UTC(),
	}

	if h.feed != nil {
		resp.FeedClients = h.feed.ClientCount()
	}

	if err := h.store.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Health check: store unreachable")
		resp.Status = "degraded"
		resp.Store = "unreachable"
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.Memory = &MemoryStats{TotalBytes: vm.Total, AvailableBytes: vm.Available, UsedPercent: vm.UsedPercent}
	} else {
		log.Warn().Err(err).Msg("Health check: failed to read host memory")
	}

	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		resp.HostUptime = uptime
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
