package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/vega/internal/database"
	"github.com/aristath/vega/internal/reliability"
)

// PriceSyncer triggers a market data price sync.
// Interface defined here to enable testing with mocks.
type PriceSyncer interface {
	SyncPrices() (int, error)
}

// SystemHandlers serves status, backup and sync operations.
type SystemHandlers struct {
	log        zerolog.Logger
	dataDir    string
	databases  map[string]*database.DB
	backups    *reliability.BackupService
	marketData PriceSyncer
	startTime  time.Time
}

// NewSystemHandlers creates system handlers. backups and marketData may
// be nil when the deployment does not configure them.
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	backups *reliability.BackupService,
	marketData PriceSyncer,
) *SystemHandlers {
	return &SystemHandlers{
		log:        log.With().Str("handler", "system").Logger(),
		dataDir:    dataDir,
		databases:  databases,
		backups:    backups,
		marketData: marketData,
		startTime:  time.Now(),
	}
}

// DatabaseStatus describes one database in the status response.
type DatabaseStatus struct {
	Name         string `json:"name"`
	SizeBytes    int64  `json:"size_bytes"`
	WALSizeBytes int64  `json:"wal_size_bytes"`
	PageCount    int64  `json:"page_count"`
	Healthy      bool   `json:"healthy"`
}

// SystemStatus is the status endpoint payload.
type SystemStatus struct {
	Status          string           `json:"status"`
	UptimeSeconds   float64          `json:"uptime_seconds"`
	CPUPercent      float64          `json:"cpu_percent"`
	MemoryPercent   float64          `json:"memory_percent"`
	DiskUsedPercent float64          `json:"disk_used_percent"`
	DiskFreeBytes   uint64           `json:"disk_free_bytes"`
	Databases       []DatabaseStatus `json:"databases"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.hostStats()

	status := SystemStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     h.databaseStatuses(r.Context()),
	}

	if usage, err := disk.Usage(h.dataDir); err == nil {
		status.DiskUsedPercent = usage.UsedPercent
		status.DiskFreeBytes = usage.Free
	} else {
		h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to read disk usage")
	}

	for _, db := range status.Databases {
		if !db.Healthy {
			status.Status = "degraded"
			break
		}
	}

	h.writeData(w, status)
}

// hostStats samples CPU over a short window so the endpoint stays fast.
func (h *SystemHandlers) hostStats() (float64, float64) {
	cpuAvg := 0.0
	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuAvg = percents[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) databaseStatuses(ctx context.Context) []DatabaseStatus {
	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]DatabaseStatus, 0, len(names))
	for _, name := range names {
		db := h.databases[name]
		status := DatabaseStatus{Name: name}

		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		status.Healthy = db.HealthCheck(checkCtx) == nil
		cancel()

		if stats, err := db.GetStats(); err == nil {
			status.SizeBytes = stats.SizeBytes
			status.WALSizeBytes = stats.WALSizeBytes
			status.PageCount = stats.PageCount
		} else {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to read database stats")
		}

		statuses = append(statuses, status)
	}

	return statuses
}

// HandleCreateBackup handles POST /api/system/backup
func (h *SystemHandlers) HandleCreateBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeError(w, http.StatusServiceUnavailable, "backup storage not configured")
		return
	}

	info, err := h.backups.CreateBackup(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Backup failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeData(w, info)
}

// HandleListBackups handles GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeError(w, http.StatusServiceUnavailable, "backup storage not configured")
		return
	}

	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeData(w, map[string]interface{}{
		"backups": backups,
		"count":   len(backups),
	})
}

// HandleSyncPrices handles POST /api/system/sync/prices
func (h *SystemHandlers) HandleSyncPrices(w http.ResponseWriter, r *http.Request) {
	if h.marketData == nil {
		h.writeError(w, http.StatusServiceUnavailable, "market data service not configured")
		return
	}

	h.log.Info().Msg("Manual price sync triggered")

	synced, err := h.marketData.SyncPrices()
	if err != nil {
		h.log.Error().Err(err).Msg("Price sync failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeData(w, map[string]interface{}{"synced": synced})
}

func (h *SystemHandlers) writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(h.log, w, status, map[string]string{"error": message})
}

// writeJSON writes a JSON response
func writeJSON(log zerolog.Logger, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
