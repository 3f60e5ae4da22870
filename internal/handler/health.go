package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger 可做健康检查的依赖
type Pinger interface {
	Health(ctx context.Context) error
}

// BuildInfo 构建信息
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// HealthHandler 健康检查与版本信息
type HealthHandler struct {
	db    Pinger // 未启用数据库时为空
	build BuildInfo
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(db Pinger, build BuildInfo) *HealthHandler {
	return &HealthHandler{db: db, build: build}
}

// Health 健康检查；数据库不可用时返回 503
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "service": "pharmashift", "database": "disabled"}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Health(ctx); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}
	respondJSON(w, http.StatusOK, resp)
}

// Version 版本信息
func (h *HealthHandler) Version(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.build)
}
