// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/paiban/pharmashift/internal/input"
	"github.com/paiban/pharmashift/internal/metrics"
	"github.com/paiban/pharmashift/internal/repository"
	"github.com/paiban/pharmashift/pkg/errors"
	"github.com/paiban/pharmashift/pkg/logger"
	"github.com/paiban/pharmashift/pkg/model"
	"github.com/paiban/pharmashift/pkg/scheduler"
)

// storeTimeout 读写排班结果的超时
const storeTimeout = 10 * time.Second

// ScheduleHandler 排班处理器
type ScheduleHandler struct {
	engine   *scheduler.Engine
	store    repository.RunStore // 为空时不持久化，也不读取上期排班
	defaults model.AlgorithmConfig
	log      zerolog.Logger
}

// NewScheduleHandler 创建排班处理器
func NewScheduleHandler(engine *scheduler.Engine, store repository.RunStore, defaults model.AlgorithmConfig) *ScheduleHandler {
	return &ScheduleHandler{
		engine:   engine,
		store:    store,
		defaults: defaults,
		log:      logger.WithComponent("handler"),
	}
}

// RegisterRoutes 注册排班相关路由
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/schedule/generate", h.Generate)
	r.Post("/schedule/evaluate", h.Evaluate)
	r.Get("/config/defaults", h.Defaults)
}

// GenerateRequest 排班生成请求
type GenerateRequest struct {
	input.Document
	Persist bool `json:"persist,omitempty"` // 是否保存本次结果
}

// EvaluateRequest 排班评估请求：对给定班次做冲突分析和评分
type EvaluateRequest struct {
	input.Document
	Shifts []model.Shift `json:"shifts"`
}

// GenerateResponse 排班响应
type GenerateResponse struct {
	Success   bool             `json:"success"`
	Persisted bool             `json:"persisted"`
	Message   string           `json:"message,omitempty"`
	Data      *model.RunResult `json:"data"`
}

// Generate 生成排班
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req := GenerateRequest{Document: *input.NewDocument(h.defaults)}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败").WithDetails(err.Error()))
		return
	}

	if req.Persist && h.store == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "未启用数据库，无法保存排班结果"))
		return
	}

	engineReq, err := req.ToRequest(h.defaults)
	if err != nil {
		metrics.RecordScheduleFailure()
		respondError(w, err)
		return
	}

	if len(engineReq.Prior) == 0 && h.store != nil {
		engineReq.Prior = h.loadPrior(r.Context(), engineReq)
	}

	result, err := h.engine.Generate(engineReq)
	if err != nil {
		metrics.RecordScheduleFailure()
		respondError(w, err)
		return
	}
	metrics.RecordScheduleRun(result)

	resp := GenerateResponse{Success: true, Data: result}
	if len(result.Conflicts) > 0 {
		resp.Message = "排班已生成，存在未解决的冲突"
	}

	if req.Persist {
		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()
		if err := h.store.SaveRun(ctx, result); err != nil {
			h.log.Error().Err(err).Str("run_id", result.RunID.String()).Msg("保存排班结果失败")
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "保存排班结果失败"))
			return
		}
		resp.Persisted = true
	}

	respondJSON(w, http.StatusOK, resp)
}

// Evaluate 评估已有排班
func (h *ScheduleHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	req := EvaluateRequest{Document: *input.NewDocument(h.defaults)}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败").WithDetails(err.Error()))
		return
	}

	engineReq, err := req.ToRequest(h.defaults)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.engine.Evaluate(engineReq, req.Shifts)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, GenerateResponse{Success: true, Data: result})
}

// Defaults 返回服务端默认算法配置
func (h *ScheduleHandler) Defaults(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.defaults)
}

// loadPrior 读取上期排班；失败时只记录日志，按无上期排班处理
func (h *ScheduleHandler) loadPrior(ctx context.Context, req scheduler.Request) []model.Shift {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	prior, err := h.store.PriorShifts(ctx, req.Site.ID, req.Horizon)
	if err != nil {
		h.log.Warn().Err(err).Str("site_id", req.Site.ID.String()).Msg("读取上期排班失败")
		return nil
	}
	return prior
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应，非 AppError 按内部错误处理
func respondError(w http.ResponseWriter, err error) {
	appErr := errors.As(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
		"fields":  appErr.Fields,
	})
}
