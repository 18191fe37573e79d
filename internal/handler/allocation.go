// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/bpp/sloty/internal/batch"
	"github.com/bpp/sloty/internal/constraints"
	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/logger"
	"github.com/bpp/sloty/pkg/model"
	"github.com/bpp/sloty/pkg/stats"
	allocvalidator "github.com/bpp/sloty/pkg/validator"
)

// SnapshotLoader 按学科加载快照
type SnapshotLoader interface {
	Load(ctx context.Context, disciplineID model.DisciplineID, window model.Window) (*model.Snapshot, error)
}

// AllocationHandler 分配处理器
type AllocationHandler struct {
	runner   *batch.Runner
	loader   SnapshotLoader
	validate *validator.Validate
}

// NewAllocationHandler 创建分配处理器，loader 为空时批量接口不可用
func NewAllocationHandler(runner *batch.Runner, loader SnapshotLoader) *AllocationHandler {
	return &AllocationHandler{
		runner:   runner,
		loader:   loader,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RunRequest 单学科分配请求
type RunRequest struct {
	Snapshot model.Snapshot `json:"snapshot" validate:"required"`
	Strategy string         `json:"strategy,omitempty" validate:"omitempty,oneof=sequential greedy reorder genetic"`
}

// BatchRequest 批量分配请求，快照从数据库加载
type BatchRequest struct {
	DisciplineIDs []model.DisciplineID `json:"discipline_ids" validate:"required,min=1,dive,gt=0"`
	Window        model.Window         `json:"window"`
	Strategy      string               `json:"strategy,omitempty" validate:"omitempty,oneof=sequential greedy reorder genetic"`
}

// ErrorBody 错误信息
type ErrorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// RunResponse 单学科分配响应
type RunResponse struct {
	Success      bool                      `json:"success"`
	DisciplineID model.DisciplineID        `json:"discipline_id"`
	Strategy     string                    `json:"strategy"`
	Result       *model.SelectionResult    `json:"result,omitempty"`
	Report       *stats.QualityReport      `json:"report,omitempty"`
	Conflicts    []allocvalidator.Conflict `json:"conflicts,omitempty"`
	Resumed      bool                      `json:"resumed,omitempty"`
	Error        *ErrorBody                `json:"error,omitempty"`
}

// BatchResponse 批量分配响应
type BatchResponse struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Outcomes  []RunResponse `json:"outcomes"`
}

// Run 处理单学科分配
func (h *AllocationHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "只支持POST方法").WithDetails(r.Method))
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "请求体解析失败"))
		return
	}
	if err := h.check(&req); err != nil {
		respondError(w, err)
		return
	}

	out := h.runner.RunOne(r.Context(), &req.Snapshot, req.Strategy)
	if out.Err != nil {
		logger.WithContext(r.Context()).Warn().Err(out.Err).Msg("分配请求失败")
		respondError(w, toAppError(out.Err))
		return
	}
	respondJSON(w, http.StatusOK, toResponse(out))
}

// Batch 处理批量分配
func (h *AllocationHandler) Batch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "只支持POST方法").WithDetails(r.Method))
		return
	}
	if h.loader == nil {
		respondError(w, errors.Configuration("数据库未启用，批量分配不可用"))
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "请求体解析失败"))
		return
	}
	if err := h.check(&req); err != nil {
		respondError(w, err)
		return
	}

	ctx := r.Context()
	resp := BatchResponse{Total: len(req.DisciplineIDs), Outcomes: make([]RunResponse, 0, len(req.DisciplineIDs))}
	for _, id := range req.DisciplineIDs {
		var out batch.Outcome
		snap, err := h.loader.Load(ctx, id, req.Window)
		if err != nil {
			out = batch.Outcome{DisciplineID: id, Strategy: req.Strategy, Err: err}
		} else {
			out = h.runner.RunOne(ctx, snap, req.Strategy)
		}

		if out.Err != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
		resp.Outcomes = append(resp.Outcomes, toResponse(out))
	}

	logger.WithContext(ctx).Info().
		Int("total", resp.Total).
		Int("succeeded", resp.Succeeded).
		Int("failed", resp.Failed).
		Msg("批量分配完成")
	respondJSON(w, http.StatusOK, resp)
}

// Strategies 返回可用策略
func (h *AllocationHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "只支持GET方法").WithDetails(r.Method))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": h.runner.Strategies(),
	})
}

// Rules 返回准入规则与策略参数目录
func (h *AllocationHandler) Rules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "只支持GET方法").WithDetails(r.Method))
		return
	}
	respondJSON(w, http.StatusOK, constraints.GetLibrary(h.runner.Engine()))
}

// check 校验请求结构
func (h *AllocationHandler) check(req interface{}) *errors.AppError {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Wrap(err, errors.CodeValidationFail, "请求校验失败")
	}
	ve := &errors.ValidationErrors{}
	for _, fe := range verrs {
		ve.Add(fe.Namespace(), fe.Tag())
	}
	return ve.ToAppError()
}

func toResponse(out batch.Outcome) RunResponse {
	resp := RunResponse{
		Success:      out.Err == nil,
		DisciplineID: out.DisciplineID,
		Strategy:     out.Strategy,
		Result:       out.Result,
		Report:       out.Report,
		Conflicts:    out.Conflicts,
		Resumed:      out.Resumed,
	}
	if out.Err != nil {
		appErr := toAppError(out.Err)
		resp.Error = &ErrorBody{Code: appErr.Code, Message: appErr.Error()}
	}
	return resp
}

// toAppError 把上下文超时与取消映射为错误码
func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.CodeTimeout, "分配超时")
	}
	return errors.Wrap(err, errors.CodeInternal, "分配失败")
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	respondJSON(w, err.HTTPStatus, map[string]interface{}{
		"success": false,
		"error":   err,
	})
}
