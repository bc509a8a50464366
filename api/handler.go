// Package api 以 Gin 暴露运输问题的配置、求解与查询接口。
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wyfcoding/demaxmin/algorithm/transport"
	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/response"
	"github.com/wyfcoding/demaxmin/solver"
	"github.com/wyfcoding/demaxmin/xerrors"
)

// Handler 处理 /v1 下的求解接口。
type Handler struct {
	svc *solver.Service
}

// NewHandler 创建 Handler。
func NewHandler(svc *solver.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterValidators 在 Gin 的校验引擎上注册自定义规则。
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return v.RegisterValidation("nodigits", config.NoDigits)
}

// RegisterRoutes 注册路由，并确保自定义校验规则已注册。
func RegisterRoutes(r gin.IRouter, h *Handler) {
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
	v1 := r.Group("/v1")
	{
		v1.POST("/problems", h.CreateProblem)
		v1.GET("/problems/:id", h.GetProblem)
		v1.DELETE("/problems/:id", h.ResetProblem)
		v1.POST("/problems/:id/solve", h.SolveProblem)
		v1.POST("/solve", h.Solve)
		v1.POST("/solve/batch", h.SolveBatch)
		v1.GET("/solutions/:id", h.GetSolution)
	}
}

// CreateProblem 校验并平衡问题，返回会话 ID 与平衡后的表格。
func (h *Handler) CreateProblem(c *gin.Context) {
	var req ProblemRequest
	if !bind(c, &req) {
		return
	}
	sess, err := h.svc.Configure(c.Request.Context(), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, h.problem(sess))
}

// GetProblem 返回已保存的问题。
func (h *Handler) GetProblem(c *gin.Context) {
	sess, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.problem(sess))
}

// ResetProblem 丢弃问题会话。
func (h *Handler) ResetProblem(c *gin.Context) {
	if err := h.svc.Reset(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id"), "reset": true})
}

// SolveProblem 求解已保存的问题。
func (h *Handler) SolveProblem(c *gin.Context) {
	res, err := h.svc.SolveSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Solve 一次性平衡并求解。
func (h *Handler) Solve(c *gin.Context) {
	var req ProblemRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.SolveOnce(c.Request.Context(), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// SolveBatch 并发求解多个问题。
func (h *Handler) SolveBatch(c *gin.Context) {
	var req BatchRequest
	if !bind(c, &req) {
		return
	}
	inputs := make([]transport.Input, len(req.Problems))
	for i, p := range req.Problems {
		inputs[i] = p.input()
	}
	batch, err := h.svc.SolveBatch(c.Request.Context(), inputs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newBatchResponse(batch))
}

// GetSolution 读取持久化的求解结果。
func (h *Handler) GetSolution(c *gin.Context) {
	res, err := h.svc.GetSolution(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (h *Handler) problem(sess *solver.Session) ProblemResponse {
	cfg := h.svc.Config()
	return newProblemResponse(sess, cfg.SupplyHeader, cfg.DemandHeader)
}

// bind 解析请求体，失败时写入 400 响应并返回 false。
func bind(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.ErrorWithStatus(c, http.StatusRequestEntityTooLarge, "problem payload too large", fmt.Sprintf("limit is %d bytes", tooLarge.Limit))
		return false
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "nodigits" {
				response.Error(c, xerrors.ErrLabelInvalid.WithDetail("%s must not contain digits", fe.Field()))
				return false
			}
		}
	}
	response.Error(c, xerrors.ErrProblemInvalid.WithDetail("%s", err.Error()).WithCause(err))
	return false
}
