package livehttp

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"arbiter/internal/engine"
	"arbiter/internal/logger"
	"arbiter/internal/report"
	"arbiter/internal/snapshot"
	"arbiter/internal/store/auditlog"
	"arbiter/internal/store/runstore"
)

// maxSnapshotBytes 限制单次快照体积，防止异常大请求拖垮服务。
const maxSnapshotBytes = 16 << 20

// Router 暴露仲裁相关接口（评估/查询/报告/审计）。
type Router struct {
	engine *engine.Engine
	runs   *runstore.Store
	audit  *auditlog.Store
}

// NewRouter 构造 live HTTP router。
func NewRouter(eng *engine.Engine, runs *runstore.Store, audit *auditlog.Store) *Router {
	return &Router{engine: eng, runs: runs, audit: audit}
}

// Register 将 /api/live 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/evaluate", r.handleEvaluate)
	if r.runs != nil {
		group.GET("/runs", r.handleRuns)
		group.GET("/runs/:trace", r.handleRunByTrace)
		group.GET("/report/:trace", r.handleReport)
	}
	if r.audit != nil {
		group.GET("/audit/:trace", r.handleAuditByTrace)
	}
}

// handleEvaluate 接收市场快照并返回决策文档。格式错误返回 400，数据
// 退化不在此报错，由结果里的 market_status 表达。
func (r *Router) handleEvaluate(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSnapshotBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	res, err := r.engine.Run(raw)
	if err != nil {
		if errors.Is(err, snapshot.ErrMalformedSnapshot) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("evaluate 失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluate failed"})
		return
	}

	traceID := ""
	if r.runs != nil {
		rec, err := r.runs.Save(c.Request.Context(), res)
		if err != nil {
			logger.Errorf("run 落库失败: %v", err)
		} else {
			traceID = rec.TraceID
		}
	}
	if r.audit != nil && traceID != "" {
		if err := r.audit.AppendRun(c.Request.Context(), traceID, res); err != nil {
			logger.Errorf("审计流水落库失败: %v", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"trace_id": traceID, "result": res})
}

func (r *Router) handleRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := r.runs.List(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("run 查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list runs failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records})
}

func (r *Router) handleRunByTrace(c *gin.Context) {
	res, rec, err := r.runs.GetByTrace(c.Request.Context(), c.Param("trace"))
	if errors.Is(err, runstore.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		logger.Errorf("run 查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get run failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": rec, "result": res})
}

func (r *Router) handleReport(c *gin.Context) {
	res, _, err := r.runs.GetByTrace(c.Request.Context(), c.Param("trace"))
	if errors.Is(err, runstore.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		logger.Errorf("run 查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get run failed"})
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := report.Render(c.Writer, res, nil); err != nil {
		logger.Errorf("报告渲染失败: %v", err)
	}
}

func (r *Router) handleAuditByTrace(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	records, err := r.audit.List(c.Request.Context(), auditlog.Query{
		TraceID:   c.Param("trace"),
		AccountID: c.Query("account"),
		Symbol:    c.Query("symbol"),
		Kind:      c.Query("kind"),
		Limit:     limit,
	})
	if err != nil {
		logger.Errorf("审计流水查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list audit events failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": records})
}
