package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LJTian/PttHub/internal/board"
	"github.com/LJTian/PttHub/internal/collector"
	"github.com/LJTian/PttHub/internal/service"
)

const (
	requestIDHeader = "X-Request-ID"
	imageCacheCtl   = "public, max-age=86400"
	maxPreviewLinks = 200
)

// Service HTTP 层依赖的读操作，service.Service 为线上实现
type Service interface {
	GetList(ctx context.Context, boardName, pageLink string) (*collector.PageResult, error)
	GetDetail(ctx context.Context, link string) (*collector.ArticleDetail, error)
	GetPreviewBatch(ctx context.Context, links []string) []collector.PreviewResult
	GetHot(ctx context.Context) (*collector.PageResult, error)
	GetGallery(ctx context.Context) ([]board.GalleryItem, error)
	GetFeed(ctx context.Context, boardName string) ([]collector.ArticleSummary, error)
	RelayImage(ctx context.Context, rawURL string) (io.ReadCloser, string, error)
}

type Server struct {
	svc    Service
	logger *slog.Logger
}

func NewServer(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, logger: logger}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.Use(s.requestID())
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/list", s.getList)
		v1.GET("/article", s.getArticle)
		v1.POST("/previews", s.getPreviews)
		v1.GET("/hot", s.getHot)
		v1.GET("/gallery", s.getGallery)
		v1.GET("/feed", s.getFeed)
		v1.GET("/image", s.relayImage)
	}
}

// requestID 给每个请求打上 id（沿用客户端传入的 X-Request-ID），并记录访问日志
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		s.logger.Info("http request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start).Round(time.Millisecond),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// failFor 把服务层错误映射为 HTTP 状态：参数问题 400，内网图片地址 403，上游 404 原样透出，其余视为上游故障
func (s *Server) failFor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidBoard),
		errors.Is(err, service.ErrInvalidLink),
		errors.Is(err, service.ErrUnsupportedScheme):
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, service.ErrForbiddenHost):
		fail(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, collector.ErrNotFound):
		fail(c, http.StatusNotFound, "not_found", "upstream resource not found")
	case errors.Is(err, context.DeadlineExceeded) || collector.ErrorKind(err) == collector.KindTimeout:
		fail(c, http.StatusGatewayTimeout, "upstream_timeout", err.Error())
	default:
		s.logger.Warn("upstream error", "request_id", c.GetString("request_id"), "path", c.Request.URL.Path, "err", err)
		fail(c, http.StatusBadGateway, "upstream_error", err.Error())
	}
}

func (s *Server) getList(c *gin.Context) {
	boardName := c.DefaultQuery("board", "Gossiping")
	res, err := s.svc.GetList(c.Request.Context(), boardName, c.Query("list_url"))
	if err != nil {
		s.failFor(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) getArticle(c *gin.Context) {
	link := c.Query("url")
	if link == "" {
		fail(c, http.StatusBadRequest, "bad_request", "missing url")
		return
	}
	detail, err := s.svc.GetDetail(c.Request.Context(), link)
	if err != nil {
		s.failFor(c, err)
		return
	}
	ok(c, detail)
}

type previewRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

func (s *Server) getPreviews(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "body must be {\"urls\": [...]}")
		return
	}
	if len(req.URLs) > maxPreviewLinks {
		fail(c, http.StatusBadRequest, "bad_request", "too many urls")
		return
	}
	ok(c, s.svc.GetPreviewBatch(c.Request.Context(), req.URLs))
}

func (s *Server) getHot(c *gin.Context) {
	res, err := s.svc.GetHot(c.Request.Context())
	if err != nil {
		s.failFor(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) getGallery(c *gin.Context) {
	items, err := s.svc.GetGallery(c.Request.Context())
	if err != nil {
		s.failFor(c, err)
		return
	}
	ok(c, items)
}

func (s *Server) getFeed(c *gin.Context) {
	rows, err := s.svc.GetFeed(c.Request.Context(), c.DefaultQuery("board", "Gossiping"))
	if err != nil {
		s.failFor(c, err)
		return
	}
	ok(c, rows)
}

// relayImage 原样转发图片字节，供前端绕过防盗链
func (s *Server) relayImage(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		fail(c, http.StatusBadRequest, "bad_request", "missing url")
		return
	}
	body, contentType, err := s.svc.RelayImage(c.Request.Context(), target)
	if err != nil {
		s.failFor(c, err)
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{
		"Cache-Control": imageCacheCtl,
	})
}
