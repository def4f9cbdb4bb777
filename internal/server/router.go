package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/recorder"
)

const requestIDHeader = "X-Request-ID"

var errMissingRecorder = errors.New("recorder dependency required")

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	Recorder *recorder.Recorder
	Logger   *zap.Logger
}

// NewHTTPHandler builds the gin handler exposing the recorder over HTTP.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Recorder == nil {
		return nil, errMissingRecorder
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		recorder: deps.Recorder,
		logger:   logger,
	}

	router.GET("/healthz", handler.handleHealthz)
	router.POST("/records", handler.handleUpsertRecord)
	router.POST("/records/remove", handler.handleRemoveRecord)
	router.DELETE("/records/:id", handler.handleRemoveRecordByID)
	router.POST("/records/query", handler.handleQuery)
	router.GET("/blobs/:hash", handler.handleGetBlob)
	router.POST("/blobs/prune", handler.handlePruneBlobs)
	router.POST("/index/refresh", handler.handleRefreshIndex)

	return router, nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		started := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(started)))
	}
}

type httpHandler struct {
	recorder *recorder.Recorder
	logger   *zap.Logger
}

type recordPayload struct {
	ID          int64             `json:"id,omitempty"`
	ChatType    string            `json:"chat_type"`
	OwnerID     string            `json:"owner_id"`
	GroupID     string            `json:"group_id"`
	SenderID    string            `json:"sender_id"`
	SenderName  string            `json:"sender_name"`
	Content     string            `json:"content"`
	Timestamp   int64             `json:"timestamp"`
	Metadata    []byte            `json:"metadata,omitempty"`
	Attachments map[string][]byte `json:"attachments,omitempty"`
	OnConflict  string            `json:"on_conflict,omitempty"`
}

func (p recordPayload) toRecord() *record.Record {
	return &record.Record{
		ID:         p.ID,
		ChatType:   p.ChatType,
		OwnerID:    p.OwnerID,
		GroupID:    p.GroupID,
		SenderID:   p.SenderID,
		SenderName: p.SenderName,
		Content:    p.Content,
		Timestamp:  p.Timestamp,
		Metadata:   p.Metadata,
	}
}

func (p recordPayload) merger() (record.MetadataMerger, bool) {
	switch p.OnConflict {
	case "", "take-new":
		return record.TakeNewMetadata, true
	case "keep-old":
		return record.KeepOldMetadata, true
	default:
		return nil, false
	}
}

func (h *httpHandler) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleUpsertRecord(c *gin.Context) {
	var payload recordPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if payload.Timestamp <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_timestamp"})
		return
	}
	merger, ok := payload.merger()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_on_conflict"})
		return
	}

	var ref record.Ref
	if len(payload.Attachments) > 0 {
		ref = record.WithAttachments{Record: payload.toRecord(), Attachments: payload.Attachments}
	} else {
		ref = payload.toRecord()
	}

	applied, err := h.recorder.InsertOrUpdate(c.Request.Context(), ref, merger)
	if err != nil {
		h.logger.Error("record upsert failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": applied})
}

func (h *httpHandler) handleRemoveRecordByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	}

	removed, err := h.recorder.Remove(c.Request.Context(), record.ID(id))
	if err != nil {
		h.logger.Error("record removal failed", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": removed})
}

func (h *httpHandler) handleRemoveRecord(c *gin.Context) {
	var payload recordPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	removed, err := h.recorder.Remove(c.Request.Context(), payload.toRecord())
	if err != nil {
		h.logger.Error("record removal failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": removed})
}

type queryPayload struct {
	ChatType   string `json:"chat_type,omitempty"`
	OwnerID    string `json:"owner_id,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
	Keyword    string `json:"keyword,omitempty"`
	After      int64  `json:"after,omitempty"`
	Before     int64  `json:"before,omitempty"`
	Offset     int    `json:"offset,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type recordResponse struct {
	ID         int64  `json:"id"`
	ChatType   string `json:"chat_type"`
	OwnerID    string `json:"owner_id"`
	GroupID    string `json:"group_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	Metadata   []byte `json:"metadata,omitempty"`
}

func (h *httpHandler) handleQuery(c *gin.Context) {
	var payload queryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	records, err := h.recorder.Get(c.Request.Context(), record.Query{
		ChatType:   payload.ChatType,
		OwnerID:    payload.OwnerID,
		GroupID:    payload.GroupID,
		SenderID:   payload.SenderID,
		SenderName: payload.SenderName,
		Keyword:    payload.Keyword,
		After:      payload.After,
		Before:     payload.Before,
		Offset:     payload.Offset,
		Limit:      payload.Limit,
	})
	if err != nil {
		h.logger.Error("record query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}

	response := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		response = append(response, recordResponse{
			ID:         rec.ID,
			ChatType:   rec.ChatType,
			OwnerID:    rec.OwnerID,
			GroupID:    rec.GroupID,
			SenderID:   rec.SenderID,
			SenderName: rec.SenderName,
			Content:    rec.Content,
			Timestamp:  rec.Timestamp,
			Metadata:   rec.Metadata,
		})
	}
	c.JSON(http.StatusOK, gin.H{"records": response})
}

func (h *httpHandler) handleGetBlob(c *gin.Context) {
	hash, err := strconv.ParseInt(c.Param("hash"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_hash"})
		return
	}

	data, err := h.recorder.GetBlob(c.Request.Context(), hash)
	if errors.Is(err, record.ErrBlobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "blob_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("blob fetch failed", zap.Int64("hash", hash), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "blob_fetch_failed"})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (h *httpHandler) handlePruneBlobs(c *gin.Context) {
	pruned, err := h.recorder.PruneBlobs(c.Request.Context())
	if err != nil {
		h.logger.Error("blob prune failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prune_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pruned": pruned})
}

func (h *httpHandler) handleRefreshIndex(c *gin.Context) {
	if err := h.recorder.RefreshIndex(c.Request.Context()); err != nil {
		h.logger.Error("index refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
