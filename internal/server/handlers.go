package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"inkwell/internal/events"
	"inkwell/internal/host/blockstore"
	"inkwell/pkg/blocks"

	"github.com/gin-gonic/gin"
)

// uploadField is the multipart part name upload clients send.
const uploadField = "image"

// apiResponse is the uniform envelope for block endpoints.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// uploadReply matches the wire shape upload clients decode.
type uploadReply struct {
	Success bool            `json:"success"`
	File    *blocks.FileRef `json:"file,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Data: gin.H{
			"status":      "ok",
			"uptime":      time.Since(s.startTime).String(),
			"subscribers": s.hub.Subscribers(),
		},
	})
}

func (s *Server) handleUploadFile(c *gin.Context) {
	start := time.Now()

	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		s.uploadFailed(c, http.StatusBadRequest, "file", "missing image field")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		s.uploadFailed(c, http.StatusBadRequest, "file", "unreadable upload")
		return
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		s.uploadFailed(c, http.StatusBadRequest, "file", "empty upload")
		return
	}

	// Multipart writers default the part type to octet-stream, so treat that
	// the same as no declared type and sniff the payload instead.
	mediaType := fileHeader.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}
	if !acceptsMediaType(s.cfg.AcceptTypes, mediaType) {
		s.uploadFailed(c, http.StatusUnsupportedMediaType, "file", "unsupported media type")
		return
	}

	s.finishUpload(c, "file", fileHeader.Filename, mediaType, data, start)
}

// acceptsMediaType reports whether mediaType matches the comma separated
// accept list, honoring type/* wildcards the way the accept attribute does.
func acceptsMediaType(accept, mediaType string) bool {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	for _, entry := range strings.Split(accept, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
		case entry == "*/*":
			return true
		case strings.HasSuffix(entry, "/*"):
			if strings.HasPrefix(mediaType, strings.TrimSuffix(entry, "*")) {
				return true
			}
		case entry == mediaType:
			return true
		}
	}
	return false
}

type uploadURLRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleUploadURL(c *gin.Context) {
	start := time.Now()

	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		s.uploadFailed(c, http.StatusBadRequest, "url", "missing url")
		return
	}
	if s.fetcher == nil {
		s.uploadFailed(c, http.StatusServiceUnavailable, "url", "url ingestion disabled")
		return
	}

	data, mediaType, err := s.fetcher.Fetch(c.Request.Context(), req.URL)
	if err != nil {
		s.logger.Warn("ingest %s: %v", req.URL, err)
		s.uploadFailed(c, http.StatusUnprocessableEntity, "url", "could not fetch source")
		return
	}

	s.finishUpload(c, "url", path.Base(req.URL), mediaType, data, start)
}

// finishUpload is the shared tail of both upload endpoints: persist, probe
// dimensions, record metrics and answer with the normalized reply.
func (s *Server) finishUpload(c *gin.Context, source, name, mediaType string, data []byte, start time.Time) {
	urlPath, err := s.files.StoreBytes(name, mediaType, data)
	if err != nil {
		s.logger.Error("store upload: %v", err)
		s.uploadFailed(c, http.StatusInternalServerError, source, "could not store upload")
		return
	}

	ref := &blocks.FileRef{URL: s.absoluteURL(c, urlPath)}
	if width, height, ok := probeDimensions(data); ok {
		ref.Width = blocks.IntPtr(width)
		ref.Height = blocks.IntPtr(height)
	}

	ctx := c.Request.Context()
	s.metrics.RecordUploadBytes(ctx, source, int64(len(data)))
	s.metrics.RecordUpload(ctx, source, "success", time.Since(start))
	s.sink.Emit(events.New(events.TypeUploadSucceeded, "", events.Fields{
		"source": source,
		"url":    ref.URL,
	}))

	c.JSON(http.StatusOK, uploadReply{Success: true, File: ref})
}

func (s *Server) uploadFailed(c *gin.Context, status int, source, reason string) {
	ctx := c.Request.Context()
	s.metrics.RecordUpload(ctx, source, "error", 0)
	s.sink.Emit(events.New(events.TypeUploadFailed, "", events.Fields{
		"source": source,
		"reason": reason,
	}))
	c.JSON(status, uploadReply{Success: false, Error: reason})
}

func (s *Server) handleGetFile(c *gin.Context) {
	filePath, err := s.files.Resolve(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, apiResponse{Success: false, Error: "file not found"})
		return
	}
	c.File(filePath)
}

func (s *Server) handleSaveBlock(c *gin.Context) {
	var rec blockstore.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "malformed block"})
		return
	}

	if err := s.store.SaveBlock(c.Request.Context(), &rec); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: err.Error()})
		return
	}

	valid := true
	if rec.Type == "image" {
		var data blocks.ImageData
		if err := json.Unmarshal(rec.Data, &data); err != nil || !blocks.Validate(data) {
			valid = false
		}
	}

	s.metrics.RecordBlockSaved(c.Request.Context(), valid)
	s.sink.Emit(events.New(events.TypeBlockSaved, rec.ID, events.Fields{"valid": valid}))

	c.JSON(http.StatusOK, apiResponse{Success: true, Data: rec})
}

func (s *Server) handleListBlocks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := s.store.ListBlocks(c.Request.Context(), c.Query("type"), limit, offset)
	if err != nil {
		s.logger.Error("list blocks: %v", err)
		c.JSON(http.StatusInternalServerError, apiResponse{Success: false, Error: "list failed"})
		return
	}
	if records == nil {
		records = []*blockstore.Record{}
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Data: records})
}

func (s *Server) handleGetBlock(c *gin.Context) {
	rec, err := s.store.GetBlock(c.Request.Context(), c.Param("id"))
	if errors.Is(err, blockstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, apiResponse{Success: false, Error: "block not found"})
		return
	}
	if err != nil {
		s.logger.Error("get block: %v", err)
		c.JSON(http.StatusInternalServerError, apiResponse{Success: false, Error: "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Data: rec})
}

func (s *Server) handleDeleteBlock(c *gin.Context) {
	err := s.store.DeleteBlock(c.Request.Context(), c.Param("id"))
	if errors.Is(err, blockstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, apiResponse{Success: false, Error: "block not found"})
		return
	}
	if err != nil {
		s.logger.Error("delete block: %v", err)
		c.JSON(http.StatusInternalServerError, apiResponse{Success: false, Error: "delete failed"})
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true})
}

type stretchedRequest struct {
	Stretched bool `json:"stretched"`
}

func (s *Server) handleSetStretched(c *gin.Context) {
	var req stretchedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Success: false, Error: "malformed request"})
		return
	}

	id := c.Param("id")
	if err := s.store.SetStretched(c.Request.Context(), id, req.Stretched); err != nil {
		s.logger.Error("set stretched: %v", err)
		c.JSON(http.StatusInternalServerError, apiResponse{Success: false, Error: "update failed"})
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Data: gin.H{"id": id, "stretched": req.Stretched}})
}

func (s *Server) handleGetStretched(c *gin.Context) {
	id := c.Param("id")
	stretched, err := s.store.Stretched(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("get stretched: %v", err)
		c.JSON(http.StatusInternalServerError, apiResponse{Success: false, Error: "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, apiResponse{Success: true, Data: gin.H{"id": id, "stretched": stretched}})
}

// absoluteURL rebuilds a public URL for a stored-file path from the incoming
// request, so replies work across whatever host the server is reached on.
func (s *Server) absoluteURL(c *gin.Context, urlPath string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + urlPath
}

// probeDimensions reads intrinsic pixel dimensions from the registered image
// codecs. Formats outside the stdlib set simply report no dimensions.
func probeDimensions(data []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
