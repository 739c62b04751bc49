package handlers

import (
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"healthnexus-portal/internal/activity"
	"healthnexus-portal/internal/utils"
)

// ActivityHandler serves the admin activity log as a snapshot and a live
// event stream.
type ActivityHandler struct {
	Activity     *activity.Recorder
	SnapshotSize int
	Heartbeat    time.Duration
}

const (
	defaultSnapshotSize = 20
	defaultHeartbeat    = 25 * time.Second
)

// NewActivityHandler creates a new ActivityHandler. Non-positive values fall
// back to the defaults.
func NewActivityHandler(rec *activity.Recorder, snapshotSize int, heartbeat time.Duration) *ActivityHandler {
	if snapshotSize <= 0 {
		snapshotSize = defaultSnapshotSize
	}
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &ActivityHandler{Activity: rec, SnapshotSize: snapshotSize, Heartbeat: heartbeat}
}

// GetRecent returns the latest events, newest first. ?limit= may lower the
// snapshot size but not raise it.
func (h *ActivityHandler) GetRecent(c *gin.Context) {
	limit := h.SnapshotSize
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 && n < limit {
		limit = n
	}

	events, err := h.Activity.Recent(c.Request.Context(), limit)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch activity: "+err.Error())
		return
	}
	utils.Success(c, events)
}

// Stream pushes every new event as one JSON message and a ping every
// heartbeat interval until the client goes away.
func (h *ActivityHandler) Stream(c *gin.Context) {
	events, unsubscribe := h.Activity.Hub().Subscribe()
	defer unsubscribe()

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// Flush headers right away so clients see the stream open.
	c.SSEvent("ping", "connected")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case e, ok := <-events:
			if !ok {
				return false
			}
			payload, err := json.Marshal(e)
			if err != nil {
				return true
			}
			c.SSEvent("message", string(payload))
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", "keep-alive")
			return true
		}
	})
}
