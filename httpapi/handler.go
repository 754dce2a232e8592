package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/domain"
)

// Handler serves the conversion endpoints.
type Handler struct {
	svc     Service
	catalog Catalog
	log     zerolog.Logger
}

// ConvertRequest is the body of POST /convert.
type ConvertRequest struct {
	Input             string `json:"input" binding:"required"`
	UseAIMode         bool   `json:"use_ai_mode"`
	UseAPIEnhancement bool   `json:"use_api_enhancement"`
	CorrelationID     string `json:"correlation_id"`
	// Wait holds the response until the conversion finished.
	Wait bool `json:"wait"`
}

// Submitted is the response of an asynchronous POST /convert.
type Submitted struct {
	ID    string `json:"id"`
	Input string `json:"input"`
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "running": len(h.svc.Active())})
}

// Formats handles GET /formats
func (h *Handler) Formats(c *gin.Context) {
	RespondOK(c, gin.H{"formats": h.catalog.SupportedFormats()})
}

// Info handles GET /info
func (h *Handler) Info(c *gin.Context) {
	info := h.catalog.GetConversionInfo(c.Request.Context())
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(info))
}

// Convert handles POST /convert
func (h *Handler) Convert(c *gin.Context) {
	var body ConvertRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	req := domain.NewRequest(strings.TrimSpace(body.Input), domain.Flags{
		UseAIMode:         body.UseAIMode,
		UseAPIEnhancement: body.UseAPIEnhancement,
	})
	req.CorrelationID = body.CorrelationID

	task, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		status, code := MapError(err)
		RespondError(c, status, code, err.Error())
		return
	}
	if !body.Wait {
		RespondAccepted(c, Submitted{ID: task.ID, Input: req.Input})
		return
	}

	res, err := task.Wait(c.Request.Context())
	if err != nil {
		// The client left; the conversion keeps running.
		h.log.Debug().Str("conversion_id", task.ID).Msg("client stopped waiting")
		return
	}
	RespondOK(c, res)
}

// List handles GET /conversions
func (h *Handler) List(c *gin.Context) {
	RespondOK(c, gin.H{"running": h.svc.Active()})
}

// Cancel handles DELETE /conversions/:id
func (h *Handler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !h.svc.Cancel(id) {
		RespondError(c, http.StatusNotFound, "NOT_RUNNING", "no running conversion with id "+id)
		return
	}
	RespondOK(c, gin.H{"id": id, "cancelled": true})
}

// Progress handles GET /progress as a server-sent event stream. The
// optional id query parameter restricts the feed to one conversion; the
// stream then ends after its terminal event.
func (h *Handler) Progress(c *gin.Context) {
	id := c.Query("id")
	bus := h.svc.Broadcaster()

	// Subscribe before looking the id up so its terminal event cannot slip
	// between the check and the subscription.
	sub, events := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	if id != "" && !h.running(id) {
		if _, ok := bus.Last(id); !ok {
			RespondError(c, http.StatusNotFound, "NOT_RUNNING", "no running conversion with id "+id)
			return
		}
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	if id != "" {
		if last, ok := bus.Last(id); ok {
			c.SSEvent("progress", last)
			if last.Status.Terminal() {
				return
			}
		}
	}

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			if id != "" && evt.ConversionID != id {
				return true
			}
			c.SSEvent("progress", evt)
			return id == "" || !evt.Status.Terminal()
		}
	})
}

func (h *Handler) running(id string) bool {
	for _, a := range h.svc.Active() {
		if a == id {
			return true
		}
	}
	return false
}
