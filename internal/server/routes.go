package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/retrolab/c64bridge/internal/facade"
)

// maxPrgUpload bounds uploaded program images; the whole machine is 64 KiB.
const maxPrgUpload = 1 << 20

func (b *Bridge) registerRoutes() {
	b.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(b.started).String(),
			"backend": string(b.selection.Kind),
		})
	})

	b.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := b.router.Group("/v1")

	v1.GET("/backend", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"kind":    string(b.selection.Kind),
			"reason":  b.selection.Reason,
			"details": b.selection.Details,
		})
	})

	v1.GET("/version", func(c *gin.Context) {
		v, err := b.backend().Version(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	})

	v1.GET("/info", func(c *gin.Context) {
		info, err := b.backend().Info(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	})

	v1.GET("/mem", func(c *gin.Context) {
		address, ok := parseAddress(c)
		if !ok {
			return
		}
		length, err := strconv.Atoi(c.DefaultQuery("length", "1"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unparseable length"})
			return
		}
		data, err := b.backend().ReadMemory(c.Request.Context(), address, length)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", data)
	})

	v1.PUT("/mem", func(c *gin.Context) {
		address, ok := parseAddress(c)
		if !ok {
			return
		}
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPrgUpload))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reading body"})
			return
		}
		if err := b.backend().WriteMemory(c.Request.Context(), address, data); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "written": len(data)})
	})

	v1.POST("/run", func(c *gin.Context) {
		b.injectPrg(c, b.backend().RunPrg)
	})

	v1.POST("/load", func(c *gin.Context) {
		b.injectPrg(c, b.backend().LoadPrg)
	})

	for _, action := range []struct {
		path string
		call func(*gin.Context) error
	}{
		{"/reset", func(c *gin.Context) error { return b.backend().Reset(c.Request.Context()) }},
		{"/reboot", func(c *gin.Context) error { return b.backend().Reboot(c.Request.Context()) }},
		{"/pause", func(c *gin.Context) error { return b.backend().Pause(c.Request.Context()) }},
		{"/resume", func(c *gin.Context) error { return b.backend().Resume(c.Request.Context()) }},
		{"/poweroff", func(c *gin.Context) error { return b.backend().Poweroff(c.Request.Context()) }},
	} {
		call := action.call
		v1.POST(action.path, func(c *gin.Context) {
			if err := call(c); err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	v1.GET("/drives", func(c *gin.Context) {
		drives, err := b.backend().DrivesList(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"drives": drives})
	})
}

func (b *Bridge) injectPrg(c *gin.Context, inject func(ctx context.Context, prg []byte) error) {
	prg, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPrgUpload))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading body"})
		return
	}
	if err := inject(c.Request.Context(), prg); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "bytes": len(prg)})
}

func parseAddress(c *gin.Context) (int, bool) {
	raw := c.Query("address")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address query parameter required"})
		return 0, false
	}
	address, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address must be hexadecimal"})
		return 0, false
	}
	return int(address), true
}

// writeError maps the error taxonomy onto HTTP statuses: bad input 400,
// capability gaps 501, budget overruns 504, everything else 502.
func writeError(c *gin.Context, err error) {
	var (
		validation  *facade.ValidationError
		unsupported *facade.UnsupportedOperationError
		timeout     *facade.TimeoutError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &unsupported):
		c.JSON(http.StatusNotImplemented, gin.H{
			"error":   err.Error(),
			"op":      string(unsupported.Op),
			"backend": string(unsupported.Backend),
		})
	case errors.As(err, &timeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
