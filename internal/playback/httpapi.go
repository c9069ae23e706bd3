package playback

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ako-systems/autoplayer/internal/clock"
	"github.com/ako-systems/autoplayer/internal/keymap"
)

// HTTPAPI fronts a Service with the command-channel HTTP surface the
// spec's §9 design note asks for: a thin control API that a UI (or
// anything else) drives instead of calling Service directly in-process.
// Grounded on mattdees-guitartutor/backend/main.go's gin.Default + cors
// router wiring and backend/handlers/api.go's gin.H JSON response style.
type HTTPAPI struct {
	svc    *Service
	engine *gin.Engine
}

// NewHTTPAPI builds a gin router exposing /play /pause /resume /stop
// /schedule /progress over svc. CORS origins come from CORS_ORIGINS
// (comma-separated), defaulting to "*" as the teacher's handler does.
func NewHTTPAPI(svc *Service) *HTTPAPI {
	r := gin.Default()

	originsEnv := os.Getenv("CORS_ORIGINS")
	if originsEnv == "" {
		originsEnv = "*"
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins: strings.Split(originsEnv, ","),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	api := &HTTPAPI{svc: svc, engine: r}
	api.routes()
	return api
}

func (a *HTTPAPI) routes() {
	a.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	a.engine.POST("/play", a.handlePlay)
	a.engine.POST("/pause", a.handlePause)
	a.engine.POST("/resume", a.handleResume)
	a.engine.POST("/stop", a.handleStop)
	a.engine.POST("/schedule", a.handleSchedule)
	a.engine.GET("/progress", a.handleProgress)
}

type playRequest struct {
	Path         string   `json:"path"`
	Parts        []string `json:"parts"`
	Tempo        float64  `json:"tempo"`
	IncludeRoles []string `json:"include_roles"`
}

func (a *HTTPAPI) handlePlay(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Tempo > 0 {
		a.svc.SetTempo(req.Tempo)
	}

	roles := make([]keymap.Role, 0, len(req.IncludeRoles))
	for _, r := range req.IncludeRoles {
		roles = append(roles, keymap.Role(r))
	}

	var err error
	switch {
	case len(req.Parts) > 0:
		err = a.svc.PlayParts(req.Parts, roles...)
	case req.Path != "":
		err = a.svc.StartFromPath(req.Path)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "path or parts required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (a *HTTPAPI) handlePause(c *gin.Context) {
	a.svc.Pause()
	c.JSON(http.StatusOK, gin.H{"status": string(a.svc.State())})
}

func (a *HTTPAPI) handleResume(c *gin.Context) {
	a.svc.Resume()
	c.JSON(http.StatusOK, gin.H{"status": string(a.svc.State())})
}

func (a *HTTPAPI) handleStop(c *gin.Context) {
	a.svc.StopAll()
	c.JSON(http.StatusOK, gin.H{"status": string(a.svc.State())})
}

type scheduleRequest struct {
	Path                 string  `json:"path"`
	BaseUnixSeconds      float64 `json:"base_unix_seconds"`
	ManualCompensationMs float64 `json:"manual_compensation_ms"`
}

// handleSchedule arms a one-shot StartFromPath at a future wall-clock
// time via the service's clock provider, echoing the clock handle in the
// response (spec §3 ScheduleRecord). No HTTP route cancels it.
func (a *HTTPAPI) handleSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path required"})
		return
	}

	a.svc.mu.Lock()
	clk := a.svc.clock
	a.svc.mu.Unlock()

	fire := func() {
		if err := a.svc.StartFromPath(req.Path); err != nil {
			a.svc.log.WithError(err).Error("scheduled start failed")
		}
	}

	// NetworkClock records base_unix_seconds and manual_compensation_ms
	// separately on the ScheduleRecord so background resync can recompute
	// the real target (spec §3); a plain clock.Clock has no such record
	// and fires once at base_unix_seconds plus the manual compensation.
	var handle clock.Handle
	var err error
	if nc, ok := clk.(*clock.NetworkClock); ok {
		handle, err = nc.ScheduleAtManual(req.BaseUnixSeconds, req.ManualCompensationMs, fire)
	} else {
		handle, err = clk.ScheduleAt(req.BaseUnixSeconds+req.ManualCompensationMs/1000.0, fire)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"handle": string(handle)})
}

func (a *HTTPAPI) handleProgress(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": string(a.svc.State())})
}

// Handler exposes the underlying gin engine (e.g. for http.ListenAndServe
// or tests using httptest).
func (a *HTTPAPI) Handler() http.Handler { return a.engine }
