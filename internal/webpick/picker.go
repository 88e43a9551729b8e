// Package webpick implements calibration.PointPicker as a small local web
// page: the graticule band around the profile row is shown in a browser and
// the user clicks the two reference lines.
package webpick

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ironsheep/graticule-tools/internal/calibration"
	"github.com/ironsheep/graticule-tools/internal/imaging"
)

// ShutdownTimeout bounds how long the page server may take to stop once both
// points are in.
const ShutdownTimeout = 5 * time.Second

// Picker serves the pick page on Listen and waits for two clicks.
type Picker struct {
	// Listen is the TCP address to bind, e.g. "127.0.0.1:8765". Port 0 picks
	// a free port.
	Listen string
	// Strip is the graticule band shown for clicking. Its columns must match
	// the profile's columns one to one.
	Strip image.Image
	// Chart is an optional rendering of the profile shown under the strip.
	Chart image.Image
	// OnReady, when set, is called with the page URL once the server listens.
	OnReady func(url string)
	Log     zerolog.Logger
}

// PickPoints blocks until two points have been clicked, the page reports it
// was closed, or ctx is done. It has no timeout of its own.
func (p *Picker) PickPoints(ctx context.Context, profile imaging.Profile) ([2]calibration.Point, error) {
	if p.Strip == nil {
		return [2]calibration.Point{}, errors.New("web picker needs a strip image")
	}
	if w := p.Strip.Bounds().Dx(); w != profile.Len() {
		return [2]calibration.Point{}, fmt.Errorf("strip width %d does not match profile width %d", w, profile.Len())
	}

	s := newSession(profile, p.Strip, p.Chart, p.Log)

	ln, err := net.Listen("tcp", p.Listen)
	if err != nil {
		return [2]calibration.Point{}, fmt.Errorf("failed to listen on %s: %w", p.Listen, err)
	}
	srv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			p.Log.Warn().Err(err).Msg("pick page server did not shut down cleanly")
		}
	}()

	url := "http://" + ln.Addr().String() + "/"
	p.Log.Info().Str("url", url).Msg("waiting for two clicks on the graticule")
	if p.OnReady != nil {
		p.OnReady(url)
	}

	select {
	case <-s.done:
		return s.result(), nil
	case <-s.aborted:
		return [2]calibration.Point{}, fmt.Errorf("%w: pick page closed before two points were chosen", calibration.ErrCalibrationAborted)
	case <-ctx.Done():
		return [2]calibration.Point{}, fmt.Errorf("%w: %v", calibration.ErrCalibrationAborted, ctx.Err())
	case err := <-serveErr:
		return [2]calibration.Point{}, fmt.Errorf("pick page server failed: %w", err)
	}
}

// session holds the clicks of one PickPoints call.
type session struct {
	profile imaging.Profile
	strip   image.Image
	chart   image.Image
	log     zerolog.Logger

	mu        sync.Mutex
	points    []calibration.Point
	done      chan struct{}
	aborted   chan struct{}
	closeOnce sync.Once
}

func newSession(profile imaging.Profile, strip, chart image.Image, log zerolog.Logger) *session {
	return &session{
		profile: profile,
		strip:   strip,
		chart:   chart,
		log:     log,
		points:  make([]calibration.Point, 0, 2),
		done:    make(chan struct{}),
		aborted: make(chan struct{}),
	}
}

func (s *session) result() [2]calibration.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return [2]calibration.Point{s.points[0], s.points[1]}
}

// clickRequest carries the clicked column only. The stored point's Y is the
// profile intensity at that column, not the clicked row of the strip.
type clickRequest struct {
	X *float64 `json:"x" binding:"required"`
}

type stateResponse struct {
	Row    int                 `json:"row"`
	Width  int                 `json:"width"`
	Needed int                 `json:"needed"`
	Points []calibration.Point `json:"points"`
}

func (s *session) state() stateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	pts := make([]calibration.Point, len(s.points))
	copy(pts, s.points)
	return stateResponse{Row: s.profile.Row, Width: s.profile.Len(), Needed: 2, Points: pts}
}

func (s *session) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pickPage))
	})
	r.GET("/strip.png", func(c *gin.Context) { s.servePNG(c, s.strip) })
	r.GET("/profile.png", func(c *gin.Context) { s.servePNG(c, s.chart) })

	api := r.Group("/api")
	{
		api.GET("/state", func(c *gin.Context) {
			c.JSON(http.StatusOK, s.state())
		})
		api.POST("/points", s.handleClick)
		api.POST("/abort", func(c *gin.Context) {
			s.closeOnce.Do(func() { close(s.aborted) })
			c.Status(http.StatusNoContent)
		})
	}
	return r
}

func (s *session) handleClick(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be JSON with a numeric x"})
		return
	}
	x := *req.X
	xi, ok := s.profile.Index(x)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("x=%g outside profile [0-%d]", x, s.profile.Len()-1)})
		return
	}

	s.mu.Lock()
	if len(s.points) >= 2 {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "both points already chosen"})
		return
	}
	s.points = append(s.points, calibration.Point{X: x, Y: s.profile.Values[xi]})
	n := len(s.points)
	s.mu.Unlock()

	s.log.Debug().Float64("x", x).Int("point", n).Msg("point picked")
	if n == 2 {
		s.closeOnce.Do(func() { close(s.done) })
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *session) servePNG(c *gin.Context, img image.Image) {
	if img == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	c.Header("Content-Type", "image/png")
	if err := imagePNG(c.Writer, img); err != nil {
		s.log.Error().Err(err).Msg("failed to encode figure")
	}
}

func (s *session) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("pick page request")
	}
}
