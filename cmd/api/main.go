package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evaldash/internal/auth"
	"evaldash/internal/avatar"
	"evaldash/internal/config"
	"evaldash/internal/dashboard"
	"evaldash/internal/evaluation"
	"evaldash/internal/httpmiddleware"
	"evaldash/internal/notify"
	"evaldash/internal/professor"
	"evaldash/internal/state"
	"evaldash/internal/store"
	"evaldash/internal/theme"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	} else if err := db.Migrate(context.Background()); err != nil {
		log.Printf("warning: migrate failed: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var bus notify.Bus
	if cfg.NotifyBackend == "memory" {
		bus = notify.NewInMemory()
	} else {
		bus = notify.NewRedisBus(redisClient.Client)
	}

	local, err := state.Open(cfg.StatePath)
	if err != nil {
		return err
	}

	profRepo := professor.NewRepository(db.Client)
	evalRepo := evaluation.NewRepository(db.Client)
	sessions := professor.NewService(profRepo, local)
	themes := theme.NewStore(local)
	hub := dashboard.NewHub(evalRepo, bus, cfg.DeadlineTick)

	ctx, cancelSessions := context.WithCancel(context.Background())
	defer cancelSessions()

	// Re-establish the previously signed-in professor before serving.
	sessions.Restore(ctx)
	if p := sessions.Current(); p != nil {
		hub.Start(ctx, p)
	}

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Login carries its own limiter; everything else is behind auth
	// already.
	loginLimiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)

	r.POST("/v1/auth/login", loginLimiter.GinMiddleware(), func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		p, err := sessions.SignIn(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, professor.ErrNotFound):
				status = http.StatusNotFound
			case errors.Is(err, professor.ErrInvalidCredential):
				status = http.StatusUnauthorized
			case errors.Is(err, professor.ErrAccountInactive):
				status = http.StatusForbidden
			case errors.Is(err, professor.ErrIncompleteProfile):
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		hub.Start(ctx, p)

		token, err := auth.Issue(p.ID, p.Email, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token": token.Value,
			"expires_at":   token.ExpiresAt.Unix(),
			"professor":    publicProfessor(p),
		})
	})

	// Upload endpoint kept at its historical path and shape. Field name,
	// limits and error strings are part of the contract.
	r.POST("/api/upload-image", func(c *gin.Context) {
		file, _, ferr := c.Request.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": avatar.ErrNoFile.Error()})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process image"})
			return
		}

		dataURL, uerr := avatar.Encode(data, cfg.AvatarMaxBytes)
		if uerr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": uerr.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"url":      dataURL,
			"imageUrl": dataURL,
			"success":  true,
		})
	})

	// Palette reads are public; only applying a theme needs a session.
	r.GET("/v1/themes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"themes": theme.Catalog})
	})

	r.GET("/v1/theme", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"theme": themes.Current()})
	})

	authGroup := r.Group("/v1", auth.ProfessorAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/auth/logout", func(c *gin.Context) {
		claims, ok := auth.FromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		hub.Stop(claims.Email)
		// Only the professor the service holds may end the session;
		// another professor's stale token gets an idempotent 200 without
		// touching it.
		if p := sessions.Current(); p != nil && p.ID == claims.Subject {
			sessions.Logout()
		}
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	})

	authGroup.GET("/auth/session", func(c *gin.Context) {
		claims, ok := auth.FromContext(c)
		p := sessions.Current()
		if !ok || p == nil || p.ID != claims.Subject {
			c.JSON(http.StatusOK, gin.H{
				"professor":    nil,
				"initializing": sessions.Initializing(),
				"loading":      sessions.Loading(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"professor":    publicProfessor(p),
			"initializing": sessions.Initializing(),
			"loading":      sessions.Loading(),
		})
	})

	authGroup.PUT("/profile", func(c *gin.Context) {
		if _, ok := actingProfessor(c, sessions); !ok {
			return
		}
		var req struct {
			Name  string `json:"name" binding:"required"`
			Email string `json:"email" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := sessions.UpdateProfile(c.Request.Context(), req.Name, req.Email); err != nil {
			c.JSON(mutationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"professor": publicProfessor(sessions.Current())})
	})

	authGroup.PUT("/profile/password", func(c *gin.Context) {
		if _, ok := actingProfessor(c, sessions); !ok {
			return
		}
		var req struct {
			CurrentPassword string `json:"currentPassword" binding:"required"`
			NewPassword     string `json:"newPassword" binding:"required,min=6"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := sessions.UpdatePassword(c.Request.Context(), req.CurrentPassword, req.NewPassword); err != nil {
			c.JSON(mutationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "password updated"})
	})

	authGroup.POST("/profile/avatar", func(c *gin.Context) {
		if _, ok := actingProfessor(c, sessions); !ok {
			return
		}
		file, _, ferr := c.Request.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": avatar.ErrNoFile.Error()})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process image"})
			return
		}

		dataURL, uerr := avatar.Encode(data, cfg.AvatarMaxBytes)
		if uerr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": uerr.Error()})
			return
		}
		if err := sessions.SetAvatar(c.Request.Context(), dataURL); err != nil {
			c.JSON(mutationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"imageUrl": dataURL, "success": true})
	})

	authGroup.DELETE("/profile/avatar", func(c *gin.Context) {
		if _, ok := actingProfessor(c, sessions); !ok {
			return
		}
		if err := sessions.DeleteAvatar(c.Request.Context()); err != nil {
			c.JSON(mutationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	authGroup.GET("/dashboard", func(c *gin.Context) {
		session, ok := dashboardSession(c, hub, profRepo, ctx)
		if !ok {
			return
		}
		snap := session.Snapshot()
		summary := dashboard.Summarize(snap.Results)
		c.JSON(http.StatusOK, gin.H{
			"visibility":      snap.Visibility.String(),
			"periodId":        snap.PeriodID,
			"deadlineLoading": snap.DeadlineLoading,
			"loading":         snap.Loading,
			"summary":         summary,
			"totalStudents":   snap.TotalStudents,
			"studentsLoading": snap.StudentsLoading,
		})
	})

	authGroup.GET("/dashboard/questions", func(c *gin.Context) {
		session, ok := dashboardSession(c, hub, profRepo, ctx)
		if !ok {
			return
		}
		snap := session.Snapshot()
		section := c.Query("section")
		c.JSON(http.StatusOK, gin.H{
			"visibility": snap.Visibility.String(),
			"periodId":   snap.PeriodID,
			"questions":  dashboard.ByQuestion(snap.Results, section),
		})
	})

	authGroup.GET("/dashboard/sections", func(c *gin.Context) {
		session, ok := dashboardSession(c, hub, profRepo, ctx)
		if !ok {
			return
		}
		snap := session.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"visibility": snap.Visibility.String(),
			"periodId":   snap.PeriodID,
			"sections":   dashboard.BySection(snap.Results),
		})
	})

	authGroup.PUT("/theme", func(c *gin.Context) {
		var req struct {
			Value string `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		applied, err := themes.Apply(req.Value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"theme": applied})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	hub.StopAll()
	cancelSessions()

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// actingProfessor checks the bearer identity against the signed-in
// session. Profile mutations act on the session's professor, so a valid
// token belonging to anyone else must be rejected, not silently applied
// to the wrong document.
func actingProfessor(c *gin.Context, sessions *professor.Service) (*professor.Professor, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return nil, false
	}
	p := sessions.Current()
	if p == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": professor.ErrNotAuthenticated.Error()})
		return nil, false
	}
	if p.ID != claims.Subject {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token does not match the signed-in professor"})
		return nil, false
	}
	return p, true
}

// dashboardSession resolves the caller's dashboard session, launching
// one on first access after a restart so tokens outlive the process.
func dashboardSession(c *gin.Context, hub *dashboard.Hub, repo *professor.Repository, parent context.Context) (*dashboard.Session, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return nil, false
	}
	if s := hub.Get(claims.Email); s != nil {
		return s, true
	}
	p, err := repo.GetByEmail(c.Request.Context(), claims.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown professor"})
		return nil, false
	}
	return hub.Start(parent, p), true
}

// publicProfessor strips credential material from the identity document.
func publicProfessor(p *professor.Professor) gin.H {
	if p == nil {
		return nil
	}
	return gin.H{
		"id":              p.ID,
		"name":            p.Name,
		"email":           p.Email,
		"departmentId":    p.DepartmentID,
		"departmentName":  p.DepartmentName,
		"imageUrl":        p.ImageURL,
		"status":          p.EffectiveStatus(),
		"subjectSections": p.SubjectSections,
	}
}

// mutationStatus maps profile mutation failures to HTTP statuses.
func mutationStatus(err error) int {
	switch {
	case errors.Is(err, professor.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, professor.ErrInvalidCredential):
		return http.StatusForbidden
	case errors.Is(err, professor.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
