package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"meanrev-bot/internal/bot"
	"meanrev-bot/internal/events"
	"meanrev-bot/pkg/db"
)

// Server exposes the bot's control surface. It shares exactly two things
// with the trading loop: the run flag (via *bot.Loop) and the ledger.
type Server struct {
	Router    *gin.Engine
	DB        *db.Database
	Loop      *bot.Loop
	Bus       *events.Bus
	Portfolio []string
}

func NewServer(database *db.Database, loop *bot.Loop, bus *events.Bus, portfolio []string) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger())
	r.Use(rateLimit())
	r.Use(cors())

	s := &Server{
		Router:    r,
		DB:        database,
		Loop:      loop,
		Bus:       bus,
		Portfolio: portfolio,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/", s.status)
	s.Router.GET("/health", s.health)
	s.Router.POST("/start", s.start)
	s.Router.POST("/stop", s.stop)
	s.Router.GET("/trades", s.trades)
	s.Router.GET("/logs", s.logs)
	s.Router.GET("/stats", s.stats)
	s.Router.GET("/ws", s.websocket)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}

// cors keeps the dashboard origin-agnostic.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("RequestID", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[API] %s %s | %d | %v | %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// rateLimit guards against dashboard polling storms: 20 req/s per IP.
func rateLimit() gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	return func(c *gin.Context) {
		mu.Lock()
		lim, ok := limiters[c.ClientIP()]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(20), 50)
			limiters[c.ClientIP()] = lim
		}
		mu.Unlock()

		if !lim.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
