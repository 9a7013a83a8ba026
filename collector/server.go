package collector

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/LdDl/people-counter/internal/monitoring"
	"github.com/LdDl/people-counter/report"
)

const (
	defaultActivityLimit      = 50
	defaultPassengerDataLimit = 100
	defaultRecentHours        = 24
)

// Server exposes Store over HTTP
type Server struct {
	store    *Store
	validate *validator.Validate
}

// NewServer creates API server on top of store
func NewServer(store *Store) *Server {
	return &Server{
		store:    store,
		validate: validator.New(),
	}
}

// Router builds gin engine with every API route registered
func (server *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	api := r.Group("/api")

	api.GET("/buses", server.listBuses)
	api.GET("/buses/active", server.listActiveBuses)
	api.GET("/buses/:id", server.getBus)
	api.POST("/buses", server.createBus)

	api.POST("/passenger-data", server.postPassengerData)
	api.GET("/passenger-data/bus/:busId", server.passengerDataForBus)
	api.GET("/passenger-data/recent", server.recentPassengerData)

	api.GET("/alerts", server.listAlerts)
	api.GET("/alerts/unread", server.listUnreadAlerts)
	api.PATCH("/alerts/:id/read", server.markAlertRead)

	api.GET("/activity", server.recentActivity)
	api.GET("/activity/bus/:busId", server.activityForBus)

	api.GET("/dashboard/stats", server.dashboardStats)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		monitoring.Logf("[collector] %s %s -> %d (%s)", ctx.Request.Method, ctx.Request.URL.Path, ctx.Writer.Status(), time.Since(start))
	}
}

func fail(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"message": message})
}

// failStore maps storage error to response
func failStore(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBusNotFound):
		fail(ctx, http.StatusNotFound, "Bus not found")
	case errors.Is(err, ErrAlertNotFound):
		fail(ctx, http.StatusNotFound, "Alert not found")
	case errors.Is(err, ErrBusExists):
		fail(ctx, http.StatusConflict, "Bus already exists")
	default:
		monitoring.Logf("[collector] Storage failure on %s %s: %s", ctx.Request.Method, ctx.Request.URL.Path, err.Error())
		fail(ctx, http.StatusInternalServerError, "Internal server error")
	}
}

// intQuery reads positive integer query parameter
func intQuery(ctx *gin.Context, name string, fallback int) (int, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		fail(ctx, http.StatusBadRequest, "Invalid '"+name+"' parameter")
		return 0, false
	}
	return value, true
}

func (server *Server) listBuses(ctx *gin.Context) {
	buses, err := server.store.ListBuses(ctx.Request.Context())
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, buses)
}

func (server *Server) listActiveBuses(ctx *gin.Context) {
	buses, err := server.store.ListActiveBuses(ctx.Request.Context())
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, buses)
}

func (server *Server) getBus(ctx *gin.Context) {
	bus, err := server.store.GetBus(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, bus)
}

func (server *Server) createBus(ctx *gin.Context) {
	var req NewBus
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "Invalid bus data")
		return
	}
	if err := server.validate.Struct(req); err != nil {
		fail(ctx, http.StatusBadRequest, "Invalid bus data: "+err.Error())
		return
	}
	bus, err := server.store.CreateBus(ctx.Request.Context(), req)
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, bus)
}

func (server *Server) postPassengerData(ctx *gin.Context) {
	var update report.Update
	if err := ctx.ShouldBindJSON(&update); err != nil {
		fail(ctx, http.StatusBadRequest, "Invalid passenger data")
		return
	}
	if err := server.validate.Struct(update); err != nil {
		fail(ctx, http.StatusBadRequest, "Invalid passenger data: "+err.Error())
		return
	}
	bus, err := server.store.ApplyUpdate(ctx.Request.Context(), update)
	if err != nil {
		failStore(ctx, err)
		return
	}
	if bus.Status != StatusActive {
		monitoring.Logf("[collector] Bus %s is %s (%d/%d)", bus.BusNumber, bus.Status, bus.CurrentPassengers, bus.Capacity)
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "bus": bus})
}

func (server *Server) passengerDataForBus(ctx *gin.Context) {
	limit, ok := intQuery(ctx, "limit", defaultPassengerDataLimit)
	if !ok {
		return
	}
	data, err := server.store.PassengerDataForBus(ctx.Request.Context(), ctx.Param("busId"), limit)
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, data)
}

func (server *Server) recentPassengerData(ctx *gin.Context) {
	hours, ok := intQuery(ctx, "hours", defaultRecentHours)
	if !ok {
		return
	}
	data, err := server.store.RecentPassengerData(ctx.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, data)
}

func (server *Server) listAlerts(ctx *gin.Context) {
	alerts, err := server.store.ListAlerts(ctx.Request.Context(), false)
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, alerts)
}

func (server *Server) listUnreadAlerts(ctx *gin.Context) {
	alerts, err := server.store.ListAlerts(ctx.Request.Context(), true)
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, alerts)
}

func (server *Server) markAlertRead(ctx *gin.Context) {
	if err := server.store.MarkAlertRead(ctx.Request.Context(), ctx.Param("id")); err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (server *Server) recentActivity(ctx *gin.Context) {
	limit, ok := intQuery(ctx, "limit", defaultActivityLimit)
	if !ok {
		return
	}
	activity, err := server.store.RecentActivity(ctx.Request.Context(), limit)
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, activity)
}

func (server *Server) activityForBus(ctx *gin.Context) {
	limit, ok := intQuery(ctx, "limit", defaultActivityLimit)
	if !ok {
		return
	}
	activity, err := server.store.ActivityForBus(ctx.Request.Context(), ctx.Param("busId"), limit)
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, activity)
}

func (server *Server) dashboardStats(ctx *gin.Context) {
	stats, err := server.store.DashboardStats(ctx.Request.Context())
	if err != nil {
		failStore(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}
