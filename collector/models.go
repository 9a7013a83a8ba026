package collector

import (
	"time"
)

// Bus statuses
const (
	StatusActive       = "active"
	StatusNearCapacity = "near_capacity"
	StatusOverCapacity = "over_capacity"
)

// Alert severities
const (
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Defaults applied to buses created without explicit limits
const (
	DefaultCapacity       = 40
	DefaultAlertThreshold = 35
)

// Bus is a monitored vehicle with its latest occupancy
type Bus struct {
	ID                string    `json:"id"`
	BusNumber         string    `json:"busNumber"`
	Route             string    `json:"route"`
	Capacity          int       `json:"capacity"`
	CurrentPassengers int64     `json:"currentPassengers"`
	Status            string    `json:"status"`
	Location          *string   `json:"location"`
	LastUpdate        time.Time `json:"lastUpdate"`
	IsActive          bool      `json:"isActive"`
	AlertThreshold    int       `json:"alertThreshold"`
}

// NewBus is request for bus registration
type NewBus struct {
	ID             string  `json:"id" validate:"required"`
	BusNumber      string  `json:"busNumber" validate:"required"`
	Route          string  `json:"route" validate:"required"`
	Capacity       int     `json:"capacity" validate:"gte=0"`
	AlertThreshold int     `json:"alertThreshold" validate:"gte=0"`
	Location       *string `json:"location"`
}

// PassengerData is a single received update
type PassengerData struct {
	ID            string    `json:"id"`
	BusID         string    `json:"busId"`
	PassengersIn  int64     `json:"passengersIn"`
	PassengersOut int64     `json:"passengersOut"`
	Timestamp     time.Time `json:"timestamp"`
}

// Alert is raised when occupancy goes above alert threshold
type Alert struct {
	ID        string    `json:"id"`
	BusID     string    `json:"busId"`
	AlertType string    `json:"alertType"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activity is an entry of activity log
type Activity struct {
	ID          string    `json:"id"`
	BusID       string    `json:"busId"`
	Activity    string    `json:"activity"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// DashboardStats summarizes fleet state
type DashboardStats struct {
	TotalPassengers    int64 `json:"totalPassengers"`
	ActiveBuses        int   `json:"activeBuses"`
	ActiveBusesRunning int   `json:"activeBusesRunning"`
	AverageOccupancy   int   `json:"averageOccupancy"`
	CriticalAlerts     int   `json:"criticalAlerts"`
	TotalAlerts        int   `json:"totalAlerts"`
}

// occupancyStatus classifies occupancy against bus limits
func occupancyStatus(bus Bus, current int64) string {
	switch {
	case current > int64(bus.Capacity):
		return StatusOverCapacity
	case current >= int64(bus.AlertThreshold):
		return StatusNearCapacity
	default:
		return StatusActive
	}
}
