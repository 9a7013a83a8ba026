package collector

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/LdDl/people-counter/report"
)

var (
	// ErrBusNotFound is returned when bus is not registered
	ErrBusNotFound = errors.New("bus not found")
	// ErrAlertNotFound is returned when alert does not exist
	ErrAlertNotFound = errors.New("alert not found")
	// ErrBusExists is returned on duplicate registration
	ErrBusExists = errors.New("bus already exists")
)

// Activity kinds written to activity log
const (
	ActivityCountUpdate  = "passenger_count_update"
	ActivityRegistration = "bus_registered"
)

const busColumns = `id, bus_number, route, capacity, current_passengers, status, location, last_update, is_active, alert_threshold`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// Store persists buses, passenger updates, alerts and activity in SQLite
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// Open opens (or creates) database at path and applies migrations. Use ":memory:" for throwaway storage.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open database '%s'", path)
	}
	// Single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "can't enable foreign keys")
	}
	store := &Store{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
	if err := store.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases database
func (store *Store) Close() error {
	return store.db.Close()
}

func scanBus(row scanner) (Bus, error) {
	var bus Bus
	var location sql.NullString
	var lastUpdate int64
	err := row.Scan(&bus.ID, &bus.BusNumber, &bus.Route, &bus.Capacity, &bus.CurrentPassengers, &bus.Status, &location, &lastUpdate, &bus.IsActive, &bus.AlertThreshold)
	if err != nil {
		return Bus{}, err
	}
	if location.Valid {
		bus.Location = &location.String
	}
	bus.LastUpdate = time.Unix(0, lastUpdate).UTC()
	return bus, nil
}

func getBus(ctx context.Context, q querier, id string) (Bus, error) {
	bus, err := scanBus(q.QueryRowContext(ctx, `SELECT `+busColumns+` FROM buses WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bus{}, ErrBusNotFound
		}
		return Bus{}, errors.Wrapf(err, "can't read bus '%s'", id)
	}
	return bus, nil
}

// CreateBus registers bus. Zero capacity and threshold fall back to defaults.
func (store *Store) CreateBus(ctx context.Context, req NewBus) (Bus, error) {
	bus := Bus{
		ID:             req.ID,
		BusNumber:      req.BusNumber,
		Route:          req.Route,
		Capacity:       req.Capacity,
		Status:         StatusActive,
		Location:       req.Location,
		LastUpdate:     store.now().UTC(),
		IsActive:       true,
		AlertThreshold: req.AlertThreshold,
	}
	if bus.Capacity == 0 {
		bus.Capacity = DefaultCapacity
	}
	if bus.AlertThreshold == 0 {
		bus.AlertThreshold = DefaultAlertThreshold
	}
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return Bus{}, errors.Wrap(err, "can't begin transaction")
	}
	defer tx.Rollback()

	if _, err := getBus(ctx, tx, bus.ID); err == nil {
		return Bus{}, ErrBusExists
	} else if !errors.Is(err, ErrBusNotFound) {
		return Bus{}, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO buses (`+busColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bus.ID, bus.BusNumber, bus.Route, bus.Capacity, bus.CurrentPassengers, bus.Status, bus.Location, bus.LastUpdate.UnixNano(), bus.IsActive, bus.AlertThreshold,
	)
	if err != nil {
		return Bus{}, errors.Wrapf(err, "can't insert bus '%s'", bus.ID)
	}
	err = insertActivity(ctx, tx, store.newID(), bus.ID, ActivityRegistration, fmt.Sprintf("Bus %s registered on route %s", bus.BusNumber, bus.Route), bus.LastUpdate)
	if err != nil {
		return Bus{}, err
	}
	if err := tx.Commit(); err != nil {
		return Bus{}, errors.Wrap(err, "can't commit bus registration")
	}
	return bus, nil
}

// EnsureBus registers bus unless it already exists
func (store *Store) EnsureBus(ctx context.Context, req NewBus) (Bus, error) {
	bus, err := store.CreateBus(ctx, req)
	if errors.Is(err, ErrBusExists) {
		return store.GetBus(ctx, req.ID)
	}
	return bus, err
}

// GetBus returns bus by its identifier
func (store *Store) GetBus(ctx context.Context, id string) (Bus, error) {
	return getBus(ctx, store.db, id)
}

// ListBuses returns all buses ordered by bus number
func (store *Store) ListBuses(ctx context.Context) ([]Bus, error) {
	return store.queryBuses(ctx, `SELECT `+busColumns+` FROM buses ORDER BY bus_number, id`)
}

// ListActiveBuses returns buses in service
func (store *Store) ListActiveBuses(ctx context.Context) ([]Bus, error) {
	return store.queryBuses(ctx, `SELECT `+busColumns+` FROM buses WHERE is_active = 1 ORDER BY bus_number, id`)
}

func (store *Store) queryBuses(ctx context.Context, query string, args ...interface{}) ([]Bus, error) {
	rows, err := store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "can't query buses")
	}
	defer rows.Close()
	buses := []Bus{}
	for rows.Next() {
		bus, err := scanBus(rows)
		if err != nil {
			return nil, errors.Wrap(err, "can't scan bus")
		}
		buses = append(buses, bus)
	}
	return buses, errors.Wrap(rows.Err(), "can't iterate buses")
}

// ApplyUpdate stores passenger update: bus occupancy and status are refreshed,
// update is recorded in history and activity log, alert is raised above threshold.
func (store *Store) ApplyUpdate(ctx context.Context, update report.Update) (Bus, error) {
	now := store.now().UTC()
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return Bus{}, errors.Wrap(err, "can't begin transaction")
	}
	defer tx.Rollback()

	bus, err := getBus(ctx, tx, update.BusID)
	if err != nil {
		return Bus{}, err
	}
	bus.CurrentPassengers = update.CurrentPassengers
	bus.Status = occupancyStatus(bus, update.CurrentPassengers)
	bus.LastUpdate = now
	if update.Location != "" {
		location := update.Location
		bus.Location = &location
	}
	_, err = tx.ExecContext(ctx, `UPDATE buses SET current_passengers = ?, status = ?, location = ?, last_update = ? WHERE id = ?`,
		bus.CurrentPassengers, bus.Status, bus.Location, now.UnixNano(), bus.ID,
	)
	if err != nil {
		return Bus{}, errors.Wrapf(err, "can't update bus '%s'", bus.ID)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO passenger_data (id, bus_id, passengers_in, passengers_out, timestamp) VALUES (?, ?, ?, ?, ?)`,
		store.newID(), bus.ID, update.PassengersIn, update.PassengersOut, now.UnixNano(),
	)
	if err != nil {
		return Bus{}, errors.Wrapf(err, "can't insert passenger data for bus '%s'", bus.ID)
	}
	err = insertActivity(ctx, tx, store.newID(), bus.ID, ActivityCountUpdate, fmt.Sprintf("Passenger count updated: %d/%d", bus.CurrentPassengers, bus.Capacity), now)
	if err != nil {
		return Bus{}, err
	}
	if bus.CurrentPassengers > int64(bus.AlertThreshold) {
		alert := capacityAlert(bus)
		_, err = tx.ExecContext(ctx, `INSERT INTO alerts (id, bus_id, alert_type, message, severity, is_read, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)`,
			store.newID(), bus.ID, alert.AlertType, alert.Message, alert.Severity, now.UnixNano(),
		)
		if err != nil {
			return Bus{}, errors.Wrapf(err, "can't insert alert for bus '%s'", bus.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return Bus{}, errors.Wrap(err, "can't commit passenger update")
	}
	return bus, nil
}

// capacityAlert builds alert for bus which occupancy is above threshold
func capacityAlert(bus Bus) Alert {
	if bus.CurrentPassengers > int64(bus.Capacity) {
		return Alert{
			AlertType: StatusOverCapacity,
			Severity:  SeverityCritical,
			Message:   fmt.Sprintf("Bus %s exceeded capacity (%d/%d)", bus.BusNumber, bus.CurrentPassengers, bus.Capacity),
		}
	}
	return Alert{
		AlertType: StatusNearCapacity,
		Severity:  SeverityHigh,
		Message:   fmt.Sprintf("Bus %s near capacity (%d/%d)", bus.BusNumber, bus.CurrentPassengers, bus.Capacity),
	}
}

func insertActivity(ctx context.Context, q querier, id, busID, activity, description string, at time.Time) error {
	_, err := q.ExecContext(ctx, `INSERT INTO activity_log (id, bus_id, activity, description, timestamp) VALUES (?, ?, ?, ?, ?)`,
		id, busID, activity, description, at.UnixNano(),
	)
	return errors.Wrapf(err, "can't insert activity for bus '%s'", busID)
}

// PassengerDataForBus returns latest updates of the bus, newest first
func (store *Store) PassengerDataForBus(ctx context.Context, busID string, limit int) ([]PassengerData, error) {
	if _, err := store.GetBus(ctx, busID); err != nil {
		return nil, err
	}
	return store.queryPassengerData(ctx, `SELECT id, bus_id, passengers_in, passengers_out, timestamp FROM passenger_data WHERE bus_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`, busID, limit)
}

// RecentPassengerData returns updates received during the last window
func (store *Store) RecentPassengerData(ctx context.Context, window time.Duration) ([]PassengerData, error) {
	since := store.now().Add(-window).UnixNano()
	return store.queryPassengerData(ctx, `SELECT id, bus_id, passengers_in, passengers_out, timestamp FROM passenger_data WHERE timestamp >= ? ORDER BY timestamp DESC, rowid DESC`, since)
}

func (store *Store) queryPassengerData(ctx context.Context, query string, args ...interface{}) ([]PassengerData, error) {
	rows, err := store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "can't query passenger data")
	}
	defer rows.Close()
	result := []PassengerData{}
	for rows.Next() {
		var item PassengerData
		var ts int64
		if err := rows.Scan(&item.ID, &item.BusID, &item.PassengersIn, &item.PassengersOut, &ts); err != nil {
			return nil, errors.Wrap(err, "can't scan passenger data")
		}
		item.Timestamp = time.Unix(0, ts).UTC()
		result = append(result, item)
	}
	return result, errors.Wrap(rows.Err(), "can't iterate passenger data")
}

// ListAlerts returns alerts newest first. When unreadOnly is set read alerts are skipped.
func (store *Store) ListAlerts(ctx context.Context, unreadOnly bool) ([]Alert, error) {
	query := `SELECT id, bus_id, alert_type, message, severity, is_read, created_at FROM alerts`
	if unreadOnly {
		query += ` WHERE is_read = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	rows, err := store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "can't query alerts")
	}
	defer rows.Close()
	alerts := []Alert{}
	for rows.Next() {
		var alert Alert
		var busID sql.NullString
		var createdAt int64
		if err := rows.Scan(&alert.ID, &busID, &alert.AlertType, &alert.Message, &alert.Severity, &alert.IsRead, &createdAt); err != nil {
			return nil, errors.Wrap(err, "can't scan alert")
		}
		alert.BusID = busID.String
		alert.CreatedAt = time.Unix(0, createdAt).UTC()
		alerts = append(alerts, alert)
	}
	return alerts, errors.Wrap(rows.Err(), "can't iterate alerts")
}

// MarkAlertRead flags alert as read
func (store *Store) MarkAlertRead(ctx context.Context, id string) error {
	res, err := store.db.ExecContext(ctx, `UPDATE alerts SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "can't mark alert '%s'", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "can't read affected rows")
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// RecentActivity returns latest activity entries of all buses
func (store *Store) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	return store.queryActivity(ctx, `SELECT id, bus_id, activity, description, timestamp FROM activity_log ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
}

// ActivityForBus returns latest activity entries of the bus
func (store *Store) ActivityForBus(ctx context.Context, busID string, limit int) ([]Activity, error) {
	if _, err := store.GetBus(ctx, busID); err != nil {
		return nil, err
	}
	return store.queryActivity(ctx, `SELECT id, bus_id, activity, description, timestamp FROM activity_log WHERE bus_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`, busID, limit)
}

func (store *Store) queryActivity(ctx context.Context, query string, args ...interface{}) ([]Activity, error) {
	rows, err := store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "can't query activity")
	}
	defer rows.Close()
	result := []Activity{}
	for rows.Next() {
		var item Activity
		var busID, description sql.NullString
		var ts int64
		if err := rows.Scan(&item.ID, &busID, &item.Activity, &description, &ts); err != nil {
			return nil, errors.Wrap(err, "can't scan activity")
		}
		item.BusID = busID.String
		item.Description = description.String
		item.Timestamp = time.Unix(0, ts).UTC()
		result = append(result, item)
	}
	return result, errors.Wrap(rows.Err(), "can't iterate activity")
}

// DashboardStats aggregates occupancy of active buses and unread alerts
func (store *Store) DashboardStats(ctx context.Context) (DashboardStats, error) {
	buses, err := store.ListActiveBuses(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	stats := DashboardStats{
		ActiveBuses: len(buses),
	}
	capacity := 0
	for _, bus := range buses {
		stats.TotalPassengers += bus.CurrentPassengers
		capacity += bus.Capacity
		if bus.Status == StatusActive {
			stats.ActiveBusesRunning++
		}
	}
	if capacity > 0 {
		stats.AverageOccupancy = int(math.Round(float64(stats.TotalPassengers) / float64(capacity) * 100))
	}
	alerts, err := store.ListAlerts(ctx, true)
	if err != nil {
		return DashboardStats{}, err
	}
	stats.TotalAlerts = len(alerts)
	for _, alert := range alerts {
		if alert.Severity == SeverityCritical {
			stats.CriticalAlerts++
		}
	}
	return stats, nil
}
