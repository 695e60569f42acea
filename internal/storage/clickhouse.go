package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/EricCohen9/melingo/internal/config"
	"github.com/EricCohen9/melingo/internal/enricher"
)

type ClickHouse struct {
	conn driver.Conn
}

// EventRow is a row in the events archive table.
type EventRow struct {
	SessionID  string
	EventType  string
	PageType   string
	PageURL    string
	Timestamp  time.Time
	Browser    string
	OS         string
	DeviceType string
	Country    string
	City       string
	Data       string
}

func NewClickHouse(cfg config.ClickHouseConfig) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	return &ClickHouse{conn: conn}, nil
}

func (c *ClickHouse) InsertEvents(ctx context.Context, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO events (
			session_id, event_type, page_type, page_url, timestamp,
			browser, os, device_type, country, city, data
		)
	`)
	if err != nil {
		return err
	}

	for _, e := range events {
		err := batch.Append(
			e.SessionID, e.EventType, e.PageType, e.PageURL, e.Timestamp,
			e.Browser, e.OS, e.DeviceType, e.Country, e.City, e.Data,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}

// RowFromEvent converts an enriched tracking event to its archive row.
func RowFromEvent(ev *enricher.Event) EventRow {
	row := EventRow{
		SessionID:  ev.SessionID,
		EventType:  ev.EventType,
		PageType:   ev.PageType,
		PageURL:    ev.PageURL,
		Timestamp:  time.UnixMicro(int64(ev.Timestamp * 1e6)),
		Browser:    ev.Browser,
		OS:         ev.OS,
		DeviceType: ev.DeviceType,
		Country:    ev.Country,
		City:       ev.City,
	}
	if len(ev.Data) > 0 {
		if data, err := json.Marshal(ev.Data); err == nil {
			row.Data = string(data)
		}
	}
	return row
}
