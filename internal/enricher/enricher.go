package enricher

import (
	"net"
	"time"

	"github.com/mssola/useragent"
	"github.com/oschwald/geoip2-golang"

	"github.com/EricCohen9/melingo/internal/tracker"
)

// Enricher decorates incoming tracking events with client context derived
// from the request: user agent breakdown and, when a GeoIP database is
// configured, coarse location.
type Enricher struct {
	geoIP *geoip2.Reader
}

func New(geoIPPath string) *Enricher {
	var geoIP *geoip2.Reader
	if geoIPPath != "" {
		geoIP, _ = geoip2.Open(geoIPPath)
	}
	return &Enricher{geoIP: geoIP}
}

// Event is a tracking event plus server-side context.
type Event struct {
	tracker.Event

	ServerTimestamp int64  `json:"server_timestamp"`
	Browser         string `json:"browser,omitempty"`
	BrowserVersion  string `json:"browser_version,omitempty"`
	OS              string `json:"os,omitempty"`
	DeviceType      string `json:"device_type,omitempty"`
	Country         string `json:"country,omitempty"`
	City            string `json:"city,omitempty"`
	ClientIP        string `json:"client_ip,omitempty"`
}

func (e *Enricher) Enrich(ev tracker.Event, userAgentString, clientIP string) *Event {
	enriched := &Event{
		Event:           ev,
		ServerTimestamp: time.Now().UnixMilli(),
		ClientIP:        clientIP,
	}

	if userAgentString != "" {
		ua := useragent.New(userAgentString)
		enriched.Browser, enriched.BrowserVersion = ua.Browser()
		enriched.OS = ua.OS()
		enriched.DeviceType = deviceType(ua)
	}

	if e.geoIP != nil && clientIP != "" {
		if ip := net.ParseIP(clientIP); ip != nil {
			if record, err := e.geoIP.City(ip); err == nil {
				enriched.Country = record.Country.IsoCode
				if name, ok := record.City.Names["en"]; ok {
					enriched.City = name
				}
			}
		}
	}

	return enriched
}

func deviceType(ua *useragent.UserAgent) string {
	if ua.Mobile() {
		return "mobile"
	}
	if ua.Bot() {
		return "bot"
	}
	return "desktop"
}

func (e *Enricher) Close() {
	if e.geoIP != nil {
		e.geoIP.Close()
	}
}
