package orders

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Upstream producers disagree on field names, so every logical field is an
// ordered list of paths. The first match wins.
var (
	idPaths           = []string{"id", "orderId", "orderID"}
	buyerIDPaths      = []string{"buyerUid", "buyerId", "buyerInfo.uid", "buyerInfo.id"}
	statusPaths       = []string{"status", "orderStatus"}
	leafTrailPaths    = []string{"leafTrailStatus"}
	trackingPaths     = []string{"shippingData.trackingNumber", "tracking.number", "trackingNumber"}
	deliveryDatePaths = []string{"shippedData.deliveryDate", "delivery.date", "deliveryDate"}
	deliveryTimePaths = []string{"shippedData.deliveryTime", "delivery.time", "deliveryTime"}
	flightDatePaths   = []string{"flightDate", "cargoDate"}
	creditPaths       = []string{"creditRequests"}
)

// firstPresent returns the first path whose value exists and is not null.
func firstPresent(doc gjson.Result, paths []string) (gjson.Result, bool) {
	if !doc.IsObject() {
		return gjson.Result{}, false
	}
	for _, p := range paths {
		v := doc.Get(p)
		if v.Exists() && v.Type != gjson.Null {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// firstTruthy is firstPresent that also skips false, zero and empty strings.
func firstTruthy(doc gjson.Result, paths []string) (gjson.Result, bool) {
	if !doc.IsObject() {
		return gjson.Result{}, false
	}
	for _, p := range paths {
		v := doc.Get(p)
		if truthy(v) {
			return v, true
		}
	}
	return gjson.Result{}, false
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	case gjson.True, gjson.JSON:
		return true
	default:
		return false
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// BuyerID resolves the owning buyer. A non-string identity resolves but never
// equals a string owner filter, so it is reported as absent.
func (o Order) BuyerID() (string, bool) {
	v, ok := firstPresent(o.doc, buyerIDPaths)
	if !ok || v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}

// Status is the normalized order status, empty when absent.
func (o Order) Status() string {
	v, ok := firstTruthy(o.doc, statusPaths)
	if !ok {
		return ""
	}
	return normalize(v.String())
}

// LeafTrailStatus is the normalized handling stage, empty when absent.
func (o Order) LeafTrailStatus() string {
	v, ok := firstTruthy(o.doc, leafTrailPaths)
	if !ok {
		return ""
	}
	return normalize(v.String())
}

func (o Order) TrackingNumber() (string, bool) {
	v, ok := firstTruthy(o.doc, trackingPaths)
	if !ok {
		return "", false
	}
	return v.String(), true
}

func (o Order) DeliveryDate() (string, bool) {
	v, ok := firstTruthy(o.doc, deliveryDatePaths)
	if !ok {
		return "", false
	}
	return v.String(), true
}

func (o Order) DeliveryTime() (string, bool) {
	v, ok := firstTruthy(o.doc, deliveryTimePaths)
	if !ok {
		return "", false
	}
	return v.String(), true
}

// CreditRequestCount is the length of the creditRequests array, 0 when the
// field is missing or not an array.
func (o Order) CreditRequestCount() int {
	v, ok := firstPresent(o.doc, creditPaths)
	if !ok || !v.IsArray() {
		return 0
	}
	return len(v.Array())
}

// FlightDate resolves the scheduled export date from flightDate or cargoDate.
func (o Order) FlightDate() (time.Time, bool) {
	v, ok := firstTruthy(o.doc, flightDatePaths)
	if !ok {
		return time.Time{}, false
	}
	return parseTimestamp(v)
}

// Zone-less layouts are read as UTC, matching how the JavaScript clients
// parse date-only strings.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(v gjson.Result) (time.Time, bool) {
	switch {
	case v.IsObject():
		secs := v.Get("_seconds")
		nanos := v.Get("_nanoseconds")
		if !secs.Exists() {
			secs = v.Get("seconds")
			nanos = v.Get("nanoseconds")
		}
		if secs.Type != gjson.Number {
			return time.Time{}, false
		}
		return time.Unix(secs.Int(), nanos.Int()).UTC(), true
	case v.Type == gjson.Number:
		return time.UnixMilli(v.Int()).UTC(), true
	case v.Type == gjson.String:
		s := strings.TrimSpace(v.Str)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
