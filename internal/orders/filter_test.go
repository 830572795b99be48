package orders

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func sampleOrders(t *testing.T) []Order {
	t.Helper()
	docs := []string{
		`{"id":"o1","buyerUid":"u123","status":"pending_payment"}`,
		`{"id":"o2","buyerId":"u123","trackingNumber":"1Z1","deliveryDate":"2025-06-20","deliveryTime":"10:00"}`,
		`{"id":"o3","buyerInfo":{"uid":"u999"},"trackingNumber":"1Z2","shippedData":{"deliveryDate":"2025-06-21","deliveryTime":"11:00"}}`,
		`{"id":"o4","buyerInfo":{"id":"u123"},"status":"Ready to Fly","leafTrailStatus":"missing"}`,
		`{"id":"o5","buyerUid":"u123","status":"ready to fly"}`,
		`null`,
		`{"id":"o6","status":"pending_payment"}`,
		`{"id":"o7","buyerUid":"u123","tracking":{"number":"1Z3"},"delivery":{"date":"2025-06-22","time":"12:00"},"creditRequests":[{"id":"c1"}]}`,
	}
	list := make([]Order, 0, len(docs))
	for _, d := range docs {
		list = append(list, orderOf(t, d))
	}
	return list
}

func ids(list []Order) []string {
	out := make([]string, 0, len(list))
	for _, o := range list {
		out = append(out, o.ID())
	}
	return out
}

func TestFilterByTab(t *testing.T) {
	c := fixedClassifier(time.Now())
	list := sampleOrders(t)

	tests := []struct {
		tab   Tab
		owner string
		want  []string
	}{
		{tab: PayToBoard, want: []string{"o1", "o6"}},
		{tab: PayToBoard, owner: "u123", want: []string{"o1"}},
		{tab: ReadyToFly, want: []string{"o5"}},
		{tab: PlantsAreHome, want: []string{"o2", "o3", "o7"}},
		{tab: PlantsAreHome, owner: "u123", want: []string{"o2", "o7"}},
		{tab: JourneyMishap, want: []string{"o4", "o7"}},
		{tab: JourneyMishap, owner: "u999", want: []string{}},
	}

	for _, tc := range tests {
		t.Run(string(tc.tab)+"/"+tc.owner, func(t *testing.T) {
			got := c.FilterByTab(list, tc.tab, tc.owner)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestFilterByTab_Idempotent(t *testing.T) {
	c := fixedClassifier(time.Now())
	list := sampleOrders(t)

	for _, tab := range AllTabs {
		once := c.FilterByTab(list, tab, "")
		twice := c.FilterByTab(once, tab, "")
		assert.Equal(t, ids(once), ids(twice), tab)
	}
}

func TestFilterByTab_OwnerFallbackResolution(t *testing.T) {
	c := fixedClassifier(time.Now())
	list := []Order{
		orderOf(t, `{"id":"a","buyerId":"u123","trackingNumber":"T","deliveryDate":"d","deliveryTime":"t"}`),
		orderOf(t, `{"id":"b","buyerUid":"u124","buyerId":"u123","trackingNumber":"T","deliveryDate":"d","deliveryTime":"t"}`),
		orderOf(t, `{"id":"c","trackingNumber":"T","deliveryDate":"d","deliveryTime":"t"}`),
	}

	got := c.FilterByTab(list, PlantsAreHome, "u123")
	assert.Equal(t, []string{"a"}, ids(got))
}

func TestFilterByTab_UnknownTabFailsOpen(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := NewClassifier(WithLogger(zap.New(core)))
	list := sampleOrders(t)

	got := c.FilterByTab(list, Tab("nonexistent_tab"), "u123")

	require.Len(t, got, len(list))
	for i := range list {
		assert.Equal(t, list[i].Raw(), got[i].Raw())
	}
	assert.Equal(t, 1, logs.FilterMessage("unknown order tab, returning unfiltered orders").Len())
}

func TestFilterByTab_PreservesDocuments(t *testing.T) {
	c := fixedClassifier(time.Now())
	raw := `[{"status":"pending_payment","extra":{"nested":[1,2,3]},"buyerUid":"u1"}]`

	var list []Order
	require.NoError(t, json.Unmarshal([]byte(raw), &list))

	out, err := json.Marshal(c.FilterByTab(list, PayToBoard, "u1"))
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestFilterByTab_EmptyInput(t *testing.T) {
	c := fixedClassifier(time.Now())

	got := c.FilterByTab(nil, PayToBoard, "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterByOwner(t *testing.T) {
	list := sampleOrders(t)

	assert.Equal(t, []string{"o1", "o2", "o4", "o5", "o7"}, ids(FilterByOwner(list, "u123")))
	assert.Len(t, FilterByOwner(list, ""), len(list))
}

func TestCountByTab(t *testing.T) {
	c := fixedClassifier(time.Now())
	list := sampleOrders(t)

	counts := c.CountByTab(list, "u123")

	assert.Equal(t, map[Tab]int{
		PayToBoard:    1,
		ReadyToFly:    1,
		PlantsAreHome: 2,
		JourneyMishap: 2,
	}, counts)
}
