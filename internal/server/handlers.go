package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/orders"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/respcache"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/upstream"
)

// BuyerOrdersNamespace is the cache namespace of the buyer orders lookup.
const BuyerOrdersNamespace = "GET_BUYER_ORDERS"

type ordersResponse struct {
	Tab    string         `json:"tab,omitempty"`
	Title  string         `json:"title,omitempty"`
	Orders []orders.Order `json:"orders"`
}

type countsResponse struct {
	Total  int                `json:"total"`
	Counts map[orders.Tab]int `json:"counts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBuyerOrders(w http.ResponseWriter, r *http.Request) {
	buyerID := strings.TrimSpace(mux.Vars(r)["buyerID"])
	if buyerID == "" {
		respondError(w, http.StatusBadRequest, "Missing buyer ID")
		return
	}

	list, ok := s.loadOrders(w, r, buyerID)
	if !ok {
		return
	}

	param := strings.TrimSpace(r.URL.Query().Get("tab"))
	resp := ordersResponse{}
	label := "all"

	switch {
	case param == "":
		resp.Orders = orders.FilterByOwner(list, buyerID)
	default:
		tab, known := orders.ParseTab(param)
		if !known {
			// unfiltered, logged by the classifier
			tab = orders.Tab(param)
			label = "unknown"
		} else {
			label = tab.String()
			resp.Title = tab.Title()
		}
		resp.Tab = tab.String()
		resp.Orders = s.classifier.FilterByTab(list, tab, buyerID)
	}
	if resp.Orders == nil {
		resp.Orders = []orders.Order{}
	}

	metrics.OrdersServedTotal.WithLabelValues(label).Add(float64(len(resp.Orders)))
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOrderCounts(w http.ResponseWriter, r *http.Request) {
	buyerID := strings.TrimSpace(mux.Vars(r)["buyerID"])
	if buyerID == "" {
		respondError(w, http.StatusBadRequest, "Missing buyer ID")
		return
	}

	list, ok := s.loadOrders(w, r, buyerID)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, countsResponse{
		Total:  len(orders.FilterByOwner(list, buyerID)),
		Counts: s.classifier.CountByTab(list, buyerID),
	})
}

// loadOrders reads the buyer's orders through the response cache. On failure
// it writes the error response and returns false.
func (s *Server) loadOrders(w http.ResponseWriter, r *http.Request, buyerID string) ([]orders.Order, bool) {
	token := bearerToken(r)
	key := respcache.NewKey(BuyerOrdersNamespace, upstream.BuyerOrdersQuery(buyerID), respcache.UserKey(token))

	raw, source, err := s.cache.Get(r.Context(), key, s.memoryTTL, func(ctx context.Context) (json.RawMessage, error) {
		return s.source.FetchBuyerOrders(ctx, token, buyerID)
	})
	if err != nil {
		s.respondSourceError(w, r, buyerID, err)
		return nil, false
	}
	w.Header().Set(cacheHeader, string(source))

	var list []orders.Order
	if err := json.Unmarshal(raw, &list); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("decode_orders").Inc()
		s.logger.Error("order source returned a non-array payload",
			zap.String("buyer_id", buyerID),
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusBadGateway, "Invalid order payload")
		return nil, false
	}
	return list, true
}

func (s *Server) respondSourceError(w http.ResponseWriter, r *http.Request, buyerID string, err error) {
	if errors.Is(err, upstream.ErrUnauthorized) {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	metrics.OperationErrorsTotal.WithLabelValues("fetch_orders").Inc()
	s.logger.Error("failed to fetch buyer orders",
		zap.String("buyer_id", buyerID),
		zap.String("request_id", RequestID(r.Context())),
		zap.Error(err))
	respondError(w, http.StatusBadGateway, "Order source unavailable")
}
