package service

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mosaicnetworks/murmur/src/common"
	mnet "github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/wire"
)

func newTestService(t *testing.T) (*Service, *node.Node) {
	network := mnet.NewInmemNetwork()
	layer, err := network.NewStreamLayer("127.0.0.1:12001")
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	conf := node.TestConfig(t)
	s := store.NewInmemStore(nil)
	s.OfferAddresses([]wire.NetworkAddress{
		{Time: time.Now().Unix(), Stream: 1, Services: wire.NodeNetwork, IP: net.ParseIP("10.0.0.1"), Port: 8444},
		{Time: time.Now().Unix(), Stream: 2, Services: wire.NodeNetwork, IP: net.ParseIP("10.0.0.2"), Port: 8444},
	})

	reg := prometheus.NewRegistry()
	n := node.NewNode(conf,
		node.NewIdentity(1, "/test/", []uint64{1}, layer.AdvertiseAddr()),
		s, s, layer, nil, nil, node.NewMetrics(reg))
	n.RunAsync()

	return NewService("", n, s, reg, common.NewTestEntry(t, common.TestLogLevel)), n
}

func get(t *testing.T, s *Service, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetStats(t *testing.T) {
	s, n := newTestService(t)
	defer n.Shutdown()

	rec := get(t, s, "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("err: %v", err)
	}
	if stats["state"] != "Running" {
		t.Fatalf("state should be Running, not %s", stats["state"])
	}
	if stats["user_agent"] != "/test/" {
		t.Fatalf("user_agent should be /test/, not %s", stats["user_agent"])
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("CORS header missing")
	}
}

func TestGetStatus(t *testing.T) {
	s, n := newTestService(t)
	defer n.Shutdown()

	rec := get(t, s, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status node.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, ok := status.Connections[1]; !ok {
		t.Fatalf("status should report stream 1: %+v", status)
	}
}

func TestGetPeers(t *testing.T) {
	s, n := newTestService(t)
	defer n.Shutdown()

	var res []peerInfo

	rec := get(t, s, "/peers")
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res) != 1 || res[0].Address != "10.0.0.1:8444" {
		t.Fatalf("expected the stream 1 address, got %+v", res)
	}

	rec = get(t, s, "/peers?stream=2")
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res) != 1 || res[0].Stream != 2 {
		t.Fatalf("expected the stream 2 address, got %+v", res)
	}

	rec = get(t, s, "/peers?limit=0")
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("expected no address, got %+v", res)
	}

	rec = get(t, s, "/peers?limit=x")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetMetrics(t *testing.T) {
	s, n := newTestService(t)
	defer n.Shutdown()

	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "murmur_node_pending_requests") {
		t.Fatalf("metrics should include the node collectors")
	}
}
