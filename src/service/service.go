package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/wire"
)

// DefaultPeersLimit is the number of addresses returned by /peers when the
// request does not say.
const DefaultPeersLimit = 1000

// Service exposes the state of a node over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	addresses   store.AddressRegistry
	gatherer    prometheus.Gatherer
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// NewService creates a Service. gatherer may be nil, in which case /metrics
// is not served.
func NewService(bindAddress string,
	n *node.Node,
	addresses store.AddressRegistry,
	gatherer prometheus.Gatherer,
	logger *logrus.Entry) *Service {

	service := Service{
		bindAddress: bindAddress,
		node:        n,
		addresses:   addresses,
		gatherer:    gatherer,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering Murmur API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/status", s.makeHandler(s.GetStatus))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Murmur API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetStatus returns the structured status of the node, with connection
// counts per stream.
func (s *Service) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := s.node.Status()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(status)
}

// GetPeers returns known addresses. The optional "limit" and "stream" query
// parameters narrow the result; by default every stream of the node is
// included.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	limit := DefaultPeersLimit
	if param := r.URL.Query().Get("limit"); param != "" {
		l, err := strconv.Atoi(param)
		if err != nil || l < 0 {
			s.logger.WithField("limit", param).Debug("Parsing limit parameter")
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = l
	}

	streams := s.node.Identity().Streams
	if param := r.URL.Query().Get("stream"); param != "" {
		stream, err := strconv.ParseUint(param, 10, 64)
		if err != nil {
			s.logger.WithField("stream", param).Debug("Parsing stream parameter")
			http.Error(w, "invalid stream", http.StatusBadRequest)
			return
		}
		streams = []uint64{stream}
	}

	addrs := s.addresses.GetKnownAddresses(limit, streams...)

	res := make([]peerInfo, 0, len(addrs))
	for _, a := range addrs {
		res = append(res, newPeerInfo(a))
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}

type peerInfo struct {
	Address  string `json:"address"`
	Stream   uint32 `json:"stream"`
	Services uint64 `json:"services"`
	Time     int64  `json:"time"`
}

func newPeerInfo(a wire.NetworkAddress) peerInfo {
	return peerInfo{
		Address:  a.String(),
		Stream:   a.Stream,
		Services: a.Services,
		Time:     a.Time,
	}
}
