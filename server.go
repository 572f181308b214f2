package osd

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/behrlich/go-osd/internal/config"
	"github.com/behrlich/go-osd/internal/constants"
	"github.com/behrlich/go-osd/internal/dispatch"
	"github.com/behrlich/go-osd/internal/interfaces"
	"github.com/behrlich/go-osd/internal/logging"
	"github.com/behrlich/go-osd/internal/metrics"
	"github.com/behrlich/go-osd/internal/oerr"
	"github.com/behrlich/go-osd/internal/session"
	"github.com/behrlich/go-osd/internal/store"
)

// Server is the exposed capability of §6: create_osd_server builds one,
// start/stop/destroy drive its lifecycle. It owns the store, dispatcher,
// and session, and holds (but does not itself run) the Messenger,
// MonitorClient, and ClusterMap it was constructed with.
type Server struct {
	osdID   uint32
	opts    *config.Options
	log     *logging.Logger
	metrics *Metrics

	store      *store.Store
	dispatcher *dispatch.Dispatcher
	session    *session.Session

	monitor    interfaces.MonitorClient
	clusterMap interfaces.ClusterMap
	messenger  interfaces.Messenger

	started bool
}

// CreateServer is create_osd_server(options, osd_id) -> Server (§6). reg
// registers the OSD's §11 Prometheus metrics; pass prometheus.DefaultRegisterer
// in production, or a fresh prometheus.NewRegistry() in tests to avoid
// cross-test collisions on the global registry.
func CreateServer(opts *config.Options, osdID uint32, alloc interfaces.PageAllocator, monitor interfaces.MonitorClient, clusterMap interfaces.ClusterMap, messenger interfaces.Messenger, log *logging.Logger, reg prometheus.Registerer) *Server {
	if log == nil {
		log = logging.Default()
	}
	m := metrics.New(reg)
	st := store.New(alloc)
	st.NoopWrite = opts.NoopWrite
	d := dispatch.New(st, clusterMap, log, m)
	sess := session.New(d, messenger, log)

	return &Server{
		osdID:      osdID,
		opts:       opts,
		log:        log,
		metrics:    m,
		store:      st,
		dispatcher: d,
		session:    sess,
		monitor:    monitor,
		clusterMap: clusterMap,
		messenger:  messenger,
	}
}

// Session exposes the session this server drives, so a transport (e.g.
// messenger.TCP) can be wired to it from cmd/osd-mem.
func (s *Server) Session() *session.Session { return s.session }

// Store exposes the underlying store for metrics sampling (object count)
// and tests.
func (s *Server) Store() *store.Store { return s.store }

// Start is start_osd_server(server) -> Result (§6): boots with the monitor,
// adds the OSD to CRUSH, then calls MonitorClient.WaitForLatestMap with a 5 s
// bound and returns its error if it fails. It does not itself check that the
// cluster map lists this OSD as a member or as up.
func (s *Server) Start() error {
	const op = "osd.Start"
	if s.started {
		return nil
	}

	if err := s.monitor.Boot(s.osdID, s.opts.FSID); err != nil {
		return oerr.Wrap(op, oerr.InvalidArgument, err)
	}
	if err := s.monitor.AddToCRUSH(s.osdID, 1.0); err != nil {
		return oerr.Wrap(op, oerr.InvalidArgument, err)
	}
	if err := s.monitor.WaitForLatestMap(5 * time.Second); err != nil {
		return err // already an *oerr.Error with Kind == Timeout
	}

	s.started = true
	s.log.Info("osd started", "osd_id", s.osdID, "epoch", s.clusterMap.Epoch())
	return nil
}

// Stop is stop_osd_server(server) (§5 shutdown steps 1-2): marks the OSD
// down with the monitor and polls the cluster map until the down state is
// observed, or MapPollTimeout elapses (logged, not fatal, per §7's Timeout
// row: "logged for stop").
func (s *Server) Stop() {
	const op = "osd.Stop"
	if !s.started {
		return
	}

	if err := s.monitor.MarkMeDown(s.osdID); err != nil {
		s.log.Error("mark-me-down failed", "osd_id", s.osdID, "err", err)
	}
	deadline := time.Now().Add(constants.MapPollTimeout)
	if err := s.monitor.WaitForLatestMap(5 * time.Second); err != nil {
		s.log.Warn("cluster map did not confirm down state in time", "osd_id", s.osdID, "err", err)
	}
	for s.clusterMap.IsUp(s.osdID) {
		if !time.Now().Before(deadline) {
			s.log.Warn("cluster map still reports osd up after timeout", "osd_id", s.osdID)
			break
		}
		time.Sleep(constants.MapPollInterval)
	}

	s.started = false
	s.log.Info("osd stopped", "osd_id", s.osdID)
	_ = op
}

// Destroy is destroy_osd_server(server) (§5 shutdown step 3): destroys every
// object, freeing each of its blocks' pages back to the allocator, then
// drops the object table and releases the store itself.
func (s *Server) Destroy() error {
	if s.started {
		return fmt.Errorf("osd: Destroy called on a still-started server; call Stop first")
	}
	if s.store != nil {
		s.store.Destroy()
	}
	s.store = nil
	return nil
}
