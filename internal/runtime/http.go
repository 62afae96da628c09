package runtime

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/ddsctx/dds"
	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
	"github.com/drblury/ddsctx/internal/runtime/jsoncodec"
	"github.com/drblury/ddsctx/internal/runtime/logging"
)

const httpShutdownTimeout = 5 * time.Second

// EntityInfo describes one registered topic, reader or writer.
type EntityInfo struct {
	Kind        string       `json:"kind"`
	Domain      dds.DomainID `json:"domain"`
	Topic       string       `json:"topic"`
	Handle      dds.Entity   `json:"handle"`
	QoS         string       `json:"qos"`
	Type        string       `json:"type,omitempty"`
	HasCallback bool         `json:"has_callback"`
}

// Entities lists the registered topics, readers and writers ordered by
// handle.
func (r *Registry) Entities() []EntityInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]EntityInfo, 0, len(r.entities))
	for key, t := range r.topics {
		infos = append(infos, EntityInfo{
			Kind: string(errspkg.KindTopic), Domain: key.Domain, Topic: key.Topic,
			Handle: t.handle, QoS: t.qosName, Type: t.desc.TypeName(), HasCallback: t.callback != nil,
		})
	}
	for kind, registry := range map[errspkg.Kind]map[Key]*entry{errspkg.KindReader: r.readers, errspkg.KindWriter: r.writers} {
		for key, e := range registry {
			infos = append(infos, EntityInfo{
				Kind: string(kind), Domain: key.Domain, Topic: key.Topic,
				Handle: e.handle, QoS: e.qosName, HasCallback: e.callback != nil,
			})
		}
	}
	slices.SortFunc(infos, func(a, b EntityInfo) int { return cmp.Compare(a.Handle, b.Handle) })
	return infos
}

// metricsHandler serves the registry the metrics were registered with, or
// the default gatherer when that registry cannot be gathered from.
func (r *Registry) metricsHandler() http.Handler {
	gatherer := r.metrics.gatherer()
	if gatherer == nil || gatherer == prometheus.DefaultGatherer {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (r *Registry) entitiesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := jsoncodec.Encode(w, r.Entities()); err != nil {
			r.log.Error("Failed to encode entities", err, nil)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}

// RegisterHTTPHandler mounts handler on the server for port. Servers start
// with startHTTPServers and stop on Close.
func (r *Registry) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	r.httpMu.Lock()
	defer r.httpMu.Unlock()

	if r.httpMuxes == nil {
		r.httpMuxes = make(map[int]*http.ServeMux)
	}
	mux, ok := r.httpMuxes[port]
	if !ok {
		mux = http.NewServeMux()
		r.httpMuxes[port] = mux
	}
	mux.Handle(pattern, handler)
}

func (r *Registry) startHTTPServers() {
	r.httpMu.Lock()
	defer r.httpMu.Unlock()

	for port, mux := range r.httpMuxes {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.httpServers = append(r.httpServers, srv)
		r.log.Info("Starting HTTP server", logging.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.log.Error("HTTP server failed", err, logging.LogFields{"address": srv.Addr})
			}
		}()
	}
}

func (r *Registry) stopHTTPServers() error {
	r.httpMu.Lock()
	servers := r.httpServers
	r.httpServers = nil
	r.httpMu.Unlock()

	if len(servers) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range servers {
		errs = append(errs, srv.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
