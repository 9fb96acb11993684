// Copyright Project Contour Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package admin implements the control plane's operational HTTP surface:
// Prometheus metrics, liveness/readiness probes, and a JSON configuration
// dump, for use by whatever deployment tooling supervises this process.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quilkin-go/quilkin/internal/config"
	"github.com/quilkin-go/quilkin/internal/httpsvc"
)

// Mode distinguishes the two ways this process can be deployed, which
// changes what /ready considers success.
type Mode int

const (
	// ModeXds is the control-plane process: readiness tracks liveness, since
	// a bare discovery server has nothing else it depends on.
	ModeXds Mode = iota
	// ModeProxy is a data-plane process sharing this admin surface: it isn't
	// ready to serve traffic until it has learned of at least one endpoint.
	ModeProxy
)

// Register installs the admin routes onto svc. cfg is read, never written,
// by the /ready (proxy mode) and /config handlers.
func Register(svc *httpsvc.Service, mode Mode, cfg *config.Config, health *Health, reg *prometheus.Registry) {
	svc.HandleFunc("/metrics", serveMetrics(reg))

	svc.HandleFunc("/live", serveLiveness(health))
	svc.HandleFunc("/livez", serveLiveness(health))

	svc.HandleFunc("/ready", serveReadiness(mode, cfg, health))
	svc.HandleFunc("/readyz", serveReadiness(mode, cfg, health))

	svc.HandleFunc("/config", serveConfig(cfg))
}

func serveMetrics(reg *prometheus.Registry) http.HandlerFunc {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	}
}

func serveLiveness(health *Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		if !health.Healthy() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}
}

func serveReadiness(mode Mode, cfg *config.Config, health *Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}

		var ready bool
		switch mode {
		case ModeProxy:
			ready = len(cfg.Clusters().Load().Endpoints()) > 0
		case ModeXds:
			ready = health.Healthy()
		}

		if !ready {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}
}

func serveConfig(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}

		body, err := json.Marshal(cfg.Dump())
		if err != nil {
			http.Error(w, "failed to create config dump: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
