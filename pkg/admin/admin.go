// Package admin serves a read-only HTTP view of the registry together with
// health, metrics and API documentation endpoints.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "orderhub/docs"
	"orderhub/pkg/logger"
	"orderhub/pkg/order"
	"orderhub/pkg/otel"
)

// ClientView is the JSON shape of a registered business client.
type ClientView struct {
	Name       string `json:"name"`
	BusinessID int    `json:"business_id"`
	Sunglasses int    `json:"sunglasses"`
	Belts      int    `json:"belts"`
	Scarves    int    `json:"scarves"`
	Summary    string `json:"summary"`
}

func viewOf(c order.Client) ClientView {
	return ClientView{
		Name:       c.Name,
		BusinessID: c.BusinessID,
		Sunglasses: c.Count(order.Sunglasses),
		Belts:      c.Count(order.Belts),
		Scarves:    c.Count(order.Scarves),
		Summary:    c.String(),
	}
}

type handler struct {
	registry order.Registry
	log      *logger.Logger
}

// NewRouter builds the admin router. Metrics are served from gatherer;
// nil uses the default gatherer.
func NewRouter(reg order.Registry, log *logger.Logger, gatherer prometheus.Gatherer) *mux.Router {
	if log == nil {
		log = logger.Nop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &handler{registry: reg, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/clients", h.listClients).Methods(http.MethodGet)
	r.HandleFunc("/clients/{id}", h.getClient).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

// health reports liveness.
// @Summary Health check
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listClients lists registered business clients.
// @Summary List business clients
// @Description Returns every registered client in registration order
// @Produce json
// @Success 200 {array} admin.ClientView
// @Router /clients [get]
func (h *handler) listClients(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "admin.listClients")
	defer span.End()

	clients, err := h.registry.List(ctx)
	if err != nil {
		h.log.Error(ctx, "list clients", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]ClientView, 0, len(clients))
	for _, c := range clients {
		out = append(out, viewOf(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// getClient retrieves a business client by id.
// @Summary Get business client
// @Produce json
// @Param id path int true "Business ID"
// @Success 200 {object} admin.ClientView
// @Failure 400 {string} string "malformed id"
// @Failure 404 {string} string "not found"
// @Router /clients/{id} [get]
func (h *handler) getClient(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "admin.getClient")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || !order.ValidBusinessID(id) {
		http.Error(w, "business id must have 5 digits", http.StatusBadRequest)
		return
	}
	c, err := h.registry.Get(ctx, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.log.Error(ctx, "get client", "business_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
