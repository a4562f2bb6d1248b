package guards

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vigilia/guard-backend/internal/geo"
	"github.com/vigilia/guard-backend/internal/tracker"
	"github.com/vigilia/guard-backend/internal/utils"
	"github.com/vigilia/guard-backend/internal/zones"
)

// Submitter is satisfied by *tracker.Dispatcher.
type Submitter interface {
	Submit(ctx context.Context, s tracker.Sample) (tracker.Result, error)
}

type Handler struct {
	Guards  GuardStore
	Tracker Submitter
	States  tracker.SubjectLister
	Now     func() time.Time
}

type ubicacionRequest struct {
	Latitud   *float64 `json:"latitud"`
	Longitud  *float64 `json:"longitud"`
	Timestamp *string  `json:"timestamp"`
}

type ubicacionResponse struct {
	Success bool                 `json:"success"`
	Data    *Guard               `json:"data,omitempty"`
	Alertas []zones.Alert        `json:"alertas"`
	Zonas   []tracker.ZoneStatus `json:"zonas"`
	Error   string               `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// UpdateUbicacion ingests one position report from the authenticated guard,
// runs it through the tracker and stores it as the guard's last position.
func (h Handler) UpdateUbicacion(w http.ResponseWriter, r *http.Request) {
	guardID, ok := utils.GetGuardIDFromContext(r.Context())
	if !ok {
		jsonError(w, http.StatusNotFound, "Guardia no encontrado")
		return
	}

	var req ubicacionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if req.Latitud == nil || req.Longitud == nil {
		jsonError(w, http.StatusBadRequest, "Latitud y longitud son requeridos")
		return
	}
	point := geo.Point{Latitude: *req.Latitud, Longitude: *req.Longitud}
	if !geo.IsValidCoordinate(point) {
		jsonError(w, http.StatusBadRequest, "Coordenadas inválidas")
		return
	}

	at := h.now()
	if req.Timestamp != nil && *req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, *req.Timestamp)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "Timestamp inválido")
			return
		}
		at = ts
	}

	sample := tracker.Sample{
		SubjectID: guardID,
		Latitude:  point.Latitude,
		Longitude: point.Longitude,
		Timestamp: at,
	}

	res, evalErr := h.Tracker.Submit(r.Context(), sample)
	switch {
	case evalErr == nil:
	case errors.Is(evalErr, tracker.ErrStaleSample):
		jsonError(w, http.StatusConflict, evalErr.Error())
		return
	case errors.Is(evalErr, tracker.ErrAlertPersistence):
		// Handled after the position is stored
	default:
		log.Printf("[guards] evaluation failed for %s: %v", guardID, evalErr)
		jsonError(w, http.StatusInternalServerError, evalErr.Error())
		return
	}

	guard, err := h.Guards.UpdatePosition(r.Context(), guardID, point.Latitude, point.Longitude, at)
	if errors.Is(err, ErrGuardNotFound) {
		jsonError(w, http.StatusNotFound, "Guardia no encontrado")
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ubicacionResponse{
		Success: evalErr == nil,
		Data:    &guard,
		Alertas: res.Alerts,
		Zonas:   res.Zones,
	}
	if resp.Alertas == nil {
		resp.Alertas = []zones.Alert{}
	}
	if resp.Zonas == nil {
		resp.Zonas = []tracker.ZoneStatus{}
	}

	if evalErr != nil {
		resp.Error = evalErr.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type estadoZona struct {
	ZonaID     uuid.UUID     `json:"zona_id"`
	Estado     tracker.State `json:"estado"`
	EvaluadoEn time.Time     `json:"evaluado_en"`
}

// Estado lists the stored containment of the authenticated guard per zone
func (h Handler) Estado(w http.ResponseWriter, r *http.Request) {
	guardID, ok := utils.GetGuardIDFromContext(r.Context())
	if !ok {
		jsonError(w, http.StatusNotFound, "Guardia no encontrado")
		return
	}
	if h.States == nil {
		jsonError(w, http.StatusNotImplemented, "state listing not supported by this backend")
		return
	}

	states, err := h.States.States(r.Context(), guardID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]estadoZona, 0, len(states))
	for zoneID, st := range states {
		out = append(out, estadoZona{ZonaID: zoneID, Estado: st.State(), EvaluadoEn: st.EvaluatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZonaID.String() < out[j].ZonaID.String() })
	writeJSON(w, http.StatusOK, out)
}
