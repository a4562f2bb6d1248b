package zones

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vigilia/guard-backend/internal/db"
	"github.com/vigilia/guard-backend/internal/geo"
)

// zoneLocation decides which calendar day "today" is for assignment windows
var zoneLocation = time.UTC

// coordinates accepts the stored string form or the raw JSON object/array.
type coordinates string

func (c *coordinates) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = coordinates(s)
		return nil
	}
	*c = coordinates(data)
	return nil
}

type zoneRequest struct {
	Nombre      *string      `json:"nombre"`
	Descripcion *string      `json:"descripcion"`
	Tipo        *ZoneKind    `json:"tipo"`
	Coordenadas *coordinates `json:"coordenadas"`
	Activo      *bool        `json:"activo"`
}

type zoneResponse struct {
	Zone
	AreaM2 *float64 `json:"area_m2,omitempty"`
}

func withArea(z Zone) zoneResponse {
	resp := zoneResponse{Zone: z}
	if shape, err := z.Shape(); err == nil {
		area := shape.AreaSquareMeters()
		resp.AreaM2 = &area
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		http.Error(w, "Invalid "+param, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// nameTaken reports whether another zone already uses the normalized name.
func nameTaken(d *gorm.DB, nombre string, except uuid.UUID) (bool, error) {
	var count int64
	q := d.Model(&Zone{}).Where("nombre_clave = ?", NormalizeName(nombre))
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListZones returns all zones, newest first
func ListZones(w http.ResponseWriter, r *http.Request) {
	var activoFilter *bool
	if activo := r.URL.Query().Get("activo"); activo != "" {
		b, err := strconv.ParseBool(activo)
		if err != nil {
			http.Error(w, "Invalid activo filter", http.StatusBadRequest)
			return
		}
		activoFilter = &b
	}

	query := db.DB.WithContext(r.Context()).Order("created_at DESC")
	if activoFilter != nil {
		query = query.Where("activo = ?", *activoFilter)
	}

	var zones []Zone
	if err := query.Find(&zones).Error; err != nil {
		http.Error(w, "Failed to fetch zones: "+err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]zoneResponse, 0, len(zones))
	for _, z := range zones {
		out = append(out, withArea(z))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetZone returns one zone with its computed area
func GetZone(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var zone Zone
	if err := db.DB.WithContext(r.Context()).First(&zone, "id = ?", id).Error; err != nil {
		http.Error(w, "Zone not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, withArea(zone))
}

// CreateZone validates geometry strictly before anything is stored
func CreateZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Nombre == nil || req.Tipo == nil || req.Coordenadas == nil {
		http.Error(w, "nombre, tipo and coordenadas are required", http.StatusBadRequest)
		return
	}

	zone := Zone{
		Nombre:      strings.TrimSpace(*req.Nombre),
		Descripcion: req.Descripcion,
		Tipo:        *req.Tipo,
		Coordenadas: string(*req.Coordenadas),
		Activo:      true,
	}
	if req.Activo != nil {
		zone.Activo = *req.Activo
	}
	if err := zone.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	taken, err := nameTaken(db.DB.WithContext(r.Context()), zone.Nombre, uuid.Nil)
	if err != nil {
		http.Error(w, "Failed to check zone name: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if taken {
		http.Error(w, "A zone with that name already exists", http.StatusConflict)
		return
	}

	if err := db.DB.WithContext(r.Context()).Create(&zone).Error; err != nil {
		http.Error(w, "Failed to create zone: "+err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("[zones] created zone %s (%s)", zone.ID, zone.Tipo)
	writeJSON(w, http.StatusCreated, withArea(zone))
}

// UpdateZone applies a partial update. Geometry is revalidated as a whole.
func UpdateZone(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req zoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	var zone Zone
	if err := db.DB.WithContext(r.Context()).First(&zone, "id = ?", id).Error; err != nil {
		http.Error(w, "Zone not found", http.StatusNotFound)
		return
	}

	if req.Nombre != nil {
		zone.Nombre = strings.TrimSpace(*req.Nombre)
	}
	if req.Descripcion != nil {
		zone.Descripcion = req.Descripcion
	}
	if req.Tipo != nil {
		zone.Tipo = *req.Tipo
	}
	if req.Coordenadas != nil {
		zone.Coordenadas = string(*req.Coordenadas)
	}
	if req.Activo != nil {
		zone.Activo = *req.Activo
	}
	if err := zone.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Nombre != nil {
		taken, err := nameTaken(db.DB.WithContext(r.Context()), zone.Nombre, zone.ID)
		if err != nil {
			http.Error(w, "Failed to check zone name: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if taken {
			http.Error(w, "A zone with that name already exists", http.StatusConflict)
			return
		}
	}

	if err := db.DB.WithContext(r.Context()).Save(&zone).Error; err != nil {
		http.Error(w, "Failed to update zone: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, withArea(zone))
}

// DeleteZone removes the zone. Assignments cascade; alerts are kept.
func DeleteZone(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	res := db.DB.WithContext(r.Context()).Delete(&Zone{}, "id = ?", id)
	if res.Error != nil {
		http.Error(w, "Failed to delete zone: "+res.Error.Error(), http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, "Zone not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignmentRequest struct {
	GuardiaID   string    `json:"guardia_id"`
	ZonaID      uuid.UUID `json:"zona_id"`
	FechaInicio Date      `json:"fecha_inicio"`
	FechaFin    *Date     `json:"fecha_fin"`
	Activo      *bool     `json:"activo"`
}

// ListAssignments returns assignments, newest fecha_inicio first
func ListAssignments(w http.ResponseWriter, r *http.Request) {
	query := db.DB.WithContext(r.Context()).Preload("Zona").Order("fecha_inicio DESC")
	if guardiaID := r.URL.Query().Get("guardia_id"); guardiaID != "" {
		query = query.Where("guardia_id = ?", guardiaID)
	}
	if zonaID := r.URL.Query().Get("zona_id"); zonaID != "" {
		query = query.Where("zona_id = ?", zonaID)
	}

	var assignments []Assignment
	if err := query.Find(&assignments).Error; err != nil {
		http.Error(w, "Failed to fetch assignments: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

// ActiveAssignmentsForGuard returns what the tracker would evaluate today
func ActiveAssignmentsForGuard(w http.ResponseWriter, r *http.Request) {
	guardiaID := chi.URLParam(r, "guardia_id")
	if guardiaID == "" {
		http.Error(w, "guardia_id is required", http.StatusBadRequest)
		return
	}

	registry := NewGormRegistry(db.DB, zoneLocation)
	active, err := registry.ActiveAssignmentsFor(r.Context(), guardiaID, time.Now())
	if err != nil {
		http.Error(w, "Failed to fetch active assignments: "+err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]Assignment, 0, len(active))
	for _, aa := range active {
		a := aa.Assignment
		z := aa.Zone
		a.Zona = &z
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateAssignment links a guard to an existing zone
func CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	assignment := Assignment{
		GuardiaID:   strings.TrimSpace(req.GuardiaID),
		ZonaID:      req.ZonaID,
		FechaInicio: req.FechaInicio,
		FechaFin:    req.FechaFin,
		Activo:      true,
	}
	if req.Activo != nil {
		assignment.Activo = *req.Activo
	}
	if err := assignment.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var zone Zone
	if err := db.DB.WithContext(r.Context()).First(&zone, "id = ?", assignment.ZonaID).Error; err != nil {
		http.Error(w, "Zone not found", http.StatusNotFound)
		return
	}

	if err := db.DB.WithContext(r.Context()).Create(&assignment).Error; err != nil {
		http.Error(w, "Failed to create assignment: "+err.Error(), http.StatusInternalServerError)
		return
	}
	assignment.Zona = &zone
	writeJSON(w, http.StatusCreated, assignment)
}

type assignmentPatch struct {
	Activo   *bool           `json:"activo"`
	FechaFin json.RawMessage `json:"fecha_fin"`
}

// PatchAssignment toggles activo and sets or clears fecha_fin
func PatchAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req assignmentPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	var assignment Assignment
	if err := db.DB.WithContext(r.Context()).First(&assignment, "id = ?", id).Error; err != nil {
		http.Error(w, "Assignment not found", http.StatusNotFound)
		return
	}

	if req.Activo != nil {
		assignment.Activo = *req.Activo
	}
	if len(req.FechaFin) > 0 {
		if string(bytes.TrimSpace(req.FechaFin)) == "null" {
			assignment.FechaFin = nil
		} else {
			var end Date
			if err := json.Unmarshal(req.FechaFin, &end); err != nil {
				http.Error(w, "Invalid fecha_fin: "+err.Error(), http.StatusBadRequest)
				return
			}
			assignment.FechaFin = &end
		}
	}
	if err := assignment.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updates := map[string]interface{}{"activo": assignment.Activo, "fecha_fin": nil}
	if assignment.FechaFin != nil {
		updates["fecha_fin"] = assignment.FechaFin
	}
	err := db.DB.WithContext(r.Context()).Model(&assignment).Updates(updates).Error
	if err != nil {
		http.Error(w, "Failed to update assignment: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

func DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	res := db.DB.WithContext(r.Context()).Delete(&Assignment{}, "id = ?", id)
	if res.Error != nil {
		http.Error(w, "Failed to delete assignment: "+res.Error.Error(), http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, "Assignment not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseAlertFilter reads guardia_id, resuelta, repeated zona_id and limit.
func parseAlertFilter(r *http.Request) (AlertFilter, error) {
	q := r.URL.Query()
	f := AlertFilter{GuardiaID: q.Get("guardia_id")}

	if v := q.Get("resuelta"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return AlertFilter{}, fmt.Errorf("invalid resuelta %q", v)
		}
		f.Resuelta = &b
	}
	for _, raw := range q["zona_id"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return AlertFilter{}, fmt.Errorf("invalid zona_id %q", part)
			}
			f.ZonaIDs = append(f.ZonaIDs, id)
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return AlertFilter{}, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	return f, nil
}

// ListAlertsHandler returns alerts newest first
func ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlertFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	alerts, err := ListAlerts(r.Context(), db.DB, filter)
	if err != nil {
		http.Error(w, "Failed to fetch alerts: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// ResolveAlertHandler sets resuelta; nothing else about an alert changes
func ResolveAlertHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	alert, err := ResolveAlert(r.Context(), db.DB, id)
	if errors.Is(err, ErrAlertNotFound) {
		http.Error(w, "Alert not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to resolve alert: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func activeZones(r *http.Request) ([]Zone, error) {
	var zones []Zone
	err := db.DB.WithContext(r.Context()).Where("activo = ?", true).Order("nombre ASC").Find(&zones).Error
	return zones, err
}

func ExportKML(w http.ResponseWriter, r *http.Request) {
	zones, err := activeZones(r)
	if err != nil {
		http.Error(w, "Failed to fetch zones: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := WriteKML(&buf, zones); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="zonas.kml"`)
	w.Write(buf.Bytes())
}

func ExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	zones, err := activeZones(r)
	if err != nil {
		http.Error(w, "Failed to fetch zones: "+err.Error(), http.StatusInternalServerError)
		return
	}

	body, err := GeoJSON(zones).MarshalJSON()
	if err != nil {
		http.Error(w, "Failed to encode geojson: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(body)
}

type verifyRequest struct {
	ZonaID uuid.UUID `json:"zona_id"`
	Lat    *float64  `json:"lat"`
	Lng    *float64  `json:"lng"`
}

type VerifyResult struct {
	Dentro     bool    `json:"dentro"`
	DistanciaM float64 `json:"distancia_m"`
}

// Verify reports whether p lies in the zone and how far it is from the zone's
// center (circle) or vertex centroid (polygon).
func Verify(z Zone, p geo.Point) (VerifyResult, error) {
	shape, err := z.Shape()
	if err != nil {
		return VerifyResult{}, err
	}

	var ref geo.Point
	switch s := shape.(type) {
	case Circle:
		ref = s.Center
	case Polygon:
		ref = geo.Centroid(s.Vertices)
	}
	return VerifyResult{Dentro: shape.Contains(p), DistanciaM: geo.Distance(p, ref)}, nil
}

// VerifyPoint checks one coordinate against one zone
func VerifyPoint(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		http.Error(w, "lat and lng are required", http.StatusBadRequest)
		return
	}
	p := geo.Point{Latitude: *req.Lat, Longitude: *req.Lng}
	if err := geo.ValidateCoordinate(p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ZonaID == uuid.Nil {
		http.Error(w, ErrZoneRequired.Error(), http.StatusBadRequest)
		return
	}

	var zone Zone
	if err := db.DB.WithContext(r.Context()).First(&zone, "id = ?", req.ZonaID).Error; err != nil {
		http.Error(w, "Zone not found", http.StatusNotFound)
		return
	}

	result, err := Verify(zone, p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
