package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/couchcryptid/hotspot-map-service/internal/domain"
	"github.com/couchcryptid/hotspot-map-service/internal/hotspot"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	deps Deps
}

func (h *handlers) listVisible(c *gin.Context) {
	crit, err := parseCriteria(c)
	if err != nil {
		writeError(c, err)
		return
	}
	list := h.deps.Session.Visible(crit)
	c.JSON(http.StatusOK, gin.H{"hotspots": list, "count": len(list), "mode": crit.Mode()})
}

func (h *handlers) listNearby(c *gin.Context) {
	lat, lng, err := requireLatLng(c)
	if err != nil {
		writeError(c, err)
		return
	}
	radius := domain.DefaultRadius.Km()
	if v, ok, err := queryFloat(c, "radius"); err != nil {
		writeError(c, err)
		return
	} else if ok {
		if v <= 0 {
			writeError(c, domain.ErrInvalidRadius)
			return
		}
		radius = v
	}
	list := h.deps.Store.ListByLocation(c.Request.Context(), lat, lng, radius)
	c.JSON(http.StatusOK, gin.H{"hotspots": list, "count": len(list)})
}

func (h *handlers) listInBounds(c *gin.Context) {
	b, err := requireBounds(c)
	if err != nil {
		writeError(c, err)
		return
	}
	list := h.deps.Store.ListByBounds(c.Request.Context(), b.North, b.South, b.East, b.West)
	c.JSON(http.StatusOK, gin.H{"hotspots": list, "count": len(list)})
}

func (h *handlers) create(c *gin.Context) {
	var in domain.HotspotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, badRequest(err))
		return
	}
	created, err := h.deps.Session.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handlers) update(c *gin.Context) {
	var patch domain.HotspotPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, badRequest(err))
		return
	}
	updated, err := h.deps.Session.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handlers) delete(c *gin.Context) {
	if err := h.deps.Session.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) uploadPhoto(c *gin.Context) {
	if h.deps.PhotoMaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.PhotoMaxBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo is too large"})
			return
		}
		writeError(c, badRequest(err))
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be an image"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, badRequest(err))
		return
	}
	defer f.Close()

	url, err := h.deps.Store.UploadPhoto(c.Request.Context(), fh.Filename, contentType, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (h *handlers) listShelters(c *gin.Context) {
	crit, err := parseCriteria(c)
	if err != nil {
		writeError(c, err)
		return
	}
	list := domain.VisibleShelters(domain.Shelters(), crit)
	c.JSON(http.StatusOK, gin.H{"shelters": list, "count": len(list), "mode": crit.Mode()})
}

type reverseGeocodeResponse struct {
	domain.GeocodeResult
	Display  string `json:"display,omitempty"`
	InTaiwan bool   `json:"in_taiwan"`
}

func (h *handlers) reverseGeocode(c *gin.Context) {
	lat, lng, err := requireLatLng(c)
	if err != nil {
		writeError(c, err)
		return
	}
	res := domain.ReverseGeocode(c.Request.Context(), h.deps.Geocoder, lat, lng, h.deps.Logger)
	out := reverseGeocodeResponse{GeocodeResult: res, InTaiwan: domain.IsInTaiwan(lat, lng)}
	if res.Address != nil {
		out.Display = domain.FormatAddressDisplay(*res.Address)
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) locate(c *gin.Context) {
	if h.deps.Locator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ip location is not configured"})
		return
	}
	loc, err := h.deps.Locator.Locate(c.Request.Context(), c.ClientIP())
	if err != nil {
		var locErr *domain.LocationError
		if errors.As(err, &locErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": locErr.Reason})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lat": loc.Lat, "lng": loc.Lng, "in_taiwan": domain.IsInTaiwan(loc.Lat, loc.Lng)})
}

type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return requestError{err: err} }

// writeError maps service errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	var reqErr requestError
	status := http.StatusBadGateway
	switch {
	case errors.As(err, &reqErr), errors.Is(err, errBadQuery), hotspot.IsValidationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPendingHotspot):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPhotoStoreDisabled):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
