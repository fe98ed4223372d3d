package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/muni-info/backend/internal/models"
)

// MapItResolver reverse-looks-up province, district and municipality
// from a MapIt point endpoint. Results are cached per rounded
// coordinate pair and outbound requests are rate limited.
type MapItResolver struct {
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	Client      *http.Client

	mu        sync.Mutex
	lastReqAt time.Time
	cache     map[string]models.LocationInfo
}

type mapitArea struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
}

func (r *MapItResolver) Resolve(ctx context.Context, lat, lon float64) (models.LocationInfo, error) {
	if r.Client == nil {
		r.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if r.BaseURL == "" {
		r.BaseURL = "https://mapit.code4sa.org"
	}
	if r.UserAgent == "" {
		r.UserAgent = "muni-info/1.0"
	}
	if r.MinInterval <= 0 {
		r.MinInterval = 500 * time.Millisecond
	}

	// ~11m of precision; close pins share a cache entry.
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	r.mu.Lock()
	if r.cache == nil {
		r.cache = map[string]models.LocationInfo{}
	}
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	sleepFor := time.Until(r.lastReqAt.Add(r.MinInterval))
	if sleepFor > 0 {
		r.mu.Unlock()
		time.Sleep(sleepFor)
		r.mu.Lock()
	}
	r.lastReqAt = time.Now()
	r.mu.Unlock()

	// MapIt points are x,y: longitude first.
	endpoint := fmt.Sprintf("%s/point/4326/%.6f,%.6f?type=PR,DC,MN", r.BaseURL, lon, lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.LocationInfo{}, err
	}
	req.Header.Set("User-Agent", r.UserAgent)

	resp, err := r.Client.Do(req)
	if err != nil {
		return models.LocationInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.LocationInfo{}, fmt.Errorf("mapit http error: %s", resp.Status)
	}

	var areas map[string]mapitArea
	if err := json.NewDecoder(resp.Body).Decode(&areas); err != nil {
		return models.LocationInfo{}, err
	}
	info, err := parseMapItAreas(areas)
	if err != nil {
		return models.LocationInfo{}, err
	}
	info.Latitude = lat
	info.Longitude = lon

	r.mu.Lock()
	r.cache[key] = info
	r.mu.Unlock()

	return info, nil
}

func parseMapItAreas(areas map[string]mapitArea) (models.LocationInfo, error) {
	var info models.LocationInfo
	for _, a := range areas {
		switch a.TypeName {
		case "Province":
			info.Province = a.Name
		case "District":
			info.District = a.Name
		case "Municipality":
			info.Municipality = a.Name
		}
	}
	if info.Province == "" && info.District == "" && info.Municipality == "" {
		return models.LocationInfo{}, ErrNotFound
	}
	return info, nil
}
