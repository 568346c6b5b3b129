// Package places finds hospitals through the Google Maps Places API.
package places

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/linnemanlabs/go-core/log"
	"golang.org/x/sync/errgroup"
	"googlemaps.github.io/maps"

	"github.com/linnemanlabs/medtriage/internal/care"
	"github.com/linnemanlabs/medtriage/internal/fault"
)

const (
	searchRadiusMeters = 5000
	maxResults         = 5
	phoneUnavailable   = "Phone not available"
	earthRadiusKm      = 6371.0
)

// placesAPI is the subset of *maps.Client the finder uses.
type placesAPI interface {
	NearbySearch(ctx context.Context, r *maps.NearbySearchRequest) (maps.PlacesSearchResponse, error)
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
}

// Finder looks up hospitals near a position, nearest first.
type Finder struct {
	api    placesAPI
	logger log.Logger
}

// New creates a Finder authenticated with apiKey.
func New(apiKey string, logger log.Logger) (*Finder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return newFinder(client, logger), nil
}

func newFinder(api placesAPI, logger log.Logger) *Finder {
	if logger == nil {
		logger = log.Nop()
	}
	return &Finder{api: api, logger: logger}
}

// FindHospitals searches within 5 km of lat/lon and enriches the first five
// results with phone number and opening hours. A failed details lookup only
// costs that hospital its phone number.
func (f *Finder) FindHospitals(ctx context.Context, lat, lon float64) ([]care.Hospital, error) {
	resp, err := f.api.NearbySearch(ctx, &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: lat, Lng: lon},
		Radius:   searchRadiusMeters,
		Type:     maps.PlaceTypeHospital,
	})
	if err != nil {
		return nil, fault.Network("find_hospitals", err)
	}

	results := resp.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	hospitals := make([]care.Hospital, len(results))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range results {
		hospitals[i] = fromSearchResult(r, lat, lon)
		if r.PlaceID == "" {
			continue
		}
		g.Go(func() error {
			f.addDetails(gctx, r.PlaceID, &hospitals[i])
			return nil
		})
	}
	_ = g.Wait()

	slices.SortStableFunc(hospitals, func(a, b care.Hospital) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})
	return hospitals, nil
}

func (f *Finder) addDetails(ctx context.Context, placeID string, h *care.Hospital) {
	d, err := f.api.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskFormattedPhoneNumber,
			maps.PlaceDetailsFieldMaskOpeningHours,
		},
	})
	if err != nil {
		f.logger.Warn(ctx, "place details lookup failed", "place_id", placeID, "error", err)
		return
	}
	if d.FormattedPhoneNumber != "" {
		h.Phone = d.FormattedPhoneNumber
	}
	if d.OpeningHours != nil {
		if d.OpeningHours.OpenNow != nil {
			open := *d.OpeningHours.OpenNow
			h.IsOpen = &open
		}
		h.OpeningHours = append([]string(nil), d.OpeningHours.WeekdayText...)
	}
}

func fromSearchResult(r maps.PlacesSearchResult, lat, lon float64) care.Hospital {
	loc := r.Geometry.Location
	km := Distance(lat, lon, loc.Lat, loc.Lng)

	h := care.Hospital{
		Name:       r.Name,
		Address:    r.Vicinity,
		Phone:      phoneUnavailable,
		Lat:        loc.Lat,
		Lon:        loc.Lng,
		Distance:   fmt.Sprintf("%.1f km", km),
		DistanceKm: km,
		Rating:     float64(r.Rating),
	}
	if h.Name == "" {
		h.Name = "Unknown Hospital"
	}
	if h.Address == "" {
		h.Address = "Address not available"
	}
	if r.OpeningHours != nil && r.OpeningHours.OpenNow != nil {
		open := *r.OpeningHours.OpenNow
		h.IsOpen = &open
	}
	return h
}

// Distance returns the great-circle distance in kilometres between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
