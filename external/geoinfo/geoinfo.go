package geoinfo

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"googlemaps.github.io/maps"

	"github.com/civitas-labs/dispatch-api/schema"
)

const (
	logPrefix      = "geoinfo"
	defaultTimeout = 5 * time.Second
)

var ErrNoAddressFound = fmt.Errorf("no address found for the location")

// GeoInfo - interface to resolve a location into a display address
type GeoInfo interface {
	Get(schema.Location) (string, error)
}

type geoInfo struct {
	client *maps.Client
}

// Get reverse-geocodes a lat/lng pair and returns the first formatted
// address google knows for it.
func (g geoInfo) Get(loc schema.Location) (string, error) {
	log.WithFields(log.Fields{
		"prefix": logPrefix,
		"lat":    loc.Latitude,
		"lng":    loc.Longitude,
	}).Info("query geo info")

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{LatLng: &maps.LatLng{
		Lat: loc.Latitude,
		Lng: loc.Longitude,
	}})
	if err != nil {
		return "", err
	}

	if len(results) == 0 {
		return "", ErrNoAddressFound
	}

	return results[0].FormattedAddress, nil
}

// New - new GeoInfo interface
func New(apiKey string) (GeoInfo, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		log.WithFields(log.Fields{
			"prefix": logPrefix,
			"error":  err,
		}).Error("new map client")

		return nil, err
	}

	return &geoInfo{
		client: client,
	}, nil
}
