package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nulzo/atlas-api/internal/itinerary"
	"github.com/nulzo/atlas-api/internal/supabase"
	"github.com/nulzo/atlas-api/pkg/api"
	"github.com/tidwall/gjson"
)

type SavedItinerary struct {
	Report itinerary.Report `json:"report"`
	Rows   json.RawMessage  `json:"rows"`
}

func (s *service) ValidateItinerary(doc []byte) itinerary.Report {
	return itinerary.ValidateBytes(doc)
}

// SaveItinerary stores a document only when it validates. The report travels
// with the 422 problem otherwise.
func (s *service) SaveItinerary(ctx context.Context, doc []byte) (*SavedItinerary, error) {
	report := itinerary.ValidateBytes(doc)
	if !report.Valid {
		return nil, api.UnprocessableError("itinerary failed validation",
			api.WithType(api.TypeInvalidItinerary),
			api.WithExtension("report", report),
		)
	}

	trip := gjson.GetBytes(doc, "tripInfo")
	row := map[string]any{
		"trip_from": trip.Get("from").Value(),
		"trip_to":   trip.Get("to").Value(),
		"duration":  trip.Get("duration").Value(),
		"document":  json.RawMessage(doc),
	}

	rows, err := s.insertRows(ctx, s.itineraryTable, row)
	if err != nil {
		return nil, err
	}
	return &SavedItinerary{Report: report, Rows: rows}, nil
}

func hostedError(err error, table string) error {
	var problem *api.Problem
	switch {
	case errors.As(err, &problem):
		return problem
	case errors.Is(err, supabase.ErrDisabled):
		return api.New(http.StatusServiceUnavailable, "Service Unavailable", "hosted database is not configured")
	case errors.Is(err, supabase.ErrTableNotAllowed):
		return api.NotFoundError("unknown table '" + table + "'")
	default:
		return api.ProviderError("hosted database request failed", err)
	}
}
