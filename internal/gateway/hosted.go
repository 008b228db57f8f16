package gateway

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/nulzo/atlas-api/internal/supabase"
	"github.com/nulzo/atlas-api/pkg/api"
	"github.com/tidwall/gjson"
)

func (s *service) QueryTable(ctx context.Context, table string, query url.Values) (json.RawMessage, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	rows, err := s.hosted.Select(ctx, table, query)
	if err != nil {
		return nil, hostedError(err, table)
	}
	return rows, nil
}

// InsertRows forwards a JSON object or array of objects.
func (s *service) InsertRows(ctx context.Context, table string, rows json.RawMessage) (json.RawMessage, error) {
	if v := gjson.ParseBytes(rows); !gjson.ValidBytes(rows) || !(v.IsObject() || v.IsArray()) {
		return nil, api.BadRequestError("body must be a JSON object or an array of objects")
	}
	return s.insertRows(ctx, table, rows)
}

func (s *service) insertRows(ctx context.Context, table string, rows any) (json.RawMessage, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	out, err := s.hosted.Insert(ctx, table, rows)
	if err != nil {
		return nil, hostedError(err, table)
	}
	return out, nil
}

func (s *service) checkTable(table string) error {
	if s.hosted == nil || !s.hosted.Enabled() {
		return hostedError(supabase.ErrDisabled, table)
	}
	if !s.hosted.Allowed(table) {
		return hostedError(supabase.ErrTableNotAllowed, table)
	}
	return nil
}
