package segments

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/foxzi/listctl/api"
)

// Segment is a filtered subset of a mailing list, called a sublist by the
// remote API. Values are snapshots built from a single response.
type Segment struct {
	ID            int64      `json:"id"`
	ListID        int64      `json:"list_id"`
	Name          string     `json:"name"`
	Query         string     `json:"query"`
	MailingsCount int64      `json:"mailings_count"`
	LastUsed      *time.Time `json:"last_used,omitempty"`
	CreatedOn     time.Time  `json:"created_on"`
	Engagement    *float64   `json:"engagement,omitempty"`
	Count         int64      `json:"count"`
}

// wireSegment is the per-segment object of List/GetInfo and List/GetSublists
type wireSegment struct {
	ID            api.Int   `json:"id"`
	ListID        api.Int   `json:"list_id"`
	Name          string    `json:"name"`
	Query         string    `json:"query"`
	MailingsCount api.Int   `json:"mailings_count"`
	LastUsed      api.Time  `json:"last_used"`
	CreatedOn     api.Time  `json:"created_on"`
	Engagement    api.Float `json:"engagement"`
	Count         api.Int   `json:"count"`
}

// sublistsPayload is the data object of List/GetSublists
type sublistsPayload struct {
	Sublists []json.RawMessage `json:"sublists"`
}

// countPayload is the data object of List/GetList
type countPayload struct {
	Count api.Int `json:"count"`
}

// parseSegment converts one raw segment object
func parseSegment(endpoint, field string, raw json.RawMessage) (*Segment, error) {
	var w wireSegment
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &api.ParseError{Endpoint: endpoint, Field: field, Err: err}
	}
	if !w.ID.Valid || w.ID.Value <= 0 {
		return nil, &api.ParseError{Endpoint: endpoint, Field: field + ".id", Err: fmt.Errorf("must be a positive integer")}
	}
	if !w.ListID.Valid || w.ListID.Value <= 0 {
		return nil, &api.ParseError{Endpoint: endpoint, Field: field + ".list_id", Err: fmt.Errorf("must be a positive integer")}
	}
	if !w.CreatedOn.Valid {
		return nil, &api.ParseError{Endpoint: endpoint, Field: field + ".created_on", Err: fmt.Errorf("missing creation time")}
	}

	return &Segment{
		ID:            w.ID.Value,
		ListID:        w.ListID.Value,
		Name:          w.Name,
		Query:         w.Query,
		MailingsCount: w.MailingsCount.Value,
		LastUsed:      w.LastUsed.Ptr(),
		CreatedOn:     w.CreatedOn.Value,
		Engagement:    w.Engagement.Ptr(),
		Count:         w.Count.Value,
	}, nil
}
