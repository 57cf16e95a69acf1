// Package segments is the client for the segment (sublist) resource of the
// list API. Every method sends exactly one request through an api.Sender
// and maps the envelope to a typed result.
package segments

import (
	"context"
	"fmt"

	"github.com/foxzi/listctl/api"
)

// Endpoints used by this client.
const (
	EndpointCreate      = "List/CreateSublist"
	EndpointUpdate      = "List/SetInfo"
	EndpointDelete      = "List/DeleteSublist"
	EndpointGet         = "List/GetInfo"
	EndpointGetSegments = "List/GetSublists"
	EndpointGetCount    = "List/GetList"
)

// Request parameter names.
const (
	ParamListID       = "list_id"
	ParamParentListID = "parent_list_id"
	ParamName         = "name"
	ParamQuery        = "query"
	ParamStatistics   = "statistics"
	ParamEngagement   = "engagement"
	ParamDetails      = "details"
	ParamLimit        = "limit"
	ParamOffset       = "offset"
)

// Client is the segment resource client. It holds no state besides the
// sender and is safe for concurrent use.
type Client struct {
	sender api.Sender
}

// New creates a segment client on top of sender
func New(sender api.Sender) *Client {
	return &Client{sender: sender}
}

// CreateRequest represents segment creation parameters
type CreateRequest struct {
	ListID int64
	Name   string
	// Query is the remote filter expression. Empty means no filter.
	Query    string
	ClientID *int64
}

// UpdateRequest represents segment update parameters. Unset fields are
// not sent.
type UpdateRequest struct {
	SegmentID int64
	ListID    int64
	Name      *string
	Query     *string
	ClientID  *int64
}

// DeleteRequest represents segment deletion parameters
type DeleteRequest struct {
	SegmentID int64
	ClientID  *int64
}

// GetRequest represents single segment lookup parameters
type GetRequest struct {
	SegmentID           int64
	IncludeStatistics   *bool
	CalculateEngagement *bool
	ClientID            *int64
}

// GetSegmentsRequest represents segment listing parameters. Limit and
// Offset are forwarded to the remote API as is.
type GetSegmentsRequest struct {
	ListID         int64
	IncludeDetails *bool
	Limit          *int
	Offset         *int
	ClientID       *int64
}

// GetCountRequest represents list member count parameters
type GetCountRequest struct {
	ListID   int64
	ClientID *int64
}

func baseParams(userKey string, clientID *int64) api.Params {
	return api.NewParams(userKey).OptInt64(api.ParamClientID, clientID)
}

func (c *Client) send(ctx context.Context, endpoint string, params api.Params) (*api.Envelope, error) {
	env, err := c.sender.Send(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, &api.ParseError{Endpoint: endpoint, Field: "envelope", Err: fmt.Errorf("no envelope returned")}
	}
	if err := env.Err(); err != nil {
		return nil, err
	}
	return env, nil
}

// Create creates a segment of a list and returns its identifier.
//
// API: POST List/CreateSublist
func (c *Client) Create(ctx context.Context, userKey string, req CreateRequest) (int64, error) {
	params := baseParams(userKey, req.ClientID).
		SetInt64(ParamListID, req.ListID).
		Set(ParamName, req.Name).
		Set(ParamQuery, req.Query)

	env, err := c.send(ctx, EndpointCreate, params)
	if err != nil {
		return 0, err
	}
	return env.ID()
}

// Update changes the name and/or query of a segment.
//
// API: POST List/SetInfo
func (c *Client) Update(ctx context.Context, userKey string, req UpdateRequest) (bool, error) {
	params := baseParams(userKey, req.ClientID).
		SetInt64(ParamListID, req.SegmentID).
		SetInt64(ParamParentListID, req.ListID).
		OptString(ParamName, req.Name).
		OptString(ParamQuery, req.Query)

	env, err := c.send(ctx, EndpointUpdate, params)
	if err != nil {
		return false, err
	}
	return env.Bool()
}

// Delete removes a segment.
//
// API: POST List/DeleteSublist
func (c *Client) Delete(ctx context.Context, userKey string, req DeleteRequest) (bool, error) {
	params := baseParams(userKey, req.ClientID).
		SetInt64(ParamListID, req.SegmentID)

	env, err := c.send(ctx, EndpointDelete, params)
	if err != nil {
		return false, err
	}
	return env.Bool()
}

// Get returns a single segment. The statistics and engagement flags only
// change which optional fields the remote system fills in.
//
// API: POST List/GetInfo
func (c *Client) Get(ctx context.Context, userKey string, req GetRequest) (*Segment, error) {
	params := baseParams(userKey, req.ClientID).
		SetInt64(ParamListID, req.SegmentID).
		OptBool(ParamStatistics, req.IncludeStatistics).
		OptBool(ParamEngagement, req.CalculateEngagement)

	env, err := c.send(ctx, EndpointGet, params)
	if err != nil {
		return nil, err
	}
	return parseSegment(EndpointGet, "data", env.Data)
}

// GetSegments returns the segments of a list in the order the remote
// system sent them.
//
// API: POST List/GetSublists
func (c *Client) GetSegments(ctx context.Context, userKey string, req GetSegmentsRequest) ([]*Segment, error) {
	params := baseParams(userKey, req.ClientID).
		SetInt64(ParamListID, req.ListID).
		OptBool(ParamDetails, req.IncludeDetails).
		OptInt(ParamLimit, req.Limit).
		OptInt(ParamOffset, req.Offset)

	env, err := c.send(ctx, EndpointGetSegments, params)
	if err != nil {
		return nil, err
	}

	var payload sublistsPayload
	if err := env.Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Sublists == nil {
		return nil, &api.ParseError{Endpoint: EndpointGetSegments, Field: "data.sublists", Err: fmt.Errorf("missing field")}
	}

	result := make([]*Segment, 0, len(payload.Sublists))
	for i, raw := range payload.Sublists {
		seg, err := parseSegment(EndpointGetSegments, fmt.Sprintf("data.sublists[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		result = append(result, seg)
	}
	return result, nil
}

// GetCount returns the number of contacts in a list.
//
// API: POST List/GetList
func (c *Client) GetCount(ctx context.Context, userKey string, req GetCountRequest) (int64, error) {
	params := baseParams(userKey, req.ClientID).
		SetInt64(ParamListID, req.ListID)

	env, err := c.send(ctx, EndpointGetCount, params)
	if err != nil {
		return 0, err
	}

	var payload countPayload
	if err := env.Decode(&payload); err != nil {
		return 0, err
	}
	if !payload.Count.Valid {
		return 0, &api.ParseError{Endpoint: EndpointGetCount, Field: "data.count", Err: fmt.Errorf("missing field")}
	}
	return payload.Count.Value, nil
}
