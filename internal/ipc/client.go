package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop its loops and active recordings.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Recorders lists registered recorders.
func (c *Client) Recorders() (*RecordersResponse, error) {
	return call[RecordersResponse](c, "Recorders", RecordersRequest{})
}

// Recordings lists recordings optionally filtered by statuses.
func (c *Client) Recordings(statuses []string) (*RecordingsResponse, error) {
	return call[RecordingsResponse](c, "Recordings", RecordingsRequest{Statuses: statuses})
}

// Record starts an immediate recording.
func (c *Client) Record(req RecordRequest) (*RecordResponse, error) {
	return call[RecordResponse](c, "Record", req)
}

// StopRecording stops a running recording.
func (c *Client) StopRecording(id string) (*StopRecordingResponse, error) {
	return call[StopRecordingResponse](c, "StopRecording", StopRecordingRequest{ID: id})
}

// RemoveRecording deletes a recording and, after a delay, its files.
func (c *Client) RemoveRecording(id string, allowRerecord bool) (*RemoveRecordingResponse, error) {
	return call[RemoveRecordingResponse](c, "RemoveRecording", RemoveRecordingRequest{ID: id, AllowRerecord: allowRerecord})
}

// Override flips what the scheduler does with an upcoming airing.
func (c *Client) Override(req OverrideRequest) (*OverrideResponse, error) {
	return call[OverrideResponse](c, "Override", req)
}

// Discover runs a discovery pass immediately.
func (c *Client) Discover() (*DiscoverResponse, error) {
	return call[DiscoverResponse](c, "Discover", DiscoverRequest{})
}

// Scan scans the channels of one recorder.
func (c *Client) Scan(deviceKey string) (*ScanResponse, error) {
	return call[ScanResponse](c, "Scan", ScanRequest{Device: deviceKey})
}

// Channels lists recordable channels.
func (c *Client) Channels() (*ChannelsResponse, error) {
	return call[ChannelsResponse](c, "Channels", ChannelsRequest{})
}

// Listings lists program data listings and whether each is configured.
func (c *Client) Listings() (*ListingsResponse, error) {
	return call[ListingsResponse](c, "Listings", ListingsRequest{})
}

// SetListing adds or removes a listing from the scheduler's set.
func (c *Client) SetListing(name string, configured bool) (*SetListingResponse, error) {
	return call[SetListingResponse](c, "SetListing", SetListingRequest{Name: name, Configured: configured})
}

// Rules lists recording rules.
func (c *Client) Rules() (*RulesResponse, error) {
	return call[RulesResponse](c, "Rules", RulesRequest{})
}

// AddRule creates a recording rule.
func (c *Client) AddRule(rule RecordingRule) (*AddRuleResponse, error) {
	return call[AddRuleResponse](c, "AddRule", AddRuleRequest{Rule: rule})
}

// DeleteRule removes a recording rule.
func (c *Client) DeleteRule(id int64) (*DeleteRuleResponse, error) {
	return call[DeleteRuleResponse](c, "DeleteRule", DeleteRuleRequest{ID: id})
}
