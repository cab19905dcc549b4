package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"natrender/internal/render"
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
		_ = c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// Submit schedules renders. Blocking requests return after every render
// finished.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.call("Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel stops the active render or drops the pending one for writer.
func (c *Client) Cancel(writer string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.call("Cancel", CancelRequest{Writer: writer}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove drops the pending render for writer.
func (c *Client) Remove(writer string) (*RemoveResponse, error) {
	var resp RemoveResponse
	if err := c.call("Remove", RemoveRequest{Writer: writer}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Settings returns the dispatch policy.
func (c *Client) Settings() (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.call("Settings", SettingsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSettings replaces the dispatch policy.
func (c *Client) UpdateSettings(settings render.Settings) (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.call("Settings", SettingsRequest{Update: &settings}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists journal records filtered by status.
func (c *Client) History(limit int, statuses []string) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.call("History", HistoryRequest{Statuses: statuses, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearHistory removes finished records, or every record when all is set.
func (c *Client) ClearHistory(all bool) (*ClearHistoryResponse, error) {
	var resp ClearHistoryResponse
	if err := c.call("ClearHistory", ClearHistoryRequest{All: all}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon to cancel its renders and exit.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
