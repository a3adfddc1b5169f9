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

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
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

// DownloadValidate probes url.
func (c *Client) DownloadValidate(url string) (*DownloadValidateResponse, error) {
	var resp DownloadValidateResponse
	if err := c.call("DownloadValidate", DownloadValidateRequest{URL: url}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadAdd queues an acquisition job.
func (c *Client) DownloadAdd(req DownloadAddRequest) (*DownloadAddResponse, error) {
	var resp DownloadAddResponse
	if err := c.call("DownloadAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadList lists acquisition jobs.
func (c *Client) DownloadList() (*DownloadListResponse, error) {
	var resp DownloadListResponse
	if err := c.call("DownloadList", DownloadListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SeparateAdd queues a separation job.
func (c *Client) SeparateAdd(catalogID, quality string) (*SeparateAddResponse, error) {
	var resp SeparateAddResponse
	if err := c.call("SeparateAdd", SeparateAddRequest{CatalogID: catalogID, Quality: quality}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SeparateList lists separation jobs.
func (c *Client) SeparateList() (*SeparateListResponse, error) {
	var resp SeparateListResponse
	if err := c.call("SeparateList", SeparateListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LibraryList lists catalog entries.
func (c *Client) LibraryList() (*LibraryListResponse, error) {
	var resp LibraryListResponse
	if err := c.call("LibraryList", LibraryListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LibraryRemove deletes a catalog entry.
func (c *Client) LibraryRemove(id string) (*LibraryRemoveResponse, error) {
	var resp LibraryRemoveResponse
	if err := c.call("LibraryRemove", LibraryRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LibraryImport copies a local audio file into the catalog.
func (c *Client) LibraryImport(req LibraryImportRequest) (*LibraryImportResponse, error) {
	var resp LibraryImportResponse
	if err := c.call("LibraryImport", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModelList lists model tiers.
func (c *Client) ModelList() (*ModelListResponse, error) {
	var resp ModelListResponse
	if err := c.call("ModelList", ModelListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModelDownload fetches one model tier. The call blocks until the file is
// cached.
func (c *Client) ModelDownload(tier string) (*ModelDownloadResponse, error) {
	var resp ModelDownloadResponse
	if err := c.call("ModelDownload", ModelDownloadRequest{Tier: tier}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SettingsShow reads preferences.
func (c *Client) SettingsShow() (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.call("SettingsShow", SettingsShowRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SettingsSetQuality persists the default separation tier.
func (c *Client) SettingsSetQuality(quality string) (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.call("SettingsSetQuality", SettingsSetQualityRequest{Quality: quality}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
