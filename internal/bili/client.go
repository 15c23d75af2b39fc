package bili

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bilitrack/bilitrack/internal/errors"
	"github.com/bilitrack/bilitrack/internal/wbi"
)

const defaultBaseURL = "https://api.bilibili.com"

// envelope is the {code, message, data} wrapper every platform endpoint
// uses. code=0 denotes success.
type envelope struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NavInfo is the subset of the nav endpoint we consume: login state,
// identity, and the two WBI key image URLs.
type NavInfo struct {
	IsLogin bool   `json:"isLogin"`
	Mid     int64  `json:"mid"`
	Uname   string `json:"uname"`
	WbiImg  struct {
		ImgURL string `json:"img_url"`
		SubURL string `json:"sub_url"`
	} `json:"wbi_img"`
}

// VideoView is the subset of the video view endpoint we consume.
type VideoView struct {
	Bvid    string    `json:"bvid"`
	Title   string    `json:"title"`
	Cid     int64     `json:"cid"`
	Pubdate int64     `json:"pubdate"` // Unix seconds
	Stat    VideoStat `json:"stat"`
}

// VideoStat carries the public counters of one video.
type VideoStat struct {
	View     int64 `json:"view"`
	Like     int64 `json:"like"`
	Coin     int64 `json:"coin"`
	Favorite int64 `json:"favorite"`
	Share    int64 `json:"share"`
	Danmaku  int64 `json:"danmaku"`
	Reply    int64 `json:"reply"`
}

// Client talks to the platform API. It shares one Signer with the
// account service so nav responses refresh the key cache for everyone.
type Client struct {
	baseURL string
	http    *browserClient
	signer  *wbi.Signer
}

// NewClient creates a platform API client.
func NewClient(userAgent string, signer *wbi.Signer) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		http:    newBrowserClient(userAgent),
		signer:  signer,
	}
}

// SetBaseURL overrides the API origin, for tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

func (c *Client) get(ctx context.Context, path string, query url.Values, cookie string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &errors.ErrNetwork{Endpoint: path, Err: err}
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &errors.ErrNetwork{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &errors.ErrNetwork{Endpoint: path, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &errors.ErrNetwork{Endpoint: path, Err: err}
	}
	if env.Code != 0 {
		return &errors.ErrUpstreamAPI{Endpoint: path, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &errors.ErrNetwork{Endpoint: path, Err: err}
		}
	}
	return nil
}

// Nav fetches the session's nav info. On success any WBI keys in the
// response are harvested into the shared signer.
func (c *Client) Nav(ctx context.Context, cookie string) (*NavInfo, error) {
	var nav NavInfo
	if err := c.get(ctx, "/x/web-interface/nav", nil, cookie, &nav); err != nil {
		return nil, err
	}

	if keys, ok := wbi.ExtractKeys(nav.WbiImg.ImgURL, nav.WbiImg.SubURL); ok {
		c.signer.Refresh(keys.ImgKey, keys.SubKey)
	}

	return &nav, nil
}

// VideoView fetches a video's public info and counters.
func (c *Client) VideoView(ctx context.Context, bvid, cookie string) (*VideoView, error) {
	query := url.Values{"bvid": {bvid}}
	var view VideoView
	if err := c.get(ctx, "/x/web-interface/view", query, cookie, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// OnlineTotal fetches the current viewer count for a video. The
// platform returns the total as a string.
func (c *Client) OnlineTotal(ctx context.Context, bvid, cid, cookie string) (int64, error) {
	query := url.Values{"bvid": {bvid}, "cid": {cid}}
	var data struct {
		Total string `json:"total"`
	}
	if err := c.get(ctx, "/x/player/online/total", query, cookie, &data); err != nil {
		return 0, err
	}

	total, err := strconv.ParseInt(data.Total, 10, 64)
	if err != nil {
		return 0, &errors.ErrNetwork{Endpoint: "/x/player/online/total", Err: fmt.Errorf("unparseable total %q", data.Total)}
	}
	return total, nil
}

// RelationStat fetches a creator's follower count. The endpoint
// requires WBI signing; when no keys are cached a nav call primes them
// first.
func (c *Client) RelationStat(ctx context.Context, uid, cookie string) (int64, error) {
	if _, ok := c.signer.CurrentKeys(); !ok {
		if _, err := c.Nav(ctx, cookie); err != nil {
			return 0, err
		}
	}

	signed, err := c.signer.Sign(map[string]string{"vmid": uid})
	if err != nil {
		return 0, err
	}

	query := url.Values{}
	for k, v := range signed {
		query.Set(k, v)
	}

	var data struct {
		Follower int64 `json:"follower"`
	}
	if err := c.get(ctx, "/x/relation/stat", query, cookie, &data); err != nil {
		return 0, err
	}
	return data.Follower, nil
}
