package bili

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bilitrack/bilitrack/internal/errors"
	"github.com/bilitrack/bilitrack/internal/wbi"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *wbi.Signer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	signer := wbi.NewSigner()
	client := NewClient("", signer)
	client.SetBaseURL(srv.URL)
	return client, signer
}

func TestNavHarvestsWbiKeys(t *testing.T) {
	var gotCookie string
	client, signer := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/x/web-interface/nav", r.URL.Path)
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte(`{"code":0,"message":"0","data":{
			"isLogin":true,"mid":12345,"uname":"tester",
			"wbi_img":{
				"img_url":"https://i0.hdslb.com/bfs/wbi/0123456789abcdefghijklmnopqrstuv.png",
				"sub_url":"https://i0.hdslb.com/bfs/wbi/wxyzABCDEFGHIJKLMNOPQRSTUVWXYZab.png"
			}}}`))
	}))

	nav, err := client.Nav(context.Background(), "SESSDATA=abc; bili_jct=def")
	require.NoError(t, err)
	assert.True(t, nav.IsLogin)
	assert.Equal(t, int64(12345), nav.Mid)
	assert.Equal(t, "tester", nav.Uname)
	assert.Equal(t, "SESSDATA=abc; bili_jct=def", gotCookie)

	keys, ok := signer.CurrentKeys()
	require.True(t, ok)
	assert.Equal(t, "0123456789abcdefghijklmnopqrstuv", keys.ImgKey)
	assert.Equal(t, "wxyzABCDEFGHIJKLMNOPQRSTUVWXYZab", keys.SubKey)
}

func TestVideoView(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/x/web-interface/view", r.URL.Path)
		require.Equal(t, "BV1xx411c7mD", r.URL.Query().Get("bvid"))
		w.Write([]byte(`{"code":0,"message":"0","data":{
			"bvid":"BV1xx411c7mD","title":"demo","cid":112233,"pubdate":1700000000,
			"stat":{"view":100,"like":20,"coin":5,"favorite":8,"share":3,"danmaku":12,"reply":7}}}`))
	}))

	view, err := client.VideoView(context.Background(), "BV1xx411c7mD", "")
	require.NoError(t, err)
	assert.Equal(t, int64(112233), view.Cid)
	assert.Equal(t, int64(1700000000), view.Pubdate)
	assert.Equal(t, int64(100), view.Stat.View)
	assert.Equal(t, int64(7), view.Stat.Reply)
}

func TestVideoViewUpstreamError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-404,"message":"video not found","data":null}`))
	}))

	_, err := client.VideoView(context.Background(), "BV1bad", "")
	require.Error(t, err)
	var upstream *apperrors.ErrUpstreamAPI
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, int64(-404), upstream.Code)
	assert.Equal(t, "video not found", upstream.Message)
}

func TestOnlineTotalParsesStringCount(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/x/player/online/total", r.URL.Path)
		require.Equal(t, "112233", r.URL.Query().Get("cid"))
		w.Write([]byte(`{"code":0,"message":"0","data":{"total":"1024"}}`))
	}))

	total, err := client.OnlineTotal(context.Background(), "BV1xx411c7mD", "112233", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), total)
}

func TestRelationStatSignsRequest(t *testing.T) {
	client, signer := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/x/relation/stat", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "9876", q.Get("vmid"))
		assert.NotEmpty(t, q.Get("wts"))
		assert.Len(t, q.Get("w_rid"), 32)
		w.Write([]byte(`{"code":0,"message":"0","data":{"mid":9876,"follower":4321}}`))
	}))
	signer.Refresh("0123456789abcdefghijklmnopqrstuv", "wxyzABCDEFGHIJKLMNOPQRSTUVWXYZab")

	follower, err := client.RelationStat(context.Background(), "9876", "")
	require.NoError(t, err)
	assert.Equal(t, int64(4321), follower)
}

func TestRelationStatPrimesKeysViaNav(t *testing.T) {
	navCalled := false
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/x/web-interface/nav":
			navCalled = true
			w.Write([]byte(`{"code":0,"message":"0","data":{
				"isLogin":true,"mid":1,"uname":"x",
				"wbi_img":{
					"img_url":"https://i0.hdslb.com/bfs/wbi/0123456789abcdefghijklmnopqrstuv.png",
					"sub_url":"https://i0.hdslb.com/bfs/wbi/wxyzABCDEFGHIJKLMNOPQRSTUVWXYZab.png"
				}}}`))
		case "/x/relation/stat":
			w.Write([]byte(`{"code":0,"message":"0","data":{"follower":7}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	follower, err := client.RelationStat(context.Background(), "1", "")
	require.NoError(t, err)
	assert.True(t, navCalled)
	assert.Equal(t, int64(7), follower)
}
