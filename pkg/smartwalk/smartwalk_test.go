package smartwalk

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/bingoohuang/walkperf/pkg/store"
	"github.com/bingoohuang/walkperf/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func TestAdviceKeywordsURI(t *testing.T) {
	assert.Equal(t, "/advice/keywords?prefix=bus+st&count=5", AdviceKeywordsURI("bus st", 5))
	assert.Equal(t, "/advice/keywords?prefix=caf%C3%A9&count=1", AdviceKeywordsURI("café", 1))
}

func TestEntityPlaceURI(t *testing.T) {
	assert.Equal(t, "/entity/places/64f0c2", EntityPlaceURI("64f0c2"))
	assert.Equal(t, "/entity/places/a%2Fb", EntityPlaceURI("a/b"))
}

func decodeQuery(t *testing.T, uri string, v interface{}) string {
	u, err := url.Parse(uri)
	require.NoError(t, err)
	raw := u.Query().Get("query")
	require.NoError(t, json.Unmarshal([]byte(raw), v))
	return raw
}

func TestSearchURIs(t *testing.T) {
	p := store.Location{Lon: 14.4, Lat: 50.1}

	uri, err := SearchDirecsURI(DirecsQuery{Waypoints: []store.Location{p, p}})
	require.NoError(t, err)
	assert.Contains(t, uri, "/search/direcs?query=")
	raw := decodeQuery(t, uri, &DirecsQuery{})
	assert.JSONEq(t, `{"waypoints":[{"lon":14.4,"lat":50.1},{"lon":14.4,"lat":50.1}]}`, raw)

	uri, err = SearchPlacesURI(PlacesQuery{Center: p, Radius: 3000})
	require.NoError(t, err)
	raw = decodeQuery(t, uri, &PlacesQuery{})
	assert.JSONEq(t, `{"center":{"lon":14.4,"lat":50.1},"radius":3000,"categories":[]}`, raw)

	uri, err = SearchRoutesURI(RoutesQuery{Source: p, Target: p, MaxDistance: 6000, Categories: Categories("museum", "park")})
	require.NoError(t, err)
	assert.Contains(t, uri, "/search/routes?query=")
	raw = decodeQuery(t, uri, &RoutesQuery{})
	assert.JSONEq(t, `{"source":{"lon":14.4,"lat":50.1},"target":{"lon":14.4,"lat":50.1},"maxDistance":6000,
		"categories":[{"keyword":"museum","filters":{}},{"keyword":"park","filters":{}}],"arrows":[]}`, raw)
}

func TestFirstDistance(t *testing.T) {
	d, err := FirstDistance([]byte(`[{"distance": 1234.5, "duration": 10}, {"distance": 9}]`))
	require.NoError(t, err)
	assert.Equal(t, 1234.5, d)

	_, err = FirstDistance([]byte(`[]`))
	assert.Error(t, err)
}

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })

	timeouts, err := util.ParseDurations("2s")
	require.NoError(t, err)

	c, err := New("http://smartwalk.test/api/", timeouts, WithDial(func(string) (net.Conn, error) { return ln.Dial() }))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestClientGet(t *testing.T) {
	var gotPath, gotAccept string
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		gotPath = string(ctx.RequestURI())
		gotAccept = string(ctx.Request.Header.Peek("Accept"))
		ctx.SetContentType(AcceptJSON)
		ctx.SetBodyString(`[{"keyword":"museum"}]`)
	})

	assert.Equal(t, "http://smartwalk.test/api/advice/keywords?prefix=m&count=3", c.URL(AdviceKeywordsURI("m", 3)))

	rsp, err := c.Get(context.Background(), AdviceKeywordsURI("m", 3))
	require.NoError(t, err)
	assert.Equal(t, "/api/advice/keywords?prefix=m&count=3", gotPath)
	assert.Equal(t, AcceptJSON, gotAccept)
	assert.Equal(t, `[{"keyword":"museum"}]`, string(rsp.Body))
	assert.Greater(t, rsp.Millis(), 0.0)
}

func TestClientStatusError(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	})

	_, err := c.Get(context.Background(), EntityPlaceURI("nope"))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fasthttp.StatusNotFound, se.Code)
	assert.Contains(t, se.Error(), "/entity/places/nope")
}

func TestClientCanceled(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "/")
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = c.Get(ctx, "/")
	assert.NoError(t, err)
}

func TestNewInvalidBase(t *testing.T) {
	_, err := New("localhost", nil)
	assert.Error(t, err)
	assert.Equal(t, "example.com:443", addMissingPort("example.com", true))
	assert.Equal(t, "example.com:8080", addMissingPort("example.com:8080", false))
}
