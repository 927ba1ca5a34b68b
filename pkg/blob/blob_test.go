package blob

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	store    map[string][]byte
	getErr   error
	getCalls int
	nextCID  string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{store: make(map[string][]byte), nextCID: "fakecid1"}
}

func (f *fakeGateway) Get(ctx context.Context, cidStr string) ([]byte, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.store[cidStr]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (f *fakeGateway) Put(ctx context.Context, data []byte) (string, error) {
	f.store[f.nextCID] = data
	return f.nextCID, nil
}

type doc struct {
	Name string `json:"name"`
}

func TestPutThenGetJSON(t *testing.T) {
	gw := newFakeGateway()
	c, err := New(gw, 16)
	require.NoError(t, err)

	cidStr, err := c.PutJSON(context.Background(), doc{Name: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "fakecid1", cidStr)

	var out doc
	require.NoError(t, c.GetJSON(context.Background(), cidStr, &out))
	assert.Equal(t, "hello", out.Name)
}

func TestGetJSONCachesAfterFirstFetch(t *testing.T) {
	gw := newFakeGateway()
	gw.store["cid-a"], _ = json.Marshal(doc{Name: "cached"})
	c, err := New(gw, 16)
	require.NoError(t, err)

	var out1 doc
	require.NoError(t, c.GetJSON(context.Background(), "cid-a", &out1))
	assert.Equal(t, 1, gw.getCalls)

	var out2 doc
	require.NoError(t, c.GetJSON(context.Background(), "cid-a", &out2))
	assert.Equal(t, 1, gw.getCalls, "second read should be served from cache")
	assert.Equal(t, "cached", out2.Name)
}

func TestGetJSONPropagatesGatewayError(t *testing.T) {
	gw := newFakeGateway()
	gw.getErr = errors.New("gateway down")
	c, err := New(gw, 16)
	require.NoError(t, err)

	var out doc
	err = c.GetJSON(context.Background(), "missing", &out)
	assert.Error(t, err)
}

func TestGetJSONDecodeError(t *testing.T) {
	gw := newFakeGateway()
	gw.store["cid-bad"] = []byte("not json")
	c, err := New(gw, 16)
	require.NoError(t, err)

	var out doc
	err = c.GetJSON(context.Background(), "cid-bad", &out)
	assert.Error(t, err)
}
