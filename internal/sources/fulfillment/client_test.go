package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/brightsync/internal/transport"
	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/push"
	"github.com/agentstation/brightsync/pkg/tags"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "key", "secret", transport.WithMaxTries(1), transport.WithBackoff(time.Millisecond, time.Millisecond))
}

func TestFindAndUpdate(t *testing.T) {
	var put map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/products":
			assert.Equal(t, "ABC-1-S", r.URL.Query().Get("sku"))
			fmt.Fprint(w, `{"products":[{"productId":77,"sku":"ABC-1-S","name":"Old","weightOz":4,"tags":[{"tagId":2}]}]}`)
		case r.Method == http.MethodPut && r.URL.Path == "/products/77":
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.NoError(t, json.Unmarshal(body, &put))
			fmt.Fprint(w, `{"success":true}`)
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	p, err := client.FindBySKU(ctx, "ABC-1-S")
	require.NoError(t, err)
	assert.Equal(t, "77", p.ID)
	assert.Equal(t, "Old", p.Name)
	assert.Equal(t, []tags.Ref{{TagID: 2}}, p.Tags)

	p.Name = "Widget"
	p.ImageURL = "https://shop.example.com/w.jpg"
	p.Tags = []tags.Ref{{TagID: 2}, {TagID: 3}}
	require.NoError(t, client.UpdateProduct(ctx, p))

	require.NotNil(t, put)
	assert.Equal(t, float64(77), put["productId"])
	assert.Equal(t, "Widget", put["name"])
	assert.Equal(t, float64(4), put["weightOz"], "unmodelled fields are sent back")
	assert.Equal(t, "https://shop.example.com/w.jpg", put["imageUrl"])
	assert.Len(t, put["tags"], 2)
}

func TestFindBySKUNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"products":[]}`)
	})

	_, err := client.FindBySKU(context.Background(), "NOPE")
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"bad tags"}`)
	})

	err := client.UpdateProduct(context.Background(), &pushProduct)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	assert.Error(t, client.UpdateProduct(context.Background(), &emptyProduct))
}

var (
	pushProduct  = push.Product{ID: "5", SKU: "X"}
	emptyProduct = push.Product{}
)
