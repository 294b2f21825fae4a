package stripeapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/stripe-exporter/pkg/observability"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	client, err := NewClient(server.URL, "sk_test_123", logger)
	require.NoError(t, err)
	return client
}

func TestListActiveSubscriptionsPagination(t *testing.T) {
	var requests []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/subscriptions", r.URL.Path)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		requests = append(requests, r.URL.Query().Get("starting_after"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("starting_after") == "" {
			fmt.Fprint(w, `{"object":"list","data":[
				{"id":"sub_1","status":"active","items":{"data":[{"id":"si_1","quantity":1,"price":{"id":"price_1","nickname":"pro","product":"prod_1","unit_amount":1000,"recurring":{"interval":"month","interval_count":1}}}]}},
				{"id":"sub_2","status":"active","items":{"data":[{"id":"si_2","quantity":1,"price":{"id":"price_1","nickname":"pro","product":"prod_1","unit_amount":1000,"recurring":{"interval":"month","interval_count":1}}}]}}
			],"has_more":true}`)
			return
		}
		fmt.Fprint(w, `{"object":"list","data":[
			{"id":"sub_3","status":"active","items":{"data":[{"id":"si_3","quantity":2,"price":{"id":"price_2","nickname":"basic","product":"prod_2","unit_amount":500,"recurring":{"interval":"month","interval_count":1}}}]}}
		],"has_more":false}`)
	})

	client := testClient(t, handler)
	subs, err := client.ListActiveSubscriptions(context.Background())
	require.NoError(t, err)

	assert.Len(t, subs, 3)
	assert.Equal(t, []string{"", "sub_2"}, requests)
	assert.Equal(t, "sub_3", subs[2].ID)
	assert.Equal(t, int64(2), subs[2].Items.Data[0].Quantity)
	assert.Equal(t, "basic", subs[2].Items.Data[0].Price.Nickname)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantAuth  bool
		wantRetry bool
	}{
		{name: "401 is an auth error", status: http.StatusUnauthorized, wantAuth: true},
		{name: "403 is an auth error", status: http.StatusForbidden, wantAuth: true},
		{name: "429 is retryable", status: http.StatusTooManyRequests, wantRetry: true},
		{name: "500 is retryable", status: http.StatusInternalServerError, wantRetry: true},
		{name: "503 is retryable", status: http.StatusServiceUnavailable, wantRetry: true},
		{name: "400 is neither", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"nope"}}`, tt.status)
			}))

			_, err := client.ListPrices(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantAuth, IsAuthError(err))
			assert.Equal(t, tt.wantRetry, IsRetryable(err))
		})
	}
}

func TestTransportFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	client, err := NewClient(server.URL, "sk_test_123", logger)
	require.NoError(t, err)

	_, err = client.ListCharges(context.Background(), time.Now().Add(-time.Hour))
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestParseErrorOnMissingRequiredField(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"status":"active","items":{"data":[]}}],"has_more":false}`)
	}))

	_, err := client.ListActiveSubscriptions(context.Background())
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "subscription", parseErr.Resource)
	assert.Equal(t, "id", parseErr.Field)
}

func TestMalformedResponseIsParseError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":`)
	}))

	_, err := client.ListPrices(context.Background())
	require.Error(t, err)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.False(t, IsRetryable(err))
	assert.False(t, IsAuthError(err))
}

func TestChargeBalanceTransactionDecoding(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[
			{"id":"ch_1","created":1700000000,"status":"succeeded","paid":true,"amount":1000,"currency":"usd","invoice":"","balance_transaction":"txn_unexpanded"},
			{"id":"ch_2","created":1700000000,"status":"succeeded","paid":true,"amount":2000,"currency":"usd","invoice":"","balance_transaction":{"id":"txn_1","fee":88,"net":1912}}
		],"has_more":false}`)
	}))

	charges, err := client.ListCharges(context.Background(), time.Unix(1699990000, 0))
	require.NoError(t, err)
	require.Len(t, charges, 2)

	assert.Nil(t, charges[0].FeeDetails())
	require.NotNil(t, charges[1].FeeDetails())
	assert.Equal(t, int64(88), charges[1].FeeDetails().Fee)
	assert.Equal(t, int64(1912), charges[1].FeeDetails().Net)
}

func TestGetProductCaches(t *testing.T) {
	var hits int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		require.Equal(t, "/products/prod_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"prod_1","name":"Team Plan"}`)
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		product, err := client.GetProduct(ctx, "prod_1")
		require.NoError(t, err)
		assert.Equal(t, "Team Plan", product.Name)
	}
	assert.Equal(t, 1, hits)
}

func TestFetchAllResolvesProductsAndInvoices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[
			{"id":"sub_1","status":"active","items":{"data":[{"id":"si_1","quantity":1,"price":{"id":"price_1","nickname":"","product":"prod_1","unit_amount":1000,"recurring":{"interval":"month","interval_count":1}}}]}}
		],"has_more":false}`)
	})
	mux.HandleFunc("/prices", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[
			{"id":"price_1","nickname":"","product":"prod_1","unit_amount":1000,"recurring":{"interval":"month","interval_count":1}}
		],"has_more":false}`)
	})
	mux.HandleFunc("/charges", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[
			{"id":"ch_1","created":1700000000,"status":"succeeded","paid":true,"amount":1000,"currency":"usd","invoice":"in_1","balance_transaction":"txn_1"}
		],"has_more":false}`)
	})
	mux.HandleFunc("/products/prod_1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"prod_1","name":"Team Plan"}`)
	})
	mux.HandleFunc("/invoices/in_1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"in_1","subscription":"sub_1","lines":{"data":[{"type":"subscription","quantity":1,"price":{"id":"price_1","nickname":"","product":"prod_1","unit_amount":1000}}]}}`)
	})

	client := testClient(t, mux)
	data, err := client.FetchAll(context.Background(), time.Unix(1699990000, 0))
	require.NoError(t, err)

	assert.Len(t, data.Subscriptions, 1)
	assert.Contains(t, data.Prices, "price_1")
	assert.Equal(t, "Team Plan", data.Products["prod_1"].Name)
	require.Contains(t, data.Invoices, "in_1")
	assert.Equal(t, "sub_1", data.Invoices["in_1"].SubscriptionID)
}

func TestFetchAllResolvesInvoiceLineProducts(t *testing.T) {
	// The charge's invoice bills an archived price: absent from the
	// active price list and from every subscription, with no nickname.
	// Its product must still be fetched so the display name can fall
	// back to the product name instead of the raw price id.
	mux := http.NewServeMux()
	mux.HandleFunc("/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[],"has_more":false}`)
	})
	mux.HandleFunc("/prices", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[],"has_more":false}`)
	})
	mux.HandleFunc("/charges", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[
			{"id":"ch_1","created":1700000000,"status":"succeeded","paid":true,"amount":1000,"currency":"usd","invoice":"in_1","balance_transaction":"txn_1"}
		],"has_more":false}`)
	})
	mux.HandleFunc("/invoices/in_1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"in_1","subscription":"sub_1","lines":{"data":[{"type":"subscription","quantity":1,"price":{"id":"price_old","nickname":"","product":"prod_legacy","unit_amount":1000}}]}}`)
	})
	mux.HandleFunc("/products/prod_legacy", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"prod_legacy","name":"Legacy Plan"}`)
	})

	client := testClient(t, mux)
	data, err := client.FetchAll(context.Background(), time.Unix(1699990000, 0))
	require.NoError(t, err)

	require.Contains(t, data.Invoices, "in_1")
	assert.Equal(t, "Legacy Plan", data.Products["prod_legacy"].Name)
}

func TestFetchAllAuthErrorFailsCycle(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid API Key provided"}}`, http.StatusUnauthorized)
	}))

	_, err := client.FetchAll(context.Background(), time.Now().Add(-time.Hour))
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestFetchAllToleratesProductLookupFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[
			{"id":"sub_1","status":"active","items":{"data":[{"id":"si_1","quantity":1,"price":{"id":"price_1","nickname":"","product":"prod_1","unit_amount":1000,"recurring":{"interval":"month","interval_count":1}}}]}}
		],"has_more":false}`)
	})
	mux.HandleFunc("/prices", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[],"has_more":false}`)
	})
	mux.HandleFunc("/charges", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[],"has_more":false}`)
	})
	mux.HandleFunc("/products/prod_1", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	client := testClient(t, mux)
	data, err := client.FetchAll(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	// Plan name will fall back to the raw price id downstream
	assert.NotContains(t, data.Products, "prod_1")
}
