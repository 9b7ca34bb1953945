package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/speedrun-executor/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
)

var (
	testAccount = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken   = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	testArbiter = common.HexToAddress("0x000000000000f6ed8be424d673c63eeff8b92674")
)

func sampleIntentOp() *models.IntentOp {
	return &models.IntentOp{
		Sponsor: testAccount,
		Nonce:   big.NewInt(42),
		Expires: big.NewInt(1_800_000_000),
		Elements: []models.Element{{
			Arbiter:       testArbiter,
			ChainID:       8453,
			IdsAndAmounts: []models.TokenAmount{{ID: new(big.Int).SetBytes(testToken.Bytes()), Amount: big.NewInt(1000)}},
			Mandate: models.Mandate{
				Recipient:          testAccount,
				TokenOut:           []models.TokenAmount{{ID: big.NewInt(7), Amount: big.NewInt(999)}},
				DestinationChainID: 10,
				FillDeadline:       big.NewInt(1_800_000_100),
				MinGas:             big.NewInt(0),
				PreClaimOps:        models.Ops{Calls: []models.Call{}},
				DestinationOps: models.Ops{
					VT:    common.HexToHash("0x01"),
					Calls: []models.Call{{To: testToken, Value: big.NewInt(0), Data: []byte{0xa9, 0x05}}},
				},
				Qualifier: models.Qualifier{
					SettlementLayer: models.SettlementAcross,
					FundingMethod:   models.FundingCompact,
					EncodedVal:      []byte{0xde, 0xad},
				},
			},
		}},
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, "test-key", nil)
}

func TestIntentOpRoundTrip(t *testing.T) {
	op := sampleIntentOp()
	op.ServerSignature = []byte{0x01, 0x02}

	data, err := json.Marshal(IntentOpToJSON(op))
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "0x1111111111111111111111111111111111111111", raw["sponsor"])
	assert.Equal(t, "42", raw["nonce"])
	elements := raw["elements"].([]interface{})
	element := elements[0].(map[string]interface{})
	assert.Equal(t, "8453", element["chainId"])
	mandate := element["mandate"].(map[string]interface{})
	assert.Equal(t, "ACROSS", mandate["qualifier"].(map[string]interface{})["settlementLayer"])
	assert.NotContains(t, mandate, "depositId")

	var decoded IntentOpJSON
	require.NoError(t, json.Unmarshal(data, &decoded))
	back, err := decoded.Model()
	require.NoError(t, err)
	assert.Equal(t, op.Sponsor, back.Sponsor)
	assert.Equal(t, 0, op.Nonce.Cmp(back.Nonce))
	assert.Equal(t, op.ServerSignature, back.ServerSignature)
	assert.Equal(t, op.Elements[0].ChainID, back.Elements[0].ChainID)
	assert.Equal(t, op.Elements[0].Mandate.DestinationOps.VT, back.Elements[0].Mandate.DestinationOps.VT)
	assert.Equal(t, op.Elements[0].Mandate.DestinationOps.Calls[0].Data, back.Elements[0].Mandate.DestinationOps.Calls[0].Data)
	assert.Equal(t, op.Elements[0].Mandate.Qualifier.EncodedVal, back.Elements[0].Mandate.Qualifier.EncodedVal)
	assert.Nil(t, back.Elements[0].Mandate.DepositID)
}

func TestNumberAcceptsStringsAndNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{`"123"`, 123},
		{`123`, 123},
		{`"0x7b"`, 123},
		{`null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var n Number
			require.NoError(t, json.Unmarshal([]byte(tt.input), &n))
			v, err := n.Big()
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Int64())
		})
	}

	var n Number
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &n))
	_, err := n.Big()
	assert.Error(t, err)
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
		chainID uint64
	}{
		{"exact insufficient balance", 400, `{"errors":[{"message":"Insufficient balance"}],"traceId":"abc"}`, KindInsufficientBalance, "Insufficient balance", 0},
		{"exact no path", 400, `{"message":"No Path Found"}`, KindNoPathFound, "No Path Found", 0},
		{"unsupported chain", 400, `{"errors":[{"message":"Unsupported chain 56"}]}`, KindUnsupportedChain, "Unsupported chain 56", 56},
		{"unsupported token", 400, `{"errors":[{"message":"Unsupported token 0x833589fcd6edb6e08f4c7c32d4f71b54bda02913 on chain 8453"}]}`, KindUnsupportedToken, "", 8453},
		{"unknown message kept", 400, `{"errors":[{"message":"Something odd happened"}]}`, KindUnknown, "Something odd happened", 0},
		{"unauthorized by status", 401, `{}`, KindAuthenticationRequired, "Unauthorized", 0},
		{"server error", 502, `bad gateway`, KindServerError, "bad gateway", 0},
		{"validation", 422, `{"message":"expires must be in the future"}`, KindValidationError, "expires must be in the future", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ParseError(tt.status, []byte(tt.body), http.Header{})
			assert.Equal(t, tt.kind, e.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, e.Message)
			}
			assert.Equal(t, tt.chainID, e.ChainID)
			assert.Equal(t, tt.status, e.Status)
		})
	}

	e := ParseError(400, []byte(`{"errors":[{"message":"Unsupported token 0x833589fcd6edb6e08f4c7c32d4f71b54bda02913 on chain 8453"}]}`), nil)
	assert.Equal(t, testToken, e.Token)

	e = ParseError(400, []byte(`{"errors":[{"message":"Insufficient balance"}],"traceId":"abc"}`), nil)
	assert.Equal(t, "abc", e.TraceID)
	assert.True(t, errors.Is(e, ErrInsufficientBalance))
	assert.False(t, errors.Is(e, ErrInsufficientLiquidity))
}

func TestRetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "7")
	e := ParseError(http.StatusTooManyRequests, []byte(`{}`), header)
	assert.Equal(t, KindRateLimited, e.Kind)
	assert.Equal(t, 7*time.Second, e.RetryAfter)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&Error{Kind: KindRateLimited}))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", &Error{Kind: KindServerError})))
	assert.True(t, IsTransient(errors.New("connection reset")))
	assert.False(t, IsTransient(&Error{Kind: KindInvalidSignature}))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
}

func TestGetRoute(t *testing.T) {
	var gotHeaders http.Header
	var gotBody map[string]interface{}
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/intents/route", r.URL.Path)
		gotHeaders = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"intentOp": IntentOpToJSON(sampleIntentOp()),
			"intentCost": map[string]interface{}{
				"hasFulfilledAll": true,
				"tokensSpent": map[string]interface{}{
					"8453": map[string]interface{}{testToken.Hex(): "1000"},
				},
				"tokensReceived": []interface{}{
					map[string]interface{}{"tokenAddress": testToken.Hex(), "amount": 999},
				},
			},
			"injectedExecutions": []interface{}{
				map[string]interface{}{"to": testToken.Hex(), "value": "0", "data": "0x095ea7b3"},
			},
		})
	})

	route, err := client.GetRoute(context.Background(), &RouteRequest{
		Account:            testAccount,
		DestinationChainID: 10,
		Calls:              []models.Call{{To: testToken, Data: []byte{0x01}}},
		TokenRequests:      []models.TokenRequest{{Token: testToken, Amount: big.NewInt(5)}},
		AccessList:         &AccessList{ChainIDs: []uint64{8453}},
	})
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotHeaders.Get("x-api-key"))
	assert.NotEmpty(t, gotHeaders.Get("X-Request-Id"))
	assert.Equal(t, "10", gotBody["destinationChainId"])
	assert.Contains(t, gotBody, "accountAccessList")
	assert.NotContains(t, gotBody, "options")

	assert.True(t, route.Cost.HasFulfilledAll)
	assert.Equal(t, int64(1000), route.Cost.TokensSpent[8453][testToken].Int64())
	require.Len(t, route.Cost.TokensReceived, 1)
	assert.Equal(t, int64(999), route.Cost.TokensReceived[0].Amount.Int64())
	require.Len(t, route.InjectedExecutions, 1)
	assert.Equal(t, []byte{0x09, 0x5e, 0xa7, 0xb3}, route.InjectedExecutions[0].Data)
	assert.Equal(t, uint64(8453), route.IntentOp.NotarizedChainID())
}

func TestGetRouteSponsored(t *testing.T) {
	var gotBody map[string]interface{}
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"intentOp":   IntentOpToJSON(sampleIntentOp()),
			"intentCost": map[string]interface{}{"hasFulfilledAll": true},
		})
	})

	_, err := client.GetRoute(context.Background(), &RouteRequest{
		Account:            testAccount,
		DestinationChainID: 10,
		TokenRequests:      []models.TokenRequest{{Token: testToken, Amount: big.NewInt(5)}},
		Sponsored:          true,
	})
	require.NoError(t, err)

	options, ok := gotBody["options"].(map[string]interface{})
	require.True(t, ok)
	settings := options["sponsorSettings"].(map[string]interface{})
	assert.Equal(t, true, settings["gasSponsored"])
	assert.Equal(t, true, settings["bridgeFeesSponsored"])
}

func TestGetRouteUnsupportedChain(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Unsupported chain 56"}],"traceId":"t-1"}`))
	})

	_, err := client.GetRoute(context.Background(), &RouteRequest{Account: testAccount, DestinationChainID: 56})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedChain))
	var backendErr *Error
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, uint64(56), backendErr.ChainID)
	assert.Equal(t, "t-1", backendErr.TraceID)
}

func TestSubmitIntent(t *testing.T) {
	var got map[string]interface{}
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/intent-operations", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"result":{"id":12345}}`))
	})

	result, err := client.SubmitIntent(context.Background(), &SignedIntentOp{
		Op:                   sampleIntentOp(),
		OriginSignatures:     [][]byte{{0xaa}},
		DestinationSignature: []byte{0xaa},
	})
	require.NoError(t, err)
	assert.Equal(t, "12345", result.ID)

	signed := got["signedIntentOp"].(map[string]interface{})
	assert.Equal(t, []interface{}{"0xaa"}, signed["originSignatures"])
	assert.Equal(t, "0xaa", signed["destinationSignature"])
	assert.Equal(t, "42", signed["nonce"])
	assert.NotContains(t, got, "userOp")
}

func TestGetIntentStatus(t *testing.T) {
	fill := common.HexToHash("0xabc")
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/intent-operation/12345", r.URL.Path)
		fmt.Fprintf(w, `{"status":"completed","fillTransactionHash":"%s","claims":[{"chainId":8453,"status":"CLAIMED","claimTransactionHash":"%s"}]}`, fill.Hex(), fill.Hex())
	})

	status, err := client.GetIntentStatus(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, fill, status.FillTransactionHash)
	require.Len(t, status.Claims, 1)
	assert.Equal(t, uint64(8453), status.Claims[0].ChainID)
	assert.Equal(t, models.StatusUnknown, status.Claims[0].Status)
}

func TestGetPendingBundleEvents(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bundles/events", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("count"))
		assert.Equal(t, "20", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(`{"events":[{"type":"FillSubmitted","bundleId":"7","chainId":"10","txHash":"","timestamp":1700000000}]}`))
	})

	events, err := client.GetPendingBundleEvents(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "7", events[0].BundleID)
	assert.Equal(t, uint64(10), events[0].ChainID)
	assert.Equal(t, uint64(1_700_000_000), events[0].Timestamp)
}

func TestGetPortfolio(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/0x1111111111111111111111111111111111111111/portfolio", r.URL.Path)
		_, _ = w.Write([]byte(`{"portfolio":[{"tokenName":"USDC","tokenDecimals":6,"balance":{"locked":"1","unlocked":"2"},
			"tokenChainBalance":[{"chainId":8453,"tokenAddress":"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913","balance":{"locked":"1","unlocked":"2"}}]}]}`))
	})

	portfolio, err := client.GetPortfolio(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, portfolio, 1)
	assert.Equal(t, "USDC", portfolio[0].Name)
	assert.Equal(t, int64(2), portfolio[0].Unlocked.Int64())
	require.Len(t, portfolio[0].Chains, 1)
	assert.Equal(t, testToken, portfolio[0].Chains[0].Token)
}

func TestCircuitBreakerStopsRequests(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	cb := circuitbreaker.NewCircuitBreaker(true, 2, time.Minute, time.Minute, nil)
	client := New(server.URL, "", nil, WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		_, err := client.GetIntentStatus(context.Background(), "1")
		assert.True(t, errors.Is(err, ErrServerError))
	}
	_, err := client.GetIntentStatus(context.Background(), "1")
	assert.ErrorIs(t, err, ErrServerError)
	var first *Error
	require.ErrorAs(t, err, &first)
	assert.Equal(t, circuitOpenMessage, first.Message)

	// each rejection is its own value
	first.Message = "changed"
	_, err = client.GetIntentStatus(context.Background(), "1")
	var second *Error
	require.ErrorAs(t, err, &second)
	assert.NotSame(t, first, second)
	assert.Equal(t, circuitOpenMessage, second.Message)
	assert.Equal(t, 2, calls)
	cb.Reset()
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Order bundle not found"}]}`))
	}))
	t.Cleanup(server.Close)

	cb := circuitbreaker.NewCircuitBreaker(true, 1, time.Minute, time.Minute, nil)
	client := New(server.URL, "", nil, WithCircuitBreaker(cb))

	_, err := client.GetIntentStatus(context.Background(), "1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, cb.IsOpen())
}
