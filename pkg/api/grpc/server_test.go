package grpcapi

import (
	"context"
	"net"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/lemonberrylabs/numberhub/pkg/store"
	"github.com/lemonberrylabs/numberhub/pkg/types"
	"github.com/lemonberrylabs/numberhub/pkg/units"
)

func startTestServer(t *testing.T) (string, func()) {
	t.Helper()
	catalog, err := units.DefaultCatalog()
	require.NoError(t, err)
	rates := &units.StaticRates{
		Base:  "usd",
		Table: map[string]*apd.Decimal{"eur": types.MustDecimal("0.5")},
	}
	svc := units.NewService(catalog,
		units.WithRepository(store.NewMemory()),
		units.WithCurrency(units.NewCurrency(rates)),
	)
	srv := New(svc)

	lis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	go func() { _ = srv.ServeListener(lis) }()

	return lis.Addr().String(), srv.Stop
}

func dial(t *testing.T, addr string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestEvaluate(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()
	client := NewClient(dial(t, addr))
	ctx := context.Background()

	out, err := client.Evaluate(ctx, map[string]interface{}{"expression": "2π", "precision": 4})
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, "6.2832", m["display"])
	assert.Equal(t, "2×π", m["expression"])

	out, err = client.Evaluate(ctx, map[string]interface{}{"expression": "cos(180)", "angleMode": "deg"})
	require.NoError(t, err)
	assert.Equal(t, "-1", out.AsMap()["display"])
}

func TestEvaluateErrors(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()
	client := NewClient(dial(t, addr))
	ctx := context.Background()

	tests := []struct {
		name string
		in   map[string]interface{}
		code codes.Code
		kind types.ErrorKind
	}{
		{"malformed", map[string]interface{}{"expression": "(1+2))"}, codes.InvalidArgument, types.KindMalformed},
		{"divide by zero", map[string]interface{}{"expression": "0^(-1)"}, codes.InvalidArgument, types.KindDivideByZero},
		{"fractional precision", map[string]interface{}{"expression": "1", "precision": 1.5}, codes.InvalidArgument, ""},
		{"negative precision", map[string]interface{}{"expression": "1", "precision": -1}, codes.InvalidArgument, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Evaluate(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
			assert.Equal(t, tt.kind, Kind(err))
		})
	}
}

func TestDeleteRange(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()
	client := NewClient(dial(t, addr))

	out, err := client.DeleteRange(context.Background(), map[string]interface{}{
		"text": "1+(2)", "start": 5, "end": 5,
	})
	require.NoError(t, err)
	m := out.AsMap()
	assert.EqualValues(t, 3, m["start"])
	assert.EqualValues(t, 5, m["end"])
	assert.Equal(t, "1+(", m["text"])
	assert.EqualValues(t, 3, m["caret"])
}

func TestDecomposeTime(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()
	client := NewClient(dial(t, addr))
	ctx := context.Background()

	out, err := client.DecomposeTime(ctx, map[string]interface{}{"input": "3601", "unit": "second"})
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, "1h 1s", m["display"])
	comps := m["components"].(map[string]interface{})
	assert.Equal(t, "1", comps["hour"])
	assert.Equal(t, false, comps["negative"])

	_, err = client.DecomposeTime(ctx, map[string]interface{}{"input": "1", "unit": "lightyear"})
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Equal(t, types.KindUnknownUnit, Kind(err))
}

func TestConvert(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()
	client := NewClient(dial(t, addr))
	ctx := context.Background()

	out, err := client.Convert(ctx, map[string]interface{}{"from": "foot", "to": "inch", "input": "2"})
	require.NoError(t, err)
	assert.Equal(t, "24", out.AsMap()["display"])

	out, err = client.Convert(ctx, map[string]interface{}{"from": "eur", "input": "1"})
	require.NoError(t, err)
	results := out.AsMap()["results"].([]interface{})
	require.NotEmpty(t, results)
	var usd map[string]interface{}
	for _, r := range results {
		if row := r.(map[string]interface{}); row["unit"] == "usd" {
			usd = row
		}
	}
	require.NotNil(t, usd)
	assert.Equal(t, true, usd["available"])
	assert.Equal(t, "2", usd["display"])

	_, err = client.Convert(ctx, map[string]interface{}{"from": "meter", "to": "second", "input": "1"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, types.KindConversion, Kind(err))

	_, err = client.Convert(ctx, map[string]interface{}{"to": "meter"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealth(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := healthpb.NewHealthClient(dial(t, addr)).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestCode(t *testing.T) {
	assert.Equal(t, codes.Unavailable, Code(types.NewNetworkUnavailableError(nil)))
	assert.Equal(t, codes.FailedPrecondition, Code(types.NewCurrencyError("usd", "jpy")))
	assert.Equal(t, codes.Internal, Code(assert.AnError))
}
