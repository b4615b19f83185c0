package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/numberhub/pkg/store"
	"github.com/lemonberrylabs/numberhub/pkg/types"
	"github.com/lemonberrylabs/numberhub/pkg/units"
)

func newTestServer(t *testing.T) *Server {
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
	return New(svc)
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func errorOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %v", body)
	return e
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/v1/evaluate", map[string]interface{}{
		"expression": "2*(3+4)",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "14", body["display"])
	assert.Equal(t, "2×(3+4)", body["expression"])

	code, body = do(t, s, http.MethodPost, "/v1/evaluate", map[string]interface{}{
		"expression": "1/3",
		"precision":  3,
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0.333", body["display"])

	code, body = do(t, s, http.MethodPost, "/v1/evaluate", map[string]interface{}{
		"expression": "sin(90)",
		"angleMode":  "deg",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1", body["display"])
}

func TestEvaluateErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   map[string]interface{}
		code   int
		status string
		kind   string
	}{
		{"malformed", map[string]interface{}{"expression": "2++"}, 400, "INVALID_ARGUMENT", "Malformed"},
		{"divide by zero", map[string]interface{}{"expression": "1/0"}, 400, "INVALID_ARGUMENT", "DivideByZero"},
		{"overflow", map[string]interface{}{"expression": "5000!"}, 400, "INVALID_ARGUMENT", "Overflow"},
		{"bad angle", map[string]interface{}{"expression": "1", "angleMode": "grad"}, 400, "INVALID_ARGUMENT", "Malformed"},
		{"bad precision", map[string]interface{}{"expression": "1", "precision": -2}, 400, "INVALID_ARGUMENT", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, s, http.MethodPost, "/v1/evaluate", tt.body)
			assert.Equal(t, tt.code, code)
			e := errorOf(t, body)
			assert.Equal(t, tt.status, e["status"])
			if tt.kind != "" {
				assert.Equal(t, tt.kind, e["kind"])
			}
		})
	}
}

func TestDeleteRange(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/v1/delete-range", map[string]interface{}{
		"text": "sin(", "start": 4, "end": 4,
	})
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["start"])
	assert.EqualValues(t, 4, body["end"])
	assert.Equal(t, "", body["text"])
	assert.EqualValues(t, 0, body["caret"])

	code, _ = do(t, s, http.MethodPost, "/v1/delete-range", map[string]interface{}{
		"text": "12", "start": -1, "end": 0,
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDecomposeTime(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/v1/time:decompose", map[string]interface{}{
		"input": "90061",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1d 1h 1m 1s", body["display"])
	comps, ok := body["components"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1", comps["day"])

	code, body = do(t, s, http.MethodPost, "/v1/time:decompose", map[string]interface{}{
		"input": "1", "unit": "meter",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ConversionError", errorOf(t, body)["kind"])
}

func TestConvert(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/v1/convert", map[string]interface{}{
		"from": "kilometer", "to": "meter", "input": "2.5",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2500", body["display"])

	code, body = do(t, s, http.MethodPost, "/v1/convert", map[string]interface{}{
		"from": "usd", "to": "eur", "input": "10",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "5", body["display"])

	code, body = do(t, s, http.MethodPost, "/v1/convert", map[string]interface{}{
		"from": "usd", "input": "10",
	})
	assert.Equal(t, http.StatusOK, code)
	results, ok := body["results"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, results)
}

func TestConvertNumberBaseAndFootInch(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodPost, "/v1/convert", map[string]interface{}{
		"from": "decimal", "to": "hexadecimal", "input": "255",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FF", body["display"])
	assert.Equal(t, "FF", body["value"])

	code, body = do(t, s, http.MethodPost, "/v1/convert", map[string]interface{}{
		"from": "foot", "to": "meter", "input": "5", "inches": "6",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1.6764", body["display"])

	code, body = do(t, s, http.MethodPost, "/v1/convert", map[string]interface{}{
		"from": "meter", "to": "foot", "input": "1.6764",
	})
	assert.Equal(t, http.StatusOK, code)
	fi, ok := body["footInch"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "5 ft 6 in", fi["display"])

	code, body = do(t, s, http.MethodPost, "/v1/convert", map[string]interface{}{
		"from": "meter", "to": "foot", "input": "1", "inches": "2",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ConversionError", errorOf(t, body)["kind"])
}

func TestConvertErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]interface{}
		code int
		kind string
	}{
		{"unknown unit", map[string]interface{}{"from": "parsec", "to": "meter", "input": "1"}, 404, "UnknownUnit"},
		{"cross group", map[string]interface{}{"from": "meter", "to": "gram", "input": "1"}, 400, "ConversionError"},
		{"missing rate", map[string]interface{}{"from": "usd", "to": "jpy", "input": "1"}, 400, "CurrencyError"},
		{"bad input", map[string]interface{}{"from": "meter", "to": "foot", "input": "1+"}, 400, "Malformed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, s, http.MethodPost, "/v1/convert", tt.body)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.kind, errorOf(t, body)["kind"])
		})
	}

	code, _ := do(t, s, http.MethodPost, "/v1/convert", map[string]interface{}{"to": "meter"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnits(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodGet, "/v1/units?group=length&sort=alphabetical", nil)
	assert.Equal(t, http.StatusOK, code)
	list, ok := body["units"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, list)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "astronomical_unit", first["id"])

	code, body = do(t, s, http.MethodPost, "/v1/units/inch:favorite", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["favorite"])

	code, body = do(t, s, http.MethodGet, "/v1/units?favorites=true", nil)
	assert.Equal(t, http.StatusOK, code)
	list = body["units"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "inch", list[0].(map[string]interface{})["id"])

	code, body = do(t, s, http.MethodGet, "/v1/units/inch", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Inch", body["name"])
	assert.Equal(t, true, body["favorite"])

	code, body = do(t, s, http.MethodGet, "/v1/units/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", errorOf(t, body)["status"])

	code, _ = do(t, s, http.MethodGet, "/v1/units?sort=random", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnitPair(t *testing.T) {
	s := newTestServer(t)

	code, body := do(t, s, http.MethodGet, "/v1/units/meter/pair", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "foot", body["id"])

	code, body = do(t, s, http.MethodPut, "/v1/units/meter/pair", map[string]interface{}{"pairId": "inch"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "inch", body["pairedUnitId"])

	code, body = do(t, s, http.MethodGet, "/v1/units/meter/pair", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "inch", body["id"])

	code, _ = do(t, s, http.MethodPut, "/v1/units/meter/pair", map[string]interface{}{"pairId": "gram"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPut, "/v1/units/meter/pair", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthz(t *testing.T) {
	code, body := do(t, newTestServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}
