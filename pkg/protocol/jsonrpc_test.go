package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalErrorResponse(t *testing.T) {
	out := MarshalErrorResponse(float64(7), RequestTimeout, "request timed out", nil)

	var resp Response
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, float64(7), resp.ID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, RequestTimeout, resp.Error.Code)
	assert.Equal(t, "request timed out", resp.Error.Message)
}

func TestMarshalErrorResponseNilID(t *testing.T) {
	out := MarshalErrorResponse(nil, InvalidRequest, "empty request body", nil)
	assert.Contains(t, string(out), `"id":null`)
}

func TestExtractRequestID(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    interface{}
	}{
		{"numeric id", `{"jsonrpc":"2.0","id":42,"method":"ping"}`, float64(42)},
		{"string id", `{"jsonrpc":"2.0","id":"abc","method":"ping"}`, "abc"},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"ping"}`, nil},
		{"missing id", `{"jsonrpc":"2.0","method":"ping"}`, nil},
		{"not json", `garbage`, nil},
		{"empty", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRequestID([]byte(tt.payload)))
		})
	}
}

func TestMessageClassification(t *testing.T) {
	request := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call"}`)
	notification := []byte(`{"jsonrpc":"2.0","method":"progress"}`)
	response := []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)
	errorResponse := []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"no"}}`)

	assert.True(t, IsRequest(request))
	assert.False(t, IsRequest(notification))
	assert.False(t, IsRequest(response))

	assert.True(t, IsNotification(notification))
	assert.False(t, IsNotification(request))

	assert.True(t, IsResponse(response))
	assert.True(t, IsResponse(errorResponse))
	assert.False(t, IsResponse(request))
}

func TestErrorString(t *testing.T) {
	err := &Error{Code: MethodNotFound, Message: "unknown method"}
	assert.Contains(t, err.Error(), "-32601")
	assert.Contains(t, err.Error(), "unknown method")
}
