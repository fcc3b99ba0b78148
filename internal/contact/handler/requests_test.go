package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identify/internal/contact/models"
)

func TestPhoneNumberUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *string
		wantErr bool
	}{
		{name: "string", body: `{"phoneNumber":"123456"}`, want: ptr("123456")},
		{name: "integer", body: `{"phoneNumber":123456}`, want: ptr("123456")},
		{name: "long integer keeps every digit", body: `{"phoneNumber":919876543210123}`, want: ptr("919876543210123")},
		{name: "exponent", body: `{"phoneNumber":1.5e3}`, want: ptr("1500")},
		{name: "null", body: `{"phoneNumber":null}`},
		{name: "missing", body: `{}`},
		{name: "boolean", body: `{"phoneNumber":false}`, wantErr: true},
		{name: "object", body: `{"phoneNumber":{}}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req IdentifyRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.PhoneNumber.Value)
		})
	}
}

func TestIdentifyRequestValidate(t *testing.T) {
	t.Run("requires an identifier", func(t *testing.T) {
		req := IdentifyRequest{Email: ptr(" ")}
		err := req.Validate()
		require.Error(t, err)
		assert.Equal(t, models.ErrIdentifierRequired, err.Error())
	})

	t.Run("to model keeps values verbatim", func(t *testing.T) {
		req := IdentifyRequest{Email: ptr(" a@x.com "), PhoneNumber: PhoneNumber{Value: ptr(" 123 ")}}
		require.NoError(t, req.Validate())
		m := req.ToModel()
		assert.Equal(t, " a@x.com ", *m.Email)
		assert.Equal(t, " 123 ", *m.PhoneNumber)
	})

	t.Run("to model drops whitespace-only values", func(t *testing.T) {
		req := IdentifyRequest{Email: ptr("\t"), PhoneNumber: PhoneNumber{Value: ptr("123")}}
		m := req.ToModel()
		assert.Nil(t, m.Email)
		assert.Equal(t, "123", *m.PhoneNumber)
	})
}

func ptr[T any](v T) *T { return &v }
