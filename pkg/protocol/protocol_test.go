package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderhub/pkg/order"
)

func TestParseValid(t *testing.T) {
	o, err := Parse("  Acme , 12345,1 ,  5 ")
	require.NoError(t, err)
	assert.Equal(t, order.Order{Name: "Acme", BusinessID: 12345, Item: order.Sunglasses, Quantity: 5}, o)

	o, err = Parse("Acme,12345,2,3,extra,fields")
	require.NoError(t, err)
	assert.Equal(t, order.Belts, o.Item)
}

func TestParseCodes(t *testing.T) {
	tests := []struct {
		line string
		want Code
	}{
		{"Acme,12345,1,5", Accepted},
		{"Acme,12345,7,5", Accepted},
		{"Acme,12345,1", Invalid},
		{"", Invalid},
		{"Acme,abc,1,5", Invalid},
		{"Acme,12345,x,5", Invalid},
		{"Acme,12345,1,five", Invalid},
		{"Acme,12345,1,", Invalid},
		{",12345,1,5", Invalid},
		{"Acme,9999,1,5", Invalid},
		{"Acme,100000,1,5", Invalid},
		{"Acme,9999,1,0", Invalid},
		{"Acme,12345,1,0", BadQuantity},
		{"Acme,12345,1,-1", BadQuantity},
		{"Acme,12345,9,-3", BadQuantity},
		{"Acme,12345,1,99999999999", Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := Parse(tt.line)
			assert.Equal(t, tt.want, CodeFor(err))
		})
	}
}

func TestParseErrorTypes(t *testing.T) {
	_, err := Parse("Acme,12345,1,-1")
	var qe *QuantityError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, -1, qe.Quantity)

	_, err = Parse("Acme,abc,1,1")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "id", ve.Field)
}

func TestCodeForRegistryErrors(t *testing.T) {
	assert.Equal(t, NameMismatch, CodeFor(order.ErrNameMismatch))
	assert.Equal(t, NameMismatch, CodeFor(fmt.Errorf("submit: %w", order.ErrNameMismatch)))
	assert.Equal(t, Invalid, CodeFor(order.ErrUnknownItem))
	assert.Equal(t, Invalid, CodeFor(errors.New("anything else")))
}

func TestIsDisconnect(t *testing.T) {
	for _, line := range []string{"DISCONNECT", "disconnect", "DisConnect", "disconnect\r"} {
		assert.True(t, IsDisconnect(line), line)
	}
	for _, line := range []string{"DISCONNECT,1", "quit", "", " disconnect", "DISCONNECT ", "disconnect\r\r"} {
		assert.False(t, IsDisconnect(line), line)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	o := order.Order{Name: "Acme", BusinessID: 54321, Item: order.Scarves, Quantity: 12}
	assert.Equal(t, "Acme,54321,3,12", Format(o))
	got, err := Parse(Format(o))
	require.NoError(t, err)
	assert.Equal(t, o, got)
}

func TestParseCode(t *testing.T) {
	c, err := ParseCode("201\r\n")
	require.NoError(t, err)
	assert.Equal(t, NameMismatch, c)

	_, err = ParseCode("300")
	assert.Error(t, err)
	_, err = ParseCode("ok")
	assert.Error(t, err)
}
