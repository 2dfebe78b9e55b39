// Package protocol implements the line-oriented order intake protocol.
//
// A client sends one order per line:
//
//	Name,ID,ItemType,Quantity
//
// and receives one decimal response code per order line. The control line
// DISCONNECT (any letter case) ends the session and is never answered.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"orderhub/pkg/order"
)

// Code is a response code written back to the client.
type Code int

// The complete response vocabulary.
const (
	Accepted     Code = 100
	Invalid      Code = 200
	NameMismatch Code = 201
	BadQuantity  Code = 202
)

// Codes lists every response code the server can emit.
var Codes = []Code{Accepted, Invalid, NameMismatch, BadQuantity}

func (c Code) String() string {
	return strconv.Itoa(int(c))
}

// DisconnectCommand ends a session.
const DisconnectCommand = "DISCONNECT"

// IsDisconnect reports whether line is the disconnect control message. A
// trailing CR is dropped so CRLF clients match; any other padding makes
// the line an order line.
func IsDisconnect(line string) bool {
	return strings.EqualFold(strings.TrimSuffix(line, "\r"), DisconnectCommand)
}

// ValidationError reports a line with missing or malformed fields.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid order: " + e.Reason
	}
	return fmt.Sprintf("invalid order: %s: %s", e.Field, e.Reason)
}

// QuantityError reports a quantity that is not strictly positive.
type QuantityError struct {
	Quantity int
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("invalid order: quantity %d is not positive", e.Quantity)
}

const fieldCount = 4

// Parse validates an order line. Fields beyond the fourth are ignored.
// Checks run in wire order: field count, numeric fields, id range,
// then quantity sign.
func Parse(line string) (order.Order, error) {
	fields := strings.Split(line, ",")
	if len(fields) < fieldCount {
		return order.Order{}, &ValidationError{Reason: fmt.Sprintf("expected %d fields, got %d", fieldCount, len(fields))}
	}
	for i := range fields[:fieldCount] {
		fields[i] = strings.TrimSpace(fields[i])
	}

	name := fields[0]
	if name == "" {
		return order.Order{}, &ValidationError{Field: "name", Reason: "empty"}
	}
	id, err := parseInt("id", fields[1])
	if err != nil {
		return order.Order{}, err
	}
	item, err := parseInt("item type", fields[2])
	if err != nil {
		return order.Order{}, err
	}
	qty, err := parseInt("quantity", fields[3])
	if err != nil {
		return order.Order{}, err
	}

	if !order.ValidBusinessID(id) {
		return order.Order{}, &ValidationError{Field: "id", Reason: fmt.Sprintf("%d is not a 5-digit business id", id)}
	}
	if qty <= 0 {
		return order.Order{}, &QuantityError{Quantity: qty}
	}
	return order.Order{Name: name, BusinessID: id, Item: order.Item(item), Quantity: qty}, nil
}

// parseInt accepts 32-bit signed decimal integers.
func parseInt(field, s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not an integer", s)}
	}
	return int(n), nil
}

// CodeFor maps the outcome of parsing and submitting an order to its
// response code. Errors outside the protocol taxonomy map to Invalid.
func CodeFor(err error) Code {
	var qe *QuantityError
	switch {
	case err == nil:
		return Accepted
	case errors.As(err, &qe):
		return BadQuantity
	case errors.Is(err, order.ErrNameMismatch):
		return NameMismatch
	default:
		return Invalid
	}
}

// Format renders o as a wire line without the trailing newline.
func Format(o order.Order) string {
	return fmt.Sprintf("%s,%d,%d,%d", o.Name, o.BusinessID, int(o.Item), o.Quantity)
}

// ParseCode reads a response line.
func ParseCode(line string) (Code, error) {
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("malformed response %q: %w", line, err)
	}
	c := Code(n)
	for _, known := range Codes {
		if c == known {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown response code %d", n)
}
