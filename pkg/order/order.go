package order

import (
	"context"
	"errors"
	"fmt"
)

// Item identifies a kind of ordered goods.
type Item int

// Item types understood by the registry.
const (
	Sunglasses Item = 1
	Belts      Item = 2
	Scarves    Item = 3
)

// Items lists the recognized item types in display order.
var Items = []Item{Sunglasses, Belts, Scarves}

// Known reports whether the item type has a counter.
func (i Item) Known() bool {
	return i >= Sunglasses && i <= Scarves
}

func (i Item) String() string {
	switch i {
	case Sunglasses:
		return "sunglasses"
	case Belts:
		return "belts"
	case Scarves:
		return "scarves"
	}
	return fmt.Sprintf("item(%d)", int(i))
}

// Business ids are exactly five digits.
const (
	MinBusinessID = 10000
	MaxBusinessID = 99999
)

// ValidBusinessID reports whether id has exactly five digits.
func ValidBusinessID(id int) bool {
	return id >= MinBusinessID && id <= MaxBusinessID
}

// Order is a single validated submission from a business client.
type Order struct {
	Name       string `json:"name"`
	BusinessID int    `json:"business_id"`
	Item       Item   `json:"item"`
	Quantity   int    `json:"quantity"`
}

// Client is a snapshot of a registered business client and its
// accumulated item quantities.
type Client struct {
	Name       string       `json:"name"`
	BusinessID int          `json:"business_id"`
	Counts     map[Item]int `json:"counts"`
}

// Count returns the accumulated quantity for the item type.
func (c Client) Count(i Item) int {
	return c.Counts[i]
}

func (c Client) String() string {
	return fmt.Sprintf("Business: %s (ID: %d) - Items: Sunglasses: %d, Belts: %d, Scarves: %d",
		c.Name, c.BusinessID, c.Count(Sunglasses), c.Count(Belts), c.Count(Scarves))
}

// Registry is the shared store of business clients. Implementations must
// apply each Submit atomically with respect to every other Submit. Submit
// reports whether the order registered a new client.
type Registry interface {
	Submit(ctx context.Context, o Order) (created bool, err error)
	Get(ctx context.Context, id int) (Client, error)
	List(ctx context.Context) ([]Client, error)
	Len(ctx context.Context) (int, error)
}

var (
	// ErrNotFound indicates the requested business client does not exist.
	ErrNotFound = errors.New("business client not found")
	// ErrNameMismatch indicates the business id is registered under another name.
	ErrNameMismatch = errors.New("business id registered under a different name")
	// ErrUnknownItem indicates an item type without a counter.
	ErrUnknownItem = errors.New("unknown item type")
)
