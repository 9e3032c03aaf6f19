// Package addrmap maps Firefly hardware addresses to testbed node ids.
package addrmap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// ErrUnknownAddress is matched by every UnknownAddressError
var ErrUnknownAddress = errors.New("unknown hardware address")

// UnknownAddressError reports an address missing from the lookup table
type UnknownAddressError struct {
	Addr string
}

func (e *UnknownAddressError) Error() string {
	return fmt.Sprintf("address %s not found in the testbed address table", e.Addr)
}
func (e *UnknownAddressError) Is(target error) bool { return target == ErrUnknownAddress }

// fireflyAddresses is the deployment of the Firefly testbed.
var fireflyAddresses = map[string]types.NodeID{
	"f7:9c": 1, "d9:76": 2, "f3:84": 3, "f3:ee": 4, "f7:92": 5,
	"f3:9a": 6, "de:21": 7, "f2:a1": 8, "d8:b5": 9, "f2:1e": 10,
	"d9:5f": 11, "f2:33": 12, "de:0c": 13, "f2:0e": 14, "d9:49": 15,
	"f3:dc": 16, "d9:23": 17, "f3:8b": 18, "f3:c2": 19, "f3:b7": 20,
	"de:e4": 21, "f3:88": 22, "f7:9a": 23, "f7:e7": 24, "f2:85": 25,
	"f2:27": 26, "f2:64": 27, "f3:d3": 28, "f3:8d": 29, "f7:e1": 30,
	"de:af": 31, "f2:91": 32, "f2:d7": 33, "f3:a3": 34, "f2:d9": 35,
	"d9:9f": 36, "f3:90": 50, "f2:3d": 51, "f7:ab": 52, "f7:c9": 53,
	"f2:6c": 54, "f2:fc": 56, "f1:f6": 57, "f3:cf": 62, "f3:c3": 63,
	"f7:d6": 64, "f7:b6": 65, "f7:b7": 70, "f3:f3": 71, "f1:f3": 72,
	"f2:48": 73, "f3:db": 74, "f3:fa": 75, "f3:83": 76, "f2:b4": 77,
}

// Resolver is a read-only address table. The zero value is not usable,
// construct it with New.
type Resolver struct {
	table map[string]types.NodeID
}

// New builds a resolver from the Firefly table. Entries in extra are added
// on top of it, replacing known addresses with the same key. Keys of extra
// are lowercased to the form the nodes print.
func New(extra map[string]int) *Resolver {
	table := make(map[string]types.NodeID, len(fireflyAddresses)+len(extra))
	for addr, id := range fireflyAddresses {
		table[addr] = id
	}
	for addr, id := range extra {
		table[normalize(addr)] = types.NodeID(id)
	}
	return &Resolver{table: table}
}

// Resolve returns the node id of a hardware address such as "f7:9c". The
// lookup is exact: "F7:9C" is not a known address.
func (r *Resolver) Resolve(addr string) (types.NodeID, error) {
	id, ok := r.table[addr]
	if !ok {
		return 0, &UnknownAddressError{Addr: addr}
	}
	return id, nil
}

// Len returns the number of known addresses
func (r *Resolver) Len() int {
	return len(r.table)
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
