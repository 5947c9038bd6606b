package netdev

import (
	"encoding/binary"
	"sync"

	"github.com/robotalks/netapi/pkg/errno"
)

// Param identifies a device option.
type Param uint16

// Device options. Numeric values are big-endian.
const (
	ParamChannel       Param = iota // uint16
	ParamAddress                    // short address
	ParamAddressLong                // long address
	ParamNID                        // uint16 network id
	ParamTxPower                    // int16 dBm
	ParamMaxPacketSize              // uint16
	ParamSrcLen                     // uint16, length of source addresses used
	ParamProtocol                   // uint16 upper protocol id
	ParamState                      // uint8 State
)

var paramNames = []string{
	"channel",
	"address",
	"address-long",
	"nid",
	"tx-power",
	"max-packet-size",
	"src-len",
	"protocol",
	"state",
}

func (p Param) String() string {
	if int(p) < len(paramNames) {
		return paramNames[p]
	}
	return "unknown"
}

// ParseParam looks up a Param by name.
func ParseParam(name string) (Param, bool) {
	for i, n := range paramNames {
		if n == name {
			return Param(i), true
		}
	}
	return 0, false
}

// Uint16 encodes v as an option value.
func Uint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// AsUint16 decodes an option value of up to 2 bytes.
func AsUint16(b []byte) uint16 {
	switch len(b) {
	case 0:
		return 0
	case 1:
		return uint16(b[0])
	default:
		return binary.BigEndian.Uint16(b)
	}
}

// OptionStore keeps option values for drivers whose options are plain
// data. Only defined params are supported.
type OptionStore struct {
	lock   sync.RWMutex
	limits map[Param]int
	values map[Param][]byte
}

// NewOptionStore creates an empty store.
func NewOptionStore() *OptionStore {
	return &OptionStore{
		limits: make(map[Param]int),
		values: make(map[Param][]byte),
	}
}

// Define declares p with a maximum value length and an initial value.
func (s *OptionStore) Define(p Param, maxLen int, initial []byte) *OptionStore {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.limits[p] = maxLen
	s.values[p] = append([]byte(nil), initial...)
	return s
}

// Get copies the value of p into out. When out is too small it fails with
// EOVERFLOW and out is not modified.
func (s *OptionStore) Get(p Param, out []byte) (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if _, ok := s.limits[p]; !ok {
		return 0, errno.ENOTSUP
	}
	v := s.values[p]
	if len(out) < len(v) {
		return 0, errno.EOVERFLOW
	}
	return copy(out, v), nil
}

// Set replaces the value of p.
func (s *OptionStore) Set(p Param, in []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	limit, ok := s.limits[p]
	if !ok {
		return errno.ENOTSUP
	}
	if len(in) == 0 {
		return errno.EINVAL
	}
	if len(in) > limit {
		return errno.EOVERFLOW
	}
	s.values[p] = append(s.values[p][:0], in...)
	return nil
}

// Value returns a copy of the value of p.
func (s *OptionStore) Value(p Param) []byte {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]byte(nil), s.values[p]...)
}
