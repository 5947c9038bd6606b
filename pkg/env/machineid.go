// Package env assembles a node: device, MAC task and the transports
// bridging it, configured from flags and environment variables.
package env

import (
	"encoding/hex"
	"fmt"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/netdev"
)

// AppID keys the protected machine id so the derived addresses are not
// the raw machine id.
const AppID = "netapi"

// MachineID retrieves the unique ID identifying the machine.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return ""
	}
	return id
}

// LongAddressFrom derives a locally administered unicast EUI-64 from a hex
// id. Short or malformed ids are zero padded.
func LongAddressFrom(id string) []byte {
	addr := make([]byte, netdev.MaxLongAddrLen)
	raw, err := hex.DecodeString(id)
	if err != nil {
		raw = []byte(id)
	}
	copy(addr, raw)
	addr[0] = addr[0]&^0x01 | 0x02
	return addr
}

// ShortAddressFrom takes the last two bytes of a long address.
func ShortAddressFrom(long []byte) []byte {
	short := make([]byte, netdev.MaxShortAddrLen)
	if len(long) >= netdev.MaxShortAddrLen {
		copy(short, long[len(long)-netdev.MaxShortAddrLen:])
	}
	return short
}

// ParseAddress parses a hex address like "aabb" or "aa:bb" which must be a
// short or long address.
func ParseAddress(s string) ([]byte, error) {
	clean := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c != ':' && c != '-' {
			clean = append(clean, c)
		}
	}
	addr, err := hex.DecodeString(string(clean))
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %v", s, err)
	}
	if l := len(addr); l != netdev.MaxShortAddrLen && l != netdev.MaxLongAddrLen {
		return nil, fmt.Errorf("invalid address %q: %d bytes", s, l)
	}
	return addr, nil
}

// FormatAddress prints addr as colon separated hex.
func FormatAddress(addr []byte) string {
	if len(addr) == 0 {
		return "-"
	}
	buf := make([]byte, 0, len(addr)*3)
	for i, b := range addr {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, hex.EncodeToString([]byte{b})...)
	}
	return string(buf)
}
