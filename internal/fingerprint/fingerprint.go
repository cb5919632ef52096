// Package fingerprint implements §4.8's identity derivation: the strongest
// available identifier, MD5-hashed and truncated to 16 hex characters,
// plus the UUID tier supplementing §4.8 per the priority ordering
// recovered from original_source/utils/identity.py.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

const truncateLen = 16

// Input carries the identifiers fingerprint inspects, in priority order.
// Fields are checked top to bottom; only the identifiers needed for the
// first matching rule are read.
type Input struct {
	AssetUUID    string
	SerialNumber string
	MACAddresses []string
	Hostname     string
	IPAddress    string
	Manufacturer string
	Model        string
}

// Compute derives the fingerprint for an Input. Priority order:
//
//	0. UUID:<asset_uuid>                   (additive tier, ahead of serial)
//	1. SN:<serial_number>                  if len(serial) >= 5
//	2. MAC:<mac_addresses[0]>
//	3. HOST:<lower(hostname)>@<ip_address> if both present
//	4. IP:<ip_address>
//	5. HW:<manufacturer>:<model>           if both present
//	6. FALLBACK:<ip_address>
func Compute(in Input) string {
	switch {
	case in.AssetUUID != "":
		return hash("UUID:" + in.AssetUUID)
	case len(in.SerialNumber) >= 5:
		return hash("SN:" + in.SerialNumber)
	case len(in.MACAddresses) > 0 && in.MACAddresses[0] != "":
		return hash("MAC:" + in.MACAddresses[0])
	case in.Hostname != "" && in.IPAddress != "":
		return hash("HOST:" + strings.ToLower(in.Hostname) + "@" + in.IPAddress)
	case in.IPAddress != "":
		return hash("IP:" + in.IPAddress)
	case in.Manufacturer != "" && in.Model != "":
		return hash("HW:" + in.Manufacturer + ":" + in.Model)
	default:
		return hash("FALLBACK:" + in.IPAddress)
	}
}

func hash(tagged string) string {
	sum := md5.Sum([]byte(tagged))
	return hex.EncodeToString(sum[:])[:truncateLen]
}
