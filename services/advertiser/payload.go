package advertiser

import "presenter-fw/transport"

// Advertising data budget for legacy advertising PDUs.
const maxAdvLen = 31

// AD types.
const (
	adFlags         = 0x01
	adComplete16    = 0x03
	adShortenedName = 0x08
	adCompleteName  = 0x09

	flagsGeneralNoBREDR = 0x06
)

// BuildPayload lays out flags, the complete 16-bit service list and the
// local name, shortening the name to fit the 31-byte budget.
func BuildPayload(name string, services []uint16) []byte {
	b := make([]byte, 0, maxAdvLen)
	b = append(b, 2, adFlags, flagsGeneralNoBREDR)
	b = appendServices(b, services)

	room := maxAdvLen - len(b) - 2
	switch {
	case room <= 0 || name == "":
	case len(name) <= room:
		b = append(b, byte(len(name)+1), adCompleteName)
		b = append(b, name...)
	default:
		b = append(b, byte(room+1), adShortenedName)
		b = append(b, name[:room]...)
	}
	return b
}

// BuildScanResponse lists services that did not fit the primary payload.
func BuildScanResponse(services []uint16) []byte {
	return appendServices(nil, services)
}

func appendServices(b []byte, services []uint16) []byte {
	if len(services) == 0 {
		return b
	}
	b = append(b, byte(1+2*len(services)), adComplete16)
	for _, u := range services {
		b = append(b, byte(u), byte(u>>8))
	}
	return b
}

// NewAdvertisement builds the immutable advertisement used for the
// lifetime of the supervisor.
func NewAdvertisement(name string, primary, scan []uint16) transport.Advertisement {
	return transport.Advertisement{
		Name:         name,
		Services:     append([]uint16(nil), primary...),
		Payload:      BuildPayload(name, primary),
		ScanResponse: BuildScanResponse(scan),
	}
}
