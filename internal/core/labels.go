package core

// Protocol distribution labels. A single packet may carry several of them.
const (
	LabelIPv4      = "IPv4"
	LabelIPv6      = "IPv6"
	LabelTCP       = "TCP"
	LabelUDP       = "UDP"
	LabelICMP      = "ICMP"
	LabelICMPv6    = "ICMPv6"
	LabelDNS       = "DNS"
	LabelMalformed = "Malformed/Unknown"
)

// NetworkLabel returns the distribution label for an IP version, or "" if unknown.
func NetworkLabel(version uint8) string {
	switch version {
	case 4:
		return LabelIPv4
	case 6:
		return LabelIPv6
	default:
		return ""
	}
}

// TransportLabel returns the distribution label for an IP protocol number, or "" if unknown.
func TransportLabel(proto uint8) string {
	switch proto {
	case ProtoTCP:
		return LabelTCP
	case ProtoUDP:
		return LabelUDP
	case ProtoICMP:
		return LabelICMP
	case ProtoICMPv6:
		return LabelICMPv6
	default:
		return ""
	}
}
