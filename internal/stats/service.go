package stats

import "firestige.xyz/pcaplens/internal/core"

var wellKnownPorts = map[uint16]string{
	20:   "FTP-DATA",
	21:   "FTP",
	22:   "SSH",
	23:   "Telnet",
	25:   "SMTP",
	53:   "DNS",
	67:   "DHCP",
	68:   "DHCP",
	80:   "HTTP",
	110:  "POP3",
	123:  "NTP",
	143:  "IMAP",
	161:  "SNMP",
	443:  "HTTPS",
	3306: "MySQL",
	5060: "SIP",
	5432: "PostgreSQL",
	6379: "Redis",
	8080: "HTTP-Alt",
}

// ServiceName returns the common name for a port, or "" if it has none.
func ServiceName(port uint16) string {
	return wellKnownPorts[port]
}

// conversationLabel prefers the destination port's service, then the source
// port's, then the bare transport label.
func conversationLabel(th *core.TransportHeader) string {
	if name := ServiceName(th.DstPort); name != "" {
		return name
	}
	if name := ServiceName(th.SrcPort); name != "" {
		return name
	}
	return core.TransportLabel(th.Protocol)
}
