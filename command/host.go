package command

import (
	"fmt"
	"net"
	"strings"
	"unicode"

	"pkt.systems/x3270script/schema"
)

// ConnectFlags selects x3270 host-name prefixes for a connection.
type ConnectFlags uint16

const (
	// FlagTLS tunnels the connection through TLS ("L:").
	FlagTLS ConnectFlags = 1 << iota
	// FlagNoVerify skips host certificate verification ("Y:").
	FlagNoVerify
	// FlagNoTN3270E disables TN3270E negotiation ("N:").
	FlagNoTN3270E
	// FlagNoExtended requests the standard, non-extended data stream ("S:").
	FlagNoExtended
	// FlagPassthru connects through a telnet passthru service ("P:").
	FlagPassthru
	// FlagBindLock makes the emulator obey BIND screen sizes ("B:").
	FlagBindLock
)

// NoFlags is the empty flag set.
const NoFlags ConnectFlags = 0

var flagPrefixes = []struct {
	flag   ConnectFlags
	prefix string
	name   string
}{
	{FlagTLS, "L:", "tls"},
	{FlagNoVerify, "Y:", "no-verify"},
	{FlagNoTN3270E, "N:", "no-tn3270e"},
	{FlagNoExtended, "S:", "no-extended"},
	{FlagPassthru, "P:", "passthru"},
	{FlagBindLock, "B:", "bind-lock"},
}

// Has reports whether every flag in f is set.
func (c ConnectFlags) Has(f ConnectFlags) bool {
	return c&f == f
}

// Prefix returns the host-name prefix tokens for the active flags.
func (c ConnectFlags) Prefix() string {
	var b strings.Builder
	for _, fp := range flagPrefixes {
		if c.Has(fp.flag) {
			b.WriteString(fp.prefix)
		}
	}
	return b.String()
}

// String lists the active flag names.
func (c ConnectFlags) String() string {
	names := make([]string, 0, len(flagPrefixes))
	for _, fp := range flagPrefixes {
		if c.Has(fp.flag) {
			names = append(names, fp.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// ParseConnectFlags maps flag names (as printed by String) to a flag set.
func ParseConnectFlags(names []string) (ConnectFlags, error) {
	var out ConnectFlags
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || name == "none" {
			continue
		}
		found := false
		for _, fp := range flagPrefixes {
			if fp.name == name {
				out |= fp.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown connect flag %q", schema.ErrInvalidArgument, raw)
		}
	}
	return out, nil
}

// ExpandHost builds the Connect target for host. port may be empty; lus
// are tried in order by the emulator. The result is quoted whenever it
// carries LUs, flags or a reserved character.
func ExpandHost(host, port string, lus []string, flags ConnectFlags) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("%w: empty host", schema.ErrInvalidArgument)
	}
	target := host
	if inner, ok := ipv6Literal(host); ok {
		target = "[" + inner + "]"
	} else if err := validateHostPart("host", host); err != nil {
		return "", err
	}
	if port != "" {
		if err := validateHostPart("port", port); err != nil {
			return "", err
		}
	}
	for _, lu := range lus {
		if err := validateHostPart("lu", lu); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	b.WriteString(flags.Prefix())
	if len(lus) > 0 {
		b.WriteString(strings.Join(lus, ","))
		b.WriteByte('@')
	}
	b.WriteString(target)
	if port != "" {
		b.WriteByte(':')
		b.WriteString(port)
	}
	out := b.String()
	if len(lus) > 0 || flags != NoFlags || needsQuoting(out) {
		return `"` + out + `"`, nil
	}
	return out, nil
}

func ipv6Literal(host string) (string, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if !strings.Contains(inner, ":") {
		return "", false
	}
	// IPv4-mapped forms such as ::ffff:10.0.0.1 still need brackets.
	if net.ParseIP(inner) == nil {
		return "", false
	}
	return inner, true
}

func validateHostPart(kind, value string) error {
	if value == "" {
		return fmt.Errorf("%w: empty %s", schema.ErrInvalidArgument, kind)
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		case r > unicode.MaxASCII && unicode.IsLetter(r):
		default:
			return fmt.Errorf("%w: invalid character %q in %s %q", schema.ErrInvalidArgument, r, kind, value)
		}
	}
	return nil
}
