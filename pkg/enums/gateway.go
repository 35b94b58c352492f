package enums

import (
	"fmt"
	"strings"
)

// Gateway names a payment gateway integration.
type Gateway string

const (
	GatewayStripe Gateway = "stripe"
	GatewaySquare Gateway = "square"
)

var validGateways = []Gateway{GatewayStripe, GatewaySquare}

// String implements fmt.Stringer.
func (g Gateway) String() string {
	return string(g)
}

// IsValid reports whether the value is a known Gateway.
func (g Gateway) IsValid() bool {
	for _, candidate := range validGateways {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGateway converts raw input into a Gateway, ignoring case and surrounding space.
func ParseGateway(value string) (Gateway, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validGateways {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway %q", value)
}
