package node

import "time"

// Config captures everything Node.New needs up front: address, security
// flags, and timing intervals. Defaults match the reference values in
// spec.md section 9.
type Config struct {
	IP   string
	Port uint16

	StabilizeInterval        time.Duration
	FixFingersInterval       time.Duration
	CheckPredecessorInterval time.Duration
	RPCTimeout               time.Duration
	PingTimeout              time.Duration

	EnableIDVerification   bool
	EnableSubnetDiversity  bool
	EnableRateLimiting     bool
	EnableLookupValidation bool
	EnablePeerAge          bool
	EnableHoneypot         bool

	SubnetMaxPerSubnet     int
	RateLimitMaxTokens     int
	RateLimitRefillRate    float64
	LookupValidationChecks int
	PeerAgeMinAge          time.Duration
	HoneypotCount          int
}

// DefaultConfig returns a Config bound to ip:port with every security
// module disabled and the reference timing values from spec.md section 9.
func DefaultConfig(ip string, port uint16) Config {
	return Config{
		IP:   ip,
		Port: port,

		StabilizeInterval:        time.Second,
		FixFingersInterval:       500 * time.Millisecond,
		CheckPredecessorInterval: 2 * time.Second,
		RPCTimeout:               5 * time.Second,
		PingTimeout:              2 * time.Second,

		SubnetMaxPerSubnet:     2,
		RateLimitMaxTokens:     50,
		RateLimitRefillRate:    10.0,
		LookupValidationChecks: 1,
		PeerAgeMinAge:          30 * time.Second,
		HoneypotCount:          10,
	}
}
