package config

// Sampling temperatures per persona role. Moderating roles stay cooler so
// their interventions remain predictable; creative roles run warmer.
var roleTemperatures = map[string]float64{
	"moderator": 0.5,
	"boss":      0.5,
	"reviewer":  0.6,
	"analyst":   0.6,
	"engineer":  0.7,
	"designer":  0.9,
	"writer":    0.9,
}

// DefaultTemperature applies to roles without a specific entry.
const DefaultTemperature = 0.7

// RoleTemperature returns the sampling temperature for a persona role.
func RoleTemperature(role string) float64 {
	if t, ok := roleTemperatures[role]; ok {
		return t
	}
	return DefaultTemperature
}
