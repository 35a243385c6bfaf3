package utils

import (
	ua "github.com/mssola/user_agent"
)

// ClientOS extracts the operating system (with version when present)
// from a User-Agent string, for the payment audit trail
func ClientOS(userAgent string) string {
	if userAgent == "" || userAgent == "Unknown" {
		return "Unknown"
	}

	parser := ua.New(userAgent)
	osInfo := parser.OSInfo()
	if osInfo.Name == "" {
		return "Unknown"
	}
	if osInfo.Version != "" {
		return osInfo.Name + " " + osInfo.Version
	}
	return osInfo.Name
}
