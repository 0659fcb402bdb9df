package session

import "github.com/mileusna/useragent"

// DeviceLabel summarises a User-Agent header as "Browser on OS (type)".
func DeviceLabel(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}

	ua := useragent.Parse(userAgent)

	browser := ua.Name
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS
	if os == "" {
		os = "Unknown OS"
	}

	deviceType := "desktop"
	switch {
	case ua.Bot:
		deviceType = "bot"
	case ua.Mobile:
		deviceType = "mobile"
	case ua.Tablet:
		deviceType = "tablet"
	}

	return browser + " on " + os + " (" + deviceType + ")"
}
