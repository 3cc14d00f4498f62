package enrich

import (
	"strings"

	"github.com/mssola/useragent"

	"github.com/shortenlabs/shortener/cmn"
)

// ParseUA turns a User-Agent header into UaInfo. Pure function of
// its input: a malformed or empty header yields a zero-ish UaInfo
// (DeviceUnknown, empty OS/Browser), never an error.
func ParseUA(header string) cmn.UaInfo {
	if header == "" {
		return cmn.UaInfo{DeviceType: cmn.DeviceUnknown}
	}

	ua := useragent.New(header)
	browser, _ := ua.Browser()
	return cmn.UaInfo{
		DeviceType: deviceType(ua, header),
		OS:         ua.OSInfo().Name,
		Browser:    browser,
	}
}

// deviceType classifies into {pc, mobile, tablet, unknown}. The parser
// itself only distinguishes mobile/bot, so tablets are picked out of the
// raw header first (the markers every major tablet UA carries).
func deviceType(ua *useragent.UserAgent, header string) cmn.DeviceType {
	switch {
	case strings.Contains(header, "iPad") || strings.Contains(header, "Tablet"):
		return cmn.DeviceTablet
	case ua.Mobile():
		return cmn.DeviceMobile
	case ua.Bot():
		return cmn.DeviceUnknown
	default:
		return cmn.DevicePC
	}
}
