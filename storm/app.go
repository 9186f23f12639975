package storm

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
)

// App is a Storm application namespace code (StormApp). Every uint16 is a
// valid App; Class tells which range it belongs to.
//
// Codes below 0x8000 are reserved for registered standard applications, of
// which only the constants below are assigned so far. Codes with bit 0x8000
// set form the vendor range and can be used without registration.
type App uint16

// Registered application codes.
const (
	AppSystem       App = 0x0000
	AppChat         App = 0x0001
	AppFileTransfer App = 0x0002
	AppStorage      App = 0x0003
	AppSearch       App = 0x0004
	AppRGBContracts App = 0x0010
	AppRGBTransfers App = 0x0011
)

// VendorMask marks the vendor code range.
const VendorMask uint16 = 0x8000

// AppClass partitions the code space.
type AppClass int

const (
	// ClassStandard is a registered standard application.
	ClassStandard AppClass = iota
	// ClassFuture is reserved for standard applications not yet assigned.
	ClassFuture
	// ClassVendor is free for unregistered use.
	ClassVendor
)

// String returns a human-readable representation of the class.
func (c AppClass) String() string {
	switch c {
	case ClassStandard:
		return "standard"
	case ClassFuture:
		return "future"
	case ClassVendor:
		return "vendor"
	default:
		return "unknown"
	}
}

var appNames = map[App]string{
	AppSystem:       "system",
	AppChat:         "chat",
	AppFileTransfer: "file-transfer",
	AppStorage:      "storage",
	AppSearch:       "search",
	AppRGBContracts: "rgb-contracts",
	AppRGBTransfers: "rgb-transfers",
}

// AppFromCode converts a raw code. It never fails.
func AppFromCode(code uint16) App { return App(code) }

// Code returns the raw 16-bit code.
func (a App) Code() uint16 { return uint16(a) }

// Class reports which range the code belongs to.
func (a App) Class() AppClass {
	if uint16(a)&VendorMask != 0 {
		return ClassVendor
	}
	if _, ok := appNames[a]; ok {
		return ClassStandard
	}
	return ClassFuture
}

// String returns the registered name, or future(0x....)/vendor(0x....).
func (a App) String() string {
	if name, ok := appNames[a]; ok {
		return name
	}
	return fmt.Sprintf("%s(0x%04x)", a.Class(), uint16(a))
}

// Compare orders applications by code.
func (a App) Compare(b App) int { return cmp.Compare(a, b) }

// MarshalText implements encoding.TextMarshaler.
func (a App) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *App) UnmarshalText(text []byte) error {
	app, err := ParseApp(string(text))
	if err != nil {
		return err
	}
	*a = app
	return nil
}

// ParseApp accepts a registered name ("storage"), the display forms
// "future(0x0005)" and "vendor(0x8001)", or a bare decimal/0x-prefixed code.
func ParseApp(s string) (App, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for app, name := range appNames {
		if name == s {
			return app, nil
		}
	}

	for _, class := range []AppClass{ClassFuture, ClassVendor} {
		prefix := class.String() + "("
		if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, ")") {
			app, err := parseAppCode(s[len(prefix) : len(s)-1])
			if err != nil {
				return 0, err
			}
			if app.Class() != class {
				return 0, fmt.Errorf("%w: %q is not in the %s range", ErrInvalidApp, s, class)
			}
			return app, nil
		}
	}

	return parseAppCode(s)
}

func parseAppCode(s string) (App, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidApp, s)
	}
	return App(v), nil
}

// VendorApp derives a vendor-range code from an application or developer
// domain name: the first two bytes of SHA256(name) with the vendor bit set.
func VendorApp(name string) App {
	sum := bsvhash.Sha256([]byte(name))
	return App(binary.BigEndian.Uint16(sum[:2]) | VendorMask)
}
