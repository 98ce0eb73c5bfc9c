package screen

import "fmt"

// Extended attribute type codes as they appear in SF and SA orders.
const (
	attrField        = 0xc0
	attrHighlighting = 0x41
	attrForeground   = 0x42
	attrCharset      = 0x43
	attrBackground   = 0x45
	attrTransparency = 0x46
	attrValidation   = 0xc1
	attrOutlining    = 0xc2
	attrInputControl = 0xfe
)

// 3270 field attribute byte bits.
const (
	faProtect      = 0x20
	faNumeric      = 0x10
	faIntensity    = 0x0c
	faModified     = 0x01
	faAutoSkip     = faProtect | faNumeric
	faFlagsDefault = 0x00
)

// Intensity is the display intensity encoded in a field attribute.
type Intensity byte

const (
	IntensityNormal     Intensity = 0x00
	IntensitySelectable Intensity = 0x04
	IntensityHigh       Intensity = 0x08
	IntensityZero       Intensity = 0x0c
)

func (i Intensity) String() string {
	switch i {
	case IntensityNormal:
		return "normal"
	case IntensitySelectable:
		return "selectable"
	case IntensityHigh:
		return "high"
	case IntensityZero:
		return "zero"
	}
	return fmt.Sprintf("intensity(%#02x)", byte(i))
}

// Color is a 3270 extended color code.
type Color byte

const (
	ColorDefault       Color = 0x00
	ColorNeutralBlack  Color = 0xf0
	ColorBlue          Color = 0xf1
	ColorRed           Color = 0xf2
	ColorPink          Color = 0xf3
	ColorGreen         Color = 0xf4
	ColorTurquoise     Color = 0xf5
	ColorYellow        Color = 0xf6
	ColorNeutralWhite  Color = 0xf7
	ColorBlack         Color = 0xf8
	ColorDeepBlue      Color = 0xf9
	ColorOrange        Color = 0xfa
	ColorPurple        Color = 0xfb
	ColorPaleGreen     Color = 0xfc
	ColorPaleTurquoise Color = 0xfd
	ColorGrey          Color = 0xfe
	ColorWhite         Color = 0xff
)

var colorNames = map[Color]string{
	ColorDefault:       "default",
	ColorNeutralBlack:  "neutralBlack",
	ColorBlue:          "blue",
	ColorRed:           "red",
	ColorPink:          "pink",
	ColorGreen:         "green",
	ColorTurquoise:     "turquoise",
	ColorYellow:        "yellow",
	ColorNeutralWhite:  "neutralWhite",
	ColorBlack:         "black",
	ColorDeepBlue:      "deepBlue",
	ColorOrange:        "orange",
	ColorPurple:        "purple",
	ColorPaleGreen:     "paleGreen",
	ColorPaleTurquoise: "paleTurquoise",
	ColorGrey:          "grey",
	ColorWhite:         "white",
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("color(%#02x)", byte(c))
}

// Highlighting is the extended highlighting attribute.
type Highlighting byte

const (
	HighlightDefault    Highlighting = 0x00
	HighlightNormal     Highlighting = 0xf0
	HighlightBlink      Highlighting = 0xf1
	HighlightReverse    Highlighting = 0xf2
	HighlightUnderscore Highlighting = 0xf4
	HighlightIntensify  Highlighting = 0xf8
)

func (h Highlighting) String() string {
	switch h {
	case HighlightDefault:
		return "default"
	case HighlightNormal:
		return "normal"
	case HighlightBlink:
		return "blink"
	case HighlightReverse:
		return "reverse"
	case HighlightUnderscore:
		return "underscore"
	case HighlightIntensify:
		return "intensify"
	}
	return fmt.Sprintf("highlight(%#02x)", byte(h))
}

// CharacterSet is the extended character set attribute.
type CharacterSet byte

const (
	CharsetDefault CharacterSet = 0x00
	// CharsetAPL selects the APL / line-drawing set.
	CharsetAPL  CharacterSet = 0xf1
	CharsetDBCS CharacterSet = 0xf8
)

// Transparency is the extended background transparency attribute.
type Transparency byte

const (
	TransparencyDefault Transparency = 0x00
	TransparencyOr      Transparency = 0xf1
	TransparencyXor     Transparency = 0xf2
	TransparencyOpaque  Transparency = 0xff
)

// Validation holds the field validation bits.
type Validation byte

const (
	ValidationTrigger        Validation = 0x01
	ValidationMandatoryEntry Validation = 0x02
	ValidationMandatoryFill  Validation = 0x04
)

// Outlining holds the field outlining bits.
type Outlining byte

const (
	OutlineUnderline Outlining = 0x01
	OutlineRight     Outlining = 0x02
	OutlineOverline  Outlining = 0x04
	OutlineLeft      Outlining = 0x08
)

// FieldAttributes is the resolved attribute state of one cell.
type FieldAttributes struct {
	// Flags is the raw 3270 field attribute byte.
	Flags        byte
	Foreground   Color
	Background   Color
	CharacterSet CharacterSet
	Highlighting Highlighting
	Outlining    Outlining
	Validation   Validation
	Transparency Transparency
	InputControl bool
}

// DefaultAttributes returns the attributes of a cell outside any field.
func DefaultAttributes() FieldAttributes {
	return FieldAttributes{Flags: faFlagsDefault}
}

// Protected reports whether the field rejects input.
func (a FieldAttributes) Protected() bool { return a.Flags&faProtect != 0 }

// Numeric reports whether the field accepts only numeric input.
func (a FieldAttributes) Numeric() bool { return a.Flags&faNumeric != 0 }

// AutoSkip reports a protected numeric field, which the cursor skips.
func (a FieldAttributes) AutoSkip() bool { return a.Flags&faAutoSkip == faAutoSkip }

// Modified reports the modified data tag.
func (a FieldAttributes) Modified() bool { return a.Flags&faModified != 0 }

// Intensity returns the display intensity.
func (a FieldAttributes) Intensity() Intensity { return Intensity(a.Flags & faIntensity) }

// Hidden reports zero intensity, used for non-display (password) fields.
func (a FieldAttributes) Hidden() bool { return a.Intensity() == IntensityZero }

// apply sets one attribute from an order's type=value pair. Unknown
// types are ignored and reported as false.
func (a *FieldAttributes) apply(kind, value byte) bool {
	switch kind {
	case attrField:
		a.Flags = value
	case attrHighlighting:
		a.Highlighting = Highlighting(value)
	case attrForeground:
		a.Foreground = Color(value)
	case attrCharset:
		a.CharacterSet = CharacterSet(value)
	case attrBackground:
		a.Background = Color(value)
	case attrTransparency:
		a.Transparency = Transparency(value)
	case attrValidation:
		a.Validation = Validation(value)
	case attrOutlining:
		a.Outlining = Outlining(value)
	case attrInputControl:
		a.InputControl = value == 0x01
	default:
		return false
	}
	return true
}
