package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pkt.systems/x3270script/screen"
)

func newScreenCmd(opts *globalOptions) *cobra.Command {
	var colored bool
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Print the current screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx)
			buf, res, err := s.ReadBuffer(ctx, screen.ModeASCII)
			if err := check(res, err); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if colored {
				return renderColor(out, buf)
			}
			dump, err := buf.Dump()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, dump)
			return err
		},
	}
	cmd.Flags().BoolVar(&colored, "color", false, "render field colors and highlighting")
	return cmd
}

var colorAttributes = map[screen.Color]color.Attribute{
	screen.ColorNeutralBlack:  color.FgBlack,
	screen.ColorBlue:          color.FgBlue,
	screen.ColorRed:           color.FgRed,
	screen.ColorPink:          color.FgMagenta,
	screen.ColorGreen:         color.FgGreen,
	screen.ColorTurquoise:     color.FgCyan,
	screen.ColorYellow:        color.FgYellow,
	screen.ColorNeutralWhite:  color.FgWhite,
	screen.ColorBlack:         color.FgBlack,
	screen.ColorDeepBlue:      color.FgHiBlue,
	screen.ColorOrange:        color.FgHiYellow,
	screen.ColorPurple:        color.FgHiMagenta,
	screen.ColorPaleGreen:     color.FgHiGreen,
	screen.ColorPaleTurquoise: color.FgHiCyan,
	screen.ColorGrey:          color.FgHiBlack,
	screen.ColorWhite:         color.FgHiWhite,
}

// styleFor maps cell attributes to terminal attributes. Cells without an
// explicit color use the base 3270 colors: protection and intensity pick
// one of blue, white, green or red.
func styleFor(attrs screen.FieldAttributes) []color.Attribute {
	var style []color.Attribute
	if fg, ok := colorAttributes[attrs.Foreground]; ok {
		style = append(style, fg)
	} else {
		high := attrs.Intensity() == screen.IntensityHigh || attrs.Intensity() == screen.IntensitySelectable
		switch {
		case attrs.Protected() && high:
			style = append(style, color.FgHiWhite)
		case attrs.Protected():
			style = append(style, color.FgBlue)
		case high:
			style = append(style, color.FgRed)
		default:
			style = append(style, color.FgGreen)
		}
	}
	switch attrs.Highlighting {
	case screen.HighlightBlink:
		style = append(style, color.BlinkSlow)
	case screen.HighlightReverse:
		style = append(style, color.ReverseVideo)
	case screen.HighlightUnderscore:
		style = append(style, color.Underline)
	case screen.HighlightIntensify:
		style = append(style, color.Bold)
	}
	return style
}

func renderColor(out io.Writer, buf *screen.Buffer) error {
	origin := buf.Origin()
	for r := 0; r < buf.Rows(); r++ {
		var line strings.Builder
		var run strings.Builder
		var runStyle screen.FieldAttributes
		flush := func() {
			if run.Len() == 0 {
				return
			}
			c := color.New(styleFor(runStyle)...)
			c.EnableColor()
			line.WriteString(c.Sprint(run.String()))
			run.Reset()
		}
		for col := 0; col < buf.Columns(); col++ {
			p, err := buf.Position(r+origin, col+origin)
			if err != nil {
				return err
			}
			attrs := p.Attributes()
			if p.Type() == screen.PositionFieldAttribute {
				attrs = screen.DefaultAttributes()
			}
			if run.Len() > 0 && attrs != runStyle {
				flush()
			}
			runStyle = attrs
			run.WriteString(p.Display())
		}
		flush()
		if _, err := fmt.Fprintln(out, line.String()); err != nil {
			return err
		}
	}
	return nil
}
