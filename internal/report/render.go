package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"firestige.xyz/pcaplens/internal/core"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatProto = "proto"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML, FormatProto}
}

// ContentType returns the HTTP media type of an output format.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatProto:
		return "application/x-protobuf"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render writes rep to w in the given format.
func Render(w io.Writer, rep *AnalysisReport, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case FormatProto:
		b, err := MarshalProto(rep)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case FormatText, "":
		return renderText(w, rep)
	default:
		return fmt.Errorf("%w: %q", core.ErrUnknownFormat, format)
	}
}

// ToStruct converts rep into a protobuf Struct keyed like the JSON form.
func ToStruct(rep *AnalysisReport) (*structpb.Struct, error) {
	b, err := json.Marshal(rep)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// MarshalProto encodes rep as a serialized google.protobuf.Struct.
func MarshalProto(rep *AnalysisReport) ([]byte, error) {
	st, err := ToStruct(rep)
	if err != nil {
		return nil, fmt.Errorf("convert report: %w", err)
	}
	return proto.Marshal(st)
}

type textStyles struct {
	title    lipgloss.Style
	section  lipgloss.Style
	dim      lipgloss.Style
	severity map[core.Severity]lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7")),
		section: r.NewStyle().Bold(true).Underline(true),
		dim:     r.NewStyle().Foreground(lipgloss.Color("#565f89")),
		severity: map[core.Severity]lipgloss.Style{
			core.SeverityCritical: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#f7768e")),
			core.SeverityWarn:     r.NewStyle().Foreground(lipgloss.Color("#e0af68")),
			core.SeverityInfo:     r.NewStyle().Foreground(lipgloss.Color("#7dcfff")),
		},
	}
}

func renderText(w io.Writer, rep *AnalysisReport) error {
	st := newTextStyles(w)
	var b strings.Builder

	fmt.Fprintln(&b, st.title.Render("Capture Analysis"))
	fmt.Fprintf(&b, "Packets:   %s\n", humanize.Comma(int64(rep.PacketCount)))
	fmt.Fprintf(&b, "Duration:  %.3fs\n", rep.DurationSec)
	if rep.Capture.LinkType != "" {
		fmt.Fprintf(&b, "Link type: %s (snaplen %d)\n", rep.Capture.LinkType, rep.Capture.SnapLen)
	}
	if rep.Capture.Truncated {
		fmt.Fprintln(&b, st.severity[core.SeverityWarn].Render("Capture ends with a truncated record"))
	}

	fmt.Fprintf(&b, "\n%s\n", st.section.Render("Issues"))
	if len(rep.Issues) == 0 {
		fmt.Fprintln(&b, st.dim.Render("  none"))
	}
	for _, is := range rep.Issues {
		sev := st.severity[is.Severity].Render(fmt.Sprintf("%-8s", strings.ToUpper(string(is.Severity))))
		fmt.Fprintf(&b, "  %s %s\n", sev, is.Title)
		fmt.Fprintf(&b, "           %s\n", is.Description)
		if is.Timestamp != nil {
			fmt.Fprintf(&b, "           %s\n", st.dim.Render("first seen "+is.Timestamp.UTC().Format("2006-01-02 15:04:05.000000")))
		}
	}

	fmt.Fprintf(&b, "\n%s\n", st.section.Render("Top Conversations"))
	if len(rep.TopConversations) == 0 {
		fmt.Fprintln(&b, st.dim.Render("  none"))
	}
	for _, c := range rep.TopConversations {
		fmt.Fprintf(&b, "  %-39s <-> %-39s %-10s %10s %8s pkts\n",
			c.Src, c.Dst, c.Protocol, humanize.Bytes(c.Bytes), humanize.Comma(int64(c.Packets)))
	}

	fmt.Fprintf(&b, "\n%s\n", st.section.Render("Top Sources"))
	if len(rep.TopSources) == 0 {
		fmt.Fprintln(&b, st.dim.Render("  none"))
	}
	for _, s := range rep.TopSources {
		fmt.Fprintf(&b, "  %-39s %8s pkts %10s\n", s.Address, humanize.Comma(int64(s.Packets)), humanize.Bytes(s.Bytes))
	}

	fmt.Fprintf(&b, "\n%s\n", st.section.Render("Protocols"))
	labels := make([]string, 0, len(rep.ProtocolDistribution))
	for l := range rep.ProtocolDistribution {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	for _, l := range labels {
		fmt.Fprintf(&b, "  %-18s %s\n", l, humanize.Comma(int64(rep.ProtocolDistribution[l])))
	}

	fmt.Fprintf(&b, "\n%s\n", st.section.Render("TCP"))
	fmt.Fprintf(&b, "  Retransmissions: %d\n", rep.TCP.Retransmissions)
	fmt.Fprintf(&b, "  Resets:          %d\n", rep.TCP.Resets)
	fmt.Fprintf(&b, "  Zero window:     %d\n", rep.TCP.ZeroWindow)
	if rep.TCP.AvgRTTMs != nil {
		fmt.Fprintf(&b, "  Average RTT:     %.3f ms\n", *rep.TCP.AvgRTTMs)
	} else {
		fmt.Fprintf(&b, "  Average RTT:     %s\n", st.dim.Render("n/a"))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
