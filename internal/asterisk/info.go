package asterisk

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/plexsphere/plexmon/internal/plugin"
	"github.com/plexsphere/plexmon/internal/trunk"
)

// Commander runs Manager Interface CLI commands.
type Commander interface {
	Command(ctx context.Context, command string) (string, error)
}

// Info reads PBX statistics through a Commander.
type Info struct {
	cmd Commander
}

// NewInfo creates an Info reading through cmd.
func NewInfo(cmd Commander) *Info {
	return &Info{cmd: cmd}
}

// Peer states reported by PeerStats.
const (
	PeerOnline      = "online"
	PeerUnmonitored = "unmonitored"
	PeerUnreachable = "unreachable"
	PeerLagged      = "lagged"
	PeerUnknown     = "unknown"
)

// PeerStates lists the peer states in graph order.
var PeerStates = []string{PeerOnline, PeerUnmonitored, PeerUnreachable, PeerLagged, PeerUnknown}

var (
	activeCallsRe    = regexp.MustCompile(`^(\d+)\s+active calls?\b`)
	callsProcessedRe = regexp.MustCompile(`^(\d+)\s+calls? processed\b`)
	peerStatusRe     = regexp.MustCompile(`(?i)\b(OK|UNREACHABLE|LAGGED|Unmonitored|UNKNOWN)\b(\s*\(\d+\s*ms\))?\s*$`)
	peerSummaryRe    = regexp.MustCompile(`(?i)^\d+\s+(sip|iax2)\s+peers\b`)
	voipSummaryRe    = regexp.MustCompile(`(?i)^\d+\s+active\s+(sip|iax2?)\s+(channel|dialog|call)`)
	meetmeRoomRe     = regexp.MustCompile(`^(\d+)\s+(\d+)\s`)
	voicemailCountRe = regexp.MustCompile(`\s(\d+)\s*$`)
)

// command runs a CLI command. Output announcing an unknown command means the
// module behind it is not loaded; it is reported as plugin.ErrUnavailable.
func (i *Info) command(ctx context.Context, command string) (string, error) {
	out, err := i.cmd.Command(ctx, command)
	if err != nil {
		return "", err
	}
	if strings.Contains(strings.ToLower(out), "no such command") {
		return "", fmt.Errorf("asterisk: %q: %w", command, plugin.ErrUnavailable)
	}
	return out, nil
}

// ChannelStats reports active_calls and calls_processed, the number of active
// channels of each of types, and mix: the number of DAHDI channels bridged to
// a channel of another type.
func (i *Info) ChannelStats(ctx context.Context, types []string) (plugin.Stats, error) {
	summary, err := i.command(ctx, "core show channels")
	if err != nil {
		return nil, err
	}
	concise, err := i.command(ctx, "core show channels concise")
	if err != nil {
		return nil, err
	}
	stats := parseChannelSummary(summary)
	for k, v := range parseConciseChannels(concise, types) {
		stats[k] = v
	}
	return stats, nil
}

// PeerStats reports the number of peers of proto ("sip" or "iax2") in each
// of PeerStates.
func (i *Info) PeerStats(ctx context.Context, proto string) (plugin.Stats, error) {
	out, err := i.command(ctx, proto+" show peers")
	if err != nil {
		return nil, err
	}
	return parsePeers(out), nil
}

// VoIPChannelStats reports the number of active channels of proto per codec.
// Channels of unlisted codecs are counted as "other".
func (i *Info) VoIPChannelStats(ctx context.Context, proto string, codecs []string) (plugin.Stats, error) {
	out, err := i.command(ctx, proto+" show channels")
	if err != nil {
		return nil, err
	}
	return parseVoIPChannels(out, codecs), nil
}

// ConferenceStats reports active_conferences and conference_users of MeetMe.
func (i *Info) ConferenceStats(ctx context.Context) (plugin.Stats, error) {
	out, err := i.command(ctx, "meetme list")
	if err != nil {
		return nil, err
	}
	return parseMeetme(out), nil
}

// VoicemailStats reports accounts, avg_messages, max_messages and
// total_messages over the voicemail accounts.
func (i *Info) VoicemailStats(ctx context.Context) (plugin.Stats, error) {
	out, err := i.command(ctx, "voicemail show users")
	if err != nil {
		return nil, err
	}
	return parseVoicemail(out), nil
}

// TrunkStats reports the number of active channels per trunk label.
func (i *Info) TrunkStats(ctx context.Context, matchers []trunk.Matcher) (plugin.Stats, error) {
	out, err := i.command(ctx, "core show channels concise")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range lines(out) {
		fields := strings.Split(line, "!")
		if len(fields) > 1 {
			names = append(names, fields[0])
		}
	}
	stats := make(plugin.Stats, len(matchers))
	for label, n := range trunk.Tally(matchers, names) {
		stats[label] = float64(n)
	}
	return stats, nil
}

func parseChannelSummary(out string) plugin.Stats {
	stats := plugin.Stats{}
	for _, line := range lines(out) {
		if m := activeCallsRe.FindStringSubmatch(line); m != nil {
			stats["active_calls"] = atof(m[1])
		} else if m := callsProcessedRe.FindStringSubmatch(line); m != nil {
			stats["calls_processed"] = atof(m[1])
		}
	}
	return stats
}

// concise output fields are separated by "!"; the bridged channel is field 12.
const bridgedField = 12

func parseConciseChannels(out string, types []string) plugin.Stats {
	stats := make(plugin.Stats, len(types)+1)
	for _, t := range types {
		stats[t] = 0
	}
	stats[mixChannel] = 0
	for _, line := range lines(out) {
		fields := strings.Split(line, "!")
		if len(fields) < 2 {
			continue
		}
		typ := channelType(fields[0])
		if _, ok := stats[typ]; ok && typ != mixChannel {
			stats[typ]++
		}
		if typ == "dahdi" && len(fields) > bridgedField {
			if bridged := channelType(fields[bridgedField]); bridged != "" && bridged != "dahdi" {
				stats[mixChannel]++
			}
		}
	}
	return stats
}

// channelType returns the lower-case technology of a channel name, with Zap
// folded into DAHDI. "SIP/100-0001" yields "sip".
func channelType(name string) string {
	typ, _, ok := strings.Cut(name, "/")
	if !ok {
		return ""
	}
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "zap" {
		typ = "dahdi"
	}
	return typ
}

func parsePeers(out string) plugin.Stats {
	stats := make(plugin.Stats, len(PeerStates))
	for _, s := range PeerStates {
		stats[s] = 0
	}
	for _, line := range lines(out) {
		if peerSummaryRe.MatchString(line) || strings.HasPrefix(line, "Name/") {
			continue
		}
		m := peerStatusRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch strings.ToLower(m[1]) {
		case "ok":
			stats[PeerOnline]++
		case "unreachable":
			stats[PeerUnreachable]++
		case "lagged":
			stats[PeerLagged]++
		case "unmonitored":
			stats[PeerUnmonitored]++
		default:
			stats[PeerUnknown]++
		}
	}
	return stats
}

// parseVoIPChannels assigns each channel line to the first listed codec found
// among its columns. Legacy servers print the format as "0x4 (ulaw)".
func parseVoIPChannels(out string, codecs []string) plugin.Stats {
	listed := make(map[string]bool, len(codecs))
	stats := make(plugin.Stats, len(codecs)+1)
	for _, c := range codecs {
		listed[c] = true
		stats[c] = 0
	}
	stats[otherCodec] = 0
	for _, line := range lines(out) {
		if isVoIPHeader(line) || voipSummaryRe.MatchString(line) {
			continue
		}
		codec := otherCodec
		for _, col := range strings.Fields(line) {
			col = strings.ToLower(strings.Trim(col, "()"))
			if listed[col] {
				codec = col
				break
			}
		}
		stats[codec]++
	}
	return stats
}

// isVoIPHeader matches the column headers of "sip show channels"
// ("Peer User/ANR ...") and "iax2 show channels" ("Channel Peer ...").
func isVoIPHeader(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "Peer ") || strings.HasPrefix(line, "Channel ")
}

func parseMeetme(out string) plugin.Stats {
	stats := plugin.Stats{"active_conferences": 0, "conference_users": 0}
	for _, line := range lines(out) {
		m := meetmeRoomRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		stats["active_conferences"]++
		stats["conference_users"] += atof(m[2])
	}
	return stats
}

func parseVoicemail(out string) plugin.Stats {
	var accounts, total, maxMsgs float64
	for _, line := range lines(out) {
		if strings.HasPrefix(line, "Context") || strings.Contains(line, "voicemail users configured") {
			continue
		}
		m := voicemailCountRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n := atof(m[1])
		accounts++
		total += n
		maxMsgs = max(maxMsgs, n)
	}
	avg := 0.0
	if accounts > 0 {
		avg = total / accounts
	}
	return plugin.Stats{
		"accounts":       accounts,
		"avg_messages":   avg,
		"max_messages":   maxMsgs,
		"total_messages": total,
	}
}

// lines splits command output into non-blank lines.
func lines(out string) []string {
	var res []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r ")
		if strings.TrimSpace(line) != "" {
			res = append(res, line)
		}
	}
	return res
}

func atof(s string) float64 {
	n, _ := strconv.ParseFloat(s, 64)
	return n
}
