package core

import (
	"net/netip"
	"strconv"
	"strings"
)

// FieldKind discriminates the typed values produced by accessor tables.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldNumber
	FieldIP
)

// FieldValue is the normalized value of a correlation field. Strings
// compare case-insensitively, numbers exactly, IPs byte-exact (or by
// prefix when subnet matching is enabled).
type FieldValue struct {
	Kind FieldKind
	Str  string
	Num  float64
	IP   netip.Addr
}

// StringValue builds a string-kinded FieldValue; empty strings are treated
// as absent by the accessor tables.
func StringValue(s string) FieldValue { return FieldValue{Kind: FieldString, Str: s} }

// NumberValue builds a numeric FieldValue.
func NumberValue(n float64) FieldValue { return FieldValue{Kind: FieldNumber, Num: n} }

// IPValue builds an IP-kinded FieldValue.
func IPValue(a netip.Addr) FieldValue { return FieldValue{Kind: FieldIP, IP: a} }

// MatchOptions tunes FieldValue equality. Zero value means exact matching.
type MatchOptions struct {
	// IncludeSubnets switches IP comparison from byte-exact to a prefix
	// compare over PrefixBits leading bits.
	IncludeSubnets bool
	PrefixBits     int
}

// Equal reports whether two field values match under the given options.
// Values of different kinds never match.
func (v FieldValue) Equal(other FieldValue, opts *MatchOptions) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case FieldString:
		return strings.EqualFold(v.Str, other.Str)
	case FieldNumber:
		return v.Num == other.Num
	case FieldIP:
		if opts != nil && opts.IncludeSubnets && opts.PrefixBits > 0 {
			a, errA := v.IP.Prefix(opts.PrefixBits)
			b, errB := other.IP.Prefix(opts.PrefixBits)
			if errA != nil || errB != nil {
				return v.IP == other.IP
			}
			return a == b
		}
		return v.IP == other.IP
	}
	return false
}

// Key returns a canonical string form used for set-membership during
// correlation. Two values that Equal under exact matching share a key.
func (v FieldValue) Key() string {
	switch v.Kind {
	case FieldString:
		return "s:" + strings.ToLower(v.Str)
	case FieldNumber:
		return "n:" + strconv.FormatFloat(v.Num, 'g', -1, 64)
	case FieldIP:
		return "ip:" + v.IP.String()
	}
	return ""
}

type flowAccessor func(*Flow) (FieldValue, bool)
type alarmAccessor func(*Alarm) (FieldValue, bool)
type ruleAccessor func(*Rule) (FieldValue, bool)
type deviceAccessor func(*Device) (FieldValue, bool)
type targetListAccessor func(*TargetList) (FieldValue, bool)

func ipField(s string) (FieldValue, bool) {
	addr, ok := parseIP(s)
	if !ok {
		return FieldValue{}, false
	}
	return IPValue(addr), true
}

func strField(s string) (FieldValue, bool) {
	if s == "" {
		return FieldValue{}, false
	}
	return StringValue(s), true
}

var flowAccessors = map[string]flowAccessor{
	"source_ip": func(f *Flow) (FieldValue, bool) {
		if f.Source == nil {
			return FieldValue{}, false
		}
		return ipField(f.Source.IP)
	},
	"destination_ip": func(f *Flow) (FieldValue, bool) {
		if f.Destination == nil {
			return FieldValue{}, false
		}
		return ipField(f.Destination.IP)
	},
	"device_ip": func(f *Flow) (FieldValue, bool) {
		if f.Device == nil {
			return FieldValue{}, false
		}
		return ipField(f.Device.IP)
	},
	"device_name": func(f *Flow) (FieldValue, bool) {
		if f.Device == nil {
			return FieldValue{}, false
		}
		return strField(f.Device.Name)
	},
	"protocol":  func(f *Flow) (FieldValue, bool) { return strField(f.Protocol) },
	"direction": func(f *Flow) (FieldValue, bool) { return strField(f.Direction) },
	"port": func(f *Flow) (FieldValue, bool) {
		if f.Destination == nil || f.Destination.Port == 0 {
			return FieldValue{}, false
		}
		return NumberValue(float64(f.Destination.Port)), true
	},
}

var alarmAccessors = map[string]alarmAccessor{
	// Alarms attribute their source to the triggering device; remote_ip
	// exposes the far end separately.
	"source_ip": func(a *Alarm) (FieldValue, bool) {
		if a.Device == nil {
			return FieldValue{}, false
		}
		return ipField(a.Device.IP)
	},
	"remote_ip": func(a *Alarm) (FieldValue, bool) {
		if a.Remote == nil {
			return FieldValue{}, false
		}
		return ipField(a.Remote.IP)
	},
	"device_ip": func(a *Alarm) (FieldValue, bool) {
		if a.Device == nil {
			return FieldValue{}, false
		}
		return ipField(a.Device.IP)
	},
	"device_name": func(a *Alarm) (FieldValue, bool) {
		if a.Device == nil {
			return FieldValue{}, false
		}
		return strField(a.Device.Name)
	},
	"protocol": func(a *Alarm) (FieldValue, bool) { return strField(a.Protocol) },
	"severity": func(a *Alarm) (FieldValue, bool) { return strField(a.Severity) },
	"type":     func(a *Alarm) (FieldValue, bool) { return strField(a.Type) },
	"status":   func(a *Alarm) (FieldValue, bool) { return strField(a.Status) },
}

var ruleAccessors = map[string]ruleAccessor{
	"target_value": func(r *Rule) (FieldValue, bool) {
		if r.Target == nil {
			return FieldValue{}, false
		}
		// IP-typed rule targets compare as IPs so they line up with flow
		// endpoints; everything else stays a string.
		if r.Target.Type == "ip" {
			return ipField(r.Target.Value)
		}
		return strField(r.Target.Value)
	},
	"action":    func(r *Rule) (FieldValue, bool) { return strField(r.Action) },
	"direction": func(r *Rule) (FieldValue, bool) { return strField(r.Direction) },
	"protocol":  func(r *Rule) (FieldValue, bool) { return strField(r.Protocol) },
	"status":    func(r *Rule) (FieldValue, bool) { return strField(r.Status) },
}

var deviceAccessors = map[string]deviceAccessor{
	"device_ip":     func(d *Device) (FieldValue, bool) { return ipField(d.IP) },
	"device_name":   func(d *Device) (FieldValue, bool) { return strField(d.Name) },
	"mac_address":   func(d *Device) (FieldValue, bool) { return strField(d.MAC) },
	"device_vendor": func(d *Device) (FieldValue, bool) { return strField(d.MACVendor) },
	"network_name": func(d *Device) (FieldValue, bool) {
		if d.Network == nil {
			return FieldValue{}, false
		}
		return strField(d.Network.Name)
	},
}

var targetListAccessors = map[string]targetListAccessor{
	"target_value": func(t *TargetList) (FieldValue, bool) {
		if len(t.Targets) == 0 {
			return FieldValue{}, false
		}
		// A list exposes its first target for correlation purposes.
		return strField(t.Targets[0])
	},
	"category": func(t *TargetList) (FieldValue, bool) { return strField(t.Category) },
	"owner":    func(t *TargetList) (FieldValue, bool) { return strField(t.Owner) },
}

func (f *Flow) Field(name string) (FieldValue, bool) {
	acc, ok := flowAccessors[name]
	if !ok {
		return FieldValue{}, false
	}
	return acc(f)
}

func (a *Alarm) Field(name string) (FieldValue, bool) {
	acc, ok := alarmAccessors[name]
	if !ok {
		return FieldValue{}, false
	}
	return acc(a)
}

func (r *Rule) Field(name string) (FieldValue, bool) {
	acc, ok := ruleAccessors[name]
	if !ok {
		return FieldValue{}, false
	}
	return acc(r)
}

func (d *Device) Field(name string) (FieldValue, bool) {
	acc, ok := deviceAccessors[name]
	if !ok {
		return FieldValue{}, false
	}
	return acc(d)
}

func (t *TargetList) Field(name string) (FieldValue, bool) {
	acc, ok := targetListAccessors[name]
	if !ok {
		return FieldValue{}, false
	}
	return acc(t)
}
