package core

import "net/netip"

// EntityType identifies one of the telemetry categories exposed by the
// firewall API. Every query targets exactly one entity type.
type EntityType string

const (
	EntityFlows       EntityType = "flows"
	EntityAlarms      EntityType = "alarms"
	EntityRules       EntityType = "rules"
	EntityDevices     EntityType = "devices"
	EntityTargetLists EntityType = "target_lists"
	EntityUnknown     EntityType = "unknown"
)

// ValidEntityType reports whether et names a known telemetry entity.
func ValidEntityType(et EntityType) bool {
	switch et {
	case EntityFlows, EntityAlarms, EntityRules, EntityDevices, EntityTargetLists:
		return true
	}
	return false
}

// Record is implemented by every telemetry record variant. Field access
// during correlation goes through the per-entity accessor tables rather
// than dynamic property probing.
type Record interface {
	EntityType() EntityType
	// Field resolves a logical correlation field name to a typed value.
	// The second return is false when the record does not expose the field
	// or the underlying value is absent.
	Field(name string) (FieldValue, bool)
	// UnixTS returns the record timestamp in unix seconds, or 0 when the
	// record carries no timestamp.
	UnixTS() float64
}

// Endpoint is one side of a network flow.
type Endpoint struct {
	IP   string `json:"ip,omitempty"`
	Name string `json:"name,omitempty"`
	Port int    `json:"port,omitempty"`
}

// DeviceRef is the embedded device reference carried by flows and alarms.
type DeviceRef struct {
	ID     string `json:"id,omitempty"`
	IP     string `json:"ip,omitempty"`
	Name   string `json:"name,omitempty"`
	Vendor string `json:"vendor,omitempty"`
}

// Flow is a single network flow record.
type Flow struct {
	TS          float64    `json:"ts"`
	GID         string     `json:"gid,omitempty"`
	Protocol    string     `json:"protocol,omitempty"`
	Direction   string     `json:"direction,omitempty"`
	Blocked     bool       `json:"block"`
	Allowed     bool       `json:"allowed"`
	Download    int64      `json:"download"`
	Upload      int64      `json:"upload"`
	Bytes       int64      `json:"bytes"`
	Count       int64      `json:"count"`
	Source      *Endpoint  `json:"source,omitempty"`
	Destination *Endpoint  `json:"destination,omitempty"`
	Device      *DeviceRef `json:"device,omitempty"`
	Region      string     `json:"region,omitempty"`
}

// Alarm is a security alarm record.
type Alarm struct {
	TS       float64    `json:"ts"`
	AID      string     `json:"aid,omitempty"`
	Type     string     `json:"type,omitempty"`
	Severity string     `json:"severity,omitempty"`
	Status   string     `json:"status,omitempty"`
	Message  string     `json:"message,omitempty"`
	Protocol string     `json:"protocol,omitempty"`
	Resolved bool       `json:"resolved"`
	Device   *DeviceRef `json:"device,omitempty"`
	Remote   *Endpoint  `json:"remote,omitempty"`
}

// RuleTarget is the target clause of a firewall rule.
type RuleTarget struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
}

// Rule is a firewall rule record.
type Rule struct {
	ID        string      `json:"id,omitempty"`
	TS        float64     `json:"ts"`
	Action    string      `json:"action,omitempty"`
	Direction string      `json:"direction,omitempty"`
	Protocol  string      `json:"protocol,omitempty"`
	Status    string      `json:"status,omitempty"`
	Notes     string      `json:"notes,omitempty"`
	Target    *RuleTarget `json:"target,omitempty"`
}

// NetworkRef is the embedded network reference carried by devices.
type NetworkRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Device is a managed device record.
type Device struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name,omitempty"`
	IP         string      `json:"ip,omitempty"`
	MAC        string      `json:"mac,omitempty"`
	MACVendor  string      `json:"macVendor,omitempty"`
	Online     bool        `json:"online"`
	Monitored  bool        `json:"monitored"`
	LastSeen   float64     `json:"lastSeen,omitempty"`
	Network    *NetworkRef `json:"network,omitempty"`
	TotalBytes int64       `json:"totalBytes,omitempty"`
}

// TargetList is a named list of block/allow targets.
type TargetList struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	Category    string   `json:"category,omitempty"`
	Targets     []string `json:"targets,omitempty"`
	LastUpdated float64  `json:"lastUpdated,omitempty"`
}

func (f *Flow) EntityType() EntityType       { return EntityFlows }
func (a *Alarm) EntityType() EntityType      { return EntityAlarms }
func (r *Rule) EntityType() EntityType       { return EntityRules }
func (d *Device) EntityType() EntityType     { return EntityDevices }
func (t *TargetList) EntityType() EntityType { return EntityTargetLists }

func (f *Flow) UnixTS() float64       { return f.TS }
func (a *Alarm) UnixTS() float64      { return a.TS }
func (r *Rule) UnixTS() float64       { return r.TS }
func (d *Device) UnixTS() float64     { return d.LastSeen }
func (t *TargetList) UnixTS() float64 { return t.LastUpdated }

// parseIP is a small helper for accessor tables; invalid input yields a
// zero Addr so callers treat the field as absent.
func parseIP(s string) (netip.Addr, bool) {
	if s == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}
