// Package protocol defines the read-only observer wire format. Observers
// watch decisions; they can never write back into the simulation, so
// nothing in here carries an input path.
package protocol

// Version is the observer protocol version.
const Version = "1.0"

// SubscribeMsg is the client's first message on the observer socket, and
// may be re-sent to narrow or widen the view.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Entities limits the view; empty means all agents.
	Entities []uint64 `json:"entities,omitempty"`

	// IncludeMemory adds each agent's blackboard dump to every tick
	// message. Expensive; off by default.
	IncludeMemory bool `json:"include_memory,omitempty"`
}

// BootstrapResponse answers GET /observer/v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Assets          []AssetInfo `json:"assets"`
}

type WorldParams struct {
	TickRateHz          int   `json:"tick_rate_hz"`
	Seed                int64 `json:"seed"`
	AgentCount          int   `json:"agent_count"`
	ArenaHalfWidthMilli int64 `json:"arena_half_width_milli"`
}

// AssetInfo identifies one loaded asset so observers can verify they are
// watching the run they think they are.
type AssetInfo struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Digest string `json:"digest"`
}

// TickMsg is pushed to every subscriber after each tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	// Digest is set only on digest cadence ticks.
	Digest string `json:"digest,omitempty"`

	Agents []AgentView `json:"agents"`
}

// AgentView is one agent's externally visible decision state. Positions
// are milli units.
type AgentView struct {
	Entity    uint64 `json:"entity"`
	Prototype string `json:"prototype"`
	Pos       [2]int64 `json:"pos"`

	Paradigm string `json:"paradigm"`

	// Exactly one of the following is meaningful, per paradigm.
	State    string `json:"state,omitempty"`
	Action   string `json:"action,omitempty"`
	BTStatus string `json:"bt_status,omitempty"`

	Memory map[string]string `json:"memory,omitempty"`
}
