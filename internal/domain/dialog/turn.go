package dialog

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one entry of a chat's conversation log.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Tier selects the model class for a completion.
type Tier string

const (
	TierDefault Tier = "default"
	TierHigh    Tier = "high"
)
